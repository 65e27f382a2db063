//go:build llama

package manager

// Link directives for the in-process llama runtime. The rpath of $ORIGIN lets
// the loader find libllama.so next to the built binary in ./bin, which is
// also where the linker looks at build time.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
