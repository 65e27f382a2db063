package main

import "os"

func main() {
	os.Exit(MainWithArgs(os.Args[1:], os.Stdout, os.Stderr))
}
