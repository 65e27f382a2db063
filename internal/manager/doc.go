// Package manager owns the lifecycle of the question-answering model: lazy,
// at-most-once pipeline loading, a status snapshot and GenerateResponse.
// It is structured into small files by concern:
//
//   - manager.go: Manager type, constructor, Status/Ready/Close.
//   - config.go: ManagerConfig, LoadMode and package defaults.
//   - types.go: Status, Response and Metadata values.
//   - runtime_iface.go: Runtime/Pipeline interfaces the runtimes implement.
//   - ensure.go: pipeline loading, the initializing guard and progress.
//   - generate.go: GenerateResponse and result shaping.
//   - prompt.go: instruction template and chemotherapy keyword matching.
//   - errors.go: error types and helpers (IsUnavailable, IsGeneration, ...).
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus collectors.
//   - runtime_cache.go, sanity.go: model cache resolution and checks.
//
// Runtimes:
//
//   - In-process llama (adapter_llama.go): go-llama.cpp, enabled with
//     `-tags=llama`. Without the tag adapter_llama_stub.go resolves the model
//     and then fails with a dependency-unavailable error.
//   - Inference server (adapter_server.go): any OpenAI-compatible
//     /v1/completions endpoint.
//
// Callers construct one Manager at the composition root and pass it around;
// there is no package-level instance.
package manager
