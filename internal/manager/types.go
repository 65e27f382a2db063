package manager

// Status is a point-in-time view of the model lifecycle. It is returned by
// value; mutating a returned Status never affects the manager.
//
// At most one of IsReady and IsLoading is true, and a non-empty Error implies
// both are false.
type Status struct {
	IsReady   bool   `json:"isReady"`
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
	Progress  int    `json:"progress"`
}

// State names the lifecycle phase derived from a Status.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// State reports the lifecycle phase encoded by s.
func (s Status) State() State {
	switch {
	case s.IsReady:
		return StateReady
	case s.IsLoading:
		return StateLoading
	case s.Error != "":
		return StateError
	default:
		return StateIdle
	}
}

// Metadata describes the question that produced a Response.
type Metadata struct {
	IsChemotherapyQuery bool `json:"isChemotherapyQuery"`
}

// Response is the outcome of GenerateResponse. Failures are reported through
// Error (and Cause for programmatic checks), never as a Go error.
type Response struct {
	Text     string    `json:"text"`
	Error    string    `json:"error,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
	// Cause is the typed error behind Error; see IsValidation, IsUnavailable,
	// IsInitialization and IsGeneration.
	Cause error `json:"-"`
}

// OK reports whether the response carries generated text rather than an error.
func (r Response) OK() bool { return r.Error == "" }
