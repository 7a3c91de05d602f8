package harness

// TraceEvent records one executed step: what ran, which handles it
// touched, and how the store answered.
type TraceEvent struct {
	// Seq is the 1-based position of the step in the scenario.
	Seq int `json:"seq"`

	// Op names the operation: create, supersede, tombstone, relate.
	Op string `json:"op"`

	// Refs lists the symbolic handles the step referenced, in the order
	// the step declared them.
	Refs []string `json:"refs"`

	// UUID is the identity the store assigned, when the step produced
	// one: the item for create, the tombstone for tombstone, the edge
	// for relate. Empty for supersede and for failed steps.
	UUID string `json:"uuid,omitempty"`

	// Outcome classifies the store's answer: "ok" or a failure class.
	Outcome string `json:"outcome"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step met its expected outcome and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace lists the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors describes every expectation or assertion that failed.
	Errors []string `json:"errors,omitempty"`

	// Bindings maps each bound handle to its store-assigned UUID.
	Bindings map[string]string `json:"bindings,omitempty"`
}

// NewResult creates an empty passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Bindings: map[string]string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}
