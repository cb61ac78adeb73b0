package event

// CallStartedData is the data for call.started events.
type CallStartedData struct {
	ThreadID   string   `json:"threadID,omitempty"`
	Candidates []string `json:"candidates"`
	Structured bool     `json:"structured"`
}

// CallAttemptData is the data for call.attempt events. Attempt counts from 1
// within a candidate.
type CallAttemptData struct {
	ThreadID string `json:"threadID,omitempty"`
	Model    string `json:"model"`
	Index    int    `json:"index"`
	Attempt  int    `json:"attempt"`
	// Error is set when the attempt failed and will be retried.
	Error string `json:"error,omitempty"`
}

// CallFallbackData is the data for call.fallback events.
type CallFallbackData struct {
	ThreadID string `json:"threadID,omitempty"`
	From     string `json:"from"`
	To       string `json:"to"`
	Error    string `json:"error"`
}

// CallSucceededData is the data for call.succeeded events.
type CallSucceededData struct {
	ThreadID string `json:"threadID,omitempty"`
	Model    string `json:"model"`
	Attempts int    `json:"attempts"`
	// Placeholder is true when the response text was substituted.
	Placeholder bool `json:"placeholder,omitempty"`
}

// CallExhaustedData is the data for call.exhausted events.
type CallExhaustedData struct {
	ThreadID string `json:"threadID,omitempty"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

// ModelWarningData is the data for model.warning events.
type ModelWarningData struct {
	Model   string `json:"model"`
	Message string `json:"message"`
}
