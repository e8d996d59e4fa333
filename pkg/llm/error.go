package llm

// ErrorResponse is the JSON body returned to callers when a request fails.
type ErrorResponse struct {
	// Error is the machine-readable error kind.
	Error string `json:"error"`

	// Detail is a human-readable description.
	Detail string `json:"detail,omitempty"`

	// UpstreamStatus and UpstreamBody are set for upstream failures.
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	UpstreamBody   string `json:"upstream_body,omitempty"`
}
