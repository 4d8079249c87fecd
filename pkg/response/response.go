// Package response carries the JSON error envelope used by middleware
// that rejects a request before any handler runs. The shape mirrors
// the handlers' error body so clients parse one format everywhere.
package response

// Body is the rejection payload: a human-readable error plus a stable
// machine code.
type Body struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error builds the envelope for an aborted request.
func Error(code, message string) Body {
	return Body{Error: message, Code: code}
}
