package models

// Response is the uniform envelope returned by every control endpoint.
// Success and StatusCode always agree: success implies a 2xx code and a
// populated Data field, failure implies 4xx/5xx and a populated Error field.
type Response struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"status_code"`
	Data       interface{} `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
}
