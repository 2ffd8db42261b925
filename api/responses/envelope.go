package responses

// Success is the body of every 2xx JSON response.
type Success struct {
	Data any `json:"data"`
}

// ErrorBody is the public shape of a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Failure wraps ErrorBody as {"error": ...}.
type Failure struct {
	Error ErrorBody `json:"error"`
}
