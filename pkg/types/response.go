package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorBody is the JSON body written for every failed request.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}
