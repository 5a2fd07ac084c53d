package api

import "fmt"

// RequestError carries the HTTP status and, when KSeF returned one, the
// service level error code and description.
type RequestError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
	Err        error
}

func (r *RequestError) Error() string {
	if r.Code != "" {
		return fmt.Sprintf("KSeF returned status %d, code %s: %s", r.StatusCode, r.Code, r.Message)
	}
	return fmt.Sprintf("KSeF returned status %d: %s", r.StatusCode, r.Message)
}

func (r *RequestError) Unwrap() error {
	return r.Err
}

// SubmissionErrorCode exposes the error code to the reconciliation
// coordinator without a package dependency.
func (r *RequestError) SubmissionErrorCode() string {
	if r.Code != "" {
		return r.Code
	}
	return fmt.Sprintf("HTTP_%d", r.StatusCode)
}
