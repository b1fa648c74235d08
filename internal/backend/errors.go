package backend

import "fmt"

// HTTPError is returned when the backend answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// UnsuccessfulError is returned when the backend answers 2xx but reports
// success=false in the body.
type UnsuccessfulError struct {
	Endpoint string
	Message  string
}

func (e *UnsuccessfulError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s reported success=false", e.Endpoint)
	}
	return fmt.Sprintf("%s reported success=false: %s", e.Endpoint, e.Message)
}
