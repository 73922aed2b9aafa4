package api

import (
	"fmt"
	"net/http"
)

// TransportError means the exchange itself failed: the request could not be
// sent, timed out, or came back with a non-2xx status.
type TransportError struct {
	Op         string
	StatusCode int    // 0 when no response was received
	Message    string // backend "error" field when the body carried one
	Code       string // backend "error_code" field when present
	Timeout    bool
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Message, e.StatusCode)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": request failed"
}

func (e *TransportError) Unwrap() error { return e.Err }

// Detail is the most user-meaningful text for the failure
func (e *TransportError) Detail() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.StatusCode != 0 {
		return http.StatusText(e.StatusCode)
	}
	return ""
}

// BackendError means the exchange succeeded but the service reported
// success=false.
type BackendError struct {
	Op      string
	Message string
	Code    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return e.Op + ": backend reported failure"
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// ShapeError means the response parsed but lacks the expected fields
type ShapeError struct {
	Op  string
	Err error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: unexpected response shape: %v", e.Op, e.Err)
}

func (e *ShapeError) Unwrap() error { return e.Err }
