package backend

import "fmt"

// StatusFetchError reports a failed status read: either a non-2xx response
// from the primary endpoint or a well-formed body whose envelope status is
// not "success". The prior display is retained when it occurs.
type StatusFetchError struct {
	Code    int
	Message string
}

func (e *StatusFetchError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("status fetch failed (HTTP %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("status fetch failed: %s", e.Message)
}

// CommandError reports a failed command POST, carrying the most specific
// message that could be extracted from the response.
type CommandError struct {
	Command string
	Code    int
	Message string
}

func (e *CommandError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("command %q failed (HTTP %d): %s", e.Command, e.Code, e.Message)
	}
	return fmt.Sprintf("command %q failed: %s", e.Command, e.Message)
}
