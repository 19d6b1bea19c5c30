package lynkr

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned by NewClient when no API key is available.
var ErrMissingAPIKey = errors.New("API key is required: pass it to NewClient or set " + EnvAPIKey)

// ErrMissingRefID is the message of the soft error result ExecuteAction
// returns when no reference id is known.
const ErrMissingRefID = "ref_id is required to execute an action"

// ValidationError reports caller input that is structurally invalid. It is
// always returned before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// APIError reports a response from the Lynkr API that is malformed or
// indicates failure.
type APIError struct {
	StatusCode int
	Body       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("lynkr api: %s (status %d): %s", e.Message, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("lynkr api: %s (status %d)", e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("lynkr api: %s", e.Message)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}
