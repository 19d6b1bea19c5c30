package lynkr

import (
	"fmt"

	"github.com/lynkr-ai/lynkr-go-sdk/schema"
)

// Metadata is the metadata block of a schema response. It is never nil on an
// ExecutionContext produced by the client.
type Metadata map[string]string

// Service returns the service the schema belongs to, or "".
func (m Metadata) Service() string {
	return m["service"]
}

func parseMetadata(raw interface{}) Metadata {
	md := Metadata{}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return md
	}
	for k, v := range m {
		switch val := v.(type) {
		case nil:
		case string:
			md[k] = val
		default:
			md[k] = fmt.Sprint(val)
		}
	}
	return md
}

// ExecutionContext is the state carried from GetSchema to ExecuteAction.
type ExecutionContext struct {
	RefID    string
	Metadata Metadata
	Schema   *schema.Schema
}

// State is the lifecycle state of a Client.
type State int

const (
	StateUninitialized State = iota
	StateSchemaFetched
	StateExecuted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSchemaFetched:
		return "schema_fetched"
	case StateExecuted:
		return "executed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
