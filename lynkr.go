// Package lynkr is a client for the Lynkr schema-then-execute API.
//
// A natural-language request is turned into a field schema by GetSchema; the
// caller fills the fields and submits them with ExecuteAction. Stored service
// keys are used to fill key-like fields, and both operations are exposed as
// agent tools through AgentTools.
package lynkr

// Version is the SDK version, reported by the CLI, the HTTP gateway health
// check and the lynkr_client_info metric.
const Version = "v0.1.0"

const (
	// DefaultBaseURL is the public Lynkr API endpoint.
	DefaultBaseURL = "http://api.lynkr.ca"

	// EnvAPIKey is consulted when NewClient is given an empty key.
	EnvAPIKey = "LYNKR_API_KEY"

	schemaPath  = "/api/v0/schema"
	executePath = "/api/v0/execute"
)
