package lynkr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Tool names exposed to agent frameworks.
const (
	ToolGetSchema     = "get_schema"
	ToolExecuteAction = "execute_action"
	ToolListAPIKeys   = "list_api_keys"
)

// ToolParam describes one tool argument.
type ToolParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolHandler implements a tool.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Tool is an agent-callable operation. Adapters (MCP, OpenAI, HTTP) convert it
// to their own tool types and render ToolResult as text.
type Tool struct {
	Name        string
	Description string
	Params      []ToolParam
	Handler     ToolHandler

	errPrefix string
	observe   func(name string, failed bool)
}

// ToolResult is the outcome of a tool invocation: a value or an error, never
// both.
type ToolResult struct {
	Value interface{}
	Err   error

	errPrefix string
}

// Failed reports whether the invocation failed.
func (r ToolResult) Failed() bool {
	return r.Err != nil
}

// Text renders the result for an agent. Strings are returned verbatim, other
// values as JSON, and errors as "Error: <message>".
func (r ToolResult) Text() string {
	if r.Err != nil {
		prefix := r.errPrefix
		if prefix == "" {
			prefix = "Error"
		}
		return fmt.Sprintf("%s: %s", prefix, r.Err.Error())
	}
	switch v := r.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	data, err := json.Marshal(r.Value)
	if err != nil {
		return fmt.Sprint(r.Value)
	}
	return string(data)
}

// Invoke runs the tool. Panics and errors are captured in the result; Invoke
// itself never fails.
func (t Tool) Invoke(ctx context.Context, args map[string]interface{}) (res ToolResult) {
	res.errPrefix = t.errPrefix
	defer func() {
		if p := recover(); p != nil {
			res = ToolResult{Err: fmt.Errorf("panic in tool %s: %v", t.Name, p), errPrefix: t.errPrefix}
		}
		if t.observe != nil {
			t.observe(t.Name, res.Err != nil)
		}
	}()

	if t.Handler == nil {
		res.Err = fmt.Errorf("tool %s has no handler", t.Name)
		return res
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	res.Value, res.Err = t.Handler(ctx, args)
	if res.Err != nil {
		res.Value = nil
	}
	return res
}

// JSONSchema renders the parameters as a JSON Schema object.
func (t Tool) JSONSchema() map[string]interface{} {
	props := make(map[string]interface{}, len(t.Params))
	required := []string{}
	for _, p := range t.Params {
		props[p.Name] = map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// SchemaLookup is the result of the get_schema tool.
type SchemaLookup struct {
	RefID           string   `json:"ref_id"`
	RequiredFields  []string `json:"required_fields"`
	OptionalFields  []string `json:"optional_fields"`
	SensitiveFields []string `json:"sensitive_fields"`
	HasKeysFor      []string `json:"has_keys_for"`
	MissingKeysFor  []string `json:"missing_keys_for"`
	SchemaJSON      string   `json:"schema_json"`
}

// AgentTools returns the schema lookup, action execution and key listing
// tools bound to this client.
func (c *Client) AgentTools() []Tool {
	observe := c.metrics.ObserveToolCall

	return []Tool{
		{
			Name: ToolGetSchema,
			Description: "Get a schema for a natural language request. " +
				"Use it first to learn which fields an action needs: it turns a request such as " +
				"\"send an email\" or \"check my bank balance\" into required, optional and sensitive fields " +
				"plus a reference id for the later execute_action call. " +
				"It also reports which sensitive fields already have a stored API key.",
			Params: []ToolParam{{
				Name:        "request_string",
				Type:        "string",
				Description: "A clear, specific description of what you want to do",
				Required:    true,
			}},
			Handler: c.schemaLookupTool,
			observe: observe,
		},
		{
			Name: ToolExecuteAction,
			Description: "Execute an action with the provided schema data. " +
				"Call it after get_schema once the required fields are filled and the user has confirmed. " +
				"Stored API keys are filled in automatically. " +
				"If ref_id is omitted the most recent get_schema reference id is used.",
			Params: []ToolParam{
				{
					Name:        "schema_data",
					Type:        "object",
					Description: "Field values for the action, keyed by field name",
					Required:    true,
				},
				{
					Name:        "ref_id",
					Type:        "string",
					Description: "Reference id from a previous get_schema call",
				},
			},
			Handler: c.executeActionTool,
			observe: observe,
		},
		{
			Name: ToolListAPIKeys,
			Description: "List the stored API keys with masked values. " +
				"Use it to see which services can be filled in automatically.",
			Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return c.keys.ListMasked(), nil
			},
			errPrefix: "Error listing API keys",
			observe:   observe,
		},
	}
}

func (c *Client) schemaLookupTool(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	request, ok := args["request_string"].(string)
	if !ok {
		return nil, &ValidationError{Field: "request_string", Message: "must be a non-empty string"}
	}

	refID, s, err := c.GetSchema(ctx, request)
	if err != nil {
		return nil, err
	}

	lookup := SchemaLookup{
		RefID:           refID,
		RequiredFields:  s.RequiredFields(),
		OptionalFields:  s.OptionalFields(),
		SensitiveFields: s.SensitiveFields(),
		HasKeysFor:      []string{},
		MissingKeysFor:  []string{},
	}
	service := c.execCtx.Metadata.Service()
	for _, field := range lookup.SensitiveFields {
		if _, ok := c.keys.Resolve(field, service); ok || c.keys.HasKeyFor(field) {
			lookup.HasKeysFor = append(lookup.HasKeysFor, field)
		} else {
			lookup.MissingKeysFor = append(lookup.MissingKeysFor, field)
		}
	}
	if lookup.SchemaJSON, err = s.ToJSON(); err != nil {
		return nil, err
	}
	return lookup, nil
}

func (c *Client) executeActionTool(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	data, err := schemaDataArg(args["schema_data"])
	if err != nil {
		return nil, err
	}

	var opts []ExecuteOption
	switch ref := args["ref_id"].(type) {
	case nil:
	case string:
		if strings.TrimSpace(ref) != "" {
			opts = append(opts, WithRefID(ref))
		}
	default:
		return nil, &ValidationError{Field: "ref_id", Message: "must be a string"}
	}

	return c.ExecuteAction(ctx, data, opts...)
}

// schemaDataArg accepts schema_data as an object or as a JSON-encoded object,
// since some models send nested arguments as strings.
func schemaDataArg(raw interface{}) (map[string]interface{}, error) {
	switch v := raw.(type) {
	case map[string]interface{}:
		return v, nil
	case string:
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, &ValidationError{Field: "schema_data", Message: "must be a JSON object"}
		}
		return m, nil
	case nil:
		return nil, &ValidationError{Field: "schema_data", Message: "must be a non-empty mapping"}
	default:
		return nil, &ValidationError{Field: "schema_data", Message: fmt.Sprintf("must be a mapping, got %T", raw)}
	}
}

// FindTool returns the tool with the given name.
func FindTool(tools []Tool, name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
