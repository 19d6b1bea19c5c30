package lynkr

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lynkr-ai/lynkr-go-sdk/internal/metrics"
)

func TestAgentTools_Names(t *testing.T) {
	c, err := NewClient("k")
	require.NoError(t, err)

	tools := c.AgentTools()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.NotNil(t, tool.Handler)
	}
	assert.Equal(t, []string{ToolGetSchema, ToolExecuteAction, ToolListAPIKeys}, names)
}

func TestTool_JSONSchema(t *testing.T) {
	c, err := NewClient("k")
	require.NoError(t, err)

	tool, ok := FindTool(c.AgentTools(), ToolExecuteAction)
	require.True(t, ok)

	js := tool.JSONSchema()
	assert.Equal(t, "object", js["type"])
	assert.Equal(t, []string{"schema_data"}, js["required"])
	props := js["properties"].(map[string]interface{})
	assert.Contains(t, props, "schema_data")
	assert.Contains(t, props, "ref_id")

	keysTool, ok := FindTool(c.AgentTools(), ToolListAPIKeys)
	require.True(t, ok)
	assert.Equal(t, []string{}, keysTool.JSONSchema()["required"])
}

func TestFindTool_Unknown(t *testing.T) {
	_, ok := FindTool(nil, "nope")
	assert.False(t, ok)
}

func TestGetSchemaTool(t *testing.T) {
	api := newFakeAPI(t)
	api.schemaBody = emailSchemaResponse()
	c := newTestClient(t, api)
	c.Keys().Register("resend", "secret123", "api_key")

	tool, _ := FindTool(c.AgentTools(), ToolGetSchema)
	res := tool.Invoke(context.Background(), map[string]interface{}{"request_string": "send an email"})
	require.False(t, res.Failed(), res.Text())

	lookup, ok := res.Value.(SchemaLookup)
	require.True(t, ok)
	assert.Equal(t, "ref_email", lookup.RefID)
	assert.Equal(t, []string{"api_key", "to"}, lookup.RequiredFields)
	assert.Equal(t, []string{"api_key"}, lookup.SensitiveFields)
	assert.Equal(t, []string{"api_key"}, lookup.HasKeysFor)
	assert.Empty(t, lookup.MissingKeysFor)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.Text()), &decoded))
	assert.Equal(t, "ref_email", decoded["ref_id"])
	assert.NotEmpty(t, decoded["schema_json"])
}

func TestGetSchemaTool_MissingKeys(t *testing.T) {
	api := newFakeAPI(t)
	api.schemaBody = emailSchemaResponse()
	c := newTestClient(t, api)

	tool, _ := FindTool(c.AgentTools(), ToolGetSchema)
	res := tool.Invoke(context.Background(), map[string]interface{}{"request_string": "send an email"})
	require.False(t, res.Failed())
	assert.Equal(t, []string{"api_key"}, res.Value.(SchemaLookup).MissingKeysFor)
}

func TestGetSchemaTool_KeyForMetadataService(t *testing.T) {
	api := newFakeAPI(t)
	api.schemaBody = emailSchemaResponse()
	c := newTestClient(t, api)
	c.Keys().Register("resend", "secret123")

	tools := c.AgentTools()
	lookupTool, _ := FindTool(tools, ToolGetSchema)
	res := lookupTool.Invoke(context.Background(), map[string]interface{}{"request_string": "send an email"})
	require.False(t, res.Failed(), res.Text())

	lookup := res.Value.(SchemaLookup)
	assert.Equal(t, []string{"api_key"}, lookup.HasKeysFor)
	assert.Empty(t, lookup.MissingKeysFor)

	// the field reported as covered is the one auto-fill supplies
	execTool, _ := FindTool(tools, ToolExecuteAction)
	res = execTool.Invoke(context.Background(), map[string]interface{}{
		"schema_data": map[string]interface{}{"to": "a@b.c"},
	})
	require.False(t, res.Failed(), res.Text())
	fields := api.last().Body["schema"].(map[string]interface{})["fields"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"value": "secret123"}, fields["api_key"])
}

func TestGetSchemaTool_BadArgument(t *testing.T) {
	c, err := NewClient("k")
	require.NoError(t, err)

	tool, _ := FindTool(c.AgentTools(), ToolGetSchema)
	res := tool.Invoke(context.Background(), map[string]interface{}{"request_string": 42})
	require.True(t, res.Failed())
	assert.Nil(t, res.Value)
	assert.Equal(t, "Error: request_string: must be a non-empty string", res.Text())
}

func TestExecuteActionTool(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api)

	tool, _ := FindTool(c.AgentTools(), ToolExecuteAction)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"object", map[string]interface{}{"schema_data": map[string]interface{}{"location": "NYC"}, "ref_id": "r1"}},
		{"json string", map[string]interface{}{"schema_data": `{"location": "NYC"}`, "ref_id": "r1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tool.Invoke(context.Background(), tt.args)
			require.False(t, res.Failed(), res.Text())
			assert.Equal(t, "r1", api.last().Body["ref_id"])

			var decoded map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(res.Text()), &decoded))
			assert.Equal(t, "success", decoded["status"])
		})
	}
}

func TestExecuteActionTool_NoRefID(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api)

	tool, _ := FindTool(c.AgentTools(), ToolExecuteAction)
	res := tool.Invoke(context.Background(), map[string]interface{}{
		"schema_data": map[string]interface{}{"location": "NYC"},
		"ref_id":      "  ",
	})
	require.False(t, res.Failed())
	assert.Equal(t, `{"error":"ref_id is required to execute an action"}`, res.Text())
	assert.Equal(t, 0, api.count())
}

func TestExecuteActionTool_BadArguments(t *testing.T) {
	c, err := NewClient("k")
	require.NoError(t, err)
	tool, _ := FindTool(c.AgentTools(), ToolExecuteAction)

	tests := []struct {
		name  string
		args  map[string]interface{}
		field string
	}{
		{"missing data", map[string]interface{}{"ref_id": "r1"}, "schema_data"},
		{"invalid json", map[string]interface{}{"schema_data": "{nope", "ref_id": "r1"}, "schema_data"},
		{"wrong type", map[string]interface{}{"schema_data": []interface{}{1}, "ref_id": "r1"}, "schema_data"},
		{"ref not string", map[string]interface{}{"schema_data": map[string]interface{}{"a": 1}, "ref_id": 7}, "ref_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tool.Invoke(context.Background(), tt.args)
			require.True(t, res.Failed())
			var vErr *ValidationError
			require.True(t, errors.As(res.Err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestListAPIKeysTool(t *testing.T) {
	c, err := NewClient("k")
	require.NoError(t, err)
	c.Keys().Register("resend", "re_123456789")

	tool, _ := FindTool(c.AgentTools(), ToolListAPIKeys)
	res := tool.Invoke(context.Background(), nil)
	require.False(t, res.Failed())
	assert.Equal(t, `{"resend":"********6789"}`, res.Text())
	assert.NotContains(t, res.Text(), "re_123456789")
}

func TestTool_InvokeRecoversPanic(t *testing.T) {
	tool := Tool{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			panic("kaput")
		},
	}
	res := tool.Invoke(context.Background(), nil)
	require.True(t, res.Failed())
	assert.Contains(t, res.Text(), "kaput")
}

func TestTool_InvokeWithoutHandler(t *testing.T) {
	res := Tool{Name: "empty"}.Invoke(context.Background(), nil)
	assert.True(t, res.Failed())
}

func TestToolResult_Text(t *testing.T) {
	assert.Equal(t, "plain", ToolResult{Value: "plain"}.Text())
	assert.Equal(t, "", ToolResult{}.Text())
	assert.Equal(t, `[1,2]`, ToolResult{Value: []int{1, 2}}.Text())
	assert.Equal(t, "Error: nope", ToolResult{Err: errors.New("nope")}.Text())
	assert.Equal(t, "Error listing API keys: nope", ToolResult{Err: errors.New("nope"), errPrefix: "Error listing API keys"}.Text())
}

func TestAgentTools_RecordsMetrics(t *testing.T) {
	collector := metrics.NewCollector(logrus.New(), Version)
	c, err := NewClient("k", WithMetrics(collector))
	require.NoError(t, err)

	tool, _ := FindTool(c.AgentTools(), ToolExecuteAction)
	tool.Invoke(context.Background(), map[string]interface{}{})

	keysTool, _ := FindTool(c.AgentTools(), ToolListAPIKeys)
	keysTool.Invoke(context.Background(), nil)

	expected := `
# HELP lynkr_tool_calls_total Agent tool invocations by outcome
# TYPE lynkr_tool_calls_total counter
lynkr_tool_calls_total{outcome="error",tool="execute_action"} 1
lynkr_tool_calls_total{outcome="ok",tool="list_api_keys"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(collector.GetRegistry(), strings.NewReader(expected), "lynkr_tool_calls_total"))
}
