package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	lynkr "github.com/lynkr-ai/lynkr-go-sdk"
	"github.com/lynkr-ai/lynkr-go-sdk/config"
)

// SystemPrompt instructs the model to look up a schema, gather fields from
// the user, confirm, and only then execute.
const SystemPrompt = `You are a helpful assistant that can use Lynkr APIs to perform tasks.
Have a conversation with the user and, whenever you are stuck, ask the user for more information.

You have access to the following tools:
get_schema: call this first.
- It returns the schema of the API you are going to call.
- Use it to understand the API and its parameters.
- Ask the user for every required parameter and check whether optional parameters are wanted.
- Sensitive fields listed under has_keys_for are filled in automatically; do not ask for them.
- Then verify your understanding of the user's needs by asking for confirmation in plain text, not JSON.

Once the user confirms, call execute_action with the parameters you have gathered.
list_api_keys: shows which services have stored keys, with masked values.`

// Agent runs an OpenAI function-calling conversation over Lynkr tools. It
// keeps the chat history between Chat calls and is not safe for concurrent
// use.
type Agent struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	maxSteps    int

	tools   []lynkr.Tool
	specs   []openai.Tool
	history []openai.ChatCompletionMessage
	metrics Metrics
	logger  *logrus.Logger
}

// NewAgent creates an agent using cfg for the OpenAI connection.
func NewAgent(cfg config.LLMConfig, tools []lynkr.Tool, logger *logrus.Logger) (*Agent, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &LLMError{Code: ErrorUnauthorized, Message: "OpenAI API key is required", Type: "configuration"}
	}
	if logger == nil {
		logger = logrus.New()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = config.DefaultConfig().LLM.MaxSteps
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &Agent{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		maxSteps:    maxSteps,
		tools:       tools,
		specs:       OpenAITools(tools),
		logger:      logger,
	}, nil
}

// OpenAITools converts Lynkr tools to OpenAI function tools.
func OpenAITools(tools []lynkr.Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.JSONSchema(),
			},
		})
	}
	return out
}

// Chat sends one user message and runs tool calls until the model answers in
// text or the step limit is reached. On failure the history is left as it
// was before the call.
func (a *Agent) Chat(ctx context.Context, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", &LLMError{Code: ErrorInvalidRequest, Message: "input cannot be empty", Type: "validation"}
	}

	mark := len(a.history)
	a.history = append(a.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: input,
	})

	for step := 0; step < a.maxSteps; step++ {
		msg, err := a.complete(ctx)
		if err != nil {
			a.history = a.history[:mark]
			return "", err
		}
		a.history = append(a.history, msg)

		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		for _, call := range msg.ToolCalls {
			a.history = append(a.history, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    a.runToolCall(ctx, call),
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
		}
	}

	a.history = a.history[:mark]
	return "", &LLMError{
		Code:    ErrorMaxSteps,
		Message: fmt.Sprintf("no answer after %d steps", a.maxSteps),
		Type:    "agent",
	}
}

func (a *Agent) complete(ctx context.Context) (openai.ChatCompletionMessage, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(a.history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: SystemPrompt,
	})
	messages = append(messages, a.history...)

	req := openai.ChatCompletionRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
		Messages:    messages,
		Tools:       a.specs,
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, req)
	a.metrics.observeRequest(time.Since(start), resp.Usage.TotalTokens, err)
	if err != nil {
		return openai.ChatCompletionMessage{}, &LLMError{
			Code:    ErrorAPIError,
			Message: "chat completion failed",
			Type:    "api",
			Err:     err,
		}
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, &LLMError{Code: ErrorAPIError, Message: "no response from LLM", Type: "api"}
	}

	a.logger.WithFields(logrus.Fields{
		"model":         a.model,
		"finish_reason": resp.Choices[0].FinishReason,
		"tool_calls":    len(resp.Choices[0].Message.ToolCalls),
	}).Debug("Chat completion received")
	return resp.Choices[0].Message, nil
}

// runToolCall executes one tool call and renders its result as text for the
// model. Unknown tools and malformed arguments are reported to the model.
func (a *Agent) runToolCall(ctx context.Context, call openai.ToolCall) string {
	a.metrics.ToolCallsTotal++
	log := a.logger.WithFields(logrus.Fields{"tool": call.Function.Name, "call_id": call.ID})

	tool, ok := lynkr.FindTool(a.tools, call.Function.Name)
	if !ok {
		a.metrics.ToolCallsError++
		log.Warn("Model called an unknown tool")
		return fmt.Sprintf("Error: unknown tool %q", call.Function.Name)
	}

	args := map[string]interface{}{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			a.metrics.ToolCallsError++
			log.WithError(err).Warn("Model sent malformed tool arguments")
			return fmt.Sprintf("Error: invalid arguments: %v", err)
		}
	}

	res := tool.Invoke(ctx, args)
	if res.Failed() {
		a.metrics.ToolCallsError++
		log.WithError(res.Err).Warn("Tool call failed")
	} else {
		log.Debug("Tool call completed")
	}
	return res.Text()
}

// History returns a copy of the conversation so far, without the system
// prompt.
func (a *Agent) History() []openai.ChatCompletionMessage {
	return append([]openai.ChatCompletionMessage(nil), a.history...)
}

// Reset clears the conversation.
func (a *Agent) Reset() {
	a.history = nil
}

// Metrics returns usage counters.
func (a *Agent) Metrics() Metrics {
	return a.metrics
}
