package llm

import (
	"fmt"
	"time"
)

// Metrics contains agent usage metrics
type Metrics struct {
	RequestsTotal    int64         `json:"requests_total"`
	RequestsError    int64         `json:"requests_error"`
	AvgResponseTime  time.Duration `json:"avg_response_time"`
	TokensUsed       int64         `json:"tokens_used"`
	ToolCallsTotal   int64         `json:"tool_calls_total"`
	ToolCallsError   int64         `json:"tool_calls_error"`
	LastRequest      time.Time     `json:"last_request"`
	totalResponseDur time.Duration
}

func (m *Metrics) observeRequest(d time.Duration, tokens int, err error) {
	m.RequestsTotal++
	if err != nil {
		m.RequestsError++
	}
	m.TokensUsed += int64(tokens)
	m.totalResponseDur += d
	m.AvgResponseTime = m.totalResponseDur / time.Duration(m.RequestsTotal)
	m.LastRequest = time.Now()
}

// LLMError represents an error from the agent loop
type LLMError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *LLMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// LLM error codes
const (
	ErrorInvalidRequest = 4000
	ErrorUnauthorized   = 4001
	ErrorAPIError       = 5000
	ErrorMaxSteps       = 5003
)
