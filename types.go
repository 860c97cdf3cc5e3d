package mealrecal

import (
	"context"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackClient interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// Role identifies the author of a generator message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a generator conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest is a single call to a text generator.
type GenerateRequest struct {
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	// Schema, when set, asks the backend for structured output matching it.
	Schema  *jsonschema.Schema
	Timeout time.Duration
}

// FailureReason classifies a failed generator call so callers can decide how to retry.
type FailureReason string

const (
	ReasonNone        FailureReason = ""
	ReasonRateLimited FailureReason = "rate_limited"
	ReasonTimeout     FailureReason = "timeout"
	ReasonOther       FailureReason = "other"
)

// GenerateResult is either text or a classified failure. Generators never return a Go error
// alongside it; Err only explains the failure.
type GenerateResult struct {
	Text   string
	Reason FailureReason
	Err    error
}

// OK reports whether the call produced text.
func (r GenerateResult) OK() bool {
	return r.Reason == ReasonNone && r.Err == nil
}

// Success wraps generated text.
func Success(text string) GenerateResult {
	return GenerateResult{Text: text}
}

// Failure wraps a classified error.
func Failure(reason FailureReason, err error) GenerateResult {
	if reason == ReasonNone {
		reason = ReasonOther
	}
	return GenerateResult{Reason: reason, Err: err}
}

// Generator is the external text-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) GenerateResult
}
