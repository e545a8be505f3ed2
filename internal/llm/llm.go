// Package llm defines the language-model seam used by the clinical pipeline.
//
// The pipeline never depends on a concrete backend. It is handed an Adapter,
// which may be None, and treats every failure of that Adapter as a reason to
// fall back to deterministic text.
package llm

import "context"

// Message roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat-style prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Adapter generates text for an ordered list of messages.
type Adapter interface {
	Name() string
	Generate(ctx context.Context, messages []Message) (string, error)
}

type none struct{}

func (none) Name() string { return "none" }

func (none) Generate(context.Context, []Message) (string, error) {
	return "", ErrUnavailable
}

// None is the absent adapter. A pipeline given None runs on rules and templates only.
var None Adapter = none{}

// IsNone reports whether a is nil or the None adapter.
func IsNone(a Adapter) bool {
	if a == nil {
		return true
	}
	_, ok := a.(none)
	return ok
}

// Func adapts a plain function to the Adapter interface.
type Func func(ctx context.Context, messages []Message) (string, error)

func (f Func) Name() string { return "func" }

func (f Func) Generate(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

// Static returns an adapter that always answers with text.
func Static(text string) Adapter {
	return named{name: "static", gen: func(context.Context, []Message) (string, error) {
		return text, nil
	}}
}

// Failing returns an adapter whose every call fails with err.
func Failing(err error) Adapter {
	return named{name: "failing", gen: func(context.Context, []Message) (string, error) {
		return "", err
	}}
}

type named struct {
	name string
	gen  Func
}

func (n named) Name() string { return n.name }

func (n named) Generate(ctx context.Context, messages []Message) (string, error) {
	return n.gen(ctx, messages)
}
