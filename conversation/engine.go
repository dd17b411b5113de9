package conversation

import (
	"context"
	"log/slog"

	"github.com/intakekit/intakekit/prompts"
	"github.com/intakekit/intakekit/protocol"
	"github.com/intakekit/intakekit/template"
)

// ChatProvider is the boundary to the external language model. maxTurns
// bounds how much history is sent; implementations keep the most recent
// turns. A failure must leave no side effects.
type ChatProvider interface {
	Send(ctx context.Context, systemPrompt string, turns []Message, maxTurns int) (string, error)
}

// TemplateSource resolves template names. A registry satisfies this.
type TemplateSource interface {
	GetOrDefault(name string) *template.Template
}

// defaultMaxTurns bounds the history window sent to the model.
const defaultMaxTurns = 20

// Engine drives one interview turn: user message in, model reply decoded,
// extraction merged, completion recomputed, sanitized reply out.
type Engine struct {
	manager   *Manager
	templates TemplateSource
	chat      ChatProvider
	maxTurns  int
	logger    *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxTurns sets the history window sent to the chat provider.
func WithMaxTurns(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxTurns = n
		}
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a turn engine over the given session manager, template
// source, and chat provider.
func NewEngine(manager *Manager, templates TemplateSource, chat ChatProvider, opts ...EngineOption) *Engine {
	e := &Engine{
		manager:   manager,
		templates: templates,
		chat:      chat,
		maxTurns:  defaultMaxTurns,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TurnResult is what one successful interview turn returns to the caller.
type TurnResult struct {
	Reply      string         `json:"reply"`
	Completion float64        `json:"completion"`
	Missing    []string       `json:"missing_required"`
	IsComplete bool           `json:"is_complete"`
	Phase      template.Phase `json:"phase"`
}

// Converse runs one interview turn. The user message is appended before the
// provider call, so a failed call leaves a retryable transcript: resending
// only re-runs the assistant step. Nothing is merged and no assistant
// message is recorded when the provider call fails or ctx is cancelled.
func (e *Engine) Converse(ctx context.Context, id, userText string) (*TurnResult, error) {
	view, err := e.manager.GetSession(id)
	if err != nil {
		return nil, err
	}
	if err := e.manager.AddUserMessage(id, userText); err != nil {
		return nil, err
	}

	t := e.templates.GetOrDefault(view.TemplateName)

	// The system prompt is rebuilt every turn: the missing-section list
	// shrinks as data accumulates.
	system := prompts.Interview(t, view.Phase, view.ExtractedData, view.ProjectContext)
	turns := append(view.Transcript, Message{Role: RoleUser, Content: userText})

	raw, err := e.chat.Send(ctx, system, turns, e.maxTurns)
	if err != nil {
		e.logger.Error("chat provider call failed", "session_id", id, "error", err)
		return nil, &UpstreamError{Err: err}
	}

	res := protocol.Decode(raw)
	if err := e.manager.AddAssistantMessage(id, res.Reply); err != nil {
		return nil, err
	}

	outcome, err := e.manager.ApplyExtraction(id, res, t)
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		Reply:      res.Reply,
		Completion: outcome.Completion,
		Missing:    outcome.Missing,
		IsComplete: outcome.IsComplete,
		Phase:      outcome.Phase,
	}, nil
}
