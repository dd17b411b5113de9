package conversation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intakekit/intakekit/conversation"
	"github.com/intakekit/intakekit/template"
)

// scriptedChat returns canned replies and records what it was sent.
type scriptedChat struct {
	replies []string
	err     error

	calls        int
	lastSystem   string
	lastTurns    []conversation.Message
	lastMaxTurns int
}

func (s *scriptedChat) Send(_ context.Context, systemPrompt string, turns []conversation.Message, maxTurns int) (string, error) {
	s.calls++
	s.lastSystem = systemPrompt
	s.lastTurns = turns
	s.lastMaxTurns = maxTurns
	if s.err != nil {
		return "", s.err
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

type staticTemplates struct {
	t *template.Template
}

func (s staticTemplates) GetOrDefault(string) *template.Template {
	return s.t
}

func newTestEngine(t *testing.T, chat conversation.ChatProvider) (*conversation.Engine, *conversation.Manager) {
	t.Helper()
	m := conversation.NewManager(testConfig())
	e := conversation.NewEngine(m, staticTemplates{t: template.DefaultTemplate()}, chat)
	return e, m
}

func TestConverse_FullTurn(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		"Great, I captured the title.\n" +
			"---EXTRACTED---\n[title]\nInvoice Portal\n[/title]\n---/EXTRACTED---\n" +
			"---PHASE:Requirements---",
	}}
	e, m := newTestEngine(t, chat)

	created, err := m.CreateSession("", "fintech migration project")
	require.NoError(t, err)

	result, err := e.Converse(context.Background(), created.ID, "We want an invoice portal.")
	require.NoError(t, err)

	assert.Equal(t, "Great, I captured the title.", result.Reply)
	assert.Equal(t, template.PhaseRequirements, result.Phase)
	assert.Greater(t, result.Completion, 0.0)
	assert.NotContains(t, result.Reply, "EXTRACTED")

	// The system prompt carries the project context and the key catalog,
	// and the user turn reached the provider.
	assert.Contains(t, chat.lastSystem, "fintech migration project")
	assert.Contains(t, chat.lastSystem, "problem_statement")
	require.Len(t, chat.lastTurns, 1)
	assert.Equal(t, "We want an invoice portal.", chat.lastTurns[0].Content)

	view, ok := m.TryGetSession(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Invoice Portal", view.ExtractedData["title"])
	assert.Equal(t, template.PhaseRequirements, view.Phase)
	require.Len(t, view.Transcript, 2)
	assert.Equal(t, conversation.RoleAssistant, view.Transcript[1].Role)
	assert.NotContains(t, view.Transcript[1].Content, "---EXTRACTED---")
}

func TestConverse_SystemPromptShrinksAsDataAccumulates(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		"noted\n---EXTRACTED---\n[title]\nX\n[/title]\n---/EXTRACTED---",
		"noted again",
	}}
	e, m := newTestEngine(t, chat)
	created, err := m.CreateSession("", "")
	require.NoError(t, err)

	_, err = e.Converse(context.Background(), created.ID, "turn one")
	require.NoError(t, err)
	firstPrompt := chat.lastSystem

	_, err = e.Converse(context.Background(), created.ID, "turn two")
	require.NoError(t, err)
	secondPrompt := chat.lastSystem

	assert.Contains(t, firstPrompt, "- Title\n")
	assert.NotContains(t, secondPrompt, "- Title\n")
}

func TestConverse_UpstreamFailureLeavesRetryableState(t *testing.T) {
	chat := &scriptedChat{err: errors.New("backend on fire")}
	e, m := newTestEngine(t, chat)

	created, err := m.CreateSession("", "")
	require.NoError(t, err)

	_, err = e.Converse(context.Background(), created.ID, "hello?")
	require.Error(t, err)
	assert.True(t, conversation.IsUpstream(err))

	// Session stays Active, nothing merged, no assistant message; the
	// user's message is kept so the turn is retryable.
	view, ok := m.TryGetSession(created.ID)
	require.True(t, ok)
	assert.Equal(t, conversation.StatusActive, view.Status)
	assert.Empty(t, view.ExtractedData)
	require.Len(t, view.Transcript, 1)
	assert.Equal(t, conversation.RoleUser, view.Transcript[0].Role)
}

func TestConverse_CancelledContextAbortsBeforeMerge(t *testing.T) {
	chat := &scriptedChat{err: context.Canceled}
	e, m := newTestEngine(t, chat)

	created, err := m.CreateSession("", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Converse(ctx, created.ID, "never mind")
	require.Error(t, err)

	view, ok := m.TryGetSession(created.ID)
	require.True(t, ok)
	assert.Empty(t, view.ExtractedData)
}

func TestConverse_RejectedOnNonActiveSession(t *testing.T) {
	chat := &scriptedChat{replies: []string{"hi"}}
	e, m := newTestEngine(t, chat)

	created, err := m.CreateSession("", "")
	require.NoError(t, err)
	require.NoError(t, m.CancelSession(created.ID))

	_, err = e.Converse(context.Background(), created.ID, "anyone?")
	assert.True(t, conversation.IsNotActive(err))
	assert.Equal(t, 0, chat.calls)
}

func TestConverse_UnknownSession(t *testing.T) {
	e, _ := newTestEngine(t, &scriptedChat{replies: []string{"hi"}})
	_, err := e.Converse(context.Background(), "missing", "hello")
	assert.True(t, conversation.IsNotFound(err))
}

func TestConverse_MalformedMarkersDegradeGracefully(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		"Here you go\n---EXTRACTED---\n[title]\nbroken, never closed",
	}}
	e, m := newTestEngine(t, chat)
	created, err := m.CreateSession("", "")
	require.NoError(t, err)

	result, err := e.Converse(context.Background(), created.ID, "ok")
	require.NoError(t, err)

	assert.Equal(t, "Here you go", result.Reply)
	assert.False(t, strings.Contains(result.Reply, "EXTRACTED"))

	view, ok := m.TryGetSession(created.ID)
	require.True(t, ok)
	assert.Empty(t, view.ExtractedData)
}
