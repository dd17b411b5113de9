// Package conversation owns the interview session state machine: the session
// store and lifecycle, transcript and extracted-data mutation, and the
// per-turn orchestration against the chat provider.
package conversation

import (
	"sync"
	"time"

	"github.com/intakekit/intakekit/template"
)

// Status is a session's lifecycle state.
type Status string

// Session lifecycle states. Only Active sessions accept new user messages.
// None of the other states ever transitions back to Active.
const (
	StatusActive           Status = "active"
	StatusCancelled        Status = "cancelled"
	StatusExpired          Status = "expired"
	StatusPrdGenerated     Status = "prd_generated"
	StatusSubmittedToJira  Status = "submitted_to_jira"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry. The transcript is append-only.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one interview's accumulated state. All mutable fields are
// guarded by mu; the Manager is the only component that creates, transitions,
// or deletes sessions, and every multi-field mutation happens under the
// session's own lock so a cancel racing a chat completion cannot corrupt it.
type Session struct {
	mu sync.Mutex

	id             string
	status         Status
	phase          template.Phase
	transcript     []Message
	extracted      map[string]string
	templateName   string
	projectContext string
	createdAt      time.Time
	lastActivity   time.Time
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// View is an immutable copy of a session's state, safe to read and serialize
// without holding the session lock.
type View struct {
	ID             string            `json:"id"`
	Status         Status            `json:"status"`
	Phase          template.Phase    `json:"phase"`
	Transcript     []Message         `json:"transcript"`
	ExtractedData  map[string]string `json:"extracted_data"`
	TemplateName   string            `json:"template"`
	ProjectContext string            `json:"project_context,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastActivity   time.Time         `json:"last_activity"`
}

// View snapshots the session under its lock.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	transcript := make([]Message, len(s.transcript))
	copy(transcript, s.transcript)
	extracted := make(map[string]string, len(s.extracted))
	for k, v := range s.extracted {
		extracted[k] = v
	}
	return View{
		ID:             s.id,
		Status:         s.status,
		Phase:          s.phase,
		Transcript:     transcript,
		ExtractedData:  extracted,
		TemplateName:   s.templateName,
		ProjectContext: s.projectContext,
		CreatedAt:      s.createdAt,
		LastActivity:   s.lastActivity,
	}
}

// Summary is the list-view projection of a session.
type Summary struct {
	ID           string         `json:"id"`
	Status       Status         `json:"status"`
	Phase        template.Phase `json:"phase"`
	TemplateName string         `json:"template"`
	Messages     int            `json:"messages"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
}

func (s *Session) summaryLocked() Summary {
	return Summary{
		ID:           s.id,
		Status:       s.status,
		Phase:        s.phase,
		TemplateName: s.templateName,
		Messages:     len(s.transcript),
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
	}
}
