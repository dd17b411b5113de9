package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intakekit/intakekit/completion"
	"github.com/intakekit/intakekit/protocol"
	"github.com/intakekit/intakekit/template"
)

// ManagerConfig holds the session lifecycle timing knobs.
type ManagerConfig struct {
	// ExpiryWindow is how long a session may sit idle before the sweeper
	// marks it Expired.
	ExpiryWindow time.Duration

	// RemovalWindow is how long after its last activity an Expired or
	// Cancelled session is deleted from the store. It is shorter than the
	// expiry window and measured from lastActivity, not from the moment of
	// expiry, so a session that idled through most of the expiry window is
	// removed soon after expiring.
	RemovalWindow time.Duration

	// SweepInterval is how often the background sweeper runs.
	SweepInterval time.Duration
}

// DefaultManagerConfig returns the default lifecycle timing.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ExpiryWindow:  30 * time.Minute,
		RemovalWindow: 10 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Notifier receives session lifecycle events. Implementations must be fast
// or asynchronous; the manager calls them while serving requests.
type Notifier interface {
	SessionEvent(event string, summary Summary)
}

// Lifecycle event names passed to the Notifier.
const (
	EventCreated      = "created"
	EventPhaseChanged = "phase_changed"
	EventCancelled    = "cancelled"
	EventExpired      = "expired"
	EventPrdGenerated = "prd_generated"
	EventSubmitted    = "submitted"
)

// Manager exclusively owns the set of live sessions: creation, lifecycle
// transitions, deletion, and all field mutation. The store map is guarded by
// a read/write lock held only for map access; per-session work happens under
// each session's own lock, so contention on one session never blocks
// operations on another.
type Manager struct {
	cfg      ManagerConfig
	logger   *slog.Logger
	notifier Notifier
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithNotifier sets the lifecycle event notifier.
func WithNotifier(n Notifier) ManagerOption {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// SetNotifier replaces the lifecycle notifier. Call before Start; the
// manager does not synchronize access to it.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateSession allocates a new Active session in the first canonical phase.
func (m *Manager) CreateSession(templateName, projectContext string) (View, error) {
	if templateName == "" {
		templateName = template.DefaultTemplateName
	}

	id := uuid.New().String()
	now := m.now()
	s := &Session{
		id:             id,
		status:         StatusActive,
		phase:          template.PhaseOrder[0],
		extracted:      make(map[string]string),
		templateName:   templateName,
		projectContext: projectContext,
		createdAt:      now,
		lastActivity:   now,
	}

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		// uuid collisions are vanishingly unlikely; refuse rather than
		// silently overwrite a live session.
		return View{}, fmt.Errorf("session id collision: %s", id)
	}
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", id, "template", templateName)
	m.notify(EventCreated, s)
	return s.View(), nil
}

// GetSession returns the session and bumps its activity timestamp. This is
// the only read that counts as activity; probes go through TryGetSession.
func (m *Manager) GetSession(id string) (View, error) {
	s, ok := m.lookup(id)
	if !ok {
		return View{}, &NotFoundError{ID: id}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusExpired {
		return View{}, &ExpiredError{ID: id}
	}
	s.lastActivity = m.now()
	return s.viewLocked(), nil
}

// TryGetSession is a non-throwing probe that treats Expired as not-found and
// does not bump activity, so polling a finished session cannot resurrect its
// timeout window.
func (m *Manager) TryGetSession(id string) (View, bool) {
	s, ok := m.lookup(id)
	if !ok {
		return View{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusExpired {
		return View{}, false
	}
	return s.viewLocked(), true
}

// AddUserMessage appends a user message. Only Active sessions accept user
// messages.
func (m *Manager) AddUserMessage(id, text string) error {
	s, ok := m.lookup(id)
	if !ok {
		return &NotFoundError{ID: id}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return &NotActiveError{ID: id, Status: s.status}
	}
	now := m.now()
	s.transcript = append(s.transcript, Message{Role: RoleUser, Content: text, Timestamp: now})
	s.lastActivity = now
	return nil
}

// AddAssistantMessage appends an assistant message unconditionally: a reply
// that was already generated is recorded even if the session's status
// changed mid-turn.
func (m *Manager) AddAssistantMessage(id, text string) error {
	s, ok := m.lookup(id)
	if !ok {
		return &NotFoundError{ID: id}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := m.now()
	s.transcript = append(s.transcript, Message{Role: RoleAssistant, Content: text, Timestamp: now})
	s.lastActivity = now
	return nil
}

// ExtractionOutcome is the result of merging a decoded reply into a session.
type ExtractionOutcome struct {
	Completion float64
	Missing    []string
	IsComplete bool
	Phase      template.Phase
}

// ApplyExtraction merges decoded fragments into the session's accumulated
// data, applies any phase directive, and recomputes completion against the
// template.
func (m *Manager) ApplyExtraction(id string, res protocol.Result, t *template.Template) (ExtractionOutcome, error) {
	s, ok := m.lookup(id)
	if !ok {
		return ExtractionOutcome{}, &NotFoundError{ID: id}
	}

	s.mu.Lock()
	for _, f := range res.Fragments {
		s.extracted[f.Key] = mergeValue(s.extracted[f.Key], f.Content)
	}

	phaseChanged := false
	var from template.Phase
	if res.HasPhase && res.Phase != s.phase {
		from = s.phase
		s.phase = res.Phase
		phaseChanged = true
	}

	s.lastActivity = m.now()
	score, missing := completion.EstimateWithPhase(s.extracted, t, s.phase)
	outcome := ExtractionOutcome{
		Completion: score,
		Missing:    missing,
		IsComplete: completion.IsComplete(score, s.phase),
		Phase:      s.phase,
	}
	s.mu.Unlock()

	if phaseChanged {
		m.logger.Info("session phase transition",
			"session_id", id,
			"from", from,
			"to", outcome.Phase)
		m.notify(EventPhaseChanged, s)
	}
	return outcome, nil
}

// mergeValue folds an incoming fragment into the existing value for a key:
// new keys are set; a case-insensitive substring of the existing value is
// dropped (never shrink detail); a superset replaces; anything else is
// treated as additive and concatenated with a blank line.
func mergeValue(existing, incoming string) string {
	if existing == "" {
		return incoming
	}
	existingLower := strings.ToLower(existing)
	incomingLower := strings.ToLower(incoming)
	if strings.Contains(existingLower, incomingLower) {
		return existing
	}
	if strings.Contains(incomingLower, existingLower) {
		return incoming
	}
	return existing + "\n\n" + incoming
}

// CancelSession marks a session Cancelled. Cancelling an already-cancelled
// session is a no-op. Expired sessions cannot be cancelled.
func (m *Manager) CancelSession(id string) error {
	s, ok := m.lookup(id)
	if !ok {
		return &NotFoundError{ID: id}
	}

	s.mu.Lock()
	if s.status == StatusExpired {
		s.mu.Unlock()
		return &ExpiredError{ID: id}
	}
	already := s.status == StatusCancelled
	s.status = StatusCancelled
	s.lastActivity = m.now()
	s.mu.Unlock()

	if !already {
		m.logger.Info("session cancelled", "session_id", id)
		m.notify(EventCancelled, s)
	}
	return nil
}

// MarkPrdGenerated records that a document was generated from the session.
// The status overwrite is unconditional; callers flag the milestone after
// the fact.
func (m *Manager) MarkPrdGenerated(id string) error {
	return m.mark(id, StatusPrdGenerated, EventPrdGenerated)
}

// MarkSubmittedToJira records that the session's document was submitted to
// the issue tracker.
func (m *Manager) MarkSubmittedToJira(id string) error {
	return m.mark(id, StatusSubmittedToJira, EventSubmitted)
}

func (m *Manager) mark(id string, status Status, event string) error {
	s, ok := m.lookup(id)
	if !ok {
		return &NotFoundError{ID: id}
	}
	s.mu.Lock()
	s.status = status
	s.lastActivity = m.now()
	s.mu.Unlock()

	m.logger.Info("session milestone", "session_id", id, "status", status)
	m.notify(event, s)
	return nil
}

// ListActive returns summaries of Active sessions, most recently active
// first.
func (m *Manager) ListActive() []Summary {
	snapshot := m.snapshot()

	summaries := make([]Summary, 0, len(snapshot))
	for _, s := range snapshot {
		s.mu.Lock()
		if s.status == StatusActive {
			summaries = append(summaries, s.summaryLocked())
		}
		s.mu.Unlock()
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActivity.After(summaries[j].LastActivity)
	})
	return summaries
}

// Len returns the number of sessions in the store, regardless of status.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Start runs the background sweeper until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// Sweep runs one pass of timeout handling: idle Active sessions are marked
// Expired, and sessions already Expired or Cancelled whose last activity
// predates the removal window are deleted. A session expired in this pass is
// never removed in the same pass, so it stays inspectable for at least one
// sweep interval.
func (m *Manager) Sweep() {
	now := m.now()
	snapshot := m.snapshot()

	var remove []string
	for id, s := range snapshot {
		s.mu.Lock()
		idle := now.Sub(s.lastActivity)
		switch s.status {
		case StatusActive:
			if idle > m.cfg.ExpiryWindow {
				s.status = StatusExpired
				s.mu.Unlock()
				m.logger.Info("session expired", "session_id", id, "idle", idle)
				m.notify(EventExpired, s)
				continue
			}
		case StatusExpired, StatusCancelled:
			if idle > m.cfg.RemovalWindow {
				remove = append(remove, id)
			}
		}
		s.mu.Unlock()
	}

	if len(remove) > 0 {
		m.mu.Lock()
		for _, id := range remove {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
		m.logger.Info("sessions removed", "count", len(remove))
	}
}

// lookup fetches a session pointer under the store read lock.
func (m *Manager) lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// snapshot copies the current id set so iteration never holds the store lock
// across per-session work.
func (m *Manager) snapshot() map[string]*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Session, len(m.sessions))
	for id, s := range m.sessions {
		out[id] = s
	}
	return out
}

func (m *Manager) notify(event string, s *Session) {
	if m.notifier == nil {
		return
	}
	s.mu.Lock()
	summary := s.summaryLocked()
	s.mu.Unlock()
	m.notifier.SessionEvent(event, summary)
}
