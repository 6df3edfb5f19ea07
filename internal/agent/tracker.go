package agent

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a delegated session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionError     SessionStatus = "error"
)

// ActionStatus is the lifecycle state of one tracked action.
type ActionStatus string

const (
	ActionRunning   ActionStatus = "running"
	ActionCompleted ActionStatus = "completed"
	ActionError     ActionStatus = "error"
)

// Action is one tool invocation in a session's timeline.
type Action struct {
	ID          string
	ToolName    string
	DisplayText string
	Timestamp   time.Time
	Status      ActionStatus
}

// Session is the observable record of a delegated agent run.
type Session struct {
	ID        string
	Objective string
	Actions   []Action
	Status    SessionStatus
	StartTime time.Time
}

// Tracker is an observable registry of in-flight delegated sessions. Every
// mutation notifies subscribers with the affected session id so a renderer
// re-polls only what changed. Sessions live until explicitly cleared.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	subMu sync.Mutex
	subs  map[int]chan string
	next  int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*Session),
		subs:     make(map[int]chan string),
	}
}

// Subscribe returns a channel of updated session ids and a cancel function.
func (t *Tracker) Subscribe() (<-chan string, func()) {
	t.subMu.Lock()
	defer t.subMu.Unlock()

	id := t.next
	t.next++
	ch := make(chan string, 64)
	t.subs[id] = ch

	cancel := func() {
		t.subMu.Lock()
		defer t.subMu.Unlock()
		if c, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (t *Tracker) notify(sessionID string) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- sessionID:
		default:
		}
	}
}

// CreateSession registers a new running session and returns its id.
func (t *Tracker) CreateSession(objective string) string {
	id := uuid.NewString()

	t.mu.Lock()
	t.sessions[id] = &Session{
		ID:        id,
		Objective: objective,
		Status:    SessionRunning,
		StartTime: time.Now(),
	}
	t.mu.Unlock()

	t.notify(id)
	return id
}

// AddAction appends a running action to the session's timeline and returns
// the action id. Unknown sessions are ignored.
func (t *Tracker) AddAction(sessionID, toolName string, args map[string]any) string {
	actionID := uuid.NewString()

	t.mu.Lock()
	session, ok := t.sessions[sessionID]
	if !ok {
		t.mu.Unlock()
		return ""
	}
	session.Actions = append(session.Actions, Action{
		ID:          actionID,
		ToolName:    toolName,
		DisplayText: displayText(toolName, args),
		Timestamp:   time.Now(),
		Status:      ActionRunning,
	})
	t.mu.Unlock()

	t.notify(sessionID)
	return actionID
}

// CompleteAction transitions an action to completed or error. Statuses
// never revert.
func (t *Tracker) CompleteAction(sessionID, actionID string, success bool) {
	t.mu.Lock()
	session, ok := t.sessions[sessionID]
	if ok {
		for i := range session.Actions {
			if session.Actions[i].ID == actionID && session.Actions[i].Status == ActionRunning {
				if success {
					session.Actions[i].Status = ActionCompleted
				} else {
					session.Actions[i].Status = ActionError
				}
				break
			}
		}
	}
	t.mu.Unlock()

	if ok {
		t.notify(sessionID)
	}
}

// CompleteSession transitions a session to its terminal status.
func (t *Tracker) CompleteSession(sessionID string, success bool) {
	t.mu.Lock()
	session, ok := t.sessions[sessionID]
	if ok && session.Status == SessionRunning {
		if success {
			session.Status = SessionCompleted
		} else {
			session.Status = SessionError
		}
	}
	t.mu.Unlock()

	if ok {
		t.notify(sessionID)
	}
}

// GetSession returns a copy of the session, so callers can read it without
// holding the tracker's lock.
func (t *Tracker) GetSession(sessionID string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	session, ok := t.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return copySession(session), true
}

// GetAllSessions returns copies of all sessions, oldest first.
func (t *Tracker) GetAllSessions() []Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Session, 0, len(t.sessions))
	for _, session := range t.sessions {
		out = append(out, copySession(session))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// ClearSession removes a session from the registry.
func (t *Tracker) ClearSession(sessionID string) {
	t.mu.Lock()
	_, ok := t.sessions[sessionID]
	delete(t.sessions, sessionID)
	t.mu.Unlock()

	if ok {
		t.notify(sessionID)
	}
}

func copySession(s *Session) Session {
	cp := *s
	cp.Actions = make([]Action, len(s.Actions))
	copy(cp.Actions, s.Actions)
	return cp
}

// displayText derives a short human-readable summary for an action. This is
// purely cosmetic and never feeds back into agent logic.
func displayText(toolName string, args map[string]any) string {
	const maxLen = 50

	var detail string
	switch toolName {
	case "bash":
		detail, _ = args["command"].(string)
	case "read", "write", "edit":
		if p, ok := args["file_path"].(string); ok {
			detail = filepath.Base(p)
		}
	case "glob", "grep":
		detail, _ = args["pattern"].(string)
	case "web_search":
		detail, _ = args["query"].(string)
	case "load_skill":
		detail, _ = args["name"].(string)
	case "sub_agent":
		detail, _ = args["objective"].(string)
	}

	detail = strings.TrimSpace(strings.ReplaceAll(detail, "\n", " "))
	if detail == "" {
		return toolName
	}
	if len(detail) > maxLen {
		detail = detail[:maxLen] + "…"
	}
	return toolName + ": " + detail
}
