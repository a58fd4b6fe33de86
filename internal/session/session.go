package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vytor/starcards/internal/models"
	"github.com/vytor/starcards/internal/queue"
)

// Session is one study run: who is studying, what, and where they are in the
// queue. Nothing about a run lives outside its Session.
type Session struct {
	ID          string          `json:"id"`
	StudentKey  string          `json:"studentKey"`
	DisplayName string          `json:"student"`
	Units       []int           `json:"units"`
	Language    models.Language `json:"language"`
	QuizMode    bool            `json:"quizMode"`
	Options     queue.Options   `json:"options"`
	CreatedAt   time.Time       `json:"createdAt"`

	mu        sync.Mutex
	cursor    *queue.Cursor
	cardStart time.Time
}

// New creates a session positioned on the first card of cards. The clock for
// the first card starts at now.
func New(studentKey, displayName string, units []int, lang models.Language, quiz bool, opts queue.Options, cards []models.Card, now time.Time) *Session {
	return &Session{
		ID:          uuid.NewString(),
		StudentKey:  studentKey,
		DisplayName: displayName,
		Units:       append([]int(nil), units...),
		Language:    lang,
		QuizMode:    quiz,
		Options:     opts,
		CreatedAt:   now,
		cursor:      queue.NewCursor(cards),
		cardStart:   now,
	}
}

// Current returns the card on screen with its 1-based position and queue
// length. ok is false for an empty queue.
func (s *Session) Current() (card models.Card, pos, total int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok = s.cursor.Current()
	pos, total = s.cursor.Position()
	return card, pos, total, ok
}

// Elapsed is the time spent on the current card as of now.
func (s *Session) Elapsed(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.cardStart)
}

// Step moves to the next card and restarts the card clock. It returns the
// card that was left and the time spent on it.
func (s *Session) Step(now time.Time) (left models.Card, spent time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	left, ok = s.cursor.Current()
	if !ok {
		return models.Card{}, 0, false
	}
	spent = now.Sub(s.cardStart)
	s.cursor.Advance()
	s.cardStart = now
	return left, spent, true
}

// Registry holds the open sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Session{}}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deletes a session and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
