package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vytor/starcards/internal/logger"
	"github.com/vytor/starcards/internal/models"
	"github.com/vytor/starcards/internal/repository"
)

const (
	// ElapsedCapMs bounds the time credited for a single advance.
	ElapsedCapMs int64 = 180000
	// MaxLogEntries bounds each student's study log; oldest entries go first.
	MaxLogEntries = 5000
)

var (
	ErrEmptyName    = errors.New("student name is required")
	ErrEmptyCardID  = errors.New("card id is required")
	ErrBadOutcome   = errors.New("outcome must be got, close, miss or skip")
	ErrBadQuizLevel = errors.New("quiz level must be correct, almost or incorrect")
)

// EventPusher delivers study events to the remote aggregator. Push must not
// block the caller.
type EventPusher interface {
	Push(ctx context.Context, ev models.SyncEvent)
}

// BadgeChecker is consulted after every study advance.
type BadgeChecker interface {
	Check(ctx context.Context, student string, record *models.StudentRecord) (*models.Badge, error)
	Reset(ctx context.Context) error
}

// Advance describes one step past a card in study mode.
type Advance struct {
	Student   string
	CardID    string
	Unit      int
	ElapsedMs int64
	Outcome   models.Outcome
	Language  models.Language
}

// AdvanceResult reports what an advance changed.
type AdvanceResult struct {
	Student string
	Stat    models.CardStat
	AddedMs int64
	Badge   *models.Badge
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPusher sets the sync side effect of study advances.
func WithPusher(p EventPusher) Option {
	return func(l *Ledger) { l.pusher = p }
}

// WithBadges sets the badge side effect of study advances.
func WithBadges(b BadgeChecker) Option {
	return func(l *Ledger) { l.badges = b }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Ledger is the single write path for student progress. Every mutation is
// persisted to the document repository before it returns.
type Ledger struct {
	mu     sync.Mutex
	repo   repository.DocumentRepository
	doc    *models.LedgerDocument
	recent []string
	pusher EventPusher
	badges BadgeChecker
	now    func() time.Time
	log    *logger.Logger
}

// Open loads the persisted ledger. Missing or corrupt storage yields an empty
// ledger and a warning; Open never fails.
func Open(ctx context.Context, repo repository.DocumentRepository, opts ...Option) *Ledger {
	l := &Ledger{
		repo: repo,
		doc:  models.NewLedgerDocument(),
		now:  time.Now,
		log:  logger.Default().WithPrefix("ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.load(ctx)
	return l
}

func (l *Ledger) load(ctx context.Context) {
	body, err := l.repo.Get(ctx, repository.LedgerKey)
	switch {
	case err != nil:
		l.log.Warn("failed to read stored ledger, starting empty: %v", err)
	case body == nil:
		l.log.Debug("no stored ledger, starting empty")
	default:
		doc, err := decodeDocument(body, l.log)
		if err != nil {
			l.log.Warn("stored ledger is corrupt, starting empty: %v", err)
		} else {
			l.doc = doc
		}
	}

	body, err = l.repo.Get(ctx, repository.RecentNamesKey)
	if err != nil {
		l.log.Warn("failed to read recent names: %v", err)
		return
	}
	if body != nil {
		var names []string
		if err := json.Unmarshal(body, &names); err != nil {
			l.log.Warn("stored recent names are corrupt, ignoring: %v", err)
			return
		}
		for i := len(names) - 1; i >= 0; i-- {
			l.recent = touchRecent(l.recent, names[i])
		}
	}
	l.log.Info("ledger loaded: %d students", len(l.doc.Students))
}

// NormalizeName is the student identity key: trimmed, inner whitespace
// collapsed, lowercased.
func NormalizeName(name string) string {
	return strings.ToLower(DisplayName(name))
}

// DisplayName trims and collapses whitespace but keeps the spelling.
func DisplayName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// EnsureStudent creates the record for name when absent and persists it. The
// record keeps the latest display spelling. It returns the student key.
func (l *Ledger) EnsureStudent(ctx context.Context, name string) (string, error) {
	key := NormalizeName(name)
	if key == "" {
		return "", ErrEmptyName
	}
	display := DisplayName(name)

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.doc.Students[key]
	switch {
	case !ok:
		l.doc.Students[key] = models.NewStudentRecord(display)
		l.log.Info("student created: %s", key)
		l.persist(ctx)
	case rec.DisplayName != display:
		rec.DisplayName = display
		l.persist(ctx)
	}

	l.recent = touchRecent(l.recent, display)
	l.persistRecent(ctx)
	return key, nil
}

// record returns the record for key, creating it when absent. Caller holds mu.
func (l *Ledger) record(key, display string) *models.StudentRecord {
	rec, ok := l.doc.Students[key]
	if !ok {
		rec = models.NewStudentRecord(display)
		l.doc.Students[key] = rec
	}
	return rec
}

// ClampElapsed bounds a raw elapsed time to [0, ElapsedCapMs].
func ClampElapsed(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	if ms > ElapsedCapMs {
		return ElapsedCapMs
	}
	return ms
}

// RecordStudyAdvance credits one advance past a card. After persisting it
// pushes the event to the remote aggregator and then checks for a newly
// earned badge. Neither side effect can fail the call.
func (l *Ledger) RecordStudyAdvance(ctx context.Context, a Advance) (AdvanceResult, error) {
	key := NormalizeName(a.Student)
	if key == "" {
		return AdvanceResult{}, ErrEmptyName
	}
	if strings.TrimSpace(a.CardID) == "" {
		return AdvanceResult{}, ErrEmptyCardID
	}
	outcome, ok := models.ParseOutcome(string(a.Outcome))
	if !ok {
		return AdvanceResult{}, ErrBadOutcome
	}
	added := ClampElapsed(a.ElapsedMs)
	now := l.now()

	l.mu.Lock()
	rec := l.record(key, DisplayName(a.Student))
	stat, ok := rec.ByCard[a.CardID]
	if !ok || stat == nil {
		stat = &models.CardStat{}
		rec.ByCard[a.CardID] = stat
	}
	stat.Attempts++
	stat.TimeMs += added
	switch outcome {
	case models.OutcomeGot:
		stat.Got++
	case models.OutcomeClose:
		stat.Close++
	case models.OutcomeMiss:
		stat.Miss++
	}
	rec.Log = appendEvent(rec.Log, models.StudyEvent{
		At:        now,
		CardID:    a.CardID,
		ElapsedMs: added,
		Outcome:   outcome,
	})
	l.persist(ctx)

	result := AdvanceResult{Student: key, Stat: *stat, AddedMs: added}
	snapshot := rec.Clone()
	l.mu.Unlock()

	if l.pusher != nil {
		l.pusher.Push(ctx, models.SyncEvent{
			Student: snapshot.DisplayName,
			CardID:  a.CardID,
			Unit:    a.Unit,
			Rating:  outcome,
			DtMs:    added,
			Lang:    a.Language,
			At:      now,
		})
	}
	if l.badges != nil {
		badge, err := l.badges.Check(ctx, key, snapshot)
		if err != nil {
			l.log.Warn("badge check failed for %s: %v", key, err)
		}
		result.Badge = badge
	}
	return result, nil
}

// appendEvent appends ev and evicts the oldest entries past MaxLogEntries.
func appendEvent(log []models.StudyEvent, ev models.StudyEvent) []models.StudyEvent {
	log = append(log, ev)
	if over := len(log) - MaxLogEntries; over > 0 {
		log = append(log[:0:0], log[over:]...)
	}
	return log
}

// RecordQuizResult records a graded quiz verdict. LastLevel always reflects
// the latest verdict.
func (l *Ledger) RecordQuizResult(ctx context.Context, name, cardID string, level models.QuizLevel) (models.QuizStat, error) {
	key := NormalizeName(name)
	if key == "" {
		return models.QuizStat{}, ErrEmptyName
	}
	if strings.TrimSpace(cardID) == "" {
		return models.QuizStat{}, ErrEmptyCardID
	}
	if !level.Valid() {
		return models.QuizStat{}, ErrBadQuizLevel
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.record(key, DisplayName(name))
	q, ok := rec.QuizByCard[cardID]
	if !ok || q == nil {
		q = &models.QuizStat{}
		rec.QuizByCard[cardID] = q
	}
	q.Attempts++
	switch level {
	case models.QuizCorrect:
		q.Correct++
	case models.QuizAlmost:
		q.Almost++
	case models.QuizIncorrect:
		q.Incorrect++
	}
	q.LastLevel = level
	q.LastAt = &now
	l.persist(ctx)

	out := *q
	at := now
	out.LastAt = &at
	return out, nil
}

// Student returns a copy of the record for name.
func (l *Ledger) Student(name string) (*models.StudentRecord, bool) {
	key := NormalizeName(name)
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.doc.Students[key]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Students returns the display names of all students, sorted
// case-insensitively.
func (l *Ledger) Students() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := sortedKeys(l.doc.Students)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, l.doc.Students[k].DisplayName)
	}
	return out
}

// Snapshot returns a deep copy of the whole ledger keyed by student key.
func (l *Ledger) Snapshot() map[string]*models.StudentRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]*models.StudentRecord, len(l.doc.Students))
	for k, rec := range l.doc.Students {
		out[k] = rec.Clone()
	}
	return out
}

// RecentNames returns the name suggestions, most recent first.
func (l *Ledger) RecentNames() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.recent...)
}

// Now returns the ledger clock.
func (l *Ledger) Now() time.Time {
	return l.now()
}

// Export serializes the full ledger. Output is deterministic for a given
// state.
func (l *Ledger) Export(ctx context.Context) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return json.MarshalIndent(l.doc, "", "  ")
}

// Import replaces the whole ledger with data. A document without an object
// "students" member is rejected and the current ledger is left untouched.
// It returns the number of students imported.
func (l *Ledger) Import(ctx context.Context, data []byte) (int, error) {
	if err := validateShape(data); err != nil {
		return 0, err
	}
	doc, err := decodeDocument(data, l.log)
	if err != nil {
		return 0, errors.Join(ErrInvalidDocument, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.doc = doc
	l.persist(ctx)
	l.log.Info("ledger imported: %d students", len(doc.Students))
	return len(doc.Students), nil
}

// Reset wipes every student and the celebrated-badge set.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	l.doc = models.NewLedgerDocument()
	l.persist(ctx)
	l.mu.Unlock()
	l.log.Info("ledger reset")

	if l.badges != nil {
		if err := l.badges.Reset(ctx); err != nil {
			return err
		}
	}
	return nil
}

// persist writes the ledger document. Failures are logged only. Caller holds mu.
func (l *Ledger) persist(ctx context.Context) {
	body, err := json.Marshal(l.doc)
	if err != nil {
		l.log.Error("failed to encode ledger: %v", err)
		return
	}
	if err := l.repo.Put(ctx, repository.LedgerKey, body); err != nil {
		l.log.Warn("failed to persist ledger: %v", err)
	}
}

func (l *Ledger) persistRecent(ctx context.Context) {
	body, err := json.Marshal(l.recent)
	if err != nil {
		l.log.Error("failed to encode recent names: %v", err)
		return
	}
	if err := l.repo.Put(ctx, repository.RecentNamesKey, body); err != nil {
		l.log.Warn("failed to persist recent names: %v", err)
	}
}

func sortedKeys(m map[string]*models.StudentRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
