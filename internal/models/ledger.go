package models

import (
	"strings"
	"time"
)

// Outcome is what the student did when advancing past a card in study mode.
type Outcome string

const (
	OutcomeGot   Outcome = "got"
	OutcomeClose Outcome = "close"
	OutcomeMiss  Outcome = "miss"
	OutcomeSkip  Outcome = "skip"
)

// ParseOutcome accepts the four outcome names, case-insensitively.
func ParseOutcome(s string) (Outcome, bool) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomeGot, OutcomeClose, OutcomeMiss, OutcomeSkip:
		return o, true
	default:
		return "", false
	}
}

// IsRating reports whether the outcome is a self-rating rather than a skip.
func (o Outcome) IsRating() bool {
	return o == OutcomeGot || o == OutcomeClose || o == OutcomeMiss
}

// QuizLevel is an automatically graded verdict.
type QuizLevel string

const (
	QuizCorrect   QuizLevel = "correct"
	QuizAlmost    QuizLevel = "almost"
	QuizIncorrect QuizLevel = "incorrect"
)

// Valid reports whether l is one of the three verdicts.
func (l QuizLevel) Valid() bool {
	return l == QuizCorrect || l == QuizAlmost || l == QuizIncorrect
}

// CardStatus is the dashboard classification of a card's study counters.
type CardStatus string

const (
	StatusNotYet   CardStatus = "not_yet"
	StatusPractice CardStatus = "practice"
	StatusClose    CardStatus = "close"
	StatusGot      CardStatus = "got"
)

// CardStat accumulates study-mode results for one card.
// Attempts counts skips as well, so Attempts >= Got+Close+Miss.
type CardStat struct {
	Got      int   `json:"got"`
	Close    int   `json:"close"`
	Miss     int   `json:"miss"`
	Attempts int   `json:"attempts"`
	TimeMs   int64 `json:"timeMs"`
}

// NeedsPractice is true when close and miss ratings outnumber got ratings.
func (s CardStat) NeedsPractice() bool {
	return s.Close+s.Miss > s.Got
}

// Known is true when got ratings outnumber close and miss together.
func (s CardStat) Known() bool {
	return s.Got > s.Close+s.Miss
}

// Status classifies the card for dashboard coloring.
func (s CardStat) Status() CardStatus {
	switch {
	case s.Attempts == 0:
		return StatusNotYet
	case s.Miss > s.Close && s.Miss > s.Got:
		return StatusPractice
	case s.Close > s.Got:
		return StatusClose
	case s.Got > 0:
		return StatusGot
	default:
		return StatusNotYet
	}
}

// AverageMs is the mean time per attempt.
func (s CardStat) AverageMs() int64 {
	if s.Attempts == 0 {
		return 0
	}
	return s.TimeMs / int64(s.Attempts)
}

// QuizStat accumulates quiz-mode verdicts for one card. LastLevel is the most
// recent verdict, not the best one.
type QuizStat struct {
	Correct   int        `json:"correct"`
	Almost    int        `json:"almost"`
	Incorrect int        `json:"incorrect"`
	Attempts  int        `json:"attempts"`
	LastLevel QuizLevel  `json:"lastLevel,omitempty"`
	LastAt    *time.Time `json:"lastAt,omitempty"`
}

// StudyEvent is one entry of a student's bounded study log.
type StudyEvent struct {
	At        time.Time `json:"ts"`
	CardID    string    `json:"cardId"`
	ElapsedMs int64     `json:"dtMs"`
	Outcome   Outcome   `json:"rating"`
}

// StudentRecord is everything the ledger knows about one student.
type StudentRecord struct {
	DisplayName string               `json:"displayName,omitempty"`
	ByCard      map[string]*CardStat `json:"byCard"`
	QuizByCard  map[string]*QuizStat `json:"quizByCard"`
	Log         []StudyEvent         `json:"log"`
}

// NewStudentRecord returns an empty record for displayName.
func NewStudentRecord(displayName string) *StudentRecord {
	return &StudentRecord{
		DisplayName: displayName,
		ByCard:      map[string]*CardStat{},
		QuizByCard:  map[string]*QuizStat{},
		Log:         []StudyEvent{},
	}
}

// Clone returns a deep copy.
func (r *StudentRecord) Clone() *StudentRecord {
	out := NewStudentRecord(r.DisplayName)
	for id, s := range r.ByCard {
		if s == nil {
			continue
		}
		cp := *s
		out.ByCard[id] = &cp
	}
	for id, q := range r.QuizByCard {
		if q == nil {
			continue
		}
		cp := *q
		if q.LastAt != nil {
			at := *q.LastAt
			cp.LastAt = &at
		}
		out.QuizByCard[id] = &cp
	}
	out.Log = append(out.Log, r.Log...)
	return out
}

// Stat returns the study stat for cardID, or a zero value.
func (r *StudentRecord) Stat(cardID string) CardStat {
	if r == nil {
		return CardStat{}
	}
	if s, ok := r.ByCard[cardID]; ok && s != nil {
		return *s
	}
	return CardStat{}
}

// TotalTimeMs sums study time across all cards.
func (r *StudentRecord) TotalTimeMs() int64 {
	var total int64
	for _, s := range r.ByCard {
		if s != nil {
			total += s.TimeMs
		}
	}
	return total
}

// CardsAttempted counts distinct cards with at least one attempt.
func (r *StudentRecord) CardsAttempted() int {
	n := 0
	for _, s := range r.ByCard {
		if s != nil && s.Attempts > 0 {
			n++
		}
	}
	return n
}

// TimeSinceMs sums logged study time at or after since.
func (r *StudentRecord) TimeSinceMs(since time.Time) int64 {
	var total int64
	for _, ev := range r.Log {
		if !ev.At.Before(since) {
			total += ev.ElapsedMs
		}
	}
	return total
}

// LedgerDocument is the persisted and exported form of the ledger.
type LedgerDocument struct {
	Students map[string]*StudentRecord `json:"students"`
}

// NewLedgerDocument returns an empty ledger document.
func NewLedgerDocument() *LedgerDocument {
	return &LedgerDocument{Students: map[string]*StudentRecord{}}
}

// WeekWindow is the rolling window behind "time this week".
const WeekWindow = 7 * 24 * time.Hour

// Totals derives the overlay figures from local data as of now.
func (r *StudentRecord) Totals(now time.Time) Totals {
	if r == nil {
		return Totals{}
	}
	return Totals{
		TimeEverMs:     r.TotalTimeMs(),
		TimeWeekMs:     r.TimeSinceMs(now.Add(-WeekWindow)),
		CardsAttempted: r.CardsAttempted(),
	}
}
