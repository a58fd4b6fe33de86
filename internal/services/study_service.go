package services

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/vytor/starcards/internal/catalog"
	"github.com/vytor/starcards/internal/errors"
	"github.com/vytor/starcards/internal/grading"
	"github.com/vytor/starcards/internal/ledger"
	"github.com/vytor/starcards/internal/logger"
	"github.com/vytor/starcards/internal/models"
	"github.com/vytor/starcards/internal/queue"
	"github.com/vytor/starcards/internal/session"
)

// StartRequest opens a study session. CardID, when set, starts a single-card
// session on that card and Units is ignored.
type StartRequest struct {
	Student           string `json:"student"`
	Units             []int  `json:"units"`
	Language          string `json:"language"`
	Quiz              bool   `json:"quiz"`
	Shuffle           bool   `json:"shuffle"`
	OnlyNeedsPractice bool   `json:"onlyNeedsPractice"`
	CardID            string `json:"cardId,omitempty"`
}

// CardView is what the presentation layer shows for the current card.
type CardView struct {
	SessionID     string          `json:"sessionId"`
	Student       string          `json:"student"`
	Language      models.Language `json:"language"`
	QuizMode      bool            `json:"quizMode"`
	Empty         bool            `json:"empty"`
	Position      int             `json:"position"`
	Total         int             `json:"total"`
	CardID        string          `json:"cardId,omitempty"`
	Unit          int             `json:"unit,omitempty"`
	QuestionImage string          `json:"questionImage,omitempty"`
	AnswerImage   string          `json:"answerImage,omitempty"`
	QuestionText  string          `json:"questionText,omitempty"`
	AnswerText    string          `json:"answerText,omitempty"`
	ElapsedMs     int64           `json:"elapsedMs"`
}

// AdvanceView reports a recorded advance and the next card.
type AdvanceView struct {
	Stat    models.CardStat `json:"stat"`
	AddedMs int64           `json:"addedMs"`
	Badge   *models.Badge   `json:"badge,omitempty"`
	Next    CardView        `json:"next"`
}

// QuizView is the graded answer for the current card.
type QuizView struct {
	grading.Result
	CardID      string           `json:"cardId"`
	ModelAnswer string           `json:"modelAnswer,omitempty"`
	Quiz        *models.QuizStat `json:"quiz,omitempty"`
}

// StudyService drives study sessions.
type StudyService interface {
	Start(ctx context.Context, req StartRequest) (*CardView, error)
	Current(ctx context.Context, sessionID string) (*CardView, error)
	Advance(ctx context.Context, sessionID, outcome string) (*AdvanceView, error)
	Quiz(ctx context.Context, sessionID, answer string) (*QuizView, error)
	End(ctx context.Context, sessionID string) error
}

type studyService struct {
	catalog  *catalog.Catalog
	ledger   *ledger.Ledger
	sessions *session.Registry
	now      func() time.Time

	rngMu sync.Mutex
	rng   queue.Rand
}

// NewStudyService creates a StudyService. rng drives shuffling.
func NewStudyService(cat *catalog.Catalog, l *ledger.Ledger, sessions *session.Registry, rng queue.Rand) StudyService {
	if rng == nil {
		rng = queue.NewRand(0)
	}
	return &studyService{
		catalog:  cat,
		ledger:   l,
		sessions: sessions,
		now:      l.Now,
		rng:      rng,
	}
}

// Intn serializes access to the shared random source.
func (s *studyService) Intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

func (s *studyService) Start(ctx context.Context, req StartRequest) (*CardView, error) {
	log := logger.FromContext(ctx)

	if ledger.NormalizeName(req.Student) == "" {
		return nil, errors.NewValidationError("student", "enter your name to start")
	}

	var cards []models.Card
	units := req.Units
	opts := queue.Options{Shuffle: req.Shuffle, OnlyNeedsPractice: req.OnlyNeedsPractice}
	if id := strings.TrimSpace(req.CardID); id != "" {
		card, ok := s.catalog.Get(id)
		if !ok {
			return nil, errors.NewNotFoundError("card", id)
		}
		cards = []models.Card{card}
		units = []int{card.Unit}
	} else if len(units) == 0 {
		return nil, errors.NewValidationError("units", "select at least one unit")
	}

	key, err := s.ledger.EnsureStudent(ctx, req.Student)
	if err != nil {
		return nil, errors.NewValidationError("student", err.Error())
	}
	if cards == nil {
		record, _ := s.ledger.Student(key)
		cards = queue.Build(s.catalog.Sorted(), record, units, opts, s)
	}

	sess := session.New(key, ledger.DisplayName(req.Student), units, models.ParseLanguage(req.Language), req.Quiz, opts, cards, s.now())
	s.sessions.Add(sess)
	log.Info("study session started: session_id=%s, student=%s, cards=%d, active=%d", sess.ID, key, len(cards), s.sessions.Len())

	view := s.view(sess)
	return &view, nil
}

func (s *studyService) Current(ctx context.Context, sessionID string) (*CardView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	view := s.view(sess)
	return &view, nil
}

func (s *studyService) Advance(ctx context.Context, sessionID, outcome string) (*AdvanceView, error) {
	log := logger.FromContext(ctx)

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	o, ok := models.ParseOutcome(outcome)
	if !ok {
		return nil, errors.NewValidationError("outcome", "must be got, close, miss or skip")
	}

	card, spent, ok := sess.Step(s.now())
	if !ok {
		return nil, errors.NewBadRequestError("no cards to study in this session")
	}

	res, err := s.ledger.RecordStudyAdvance(ctx, ledger.Advance{
		Student:   sess.DisplayName,
		CardID:    card.ID,
		Unit:      card.Unit,
		ElapsedMs: spent.Milliseconds(),
		Outcome:   o,
		Language:  sess.Language,
	})
	if err != nil {
		if isUserError(err) {
			return nil, errors.NewBadRequestError(err.Error())
		}
		log.Error("failed to record advance: %v", err)
		return nil, errors.NewInternalError(err)
	}
	log.Debug("advance recorded: card_id=%s, outcome=%s, added_ms=%d", card.ID, o, res.AddedMs)

	return &AdvanceView{
		Stat:    res.Stat,
		AddedMs: res.AddedMs,
		Badge:   res.Badge,
		Next:    s.view(sess),
	}, nil
}

func (s *studyService) Quiz(ctx context.Context, sessionID, answer string) (*QuizView, error) {
	log := logger.FromContext(ctx)

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.QuizMode {
		return nil, errors.NewBadRequestError("session is not in quiz mode")
	}
	card, _, _, ok := sess.Current()
	if !ok {
		return nil, errors.NewBadRequestError("no cards to study in this session")
	}

	result := grading.Grade(card, answer, sess.Language)
	view := &QuizView{Result: result, CardID: card.ID, ModelAnswer: card.ModelAnswer(sess.Language)}
	if !result.Graded {
		log.Debug("card %s has nothing to grade against, verdict not recorded", card.ID)
		return view, nil
	}

	stat, err := s.ledger.RecordQuizResult(ctx, sess.DisplayName, card.ID, result.Level)
	if err != nil {
		if isUserError(err) {
			return nil, errors.NewBadRequestError(err.Error())
		}
		log.Error("failed to record quiz result: %v", err)
		return nil, errors.NewInternalError(err)
	}
	view.Quiz = &stat
	return view, nil
}

func (s *studyService) End(ctx context.Context, sessionID string) error {
	if !s.sessions.Remove(sessionID) {
		return errors.NewNotFoundError("session", sessionID)
	}
	logger.FromContext(ctx).Debug("study session ended: session_id=%s", sessionID)
	return nil
}

func (s *studyService) session(id string) (*session.Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, errors.NewNotFoundError("session", id)
	}
	return sess, nil
}

func (s *studyService) view(sess *session.Session) CardView {
	v := CardView{
		SessionID: sess.ID,
		Student:   sess.DisplayName,
		Language:  sess.Language,
		QuizMode:  sess.QuizMode,
	}
	card, pos, total, ok := sess.Current()
	if !ok {
		v.Empty = true
		return v
	}
	v.Position, v.Total = pos, total
	v.CardID = card.ID
	v.Unit = card.Unit
	v.QuestionImage = card.QuestionImage(sess.Language)
	v.AnswerImage = card.AnswerImage(sess.Language)
	v.QuestionText = card.QuestionFor(sess.Language)
	if !sess.QuizMode {
		v.AnswerText = card.ModelAnswer(sess.Language)
	}
	v.ElapsedMs = sess.Elapsed(s.now()).Milliseconds()
	return v
}

// isUserError reports whether err came from bad input rather than a fault.
func isUserError(err error) bool {
	return stderrors.Is(err, ledger.ErrEmptyName) ||
		stderrors.Is(err, ledger.ErrEmptyCardID) ||
		stderrors.Is(err, ledger.ErrBadOutcome) ||
		stderrors.Is(err, ledger.ErrBadQuizLevel)
}
