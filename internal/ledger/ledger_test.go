package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/starcards/internal/ledger"
	"github.com/vytor/starcards/internal/models"
	"github.com/vytor/starcards/internal/repository"
	"github.com/vytor/starcards/internal/repository/sqlite"
	"github.com/vytor/starcards/internal/testutil"
	"github.com/vytor/starcards/internal/testutil/mocks"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	now := t0
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

type sideEffects struct {
	calls  []string
	events []models.SyncEvent
	badge  *models.Badge
	resets int
}

func (s *sideEffects) Push(_ context.Context, ev models.SyncEvent) {
	s.calls = append(s.calls, "push")
	s.events = append(s.events, ev)
}

func (s *sideEffects) Check(_ context.Context, student string, _ *models.StudentRecord) (*models.Badge, error) {
	s.calls = append(s.calls, "badge:"+student)
	b := s.badge
	s.badge = nil
	return b, nil
}

func (s *sideEffects) Reset(context.Context) error {
	s.resets++
	return nil
}

func newRepo(t *testing.T) repository.DocumentRepository {
	db := testutil.NewTestDB(t)
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewDocumentRepository(db)
}

func advance(student, card string, ms int64, outcome models.Outcome) ledger.Advance {
	return ledger.Advance{Student: student, CardID: card, Unit: 1, ElapsedMs: ms, Outcome: outcome, Language: models.LanguageEnglish}
}

func TestOpen_ToleratesBadStorage(t *testing.T) {
	ctx := context.Background()
	cases := map[string][]byte{
		"absent":          nil,
		"not json":        []byte("{not json"),
		"students scalar": []byte(`{"students": 5}`),
		"array":           []byte(`[1,2,3]`),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			if body != nil {
				require.NoError(t, repo.Put(ctx, repository.LedgerKey, body))
			}
			l := ledger.Open(ctx, repo)
			assert.Empty(t, l.Students())

			out, err := l.Export(ctx)
			require.NoError(t, err)
			assert.JSONEq(t, `{"students":{}}`, string(out))
		})
	}
}

func TestOpen_ReadFailureStartsEmpty(t *testing.T) {
	repo := new(mocks.MockDocumentRepository)
	repo.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("disk gone"))

	l := ledger.Open(context.Background(), repo)
	assert.Empty(t, l.Students())
	assert.Empty(t, l.RecentNames())
}

func TestOpen_FillsMissingFields(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	legacy := `{"students":{"Ana":{"byCard":{"1a":{"got":2,"close":1,"miss":0,"attempts":1,"timeMs":5000}}},"Ben":null}}`
	require.NoError(t, repo.Put(ctx, repository.LedgerKey, []byte(legacy)))

	l := ledger.Open(ctx, repo)
	rec, ok := l.Student("ana")
	require.True(t, ok)
	assert.Equal(t, "Ana", rec.DisplayName)
	assert.NotNil(t, rec.QuizByCard)
	assert.NotNil(t, rec.Log)
	assert.Equal(t, 3, rec.ByCard["1a"].Attempts, "attempts never below the rated count")
	assert.Equal(t, []string{"Ana"}, l.Students(), "null record dropped")
}

func TestEnsureStudent_PersistsImmediately(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	l := ledger.Open(ctx, repo)

	key, err := l.EnsureStudent(ctx, "  Ana   Maria ")
	require.NoError(t, err)
	assert.Equal(t, "ana maria", key)

	reopened := ledger.Open(ctx, repo)
	rec, ok := reopened.Student("ANA MARIA")
	require.True(t, ok)
	assert.Equal(t, "Ana Maria", rec.DisplayName)
	assert.Empty(t, rec.ByCard)
}

func TestEnsureStudent_IsIdempotentAndKeepsLatestSpelling(t *testing.T) {
	ctx := context.Background()
	l := ledger.Open(ctx, newRepo(t))

	_, err := l.EnsureStudent(ctx, "ana")
	require.NoError(t, err)
	_, err = l.RecordStudyAdvance(ctx, advance("ana", "1a", 1000, models.OutcomeGot))
	require.NoError(t, err)
	_, err = l.EnsureStudent(ctx, "Ana")
	require.NoError(t, err)

	assert.Equal(t, []string{"Ana"}, l.Students())
	rec, _ := l.Student("ana")
	assert.Equal(t, 1, rec.ByCard["1a"].Got, "existing record is not replaced")
}

func TestEnsureStudent_RejectsEmptyName(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.MockDocumentRepository)
	repo.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	l := ledger.Open(ctx, repo)

	_, err := l.EnsureStudent(ctx, "   ")
	assert.ErrorIs(t, err, ledger.ErrEmptyName)
	assert.Empty(t, l.Students())
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordStudyAdvance_AttemptsEqualRatingsPlusSkips(t *testing.T) {
	ctx := context.Background()
	l := ledger.Open(ctx, newRepo(t))
	outcomes := []models.Outcome{models.OutcomeGot, models.OutcomeClose, models.OutcomeMiss, models.OutcomeSkip}

	rng := rand.New(rand.NewSource(3))
	skips := 0
	var last models.CardStat
	for i := 0; i < 200; i++ {
		o := outcomes[rng.Intn(len(outcomes))]
		if o == models.OutcomeSkip {
			skips++
		}
		res, err := l.RecordStudyAdvance(ctx, advance("Ana", "1a", 100, o))
		require.NoError(t, err)
		last = res.Stat
	}

	assert.Equal(t, 200, last.Attempts)
	assert.Equal(t, last.Attempts, last.Got+last.Close+last.Miss+skips)
	assert.Equal(t, int64(200*100), last.TimeMs)
}

func TestRecordStudyAdvance_ClampsElapsed(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		raw  int64
		want int64
	}{
		{-500, 0},
		{0, 0},
		{1, 1},
		{179999, 179999},
		{180000, 180000},
		{180001, 180000},
		{1 << 40, 180000},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.raw), func(t *testing.T) {
			l := ledger.Open(ctx, newRepo(t))
			res, err := l.RecordStudyAdvance(ctx, advance("Ana", "1a", tc.raw, models.OutcomeSkip))
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.AddedMs)
			assert.Equal(t, tc.want, res.Stat.TimeMs)

			rec, _ := l.Student("Ana")
			require.Len(t, rec.Log, 1)
			assert.Equal(t, tc.want, rec.Log[0].ElapsedMs)
		})
	}
}

func TestRecordStudyAdvance_SideEffectsInOrder(t *testing.T) {
	ctx := context.Background()
	fx := &sideEffects{badge: &models.Badge{ID: "bronze"}}
	l := ledger.Open(ctx, newRepo(t), ledger.WithPusher(fx), ledger.WithBadges(fx), ledger.WithClock(stepClock()))

	res, err := l.RecordStudyAdvance(ctx, ledger.Advance{
		Student: "Ana ", CardID: "2b", Unit: 2, ElapsedMs: 4200, Outcome: models.OutcomeClose, Language: models.LanguageSpanish,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"push", "badge:ana"}, fx.calls)
	require.NotNil(t, res.Badge)
	assert.Equal(t, "bronze", res.Badge.ID)
	assert.Equal(t, models.SyncEvent{
		Student: "Ana", CardID: "2b", Unit: 2, Rating: models.OutcomeClose, DtMs: 4200,
		Lang: models.LanguageSpanish, At: t0.Add(time.Second),
	}, fx.events[0])

	res, err = l.RecordStudyAdvance(ctx, advance("Ana", "2b", 10, models.OutcomeGot))
	require.NoError(t, err)
	assert.Nil(t, res.Badge)
}

func TestRecordStudyAdvance_PersistFailureIsSoft(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.MockDocumentRepository)
	repo.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	repo.On("Put", mock.Anything, repository.LedgerKey, mock.Anything).Return(errors.New("quota exceeded"))

	l := ledger.Open(ctx, repo)
	res, err := l.RecordStudyAdvance(ctx, advance("Ana", "1a", 900, models.OutcomeGot))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stat.Got)
	repo.AssertCalled(t, "Put", mock.Anything, repository.LedgerKey, mock.Anything)
}

func TestRecordStudyAdvance_RejectsBadInputWithoutMutation(t *testing.T) {
	ctx := context.Background()
	l := ledger.Open(ctx, newRepo(t))
	before, err := l.Export(ctx)
	require.NoError(t, err)

	_, err = l.RecordStudyAdvance(ctx, advance("", "1a", 10, models.OutcomeGot))
	assert.ErrorIs(t, err, ledger.ErrEmptyName)
	_, err = l.RecordStudyAdvance(ctx, advance("Ana", " ", 10, models.OutcomeGot))
	assert.ErrorIs(t, err, ledger.ErrEmptyCardID)
	_, err = l.RecordStudyAdvance(ctx, advance("Ana", "1a", 10, "great"))
	assert.ErrorIs(t, err, ledger.ErrBadOutcome)
	_, err = l.RecordQuizResult(ctx, "Ana", "1a", "perfect")
	assert.ErrorIs(t, err, ledger.ErrBadQuizLevel)

	after, err := l.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRecordStudyAdvance_LogKeepsMostRecentInOrder(t *testing.T) {
	ctx := context.Background()
	l := ledger.Open(ctx, newRepo(t), ledger.WithClock(stepClock()))

	for i := 0; i < 30; i++ {
		_, err := l.RecordStudyAdvance(ctx, advance("Ana", fmt.Sprintf("c%d", i), int64(i), models.OutcomeSkip))
		require.NoError(t, err)
	}
	rec, _ := l.Student("Ana")
	require.Len(t, rec.Log, 30)
	for i, ev := range rec.Log {
		assert.Equal(t, fmt.Sprintf("c%d", i), ev.CardID)
	}
}

func TestRecordQuizResult_LastLevelIsMostRecent(t *testing.T) {
	ctx := context.Background()
	l := ledger.Open(ctx, newRepo(t), ledger.WithClock(stepClock()))

	_, err := l.RecordQuizResult(ctx, "Ana", "1a", models.QuizCorrect)
	require.NoError(t, err)
	q, err := l.RecordQuizResult(ctx, "ana", "1a", models.QuizIncorrect)
	require.NoError(t, err)

	assert.Equal(t, 2, q.Attempts)
	assert.Equal(t, 1, q.Correct)
	assert.Equal(t, 1, q.Incorrect)
	assert.Equal(t, models.QuizIncorrect, q.LastLevel)
	require.NotNil(t, q.LastAt)
	assert.Equal(t, t0.Add(2*time.Second), *q.LastAt)

	rec, _ := l.Student("Ana")
	assert.Empty(t, rec.ByCard, "quiz verdicts do not touch study counters")
}

func TestStudent_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	l := ledger.Open(ctx, newRepo(t))
	_, err := l.RecordStudyAdvance(ctx, advance("Ana", "1a", 10, models.OutcomeGot))
	require.NoError(t, err)

	rec, _ := l.Student("Ana")
	rec.ByCard["1a"].Got = 99

	again, _ := l.Student("Ana")
	assert.Equal(t, 1, again.ByCard["1a"].Got)

	_, ok := l.Student("nobody")
	assert.False(t, ok)
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := ledger.Open(ctx, newRepo(t), ledger.WithClock(stepClock()))
	_, err := src.RecordStudyAdvance(ctx, advance("Ana", "1a", 3000, models.OutcomeGot))
	require.NoError(t, err)
	_, err = src.RecordQuizResult(ctx, "Ben", "2a", models.QuizAlmost)
	require.NoError(t, err)

	exported, err := src.Export(ctx)
	require.NoError(t, err)

	dstRepo := newRepo(t)
	dst := ledger.Open(ctx, dstRepo)
	n, err := dst.Import(ctx, exported)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	reexported, err := dst.Export(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(exported), string(reexported))

	persisted := ledger.Open(ctx, dstRepo)
	assert.Equal(t, []string{"Ana", "Ben"}, persisted.Students())
}

func TestImport_RejectsWrongShapeAndKeepsState(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	l := ledger.Open(ctx, repo)
	_, err := l.RecordStudyAdvance(ctx, advance("Ana", "1a", 3000, models.OutcomeGot))
	require.NoError(t, err)

	before, err := l.Export(ctx)
	require.NoError(t, err)
	stored, err := repo.Get(ctx, repository.LedgerKey)
	require.NoError(t, err)

	bad := []string{
		`{"pupils":{}}`,
		`{"students":[]}`,
		`{"students":null}`,
		`{"students":"Ana"}`,
		`[]`,
		`not json`,
	}
	for _, doc := range bad {
		_, err := l.Import(ctx, []byte(doc))
		assert.ErrorIs(t, err, ledger.ErrInvalidDocument, doc)

		after, err := l.Export(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after, "ledger unchanged after %s", doc)
	}

	storedAfter, err := repo.Get(ctx, repository.LedgerKey)
	require.NoError(t, err)
	assert.Equal(t, stored, storedAfter)
}

func TestImport_MergesNameVariants(t *testing.T) {
	ctx := context.Background()
	l := ledger.Open(ctx, newRepo(t))

	doc := `{"students":{
		"Ana":  {"byCard":{"1a":{"got":1,"close":0,"miss":0,"attempts":1,"timeMs":1000}},
		         "quizByCard":{"1a":{"correct":1,"attempts":1,"lastLevel":"correct","lastAt":"2026-01-01T10:00:00Z"}},
		         "log":[{"ts":"2026-01-01T10:00:00Z","cardId":"1a","dtMs":1000,"rating":"got"}]},
		"ana ": {"byCard":{"1a":{"got":0,"close":0,"miss":1,"attempts":2,"timeMs":500},"2a":{"got":1,"attempts":1,"timeMs":10}},
		         "quizByCard":{"1a":{"incorrect":1,"attempts":1,"lastLevel":"incorrect","lastAt":"2026-01-02T10:00:00Z"}},
		         "log":[{"ts":"2026-01-01T09:00:00Z","cardId":"1a","dtMs":500,"rating":"miss"}]}
	}}`
	n, err := l.Import(ctx, []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, ok := l.Student("ANA")
	require.True(t, ok)
	assert.Equal(t, models.CardStat{Got: 1, Miss: 1, Attempts: 3, TimeMs: 1500}, *rec.ByCard["1a"])
	assert.Equal(t, 1, rec.ByCard["2a"].Got)
	assert.Equal(t, models.QuizIncorrect, rec.QuizByCard["1a"].LastLevel)
	assert.Equal(t, 2, rec.QuizByCard["1a"].Attempts)
	require.Len(t, rec.Log, 2)
	assert.Equal(t, models.OutcomeMiss, rec.Log[0].Outcome, "merged log is in time order")
}

func TestReset_WipesStudentsAndCelebrations(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	fx := &sideEffects{}
	l := ledger.Open(ctx, repo, ledger.WithBadges(fx))
	_, err := l.RecordStudyAdvance(ctx, advance("Ana", "1a", 3000, models.OutcomeGot))
	require.NoError(t, err)

	require.NoError(t, l.Reset(ctx))
	assert.Empty(t, l.Students())
	assert.Equal(t, 1, fx.resets)

	reopened := ledger.Open(ctx, repo)
	assert.Empty(t, reopened.Students())
}

func TestRecentNames(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	l := ledger.Open(ctx, repo)

	for i := 0; i < 10; i++ {
		_, err := l.EnsureStudent(ctx, fmt.Sprintf("Student %d", i))
		require.NoError(t, err)
	}
	_, err := l.EnsureStudent(ctx, "student 3")
	require.NoError(t, err)

	names := l.RecentNames()
	require.Len(t, names, ledger.MaxRecentNames)
	assert.Equal(t, "student 3", names[0])
	assert.Equal(t, "Student 9", names[1])
	for _, n := range names[1:] {
		assert.NotEqual(t, "student 3", ledger.NormalizeName(n), "no duplicate spellings")
	}

	reopened := ledger.Open(ctx, repo)
	assert.Equal(t, names, reopened.RecentNames())
}

func TestExport_IsJSONDocument(t *testing.T) {
	ctx := context.Background()
	l := ledger.Open(ctx, newRepo(t))
	_, err := l.RecordStudyAdvance(ctx, advance("Ana", "1a", 3000, models.OutcomeGot))
	require.NoError(t, err)

	out, err := l.Export(ctx)
	require.NoError(t, err)
	var doc map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Contains(t, doc["students"], "ana")
}
