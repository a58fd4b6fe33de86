package services

import (
	"context"
	"crypto/subtle"
	"math"
	"sort"
	"strings"

	"github.com/vytor/starcards/internal/catalog"
	"github.com/vytor/starcards/internal/errors"
	"github.com/vytor/starcards/internal/ledger"
	"github.com/vytor/starcards/internal/logger"
	"github.com/vytor/starcards/internal/models"
	"github.com/vytor/starcards/internal/remote"
)

const (
	NoticeStudentFallback = "Sync server not reachable. Showing only this device's data."
	NoticeTeacherFallback = "Sync server not reachable. Showing only this device's students."
)

// SummarySource is the read side of the remote aggregator.
type SummarySource interface {
	Enabled() bool
	PullStudentSummary(ctx context.Context, student, accessCode string) (models.RemoteStudent, bool)
	PullAllStudentsSummary(ctx context.Context, pin string) (map[string]models.RemoteStudent, bool)
}

// BadgeProgressSource lists badge thresholds with their state for a student.
type BadgeProgressSource interface {
	Progress(ctx context.Context, student string, record *models.StudentRecord) []models.BadgeProgress
}

// DashboardService derives the student and teacher views from the ledger,
// overlaid with remote totals when the aggregator answers.
type DashboardService interface {
	Student(ctx context.Context, name, accessCode string) (*models.StudentDashboard, error)
	Teacher(ctx context.Context, pin string) (*models.TeacherDashboard, error)
}

type dashboardService struct {
	catalog *catalog.Catalog
	ledger  *ledger.Ledger
	remote  SummarySource
	badges  BadgeProgressSource
	pin     string
}

// NewDashboardService creates a DashboardService guarded by teacherPIN.
func NewDashboardService(cat *catalog.Catalog, l *ledger.Ledger, src SummarySource, badges BadgeProgressSource, teacherPIN string) DashboardService {
	return &dashboardService{catalog: cat, ledger: l, remote: src, badges: badges, pin: teacherPIN}
}

func (s *dashboardService) Student(ctx context.Context, name, accessCode string) (*models.StudentDashboard, error) {
	log := logger.FromContext(ctx)

	key := ledger.NormalizeName(name)
	if key == "" {
		return nil, errors.NewValidationError("student", "a name is required")
	}
	record, ok := s.ledger.Student(name)
	if !ok {
		record = models.NewStudentRecord(ledger.DisplayName(name))
	}

	dash := &models.StudentDashboard{
		Student: record.DisplayName,
		Overlay: record.Totals(s.ledger.Now()),
		Source:  models.SourceLocal,
		Tiles:   []models.CardTile{},
	}
	for _, card := range s.catalog.Sorted() {
		stat := record.Stat(card.ID)
		tile := models.CardTile{CardID: card.ID, Unit: card.Unit, Status: stat.Status(), Stat: stat}
		if q, ok := record.QuizByCard[card.ID]; ok && q != nil {
			tile.QuizLevel = q.LastLevel
		}
		dash.Tiles = append(dash.Tiles, tile)

		dash.Totals.Got += stat.Got
		dash.Totals.Close += stat.Close
		dash.Totals.Miss += stat.Miss
		dash.Totals.Attempts += stat.Attempts
		if stat.Attempts == 0 {
			dash.Totals.NotYet++
		}
	}
	dash.Totals.TimeMs = record.TotalTimeMs()
	if s.badges != nil {
		dash.Badges = s.badges.Progress(ctx, key, record)
	}

	if s.remote != nil && s.remote.Enabled() {
		if rs, ok := s.remote.PullStudentSummary(ctx, record.DisplayName, accessCode); ok {
			dash.Overlay = remote.MergeTotals(dash.Overlay, rs.Totals())
			dash.Source = models.SourceMerged
		} else {
			log.Debug("student dashboard for %s falls back to local data", key)
			dash.Notice = NoticeStudentFallback
		}
	}
	return dash, nil
}

func (s *dashboardService) Teacher(ctx context.Context, pin string) (*models.TeacherDashboard, error) {
	log := logger.FromContext(ctx)

	if !checkPIN(s.pin, pin) {
		log.Warn("teacher dashboard refused: wrong PIN")
		return nil, errors.NewUnauthorizedError("incorrect PIN")
	}

	local := s.ledger.Snapshot()
	dash := &models.TeacherDashboard{Source: models.SourceLocal, Students: []models.TeacherStudent{}}

	remoteTotals := map[string]models.Totals{}
	remoteNames := map[string]string{}
	if s.remote != nil && s.remote.Enabled() {
		if students, ok := s.remote.PullAllStudentsSummary(ctx, pin); ok {
			dash.Source = models.SourceMerged
			for name, rs := range students {
				key := ledger.NormalizeName(name)
				if key == "" {
					continue
				}
				remoteTotals[key] = remote.MergeTotals(remoteTotals[key], rs.Totals())
				if _, seen := remoteNames[key]; !seen {
					remoteNames[key] = ledger.DisplayName(name)
				}
			}
		} else {
			dash.Notice = NoticeTeacherFallback
		}
	}

	keys := make(map[string]bool, len(local)+len(remoteTotals))
	for k := range local {
		keys[k] = true
	}
	for k := range remoteTotals {
		keys[k] = true
	}

	now := s.ledger.Now()
	cards := s.catalog.Sorted()
	for key := range keys {
		record, ok := local[key]
		if !ok {
			record = models.NewStudentRecord(remoteNames[key])
		}
		ts := models.TeacherStudent{Name: record.DisplayName, Overlay: record.Totals(now)}
		if rt, ok := remoteTotals[key]; ok {
			ts.Overlay = remote.MergeTotals(ts.Overlay, rt)
		}

		known, attempted := 0, 0
		for _, card := range cards {
			stat := record.Stat(card.ID)
			if stat.Attempts > 0 {
				attempted++
			}
			if stat.Known() {
				known++
			}
			ts.Rows = append(ts.Rows, models.TeacherCardRow{
				CardID: card.ID,
				Unit:   card.Unit,
				Status: stat.Status(),
				Stat:   stat,
				AvgMs:  stat.AverageMs(),
			})
		}
		ts.KnownPctAll = percent(known, len(cards))
		ts.KnownPctAttempted = percent(known, attempted)
		dash.Students = append(dash.Students, ts)
	}

	sort.Slice(dash.Students, func(i, j int) bool {
		a, b := strings.ToLower(dash.Students[i].Name), strings.ToLower(dash.Students[j].Name)
		if a != b {
			return a < b
		}
		return dash.Students[i].Name < dash.Students[j].Name
	})
	log.Debug("teacher dashboard built: students=%d, source=%s", len(dash.Students), dash.Source)
	return dash, nil
}

func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(whole)))
}

func checkPIN(want, got string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
