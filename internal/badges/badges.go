package badges

import (
	"context"

	"github.com/vytor/starcards/internal/logger"
	"github.com/vytor/starcards/internal/models"
	"github.com/vytor/starcards/internal/repository"
)

// DefaultThresholds are evaluated in this order, easiest first.
var DefaultThresholds = []models.Badge{
	{ID: "bronze", Name: "Bronze Star", Minutes: 5, Cards: 3},
	{ID: "silver", Name: "Silver Star", Minutes: 15, Cards: 10},
	{ID: "gold", Name: "Gold Star", Minutes: 30, Cards: 20},
	{ID: "platinum", Name: "Platinum Star", Minutes: 60, Cards: 40},
}

// Evaluator derives badge unlocks from ledger totals. It reads the ledger and
// writes only to the celebrated set.
type Evaluator struct {
	thresholds []models.Badge
	repo       repository.BadgeRepository
	log        *logger.Logger
}

// NewEvaluator creates an Evaluator. With no thresholds given it uses
// DefaultThresholds.
func NewEvaluator(repo repository.BadgeRepository, thresholds ...models.Badge) *Evaluator {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	return &Evaluator{
		thresholds: append([]models.Badge(nil), thresholds...),
		repo:       repo,
		log:        logger.Default().WithPrefix("badges"),
	}
}

// Thresholds returns the configured thresholds in evaluation order.
func (e *Evaluator) Thresholds() []models.Badge {
	return append([]models.Badge(nil), e.thresholds...)
}

// Met reports whether record satisfies both requirements of b.
func Met(b models.Badge, record *models.StudentRecord) bool {
	minutes := float64(record.TotalTimeMs()) / 60000
	return minutes >= float64(b.Minutes) && record.CardsAttempted() >= b.Cards
}

// Check returns the first threshold that is met and not yet celebrated for
// student, marking it celebrated. At most one badge surfaces per call, so
// several thresholds crossed at once are announced one check at a time.
func (e *Evaluator) Check(ctx context.Context, student string, record *models.StudentRecord) (*models.Badge, error) {
	if record == nil {
		return nil, nil
	}
	celebrated, err := e.repo.Celebrated(ctx, student)
	if err != nil {
		return nil, err
	}

	for _, b := range e.thresholds {
		if !Met(b, record) || celebrated[b.ID] {
			continue
		}
		marked, err := e.repo.MarkCelebrated(ctx, student, b.ID)
		if err != nil {
			return nil, err
		}
		if !marked {
			// another check announced it first
			continue
		}
		e.log.Info("badge earned: student=%s, badge=%s", student, b.ID)
		earned := b
		return &earned, nil
	}
	return nil, nil
}

// Progress lists every threshold with its met and celebrated state.
func (e *Evaluator) Progress(ctx context.Context, student string, record *models.StudentRecord) []models.BadgeProgress {
	celebrated, err := e.repo.Celebrated(ctx, student)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("badges").Warn("celebrated badges unavailable for %s: %v", student, err)
		celebrated = map[string]bool{}
	}

	out := make([]models.BadgeProgress, 0, len(e.thresholds))
	for _, b := range e.thresholds {
		out = append(out, models.BadgeProgress{
			Badge:      b,
			Met:        record != nil && Met(b, record),
			Celebrated: celebrated[b.ID],
		})
	}
	return out
}

// Reset forgets every celebration, used when the ledger is wiped.
func (e *Evaluator) Reset(ctx context.Context) error {
	return e.repo.ClearAll(ctx)
}
