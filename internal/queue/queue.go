package queue

import (
	"math/rand"
	"time"

	"github.com/vytor/starcards/internal/models"
)

// Options control how a study queue is built.
type Options struct {
	Shuffle           bool `json:"shuffle"`
	OnlyNeedsPractice bool `json:"onlyNeedsPractice"`
}

// Rand is the random source used for shuffling. *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// NewRand returns a random source seeded with seed, or with the clock when
// seed is zero.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Build derives the study list for a student: cards of the selected units, in
// catalog order, optionally narrowed to cards that need practice and shuffled.
// record may be nil for a student with no history. A nil rng shuffles with a
// clock-seeded source. The result may be empty.
func Build(cards []models.Card, record *models.StudentRecord, units []int, opts Options, rng Rand) []models.Card {
	selected := make(map[int]bool, len(units))
	for _, u := range units {
		selected[u] = true
	}

	out := make([]models.Card, 0, len(cards))
	for _, c := range cards {
		if !selected[c.Unit] {
			continue
		}
		if opts.OnlyNeedsPractice && !needsPractice(record, c.ID) {
			continue
		}
		out = append(out, c)
	}

	if opts.Shuffle {
		if rng == nil {
			rng = NewRand(0)
		}
		Shuffle(out, rng)
	}
	return out
}

// needsPractice keeps unseen cards and cards whose close+miss ratings
// outnumber got ratings.
func needsPractice(record *models.StudentRecord, cardID string) bool {
	if record == nil {
		return true
	}
	stat, ok := record.ByCard[cardID]
	if !ok || stat == nil {
		return true
	}
	return stat.NeedsPractice()
}

// Shuffle permutes cards in place with Fisher-Yates: every permutation is
// equally likely given a uniform rng.
func Shuffle(cards []models.Card, rng Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}
