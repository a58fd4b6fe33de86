package queue_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/starcards/internal/models"
	"github.com/vytor/starcards/internal/queue"
	"github.com/vytor/starcards/internal/testutil"
)

func sampleCards() []models.Card {
	return []models.Card{
		testutil.Card("1a", 1),
		testutil.Card("1b", 1),
		testutil.Card("2a", 2),
		testutil.Card("2b", 2),
		testutil.Card("3a", 3),
	}
}

func ids(cards []models.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestBuild_FiltersUnitsInCatalogOrder(t *testing.T) {
	got := queue.Build(sampleCards(), nil, []int{3, 1}, queue.Options{}, nil)
	assert.Equal(t, []string{"1a", "1b", "3a"}, ids(got))
}

func TestBuild_IsStableWithoutShuffle(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	first := queue.Build(sampleCards(), nil, []int{1, 2}, queue.Options{}, rng)
	second := queue.Build(sampleCards(), nil, []int{1, 2}, queue.Options{}, rng)
	assert.Equal(t, ids(first), ids(second))
}

func TestBuild_NoUnitsOrNoMatchesIsEmpty(t *testing.T) {
	assert.Empty(t, queue.Build(sampleCards(), nil, nil, queue.Options{}, nil))
	assert.Empty(t, queue.Build(sampleCards(), nil, []int{9}, queue.Options{Shuffle: true}, rand.New(rand.NewSource(1))))
}

func TestBuild_OnlyNeedsPractice(t *testing.T) {
	record := models.NewStudentRecord("Ana")
	record.ByCard["1a"] = &models.CardStat{Got: 3, Close: 1, Miss: 1, Attempts: 5}    // known: dropped
	record.ByCard["1b"] = &models.CardStat{Got: 1, Close: 1, Miss: 1, Attempts: 3}    // 2 > 1: kept
	record.ByCard["2a"] = &models.CardStat{Got: 1, Close: 1, Attempts: 2}             // tie: dropped
	record.ByCard["2b"] = &models.CardStat{Attempts: 4}                               // only skips: dropped

	got := queue.Build(sampleCards(), record, []int{1, 2, 3}, queue.Options{OnlyNeedsPractice: true}, nil)
	assert.Equal(t, []string{"1b", "3a"}, ids(got), "unseen cards always need practice")

	got = queue.Build(sampleCards(), nil, []int{1}, queue.Options{OnlyNeedsPractice: true}, nil)
	assert.Equal(t, []string{"1a", "1b"}, ids(got), "a student without history needs every card")
}

func TestBuild_ShuffleIsPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		got := ids(queue.Build(sampleCards(), nil, []int{1, 2, 3}, queue.Options{Shuffle: true}, rng))
		sort.Strings(got)
		require.Equal(t, []string{"1a", "1b", "2a", "2b", "3a"}, got)
	}
}

func TestBuild_ShuffleWithoutRandSourceStillShuffles(t *testing.T) {
	catalogOrder := ids(sampleCards())
	moved := false
	for trial := 0; trial < 50; trial++ {
		got := ids(queue.Build(sampleCards(), nil, []int{1, 2, 3}, queue.Options{Shuffle: true}, nil))
		if !assert.ObjectsAreEqual(catalogOrder, got) {
			moved = true
		}
		sort.Strings(got)
		require.Equal(t, catalogOrder, got)
	}
	assert.True(t, moved, "a nil rng falls back to a clock-seeded source")
}

func TestShuffle_PositionsAreUniform(t *testing.T) {
	const (
		n      = 4
		trials = 40000
	)
	base := sampleCards()[:n]
	index := map[string]int{}
	for i, c := range base {
		index[c.ID] = i
	}

	var counts [n][n]int
	rng := rand.New(rand.NewSource(7))
	work := make([]models.Card, n)
	for trial := 0; trial < trials; trial++ {
		copy(work, base)
		queue.Shuffle(work, rng)
		for pos, c := range work {
			counts[index[c.ID]][pos]++
		}
	}

	expected := float64(trials) / n
	chi2 := 0.0
	for card := 0; card < n; card++ {
		for pos := 0; pos < n; pos++ {
			d := float64(counts[card][pos]) - expected
			chi2 += d * d / expected
		}
	}
	// 9 degrees of freedom; 40 is far beyond the 0.001 critical value (27.9).
	assert.Less(t, chi2, 40.0, "position counts %v", counts)
}

type fixedRand struct{ picks []int }

func (f *fixedRand) Intn(n int) int {
	v := f.picks[0] % n
	f.picks = f.picks[1:]
	return v
}

func TestShuffle_FisherYatesSwaps(t *testing.T) {
	cards := sampleCards()[:3]
	// i=2 swaps with j=0, then i=1 swaps with j=1.
	queue.Shuffle(cards, &fixedRand{picks: []int{0, 1}})
	assert.Equal(t, []string{"2a", "1b", "1a"}, ids(cards))
}

func TestCursor_WrapsAround(t *testing.T) {
	c := queue.NewCursor(sampleCards()[:2])

	card, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "1a", card.ID)
	pos, total := c.Position()
	assert.Equal(t, 1, pos)
	assert.Equal(t, 2, total)

	c.Advance()
	card, _ = c.Current()
	assert.Equal(t, "1b", card.ID)

	c.Advance()
	card, _ = c.Current()
	assert.Equal(t, "1a", card.ID, "advancing past the end wraps to the start")
	pos, _ = c.Position()
	assert.Equal(t, 1, pos)
}

func TestCursor_Empty(t *testing.T) {
	c := queue.NewCursor(nil)

	assert.True(t, c.Empty())
	_, ok := c.Current()
	assert.False(t, ok)
	c.Advance()
	pos, total := c.Position()
	assert.Zero(t, pos)
	assert.Zero(t, total)
}
