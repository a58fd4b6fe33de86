package queue

import "github.com/vytor/starcards/internal/models"

// Cursor walks a queue cyclically: advancing past the last card wraps to the
// first, so a practice session never runs out.
type Cursor struct {
	cards []models.Card
	idx   int
}

// NewCursor returns a cursor positioned on the first card.
func NewCursor(cards []models.Card) *Cursor {
	return &Cursor{cards: cards}
}

// Empty reports whether there is nothing to study.
func (c *Cursor) Empty() bool {
	return len(c.cards) == 0
}

// Len returns the queue length.
func (c *Cursor) Len() int {
	return len(c.cards)
}

// Current returns the card under the cursor; ok is false for an empty queue.
func (c *Cursor) Current() (models.Card, bool) {
	if c.Empty() {
		return models.Card{}, false
	}
	return c.cards[c.idx%len(c.cards)], true
}

// Advance moves to the next card, wrapping at the end. No-op when empty.
func (c *Cursor) Advance() {
	if c.Empty() {
		return
	}
	c.idx = (c.idx + 1) % len(c.cards)
}

// Position returns the 1-based position of the current card and the queue
// length. Both are zero for an empty queue.
func (c *Cursor) Position() (int, int) {
	if c.Empty() {
		return 0, 0
	}
	return c.idx%len(c.cards) + 1, len(c.cards)
}
