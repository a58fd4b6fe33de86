package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/vytor/starcards/internal/logger"
	"github.com/vytor/starcards/internal/models"
)

// Catalog is the ordered, immutable set of cards loaded at startup.
type Catalog struct {
	cards    []models.Card
	byID     map[string]int
	rejected int
}

// Empty returns a catalog with no cards.
func Empty() *Catalog {
	return &Catalog{byID: map[string]int{}}
}

// New builds a catalog from already-normalized cards. Later duplicates of an
// id are dropped. Production code loads catalogs with LoadFile or Parse; New
// is for tests that build cards in code.
func New(cards []models.Card) *Catalog {
	c := Empty()
	for _, card := range cards {
		if _, dup := c.byID[card.ID]; dup {
			c.rejected++
			continue
		}
		c.byID[card.ID] = len(c.cards)
		c.cards = append(c.cards, card)
	}
	return c
}

// LoadFile reads and parses the catalog at path. On any failure it returns an
// empty catalog together with the error, so startup can continue.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Empty(), fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return Empty(), fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog document: either a bare array of cards or an object
// with a "cards" array. Malformed entries are skipped with a warning.
func Parse(data []byte) (*Catalog, error) {
	log := logger.Default().WithPrefix("catalog")

	entries, err := splitEntries(data)
	if err != nil {
		return nil, err
	}

	c := Empty()
	for i, raw := range entries {
		card, err := normalize(raw)
		if err != nil {
			log.Warn("skipping card #%d: %v", i, err)
			c.rejected++
			continue
		}
		if _, dup := c.byID[card.ID]; dup {
			log.Warn("skipping card #%d: duplicate id %q", i, card.ID)
			c.rejected++
			continue
		}
		c.byID[card.ID] = len(c.cards)
		c.cards = append(c.cards, card)
	}
	log.Info("catalog loaded: %d cards, %d rejected", len(c.cards), c.rejected)
	return c, nil
}

func splitEntries(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty document")
	}

	var entries []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode card list: %w", err)
		}
	case '{':
		var wrapper struct {
			Cards []json.RawMessage `json:"cards"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("decode card wrapper: %w", err)
		}
		entries = wrapper.Cards
	default:
		return nil, errors.New("document must be an array of cards or an object with a cards field")
	}
	return entries, nil
}

type rawCard struct {
	ID               json.RawMessage            `json:"id"`
	Unit             json.RawMessage            `json:"unit"`
	QuestionImage    string                     `json:"questionImage"`
	AnswerImage      string                     `json:"answerImage"`
	QuestionImageAlt string                     `json:"questionImageAlt"`
	AnswerImageAlt   string                     `json:"answerImageAlt"`
	QuestionText     string                     `json:"questionText"`
	AnswerText       string                     `json:"answerText"`
	QuestionTextAlt  string                     `json:"questionTextAlt"`
	AnswerTextAlt    string                     `json:"answerTextAlt"`
	Rubric           map[string]json.RawMessage `json:"rubric"`
	GradingRubric    map[string]json.RawMessage `json:"gradingRubric"`
}

func normalize(raw json.RawMessage) (models.Card, error) {
	var rc rawCard
	if err := json.Unmarshal(raw, &rc); err != nil {
		return models.Card{}, fmt.Errorf("decode: %w", err)
	}

	id, ok := scalar(rc.ID)
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return models.Card{}, errors.New("missing id")
	}

	unitStr, ok := scalar(rc.Unit)
	if !ok {
		return models.Card{}, fmt.Errorf("card %s: missing unit", id)
	}
	unit, ok := parseUnit(unitStr)
	if !ok {
		return models.Card{}, fmt.Errorf("card %s: invalid unit %q", id, unitStr)
	}

	card := models.Card{
		ID:                   id,
		Unit:                 unit,
		QuestionImagePath:    orDefault(rc.QuestionImage, "assets/"+id+"Q.png"),
		AnswerImagePath:      orDefault(rc.AnswerImage, "assets/"+id+"A.png"),
		QuestionImagePathAlt: orDefault(rc.QuestionImageAlt, "assets/"+id+"Qsp.png"),
		AnswerImagePathAlt:   orDefault(rc.AnswerImageAlt, "assets/"+id+"Asp.png"),
		QuestionText:         strings.TrimSpace(rc.QuestionText),
		AnswerText:           strings.TrimSpace(rc.AnswerText),
		QuestionTextAlt:      strings.TrimSpace(rc.QuestionTextAlt),
		AnswerTextAlt:        strings.TrimSpace(rc.AnswerTextAlt),
	}

	rubrics := rc.Rubric
	if len(rubrics) == 0 {
		rubrics = rc.GradingRubric
	}
	log := logger.Default().WithPrefix("catalog")
	from := map[models.Language]string{}
	for _, key := range rubricKeys(rubrics) {
		var r models.Rubric
		if err := json.Unmarshal(rubrics[key], &r); err != nil {
			log.Warn("card %s: ignoring malformed %q rubric: %v", id, key, err)
			continue
		}
		r.Must = cleanGroups(r.Must)
		if len(r.Must) == 0 {
			continue
		}
		lang := models.ParseLanguage(key)
		if prev, dup := from[lang]; dup {
			log.Warn("card %s: rubric %q overrides %q for language %s", id, key, prev, lang)
		}
		if card.Rubric == nil {
			card.Rubric = map[models.Language]models.Rubric{}
		}
		card.Rubric[lang] = r
		from[lang] = key
	}
	return card, nil
}

// rubricKeys orders rubric keys so the result does not depend on map order.
// A key spelled exactly as its language code ("en", "es") sorts last and so
// wins over aliases such as "sp".
func rubricKeys(rubrics map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(rubrics))
	for k := range rubrics {
		keys = append(keys, k)
	}
	canonical := func(k string) bool {
		return strings.ToLower(strings.TrimSpace(k)) == string(models.ParseLanguage(k))
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := canonical(keys[i]), canonical(keys[j])
		if ci != cj {
			return cj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// parseUnit accepts whole numbers written as integers or decimals ("3",
// "3.0", 3.0). Units start at 1.
func parseUnit(s string) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// scalar returns a JSON string or number as text.
func scalar(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func cleanGroups(groups [][]string) [][]string {
	var out [][]string
	for _, g := range groups {
		var phrases []string
		for _, p := range g {
			if p = strings.TrimSpace(p); p != "" {
				phrases = append(phrases, p)
			}
		}
		if len(phrases) > 0 {
			out = append(out, phrases)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

// Len returns the number of cards.
func (c *Catalog) Len() int { return len(c.cards) }

// Rejected returns how many entries were dropped while loading.
func (c *Catalog) Rejected() int { return c.rejected }

// Cards returns the cards in catalog order.
func (c *Catalog) Cards() []models.Card {
	return append([]models.Card(nil), c.cards...)
}

// Get looks a card up by id.
func (c *Catalog) Get(id string) (models.Card, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Card{}, false
	}
	return c.cards[i], true
}

// Units returns the distinct units in ascending order.
func (c *Catalog) Units() []int {
	seen := map[int]bool{}
	var units []int
	for _, card := range c.cards {
		if !seen[card.Unit] {
			seen[card.Unit] = true
			units = append(units, card.Unit)
		}
	}
	sort.Ints(units)
	return units
}

// Sorted returns the cards ordered by unit, then by id with numeric awareness.
func (c *Catalog) Sorted() []models.Card {
	out := c.Cards()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Unit != out[j].Unit {
			return out[i].Unit < out[j].Unit
		}
		return CompareIDs(out[i].ID, out[j].ID) < 0
	})
	return out
}
