package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/vytor/starcards/internal/logger"
	"github.com/vytor/starcards/internal/models"
)

// ErrInvalidDocument is returned by Import for data that is not a ledger
// document.
var ErrInvalidDocument = errors.New("not a progress ledger document")

// shapeSchema checks the top level only; student records are decoded
// leniently.
const shapeSchema = `{
  "type": "object",
  "required": ["students"],
  "properties": {
    "students": {"type": "object"}
  }
}`

var (
	shapeOnce     sync.Once
	shapeCompiled *jsonschema.Schema
	shapeErr      error
)

func compiledShape() (*jsonschema.Schema, error) {
	shapeOnce.Do(func() {
		var def any
		if err := json.Unmarshal([]byte(shapeSchema), &def); err != nil {
			shapeErr = fmt.Errorf("parse ledger schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		const url = "schema://ledger.json"
		if err := c.AddResource(url, def); err != nil {
			shapeErr = fmt.Errorf("add resource: %w", err)
			return
		}
		shapeCompiled, shapeErr = c.Compile(url)
	})
	return shapeCompiled, shapeErr
}

// validateShape reports whether data has an object-typed "students" member.
func validateShape(data []byte) error {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrInvalidDocument, err)
	}
	schema, err := compiledShape()
	if err != nil {
		return err
	}
	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("%w: a %q object is required", ErrInvalidDocument, "students")
	}
	return nil
}

// decodeDocument parses a ledger document. Student entries that do not decode
// are dropped with a warning, and keys are canonicalized with NormalizeName.
func decodeDocument(data []byte, log *logger.Logger) (*models.LedgerDocument, error) {
	var raw struct {
		Students map[string]json.RawMessage `json:"students"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	doc := models.NewLedgerDocument()
	names := make([]string, 0, len(raw.Students))
	for name := range raw.Students {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		key := NormalizeName(name)
		if key == "" {
			log.Warn("dropping student with empty name")
			continue
		}
		body := raw.Students[name]
		if string(bytes.TrimSpace(body)) == "null" {
			log.Warn("dropping empty student %q", name)
			continue
		}
		rec := &models.StudentRecord{}
		if err := json.Unmarshal(body, rec); err != nil {
			log.Warn("dropping unreadable student %q: %v", name, err)
			continue
		}
		fillDefaults(rec, name)

		if existing, ok := doc.Students[key]; ok {
			log.Warn("merging student %q into %q", name, existing.DisplayName)
			mergeRecords(existing, rec)
			continue
		}
		doc.Students[key] = rec
	}
	return doc, nil
}

// fillDefaults repairs records written by older versions or by hand.
func fillDefaults(rec *models.StudentRecord, name string) {
	if strings.TrimSpace(rec.DisplayName) == "" {
		rec.DisplayName = DisplayName(name)
	}
	if rec.ByCard == nil {
		rec.ByCard = map[string]*models.CardStat{}
	}
	if rec.QuizByCard == nil {
		rec.QuizByCard = map[string]*models.QuizStat{}
	}
	if rec.Log == nil {
		rec.Log = []models.StudyEvent{}
	}
	for id, s := range rec.ByCard {
		if s == nil {
			delete(rec.ByCard, id)
			continue
		}
		if rated := s.Got + s.Close + s.Miss; s.Attempts < rated {
			s.Attempts = rated
		}
	}
	for id, q := range rec.QuizByCard {
		if q == nil {
			delete(rec.QuizByCard, id)
		}
	}
	if over := len(rec.Log) - MaxLogEntries; over > 0 {
		rec.Log = rec.Log[over:]
	}
}

// mergeRecords folds src into dst: counters are summed, logs interleaved by
// time, and the newer quiz verdict wins.
func mergeRecords(dst, src *models.StudentRecord) {
	for id, s := range src.ByCard {
		d, ok := dst.ByCard[id]
		if !ok {
			cp := *s
			dst.ByCard[id] = &cp
			continue
		}
		d.Got += s.Got
		d.Close += s.Close
		d.Miss += s.Miss
		d.Attempts += s.Attempts
		d.TimeMs += s.TimeMs
	}

	for id, q := range src.QuizByCard {
		d, ok := dst.QuizByCard[id]
		if !ok {
			cp := *q
			dst.QuizByCard[id] = &cp
			continue
		}
		d.Correct += q.Correct
		d.Almost += q.Almost
		d.Incorrect += q.Incorrect
		d.Attempts += q.Attempts
		if q.LastAt != nil && (d.LastAt == nil || q.LastAt.After(*d.LastAt)) {
			d.LastLevel = q.LastLevel
			at := *q.LastAt
			d.LastAt = &at
		}
	}

	merged := append(append([]models.StudyEvent{}, dst.Log...), src.Log...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].At.Before(merged[j].At) })
	if over := len(merged) - MaxLogEntries; over > 0 {
		merged = merged[over:]
	}
	dst.Log = merged
}
