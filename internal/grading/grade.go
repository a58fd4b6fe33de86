package grading

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vytor/starcards/internal/models"
)

// MinContainmentLen is the shortest normalized text (in runes) that may match a
// model answer by containment rather than equality.
const MinContainmentLen = 8

// Result is the verdict for one free-text answer.
type Result struct {
	Level           models.QuizLevel `json:"level"`
	Score           float64          `json:"score"`
	SatisfiedGroups []int            `json:"satisfiedGroups"`
	MissedGroups    []int            `json:"missedGroups"`
	Feedback        string           `json:"feedback"`
	// Graded is false when the card has neither a rubric nor a model answer
	// for the language; such results must not be recorded.
	Graded bool `json:"graded"`
}

// Grade scores answer against card in lang. It has no hidden state: the same
// arguments always produce the same Result.
func Grade(card models.Card, answer string, lang models.Language) Result {
	if rubric, ok := card.RubricFor(lang); ok {
		return gradeRubric(rubric, Normalize(answer), lang)
	}
	return gradeModelAnswer(Normalize(card.ModelAnswer(lang)), Normalize(answer), lang)
}

// RequiredGroups is how many must-groups an answer needs to be correct.
func RequiredGroups(r models.Rubric) int {
	n := len(r.Must)
	needed := r.MinMustGroups
	if needed <= 0 {
		// ceil(0.6 * n) without floating point
		needed = (6*n + 9) / 10
	}
	if needed > n {
		needed = n
	}
	return needed
}

func gradeRubric(r models.Rubric, answer string, lang models.Language) Result {
	res := Result{
		SatisfiedGroups: []int{},
		MissedGroups:    []int{},
		Graded:          true,
	}
	for i, group := range r.Must {
		if groupSatisfied(group, answer) {
			res.SatisfiedGroups = append(res.SatisfiedGroups, i)
		} else {
			res.MissedGroups = append(res.MissedGroups, i)
		}
	}

	hits := len(res.SatisfiedGroups)
	needed := RequiredGroups(r)
	res.Score = float64(hits) / float64(len(r.Must))

	switch {
	case hits >= needed:
		res.Level = models.QuizCorrect
	case hits >= max(1, needed-1):
		res.Level = models.QuizAlmost
	default:
		res.Level = models.QuizIncorrect
	}
	res.Feedback = feedback(res.Level, lang, hintPhrases(r, res.MissedGroups))
	return res
}

func groupSatisfied(group []string, answer string) bool {
	if answer == "" {
		return false
	}
	for _, phrase := range group {
		if p := Normalize(phrase); p != "" && strings.Contains(answer, p) {
			return true
		}
	}
	return false
}

// hintPhrases picks one or two example phrases from the first two missed groups.
func hintPhrases(r models.Rubric, missed []int) []string {
	var hints []string
	for _, gi := range missed {
		if len(hints) == 2 {
			break
		}
		hints = append(hints, r.Must[gi][0])
	}
	if len(hints) == 1 && len(missed) == 1 && len(r.Must[missed[0]]) > 1 {
		hints = append(hints, r.Must[missed[0]][1])
	}
	return hints
}

func gradeModelAnswer(model, answer string, lang models.Language) Result {
	res := Result{
		Level:           models.QuizIncorrect,
		SatisfiedGroups: []int{},
		MissedGroups:    []int{},
	}
	if model == "" {
		res.Feedback = message(lang, "No answer key for this card.", "Esta tarjeta no tiene respuesta para comparar.")
		return res
	}
	res.Graded = true

	if matchesModel(model, answer) {
		res.Level = models.QuizCorrect
		res.Score = 1
	}
	res.Feedback = feedback(res.Level, lang, nil)
	return res
}

func matchesModel(model, answer string) bool {
	if answer == "" {
		return false
	}
	if answer == model {
		return true
	}
	shorter := min(utf8.RuneCountInString(model), utf8.RuneCountInString(answer))
	if shorter < MinContainmentLen {
		return false
	}
	return strings.Contains(model, answer) || strings.Contains(answer, model)
}

func feedback(level models.QuizLevel, lang models.Language, hints []string) string {
	var msg string
	switch level {
	case models.QuizCorrect:
		return message(lang, "Correct!", "¡Correcto!")
	case models.QuizAlmost:
		msg = message(lang, "Almost!", "¡Casi!")
	default:
		msg = message(lang, "Not yet.", "Todavía no.")
	}
	if len(hints) == 0 {
		return msg + " " + message(lang, "Compare with the answer card.", "Compara con la tarjeta de respuesta.")
	}
	quoted := make([]string, len(hints))
	for i, h := range hints {
		quoted[i] = fmt.Sprintf("%q", h)
	}
	return fmt.Sprintf("%s %s %s.", msg, message(lang, "Try including", "Intenta incluir"), strings.Join(quoted, message(lang, " or ", " o ")))
}

func message(lang models.Language, en, es string) string {
	if lang == models.LanguageSpanish {
		return es
	}
	return en
}
