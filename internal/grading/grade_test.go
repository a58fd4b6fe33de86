package grading_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/starcards/internal/grading"
	"github.com/vytor/starcards/internal/models"
)

func photosynthesisCard() models.Card {
	return models.Card{
		ID:   "3a",
		Unit: 3,
		Rubric: map[models.Language]models.Rubric{
			models.LanguageEnglish: {
				Must:          [][]string{{"photosynthesis"}, {"sunlight", "light energy"}},
				MinMustGroups: 2,
			},
			models.LanguageSpanish: {
				Must: [][]string{{"fotosíntesis"}, {"luz solar", "energía de la luz"}, {"dióxido de carbono", "CO2"}},
			},
		},
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"¡La Fotosíntesis!":           "la fotosintesis",
		"  Plants   use\tSUNLIGHT. ":   "plants use sunlight",
		"niño---año":                   "nino ano",
		"CO2 + H2O -> C6H12O6":         "co2 h2o c6h12o6",
		"":                             "",
		"?!...":                        "",
		"Ça va, Müller?":               "ca va muller",
	}
	for in, want := range cases {
		assert.Equal(t, want, grading.Normalize(in), "input %q", in)
	}
}

func TestGrade_RubricCorrect(t *testing.T) {
	res := grading.Grade(photosynthesisCard(), "plants use sunlight for photosynthesis", models.LanguageEnglish)

	assert.Equal(t, models.QuizCorrect, res.Level)
	assert.True(t, res.Graded)
	assert.Equal(t, 1.0, res.Score)
	assert.Equal(t, []int{0, 1}, res.SatisfiedGroups)
	assert.Empty(t, res.MissedGroups)
	assert.Equal(t, "Correct!", res.Feedback)
}

func TestGrade_RubricIncorrect(t *testing.T) {
	res := grading.Grade(photosynthesisCard(), "plants grow", models.LanguageEnglish)

	assert.Equal(t, models.QuizIncorrect, res.Level)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, []int{0, 1}, res.MissedGroups)
	assert.Contains(t, res.Feedback, `"photosynthesis"`)
	assert.Contains(t, res.Feedback, `"sunlight"`)
}

func TestGrade_RubricAlmost(t *testing.T) {
	res := grading.Grade(photosynthesisCard(), "It uses LIGHT ENERGY", models.LanguageEnglish)

	assert.Equal(t, models.QuizAlmost, res.Level)
	assert.Equal(t, 0.5, res.Score)
	assert.Equal(t, []int{1}, res.SatisfiedGroups)
	assert.Equal(t, []int{0}, res.MissedGroups)
	assert.Equal(t, `Almost! Try including "photosynthesis".`, res.Feedback)
}

func TestGrade_SpanishRubricIgnoresAccents(t *testing.T) {
	// 3 groups, no minimum configured: ceil(0.6*3) = 2 needed.
	card := photosynthesisCard()

	res := grading.Grade(card, "La fotosintesis usa LUZ SOLAR", models.LanguageSpanish)
	assert.Equal(t, models.QuizCorrect, res.Level)
	assert.Equal(t, "¡Correcto!", res.Feedback)

	res = grading.Grade(card, "usa co2", models.LanguageSpanish)
	assert.Equal(t, models.QuizAlmost, res.Level)
	assert.Contains(t, res.Feedback, "¡Casi!")

	res = grading.Grade(card, "no sé", models.LanguageSpanish)
	assert.Equal(t, models.QuizIncorrect, res.Level)
	assert.Contains(t, res.Feedback, "Todavía no.")
}

func TestRequiredGroups(t *testing.T) {
	mk := func(n, min int) models.Rubric {
		r := models.Rubric{MinMustGroups: min}
		for i := 0; i < n; i++ {
			r.Must = append(r.Must, []string{"x"})
		}
		return r
	}
	assert.Equal(t, 1, grading.RequiredGroups(mk(1, 0)))
	assert.Equal(t, 2, grading.RequiredGroups(mk(2, 0)))
	assert.Equal(t, 2, grading.RequiredGroups(mk(3, 0)))
	assert.Equal(t, 3, grading.RequiredGroups(mk(5, 0)))
	assert.Equal(t, 6, grading.RequiredGroups(mk(10, 0)))
	assert.Equal(t, 4, grading.RequiredGroups(mk(4, 9)), "minimum is capped at the group count")
	assert.Equal(t, 1, grading.RequiredGroups(mk(4, 1)))
}

func TestGrade_FallbackToModelAnswer(t *testing.T) {
	card := models.Card{ID: "4a", Unit: 4, AnswerText: "The mitochondria", AnswerTextAlt: "La mitocondria"}

	cases := []struct {
		answer string
		lang   models.Language
		want   models.QuizLevel
	}{
		{"the Mitochondria!", models.LanguageEnglish, models.QuizCorrect},
		{"mitochondria", models.LanguageEnglish, models.QuizCorrect},
		{"I think it is the mitochondria of the cell", models.LanguageEnglish, models.QuizCorrect},
		{"the", models.LanguageEnglish, models.QuizIncorrect},
		{"nucleus", models.LanguageEnglish, models.QuizIncorrect},
		{"", models.LanguageEnglish, models.QuizIncorrect},
		{"la mitocondria", models.LanguageSpanish, models.QuizCorrect},
	}
	for _, tc := range cases {
		res := grading.Grade(card, tc.answer, tc.lang)
		assert.Equal(t, tc.want, res.Level, "answer %q", tc.answer)
		assert.True(t, res.Graded)
		assert.NotEqual(t, models.QuizAlmost, res.Level, "model-answer grading has no almost tier")
	}
}

func TestGrade_ShortContainmentIsNotEnough(t *testing.T) {
	card := models.Card{ID: "5a", Unit: 5, AnswerText: "cell"}

	assert.Equal(t, models.QuizCorrect, grading.Grade(card, "Cell.", models.LanguageEnglish).Level)
	assert.Equal(t, models.QuizIncorrect, grading.Grade(card, "a cell wall", models.LanguageEnglish).Level)
}

func TestGrade_NoAnswerKey(t *testing.T) {
	res := grading.Grade(models.Card{ID: "6a", Unit: 6}, "anything", models.LanguageEnglish)

	assert.False(t, res.Graded)
	assert.Equal(t, models.QuizIncorrect, res.Level)
	assert.NotEmpty(t, res.Feedback)
}

func TestGrade_IsPure(t *testing.T) {
	card := photosynthesisCard()
	first := grading.Grade(card, "sunlight", models.LanguageEnglish)
	second := grading.Grade(card, "sunlight", models.LanguageEnglish)

	require.Equal(t, first, second)
	assert.Equal(t, photosynthesisCard(), card, "grading does not modify the card")
}
