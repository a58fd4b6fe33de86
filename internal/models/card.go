package models

import "strings"

// Language selects which text, images and rubric of a card are active.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageSpanish Language = "es"
)

// ParseLanguage maps user and catalog spellings onto a Language.
// Anything unrecognized is English.
func ParseLanguage(s string) Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "es", "sp", "spa", "spanish", "español", "espanol":
		return LanguageSpanish
	default:
		return LanguageEnglish
	}
}

// Rubric is a list of must-have synonym groups. A group is satisfied when the
// answer contains any one of its phrases.
type Rubric struct {
	Must          [][]string `json:"must"`
	MinMustGroups int        `json:"minMustGroups,omitempty"`
}

// Card is one question/answer study item. Cards are immutable once the catalog
// has been loaded.
type Card struct {
	ID                   string              `json:"id"`
	Unit                 int                 `json:"unit"`
	QuestionImagePath    string              `json:"questionImage"`
	AnswerImagePath      string              `json:"answerImage"`
	QuestionImagePathAlt string              `json:"questionImageAlt,omitempty"`
	AnswerImagePathAlt   string              `json:"answerImageAlt,omitempty"`
	QuestionText         string              `json:"questionText,omitempty"`
	AnswerText           string              `json:"answerText,omitempty"`
	QuestionTextAlt      string              `json:"questionTextAlt,omitempty"`
	AnswerTextAlt        string              `json:"answerTextAlt,omitempty"`
	Rubric               map[Language]Rubric `json:"rubric,omitempty"`
}

// QuestionImage returns the question image for lang, falling back to English.
func (c Card) QuestionImage(lang Language) string {
	if lang == LanguageSpanish && c.QuestionImagePathAlt != "" {
		return c.QuestionImagePathAlt
	}
	return c.QuestionImagePath
}

// AnswerImage returns the answer image for lang, falling back to English.
func (c Card) AnswerImage(lang Language) string {
	if lang == LanguageSpanish && c.AnswerImagePathAlt != "" {
		return c.AnswerImagePathAlt
	}
	return c.AnswerImagePath
}

// QuestionFor returns the question text for lang, falling back to English.
func (c Card) QuestionFor(lang Language) string {
	if lang == LanguageSpanish && c.QuestionTextAlt != "" {
		return c.QuestionTextAlt
	}
	return c.QuestionText
}

// ModelAnswer returns the reference answer text for lang, falling back to English.
func (c Card) ModelAnswer(lang Language) string {
	if lang == LanguageSpanish && c.AnswerTextAlt != "" {
		return c.AnswerTextAlt
	}
	return c.AnswerText
}

// RubricFor returns the rubric defined for lang. There is no cross-language
// fallback: an English rubric cannot grade a Spanish answer.
func (c Card) RubricFor(lang Language) (Rubric, bool) {
	r, ok := c.Rubric[lang]
	if !ok || len(r.Must) == 0 {
		return Rubric{}, false
	}
	return r, true
}
