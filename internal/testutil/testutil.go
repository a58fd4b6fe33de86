package testutil

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vytor/starcards/internal/db"
	"github.com/vytor/starcards/internal/models"
)

// NewTestDB creates an in-memory SQLite database with all migrations applied.
func NewTestDB(t *testing.T) *sql.DB {
	database, err := db.Open("file::memory:")
	require.NoError(t, err)
	return database.DB
}

// MustClose closes a resource and fails the test on error.
func MustClose(t *testing.T, closer interface{ Close() error }) {
	require.NoError(t, closer.Close())
}

// Card builds a catalog card with English text and default image paths.
func Card(id string, unit int) models.Card {
	return models.Card{
		ID:                id,
		Unit:              unit,
		QuestionImagePath: "assets/" + id + "Q.png",
		AnswerImagePath:   "assets/" + id + "A.png",
	}
}
