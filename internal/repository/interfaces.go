package repository

import (
	"context"
)

// Storage keys of the documents kept in DocumentRepository.
const (
	LedgerKey      = "star_progress_v3"
	RecentNamesKey = "star_recent_names"
)

// DocumentRepository is durable key/value storage for whole JSON documents.
type DocumentRepository interface {
	// Get returns the stored body, or nil and no error when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte) error
}

// BadgeRepository tracks which badges were already announced to each student.
type BadgeRepository interface {
	Celebrated(ctx context.Context, student string) (map[string]bool, error)
	// MarkCelebrated reports whether this call recorded the celebration, false
	// when it was already recorded.
	MarkCelebrated(ctx context.Context, student, badgeID string) (bool, error)
	ClearAll(ctx context.Context) error
}
