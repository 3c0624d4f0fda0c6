package db

import (
	"time"

	"github.com/google/uuid"
)

// ContentRecord is one row of the content table.
type ContentRecord struct {
	ID              uuid.UUID `json:"id"`
	Topic           string    `json:"topic"`
	ContentType     string    `json:"content_type"`
	WordLength      int       `json:"word_length"`
	Prompt          string    `json:"prompt"`
	Content         string    `json:"content"`
	PlagiarismScore float64   `json:"plagiarism_score"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// History limits.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// normalizeLimit maps non-positive limits to the default and caps large ones.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
