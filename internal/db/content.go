package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/content-guard/internal/generation"
)

// SaveContent stores an accepted generation result. It implements generation.Store.
func (db *DB) SaveContent(ctx context.Context, req generation.Request, accepted generation.AcceptedResult) error {
	_, err := db.InsertContent(ctx, RecordFrom(req, accepted))
	return err
}

// RecordFrom builds the row for an accepted result.
func RecordFrom(req generation.Request, accepted generation.AcceptedResult) ContentRecord {
	return ContentRecord{
		Topic:           req.Topic,
		ContentType:     string(req.ContentType),
		WordLength:      req.TargetLength,
		Prompt:          accepted.Prompt,
		Content:         accepted.Content,
		PlagiarismScore: accepted.Score,
		GeneratedAt:     accepted.GeneratedAt,
	}
}

// InsertContent inserts a record and returns its ID. A nil ID is generated.
func (db *DB) InsertContent(ctx context.Context, rec ContentRecord) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.pool.Exec(ctx,
		`INSERT INTO content (id, topic, contenttype, wordlength, prompt, content, plagiarism_score, generatedat)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Topic, rec.ContentType, rec.WordLength, rec.Prompt, rec.Content, rec.PlagiarismScore, rec.GeneratedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save content: %w", err)
	}
	return rec.ID, nil
}

// History returns the most recently generated records first.
// A non-positive limit selects DefaultHistoryLimit.
func (db *DB) History(ctx context.Context, limit int) ([]ContentRecord, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.pool.Query(ctx,
		`SELECT id, topic, contenttype, wordlength, prompt, content, plagiarism_score, generatedat
		 FROM content ORDER BY generatedat DESC LIMIT $1`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	defer rows.Close()

	records := make([]ContentRecord, 0)
	for rows.Next() {
		var rec ContentRecord
		if err := rows.Scan(&rec.ID, &rec.Topic, &rec.ContentType, &rec.WordLength, &rec.Prompt, &rec.Content, &rec.PlagiarismScore, &rec.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return records, nil
}
