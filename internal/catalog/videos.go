package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vidqueue/internal/services"
)

// DefaultListLimit bounds List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// Create inserts a new pending video. ID, Title and SourcePath are required.
func (s *Store) Create(ctx context.Context, video *Video) error {
	if video == nil {
		return errors.New("create video: nil record")
	}
	if strings.TrimSpace(video.ID) == "" {
		return errors.New("create video: id required")
	}
	if strings.TrimSpace(video.Title) == "" {
		return errors.New("create video: title required")
	}
	if strings.TrimSpace(video.SourcePath) == "" {
		return errors.New("create video: source path required")
	}
	if video.Status == "" {
		video.Status = StatusPending
	}
	now := time.Now().UTC()
	video.CreatedAt = now
	video.UpdatedAt = now

	tags, err := nullableJSON(video.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	renditions, err := nullableJSON(video.Renditions)
	if err != nil {
		return fmt.Errorf("encode renditions: %w", err)
	}
	original, err := json.Marshal(video.Original)
	if err != nil {
		return fmt.Errorf("encode source metadata: %w", err)
	}

	_, err = s.execWithRetry(ctx,
		`INSERT INTO videos (`+videoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ID,
		video.Title,
		nullableString(video.Description),
		tags,
		video.SourcePath,
		string(original),
		string(video.Status),
		nullableString(video.ThumbnailKey),
		nullableString(video.DefaultKey),
		renditions,
		nullableString(video.ErrorMessage),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// Get fetches a video by id. A missing record returns nil without error.
func (s *Store) Get(ctx context.Context, id string) (*Video, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// List returns the newest videos first.
func (s *Store) List(ctx context.Context, limit int) ([]*Video, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}

// MarkProcessing moves a video into processing.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE videos SET conversion_status = ?, error_message = NULL, updated_at = ? WHERE id = ?`,
		string(StatusProcessing), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return requireRow(res, id)
}

// ApplyOutcome writes the terminal conversion update for a video.
func (s *Store) ApplyOutcome(ctx context.Context, id string, outcome Outcome) error {
	if outcome.Status != StatusCompleted && outcome.Status != StatusFailed {
		return fmt.Errorf("apply outcome: status %q is not terminal", outcome.Status)
	}
	renditions, err := nullableJSON(outcome.Renditions)
	if err != nil {
		return fmt.Errorf("encode renditions: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE videos
         SET conversion_status = ?, thumbnail_key = ?, default_key = ?, renditions_json = ?,
             error_message = ?, updated_at = ?
         WHERE id = ?`,
		string(outcome.Status),
		nullableString(outcome.ThumbnailKey),
		nullableString(outcome.DefaultKey),
		renditions,
		nullableString(outcome.ErrorMessage),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("apply outcome: %w", err)
	}
	return requireRow(res, id)
}

// RecordArtifacts stores the artifacts produced so far without changing the
// conversion status, so finished renditions are playable while later tiers encode.
func (s *Store) RecordArtifacts(ctx context.Context, id string, outcome Outcome) error {
	renditions, err := nullableJSON(outcome.Renditions)
	if err != nil {
		return fmt.Errorf("encode renditions: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE videos SET thumbnail_key = ?, default_key = ?, renditions_json = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(outcome.ThumbnailKey),
		nullableString(outcome.DefaultKey),
		renditions,
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("record artifacts: %w", err)
	}
	return requireRow(res, id)
}

// FailInterrupted marks pending and processing videos as failed. It runs at
// daemon start, when no job from a previous process can still be running.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE videos SET conversion_status = ?, error_message = ?, updated_at = ?
         WHERE conversion_status IN (?, ?)`,
		string(StatusFailed), InterruptedReason, formatTime(time.Now()),
		string(StatusPending), string(StatusProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted videos: %w", err)
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("video %s: %w", id, services.ErrNotFound)
	}
	return nil
}
