package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const videoColumns = "id, title, description, tags_json, source_path, original_json, conversion_status, thumbnail_key, default_key, renditions_json, error_message, created_at, updated_at"

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		id           string
		title        string
		description  sql.NullString
		tagsRaw      sql.NullString
		sourcePath   string
		originalRaw  sql.NullString
		statusStr    string
		thumbnailKey sql.NullString
		defaultKey   sql.NullString
		renditions   sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&title,
		&description,
		&tagsRaw,
		&sourcePath,
		&originalRaw,
		&statusStr,
		&thumbnailKey,
		&defaultKey,
		&renditions,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	video := &Video{
		ID:           id,
		Title:        title,
		Description:  description.String,
		SourcePath:   sourcePath,
		Status:       Status(statusStr),
		ThumbnailKey: thumbnailKey.String,
		DefaultKey:   defaultKey.String,
		ErrorMessage: errorMessage.String,
	}
	if tagsRaw.Valid && tagsRaw.String != "" {
		_ = json.Unmarshal([]byte(tagsRaw.String), &video.Tags)
	}
	if originalRaw.Valid && originalRaw.String != "" {
		_ = json.Unmarshal([]byte(originalRaw.String), &video.Original)
	}
	if renditions.Valid && renditions.String != "" {
		_ = json.Unmarshal([]byte(renditions.String), &video.Renditions)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		video.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		video.UpdatedAt = updated
	}
	return video, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// nullableJSON encodes value, storing NULL for nil or empty slices.
func nullableJSON[T any](value []T) (any, error) {
	if len(value) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
