package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SourceKey builds the object key for an uploaded source video:
// uploads/{job_id}/{YYYYMMDD_HHMMSS}_{sanitized_filename}.
func SourceKey(jobID, filename string, now time.Time) string {
	return fmt.Sprintf("uploads/%s/%s_%s", jobID, now.UTC().Format("20060102_150405"), SanitizeFilename(filename))
}

// OutputKey builds the object key for a processed segment:
// processed/{job_id}/segment_{NNN}.mp4 (1-based, zero-padded).
func OutputKey(jobID string, segmentIndex int) string {
	return fmt.Sprintf("processed/%s/segment_%03d.mp4", jobID, segmentIndex+1)
}

// SanitizeFilename strips path components and replaces characters that are
// unsafe in object keys.
func SanitizeFilename(filename string) string {
	name := filepath.Base(filename)
	if name == "." || name == "/" {
		return "video"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "video"
	}
	return b.String()
}
