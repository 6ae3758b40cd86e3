package storage

import (
	"testing"
	"time"
)

func TestSourceKey(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	got := SourceKey("job-1", "My Holiday Video.mp4", now)
	want := "uploads/job-1/20260314_092653_My_Holiday_Video.mp4"
	if got != want {
		t.Errorf("SourceKey = %q, want %q", got, want)
	}
}

func TestOutputKey(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "processed/job-1/segment_001.mp4"},
		{9, "processed/job-1/segment_010.mp4"},
		{99, "processed/job-1/segment_100.mp4"},
	}

	for _, tt := range tests {
		if got := OutputKey("job-1", tt.index); got != tt.want {
			t.Errorf("OutputKey(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"video.mp4", "video.mp4"},
		{"my video (1).mp4", "my_video__1_.mp4"},
		{"../../etc/passwd", "passwd"},
		{"héllo.mov", "h_llo.mov"},
		{"", "video"},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
