package overlay

import (
	"fmt"
	"strings"

	"github.com/clipforge/clipforge/internal/config"
)

// VideoInfo carries the frame dimensions the filter is rendered against.
type VideoInfo struct {
	Width  int
	Height int
}

// IsVertical reports whether the frame is taller than wide.
func (v VideoInfo) IsVertical() bool { return v.Height > v.Width }

// Overlay position within the frame.
const (
	PositionTopLeft     = "top_left"
	PositionTopRight    = "top_right"
	PositionBottomLeft  = "bottom_left"
	PositionBottomRight = "bottom_right"
)

// Reference frame the safe-zone rectangle constants are expressed against.
const (
	refFrameWidth  = 1080
	refFrameHeight = 1920
)

// Style holds the overlay rendering parameters. Build one from config with
// StyleFromConfig; zero values are not usable.
type Style struct {
	FontSizeDivisor int
	MinFontSize     int
	MaxFontSize     int
	RectWidthRef    int // safe-zone rectangle width on the reference frame
	RectHeightRef   int
	PaddingRef      int
	TextColor       string
	BorderColor     string
	BorderWidth     int
	Background      string
	Position        string
}

// StyleFromConfig builds a Style from the configured overlay constants.
func StyleFromConfig(cfg *config.Config) Style {
	return Style{
		FontSizeDivisor: cfg.FontSizeDivisor,
		MinFontSize:     cfg.MinFontSize,
		MaxFontSize:     cfg.MaxFontSize,
		RectWidthRef:    cfg.RectWidthRef,
		RectHeightRef:   cfg.RectHeightRef,
		PaddingRef:      cfg.PaddingRef,
		TextColor:       cfg.TextColor,
		BorderColor:     cfg.TextBorderColor,
		BorderWidth:     cfg.TextBorderWidth,
		Background:      cfg.TextBackground,
		Position:        PositionTopLeft,
	}
}

// EscapeDrawtext escapes the characters that are special inside an ffmpeg
// drawtext directive: backslash, single quote, colon and percent.
func EscapeDrawtext(text string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return r.Replace(text)
}

// FontSize computes the overlay font size for a frame: the shorter axis
// divided by the configured divisor, clamped to [MinFontSize, MaxFontSize].
func (s Style) FontSize(info VideoInfo) int {
	var size int
	if info.IsVertical() {
		size = info.Width / s.FontSizeDivisor
	} else {
		size = info.Height / s.FontSizeDivisor
	}
	if size < s.MinFontSize {
		size = s.MinFontSize
	}
	if size > s.MaxFontSize {
		size = s.MaxFontSize
	}
	return size
}

// Filter builds the complete drawtext filter chain for one overlay string.
// Multi-line text (explicit newlines, then greedy wrap at the estimated
// safe-zone width) yields one drawtext directive per line, stacked vertically.
// Lines that overflow the safe-zone height are truncated with an ellipsis.
func (s Style) Filter(text string, info VideoInfo) string {
	fontSize := s.FontSize(info)

	// Scale the reference safe-zone rectangle to the actual frame.
	rectWidth := info.Width * s.RectWidthRef / refFrameWidth
	rectHeight := info.Height * s.RectHeightRef / refFrameHeight
	paddingX := info.Width * s.PaddingRef / refFrameWidth
	paddingY := info.Height * s.PaddingRef / refFrameHeight

	var baseX, baseY int
	switch s.Position {
	case PositionBottomLeft:
		baseX = paddingX
		baseY = info.Height - rectHeight - paddingY
	case PositionTopRight:
		baseX = info.Width - rectWidth - paddingX
		baseY = paddingY
	case PositionBottomRight:
		baseX = info.Width - rectWidth - paddingX
		baseY = info.Height - rectHeight - paddingY
	default:
		baseX = paddingX
		baseY = paddingY
	}

	estCharWidth := float64(fontSize) * 0.6
	maxCharsPerLine := int(float64(rectWidth) / estCharWidth)
	if maxCharsPerLine < 8 {
		maxCharsPerLine = 8
	}

	lines := wrapText(text, maxCharsPerLine)

	lineHeight := fontSize * 12 / 10
	maxLines := rectHeight / lineHeight
	if maxLines < 1 {
		maxLines = 1
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		last := lines[len(lines)-1]
		if len(last) > maxCharsPerLine-3 {
			last = last[:maxCharsPerLine-3]
		}
		lines[len(lines)-1] = last + "..."
	}

	// Drop lines that are empty after trimming.
	kept := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	lines = kept
	if len(lines) == 0 {
		return "drawtext=text='':fontsize=1:x=0:y=0"
	}

	filters := make([]string, 0, len(lines))
	for i, line := range lines {
		y := baseY + i*lineHeight
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':fontsize=%d:fontcolor=%s:borderw=%d:bordercolor=%s:box=1:boxcolor=%s:boxborderw=0:x=%d:y=%d",
			EscapeDrawtext(line), fontSize, s.TextColor, s.BorderWidth, s.BorderColor, s.Background, baseX, y,
		))
	}
	return strings.Join(filters, ",")
}

// wrapText splits on explicit newlines first, then greedily wraps each
// paragraph at maxChars, breaking on spaces. Words longer than maxChars are
// hard-split.
func wrapText(text string, maxChars int) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			continue
		}
		current := ""
		for _, word := range words {
			for len(word) > maxChars {
				if current != "" {
					lines = append(lines, current)
					current = ""
				}
				lines = append(lines, word[:maxChars])
				word = word[maxChars:]
			}
			switch {
			case current == "":
				current = word
			case len(current)+1+len(word) <= maxChars:
				current += " " + word
			default:
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}
