package ui

import (
	"fmt"
	"strings"
	"time"

	"speechinsight/internal/waveform"
)

// TimestampLayout renders recording times, e.g. "Mar 4, 2025 at 9:05 PM".
const TimestampLayout = "Jan 2, 2006 at 3:04 PM"

var barRunes = []rune("▁▂▃▄▅▆▇█")

// FormatTimestamp renders t in local time.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// FormatDuration renders d as mm:ss. Minutes are not wrapped into hours.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// RenderBars draws samples as width block characters after normalizing them.
func RenderBars(samples []float64, width int) string {
	bars := waveform.NormalizeN(samples, width)
	var b strings.Builder
	b.Grow(len(bars) * 3)
	top := len(barRunes) - 1
	for _, v := range bars {
		b.WriteRune(barRunes[int(v*float64(top)+0.5)])
	}
	return b.String()
}

// FormatPercent renders a [0,1] score as a whole percentage.
func FormatPercent(score float64) string {
	return fmt.Sprintf("%.0f%%", score*100)
}

// Truncate shortens s to width runes, ending with an ellipsis when cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}

// Wrap breaks text into lines no wider than width, splitting on spaces.
func Wrap(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			switch {
			case current == "":
				current = word
			case len(current)+1+len(word) <= width:
				current += " " + word
			default:
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	return lines
}
