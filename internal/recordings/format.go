package recordings

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders integer seconds as MM:SS. Minutes are not capped at
// 59, so 3600 seconds renders as "60:00".
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// DisplayDate resolves a recording's display date: client-reported recordedAt
// when present, otherwise creation time, truncated to the calendar day.
func DisplayDate(recordedAt, createdAt time.Time) string {
	d := recordedAt
	if d.IsZero() {
		d = createdAt
	}
	return d.UTC().Format("2006-01-02")
}

// AudioFormat derives the audio format from a MIME type subtype
// ("audio/mpeg" -> "mpeg").
func AudioFormat(contentType string) string {
	if i := strings.Index(contentType, "/"); i >= 0 && i+1 < len(contentType) {
		return contentType[i+1:]
	}
	return "unknown"
}
