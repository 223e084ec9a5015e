package uiutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFriendlyRelativeTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{name: "future", at: now.Add(time.Hour), want: "just now"},
		{name: "seconds", at: now.Add(-30 * time.Second), want: "just now"},
		{name: "one minute", at: now.Add(-time.Minute), want: "1 minute ago"},
		{name: "minutes", at: now.Add(-5 * time.Minute), want: "5 minutes ago"},
		{name: "hours", at: now.Add(-3 * time.Hour), want: "3 hours ago"},
		{name: "one day", at: now.Add(-25 * time.Hour), want: "1 day ago"},
		{name: "old", at: now.Add(-30 * 24 * time.Hour), want: FormatFriendlyDateTime(now.Add(-30 * 24 * time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FriendlyRelativeTime(tt.at, now))
		})
	}
}

func TestFormatScheduled(t *testing.T) {
	ts := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, FormatFriendlyDateTime(ts), FormatScheduled("2025-03-10T14:30:00Z"))
	assert.Equal(t, FormatFriendlyDateTime(ts), FormatScheduled("2025-03-10T14:30:00"))
	assert.Equal(t, "tomorrow-ish", FormatScheduled("tomorrow-ish"))
	assert.Empty(t, FormatFriendlyDateTime(time.Time{}))
}

func TestTruncateWithEllipsis(t *testing.T) {
	assert.Equal(t, "short", TruncateWithEllipsis("short", 10))
	assert.Equal(t, "abc…", TruncateWithEllipsis("abcdefgh", 4))
	assert.Equal(t, "…", TruncateWithEllipsis("abcdefgh", 1))
}
