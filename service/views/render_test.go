package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromNow(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "a few seconds ago"},
		{45 * time.Second, "a few seconds ago"},
		{90 * time.Second, "a minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{time.Hour, "an hour ago"},
		{5 * time.Hour, "5 hours ago"},
		{24 * time.Hour, "a day ago"},
		{3 * 24 * time.Hour, "3 days ago"},
		{45 * 24 * time.Hour, "a month ago"},
		{90 * 24 * time.Hour, "3 months ago"},
		{400 * 24 * time.Hour, "a year ago"},
		{3 * 365 * 24 * time.Hour, "3 years ago"},
		{-5 * time.Minute, "5 minutes from now"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, fromNow(now.Add(-tt.ago), now))
		})
	}
}

func TestBlockTime(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t,
		`<span class="time" title="2024-03-10 11:00:00 (UTC)">an hour ago</span>`,
		string(blockTime("2024-03-10T11:00:00Z", now)))
	assert.Equal(t,
		`<span class="time" title="2024-03-10 11:55:00 (UTC)">5 minutes ago</span>`,
		string(blockTime("1710071700000", now)))
	assert.Empty(t, blockTime("yesterday", now))
}
