package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextMidnight(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid afternoon",
			now:  time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC),
			want: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly midnight rolls to the next day",
			now:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "just before midnight",
			now:  time.Date(2024, 6, 1, 23, 59, 59, 0, time.UTC),
			want: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "month boundary",
			now:  time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC),
			want: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := nextMidnight(test.now)
			require.True(t, got.Equal(test.want), "got %s, want %s", got, test.want)
		})
	}
}
