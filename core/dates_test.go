package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	local := func(y int, mo time.Month, d, h, mi, s int) time.Time {
		return time.Date(y, mo, d, h, mi, s, 0, time.Local)
	}

	tests := []struct {
		name  string
		in    string
		want  time.Time
		valid bool
	}{
		{name: "iso space", in: "2025-03-04 05:06:07", want: local(2025, 3, 4, 5, 6, 7), valid: true},
		{name: "iso minutes", in: "2025-03-04 05:06", want: local(2025, 3, 4, 5, 6, 0), valid: true},
		{name: "date only", in: "2025-03-04", want: local(2025, 3, 4, 0, 0, 0), valid: true},
		{name: "day first", in: "04/03/2025 05:06", want: local(2025, 3, 4, 5, 6, 0), valid: true},
		{name: "day first date", in: "04/03/2025", want: local(2025, 3, 4, 0, 0, 0), valid: true},
		{name: "naive iso T", in: "2025-03-04T05:06:07", want: local(2025, 3, 4, 5, 6, 7), valid: true},
		{name: "naive iso fraction", in: "2025-03-04T05:06:07.250000", want: local(2025, 3, 4, 5, 6, 7).Add(250 * time.Millisecond), valid: true},
		{name: "rss", in: "Tue, 04 Mar 2025 05:06:07 +0000", want: time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC), valid: true},
		{name: "rfc3339 zulu", in: "2025-03-04T05:06:07Z", want: time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC), valid: true},
		{name: "epoch seconds", in: "1741064767", want: time.Unix(1741064767, 0), valid: true},
		{name: "epoch millis", in: "1741064767123", want: time.Unix(1741064767, 0), valid: true},
		{name: "empty", in: "  ", valid: false},
		{name: "garbage", in: "hôm qua", valid: false},
		{name: "short digits", in: "12345", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			require.Equal(t, tt.valid, ok)
			if !tt.valid {
				assert.True(t, got.IsZero())
				return
			}
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
		})
	}
}

func TestFormatDisplayDate(t *testing.T) {
	assert.Equal(t, "", FormatDisplayDate(time.Time{}))
	assert.Equal(t, "04/03/2025 05:06", FormatDisplayDate(time.Date(2025, 3, 4, 5, 6, 59, 0, time.Local)))
}
