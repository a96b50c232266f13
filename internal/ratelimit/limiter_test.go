package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khroma-labs/khroma/internal/core"
)

func TestDailyLimiter(t *testing.T) {
	t.Run("denies after quota", func(t *testing.T) {
		l := NewDailyLimiter(3)
		for i := 0; i < 3; i++ {
			require.NoError(t, l.Allow("203.0.113.7"))
		}
		err := l.Allow("203.0.113.7")
		assert.ErrorIs(t, err, core.ErrQuotaExceeded)
	})

	t.Run("callers are independent", func(t *testing.T) {
		l := NewDailyLimiter(1)
		require.NoError(t, l.Allow("a"))
		assert.ErrorIs(t, l.Allow("a"), core.ErrQuotaExceeded)
		assert.NoError(t, l.Allow("b"))
	})

	t.Run("window resets after 24h", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		l := NewDailyLimiter(1)
		l.now = func() time.Time { return now }

		require.NoError(t, l.Allow("a"))
		assert.ErrorIs(t, l.Allow("a"), core.ErrQuotaExceeded)

		now = now.Add(23 * time.Hour)
		assert.ErrorIs(t, l.Allow("a"), core.ErrQuotaExceeded, "still inside the rolling window")

		now = now.Add(2 * time.Hour)
		assert.NoError(t, l.Allow("a"), "window expired, counting restarts")
	})
}
