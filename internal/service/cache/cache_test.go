package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetBytes("k", []byte("v"), time.Minute))
	b, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), b)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.GetBytes("k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCacheWithoutTTLKeeps(t *testing.T) {
	c := NewTTLCache()
	c.Set("k", 42, 0)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok, err := c.GetBytes("k")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestReportKey(t *testing.T) {
	assert.Equal(t, "forecast:AAPL:500:neural", ReportKey("aapl", 500, true))
	assert.Equal(t, "forecast:AAPL:500:heuristic", ReportKey("AAPL", 500, false))
	assert.NotEqual(t, ReportKey("AAPL", 250, true), ReportKey("AAPL", 500, true))
}
