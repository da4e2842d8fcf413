package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadHostelConfigDefaults(t *testing.T) {
	h := LoadHostelConfig()
	assert.Equal(t, 30, h.Rooms)
	assert.Equal(t, 3, h.BedsPerRoom)
	assert.Equal(t, 30*24*time.Hour, h.RecycleRetention)
}

func TestLoadHostelConfigClampsBedsPerRoom(t *testing.T) {
	t.Setenv("HOSTEL_BEDS_PER_ROOM", "40")
	assert.Equal(t, 26, LoadHostelConfig().BedsPerRoom)
}

func TestRateLimitClamping(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, time.Minute, envDur("X_DUR", time.Minute))
	assert.True(t, envBool("X_BOOL", true))
}

func TestParseMethodsUppercases(t *testing.T) {
	m := parseMethods(" get, head ,")
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, m)
}

func TestRedisConfigHostPortWins(t *testing.T) {
	t.Setenv("REDIS_ADDR", "a:1")
	t.Setenv("REDIS_HOST", "b")
	t.Setenv("REDIS_PORT", "2")
	assert.Equal(t, "b:2", LoadRedisConfig().Addr)
}

func TestSplitListTrimsAndDropsEmpty(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a, ,http://b "))
	assert.Nil(t, splitList(""))
}
