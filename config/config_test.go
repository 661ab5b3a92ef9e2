package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(lookupMap(nil))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "ledger.db", cfg.DBPath)
	assert.Equal(t, "0.1", cfg.VATRate.String())
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.RedisAddress)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(lookupMap(map[string]string{
		"PORT":                   "9090",
		"DB_PATH":                ":memory:",
		"REDIS_ADDRESS":          "redis:6379",
		"LOCK_TTL_SECONDS":       "5",
		"VAT_RATE":               "0.07",
		"ORDER_CUTOFF_HOUR":      "15",
		"ALLOW_WEEKEND_DELIVERY": "true",
		"CORS_ALLOWED_ORIGINS":   "http://a.test, http://b.test",
	}))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, "redis:6379", cfg.RedisAddress)
	assert.Equal(t, 5*time.Second, cfg.LockTTL)
	assert.Equal(t, "0.07", cfg.VATRate.String())
	assert.Equal(t, 15, cfg.OrderCutoffHour)
	assert.True(t, cfg.AllowWeekendDelivery)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
}

func TestFromEnv_RejectsBadValues(t *testing.T) {
	for key, val := range map[string]string{
		"PORT":              "eighty",
		"LOCK_TTL_SECONDS":  "0",
		"VAT_RATE":          "-0.1",
		"ORDER_CUTOFF_HOUR": "24",
	} {
		_, err := FromEnv(lookupMap(map[string]string{key: val}))
		assert.Error(t, err, key)
	}
}

func TestLogError_WritesUniformFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("debug", &buf)

	LogError(logger, "order", "StartDelivery", "deduct stock", map[string]string{"order_no": "1"}, errors.New("boom"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "order", line["module"])
	assert.Equal(t, "StartDelivery", line["funcName"])
	assert.Equal(t, "deduct stock", line["context"])
	assert.Equal(t, "boom", line["msg"])
	assert.Equal(t, "error", line["level"])
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, NewLogger("loud").GetLevel())
	assert.Equal(t, logrus.WarnLevel, NewLogger("warn").GetLevel())
}
