package util

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	assert := assert.New(t)
	val := GetEnv("ANCHOR_CORE_TEST_UNSET", "fallback")
	assert.Equal("fallback", val, "GetEnv should fall through to default when unset")
	os.Setenv("ANCHOR_CORE_TEST_UNSET", "set")
	defer os.Unsetenv("ANCHOR_CORE_TEST_UNSET")
	val = GetEnv("ANCHOR_CORE_TEST_UNSET", "fallback")
	assert.Equal("set", val, "GetEnv should prefer the set value")
}

func TestGetEnvInt(t *testing.T) {
	assert.Equal(t, 7, GetEnvInt("ANCHOR_CORE_TEST_INT_UNSET", 7))
	os.Setenv("ANCHOR_CORE_TEST_INT", "42")
	defer os.Unsetenv("ANCHOR_CORE_TEST_INT")
	assert.Equal(t, 42, GetEnvInt("ANCHOR_CORE_TEST_INT", 7))
	os.Setenv("ANCHOR_CORE_TEST_INT", "not-a-number")
	assert.Equal(t, 7, GetEnvInt("ANCHOR_CORE_TEST_INT", 7))
}

func TestGetEnvDuration(t *testing.T) {
	os.Setenv("ANCHOR_CORE_TEST_MS", "1500")
	defer os.Unsetenv("ANCHOR_CORE_TEST_MS")
	assert.Equal(t, 1500*time.Millisecond, GetEnvDuration("ANCHOR_CORE_TEST_MS", time.Second))
}

func TestLogError(t *testing.T) {
	assert.Nil(t, LogError(nil))
	err := errors.New("boom")
	assert.Equal(t, err, LogError(err))
}

func TestLoggerErrorNilLogger(t *testing.T) {
	// Must not panic when no logger is injected.
	err := errors.New("boom")
	assert.Equal(t, err, LoggerError(nil, err))
}
