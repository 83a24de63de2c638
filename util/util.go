package util

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/tendermint/tendermint/libs/log"
)

// LogError : Log error to stdout if it exists. Used in contexts with no injected logger.
func LogError(err error) error {
	if err != nil {
		fmt.Println(err)
	}
	return err
}

// LoggerError : Log error if it exists, using a structured logger, tagging the
// calling function so cycle failures can be traced back to a component.
func LoggerError(logger log.Logger, err error) error {
	if err != nil && logger != nil {
		logger.Error(fmt.Sprintf("error in %s: %s", callerName(2), err.Error()))
	}
	return err
}

func callerName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	parts := strings.Split(fn.Name(), "/")
	return parts[len(parts)-1]
}

// GetEnv : Return the named environment variable, or def if unset/empty.
func GetEnv(key string, def string) string {
	value := os.Getenv(key)
	if len(value) == 0 {
		return def
	}
	return value
}

// GetEnvInt : Return the named environment variable parsed as int, or def if unset/unparsable.
func GetEnvInt(key string, def int) int {
	value := os.Getenv(key)
	if len(value) == 0 {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}

// GetEnvDuration : Return the named environment variable parsed as milliseconds, or def if unset/unparsable.
func GetEnvDuration(key string, def time.Duration) time.Duration {
	value := os.Getenv(key)
	if len(value) == 0 {
		return def
	}
	ms, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
