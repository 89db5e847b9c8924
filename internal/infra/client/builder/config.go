package builder

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sitecraft/sitegen-backend/pkg/env"
)

type BuilderConfig struct {
	schema       string
	host         string
	port         string
	token        string
	maxAttempts  uint64
	pollInterval time.Duration
	pollDeadline time.Duration
}

func NewBuilderConfig() *BuilderConfig {
	maxAttempts, err := strconv.Atoi(env.GetEnv("BUILDER_MAX_ATTEMPTS", "4"))
	if err != nil {
		maxAttempts = 4
	}
	if maxAttempts < 1 {
		// maxAttempts-1 feeds backoff.WithMaxRetries as a uint64; zero
		// would underflow into unbounded retries.
		maxAttempts = 1
	}
	pollInterval, err := strconv.Atoi(env.GetEnv("BUILDER_POLL_INTERVAL", "3"))
	if err != nil {
		pollInterval = 3
	}
	pollDeadline, err := strconv.Atoi(env.GetEnv("BUILDER_POLL_DEADLINE", "90"))
	if err != nil {
		pollDeadline = 90
	}
	return &BuilderConfig{
		schema:       env.GetEnv("BUILDER_SCHEMA", "https"),
		host:         env.GetEnv("BUILDER_HOST", "localhost"),
		port:         env.GetEnv("BUILDER_PORT", "443"),
		token:        env.GetEnv("BUILDER_TOKEN", ""),
		maxAttempts:  uint64(maxAttempts),
		pollInterval: time.Duration(pollInterval) * time.Second,
		pollDeadline: time.Duration(pollDeadline) * time.Second,
	}
}

func (c *BuilderConfig) getURL() string {
	return fmt.Sprintf("%v://%v:%v", c.schema, c.host, c.port)
}
