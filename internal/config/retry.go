package config

import (
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/foundation/normalization"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryModes = normalization.New(RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential)

// NormalizeRetryBackoff converts arbitrary user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	m, _ := retryModes.Normalize(raw)
	return m
}

// RetryConfig holds the backoff settings for transient media fetch failures.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}
