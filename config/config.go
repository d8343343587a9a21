// Package config holds every tunable the gateway exposes (spec.md §6),
// loaded as defaults overridden field-by-field by an optional YAML file.
// The decode-then-merge shape is grounded on the teacher's
// parseGeneratorConfigFromBytes/MergeGeneratorConfig pair
// (database/database.go), adapted from dump/diff knobs to admission-pipeline
// knobs and from string-or-unset fields to int/bool zero-value overrides.
package config

import (
	"fmt"
	"time"
)

// Config is every recognized gateway setting, in seconds/counts as declared
// in a YAML file; the time.Duration conversions are applied by the
// RateWindow, ApprovalTTL, AcquireTimeout, QueryTimeout and RecoveryTimeout
// methods.
type Config struct {
	MaxComplexity   int  `yaml:"max_complexity"`
	MaxRows         int  `yaml:"max_rows"`
	AllowCrossJoins bool `yaml:"allow_cross_joins"`

	RateMax           int `yaml:"rate_max"`
	RateWindowSeconds int `yaml:"rate_window_seconds"`

	ApprovalTTLSeconds int `yaml:"approval_ttl_seconds"`

	PoolSize              int `yaml:"pool_size"`
	AcquireTimeoutSeconds int `yaml:"acquire_timeout_seconds"`
	QueryTimeoutSeconds   int `yaml:"query_timeout_seconds"`
	FetchChunk            int `yaml:"fetch_chunk"`

	FailureThreshold       int `yaml:"failure_threshold"`
	RecoveryTimeoutSeconds int `yaml:"recovery_timeout_seconds"`
	SuccessThreshold       int `yaml:"success_threshold"`

	AuditBufferSize int `yaml:"audit_buffer_size"`
}

// Default returns the baseline configuration spec.md §6 specifies before
// any file or flag overrides are applied.
func Default() Config {
	return Config{
		MaxComplexity:   50,
		MaxRows:         10000,
		AllowCrossJoins: false,

		RateMax:           60,
		RateWindowSeconds: 60,

		ApprovalTTLSeconds: 300,

		PoolSize:              2,
		AcquireTimeoutSeconds: 30,
		QueryTimeoutSeconds:   5,
		FetchChunk:            1000,

		FailureThreshold:       5,
		RecoveryTimeoutSeconds: 60,
		SuccessThreshold:       2,

		AuditBufferSize: 256,
	}
}

// Merge overrides base with every non-zero field set in override, following
// the teacher's MergeGeneratorConfig field-by-field convention.
func Merge(base, override Config) Config {
	result := base

	if override.MaxComplexity != 0 {
		result.MaxComplexity = override.MaxComplexity
	}
	if override.MaxRows != 0 {
		result.MaxRows = override.MaxRows
	}
	if override.AllowCrossJoins {
		result.AllowCrossJoins = true
	}
	if override.RateMax != 0 {
		result.RateMax = override.RateMax
	}
	if override.RateWindowSeconds != 0 {
		result.RateWindowSeconds = override.RateWindowSeconds
	}
	if override.ApprovalTTLSeconds != 0 {
		result.ApprovalTTLSeconds = override.ApprovalTTLSeconds
	}
	if override.PoolSize != 0 {
		result.PoolSize = override.PoolSize
	}
	if override.AcquireTimeoutSeconds != 0 {
		result.AcquireTimeoutSeconds = override.AcquireTimeoutSeconds
	}
	if override.QueryTimeoutSeconds != 0 {
		result.QueryTimeoutSeconds = override.QueryTimeoutSeconds
	}
	if override.FetchChunk != 0 {
		result.FetchChunk = override.FetchChunk
	}
	if override.FailureThreshold != 0 {
		result.FailureThreshold = override.FailureThreshold
	}
	if override.RecoveryTimeoutSeconds != 0 {
		result.RecoveryTimeoutSeconds = override.RecoveryTimeoutSeconds
	}
	if override.SuccessThreshold != 0 {
		result.SuccessThreshold = override.SuccessThreshold
	}
	if override.AuditBufferSize != 0 {
		result.AuditBufferSize = override.AuditBufferSize
	}

	return result
}

// Validate enforces the startup range checks spec.md's supplemented
// features call for: a gateway should refuse to start with a nonsensical
// bound rather than admit every query or never admit one.
func (c Config) Validate() error {
	switch {
	case c.MaxComplexity <= 0:
		return fmt.Errorf("max_complexity must be positive, got %d", c.MaxComplexity)
	case c.MaxRows <= 0:
		return fmt.Errorf("max_rows must be positive, got %d", c.MaxRows)
	case c.RateMax <= 0:
		return fmt.Errorf("rate_max must be positive, got %d", c.RateMax)
	case c.RateWindowSeconds <= 0:
		return fmt.Errorf("rate_window_seconds must be positive, got %d", c.RateWindowSeconds)
	case c.ApprovalTTLSeconds <= 0:
		return fmt.Errorf("approval_ttl_seconds must be positive, got %d", c.ApprovalTTLSeconds)
	case c.PoolSize <= 0:
		return fmt.Errorf("pool_size must be positive, got %d", c.PoolSize)
	case c.AcquireTimeoutSeconds <= 0:
		return fmt.Errorf("acquire_timeout_seconds must be positive, got %d", c.AcquireTimeoutSeconds)
	case c.QueryTimeoutSeconds <= 0:
		return fmt.Errorf("query_timeout_seconds must be positive, got %d", c.QueryTimeoutSeconds)
	case c.FetchChunk <= 0:
		return fmt.Errorf("fetch_chunk must be positive, got %d", c.FetchChunk)
	case c.FailureThreshold <= 0:
		return fmt.Errorf("failure_threshold must be positive, got %d", c.FailureThreshold)
	case c.RecoveryTimeoutSeconds <= 0:
		return fmt.Errorf("recovery_timeout_seconds must be positive, got %d", c.RecoveryTimeoutSeconds)
	case c.SuccessThreshold <= 0:
		return fmt.Errorf("success_threshold must be positive, got %d", c.SuccessThreshold)
	}
	return nil
}

func (c Config) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSeconds) * time.Second
}

func (c Config) ApprovalTTL() time.Duration {
	return time.Duration(c.ApprovalTTLSeconds) * time.Second
}

func (c Config) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutSeconds) * time.Second
}

func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

func (c Config) RecoveryTimeout() time.Duration {
	return time.Duration(c.RecoveryTimeoutSeconds) * time.Second
}
