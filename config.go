package padkit

import (
	"os"
	"strconv"
	"time"
)

// Default pool limits and maintenance cadence.
const (
	DefaultGlobalVoiceCeiling = 32
	DefaultPerPadCeiling      = 4
	DefaultVoiceTimeout       = 30 * time.Second
	DefaultCleanupInterval    = time.Second
)

// backoffFactor stretches the cleanup interval after a failed pass.
const backoffFactor = 5

// Config holds configuration for voice manager initialization. Zero values
// fall back to the defaults above; invalid values are rejected by
// NewVoiceManager.
type Config struct {
	GlobalVoiceCeiling int           // Maximum concurrent voices across all pads
	PerPadCeiling      int           // Maximum concurrent voices per pad
	VoiceTimeout       time.Duration // Age at which a voice is reclaimed by cleanup
	CleanupInterval    time.Duration // Cadence of the background cleanup pass
	ErrorHandler       ErrorHandler  // Optional: defaults to DefaultErrorHandler
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		GlobalVoiceCeiling: DefaultGlobalVoiceCeiling,
		PerPadCeiling:      DefaultPerPadCeiling,
		VoiceTimeout:       DefaultVoiceTimeout,
		CleanupInterval:    DefaultCleanupInterval,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by environment variables
// where present. Unparseable values are ignored.
//
//	PADKIT_GLOBAL_VOICE_CEILING  int
//	PADKIT_PER_PAD_CEILING       int
//	PADKIT_VOICE_TIMEOUT_MS      int
//	PADKIT_CLEANUP_INTERVAL_MS   int
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("PADKIT_GLOBAL_VOICE_CEILING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GlobalVoiceCeiling = n
		}
	}
	if v := os.Getenv("PADKIT_PER_PAD_CEILING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PerPadCeiling = n
		}
	}
	if v := os.Getenv("PADKIT_VOICE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.VoiceTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("PADKIT_CLEANUP_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CleanupInterval = time.Duration(n) * time.Millisecond
		}
	}

	return cfg
}
