package padkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 32, cfg.GlobalVoiceCeiling)
	assert.Equal(t, 4, cfg.PerPadCeiling)
	assert.Equal(t, 30*time.Second, cfg.VoiceTimeout)
	assert.Equal(t, time.Second, cfg.CleanupInterval)
	assert.Nil(t, cfg.ErrorHandler)
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("PADKIT_GLOBAL_VOICE_CEILING", "64")
	t.Setenv("PADKIT_PER_PAD_CEILING", "8")
	t.Setenv("PADKIT_VOICE_TIMEOUT_MS", "15000")
	t.Setenv("PADKIT_CLEANUP_INTERVAL_MS", "250")

	cfg := ConfigFromEnv()
	assert.Equal(t, 64, cfg.GlobalVoiceCeiling)
	assert.Equal(t, 8, cfg.PerPadCeiling)
	assert.Equal(t, 15*time.Second, cfg.VoiceTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.CleanupInterval)
}

func TestConfigFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("PADKIT_GLOBAL_VOICE_CEILING", "many")
	t.Setenv("PADKIT_VOICE_TIMEOUT_MS", "")

	cfg := ConfigFromEnv()
	assert.Equal(t, DefaultGlobalVoiceCeiling, cfg.GlobalVoiceCeiling)
	assert.Equal(t, DefaultVoiceTimeout, cfg.VoiceTimeout)
}
