package config

// HookConfig defines a command run after a recording has been analyzed.
type HookConfig struct {
	Emotions    []string          `toml:"emotions"` // dominant emotions to match (case-insensitive)
	Aliases     []string          `toml:"aliases"`  // optional extra tokens
	Command     string            `toml:"command" validate:"required"`
	Args        []string          `toml:"args"`
	Prefix      string            `toml:"prefix"`
	CooldownSec float64           `toml:"cooldown_sec" validate:"gte=0"`
	TimeoutSec  float64           `toml:"timeout_sec" validate:"gte=0"`
	Env         map[string]string `toml:"env"`
	RedactPII   bool              `toml:"redact_pii"`
}
