package hook

import (
	"strings"

	"speechinsight/internal/config"
)

// hookMatches reports whether emotion equals one of the hook's emotion tokens
// or aliases, ignoring case. "*" matches any emotion.
func hookMatches(emotion string, hk *config.HookConfig) bool {
	for _, list := range [][]string{hk.Emotions, hk.Aliases} {
		for _, tok := range list {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			if tok == "*" || strings.EqualFold(tok, emotion) {
				return true
			}
		}
	}
	return false
}

// SelectHookConfig returns the first hook listing the dominant emotion. If
// none match, it falls back to the first configured hook.
func SelectHookConfig(cfg *config.Config, emotion string) *config.HookConfig {
	if len(cfg.Hooks) == 0 {
		return nil
	}
	emotion = strings.TrimSpace(emotion)
	for i := range cfg.Hooks {
		hk := &cfg.Hooks[i]
		if hookMatches(emotion, hk) {
			return hk
		}
	}
	return &cfg.Hooks[0]
}
