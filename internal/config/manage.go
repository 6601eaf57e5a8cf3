package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Setting is one editable key as `aura config show` prints it.
type Setting struct {
	Key   string
	Value string
	Env   string
	// FromEnv is set when Env currently overrides the file value.
	FromEnv bool
}

// Settings lists the editable keys of cfg in table order. Secrets are left out.
func Settings(cfg Config) []Setting {
	out := make([]Setting, 0, len(specs))
	for _, s := range specs {
		if s.secret {
			continue
		}
		out = append(out, Setting{
			Key:     s.key,
			Value:   fmt.Sprint(s.extract(cfg)),
			Env:     s.env,
			FromEnv: os.Getenv(s.env) != "",
		})
	}
	return out
}

// EditableKeys returns the keys Set accepts.
func EditableKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

// Set stores value for key in the config file.
func Set(key, value string) error {
	return set(newFileBackend(configFilePath()), key, value)
}

func set(b ConfigBackend, key, value string) error {
	i := slices.IndexFunc(specs, func(s keySpec) bool { return s.key == key })
	if i < 0 {
		return fmt.Errorf("unknown config key %q", key)
	}
	s := specs[i]
	if s.secret {
		return fmt.Errorf("%s is a secret; set %s or edit %s", key, s.env, secretsFilePath())
	}

	if s.typ == kInt {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, value)
		}
		if n <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, n)
		}
		return b.SetInt(key, n)
	}

	if allowed, ok := choices[key]; ok {
		value = strings.ToLower(strings.TrimSpace(value))
		if !slices.Contains(allowed, value) {
			return fmt.Errorf("%s must be one of %s", key, strings.Join(allowed, ", "))
		}
	}
	return b.SetString(key, value)
}

var choices = map[string][]string{
	"engine.backend": {BackendOllama, BackendGemini},
	"log.level":      {"debug", "info", "warn", "error"},
}
