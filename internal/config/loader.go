package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names.
const (
	EnvPrefix = "AUDAX_"
	EnvConfig = EnvPrefix + "CONFIG"

	keyWaveStarts = "wave_starts"
)

// Load layers, lowest precedence first:
//  1. defaults (New())
//  2. the YAML file named by AUDAX_CONFIG
//  3. AUDAX_* environment variables
//
// Env keys are flat: AUDAX_FEED_URL sets feed_url. The wave table is a map,
// so its env form is a list: AUDAX_WAVE_STARTS="A=03:30,LB=04:00" replaces
// any table from the file.
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	prefix := strings.ToLower(EnvPrefix)
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), prefix)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	var waves map[string]string
	if raw, ok := k.Get(keyWaveStarts).(string); ok {
		if waves, err = ParseWaveList(raw); err != nil {
			return nil, fmt.Errorf("%w: %sWAVE_STARTS: %v", ErrInvalidConfig, EnvPrefix, err)
		}
		k.Delete(keyWaveStarts)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if waves != nil {
		cfg.WaveStarts = waves
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseWaveList reads "CODE=HH:MM" pairs separated by commas. Blank entries
// are skipped; the times are checked later by Validate.
func ParseWaveList(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, hhmm, ok := strings.Cut(pair, "=")
		code = strings.TrimSpace(code)
		if !ok || code == "" {
			return nil, fmt.Errorf("wave entry %q is not CODE=HH:MM", pair)
		}
		out[code] = strings.TrimSpace(hhmm)
	}
	return out, nil
}
