package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envPattern matches $(NAME) placeholders. Shell-style $NAME and ${NAME} are
// left alone so they can appear literally in paths and cron specs.
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// expandEnvVars substitutes every placeholder in s with the value of its
// environment variable. Unset variables expand to "".
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(placeholder string) string {
		name := envPattern.FindStringSubmatch(placeholder)[1]
		return os.Getenv(mapEnvKey(name))
	})
}

// Load reads, expands, defaults and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling yaml: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
