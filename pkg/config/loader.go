package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig layers base.yaml, <env>.yaml and secrets.env from configDir.
// Later layers win; ${VAR} placeholders resolve from secrets.env first and
// then from the process environment.
func LoadConfig(env string, configDir string) (map[string]interface{}, error) {
	if configDir == "" {
		configDir = "config"
	}

	base, err := loadYAMLFile(filepath.Join(configDir, "base.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load base.yaml: %w", err)
	}

	overlay := make(map[string]interface{})
	if env != "" && env != "base" {
		envFile := filepath.Join(configDir, env+".yaml")
		if _, err := os.Stat(envFile); err == nil {
			overlay, err = loadYAMLFile(envFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s.yaml: %w", env, err)
			}
		}
	}

	merged := mergeMaps(base, overlay)

	secrets := map[string]string{}
	secretsFile := filepath.Join(configDir, "secrets.env")
	if _, err := os.Stat(secretsFile); err == nil {
		secrets, err = loadEnvFile(secretsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load secrets.env: %w", err)
		}
	}

	return substituteEnvVars(merged, secrets), nil
}

// Decode round-trips the merged map through YAML into out.
func Decode(m map[string]interface{}, out interface{}) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

func loadYAMLFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var out map[string]interface{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = make(map[string]interface{})
	}
	return out, nil
}

func loadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	env := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		value = strings.Trim(value, `'`)
		env[strings.TrimSpace(key)] = value
	}
	return env, nil
}

// mergeMaps returns dst overlaid with src, merging nested maps.
func mergeMaps(dst, src map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(dst)+len(src))
	for k, v := range dst {
		result[k] = v
	}
	for k, v := range src {
		dstMap, dok := result[k].(map[string]interface{})
		srcMap, sok := v.(map[string]interface{})
		if dok && sok {
			result[k] = mergeMaps(dstMap, srcMap)
			continue
		}
		result[k] = v
	}
	return result
}

func substituteEnvVars(cfg map[string]interface{}, env map[string]string) map[string]interface{} {
	result := make(map[string]interface{}, len(cfg))
	for k, v := range cfg {
		switch val := v.(type) {
		case string:
			result[k] = substituteString(val, env)
		case map[string]interface{}:
			result[k] = substituteEnvVars(val, env)
		case []interface{}:
			items := make([]interface{}, len(val))
			for i, item := range val {
				if s, ok := item.(string); ok {
					items[i] = substituteString(s, env)
				} else {
					items[i] = item
				}
			}
			result[k] = items
		default:
			result[k] = v
		}
	}
	return result
}

// substituteString expands ${VAR}. Unknown variables expand to "".
func substituteString(s string, env map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, func(key string) string {
		if v, ok := env[key]; ok {
			return v
		}
		return os.Getenv(key)
	})
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv reads CONFIG_ENV, defaulting to local.
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
