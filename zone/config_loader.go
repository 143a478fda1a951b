package zone

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the pipeline configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate rejects malformed configurations before any data is loaded, so
// weighting mistakes surface at startup rather than deep inside aggregation.
func (c *Config) Validate() error {
	if len(c.Weights) == 0 && len(c.SimpleWeights) == 0 {
		return fmt.Errorf("either weights or simpleWeights must be configured")
	}
	if len(c.Weights) > 0 && len(c.SimpleWeights) > 0 {
		return fmt.Errorf("weights and simpleWeights are mutually exclusive")
	}

	for i, wc := range c.Weights {
		if wc.Attribute == "" {
			return fmt.Errorf("weights[%d].attribute is required", i)
		}
		if wc.Weight != nil && *wc.Weight < 0 {
			return fmt.Errorf("weights[%d].weight must be non-negative for %s", i, wc.Attribute)
		}
	}

	for attr, w := range c.SimpleWeights {
		if w < 0 {
			return fmt.Errorf("simpleWeights[%s] must be non-negative", attr)
		}
	}

	seen := make(map[string]bool, len(c.Datasets))
	for i, dc := range c.Datasets {
		if dc.ID == "" {
			return fmt.Errorf("datasets[%d].id is required", i)
		}
		if seen[dc.ID] {
			return fmt.Errorf("datasets[%d].id %q is duplicated", i, dc.ID)
		}
		seen[dc.ID] = true
		if dc.Path == "" && dc.Topic == "" {
			return fmt.Errorf("datasets[%d] (%s) needs a path or a topic", i, dc.ID)
		}
	}

	return nil
}
