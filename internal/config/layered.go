package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Layer names where a configuration value came from.
type Layer string

const (
	LayerDefaults Layer = "defaults"
	LayerFile     Layer = "file"
	LayerEnv      Layer = "env"
)

// layerOrder is the precedence order, lowest first.
var layerOrder = []Layer{LayerDefaults, LayerFile, LayerEnv}

// FieldSource is the layer that last set a config field.
type FieldSource struct {
	Field  string `header:"FIELD" json:"field" yaml:"field"`
	Source Layer  `header:"SOURCE" json:"source" yaml:"source"`
	// Var is the environment variable for LayerEnv values.
	Var string `header:"VARIABLE" json:"var,omitempty" yaml:"var,omitempty"`
}

// LayeredLoader builds a Config from defaults, the YAML config file and
// CSSHARP_* environment variables, each overriding the one before.
// Command-line flags are applied by the CLI afterwards.
type LayeredLoader struct {
	disabled map[Layer]bool
	sources  map[string]FieldSource
}

// NewLayeredLoader returns a loader with every layer enabled.
func NewLayeredLoader() *LayeredLoader {
	return &LayeredLoader{disabled: make(map[Layer]bool)}
}

func (l *LayeredLoader) EnableLayer(layer Layer)  { delete(l.disabled, layer) }
func (l *LayeredLoader) DisableLayer(layer Layer) { l.disabled[layer] = true }

// Load runs the enabled layers in precedence order. A missing config file
// skips the file layer.
func (l *LayeredLoader) Load(configPath string) (*Config, error) {
	cfg := &Config{}
	l.sources = make(map[string]FieldSource)

	for _, layer := range layerOrder {
		if l.disabled[layer] {
			continue
		}
		if err := l.apply(layer, cfg, configPath); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (l *LayeredLoader) apply(layer Layer, cfg *Config, configPath string) error {
	switch layer {
	case LayerDefaults:
		*cfg = *DefaultConfig()

	case LayerFile:
		if configPath == "" {
			return nil
		}
		keys, err := decodeFile(configPath, cfg)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("config file %s: %w", configPath, err)
		}
		for _, k := range keys {
			l.sources[k] = FieldSource{Field: k, Source: LayerFile}
		}

	case LayerEnv:
		applied, err := LoadFromEnv(cfg)
		if err != nil {
			return fmt.Errorf("config environment: %w", err)
		}
		for _, o := range applied {
			l.sources[o.Field] = FieldSource{Field: o.Field, Source: LayerEnv, Var: o.Var}
		}
	}
	return nil
}

// Sources lists the fields set by the file or environment layers during the
// last Load, sorted by field. Fields not listed hold their defaults.
func (l *LayeredLoader) Sources() []FieldSource {
	out := make([]FieldSource, 0, len(l.sources))
	for _, s := range l.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// decodeFile decodes a YAML file over cfg and returns the dotted paths of
// the scalar and sequence keys it contained.
func decodeFile(path string, cfg *Config) ([]string, error) {
	//nolint:gosec // G304: Path is the resolved config file location.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	if err := doc.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode YAML: %w", err)
	}

	var keys []string
	collectKeys(doc.Content[0], "", &keys)
	return keys, nil
}

func collectKeys(n *yaml.Node, prefix string, keys *[]string) {
	if n.Kind != yaml.MappingNode {
		if prefix != "" {
			*keys = append(*keys, prefix)
		}
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		collectKeys(n.Content[i+1], joinPath(prefix, n.Content[i].Value), keys)
	}
}
