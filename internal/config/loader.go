package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "DESKMCP_CONFIG"

// Source is the file position a key was set at.
type Source struct {
	File   string
	Line   int
	Column int
}

// LoadResult carries the effective config and where its keys came from.
type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML-path -> position
	// File is empty when no config file existed.
	File string
}

var (
	lookupEnvFn   = os.LookupEnv
	userHomeDirFn = os.UserHomeDir
	loadEnvFileFn = godotenv.Load
)

// DefaultConfigPath returns DESKMCP_CONFIG or ~/.config/deskmcp/config.yaml.
func DefaultConfigPath() (string, error) {
	if p, ok := lookupEnvFn(EnvConfigPath); ok && strings.TrimSpace(p) != "" {
		return expandHome(strings.TrimSpace(p))
	}
	homeDir, err := userHomeDirFn()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "deskmcp", "config.yaml"), nil
}

// Load reads the configuration from the standard location.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources loads config and returns file-level sources for introspection.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path over the defaults. A missing file yields the
// defaults. The env_file, if set, is loaded into the process environment
// without overriding variables that are already set.
func LoadFromPath(path string) (*LoadResult, error) {
	cfg := DefaultConfig()
	res := &LoadResult{Config: cfg, Sources: map[string]Source{}}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return res, nil
	case err != nil:
		return nil, fmt.Errorf("%s: failed to read: %w", path, err)
	}
	res.File = path

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: failed to parse yaml: %w", path, err)
	}
	if err := decodeStrictYAML(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res.Sources = collectSources(&doc, path)

	if err := cfg.Validate(); err != nil {
		return nil, attachSourceContext(err, res.Sources)
	}

	if strings.TrimSpace(cfg.EnvFile) != "" {
		envPath, err := resolvePathRelativeToFile(path, cfg.EnvFile)
		if err != nil {
			return nil, attachSourceContext(&ValidationError{Path: "env_file", Err: err}, res.Sources)
		}
		if err := loadEnvFileFn(envPath); err != nil {
			return nil, attachSourceContext(&ValidationError{Path: "env_file", Err: err}, res.Sources)
		}
	}

	return res, nil
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := userHomeDirFn()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

func resolvePathRelativeToFile(baseFile string, p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path is empty")
	}
	p, err := expandHome(p)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	return filepath.Join(filepath.Dir(baseFile), p), nil
}

func collectSources(doc *yaml.Node, file string) map[string]Source {
	out := make(map[string]Source)
	if doc == nil {
		return out
	}
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	collectSourcesRec(node, file, "", out)
	return out
}

func collectSourcesRec(node *yaml.Node, file string, prefix string, out map[string]Source) {
	if node == nil {
		return
	}
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			val := node.Content[i+1]
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			out[path] = Source{File: file, Line: val.Line, Column: val.Column}
			collectSourcesRec(val, file, path, out)
		}
	case yaml.SequenceNode:
		if prefix != "" {
			out[prefix] = Source{File: file, Line: node.Line, Column: node.Column}
		}
	}
}

func attachSourceContext(err error, sources map[string]Source) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}

// Marshal renders cfg as YAML for `deskmcp config print`.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
