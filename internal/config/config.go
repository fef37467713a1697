package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"textdedup/internal/domain"
)

// InputConfig describes the tree of text files to deduplicate.
type InputConfig struct {
	Root       string   `yaml:"root" toml:"root"`
	Extensions []string `yaml:"extensions" toml:"extensions"`
}

// OutputConfig describes where kept files are copied. The tree under Root
// is regenerated on every run.
type OutputConfig struct {
	Root string `yaml:"root" toml:"root"`
}

// DedupConfig tunes tokenization, signatures and grouping.
// Bands and Rows are derived from the threshold when both are zero.
type DedupConfig struct {
	SimilarityThreshold float64  `yaml:"similarity_threshold" toml:"similarity_threshold"`
	SignatureSize       int      `yaml:"signature_size" toml:"signature_size"`
	MinimumTokenLength  int      `yaml:"minimum_token_length" toml:"minimum_token_length"`
	StopWords           []string `yaml:"stop_words,omitempty" toml:"stop_words,omitempty"`
	Seed                int64    `yaml:"seed" toml:"seed"`
	Bands               int      `yaml:"bands" toml:"bands"`
	Rows                int      `yaml:"rows" toml:"rows"`
}

// ReportConfig controls the statistics report.
type ReportConfig struct {
	Always   bool   `yaml:"always" toml:"always"`
	FileName string `yaml:"file_name" toml:"file_name"`
}

// LogConfig controls the audit log.
type LogConfig struct {
	File  string `yaml:"file" toml:"file"`
	Level string `yaml:"level" toml:"level"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Input  InputConfig  `yaml:"input" toml:"input"`
	Output OutputConfig `yaml:"output" toml:"output"`
	Dedup  DedupConfig  `yaml:"dedup" toml:"dedup"`
	Report ReportConfig `yaml:"report" toml:"report"`
	Log    LogConfig    `yaml:"log" toml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Files ending in .toml are parsed as TOML, everything else as YAML. The file
// is decoded over Default(), so only absent keys take default values; a key
// set explicitly to zero is kept and rejected by Validate.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfiguration, path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./textdedup.yaml first, then ~/.config/textdedup/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "textdedup.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overrides input/output roots and the threshold from
// TEXTDEDUP_INPUT, TEXTDEDUP_OUTPUT and TEXTDEDUP_THRESHOLD.
func ApplyEnv(cfg *AppConfig) error {
	if v := os.Getenv("TEXTDEDUP_INPUT"); v != "" {
		cfg.Input.Root = v
	}
	if v := os.Getenv("TEXTDEDUP_OUTPUT"); v != "" {
		cfg.Output.Root = v
	}
	if v := os.Getenv("TEXTDEDUP_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: TEXTDEDUP_THRESHOLD: %v", domain.ErrConfiguration, err)
		}
		cfg.Dedup.SimilarityThreshold = f
	}
	return nil
}

// Validate checks every option before any file is touched. All errors
// wrap domain.ErrConfiguration.
func (c *AppConfig) Validate() error {
	var problems []string
	d := c.Dedup
	if !(d.SimilarityThreshold > 0 && d.SimilarityThreshold <= 1) {
		problems = append(problems, fmt.Sprintf("similarity_threshold must be in (0,1], got %v", d.SimilarityThreshold))
	}
	if d.SignatureSize <= 0 {
		problems = append(problems, fmt.Sprintf("signature_size must be > 0, got %d", d.SignatureSize))
	}
	if d.MinimumTokenLength <= 0 {
		problems = append(problems, fmt.Sprintf("minimum_token_length must be > 0, got %d", d.MinimumTokenLength))
	}
	if (d.Bands == 0) != (d.Rows == 0) || d.Bands < 0 || d.Rows < 0 {
		problems = append(problems, "bands and rows must both be set or both be zero")
	} else if d.Bands*d.Rows > d.SignatureSize && d.SignatureSize > 0 {
		problems = append(problems, fmt.Sprintf("bands*rows (%d) exceeds signature_size (%d)", d.Bands*d.Rows, d.SignatureSize))
	}
	if c.Input.Root == "" {
		problems = append(problems, "input.root is required")
	}
	if c.Output.Root == "" {
		problems = append(problems, "output.root is required")
	}
	if c.Input.Root != "" && c.Output.Root != "" {
		in, errIn := filepath.Abs(c.Input.Root)
		out, errOut := filepath.Abs(c.Output.Root)
		if errIn == nil && errOut == nil && (in == out || isWithin(in, out)) {
			problems = append(problems, "output.root must not be the input root or one of its parents")
		}
	}
	if c.Report.FileName == "" || filepath.Base(c.Report.FileName) != c.Report.FileName {
		problems = append(problems, fmt.Sprintf("report.file_name must be a plain file name, got %q", c.Report.FileName))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		Input:  InputConfig{Root: "ocr/txt_ocr", Extensions: []string{".txt"}},
		Output: OutputConfig{Root: "cleaning/txt_ocr_cleaned"},
		Dedup: DedupConfig{
			SimilarityThreshold: 0.7,
			SignatureSize:       128,
			MinimumTokenLength:  3,
			Seed:                1,
		},
		Report: ReportConfig{FileName: "stats.md"},
		Log:    LogConfig{File: "deduplication.log", Level: "info"},
	}
	return cfg
}

func isWithin(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "textdedup", "config.yaml"), nil
}
