package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// RulesFile is the rules document used when no --rules flag is given.
	// A relative path in a config file resolves against the directory that
	// holds the .tidy folder (repo) or against the state dir (global).
	// The default resolves against the working directory.
	RulesFile string `json:"rules_file,omitempty"`

	// LogDir is where plan log files are written.
	// Relative paths resolve like RulesFile.
	LogDir string `json:"log_dir,omitempty"`

	// LogLevel is one of error, warn, info, debug.
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is one of text, json, logfmt.
	LogFormat string `json:"log_format,omitempty"`

	// VerifyCopies checks size and SHA-256 of every copy in separate-output mode.
	VerifyCopies bool `json:"verify_copies,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// StateDir is the base directory holding the journal database and run locks.
	// Set by Load; never read from config files.
	StateDir string `json:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RulesFile: "rules.json",
		LogDir:    "logs",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.tidy.
func Load(baseDir string) (*Config, error) {
	raw, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	anchorPaths(raw, baseDir)

	cfg := Merge(DefaultConfig(), raw)
	cfg.StateDir = baseDir
	return cfg, nil
}

// LoadWithRepo loads configuration from both global (~/.tidy) and repo (.tidy) directories.
// Repo config is found by walking upward from startDir to find the nearest .tidy/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}
	anchorPaths(global, globalDir)

	repoPath := FindRepoConfig(startDir)
	if repoPath == filepath.Join(globalDir, "config.json") {
		// Walking up from inside $HOME finds the global config again
		repoPath = ""
	}
	repo, err := loadFileRaw(repoPath)
	if err != nil {
		return nil, err
	}
	if repoPath != "" {
		// <project>/.tidy/config.json anchors at <project>
		anchorPaths(repo, filepath.Dir(filepath.Dir(repoPath)))
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	cfg.StateDir = globalDir
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .tidy/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".tidy", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// anchorPaths makes the relative paths read from a config file absolute
// under dir.
func anchorPaths(cfg *Config, dir string) {
	for _, p := range []*string{&cfg.RulesFile, &cfg.LogDir} {
		v := strings.TrimSpace(*p)
		if v != "" && !filepath.IsAbs(v) {
			*p = filepath.Join(dir, v)
		}
	}
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		StateDir: base.StateDir,
	}

	result.RulesFile = firstNonEmpty(overlay.RulesFile, base.RulesFile)
	result.LogDir = firstNonEmpty(overlay.LogDir, base.LogDir)
	result.LogLevel = firstNonEmpty(overlay.LogLevel, base.LogLevel)
	result.LogFormat = firstNonEmpty(overlay.LogFormat, base.LogFormat)
	if overlay.StateDir != "" {
		result.StateDir = overlay.StateDir
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Booleans: overlay wins if true, else base
	result.VerifyCopies = base.VerifyCopies || overlay.VerifyCopies

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
