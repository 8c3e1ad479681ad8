// Package publish uploads a local project directory into a new or existing GitHub repository.
package publish

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// DefaultConfigFile is read when no config path is given and the file exists.
const DefaultConfigFile = "~/.repopush.yaml"

// ErrInvalidConfig wraps every configuration problem.
var ErrInvalidConfig = errors.New("invalid upload configuration")

// Config is the upload configuration.
type Config struct {
	SourceDir     string   `mapstructure:"source_dir"`
	Username      string   `mapstructure:"username"`
	Token         string   `mapstructure:"token"`
	RepoName      string   `mapstructure:"repo_name"`
	WorkDir       string   `mapstructure:"work_dir"`
	Description   string   `mapstructure:"description"`
	Branch        string   `mapstructure:"branch"`
	CommitMessage string   `mapstructure:"commit_message"`
	APIURL        string   `mapstructure:"api_url"`
	OnConflict    Action   `mapstructure:"on_conflict"`
	Ignore        []string `mapstructure:"ignore"`
	GitPaths      []string `mapstructure:"git_paths"`
	Private       bool     `mapstructure:"private"`
	ForcePush     bool     `mapstructure:"force_push"`
}

var defaultIgnore = []string{
	".git", "__pycache__", "venv", ".env", "*.pyc", "*.log", "*.tmp",
	"node_modules", ".vscode", ".idea", "dist", "build",
}

var defaultGitPaths = []string{
	"/usr/bin/git",
	"/usr/local/bin/git",
	"/opt/homebrew/bin/git",
	`C:\Program Files\Git\bin\git.exe`,
	`C:\Program Files (x86)\Git\bin\git.exe`,
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source_dir", "")
	v.SetDefault("username", "")
	v.SetDefault("token", "")
	v.SetDefault("repo_name", "")
	v.SetDefault("work_dir", "")
	v.SetDefault("description", "")
	v.SetDefault("branch", "main")
	v.SetDefault("commit_message", "Initial commit")
	v.SetDefault("api_url", "https://api.github.com/")
	v.SetDefault("on_conflict", string(ActionAsk))
	v.SetDefault("ignore", defaultIgnore)
	v.SetDefault("git_paths", defaultGitPaths)
	v.SetDefault("private", false)
	v.SetDefault("force_push", true)
}

// LoadConfig reads the configuration file at path (any format viper knows) and
// applies REPOPUSH_* environment overrides. An empty path falls back to
// DefaultConfigFile when it exists, otherwise only defaults and environment are used.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REPOPUSH")
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	file, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}

	if _, err := os.Stat(file); err == nil || explicit {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}

// Normalize expands home directories, fills derived defaults and validates the configuration.
func (c *Config) Normalize() error {
	var err error

	if c.SourceDir, err = expandPath(c.SourceDir); err != nil {
		return err
	}
	if c.WorkDir, err = expandPath(c.WorkDir); err != nil {
		return err
	}

	c.RepoName = strings.TrimSpace(c.RepoName)
	if c.RepoName == "" && c.SourceDir != "" {
		c.RepoName = filepath.Base(c.SourceDir)
	}
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(os.TempDir(), "repopush-"+c.RepoName)
	}
	if c.Branch == "" {
		c.Branch = "main"
	}
	if c.OnConflict == "" {
		c.OnConflict = ActionAsk
	}
	if c.APIURL != "" && !strings.HasSuffix(c.APIURL, "/") {
		c.APIURL += "/"
	}

	return c.validate()
}

func (c *Config) validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("%w: source_dir is required", ErrInvalidConfig)
	}
	info, err := os.Stat(c.SourceDir)
	if err != nil {
		return fmt.Errorf("%w: source directory not found: %s", ErrInvalidConfig, c.SourceDir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: source_dir is not a directory: %s", ErrInvalidConfig, c.SourceDir)
	}

	if c.Username == "" || c.Token == "" {
		return fmt.Errorf("%w: GitHub credentials missing (username and token)", ErrInvalidConfig)
	}

	if err := ValidateName(c.RepoName); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if !c.OnConflict.Valid() {
		return fmt.Errorf("%w: on_conflict must be one of ask, update, rename, delete, abort", ErrInvalidConfig)
	}

	// work_dir is force removed, it must never cover the source
	if within(c.SourceDir, c.WorkDir) || within(c.WorkDir, c.SourceDir) {
		return fmt.Errorf("%w: work_dir %s overlaps source_dir %s", ErrInvalidConfig, c.WorkDir, c.SourceDir)
	}

	return nil
}

func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", p, err)
	}
	return filepath.Abs(expanded)
}

// within reports whether path equals dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
