package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dt-pm-tools/confluence-sync/internal/source"
	"github.com/dt-pm-tools/confluence-sync/internal/syncer"
	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

const (
	// LocalFile is read from the working directory when no path is given
	// and it exists.
	LocalFile = "config.yml"

	DefaultBranch  = "main"
	DefaultTimeout = 30 * time.Second
)

func init() {
	// Name fields in validation errors by their YAML keys.
	validation.ErrorTag = "yaml"
}

// Config holds connection settings and the documents to sync.
type Config struct {
	Confluence Confluence `yaml:"confluence" mapstructure:"confluence"`
	GitHub     GitHub     `yaml:"github,omitempty" mapstructure:"github"`
	Workers    int        `yaml:"workers,omitempty" mapstructure:"workers"`
	Sync       []Entry    `yaml:"sync,omitempty" mapstructure:"sync"`
}

// Confluence holds Confluence connection settings.
type Confluence struct {
	URL      string `yaml:"url" mapstructure:"url"`
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	Token    string `yaml:"token,omitempty" mapstructure:"token"`
	Timeout  string `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// GitHub holds GitHub API settings.
type GitHub struct {
	Token  string `yaml:"token,omitempty" mapstructure:"token"`
	APIURL string `yaml:"api_url,omitempty" mapstructure:"api_url"`
}

// Entry is one repository and the documents it contributes.
type Entry struct {
	GitHubRepo         string     `yaml:"github_repo" mapstructure:"github_repo"`
	GitHubBranch       string     `yaml:"github_branch,omitempty" mapstructure:"github_branch"`
	LocalDir           string     `yaml:"local_dir,omitempty" mapstructure:"local_dir"`
	ConfluenceSpace    string     `yaml:"confluence_space" mapstructure:"confluence_space"`
	ConfluenceParentID string     `yaml:"confluence_parent_id,omitempty" mapstructure:"confluence_parent_id"`
	DocsPath           string     `yaml:"docs_path,omitempty" mapstructure:"docs_path"`
	Documents          []Document `yaml:"documents,omitempty" mapstructure:"documents"`
}

// Document maps one file to one page title.
type Document struct {
	GitHubPath      string `yaml:"github_path" mapstructure:"github_path"`
	ConfluenceTitle string `yaml:"confluence_title" mapstructure:"confluence_title"`
}

// DefaultPath returns the default config file path (~/.confluence-sync.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".confluence-sync.yaml"
	}
	return filepath.Join(home, ".confluence-sync.yaml")
}

// ResolvePath picks the config file: configPath when given, else
// ./config.yml when present, else DefaultPath.
func ResolvePath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if _, err := os.Stat(LocalFile); err == nil {
		return LocalFile
	}
	return DefaultPath()
}

// Load reads config from the YAML file and applies env var overrides.
// configPath may be empty to use ResolvePath's choice.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(ResolvePath(configPath))
	v.SetConfigType("yaml")

	v.SetDefault("confluence.timeout", DefaultTimeout.String())
	v.SetDefault("github.api_url", source.DefaultGitHubAPI)
	v.SetDefault("workers", syncer.DefaultWorkers)

	// Env var overrides
	_ = v.BindEnv("confluence.url", "CONFLUENCE_URL")
	_ = v.BindEnv("confluence.username", "CONFLUENCE_USERNAME")
	_ = v.BindEnv("confluence.token", "CONFLUENCE_API_TOKEN")
	_ = v.BindEnv("github.token", "GITHUB_TOKEN")
	_ = v.BindEnv("github.api_url", "GITHUB_API_URL")

	// Read the config file (ignore "not found" errors so env vars still work)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Validate checks the connection settings.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Confluence),
		validation.Field(&c.Workers, validation.Min(0), validation.Max(64)),
	)
	if err != nil {
		return syncerr.Wrap(syncerr.Config, "validate config", err)
	}
	return nil
}

// ValidateSync checks the connection settings and the sync entries.
func (c Config) ValidateSync() error {
	if err := c.Validate(); err != nil {
		return err
	}
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Sync, validation.Required.Error("at least one sync entry is required")),
	)
	if err != nil {
		return syncerr.Wrap(syncerr.Config, "validate config", err)
	}
	return nil
}

// Validate implements validation.Validatable.
func (c Confluence) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URL,
			validation.Required.Error("is required (set confluence.url or CONFLUENCE_URL)"),
			is.URL),
		validation.Field(&c.Token,
			validation.Required.Error("is required (set confluence.token or CONFLUENCE_API_TOKEN)")),
		validation.Field(&c.Timeout, validation.By(func(value any) error {
			s, _ := value.(string)
			if s == "" {
				return nil
			}
			if d, err := time.ParseDuration(s); err != nil || d <= 0 {
				return validation.NewError("config.timeout_invalid", "must be a positive duration such as 30s")
			}
			return nil
		})),
	)
}

// RequestTimeout returns the per-request timeout.
func (c Confluence) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// Validate implements validation.Validatable.
func (e Entry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.GitHubRepo, validation.Required),
		validation.Field(&e.ConfluenceSpace, validation.Required),
		validation.Field(&e.ConfluenceParentID, validation.When(e.DocsPath != "",
			validation.Required.Error("is required with docs_path"))),
		validation.Field(&e.Documents, validation.When(e.DocsPath == "",
			validation.Required.Error("needs at least one document when docs_path is not set"))),
		validation.Field(&e.LocalDir, validation.By(func(value any) error {
			dir, _ := value.(string)
			if dir == "" {
				return nil
			}
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return validation.NewError("config.local_dir_missing", "is not a directory")
			}
			return nil
		})),
	)
}

// Validate implements validation.Validatable.
func (d Document) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.GitHubPath, validation.Required),
		validation.Field(&d.ConfluenceTitle, validation.Required),
	)
}

// Repo returns the entry's repository as owner/name.
func (e Entry) Repo() string {
	return source.NormalizeRepo(e.GitHubRepo)
}

// Branch returns the configured branch or DefaultBranch.
func (e Entry) Branch() string {
	if b := strings.TrimSpace(e.GitHubBranch); b != "" {
		return b
	}
	return DefaultBranch
}

// Mappings expands the explicit documents of every entry, in file order.
func (c Config) Mappings() []syncer.Mapping {
	var out []syncer.Mapping
	for _, e := range c.Sync {
		for _, d := range e.Documents {
			out = append(out, syncer.Mapping{
				Repo:     e.Repo(),
				Path:     strings.TrimPrefix(d.GitHubPath, "/"),
				Branch:   e.Branch(),
				SpaceKey: e.ConfluenceSpace,
				Title:    strings.TrimSpace(d.ConfluenceTitle),
				ParentID: e.ConfluenceParentID,
			})
		}
	}
	return out
}

// Trees returns the directory trees of entries that set docs_path.
func (c Config) Trees() []syncer.Tree {
	var out []syncer.Tree
	for _, e := range c.Sync {
		if e.DocsPath == "" {
			continue
		}
		out = append(out, syncer.Tree{
			Repo:     e.Repo(),
			Branch:   e.Branch(),
			SpaceKey: e.ConfluenceSpace,
			ParentID: e.ConfluenceParentID,
			DocsPath: strings.Trim(e.DocsPath, "/"),
		})
	}
	return out
}

// Save writes the config to the given path (or default path if empty).
func Save(cfg Config, configPath string) error {
	if configPath == "" {
		configPath = DefaultPath()
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
