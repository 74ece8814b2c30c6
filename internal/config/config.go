package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/qepting91/reddit-cleaner/internal/domain"
	"github.com/qepting91/reddit-cleaner/internal/policy"
	"github.com/qepting91/reddit-cleaner/internal/throttle"
)

// DefaultPath is the profile read when no --config flag is given.
const DefaultPath = "cleaner.yaml"

// ErrMissingCredentials is returned when api mode has no usable credentials.
var ErrMissingCredentials = errors.New("missing reddit credentials")

// Collector modes.
const (
	ModeAPI    = "api"
	ModePublic = "public"
	ModeMock   = "mock"
)

// Credentials authenticate a script-type Reddit app with the password grant.
type Credentials struct {
	ID       string
	Secret   string
	Username string
	Password string
}

// Complete reports whether every field is set.
func (c Credentials) Complete() bool {
	return c.ID != "" && c.Secret != "" && c.Username != "" && c.Password != ""
}

// PolicySpec names one pass of a run profile.
type PolicySpec struct {
	Name       string `yaml:"name"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// ThrottleConfig bounds the delay between mutations.
type ThrottleConfig struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// Config is the resolved run profile.
type Config struct {
	Mode            string         `yaml:"mode"`
	UserAgent       string         `yaml:"user_agent"`
	Owner           string         `yaml:"owner"`
	CredentialsFile string         `yaml:"credentials_file"`
	AuditLog        string         `yaml:"audit_log"`
	Ledger          string         `yaml:"ledger"`
	Kinds           []string       `yaml:"kinds"`
	Policies        []PolicySpec   `yaml:"policies"`
	Placeholder     string         `yaml:"placeholder"`
	Throttle        ThrottleConfig `yaml:"throttle"`
	Schedule        string         `yaml:"schedule"`
	ProtectedFile   string         `yaml:"protected_subreddits"`
	MetricsAddr     string         `yaml:"metrics_addr"`

	Credentials Credentials `yaml:"-"`
}

// Default returns the built-in profile.
func Default() *Config {
	return &Config{
		Mode:            ModeAPI,
		UserAgent:       "commentCleaner",
		CredentialsFile: "Credentials.txt",
		AuditLog:        "deleted_comments.txt",
		Kinds:           []string{string(domain.Comments)},
		Policies: []PolicySpec{
			{Name: string(policy.ChoiceNegative)},
			{Name: string(policy.ChoiceStale)},
		},
		Placeholder: ".",
		Throttle:    ThrottleConfig{Min: throttle.DefaultMin, Max: throttle.DefaultMax},
		Schedule:    "0 3 * * *",
		MetricsAddr: ":9090",
	}
}

// Load builds the configuration: defaults, then the YAML profile at path,
// then .env and process environment. An empty path reads DefaultPath if it
// exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	// .env is optional, exactly like a missing profile
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()

	if !cfg.Credentials.Complete() && cfg.CredentialsFile != "" {
		creds, err := ReadCredentialsFile(cfg.CredentialsFile)
		switch {
		case err == nil:
			cfg.Credentials = mergeCredentials(cfg.Credentials, creds)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Mode, "COLLECTOR_MODE")
	set(&c.UserAgent, "REDDIT_USER_AGENT")
	set(&c.Credentials.ID, "REDDIT_CLIENT_ID")
	set(&c.Credentials.Secret, "REDDIT_CLIENT_SECRET")
	set(&c.Credentials.Username, "REDDIT_USERNAME")
	set(&c.Credentials.Password, "REDDIT_PASSWORD")
	set(&c.Owner, "CLEANER_OWNER")
	set(&c.AuditLog, "CLEANER_AUDIT_LOG")
	set(&c.Ledger, "CLEANER_LEDGER")
	set(&c.MetricsAddr, "CLEANER_METRICS_ADDR")
}

func mergeCredentials(have, file Credentials) Credentials {
	if have.ID == "" {
		have.ID = file.ID
	}
	if have.Secret == "" {
		have.Secret = file.Secret
	}
	if have.Username == "" {
		have.Username = file.Username
	}
	if have.Password == "" {
		have.Password = file.Password
	}
	return have
}

// ReadCredentialsFile reads client id, client secret, username and password
// from the first four lines of path.
func ReadCredentialsFile(path string) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return Credentials{}, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(lines) < 4 {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return Credentials{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(lines) < 4 {
		return Credentials{}, fmt.Errorf("%s: expected 4 lines (client id, secret, username, password), got %d", path, len(lines))
	}
	return Credentials{ID: lines[0], Secret: lines[1], Username: lines[2], Password: lines[3]}, nil
}

// OwnerName is the account whose history is cleaned.
func (c *Config) OwnerName() string {
	if c.Owner != "" {
		return c.Owner
	}
	return c.Credentials.Username
}

// Validate checks the profile before any network activity.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAPI:
		if !c.Credentials.Complete() {
			return fmt.Errorf("%w: set REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET, REDDIT_USERNAME and REDDIT_PASSWORD or provide %s", ErrMissingCredentials, c.CredentialsFile)
		}
	case ModePublic:
		if c.UserAgent == "" {
			return fmt.Errorf("REDDIT_USER_AGENT is required for public mode")
		}
		if c.OwnerName() == "" {
			return fmt.Errorf("public mode needs an owner (CLEANER_OWNER or REDDIT_USERNAME)")
		}
	case ModeMock:
	default:
		return fmt.Errorf("unknown COLLECTOR_MODE: %s (use 'api', 'public', or 'mock')", c.Mode)
	}

	if _, err := c.KindList(); err != nil {
		return err
	}
	if _, err := c.PolicyList(); err != nil {
		return err
	}
	if c.Throttle.Min < 0 || c.Throttle.Max < c.Throttle.Min {
		return fmt.Errorf("invalid throttle bounds [%s, %s]", c.Throttle.Min, c.Throttle.Max)
	}
	if c.AuditLog == "" {
		return fmt.Errorf("audit_log cannot be empty")
	}
	return nil
}

// KindList parses Kinds. "all" expands to comments then posts.
func (c *Config) KindList() ([]domain.Kind, error) {
	var kinds []domain.Kind
	for _, k := range c.Kinds {
		if k == "all" {
			kinds = append(kinds, domain.Comments, domain.Posts)
			continue
		}
		kind, err := domain.ParseKind(k)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no kinds configured")
	}
	return kinds, nil
}

// PolicyList builds the configured policies in order.
func (c *Config) PolicyList() ([]policy.Policy, error) {
	if len(c.Policies) == 0 {
		return nil, fmt.Errorf("no policies configured")
	}
	out := make([]policy.Policy, 0, len(c.Policies))
	for _, spec := range c.Policies {
		p, err := policy.Build(policy.Choice(spec.Name), spec.MaxAgeDays)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
