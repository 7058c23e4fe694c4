package config

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL        = "https://api.github.com"
	DefaultAuthorizeURL  = "https://github.com/login/oauth/authorize"
	DefaultTokenURL      = "https://github.com/login/oauth/access_token"
	DefaultStorageKey    = "workspace"
	DefaultRetention     = "24h"
	DefaultWatchInterval = "2s"
)

// Config represents the main configuration for ghedit.
type Config struct {
	InstanceID       string                 `toml:"instance_id"`
	BaseDir          string                 `toml:"base_dir"`
	LogDir           string                 `toml:"log_dir"`
	LogLevel         string                 `toml:"log_level"` // "debug", "info" (default), "warn" or "error"
	GitHub           GitHubConfig           `toml:"github"`
	Editor           EditorConfig           `toml:"editor"`
	Database         DatabaseConfig         `toml:"database"`
	WorkspaceStorage WorkspaceStorageConfig `toml:"workspace_storage"`
	SessionStorage   SessionStorageConfig   `toml:"session_storage"`
	Encryption       EncryptionConfig       `toml:"encryption"`
}

// GitHubConfig holds the API endpoint and the OAuth application registration.
type GitHubConfig struct {
	APIURL       string   `toml:"api_url"`
	AuthorizeURL string   `toml:"authorize_url"`
	TokenURL     string   `toml:"token_url"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURL  string   `toml:"redirect_url,omitempty"`
	Scopes       []string `toml:"scopes"`
}

// EditorConfig holds editing behaviour settings.
type EditorConfig struct {
	CommitMessage string `toml:"commit_message"` // {path} is replaced with the file path
	WatchInterval string `toml:"watch_interval"`
}

// DatabaseConfig represents configuration for the local database that holds
// the operation journal and, for workspace_storage type sqlite, the workspaces.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// WorkspaceStorageConfig selects where the workspace document lives.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type WorkspaceStorageConfig struct {
	Type string `toml:"type"` // "sqlite" (default), "memory" or "s3"
	Key  string `toml:"key"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`
	S3PathStyle bool   `toml:"s3_path_style,omitempty"`

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// SessionStorageConfig selects where credentials live and how long they are kept.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SessionStorageConfig struct {
	Type       string `toml:"type"`           // "file" (default) or "memory"
	Path       string `toml:"path,omitempty"` // only used for type=file
	Retention  string `toml:"retention"`
	SecureOnly bool   `toml:"secure_only"`
}

// EncryptionConfig holds the identity used to seal the session file.
type EncryptionConfig struct {
	Type         string `toml:"type"` // "age" (default) or "test"
	IdentityPath string `toml:"identity_path"`
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(instanceID, baseDir string) *Config {
	return &Config{
		InstanceID: instanceID,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		LogLevel:   "info",
		GitHub: GitHubConfig{
			APIURL:       DefaultAPIURL,
			AuthorizeURL: DefaultAuthorizeURL,
			TokenURL:     DefaultTokenURL,
			Scopes:       []string{"repo"},
		},
		Editor: EditorConfig{
			CommitMessage: "Update {path}",
			WatchInterval: DefaultWatchInterval,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		WorkspaceStorage: WorkspaceStorageConfig{
			Type: "sqlite",
			Key:  DefaultStorageKey,
		},
		SessionStorage: SessionStorageConfig{
			Type:       "file",
			Path:       filepath.Join(baseDir, "session.age"),
			Retention:  DefaultRetention,
			SecureOnly: true,
		},
		Encryption: EncryptionConfig{
			Type:         "age",
			IdentityPath: filepath.Join(baseDir, "keys", "session.key"),
		},
	}
}

// Validate checks the tagged unions and parses durations and URLs.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite":
		if c.Database.DataDir == "" {
			return fmt.Errorf("database type sqlite requires data_dir to be set")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database type: %s", c.Database.Type)
	}

	switch c.WorkspaceStorage.Type {
	case "sqlite", "memory":
	case "s3":
		if c.WorkspaceStorage.S3Bucket == "" {
			return fmt.Errorf("workspace storage type s3 requires s3_bucket to be set")
		}
	default:
		return fmt.Errorf("unknown workspace storage type: %s", c.WorkspaceStorage.Type)
	}

	switch c.SessionStorage.Type {
	case "file":
		if c.SessionStorage.Path == "" {
			return fmt.Errorf("session storage type file requires path to be set")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown session storage type: %s", c.SessionStorage.Type)
	}

	if _, err := c.SessionStorage.RetentionDuration(); err != nil {
		return err
	}
	if _, err := c.Editor.WatchIntervalDuration(); err != nil {
		return err
	}
	if _, err := url.Parse(c.GitHub.APIURL); err != nil {
		return fmt.Errorf("invalid github api_url: %w", err)
	}
	return nil
}

// RetentionDuration parses Retention, defaulting to DefaultRetention.
func (s SessionStorageConfig) RetentionDuration() (time.Duration, error) {
	return parseDuration("session_storage.retention", s.Retention, DefaultRetention)
}

// WatchIntervalDuration parses WatchInterval, defaulting to DefaultWatchInterval.
func (e EditorConfig) WatchIntervalDuration() (time.Duration, error) {
	return parseDuration("editor.watch_interval", e.WatchInterval, DefaultWatchInterval)
}

// SecureTransport reports whether the configured API is reached over https.
func (g GitHubConfig) SecureTransport() bool {
	u, err := url.Parse(g.APIURL)
	return err == nil && u.Scheme == "https"
}

func parseDuration(field, value, def string) (time.Duration, error) {
	if value == "" {
		value = def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", field, value)
	}
	return d, nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config with owner-only permissions, since it may
// hold the OAuth client secret.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
