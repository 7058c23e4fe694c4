package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		InstanceID: "test-instance-abc",
		BaseDir:    "/home/user/.local/share/ghedit",
		LogDir:     "/home/user/.local/share/ghedit/log",
		LogLevel:   "debug",
		GitHub: GitHubConfig{
			APIURL:   "https://ghe.example.com/api/v3",
			ClientID: "Iv1.abc",
			Scopes:   []string{"repo", "read:user"},
		},
		Editor:   EditorConfig{CommitMessage: "Edit {path}", WatchInterval: "5s"},
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/ghedit/db"},
		WorkspaceStorage: WorkspaceStorageConfig{
			Type:     "s3",
			Key:      "laptop",
			S3Bucket: "ghedit-state",
			S3Prefix: "users/u1",
			S3Region: "eu-west-1",
		},
		SessionStorage: SessionStorageConfig{Type: "file", Path: "/tmp/session.age", Retention: "12h", SecureOnly: true},
		Encryption:     EncryptionConfig{Type: "age", IdentityPath: "/tmp/session.key"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.InstanceID != original.InstanceID {
		t.Errorf("InstanceID = %q, want %q", got.InstanceID, original.InstanceID)
	}
	if got.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", got.LogLevel, "debug")
	}
	if got.GitHub.APIURL != original.GitHub.APIURL {
		t.Errorf("GitHub.APIURL = %q, want %q", got.GitHub.APIURL, original.GitHub.APIURL)
	}
	if len(got.GitHub.Scopes) != 2 {
		t.Fatalf("len(GitHub.Scopes) = %d, want 2", len(got.GitHub.Scopes))
	}
	if got.WorkspaceStorage.Type != "s3" {
		t.Errorf("WorkspaceStorage.Type = %q, want %q", got.WorkspaceStorage.Type, "s3")
	}
	if got.WorkspaceStorage.S3Prefix != "users/u1" {
		t.Errorf("WorkspaceStorage.S3Prefix = %q, want %q", got.WorkspaceStorage.S3Prefix, "users/u1")
	}
	if got.SessionStorage.Retention != "12h" {
		t.Errorf("SessionStorage.Retention = %q, want %q", got.SessionStorage.Retention, "12h")
	}
	if !got.SessionStorage.SecureOnly {
		t.Error("SessionStorage.SecureOnly = false, want true")
	}
	if got.Editor.CommitMessage != "Edit {path}" {
		t.Errorf("Editor.CommitMessage = %q, want %q", got.Editor.CommitMessage, "Edit {path}")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("inst-1", "/data/ghedit")

	if cfg.InstanceID != "inst-1" {
		t.Errorf("InstanceID = %q, want %q", cfg.InstanceID, "inst-1")
	}
	if cfg.LogDir != "/data/ghedit/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/ghedit/log")
	}
	if cfg.SessionStorage.Path != "/data/ghedit/session.age" {
		t.Errorf("SessionStorage.Path = %q, want %q", cfg.SessionStorage.Path, "/data/ghedit/session.age")
	}
	if cfg.Encryption.IdentityPath != "/data/ghedit/keys/session.key" {
		t.Errorf("Encryption.IdentityPath = %q, want %q", cfg.Encryption.IdentityPath, "/data/ghedit/keys/session.key")
	}
	if cfg.WorkspaceStorage.Key != DefaultStorageKey {
		t.Errorf("WorkspaceStorage.Key = %q, want %q", cfg.WorkspaceStorage.Key, DefaultStorageKey)
	}
	if !cfg.SessionStorage.SecureOnly {
		t.Error("SessionStorage.SecureOnly = false, want true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown database type",
			mutate:  func(c *Config) { c.Database.Type = "postgres" },
			wantErr: "unknown database type",
		},
		{
			name:    "sqlite without data dir",
			mutate:  func(c *Config) { c.Database.DataDir = "" },
			wantErr: "requires data_dir",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.WorkspaceStorage.Type = "s3" },
			wantErr: "requires s3_bucket",
		},
		{
			name:    "unknown session storage",
			mutate:  func(c *Config) { c.SessionStorage.Type = "cookie" },
			wantErr: "unknown session storage type",
		},
		{
			name:    "bad retention",
			mutate:  func(c *Config) { c.SessionStorage.Retention = "a day" },
			wantErr: "session_storage.retention",
		},
		{
			name:    "negative watch interval",
			mutate:  func(c *Config) { c.Editor.WatchInterval = "-1s" },
			wantErr: "must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("v", "/data/ghedit")
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	s := SessionStorageConfig{}
	got, err := s.RetentionDuration()
	if err != nil {
		t.Fatalf("RetentionDuration() error = %v", err)
	}
	if got != 24*time.Hour {
		t.Errorf("RetentionDuration() = %v, want 24h", got)
	}

	e := EditorConfig{WatchInterval: "500ms"}
	got, err = e.WatchIntervalDuration()
	if err != nil {
		t.Fatalf("WatchIntervalDuration() error = %v", err)
	}
	if got != 500*time.Millisecond {
		t.Errorf("WatchIntervalDuration() = %v, want 500ms", got)
	}
}

func TestGitHubConfig_SecureTransport(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://api.github.com", true},
		{"http://127.0.0.1:8080", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := (GitHubConfig{APIURL: tt.url}).SecureTransport(); got != tt.want {
				t.Errorf("SecureTransport() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "ghedit.toml")
		cfg := NewConfig("i1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("config file mode = %o, want 600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "ghedit.toml")
		cfg := NewConfig("i1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "ghedit.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.InstanceID != "read-test" {
			t.Errorf("InstanceID = %q, want %q", got.InstanceID, "read-test")
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "ghedit.toml")
		cfg := NewConfig("bad", dir)
		cfg.WorkspaceStorage.Type = "floppy"

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := ReadFromFile(path); err == nil {
			t.Fatal("ReadFromFile() expected error for invalid config")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/ghedit.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
