package encryption

import (
	"path/filepath"
	"testing"

	"ghedit-go/internal/config"
)

func TestNewSealerFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EncryptionConfig
		want    string
		wantErr bool
	}{
		{name: "age", cfg: config.EncryptionConfig{Type: "age", IdentityPath: filepath.Join(t.TempDir(), "k")}, want: "*encryption.AgeSealer"},
		{name: "default is age", cfg: config.EncryptionConfig{IdentityPath: filepath.Join(t.TempDir(), "k")}, want: "*encryption.AgeSealer"},
		{name: "age without path", cfg: config.EncryptionConfig{Type: "age"}, wantErr: true},
		{name: "test", cfg: config.EncryptionConfig{Type: "test"}, want: "*encryption.TestSealer"},
		{name: "unknown", cfg: config.EncryptionConfig{Type: "rot13"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSealerFromConfig(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewSealerFromConfig() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSealerFromConfig() error = %v", err)
			}
			if typeName(got) != tt.want {
				t.Errorf("NewSealerFromConfig() type = %s, want %s", typeName(got), tt.want)
			}
		})
	}
}

func typeName(s Sealer) string {
	switch s.(type) {
	case *AgeSealer:
		return "*encryption.AgeSealer"
	case *TestSealer:
		return "*encryption.TestSealer"
	default:
		return "unknown"
	}
}
