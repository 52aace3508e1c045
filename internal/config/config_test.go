package config

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestManager_RoundTrip(t *testing.T) {
	original := &Config{
		AppName: "notes",
		LogDir:  "/var/log/notes",
		Cache: CacheConfig{
			Type: "filesystem",
			Dir:  "/var/lib/notes/sessions",
		},
		Identity: IdentityConfig{
			Type:     "http",
			Endpoint: "https://identity.example.com",
		},
	}

	m := &Manager{}
	var buf bytes.Buffer
	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.AppName != original.AppName {
		t.Errorf("AppName = %s, want %s", got.AppName, original.AppName)
	}
	if got.Cache != original.Cache {
		t.Errorf("Cache = %+v, want %+v", got.Cache, original.Cache)
	}
	if got.Identity != original.Identity {
		t.Errorf("Identity = %+v, want %+v", got.Identity, original.Identity)
	}
}

func TestManager_ReadInvalid(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(bytes.NewBufferString("app_name = [broken")); err == nil {
		t.Error("Read() of invalid TOML did not fail")
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig("notes", "/home/user/.notes")
	if cfg.AppName != "notes" {
		t.Errorf("AppName = %s", cfg.AppName)
	}
	if cfg.Cache.Type != "filesystem" {
		t.Errorf("Cache.Type = %s, want filesystem", cfg.Cache.Type)
	}
	if cfg.Cache.Dir != filepath.Join("/home/user/.notes", "sessions") {
		t.Errorf("Cache.Dir = %s", cfg.Cache.Dir)
	}
	if cfg.Identity.Type != "http" {
		t.Errorf("Identity.Type = %s, want http", cfg.Identity.Type)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.toml")
	cfg := NewConfig("notes", t.TempDir())

	if err := Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	got, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if got.AppName != "notes" {
		t.Errorf("AppName = %s, want notes", got.AppName)
	}

	if err := Init(path, cfg); err == nil {
		t.Error("Init() overwrote an existing config file")
	}
}

func TestReadFromFile_Missing(t *testing.T) {
	if _, err := ReadFromFile(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("ReadFromFile() of missing file did not fail")
	}
}
