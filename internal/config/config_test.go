package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"DATA_DIR", "DENY_LIST_FILE", "HTTP_ADDR", "PORT", "DB_PATH", "DASHBOARD_PASSPHRASE",
	"SESSION_TTL", "CACHE_SIZE", "ENABLE_WATCHER", "OUTPUT_DIR", "DEFAULT_START_DATE",
}

// clearEnv unsets every variable Load reads and restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != defaultDataDir || cfg.HTTPAddr != ":8080" || cfg.DBPath != defaultDBPath {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DenyListFile != filepath.Join(defaultDataDir, "excluded_companies.json") {
		t.Fatalf("deny-list should default under the data dir, got %s", cfg.DenyListFile)
	}
	if cfg.SessionTTL != 12*time.Hour || cfg.CacheSize != 4 || !cfg.EnableWatcher {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.DefaultStartDate.Equal(time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start date %v", cfg.DefaultStartDate)
	}
	if cfg.GateEnabled() {
		t.Fatalf("gate should be off without a passphrase")
	}
	if len(cfg.Exclusion.EmailDomains) != 2 || cfg.Exclusion.SlugSubstrings[0] != "jelou" {
		t.Fatalf("unexpected exclusion defaults %+v", cfg.Exclusion)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	doc := "data_dir: /srv/data\nhttp_addr: \":9000\"\ncache_size: 8\nenable_watcher: false\nexclusion:\n  email_domains: [\"@corp.example\"]\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CACHE_SIZE", "16")
	t.Setenv("DASHBOARD_PASSPHRASE", "s3cret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/srv/data" || cfg.HTTPAddr != ":9000" || cfg.EnableWatcher {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.CacheSize != 16 {
		t.Fatalf("environment should win over the file, got %d", cfg.CacheSize)
	}
	if !cfg.GateEnabled() {
		t.Fatalf("passphrase from the environment should enable the gate")
	}
	if cfg.Exclusion.EmailDomains[0] != "@corp.example" || cfg.Exclusion.SlugSubstrings[0] != "jelou" {
		t.Fatalf("unexpected exclusion %+v", cfg.Exclusion)
	}
}

func TestLoadMissingAndBrokenFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "absent.yaml")); err != nil {
		t.Fatalf("a missing file should fall back to defaults: %v", err)
	}
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("data_dir: [unterminated\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatalf("malformed YAML should be an error")
	}
}

func TestCacheSizeClamp(t *testing.T) {
	cases := map[string]int{"0": 1, "-3": 1, "1000": 64, "abc": 4, "10": 10}
	for in, want := range cases {
		clearEnv(t)
		t.Setenv("CACHE_SIZE", in)
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.CacheSize != want {
			t.Fatalf("CACHE_SIZE=%s: got %d, want %d", in, cfg.CacheSize, want)
		}
	}
}

func TestPortOverridesDefaultAddrOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":3000" {
		t.Fatalf("PORT should apply to the default address, got %s", cfg.HTTPAddr)
	}

	t.Setenv("HTTP_ADDR", "127.0.0.1:7000")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != "127.0.0.1:7000" {
		t.Fatalf("explicit HTTP_ADDR should win over PORT, got %s", cfg.HTTPAddr)
	}
}

func TestEmptyDBPathDisablesHistory(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PATH", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "" {
		t.Fatalf("an explicitly empty DB_PATH should disable history, got %q", cfg.DBPath)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("DEFAULT_START_DATE", "15/11/2025")
	t.Setenv("ENABLE_WATCHER", "off")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SessionTTL != defaultSessionTTL {
		t.Fatalf("bad SESSION_TTL should keep the default, got %v", cfg.SessionTTL)
	}
	if cfg.DefaultStartDate.Format(dateLayout) != defaultStartDate {
		t.Fatalf("bad start date should keep the default, got %v", cfg.DefaultStartDate)
	}
	if cfg.EnableWatcher {
		t.Fatalf("ENABLE_WATCHER=off should disable the watcher")
	}
}
