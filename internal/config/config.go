package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds dashboard configuration from a YAML file, .env and the
// environment, in increasing precedence.
type Config struct {
	DataDir          string
	DenyListFile     string
	HTTPAddr         string
	DBPath           string
	Passphrase       string
	SessionTTL       time.Duration
	CacheSize        int
	EnableWatcher    bool
	OutputDir        string
	DefaultStartDate time.Time
	Exclusion        ExclusionConfig
}

// ExclusionConfig lists the internal-account markers.
type ExclusionConfig struct {
	EmailDomains   []string `yaml:"email_domains"`
	SlugSubstrings []string `yaml:"slug_substrings"`
}

type fileConfig struct {
	DataDir          string          `yaml:"data_dir"`
	DenyListFile     string          `yaml:"deny_list_file"`
	HTTPAddr         string          `yaml:"http_addr"`
	DBPath           *string         `yaml:"db_path"`
	Passphrase       string          `yaml:"passphrase"`
	SessionTTL       string          `yaml:"session_ttl"`
	CacheSize        *int            `yaml:"cache_size"`
	EnableWatcher    *bool           `yaml:"enable_watcher"`
	OutputDir        string          `yaml:"output_dir"`
	DefaultStartDate string          `yaml:"default_start_date"`
	Exclusion        ExclusionConfig `yaml:"exclusion"`
}

const (
	defaultDataDir      = "./data"
	defaultDenyListFile = "excluded_companies.json"
	defaultHTTPAddr     = ":8080"
	defaultDBPath       = "./dashboard.db"
	defaultSessionTTL   = 12 * time.Hour
	defaultCacheSize    = 4
	minCacheSize        = 1
	maxCacheSize        = 64
	defaultOutputDir    = "./exports"
	defaultStartDate    = "2025-11-15"
	dateLayout          = "2006-01-02"
)

var (
	defaultEmailDomains   = []string{"@jelou.ai", "impersonate"}
	defaultSlugSubstrings = []string{"jelou"}
)

// Load reads the optional YAML file at path, then .env, then the
// environment. An empty path skips the file; a missing file is logged and
// ignored. Malformed values fall back to defaults with a log line, except a
// malformed YAML document, which is an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	var fc fileConfig
	if path != "" {
		loaded, err := loadFileConfig(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Printf("config file %s not found (using defaults)", path)
		case err != nil:
			return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
		default:
			fc = loaded
		}
	}

	cfg := Config{
		DataDir:    firstNonEmpty(os.Getenv("DATA_DIR"), fc.DataDir, defaultDataDir),
		Passphrase: firstNonEmpty(os.Getenv("DASHBOARD_PASSPHRASE"), fc.Passphrase),
		OutputDir:  firstNonEmpty(os.Getenv("OUTPUT_DIR"), fc.OutputDir, defaultOutputDir),
		Exclusion:  fc.Exclusion,
	}
	cfg.DenyListFile = firstNonEmpty(os.Getenv("DENY_LIST_FILE"), fc.DenyListFile, filepath.Join(cfg.DataDir, defaultDenyListFile))

	cfg.HTTPAddr = firstNonEmpty(os.Getenv("HTTP_ADDR"), fc.HTTPAddr, defaultHTTPAddr)
	if port := os.Getenv("PORT"); port != "" && cfg.HTTPAddr == defaultHTTPAddr {
		cfg.HTTPAddr = port
	}
	if !strings.Contains(cfg.HTTPAddr, ":") {
		cfg.HTTPAddr = ":" + cfg.HTTPAddr
	}

	// An explicitly empty DB path disables the load history.
	cfg.DBPath = defaultDBPath
	if fc.DBPath != nil {
		cfg.DBPath = *fc.DBPath
	}
	if v, ok := os.LookupEnv("DB_PATH"); ok {
		cfg.DBPath = v
	}

	cfg.SessionTTL = defaultSessionTTL
	if v := firstNonEmpty(os.Getenv("SESSION_TTL"), fc.SessionTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Printf("invalid SESSION_TTL=%q, using default %s", v, defaultSessionTTL)
		} else {
			cfg.SessionTTL = d
		}
	}

	cfg.CacheSize = defaultCacheSize
	if fc.CacheSize != nil {
		cfg.CacheSize = *fc.CacheSize
	}
	if v := os.Getenv("CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid CACHE_SIZE=%q, using default %d", v, defaultCacheSize)
			n = defaultCacheSize
		}
		cfg.CacheSize = n
	}
	if cfg.CacheSize < minCacheSize {
		log.Printf("CACHE_SIZE raised to minimum %d (was %d)", minCacheSize, cfg.CacheSize)
		cfg.CacheSize = minCacheSize
	}
	if cfg.CacheSize > maxCacheSize {
		log.Printf("CACHE_SIZE capped at %d (was %d)", maxCacheSize, cfg.CacheSize)
		cfg.CacheSize = maxCacheSize
	}

	cfg.EnableWatcher = true
	if fc.EnableWatcher != nil {
		cfg.EnableWatcher = *fc.EnableWatcher
	}
	if v := strings.TrimSpace(os.Getenv("ENABLE_WATCHER")); v != "" {
		cfg.EnableWatcher = parseBool(v)
	}

	start, _ := time.Parse(dateLayout, defaultStartDate)
	cfg.DefaultStartDate = start
	if v := firstNonEmpty(os.Getenv("DEFAULT_START_DATE"), fc.DefaultStartDate); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			log.Printf("invalid DEFAULT_START_DATE=%q, using default %s", v, defaultStartDate)
		} else {
			cfg.DefaultStartDate = t
		}
	}

	if len(cfg.Exclusion.EmailDomains) == 0 {
		cfg.Exclusion.EmailDomains = append([]string{}, defaultEmailDomains...)
	}
	if len(cfg.Exclusion.SlugSubstrings) == 0 {
		cfg.Exclusion.SlugSubstrings = append([]string{}, defaultSlugSubstrings...)
	}

	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GateEnabled reports whether API routes require a session.
func (c Config) GateEnabled() bool {
	return c.Passphrase != ""
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("DATA_DIR is required")
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return errors.New("HTTP_ADDR is required")
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}
