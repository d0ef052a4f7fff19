package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Secrets have no defaults in code and must come from config.json, a .env file or the environment.
type AppConfig struct {
	AppPort string
	// TLS serves HTTPS directly when both files are set.
	TLSCertFile string
	TLSKeyFile  string
	// Remote r-chan API. Empty APIBaseURL derives http://<request host>:8080 per request.
	APIBaseURL    string
	APIPort       string
	APITimeoutSec int
	// Sessions
	SessionStore    string // memory | redis | database
	SessionSecret   string
	SessionTTLHours int
	CookieSecure    bool
	// Abuse protection
	RateLimitPerMinute int
	CaptchaEnabled     bool
	AllowedOrigins     []string
	// Reference data caching
	SectionCacheTTLSec int
	// Gin framework configuration
	GinMode string
	GinPath string
	// Redis for sessions/caching
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Database session store
	DatabaseURI string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Error reporting
	SentryDSN         string
	SentryEnvironment string
}

// TLSEnabled reports whether both halves of the key pair are configured.
func (c AppConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: .env -> config/config.json -> defaults -> environment variable overrides.
	// godotenv.Load never overrides variables that are already set.
	_ = godotenv.Load()

	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Printf("invalid config/config.json: %v", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.SessionSecret == "" {
		if strings.ToLower(cfg.GinMode) != "debug" {
			log.Fatal("SESSION_SECRET must be set in environment variables")
		}
		cfg.SessionSecret = "insecure-debug-secret"
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Set replaces the cached configuration. Used by tests and tools that build config in code.
func Set(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads the JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		switch t := m[key].(type) {
		case float64:
			return int(t)
		case int:
			return t
		case json.Number:
			i, _ := t.Int64()
			return int(i)
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		b, _ := m[key].(bool)
		return b
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}

	// Grouped sections first; a flat document is treated as a single section.
	section := func(name string) map[string]any {
		if m, ok := raw[name].(map[string]any); ok {
			return m
		}
		return raw
	}

	app := section("app")
	out.AppPort = getString(app, "AppPort")
	out.TLSCertFile = getString(app, "TLSCertFile")
	out.TLSKeyFile = getString(app, "TLSKeyFile")
	out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
	out.CaptchaEnabled = getBool(app, "CaptchaEnabled")
	out.SectionCacheTTLSec = getInt(app, "SectionCacheTTLSec")
	if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
		out.AllowedOrigins = list
	}

	api := section("api")
	out.APIBaseURL = getString(api, "APIBaseURL")
	out.APIPort = getString(api, "APIPort")
	out.APITimeoutSec = getInt(api, "APITimeoutSec")

	sess := section("session")
	out.SessionStore = getString(sess, "SessionStore")
	out.SessionSecret = getString(sess, "SessionSecret")
	out.SessionTTLHours = getInt(sess, "SessionTTLHours")
	out.CookieSecure = getBool(sess, "CookieSecure")

	g := section("gin")
	if v := getString(g, "Mode"); v != "" {
		out.GinMode = v
	}
	if v := getString(g, "LogPath"); v != "" {
		out.GinPath = v
	}

	rds := section("redis")
	out.RedisHost = getString(rds, "RedisHost")
	out.RedisPort = getInt(rds, "RedisPort")
	out.RedisDB = getInt(rds, "RedisDB")
	out.RedisPassword = getString(rds, "RedisPassword")

	dbs := section("database")
	out.DatabaseURI = getString(dbs, "DatabaseURI")

	lg := section("log")
	out.LogLevel = getString(lg, "LogLevel")
	out.LogPath = getString(lg, "LogPath")
	out.LogMaxSizeMB = getInt(lg, "LogMaxSizeMB")
	out.LogMaxBackups = getInt(lg, "LogMaxBackups")
	out.LogMaxAgeDays = getInt(lg, "LogMaxAgeDays")
	out.LogCompress = getBool(lg, "LogCompress")

	sn := section("sentry")
	out.SentryDSN = getString(sn, "SentryDSN")
	out.SentryEnvironment = getString(sn, "SentryEnvironment")

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8081"
	}
	if c.APIPort == "" {
		c.APIPort = "8080"
	}
	if c.APITimeoutSec == 0 {
		c.APITimeoutSec = 10
	}
	if c.SessionStore == "" {
		c.SessionStore = "memory"
	}
	if c.SessionTTLHours == 0 {
		c.SessionTTLHours = 24
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 30
	}
	if c.SectionCacheTTLSec == 0 {
		c.SectionCacheTTLSec = 3600
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.DatabaseURI == "" {
		c.DatabaseURI = "sqlite://data/sessions.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.SentryEnvironment == "" {
		c.SentryEnvironment = c.GinMode
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("TLS_CERT_FILE", ""); v != "" {
		c.TLSCertFile = v
	}
	if v := getEnv("TLS_KEY_FILE", ""); v != "" {
		c.TLSKeyFile = v
	}
	if v := getEnv("API_BASE_URL", ""); v != "" {
		c.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v := getEnv("API_PORT", ""); v != "" {
		c.APIPort = v
	}
	if v := getEnv("API_TIMEOUT_SEC", ""); v != "" {
		c.APITimeoutSec = mustParseInt(v)
	}
	if v := getEnv("SESSION_STORE", ""); v != "" {
		c.SessionStore = strings.ToLower(v)
	}
	if v := getEnv("SESSION_SECRET", ""); v != "" {
		c.SessionSecret = v
	}
	if v := getEnv("SESSION_TTL_HOURS", ""); v != "" {
		c.SessionTTLHours = mustParseInt(v)
	}
	if v := getEnv("COOKIE_SECURE", ""); v != "" {
		c.CookieSecure = mustParseBool(v)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("CAPTCHA_ENABLED", ""); v != "" {
		c.CaptchaEnabled = mustParseBool(v)
	}
	if v := getEnv("SECTION_CACHE_TTL_SEC", ""); v != "" {
		c.SectionCacheTTLSec = mustParseInt(v)
	}
	c.AllowedOrigins = readListEnv("ALLOWED_ORIGINS", c.AllowedOrigins)
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("SENTRY_DSN", ""); v != "" {
		c.SentryDSN = v
	}
	if v := getEnv("SENTRY_ENVIRONMENT", ""); v != "" {
		c.SentryEnvironment = v
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func mustParseBool(val string) bool {
	b, err := strconv.ParseBool(val)
	if err != nil {
		log.Fatalf("invalid boolean value %s: %v", val, err)
	}
	return b
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
