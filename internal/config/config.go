package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  A Config is built once at startup and passed
// into constructors; nothing reads the environment after that.
type Config struct {
	Env         string   // application environment (e.g. "dev", "prod")
	Port        string   // HTTP port to listen on
	DatabaseURL string   // store connection string (mysql://, postgres://, sqlite:)
	DBUser      string   // database username, used when DatabaseURL is empty
	DBPass      string   // database password (optional)
	DBHost      string   // database host address
	DBPort      string   // database port number
	DBName      string   // database name
	DBMigrate   bool     // apply schema migrations at startup
	JWTSecret   string   // secret used to sign JWTs
	BcryptCost  int      // bcrypt cost for password hashing
	CORSOrigins []string // allowed CORS origins
	LogLevel    string   // debug | info | warn | error
	LogFormat   string   // text | json

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Events    EventsConfig
}

// LoadDotEnv seeds the process environment from the given files (".env" when
// none are named).  Variables that are already set win.  Missing files are
// not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// Load reads configuration values from environment variables and returns a
// Config.  Every missing or malformed required variable is reported in the
// returned error so that a broken deployment shows all problems at once.
func Load() (Config, error) {
	var errs []error
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", key))
		}
		return v
	}

	cfg := Config{
		Env:         envStr("APP_ENV", "dev"),
		Port:        envStr("APP_PORT", "8000"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMigrate:   envBool("DB_MIGRATE", true),
		JWTSecret:   must("JWT_SECRET"),
		CORSOrigins: splitList(envStr("CORS_ORIGINS", "http://localhost:8081,http://127.0.0.1:8081")),
		LogLevel:    strings.ToLower(envStr("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(envStr("LOG_FORMAT", "text")),
		Redis:       LoadRedisConfig(),
		RateLimit:   LoadRateLimitConfig(),
		Cache:       LoadCacheConfig(),
		Events:      LoadEventsConfig(),
	}

	// Without a URL the MySQL parts are mandatory.
	if cfg.DatabaseURL == "" {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}

	cost, err := bcryptCost(os.Getenv("BCRYPT_COST"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.BcryptCost = cost

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		errs = append(errs, fmt.Errorf("invalid int for APP_PORT: %q", cfg.Port))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

// bcryptCost parses BCRYPT_COST.  The cost may be raised above the library
// default but never lowered below it.
func bcryptCost(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return bcrypt.DefaultCost, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid int for BCRYPT_COST: %q", s)
	}
	if n < bcrypt.DefaultCost || n > bcrypt.MaxCost {
		return 0, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.DefaultCost, bcrypt.MaxCost, n)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
