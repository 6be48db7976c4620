package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	// DocStore selects the state store backend: memory|sql|redis.
	DocStore string
	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AttemptGuard selects the attempt read-modify-write strategy: loose|cas.
	AttemptGuard string

	// CatalogDir optionally adds course catalogs on top of the embedded ones.
	CatalogDir string

	AuthHMACSecret  string
	EnableLocalAuth bool
	StaffUser       string
	StaffPassHash   string // bcrypt

	CORSOrigins []string

	// LTI AGS passback; left empty to keep the gradebook local only.
	AGSTokenURL     string
	AGSClientID     string
	AGSClientSecret string
	AGSTimeout      time.Duration

	LogLevel string
	LogJSON  bool
}

// Load reads an optional .env file before resolving the environment.
// A missing file is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, err
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}
	return FromEnv(), nil
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	return Config{
		Mode:            mode,
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		DocStore:        envOr("DOCSTORE", "sql"),
		DBDriver:        envOr("DB_DRIVER", "sqlite"),
		DBDSN:           envOr("DB_DSN", ""),
		RedisAddr:       envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         envInt("REDIS_DB", 0),
		AttemptGuard:    envOr("ATTEMPT_GUARD", "loose"),
		CatalogDir:      os.Getenv("CATALOG_DIR"),
		AuthHMACSecret:  envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		EnableLocalAuth: envBool("ENABLE_LOCAL_AUTH", mode == ModeOffline),
		StaffUser:       envOr("STAFF_USER", "staff"),
		StaffPassHash:   envOr("STAFF_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOrigins:     csvOr("CORS_ORIGINS", "http://localhost:3000"),
		AGSTokenURL:     os.Getenv("AGS_TOKEN_URL"),
		AGSClientID:     os.Getenv("AGS_CLIENT_ID"),
		AGSClientSecret: os.Getenv("AGS_CLIENT_SECRET"),
		AGSTimeout:      envDuration("AGS_TIMEOUT", 10*time.Second),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogJSON:         envBool("LOG_JSON", mode == ModeOnline),
	}
}

// AGSEnabled reports whether score passback credentials are configured.
func (c Config) AGSEnabled() bool {
	return c.AGSTokenURL != "" && c.AGSClientID != ""
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
