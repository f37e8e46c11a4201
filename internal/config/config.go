package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string
	JWTTTL    time.Duration

	// Draft engine tunables, passed explicitly to each engine instance.
	DraftStorePath   string
	DraftQuotaBytes  int64
	DraftMaxDrafts   int
	DraftRetention   time.Duration
	DraftDebounce    time.Duration
	IdentityDebounce time.Duration
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",

		JWTSecret: mustGetenv("JWT_SECRET"),
		JWTTTL:    getdur("JWT_TTL", 7*24*time.Hour),

		DraftStorePath:   getenv("DRAFT_STORE_PATH", "data/drafts.db"),
		DraftQuotaBytes:  getint64("DRAFT_STORE_QUOTA_BYTES", 5<<20),
		DraftMaxDrafts:   int(getint64("DRAFT_MAX_DRAFTS", 5)),
		DraftRetention:   getdur("DRAFT_RETENTION", 30*24*time.Hour),
		DraftDebounce:    getdur("DRAFT_DEBOUNCE", 3*time.Second),
		IdentityDebounce: getdur("DRAFT_IDENTITY_DEBOUNCE", 1500*time.Millisecond),
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}

func getint64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getdur(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
