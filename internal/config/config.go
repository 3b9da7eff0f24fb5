package config

import (
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv, AppPort, BaseURL string
	FrontendURL              string

	// DBDSN is empty when no database is configured; the API then reports
	// the store as unavailable instead of refusing to boot.
	DBDSN            string
	DBHealthInterval time.Duration

	RedisAddr string
	RedisDB   int

	CookieSecret      string
	SessionCookieName string
	SessionTTL        time.Duration

	GoogleClientID, GoogleClientSecret, GoogleRedirectURL string
	OAuthStateTTL                                         time.Duration

	ProviderRPS     int
	ProviderBurst   int
	ProviderTimeout time.Duration

	CORSOrigins     []string
	RateLimitMax    int
	RateLimitWindow time.Duration

	// ProxyHeader names the header carrying the client IP when running behind
	// a reverse proxy. It is honoured only for TrustedProxies when any are set.
	ProxyHeader    string
	TrustedProxies []string
}

func Load() *Config {
	_ = godotenv.Load()

	baseURL := strings.TrimRight(get("APP_BASE_URL", get("BACKEND_URL", "http://localhost:3000")), "/")
	dsn, err := ParseDSN(get("DATABASE_URL", get("DB_DSN", "")))
	if err != nil {
		log.Printf("ignoring DATABASE_URL: %v", err)
	}

	c := &Config{
		AppEnv:             get("APP_ENV", get("NODE_ENV", "dev")),
		AppPort:            get("APP_PORT", get("PORT", "3000")),
		BaseURL:            baseURL,
		FrontendURL:        strings.TrimRight(get("FRONTEND_URL", "http://localhost:4321"), "/"),
		DBDSN:              dsn,
		DBHealthInterval:   mustDuration(get("DB_HEALTH_INTERVAL", "10s")),
		RedisAddr:          get("REDIS_ADDR", ""),
		RedisDB:            atoi(get("REDIS_DB", "0")),
		CookieSecret:       must("COOKIE_SECRET"),
		SessionCookieName:  get("SESSION_COOKIE_NAME", "course_sid"),
		SessionTTL:         mustDuration(get("SESSION_TTL", "168h")),
		GoogleClientID:     must("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: must("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  get("GOOGLE_REDIRECT_URL", baseURL+"/api/auth/callback/google"),
		OAuthStateTTL:      mustDuration(get("OAUTH_STATE_TTL", "600s")),
		ProviderRPS:        GetEnvInt("PROVIDER_RPS", 5),
		ProviderBurst:      GetEnvInt("PROVIDER_BURST", 10),
		ProviderTimeout:    mustDuration(get("PROVIDER_TIMEOUT", "10s")),
		CORSOrigins:        GetEnvList("CORS_ORIGINS", []string{"http://localhost:4321"}),
		RateLimitMax:       GetEnvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow:    mustDuration(get("RATE_LIMIT_WINDOW", "30s")),
		ProxyHeader:        get("PROXY_HEADER", ""),
		TrustedProxies:     GetEnvList("TRUSTED_PROXIES", nil),
	}
	if err := c.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return c
}

// Validate rejects settings the server would refuse at startup.
func (c *Config) Validate() error {
	for _, o := range c.CORSOrigins {
		if o == "*" {
			return errors.New("CORS_ORIGINS=* cannot be combined with credentialed requests; list the frontend origins explicitly")
		}
	}
	return nil
}

// Production reports whether cookies must be restricted to HTTPS.
func (c *Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production") || strings.EqualFold(c.AppEnv, "prod")
}

// ParseDSN accepts either a go-sql-driver DSN or a mysql:// URL and returns
// a DSN with parseTime enabled.
func ParseDSN(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	var cfg *mysql.Config
	if strings.HasPrefix(raw, "mysql://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", err
		}
		cfg = mysql.NewConfig()
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
		cfg.Net = "tcp"
		cfg.Addr = u.Host
		if u.Port() == "" {
			cfg.Addr = u.Host + ":3306"
		}
		cfg.DBName = strings.TrimPrefix(u.Path, "/")
		for k, v := range u.Query() {
			if len(v) > 0 {
				if cfg.Params == nil {
					cfg.Params = map[string]string{}
				}
				cfg.Params[k] = v[0]
			}
		}
	} else {
		var err error
		if cfg, err = mysql.ParseDSN(raw); err != nil {
			return "", err
		}
	}
	cfg.ParseTime = true
	if cfg.Params != nil {
		delete(cfg.Params, "parseTime")
		if v, ok := cfg.Params["ssl"]; ok {
			delete(cfg.Params, "ssl")
			_, explicit := cfg.Params["tls"]
			if tls := sslToTLS(v); tls != "" && cfg.TLSConfig == "" && !explicit {
				cfg.TLSConfig = tls
			}
		}
	}
	return cfg.FormatDSN(), nil
}

// sslToTLS maps the Node-style ssl URL parameter to a driver tls value.
// Anything that does not switch TLS off requires it; certificate checks are
// skipped only for rejectUnauthorized=false.
func sslToTLS(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "false", "0", "off":
		return ""
	case "", "true", "1", "on", "required":
		return "true"
	}
	var opts struct {
		RejectUnauthorized *bool `json:"rejectUnauthorized"`
	}
	if err := json.Unmarshal([]byte(v), &opts); err == nil && opts.RejectUnauthorized != nil && !*opts.RejectUnauthorized {
		return "skip-verify"
	}
	return "true"
}

func GetEnvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func GetEnvList(k string, d []string) []string {
	if v := os.Getenv(k); v != "" {
		return split(v)
	}
	return d
}

func get(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing env %s", k)
	}
	return v
}
func atoi(s string) int { i, _ := strconv.Atoi(s); return i }
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration %q: %v", s, err)
	}
	return d
}
func split(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func GetEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
