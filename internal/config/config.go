// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration of the booking front-end.  Each
// field corresponds to an environment variable.
type Config struct {
	Env           string         // application environment (dev/test/prod)
	Port          string         // HTTP port to listen on
	BookingAPIURL string         // base URL of the remote booking service
	BookingAPITTL time.Duration  // per-request timeout against the booking service
	JWTSecret     string         // secret used to verify bearer tokens
	ApproverRoles []string       // roles allowed to approve and reject
	Location      *time.Location // zone used for naive timestamps and "today"

	// Decision audit store.  Disabled when DB.Host is empty.
	DB           DBConfig
	AuditEnabled bool
}

// DBConfig locates the MySQL audit database.
type DBConfig struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

// LoadDotenv seeds the environment from the given dotenv files.  Variables
// already set win over the file.  Missing files are ignored.
func LoadDotenv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Printf("config: load %s: %v", f, err)
		}
	}
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must() and missing values stop the program.
func Load() Config {
	cfg := Config{
		Env:           envStr("APP_ENV", "dev"),
		Port:          must("APP_PORT"),
		BookingAPIURL: must("BOOKING_API_URL"),
		BookingAPITTL: envDur("BOOKING_API_TIMEOUT", 10*time.Second),
		JWTSecret:     must("JWT_SECRET"),
		ApproverRoles: parseList(envStr("APPROVER_ROLES", "lab_manager")),
		Location:      mustLocation("APP_TIMEZONE"),
		DB:            dbFromEnv(),
	}
	cfg.AuditEnabled = cfg.DB.Host != "" && envBool("AUDIT_ENABLED", true)
	return cfg
}

// LoadDB reads the DB_* variables for processes that cannot run without the
// audit database.  DB_USER, DB_HOST and DB_NAME are required.
func LoadDB() DBConfig {
	must("DB_USER")
	must("DB_HOST")
	must("DB_NAME")
	return dbFromEnv()
}

func dbFromEnv() DBConfig {
	return DBConfig{
		User: os.Getenv("DB_USER"),
		Pass: os.Getenv("DB_PASS"),
		Host: os.Getenv("DB_HOST"),
		Port: envStr("DB_PORT", "3306"),
		Name: os.Getenv("DB_NAME"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func mustLocation(key string) *time.Location {
	name := envStr(key, "UTC")
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Fatalf("invalid time zone for %s: %q", key, name)
	}
	return loc
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
