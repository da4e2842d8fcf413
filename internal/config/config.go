package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Only JWT_SECRET is mandatory; everything else
// falls back to a default suitable for a single-node sqlite deployment.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	DB             DBConfig      // database connection parameters
	JWTSecret      string        // secret used to sign JWTs
	AccessTTLMin   int           // access token time-to-live in minutes
	BcryptCost     int           // bcrypt cost for password hashing
	RequestTimeout time.Duration // per-request deadline applied to allocation calls
	UploadMaxBytes int64         // maximum size of a single uploaded document
	RabbitURL      string        // AMQP URL; empty disables event publishing
	AuditLogPath   string        // file the booking event consumer appends to
	AllowOrigins   []string      // CORS and websocket origins; empty allows any
	Hostel         HostelConfig  // inventory seeding and recycle-bin retention
}

// DBConfig selects the SQL driver and its connection parameters.  Driver is
// one of mysql, postgres or sqlite.  For sqlite only Path is used; for
// postgres a full DSN may be supplied instead of the individual parts.
type DBConfig struct {
	Driver string
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
	DSN    string
	Path   string
}

// HostelConfig describes the fixed room/bed layout seeded on first start and
// how long soft-deleted bookings stay in the recycle bin.
type HostelConfig struct {
	Rooms            int
	BedsPerRoom      int
	RecycleRetention time.Duration
	PurgeInterval    time.Duration
}

// Load reads configuration values from environment variables and returns a
// Config.  Missing required values cause the program to exit with a fatal
// log message.
func Load() Config {
	return Config{
		Env:            getenv("APP_ENV", "dev"),
		Port:           getenv("APP_PORT", "8080"),
		DB:             LoadDBConfig(),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60),
		BcryptCost:     envInt("BCRYPT_COST", 12),
		RequestTimeout: envDur("REQUEST_TIMEOUT", 5*time.Second),
		UploadMaxBytes: int64(envInt("UPLOAD_MAX_BYTES", 5<<20)),
		RabbitURL:      rabbitURL(),
		AuditLogPath:   getenv("AUDIT_LOG_PATH", "logs/booking_events.log"),
		AllowOrigins:   splitList(os.Getenv("ALLOW_ORIGINS")),
		Hostel:         LoadHostelConfig(),
	}
}

// LoadDBConfig reads the DB_* variables.
func LoadDBConfig() DBConfig {
	return DBConfig{
		Driver: getenv("DB_DRIVER", "sqlite"),
		User:   os.Getenv("DB_USER"),
		Pass:   os.Getenv("DB_PASS"),
		Host:   getenv("DB_HOST", "localhost"),
		Port:   os.Getenv("DB_PORT"),
		Name:   getenv("DB_NAME", "hostel"),
		DSN:    os.Getenv("DB_DSN"),
		Path:   getenv("DB_PATH", "data/hostel.db"),
	}
}

// LoadHostelConfig reads the HOSTEL_* variables.  The defaults mirror the
// original layout of 30 rooms with three beds each and a 30 day recycle bin.
func LoadHostelConfig() HostelConfig {
	h := HostelConfig{
		Rooms:            envInt("HOSTEL_ROOMS", 30),
		BedsPerRoom:      envInt("HOSTEL_BEDS_PER_ROOM", 3),
		RecycleRetention: envDur("RECYCLE_RETENTION", 30*24*time.Hour),
		PurgeInterval:    envDur("RECYCLE_PURGE_INTERVAL", time.Hour),
	}
	if h.BedsPerRoom > 26 {
		h.BedsPerRoom = 26
	}
	return h
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

func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
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

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "":
		return d
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
