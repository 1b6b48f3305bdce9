package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret signs tokens when JWT_SECRET_KEY is unset. Only dev login may run on it.
const DevJWTSecret = "dev-secret-change-me"

var ErrNoJWTSecret = errors.New("JWT_SECRET_KEY must be set unless ENABLE_DEV_LOGIN=true")

type AppConfig struct {
	Port     string
	Timezone string

	DBDriver string // sqlite|mysql
	DBPath   string
	DBDSN    string

	UploadRoot    string
	ReferenceSeed string

	JWTSecret      string
	JWTExpiryDays  int
	EnableDevLogin bool

	ClassifierEndpoint string
	ClassifierTimeout  time.Duration
	ClassifierConf     float64

	MaxImagesPerRound int
	MaxFileBytes      int64

	LogLevel  string
	LogFormat string // json|console
}

// Load reads .env (when present) and the process environment.
func Load() AppConfig {
	if err := godotenv.Load(); err != nil {
		log.Printf("[cfg] No .env file found or error loading: %v", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from a lookup function; empty values fall back to defaults.
func FromEnv(getenv func(string) string) AppConfig {
	get := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}
	getInt := func(k string, def int) int {
		if v, err := strconv.Atoi(get(k, "")); err == nil && v > 0 {
			return v
		}
		return def
	}
	getFloat := func(k string, def float64) float64 {
		if v, err := strconv.ParseFloat(get(k, ""), 64); err == nil && v > 0 && v <= 1 {
			return v
		}
		return def
	}
	getDur := func(k string, def time.Duration) time.Duration {
		if v, err := time.ParseDuration(get(k, "")); err == nil && v > 0 {
			return v
		}
		return def
	}

	return AppConfig{
		Port:               get("PORT", "8080"),
		Timezone:           get("TZ", "Asia/Bangkok"),
		DBDriver:           strings.ToLower(get("DB_DRIVER", "sqlite")),
		DBPath:             get("DB_PATH", "cropcheck.db"),
		DBDSN:              get("DB_DSN", ""),
		UploadRoot:         get("UPLOAD_ROOT", "static/uploads"),
		ReferenceSeed:      get("REFERENCE_SEED", ""),
		JWTSecret:          get("JWT_SECRET_KEY", DevJWTSecret),
		JWTExpiryDays:      getInt("JWT_EXPIRY_DAYS", 7),
		EnableDevLogin:     get("ENABLE_DEV_LOGIN", "false") == "true",
		ClassifierEndpoint: get("CLASSIFIER_ENDPOINT", ""),
		ClassifierTimeout:  getDur("CLASSIFIER_TIMEOUT", 60*time.Second),
		ClassifierConf:     getFloat("CLASSIFIER_CONF", 0.25),
		MaxImagesPerRound:  getInt("MAX_IMAGES_PER_ROUND", 5),
		MaxFileBytes:       int64(getInt("MAX_FILE_BYTES", 20*1024*1024)),
		LogLevel:           get("LOG_LEVEL", "info"),
		LogFormat:          get("LOG_FORMAT", "json"),
	}
}

// Validate rejects configs that cannot be served safely.
func (c AppConfig) Validate() error {
	if c.JWTSecret == DevJWTSecret && !c.EnableDevLogin {
		return ErrNoJWTSecret
	}
	return nil
}

// Location resolves Timezone, falling back to UTC.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
