/*
Package configs loads the server configuration.

Settings come from environment variables, optionally pre-seeded from a .env file. Gameplay
constants (physics, round durations, join and rematch windows) default to the built-in values and
can be overridden by a YAML file named in GAMEPLAY_CONFIG.
*/
package configs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pongrt/internal/app/game"
)

const (
	// EnvDevelopment relaxes origin checks and allows an insecure default secret.
	EnvDevelopment = "development"

	devJWTSecret = "pongrt_insecure_dev_secret_change_me"
)

// AppConfig contains everything the server needs at startup.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string
	JWTSecret      string

	// Collaborators
	UserServiceURL  string
	MatchServiceURL string

	// Optional infrastructure. Empty values disable the component.
	RedisURL          string
	DatabaseDSN       string
	NATSURL           string
	S3BucketName      string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Gameplay
	InviteTTL    time.Duration
	GameplayFile string
	Gameplay     game.RoomSettings
}

// IsDevelopment reports whether the server runs in development mode.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// LoadConfig reads the configuration from the environment. A .env file in the working directory,
// when present, fills variables that are not already set.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = EnvDevelopment
	}

	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", port, 1024, 65535)
	}
	cfg.Port = port

	// --- Security Settings ---
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
		cfg.JWTSecret = devJWTSecret
	}

	// --- Collaborators ---
	cfg.UserServiceURL = strings.TrimRight(os.Getenv("USER_SERVICE_URL"), "/")
	cfg.MatchServiceURL = strings.TrimRight(os.Getenv("MATCH_SERVICE_URL"), "/")

	// --- Optional infrastructure ---
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.DatabaseDSN = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.S3BucketName = os.Getenv("S3_BUCKET_NAME")
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3Region = os.Getenv("S3_REGION")
	cfg.S3AccessKeyID = os.Getenv("S3_ACCESS_KEY_ID")
	cfg.S3SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")

	if cfg.S3BucketName != "" && (cfg.S3AccessKeyID == "") != (cfg.S3SecretAccessKey == "") {
		return nil, fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	}

	// --- Gameplay ---
	cfg.InviteTTL = game.DefaultInviteTTL
	if ttl := os.Getenv("INVITE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid INVITE_TTL environment variable: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("INVITE_TTL must be positive, got %s", d)
		}
		cfg.InviteTTL = d
	}

	cfg.GameplayFile = os.Getenv("GAMEPLAY_CONFIG")
	cfg.Gameplay = game.DefaultRoomSettings()
	if cfg.GameplayFile != "" {
		settings, err := LoadGameplay(cfg.GameplayFile)
		if err != nil {
			return nil, err
		}
		cfg.Gameplay = settings
	}

	return cfg, nil
}

// LoadGameplay reads a YAML gameplay file on top of the defaults.
// A mode listed in the file replaces that mode's settings as a whole.
func LoadGameplay(path string) (game.RoomSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return game.RoomSettings{}, fmt.Errorf("failed to read gameplay config: %w", err)
	}
	return ParseGameplay(data)
}

// ParseGameplay decodes YAML gameplay overrides. Durations use Go syntax ("90s", "1m30s").
func ParseGameplay(data []byte) (game.RoomSettings, error) {
	settings := game.DefaultRoomSettings()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
		return game.RoomSettings{}, fmt.Errorf("invalid gameplay config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return game.RoomSettings{}, fmt.Errorf("invalid gameplay config: %w", err)
	}
	return settings, nil
}

func splitList(raw string) []string {
	out := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
