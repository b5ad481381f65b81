package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Learning LearningPolicy
}

type ServerConfig struct {
	Host    string
	Port    string
	OpsPort string
	Env     string
	// CORS origins for the browser client; "*" allows any.
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Type string // "sqlite" or "postgres"
	DSN  string
	Path string // For SQLite: file path
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	Issuer    string
}

type RedisConfig struct {
	Addr    string
	Channel string
}

// LearningPolicy holds the tunables of the scoring, ranking and practice engines.
// Defaults reproduce the platform's published rules; a YAML file named by
// POLICY_FILE may override any of them.
type LearningPolicy struct {
	MinEfficiency      float64       `yaml:"min_efficiency"`
	MinMastery         float64       `yaml:"min_mastery"`
	RetryDivisor       int           `yaml:"retry_divisor"`
	LeaderboardSize    int           `yaml:"leaderboard_size"`
	LeaderboardAbove   int           `yaml:"leaderboard_above"`
	QuestionFirstTry   int           `yaml:"question_first_try_points"`
	QuestionRetry      int           `yaml:"question_retry_points"`
	PracticeSize       int           `yaml:"practice_size"`
	PropagationDelay   time.Duration `yaml:"propagation_delay"`
	ProgressCASRetries int           `yaml:"progress_cas_retries"`
}

// DefaultLearningPolicy returns the built-in rules.
func DefaultLearningPolicy() LearningPolicy {
	return LearningPolicy{
		MinEfficiency:      60,
		MinMastery:         75,
		RetryDivisor:       2,
		LeaderboardSize:    10,
		LeaderboardAbove:   4,
		QuestionFirstTry:   10,
		QuestionRetry:      5,
		PracticeSize:       10,
		PropagationDelay:   500 * time.Millisecond,
		ProgressCASRetries: 3,
	}
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dbType := getEnv("DB_TYPE", "sqlite") // Default to SQLite for development
	dsn, dbPath := buildDSN(dbType)

	ttl, err := time.ParseDuration(getEnv("JWT_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			OpsPort:        getEnv("OPS_PORT", "9090"),
			Env:            getEnv("ENV", "development"),
			AllowedOrigins: []string{getEnv("CORS_ORIGIN", "*")},
		},
		Database: DatabaseConfig{
			Type: dbType,
			DSN:  dsn,
			Path: dbPath,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-prod"),
			TokenTTL:  ttl,
			Issuer:    getEnv("JWT_ISSUER", "pyguide"),
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", ""),
			Channel: getEnv("REDIS_CHANNEL", "pyguide-events"),
		},
		Learning: DefaultLearningPolicy(),
	}

	if path := getEnv("POLICY_FILE", ""); path != "" {
		if err := cfg.Learning.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if delay := getEnv("PROPAGATION_DELAY_MS", ""); delay != "" {
		ms, err := strconv.Atoi(delay)
		if err != nil {
			return nil, fmt.Errorf("invalid PROPAGATION_DELAY_MS: %w", err)
		}
		cfg.Learning.PropagationDelay = time.Duration(ms) * time.Millisecond
	}

	if err := cfg.Learning.Validate(); err != nil {
		return nil, err
	}
	if cfg.Server.Env == "production" && cfg.Auth.JWTSecret == "your-secret-key-change-in-prod" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

// LoadFile overlays the YAML policy file at path onto p.
// Keys missing from the file keep their current value.
func (p *LearningPolicy) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return nil
}

func (p LearningPolicy) Validate() error {
	switch {
	case p.MinEfficiency < 0 || p.MinEfficiency > 100:
		return fmt.Errorf("min_efficiency must be within [0,100], got %v", p.MinEfficiency)
	case p.MinMastery < 0 || p.MinMastery > 100:
		return fmt.Errorf("min_mastery must be within [0,100], got %v", p.MinMastery)
	case p.RetryDivisor < 1:
		return fmt.Errorf("retry_divisor must be positive, got %d", p.RetryDivisor)
	case p.LeaderboardSize < 1:
		return fmt.Errorf("leaderboard_size must be positive, got %d", p.LeaderboardSize)
	case p.LeaderboardAbove < 0 || p.LeaderboardAbove >= p.LeaderboardSize:
		return fmt.Errorf("leaderboard_above must be within [0,%d), got %d", p.LeaderboardSize, p.LeaderboardAbove)
	case p.PracticeSize < 1:
		return fmt.Errorf("practice_size must be positive, got %d", p.PracticeSize)
	case p.PropagationDelay < 0:
		return fmt.Errorf("propagation_delay must not be negative")
	case p.ProgressCASRetries < 1:
		return fmt.Errorf("progress_cas_retries must be positive, got %d", p.ProgressCASRetries)
	}
	return nil
}

func buildDSN(dbType string) (string, string) {
	if dbType == "postgres" {
		// PostgreSQL configuration
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := getEnv("DB_PASSWORD", "postgres")
		dbName := getEnv("DB_NAME", "pyguide")
		sslMode := getEnv("DB_SSLMODE", "disable")

		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			dbHost, dbPort, dbUser, dbPassword, dbName, sslMode,
		)
		return dsn, ""
	}

	// SQLite configuration (default for development)
	dbPath := getEnv("SQLITE_PATH", "./data/pyguide.db")
	dsn := dbPath + "?mode=rwc&cache=shared&timeout=5000"
	return dsn, dbPath
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
