package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	DatabaseURL              string
	DefaultTotalRounds       int
	DefaultTimerSeconds      int
	AwardMaxAttempts         int
	CodeAttempts             int
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
	AnthropicAPIKey          string
	AnthropicBaseURL         string
	JudgeModel               string
	ReflectionModel          string
}

func Default() Config {
	return Config{
		DefaultTotalRounds:       5,
		DefaultTimerSeconds:      180,
		AwardMaxAttempts:         3,
		CodeAttempts:             10,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
		AnthropicBaseURL:         "https://api.anthropic.com",
		JudgeModel:               "claude-sonnet-4-20250514",
		ReflectionModel:          "claude-opus-4-20250514",
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		cfg.DatabaseURL = raw
	}
	if raw := os.Getenv("DEFAULT_TOTAL_ROUNDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DefaultTotalRounds = value
		}
	}
	if raw := os.Getenv("DEFAULT_TIMER_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DefaultTimerSeconds = value
		}
	}
	if raw := os.Getenv("AWARD_MAX_ATTEMPTS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.AwardMaxAttempts = value
		}
	}
	if raw := os.Getenv("CODE_ATTEMPTS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.CodeAttempts = value
		}
	}
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxOpenConns = value
		}
	}
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxIdleConns = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxLifetimeSeconds = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_IDLE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxIdleTimeSeconds = value
		}
	}
	if raw := os.Getenv("ANTHROPIC_API_KEY"); raw != "" {
		cfg.AnthropicAPIKey = raw
	}
	if raw := os.Getenv("ANTHROPIC_BASE_URL"); raw != "" {
		cfg.AnthropicBaseURL = raw
	}
	if raw := os.Getenv("JUDGE_MODEL"); raw != "" {
		cfg.JudgeModel = raw
	}
	if raw := os.Getenv("REFLECTION_MODEL"); raw != "" {
		cfg.ReflectionModel = raw
	}
	return cfg
}
