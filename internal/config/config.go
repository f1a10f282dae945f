package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// SandboxMode selects the code execution backend.
type SandboxMode string

const (
	SandboxRemote SandboxMode = "remote"
	SandboxDocker SandboxMode = "docker"
	SandboxStub   SandboxMode = "stub"
)

// Detection groups the tunables of the speech/silence classifier and the
// auto-submit watchdog. Defaults follow the shipped policy; every value can
// be overridden from the environment so the thresholds live in one place.
type Detection struct {
	CalibrationWindow time.Duration
	FloorMultiplier   float64
	AbsoluteFloor     float64
	Hangover          time.Duration
	MinSpeechDuration time.Duration
	PollInterval      time.Duration
	SubmitThreshold   time.Duration
}

// Config is the full engine configuration, loaded from the environment.
type Config struct {
	Port string

	PostgresDSN string
	MongoURI    string
	RedisAddr   string

	GeminiAPIKey string
	GeminiModel  string

	SandboxMode     SandboxMode
	SandboxURL      string
	SandboxAPIKey   string
	SandboxWallTime time.Duration

	JWTSecret string

	TestCaseCount   int
	OracleAttempts  int
	CaptureAttempts int

	Detection Detection
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port: getEnvOrDefault("PORT", "8080"),

		PostgresDSN: getEnvOrDefault("POSTGRES_DSN", ""),
		MongoURI:    getEnvOrDefault("MONGO_URI", ""),
		RedisAddr:   getEnvOrDefault("REDIS_ADDR", ""),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),

		SandboxMode:     SandboxMode(getEnvOrDefault("SANDBOX_MODE", string(SandboxStub))),
		SandboxURL:      getEnvOrDefault("SANDBOX_URL", ""),
		SandboxAPIKey:   os.Getenv("SANDBOX_API_KEY"),
		SandboxWallTime: getEnvDuration("SANDBOX_WALL_TIME", 10*time.Second),

		JWTSecret: getEnvOrDefault("JWT_SECRET", "dev-secret"),

		TestCaseCount:   getEnvInt("TEST_CASE_COUNT", 2),
		OracleAttempts:  getEnvInt("ORACLE_MAX_ATTEMPTS", 3),
		CaptureAttempts: getEnvInt("CAPTURE_MAX_ATTEMPTS", 5),

		Detection: Detection{
			CalibrationWindow: getEnvDuration("SILENCE_CALIBRATION_WINDOW", time.Second),
			FloorMultiplier:   getEnvFloat("SILENCE_FLOOR_MULTIPLIER", 2.8),
			AbsoluteFloor:     getEnvFloat("SILENCE_ABSOLUTE_FLOOR", 0.035),
			Hangover:          getEnvDuration("SILENCE_HANGOVER", 300*time.Millisecond),
			MinSpeechDuration: getEnvDuration("SILENCE_MIN_SPEECH", 250*time.Millisecond),
			PollInterval:      getEnvDuration("SILENCE_POLL_INTERVAL", 100*time.Millisecond),
			SubmitThreshold:   getEnvDuration("SILENCE_SUBMIT_THRESHOLD", 5*time.Second),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	switch cfg.SandboxMode {
	case SandboxRemote, SandboxDocker, SandboxStub:
	default:
		return errors.New("unsupported sandbox mode: " + string(cfg.SandboxMode) + ". Supported: remote, docker, stub")
	}
	if cfg.SandboxMode == SandboxRemote && cfg.SandboxURL == "" {
		return errors.New("SANDBOX_URL is required when SANDBOX_MODE=remote")
	}
	if cfg.TestCaseCount < 1 {
		return errors.New("TEST_CASE_COUNT must be at least 1")
	}
	if cfg.Detection.SubmitThreshold <= 0 {
		return errors.New("SILENCE_SUBMIT_THRESHOLD must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
