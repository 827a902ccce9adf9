package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded once at startup.
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DBPath string

	// Auth
	JWTSecret string

	// Payment gateway
	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string

	// Outbound mail
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	// Artifact storage root for book PDFs
	UploadDir string
}

var ErrMissingGatewayCredentials = errors.New("razorpay credentials not configured")

// Load reads configuration from the environment, consulting a .env file when
// present. It fails when the payment gateway credentials are absent so a
// misconfigured deployment is caught at startup rather than on the first
// purchase.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		DBPath:            getEnv("DB_PATH", "booknest.db"),
		JWTSecret:         getEnv("JWT_SECRET", "booknest-secret-key"),
		RazorpayKeyID:     os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayBaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
		SMTPHost:          getEnv("EMAIL_HOST", "localhost"),
		SMTPPort:          getEnvInt("EMAIL_PORT", 587),
		SMTPUser:          os.Getenv("EMAIL_USER"),
		SMTPPassword:      os.Getenv("EMAIL_PASS"),
		MailFrom:          getEnv("EMAIL_FROM", "BookNest <no-reply@booknest.local>"),
		UploadDir:         getEnv("UPLOAD_DIR", "uploads"),
	}

	if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" {
		return nil, ErrMissingGatewayCredentials
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
