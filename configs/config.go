package config

import (
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

const DefaultCertificateTemplatePath = "certificate_templates/default_template.html"

var loadEnvOnce sync.Once

func loadEnv() {
	loadEnvOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})
}

func Config(key string) string {
	loadEnv()
	return os.Getenv(key)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(Config(key)); v != "" {
		return v
	}
	return fallback
}

type Settings struct {
	Port        string
	LogMode     string
	DatabaseURL string
	JWTSecret   string

	CloudinaryURL           string
	CertificateTemplatePath string
	CertificateFontPath     string
	CertificateStorageDir   string
	PublicBaseURL           string

	BrevoAPIKey     string
	EmailSender     string
	EmailSenderName string

	AdminEmail    string
	AdminPassword string
	AdminFullName string

	AuditSchedule string
}

// Load reads the process environment (and .env, when present) into Settings.
func Load() Settings {
	port := getEnv("PORT", "8080")
	return Settings{
		Port:        port,
		LogMode:     getEnv("LOG_MODE", "development"),
		DatabaseURL: Config("DATABASE_URL"),
		JWTSecret:   Config("JWT_SECRET"),

		CloudinaryURL:           Config("CLOUDINARY_URL"),
		CertificateTemplatePath: getEnv("CERTIFICATE_TEMPLATE_PATH", DefaultCertificateTemplatePath),
		CertificateFontPath:     Config("CERTIFICATE_FONT_PATH"),
		CertificateStorageDir:   getEnv("CERTIFICATE_STORAGE_DIR", "storage/certificates"),
		PublicBaseURL:           strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),

		BrevoAPIKey:     Config("BREVO_API_KEY"),
		EmailSender:     Config("EMAIL_SENDER"),
		EmailSenderName: Config("EMAIL_SENDER_NAME"),

		AdminEmail:    Config("ADMIN_EMAIL"),
		AdminPassword: Config("ADMIN_PASSWORD"),
		AdminFullName: getEnv("ADMIN_FULL_NAME", "Administrator"),

		AuditSchedule: getEnv("AUDIT_SCHEDULE", "@hourly"),
	}
}
