package config

import (
	"os"
	"strconv"
	"strings"
)

// DefaultLogFile is used when LOG_FILE is unset.
const DefaultLogFile = "logs/approval-api.log"

// Settings holds the process configuration read from the environment.
type Settings struct {
	ServerPort   string
	GinMode      string
	Environment  string
	DebugSQL     bool
	LogFile      string
	StoreDriver  string
	DBHost       string
	DBPort       string
	DBDatabase   string
	DBUsername   string
	DBPassword   string
	JWTSecret    string
	JWTExpireHrs int

	ApproverRoleCodes  []string
	ApproverEmails     []string
	CORSAllowedOrigins []string

	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPass          string
	SMTPFrom          string
	SMTPSkipTLSVerify bool
	NotifyEmail       bool
}

// Load reads Settings from the environment. Call godotenv.Load first when a
// .env file should be honoured.
func Load() Settings {
	s := Settings{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		GinMode:      os.Getenv("GIN_MODE"),
		Environment:  strings.ToLower(os.Getenv("ENVIRONMENT")),
		DebugSQL:     strings.EqualFold(os.Getenv("DEBUG_SQL"), "true"),
		LogFile:      getEnv("LOG_FILE", DefaultLogFile),
		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", "mysql")),
		DBHost:       getEnv("DB_HOST", "127.0.0.1"),
		DBPort:       getEnv("DB_PORT", "3306"),
		DBDatabase:   os.Getenv("DB_DATABASE"),
		DBUsername:   os.Getenv("DB_USERNAME"),
		DBPassword:   os.Getenv("DB_PASSWORD"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTExpireHrs: getEnvInt("JWT_EXPIRE_HOURS", 24),

		ApproverRoleCodes:  splitList(getEnv("APPROVER_ROLE_CODES", "admin")),
		ApproverEmails:     splitList(os.Getenv("APPROVER_EMAILS")),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          getEnvInt("SMTP_PORT", 587),
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPass:          os.Getenv("SMTP_PASS"),
		SMTPFrom:          os.Getenv("SMTP_FROM"),
		SMTPSkipTLSVerify: os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1",
		NotifyEmail:       os.Getenv("NOTIFY_EMAIL") == "1",
	}
	return s
}

// IsProduction reports whether ENVIRONMENT=production.
func (s Settings) IsProduction() bool {
	return s.Environment == "production"
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
