package config

import (
	"os"
	"strconv"
	"strings"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	// When false the process runs on in-memory stores.
	Enabled bool `yaml:"enabled"`
}

type MQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret   string `yaml:"secret"`
	TTLHours int    `yaml:"ttl_hours"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// MailConfig selects and configures the outbound mail provider.
type MailConfig struct {
	Provider string `yaml:"provider"` // smtp, resend, sendgrid
	From     string `yaml:"from"`

	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`

	ResendAPIKey   string `yaml:"resend_api_key"`
	SendGridAPIKey string `yaml:"sendgrid_api_key"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// AdminConfig holds the single operator account guarding destructive routes.
type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
		cfg.Enabled = true
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideMailFromEnv applies MAIL_* and the provider key variables.
func OverrideMailFromEnv(cfg *MailConfig) {
	if p := os.Getenv("MAIL_PROVIDER"); p != "" {
		cfg.Provider = strings.ToLower(p)
	}
	if from := os.Getenv("MAIL_FROM"); from != "" {
		cfg.From = from
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.SMTPHost = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.SMTPPort = p
		}
	}
	if user := os.Getenv("SMTP_USER"); user != "" {
		cfg.SMTPUser = user
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		cfg.SMTPPassword = password
	}
	if key := os.Getenv("RESEND_API_KEY"); key != "" {
		cfg.ResendAPIKey = key
	}
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
		cfg.SendGridAPIKey = key
	}
}

func OverrideAdminFromEnv(cfg *AdminConfig) {
	if user := os.Getenv("ADMIN_USERNAME"); user != "" {
		cfg.Username = user
	}
	if hash := os.Getenv("ADMIN_PASSWORD_HASH"); hash != "" {
		cfg.PasswordHash = hash
	}
}
