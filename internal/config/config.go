package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values (spec.md §6).
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Nostr    NostrConfig
	LNbits   LNbitsConfig
	DVM      DVMConfig
	Security SecurityConfig
}

// ServerConfig holds process-level configuration.
type ServerConfig struct {
	Port string // admin HTTP surface (/healthz, /metrics)
	Env  string
}

// DatabaseConfig holds the durable user/balance store's connection info.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL.
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode + "&prepare_threshold=0"
}

// RedisConfig backs the idempotent-publish / payment-dedup guard.
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// NostrConfig holds event-network identity and subscription parameters.
type NostrConfig struct {
	PrivateKey   string // hex secp256k1 scalar; PublicKey is derived from this
	PublicKey    string // read from PUBLIC_KEY by Load, then replaced in main by the key derived from PrivateKey; used for p-tag comparison
	RelayList    []string
	RelayTimeout time.Duration
	NIP89Name    string // display name advertised and used in logs
}

// LNbitsConfig holds Lightning wallet adapter credentials (spec.md §6).
type LNbitsConfig struct {
	URL         string
	InvoiceKey  string // empty disables invoice issuance
	AdminKey    string // empty disables outbound refunds
}

// CanIssueInvoices reports whether the wallet adapter has write access for invoices.
func (c LNbitsConfig) CanIssueInvoices() bool { return c.InvoiceKey != "" }

// CanRefund reports whether the wallet adapter has write access for outbound payments.
func (c LNbitsConfig) CanRefund() bool { return c.AdminKey != "" }

// DVMConfig holds orchestrator/dispatcher behavior switches.
type DVMConfig struct {
	ShowResultBeforePayment bool
	UseOwnVenv              bool // subprocess (isolated venv) vs in-process dispatch
	Script                  string
	Identifier              string
}

// SecurityConfig holds symmetric encryption keys for the tag codec.
type SecurityConfig struct {
	PayloadEncryptionKey string // 32-byte hex key for encrypted-tag payloads
}

// Load loads configuration from environment variables.
func Load() *Config {
	privateKey := getEnv("PRIVATE_KEY", "")
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "dvm"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		Nostr: NostrConfig{
			PrivateKey:   privateKey,
			PublicKey:    getEnv("PUBLIC_KEY", ""), // overwritten in main() once the key is derived
			RelayList:    getEnvAsList("RELAY_LIST", []string{"wss://relay.damus.io", "wss://nos.lol"}),
			RelayTimeout: getEnvAsDuration("RELAY_TIMEOUT", 5*time.Second),
			NIP89Name:    getEnv("NIP89_NAME", "Data Vending Machine"),
		},
		LNbits: LNbitsConfig{
			URL:        getEnv("LNBITS_URL", "https://legend.lnbits.com"),
			InvoiceKey: getEnv("LNBITS_INVOICE_KEY", ""),
			AdminKey:   getEnv("LNBITS_ADMIN_KEY", ""),
		},
		DVM: DVMConfig{
			ShowResultBeforePayment: getEnvAsBool("SHOW_RESULT_BEFORE_PAYMENT", false),
			UseOwnVenv:              getEnvAsBool("USE_OWN_VENV", false),
			Script:                  getEnv("SCRIPT", ""),
			Identifier:              getEnv("IDENTIFIER", ""),
		},
		Security: SecurityConfig{
			PayloadEncryptionKey: getEnv("PAYLOAD_ENCRYPTION_KEY", "0000000000000000000000000000000000000000000000000000000000000000"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
