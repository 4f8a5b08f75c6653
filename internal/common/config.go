package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Messaging MessagingConfig `yaml:"messaging"`
	Media     MediaConfig     `yaml:"media"`
	OCR       OCRConfig       `yaml:"ocr"`
	Parser    ParserConfig    `yaml:"parser"`
	Store     StoreConfig     `yaml:"store"`
	Session   SessionConfig   `yaml:"session"`
	Backup    BackupConfig    `yaml:"backup"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr          string        `yaml:"http_addr"`
	GRPCAddr          string        `yaml:"grpc_addr"` // empty disables the gRPC health server
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	PipelineTimeout   time.Duration `yaml:"pipeline_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
	File   string `yaml:"file"`   // empty logs to stdout only
}

// MessagingConfig holds Twilio credentials for outbound replies
type MessagingConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"` // must include the "whatsapp:" prefix
}

// Enabled reports whether real outbound messaging is configured.
func (m MessagingConfig) Enabled() bool {
	return m.AccountSID != "" && m.AuthToken != "" && m.FromNumber != ""
}

// MediaConfig holds media download limits
type MediaConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
	BasicAuth    bool          `yaml:"basic_auth"` // authenticate media downloads with the Twilio credentials
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine      string `yaml:"engine"` // cli | gosseract
	Lang        string `yaml:"lang"`
	DPI         int    `yaml:"dpi"`
	PSM         int    `yaml:"psm"`
	OEM         int    `yaml:"oem"`
	TessdataDir string `yaml:"tessdata_dir"`
	Tesseract   string `yaml:"tesseract"`
	Pdftoppm    string `yaml:"pdftoppm"`
}

// ParserConfig holds field parser options
type ParserConfig struct {
	LabeledNames bool `yaml:"labeled_names"`
}

// StoreConfig holds record store configuration
type StoreConfig struct {
	Driver          string        `yaml:"driver"` // json | sqlite | postgres
	Path            string        `yaml:"path"`   // json file path
	DSN             string        `yaml:"dsn"`    // sqlite file / postgres URL
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// SessionConfig holds pending-confirmation state configuration
type SessionConfig struct {
	Backend   string        `yaml:"backend"` // memory | redis
	TTL       time.Duration `yaml:"ttl"`
	RedisURL  string        `yaml:"redis_url"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// BackupConfig holds store backup destinations
type BackupConfig struct {
	Dir          string `yaml:"dir"`
	S3Bucket     string `yaml:"s3_bucket"`
	S3Prefix     string `yaml:"s3_prefix"`
	AWSRegion    string `yaml:"aws_region"`
	AWSAccessKey string `yaml:"aws_access_key"`
	AWSSecretKey string `yaml:"aws_secret_key"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:          ":5000",
			ReadHeaderTimeout: 5 * time.Second,
			PipelineTimeout:   2 * time.Minute,
			ShutdownTimeout:   15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "logs/app.log",
		},
		Media: MediaConfig{
			FetchTimeout: 20 * time.Second,
			MaxBytes:     16 << 20,
		},
		OCR: OCRConfig{
			Engine:    "cli",
			Lang:      "spa",
			DPI:       300,
			Tesseract: "tesseract",
			Pdftoppm:  "pdftoppm",
		},
		Store: StoreConfig{
			Driver:          "json",
			Path:            "guardias.json",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Session: SessionConfig{
			Backend:   "memory",
			TTL:       30 * time.Minute,
			KeyPrefix: "guard-registry:pending:",
		},
		Backup: BackupConfig{
			S3Prefix:  "backups/",
			AWSRegion: "us-east-1",
		},
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file (CONFIG_FILE)
// and environment variables, in increasing order of precedence. A .env file in the
// working directory is loaded first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeYAMLFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeYAMLFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfig, "read config file", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("parse config file %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.HTTPAddr = normalizeAddr(getEnv("PORT", getEnv("HTTP_ADDR", c.Server.HTTPAddr)))
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.ReadHeaderTimeout = getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", c.Server.ReadHeaderTimeout)
	c.Server.PipelineTimeout = getEnvAsDuration("PIPELINE_TIMEOUT", c.Server.PipelineTimeout)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.File = getEnvAllowEmpty("LOG_FILE", c.Log.File)

	c.Messaging.AccountSID = getEnv("TWILIO_ACCOUNT_SID", c.Messaging.AccountSID)
	c.Messaging.AuthToken = getEnv("TWILIO_AUTH_TOKEN", c.Messaging.AuthToken)
	c.Messaging.FromNumber = getEnv("TWILIO_WHATSAPP_NUMBER", c.Messaging.FromNumber)

	c.Media.FetchTimeout = getEnvAsDuration("MEDIA_FETCH_TIMEOUT", c.Media.FetchTimeout)
	c.Media.MaxBytes = getEnvAsInt64("MEDIA_MAX_BYTES", c.Media.MaxBytes)
	c.Media.BasicAuth = getEnvAsBool("MEDIA_BASIC_AUTH", c.Media.BasicAuth)

	c.OCR.Engine = getEnv("OCR_ENGINE", c.OCR.Engine)
	c.OCR.Lang = getEnv("OCR_LANG", c.OCR.Lang)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.PSM = getEnvAsInt("OCR_PSM", c.OCR.PSM)
	c.OCR.OEM = getEnvAsInt("OCR_OEM", c.OCR.OEM)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.Pdftoppm = getEnv("PDFTOPPM_BIN", c.OCR.Pdftoppm)

	c.Parser.LabeledNames = getEnvAsBool("PARSER_LABELED_NAMES", c.Parser.LabeledNames)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.Path = getEnv("STORE_PATH", c.Store.Path)
	c.Store.DSN = getEnv("STORE_DSN", getEnv("DB_URL", c.Store.DSN))
	c.Store.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Store.MaxConns)
	c.Store.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Store.MinConns)
	c.Store.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Store.MaxConnLifetime)
	c.Store.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Store.MaxConnIdleTime)
	c.Store.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Store.DialTimeout)

	c.Session.Backend = getEnv("SESSION_BACKEND", c.Session.Backend)
	c.Session.TTL = getEnvAsDuration("SESSION_TTL", c.Session.TTL)
	c.Session.RedisURL = getEnv("REDIS_URL", c.Session.RedisURL)
	c.Session.KeyPrefix = getEnv("SESSION_KEY_PREFIX", c.Session.KeyPrefix)

	c.Backup.Dir = getEnv("BACKUP_DIR", c.Backup.Dir)
	c.Backup.S3Bucket = getEnv("BACKUP_S3_BUCKET", c.Backup.S3Bucket)
	c.Backup.S3Prefix = getEnv("BACKUP_S3_PREFIX", c.Backup.S3Prefix)
	c.Backup.AWSRegion = getEnv("AWS_REGION", c.Backup.AWSRegion)
	c.Backup.AWSAccessKey = getEnv("AWS_ACCESS_KEY", c.Backup.AWSAccessKey)
	c.Backup.AWSSecretKey = getEnv("AWS_SECRET_KEY", c.Backup.AWSSecretKey)
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("server.http_addr", c.Server.HTTPAddr, Required).
		Field("ocr.lang", c.OCR.Lang, Required).
		Field("ocr.engine", c.OCR.Engine, OneOf("cli", "gosseract")).
		Field("log.format", c.Log.Format, OneOf("text", "json")).
		Field("store.driver", c.Store.Driver, OneOf("json", "sqlite", "postgres")).
		Field("session.backend", c.Session.Backend, OneOf("memory", "redis")).
		Field("server.pipeline_timeout", c.Server.PipelineTimeout, PositiveDuration).
		Field("media.fetch_timeout", c.Media.FetchTimeout, PositiveDuration).
		Field("session.ttl", c.Session.TTL, PositiveDuration)

	switch c.Store.Driver {
	case "json":
		v.Field("store.path", c.Store.Path, Required)
	case "sqlite", "postgres":
		v.Field("store.dsn", c.Store.DSN, Required)
	}
	if c.Session.Backend == "redis" {
		v.Field("session.redis_url", c.Session.RedisURL, Required)
	}
	if c.OCR.DPI <= 0 {
		v.Field("ocr.dpi", c.OCR.DPI, func(name string, value interface{}) *ValidationError {
			return &ValidationError{Field: name, Value: value, Message: "must be positive"}
		})
	}

	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty treats an explicitly empty variable as a value (used to turn features off).
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
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

func normalizeAddr(addr string) string {
	if addr != "" && !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}
