package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Storage       StorageConfig       `mapstructure:"storage"`
	OCR           OCRConfig           `mapstructure:"ocr"`
	Submission    SubmissionConfig    `mapstructure:"submission"`
	Sweep         SweepConfig         `mapstructure:"sweep"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" validate:"required"`
}

type SecurityConfig struct {
	JWTAccessSecret      string        `mapstructure:"jwt_access_secret" validate:"required,min=32"`
	JWTRefreshSecret     string        `mapstructure:"jwt_refresh_secret" validate:"required,min=32"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" validate:"required,min=1h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// StorageConfig selects where payment screenshots are kept. The memory driver
// is meant for local development only.
type StorageConfig struct {
	Driver          string `mapstructure:"driver" validate:"required,oneof=s3 memory"`
	Bucket          string `mapstructure:"bucket" validate:"required_if=Driver s3"`
	Region          string `mapstructure:"region" validate:"required_if=Driver s3"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	KeyPrefix       string `mapstructure:"key_prefix" validate:"required"`
}

type OCRConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url" validate:"required_if=Enabled true"`
	Timeout time.Duration `mapstructure:"timeout" validate:"required,min=1s,max=1m"`
}

type SubmissionConfig struct {
	MaxAttempts          int           `mapstructure:"max_attempts" validate:"required,min=1,max=3"`
	ValidityWindow       time.Duration `mapstructure:"validity_window" validate:"required,min=1m"`
	MaxFileSize          int64         `mapstructure:"max_file_size" validate:"required,min=1,max=5242880"`
	AutoVerifyConfidence float64       `mapstructure:"auto_verify_confidence" validate:"min=0,max=100"`
	StatusCacheTTL       time.Duration `mapstructure:"status_cache_ttl"`
}

type SweepConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Schedule  string        `mapstructure:"schedule" validate:"required_if=Enabled true"`
	BatchSize int           `mapstructure:"batch_size" validate:"required,min=1"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"required,min=1s"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url" validate:"required_if=Enabled true"`
}

// ----------------- DEFAULTS -----------------

// Defaults lists every configuration key that has a sensible fallback. The
// keys follow the mapstructure tags so they can be fed to viper.SetDefault.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"http_server.port":                  8080,
		"http_server.openapi_path":          "./api/openapi.yml",
		"http_server.read_header_timeout":   5 * time.Second,
		"http_server.read_timeout":          30 * time.Second,
		"http_server.write_timeout":         60 * time.Second,
		"http_server.idle_timeout":          120 * time.Second,
		"database.max_open_conns":           25,
		"database.max_idle_conns":           5,
		"database.conn_max_lifetime":        30 * time.Minute,
		"database.conn_max_idle_time":       5 * time.Minute,
		"security.access_token_duration":    15 * time.Minute,
		"security.refresh_token_duration":   7 * 24 * time.Hour,
		"security.bcrypt_cost":              12,
		"observability.logging.level":       "info",
		"observability.logging.format":      "text",
		"storage.driver":                    "memory",
		"storage.key_prefix":                "payment-screenshots",
		"ocr.enabled":                       true,
		"ocr.timeout":                       20 * time.Second,
		"submission.max_attempts":           3,
		"submission.validity_window":        48 * time.Hour,
		"submission.max_file_size":          5 << 20,
		"submission.auto_verify_confidence": 0.0,
		"submission.status_cache_ttl":       10 * time.Second,
		"sweep.enabled":                     true,
		"sweep.schedule":                    "0 */5 * * * *",
		"sweep.batch_size":                  100,
		"sweep.timeout":                     time.Minute,
		"redis.enabled":                     false,
	}
}

// LoadConfigFromEnv builds the configuration purely from environment
// variables, which is how containers are configured.
func LoadConfigFromEnv() *Config {
	d := Defaults()
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", d["http_server.port"].(int)),
			BaseURL:           getEnv("HTTP_BASE_URL", ""),
			AllowedOrigins:    getEnv("HTTP_ALLOWED_ORIGINS", "*"),
			OpenAPIPath:       getEnv("HTTP_OPENAPI_PATH", d["http_server.openapi_path"].(string)),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", d["http_server.read_header_timeout"].(time.Duration)),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", d["http_server.read_timeout"].(time.Duration)),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", d["http_server.write_timeout"].(time.Duration)),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", d["http_server.idle_timeout"].(time.Duration)),
		},
		Database: DatabaseConfig{
			Source:          getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DATABASE_MAX_OPEN_CONNS", d["database.max_open_conns"].(int)),
			MaxIdleConns:    getEnvAsInt("DATABASE_MAX_IDLE_CONNS", d["database.max_idle_conns"].(int)),
			ConnMaxLifetime: getEnvAsDuration("DATABASE_CONN_MAX_LIFETIME", d["database.conn_max_lifetime"].(time.Duration)),
			ConnMaxIdleTime: getEnvAsDuration("DATABASE_CONN_MAX_IDLE_TIME", d["database.conn_max_idle_time"].(time.Duration)),
		},
		Security: SecurityConfig{
			JWTAccessSecret:      getEnv("JWT_ACCESS_SECRET", ""),
			JWTRefreshSecret:     getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenDuration:  getEnvAsDuration("JWT_ACCESS_TOKEN_DURATION", d["security.access_token_duration"].(time.Duration)),
			RefreshTokenDuration: getEnvAsDuration("JWT_REFRESH_TOKEN_DURATION", d["security.refresh_token_duration"].(time.Duration)),
			BCryptCost:           getEnvAsInt("BCRYPT_COST", d["security.bcrypt_cost"].(int)),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", d["observability.logging.level"].(string)),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Storage: StorageConfig{
			Driver:          getEnv("STORAGE_DRIVER", "s3"),
			Bucket:          getEnv("STORAGE_BUCKET", ""),
			Region:          getEnv("AWS_REGION", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvAsBool("STORAGE_USE_PATH_STYLE", false),
			KeyPrefix:       getEnv("STORAGE_KEY_PREFIX", d["storage.key_prefix"].(string)),
		},
		OCR: OCRConfig{
			Enabled: getEnvAsBool("OCR_ENABLED", true),
			BaseURL: getEnv("OCR_SERVICE_URL", ""),
			Timeout: getEnvAsDuration("OCR_TIMEOUT", d["ocr.timeout"].(time.Duration)),
		},
		Submission: SubmissionConfig{
			MaxAttempts:          getEnvAsInt("SUBMISSION_MAX_ATTEMPTS", d["submission.max_attempts"].(int)),
			ValidityWindow:       getEnvAsDuration("SUBMISSION_VALIDITY_WINDOW", d["submission.validity_window"].(time.Duration)),
			MaxFileSize:          int64(getEnvAsInt("SUBMISSION_MAX_FILE_SIZE", d["submission.max_file_size"].(int))),
			AutoVerifyConfidence: getEnvAsFloat("SUBMISSION_AUTO_VERIFY_CONFIDENCE", 0),
			StatusCacheTTL:       getEnvAsDuration("SUBMISSION_STATUS_CACHE_TTL", d["submission.status_cache_ttl"].(time.Duration)),
		},
		Sweep: SweepConfig{
			Enabled:   getEnvAsBool("SWEEP_ENABLED", true),
			Schedule:  getEnv("SWEEP_SCHEDULE", d["sweep.schedule"].(string)),
			BatchSize: getEnvAsInt("SWEEP_BATCH_SIZE", d["sweep.batch_size"].(int)),
			Timeout:   getEnvAsDuration("SWEEP_TIMEOUT", d["sweep.timeout"].(time.Duration)),
		},
		Redis: RedisConfig{
			Enabled: getEnvAsBool("REDIS_ENABLED", false),
			URL:     getEnv("REDIS_URL", ""),
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	var errs []string

	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Submission.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("submission config: %v", err))
	}

	if err := c.OCR.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("ocr config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *ServerConfig) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if c.JWTAccessSecret != "" && c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if c.RefreshTokenDuration <= c.AccessTokenDuration {
		return errors.New("refresh_token_duration must be longer than access_token_duration")
	}
	return nil
}

func (c *SubmissionConfig) Validate() error {
	// the screenshot limit is part of the public contract
	if c.MaxFileSize > 5<<20 {
		return errors.New("max_file_size cannot exceed 5MiB")
	}
	return nil
}

func (c *OCRConfig) Validate() error {
	if c.BaseURL == "" {
		return nil
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", u.Scheme)
	}
	return nil
}
