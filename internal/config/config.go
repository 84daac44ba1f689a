package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Port        string
	Origin      string
	Environment string
	LogLevel    string

	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int

	LoginRatePerMinute int
	LoginBurst         int

	Database DatabaseConfig
	Redis    RedisConfig
	Minio    MinioConfig
	RabbitMQ RabbitMQConfig
	Clinic   ClinicConfig
	Jobs     JobsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	SSLMode  string
	DSN      string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	FeeTTL   time.Duration
}

type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	URLExpiry     time.Duration
	MaxAvatarSize int64
}

type RabbitMQConfig struct {
	URL   string
	Queue string
}

// ClinicConfig holds the clinic-wide business settings.
type ClinicConfig struct {
	Name                string
	Address             string
	Phone               string
	Timezone            string
	BookingWindowDays   int
	CancelBeforeMinutes int
	NoShowGraceMinutes  int
}

type JobsConfig struct {
	Enabled              bool
	NoShowIntervalMinute int
}

// Location resolves the clinic timezone, falling back to local time.
func (c ClinicConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("invalid CLINIC_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ORIGIN", "http://localhost:3000")
	v.SetDefault("NODE_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("JWT_SECRET", "your_jwt_secret")
	v.SetDefault("JWT_REFRESH_SECRET", "your_jwt_refresh_secret")
	v.SetDefault("JWT_EXPIRATION_MINUTES", 60)
	v.SetDefault("JWT_REFRESH_EXPIRATION_HOURS", 168)

	v.SetDefault("LOGIN_RATE_PER_MINUTE", 10)
	v.SetDefault("LOGIN_BURST", 5)

	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USERNAME", "root")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "clinic")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_DSN", "")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_FEE_TTL_MINUTES", 30)

	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "avatars")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MINIO_URL_EXPIRY_MINUTES", 60)
	v.SetDefault("MINIO_MAX_AVATAR_BYTES", 2<<20)

	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_QUEUE", "clinic.events")

	v.SetDefault("CLINIC_NAME", "Clinic")
	v.SetDefault("CLINIC_ADDRESS", "")
	v.SetDefault("CLINIC_PHONE", "")
	v.SetDefault("CLINIC_TIMEZONE", "Asia/Ho_Chi_Minh")
	v.SetDefault("CLINIC_BOOKING_WINDOW_DAYS", 5)
	v.SetDefault("CLINIC_CANCEL_BEFORE_MINUTES", 120)
	v.SetDefault("CLINIC_NO_SHOW_GRACE_MINUTES", 60)

	v.SetDefault("JOBS_ENABLED", true)
	v.SetDefault("JOBS_NO_SHOW_INTERVAL_MINUTES", 15)
}

// LoadConfig loads configuration from the environment and an optional .env file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:                      v.GetString("PORT"),
		Origin:                    v.GetString("ORIGIN"),
		Environment:               v.GetString("NODE_ENV"),
		LogLevel:                  v.GetString("LOG_LEVEL"),
		JWTSecret:                 v.GetString("JWT_SECRET"),
		JWTRefreshSecret:          v.GetString("JWT_REFRESH_SECRET"),
		JWTExpirationMinutes:      v.GetInt("JWT_EXPIRATION_MINUTES"),
		JWTRefreshExpirationHours: v.GetInt("JWT_REFRESH_EXPIRATION_HOURS"),
		LoginRatePerMinute:        v.GetInt("LOGIN_RATE_PER_MINUTE"),
		LoginBurst:                v.GetInt("LOGIN_BURST"),
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Username: v.GetString("DB_USERNAME"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			DSN:      v.GetString("DB_DSN"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			FeeTTL:   time.Duration(v.GetInt("REDIS_FEE_TTL_MINUTES")) * time.Minute,
		},
		Minio: MinioConfig{
			Endpoint:      v.GetString("MINIO_ENDPOINT"),
			AccessKey:     v.GetString("MINIO_ACCESS_KEY"),
			SecretKey:     v.GetString("MINIO_SECRET_KEY"),
			Bucket:        v.GetString("MINIO_BUCKET"),
			UseSSL:        v.GetBool("MINIO_USE_SSL"),
			URLExpiry:     time.Duration(v.GetInt("MINIO_URL_EXPIRY_MINUTES")) * time.Minute,
			MaxAvatarSize: v.GetInt64("MINIO_MAX_AVATAR_BYTES"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:   v.GetString("RABBITMQ_URL"),
			Queue: v.GetString("RABBITMQ_QUEUE"),
		},
		Clinic: ClinicConfig{
			Name:                v.GetString("CLINIC_NAME"),
			Address:             v.GetString("CLINIC_ADDRESS"),
			Phone:               v.GetString("CLINIC_PHONE"),
			Timezone:            v.GetString("CLINIC_TIMEZONE"),
			BookingWindowDays:   v.GetInt("CLINIC_BOOKING_WINDOW_DAYS"),
			CancelBeforeMinutes: v.GetInt("CLINIC_CANCEL_BEFORE_MINUTES"),
			NoShowGraceMinutes:  v.GetInt("CLINIC_NO_SHOW_GRACE_MINUTES"),
		},
		Jobs: JobsConfig{
			Enabled:              v.GetBool("JOBS_ENABLED"),
			NoShowIntervalMinute: v.GetInt("JOBS_NO_SHOW_INTERVAL_MINUTES"),
		},
	}

	if cfg.JWTExpirationMinutes <= 0 {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %d", cfg.JWTExpirationMinutes)
	}
	if cfg.JWTRefreshExpirationHours <= 0 {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %d", cfg.JWTRefreshExpirationHours)
	}
	if cfg.Clinic.BookingWindowDays < 0 {
		return nil, fmt.Errorf("invalid CLINIC_BOOKING_WINDOW_DAYS: %d", cfg.Clinic.BookingWindowDays)
	}

	if cfg.Database.DSN == "" {
		dsn, err := buildDSN(cfg.Database)
		if err != nil {
			return nil, err
		}
		cfg.Database.DSN = dsn
	}

	return cfg, nil
}

func buildDSN(db DatabaseConfig) (string, error) {
	switch db.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			db.Username, db.Password, db.Host, db.Port, db.Name), nil
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			db.Host, db.Port, db.Username, db.Password, db.Name, db.SSLMode), nil
	case "sqlite":
		return db.Name + ".db", nil
	default:
		return "", fmt.Errorf("unsupported DB_DRIVER: %s", db.Driver)
	}
}
