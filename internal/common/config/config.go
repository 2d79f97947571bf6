package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	SmsBackendMock   = "mock"
	SmsBackendTwilio = "twilio"

	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port           int           `env:"PORT" envDefault:"8080"`
		Origin         string        `env:"ORIGIN" envDefault:"http://localhost:3000"`
		RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	}

	Postgres struct {
		Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
		Port            int           `env:"POSTGRES_PORT" envDefault:"5432"`
		User            string        `env:"POSTGRES_USER" envDefault:"contestlet"`
		Password        string        `env:"POSTGRES_PASSWORD" envDefault:""`
		Database        string        `env:"POSTGRES_DB" envDefault:"contestlet"`
		SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
		MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
		MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Auth struct {
		JWTSecret       string        `env:"JWT_SECRET,required"`
		AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
		RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

		OtpTTL          time.Duration `env:"OTP_TTL" envDefault:"5m"`
		OtpMaxAttempts  int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
		OtpRequestLimit int           `env:"OTP_REQUEST_LIMIT" envDefault:"5"`
		OtpVerifyLimit  int           `env:"OTP_VERIFY_LIMIT" envDefault:"10"`
		OtpRateWindow   time.Duration `env:"OTP_RATE_WINDOW" envDefault:"5m"`

		// Verifying any of these phones grants role=admin.
		AdminPhones []string `env:"ADMIN_PHONES" envSeparator:","`
	}

	Sms struct {
		Backend string `env:"SMS_BACKEND" envDefault:"mock"` // mock, twilio

		TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID" envDefault:""`
		TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN" envDefault:""`
		TwilioFromNumber string `env:"TWILIO_FROM_NUMBER" envDefault:""`
	}

	RateLimit struct {
		Backend string `env:"RATE_LIMIT_BACKEND" envDefault:"memory"` // memory, redis
	}

	Scheduler struct {
		TickSeconds int  `env:"SCHEDULER_TICK_SECONDS" envDefault:"30"`
		Enabled     bool `env:"SCHEDULER_ENABLED" envDefault:"true"`
	}

	Pagination struct {
		DefaultPageSize int `env:"DEFAULT_PAGE_SIZE" envDefault:"10"`
		MaxPageSize     int `env:"MAX_PAGE_SIZE" envDefault:"100"`
	}

	SupportedTimezones []string `env:"SUPPORTED_TIMEZONES" envSeparator:"," envDefault:"America/New_York,America/Chicago,America/Denver,America/Los_Angeles,America/Phoenix,America/Anchorage,Pacific/Honolulu,UTC"`
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User, c.Postgres.Password,
		c.Postgres.Database, c.Postgres.SSLMode)
}

func (c *Config) IsAdminPhone(phone string) bool {
	for _, p := range c.Auth.AdminPhones {
		if p == phone {
			return true
		}
	}
	return false
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		// Ignore a missing .env file; production sets variables directly.
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}
