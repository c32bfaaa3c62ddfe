package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "karite"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "KARITE_DB_DSN"
	EnvDBHost = "KARITE_DB_HOST"
	EnvDBUser = "KARITE_DB_USER"
	EnvDBName = "KARITE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	Cart          CartConfig
	Mail          MailConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KARITE_APP_ENV" required:"true"`
	Port         string `envconfig:"KARITE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KARITE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KARITE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KARITE_DB_DSN"`
	Driver string `envconfig:"KARITE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KARITE_DB_HOST"`
	LegacyPort     int    `envconfig:"KARITE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KARITE_DB_USER"`
	LegacyPassword string `envconfig:"KARITE_DB_PASSWORD"`
	LegacyName     string `envconfig:"KARITE_DB_NAME"`
	LegacySSLMode  string `envconfig:"KARITE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KARITE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KARITE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KARITE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KARITE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver targets sqlite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"KARITE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KARITE_REDIS_ADDR"`
	Password     string        `envconfig:"KARITE_REDIS_PASSWORD"`
	DB           int           `envconfig:"KARITE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KARITE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KARITE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KARITE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KARITE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KARITE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"KARITE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"KARITE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"KARITE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"KARITE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"KARITE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"KARITE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"KARITE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"KARITE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"KARITE_ARGON_KEY_LEN" default:"32"`
}

type CartConfig struct {
	GuestCartTTL    time.Duration `envconfig:"KARITE_GUEST_CART_TTL" default:"720h"`
	MaxItemQuantity int           `envconfig:"KARITE_CART_MAX_ITEM_QUANTITY" default:"99"`
}

type MailConfig struct {
	MailgunDomain string `envconfig:"KARITE_MAILGUN_DOMAIN"`
	MailgunAPIKey string `envconfig:"KARITE_MAILGUN_API_KEY"`
	SenderEmail   string `envconfig:"KARITE_MAIL_SENDER_EMAIL" default:"hello@karite.co"`
	SenderName    string `envconfig:"KARITE_MAIL_SENDER_NAME" default:"Karité"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"KARITE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"KARITE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"KARITE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"KARITE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"KARITE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"KARITE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	ForgotWindow       time.Duration `envconfig:"KARITE_AUTH_RATE_LIMIT_FORGOT_WINDOW" default:"15m"`
	ForgotEmailLimit   int           `envconfig:"KARITE_AUTH_RATE_LIMIT_FORGOT_EMAIL_LIMIT" default:"3"`
	ForgotIPLimit      int           `envconfig:"KARITE_AUTH_RATE_LIMIT_FORGOT_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KARITE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
