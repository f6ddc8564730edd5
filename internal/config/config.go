package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	S3        S3Config        `mapstructure:"s3"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Email     EmailConfig     `mapstructure:"email"`
	Google    GoogleConfig    `mapstructure:"google"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// PublicURL is the frontend base URL used in emails and Stripe redirects.
	PublicURL       string        `mapstructure:"public_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
	// TrustedProxies lists proxy CIDRs whose X-Forwarded-For is honoured. Empty means none.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`
	Expiration    time.Duration `mapstructure:"expiration"`
	MFAExpiration time.Duration `mapstructure:"mfa_expiration"`
	Issuer        string        `mapstructure:"issuer"`
}

// StripeConfig maps subscription tiers to Stripe price ids.
type StripeConfig struct {
	SecretKey         string `mapstructure:"secret_key"`
	WebhookSecret     string `mapstructure:"webhook_secret"`
	ProfessionalPrice string `mapstructure:"professional_price_id"`
	PremiumPrice      string `mapstructure:"premium_price_id"`
}

type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	FromEmail    string `mapstructure:"from_email"`
	AppName      string `mapstructure:"app_name"`
}

type GoogleConfig struct {
	ClientID string `mapstructure:"client_id"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RateLimitConfig controls the per-IP limiter on authentication endpoints.
type RateLimitConfig struct {
	AuthPerSecond float64 `mapstructure:"auth_per_second"`
	AuthBurst     int     `mapstructure:"auth_burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, jwt.expiration -> JWT_EXPIRATION
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	// AutomaticEnv only resolves keys viper already knows about, so secrets without
	// a default must be bound explicitly to be picked up from the environment.
	for _, key := range envOnlyKeys {
		if err = v.BindEnv(key); err != nil {
			return
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}

	if err = config.Validate(); err != nil {
		return
	}
	return config, nil
}

var envOnlyKeys = []string{
	"jwt.secret",
	"s3.endpoint",
	"s3.access_key_id",
	"s3.secret_access_key",
	"s3.bucket_name",
	"stripe.secret_key",
	"stripe.webhook_secret",
	"stripe.professional_price_id",
	"stripe.premium_price_id",
	"email.resend_api_key",
	"google.client_id",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.public_url", "http://localhost:3000")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "regulie")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.expiration", "24h")
	v.SetDefault("jwt.mfa_expiration", "5m")
	v.SetDefault("jwt.issuer", "regulie")
	v.SetDefault("email.from_email", "Regulie <no-reply@regulie.app>")
	v.SetDefault("email.app_name", "Regulie")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("ratelimit.auth_per_second", 1.0)
	v.SetDefault("ratelimit.auth_burst", 10)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
}

// Validate checks settings the server cannot start without.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret (JWT_SECRET) is required")
	}
	if c.Database.URI == "" || c.Database.Name == "" {
		return errors.New("database.uri and database.name are required")
	}
	return nil
}
