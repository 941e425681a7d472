package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Env             string
	Port            string
	MongoURI        string
	DBName          string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers  []string
	PurchaseTopic string

	SendGridAPIKey string
	MailFrom       string
	PublicBaseURL  string

	QuoteEndpoint      string
	PaymentEndpoint    string
	ShippingProviderID string
	QuoteTimeout       time.Duration
	PaymentTimeout     time.Duration

	RoleCacheTTL       time.Duration
	CheckoutSessionTTL time.Duration
	CartTTL            time.Duration

	TemplatesGlob string
	PublicDir     string
}

// Load reads .env (when present) and the process environment into AppEnv.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		Env:             getEnvOrDefault("APP_ENV", "production"),
		Port:            getEnvOrDefault("PORT", "8080"),
		MongoURI:        requireEnv("MONGO_URI"),
		DBName:          getEnvOrDefault("DB_NAME", "joyeria"),
		JWTSecret:       requireEnv("JWT_SECRET"),
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 20, time.Minute),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 7, 24*time.Hour),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:  getListEnv("KAFKA_BROKERS"),
		PurchaseTopic: getEnvOrDefault("PURCHASE_TOPIC", "storefront-purchases"),

		SendGridAPIKey: getEnvOrDefault("SENDGRID_API_KEY", ""),
		MailFrom:       getEnvOrDefault("MAIL_FROM", "no-reply@joyeria.mx"),
		PublicBaseURL:  getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:5173"),

		QuoteEndpoint:      requireEnv("QUOTE_ENDPOINT"),
		PaymentEndpoint:    requireEnv("PAYMENT_ENDPOINT"),
		ShippingProviderID: getEnvOrDefault("SHIPPING_PROVIDER_ID", "1"),
		QuoteTimeout:       getDurationEnv("QUOTE_TIMEOUT", 15, time.Second),
		PaymentTimeout:     getDurationEnv("PAYMENT_TIMEOUT", 20, time.Second),

		RoleCacheTTL:       getDurationEnv("ROLE_CACHE_TTL", 24, time.Hour),
		CheckoutSessionTTL: getDurationEnv("CHECKOUT_SESSION_TTL", 2, time.Hour),
		CartTTL:            getDurationEnv("CART_TTL", 30, 24*time.Hour),

		TemplatesGlob: getEnvOrDefault("TEMPLATES_GLOB", "templates/**/*"),
		PublicDir:     getEnvOrDefault("PUBLIC_DIR", "./public"),
	}
	return AppEnv
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}
