package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Address            string `env:"RUN_ADDRESS" envDefault:"localhost:8080"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseConnection string `env:"DATABASE_URI"`
	JWTSecret          string `env:"JWT_SECRET" envDefault:"dontexposethis"`

	MpesaBaseURL        string `env:"MPESA_BASE_URL" envDefault:"https://sandbox.safaricom.co.ke"`
	MpesaConsumerKey    string `env:"MPESA_CONSUMER_KEY"`
	MpesaConsumerSecret string `env:"MPESA_CONSUMER_SECRET"`
	MpesaShortCode      string `env:"MPESA_SHORTCODE" envDefault:"174379"`
	MpesaPasskey        string `env:"MPESA_PASSKEY"`
	MpesaCallbackURL    string `env:"MPESA_CALLBACK_URL"`

	PesapalBaseURL     string `env:"PESAPAL_BASE_URL" envDefault:"https://cybqa.pesapal.com/pesapalv3"`
	PesapalConsumerKey string `env:"PESAPAL_CONSUMER_KEY"`
	PesapalSecret      string `env:"PESAPAL_CONSUMER_SECRET"`
	PesapalCallbackURL string `env:"PESAPAL_CALLBACK_URL"`
	PesapalIPNID       string `env:"PESAPAL_IPN_ID"`

	PollWorkers  int           `env:"PAYMENT_POLL_WORKERS" envDefault:"4"`
	PollInterval time.Duration `env:"PAYMENT_POLL_INTERVAL" envDefault:"30s"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_NOTIFICATIONS_TOPIC" envDefault:"marketplace-notifications"`
}

func NewConfig() (*Config, error) {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("ENV JWT_SECRET must be set")
	}

	address := flag.String("a", cfg.Address, "{Host:port} for server")
	loglevel := flag.String("l", cfg.LogLevel, "Log level for server")
	databaseConnection := flag.String("d", cfg.DatabaseConnection, "Database connection string")
	pollWorkers := flag.Int("w", cfg.PollWorkers, "Size of payment poller worker pool")
	pollInterval := flag.Duration("i", cfg.PollInterval, "Payment poll interval")

	flag.Parse()

	cfg.Address = *address
	cfg.LogLevel = *loglevel
	cfg.DatabaseConnection = *databaseConnection
	cfg.PollWorkers = *pollWorkers
	cfg.PollInterval = *pollInterval

	return cfg, nil
}
