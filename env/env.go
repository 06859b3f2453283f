package env

import (
	"callbackbroker/helpers"
	"fmt"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"os"
	"time"
)

const (
	ModeDevelop    = "develop"
	ModeDeployment = "deployment"

	developFile    = "dev.env"
	deploymentFile = "deploy.env"
)

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

type BrokerConfig struct {
	HTTPAddr          string        `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr          string        `env:"GRPC_ADDR" envDefault:":5001"`
	HTTPMaxConcurrent int           `env:"HTTP_MAX_CONCURRENT" envDefault:"64"`
	HTTPMaxBodyBytes  int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`
	DeliveryTimeout   time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RedisPoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	Log               LogConfig
}

func (cnf BrokerConfig) Validate() error {
	if cnf.HTTPAddr == "" && cnf.GRPCAddr == "" {
		return fmt.Errorf("env: at least one of HTTP_ADDR and GRPC_ADDR is required")
	}
	if cnf.HTTPMaxConcurrent <= 0 {
		return fmt.Errorf("env: HTTP_MAX_CONCURRENT must be positive, got %d", cnf.HTTPMaxConcurrent)
	}
	if cnf.HTTPMaxBodyBytes <= 0 {
		return fmt.Errorf("env: HTTP_MAX_BODY_BYTES must be positive, got %d", cnf.HTTPMaxBodyBytes)
	}
	if cnf.DeliveryTimeout < 0 {
		return fmt.Errorf("env: DELIVERY_TIMEOUT must not be negative")
	}
	return nil
}

type ClientConfig struct {
	KnownHosts     []string      `env:"KNOWN_HOSTS" envSeparator:"," envDefault:"localhost:5001"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
	Log            LogConfig
}

// LoadEnvFile loads dev.env or deploy.env into the process environment
// depending on MODE. Variables already set win. A missing file is not an error.
func LoadEnvFile() error {
	var file string
	switch os.Getenv("MODE") {
	case ModeDevelop:
		file = developFile
	case ModeDeployment:
		file = deploymentFile
	default:
		return nil
	}
	if !helpers.CheckFileExists(file) {
		return nil
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("env: load %s: %w", file, err)
	}
	return nil
}

func ReadBrokerConfig() (*BrokerConfig, error) {
	if err := LoadEnvFile(); err != nil {
		return nil, err
	}
	cfg := &BrokerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ReadClientConfig() (*ClientConfig, error) {
	if err := LoadEnvFile(); err != nil {
		return nil, err
	}
	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
