package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel  string    `yaml:"log-level" env-default:"info"`
	HTTPPort  string    `yaml:"http-port" env-default:"9090"`
	Redis     Redis     `yaml:"redis"`
	Device    Device    `yaml:"device"`
	Discovery Discovery `yaml:"discovery"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

// Device is how this instance shows up to its peers. An empty ID gets a random one.
// Address is handed to peers that connect while this device owns the group.
type Device struct {
	ID      string `yaml:"id" env-default:""`
	Name    string `yaml:"name" env-default:"tictactoe"`
	Address string `yaml:"address" env-default:""`
}

type Discovery struct {
	Attempts int           `yaml:"attempts" env-default:"3"`
	Backoff  time.Duration `yaml:"backoff" env-default:"500ms"`
	PeerTTL  time.Duration `yaml:"peer-ttl" env-default:"30s"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if config.Device.ID == "" {
		config.Device.ID = uuid.NewString()
	}

	return config, nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
