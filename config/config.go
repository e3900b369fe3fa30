package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Pjt727/autosign/signin/services"
	"github.com/Pjt727/autosign/signin/services/iclass"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "AUTOSIGN"
	configName = "autosign"
	appDir     = "autosign"
)

type Config struct {
	// network preset used to fill in any url left empty
	Network  string `mapstructure:"network" validate:"oneof=direct vpn"`
	LoginURL string `mapstructure:"login_url" validate:"required,url"`
	BaseURL  string `mapstructure:"base_url" validate:"required,url"`
	APIURL   string `mapstructure:"api_url" validate:"required,url"`
	SignURL  string `mapstructure:"sign_url" validate:"required,url"`

	HTTPTimeout       time.Duration `mapstructure:"http_timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timezone          string        `mapstructure:"timezone" validate:"required,timezone"`

	CredentialsFile string `mapstructure:"credentials_file"`
	LogLevel        string `mapstructure:"log_level" validate:"oneof=panic fatal error warn warning info debug trace"`
	ListenAddr      string `mapstructure:"listen_addr" validate:"required,hostname_port"`
}

type LoadOptions struct {
	// .env file to load into the environment, a missing file is skipped
	EnvFile string
	// explicit config file, otherwise autosign.yaml is searched for in the
	// working directory and the user config directory
	ConfigFile string
}

var keys = []string{
	"network",
	"login_url",
	"base_url",
	"api_url",
	"sign_url",
	"http_timeout",
	"requests_per_second",
	"user_agent",
	"timezone",
	"credentials_file",
	"log_level",
	"listen_addr",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", iclass.NetworkDirect)
	v.SetDefault("http_timeout", "15s")
	v.SetDefault("requests_per_second", 2)
	v.SetDefault("user_agent", services.DefaultUserAgent)
	v.SetDefault("timezone", "Asia/Shanghai")
	v.SetDefault("log_level", "info")
	v.SetDefault("listen_addr", "localhost:8080")
}

func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, appDir))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.fillEndpoints(); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// urls that are not set come from the network preset
func (c *Config) fillEndpoints() error {
	preset, err := iclass.EndpointsFor(c.Network)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Network == "" {
		c.Network = iclass.NetworkDirect
	}
	if c.LoginURL == "" {
		c.LoginURL = preset.LoginURL
	}
	if c.BaseURL == "" {
		c.BaseURL = preset.BaseURL
	}
	if c.APIURL == "" {
		c.APIURL = preset.APIURL
	}
	if c.SignURL == "" {
		c.SignURL = preset.SignURL
	}
	return nil
}

func (c *Config) Endpoints() iclass.Endpoints {
	return iclass.Endpoints{
		LoginURL: c.LoginURL,
		BaseURL:  c.BaseURL,
		APIURL:   c.APIURL,
		SignURL:  c.SignURL,
	}
}

func (c *Config) ClientOptions() services.ClientOptions {
	return services.ClientOptions{
		Timeout:           c.HTTPTimeout,
		UserAgent:         c.UserAgent,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
