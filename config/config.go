package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Not-found policies. Both peers must agree: "report" adds a status byte
// after every file request.
const (
	PolicyStrict = "strict"
	PolicyReport = "report"
)

// AppConfig holds the application-level configuration
type AppConfig struct {
	ListenAddr       string        `mapstructure:"listen_addr"`
	ServerAddr       string        `mapstructure:"server_addr"`
	CatalogPath      string        `mapstructure:"catalog_path"`
	ResourceDir      string        `mapstructure:"resource_dir"`
	WantListPath     string        `mapstructure:"want_list_path"`
	OutputDir        string        `mapstructure:"output_dir"`
	StatePath        string        `mapstructure:"state_path"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	NotFoundPolicy   string        `mapstructure:"not_found_policy"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	Debug            bool          `mapstructure:"debug"`
}

var Config *AppConfig

// LoadConfig reads filecast.yaml from path (if present), applies FILECAST_*
// environment overrides and defaults, and stores the result in Config.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("filecast")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.SetEnvPrefix("filecast")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":7878")
	v.SetDefault("server_addr", "127.0.0.1:7878")
	v.SetDefault("catalog_path", "")
	v.SetDefault("resource_dir", "./resources")
	v.SetDefault("want_list_path", "./wants.txt")
	v.SetDefault("output_dir", "./downloads")
	v.SetDefault("state_path", "")
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("dial_timeout", 10*time.Second)
	v.SetDefault("not_found_policy", PolicyStrict)
	v.SetDefault("progress_interval", 500*time.Millisecond)
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var appConfig AppConfig
	if err := v.Unmarshal(&appConfig); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	appConfig.NotFoundPolicy = strings.ToLower(strings.TrimSpace(appConfig.NotFoundPolicy))

	if err := appConfig.Validate(); err != nil {
		return nil, err
	}

	Config = &appConfig
	return Config, nil
}

// Validate checks the values that cannot be defaulted sensibly.
func (c *AppConfig) Validate() error {
	switch c.NotFoundPolicy {
	case PolicyStrict, PolicyReport:
	default:
		return fmt.Errorf("invalid not_found_policy %q (want %q or %q)", c.NotFoundPolicy, PolicyStrict, PolicyReport)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be positive")
	}
	if c.ProgressInterval <= 0 {
		return fmt.Errorf("progress_interval must be positive")
	}
	return nil
}
