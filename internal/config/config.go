package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode        string `mapstructure:"mode"`
	ControlPort int    `mapstructure:"control_port"`

	APIBase   string `mapstructure:"api_base"`
	SignalURL string `mapstructure:"signal_url"`
	ReadLimit int64  `mapstructure:"read_limit"`

	// RoomID empty means create a new room and act as host.
	RoomID      string `mapstructure:"room_id"`
	RoomName    string `mapstructure:"room_name"`
	DisplayName string `mapstructure:"display_name"`

	VADInterval  time.Duration `mapstructure:"vad_interval"`
	VADThreshold float64       `mapstructure:"vad_threshold"`
	DevicePoll   time.Duration `mapstructure:"device_poll_interval"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("control_port", 8090)
	v.SetDefault("api_base", "http://localhost:8080/api")
	v.SetDefault("signal_url", "ws://localhost:8080/ws")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("room_name", "studio")
	v.SetDefault("display_name", "guest")
	v.SetDefault("vad_interval", "100ms")
	v.SetDefault("vad_threshold", 25.0)
	v.SetDefault("device_poll_interval", "2s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
