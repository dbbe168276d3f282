package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Notifier  NotifierConfig  `yaml:"notifier"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Alarm     AlarmConfig     `yaml:"alarm"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
	// PollTimeout bounds a single long-poll request to Telegram.
	PollTimeout Duration `yaml:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `yaml:"level"`
	Console bool        `yaml:"console"`
	File    LoggingFile `yaml:"file"`
}

type LoggingFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type StorageConfig struct {
	Path        string   `yaml:"path"`
	BusyTimeout Duration `yaml:"busy_timeout"`
}

// NotifierConfig controls the alert fan-out.
//
// RetryMax is the total number of send attempts per recipient (not the
// number of retries after the first attempt).
type NotifierConfig struct {
	RetryMax   int      `yaml:"retry_max"`
	RetryDelay Duration `yaml:"retry_delay"`
	RatePerSec int      `yaml:"rate_per_sec"`
}

type SensorConfig struct {
	// Driver selects the alert source: "gpio", "mqtt" or "none".
	Driver       string     `yaml:"driver"`
	Pins         []int      `yaml:"pins"`
	PollInterval Duration   `yaml:"poll_interval"`
	MQTT         MQTTConfig `yaml:"mqtt"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type AlarmConfig struct {
	SoundPath string `yaml:"sound_path"`
	Player    string `yaml:"player"`
	FlagPath  string `yaml:"flag_path"`
}

type HeartbeatConfig struct {
	Enabled bool `yaml:"enabled"`
	// Schedule is a standard 5-field cron expression.
	Schedule string `yaml:"schedule"`
}

// Load reads, strictly decodes, defaults and validates the config file.
// Unknown keys are rejected so typos surface at startup instead of being
// silently ignored.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(b []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = Duration(10 * time.Second)
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if !c.Logging.Console && !c.Logging.File.Enabled {
		c.Logging.Console = true
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = "./pirbot.db"
	}
	if c.Storage.BusyTimeout <= 0 {
		c.Storage.BusyTimeout = Duration(5 * time.Second)
	}
	if c.Notifier.RetryMax <= 0 {
		c.Notifier.RetryMax = 5
	}
	if c.Notifier.RetryDelay <= 0 {
		c.Notifier.RetryDelay = Duration(3 * time.Second)
	}
	if c.Notifier.RatePerSec <= 0 {
		c.Notifier.RatePerSec = 10
	}
	if strings.TrimSpace(c.Sensor.Driver) == "" {
		c.Sensor.Driver = "none"
	}
	if c.Sensor.PollInterval <= 0 {
		c.Sensor.PollInterval = Duration(5 * time.Second)
	}
	if strings.TrimSpace(c.Sensor.MQTT.ClientID) == "" {
		c.Sensor.MQTT.ClientID = "pirbot"
	}
	if strings.TrimSpace(c.Alarm.SoundPath) == "" {
		c.Alarm.SoundPath = "./alarm/alarm.wav"
	}
	if strings.TrimSpace(c.Alarm.Player) == "" {
		c.Alarm.Player = "aplay"
	}
	if strings.TrimSpace(c.Alarm.FlagPath) == "" {
		c.Alarm.FlagPath = "./sound.flag"
	}
	if c.Heartbeat.Enabled && strings.TrimSpace(c.Heartbeat.Schedule) == "" {
		c.Heartbeat.Schedule = "0 9 * * *"
	}
}

// Validate reports startup-fatal configuration faults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Sensor.Driver)) {
	case "gpio":
		if len(c.Sensor.Pins) == 0 {
			return errors.New("sensor.pins is required for the gpio driver")
		}
	case "mqtt":
		if strings.TrimSpace(c.Sensor.MQTT.Broker) == "" {
			return errors.New("sensor.mqtt.broker is required for the mqtt driver")
		}
		if strings.TrimSpace(c.Sensor.MQTT.Topic) == "" {
			return errors.New("sensor.mqtt.topic is required for the mqtt driver")
		}
	case "none":
	default:
		return fmt.Errorf("unknown sensor.driver %q", c.Sensor.Driver)
	}
	return nil
}
