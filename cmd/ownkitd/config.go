package main

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"ownkit/infra/logging"
	"ownkit/service"
)

// Config holds all daemon configuration.
type Config struct {
	Server ServerConfig        `mapstructure:"server"`
	Lease  service.LeaseConfig `mapstructure:"lease"`
	Memory MemoryConfig        `mapstructure:"memory"`
	Ledger LedgerConfig        `mapstructure:"ledger"`
	Broker BrokerConfig        `mapstructure:"broker"`
	Report ReportConfig        `mapstructure:"report"`
	Log    logging.Config      `mapstructure:"log"`
}

type ServerConfig struct {
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type MemoryConfig struct {
	EpochInterval time.Duration `mapstructure:"epoch_interval"`
}

type LedgerConfig struct {
	Dir   string `mapstructure:"dir"`
	Sync  bool   `mapstructure:"sync"`
	Queue int    `mapstructure:"queue"`
}

// BrokerConfig selects the publisher. Driver is "sarama", "kafka-go" or
// empty to keep events in the ledger only.
type BrokerConfig struct {
	Driver       string        `mapstructure:"driver"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	Interval     time.Duration `mapstructure:"interval"`
	MaxRetries   uint32        `mapstructure:"max_retries"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type ReportConfig struct {
	Dir      string        `mapstructure:"dir"`
	Interval time.Duration `mapstructure:"interval"` // 0 disables periodic reports
}

// LoadConfig reads defaults, then the optional file, then OWNKIT_*
// environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.grpc_addr", ":50051")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("lease.max_size", 1<<20)
	v.SetDefault("lease.buffer_cap", 4096)
	v.SetDefault("lease.retire_slots", 1<<12)
	v.SetDefault("lease.immediate", false)
	v.SetDefault("memory.epoch_interval", "2s")
	v.SetDefault("ledger.dir", "./data/ledger")
	v.SetDefault("ledger.sync", false)
	v.SetDefault("ledger.queue", 4096)
	v.SetDefault("broker.driver", "")
	v.SetDefault("broker.brokers", []string{"localhost:9092"})
	v.SetDefault("broker.topic", "ownkit.lifecycle")
	v.SetDefault("broker.interval", "250ms")
	v.SetDefault("broker.max_retries", 5)
	v.SetDefault("broker.batch_timeout", "10ms")
	v.SetDefault("report.dir", "./data/reports")
	v.SetDefault("report.interval", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	v.SetEnvPrefix("OWNKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Broker.Driver {
	case "", "sarama", "kafka-go":
	default:
		return errors.Newf("broker.driver: unknown driver %q", c.Broker.Driver)
	}
	rs := c.Lease.RetireSlots
	if rs < 2 || rs&(rs-1) != 0 {
		return errors.Newf("lease.retire_slots: %d is not a power of two >= 2", rs)
	}
	if c.Memory.EpochInterval <= 0 {
		return errors.New("memory.epoch_interval must be positive")
	}
	return nil
}
