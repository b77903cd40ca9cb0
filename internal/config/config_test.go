package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "reminder_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "reminders_exchange",
			},
			Queue: QueueConfig{
				Name: "reminders_queue",
			},
		},
		Scheduler: SchedulerConfig{
			Interval:   time.Minute,
			BatchLimit: 100,
			CatchUpCap: 100,
			Sink: SinkConfig{
				Kind:    SinkKindPush,
				PushURL: "http://localhost:8090/internal/notify",
			},
		},
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "reminder_db", cfg.Database.Database)
				assert.Equal(t, "reminders_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "reminders_queue", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "reminder-api-service", cfg.App.Name)
				assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
				assert.Equal(t, 100, cfg.Scheduler.CatchUpCap)
				assert.Equal(t, SinkKindPush, cfg.Scheduler.Sink.Kind)
			}
		})
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateSchedulerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid push sink config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "valid amqp sink config",
			mutate:  func(c *Config) { c.Scheduler.Sink.Kind = SinkKindAMQP },
			wantErr: false,
		},
		{
			name:      "zero interval",
			mutate:    func(c *Config) { c.Scheduler.Interval = 0 },
			wantErr:   true,
			errString: "scheduler interval",
		},
		{
			name:      "zero batch limit",
			mutate:    func(c *Config) { c.Scheduler.BatchLimit = 0 },
			wantErr:   true,
			errString: "scheduler batch_limit",
		},
		{
			name:      "zero catch-up cap",
			mutate:    func(c *Config) { c.Scheduler.CatchUpCap = 0 },
			wantErr:   true,
			errString: "scheduler catch_up_cap",
		},
		{
			name:      "push sink without url",
			mutate:    func(c *Config) { c.Scheduler.Sink.PushURL = "" },
			wantErr:   true,
			errString: "push_url is required",
		},
		{
			name: "amqp sink without rabbitmq host",
			mutate: func(c *Config) {
				c.Scheduler.Sink.Kind = SinkKindAMQP
				c.RabbitMQ.Host = ""
			},
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name: "amqp sink without exchange name",
			mutate: func(c *Config) {
				c.Scheduler.Sink.Kind = SinkKindAMQP
				c.RabbitMQ.Exchange.Name = ""
			},
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name: "amqp sink without queue name",
			mutate: func(c *Config) {
				c.Scheduler.Sink.Kind = SinkKindAMQP
				c.RabbitMQ.Queue.Name = ""
			},
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "unknown sink kind",
			mutate:    func(c *Config) { c.Scheduler.Sink.Kind = "carrier-pigeon" },
			wantErr:   true,
			errString: "unknown scheduler sink kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateSchedulerConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateSchedulerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateSchedulerConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestPortConstants(t *testing.T) {
	t.Run("port constants are correct", func(t *testing.T) {
		assert.Equal(t, 1, MinPort)
		assert.Equal(t, 65535, MaxPort)
	})

	t.Run("valid port range", func(t *testing.T) {
		validPorts := []int{1, 80, 443, 8080, 65535}
		for _, port := range validPorts {
			assert.GreaterOrEqual(t, port, MinPort)
			assert.LessOrEqual(t, port, MaxPort)
		}
	})

	t.Run("invalid port range", func(t *testing.T) {
		invalidPorts := []int{0, -1, 65536, 70000}
		for _, port := range invalidPorts {
			valid := port >= MinPort && port <= MaxPort
			assert.False(t, valid, "port %d should be invalid", port)
		}
	})
}
