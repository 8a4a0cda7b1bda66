package temporalx

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Address   string `env:"TEMPORAL_ADDRESS"`
	Namespace string `env:"TEMPORAL_NAMESPACE" envDefault:"batchflow"`
	TaskQueue string `env:"TEMPORAL_TASK_QUEUE" envDefault:"batchflow-issuance"`

	ClientCertPath string `env:"TEMPORAL_CLIENT_CERT_PATH"`
	ClientKeyPath  string `env:"TEMPORAL_CLIENT_KEY_PATH"`
	ClientCAPath   string `env:"TEMPORAL_CLIENT_CA_PATH"`

	DialTimeout    time.Duration `env:"TEMPORAL_DIAL_TIMEOUT" envDefault:"5s"`
	DialMaxWait    time.Duration `env:"TEMPORAL_DIAL_MAX_WAIT" envDefault:"60s"`
	DialBackoff    time.Duration `env:"TEMPORAL_DIAL_BACKOFF" envDefault:"250ms"`
	DialBackoffMax time.Duration `env:"TEMPORAL_DIAL_BACKOFF_MAX" envDefault:"5s"`

	AutoRegisterNamespace bool `env:"TEMPORAL_AUTO_REGISTER_NAMESPACE" envDefault:"false"`
	RetentionDays         int  `env:"TEMPORAL_NAMESPACE_RETENTION_DAYS" envDefault:"7"`

	WorkerStartMaxWait time.Duration `env:"TEMPORAL_WORKER_START_MAX_WAIT" envDefault:"60s"`
}

// LoadConfig reads TEMPORAL_* variables. An empty Address disables Temporal.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.RetentionDays < 1 {
		cfg.RetentionDays = 7
	}
	if cfg.RetentionDays > 365 {
		cfg.RetentionDays = 365
	}
	return cfg, nil
}

func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) mTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}
