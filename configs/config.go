package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	defaultMaxSkewSeconds = 300
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		Env      string `koanf:"env"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout    time.Duration `koanf:"read_timeout"`
		WriteTimeout   time.Duration `koanf:"write_timeout"`
		IdleTimeout    time.Duration `koanf:"idle_timeout"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
	} `koanf:"http"`

	Database struct {
		Driver          string        `koanf:"driver"`
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
		Migrate         bool          `koanf:"migrate"`
	} `koanf:"database"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Cache struct {
		StatusTTL time.Duration `koanf:"status_ttl"`
	} `koanf:"cache"`

	Rabbit struct {
		URL             string `koanf:"url"`
		Exchange        string `koanf:"exchange"`
		PaymentQueue    string `koanf:"payment_queue"`
		PaymentKey      string `koanf:"payment_routing_key"`
		Prefetch        int    `koanf:"prefetch"`
		ConsumePayments bool   `koanf:"consume_payments"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers     []string `koanf:"brokers"`
		GroupID     string   `koanf:"group_id"`
		TopicStatus string   `koanf:"topic_status"`
	} `koanf:"kafka"`

	Webhook struct {
		Secret         string `koanf:"secret"`
		MaxSkewSeconds int    `koanf:"max_skew_seconds"`
		ExposeSigner   bool   `koanf:"expose_signer"`
	} `koanf:"webhook"`

	OTel struct {
		Endpoint    string  `koanf:"endpoint"`
		Insecure    bool    `koanf:"insecure"`
		SampleRatio float64 `koanf:"sample_ratio"`
	} `koanf:"otel"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix ORDERAPI_, nested with __)
	// e.g. ORDERAPI_DATABASE__DSN, ORDERAPI_WEBHOOK__SECRET
	if err := k.Load(env.Provider("ORDERAPI_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "ORDERAPI_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if cfg.App.Env == "" {
		cfg.App.Env = envName
	}
	// an explicit max_skew_seconds is kept as written so Validate can reject 0
	if !k.Exists("webhook.max_skew_seconds") {
		cfg.Webhook.MaxSkewSeconds = defaultMaxSkewSeconds
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMySQL
	}
	if c.HTTP.RequestTimeout == 0 {
		c.HTTP.RequestTimeout = 3 * time.Second
	}
	if c.Idempotency.TTL == 0 {
		c.Idempotency.TTL = 24 * time.Hour
	}
	if c.Cache.StatusTTL == 0 {
		c.Cache.StatusTTL = 10 * time.Minute
	}
	if c.Rabbit.Exchange == "" {
		c.Rabbit.Exchange = "order.events"
	}
	if c.Rabbit.PaymentQueue == "" {
		c.Rabbit.PaymentQueue = "payment.events.q"
	}
	if c.Rabbit.PaymentKey == "" {
		c.Rabbit.PaymentKey = "payment.succeeded"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "order-inventory"
	}
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	switch c.Database.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverMySQL, DriverSQLite, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn required")
	}
	if c.Webhook.Secret == "" {
		return fmt.Errorf("webhook.secret required")
	}
	if c.Webhook.MaxSkewSeconds <= 0 {
		return fmt.Errorf("webhook.max_skew_seconds must be > 0")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.TopicStatus == "" {
		return fmt.Errorf("kafka.topic_status required when kafka.brokers is set")
	}
	return nil
}

func (c Config) MaxSkew() time.Duration {
	return time.Duration(c.Webhook.MaxSkewSeconds) * time.Second
}
