package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	DB           DBConfig           `mapstructure:"db"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Cron         CronConfig         `mapstructure:"cron"`
	Alpaca       AlpacaConfig       `mapstructure:"alpaca"`
	DataSource   DataSourceConfig   `mapstructure:"data_source"`
	Universe     UniverseConfig     `mapstructure:"universe"`
	PriceHistory PriceHistoryConfig `mapstructure:"price_history"`
	Execution    ExecutionConfig    `mapstructure:"execution"`
	Runner       RunnerConfig       `mapstructure:"runner"`
	Risk         RiskConfig         `mapstructure:"risk"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// RedisConfig is optional. An empty Addr keeps caches and rule leases in process.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Tick      string `mapstructure:"tick"`
	OrderSync string `mapstructure:"order_sync"`
}

type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
	DataURL   string `mapstructure:"data_url"`
	Feed      string `mapstructure:"feed"`
}

// DataSourceConfig selects where bars come from: "alpaca" or "http".
type DataSourceConfig struct {
	Kind    string        `mapstructure:"kind"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type UniverseConfig struct {
	// Source is "db" (index_constituents table) or "http".
	Source         string        `mapstructure:"source"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	DefaultIndices []string      `mapstructure:"default_indices"`
	CheckTradable  bool          `mapstructure:"check_tradable"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type PriceHistoryConfig struct {
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	InterCallWait time.Duration `mapstructure:"inter_call_wait"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

type ExecutionConfig struct {
	// Mode is "dry-run" (simulator broker) or "live".
	Mode        string        `mapstructure:"mode"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Jitter      float64       `mapstructure:"jitter"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	OrderType   string        `mapstructure:"order_type"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`

	// SimulatorCash seeds the dry-run broker balance.
	SimulatorCash float64 `mapstructure:"simulator_cash"`
}

type RunnerConfig struct {
	Workers     int           `mapstructure:"workers"`
	TickTimeout time.Duration `mapstructure:"tick_timeout"`

	// Timezone of the trading session, used for the same-day re-entry block.
	Timezone string `mapstructure:"timezone"`
	// SessionClose is the closing time as an offset from local midnight.
	// Zero treats every bar as a completed session.
	SessionClose time.Duration `mapstructure:"session_close"`
}

type RiskConfig struct {
	DefaultPerSymbolCapPct float64 `mapstructure:"default_per_symbol_cap_pct"`
	DefaultPortfolioCapPct float64 `mapstructure:"default_portfolio_cap_pct"`
}

// LoadDotEnv loads a .env file into the process environment if one exists.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "sqlite:file:engine.db?_busy_timeout=5000")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lease_ttl", "5m")

	// The engine is normally driven by an external scheduler hitting /api/v1/ticks.
	v.SetDefault("cron.enabled", false)
	v.SetDefault("cron.tick", "0 */5 9-15 * * MON-FRI")
	v.SetDefault("cron.order_sync", "@every 30s")

	v.SetDefault("alpaca.base_url", "https://paper-api.alpaca.markets")
	v.SetDefault("alpaca.data_url", "")
	v.SetDefault("alpaca.feed", "iex")
	v.SetDefault("data_source.kind", "alpaca")
	v.SetDefault("data_source.timeout", "10s")
	v.SetDefault("universe.source", "db")
	v.SetDefault("universe.default_indices", []string{"KOSPI200", "KOSDAQ150"})
	v.SetDefault("universe.check_tradable", false)
	v.SetDefault("universe.cache_ttl", "1m")
	v.SetDefault("universe.timeout", "10s")

	v.SetDefault("price_history.call_timeout", "5s")
	v.SetDefault("price_history.max_attempts", 2)
	v.SetDefault("price_history.retry_delay", "300ms")
	v.SetDefault("price_history.inter_call_wait", "200ms")
	v.SetDefault("price_history.cache_ttl", "2m")

	v.SetDefault("execution.mode", "dry-run")
	v.SetDefault("execution.max_attempts", 3)
	v.SetDefault("execution.base_delay", "500ms")
	v.SetDefault("execution.max_delay", "5s")
	v.SetDefault("execution.jitter", 0.2)
	v.SetDefault("execution.call_timeout", "10s")
	v.SetDefault("execution.order_type", "market")
	v.SetDefault("execution.stale_after", "10m")
	v.SetDefault("execution.simulator_cash", 100000000)

	v.SetDefault("runner.workers", 4)
	v.SetDefault("runner.tick_timeout", "2m")
	v.SetDefault("runner.timezone", "Asia/Seoul")
	v.SetDefault("runner.session_close", "15h30m")

	v.SetDefault("risk.default_per_symbol_cap_pct", 0.10)
	v.SetDefault("risk.default_portfolio_cap_pct", 0.50)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
