package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Pipeline struct {
		Symbol        string        `yaml:"symbol"`
		Timeframes    []string      `yaml:"timeframes"`
		Strategies    []string      `yaml:"strategies"`
		CandleWindow  int           `yaml:"candle_window"`
		DedupWindow   time.Duration `yaml:"dedup_window"`
		MaxSignalAge  time.Duration `yaml:"max_signal_age"`
		MinRiskReward float64       `yaml:"min_risk_reward"`
		MaxEntryDrift float64       `yaml:"max_entry_drift"`
		CloseDelay    time.Duration `yaml:"close_delay"`
	} `yaml:"pipeline"`
	Risk struct {
		InitialEquity   float64 `yaml:"initial_equity"`
		MaxPositions    int     `yaml:"max_positions"`
		MaxRiskPerTrade float64 `yaml:"max_risk_per_trade"`
		DailyLossLimit  float64 `yaml:"daily_loss_limit"`
		MinEquityFrac   float64 `yaml:"min_equity_fraction"`
		DailyResetHour  int     `yaml:"daily_reset_hour"`
	} `yaml:"risk"`
	MarketData struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"marketdata"`
	Broker struct {
		Mode        string        `yaml:"mode"` // paper or bridge
		BridgeURL   string        `yaml:"bridge_url"`
		Timeout     time.Duration `yaml:"timeout"`
		PaperSlipPt float64       `yaml:"paper_slippage_points"`
	} `yaml:"broker"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Telegram struct {
		Enabled   bool          `yaml:"enabled"`
		BotToken  string        `yaml:"bot_token"`
		ChatID    string        `yaml:"chat_id"`
		Heartbeat time.Duration `yaml:"heartbeat"`
	} `yaml:"telegram"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.Environment = "development"
	c.Server.Port = 8080
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 10 * time.Second
	c.Server.ShutdownTimeout = 15 * time.Second
	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"
	c.Pipeline.Symbol = "XAUUSD"
	c.Pipeline.Timeframes = []string{"1h", "4h", "1d"}
	c.Pipeline.Strategies = []string{"fib_retest", "momentum"}
	c.Pipeline.CandleWindow = 100
	c.Pipeline.DedupWindow = 4 * time.Hour
	c.Pipeline.MaxSignalAge = time.Hour
	c.Pipeline.MinRiskReward = 1.5
	c.Pipeline.MaxEntryDrift = 0.05
	c.Pipeline.CloseDelay = 5 * time.Second
	c.Risk.InitialEquity = 10000
	c.Risk.MaxPositions = 3
	c.Risk.MaxRiskPerTrade = 0.02
	c.Risk.DailyLossLimit = 0.05
	c.Risk.MinEquityFrac = 0.5
	c.Risk.DailyResetHour = 0
	c.MarketData.ReconnectDelay = 5 * time.Second
	c.MarketData.PingInterval = 30 * time.Second
	c.Broker.Mode = "paper"
	c.Broker.Timeout = 10 * time.Second
	c.ClickHouse.Host = "localhost"
	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "goldpulse"
	c.ClickHouse.User = "default"
	c.ClickHouse.DialTimeout = 5 * time.Second
	c.ClickHouse.ReadTimeout = 10 * time.Second
	c.ClickHouse.WriteTimeout = 10 * time.Second
	c.Kafka.Topic = "goldpulse.signals"
	c.Kafka.RequiredAcks = 1
	c.Telegram.Heartbeat = time.Hour
	return &c
}

// Load reads and parses a YAML configuration file. An empty path returns
// the defaults so the service can run on environment variables alone.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables, then validates.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOL"); v != "" {
		c.Pipeline.Symbol = v
	}
	if v := os.Getenv("TIMEFRAMES"); v != "" {
		c.Pipeline.Timeframes = strings.Split(v, ",")
	}
	if v := os.Getenv("STRATEGIES"); v != "" {
		c.Pipeline.Strategies = strings.Split(v, ",")
	}
	if v, ok := envFloat("DEDUP_WINDOW_HOURS"); ok {
		c.Pipeline.DedupWindow = time.Duration(v * float64(time.Hour))
	}
	if v, ok := envFloat("MAX_SIGNAL_AGE_HOURS"); ok {
		c.Pipeline.MaxSignalAge = time.Duration(v * float64(time.Hour))
	}
	if v, ok := envInt("MAX_POSITIONS"); ok {
		c.Risk.MaxPositions = v
	}
	if v, ok := envFloat("MAX_RISK_PER_TRADE"); ok {
		c.Risk.MaxRiskPerTrade = v
	}
	if v, ok := envFloat("MAX_DAILY_LOSS"); ok {
		c.Risk.DailyLossLimit = v
	}
	if v, ok := envFloat("MIN_EQUITY_FRACTION"); ok {
		c.Risk.MinEquityFrac = v
	}
	if v, ok := envFloat("INITIAL_EQUITY"); ok {
		c.Risk.InitialEquity = v
	}
	if v := os.Getenv("MARKETDATA_WS_URL"); v != "" {
		c.MarketData.WebSocketURL = v
	}
	if v := os.Getenv("MARKETDATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("BROKER_MODE"); v != "" {
		c.Broker.Mode = v
	}
	if v := os.Getenv("BROKER_BRIDGE_URL"); v != "" {
		c.Broker.BridgeURL = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
		c.Telegram.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Pipeline.Symbol == "" {
		return fmt.Errorf("pipeline.symbol is required")
	}
	if len(c.Pipeline.Timeframes) == 0 {
		return fmt.Errorf("pipeline.timeframes cannot be empty")
	}
	if c.Pipeline.DedupWindow <= 0 {
		return fmt.Errorf("pipeline.dedup_window must be positive")
	}
	if c.Pipeline.MaxSignalAge <= 0 {
		return fmt.Errorf("pipeline.max_signal_age must be positive")
	}
	if c.Risk.MaxPositions <= 0 {
		return fmt.Errorf("risk.max_positions must be positive")
	}
	if c.Risk.MaxRiskPerTrade <= 0 || c.Risk.MaxRiskPerTrade >= 1 {
		return fmt.Errorf("risk.max_risk_per_trade must be a fraction in (0,1)")
	}
	if c.Risk.DailyLossLimit <= 0 || c.Risk.DailyLossLimit >= 1 {
		return fmt.Errorf("risk.daily_loss_limit must be a fraction in (0,1)")
	}
	if c.Risk.MinEquityFrac < 0 || c.Risk.MinEquityFrac >= 1 {
		return fmt.Errorf("risk.min_equity_fraction must be a fraction in [0,1)")
	}
	if c.Broker.Mode != "paper" && c.Broker.Mode != "bridge" {
		return fmt.Errorf("broker.mode must be 'paper' or 'bridge', got '%s'", c.Broker.Mode)
	}
	if c.Broker.Mode == "bridge" && c.Broker.BridgeURL == "" {
		return fmt.Errorf("broker.bridge_url is required in bridge mode")
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
