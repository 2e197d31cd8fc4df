package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"trailing_bot/internal/models"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	binanceKeyENV     = "BINANCE_API_KEY"
	binanceSecretENV  = "BINANCE_API_SECRET"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `mapstructure:"token"`
		ChatID int64  `mapstructure:"chat_id"`
	} `mapstructure:"telegram"`

	DB string `mapstructure:"db_dsn"` // пусто — история не пишется

	Health struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"health"`

	Jaeger struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"jaeger"`

	Binance struct {
		APIKey    string `mapstructure:"api_key"`
		APISecret string `mapstructure:"api_secret"`
		RESTHost  string `mapstructure:"rest_host"`
		WSHost    string `mapstructure:"ws_host"`
	} `mapstructure:"binance"`

	// Кадансы движка. Сканер и мониторы позиций тикают независимо.
	ScanInterval    time.Duration `mapstructure:"scan_interval"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	CandleInterval  string        `mapstructure:"candle_interval"`
	CandleLimit     int           `mapstructure:"candle_limit"`

	// Стартовые настройки трейлинга, дальше правятся через UpdateSettings
	Trailing models.Settings `mapstructure:"trailing"`
}

func NewConfig() (*Config, error) {
	v := viper.New()

	configName := "values_local"
	if name := os.Getenv(configFilePathENV); name != "" {
		configName = name
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// без файла живём на дефолтах + env
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	// секреты только из env, в yaml их не держим
	if tok := v.GetString(tokenTelegramENV); tok != "" {
		cfg.Telegram.Token = tok
	}
	if dsn := v.GetString(databaseDSN); dsn != "" {
		cfg.DB = dsn
	}
	if key := v.GetString(binanceKeyENV); key != "" {
		cfg.Binance.APIKey = key
	}
	if sec := v.GetString(binanceSecretENV); sec != "" {
		cfg.Binance.APISecret = sec
	}

	cfg.Trailing.Normalize()
	if err := cfg.Trailing.Validate(); err != nil {
		return nil, errors.Wrap(err, "trailing settings")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("health.addr", ":8080")
	v.SetDefault("jaeger.host", "localhost")
	v.SetDefault("jaeger.port", 6831)

	v.SetDefault("binance.rest_host", "https://api.binance.com")
	v.SetDefault("binance.ws_host", "wss://stream.binance.com:9443")

	v.SetDefault("scan_interval", "30s")
	v.SetDefault("monitor_interval", "5s")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("candle_interval", "1h")
	v.SetDefault("candle_limit", 50)

	v.SetDefault("trailing.enabled", false)
	v.SetDefault("trailing.min_price_change_pct", 5.0)
	v.SetDefault("trailing.min_quote_volume", 1_000_000.0)
	v.SetDefault("trailing.rsi_threshold", 70.0)
	v.SetDefault("trailing.max_positions", 3)
	v.SetDefault("trailing.trailing_pct", 2.0)
	v.SetDefault("trailing.investment_amount", 100.0)
	v.SetDefault("trailing.stop_loss_pct", 5.0)
	v.SetDefault("trailing.take_profit_pct", 10.0)
	v.SetDefault("trailing.symbols", []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT"})
}
