package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"OutLight/internal/domain"
	"OutLight/pkg/logger"
	"OutLight/pkg/validator"
)

const placeholderToken = "your_bot_token_here"

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Console   ConsoleConfig   `mapstructure:"console"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	API       APIConfig       `mapstructure:"api"`
	DNS       DNSConfig       `mapstructure:"dns"`
	Streams   []StreamConfig  `mapstructure:"streams"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

type TelegramConfig struct {
	BotToken       string `mapstructure:"bot_token"`
	ChatIDs        string `mapstructure:"chat_ids"`
	UpdateInterval int    `mapstructure:"update_interval"`
	MaxSessions    int    `mapstructure:"max_sessions"`
	Interactive    bool   `mapstructure:"interactive"`
}

type DashboardConfig struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	PushInterval time.Duration `mapstructure:"push_interval"`
}

type ConsoleConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type MonitorConfig struct {
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BackoffMax       time.Duration `mapstructure:"backoff_max"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	PendingGrace     time.Duration `mapstructure:"pending_grace"`
	EventBuffer      int           `mapstructure:"event_buffer"`
}

type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Endpoints []string      `mapstructure:"endpoints"`
	Interval  time.Duration `mapstructure:"interval"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type DNSConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Server  string        `mapstructure:"server"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StreamConfig struct {
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	Kind    string `mapstructure:"kind"`
	Enabled bool   `mapstructure:"enabled"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       int    `mapstructure:"db"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BindFlags регистрирует общие флаги командной строки
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.Bool("interactive", false, "serve /start commands instead of configured chats")
	fs.String("log-level", "", "log level override (debug, info, warn, error)")
}

// Load reads defaults, the optional YAML file, environment and flags, in
// increasing priority. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	explicit := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			explicit = f.Value.String()
		}
		if f := fs.Lookup("interactive"); f != nil {
			if err := v.BindPFlag("telegram.interactive", f); err != nil {
				return nil, fmt.Errorf("failed to bind flag: %w", err)
			}
		}
		if f := fs.Lookup("log-level"); f != nil && f.Changed {
			v.Set("logging.level", f.Value.String())
		}
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && explicit == "" {
			slog.Debug("config file not found, using defaults and environment")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config, %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed, %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "outlight-monitor")
	v.SetDefault("app.version", "1.0.0")

	// telegram defaults
	v.SetDefault("telegram.update_interval", 1)
	v.SetDefault("telegram.max_sessions", 0)
	v.SetDefault("telegram.interactive", false)

	// dashboard defaults
	v.SetDefault("dashboard.port", 5000)
	v.SetDefault("dashboard.mode", "release")
	v.SetDefault("dashboard.push_interval", "1s")

	v.SetDefault("console.interval", "5s")

	// monitor defaults
	v.SetDefault("monitor.backoff_base", "5s")
	v.SetDefault("monitor.backoff_max", "60s")
	v.SetDefault("monitor.handshake_timeout", "10s")
	v.SetDefault("monitor.pending_grace", "20s")
	v.SetDefault("monitor.event_buffer", 256)

	// api defaults
	v.SetDefault("api.base_url", "https://prod.api.sauron.outlight.fun")
	v.SetDefault("api.endpoints", []string{"/api/channels", "/api/tokens/recent", "/api/tokens/most-called"})
	v.SetDefault("api.interval", "60s")
	v.SetDefault("api.timeout", "10s")

	v.SetDefault("dns.enabled", false)
	v.SetDefault("dns.server", "8.8.8.8:53")
	v.SetDefault("dns.timeout", "5s")

	v.SetDefault("streams", []map[string]any{
		{"name": "Price WebSocket", "url": "wss://price.outlight.fun/ws", "kind": "websocket", "enabled": true},
		{"name": "Sauron Socket.IO", "url": "wss://prod.api.sauron.outlight.fun/socket.io/?EIO=4&transport=websocket", "kind": "socketio", "enabled": true},
	})

	// database defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")

	// redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		secondsToDuration,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsToDuration reads a bare number as seconds, so BACKOFF_BASE=5 means
// five seconds. Values with a unit ("5s", "1m30s") are left to the next hook.
func secondsToDuration(from, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}

	switch from.Kind() {
	case reflect.String:
		n, err := strconv.ParseFloat(strings.TrimSpace(reflect.ValueOf(data).String()), 64)
		if err != nil {
			return data, nil
		}
		return time.Duration(n * float64(time.Second)), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
	}
	return data, nil
}

func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"telegram.bot_token":       "BOT_TOKEN",
		"telegram.chat_ids":        "CHAT_ID",
		"telegram.update_interval": "UPDATE_INTERVAL",
		"telegram.max_sessions":    "MAX_SESSIONS",
		"dashboard.port":           "DASHBOARD_PORT",
		"api.base_url":             "API_BASE_URL",
		"monitor.backoff_base":     "BACKOFF_BASE",
		"monitor.backoff_max":      "BACKOFF_MAX",
		"database.url":             "DATABASE_URL",
		"redis.url":                "REDIS_URL",
		"redis.host":               "REDIS_HOST",
		"redis.port":               "REDIS_PORT",
		"redis.db":                 "REDIS_DB",
		"redis.username":           "REDIS_USERNAME",
		"redis.password":           "REDIS_PASSWORD",
		"logging.level":            "LOG_LEVEL",
		"logging.format":           "LOG_FORMAT",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Dashboard.Port < 1 || cfg.Dashboard.Port > 65535 {
		return fmt.Errorf("invalid dashboard port %d", cfg.Dashboard.Port)
	}

	if cfg.Dashboard.Mode != "debug" && cfg.Dashboard.Mode != "release" && cfg.Dashboard.Mode != "test" {
		return fmt.Errorf("invalid dashboard mode %s", cfg.Dashboard.Mode)
	}

	if cfg.Telegram.UpdateInterval < 1 {
		return fmt.Errorf("update interval must be positive, got %d", cfg.Telegram.UpdateInterval)
	}

	if cfg.Telegram.MaxSessions < 0 {
		return fmt.Errorf("max sessions must not be negative, got %d", cfg.Telegram.MaxSessions)
	}

	if cfg.Monitor.BackoffBase <= 0 || cfg.Monitor.BackoffMax < cfg.Monitor.BackoffBase {
		return fmt.Errorf("invalid backoff %s..%s", cfg.Monitor.BackoffBase, cfg.Monitor.BackoffMax)
	}

	for name, d := range map[string]time.Duration{
		"api.interval":            cfg.API.Interval,
		"api.timeout":             cfg.API.Timeout,
		"console.interval":        cfg.Console.Interval,
		"dashboard.push_interval": cfg.Dashboard.PushInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if _, err := logger.ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}

	targets, err := cfg.Targets()
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return errors.New("no targets configured")
	}

	if _, err := cfg.Telegram.Chats(); err != nil {
		return err
	}

	return nil
}

// ValidateTelegram checks the settings only the Telegram binary needs.
func (c *Config) ValidateTelegram() error {
	token := strings.TrimSpace(c.Telegram.BotToken)
	if token == "" || token == placeholderToken {
		return errors.New("BOT_TOKEN is not set")
	}

	chats, err := c.Telegram.Chats()
	if err != nil {
		return err
	}
	if !c.Telegram.Interactive && len(chats) == 0 {
		return errors.New("CHAT_ID is required unless --interactive is set")
	}
	return nil
}

// Targets returns every enabled target in configuration order: streams first,
// then API endpoints, then the optional DNS probe.
func (c *Config) Targets() ([]domain.EndpointTarget, error) {
	var targets []domain.EndpointTarget
	seen := make(map[string]bool)

	add := func(t domain.EndpointTarget) error {
		if !validator.ValidateTargetKind(string(t.Kind)) {
			return fmt.Errorf("target %q: unknown kind %q", t.Name, t.Kind)
		}
		if !validator.ValidateTarget(string(t.Kind), t.URL) {
			return fmt.Errorf("target %q: malformed url %q", t.Name, t.URL)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
		targets = append(targets, t)
		return nil
	}

	for _, s := range c.Streams {
		if !s.Enabled {
			continue
		}
		err := add(domain.EndpointTarget{
			Name:    s.Name,
			URL:     s.URL,
			Kind:    domain.TargetKind(s.Kind),
			Timeout: c.Monitor.HandshakeTimeout,
		})
		if err != nil {
			return nil, err
		}
	}

	base := strings.TrimRight(c.API.BaseURL, "/")
	for _, endpoint := range c.API.Endpoints {
		path := "/" + strings.TrimLeft(endpoint, "/")
		err := add(domain.EndpointTarget{
			Name:          "API " + path,
			URL:           base + path,
			Kind:          domain.KindHTTP,
			CheckInterval: c.API.Interval,
			Timeout:       c.API.Timeout,
		})
		if err != nil {
			return nil, err
		}
	}

	if c.DNS.Enabled {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Hostname() == "" {
			return nil, fmt.Errorf("dns probe: cannot derive host from %q", c.API.BaseURL)
		}
		err = add(domain.EndpointTarget{
			Name:          "DNS " + u.Hostname(),
			URL:           u.Hostname(),
			Kind:          domain.KindDNS,
			CheckInterval: c.API.Interval,
			Timeout:       c.DNS.Timeout,
		})
		if err != nil {
			return nil, err
		}
	}

	return targets, nil
}

// Chats parses the comma-separated CHAT_ID list.
func (t TelegramConfig) Chats() ([]domain.Chat, error) {
	var chats []domain.Chat
	for _, raw := range strings.Split(t.ChatIDs, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		chat, err := domain.ParseChat(raw)
		if err != nil {
			return nil, fmt.Errorf("CHAT_ID: %w", err)
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

func (t TelegramConfig) Interval() time.Duration {
	return time.Duration(t.UpdateInterval) * time.Second
}

func (d *DatabaseConfig) Enabled() bool {
	return d.URL != "" || d.Host != ""
}

// возвращает DSN строку для PostgreSQL
func (d *DatabaseConfig) GetDSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// возвращает настройки для Redis клиента
func (r *RedisConfig) GetRedisOptions() (*redis.Options, error) {
	if r.URL != "" {
		opts, err := redis.ParseURL(r.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts.DisableIdentity = true
		return opts, nil
	}

	return &redis.Options{
		Addr:            fmt.Sprintf("%s:%d", r.Host, r.Port),
		Username:        r.Username,
		Password:        r.Password,
		DB:              r.DB,
		DisableIdentity: true,
	}, nil
}

func (l LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{Level: l.Level, Format: l.Format}
}
