package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Game     GameConfig     `mapstructure:"game" yaml:"game"`
	TextGen  TextGenConfig  `mapstructure:"textgen" yaml:"textgen"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address" yaml:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address" yaml:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address" yaml:"metrics_address"`
}

type DatabaseConfig struct {
	// Driver is one of "memory", "gorm" or "postgres".
	Driver   string         `mapstructure:"driver" yaml:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// DSN renders the keyword/value connection string understood by both lib/pq
// and the gorm postgres driver.
func (p PostgresConfig) DSN() string {
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, sslmode)
}

type GameConfig struct {
	AICount           int                `mapstructure:"ai_count" yaml:"ai_count"`
	BotPrefix         string             `mapstructure:"bot_prefix" yaml:"bot_prefix"`
	UseDecoy          bool               `mapstructure:"use_decoy" yaml:"use_decoy"`
	LockTimeout       time.Duration      `mapstructure:"lock_timeout" yaml:"lock_timeout"`
	NoopSteps         int                `mapstructure:"noop_steps" yaml:"noop_steps"`
	AmbiguousBots     []string           `mapstructure:"ambiguous_bots" yaml:"ambiguous_bots"`
	FixedDescriptions []FixedDescription `mapstructure:"fixed_descriptions" yaml:"fixed_descriptions"`
	DecoyLine         string             `mapstructure:"decoy_line" yaml:"decoy_line"`
	Authoritative     bool               `mapstructure:"authoritative" yaml:"authoritative"`
	SupporterCount    int                `mapstructure:"supporter_count" yaml:"supporter_count"`
	Experiment        int                `mapstructure:"experiment" yaml:"experiment"`
	WordsFile         string             `mapstructure:"words_file" yaml:"words_file"`
}

// FixedDescription pins the description a bot gives. It is a list entry
// rather than a map because viper lower-cases map keys.
type FixedDescription struct {
	Name string `mapstructure:"name" yaml:"name"`
	Text string `mapstructure:"text" yaml:"text"`
}

// FixedDescriptionMap indexes the non-blank fixed descriptions by bot name.
func (g GameConfig) FixedDescriptionMap() map[string]string {
	out := make(map[string]string, len(g.FixedDescriptions))
	for _, fd := range g.FixedDescriptions {
		if text := strings.TrimSpace(fd.Text); text != "" {
			out[fd.Name] = text
		}
	}
	return out
}

type TextGenConfig struct {
	// Provider is "scripted" (offline) or "chat" (OpenAI-compatible API).
	Provider string        `mapstructure:"provider" yaml:"provider"`
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key"`
	Model    string        `mapstructure:"model" yaml:"model"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Experiment is a study preset for the discussion phase.
type Experiment struct {
	Name           string
	SupporterCount int
	Authoritative  bool
}

// Experiments are the six study conditions: 0, 1 or 2 bots siding with the
// human, each with an authoritative and a non-authoritative speaking style.
var Experiments = map[int]Experiment{
	1: {Name: "no supporters, authoritative", SupporterCount: 0, Authoritative: true},
	2: {Name: "no supporters, non-authoritative", SupporterCount: 0, Authoritative: false},
	3: {Name: "one supporter, authoritative", SupporterCount: 1, Authoritative: true},
	4: {Name: "one supporter, non-authoritative", SupporterCount: 1, Authoritative: false},
	5: {Name: "two supporters, authoritative", SupporterCount: 2, Authoritative: true},
	6: {Name: "two supporters, non-authoritative", SupporterCount: 2, Authoritative: false},
}

var (
	ErrUnknownDriver     = errors.New("unknown database driver")
	ErrUnknownProvider   = errors.New("unknown textgen provider")
	ErrUnknownExperiment = errors.New("unknown experiment preset")
)

// SetDefaults registers every key so env overrides work without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":9090")
	v.SetDefault("server.metrics_address", ":9100")

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "liargame")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("game.ai_count", 4)
	v.SetDefault("game.bot_prefix", "Bot_")
	v.SetDefault("game.use_decoy", true)
	v.SetDefault("game.lock_timeout", 10*time.Second)
	v.SetDefault("game.noop_steps", 1)
	v.SetDefault("game.ambiguous_bots", []string{"Bot_2", "Bot_3"})
	v.SetDefault("game.fixed_descriptions", []FixedDescription{})
	v.SetDefault("game.decoy_line", "")
	v.SetDefault("game.authoritative", true)
	v.SetDefault("game.supporter_count", 0)
	v.SetDefault("game.experiment", 0)
	v.SetDefault("game.words_file", "")

	v.SetDefault("textgen.provider", "scripted")
	v.SetDefault("textgen.base_url", "https://api.openai.com/v1")
	v.SetDefault("textgen.api_key", "")
	v.SetDefault("textgen.model", "gpt-4o-mini")
	v.SetDefault("textgen.timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// Defaults returns the configuration built from SetDefaults alone.
func Defaults() Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults are typed values, so decoding cannot fail.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// LoadConfig reads config.yaml from path (optional), .env.local / .env
// (optional) and LIARGAME_* environment variables, in increasing priority.
func LoadConfig(path string) (*Config, error) {
	loadDotEnv(".env.local", ".env")

	v := viper.New()
	SetDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("LIARGAME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyExperiment()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads each existing file; variables already set win.
func loadDotEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

func (c *Config) applyExperiment() {
	if preset, ok := Experiments[c.Game.Experiment]; ok {
		c.Game.SupporterCount = preset.SupporterCount
		c.Game.Authoritative = preset.Authoritative
	}
}

// Validate checks values the game cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "gorm", "postgres":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Database.Driver)
	}
	switch c.TextGen.Provider {
	case "scripted", "chat":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.TextGen.Provider)
	}
	if c.Game.Experiment != 0 {
		if _, ok := Experiments[c.Game.Experiment]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownExperiment, c.Game.Experiment)
		}
	}
	// Three participants minimum: one human plus at least two bots.
	if c.Game.AICount < 2 {
		return fmt.Errorf("game.ai_count must be >= 2, got %d", c.Game.AICount)
	}
	if c.Game.LockTimeout <= 0 {
		return fmt.Errorf("game.lock_timeout must be positive, got %s", c.Game.LockTimeout)
	}
	if c.Game.SupporterCount < 0 {
		return fmt.Errorf("game.supporter_count must be >= 0, got %d", c.Game.SupporterCount)
	}
	return nil
}
