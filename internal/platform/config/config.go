package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	MembershipObserved  = "observed"
	MembershipDirectory = "directory"

	DirectorySourceLine     = "line"
	DirectorySourcePostgres = "postgres"

	MemberStoreMemory   = "memory"
	MemberStorePostgres = "postgres"

	ArchiveNone     = "none"
	ArchivePostgres = "postgres"
	ArchiveSQLite   = "sqlite"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	LogLevel    string
	LogFormat   string

	LineChannelSecret string
	LineChannelToken  string
	LineAPIBaseURL    string

	MembershipMode    string
	DirectorySource   string
	DirectoryMaxPages int
	MemberStore       string

	MentionBatchSize    int
	QuickReplyLimit     int
	ExternalCallTimeout time.Duration

	SweepSecret    string
	SweepInterval  time.Duration
	SweepTargetURL string

	PostgresDSN   string
	ArchiveDriver string
	SQLitePath    string
	EventDedupTTL time.Duration

	Tracing TracingConfig
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string
	OTLPEndpoint string
	SampleRate   float64
}

// Load reads configuration from defaults and the environment only.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile layers defaults, an optional YAML file and environment variables,
// in increasing precedence. Variables use the POLLBOT_ prefix with dots
// replaced by underscores; LINE_CHANNEL_SECRET, LINE_CHANNEL_TOKEN and PORT
// are also accepted bare.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("POLLBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindAliases(v)

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		ServiceName: v.GetString("service.name"),
		HTTPPort:    v.GetString("http.port"),
		LogLevel:    v.GetString("log.level"),
		LogFormat:   v.GetString("log.format"),

		LineChannelSecret: strings.TrimSpace(v.GetString("line.channel_secret")),
		LineChannelToken:  strings.TrimSpace(v.GetString("line.channel_token")),
		LineAPIBaseURL:    v.GetString("line.api_base_url"),

		MembershipMode:    strings.ToLower(strings.TrimSpace(v.GetString("membership.mode"))),
		DirectorySource:   strings.ToLower(strings.TrimSpace(v.GetString("membership.directory_source"))),
		DirectoryMaxPages: v.GetInt("membership.directory_max_pages"),
		MemberStore:       strings.ToLower(strings.TrimSpace(v.GetString("membership.store"))),

		MentionBatchSize:    v.GetInt("poll.mention_batch_size"),
		QuickReplyLimit:     v.GetInt("poll.quick_reply_limit"),
		ExternalCallTimeout: v.GetDuration("poll.external_call_timeout"),

		SweepSecret:    strings.TrimSpace(v.GetString("sweep.secret")),
		SweepInterval:  v.GetDuration("sweep.interval"),
		SweepTargetURL: strings.TrimSpace(v.GetString("sweep.target_url")),

		PostgresDSN:   strings.TrimSpace(v.GetString("postgres.dsn")),
		ArchiveDriver: strings.ToLower(strings.TrimSpace(v.GetString("archive.driver"))),
		SQLitePath:    strings.TrimSpace(v.GetString("archive.sqlite_path")),
		EventDedupTTL: v.GetDuration("events.dedup_ttl"),

		Tracing: TracingConfig{
			Enabled:      v.GetBool("tracing.enabled"),
			Exporter:     strings.ToLower(strings.TrimSpace(v.GetString("tracing.exporter"))),
			OTLPEndpoint: v.GetString("tracing.otlp_endpoint"),
			SampleRate:   v.GetFloat64("tracing.sample_rate"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "pollbot")
	v.SetDefault("http.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("line.api_base_url", "https://api.line.me")

	v.SetDefault("membership.mode", MembershipObserved)
	v.SetDefault("membership.directory_source", DirectorySourceLine)
	v.SetDefault("membership.directory_max_pages", 100)
	v.SetDefault("membership.store", MemberStoreMemory)

	v.SetDefault("poll.mention_batch_size", 20)
	v.SetDefault("poll.quick_reply_limit", 13)
	v.SetDefault("poll.external_call_timeout", 5*time.Second)

	v.SetDefault("sweep.interval", time.Hour)
	v.SetDefault("sweep.target_url", "http://localhost:8080/tasks/remind-sweep")

	v.SetDefault("archive.driver", ArchiveNone)
	v.SetDefault("archive.sqlite_path", "data/pollbot.db")
	v.SetDefault("events.dedup_ttl", 10*time.Minute)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
}

func bindAliases(v *viper.Viper) {
	_ = v.BindEnv("line.channel_secret", "POLLBOT_LINE_CHANNEL_SECRET", "LINE_CHANNEL_SECRET")
	_ = v.BindEnv("line.channel_token", "POLLBOT_LINE_CHANNEL_TOKEN", "LINE_CHANNEL_TOKEN")
	_ = v.BindEnv("http.port", "POLLBOT_HTTP_PORT", "PORT")
	_ = v.BindEnv("postgres.dsn", "POLLBOT_POSTGRES_DSN", "POSTGRES_DSN")
}

// Validate rejects combinations the bootstrap cannot wire.
func (c Config) Validate() error {
	var errs []error
	switch c.MembershipMode {
	case MembershipObserved, MembershipDirectory:
	default:
		errs = append(errs, fmt.Errorf("membership.mode must be %q or %q, got %q", MembershipObserved, MembershipDirectory, c.MembershipMode))
	}
	if c.MembershipMode == MembershipDirectory {
		switch c.DirectorySource {
		case DirectorySourceLine, DirectorySourcePostgres:
		default:
			errs = append(errs, fmt.Errorf("membership.directory_source must be %q or %q, got %q", DirectorySourceLine, DirectorySourcePostgres, c.DirectorySource))
		}
	}
	switch c.MemberStore {
	case MemberStoreMemory, MemberStorePostgres:
	default:
		errs = append(errs, fmt.Errorf("membership.store must be %q or %q, got %q", MemberStoreMemory, MemberStorePostgres, c.MemberStore))
	}
	switch c.ArchiveDriver {
	case ArchiveNone, ArchivePostgres, ArchiveSQLite:
	default:
		errs = append(errs, fmt.Errorf("archive.driver must be none, postgres or sqlite, got %q", c.ArchiveDriver))
	}
	if c.NeedsPostgres() && c.PostgresDSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required by the selected membership or archive settings"))
	}
	if c.MentionBatchSize <= 0 {
		errs = append(errs, errors.New("poll.mention_batch_size must be positive"))
	}
	if c.QuickReplyLimit <= 0 || c.QuickReplyLimit > 13 {
		errs = append(errs, errors.New("poll.quick_reply_limit must be between 1 and 13"))
	}
	if c.ExternalCallTimeout <= 0 {
		errs = append(errs, errors.New("poll.external_call_timeout must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) NeedsPostgres() bool {
	return c.MemberStore == MemberStorePostgres ||
		c.ArchiveDriver == ArchivePostgres ||
		(c.MembershipMode == MembershipDirectory && c.DirectorySource == DirectorySourcePostgres)
}
