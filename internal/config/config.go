package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DevSecret signs tokens when no secret is configured. Prod refuses to start with it.
const DevSecret = "supersecret-dev-key"

type Backend string

const (
	BackendLocal  Backend = "local"  // sqlite file on this machine
	BackendRemote Backend = "remote" // hosted postgres
)

type Config struct {
	Mode     string // dev|prod
	HTTPAddr string

	Backend        Backend
	LocalDSN       string
	RemoteDSN      string
	RemoteMaxConns int32

	AuthHMACSecret string
	OwnerUser      string
	OwnerPassHash  string // bcrypt
	ViewerUser     string // read-only account, disabled when empty
	ViewerPassHash string
	TokenTTL       time.Duration

	CORSOrigins    []string
	RequestTimeout time.Duration

	// ArchiveDir keeps committed import files; empty disables archiving.
	ArchiveDir string

	DashboardTrendDays   int
	DashboardRecentLimit int
}

// SetDefaults registers every key with its default so env overrides work without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "dev")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("backend", string(BackendLocal))
	v.SetDefault("local_dsn", "file:study.db?cache=shared&mode=rwc")
	v.SetDefault("remote_dsn", "")
	v.SetDefault("remote_max_conns", 10)
	v.SetDefault("auth_hmac_secret", DevSecret)
	v.SetDefault("owner_user", "owner")
	// empty: dev login accepts password == user
	v.SetDefault("owner_pass_hash", "")
	v.SetDefault("viewer_user", "")
	v.SetDefault("viewer_pass_hash", "")
	v.SetDefault("token_ttl", "8h")
	v.SetDefault("cors_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("archive_dir", "data/imports")
	v.SetDefault("dashboard_trend_days", 7)
	v.SetDefault("dashboard_recent_limit", 5)
}

// New returns a viper instance reading STUDY_* environment variables on top of the defaults.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("study")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads an optional config file (yaml/toml/json) before building the Config.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}
	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that are only safe in dev.
func (c Config) Validate() error {
	if c.Mode != "prod" {
		return nil
	}
	if secret := strings.TrimSpace(c.AuthHMACSecret); secret == "" || secret == DevSecret {
		return errors.New("config: auth_hmac_secret must be set in prod")
	}
	if c.OwnerPassHash == "" {
		return errors.New("config: owner_pass_hash must be set in prod")
	}
	return nil
}

func FromEnv() Config {
	return FromViper(New())
}

func FromViper(v *viper.Viper) Config {
	backend := Backend(strings.ToLower(strings.TrimSpace(v.GetString("backend"))))
	if backend != BackendRemote {
		backend = BackendLocal
	}
	timeout := v.GetDuration("request_timeout")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ttl := v.GetDuration("token_ttl")
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	trend := v.GetInt("dashboard_trend_days")
	if trend <= 0 {
		trend = 7
	}
	return Config{
		Mode:                 v.GetString("mode"),
		HTTPAddr:             v.GetString("http_addr"),
		Backend:              backend,
		LocalDSN:             v.GetString("local_dsn"),
		RemoteDSN:            v.GetString("remote_dsn"),
		RemoteMaxConns:       v.GetInt32("remote_max_conns"),
		AuthHMACSecret:       v.GetString("auth_hmac_secret"),
		OwnerUser:            v.GetString("owner_user"),
		OwnerPassHash:        v.GetString("owner_pass_hash"),
		ViewerUser:           v.GetString("viewer_user"),
		ViewerPassHash:       v.GetString("viewer_pass_hash"),
		TokenTTL:             ttl,
		CORSOrigins:          splitCSV(v.GetString("cors_origins")),
		RequestTimeout:       timeout,
		ArchiveDir:           v.GetString("archive_dir"),
		DashboardTrendDays:   trend,
		DashboardRecentLimit: v.GetInt("dashboard_recent_limit"),
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
