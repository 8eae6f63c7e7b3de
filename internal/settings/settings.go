// Package settings loads the indexer's TOML configuration file (SPEC_FULL
// §4.7), mirroring original_source/common/src/settings.rs's barreleye.toml
// contract: a handful of top-level scalars plus nested driver/DSN tables.
//
// Grounded on the teacher's naoina/toml usage in cmd/ranger/config.go (a
// toml.Config with strict-field decoding) and gopkg.in/urfave/cli.v1 for the
// --config flag wired in cmd/indexer.
package settings

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
)

// DefaultFilename is the settings file searched for in the current
// directory when --config isn't passed.
const DefaultFilename = "klaywatch.toml"

// EnvPrefix is the prefix every environment-variable override carries;
// nesting uses "__" (e.g. KLAYWATCH_DB__MAX_CONNECTIONS).
const EnvPrefix = "KLAYWATCH_"

// Settings is the full settings surface spec.md §6 requires: warehouse URL,
// config DB URL, cache directory, ping interval, promotion timeout,
// watchlist refresh rate, and role flags. RPC endpoint lists per network
// live in the registry's networks table (SPEC_FULL §3), not here — they're
// per-network operational data, not process-wide configuration.
type Settings struct {
	Env                  string `toml:"env"`
	WatchlistRefreshRate uint64 `toml:"watchlist_refresh_rate"`
	PrimaryPing          uint64 `toml:"primary_ping"`
	PrimaryPromotion     uint64 `toml:"primary_promotion"`

	Role      Role      `toml:"role"`
	Server    Server    `toml:"server"`
	Cache     Cache     `toml:"cache"`
	DB        DB        `toml:"db"`
	Warehouse Warehouse `toml:"warehouse"`
	Notify    Notify    `toml:"notify"`
	Dsn       Dsn       `toml:"dsn"`
}

// Role gates which long-running loops this replica runs.
type Role struct {
	IsIndexer bool `toml:"is_indexer"`
	IsServer  bool `toml:"is_server"`
}

type Server struct {
	IPv4 string `toml:"ip_v4"`
	IPv6 string `toml:"ip_v6"`
	Port uint16 `toml:"port"`
}

// Cache selects the embedded cache driver (SPEC_FULL §2): badger or
// leveldb, fronted by an in-process fastcache layer regardless of driver.
type Cache struct {
	Driver string `toml:"driver"`
	Dir    string `toml:"dir"`
}

type DB struct {
	MinConnections uint32 `toml:"min_connections"`
	MaxConnections uint32 `toml:"max_connections"`
	ConnectTimeout uint64 `toml:"connect_timeout"`
	IdleTimeout    uint64 `toml:"idle_timeout"`
	MaxLifetime    uint64 `toml:"max_lifetime"`
}

type Warehouse struct {
	Database string `toml:"database"`
}

// Notify configures the optional commit-notifier side channel (SPEC_FULL
// §4.9). Empty KafkaBrokers means notify.NoopNotifier.
type Notify struct {
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`
}

type Dsn struct {
	Mysql      string `toml:"mysql"`
	Clickhouse string `toml:"clickhouse"`
	Redis      string `toml:"redis"`
}

// tomlCodec mirrors the teacher's cmd/ranger/config.go: TOML keys match Go
// struct tags verbatim, and an unrecognized field in the file is an error
// rather than silently ignored.
var tomlCodec = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("settings: field %q is not defined in %s", field, rt.String())
	},
}

// Default returns the zero-config defaults original_source ships as
// DEFAULT_SETTINGS_CONTENT, translated to this schema.
func Default() Settings {
	return Settings{
		Env:                  "production",
		WatchlistRefreshRate: 3600,
		PrimaryPing:          2,
		PrimaryPromotion:     20,
		Role:                 Role{IsIndexer: true, IsServer: true},
		Server:               Server{IPv4: "0.0.0.0", IPv6: "::", Port: 22775},
		Cache:                Cache{Driver: "badger", Dir: "./klaywatch_cache"},
		DB:                   DB{MinConnections: 5, MaxConnections: 100, ConnectTimeout: 8, IdleTimeout: 8, MaxLifetime: 8},
		Warehouse:            Warehouse{Database: "klaywatch"},
	}
}

// Load reads path (or Default()'s zero-config values if path is empty and
// no DefaultFilename exists in the working directory), then applies
// KLAYWATCH_-prefixed environment overrides, and validates the result.
func Load(path string) (*Settings, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFilename); err == nil {
			path = DefaultFilename
		}
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "settings: open")
		}
		defer f.Close()

		if err := tomlCodec.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
			if _, ok := err.(*toml.LineError); ok {
				return nil, errors.New(path + ", " + err.Error())
			}
			return nil, errors.Wrap(err, "settings: decode")
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the invariants spec.md §4.5 and §6 name: the
// promotion/ping ratio, and a configured DSN for every driver this process
// role actually needs.
func (s Settings) Validate() error {
	if s.PrimaryPromotion < 2*s.PrimaryPing {
		return errors.Errorf("settings: primary_promotion (%d) must be at least 2x primary_ping (%d)", s.PrimaryPromotion, s.PrimaryPing)
	}
	if s.Role.IsIndexer && s.Dsn.Clickhouse == "" {
		return errors.New("settings: dsn.clickhouse is required when role.is_indexer is true")
	}
	if s.Dsn.Mysql == "" {
		return errors.New("settings: dsn.mysql is required")
	}
	return nil
}

func (s Settings) PingInterval() time.Duration {
	return time.Duration(s.PrimaryPing) * time.Second
}

func (s Settings) PromotionTimeout() time.Duration {
	return time.Duration(s.PrimaryPromotion) * time.Second
}

// applyEnvOverrides walks cfg's exported scalar/string-slice fields and
// overrides any whose KLAYWATCH_-prefixed, "__"-joined path is set in the
// environment (e.g. KLAYWATCH_DB__MAX_CONNECTIONS=200).
func applyEnvOverrides(cfg *Settings) {
	walkEnvOverrides(reflect.ValueOf(cfg).Elem(), EnvPrefix)
}

func walkEnvOverrides(v reflect.Value, prefix string) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !unicode.IsUpper(rune(field.Name[0])) {
			continue
		}
		name := field.Tag.Get("toml")
		if name == "" {
			name = field.Name
		}
		key := prefix + strings.ToUpper(name)
		fv := v.Field(i)

		switch fv.Kind() {
		case reflect.Struct:
			walkEnvOverrides(fv, key+"__")
		case reflect.String:
			if raw, ok := os.LookupEnv(key); ok {
				fv.SetString(raw)
			}
		case reflect.Bool:
			if raw, ok := os.LookupEnv(key); ok {
				fv.SetBool(raw == "1" || strings.EqualFold(raw, "true"))
			}
		case reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint:
			if raw, ok := os.LookupEnv(key); ok {
				if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
					fv.SetUint(n)
				}
			}
		case reflect.Slice:
			if fv.Type().Elem().Kind() == reflect.String {
				if raw, ok := os.LookupEnv(key); ok && raw != "" {
					fv.Set(reflect.ValueOf(strings.Split(raw, ",")))
				}
			}
		}
	}
}

// ResolveCacheDir expands a leading "~" and makes the path absolute,
// mirroring the teacher's path-handling helpers in node/config.go.
func ResolveCacheDir(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("settings: cache.dir is empty")
	}
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return filepath.Abs(dir)
}
