// Package conf holds the daemon configuration, loaded from a YAML file with
// ${VAR:default} placeholders resolved from TANDEM_ prefixed environment
// variables.
package conf

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-playground/validator/v10"

	_ "github.com/go-kratos/kratos/v2/encoding/yaml"
)

// EnvPrefix is stripped from environment variables before placeholder lookup.
const EnvPrefix = "TANDEM_"

// Duration is a time.Duration that decodes from strings like "5s".
type Duration struct {
	time.Duration
}

// NewDuration wraps d.
func NewDuration(d time.Duration) *Duration {
	return &Duration{Duration: d}
}

// AsDuration returns the wrapped duration. A nil receiver yields 0.
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

type Bootstrap struct {
	Server *Server `json:"server" validate:"required"`
	Data   *Data   `json:"data" validate:"required"`
	Filter *Filter `json:"filter" validate:"required"`
	Log    *Log    `json:"log"`
}

type Server struct {
	HTTP *Endpoint `json:"http" validate:"required"`
	GRPC *Endpoint `json:"grpc" validate:"required"`
}

type Endpoint struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr" validate:"required"`
	Timeout *Duration `json:"timeout"`
}

type Data struct {
	Store      Store       `json:"store"`
	Database   *Database   `json:"database"`
	Redis      *Redis      `json:"redis"`
	Bolt       *Bolt       `json:"bolt"`
	Sqlite     *Sqlite     `json:"sqlite"`
	Names      *Names      `json:"names"`
	Classifier *Classifier `json:"classifier"`
	Images     *Images     `json:"images"`
	Hasher     *Hasher     `json:"hasher"`
}

// Store selects the cache store backend.
type Store struct {
	Driver string `json:"driver" validate:"oneof=memory bolt sqlite redis postgres"`
}

type Database struct {
	Driver string `json:"driver" validate:"required"`
	Source string `json:"source" validate:"required"`
	Pool   Pool   `json:"pool"`
}

type Pool struct {
	MaxOpenConns    int32 `json:"max_open_conns" validate:"gte=0"`
	MinIdleConns    int32 `json:"min_idle_conns" validate:"gte=0"`
	MaxConnLifetime int32 `json:"max_conn_lifetime"` // minutes
	MaxConnIdleTime int32 `json:"max_conn_idle_time"` // minutes
}

type Redis struct {
	Network      string    `json:"network"`
	Addr         string    `json:"addr" validate:"required"`
	Password     string    `json:"password"`
	DB           int       `json:"db" validate:"gte=0"`
	Prefix       string    `json:"prefix"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
}

type Bolt struct {
	Path string `json:"path" validate:"required"`
}

type Sqlite struct {
	Path string `json:"path" validate:"required"`
}

type Names struct {
	Path string `json:"path"`
}

type Classifier struct {
	Enabled bool      `json:"enabled"`
	BaseURL string    `json:"base_url" validate:"required_if=Enabled true,omitempty,url"`
	Timeout *Duration `json:"timeout"`
}

type Images struct {
	Timeout   *Duration `json:"timeout"`
	CacheSize int       `json:"cache_size" validate:"gte=0"`
	MaxBytes  int64     `json:"max_bytes" validate:"gte=0"`
}

// Hasher selects the perceptual hash. Changing it invalidates stored
// identity maps.
type Hasher struct {
	Type string `json:"type" validate:"omitempty,oneof=phash ahash dhash"`
}

type Filter struct {
	Workers         int       `json:"workers" validate:"gte=0,lte=256"`
	ElementTimeout  *Duration `json:"element_timeout"`
	MaxHashDistance int       `json:"max_hash_distance" validate:"gte=0,lte=64"`
	Fusion          *Fusion   `json:"fusion"`
}

type Fusion struct {
	SingleHide   float64 `json:"single_hide" validate:"gte=0,lte=1"`
	JointHide    float64 `json:"joint_hide" validate:"gte=0,lte=1"`
	AgreeMin     float64 `json:"agree_min" validate:"gte=0,lte=1"`
	AgreeMax     float64 `json:"agree_max" validate:"gte=0,lte=1"`
	NameOnlyHide float64 `json:"name_only_hide" validate:"gte=0,lte=1"`
	Margin       float64 `json:"margin" validate:"gte=0,lte=1"`
}

type Log struct {
	Level string `json:"level" validate:"omitempty,oneof=debug info warn error fatal DEBUG INFO WARN ERROR FATAL"`
}

// Validate checks field constraints and that the selected store is configured.
func (b *Bootstrap) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(b); err != nil {
		return err
	}
	switch b.Data.Store.Driver {
	case "postgres":
		if b.Data.Database == nil {
			return fmt.Errorf("data.database is required for the postgres store")
		}
	case "redis":
		if b.Data.Redis == nil {
			return fmt.Errorf("data.redis is required for the redis store")
		}
	case "bolt":
		if b.Data.Bolt == nil {
			return fmt.Errorf("data.bolt is required for the bolt store")
		}
	case "sqlite":
		if b.Data.Sqlite == nil {
			return fmt.Errorf("data.sqlite is required for the sqlite store")
		}
	}
	return nil
}

// Load reads the YAML file at path, resolves environment placeholders and
// validates the result.
func Load(path string) (*Bootstrap, error) {
	c := config.New(
		config.WithSource(
			env.NewSource(EnvPrefix),
			file.NewSource(path),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	var bc Bootstrap
	if err := c.Scan(&bc); err != nil {
		return nil, fmt.Errorf("scan config: %w", err)
	}
	if err := bc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &bc, nil
}
