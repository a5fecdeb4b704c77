// Package config loads the settings shared by the tftp commands from a YAML
// file and TFTP_* environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/Pablu23/tftp/internal/client"
	"github.com/Pablu23/tftp/internal/common"
	"github.com/Pablu23/tftp/internal/server"
)

type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`

	// SecretKey is a hex encoded 32 byte key. When set, datagrams are sealed.
	SecretKey string `mapstructure:"secret_key" validate:"omitempty,hexadecimal,len=64"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=trace debug info warn warning error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

type ServerConfig struct {
	Address        string        `mapstructure:"address" validate:"required"`
	Port           int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ReplyMalformed bool          `mapstructure:"reply_malformed"`
	RejectRequests bool          `mapstructure:"reject_requests"`
	RejectMessage  string        `mapstructure:"reject_message"`
	PeerTimeout    time.Duration `mapstructure:"peer_timeout" validate:"gt=0"`
}

type ClientConfig struct {
	Mode    string        `mapstructure:"mode" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// Options are sent verbatim with every request, e.g. blksize: 1428.
	Options map[string]any `mapstructure:"options"`
}

var validate = validator.New()

// Load reads path (if not empty), applies TFTP_* environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TFTP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are missing from the file.
func setDefaults(v *viper.Viper) {
	srv := server.NewDefaultOptions()
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("server.address", srv.Address)
	v.SetDefault("server.port", srv.Port)
	v.SetDefault("server.reply_malformed", srv.ReplyMalformed)
	v.SetDefault("server.reject_requests", srv.RejectRequests)
	v.SetDefault("server.reject_message", srv.RejectMessage)
	v.SetDefault("server.peer_timeout", srv.PeerTimeout)
	v.SetDefault("client.mode", "octet")
	v.SetDefault("client.timeout", client.DefaultTimeout)
	v.SetDefault("secret_key", "")
}

// ApplyDefaults fills zero values and normalises case.
func ApplyDefaults(cfg *Config) {
	srv := server.NewDefaultOptions()

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = srv.Address
	}
	if cfg.Server.PeerTimeout == 0 {
		cfg.Server.PeerTimeout = srv.PeerTimeout
	}
	if cfg.Client.Mode == "" {
		cfg.Client.Mode = "octet"
	}
	if cfg.Client.Timeout == 0 {
		cfg.Client.Timeout = client.DefaultTimeout
	}
}

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	if strings.IndexByte(cfg.Client.Mode, 0) >= 0 {
		return fmt.Errorf("client.mode: %w", common.ErrEmbeddedNull)
	}
	if strings.IndexByte(cfg.Server.RejectMessage, 0) >= 0 {
		return fmt.Errorf("server.reject_message: %w", common.ErrEmbeddedNull)
	}
	if _, err := cfg.RequestOptions(); err != nil {
		return err
	}
	return nil
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

// Key decodes SecretKey, nil when no key is configured.
func (cfg *Config) Key() (*[32]byte, error) {
	if cfg.SecretKey == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("secret_key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("secret_key: need 32 bytes, have %d", len(raw))
	}
	key := [32]byte(raw)
	return &key, nil
}

// RequestOptions converts the client option map to an option table sorted by
// name. Numbers and booleans are turned into their decimal text.
func (cfg *Config) RequestOptions() (common.Options, error) {
	values := make(map[string]string, len(cfg.Client.Options))
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &values,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(cfg.Client.Options); err != nil {
		return nil, fmt.Errorf("client.options: %w", err)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var opts common.Options
	for _, name := range names {
		opts.Upsert(name, values[name])
	}
	if err := common.Validate(common.NewOptionAck(opts...)); err != nil {
		return nil, fmt.Errorf("client.options: %w", err)
	}
	return opts, nil
}

func (cfg *Config) ServerOptions() (func(*server.Options), error) {
	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}
	return func(o *server.Options) {
		o.Address = cfg.Server.Address
		o.Port = cfg.Server.Port
		o.ReplyMalformed = cfg.Server.ReplyMalformed
		o.RejectRequests = cfg.Server.RejectRequests
		o.RejectMessage = cfg.Server.RejectMessage
		o.PeerTimeout = cfg.Server.PeerTimeout
		o.Key = key
	}, nil
}

func (cfg *Config) ClientOptions() (func(*client.Options), error) {
	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}
	return func(o *client.Options) {
		o.Timeout = cfg.Client.Timeout
		o.Key = key
	}, nil
}

// ConfigureLogging applies the logging section to the global logrus logger.
func ConfigureLogging(cfg LoggingConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{
			ForceColors: true,
		})
	}
	log.SetOutput(os.Stderr)
	return nil
}
