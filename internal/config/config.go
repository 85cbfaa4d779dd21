// Package config provides configuration loading for the pulp repository sync job.
//
// Every setting is described once in Options: its viper key, CLI flag,
// environment variable, whether it is required and its default. Values are
// resolved with the usual viper priority: flag, environment, config file,
// default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of the job's own environment variables
const EnvPrefix = "THOTH_PULP_REPOSITORIES_SYNC"

// Option keys
const (
	KeyPulpInstance         = "pulp-instance"
	KeyPulpUsername         = "pulp-username"
	KeyPulpPassword         = "pulp-password"
	KeyDisableIndex         = "disable-index"
	KeyEnableIndex          = "enable-index"
	KeyDatabaseHost         = "database.host"
	KeyDatabasePort         = "database.port"
	KeyDatabaseUser         = "database.user"
	KeyDatabasePassword     = "database.password"
	KeyDatabasePasswordFile = "database.passwordFile"
	KeyDatabaseName         = "database.name"
	KeyDatabaseSSLMode      = "database.sslMode"
	KeyHTTPTimeout          = "http-timeout"
	KeyMetricsPushgateway   = "metrics-pushgateway"
	KeyTracingEndpoint      = "tracing-endpoint"
	KeyConfig               = "config"
)

const (
	defaultDatabaseHost    = "localhost"
	defaultDatabasePort    = 5432
	defaultDatabaseUser    = "postgres"
	defaultDatabaseName    = "postgres"
	defaultDatabaseSSLMode = "require"
	defaultHTTPTimeout     = 30 * time.Second
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// OptionSpec documents a single named configuration option
type OptionSpec struct {
	// Key is the viper key of the option
	Key string
	// Flag is the CLI flag name, empty for environment-only options
	Flag string
	// EnvVar is the environment variable bound to the option, empty for flag-only options
	EnvVar string
	// Usage is the flag help text
	Usage string
	// Required marks options without which the job cannot run
	Required bool
	// Default is the default value; its type selects the flag type
	Default any
}

// Options lists every option understood by the job
var Options = []OptionSpec{
	{
		Key:      KeyPulpInstance,
		Flag:     "pulp-instance",
		EnvVar:   EnvPrefix + "_PULP_INSTANCES",
		Usage:    "A pulp instance host to be checked for new Python package indexes.",
		Required: true,
		Default:  "",
	},
	{
		Key:      KeyPulpUsername,
		Flag:     "pulp-username",
		EnvVar:   EnvPrefix + "_PULP_USERNAME",
		Usage:    "Username used for listing Python package indexes available in pulp-python.",
		Required: true,
		Default:  "",
	},
	{
		Key:      KeyPulpPassword,
		Flag:     "pulp-password",
		EnvVar:   EnvPrefix + "_PULP_PASSWORD",
		Usage:    "Password used for listing Python package indexes available in pulp-python.",
		Required: true,
		Default:  "",
	},
	{
		Key:     KeyDisableIndex,
		Flag:    "disable-index",
		EnvVar:  EnvPrefix + "_DISABLE_INDEX",
		Usage:   "Register new Python package indexes but keep them disabled.",
		Default: false,
	},
	{
		Key:     KeyEnableIndex,
		Flag:    "enable-index",
		Usage:   "Register new Python package indexes as enabled (default).",
		Default: false,
	},
	{
		Key:     KeyDatabaseHost,
		Flag:    "database-host",
		EnvVar:  "KNOWLEDGE_GRAPH_HOST",
		Usage:   "Knowledge graph database host.",
		Default: defaultDatabaseHost,
	},
	{
		Key:     KeyDatabasePort,
		Flag:    "database-port",
		EnvVar:  "KNOWLEDGE_GRAPH_PORT",
		Usage:   "Knowledge graph database port.",
		Default: defaultDatabasePort,
	},
	{
		Key:     KeyDatabaseUser,
		Flag:    "database-user",
		EnvVar:  "KNOWLEDGE_GRAPH_USER",
		Usage:   "Knowledge graph database user.",
		Default: defaultDatabaseUser,
	},
	{
		Key:     KeyDatabasePassword,
		EnvVar:  "KNOWLEDGE_GRAPH_PASSWORD",
		Default: "",
	},
	{
		Key:     KeyDatabasePasswordFile,
		Flag:    "database-password-file",
		EnvVar:  "KNOWLEDGE_GRAPH_PASSWORD_FILE",
		Usage:   "File holding the knowledge graph database password.",
		Default: "",
	},
	{
		Key:     KeyDatabaseName,
		Flag:    "database-name",
		EnvVar:  "KNOWLEDGE_GRAPH_DATABASE",
		Usage:   "Knowledge graph database name.",
		Default: defaultDatabaseName,
	},
	{
		Key:     KeyDatabaseSSLMode,
		Flag:    "database-ssl-mode",
		EnvVar:  "KNOWLEDGE_GRAPH_SSL_MODE",
		Usage:   "Knowledge graph database SSL mode (disable, require, verify-ca, verify-full).",
		Default: defaultDatabaseSSLMode,
	},
	{
		Key:     KeyHTTPTimeout,
		Flag:    "http-timeout",
		EnvVar:  EnvPrefix + "_HTTP_TIMEOUT",
		Usage:   "Timeout of the Pulp distribution listing request.",
		Default: defaultHTTPTimeout,
	},
	{
		Key:     KeyMetricsPushgateway,
		Flag:    "metrics-pushgateway",
		EnvVar:  "PROMETHEUS_PUSHGATEWAY_URL",
		Usage:   "Prometheus Pushgateway URL to push job metrics to (disabled when empty).",
		Default: "",
	},
	{
		Key:     KeyTracingEndpoint,
		Flag:    "tracing-endpoint",
		EnvVar:  "OTEL_EXPORTER_OTLP_ENDPOINT",
		Usage:   "OTLP/HTTP endpoint to export traces to (disabled when empty).",
		Default: "",
	},
	{
		Key:     KeyConfig,
		Flag:    "config",
		EnvVar:  EnvPrefix + "_CONFIG",
		Usage:   "Path to an optional YAML configuration file.",
		Default: "",
	},
}

// Config represents the resolved configuration of one sync run
type Config struct {
	PulpInstance       string
	PulpUsername       string
	PulpPassword       string
	DisableIndex       bool
	HTTPTimeout        time.Duration
	MetricsPushgateway string
	TracingEndpoint    string
	Database           *DatabaseConfig
}

// DatabaseConfig defines knowledge graph database connection settings
type DatabaseConfig struct {
	Host string `validate:"required"`
	Port int    `validate:"min=1,max=65535"`
	User string `validate:"required"`

	// Password is read from the environment; PasswordFile takes precedence
	Password string

	// PasswordFile is the path to a file containing the database password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string

	Name    string `validate:"required"`
	SSLMode string `validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Password (KNOWLEDGE_GRAPH_PASSWORD)
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if d.Password != "" {
		return d.Password, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set KNOWLEDGE_GRAPH_PASSWORD_FILE or KNOWLEDGE_GRAPH_PASSWORD",
	)
}

// GetConnectionString builds a PostgreSQL connection string.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = defaultDatabaseSSLMode
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, password),
		Host:     net.JoinHostPort(d.Host, fmt.Sprintf("%d", d.Port)),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String(), nil
}

// String describes the target database without credentials
func (d *DatabaseConfig) String() string {
	return fmt.Sprintf("%s@%s:%d/%s", d.User, d.Host, d.Port, d.Name)
}

// RegisterFlags registers a flag for every option that has one
func RegisterFlags(flags *pflag.FlagSet) {
	for _, opt := range Options {
		if opt.Flag == "" {
			continue
		}
		switch def := opt.Default.(type) {
		case bool:
			flags.Bool(opt.Flag, def, opt.Usage)
		case int:
			flags.Int(opt.Flag, def, opt.Usage)
		case time.Duration:
			flags.Duration(opt.Flag, def, opt.Usage)
		case string:
			flags.String(opt.Flag, def, usageWithEnv(opt))
		default:
			panic(fmt.Sprintf("unsupported default type %T for option %s", opt.Default, opt.Key))
		}
	}
}

func usageWithEnv(opt OptionSpec) string {
	if opt.EnvVar == "" {
		return opt.Usage
	}
	return fmt.Sprintf("%s [env: %s]", opt.Usage, opt.EnvVar)
}

// BindFlags binds every option to its flag, environment variable and default
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, opt := range Options {
		if opt.Flag == "" {
			continue
		}
		flag := flags.Lookup(opt.Flag)
		if flag == nil {
			return fmt.Errorf("flag --%s is not registered", opt.Flag)
		}
		if err := v.BindPFlag(opt.Key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", opt.Flag, err)
		}
	}
	return bindEnv(v)
}

// bindEnv binds every option to its environment variable and default
func bindEnv(v *viper.Viper) error {
	for _, opt := range Options {
		if opt.EnvVar != "" {
			if err := v.BindEnv(opt.Key, opt.EnvVar); err != nil {
				return fmt.Errorf("failed to bind environment variable %s: %w", opt.EnvVar, err)
			}
		}
		v.SetDefault(opt.Key, opt.Default)
	}
	return nil
}

// Option configures LoadConfig
type Option func(*loaderConfig) error

type loaderConfig struct {
	path  string
	viper *viper.Viper
}

// WithConfigPath merges a YAML file below flags and environment variables
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return nil
		}

		// Resolve symlinks; this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// WithViper uses a viper instance that already has flags and environment bound
func WithViper(v *viper.Viper) Option {
	return func(cfg *loaderConfig) error {
		if v == nil {
			return fmt.Errorf("viper instance is required")
		}
		cfg.viper = v
		return nil
	}
}

// LoadConfig resolves and validates the configuration
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	v := loaderCfg.viper
	if v == nil {
		v = viper.New()
		if err := bindEnv(v); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path != "" {
		if err := mergeConfigFile(v, loaderCfg.path); err != nil {
			return nil, err
		}
	}

	disableIndex, err := toBool(v.Get(KeyDisableIndex))
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", KeyDisableIndex, err)
	}
	enableIndex, err := toBool(v.Get(KeyEnableIndex))
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", KeyEnableIndex, err)
	}
	if enableIndex {
		disableIndex = false
	}

	cfg := &Config{
		PulpInstance:       strings.TrimSpace(v.GetString(KeyPulpInstance)),
		PulpUsername:       v.GetString(KeyPulpUsername),
		PulpPassword:       v.GetString(KeyPulpPassword),
		DisableIndex:       disableIndex,
		HTTPTimeout:        v.GetDuration(KeyHTTPTimeout),
		MetricsPushgateway: v.GetString(KeyMetricsPushgateway),
		TracingEndpoint:    v.GetString(KeyTracingEndpoint),
		Database: &DatabaseConfig{
			Host:         v.GetString(KeyDatabaseHost),
			Port:         v.GetInt(KeyDatabasePort),
			User:         v.GetString(KeyDatabaseUser),
			Password:     v.GetString(KeyDatabasePassword),
			PasswordFile: v.GetString(KeyDatabasePasswordFile),
			Name:         v.GetString(KeyDatabaseName),
			SSLMode:      v.GetString(KeyDatabaseSSLMode),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// mergeConfigFile merges the YAML file into v. Flags and environment
// variables keep precedence over values from the file.
func mergeConfigFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var values map[string]any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := v.MergeConfigMap(values); err != nil {
		return fmt.Errorf("failed to merge config file: %w", err)
	}
	return nil
}

// toBool accepts the boolean spellings used for environment flags
func toBool(value any) (bool, error) {
	switch val := value.(type) {
	case nil:
		return false, nil
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true", "t", "yes", "y", "on":
			return true, nil
		case "0", "false", "f", "no", "n", "off", "":
			return false, nil
		}
		return false, fmt.Errorf("%q is not a valid boolean", val)
	default:
		return false, fmt.Errorf("unsupported boolean value of type %T", value)
	}
}

func (c *Config) validate() error {
	var missing []string
	required := map[string]string{
		KeyPulpInstance: c.PulpInstance,
		KeyPulpUsername: c.PulpUsername,
		KeyPulpPassword: c.PulpPassword,
	}
	for _, opt := range Options {
		if !opt.Required {
			continue
		}
		if required[opt.Key] == "" {
			missing = append(missing, fmt.Sprintf("--%s (%s)", opt.Flag, opt.EnvVar))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required options: %s", strings.Join(missing, ", "))
	}

	if err := validateInstanceHost(c.PulpInstance); err != nil {
		return err
	}

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("%s must not be negative", KeyHTTPTimeout)
	}

	if c.MetricsPushgateway != "" {
		if _, err := url.ParseRequestURI(c.MetricsPushgateway); err != nil {
			return fmt.Errorf("%s must be a valid URL: %w", KeyMetricsPushgateway, err)
		}
	}

	return c.Database.validate()
}

// validateInstanceHost accepts a bare host or host:port
func validateInstanceHost(host string) error {
	if strings.Contains(host, "://") || strings.ContainsAny(host, "/?#@") {
		return fmt.Errorf("%s must be a host without scheme or path, got %q", KeyPulpInstance, host)
	}
	u, err := url.Parse("https://" + host)
	if err != nil {
		return fmt.Errorf("%s is not a valid host: %w", KeyPulpInstance, err)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%s is not a valid host: %q", KeyPulpInstance, host)
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	err := structValidator.Struct(d)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	switch fe := fieldErrs[0]; fe.Field() {
	case "Port":
		return fmt.Errorf("database port must be between 1 and 65535, got %d", d.Port)
	case "SSLMode":
		return fmt.Errorf("unsupported database SSL mode %q", d.SSLMode)
	default:
		return fmt.Errorf("database %s is required", strings.ToLower(fe.Field()))
	}
}
