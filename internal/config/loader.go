package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rpattn/txgraph/internal/db"
	"github.com/rpattn/txgraph/internal/domain"
	"github.com/rpattn/txgraph/pkg/validator"

	playground "github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TXGRAPH_OUTPUT_ROOT.
const EnvPrefix = "TXGRAPH"

// Load reads the configuration from configPath, which is either a directory
// holding config.yaml or the path of a config file. Environment variables
// override file values.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if info, err := os.Stat(configPath); err == nil && !info.IsDir() {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("output_root", "output")
	v.SetDefault("chunk_size", domain.DefaultChunkSize)
	v.SetDefault("head", 0)
	v.SetDefault("source.kind", SourceFile)
	v.SetDefault("source.path", "")
	v.SetDefault("source.query", "")
	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.prefix", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, domain.NewConfigurationError("", "", err, "no config.yaml in %s", configPath)
		}
		return nil, &domain.IOError{Op: "read config", Path: configPath, Err: err}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, domain.NewConfigurationError("", "", err, "decode configuration")
	}
	cfg.Database = LoadDBConfig(v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDBConfig starts from db.DefaultConfig and applies the database section
// and DB_* environment variables.
func LoadDBConfig(v *viper.Viper) db.Config {
	cfg := db.DefaultConfig()

	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.dbname", "DB_NAME")
	_ = v.BindEnv("database.sslmode", "DB_SSLMODE")

	if v.IsSet("database.host") {
		cfg.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.SSLMode = v.GetString("database.sslmode")
	}

	return cfg
}

// Validate checks the document shape. Semantic checks happen in Plan.
func (c *Config) Validate() error {
	v, err := validator.New(rules...)
	if err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return domain.NewConfigurationError("", "", err, "")
	}
	return nil
}

var rules = []validator.Rule{
	{
		Tag:     "operation",
		Message: "{0} has unknown operation {1}",
		Func: func(fl playground.FieldLevel) bool {
			_, err := domain.ParseOperationKind(fl.Field().String())
			return err == nil
		},
	},
	{
		Tag:     "target_system",
		Message: "{0} has unknown target system {1}",
		Func: func(fl playground.FieldLevel) bool {
			switch domain.TargetSystem(strings.TrimSpace(fl.Field().String())) {
			case domain.TargetRedis, domain.TargetArango:
				return true
			}
			return false
		},
	},
	{
		Tag:     "file_format",
		Message: "{0} has unknown file format {1}",
		Func: func(fl playground.FieldLevel) bool {
			switch domain.FileFormat(strings.ToLower(fl.Field().String())) {
			case domain.FormatCSV, domain.FormatJSON:
				return true
			}
			return false
		},
	},
	{
		Tag:     "field_type",
		Message: "{0} has unknown column type {1}",
		Func: func(fl playground.FieldLevel) bool {
			_, err := parseFieldType(fl.Field().String())
			return err == nil
		},
	},
}

func parseFieldType(value string) (domain.FieldType, error) {
	switch t := domain.FieldType(strings.ToLower(strings.TrimSpace(value))); t {
	case domain.FieldTypeString, domain.FieldTypeInteger, domain.FieldTypeFloat, domain.FieldTypeBoolean, domain.FieldTypeDecimal:
		return t, nil
	default:
		return "", fmt.Errorf("unknown column type %q", value)
	}
}
