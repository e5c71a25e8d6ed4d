// Package config loads the sagraph settings from sagraph.yaml, SAGRAPH_*
// environment variables and built-in defaults, in falling precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"sagraph/graph"
	"sagraph/graphsupport"
)

// EnvPrefix prefixes every environment override, e.g. SAGRAPH_LOG_LEVEL.
const EnvPrefix = "SAGRAPH"

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Export    ExportConfig    `mapstructure:"export"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	Load      LoadConfig      `mapstructure:"load"`
	Server    ServerConfig    `mapstructure:"server"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type ExportConfig struct {
	Separator   string   `mapstructure:"separator" validate:"len=1"`
	DecimalMark string   `mapstructure:"decimal_mark" validate:"len=1"`
	NodeColumns []string `mapstructure:"node_columns"`
}

type RulesConfig struct {
	// File is a YAML rule set; empty selects the built-in compiler rules.
	File string `mapstructure:"file"`
}

type AggregateConfig struct {
	Passes []PassConfig `mapstructure:"passes" validate:"dive"`
}

// PassConfig is one cumulative sum pass.
type PassConfig struct {
	Edge          string   `mapstructure:"edge" validate:"required"`
	Forward       bool     `mapstructure:"forward"`
	Metrics       []string `mapstructure:"metrics"`
	InputContext  string   `mapstructure:"input_context"`
	OutputContext string   `mapstructure:"output_context"`
}

type LoadConfig struct {
	SkipTests     bool     `mapstructure:"skip_tests"`
	SkipGenerated bool     `mapstructure:"skip_generated"`
	Exclude       []string `mapstructure:"exclude"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	DB   string `mapstructure:"db"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("export.separator", ";")
	v.SetDefault("export.decimal_mark", ",")
	v.SetDefault("rules.file", "")
	v.SetDefault("aggregate.passes", []map[string]any{
		{
			"edge":           "Contains",
			"metrics":        []string{"LOC", "McCC", "NUMPAR"},
			"output_context": graphsupport.ContextCumulative,
		},
		{
			"edge":           "Contains",
			"input_context":  graphsupport.ContextWarningSum,
			"output_context": graphsupport.ContextWarningSum + "." + graphsupport.ContextCumulative,
		},
	})
	v.SetDefault("load.skip_tests", true)
	v.SetDefault("load.skip_generated", true)
	v.SetDefault("load.exclude", []string{"vendor/", "testdata/"})
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.db", "sagraph.db")
}

// Load reads the configuration. An explicit path must exist; without one,
// sagraph.yaml is looked up in the working directory and may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sagraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ExportOptions returns the XML and CSV export settings.
func (c *Config) ExportOptions() graph.ExportOptions {
	return graph.ExportOptions{
		Separator:   []rune(c.Export.Separator)[0],
		DecimalMark: []rune(c.Export.DecimalMark)[0],
		NodeColumns: c.Export.NodeColumns,
	}
}

// SumPasses returns the configured cumulative sum passes in order.
func (c *Config) SumPasses() []graphsupport.SumPass {
	out := make([]graphsupport.SumPass, 0, len(c.Aggregate.Passes))
	for _, p := range c.Aggregate.Passes {
		out = append(out, graphsupport.SumPass{
			EdgeType:      p.Edge,
			Forward:       p.Forward,
			Metrics:       p.Metrics,
			InputContext:  p.InputContext,
			OutputContext: p.OutputContext,
		})
	}
	return out
}
