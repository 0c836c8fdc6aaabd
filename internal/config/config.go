package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// AnalysisConfig configures the service-area analysis run.
type AnalysisConfig struct {
	StoresPath       string     `yaml:"stores_path" mapstructure:"stores_path"`
	BoundariesPath   string     `yaml:"boundaries_path" mapstructure:"boundaries_path"`
	OutputPath       string     `yaml:"output_path" mapstructure:"output_path"`
	Region           string     `yaml:"region" mapstructure:"region"`
	ChainPrefixes    []string   `yaml:"chain_prefixes" mapstructure:"chain_prefixes"`
	ExcludeSubstring string     `yaml:"exclude_substring" mapstructure:"exclude_substring"`
	SourceSRID       int        `yaml:"source_srid" mapstructure:"source_srid"`
	TargetSRID       int        `yaml:"target_srid" mapstructure:"target_srid"`
	TopN             int        `yaml:"top_n" mapstructure:"top_n"`
	JoinKey          string     `yaml:"join_key" mapstructure:"join_key"`
	Workers          int        `yaml:"workers" mapstructure:"workers"`
	LenientGeometry  bool       `yaml:"lenient_geometry" mapstructure:"lenient_geometry"`
	PlotsDir         string     `yaml:"plots_dir" mapstructure:"plots_dir"`
	ReportXLSX       string     `yaml:"report_xlsx" mapstructure:"report_xlsx"`
	Layers           LayerNames `yaml:"layers" mapstructure:"layers"`
}

// LayerNames maps boundary roles to layer names inside the boundary package.
type LayerNames struct {
	County string `yaml:"county" mapstructure:"county"`
	City   string `yaml:"city" mapstructure:"city"`
	Roads  string `yaml:"roads" mapstructure:"roads"`
	Tracts string `yaml:"tracts" mapstructure:"tracts"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultChainPrefixes lists the large grocery and general merchandise chains
// counted as qualifying stores.
var DefaultChainPrefixes = []string{
	"ALDI",
	"BJS WHOLESALE",
	"COSTCO",
	"PRICE CHOPPER",
	"TARGET",
	"TOPS",
	"TRADER JOES",
	"WAL-MART",
	"WALMART",
	"WEGMANS",
}

// Validate checks the values the pipeline cannot run without.
func (c AnalysisConfig) Validate() error {
	switch {
	case c.StoresPath == "":
		return eris.New("config: analysis.stores_path is required")
	case c.BoundariesPath == "":
		return eris.New("config: analysis.boundaries_path is required")
	case c.OutputPath == "":
		return eris.New("config: analysis.output_path is required")
	case c.Region == "":
		return eris.New("config: analysis.region is required")
	case len(c.ChainPrefixes) == 0:
		return eris.New("config: analysis.chain_prefixes must not be empty")
	case c.JoinKey == "":
		return eris.New("config: analysis.join_key is required")
	case c.TopN < 0:
		return eris.Errorf("config: analysis.top_n must be >= 0, got %d", c.TopN)
	}
	return nil
}

// Load reads configuration from file and environment. An empty path searches
// the working directory for config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("SERVICEAREA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("analysis.stores_path", "Retail_Food_Stores.csv")
	v.SetDefault("analysis.boundaries_path", "demo.gpkg")
	v.SetDefault("analysis.output_path", "demo-output.gpkg")
	v.SetDefault("analysis.region", "Onondaga")
	v.SetDefault("analysis.chain_prefixes", DefaultChainPrefixes)
	v.SetDefault("analysis.exclude_substring", "XPRESS")
	v.SetDefault("analysis.source_srid", 4326)
	v.SetDefault("analysis.target_srid", 26918)
	v.SetDefault("analysis.top_n", 10)
	v.SetDefault("analysis.join_key", "GEOID")
	v.SetDefault("analysis.workers", 0)
	v.SetDefault("analysis.lenient_geometry", false)
	v.SetDefault("analysis.plots_dir", ".")
	v.SetDefault("analysis.report_xlsx", "")
	v.SetDefault("analysis.layers.county", "county")
	v.SetDefault("analysis.layers.city", "city")
	v.SetDefault("analysis.layers.roads", "roads")
	v.SetDefault("analysis.layers.tracts", "tracts")

	// Read config file (optional unless explicitly named)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
