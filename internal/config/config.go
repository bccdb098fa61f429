package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/promedmap/internal/utils"
)

// EnvPrefix prefixes environment overrides, e.g. PROMEDMAP_LISTEN_ADDR.
const EnvPrefix = "PROMEDMAP"

// Global configuration structure.
type Global struct {
	// Inputs
	TrackerPath   string `mapstructure:"tracker_path" yaml:"tracker_path"`
	ColoursPath   string `mapstructure:"colours_path" yaml:"colours_path"`
	UpdateColours bool   `mapstructure:"update_colours" yaml:"update_colours"`
	SheetName     string `mapstructure:"sheet_name" yaml:"sheet_name"`
	SheetIndex    int    `mapstructure:"sheet_index" yaml:"sheet_index"`
	MaxRows       int    `mapstructure:"max_rows" yaml:"max_rows"`

	// Filtering
	FilterableColumns  []string `mapstructure:"filterable_columns" yaml:"filterable_columns"`
	CategoricalColumns []string `mapstructure:"categorical_columns" yaml:"categorical_columns"`

	// Page
	PageTitle string `mapstructure:"page_title" yaml:"page_title"`
	MapStyle  string `mapstructure:"map_style" yaml:"map_style"`

	// HTTP server
	ListenAddr      string `mapstructure:"listen_addr" yaml:"listen_addr"`
	ReadTimeoutSec  int    `mapstructure:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `mapstructure:"write_timeout_sec" yaml:"write_timeout_sec"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// DefaultFilterableColumns are offered in the "Filter dataframe on" control.
var DefaultFilterableColumns = []string{"Country", "Disease name", "Pathogen type", "Affected species"}

// DefaultCategoricalColumns are the tracker's text columns.
var DefaultCategoricalColumns = []string{
	"Region", "State", "Country", "Disease name", "Pathogen type", "Causal species", "Affected species",
}

// Dir returns ~/.promedmap.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home dir")
	}
	return filepath.Join(home, ".promedmap"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.promedmap/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal yaml")
	}
	return errors.Wrap(utils.SafeWriteFile(path, b), "write config")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tracker_path", "tracker.xlsx")
	v.SetDefault("colours_path", "colours.csv")
	v.SetDefault("update_colours", false)
	v.SetDefault("sheet_name", "")
	v.SetDefault("sheet_index", 1)
	v.SetDefault("max_rows", 0)
	v.SetDefault("filterable_columns", DefaultFilterableColumns)
	v.SetDefault("categorical_columns", DefaultCategoricalColumns)
	v.SetDefault("page_title", "Mapping ProMED Alerts")
	v.SetDefault("map_style", "light")
	v.SetDefault("listen_addr", ":8501")
	v.SetDefault("read_timeout_sec", 15)
	v.SetDefault("write_timeout_sec", 30)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	for _, p := range []*string{&c.TrackerPath, &c.ColoursPath} {
		expanded, err := utils.ExpandHome(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}
	return &c, nil
}

// Keys lists the settable configuration keys in display order.
func Keys() []string {
	return []string{
		"tracker_path", "colours_path", "update_colours", "sheet_name", "sheet_index", "max_rows",
		"filterable_columns", "categorical_columns", "page_title", "map_style",
		"listen_addr", "read_timeout_sec", "write_timeout_sec", "log_level", "log_format",
	}
}

// Set assigns one key from its string form. List keys take comma-separated
// values.
func (c *Global) Set(key, val string) error {
	switch key {
	case "tracker_path":
		c.TrackerPath = val
	case "colours_path":
		c.ColoursPath = val
	case "update_colours":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return errors.Errorf("invalid bool for update_colours: %v", val)
		}
		c.UpdateColours = b
	case "sheet_name":
		c.SheetName = val
	case "sheet_index", "max_rows", "read_timeout_sec", "write_timeout_sec":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return errors.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "sheet_index":
			c.SheetIndex = i
		case "max_rows":
			c.MaxRows = i
		case "read_timeout_sec":
			c.ReadTimeoutSec = i
		case "write_timeout_sec":
			c.WriteTimeoutSec = i
		}
	case "filterable_columns":
		c.FilterableColumns = splitList(val)
	case "categorical_columns":
		c.CategoricalColumns = splitList(val)
	case "page_title":
		c.PageTitle = val
	case "map_style":
		switch val {
		case "light", "dark", "road", "satellite":
			c.MapStyle = val
		default:
			return errors.Errorf("invalid map_style: %s (use light, dark, road or satellite)", val)
		}
	case "listen_addr":
		c.ListenAddr = val
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		switch strings.ToLower(val) {
		case "text", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return errors.Errorf("invalid log_format: %s (use text or json)", val)
		}
	default:
		return errors.Errorf("unknown key: %s", key)
	}
	return nil
}

func splitList(val string) []string {
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
