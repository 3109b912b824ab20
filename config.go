package velocilog

import (
	"strings"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/viper"
)

const (
	minRingSize         = 1024
	defaultRingSize     = 1 << 20 // 1 MiB, spec.md §3's Logger default.
	defaultArchiveCount = 3
)

// Config holds the pre-Open settings a Logger is configured with —
// ring-buffer size, rotation thresholds, and date-prefix behavior.
// Populate it directly, or load it with FromEnv/FromFile and
// pass it to NewWithConfig, grounded on the
// LoggerConfig/FromEnv/FromYAML/FromFile shape in
// _examples/hyp3rd-hyperlogger's pkg/configloader package.
type Config struct {
	RingBufferSize int64 `mapstructure:"ring_buffer_size"`
	MaxFileSize    int64 `mapstructure:"max_file_size"`
	MaxArchives    int   `mapstructure:"max_archives"`
	IncludeDate    bool  `mapstructure:"include_date"`
	CloseTimeoutMS int64 `mapstructure:"close_timeout_ms"`
}

// defaultConfig mirrors spec.md §3's stated defaults: 1 MiB ring,
// rotation off (MaxFileSize 0 means unbounded) unless the caller sets
// archive settings, include-date on, and a 2-second Close timeout floor
// (spec.md §4.1: "bounded wait ... hard timeout ≥ 2 s").
func defaultConfig() Config {
	return Config{
		RingBufferSize: defaultRingSize,
		MaxFileSize:    0,
		MaxArchives:    defaultArchiveCount,
		IncludeDate:    true,
		CloseTimeoutMS: 2000,
	}
}

// roundedRingSize clamps n to the 1 KiB floor spec.md §4.1 requires and
// rounds up to the next power of two.
func roundedRingSize(n int64) uint64 {
	if n < minRingSize {
		n = minRingSize
	}
	size := uint64(1)
	for size < uint64(n) {
		size <<= 1
	}
	return size
}

// configKeys lists every mapstructure tag Config declares, so FromEnv can
// bind each one individually — AutomaticEnv alone only affects viper.Get,
// not Unmarshal, which only sees keys viper already knows about.
func configKeys() []string {
	return []string{
		"ring_buffer_size",
		"max_file_size",
		"max_archives",
		"include_date",
		"close_timeout_ms",
	}
}

// FromEnv builds a Config from environment variables under prefix
// (e.g. prefix "VELOCILOG" reads VELOCILOG_RING_BUFFER_SIZE, etc.),
// starting from defaultConfig and overriding whichever keys are set.
func FromEnv(prefix string) (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if prefix != "" {
		v.SetEnvPrefix(strings.ToLower(strings.TrimSuffix(prefix, "_")))
	}
	for _, key := range configKeys() {
		if err := v.BindEnv(key); err != nil {
			return Config{}, ewrap.Wrap(err, "velocilog: bind env config key")
		}
	}
	return fromViper(v)
}

// FromFile loads a Config from a YAML/JSON/TOML file at path, the
// format being inferred from its extension by Viper.
func FromFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, ewrap.Wrapf(err, "velocilog: read config file %s", path)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := defaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, ewrap.Wrapf(err, "velocilog: unmarshal config")
	}
	return cfg, nil
}
