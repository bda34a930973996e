package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"onebrc/aggregator"
	"onebrc/constants"
	"onebrc/hashing"
	"onebrc/ingest"
	"onebrc/ring"
	"onebrc/router"
	"onebrc/table"
	"onebrc/utils"
)

// EnvPrefix namespaces environment overrides: ONEBRC_TABLE_CAPACITY etc.
const EnvPrefix = "ONEBRC"

type Config struct {
	Log    LogS    `mapstructure:"log"`
	Table  TableS  `mapstructure:"table"`
	Ingest IngestS `mapstructure:"ingest"`
	Shard  ShardS  `mapstructure:"shard"`
	Output OutputS `mapstructure:"output"`
	Gen    GenS    `mapstructure:"gen"`
}

type LogS struct {
	Level string `mapstructure:"level"`
}

type TableS struct {
	Capacity    int    `mapstructure:"capacity"`
	Strategy    string `mapstructure:"strategy"`
	Policy      string `mapstructure:"policy"`
	Arena       bool   `mapstructure:"arena"`
	MaxKeyBytes int    `mapstructure:"max_key_bytes"`
}

type IngestS struct {
	Skip       int    `mapstructure:"skip"`
	Delimiter  string `mapstructure:"delimiter"`
	Saturation string `mapstructure:"saturation"` // drop | stop
}

// ShardS enables the router when Count > 0.
type ShardS struct {
	Count     int  `mapstructure:"count"`
	Pin       bool `mapstructure:"pin"`
	FirstCore int  `mapstructure:"first_core"`
	BatchRows int  `mapstructure:"batch_rows"`
	RingSize  int  `mapstructure:"ring_size"`
}

type OutputS struct {
	Format string `mapstructure:"format"` // text | json
	Sorted bool   `mapstructure:"sorted"`
	SQLite string `mapstructure:"sqlite"` // optional export path
	Digest bool   `mapstructure:"digest"`
}

type GenS struct {
	Rows     int     `mapstructure:"rows"`
	StdDev   float64 `mapstructure:"stddev"`
	Seed     uint64  `mapstructure:"seed"`
	Workers  int     `mapstructure:"workers"`
	Stations string  `mapstructure:"stations"` // optional `name;mean` file
	Header   bool    `mapstructure:"header"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("table.capacity", constants.DefaultCapacity)
	v.SetDefault("table.strategy", constants.DefaultStrategy)
	v.SetDefault("table.policy", table.IndexMask.String())
	v.SetDefault("table.arena", true)
	v.SetDefault("table.max_key_bytes", constants.MaxKeyBytes)

	v.SetDefault("ingest.skip", constants.DefaultHeaderLines)
	v.SetDefault("ingest.delimiter", string(rune(constants.Delimiter)))
	v.SetDefault("ingest.saturation", ingest.Drop.String())

	v.SetDefault("shard.count", 0)
	v.SetDefault("shard.pin", false)
	v.SetDefault("shard.first_core", 0)
	v.SetDefault("shard.batch_rows", constants.BatchRows)
	v.SetDefault("shard.ring_size", constants.RingSize)

	v.SetDefault("output.format", "text")
	v.SetDefault("output.sorted", true)
	v.SetDefault("output.sqlite", "")
	v.SetDefault("output.digest", false)

	v.SetDefault("gen.rows", 1_000_000)
	v.SetDefault("gen.stddev", constants.DefaultStdDev)
	v.SetDefault("gen.seed", 1)
	v.SetDefault("gen.workers", 0)
	v.SetDefault("gen.stations", "")
	v.SetDefault("gen.header", false)
}

// Load layers defaults, the optional file at path, ONEBRC_* environment
// variables and overrides (dotted keys, e.g. "table.capacity"), in that
// order, then validates the result.
func Load(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	for k, val := range overrides {
		v.Set(k, val)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects every setting that would fail later at construction.
// Errors wrap table.ErrInvalidArgument.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("config: %w: "+format, append([]any{table.ErrInvalidArgument}, args...)...)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return bad("log.level %q", c.Log.Level)
	}
	if c.Table.Capacity <= 0 {
		return bad("table.capacity %d", c.Table.Capacity)
	}
	if _, err := hashing.ByName(c.Table.Strategy); err != nil {
		return bad("table.strategy %q (want one of %s)", c.Table.Strategy, strings.Join(hashing.Names(), ", "))
	}
	p, err := table.ParsePolicy(c.Table.Policy)
	if err != nil {
		return bad("table.policy %q", c.Table.Policy)
	}
	if p == table.IndexMask && !utils.IsPow2(uint64(c.Table.Capacity)) {
		return bad("table.capacity %d must be a power of two under the mask policy", c.Table.Capacity)
	}
	if c.Table.MaxKeyBytes <= 0 {
		return bad("table.max_key_bytes %d", c.Table.MaxKeyBytes)
	}

	if c.Ingest.Skip < 0 {
		return bad("ingest.skip %d", c.Ingest.Skip)
	}
	if len(c.Ingest.Delimiter) != 1 || c.Ingest.Delimiter[0] == '\n' || c.Ingest.Delimiter[0] == '\r' {
		return bad("ingest.delimiter %q must be one byte other than CR/LF", c.Ingest.Delimiter)
	}
	if _, err := ingest.ParseSaturationPolicy(c.Ingest.Saturation); err != nil {
		return bad("ingest.saturation %q", c.Ingest.Saturation)
	}

	if c.Shard.Count < 0 || c.Shard.Count > constants.MaxShards ||
		(c.Shard.Count > 0 && !utils.IsPow2(uint64(c.Shard.Count))) {
		return bad("shard.count %d must be 0 or a power of two up to %d", c.Shard.Count, constants.MaxShards)
	}
	if c.Shard.BatchRows <= 0 {
		return bad("shard.batch_rows %d", c.Shard.BatchRows)
	}
	if c.Shard.RingSize < ring.MinSize || !utils.IsPow2(uint64(c.Shard.RingSize)) {
		return bad("shard.ring_size %d", c.Shard.RingSize)
	}
	if c.Shard.FirstCore < 0 {
		return bad("shard.first_core %d", c.Shard.FirstCore)
	}

	switch c.Output.Format {
	case "text", "json":
	default:
		return bad("output.format %q", c.Output.Format)
	}

	if c.Gen.Rows <= 0 || c.Gen.Rows > constants.MaxRows {
		return bad("gen.rows %d", c.Gen.Rows)
	}
	if c.Gen.StdDev < 0 {
		return bad("gen.stddev %v", c.Gen.StdDev)
	}
	if c.Gen.Workers < 0 {
		return bad("gen.workers %d", c.Gen.Workers)
	}
	return nil
}

// AggregatorConfig resolves the table section. Call after Validate.
func (c *Config) AggregatorConfig() (aggregator.Config, error) {
	s, err := hashing.ByName(c.Table.Strategy)
	if err != nil {
		return aggregator.Config{}, err
	}
	p, err := table.ParsePolicy(c.Table.Policy)
	if err != nil {
		return aggregator.Config{}, err
	}
	return aggregator.Config{
		Capacity:    c.Table.Capacity,
		Strategy:    s,
		Policy:      p,
		Arena:       c.Table.Arena,
		MaxKeyBytes: c.Table.MaxKeyBytes,
	}, nil
}

// IngestOptions resolves the ingest section. Call after Validate.
func (c *Config) IngestOptions() ingest.Options {
	sat, _ := ingest.ParseSaturationPolicy(c.Ingest.Saturation)
	return ingest.Options{
		Delimiter:  c.Ingest.Delimiter[0],
		Skip:       c.Ingest.Skip,
		Saturation: sat,
	}
}

// RouterOptions resolves the shard section.
func (c *Config) RouterOptions() router.Options {
	return router.Options{
		RingSize:  c.Shard.RingSize,
		BatchRows: c.Shard.BatchRows,
		Pin:       c.Shard.Pin,
		FirstCore: c.Shard.FirstCore,
	}
}
