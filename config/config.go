// ============================================================================
// RUNTIME CONFIGURATION
// ============================================================================
//
// Config mirrors the compile-time defaults in constants so a deployment can
// override them from a JSON file without rebuilding. Unset fields keep
// their defaults: the file is decoded over Default().
//
// Sources, lowest precedence first:
//   - constants (Default)
//   - JSON file named by SAMPLER_CONFIG (FromEnv) or passed to Load

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/sugawarayuuta/sonnet"

	"dmasampler/bus"
	"dmasampler/constants"
	"dmasampler/notify"
	"dmasampler/spim"
)

var (
	// ErrItems is returned when list_items is not even and positive, or the
	// buffer would exceed the descriptor's count range.
	ErrItems = errors.New("config: list_items must be even and positive")
	// ErrMargin is returned for a negative end_margin.
	ErrMargin = errors.New("config: end_margin must not be negative")
	// ErrPeriod is returned for a trigger period below the minimum.
	ErrPeriod = errors.New("config: trigger_period_us below minimum")
	// ErrItemSize is returned for a non-positive item_size.
	ErrItemSize = errors.New("config: item_size must be positive")
	// ErrBus is returned for a non-positive bus frequency or unknown device.
	ErrBus = errors.New("config: bus frequency_hz must be positive")
	// ErrNotify is returned for an unknown mailbox mode or bad depth.
	ErrNotify = errors.New("config: bad notify section")
	// ErrSink is returned for an unknown sink kind or missing path.
	ErrSink = errors.New("config: bad sink section")
)

// Sink kinds.
const (
	SinkText   = "text"
	SinkJSONL  = "jsonl"
	SinkSQLite = "sqlite"
)

// Bus carries the bus-master settings. Opaque to the acquisition core.
type Bus struct {
	Device      string `json:"device"` // simulated device behind the engine
	FrequencyHz int    `json:"frequency_hz"`
	CSN         int    `json:"csn"`
	SCK         int    `json:"sck"`
	MOSI        int    `json:"mosi"`
	MISO        int    `json:"miso"`
}

// Pins returns the pin assignment in engine form.
func (b Bus) Pins() spim.Pins {
	return spim.Pins{CSN: b.CSN, SCK: b.SCK, MOSI: b.MOSI, MISO: b.MISO}
}

// Notify selects the handler-to-consumer mailbox.
type Notify struct {
	Mode       string `json:"mode"`
	QueueDepth int    `json:"queue_depth"`
}

// Consumer places the consumer loop.
type Consumer struct {
	Core int `json:"core"` // -1 leaves the thread unpinned
}

// Sink selects where per-batch records go.
type Sink struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// Config is the full runtime configuration.
type Config struct {
	ListItems       int      `json:"list_items"`
	EndMargin       int      `json:"end_margin"`
	TriggerPeriodUs int      `json:"trigger_period_us"`
	ItemSize        int      `json:"item_size"`
	Bus             Bus      `json:"bus"`
	Notify          Notify   `json:"notify"`
	Consumer        Consumer `json:"consumer"`
	Sink            Sink     `json:"sink"`
	MetricsAddr     string   `json:"metrics_addr"`
}

// Default returns the bring-up configuration.
func Default() Config {
	return Config{
		ListItems:       constants.ListItems,
		EndMargin:       constants.EndMargin,
		TriggerPeriodUs: constants.TimerReloadUs,
		ItemSize:        constants.ItemSize,
		Bus: Bus{
			Device:      bus.DeviceLoopback,
			FrequencyHz: constants.BusFrequencyHz,
			CSN:         constants.PinCSN,
			SCK:         constants.PinSCK,
			MOSI:        constants.PinMOSI,
			MISO:        constants.PinMISO,
		},
		Notify:   Notify{Mode: notify.ModeCoalesce, QueueDepth: constants.QueueDepth},
		Consumer: Consumer{Core: constants.NoCore},
		Sink:     Sink{Kind: SinkText},
	}
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := sonnet.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the JSON file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// FromEnv loads the file named by SAMPLER_CONFIG, or returns the defaults
// when the variable is unset.
func FromEnv() (Config, error) {
	path := os.Getenv(constants.ConfigEnv)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks every section.
func (c Config) Validate() error {
	switch {
	case c.ListItems <= 0 || c.ListItems%2 != 0:
		return ErrItems
	case c.EndMargin >= 0 && c.ListItems+c.EndMargin > constants.MaxTotalItems:
		return fmt.Errorf("%w: list_items+end_margin above %d", ErrItems, constants.MaxTotalItems)
	case c.EndMargin < 0:
		return ErrMargin
	case c.TriggerPeriodUs < constants.MinTimerReloadUs:
		return ErrPeriod
	case c.ItemSize <= 0:
		return ErrItemSize
	case c.Bus.FrequencyHz <= 0:
		return ErrBus
	}
	if c.Bus.Device != bus.DeviceLoopback && c.Bus.Device != bus.DeviceRegister {
		return fmt.Errorf("%w: device %q", ErrBus, c.Bus.Device)
	}
	switch c.Notify.Mode {
	case notify.ModeCoalesce:
	case notify.ModeQueue:
		if c.Notify.QueueDepth < 2 {
			return fmt.Errorf("%w: queue_depth must be at least 2", ErrNotify)
		}
	default:
		return fmt.Errorf("%w: mode %q", ErrNotify, c.Notify.Mode)
	}
	switch c.Sink.Kind {
	case SinkText:
	case SinkJSONL, SinkSQLite:
		if c.Sink.Path == "" {
			return fmt.Errorf("%w: %s sink needs a path", ErrSink, c.Sink.Kind)
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrSink, c.Sink.Kind)
	}
	return nil
}

// Half returns N/2.
func (c Config) Half() int { return c.ListItems / 2 }

// Total returns N+M.
func (c Config) Total() int { return c.ListItems + c.EndMargin }
