// Package config loads the supervisor's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/tcs-supervisor/internal/gpio"
	"github.com/sweeney/tcs-supervisor/internal/supervision"
)

// Config is the full configuration file.
type Config struct {
	Train   Train   `yaml:"train"`
	KVB     KVB     `yaml:"kvb"`
	Systems Systems `yaml:"systems"`
	Daemon  Daemon  `yaml:"daemon"`
	GPIO    GPIO    `yaml:"gpio"`
}

// Train describes the consist.
type Train struct {
	ElectroPneumaticBrake bool    `yaml:"electro_pneumatic_brake"`
	HeavyFreight          bool    `yaml:"heavy_freight"`
	LengthM               float64 `yaml:"length_m"`
	MaxSpeedKmh           float64 `yaml:"max_speed_kmh"`
	DecelerationMpS2      float64 `yaml:"deceleration_mps2"`
	BrakingDelayS         float64 `yaml:"braking_delay_s"`
	GravityNpKg           float64 `yaml:"gravity_npkg"`
}

// KVB holds the classic line supervisor settings.
type KVB struct {
	TrainSpeedLimitKmh float64 `yaml:"train_speed_limit_kmh"`
	AlertAnticipationS float64 `yaml:"alert_anticipation_s"`
	Declivity          float64 `yaml:"declivity"`
}

// Systems lists the high-speed systems fitted to the train.
type Systems struct {
	TVM300 bool `yaml:"tvm300"`
	TVM430 bool `yaml:"tvm430"`
	ETCS   bool `yaml:"etcs"`
}

// Daemon holds the run loop and transport settings.
type Daemon struct {
	Cycle      time.Duration `yaml:"cycle"`
	HostURL    string        `yaml:"host_url"`
	Broker     string        `yaml:"broker"`
	ClientID   string        `yaml:"client_id"`
	BufferSize int           `yaml:"buffer_size"`
	Heartbeat  time.Duration `yaml:"heartbeat"`
	HTTPAddr   string        `yaml:"http_addr"`
}

// GPIO selects and wires the hardware cab I/O.
type GPIO struct {
	Enabled bool      `yaml:"enabled"`
	Chip    string    `yaml:"chip"`
	Pins    gpio.Pins `yaml:"pins"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	p := supervision.DefaultTrainParameters()
	return Config{
		Train: Train{
			ElectroPneumaticBrake: p.ElectroPneumaticBrake,
			HeavyFreight:          p.HeavyFreight,
			LengthM:               p.LengthM,
			MaxSpeedKmh:           supervision.ToKpH(p.MaxSpeedLimitMpS),
			DecelerationMpS2:      p.DecelerationMpS2,
			BrakingDelayS:         p.BrakingDelayS,
			GravityNpKg:           p.GravityNpKg,
		},
		KVB: KVB{
			TrainSpeedLimitKmh: supervision.ToKpH(p.ClassicLineSpeedLimitMpS),
			AlertAnticipationS: p.AlertAnticipationS,
			Declivity:          p.Declivity,
		},
		Systems: Systems{TVM300: p.TVM300Present},
		Daemon: Daemon{
			Cycle:      100 * time.Millisecond,
			HostURL:    "ws://127.0.0.1:8765/cab",
			Broker:     "tcp://127.0.0.1:1883",
			ClientID:   "tcs-supervisor",
			BufferSize: 256,
			Heartbeat:  15 * time.Minute,
			HTTPAddr:   ":8080",
		},
		GPIO: GPIO{
			Chip: gpio.DefaultChip,
			Pins: gpio.DefaultPins,
		},
	}
}

// Load reads a YAML file over base. Keys missing from the file keep the
// values they have in base.
func Load[T any](path string, base T) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	out := base
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &out, nil
}

// LoadFile loads a configuration file over the defaults and validates it.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load(path, Default())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the supervisor cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Train.LengthM <= 0 {
		errs = append(errs, fmt.Errorf("train.length_m must be positive, got %v", c.Train.LengthM))
	}
	if c.Train.DecelerationMpS2 <= 0 {
		errs = append(errs, fmt.Errorf("train.deceleration_mps2 must be positive, got %v", c.Train.DecelerationMpS2))
	}
	if c.KVB.TrainSpeedLimitKmh <= 0 {
		errs = append(errs, fmt.Errorf("kvb.train_speed_limit_kmh must be positive, got %v", c.KVB.TrainSpeedLimitKmh))
	}
	if c.Daemon.Cycle <= 0 {
		errs = append(errs, fmt.Errorf("daemon.cycle must be positive, got %v", c.Daemon.Cycle))
	}
	if c.Daemon.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("daemon.heartbeat must not be negative, got %v", c.Daemon.Heartbeat))
	}
	return errors.Join(errs...)
}

// TrainParameters converts the file units into supervision parameters.
func (c Config) TrainParameters() supervision.TrainParameters {
	return supervision.TrainParameters{
		ElectroPneumaticBrake:    c.Train.ElectroPneumaticBrake,
		HeavyFreight:             c.Train.HeavyFreight,
		LengthM:                  c.Train.LengthM,
		MaxSpeedLimitMpS:         supervision.KpH(c.Train.MaxSpeedKmh),
		ClassicLineSpeedLimitMpS: supervision.KpH(c.KVB.TrainSpeedLimitKmh),
		BrakingDelayS:            c.Train.BrakingDelayS,
		DecelerationMpS2:         c.Train.DecelerationMpS2,
		GravityNpKg:              c.Train.GravityNpKg,
		AlertAnticipationS:       c.KVB.AlertAnticipationS,
		Declivity:                c.KVB.Declivity,
		TVM300Present:            c.Systems.TVM300,
		TVM430Present:            c.Systems.TVM430,
		ETCSPresent:              c.Systems.ETCS,
	}
}

// Dump renders the configuration as YAML.
func (c Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}
