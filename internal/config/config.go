// Package config loads and validates the simulation configuration from
// YAML. Every run is fully described by one Config; the same file and
// seed reproduce the same run exactly.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MarketConfig describes one trading venue.
type MarketConfig struct {
	Type          string  `yaml:"type"`           // "cda" or "call"
	ClearInterval int64   `yaml:"clear_interval"` // ticks between call clears
	ClearRatio    float64 `yaml:"clear_ratio"`    // uniform price placement in [0, 1]
}

// ZIConfig describes the zero-intelligence background trader population.
type ZIConfig struct {
	Count       int     `yaml:"count"`
	ArrivalRate float64 `yaml:"arrival_rate"`
	MaxPosition int64   `yaml:"max_position"`
	PVVar       float64 `yaml:"pv_var"`
	SurplusMin  int64   `yaml:"surplus_min"`
	SurplusMax  int64   `yaml:"surplus_max"`
	Duration    int64   `yaml:"duration"` // order lifetime in ticks, 0 rests
}

// MarketMakerConfig describes the market maker population.
type MarketMakerConfig struct {
	Count       int     `yaml:"count"`
	ArrivalRate float64 `yaml:"arrival_rate"`
	Rungs       int     `yaml:"rungs"`
	RungSize    int64   `yaml:"rung_size"`
	Spread      int64   `yaml:"spread"`
}

// ArbitrageurConfig describes the latency arbitrageur population.
type ArbitrageurConfig struct {
	Count int   `yaml:"count"`
	Alpha int64 `yaml:"alpha"`
}

// Config is the complete description of one simulation run.
type Config struct {
	Run struct {
		Seed     int64 `yaml:"seed"`
		Horizon  int64 `yaml:"horizon"`
		TickSize int64 `yaml:"tick_size"`
	} `yaml:"run"`

	Fundamental struct {
		Mean      int64   `yaml:"mean"`
		Kappa     float64 `yaml:"kappa"`
		ShockVar  float64 `yaml:"shock_var"`
		ShockProb float64 `yaml:"shock_prob"`
	} `yaml:"fundamental"`

	Markets []MarketConfig `yaml:"markets"`

	SIP struct {
		Latency int64 `yaml:"latency"` // -1 for synchronous
	} `yaml:"sip"`

	Agents struct {
		ZI           ZIConfig          `yaml:"zi"`
		MarketMakers MarketMakerConfig `yaml:"market_makers"`
		Arbitrageurs ArbitrageurConfig `yaml:"arbitrageurs"`
	} `yaml:"agents"`

	Output struct {
		DBPath     string `yaml:"db_path"`     // empty disables persistence
		StreamAddr string `yaml:"stream_addr"` // empty disables the live stream
	} `yaml:"output"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Default returns a runnable single-CDA configuration.
func Default() *Config {
	var cfg Config
	cfg.Run.Seed = 1
	cfg.Run.Horizon = 10_000
	cfg.Run.TickSize = 1
	cfg.Fundamental.Mean = 100_000
	cfg.Fundamental.Kappa = 0.05
	cfg.Fundamental.ShockVar = 1e6
	cfg.Fundamental.ShockProb = 0.2
	cfg.Markets = []MarketConfig{{Type: "cda"}}
	cfg.SIP.Latency = 100
	cfg.Agents.ZI = ZIConfig{
		Count: 25, ArrivalRate: 0.005, MaxPosition: 10,
		PVVar: 1e8, SurplusMin: 0, SurplusMax: 1000,
	}
	cfg.Logging.Level = "info"
	return &cfg
}

// LoadConfig reads and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Run.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %d", c.Run.Horizon)
	}
	if c.Run.TickSize <= 0 {
		return fmt.Errorf("tick size must be positive, got %d", c.Run.TickSize)
	}

	if c.Fundamental.Kappa < 0 || c.Fundamental.Kappa > 1 {
		return fmt.Errorf("fundamental kappa %v outside [0, 1]", c.Fundamental.Kappa)
	}
	if c.Fundamental.ShockProb < 0 || c.Fundamental.ShockProb > 1 {
		return fmt.Errorf("fundamental shock probability %v outside [0, 1]", c.Fundamental.ShockProb)
	}
	if c.Fundamental.ShockVar < 0 {
		return fmt.Errorf("fundamental shock variance must be nonnegative")
	}

	if len(c.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}
	for i, m := range c.Markets {
		switch m.Type {
		case "cda":
		case "call":
			if m.ClearInterval <= 0 {
				return fmt.Errorf("market %d: call market needs a positive clear_interval", i)
			}
			if m.ClearRatio < 0 || m.ClearRatio > 1 {
				return fmt.Errorf("market %d: clear_ratio %v outside [0, 1]", i, m.ClearRatio)
			}
		default:
			return fmt.Errorf("market %d: unknown type %q", i, m.Type)
		}
	}

	if c.SIP.Latency < -1 {
		return fmt.Errorf("sip latency must be -1 (synchronous) or nonnegative")
	}

	zi := c.Agents.ZI
	if zi.Count > 0 {
		if zi.ArrivalRate <= 0 {
			return fmt.Errorf("zi arrival_rate must be positive")
		}
		if zi.MaxPosition <= 0 {
			return fmt.Errorf("zi max_position must be positive")
		}
		if zi.SurplusMin < 0 || zi.SurplusMax < zi.SurplusMin {
			return fmt.Errorf("zi surplus range must satisfy 0 <= min <= max")
		}
		if zi.Duration < 0 {
			return fmt.Errorf("zi duration must be nonnegative")
		}
	}

	mm := c.Agents.MarketMakers
	if mm.Count > 0 {
		if mm.ArrivalRate <= 0 {
			return fmt.Errorf("market maker arrival_rate must be positive")
		}
		if mm.Rungs <= 0 || mm.RungSize <= 0 {
			return fmt.Errorf("market maker ladder needs positive rungs and rung_size")
		}
		if mm.Spread < 2 {
			return fmt.Errorf("market maker spread must be at least 2 ticks")
		}
	}

	if c.Agents.Arbitrageurs.Count > 0 && c.Agents.Arbitrageurs.Alpha < 0 {
		return fmt.Errorf("arbitrageur alpha must be nonnegative")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}
	return nil
}
