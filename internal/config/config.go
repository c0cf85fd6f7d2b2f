// Package config loads the YAML configuration file this module runs from,
// following the same global mutex-guarded accessor pattern the rest of this
// pack uses for its own settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	cp "github.com/otiai10/copy"
	"gopkg.in/yaml.v3"
)

var (
	cfgMux sync.RWMutex
	active *Config
)

// Thresholds hold the confidence floors used by the detector facade.
type Thresholds struct {
	// Classifier is the minimum classifier confidence in [0,1].
	Classifier float64 `yaml:"classifierThreshold"`
	// Text is the minimum text confidence on Tesseract's native 0-100 scale.
	Text float64 `yaml:"textThreshold"`
}

// Intervals hold the detector polling cadence per §6 and §9's supplemented
// per-phase interval feature.
type Intervals struct {
	Classifier time.Duration `yaml:"classifierInterval"`
	Text       time.Duration `yaml:"textInterval"`
}

// Timeouts hold the deadline values §4.6/§4.8 reference by name.
type Timeouts struct {
	Initial     time.Duration `yaml:"initialTimeout"`
	WaitingHook time.Duration `yaml:"state1Timeout"`
	StatePause  time.Duration `yaml:"state3PauseTime"`
	SuccessWait time.Duration `yaml:"successWaitTime"`
	CastHold    time.Duration `yaml:"castHoldTime"`
	KeyPress    time.Duration `yaml:"keyPressTime"`
}

// ClickDelay bounds the randomized fast-click interval.
type ClickDelay struct {
	Min time.Duration `yaml:"clickDelayMin"`
	Max time.Duration `yaml:"clickDelayMax"`
}

// Hotkeys names the three global chords §4.3 dispatches.
type Hotkeys struct {
	Start         string `yaml:"start"`
	Stop          string `yaml:"stop"`
	EmergencyStop string `yaml:"emergencyStop"`
}

// Notify configures the optional observational notification sinks (§6).
type Notify struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// DiscordConfig configures the Discord notification sink.
type DiscordConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channelId"`
	Filter    string `yaml:"filter"`
}

// TelegramConfig configures the Telegram notification sink.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chatId"`
	Filter  string `yaml:"filter"`
}

// Tunnel configures the optional ngrok exposure of the status HTTP server.
type Tunnel struct {
	Enabled   bool   `yaml:"enabled"`
	Authtoken string `yaml:"authtoken"`
	Domain    string `yaml:"domain"`
}

// StatusServer configures the optional HTTP+WebSocket status fanout.
type StatusServer struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config is the complete set of tunables §6 names, plus the supplemented
// features from §9.
type Config struct {
	Thresholds     Thresholds   `yaml:"thresholds"`
	Intervals      Intervals    `yaml:"intervals"`
	Timeouts       Timeouts     `yaml:"timeouts"`
	ClickDelay     ClickDelay   `yaml:"clickDelay"`
	Hotkeys        Hotkeys      `yaml:"hotkeys"`
	Notify         Notify       `yaml:"notify"`
	Tunnel         Tunnel       `yaml:"tunnel"`
	StatusServer   StatusServer `yaml:"statusServer"`
	// SuccessMaxAttempts bounds the SUCCESS phase's inner confirmation loop
	// (§4.6, §8's "SUCCESS is bounded" property).
	SuccessMaxAttempts int `yaml:"successMaxAttempts"`
	// FailsafeEnabled toggles the top-left-corner emergency-stop watcher
	// (§9's supplemented failsafe feature).
	FailsafeEnabled bool `yaml:"failsafeEnabled"`
}

// Default returns the configuration defaults named throughout §6 and §9.
func Default() Config {
	return Config{
		Thresholds: Thresholds{Classifier: 0.5, Text: 60},
		Intervals: Intervals{
			Classifier: 100 * time.Millisecond,
			Text:       200 * time.Millisecond,
		},
		Timeouts: Timeouts{
			Initial:     180 * time.Second,
			WaitingHook: 3 * time.Second,
			StatePause:  time.Second,
			SuccessWait: 1500 * time.Millisecond,
			CastHold:    2 * time.Second,
			KeyPress:    time.Second,
		},
		ClickDelay: ClickDelay{
			Min: 54 * time.Millisecond,
			Max: 127 * time.Millisecond,
		},
		Hotkeys:            Hotkeys{Start: "f6", Stop: "f7", EmergencyStop: "f8"},
		SuccessMaxAttempts: 20,
		FailsafeEnabled:    true,
	}
}

// Load reads path as YAML into a fresh Config seeded with Default, backs up
// the previous config file (if any) to path+".bak" via otiai10/copy before
// overwriting the package-level active config, and stores the result as the
// new active config.
func Load(path string) (Config, error) {
	cfgMux.Lock()
	defer cfgMux.Unlock()

	if _, err := os.Stat(path); err == nil {
		backupPath := path + ".bak"
		if err := cp.Copy(path, backupPath); err != nil {
			return Config{}, fmt.Errorf("config: backup %s: %w", path, err)
		}
	}

	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			active = &cfg
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	d := yaml.NewDecoder(f)
	if err := d.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	active = &cfg
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg Config) error {
	text, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, text, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	cfgMux.Lock()
	c := cfg
	active = &c
	cfgMux.Unlock()
	return nil
}

// Active returns the most recently loaded configuration, or Default if none
// has been loaded yet.
func Active() Config {
	cfgMux.RLock()
	defer cfgMux.RUnlock()
	if active == nil {
		return Default()
	}
	return *active
}
