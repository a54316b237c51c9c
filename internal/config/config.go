package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carrieskye/calendar/internal/location"
	"github.com/carrieskye/calendar/internal/timeline"
)

// OwnerConfig describes one tracked person.
type OwnerConfig struct {
	// UserID is the numeric id used by the position store.
	UserID int `yaml:"user_id"`
	// Calendar is the name of the Google calendar that holds the owner's
	// location events.
	Calendar string `yaml:"calendar"`
	// Account is the Google account name whose token file is used.
	Account string `yaml:"account"`
}

// MergeConfig holds the timeline merge tunables. Durations are in minutes.
type MergeConfig struct {
	Office        string `yaml:"office"`
	TransitHub    string `yaml:"transit_hub"`
	DayStartHour  int    `yaml:"day_start_hour"`
	NoonHour      int    `yaml:"noon_hour"`
	AfternoonHour int    `yaml:"afternoon_hour"`
	MergeGapMin   int    `yaml:"merge_gap_minutes"`
	MinEventMin   int    `yaml:"min_event_minutes"`
	MinSpanMin    int    `yaml:"min_span_minutes"`
}

// MediaConfig configures watch history syncing.
type MediaConfig struct {
	// Place is the registered place whose address and time zone watch
	// events are written with.
	Place string `yaml:"place"`
	// Calendar is the Google calendar that receives watch events.
	Calendar string `yaml:"calendar"`
	// Account is the Google account name whose token file is used.
	Account string `yaml:"account"`
	// GapMinutes is the maximum break between plays in one sitting.
	GapMinutes int `yaml:"gap_minutes"`
	// CachePath stores fetched runtimes between runs.
	CachePath string `yaml:"cache_path"`
}

// CalDAVConfig configures the optional CalDAV mirror. Credentials come from
// the CALDAV_USERNAME and CALDAV_PASSWORD environment variables.
type CalDAVConfig struct {
	Endpoint string `yaml:"endpoint"`
	Calendar string `yaml:"calendar"`
}

// Config is the top-level application configuration. Secrets (database DSN,
// OAuth credentials, API tokens) are read from the environment, not from this
// file.
type Config struct {
	// Timezone is the IANA zone used for work-day boundaries.
	Timezone string `yaml:"timezone"`

	// RegistryPath points at the JSON file with the known places.
	RegistryPath string `yaml:"registry_path"`

	// TakeoutDir, if set, reads positions from exported per-day JSON files
	// instead of the database.
	TakeoutDir string `yaml:"takeout_dir"`

	// MinStayMinutes is the shortest stay that becomes a calendar event.
	MinStayMinutes int `yaml:"min_stay_minutes"`

	// MaxAccuracyMeters drops position fixes coarser than this before
	// labeling. Cell-tower fixes report kilometer-grade accuracy and carry
	// no place information.
	MaxAccuracyMeters float64 `yaml:"max_accuracy_meters"`

	// DaemonCron is the cron schedule for daemon mode (e.g. "0 4 * * *").
	DaemonCron string `yaml:"daemon_cron"`

	// Owners maps owner names to their store id and calendars.
	Owners map[string]OwnerConfig `yaml:"owners"`

	Merge  MergeConfig   `yaml:"merge"`
	Media  MediaConfig   `yaml:"media"`
	CalDAV *CalDAVConfig `yaml:"caldav,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	rules := timeline.DefaultRules()
	return &Config{
		Timezone:          "Europe/London",
		RegistryPath:      "places.json",
		MinStayMinutes:    30,
		MaxAccuracyMeters: location.DefaultMaxAccuracyMeters,
		DaemonCron:        "0 4 * * *",
		Owners:            map[string]OwnerConfig{},
		Merge: MergeConfig{
			Office:        rules.Office,
			TransitHub:    rules.TransitHub,
			DayStartHour:  rules.DayStartHour,
			NoonHour:      rules.NoonHour,
			AfternoonHour: rules.AfternoonHour,
			MergeGapMin:   int(rules.MergeGap / time.Minute),
			MinEventMin:   int(rules.MinEvent / time.Minute),
			MinSpanMin:    int(rules.MinSpan / time.Minute),
		},
		Media: MediaConfig{
			GapMinutes: 60,
			CachePath:  "runtimes.json",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RegistryPath == "" {
		c.RegistryPath = def.RegistryPath
	}
	if c.MinStayMinutes <= 0 {
		c.MinStayMinutes = def.MinStayMinutes
	}
	if c.MaxAccuracyMeters <= 0 {
		c.MaxAccuracyMeters = def.MaxAccuracyMeters
	}
	if c.DaemonCron == "" {
		c.DaemonCron = def.DaemonCron
	}
	if c.Owners == nil {
		c.Owners = map[string]OwnerConfig{}
	}
	if c.Merge.DayStartHour <= 0 {
		c.Merge.DayStartHour = def.Merge.DayStartHour
	}
	if c.Merge.NoonHour <= 0 {
		c.Merge.NoonHour = def.Merge.NoonHour
	}
	if c.Merge.AfternoonHour <= 0 {
		c.Merge.AfternoonHour = def.Merge.AfternoonHour
	}
	if c.Merge.MergeGapMin <= 0 {
		c.Merge.MergeGapMin = def.Merge.MergeGapMin
	}
	if c.Merge.MinEventMin <= 0 {
		c.Merge.MinEventMin = def.Merge.MinEventMin
	}
	if c.Merge.MinSpanMin <= 0 {
		c.Merge.MinSpanMin = def.Merge.MinSpanMin
	}
	if c.Media.GapMinutes <= 0 {
		c.Media.GapMinutes = def.Media.GapMinutes
	}
	if c.Media.CachePath == "" {
		c.Media.CachePath = def.Media.CachePath
	}
}

// Rules converts the merge tunables into the form the timeline package takes.
func (c *Config) Rules() timeline.Rules {
	rules := timeline.DefaultRules()
	rules.Office = c.Merge.Office
	rules.TransitHub = c.Merge.TransitHub
	rules.DayStartHour = c.Merge.DayStartHour
	rules.NoonHour = c.Merge.NoonHour
	rules.AfternoonHour = c.Merge.AfternoonHour
	rules.MergeGap = time.Duration(c.Merge.MergeGapMin) * time.Minute
	rules.MinEvent = time.Duration(c.Merge.MinEventMin) * time.Minute
	rules.MinSpan = time.Duration(c.Merge.MinSpanMin) * time.Minute
	return rules
}

// MinStay returns the minimum stay duration as a time.Duration.
func (c *Config) MinStay() time.Duration {
	return time.Duration(c.MinStayMinutes) * time.Minute
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there and returned,
// so a first run leaves a template to fill in.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path, atomically and
// with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".skycal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
