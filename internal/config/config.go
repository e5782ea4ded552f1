package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	toml "github.com/pelletier/go-toml/v2"

	"dida/internal/calendar"
	"dida/internal/engine"
	"dida/internal/logging"
	"dida/internal/view"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "dida.db"
	DefaultLogName        = "dida.log"
	appDir                = "dida"
)

// Duration is a time.Duration written as a Go duration string ("48h").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Keymap struct {
	Quit         string `toml:"quit"`
	Add          string `toml:"add"`
	Up           string `toml:"up"`
	Down         string `toml:"down"`
	Toggle       string `toml:"toggle"`
	Delete       string `toml:"delete"`
	Detail       string `toml:"detail"`
	Confirm      string `toml:"confirm"`
	Cancel       string `toml:"cancel"`
	Rename       string `toml:"rename"`
	Search       string `toml:"search"`
	GroupBy      string `toml:"group_by"`
	InProgress   string `toml:"in_progress"`
	Priority     string `toml:"priority"`
	MoveUp       string `toml:"move_up"`
	MoveDown     string `toml:"move_down"`
	ListView     string `toml:"list_view"`
	CalendarView string `toml:"calendar_view"`
	MatrixView   string `toml:"matrix_view"`
	ScrollLeft   string `toml:"scroll_left"`
	ScrollRight  string `toml:"scroll_right"`
	Today        string `toml:"today"`
	AddSubTask   string `toml:"add_subtask"`
	AddTag       string `toml:"add_tag"`
}

type PersistConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	Backoff     Duration `toml:"backoff"`
}

type RetentionConfig struct {
	CompletedAfter Duration `toml:"completed_after"`
}

type CalendarConfig struct {
	PastDays        int `toml:"past_days"`
	FutureDays      int `toml:"future_days"`
	BatchDays       int `toml:"batch_days"`
	BufferDays      int `toml:"buffer_days"`
	ColumnWidth     int `toml:"column_width"`
	ScrollThreshold int `toml:"scroll_threshold"`
	EdgeThreshold   int `toml:"edge_threshold"`
}

type Config struct {
	DBPath         string          `toml:"db_path"`
	LogPath        string          `toml:"log_path"`
	DefaultGroupBy string          `toml:"default_group_by"`
	Persist        PersistConfig   `toml:"persist"`
	Retention      RetentionConfig `toml:"retention"`
	Calendar       CalendarConfig  `toml:"calendar"`
	Keys           Keymap          `toml:"keys"`
}

// ResolvePath picks the config file location: $DIDA_CONFIG, then the XDG
// config dir, then ~/.config, then the working directory.
func ResolvePath(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if p := strings.TrimSpace(getenv("DIDA_CONFIG")); p != "" {
		return p
	}
	if xdg := strings.TrimSpace(getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir, DefaultConfigFileName)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".config", appDir, DefaultConfigFileName)
	}
	return DefaultConfigFileName
}

// LoadOrCreate reads the config at path, writing the defaults there first
// when the file does not exist. Relative db and log paths are resolved
// against the config file's directory.
func LoadOrCreate(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		logging.Info("config", "wrote default config to %s", path)
		return cfg.resolve(path), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.fill()
	return cfg.resolve(path), nil
}

// fill repairs values a hand-edited file may have emptied or broken.
func (c *Config) fill() {
	d := Default()
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.LogPath == "" {
		c.LogPath = d.LogPath
	}
	if _, ok := view.ParseGroupBy(c.DefaultGroupBy); !ok {
		logging.Warn("config", "unknown default_group_by %q, using %s", c.DefaultGroupBy, d.DefaultGroupBy)
		c.DefaultGroupBy = d.DefaultGroupBy
	}
	if c.Persist.MaxAttempts < 1 {
		c.Persist.MaxAttempts = 1
	}
	if c.Persist.Backoff < 0 {
		c.Persist.Backoff = 0
	}
	if c.Retention.CompletedAfter <= 0 {
		c.Retention.CompletedAfter = d.Retention.CompletedAfter
	}
}

func (c Config) resolve(path string) Config {
	dir := filepath.Dir(path)
	c.DBPath = resolveFrom(dir, c.DBPath)
	c.LogPath = resolveFrom(dir, c.LogPath)
	return c
}

func resolveFrom(dir, p string) string {
	if p == "" || strings.HasPrefix(p, "file:") || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// RetryPolicy is the engine write policy described by [persist].
func (c Config) RetryPolicy() engine.RetryPolicy {
	return engine.RetryPolicy{MaxAttempts: c.Persist.MaxAttempts, Backoff: time.Duration(c.Persist.Backoff)}
}

// Feed is the calendar window described by [calendar].
func (c Config) Feed() calendar.Config {
	k := c.Calendar
	return calendar.Config{
		PastDays:        k.PastDays,
		FutureDays:      k.FutureDays,
		BatchDays:       k.BatchDays,
		BufferDays:      k.BufferDays,
		ColumnWidth:     k.ColumnWidth,
		ScrollThreshold: k.ScrollThreshold,
		EdgeThreshold:   k.EdgeThreshold,
	}
}

func (c Config) GroupBy() view.GroupBy {
	if by, ok := view.ParseGroupBy(c.DefaultGroupBy); ok {
		return by
	}
	return view.GroupByPriority
}

func Default() Config {
	feed := calendar.DefaultConfig()
	return Config{
		DBPath:         DefaultDBName,
		LogPath:        DefaultLogName,
		DefaultGroupBy: string(view.GroupByPriority),
		Persist: PersistConfig{
			MaxAttempts: engine.DefaultRetry.MaxAttempts,
			Backoff:     Duration(engine.DefaultRetry.Backoff),
		},
		Retention: RetentionConfig{CompletedAfter: Duration(engine.DefaultRetention)},
		Calendar: CalendarConfig{
			PastDays:        feed.PastDays,
			FutureDays:      feed.FutureDays,
			BatchDays:       feed.BatchDays,
			BufferDays:      feed.BufferDays,
			ColumnWidth:     feed.ColumnWidth,
			ScrollThreshold: feed.ScrollThreshold,
			EdgeThreshold:   feed.EdgeThreshold,
		},
		Keys: Keymap{
			Quit:         "q",
			Add:          "a",
			Up:           "k",
			Down:         "j",
			Toggle:       " ",
			Delete:       "d",
			Detail:       "enter",
			Confirm:      "enter",
			Cancel:       "esc",
			Rename:       "r",
			Search:       "/",
			GroupBy:      "g",
			InProgress:   "i",
			Priority:     "p",
			MoveUp:       "K",
			MoveDown:     "J",
			ListView:     "1",
			CalendarView: "2",
			MatrixView:   "3",
			ScrollLeft:   "h",
			ScrollRight:  "l",
			Today:        "t",
			AddSubTask:   "s",
			AddTag:       "#",
		},
	}
}

func (c Config) RetentionPeriod() time.Duration {
	return time.Duration(c.Retention.CompletedAfter)
}
