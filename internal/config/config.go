// Package config loads the controller settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	v "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
)

type Config struct {
	PageURL        string
	ImageURLFormat string
	ElementID      string
	Timezone       string

	CacheDir   string
	WindowSize int
	FrameStep  time.Duration

	FetchInterval time.Duration
	FetchTimeout  time.Duration
	FetchRetries  int
	MaxBackoff    time.Duration

	TickInterval     time.Duration
	BacklightTimeout time.Duration
	EvictInterval    time.Duration
	FrameDelay       time.Duration

	NotReadyImage string
	ErrorImage    string
	Framebuffer   string
	DisplayWidth  int
	DisplayHeight int

	TriggerPin   string
	BacklightPin string

	HTTPAddr   string
	JournalURI string
}

// Defaults match a Raspberry Pi with a 320x240 ILI9341 panel showing the
// Niigata prefecture rain radar.
func Defaults() Config {
	return Config{
		PageURL:        "https://tenki.jp/radar/3/15/",
		ImageURLFormat: "https://imageflux.tenki.jp/large/static-images/radar/%04d/%02d/%02d/%02d/%02d/00/pref-15-large.jpg",
		ElementID:      "radar-source",
		Timezone:       "Asia/Tokyo",

		CacheDir:   "tmp",
		WindowSize: 12,
		FrameStep:  5 * time.Minute,

		FetchInterval: 90 * time.Second,
		FetchTimeout:  30 * time.Second,
		FetchRetries:  2,
		MaxBackoff:    15 * time.Minute,

		TickInterval:     100 * time.Millisecond,
		BacklightTimeout: 30 * time.Minute,
		EvictInterval:    10 * time.Minute,
		FrameDelay:       200 * time.Millisecond,

		NotReadyImage: "img/in_preparation.png",
		ErrorImage:    "img/error.png",
		DisplayWidth:  320,
		DisplayHeight: 240,

		HTTPAddr: ":8080",
	}
}

// Load reads envFile (if it exists) into the environment, then builds the
// config from RADAR_* variables over the defaults.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}

	cfg := Defaults()
	e := &envReader{}
	e.str("RADAR_PAGE_URL", &cfg.PageURL)
	e.str("RADAR_IMAGE_URL_FORMAT", &cfg.ImageURLFormat)
	e.str("RADAR_SOURCE_ELEMENT_ID", &cfg.ElementID)
	e.str("RADAR_TIMEZONE", &cfg.Timezone)
	e.str("RADAR_CACHE_DIR", &cfg.CacheDir)
	e.int("RADAR_WINDOW_SIZE", &cfg.WindowSize)
	e.duration("RADAR_FRAME_STEP", &cfg.FrameStep)
	e.duration("RADAR_FETCH_INTERVAL", &cfg.FetchInterval)
	e.duration("RADAR_FETCH_TIMEOUT", &cfg.FetchTimeout)
	e.int("RADAR_FETCH_RETRIES", &cfg.FetchRetries)
	e.duration("RADAR_MAX_BACKOFF", &cfg.MaxBackoff)
	e.duration("RADAR_TICK_INTERVAL", &cfg.TickInterval)
	e.duration("RADAR_BACKLIGHT_TIMEOUT", &cfg.BacklightTimeout)
	e.duration("RADAR_EVICT_INTERVAL", &cfg.EvictInterval)
	e.duration("RADAR_SEQUENCE_FRAME_DELAY", &cfg.FrameDelay)
	e.str("RADAR_NOT_READY_IMAGE", &cfg.NotReadyImage)
	e.str("RADAR_ERROR_IMAGE", &cfg.ErrorImage)
	e.str("RADAR_FRAMEBUFFER", &cfg.Framebuffer)
	e.int("RADAR_DISPLAY_WIDTH", &cfg.DisplayWidth)
	e.int("RADAR_DISPLAY_HEIGHT", &cfg.DisplayHeight)
	e.str("RADAR_TRIGGER_PIN", &cfg.TriggerPin)
	e.str("RADAR_BACKLIGHT_PIN", &cfg.BacklightPin)
	e.str("RADAR_HTTP_ADDR", &cfg.HTTPAddr)
	e.str("RADAR_JOURNAL_URI", &cfg.JournalURI)
	if e.err != nil {
		return nil, e.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	return v.ValidateStruct(&c,
		v.Field(&c.PageURL, v.Required, is.URL),
		v.Field(&c.ImageURLFormat, v.Required, v.By(fiveIntVerbs)),
		v.Field(&c.ElementID, v.Required),
		v.Field(&c.Timezone, v.Required, v.By(loadableTimezone), v.By(fixedOffset)),
		v.Field(&c.CacheDir, v.Required),
		v.Field(&c.WindowSize, v.Required, v.Min(1)),
		v.Field(&c.FrameStep, v.Required, v.Min(time.Minute)),
		v.Field(&c.FetchInterval, v.Required, v.Min(time.Second)),
		v.Field(&c.FetchTimeout, v.Required, v.Min(time.Second)),
		v.Field(&c.FetchRetries, v.Min(0), v.Max(10)),
		v.Field(&c.MaxBackoff, v.Required, v.Min(c.FetchInterval)),
		v.Field(&c.TickInterval, v.Required, v.Min(time.Millisecond), v.Max(time.Second)),
		v.Field(&c.BacklightTimeout, v.Required, v.Min(time.Second)),
		v.Field(&c.EvictInterval, v.Required, v.Min(time.Second)),
		v.Field(&c.FrameDelay, v.Min(time.Duration(0))),
		v.Field(&c.DisplayWidth, v.Required, v.Min(1)),
		v.Field(&c.DisplayHeight, v.Required, v.Min(1)),
	)
}

// Location returns the timezone frames are named in.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func fiveIntVerbs(value interface{}) error {
	s, _ := value.(string)
	out := fmt.Sprintf(s, 2024, 7, 1, 12, 5)
	if strings.Contains(out, "%!") {
		return errors.New("must take five integers: year, month, day, hour, minute")
	}
	return nil
}

func loadableTimezone(value interface{}) error {
	s, _ := value.(string)
	if _, err := time.LoadLocation(s); err != nil {
		return fmt.Errorf("unknown timezone: %v", err)
	}
	return nil
}

// fixedOffset rejects zones with daylight saving time. Frame keys are wall
// clock times, so a repeated hour would name two frames with one key.
func fixedOffset(value interface{}) error {
	s, _ := value.(string)
	loc, err := time.LoadLocation(s)
	if err != nil {
		return nil
	}
	start := time.Date(time.Now().Year(), time.January, 1, 0, 0, 0, 0, loc)
	_, offset := start.Zone()
	for d := 1; d <= 366; d++ {
		if _, o := start.AddDate(0, 0, d).Zone(); o != offset {
			return errors.New("must not observe daylight saving time")
		}
	}
	return nil
}

type envReader struct {
	err error
}

func (e *envReader) str(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(val)
	}
}

func (e *envReader) int(key string, dst *int) {
	val, ok := os.LookupEnv(key)
	if !ok || e.err != nil {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		e.err = fmt.Errorf("%s: invalid integer %q", key, val)
		return
	}
	*dst = n
}

func (e *envReader) duration(key string, dst *time.Duration) {
	val, ok := os.LookupEnv(key)
	if !ok || e.err != nil {
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		e.err = fmt.Errorf("%s: invalid duration %q", key, val)
		return
	}
	*dst = d
}
