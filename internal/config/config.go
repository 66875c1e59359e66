// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"
)

const (
	configEnv = "WHEREAMI"

	ProviderLocationIQ   = "locationiq"
	ProviderOpenCage     = "opencage"
	ProviderNominatim    = "osm-nominatim"
	ProviderGeocodeEarth = "geocode-earth"

	DefaultTextTpl = `{{icon .Phase}} {{if .Address}}{{trunc .Address.Formatted 30}}` +
		`{{else if .Loading}}{{.LoadingMessage}}{{else}}{{.PhaseLabel}}{{end}}`
	// DefaultTooltipTpl renders the info panel of the bar module
	DefaultTooltipTpl = "{{with .Info}}{{loc \"position\"}}: {{coord .Latitude}}, {{coord .Longitude}} " +
		"(±{{floatFormat .Accuracy 0}} m)\n{{loc \"source\"}}: {{.Source}}\n{{loc \"updated\"}}: {{.Updated}}" +
		"{{if .Sunrise}}\n{{loc \"sunrise\"}}: {{timeFormat .Sunrise \"15:04\"}} " +
		"{{loc \"sunset\"}}: {{timeFormat .Sunset \"15:04\"}}{{end}}{{end}}" +
		"{{with .Address}}\n{{.DisplayName}}{{end}}" +
		"{{with .Error}}\n{{.Message}}{{end}}" +
		"{{with .Notice}}\n{{.}}{{end}}"
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Location struct {
		DisableHighAccuracy  bool          `fig:"disable_high_accuracy"`
		Timeout              time.Duration `fig:"timeout" default:"10s"`
		MaxAge               time.Duration `fig:"max_age"`
		DisableLocateOnStart bool          `fig:"disable_locate_on_start"`
		// ICHNAEA compatible geolocate endpoint used by the network based lookup
		Endpoint string `fig:"endpoint" default:"https://api.beacondb.net/v1/geolocate"`
		GPSDHost string `fig:"gpsd_host" default:"localhost"`
		GPSDPort int    `fig:"gpsd_port" default:"2947"`
		// File with a pinned "lat,lon[,accuracy]" position, preferred over all other sources
		File string `fig:"file"`
		// Disable the local positioning services and always use the network lookup
		DisableDevice bool `fig:"disable_device"`
	} `fig:"location"`

	Geocoder struct {
		// Allowed values: locationiq, opencage, osm-nominatim, geocode-earth
		Provider  string  `fig:"provider" default:"locationiq"`
		APIKey    string  `fig:"apikey"`
		RateLimit float64 `fig:"rate_limit" default:"2"`
	} `fig:"geocoder"`

	Map struct {
		// Viewport width divided by height
		Aspect float64 `fig:"aspect" default:"1"`
	} `fig:"map"`

	Server struct {
		Listen string `fig:"listen"`
	} `fig:"server"`

	Output struct {
		DisableWaybar bool `fig:"disable_waybar"`
	} `fig:"output"`

	Intervals struct {
		Output  time.Duration `fig:"output" default:"30s"`
		Refresh time.Duration `fig:"refresh"`
	} `fig:"intervals"`

	Templates struct {
		Text    string `fig:"text"`
		Tooltip string `fig:"tooltip"`
	} `fig:"templates"`

	Clipboard struct {
		Command string `fig:"command" default:"wl-copy"`
	} `fig:"clipboard"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

// Validate checks the loaded values and fills in derived defaults. A missing geocoder API key
// is not an error here, the application runs with a configuration notice instead.
func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	switch c.Geocoder.Provider {
	case ProviderLocationIQ, ProviderOpenCage, ProviderNominatim, ProviderGeocodeEarth:
	default:
		return fmt.Errorf("invalid geocoder provider: %s", c.Geocoder.Provider)
	}
	if c.Geocoder.RateLimit < 0 {
		return fmt.Errorf("invalid geocoder rate limit: %f", c.Geocoder.RateLimit)
	}
	if c.Location.Timeout <= 0 {
		return fmt.Errorf("invalid location timeout: %s", c.Location.Timeout)
	}
	if c.Location.MaxAge < 0 {
		return fmt.Errorf("invalid location max age: %s", c.Location.MaxAge)
	}
	if c.Location.GPSDPort < 1 || c.Location.GPSDPort > 65535 {
		return fmt.Errorf("invalid gpsd port: %d", c.Location.GPSDPort)
	}
	if c.Map.Aspect <= 0 {
		return fmt.Errorf("invalid map aspect ratio: %f", c.Map.Aspect)
	}
	if c.Intervals.Output <= 0 {
		return fmt.Errorf("invalid output interval: %s", c.Intervals.Output)
	}
	if c.Intervals.Refresh < 0 {
		return fmt.Errorf("invalid refresh interval: %s", c.Intervals.Refresh)
	}
	if c.Templates.Text == "" {
		c.Templates.Text = DefaultTextTpl
	}
	if c.Templates.Tooltip == "" {
		c.Templates.Tooltip = DefaultTooltipTpl
	}

	return nil
}

// MissingAPIKey returns a human readable notice if the geocoder cannot be used, or an empty string.
// Nominatim is keyless and never yields a notice.
func (c *Config) MissingAPIKey() string {
	if c.Geocoder.Provider == ProviderNominatim || strings.TrimSpace(c.Geocoder.APIKey) != "" {
		return ""
	}
	return fmt.Sprintf("no API key configured for the %s geocoder (set %s_GEOCODER_APIKEY)",
		c.Geocoder.Provider, configEnv)
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
