// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/Xuanwo/go-locale"
	"github.com/vorlif/humanize"
	humanizede "github.com/vorlif/humanize/locale/de"
	humanizept "github.com/vorlif/humanize/locale/pt"
	"github.com/vorlif/spreak"
	"github.com/vorlif/spreak/localize"
	"golang.org/x/text/language"
)

//go:embed locale/*
var locales embed.FS

// messages maps the keys used throughout the presentation layer to their source strings.
var messages = map[string]localize.MsgID{
	// phases
	"idle":      "Idle",
	"locating":  "Locating",
	"geocoding": "Looking up address",
	"ready":     "Ready",
	"failed":    "Failed",

	// loading messages
	"loading.locating":  "Getting your location...",
	"loading.geocoding": "Looking up the address...",

	// failure kinds
	"permission_denied":     "Location permission was denied",
	"position_unavailable":  "Your position is currently unavailable",
	"timeout":               "Getting your location took too long",
	"capability_missing":    "Location services are not available on this system",
	"network_error":         "The address service could not be reached",
	"upstream_error":        "The address service returned an error",
	"malformed_response":    "The address service sent an unexpected response",
	"configuration_missing": "The application is not fully configured",
	"unknown":               "Something went wrong",

	// info panel
	"position": "Position",
	"accuracy": "Accuracy",
	"altitude": "Altitude",
	"speed":    "Speed",
	"heading":  "Heading",
	"source":   "Source",
	"updated":  "Updated",
	"sunrise":  "Sunrise",
	"sunset":   "Sunset",
	"address":  "Address",
	"copied":   "Address copied to the clipboard",
	"noaddr":   "No address available yet",
}

// Translator localizes the UI strings and humanizes times for a single language.
type Translator struct {
	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
	tag       language.Tag
}

func New(loc string) (*Translator, error) {
	tag := language.Make(loc)
	var err error
	if loc == "" {
		tag, err = locale.Detect()
		if err != nil {
			tag = language.English // Unable to detect locale, fallback to English
		}
	}

	localeFS, err := fs.Sub(locales, "locale")
	if err != nil {
		return nil, fmt.Errorf("failed to load locales: %w", err)
	}

	bundle, err := spreak.NewBundle(
		spreak.WithSourceLanguage(language.English),
		spreak.WithFallbackLanguage(language.English),
		spreak.WithDomainFs("", localeFS),
		spreak.WithLanguage(tag),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create i18n bundle: %w", err)
	}

	collection, err := humanize.New(humanize.WithLocale(humanizede.New(), humanizept.New()))
	if err != nil {
		return nil, fmt.Errorf("failed to create humanizer: %w", err)
	}

	return &Translator{
		localizer: spreak.NewLocalizer(bundle, tag),
		humanizer: collection.CreateHumanizer(tag),
		tag:       tag,
	}, nil
}

// Language returns the language tag the translator was created for.
func (t *Translator) Language() language.Tag {
	return t.tag
}

// Get returns the localized string for key. Unknown keys are returned unchanged.
func (t *Translator) Get(key string) string {
	if raw, ok := messages[key]; ok {
		return t.localizer.Get(raw)
	}
	return key
}

// Ago renders the distance between val and now in natural language, e.g. "3 minutes ago".
func (t *Translator) Ago(val time.Time) string {
	return t.humanizer.NaturalTime(val)
}

func (t *Translator) Time(val time.Time) string {
	return t.humanizer.FormatTime(val, humanize.TimeFormat)
}
