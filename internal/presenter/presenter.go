// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nathan-osman/go-sunrise"

	"github.com/wneessen/whereami/internal/acquire"
	"github.com/wneessen/whereami/internal/config"
	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/geo"
	"github.com/wneessen/whereami/internal/geocode"
	"github.com/wneessen/whereami/internal/i18n"
	"github.com/wneessen/whereami/internal/vartype"
)

const (
	// LabelWidth is the maximum width of the marker label before it is cut off.
	LabelWidth = 30
	// OutputClass is the CSS class every bar line carries.
	OutputClass = "whereami"
)

// View is the render model for map clients. It is derived from an acquire.State and carries
// everything a client needs without knowing the state machine.
type View struct {
	Phase          string           `json:"phase"`
	PhaseLabel     string           `json:"phase_label"`
	Loading        bool             `json:"loading"`
	LoadingMessage string           `json:"loading_message,omitempty"`
	Map            *MapView         `json:"map"`
	Info           *InfoView        `json:"info"`
	Address        *geocode.Address `json:"address"`
	Error          *ErrorView       `json:"error"`
	Notice         string           `json:"notice,omitempty"`
	Seq            uint64           `json:"seq"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type MapView struct {
	Region geo.Region `json:"region"`
	Marker *Marker    `json:"marker"`
}

// Marker is the pin placed at the current sample. The label is the formatted address, cut to
// LabelWidth, and empty while the address is unresolved.
type Marker struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label"`
}

// InfoView is the info panel content for the current sample.
type InfoView struct {
	Latitude  float64            `json:"latitude"`
	Longitude float64            `json:"longitude"`
	Accuracy  float64            `json:"accuracy"`
	Altitude  vartype.VarFloat64 `json:"altitude"`
	Speed     vartype.VarFloat64 `json:"speed"`
	Heading   vartype.VarFloat64 `json:"heading"`
	Compass   string             `json:"compass,omitempty"`
	Source    string             `json:"source"`
	Timestamp time.Time          `json:"timestamp"`
	Updated   string             `json:"updated"`
	Sunrise   *time.Time         `json:"sunrise,omitempty"`
	Sunset    *time.Time         `json:"sunset,omitempty"`
}

type ErrorView struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Detail    string `json:"detail"`
	Status    int    `json:"status,omitempty"`
	Retryable bool   `json:"retryable"`
}

type Presenter struct {
	TextTemplate    *template.Template
	TooltipTemplate *template.Template

	clock      clockwork.Clock
	translator *i18n.Translator
}

func New(conf *config.Config, translator *i18n.Translator, clock clockwork.Clock) (*Presenter, error) {
	if translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	pres := &Presenter{
		clock:      clock,
		translator: translator,
	}

	var err error
	pres.TextTemplate, err = template.New("text").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse text template: %w", err)
	}
	pres.TooltipTemplate, err = template.New("tooltip").Funcs(pres.templateFuncMap()).Parse(conf.Templates.Tooltip)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tooltip template: %w", err)
	}

	return pres, nil
}

// View derives the render model from state.
func (p *Presenter) View(state acquire.State) View {
	phase := state.Phase.String()
	view := View{
		Phase:      phase,
		PhaseLabel: p.translator.Get(phase),
		Loading:    state.Phase.Busy(),
		Address:    state.Address,
		Notice:     state.Notice,
		Seq:        state.Seq,
		UpdatedAt:  state.UpdatedAt,
	}
	if view.Loading {
		view.LoadingMessage = p.translator.Get("loading." + phase)
	}

	if state.Region != nil {
		view.Map = &MapView{Region: *state.Region}
		if state.Sample != nil {
			view.Map.Marker = &Marker{
				Latitude:  state.Sample.Coords.Latitude,
				Longitude: state.Sample.Coords.Longitude,
			}
			if state.Address != nil {
				view.Map.Marker.Label = Truncate(state.Address.Formatted, LabelWidth)
			}
		}
	}
	if state.Sample != nil {
		view.Info = p.info(*state.Sample)
	}
	if state.Error != nil {
		view.Error = &ErrorView{
			Kind:      state.Error.Kind.String(),
			Message:   p.failureMessage(state.Error),
			Detail:    state.Error.Message,
			Status:    state.Error.Status,
			Retryable: state.Phase == acquire.Failed,
		}
	}

	return view
}

// Render executes the text and tooltip templates against the view of state.
func (p *Presenter) Render(state acquire.State) (text, tooltip string, err error) {
	view := p.View(state)

	buf := bytes.NewBuffer(nil)
	if err = p.TextTemplate.Execute(buf, view); err != nil {
		return "", "", fmt.Errorf("failed to render text template: %w", err)
	}
	text = buf.String()

	buf.Reset()
	if err = p.TooltipTemplate.Execute(buf, view); err != nil {
		return "", "", fmt.Errorf("failed to render tooltip template: %w", err)
	}
	return text, buf.String(), nil
}

func (p *Presenter) info(sample geo.Sample) *InfoView {
	coords := sample.Coords
	info := &InfoView{
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
		Accuracy:  coords.Accuracy,
		Altitude:  coords.Altitude,
		Speed:     coords.Speed,
		Heading:   coords.Heading,
		Source:    sample.Source,
		Timestamp: sample.Time(),
		Updated:   p.translator.Ago(sample.Time()),
	}
	if heading, ok := coords.Heading.Get(); ok {
		info.Compass = compass(heading)
	}

	now := p.clock.Now()
	rise, set := sunrise.SunriseSunset(coords.Latitude, coords.Longitude, now.Year(), now.Month(), now.Day())
	if !rise.IsZero() && !set.IsZero() {
		info.Sunrise, info.Sunset = &rise, &set
	}

	return info
}

// failureMessage returns the localized user-facing message for the failure kind. Upstream
// errors carry the status code since it is the most useful hint for a misconfigured key.
func (p *Presenter) failureMessage(info *acquire.ErrorInfo) string {
	msg := p.translator.Get(info.Kind.String())
	if info.Kind == failure.UpstreamError && info.Status > 0 {
		return fmt.Sprintf("%s (HTTP %d)", msg, info.Status)
	}
	return msg
}
