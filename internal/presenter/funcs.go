// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/wneessen/whereami/internal/geo"
)

func (p *Presenter) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"timeFormat":    p.timeFormat,
		"localizedTime": p.translator.Time,
		"ago":           p.translator.Ago,
		"floatFormat":   p.floatFormat,
		"coord":         coord,
		"compass":       compass,
		"compassIcon":   compassIcon,
		"trunc":         Truncate,
		"icon":          phaseIcon,
		"loc":           p.translator.Get,
		"lc":            strings.ToLower,
		"uc":            strings.ToUpper,
	}
}

func (p *Presenter) timeFormat(val time.Time, fmt string) string {
	return val.Format(fmt)
}

func (p *Presenter) floatFormat(val float64, precision int) string {
	pow := math.Pow(10, float64(precision))
	return fmt.Sprintf("%.*f", precision, math.Round(val*pow)/pow)
}

// coord renders a latitude or longitude with the precision the providers deliver.
func coord(val float64) string {
	return fmt.Sprintf("%.*f", geo.TruncPrecision, val)
}

// Truncate shortens s to at most width display cells and appends "..." if anything was cut.
// Width is measured in terminal cells so wide runes count twice.
func Truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "") + "..."
}

// compass returns the 8-wind compass point for a heading in degrees.
func compass(heading float64) string {
	heading = math.Mod(heading, 360)
	if heading < 0 {
		heading += 360
	}
	idx := int(math.Round(heading/45)) % len(compassPoints)
	return compassPoints[idx]
}

func compassIcon(heading float64) string {
	return compassIcons[compass(heading)]
}

func phaseIcon(phase string) string {
	return PhaseIcons[phase]
}
