// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"github.com/wneessen/whereami/internal/acquire"
)

// Output is a single waybar custom module line.
type Output struct {
	Text    string   `json:"text"`
	Tooltip string   `json:"tooltip"`
	Classes []string `json:"class"`
	Alt     string   `json:"alt"`
}

// Waybar renders state as a bar line. The phase name is both the alt value and a CSS class so
// bar themes can style loading and failure.
func (p *Presenter) Waybar(state acquire.State) (Output, error) {
	text, tooltip, err := p.Render(state)
	if err != nil {
		return Output{}, err
	}
	phase := state.Phase.String()
	return Output{
		Text:    text,
		Tooltip: tooltip,
		Classes: []string{OutputClass, phase},
		Alt:     phase,
	}, nil
}
