// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

// PhaseIcons maps phase names to the icon shown in front of the bar text.
var PhaseIcons = map[string]string{
	"idle":      "📍",
	"locating":  "🛰️",
	"geocoding": "🔎",
	"ready":     "📍",
	"failed":    "⚠️",
}

var compassPoints = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

var compassIcons = map[string]string{
	"N":  "↑",
	"NE": "↗",
	"E":  "→",
	"SE": "↘",
	"S":  "↓",
	"SW": "↙",
	"W":  "←",
	"NW": "↖",
}
