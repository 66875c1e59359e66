// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package browser

import (
	"fmt"
	"strings"

	"github.com/mdlayher/wifi"
)

// WifiScanner lists access points via nl80211.
type WifiScanner struct {
	wlan *wifi.Client
}

// NewWifiScanner returns a scanner. It fails on systems without nl80211 support.
func NewWifiScanner() (*WifiScanner, error) {
	wlan, err := wifi.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create wifi client: %w", err)
	}
	return &WifiScanner{wlan: wlan}, nil
}

// AccessPoints returns the access points seen by all station interfaces. Hidden networks and
// networks that opted out with the "_nomap" suffix are skipped.
func (s *WifiScanner) AccessPoints() ([]WirelessNetwork, error) {
	var list []WirelessNetwork

	ifaces, err := s.wlan.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Type != wifi.InterfaceTypeStation {
			continue
		}
		aps, err := s.wlan.AccessPoints(iface)
		if err != nil {
			continue
		}
		for _, ap := range aps {
			if !usable(ap.SSID) {
				continue
			}
			list = append(list, WirelessNetwork{
				SignalStrength: ap.Signal / 100,
				MACAddress:     ap.BSSID.String(),
				LastSeen:       ap.LastSeen.Milliseconds(),
			})
		}
	}

	return list, nil
}

func (s *WifiScanner) Close() error {
	return s.wlan.Close()
}

func usable(ssid string) bool {
	return ssid != "" && ssid[0] != '\x00' && !strings.HasSuffix(ssid, "_nomap")
}
