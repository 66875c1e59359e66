// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package locationiq

import (
	"errors"
	"log/slog"
	stdhttp "net/http"
	"testing"

	"golang.org/x/text/language"

	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/http"
	"github.com/wneessen/whereami/internal/logger"
	"github.com/wneessen/whereami/internal/testhelper"
)

const (
	paulistaFile     = "../../../../testdata/locationiq_paulista.json"
	paulistaExpected = "Avenida Paulista, 1000, São Paulo - São Paulo"
	paulistaLat      = -23.5505
	paulistaLon      = -46.6333

	villageFile     = "../../../../testdata/locationiq_village.json"
	villageExpected = "Marshfield"

	noDisplayFile = "../../../../testdata/locationiq_nodisplay.json"
)

func TestNew(t *testing.T) {
	t.Run("creating a new provider succeeds", func(t *testing.T) {
		coder := testCoder(t, testhelper.StringResponder(200, "{}"))
		if coder.Name() != name {
			t.Errorf("expected provider name to be %q, got %q", name, coder.Name())
		}
	})
	t.Run("missing API key is a configuration error", func(t *testing.T) {
		_, err := New(http.New(logger.New(slog.LevelInfo)), language.German, " ")
		if !failure.IsKind(err, failure.ConfigurationMissing) {
			t.Errorf("expected configuration missing error, got %v", err)
		}
	})
}

func TestLocationIQ_Reverse(t *testing.T) {
	t.Run("reverse geocoding succeeds", func(t *testing.T) {
		var query map[string][]string
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			query = req.URL.Query()
			return testhelper.FileResponder(t, 200, paulistaFile)(req)
		}
		coder := testCoder(t, rtFn)
		addr, err := coder.Reverse(t.Context(), paulistaLat, paulistaLon)
		if err != nil {
			t.Fatalf("reverse geocoding failed: %s", err)
		}
		if addr.Formatted != paulistaExpected {
			t.Errorf("expected formatted address to be %q, got %q", paulistaExpected, addr.Formatted)
		}
		if addr.DisplayName == "" {
			t.Error("expected display name to be set")
		}
		if addr.Neighbourhood.Value() != "Bela Vista" {
			t.Errorf("expected neighbourhood to fall back to suburb, got %s", addr.Neighbourhood)
		}
		if addr.Postcode.Value() != "01310-100" {
			t.Errorf("expected postcode to be 01310-100, got %s", addr.Postcode)
		}
		if got := query["lat"]; len(got) != 1 || got[0] != "-23.5505" {
			t.Errorf("expected lat query to be -23.5505, got %v", got)
		}
		if got := query["accept-language"]; len(got) != 1 || got[0] != "pt-BR" {
			t.Errorf("expected accept-language to be pt-BR, got %v", got)
		}
		if got := query["normalizeaddress"]; len(got) != 1 || got[0] != "1" {
			t.Errorf("expected normalizeaddress to be set, got %v", got)
		}
	})
	t.Run("partial upstream data leaves components unset", func(t *testing.T) {
		coder := testCoder(t, testhelper.FileResponder(t, 200, villageFile))
		addr, err := coder.Reverse(t.Context(), 51.46292, -2.31850)
		if err != nil {
			t.Fatalf("reverse geocoding failed: %s", err)
		}
		if addr.City.Value() != villageExpected {
			t.Errorf("expected city to fall back to village %q, got %s", villageExpected, addr.City)
		}
		if addr.Road.IsSet() || addr.Postcode.IsSet() || addr.Neighbourhood.IsSet() {
			t.Error("expected road, postcode and neighbourhood to be unset")
		}
		if addr.Formatted != "Marshfield - England" {
			t.Errorf("expected formatted address to be composed from city and state, got %q", addr.Formatted)
		}
	})
	t.Run("missing display name is a malformed response", func(t *testing.T) {
		coder := testCoder(t, testhelper.FileResponder(t, 200, noDisplayFile))
		_, err := coder.Reverse(t.Context(), 0, 0)
		if !failure.IsKind(err, failure.MalformedResponse) {
			t.Errorf("expected malformed response, got %v", err)
		}
	})
	t.Run("undecodable body is a malformed response", func(t *testing.T) {
		coder := testCoder(t, testhelper.StringResponder(200, `{"display_name": 12`))
		_, err := coder.Reverse(t.Context(), 0, 0)
		if !failure.IsKind(err, failure.MalformedResponse) {
			t.Errorf("expected malformed response, got %v", err)
		}
	})
	t.Run("non-2xx status is an upstream error", func(t *testing.T) {
		coder := testCoder(t, testhelper.StringResponder(stdhttp.StatusUnauthorized, `{"error":"Invalid key"}`))
		_, err := coder.Reverse(t.Context(), 0, 0)
		if !failure.IsKind(err, failure.UpstreamError) {
			t.Errorf("expected upstream error, got %v", err)
		}
		if failure.StatusOf(err) != stdhttp.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", stdhttp.StatusUnauthorized, failure.StatusOf(err))
		}
	})
	t.Run("transport failure is a network error", func(t *testing.T) {
		coder := testCoder(t, func(req *stdhttp.Request) (*stdhttp.Response, error) {
			return nil, errors.New("connection refused")
		})
		_, err := coder.Reverse(t.Context(), 0, 0)
		if !failure.IsKind(err, failure.NetworkError) {
			t.Errorf("expected network error, got %v", err)
		}
	})
}

func testCoder(t *testing.T, fn func(req *stdhttp.Request) (*stdhttp.Response, error)) *LocationIQ {
	t.Helper()
	client := http.New(logger.New(slog.LevelInfo))
	client.Transport = testhelper.MockRoundTripper{Fn: fn}
	coder, err := New(client, language.BrazilianPortuguese, "test-key")
	if err != nil {
		t.Fatalf("failed to create geocoder: %s", err)
	}
	return coder
}
