// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package nominatim

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
	otleyExpected = "Kirkgate, Leeds - England"
	otleyFile     = "../../../../testdata/nominatim_otley.json"
	otleyLat      = 53.90712
	otleyLon      = -1.69404

	villageExpected = "Mühlbach - Tirol"
	villageFile     = "../../../../testdata/nominatim_village.json"

	unableFile = "../../../../testdata/nominatim_unable.json"
)

func TestNew(t *testing.T) {
	t.Run("creating a new provider succeeds without an API key", func(t *testing.T) {
		coder := New(http.New(logger.New(slog.LevelInfo)), language.English)
		if coder == nil {
			t.Fatal("expected a non-nil geocoder")
		}
		if coder.Name() != name {
			t.Errorf("expected provider name to be %q, got %q", name, coder.Name())
		}
	})
}

func TestNominatim_Reverse(t *testing.T) {
	t.Run("reverse geocoding succeeds", func(t *testing.T) {
		var query map[string]string
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			q := req.URL.Query()
			query = map[string]string{
				"lat":             q.Get("lat"),
				"lon":             q.Get("lon"),
				"format":          q.Get("format"),
				"accept-language": q.Get("accept-language"),
			}
			return testhelper.FileResponder(t, 200, otleyFile)(req)
		}
		coder := testCoder(t, rtFn)
		addr, err := coder.Reverse(t.Context(), otleyLat, otleyLon)
		if err != nil {
			t.Fatal(err)
		}
		if addr.Formatted != otleyExpected {
			t.Errorf("expected address to be %q, got %q", otleyExpected, addr.Formatted)
		}
		if addr.DisplayName == "" {
			t.Error("expected display name to be set")
		}
		if addr.Postcode.Value() != "LS21 3HJ" {
			t.Errorf("expected postcode to be LS21 3HJ, got %s", addr.Postcode)
		}
		if addr.Neighbourhood.IsSet() {
			t.Errorf("expected neighbourhood to be unset, got %s", addr.Neighbourhood)
		}
		want := map[string]string{
			"lat": "53.90712", "lon": "-1.69404", "format": "jsonv2", "accept-language": "en",
		}
		for key, val := range want {
			if query[key] != val {
				t.Errorf("expected query parameter %s to be %q, got %q", key, val, query[key])
			}
		}
	})
	t.Run("village is used when no city or town is present", func(t *testing.T) {
		coder := testCoder(t, testhelper.FileResponder(t, 200, villageFile))
		addr, err := coder.Reverse(t.Context(), 47.12345, 11.45612)
		if err != nil {
			t.Fatal(err)
		}
		if addr.City.Value() != "Mühlbach" {
			t.Errorf("expected city to be Mühlbach, got %s", addr.City)
		}
		if addr.Formatted != villageExpected {
			t.Errorf("expected address to be %q, got %q", villageExpected, addr.Formatted)
		}
	})
	t.Run("unable to geocode is a malformed response", func(t *testing.T) {
		coder := testCoder(t, testhelper.FileResponder(t, 200, unableFile))
		_, err := coder.Reverse(t.Context(), 0, 0)
		if !failure.IsKind(err, failure.MalformedResponse) {
			t.Errorf("expected malformed response, got %v", err)
		}
	})
	t.Run("missing display name is a malformed response", func(t *testing.T) {
		coder := testCoder(t, testhelper.StringResponder(200, `{"address":{"road":"Kirkgate"}}`))
		_, err := coder.Reverse(t.Context(), otleyLat, otleyLon)
		if !failure.IsKind(err, failure.MalformedResponse) {
			t.Errorf("expected malformed response, got %v", err)
		}
	})
	t.Run("non-2xx status is an upstream error", func(t *testing.T) {
		coder := testCoder(t, testhelper.StringResponder(stdhttp.StatusTooManyRequests, `{}`))
		_, err := coder.Reverse(t.Context(), otleyLat, otleyLon)
		if failure.StatusOf(err) != stdhttp.StatusTooManyRequests {
			t.Errorf("expected status %d, got %d", stdhttp.StatusTooManyRequests, failure.StatusOf(err))
		}
	})
	t.Run("reverse geocoding fails on transport level", func(t *testing.T) {
		coder := testCoder(t, func(req *stdhttp.Request) (*stdhttp.Response, error) {
			return nil, errors.New("intentionally failing")
		})
		_, err := coder.Reverse(t.Context(), otleyLat, otleyLon)
		if !failure.IsKind(err, failure.NetworkError) {
			t.Errorf("expected network error, got %v", err)
		}
	})
}

func TestNominatim_Reverse_integration(t *testing.T) {
	testhelper.PerformIntegrationTests(t)
	coder := New(http.New(logger.New(slog.LevelInfo)), language.English)
	addr, err := coder.Reverse(t.Context(), otleyLat, otleyLon)
	if err != nil {
		t.Fatalf("reverse geocoding failed: %s", err)
	}
	if addr.DisplayName == "" {
		t.Error("expected display name to be set")
	}
}

func testCoder(t *testing.T, fn func(req *stdhttp.Request) (*stdhttp.Response, error)) *Nominatim {
	t.Helper()
	client := http.New(logger.New(slog.LevelInfo))
	client.Transport = testhelper.MockRoundTripper{Fn: fn}
	return New(client, language.English)
}
