// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	stdhttp "net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/whereami/internal/acquire"
	"github.com/wneessen/whereami/internal/config"
	"github.com/wneessen/whereami/internal/failure"
	"github.com/wneessen/whereami/internal/geo"
	"github.com/wneessen/whereami/internal/geocode"
	"github.com/wneessen/whereami/internal/locate"
	"github.com/wneessen/whereami/internal/logger"
	"github.com/wneessen/whereami/internal/presenter"
	"github.com/wneessen/whereami/internal/testhelper"
)

const testFileLocationIQ = "../../testdata/locationiq_paulista.json"

var paulista = geo.Coordinate{Latitude: -23.5614, Longitude: -46.6559, Accuracy: 25}

func TestNew(t *testing.T) {
	t.Run("new service succeeds", func(t *testing.T) {
		if _, err := testService(t); err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
	})
	t.Run("nil logger fails", func(t *testing.T) {
		conf, err := config.New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		_, err = New(conf, nil)
		if err == nil || !strings.Contains(err.Error(), "logger is required") {
			t.Errorf("expected logger error, got %v", err)
		}
	})
	t.Run("invalid template configuration fails", func(t *testing.T) {
		t.Setenv("WHEREAMI_TEMPLATES_TEXT", "{{")
		_, err := testService(t)
		if err == nil || !strings.Contains(err.Error(), "failed to parse template") {
			t.Errorf("expected template error, got %v", err)
		}
	})
	t.Run("empty clipboard command fails", func(t *testing.T) {
		conf, err := config.New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		conf.Clipboard.Command = " "
		_, err = New(conf, logger.NewLogger(slog.LevelError, io.Discard))
		if err == nil || !strings.Contains(err.Error(), "clipboard") {
			t.Errorf("expected clipboard error, got %v", err)
		}
	})
}

func TestService_selectGeocodeProvider(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantName string
		wantKind failure.Kind
		wantFail bool
	}{
		{
			"locationiq with api-key",
			map[string]string{"WHEREAMI_GEOCODER_APIKEY": "pk.test"},
			"rate limited locationiq", failure.Unknown, false,
		},
		{
			"opencage with api-key",
			map[string]string{"WHEREAMI_GEOCODER_PROVIDER": "opencage", "WHEREAMI_GEOCODER_APIKEY": "abc"},
			"rate limited opencage", failure.Unknown, false,
		},
		{
			"locationiq without api-key",
			map[string]string{"WHEREAMI_GEOCODER_APIKEY": ""},
			"", failure.ConfigurationMissing, true,
		},
		{
			"opencage without api-key",
			map[string]string{"WHEREAMI_GEOCODER_PROVIDER": "opencage", "WHEREAMI_GEOCODER_APIKEY": ""},
			"", failure.ConfigurationMissing, true,
		},
		{
			"osm-nominatim without api-key",
			map[string]string{"WHEREAMI_GEOCODER_PROVIDER": "osm-nominatim", "WHEREAMI_GEOCODER_APIKEY": ""},
			"rate limited osm-nominatim", failure.Unknown, false,
		},
		{
			"geocode-earth with api-key",
			map[string]string{"WHEREAMI_GEOCODER_PROVIDER": "geocode-earth", "WHEREAMI_GEOCODER_APIKEY": "ge-test"},
			"rate limited geocode-earth", failure.Unknown, false,
		},
		{
			"geocode-earth without api-key",
			map[string]string{"WHEREAMI_GEOCODER_PROVIDER": "geocode-earth", "WHEREAMI_GEOCODER_APIKEY": ""},
			"", failure.ConfigurationMissing, true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for key, val := range tc.env {
				t.Setenv(key, val)
			}
			serv, err := testService(t)
			if err != nil {
				t.Fatalf("failed to create service: %s", err)
			}
			coder, err := serv.selectGeocodeProvider()
			if tc.wantFail {
				if !failure.IsKind(err, tc.wantKind) {
					t.Errorf("expected %s failure, got %v", tc.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("failed to select geocode provider: %s", err)
			}
			if coder.Name() != tc.wantName {
				t.Errorf("expected geocoder name to be %q, got %q", tc.wantName, coder.Name())
			}
		})
	}
	t.Run("unsupported provider", func(t *testing.T) {
		serv, err := testService(t)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		serv.config.Geocoder.Provider = "invalid"
		if _, err = serv.selectGeocodeProvider(); err == nil {
			t.Fatal("expected geocode provider selection to fail")
		}
	})
}

func TestService_locationCandidates(t *testing.T) {
	t.Run("device candidates come before the browser", func(t *testing.T) {
		serv, err := testService(t)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		candidates := serv.locationCandidates()
		names := make([]string, 0, len(candidates))
		for _, c := range candidates {
			names = append(names, c.Name)
		}
		if strings.Join(names, ",") != "file,geoclue,gpsd,browser" {
			t.Errorf("unexpected candidate order %v", names)
		}
	})
	t.Run("configured location file is selected first", func(t *testing.T) {
		serv, err := testService(t)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		path := filepath.Join(t.TempDir(), "location")
		if err = os.WriteFile(path, []byte("-23.5614,-46.6559\n"), 0o600); err != nil {
			t.Fatalf("failed to write location file: %s", err)
		}
		serv.config.Location.File = path
		provider := serv.detectProvider(t.Context())
		if provider.Name() != "file" {
			t.Errorf("expected file provider, got %q", provider.Name())
		}
		sample, err := provider.Acquire(t.Context(), locate.Options{})
		if err != nil {
			t.Fatalf("failed to acquire location: %s", err)
		}
		if sample.Coords.Latitude != -23.5614 {
			t.Errorf("expected latitude -23.5614, got %f", sample.Coords.Latitude)
		}
	})
	t.Run("disabled device lookup only keeps the browser", func(t *testing.T) {
		serv, err := testService(t)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		serv.config.Location.DisableDevice = true
		candidates := serv.locationCandidates()
		if len(candidates) != 1 || candidates[0].Name != "browser" {
			t.Fatalf("expected only the browser candidate, got %d", len(candidates))
		}
		provider, err := candidates[0].Build()
		if err != nil {
			t.Fatalf("failed to build browser provider: %s", err)
		}
		for _, closer := range serv.closers {
			_ = closer.Close()
		}
		if provider.Variant() != locate.VariantBrowser {
			t.Errorf("expected browser variant, got %s", provider.Variant())
		}
	})
}

func TestService_Run(t *testing.T) {
	t.Run("locate on start resolves the address and prints it", func(t *testing.T) {
		t.Setenv("WHEREAMI_GEOCODER_APIKEY", "pk.test")
		serv, err := testService(t)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		serv.httpClient.Transport = testhelper.MockRoundTripper{
			Fn: testhelper.FileResponder(t, stdhttp.StatusOK, testFileLocationIQ),
		}
		buf := &syncBuffer{}
		serv.output = buf

		ctx, cancel := context.WithCancel(t.Context())
		errChan := make(chan error, 1)
		go func() {
			errChan <- serv.Run(ctx)
		}()

		if !buf.waitFor(`"ready"`, time.Second*5) {
			t.Fatalf("expected a ready output line, got %q", buf.String())
		}
		cancel()
		if err = <-errChan; err != nil {
			t.Fatalf("failed to run service: %s", err)
		}

		last := buf.lastLine(`"ready"`)
		var output presenter.Output
		if err = json.Unmarshal([]byte(last), &output); err != nil {
			t.Fatalf("failed to unmarshal output: %s", err)
		}
		if !strings.Contains(output.Text, "Avenida Paulista, 1000, São Pa...") {
			t.Errorf("expected address in bar text, got %q", output.Text)
		}
		if output.Alt != "ready" {
			t.Errorf("expected alt to be ready, got %q", output.Alt)
		}
	})
	t.Run("missing api key shows a notice", func(t *testing.T) {
		t.Setenv("WHEREAMI_GEOCODER_APIKEY", "")
		serv, err := testService(t)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		buf := &syncBuffer{}
		serv.output = buf

		ctx, cancel := context.WithCancel(t.Context())
		errChan := make(chan error, 1)
		go func() {
			errChan <- serv.Run(ctx)
		}()
		if !buf.waitFor("WHEREAMI_GEOCODER_APIKEY", time.Second*5) {
			t.Fatalf("expected configuration notice in output, got %q", buf.String())
		}
		cancel()
		if err = <-errChan; err != nil {
			t.Fatalf("failed to run service: %s", err)
		}
	})
	t.Run("starting service fails due to invalid geocoding provider", func(t *testing.T) {
		serv, err := testService(t)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		serv.config.Geocoder.Provider = "invalid"
		err = serv.Run(t.Context())
		if err == nil {
			t.Fatal("expected service to fail")
		}
		wantErr := `failed to create geocode provider: unsupported geocoder type: invalid`
		if !strings.Contains(err.Error(), wantErr) {
			t.Errorf("expected error to contain %q, got %q", wantErr, err)
		}
	})
}

func TestService_render(t *testing.T) {
	t.Run("print output without machine is a no-op", func(t *testing.T) {
		serv, err := testService(t)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		buf := &syncBuffer{}
		serv.output = buf
		serv.printOutput(t.Context())
		if buf.String() != "" {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})
	t.Run("disabled waybar output prints nothing", func(t *testing.T) {
		serv, err := testService(t)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		serv.config.Output.DisableWaybar = true
		buf := &syncBuffer{}
		serv.output = buf
		serv.render(acquire.State{Phase: acquire.Idle})
		if buf.String() != "" {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})
	t.Run("failing writer is logged", func(t *testing.T) {
		serv, err := testService(t)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		logBuf := bytes.NewBuffer(nil)
		serv.logger = logger.NewLogger(slog.LevelError, logBuf)
		serv.output = failWriter{}
		serv.render(acquire.State{Phase: acquire.Idle})
		if !strings.Contains(logBuf.String(), "failed to encode output") {
			t.Errorf("expected encode error to be logged, got %q", logBuf.String())
		}
	})
}

func TestService_signals(t *testing.T) {
	t.Run("SIGUSR1 locates and SIGUSR2 copies the address", func(t *testing.T) {
		serv, err := testService(t)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		clip := &stubClipboard{written: make(chan string, 1)}
		serv.clipboard = clip
		serv.machine = acquire.New(&fakeProvider{sample: geo.NewSample(paulista, time.Now(), "fake")},
			&fakeGeocoder{}, serv.logger)

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		sigChan := make(chan os.Signal)
		go serv.HandleSignals(ctx, sigChan)

		sigChan <- syscall.SIGUSR1
		waitForPhase(t, serv.machine, acquire.Ready)

		sigChan <- syscall.SIGUSR2
		select {
		case text := <-clip.written:
			if text != "Avenida Paulista, 1000, São Paulo - São Paulo" {
				t.Errorf("unexpected clipboard content %q", text)
			}
		case <-time.After(time.Second * 5):
			t.Fatal("address was not copied")
		}
	})
	t.Run("locate from failed retries the failed operation", func(t *testing.T) {
		serv, err := testService(t)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		coder := &fakeGeocoder{err: failure.New(failure.NetworkError, "connection refused")}
		provider := &fakeProvider{sample: geo.NewSample(paulista, time.Now(), "fake")}
		serv.machine = acquire.New(provider, coder, serv.logger)

		serv.locateOrRetry(t.Context())
		serv.machine.Wait()
		if serv.machine.Snapshot().Phase != acquire.Failed {
			t.Fatalf("expected failed phase, got %s", serv.machine.Snapshot().Phase)
		}

		coder.setErr(nil)
		serv.locateOrRetry(t.Context())
		serv.machine.Wait()
		if serv.machine.Snapshot().Phase != acquire.Ready {
			t.Fatalf("expected ready phase, got %s", serv.machine.Snapshot().Phase)
		}
		if provider.callCount() != 1 {
			t.Errorf("expected geocoding retry without a new fix, got %d provider calls", provider.callCount())
		}
	})
	t.Run("copy without address fails", func(t *testing.T) {
		serv, err := testService(t)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		serv.machine = acquire.New(&fakeProvider{}, &fakeGeocoder{}, serv.logger)
		if err = serv.copyAddress(t.Context()); !errors.Is(err, acquire.ErrNoAddress) {
			t.Errorf("expected %s, got %v", acquire.ErrNoAddress, err)
		}
	})
}

func TestIsResume(t *testing.T) {
	member := login1Interface + "." + sleepMember
	tests := []struct {
		name string
		sig  *dbus.Signal
		want bool
	}{
		{"nil signal", nil, false},
		{"resume", &dbus.Signal{Name: member, Body: []any{false}}, true},
		{"going to sleep", &dbus.Signal{Name: member, Body: []any{true}}, false},
		{"other member", &dbus.Signal{Name: login1Interface + ".PrepareForShutdown", Body: []any{false}}, false},
		{"malformed body", &dbus.Signal{Name: member, Body: []any{"false"}}, false},
		{"empty body", &dbus.Signal{Name: member}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isResume(tc.sig); got != tc.want {
				t.Errorf("expected %t, got %t", tc.want, got)
			}
		})
	}
}

type fakeProvider struct {
	mu     sync.Mutex
	sample geo.Sample
	err    error
	calls  int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Variant() locate.Variant { return locate.VariantDevice }

func (f *fakeProvider) Acquire(context.Context, locate.Options) (geo.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.sample, f.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGeocoder struct {
	mu  sync.Mutex
	err error
}

func (f *fakeGeocoder) Name() string { return "fake" }

func (f *fakeGeocoder) Reverse(context.Context, float64, float64) (geocode.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return geocode.Address{}, f.err
	}
	return geocode.Address{
		Formatted:   "Avenida Paulista, 1000, São Paulo - São Paulo",
		DisplayName: "1000, Avenida Paulista, Bela Vista, São Paulo",
	}, nil
}

func (f *fakeGeocoder) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type stubClipboard struct {
	written chan string
}

func (s *stubClipboard) Write(_ context.Context, text string) error {
	s.written <- text
	return nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) waitFor(needle string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if strings.Contains(b.String(), needle) {
			return true
		}
		time.Sleep(time.Millisecond * 10)
	}
	return false
}

func (b *syncBuffer) lastLine(needle string) string {
	var last string
	for _, line := range strings.Split(b.String(), "\n") {
		if strings.Contains(line, needle) {
			last = line
		}
	}
	return last
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) {
	return 0, errors.New("intentionally failing")
}

func waitForPhase(t *testing.T, machine *acquire.Machine, phase acquire.Phase) {
	t.Helper()
	deadline := time.Now().Add(time.Second * 5)
	for time.Now().Before(deadline) {
		machine.Wait()
		if machine.Snapshot().Phase == phase {
			return
		}
		time.Sleep(time.Millisecond * 10)
	}
	t.Fatalf("machine did not reach phase %s, got %s", phase, machine.Snapshot().Phase)
}

func testService(t *testing.T) (*Service, error) {
	t.Helper()
	conf, err := config.New()
	if err != nil {
		t.Fatalf("failed to load config: %s", err)
	}
	serv, err := New(conf, logger.NewLogger(slog.LevelError, io.Discard))
	if err != nil {
		return nil, err
	}
	serv.selectProvider = func(context.Context) locate.Provider {
		return &fakeProvider{sample: geo.NewSample(paulista, time.Now(), "fake")}
	}
	serv.watchSleep = nil
	serv.signalSrc = nopSignalSource{}
	return serv, nil
}

type nopSignalSource struct{}

func (nopSignalSource) Notify(chan<- os.Signal, ...os.Signal) {}

func (nopSignalSource) Stop(chan<- os.Signal) {}
