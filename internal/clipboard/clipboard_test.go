// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package clipboard

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("command line is split into program and arguments", func(t *testing.T) {
		cmd, err := New("xclip -selection clipboard")
		if err != nil {
			t.Fatalf("failed to create clipboard command: %s", err)
		}
		if cmd.name != "xclip" {
			t.Errorf("expected program to be xclip, got %q", cmd.name)
		}
		if len(cmd.args) != 2 || cmd.args[1] != "clipboard" {
			t.Errorf("unexpected arguments %v", cmd.args)
		}
		if cmd.String() != "xclip -selection clipboard" {
			t.Errorf("unexpected command line %q", cmd.String())
		}
	})
	t.Run("empty command fails", func(t *testing.T) {
		_, err := New("   ")
		if !errors.Is(err, ErrNoCommand) {
			t.Errorf("expected error to be %s, got %v", ErrNoCommand, err)
		}
	})
}

func TestCommand_Write(t *testing.T) {
	t.Run("text is piped to the command", func(t *testing.T) {
		if _, err := exec.LookPath("sh"); err != nil {
			t.Skip("sh not available")
		}
		out := filepath.Join(t.TempDir(), "clipboard")
		cmd, err := New("sh -c cat>" + out)
		if err != nil {
			t.Fatalf("failed to create clipboard command: %s", err)
		}
		if err = cmd.Write(t.Context(), "Avenida Paulista, 1000"); err != nil {
			t.Fatalf("failed to write to clipboard: %s", err)
		}
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("failed to read clipboard file: %s", err)
		}
		if string(data) != "Avenida Paulista, 1000" {
			t.Errorf("unexpected clipboard content %q", data)
		}
	})
	t.Run("missing command fails", func(t *testing.T) {
		cmd, err := New("whereami-no-such-clipboard-helper")
		if err != nil {
			t.Fatalf("failed to create clipboard command: %s", err)
		}
		if err = cmd.Write(t.Context(), "text"); err == nil {
			t.Fatal("expected clipboard write to fail")
		}
		if !strings.Contains(err.Error(), "failed to run clipboard command") {
			t.Errorf("unexpected error %q", err)
		}
	})
}
