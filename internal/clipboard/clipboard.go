// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package clipboard writes text to the desktop clipboard through an external helper such as
// wl-copy or xclip.
package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultCommand = "wl-copy"
	DefaultTimeout = time.Second * 5
)

var ErrNoCommand = errors.New("no clipboard command configured")

// Writer is the write-only clipboard used by the presentation layer.
type Writer interface {
	Write(ctx context.Context, text string) error
}

// Command writes to the clipboard by piping the text to the stdin of a helper program.
type Command struct {
	name    string
	args    []string
	timeout time.Duration
}

// New parses command into program and arguments, e.g. "xclip -selection clipboard".
func New(command string) (*Command, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, ErrNoCommand
	}
	return &Command{
		name:    fields[0],
		args:    fields[1:],
		timeout: DefaultTimeout,
	}, nil
}

// String returns the command line.
func (c *Command) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}

func (c *Command) Write(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stderr := bytes.NewBuffer(nil)
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("failed to run clipboard command %q: %w: %s", c.name, err, msg)
		}
		return fmt.Errorf("failed to run clipboard command %q: %w", c.name, err)
	}
	return nil
}
