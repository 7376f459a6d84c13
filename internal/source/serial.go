// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
)

// maxLineLength caps a single buffered sentence. NMEA limits sentences to
// 82 characters; anything much longer is line noise.
const maxLineLength = 1024

// SerialOptions describes the receiver's serial link.
type SerialOptions struct {
	PortName string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string // "none", "odd", "even"
}

// Serial reads sentences from a GPS receiver attached to a serial port.
// The port is opened when Run starts and closed when Run returns.
type Serial struct {
	opts serial.OpenOptions
	open func(serial.OpenOptions) (io.ReadWriteCloser, error)
}

// NewSerial validates opts. The port itself is not touched until Run.
func NewSerial(opts SerialOptions) (*Serial, error) {
	if opts.PortName == "" {
		return nil, fmt.Errorf("%w: serial port name is empty", ErrSourceUnavailable)
	}

	var parity serial.ParityMode
	switch strings.ToLower(opts.Parity) {
	case "", "none":
		parity = serial.PARITY_NONE
	case "odd":
		parity = serial.PARITY_ODD
	case "even":
		parity = serial.PARITY_EVEN
	default:
		return nil, fmt.Errorf("unsupported parity %q", opts.Parity)
	}

	if opts.BaudRate <= 0 || opts.DataBits < 5 || opts.DataBits > 8 ||
		(opts.StopBits != 1 && opts.StopBits != 2) {
		return nil, fmt.Errorf("invalid serial settings: baud=%d data=%d stop=%d",
			opts.BaudRate, opts.DataBits, opts.StopBits)
	}

	return &Serial{
		opts: serial.OpenOptions{
			PortName:   opts.PortName,
			BaudRate:   uint(opts.BaudRate),
			DataBits:   uint(opts.DataBits),
			StopBits:   uint(opts.StopBits),
			ParityMode: parity,
			// Return from Read every 100ms even when the receiver is
			// silent so cancellation is noticed promptly.
			InterCharacterTimeout: 100,
			MinimumReadSize:       0,
		},
		open: serial.Open,
	}, nil
}

func (s *Serial) Run(ctx context.Context, emit func(line string)) error {
	port, err := s.open(s.opts)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrSourceUnavailable, s.opts.PortName, err)
	}
	slog.Info("Serial port opened", "port", s.opts.PortName, "baud", s.opts.BaudRate)

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := port.Close(); err != nil {
				slog.Warn("Serial port close failed", "port", s.opts.PortName, "error", err)
			}
		})
	}
	defer release()
	// Closing the port unblocks a Read that ignores the timeout.
	stop := context.AfterFunc(ctx, release)
	defer stop()

	buf := make([]byte, 256)
	var pending []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := port.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending = splitLines(pending, emit)
			if len(pending) > maxLineLength {
				pending = pending[:0]
			}
		}

		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			// A tty read that times out with no data surfaces as io.EOF.
			if errors.Is(readErr, io.EOF) {
				continue
			}
			return fmt.Errorf("serial read %s: %w", s.opts.PortName, readErr)
		}
	}
}

// splitLines emits every complete line in data and returns the unfinished
// remainder.
func splitLines(data []byte, emit func(string)) []byte {
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return data
		}
		line := strings.TrimSpace(string(data[:i]))
		data = data[i+1:]
		if line != "" {
			emit(line)
		}
	}
}
