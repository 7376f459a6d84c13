// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is a serial port whose receive side is fed through a pipe.
type fakePort struct {
	*io.PipeReader
	closes atomic.Int32
}

func (p *fakePort) Write(b []byte) (int, error) { return len(b), nil }

func (p *fakePort) Close() error {
	p.closes.Add(1)
	return p.PipeReader.Close()
}

func newFakeSerial(t *testing.T) (*Serial, *fakePort, *io.PipeWriter) {
	t.Helper()
	s, err := NewSerial(SerialOptions{PortName: "/dev/ttyFAKE", BaudRate: 9600, DataBits: 8, StopBits: 1})
	require.NoError(t, err)

	r, w := io.Pipe()
	port := &fakePort{PipeReader: r}
	s.open = func(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
		assert.Equal(t, "/dev/ttyFAKE", opts.PortName)
		assert.Equal(t, serial.PARITY_NONE, opts.ParityMode)
		return port, nil
	}
	return s, port, w
}

func TestNewSerial_Validation(t *testing.T) {
	_, err := NewSerial(SerialOptions{BaudRate: 9600, DataBits: 8, StopBits: 1})
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = NewSerial(SerialOptions{PortName: "/dev/x", BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "mark"})
	assert.ErrorContains(t, err, "unsupported parity")

	for _, opts := range []SerialOptions{
		{PortName: "/dev/x", BaudRate: 0, DataBits: 8, StopBits: 1},
		{PortName: "/dev/x", BaudRate: 9600, DataBits: 9, StopBits: 1},
		{PortName: "/dev/x", BaudRate: 9600, DataBits: 4, StopBits: 1},
		{PortName: "/dev/x", BaudRate: 9600, DataBits: 8, StopBits: 3},
		{PortName: "/dev/x", BaudRate: 9600, DataBits: 8, StopBits: 0},
	} {
		_, err = NewSerial(opts)
		assert.ErrorContains(t, err, "invalid serial settings", "%+v", opts)
	}

	s, err := NewSerial(SerialOptions{PortName: "/dev/x", BaudRate: 4800, DataBits: 7, StopBits: 2, Parity: "Even"})
	require.NoError(t, err)
	assert.Equal(t, serial.PARITY_EVEN, s.opts.ParityMode)
	assert.Equal(t, uint(4800), s.opts.BaudRate)
}

func TestSerial_OpenFailure(t *testing.T) {
	s, _, _ := newFakeSerial(t)
	s.open = func(serial.OpenOptions) (io.ReadWriteCloser, error) {
		return nil, errors.New("permission denied")
	}

	err := s.Run(context.Background(), func(string) {})
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorContains(t, err, "permission denied")
}

func TestSerial_SplitsLinesAcrossReads(t *testing.T) {
	s, _, w := newFakeSerial(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := newCollector()
	go func() { _ = s.Run(ctx, out.emit) }()

	for _, chunk := range []string{"$GPGGA,1", "23519,A\r\n$GPG", "SV,1\r\n\r\n", "$GPGLL,x\n"} {
		_, err := w.Write([]byte(chunk))
		require.NoError(t, err)
	}

	assert.Equal(t, "$GPGGA,123519,A", out.next(t))
	assert.Equal(t, "$GPGSV,1", out.next(t))
	assert.Equal(t, "$GPGLL,x", out.next(t))
}

func TestSerial_CancelReleasesPort(t *testing.T) {
	s, port, _ := newFakeSerial(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, func(string) {}) }()

	// Give Run time to block in Read.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("serial source did not stop")
	}
	assert.Equal(t, int32(1), port.closes.Load())
}

func TestSerial_ReadErrorIsFailure(t *testing.T) {
	s, port, w := newFakeSerial(t)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), func(string) {}) }()

	require.NoError(t, w.CloseWithError(syscall.EIO))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, syscall.EIO)
		assert.ErrorContains(t, err, "/dev/ttyFAKE")
	case <-time.After(2 * time.Second):
		t.Fatal("serial source did not report the read error")
	}
	assert.Equal(t, int32(1), port.closes.Load())
}

func TestSplitLines_DropsBlankLines(t *testing.T) {
	var got []string
	rest := splitLines([]byte("a\r\n\n  \nb\npartial"), func(s string) { got = append(got, s) })
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, "partial", string(rest))
}
