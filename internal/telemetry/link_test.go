package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// pipePort reads from a pipe fed by the test and records writes.
type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	short   bool
	closed  bool
}

func newPipePort() *pipePort {
	r, w := io.Pipe()
	return &pipePort{r: r, w: w}
}

func (p *pipePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *pipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.short {
		return len(b) - 1, nil
	}
	return p.written.Write(b)
}

func (p *pipePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.w.Close()
	return p.r.Close()
}

func (p *pipePort) output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func TestPortOptionsNormalize(t *testing.T) {
	t.Parallel()

	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, opts)

	opts, err = PortOptions{BaudRate: 57600, Parity: " even "}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "E", opts.Parity)

	for _, bad := range []PortOptions{
		{DataBits: 9},
		{StopBits: 3},
		{Parity: "mark"},
	} {
		_, err := bad.Normalize()
		assert.Error(t, err, "%+v", bad)
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	t.Parallel()

	mode, err := PortOptions{StopBits: 2, Parity: "O"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		StopBits: serial.TwoStopBits,
		Parity:   serial.OddParity,
	}, mode)

	_, err = PortOptions{DataBits: 4}.SerialMode()
	assert.Error(t, err)
}

func TestPublishWritesJSONLines(t *testing.T) {
	t.Parallel()

	port := newPipePort()
	link := NewLink(port)

	require.NoError(t, link.Publish(Sample{Tick: 1, TimeUs: 1000, Roll: 0.25}))
	require.NoError(t, link.Publish(Sample{Tick: 2, TimeUs: 2000, Pitch: -0.5}))
	require.NoError(t, link.SendLine("# note\n"))
	assert.Equal(t, uint64(3), link.Sent())

	lines := strings.Split(strings.TrimSuffix(port.output(), "\n"), "\n")
	require.Len(t, lines, 3)

	var s Sample
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &s))
	assert.Equal(t, Sample{Tick: 2, TimeUs: 2000, Pitch: -0.5}, s)
	assert.Equal(t, "# note", lines[2])
}

func TestSendLineShortWrite(t *testing.T) {
	t.Parallel()

	port := newPipePort()
	port.short = true
	link := NewLink(port)
	assert.ErrorIs(t, link.SendLine("x"), ErrWriteFailed)
	assert.Zero(t, link.Sent())
}

func TestMonitorFansOutLines(t *testing.T) {
	t.Parallel()

	port := newPipePort()
	link := NewLink(port)
	idA, a := link.Subscribe()
	_, b := link.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- link.Monitor(ctx) }()

	_, err := io.WriteString(port.w, "arm\nmode angle\n")
	require.NoError(t, err)

	for _, ch := range []chan string{a, b} {
		for _, want := range []string{"arm", "mode angle"} {
			select {
			case got := <-ch:
				assert.Equal(t, want, got)
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	link.Unsubscribe(idA)
	_, open := <-a
	assert.False(t, open, "unsubscribed channel is closed")

	port.w.Close()
	select {
	case err := <-done:
		assert.NoError(t, err, "EOF ends monitoring cleanly")
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after EOF")
	}
}

func TestMonitorStopsOnCancel(t *testing.T) {
	t.Parallel()

	port := newPipePort()
	link := NewLink(port)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- link.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	require.NoError(t, link.Close())
}

func TestCloseClosesSubscribersAndPort(t *testing.T) {
	t.Parallel()

	port := newPipePort()
	link := NewLink(port)
	_, ch := link.Subscribe()

	require.NoError(t, link.Close())
	_, open := <-ch
	assert.False(t, open)
	assert.True(t, port.closed)
	assert.ErrorIs(t, link.Publish(Sample{}), ErrClosed)
}
