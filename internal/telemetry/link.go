// Package telemetry streams controller samples to a ground station over a
// line-oriented serial link and fans inbound lines out to subscribers.
//
// Lines are opaque: inbound text is delivered as-is and outbound samples
// are single-line JSON objects.
package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrWriteFailed is returned on a short write.
	ErrWriteFailed = errors.New("failed to write to telemetry port")
	// ErrClosed is returned when writing to a closed link.
	ErrClosed = errors.New("telemetry link closed")
)

// Sample is one telemetry record.
type Sample struct {
	Tick            uint64  `json:"tick"`
	TimeUs          uint64  `json:"t_us"`
	Throttle        float32 `json:"thr"`
	Roll            float32 `json:"roll"`
	Pitch           float32 `json:"pitch"`
	Yaw             float32 `json:"yaw"`
	Phi             float32 `json:"phi"`
	Theta           float32 `json:"theta"`
	Psi             float32 `json:"psi"`
	DtermCutoffHz   float32 `json:"dterm_hz"`
	LoopStartCycles uint32  `json:"loop_start_cyc"`
	SkippedTicks    uint64  `json:"skipped"`
}

// Link multiplexes one telemetry port. Writes are serialised; every
// inbound line goes to every subscriber that is ready to receive it.
type Link[T Porter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	writeMu      sync.Mutex
	closing      bool
	closingMu    sync.Mutex
	sent         uint64
}

// NewLink wraps port.
func NewLink[T Porter](port T) *Link[T] {
	return &Link[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// Subscribe returns an ID and a channel of inbound lines. The channel is
// buffered; lines are dropped for subscribers that fall behind.
func (l *Link[T]) Subscribe() (string, chan string) {
	id := uuid.NewString()
	ch := make(chan string, 16)
	l.subscriberMu.Lock()
	defer l.subscriberMu.Unlock()
	l.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (l *Link[T]) Unsubscribe(id string) {
	l.subscriberMu.Lock()
	defer l.subscriberMu.Unlock()
	if ch, ok := l.subscribers[id]; ok {
		close(ch)
		delete(l.subscribers, id)
	}
}

func (l *Link[T]) isClosing() bool {
	l.closingMu.Lock()
	defer l.closingMu.Unlock()
	return l.closing
}

// SendLine writes line to the port, adding a trailing newline if missing.
func (l *Link[T]) SendLine(line string) error {
	if l.isClosing() {
		return ErrClosed
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	n, err := l.port.Write([]byte(line))
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	l.sent++
	return nil
}

// Publish writes s as one JSON line.
func (l *Link[T]) Publish(s Sample) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}
	return l.SendLine(string(b))
}

// Sent returns the number of lines written.
func (l *Link[T]) Sent() uint64 {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.sent
}

// Monitor reads lines from the port until ctx is cancelled, the port
// reaches EOF, or the link is closed.
func (l *Link[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(l.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking Scan runs in its own goroutine so cancellation is not
	// held up by a quiet port.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			if l.isClosing() {
				return nil
			}

			l.subscriberMu.Lock()
			for _, ch := range l.subscribers {
				select {
				case ch <- line:
				default:
				}
			}
			l.subscriberMu.Unlock()
		}
	}
}

// Close closes all subscriber channels and the port.
func (l *Link[T]) Close() error {
	l.closingMu.Lock()
	l.closing = true
	l.closingMu.Unlock()

	l.subscriberMu.Lock()
	defer l.subscriberMu.Unlock()
	for id, ch := range l.subscribers {
		close(ch)
		delete(l.subscribers, id)
	}
	return l.port.Close()
}
