// Package transport implements the capture-side bounded queue and the
// outbound UDP feature sender named in spec.md §5/§6. Both are thin,
// intentionally dumb boundaries: the engine owns all policy.
package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// ChunkSource is the capture collaborator's contract (§1, "thin
// adapters"): a provider of mono float samples in [-1, 1] at the
// configured sample rate and chunk size.
type ChunkSource interface {
	// Next blocks until a chunk is available or ctx is done. ok is false
	// only on shutdown.
	Next(ctx context.Context) (chunk []float32, ok bool)
}

// ChunkQueue is the bounded single-producer/single-consumer queue of
// depth 2 described in §5: oldest entry is dropped on overflow so the
// analysis thread never back-pressures capture.
type ChunkQueue struct {
	ch chan []float32
}

// NewChunkQueue creates a queue of the given depth (§5 default: 2).
func NewChunkQueue(depth int) *ChunkQueue {
	if depth < 1 {
		depth = 1
	}
	return &ChunkQueue{ch: make(chan []float32, depth)}
}

// Push enqueues a chunk, dropping the oldest queued chunk if the queue is
// already full. Never blocks.
func (q *ChunkQueue) Push(chunk []float32) (dropped bool) {
	select {
	case q.ch <- chunk:
		return false
	default:
	}
	// Full: drop the oldest entry, then retry once. Another producer
	// could race us here, but the queue is single-producer by contract.
	select {
	case <-q.ch:
		dropped = true
	default:
	}
	select {
	case q.ch <- chunk:
	default:
		// Shouldn't happen given the drain above, but never block.
		dropped = true
	}
	return dropped
}

// Pop blocks for the next chunk or until ctx is done.
func (q *ChunkQueue) Pop(ctx context.Context) ([]float32, bool) {
	select {
	case chunk := <-q.ch:
		return chunk, true
	case <-ctx.Done():
		return nil, false
	}
}

// FeatureSender is the outbound datagram sender (§6): best-effort,
// non-blocking, drops silently on failure.
type FeatureSender struct {
	conn *net.UDPConn
}

// NewFeatureSender dials the configured feature endpoint.
func NewFeatureSender(addr string) (*FeatureSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %q: %w", addr, err)
	}
	return &FeatureSender{conn: conn}, nil
}

// Send writes frame to the feature socket. Failures (including write
// deadline exceeded) are dropped silently per spec.md §7 — UDP is
// best-effort by design.
func (s *FeatureSender) Send(frame []byte) {
	s.conn.SetWriteDeadline(time.Now().Add(50 * time.Millisecond))
	_, _ = s.conn.Write(frame)
}

// Close releases the outbound socket.
func (s *FeatureSender) Close() error {
	return s.conn.Close()
}
