// Package transport streams captured PCM chunks to the external
// recognition service over an AudioSocket connection.
package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/CyCoreSystems/audiosocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/audio"
	"github.com/livecap/livecap/internal/logging"
)

// DialTimeout bounds the transport connection attempt.
const DialTimeout = 5 * time.Second

// Dial connects to the recognition transport address.
func Dial(addr string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect recognition transport: %w", err)
	}
	return conn, nil
}

// Sender writes PCM chunks as AudioSocket slin messages. The session id
// is announced before the first chunk; Close sends a hangup and releases
// the connection.
type Sender struct {
	conn net.Conn
	id   uuid.UUID
	log  zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewSender announces the session id on conn and returns the sender.
func NewSender(conn net.Conn, id uuid.UUID) (*Sender, error) {
	s := &Sender{
		conn: conn,
		id:   id,
		log:  logging.WithSession("transport", id.String()),
	}
	if _, err := conn.Write(audiosocket.IDMessage(id)); err != nil {
		return nil, fmt.Errorf("send id message: %w", err)
	}
	return s, nil
}

// SendChunk writes one PCM chunk as a slin message.
func (s *Sender) SendChunk(frame audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return net.ErrClosed
	}

	payload := audio.EncodePCM16(frame.Samples)
	if _, err := s.conn.Write(audiosocket.SlinMessage(payload)); err != nil {
		return fmt.Errorf("send audio chunk: %w", err)
	}
	return nil
}

// Close sends a hangup message and closes the connection. Idempotent.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if _, err := s.conn.Write(audiosocket.HangupMessage()); err != nil {
		s.log.Warn().Err(err).Msg("hangup message not delivered")
	}
	return s.conn.Close()
}
