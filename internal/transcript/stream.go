package transcript

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/logging"
)

// Stream consumes transcript events from the recognition service over a
// WebSocket connection. Events are delivered in arrival order on the
// Events channel, which is closed when the connection ends.
type Stream struct {
	conn      *websocket.Conn
	events    chan Event
	log       zerolog.Logger
	closeOnce sync.Once
}

// DialStream connects to the transcript event endpoint and starts the
// read loop.
func DialStream(url string, header http.Header) (*Stream, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, fmt.Errorf("connect transcript stream: %w", err)
	}

	s := &Stream{
		conn:   conn,
		events: make(chan Event, 100),
		log:    logging.WithComponent("transcript-stream"),
	}
	go s.readLoop()
	return s, nil
}

func (s *Stream) readLoop() {
	defer close(s.events)
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Error().Err(err).Msg("transcript stream closed unexpectedly")
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil {
			s.log.Warn().Err(err).Msg("skipping malformed transcript event")
			continue
		}
		if ev.SegmentID == "" {
			s.log.Warn().Msg("skipping transcript event without segment id")
			continue
		}
		s.events <- ev
	}
}

// Events returns the inbound event channel.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Close closes the connection; the read loop drains and closes Events.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}
