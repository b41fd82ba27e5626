package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sifilabs/sifi-bridge-go/internal/record"
)

// jsonlFrame is the on-disk shape of one frame.
type jsonlFrame struct {
	Channel   string    `json:"channel"`
	Timestamp int64     `json:"timestamp"`
	Samples   []float64 `json:"samples"`
}

// JSONLSink appends one JSON object per frame to a file, newline-delimited.
// Output is buffered; Close flushes.
type JSONLSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
	closed bool
}

var _ FrameSink = (*JSONLSink)(nil)

// NewJSONLSink creates or truncates path.
func NewJSONLSink(path string) (*JSONLSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	writer := bufio.NewWriter(file)

	return &JSONLSink{
		file:   file,
		writer: writer,
		enc:    json.NewEncoder(writer),
	}, nil
}

// WriteFrame implements FrameSink.
func (s *JSONLSink) WriteFrame(frame *record.DataFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNotConnected
	}

	err := s.enc.Encode(jsonlFrame{
		Channel:   frame.ChannelID,
		Timestamp: frame.Timestamp,
		Samples:   frame.Samples,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return nil
}

// Close flushes buffered frames and closes the file. Safe to call twice.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	if err := s.writer.Flush(); err != nil {
		s.file.Close()

		return fmt.Errorf("%w: flush: %w", ErrWriteFailed, err)
	}

	return s.file.Close()
}
