package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"greenquote/internal/types"
)

// Writer encodes quotes as zstd-compressed JSON lines.
type Writer struct {
	zw    *zstd.Encoder
	enc   *json.Encoder
	count int
}

// NewWriter starts a compressed stream on w. Close must be called to flush
// the final frame.
func NewWriter(w io.Writer) (*Writer, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("archive: create zstd encoder: %w", err)
	}
	return &Writer{zw: zw, enc: json.NewEncoder(zw)}, nil
}

// Write appends one quote as a JSON line.
func (w *Writer) Write(q *types.Quote) error {
	if err := w.enc.Encode(q); err != nil {
		return fmt.Errorf("archive: encode quote %s: %w", q.ID, err)
	}
	w.count++
	return nil
}

// Count returns the number of quotes written.
func (w *Writer) Count() int { return w.count }

// Close flushes and closes the compressed stream. The underlying writer is
// left open.
func (w *Writer) Close() error {
	return w.zw.Close()
}

// ReadAll decodes a stream produced by Writer.
func ReadAll(r io.Reader) ([]*types.Quote, error) {
	zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("archive: create zstd decoder: %w", err)
	}
	defer zr.Close()

	var quotes []*types.Quote
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var q types.Quote
		if err := json.Unmarshal(line, &q); err != nil {
			return nil, fmt.Errorf("archive: decode line %d: %w", len(quotes)+1, err)
		}
		quotes = append(quotes, &q)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("archive: read stream: %w", err)
	}
	return quotes, nil
}
