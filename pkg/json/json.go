// Package json provides JSON serialization with goccy/go-json on top of
// pooled buffers. Encoding happens in a buffer borrowed from a memstream.Pool;
// callers get an owned copy and the buffer goes back for the next call.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/reservoir/pkg/memstream"
)

const (
	defaultSizeHint = 4096
	// flushThreshold is how much a StreamingEncoder buffers before writing
	flushThreshold = 32 * 1024
)

var (
	sharedOnce sync.Once
	shared     *memstream.Pool
)

// Buffers returns the buffer pool used by the package-level helpers. It is
// created on first use and lives for the rest of the process.
func Buffers() *memstream.Pool {
	sharedOnce.Do(func() {
		p, err := memstream.New(memstream.Config{MaximumIdle: 64})
		if err != nil {
			// Only invalid bounds fail, and these are constant
			panic(err)
		}
		shared = p
	})
	return shared
}

func newEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// encodeInto appends v to buf without the trailing newline Encode adds.
func encodeInto(buf *bytes.Buffer, enc *gojson.Encoder, v interface{}) error {
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

// Marshal encodes v. HTML characters are not escaped.
func Marshal(v interface{}) ([]byte, error) {
	p := Buffers()
	buf := p.Get(defaultSizeHint)
	if err := encodeInto(buf, newEncoder(buf), v); err != nil {
		p.Put(buf)
		return nil, err
	}
	return p.Bytes(buf), nil
}

// MarshalIndent is like Marshal but indents the output.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	p := Buffers()
	buf := p.Get(defaultSizeHint)
	enc := newEncoder(buf)
	enc.SetIndent(prefix, indent)
	if err := encodeInto(buf, enc, v); err != nil {
		p.Put(buf)
		return nil, err
	}
	return p.Bytes(buf), nil
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalToWriter encodes v followed by a newline and writes it to w in a
// single call.
func MarshalToWriter(w io.Writer, v interface{}) error {
	p := Buffers()
	buf := p.Get(defaultSizeHint)
	defer p.Put(buf)

	if err := newEncoder(buf).Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// MarshalArray encodes values as a JSON array.
func MarshalArray(values []interface{}) ([]byte, error) {
	if len(values) == 0 {
		return []byte("[]"), nil
	}

	p := Buffers()
	buf := p.Get(defaultSizeHint)
	enc := newEncoder(buf)

	buf.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeInto(buf, enc, v); err != nil {
			p.Put(buf)
			return nil, err
		}
	}
	buf.WriteByte(']')
	return p.Bytes(buf), nil
}

// MarshalLines encodes values as newline-delimited JSON.
func MarshalLines(values []interface{}) ([]byte, error) {
	p := Buffers()
	buf := p.Get(defaultSizeHint)
	enc := newEncoder(buf)

	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			p.Put(buf)
			return nil, err
		}
	}
	return p.Bytes(buf), nil
}

// StreamingEncoder writes a sequence of values to w, either as one JSON
// array or as newline-delimited JSON. Output is batched in a pooled buffer
// and flushed every 32KB and on Close.
type StreamingEncoder struct {
	writer  io.Writer
	buf     *bytes.Buffer
	encoder *gojson.Encoder
	first   bool
	isArray bool
	pretty  bool
	err     error
}

// NewStreamingEncoder creates a streaming encoder. Close must be called to
// finish the output and release the buffer.
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	buf := Buffers().Get(flushThreshold)
	se := &StreamingEncoder{
		writer:  w,
		buf:     buf,
		encoder: newEncoder(buf),
		first:   true,
		isArray: isArray,
	}
	if isArray {
		buf.WriteByte('[')
	}
	return se
}

// SetPretty enables pretty printing
func (se *StreamingEncoder) SetPretty(pretty bool, indent string) {
	se.pretty = pretty
	if pretty {
		se.encoder.SetIndent("", indent)
	} else {
		se.encoder.SetIndent("", "")
	}
}

// Encode appends one value.
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.err != nil {
		return se.err
	}
	if se.buf == nil {
		return io.ErrClosedPipe
	}

	if se.isArray {
		if !se.first {
			se.buf.WriteByte(',')
		}
		if se.pretty {
			se.buf.WriteByte('\n')
		}
		if err := encodeInto(se.buf, se.encoder, v); err != nil {
			return err
		}
	} else if err := se.encoder.Encode(v); err != nil {
		return err
	}
	se.first = false

	if se.buf.Len() >= flushThreshold {
		return se.flush()
	}
	return nil
}

func (se *StreamingEncoder) flush() error {
	if se.buf.Len() == 0 {
		return nil
	}
	_, err := se.writer.Write(se.buf.Bytes())
	se.buf.Reset()
	if err != nil {
		se.err = err
	}
	return err
}

// Close finishes the array, if any, writes what is buffered and returns the
// buffer to the pool. It is safe to call more than once.
func (se *StreamingEncoder) Close() error {
	if se.buf == nil {
		return se.err
	}
	if se.isArray && se.err == nil {
		if se.pretty && !se.first {
			se.buf.WriteByte('\n')
		}
		se.buf.WriteByte(']')
	}
	if se.err == nil {
		_ = se.flush()
	}
	Buffers().Put(se.buf)
	se.buf = nil
	return se.err
}
