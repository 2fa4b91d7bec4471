package upstream

import (
	"bufio"
	"bytes"
	"io"
)

// SSEReader iterates the `data: <json>` events of an upstream SSE body
// per the framing contract in spec §4.3: lines starting with "data:"
// carry the JSON payload, a blank line terminates the event, and any
// other line is ignored.
type SSEReader struct {
	scanner *bufio.Scanner
}

// NewSSEReader wraps body's line scanner. Callers remain responsible
// for closing the underlying response body.
func NewSSEReader(body io.Reader) *SSEReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &SSEReader{scanner: scanner}
}

// Next returns the next event's JSON payload, or io.EOF when the stream
// ends cleanly.
func (r *SSEReader) Next() ([]byte, error) {
	var data bytes.Buffer
	sawData := false
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		switch {
		case len(line) == 0:
			if sawData {
				return data.Bytes(), nil
			}
			continue
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			payload := bytes.TrimPrefix(line, []byte("data:"))
			payload = bytes.TrimPrefix(payload, []byte(" "))
			data.Write(payload)
			sawData = true
		default:
			continue
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if sawData {
		return data.Bytes(), nil
	}
	return nil, io.EOF
}
