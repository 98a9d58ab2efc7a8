package streamsession

import (
	"bytes"
	"io"
)

// DefaultBoundary is the multipart boundary used by the relay.
const DefaultBoundary = "frame"

// ContentType returns the multipart response content type for boundary.
//
//	ContentType("frame") == "multipart/x-mixed-replace; boundary=frame"
func ContentType(boundary string) string {
	return "multipart/x-mixed-replace; boundary=" + boundary
}

// Chunk is one self-delimited part of the multipart response:
//
//	--<boundary>\r\nContent-Type: <tag>\r\n\r\n<payload>\r\n
//
// Payload aliases the published frame data and must not be modified.
type Chunk struct {
	Seq         uint64
	ContentType string
	Payload     []byte
	Boundary    string
}

// header returns the part preamble up to and including the blank line.
func (c Chunk) header() []byte {
	b := make([]byte, 0, len(c.Boundary)+len(c.ContentType)+24)
	b = append(b, "--"...)
	b = append(b, c.Boundary...)
	b = append(b, "\r\nContent-Type: "...)
	b = append(b, c.ContentType...)
	b = append(b, "\r\n\r\n"...)
	return b
}

var crlf = []byte("\r\n")

// Bytes returns the complete chunk as one slice (copies the payload).
func (c Chunk) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(len(c.Boundary) + len(c.ContentType) + len(c.Payload) + 26)
	c.WriteTo(&buf)
	return buf.Bytes()
}

// WriteTo writes the chunk to w without copying the payload.
func (c Chunk) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, p := range [][]byte{c.header(), c.Payload, crlf} {
		n, err := w.Write(p)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
