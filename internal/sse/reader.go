package sse

import (
	"bufio"
	"io"
	"strings"
)

// Frame is one parsed server-sent event.
type Frame struct {
	Event string
	Data  string
}

// Reader parses SSE frames from a byte stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next complete frame. Comment lines are skipped and
// multiple data lines are joined with "\n". A clean end of stream returns
// io.EOF; a stream that ends inside a frame returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (Frame, error) {
	var (
		frame Frame
		data  []string
		seen  bool
	)

	for {
		line, err := r.r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				if seen || strings.TrimSpace(line) != "" {
					return Frame{}, io.ErrUnexpectedEOF
				}
				return Frame{}, io.EOF
			}
			return Frame{}, err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if !seen {
				continue
			}
			if frame.Event == "" {
				frame.Event = "message"
			}
			frame.Data = strings.Join(data, "\n")
			return frame, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			frame.Event = value
			seen = true
		case "data":
			data = append(data, value)
			seen = true
		}
	}
}
