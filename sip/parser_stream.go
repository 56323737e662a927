package sip

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

var streamBufReader = sync.Pool{
	New: func() interface{} {
		// The Pool's New function should generally only return pointer
		// types, since a pointer can be put into the return interface
		// value without an allocation:
		return new(bytes.Buffer)
	},
}

// ParserStream parses one or more SIP messages from a byte stream (TCP, TLS,
// WS). Unlike ParseSIP it tolerates partial reads: Write appends, ParseNext
// returns io.ErrUnexpectedEOF until a full message has arrived.
type ParserStream struct {
	p *Parser

	buf       *bytes.Buffer
	totalRead int
}

func (p *ParserStream) reset() {
	p.totalRead = 0
}

// Reset the parser and the internal buffer.
func (p *ParserStream) Reset() {
	p.reset()
	if p.buf != nil {
		p.buf.Reset()
	}
}

// Close the parser and free the associated resources.
func (p *ParserStream) Close() {
	p.reset()
	buf := p.buf
	p.buf = nil
	if buf != nil {
		streamBufReader.Put(buf)
	}
}

// ParseSIPStream parses SIP stream and calls callback as soon first SIP message is parsed
func (p *ParserStream) ParseSIPStream(data []byte, cb func(msg Message)) error {
	if _, err := p.Write(data); err != nil {
		return err
	}
	for p.buf.Len() > 0 {
		msg, _, err := p.ParseNext()
		if err == io.ErrUnexpectedEOF {
			return ErrParseSipPartial
		} else if err != nil {
			return err
		}
		if msg == nil {
			break
		}
		cb(msg)
	}
	return nil
}

// Buffer returns an internal buffer used by the parser.
// This allows to inspect the current parser state and possibly recover the stream with Discard.
func (p *ParserStream) Buffer() *bytes.Buffer {
	if p.buf == nil {
		p.buf = streamBufReader.Get().(*bytes.Buffer)
		p.buf.Reset()
	}
	return p.buf
}

// Discard specified amount of data and reset the parser.
// Can be used to skip malformed messages and recover the stream.
func (p *ParserStream) Discard(n int) {
	p.reset()
	if p.buf != nil {
		_ = p.buf.Next(n)
	}
}

// Write data to the internal buffer. Must be called before ParseNext.
func (p *ParserStream) Write(data []byte) (int, error) {
	buf := p.Buffer()
	buf.Write(data) // This should append to our existing buffer
	return len(data), nil
}

// ParseNext parses the next SIP message from an internal buffer.
// It returns io.ErrUnexpectedEOF when more data needs to be written with Write,
// and a nil message with nil error when the buffer is simply empty.
func (p *ParserStream) ParseNext() (Message, int, error) {
	if p.buf == nil || p.buf.Len() == 0 {
		return nil, 0, nil
	}

	data := p.buf.Bytes()
	headersEnd := bytes.Index(data, []byte("\r\n\r\n"))
	if headersEnd == -1 {
		if p.buf.Len() > p.p.MaxMessageLength {
			return nil, 0, ErrMessageTooLarge
		}
		return nil, 0, io.ErrUnexpectedEOF
	}

	headerBlock := data[:headersEnd]
	contentLength, err := scanContentLength(headerBlock)
	if err != nil {
		return nil, 0, err
	}

	total := headersEnd + 4 + contentLength
	if total > p.p.MaxMessageLength {
		return nil, 0, ErrMessageTooLarge
	}
	if p.buf.Len() < total {
		return nil, 0, io.ErrUnexpectedEOF
	}

	msgData := make([]byte, total)
	copy(msgData, data[:total])

	msg, err := p.p.ParseSIP(msgData)
	if err != nil {
		return nil, 0, err
	}

	p.buf.Next(total)
	p.totalRead += total
	return msg, total, nil
}

// scanContentLength walks the header block (CRLF separated, no trailing
// blank line) looking for Content-Length/l. RFC 3261 7.5 requires it be
// present on stream transports since it is the only way to frame messages.
func scanContentLength(headerBlock []byte) (int, error) {
	lines := strings.Split(string(headerBlock), "\r\n")
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		name := HeaderToLower(strings.TrimSpace(line[:idx]))
		if name != "content-length" && name != "l" {
			continue
		}

		var cl ContentLengthHeader
		if err := parseContentLengthHeader(strings.TrimSpace(line[idx+1:]), &cl); err != nil {
			return 0, err
		}
		return int(cl), nil
	}
	return 0, ErrParseReadBodyIncomplete
}
