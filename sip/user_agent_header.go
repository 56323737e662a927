package sip

import (
	"io"
	"strings"
)

// DefaultUserAgent is the value sipkit advertises in outgoing requests
// that carry no explicit User-Agent, RFC 3261 20.41.
const DefaultUserAgent = "sipkit"

// UserAgentHeader carries the User-Agent header (RFC 3261 20.41), sent
// by a UAC to identify the software originating a request.
type UserAgentHeader string

func (h *UserAgentHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *UserAgentHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	buffer.WriteString(h.Value())
}

func (h *UserAgentHeader) Name() string { return "User-Agent" }

func (h *UserAgentHeader) Value() string {
	if h == nil {
		return ""
	}
	return string(*h)
}

func (h *UserAgentHeader) headerClone() Header { return h }

// ServerHeader carries the Server header (RFC 3261 20.35), the UAS
// counterpart of UserAgentHeader: sent in responses to identify the
// software generating them. Same grammar as User-Agent, distinct
// header name, so it is not worth sharing a base type over.
type ServerHeader string

func (h *ServerHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *ServerHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	buffer.WriteString(h.Value())
}

func (h *ServerHeader) Name() string { return "Server" }

func (h *ServerHeader) Value() string {
	if h == nil {
		return ""
	}
	return string(*h)
}

func (h *ServerHeader) headerClone() Header { return h }
