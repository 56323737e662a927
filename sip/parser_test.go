package sip

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUriSchemeCaseAndParams(t *testing.T) {
	/*
		https://datatracker.ietf.org/doc/html/rfc3261#section-19.1.3
		sip:alice@atlanta.com
		sip:alice:secretword@atlanta.com;transport=tcp
		sips:alice@atlanta.com?subject=project%20x&priority=urgent
	*/

	var uri Uri
	var err error

	for _, testCase := range []string{
		"sip:alice@atlanta.com",
		"SIP:alice@atlanta.com",
		"sIp:alice@atlanta.com",
	} {
		uri = Uri{}
		err = ParseUri(testCase, &uri)
		require.Nil(t, err)
		assert.Equal(t, "alice", uri.User)
		assert.Equal(t, "atlanta.com", uri.Host)
		assert.False(t, uri.Encrypted)
	}

	for _, testCase := range []string{
		"sips:alice@atlanta.com",
		"SIPS:alice@atlanta.com",
	} {
		uri = Uri{}
		err = ParseUri(testCase, &uri)
		require.Nil(t, err)
		assert.True(t, uri.Encrypted)
	}

	uri = Uri{}
	err = ParseUri("sips:alice@atlanta.com?subject=project%20x&priority=urgent", &uri)
	require.Nil(t, err)
	assert.Equal(t, "alice", uri.User)
	assert.Equal(t, "atlanta.com", uri.Host)
	subject, _ := uri.Headers.Get("subject")
	priority, _ := uri.Headers.Get("priority")
	assert.Equal(t, "project%20x", subject)
	assert.Equal(t, "urgent", priority)

	uri = Uri{}
	err = ParseUri("sip:bob:secret@atlanta.com:9999;rport;transport=tcp;method=REGISTER?to=sip:bob%40biloxi.com", &uri)
	require.Nil(t, err)
	assert.Equal(t, "bob", uri.User)
	assert.Equal(t, "secret", uri.Password)
	assert.Equal(t, "atlanta.com", uri.Host)
	assert.Equal(t, 9999, uri.Port)
	assert.Equal(t, 3, uri.UriParams.Length())
	transport, _ := uri.UriParams.Get("transport")
	method, _ := uri.UriParams.Get("method")
	assert.Equal(t, "tcp", transport)
	assert.Equal(t, "REGISTER", method)
	assert.Equal(t, 1, uri.Headers.Length())
}

func TestUriEquals(t *testing.T) {
	var a, b Uri
	require.NoError(t, ParseUri("sip:alice@atlanta.com", &a))
	require.NoError(t, ParseUri("sip:alice@atlanta.com:5060", &b))
	assert.True(t, a.Equals(&b, false))
	assert.True(t, a.Equals(&b, true))

	var c Uri
	require.NoError(t, ParseUri("sip:alice@atlanta.com;transport=tcp", &c))
	assert.False(t, a.Equals(&c, false))
	assert.True(t, a.Equals(&c, true))
}

func testParseHeaderOnRequest(t *testing.T, parser *Parser, header string) (*Request, Header) {
	msg := NewRequest(INVITE, Uri{})
	name := strings.Split(header, ":")[0]
	err := parser.headersParsers.parseMsgHeader(msg, header)
	require.Nil(t, err)
	return msg, msg.GetHeader(name)
}

func testParseHeader(t *testing.T, parser *Parser, header string) Header {
	_, h := testParseHeaderOnRequest(t, parser, header)
	return h
}

func TestParseHeaders(t *testing.T) {
	parser := NewParser()

	t.Run("ViaHeader", func(t *testing.T) {
		branch := GenerateBranch()
		header := "Via: SIP/2.0/UDP 127.0.0.2:5060;branch=" + branch
		h := testParseHeader(t, parser, header)
		via, ok := h.(*ViaHeader)
		require.True(t, ok)
		assert.Equal(t, "127.0.0.2", via.Host)
		assert.Equal(t, 5060, via.Port)
		b, _ := via.Params.Get("branch")
		assert.Equal(t, branch, b)
	})

	t.Run("ToHeader", func(t *testing.T) {
		header := "To: \"Bob\" <sip:bob@127.0.0.1:5060>;xxx=xxx"
		h := testParseHeader(t, parser, header)
		to, ok := h.(*ToHeader)
		require.True(t, ok)
		assert.Equal(t, "Bob", to.DisplayName)
		assert.Equal(t, "bob", to.Address.User)
	})

	t.Run("FromHeader", func(t *testing.T) {
		header := "From: \"Bob\" <sip:bob@127.0.0.1:5060>"
		h := testParseHeader(t, parser, header)
		from, ok := h.(*FromHeader)
		require.True(t, ok)
		assert.Equal(t, "Bob", from.DisplayName)
	})

	t.Run("ContactHeader", func(t *testing.T) {
		for header, expectedUser := range map[string]string{
			"Contact: sip:sipp@127.0.0.3:5060":        "sipp",
			"Contact: SIPP <sip:sipp@127.0.0.3:5060>": "sipp",
		} {
			req, _ := testParseHeaderOnRequest(t, parser, header)
			hdr := req.Contact()
			require.NotNil(t, hdr)
			assert.Equal(t, expectedUser, hdr.Address.User)
		}
	})

	t.Run("RouteHeader", func(t *testing.T) {
		header := "Route: <sip:rr$n=net_me_tls@62.109.228.74:5061;transport=tls;lr>"
		h := testParseHeader(t, parser, header)
		_, ok := h.(*RouteHeader)
		require.True(t, ok)
	})

	t.Run("RecordRouteHeader", func(t *testing.T) {
		header := "Record-Route: <sip:rr$n=net_me_tls@62.109.228.74:5061;transport=tls;lr>"
		h := testParseHeader(t, parser, header)
		_, ok := h.(*RecordRouteHeader)
		require.True(t, ok)
	})

	t.Run("MaxForwards", func(t *testing.T) {
		header := "Max-Forwards: 70"
		h := testParseHeader(t, parser, header)
		exp := MaxForwardsHeader(70)
		assert.IsType(t, &exp, h)
		assert.Equal(t, "70", h.Value())
	})
}

func TestParseBadMessages(t *testing.T) {
	parser := NewParser()

	t.Run("no empty line between header and body", func(t *testing.T) {
		rawMsg := []string{
			"SIP/2.0 180 Ringing",
			"Via: SIP/2.0/UDP 127.0.0.20:5060;branch=z9hG4bK.VYWrxJJyeEJfngAjKXELr8aPYuX8tR22;alias, SIP/2.0/UDP 127.0.0.10:5060;branch=z9hG4bK-543537-1-0",
			"Content-Length: 0",
			"v=0",
		}
		msgstr := strings.Join(rawMsg, "\r\n")
		_, err := parser.ParseSIP([]byte(msgstr))
		require.ErrorIs(t, err, ErrParseInvalidMessage)
	})
}

func TestParseRequest(t *testing.T) {
	branch := GenerateBranch()
	callid := fmt.Sprintf("gotest-%d", time.Now().UnixNano())
	parser := NewParser()

	t.Run("NoCRLF", func(t *testing.T) {
		m := "INVITE sip:10.5.0.10:5060;transport=udp SIP/2.0\nContent-Length: 0"
		_, err := parser.ParseSIP([]byte(m))
		assert.ErrorIs(t, err, ErrParseInvalidMessage)
	})

	rawMsg := []string{
		"INVITE sip:bob@127.0.0.1:5060 SIP/2.0",
		"Via: SIP/2.0/UDP 127.0.0.2:5060;branch=" + branch,
		"From: \"Alice\" <sip:alice@127.0.0.2:5060>;tag=1928301774",
		"To: \"Bob\" <sip:bob@127.0.0.1:5060>",
		"Call-ID: " + callid,
		"CSeq: 1 INVITE",
		"Contact: <sip:alice@127.0.0.2:5060;expires=3600>",
		"Content-Type: application/sdp",
		"Content-Length: 4",
		"",
		"v=0",
	}

	msgstr := strings.Join(rawMsg, "\r\n")

	msg, err := parser.ParseSIP([]byte(msgstr))
	require.Nil(t, err)

	from := msg.From()
	require.NotNil(t, from)
	to := msg.To()
	require.NotNil(t, to)

	contact := msg.GetHeaders("Contact")
	require.NotNil(t, contact)

	assert.Equal(t, "127.0.0.2:5060", from.Address.Host+":"+strconv.Itoa(from.Address.Port))
	assert.Equal(t, "127.0.0.1:5060", to.Address.Host+":"+strconv.Itoa(to.Address.Port))
}

func TestParseResponse(t *testing.T) {
	rawMsg := []string{
		"SIP/2.0 180 Ringing",
		"Via: SIP/2.0/UDP 127.0.0.20:5060;branch=z9hG4bK.VYWrxJJyeEJfngAjKXELr8aPYuX8tR22;alias, SIP/2.0/UDP 127.0.0.10:5060;branch=z9hG4bK-543537-1-0",
		"From: \"sipp\" <sip:sipp@127.0.0.10:5060>;tag=543537SIPpTag001",
		"To: \"service\" <sip:service@127.0.0.20:5060>;tag=543447SIPpTag011",
		"Call-ID: 1-543537@127.0.0.10",
		"CSeq: 1 INVITE",
		"Contact: <sip:127.0.0.30:5060;transport=UDP>",
		"Content-Length: 0",
		"",
		"",
	}

	data := []byte(strings.Join(rawMsg, "\r\n"))

	parser := NewParser()
	msg, err := parser.ParseSIP(data)
	require.Nil(t, err, err)
	r := msg.(*Response)

	via := r.Via()
	require.NotNil(t, via)
	branch, _ := via.Params.Get("branch")
	assert.Equal(t, "z9hG4bK.VYWrxJJyeEJfngAjKXELr8aPYuX8tR22", branch)

	vias := r.GetHeaders("via")
	require.Len(t, vias, 2)
	b0, _ := vias[0].(*ViaHeader).Params.Get("branch")
	b1, _ := vias[1].(*ViaHeader).Params.Get("branch")
	assert.Equal(t, "z9hG4bK.VYWrxJJyeEJfngAjKXELr8aPYuX8tR22", b0)
	assert.Equal(t, "z9hG4bK-543537-1-0", b1)
	assert.False(t, strings.Contains(vias[1].String(), ","))

	from := r.From()
	assert.Equal(t, "sipp", from.Address.User)

	to := r.To()
	assert.Equal(t, "service", to.Address.User)

	c := r.Contact()
	assert.Equal(t, "", c.Address.User)
}

func TestRegisterRequestCompactForm(t *testing.T) {
	rawMsg := []string{
		"REGISTER sip:10.5.0.10:5060;transport=udp SIP/2.0",
		"v: SIP/2.0/UDP 10.5.0.1:51477;rport;branch=z9hG4bKPj55659194-de09-497e-8cd0-978755d148bc",
		"Route: <sip:10.5.0.10:5060;transport=udp;lr>",
		"Max-Forwards: 70",
		"f: <sip:test@10.5.0.10>;tag=171a9361-dd7b-49a8-831b-16691c419860",
		"t: <sip:test@10.5.0.10>",
		"i: 6d3e7e31-f58e-4d7e-8bc3-1c7efa230424",
		"CSeq: 10330 REGISTER",
		"m: <sip:test@10.5.0.1:51477;ob>",
		"Expires: 30",
		"l:  0",
		"",
		"",
	}

	data := []byte(strings.Join(rawMsg, "\r\n"))

	parser := NewParser()
	msg, err := parser.ParseSIP(data)
	require.Nil(t, err, err)
	req := msg.(*Request)

	c := req.Contact()
	require.NotNil(t, c)
	assert.Equal(t, "test", c.Address.User)
}

func TestParseFoldedHeader(t *testing.T) {
	rawMsg := "INVITE sip:bob@biloxi.com SIP/2.0\r\n" +
		"Subject: I know you're there,\r\n" +
		" pick up the phone\r\n" +
		" and talk to me!\r\n" +
		"Content-Length: 0\r\n" +
		"\r\n"

	parser := NewParser()
	msg, err := parser.ParseSIP([]byte(rawMsg))
	require.Nil(t, err)

	h := msg.GetHeader("Subject")
	require.NotNil(t, h)
	assert.Equal(t, "I know you're there, pick up the phone and talk to me!", h.Value())
}
