package sip

import (
	"fmt"
	"io"
	"math/rand/v2"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// parseAll writes data then drains every complete message currently
// bufferable, returning io.ErrUnexpectedEOF as the trailing error when a
// partial message remains.
func parseAll(t *testing.T, parser *ParserStream, data []byte) ([]Message, error) {
	t.Helper()
	_, err := parser.Write(data)
	require.NoError(t, err)

	var msgs []Message
	for {
		msg, _, err := parser.ParseNext()
		if err != nil {
			return msgs, err
		}
		if msg == nil {
			return msgs, nil
		}
		msgs = append(msgs, msg)
	}
}

func TestParserStreamMessage(t *testing.T) {
	p := NewParser()

	lines := []string{
		"INVITE sip:192.168.1.254:5060 SIP/2.0",
		"Via: SIP/2.0/TCP 192.168.1.155:44861;branch=z9hG4bK954690f3012120bc5d064d3f7b5d8a24;rport",
		"Call-ID: 25be1c3be64adb89fa2e86772dd99db1",
		"CSeq: 100 INVITE",
		"Contact: <sip:192.168.1.155:44861;transport=tcp>;some.tag.here;other-tag=here",
		"From: <sip:192.168.1.155>;tag=76fb12e7e2241ed6",
		"To: <sip:192.168.1.254:5060>",
		"Max-Forwards: 70",
		"Content-Type: application/sdp",
		"Content-Length: 13",
		"",
		"v=0\r\ns=-\r\n",
	}
	data := []byte(strings.Join(lines, "\r\n"))
	const bodySize = 13

	for _, c := range []struct {
		Name  string
		Split []int
	}{
		{Name: "whole", Split: []int{len(data)}},
		{Name: "few bytes", Split: []int{1, 2, 3, 4, 5, 6, len(data)}},
		{Name: "after start line", Split: []int{39, len(data)}},
		{Name: "before body", Split: []int{len(data) - bodySize, len(data)}},
		{Name: "random", Split: []int{rand.IntN(len(data)), len(data)}},
	} {
		t.Run(c.Name, func(t *testing.T) {
			parser := p.NewSIPStream()
			start := 0
			var msgs []Message
			for _, end := range c.Split {
				chunk := data[start:end]
				start = end
				got, err := parseAll(t, parser, chunk)
				msgs = append(msgs, got...)
				if err != nil {
					require.ErrorIs(t, err, io.ErrUnexpectedEOF)
				}
			}
			require.Len(t, msgs, 1)
			require.Len(t, msgs[0].Body(), bodySize)
		})
	}

	t.Run("reset", func(t *testing.T) {
		parser := p.NewSIPStream()
		require.Equal(t, 0, parser.Buffer().Len())
		parser.Close()
		require.Nil(t, parser.buf)
	})
}

func TestParserStreamChunky(t *testing.T) {
	p := NewParser()
	parser := p.NewSIPStream()

	// Broken first line, not yet terminated.
	_, err := parser.Write([]byte("INVITE sip:192.168.1.254:5060 SIP/"))
	require.NoError(t, err)
	_, _, err = parser.ParseNext()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = parser.Write([]byte("2.0\r\n"))
	require.NoError(t, err)
	_, _, err = parser.ParseNext()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	lines := []string{
		"Via: SIP/2.0/TCP 192.168.1.155:44861;branch=z9hG4bK954690f3012120bc5d064d3f7b5d8a24;rport",
		"Call-ID: 25be1c3be64adb89fa2e86772dd99db1",
		"CSeq: 100 INVITE",
		"Contact: <sip:192.168.1.155:44861;transport=tcp>;some.tag.here;other-tag=here",
		"From: <sip:192.168.1.155>;tag=76fb12e7e2241ed6",
		"To: <sip:192.168.1.254:5060>",
		"Max-Forwards: 70",
		"Content-Type: application/sdp",
		"Content-Length: 9",
		"",
		"123456789",
	}
	data := []byte(strings.Join(lines, "\r\n"))
	_, err = parser.Write(data)
	require.NoError(t, err)

	msg, _, err := parser.ParseNext()
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "123456789", string(msg.Body()))
}

func TestParserStreamMultiple(t *testing.T) {
	p := NewParser()
	parser := p.NewSIPStream()
	lines := []string{
		"SIP/2.0 100 Trying",
		"Via: SIP/2.0/TCP 192.168.100.11:56410;branch=z9hG4bK.DRYA6NEOgFJO1t91;alias",
		"From: \"sipgo\" <sip:sipgo@192.168.100.11>;tag=ywgNMIh4OhKwGSFa",
		"To: <sips:123@127.1.1.100>",
		"Call-ID: e3644aeb-f2bb-4499-9620-68b5ffd27017",
		"CSeq: 1 INVITE",
		"Content-Length: 0",
		"",
		"SIP/2.0 200 OK",
		"Via: SIP/2.0/TCP 192.168.100.11:56410;branch=z9hG4bK.DRYA6NEOgFJO1t91;alias",
		"From: \"sipgo\" <sip:sipgo@192.168.100.11>;tag=ywgNMIh4OhKwGSFa",
		"To: <sips:123@127.1.1.100>;tag=7f9b9f9b-319b-48f4-98bf-9922c498fcaf",
		"Call-ID: e3644aeb-f2bb-4499-9620-68b5ffd27017",
		"CSeq: 1 INVITE",
		"Content-Length: 3",
		"",
		"v=0",
	}

	data := []byte(strings.Join(lines, "\r\n"))

	msgs, err := parseAll(t, parser, data)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Len(t, msgs, 2)
	require.Equal(t, msgs[0].(*Response).StartLine(), "SIP/2.0 100 Trying")
	require.Equal(t, msgs[1].(*Response).StartLine(), "SIP/2.0 200 OK")

	t.Run("with chunks", func(t *testing.T) {
		parser := p.NewSIPStream()
		chunks := [][]byte{
			data[:100],
			data[100:200],
			data[200:],
		}

		var msgs []Message
		for _, c := range chunks {
			got, err := parseAll(t, parser, c)
			msgs = append(msgs, got...)
			if err != nil {
				require.ErrorIs(t, err, io.ErrUnexpectedEOF)
			}
		}
		require.Len(t, msgs, 2)
	})
}

func TestParserStreamMessageSizeLimitBody(t *testing.T) {
	p := NewParser()
	parser := p.NewSIPStream()

	lines := []string{
		"INVITE sip:192.168.1.254:5060 SIP/2.0",
		"Via: SIP/2.0/TCP 192.168.1.155:44861;branch=z9hG4bK954690f3012120bc5d064d3f7b5d8a24;rport",
		"Call-ID: 25be1c3be64adb89fa2e86772dd99db1",
		"CSeq: 100 INVITE",
		"Content-Length: 70000",
		"",
		strings.Repeat("x", 70000),
	}

	data := []byte(strings.Join(lines, "\r\n"))

	_, err := parseAll(t, parser, data)
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestParserStreamMessageSizeLimitHeaders(t *testing.T) {
	p := NewParser()
	parser := p.NewSIPStream()

	lines := []string{
		"INVITE sip:192.168.1.254:5060 SIP/2.0",
		"Via: SIP/2.0/TCP 192.168.1.155:44861;branch=z9hG4bK954690f3012120bc5d064d3f7b5d8a24;rport",
		"Call-ID: 25be1c3be64adb89fa2e86772dd99db1",
		"CSeq: 100 INVITE",
	}
	for range 6500 {
		lines = append(lines, "X-Data: 10")
	}
	lines = append(lines, "Content-Length: 0", "", "")

	data := []byte(strings.Join(lines, "\r\n"))

	_, err := parseAll(t, parser, data)
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestParserStreamMessageSizeLimitRecover(t *testing.T) {
	p := NewParser()
	parser := p.NewSIPStream()

	lines := []string{
		"INVITE sip:192.168.1.254:5060 SIP/2.0",
		"Via: SIP/2.0/TCP 192.168.1.155:44861;branch=z9hG4bK954690f3012120bc5d064d3f7b5d8a24;rport",
		"Call-ID: 25be1c3be64adb89fa2e86772dd99db1",
		"CSeq: 100 INVITE",
	}
	for range 6500 {
		lines = append(lines, "X-Data: 10")
	}
	lines = append(lines, "Content-Length: 0", "", "")

	oversized := strings.Join(lines, "\r\n")

	good := strings.Join([]string{
		"INVITE sip:192.168.1.254:5060 SIP/2.0",
		"Via: SIP/2.0/TCP 192.168.1.155:44861;branch=z9hG4bK954690f3012120bc5d064d3f7b5d8a24;rport",
		"Call-ID: 2",
		"Content-Length: 0",
		"",
		"",
	}, "\r\n")

	_, err := parser.Write([]byte(oversized))
	require.NoError(t, err)

	_, _, err = parser.ParseNext()
	require.ErrorIs(t, err, ErrMessageTooLarge)

	// recover by discarding the oversized message and feeding a good one
	parser.Discard(len(oversized))

	_, err = parser.Write([]byte(good))
	require.NoError(t, err)

	msg, _, err := parser.ParseNext()
	require.NoError(t, err)
	require.Equal(t, "2", msg.CallID().Value())
}

func TestParserStreamPartialAfterStartLine(t *testing.T) {
	p := NewParser()
	parser := p.NewSIPStream()

	lines1 := []string{
		"SIP/2.0 481 Call/Transaction Does Not Exist",
		"Via: SIP/2.0/TCP 10.10.42.37:48476;received=10.10.42.37;bran",
	}
	input1 := []byte(strings.Join(lines1, "\r\n"))

	lines2 := []string{
		"ch=z9hG4bK.9WUsakU92PFG5mIv",
		"Call-ID: 2227040c-914c-4496-a715-1a93c9501360",
		"From: \"sipgo\" <sip:sipgo@localhost>;tag=Ffl4DGpHt5yvhgU2",
		"To: <sip:Port25@10.10.42.64>;tag=z9hG4bK.9WUsakU92PFG5mIv",
		"CSeq: 1 CANCEL",
		"Content-Length:  0",
		"",
		"",
	}
	input2 := []byte(strings.Join(lines2, "\r\n"))

	_, err := parser.Write(input1)
	require.NoError(t, err)
	_, _, err = parser.ParseNext()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = parser.Write(input2)
	require.NoError(t, err)
	msg, _, err := parser.ParseNext()
	require.NoError(t, err)
	require.NotNil(t, msg)
}

func BenchmarkParserStream(b *testing.B) {
	branch := GenerateBranch()
	callid := fmt.Sprintf("gotest-%d", time.Now().UnixNano())
	rawMsg := []string{
		"INVITE sip:bob@127.0.0.1:5060 SIP/2.0",
		"Via: SIP/2.0/UDP 127.0.0.2:5060;branch=" + branch,
		"From: \"Alice\" <sip:alice@127.0.0.2:5060>;tag=1928301774",
		"To: \"Bob\" <sip:bob@127.0.0.1:5060>",
		"Call-ID: " + callid,
		"CSeq: 1 INVITE",
		"Content-Type: application/sdp",
		"Content-Length: 129",
		"",
		"v=0",
		"o=user1 53655765 2353687637 IN IP4 127.0.0.3",
		"s=-",
		"c=IN IP4 127.0.0.3",
		"t=0 0",
		"m=audio 6000 RTP/AVP 0",
		"a=rtpmap:0 PCMU/8000",
		"",
	}
	data := []byte(strings.Join(rawMsg, "\r\n"))
	parser := NewParser()

	minsize := len(data) / 3
	chunks := [][]byte{
		data[:minsize], data[minsize : minsize*2], data[minsize*2:],
	}
	b.ResetTimer()

	b.Run("NoChunks", func(b *testing.B) {
		pstream := parser.NewSIPStream()
		for i := 0; i < b.N; i++ {
			msgs, err := parseAllBench(pstream, data)
			if err != nil {
				b.Fatal("Parsing failed", err)
			}
			if req, _ := msgs[0].(*Request); !req.IsInvite() {
				b.Fatal("Not INVITE")
			}
		}
	})

	b.Run("SingleRoutine", func(b *testing.B) {
		pstream := parser.NewSIPStream()
		for i := 0; i < b.N; i++ {
			var msgs []Message
			for _, c := range chunks {
				got, err := parseAllBench(pstream, c)
				if err != nil {
					b.Fatal("Parsing failed", err)
				}
				msgs = append(msgs, got...)
			}
			if req, _ := msgs[0].(*Request); !req.IsInvite() {
				b.Fatal("Not INVITE")
			}
		}
	})

	b.Run("Paralel", func(b *testing.B) {
		b.RunParallel(func(pb *testing.PB) {
			i := 0
			pstream := parser.NewSIPStream()
			for pb.Next() {
				var msgs []Message
				for _, c := range chunks {
					got, err := parseAllBench(pstream, c)
					if err != nil {
						b.Fatal("Parsing failed", err)
					}
					msgs = append(msgs, got...)
				}
				if req, _ := msgs[0].(*Request); !req.IsInvite() {
					b.Fatal("Not INVITE")
				}

				if i%3 == 0 {
					runtime.GC()
				}
				i++
			}
		})
	})
}

func parseAllBench(parser *ParserStream, data []byte) ([]Message, error) {
	if _, err := parser.Write(data); err != nil {
		return nil, err
	}
	var msgs []Message
	for {
		msg, _, err := parser.ParseNext()
		if err != nil {
			if err == io.ErrUnexpectedEOF {
				return msgs, nil
			}
			return msgs, err
		}
		if msg == nil {
			return msgs, nil
		}
		msgs = append(msgs, msg)
	}
}
