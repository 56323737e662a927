package stack

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sipkit/sipkit/sip"
)

// TestStackReceiveRawDispatchesWithoutSocket exercises ReceiveRaw
// directly against a byte slice, bypassing ListenAndServe/ServeUDP
// entirely: the caller owns ingress, the stack only parses and routes.
func TestStackReceiveRawDispatchesWithoutSocket(t *testing.T) {
	received := make(chan *sip.Request, 1)
	core := CoreFuncs{
		OnRequest: func(req *sip.Request, tx *sip.ServerTx) {
			received <- req
			if tx != nil {
				res := sip.NewResponseFromRequest(req, sip.StatusOK, "OK", nil)
				require.NoError(t, tx.Respond(res))
			}
		},
	}

	s := New(net.DefaultResolver, nil, core)
	defer s.Close()

	raw := fmt.Sprintf("OPTIONS sip:bob@biloxi.com SIP/2.0\r\n"+
		"Via: SIP/2.0/UDP 203.0.113.9:5060;branch=z9hG4bK776asdhds;rport\r\n"+
		"From: Alice <sip:alice@atlanta.com>;tag=1928301774\r\n"+
		"To: Bob <sip:bob@biloxi.com>\r\n"+
		"Call-ID: receiveraw-%d@atlanta.com\r\n"+
		"CSeq: 1 OPTIONS\r\n"+
		"Max-Forwards: 70\r\n"+
		"Content-Length: 0\r\n"+
		"\r\n", time.Now().UnixNano())

	err := s.ReceiveRaw([]byte(raw), "udp", "203.0.113.9", 5060)
	require.NoError(t, err)

	select {
	case req := <-received:
		require.Equal(t, sip.OPTIONS, req.Method)
		require.Equal(t, "UDP", req.Transport())
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached core")
	}
}

// TestStackReceiveRawRejectsInvalidMessage confirms ReceiveRaw runs
// the same validator as socket ingress: a missing From tag should
// reach Core.OnError, not Core.OnRequest.
func TestStackReceiveRawRejectsInvalidMessage(t *testing.T) {
	received := make(chan *sip.Request, 1)
	errs := make(chan error, 1)
	core := CoreFuncs{
		OnRequest: func(req *sip.Request, tx *sip.ServerTx) { received <- req },
		OnError:   func(err error, key string) { errs <- err },
	}

	s := New(net.DefaultResolver, nil, core)
	defer s.Close()

	raw := "OPTIONS sip:bob@biloxi.com SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP 203.0.113.9:5060;branch=z9hG4bK776asdhds\r\n" +
		"From: Alice <sip:alice@atlanta.com>\r\n" +
		"To: Bob <sip:bob@biloxi.com>\r\n" +
		"Call-ID: receiveraw-notag@atlanta.com\r\n" +
		"CSeq: 1 OPTIONS\r\n" +
		"Max-Forwards: 70\r\n" +
		"Content-Length: 0\r\n" +
		"\r\n"

	err := s.ReceiveRaw([]byte(raw), "udp", "203.0.113.9", 5060)
	require.NoError(t, err)

	select {
	case <-received:
		t.Fatal("invalid request reached core")
	case err := <-errs:
		require.ErrorIs(t, err, sip.ErrValidateFromTag)
	case <-time.After(2 * time.Second):
		t.Fatal("validator never ran")
	}
}

// TestStackTerminateStopsTransactionByKey confirms Terminate can stop a
// server transaction by its key without waiting out RFC 3261 timers.
func TestStackTerminateStopsTransactionByKey(t *testing.T) {
	core := CoreFuncs{
		OnRequest: func(req *sip.Request, tx *sip.ServerTx) {},
	}
	s := New(net.DefaultResolver, nil, core)
	defer s.Close()

	raw := "OPTIONS sip:bob@biloxi.com SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP 203.0.113.9:5060;branch=z9hG4bKterminate;rport\r\n" +
		"From: Alice <sip:alice@atlanta.com>;tag=1928301774\r\n" +
		"To: Bob <sip:bob@biloxi.com>\r\n" +
		"Call-ID: receiveraw-terminate@atlanta.com\r\n" +
		"CSeq: 1 OPTIONS\r\n" +
		"Max-Forwards: 70\r\n" +
		"Content-Length: 0\r\n" +
		"\r\n"

	req, ok := mustParseRequest(t, raw).(*sip.Request)
	require.True(t, ok)
	key, err := sip.ServerTxKeyMake(req)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, s.ReceiveRaw([]byte(raw), "udp", "203.0.113.9", 5060))
	}()
	<-done

	require.Eventually(t, func() bool {
		return s.Terminate(key)
	}, time.Second, 10*time.Millisecond)
}

func mustParseRequest(t *testing.T, raw string) sip.Message {
	t.Helper()
	msg, err := sip.NewParser().ParseSIP([]byte(raw))
	require.NoError(t, err)
	return msg
}
