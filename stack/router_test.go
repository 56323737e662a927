package stack

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sipkit/sipkit/sip"
)

func TestRouterDispatchesRequestToCore(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

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

	laddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	conn, err := net.ListenUDP("udp", laddr)
	require.NoError(t, err)

	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = s.TransportLayer().ServeUDP(conn)
	}()
	<-ready

	client, err := net.DialUDP("udp", nil, conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer client.Close()

	raw := fmt.Sprintf("OPTIONS sip:bob@biloxi.com SIP/2.0\r\n"+
		"Via: SIP/2.0/UDP %s;branch=z9hG4bK776asdhds;rport\r\n"+
		"From: Alice <sip:alice@atlanta.com>;tag=1928301774\r\n"+
		"To: Bob <sip:bob@biloxi.com>\r\n"+
		"Call-ID: routertest-%d@atlanta.com\r\n"+
		"CSeq: 1 OPTIONS\r\n"+
		"Max-Forwards: 70\r\n"+
		"Content-Length: 0\r\n"+
		"\r\n", client.LocalAddr().String(), time.Now().UnixNano())

	_, err = client.Write([]byte(raw))
	require.NoError(t, err)

	select {
	case req := <-received:
		require.Equal(t, sip.OPTIONS, req.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached core")
	}
}

func TestRouterDropsInvalidMessageBeforeCore(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

	received := make(chan *sip.Request, 1)
	errs := make(chan error, 1)
	core := CoreFuncs{
		OnRequest: func(req *sip.Request, tx *sip.ServerTx) { received <- req },
		OnError:   func(err error, key string) { errs <- err },
	}

	s := New(net.DefaultResolver, nil, core)
	defer s.Close()

	laddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	conn, err := net.ListenUDP("udp", laddr)
	require.NoError(t, err)

	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = s.TransportLayer().ServeUDP(conn)
	}()
	<-ready

	client, err := net.DialUDP("udp", nil, conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer client.Close()

	// No From tag: fails Validate before reaching the transaction layer.
	raw := "OPTIONS sip:bob@biloxi.com SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP 127.0.0.1:1;branch=z9hG4bK776asdhds\r\n" +
		"From: Alice <sip:alice@atlanta.com>\r\n" +
		"To: Bob <sip:bob@biloxi.com>\r\n" +
		"Call-ID: routertest-notag@atlanta.com\r\n" +
		"CSeq: 1 OPTIONS\r\n" +
		"Max-Forwards: 70\r\n" +
		"Content-Length: 0\r\n" +
		"\r\n"

	_, err = client.Write([]byte(raw))
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
