package stack

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/sipkit/sipkit/sip"
)

// ErrNetworkNotSupported is returned by ListenAndServe/ListenAndServeTLS
// for a network argument the method does not recognise.
var ErrNetworkNotSupported = fmt.Errorf("sipkit/stack: network not supported")

// Stack bundles a sip.TransportLayer and the Router built on top of it
// behind a single handle: listeners, stateful requests/responses, and
// the stateless ACK branch used when forwarding ACKs for non-2xx
// responses.
type Stack struct {
	name   string
	tpl    *sip.TransportLayer
	router *Router

	ackBranchKey ackBranchKey
	log          *slog.Logger
	metrics      *Metrics
}

// Option configures a Stack at construction time.
type Option func(s *Stack)

// WithName gives the stack an identifying name, logged against every
// message it handles. Multiple named stacks may coexist in one process,
// each with its own transport tables and registries; a Stack built
// without this option logs under the empty name.
func WithName(name string) Option {
	return func(s *Stack) {
		s.name = name
	}
}

// WithLogger sets the logger passed to the transport and transaction
// layers.
func WithLogger(l *slog.Logger) Option {
	return func(s *Stack) {
		s.log = l
	}
}

// WithMetrics enables prometheus counters on the router.
func WithMetrics(m *Metrics) Option {
	return func(s *Stack) {
		s.metrics = m
	}
}

// WithAckBranchKey sets the HMAC key used to derive stateless ACK
// branches. There is no default: a Stack built without this option
// panics the first time it needs to forward an ACK for a non-2xx
// response, since sharing one built-in key across every deployment of
// this package would make the derivation useless as an anti-spoofing
// measure.
func WithAckBranchKey(key []byte) Option {
	return func(s *Stack) {
		s.ackBranchKey = append([]byte(nil), key...)
	}
}

// New builds a Stack over a fresh transport layer and wires core to
// receive every request/response/error the transaction layer cannot
// account for.
func New(dnsResolver *net.Resolver, tlsConfig *tls.Config, core Core, opts ...Option) *Stack {
	s := &Stack{
		log: sip.DefaultLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.name != "" && s.log != nil {
		s.log = s.log.With("stack", s.name)
	}

	tplOpts := []sip.TransportLayerOption{}
	if s.log != nil {
		tplOpts = append(tplOpts, sip.WithTransportLayerLogger(s.log))
	}
	s.tpl = sip.NewTransportLayer(dnsResolver, sip.NewParser(), tlsConfig, tplOpts...)

	routerOpts := []RouterOption{}
	if s.log != nil {
		routerOpts = append(routerOpts, WithRouterLogger(s.log))
	}
	if s.metrics != nil {
		routerOpts = append(routerOpts, WithRouterMetrics(s.metrics))
	}
	s.router = NewRouter(s.tpl, core, routerOpts...)
	return s
}

var ctxListenReady any = "sipkit/stack: listen ready"

// ListenAndServe starts a listener for the given network (udp, tcp,
// ws) and address and blocks serving it until ctx is cancelled or the
// listener errors out.
func (s *Stack) ListenAndServe(ctx context.Context, network string, addr string) error {
	network = strings.ToLower(network)

	var closer io.Closer
	go func() {
		<-ctx.Done()
		if closer != nil {
			closer.Close()
		}
	}()

	switch network {
	case "udp":
		laddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return fmt.Errorf("resolve udp address: %w", err)
		}
		conn, err := net.ListenUDP("udp", laddr)
		if err != nil {
			return fmt.Errorf("listen udp: %w", err)
		}
		closer = conn
		s.signalReady(ctx)
		return s.tpl.ServeUDP(conn)

	case "tcp", "ws":
		laddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			return fmt.Errorf("resolve tcp address: %w", err)
		}
		l, err := net.ListenTCP("tcp", laddr)
		if err != nil {
			return fmt.Errorf("listen tcp: %w", err)
		}
		closer = l
		s.signalReady(ctx)
		if network == "ws" {
			return s.tpl.ServeWS(l)
		}
		return s.tpl.ServeTCP(l)
	}
	return ErrNetworkNotSupported
}

// ListenAndServeTLS starts a secured listener (tls, wss).
func (s *Stack) ListenAndServeTLS(ctx context.Context, network string, addr string, conf *tls.Config) error {
	network = strings.ToLower(network)

	var closer io.Closer
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		if closer != nil {
			closer.Close()
		}
	}()

	switch network {
	case "tls", "wss":
		laddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			return fmt.Errorf("resolve tcp address: %w", err)
		}
		l, err := tls.Listen("tcp", laddr.String(), conf)
		if err != nil {
			return fmt.Errorf("listen tls: %w", err)
		}
		closer = l
		s.signalReady(ctx)
		if network == "wss" {
			return s.tpl.ServeWSS(l)
		}
		return s.tpl.ServeTLS(l)
	}
	return ErrNetworkNotSupported
}

func (s *Stack) signalReady(ctx context.Context) {
	if v := ctx.Value(ctxListenReady); v != nil {
		close(v.(chan struct{}))
	}
}

// Request starts a new client transaction for req and returns it once
// the first message has been written to the wire.
func (s *Stack) Request(ctx context.Context, req *sip.Request) (*sip.ClientTx, error) {
	return s.router.TransactionLayer().Request(ctx, req)
}

// Respond sends res through the server transaction matching it.
func (s *Stack) Respond(res *sip.Response) (*sip.ServerTx, error) {
	return s.router.TransactionLayer().Respond(res)
}

// ForwardACK builds the branch for an ACK being forwarded statelessly
// for a non-2xx final response and rewrites the outgoing topmost Via
// branch so retransmissions of the same ACK stay stable. orig is the
// request that started the transaction being acked.
func (s *Stack) ForwardACK(ack *sip.Request, orig *sip.Request) {
	if len(s.ackBranchKey) == 0 {
		panic("sipkit/stack: ForwardACK called without WithAckBranchKey configured")
	}
	branch := deriveAckBranch(s.ackBranchKey, orig)
	if via := ack.Via(); via != nil {
		via.Params.Add("branch", branch)
	}
}

// WriteMsg sends msg stateless, bypassing transaction matching.
func (s *Stack) WriteMsg(msg sip.Message) error {
	return s.tpl.WriteMsg(msg)
}

// ReceiveRaw feeds a single message already read off the wire by the
// caller through this stack's parse/validate/route pipeline, without
// requiring a live net.Conn. protocol is the transport it arrived over
// (udp, tcp, tls, ws, wss); peerIP/peerPort identify the sender.
//
// This is the entry point for embedders that own their own socket or
// multiplex several protocols on one fd (a SIP-over-WebRTC data
// channel, a test harness feeding captured packets) and only need this
// stack to parse and dispatch, not to own a listener.
func (s *Stack) ReceiveRaw(data []byte, protocol string, peerIP string, peerPort int) error {
	src := net.JoinHostPort(peerIP, fmt.Sprintf("%d", peerPort))
	return s.tpl.ReceiveRaw(data, protocol, src)
}

// Terminate force-stops the client or server transaction identified by
// key (sip.ClientTxKeyMake/ServerTxKeyMake) and reports whether one was
// found. It is the programmatic counterpart to letting a transaction
// run out its own timers.
func (s *Stack) Terminate(key string) bool {
	return s.router.TransactionLayer().Terminate(key)
}

// Name returns the name this stack was constructed with, or "" if none
// was given.
func (s *Stack) Name() string {
	return s.name
}

// TransportLayer returns the underlying transport layer, for tests or
// callers that need direct access to connection pooling.
func (s *Stack) TransportLayer() *sip.TransportLayer {
	return s.tpl
}

// TransactionLayer returns the underlying transaction layer.
func (s *Stack) TransactionLayer() *sip.TransactionLayer {
	return s.router.TransactionLayer()
}

// Close tears down transactions and listeners.
func (s *Stack) Close() error {
	s.router.TransactionLayer().Close()
	return s.tpl.Close()
}
