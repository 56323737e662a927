package sip

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var (
	// ErrValidateMissingHeader is returned when a header RFC 3261 8.1.1/17.1.3
	// requires for matching/routing is absent.
	ErrValidateMissingHeader = errors.New("sip: required header missing")
	// ErrValidateBadVia is returned when the topmost Via does not look like
	// a SIP/2.0 Via produced by a compliant element.
	ErrValidateBadVia = errors.New("sip: malformed Via header")
	// ErrValidateContentLength is returned when Content-Length disagrees
	// with the actual body size already assembled by the parser.
	ErrValidateContentLength = errors.New("sip: Content-Length mismatch")
	// ErrValidateFromTag is returned when a request's From header has no tag.
	ErrValidateFromTag = errors.New("sip: From header missing tag")
	// ErrValidateCSeqMethod is returned when CSeq's method does not match
	// the request line method.
	ErrValidateCSeqMethod = errors.New("sip: CSeq method mismatch")
	// ErrValidateVersion is returned for anything other than SIP/2.0.
	ErrValidateVersion = errors.New("sip: unsupported SIP version")
	// ErrValidateTransportMismatch is returned when the topmost Via's
	// claimed transport protocol does not match the transport the message
	// actually arrived on.
	ErrValidateTransportMismatch = errors.New("sip: Via transport does not match arrival transport")
)

// requiredRequestHeaders lists header accessors every request must carry
// per RFC 3261 8.1.1 before it can be matched to a transaction or routed.
func requiredRequestHeaders(req *Request) []string {
	missing := make([]string, 0, 6)
	if req.Via() == nil {
		missing = append(missing, "Via")
	}
	if req.From() == nil {
		missing = append(missing, "From")
	}
	if req.To() == nil {
		missing = append(missing, "To")
	}
	if req.CallID() == nil {
		missing = append(missing, "Call-ID")
	}
	if req.CSeq() == nil {
		missing = append(missing, "CSeq")
	}
	if req.MaxForwards() == nil {
		missing = append(missing, "Max-Forwards")
	}
	return missing
}

// Validate runs the ingress checks RFC 3261 requires before a parsed
// message is handed to the transaction layer or router: presence of the
// mandatory headers, Via well-formedness, the topmost Via's protocol
// against the transport the message actually arrived on (RFC 3261 S.18.1.2),
// Content-Length agreement with the already-parsed body, From tag
// presence, CSeq/method agreement, and protocol version. It also performs
// the RFC 3581 rport/received Via rewrite using the transport-reported
// source address, so downstream routing sees the address the packet
// actually arrived from — except over WS/WSS, whose framing already
// carries the peer's address reliably and which RFC 7118 S.5 excludes
// from this rewrite.
//
// peer is the address the message was read from, in host:port form, and
// arrivalTransport is the network (UDP, TCP, TLS, WS, WSS) it was read
// over, both as set by the transport layer on SetSource/SetTransport.
// Both may be empty for messages built in-process (never read off the wire).
func Validate(msg Message, peer string, arrivalTransport string) error {
	switch m := msg.(type) {
	case *Request:
		return validateRequest(m, peer, arrivalTransport)
	case *Response:
		return validateResponse(m, arrivalTransport)
	default:
		return fmt.Errorf("sip: unknown message type %T", msg)
	}
}

func validateRequest(req *Request, peer string, arrivalTransport string) error {
	if req.SipVersion != "SIP/2.0" {
		return fmt.Errorf("%w: %q", ErrValidateVersion, req.SipVersion)
	}

	if missing := requiredRequestHeaders(req); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrValidateMissingHeader, strings.Join(missing, ", "))
	}

	via := req.Via()
	if err := validateVia(via); err != nil {
		return err
	}
	if err := validateArrivalTransport(via, arrivalTransport); err != nil {
		return err
	}

	if from := req.From(); from.Tag() == "" {
		return ErrValidateFromTag
	}

	if cseq := req.CSeq(); cseq.MethodName != req.Method {
		return fmt.Errorf("%w: CSeq=%s request=%s", ErrValidateCSeqMethod, cseq.MethodName, req.Method)
	}

	if err := validateContentLength(req); err != nil {
		return err
	}

	rewriteViaReceived(via, peer, arrivalTransport)
	return nil
}

func validateResponse(res *Response, arrivalTransport string) error {
	if res.SipVersion != "SIP/2.0" {
		return fmt.Errorf("%w: %q", ErrValidateVersion, res.SipVersion)
	}
	if res.Via() == nil {
		return fmt.Errorf("%w: Via", ErrValidateMissingHeader)
	}
	if res.From() == nil {
		return fmt.Errorf("%w: From", ErrValidateMissingHeader)
	}
	if res.To() == nil {
		return fmt.Errorf("%w: To", ErrValidateMissingHeader)
	}
	if res.CallID() == nil {
		return fmt.Errorf("%w: Call-ID", ErrValidateMissingHeader)
	}
	if res.CSeq() == nil {
		return fmt.Errorf("%w: CSeq", ErrValidateMissingHeader)
	}
	via := res.Via()
	if err := validateVia(via); err != nil {
		return err
	}
	if err := validateArrivalTransport(via, arrivalTransport); err != nil {
		return err
	}
	return validateContentLength(res)
}

// validateArrivalTransport enforces RFC 3261 S.18.1.2: a UA processing a
// message checks that the topmost Via's sent-protocol equals the
// transport it arrived on. arrivalTransport empty means the message was
// never read off a socket (built in-process, or a test), so there is
// nothing to check against.
func validateArrivalTransport(via *ViaHeader, arrivalTransport string) error {
	if arrivalTransport == "" {
		return nil
	}
	if !strings.EqualFold(via.Transport, arrivalTransport) {
		return fmt.Errorf("%w: via=%s arrived=%s", ErrValidateTransportMismatch, via.Transport, arrivalTransport)
	}
	return nil
}

// validateVia checks the topmost hop only; hops added by upstream
// elements are untouched relay state we do not police.
func validateVia(via *ViaHeader) error {
	if via == nil {
		return fmt.Errorf("%w: Via", ErrValidateMissingHeader)
	}
	if via.ProtocolName != "SIP" || via.ProtocolVersion != "2.0" {
		return fmt.Errorf("%w: protocol %s/%s", ErrValidateBadVia, via.ProtocolName, via.ProtocolVersion)
	}
	if via.Host == "" {
		return fmt.Errorf("%w: empty sent-by host", ErrValidateBadVia)
	}
	if branch, ok := via.Params.Get("branch"); !ok || !strings.HasPrefix(branch, RFC3261BranchMagicCookie) {
		return fmt.Errorf("%w: branch missing magic cookie", ErrValidateBadVia)
	}
	return nil
}

func validateContentLength(msg Message) error {
	cl := msg.ContentLength()
	if cl == nil {
		return nil
	}
	if int(*cl) != len(msg.Body()) {
		return fmt.Errorf("%w: header=%d actual=%d", ErrValidateContentLength, int(*cl), len(msg.Body()))
	}
	return nil
}

// rewriteViaReceived implements RFC 3581 S.4 server behavior: when the
// topmost Via carries an rport parameter, record the actual source
// address/port so responses routed back through Destination() reach the
// NATed client rather than its advertised sent-by. WS/WSS transports are
// exempt: their handshake already pins the connection to one peer, and
// rewriting received/rport on top of that breaks clients that match
// responses against the Via they sent (RFC 7118 S.5).
func rewriteViaReceived(via *ViaHeader, peer string, arrivalTransport string) {
	if peer == "" || via.Params == nil {
		return
	}
	if isWebSocketTransport(arrivalTransport) {
		return
	}
	if _, hasRport := via.Params.Get("rport"); !hasRport {
		return
	}
	host, portStr, err := net.SplitHostPort(peer)
	if err != nil {
		return
	}
	if host != via.Host {
		via.Params.Add("received", host)
	}
	if port, err := strconv.Atoi(portStr); err == nil {
		via.Params.Add("rport", strconv.Itoa(port))
	}
}

func isWebSocketTransport(transport string) bool {
	switch strings.ToUpper(transport) {
	case "WS", "WSS":
		return true
	default:
		return false
	}
}
