// Package stack wires the sip transport and transaction layers into a
// single dispatcher and exposes request/response handling through a
// small Core interface, the way emiago/sipgo's root Server/UserAgent
// pair wires transport.Layer and transaction.Layer together.
package stack

import "github.com/sipkit/sipkit/sip"

// Core is the application-level sink a Stack dispatches matched SIP
// traffic to. A Core implementation decides what to do with requests
// (respond, proxy, start a dialog) and observes responses/errors that
// the transaction layer could not attribute to anything it is tracking.
type Core interface {
	// ReceiveRequest is called once per new server transaction. tx is
	// nil when req is an ACK that the router could not match to an
	// existing INVITE transaction (RFC 3261 13.3.1.4: the server
	// transaction for a 2xx-acked INVITE is already gone by the time
	// the ACK arrives), so there is nothing to Respond() to or
	// Terminate().
	ReceiveRequest(req *sip.Request, tx *sip.ServerTx)

	// ReceiveResponse is called for a response the transaction layer
	// could not match to any client transaction it created. tx is
	// always nil; matched responses are delivered on the ClientTx
	// returned from Stack.Request instead.
	ReceiveResponse(res *sip.Response, tx *sip.ClientTx)

	// ReceiveError reports a validation failure or transaction error
	// not otherwise attributable to a request/response callback. key
	// is the peer address or transaction key involved, when known.
	ReceiveError(err error, key string)
}

// CoreFuncs adapts plain functions to Core, for callers that only
// care about a subset of events.
type CoreFuncs struct {
	OnRequest  func(req *sip.Request, tx *sip.ServerTx)
	OnResponse func(res *sip.Response, tx *sip.ClientTx)
	OnError    func(err error, key string)
}

func (c CoreFuncs) ReceiveRequest(req *sip.Request, tx *sip.ServerTx) {
	if c.OnRequest != nil {
		c.OnRequest(req, tx)
	}
}

func (c CoreFuncs) ReceiveResponse(res *sip.Response, tx *sip.ClientTx) {
	if c.OnResponse != nil {
		c.OnResponse(res, tx)
	}
}

func (c CoreFuncs) ReceiveError(err error, key string) {
	if c.OnError != nil {
		c.OnError(err, key)
	}
}
