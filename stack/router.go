package stack

import (
	"log/slog"

	"github.com/sipkit/sipkit/sip"
)

// Router sits between a sip.TransactionLayer and a Core. It installs
// Validate at the transaction layer's message-ingress point, dispatches
// matched server transactions to Core, and forwards anything the
// transaction layer could not match (stray responses, ACKs arriving
// after the INVITE transaction already terminated on a 2xx) to Core
// as well, instead of letting them vanish into the transaction layer's
// default logging handlers.
type Router struct {
	txl     *sip.TransactionLayer
	core    Core
	log     *slog.Logger
	metrics *Metrics
}

// RouterOption configures a Router at construction time.
type RouterOption func(r *Router)

// WithRouterLogger sets the logger passed through to the underlying
// transaction layer.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		r.log = l
	}
}

// WithRouterMetrics enables prometheus counters for transaction churn,
// validator rejections and stray messages.
func WithRouterMetrics(m *Metrics) RouterOption {
	return func(r *Router) {
		r.metrics = m
	}
}

// NewRouter builds a Router over tpl and starts feeding it messages
// through a new TransactionLayer. core must not be nil.
func NewRouter(tpl *sip.TransportLayer, core Core, opts ...RouterOption) *Router {
	r := &Router{core: core}
	for _, o := range opts {
		o(r)
	}

	txlOpts := []sip.TransactionLayerOption{
		sip.WithTransactionLayerUnhandledResponseHandler(r.handleStrayResponse),
		sip.WithTransactionLayerValidator(r.validate),
	}
	if r.log != nil {
		txlOpts = append(txlOpts, sip.WithTransactionLayerLogger(r.log))
	}

	r.txl = sip.NewTransactionLayer(tpl, txlOpts...)
	r.txl.OnRequest(r.onRequest)
	return r
}

// TransactionLayer returns the transaction layer the router installed
// itself on top of. Use it for Request/Respond/Close.
func (r *Router) TransactionLayer() *sip.TransactionLayer {
	return r.txl
}

func (r *Router) validate(msg sip.Message) error {
	if err := sip.Validate(msg, msg.Source(), msg.Transport()); err != nil {
		r.metrics.validatorRejection()
		r.core.ReceiveError(err, msg.Source())
		return err
	}
	return nil
}

func (r *Router) onRequest(req *sip.Request, tx *sip.ServerTx) {
	r.metrics.txCreated("server", string(req.Method))
	tx.OnTerminate(func(key string, err error) {
		cause := "terminated"
		if err != nil {
			cause = "error"
		}
		r.metrics.txTerminated("server", cause)
	})

	if req.IsAck() {
		// An ACK that reaches the transaction layer's request handler,
		// rather than being absorbed inside ServerTx.Receive, has no
		// matching INVITE transaction left: RFC 3261 13.3.1.4, the
		// transaction terminates as soon as the 2xx is sent.
		r.metrics.stray("ack")
		r.core.ReceiveRequest(req, nil)
		tx.Terminate()
		return
	}

	r.core.ReceiveRequest(req, tx)
}

func (r *Router) handleStrayResponse(res *sip.Response) {
	r.metrics.stray("response")
	r.core.ReceiveResponse(res, nil)
}
