package sip

// fsmInput is an event fed into a transaction's state machine. fsmState
// runs one step and returns the next input to apply, or FsmInputNone
// when the machine has settled. fsmContextState is the per-transaction
// current state, stored as a bound method value on *ClientTx/*ServerTx
// so state functions can reach the transaction's fields directly.
type fsmInput int
type fsmState func() fsmInput
type fsmContextState func(s fsmInput) fsmInput

// Server transaction states, RFC 3261 S.17.2 plus the RFC 6026 Accepted
// state.
const (
	server_state_trying = iota
	server_state_proceeding
	server_state_completed
	server_state_confirmed
	server_state_accepted
	server_state_terminated
)

// Client transaction states, RFC 3261 S.17.1 plus the RFC 6026 Accepted
// state.
const (
	client_state_calling = iota
	client_state_proceeding
	client_state_completed
	client_state_accepted
	client_state_terminated
)

// FSM inputs, split by which transaction side consumes them.
const (
	FsmInputNone fsmInput = iota

	server_input_request
	server_input_ack
	server_input_cancel
	server_input_user_1xx
	server_input_user_2xx
	server_input_user_300_plus
	server_input_timer_g
	server_input_timer_h
	server_input_timer_i
	server_input_timer_j
	server_input_timer_l
	server_input_transport_err
	server_input_delete

	client_input_1xx
	client_input_2xx
	client_input_300_plus
	client_input_timer_a
	client_input_timer_b
	client_input_timer_d
	client_input_timer_m
	client_input_transport_err
	client_input_delete
	client_input_cancel
	client_input_canceled
)

var fsmInputNames = map[fsmInput]string{
	FsmInputNone: "none",

	server_input_request:       "server_input_request",
	server_input_ack:           "server_input_ack",
	server_input_cancel:        "server_input_cancel",
	server_input_user_1xx:      "server_input_user_1xx",
	server_input_user_2xx:      "server_input_user_2xx",
	server_input_user_300_plus: "server_input_user_300_plus",
	server_input_timer_g:       "server_input_timer_g",
	server_input_timer_h:       "server_input_timer_h",
	server_input_timer_i:       "server_input_timer_i",
	server_input_timer_j:       "server_input_timer_j",
	server_input_timer_l:       "server_input_timer_l",
	server_input_transport_err: "server_input_transport_err",
	server_input_delete:        "server_input_delete",

	client_input_1xx:           "client_input_1xx",
	client_input_2xx:           "client_input_2xx",
	client_input_300_plus:      "client_input_300_plus",
	client_input_timer_a:       "client_input_timer_a",
	client_input_timer_b:       "client_input_timer_b",
	client_input_timer_d:       "client_input_timer_d",
	client_input_timer_m:       "client_input_timer_m",
	client_input_transport_err: "client_input_transport_err",
	client_input_delete:        "client_input_delete",
	client_input_cancel:        "client_input_cancel",
	client_input_canceled:      "client_input_canceled",
}

func fsmString(f fsmInput) string {
	if name, ok := fsmInputNames[f]; ok {
		return name
	}
	return "unknown transaction state"
}
