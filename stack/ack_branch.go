package stack

import (
	"crypto/hmac"
	"encoding/base64"
	"strconv"

	"golang.org/x/crypto/ripemd160"

	"github.com/sipkit/sipkit/sip"
)

// ackBranchKey is required on the Stack; there is no built-in default,
// forcing callers to configure one rather than shipping with a branch
// derivation every deployment of this package would share.
type ackBranchKey []byte

// deriveAckBranch computes the branch a stateless proxy puts on the
// topmost Via of an ACK it forwards for a non-2xx final response, so
// retransmitted ACKs for the same transaction always carry the same
// branch. orig is the request whose second Via (the one added by the
// element upstream of us) seeded the transaction this ACK closes.
func deriveAckBranch(key ackBranchKey, orig *sip.Request) string {
	via := orig.Via()
	var input []byte
	if via != nil && via.Next != nil && isRFC3261Branch(via.Next) {
		branch, _ := via.Next.Params.Get("branch")
		input = []byte(branch)
	} else {
		input = nonRFC3261AckBranchInput(orig)
	}

	mac := hmac.New(ripemd160.New, key)
	mac.Write(input)
	sum := mac.Sum(nil)

	return sip.RFC3261BranchMagicCookie + base64.RawURLEncoding.EncodeToString(sum)
}

func isRFC3261Branch(via *sip.ViaHeader) bool {
	branch, ok := via.Params.Get("branch")
	return ok && len(branch) > len(sip.RFC3261BranchMagicCookie) &&
		branch[:len(sip.RFC3261BranchMagicCookie)] == sip.RFC3261BranchMagicCookie
}

// nonRFC3261AckBranchInput builds the HMAC input for the case where the
// next topmost Via is not RFC 3261 compliant (no magic cookie), so its
// branch alone can't be trusted to uniquely identify the transaction.
func nonRFC3261AckBranchInput(req *sip.Request) []byte {
	cseq := req.CSeq()
	from := req.From()
	to := req.To()
	callID := req.CallID()
	via := req.Via()

	var fromTag, toTag, callIDVal, branch string
	if from != nil {
		fromTag = from.Tag()
	}
	if to != nil {
		toTag = to.Tag()
	}
	if callID != nil {
		callIDVal = callID.Value()
	}
	if via != nil {
		branch, _ = via.Params.Get("branch")
	}

	var cseqNo string
	if cseq != nil {
		cseqNo = strconv.FormatUint(uint64(cseq.SeqNo), 10)
	}

	buf := make([]byte, 0, 256)
	buf = appendField(buf, req.Recipient.String())
	buf = appendField(buf, string(via.Transport))
	buf = appendField(buf, via.Host)
	buf = appendField(buf, strconv.Itoa(via.Port))
	buf = appendField(buf, callIDVal)
	buf = appendField(buf, fromTag)
	buf = appendField(buf, toTag)
	buf = appendField(buf, cseqNo)
	buf = appendField(buf, "branch")
	buf = appendField(buf, branch)
	return buf
}

func appendField(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)>>8), byte(len(s)))
	return append(buf, s...)
}
