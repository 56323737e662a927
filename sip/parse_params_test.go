package sip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnmarshalHeaderParamsToleratesEscapedQuoteInValue(t *testing.T) {
	p := NewParams()
	_, err := UnmarshalHeaderParams(`reason="gateway \"timed out\""`, ';', 0, p)
	require.NoError(t, err)

	val, ok := p.Get("reason")
	require.True(t, ok)
	require.Contains(t, val, "timed out")
}
