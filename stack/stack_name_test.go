package stack

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackWithNameIsRetrievable(t *testing.T) {
	core := CoreFuncs{}

	anonymous := New(net.DefaultResolver, nil, core)
	defer anonymous.Close()
	require.Equal(t, "", anonymous.Name())

	named := New(net.DefaultResolver, nil, core, WithName("edge-1"))
	defer named.Close()
	require.Equal(t, "edge-1", named.Name())
}
