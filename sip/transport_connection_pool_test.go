package sip

import (
	"net"
	"testing"

	"github.com/sipkit/sipkit/fakes"
)

func TestConnectionPool(t *testing.T) {
	pool := NewConnectionPool()

	fakeConn := &fakes.TCPConn{
		LAddr:  net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5060},
		RAddr:  net.TCPAddr{IP: net.ParseIP("127.0.0.2"), Port: 5060},
		Reader: nil,
		Writer: nil,
	}
	conn := &TCPConnection{Conn: fakeConn}

	pool.Add(fakeConn.RAddr.String(), conn)

	c := pool.Get(fakeConn.RAddr.String())
	if c != conn {
		t.Fatal("Not found connection")
	}
}

func TestConnectionPoolCloseAndDeleteClosesUnderlyingConn(t *testing.T) {
	pool := NewConnectionPool()

	fakeConn := &fakes.TCPConn{
		LAddr: net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5060},
		RAddr: net.TCPAddr{IP: net.ParseIP("127.0.0.2"), Port: 5060},
	}
	conn := &TCPConnection{Conn: fakeConn}
	addr := fakeConn.RAddr.String()
	conn.Ref(1)

	pool.Add(addr, conn)
	if err := pool.CloseAndDelete(conn, addr); err != nil {
		t.Fatal(err)
	}

	if !fakeConn.Closed() {
		t.Fatal("underlying connection was not closed")
	}
	if pool.Get(addr) != nil {
		t.Fatal("connection still present in pool after CloseAndDelete")
	}
}

func BenchmarkConnectionPool(b *testing.B) {
	pool := NewConnectionPool()

	for i := 0; i < b.N; i++ {
		conn := &TCPConnection{Conn: &fakes.TCPConn{
			LAddr:  net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5060},
			RAddr:  net.TCPAddr{IP: net.ParseIP("127.0.0.2"), Port: 5060},
			Reader: nil,
			Writer: nil,
		}}
		a := &net.TCPAddr{
			IP:   net.IPv4('1', '2', '3', byte(i)),
			Port: 1000,
		}
		pool.Add(a.String(), conn)
		c := pool.Get(a.String())
		if c != conn {
			b.Fatal("mismatched function")
		}
	}
}
