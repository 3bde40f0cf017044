package z21

import (
	"net"
	"testing"
	"time"

	"github.com/go-dcc/dccstack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStation simulates the command station side of the UDP link on a
// loopback socket, replying to whatever handler the test installs.
type fakeStation struct {
	conn    *net.UDPConn
	handler func(Frame, *net.UDPAddr)
}

func newFakeStation(t *testing.T) *fakeStation {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	return &fakeStation{conn: conn}
}

func (s *fakeStation) port() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

func (s *fakeStation) run() {
	buf := make([]byte, maxDatagramBytes)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		for _, f := range DecodeAll(buf[:n]) {
			if s.handler != nil {
				s.handler(f, addr)
			}
		}
	}
}

func (s *fakeStation) send(addr *net.UDPAddr, frame []byte) {
	s.conn.WriteToUDP(frame, addr)
}

func (s *fakeStation) close() { s.conn.Close() }

func testConfig(port int) Config {
	cfg := DefaultConfig("127.0.0.1")
	cfg.Port = port
	cfg.ConnectTimeout = 2 * time.Second
	cfg.IdleCoalesce = 10 * time.Millisecond
	cfg.ProgrammingTimeout = 2 * time.Second
	return cfg
}

func TestClientConnectSucceedsOnStatusReply(t *testing.T) {
	station := newFakeStation(t)
	defer station.close()
	station.handler = func(f Frame, addr *net.UDPAddr) {
		if f.LanID == LanGetBroadcastFlags {
			station.send(addr, Encode(LanSystemStateData, make([]byte, 16)))
		}
	}
	go station.run()

	c := NewClient(testConfig(station.port()), EventSink{}, nil)
	err := c.Connect()
	require.NoError(t, err)
	assert.Equal(t, StateConnected, c.State())
	c.Disconnect()
}

func TestClientConnectTimesOutWithNoReply(t *testing.T) {
	station := newFakeStation(t)
	defer station.close()
	// no handler installed: every request is silently dropped

	cfg := testConfig(station.port())
	cfg.ConnectTimeout = 100 * time.Millisecond
	c := NewClient(cfg, EventSink{}, nil)
	err := c.Connect()
	assert.ErrorIs(t, err, ErrConnectTimeout)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClientReadVariableDirect(t *testing.T) {
	station := newFakeStation(t)
	defer station.close()
	station.handler = func(f Frame, addr *net.UDPAddr) {
		switch f.LanID {
		case LanGetBroadcastFlags:
			station.send(addr, Encode(LanSystemStateData, make([]byte, 16)))
		case LanXBusMessage:
			body, err := decodeXBus(f.Payload)
			if err != nil || len(body) < 4 || body[0] != xbusOpCVRead {
				return
			}
			idx := uint16(body[2])<<8 | uint16(body[3])
			resp := []byte{xbusOpConfigResult, xbusSubConfigResult, byte(idx >> 8), byte(idx), 48}
			station.send(addr, Encode(LanXBusMessage, encodeXBus(resp)))
		}
	}
	go station.run()

	c := NewClient(testConfig(station.port()), EventSink{}, nil)
	require.NoError(t, c.Connect())
	defer c.Disconnect()

	value, err := c.ReadVariableDirect(29)
	require.NoError(t, err)
	assert.Equal(t, byte(48), value)
}

func TestClientReadVariableShortCircuit(t *testing.T) {
	station := newFakeStation(t)
	defer station.close()
	station.handler = func(f Frame, addr *net.UDPAddr) {
		switch f.LanID {
		case LanGetBroadcastFlags:
			station.send(addr, Encode(LanSystemStateData, make([]byte, 16)))
		case LanXBusMessage:
			station.send(addr, Encode(LanXBusMessage, encodeXBus([]byte{xbusOpConfigError, xbusSubShortCircuit})))
		}
	}
	go station.run()

	c := NewClient(testConfig(station.port()), EventSink{}, nil)
	require.NoError(t, c.Connect())
	defer c.Disconnect()

	_, err := c.ReadVariableDirect(1)
	assert.ErrorIs(t, err, dccstack.ShortCircuit)
}
