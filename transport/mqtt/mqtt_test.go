package mqtt

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/casualjim/tether/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		name string
		opts transport.Options
		want string
	}{
		{
			name: "plain",
			opts: transport.Options{Protocol: transport.ProtocolMQTT, Host: "localhost", Port: 1883, BasePath: "/"},
			want: "tcp://localhost:1883",
		},
		{
			name: "empty protocol defaults to plain",
			opts: transport.Options{Host: "localhost", Port: 1883},
			want: "tcp://localhost:1883",
		},
		{
			name: "tls",
			opts: transport.Options{Protocol: transport.ProtocolMQTTS, Host: "broker.example.com", Port: 8883},
			want: "ssl://broker.example.com:8883",
		},
		{
			name: "websocket with base path",
			opts: transport.Options{Protocol: transport.ProtocolWS, Host: "localhost", Port: 8080, BasePath: "/ws"},
			want: "ws://localhost:8080/ws",
		},
		{
			name: "secure websocket without base path",
			opts: transport.Options{Protocol: transport.ProtocolWSS, Host: "broker.example.com", Port: 443},
			want: "wss://broker.example.com:443/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BrokerURL(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		_, err := BrokerURL(transport.Options{Protocol: "carrier-pigeon"})
		assert.Error(t, err)
	})
}

func TestNotConnected(t *testing.T) {
	tr, err := Dial(transport.Options{Host: "localhost", Port: 1883})
	require.NoError(t, err)
	defer tr.Close()

	ctx := context.Background()
	assert.ErrorIs(t, tr.Subscribe(ctx, "+/x/#", transport.AtLeastOnce), transport.ErrNotConnected)
	assert.ErrorIs(t, tr.Publish(ctx, "a/b", nil, transport.AtLeastOnce, false), transport.ErrNotConnected)
}

func TestCloseEndsEventStream(t *testing.T) {
	tr, err := Dial(transport.Options{Host: "localhost", Port: 1883})
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	_, open := <-tr.Events()
	assert.False(t, open)
}

// slowBroker accepts one connection and answers its CONNECT after delay. The
// returned channel is closed once the client closes the connection.
func slowBroker(t *testing.T, delay time.Duration) (int, <-chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	closed := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 512)
		if _, err := conn.Read(buf); err != nil {
			close(closed)
			return
		}
		time.Sleep(delay)
		// CONNACK, session accepted
		_, _ = conn.Write([]byte{0x20, 0x02, 0x00, 0x00})
		for {
			if _, err := conn.Read(buf); err != nil {
				close(closed)
				return
			}
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, closed
}

func TestCloseAbortsPendingConnect(t *testing.T) {
	port, closed := slowBroker(t, 200*time.Millisecond)
	tr, err := Dial(transport.Options{Host: "127.0.0.1", Port: port, ConnectTimeout: 2 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.Error(t, tr.Connect(ctx))
	require.NoError(t, tr.Close())

	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		require.FailNow(t, "the connection outlived Close")
	}
}
