package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"chatty-relay/observability"
	"chatty-relay/projection"
	"chatty-relay/protocol"
	"chatty-relay/runtime"
	"chatty-relay/server"
)

// severableProxy forwards TCP to a relay and can cut every live link on
// demand, simulating a network drop without stopping the relay. New
// dials keep working, so the reconnect schedule can succeed.
type severableProxy struct {
	listener net.Listener
	target   string

	mu    sync.Mutex
	conns []net.Conn
	dials int
}

func newSeverableProxy(t *testing.T, target string) *severableProxy {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := &severableProxy{listener: listener, target: target}
	go p.acceptLoop()
	t.Cleanup(func() {
		_ = listener.Close()
		p.sever()
	})
	return p
}

func (p *severableProxy) acceptLoop() {
	for {
		inbound, err := p.listener.Accept()
		if err != nil {
			return
		}
		outbound, err := net.Dial("tcp", p.target)
		if err != nil {
			_ = inbound.Close()
			continue
		}
		p.mu.Lock()
		p.dials++
		p.conns = append(p.conns, inbound, outbound)
		p.mu.Unlock()

		go proxyPipe(inbound, outbound)
		go proxyPipe(outbound, inbound)
	}
}

func proxyPipe(dst, src net.Conn) {
	_, _ = io.Copy(dst, src)
	_ = dst.Close()
	_ = src.Close()
}

// sever drops every live link. The listener stays up for redials.
func (p *severableProxy) sever() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, conn := range p.conns {
		_ = conn.Close()
	}
	p.conns = nil
}

func (p *severableProxy) dialCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dials
}

func (p *severableProxy) addr() string {
	return p.listener.Addr().String()
}

func newRelay(t *testing.T) *httptest.Server {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)

	monitor := observability.NewMonitoringManager()
	registry := runtime.NewRegistry()
	backlog := runtime.NewBacklog(db, log)
	router := runtime.NewRouter(log, registry, backlog, monitor, time.Second)
	orch := runtime.NewOrchestrator(log, registry, backlog, router, nil, monitor, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(server.NewServer(log, orch, 64).Handler(ctx))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		_ = db.Close()
	})
	return srv
}

func startThroughProxy(t *testing.T, username string) (*Client, *severableProxy, *httptest.Server) {
	t.Helper()
	req := require.New(t)

	relay := newRelay(t)
	proxy := newSeverableProxy(t, strings.TrimPrefix(relay.URL, "http://"))
	hubURL := "ws://" + proxy.addr() + "/chathub"

	log := logs.GetLoggerFromLevel(slog.LevelError)
	c := NewClient(log, hubURL, 100*time.Millisecond, projection.NewTimeline(nil, 0))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.Sender().Run(ctx) }()
	t.Cleanup(func() {
		c.Stop()
		cancel()
	})

	req.NoError(c.Start(username))
	req.Eventually(c.IsRegistered, 2*time.Second, 10*time.Millisecond,
		"registration confirmation never arrived")
	return c, proxy, relay
}

func TestClient_Reconnect_RedeliversQueuedSendOnce(t *testing.T) {
	req := require.New(t)
	c, proxy, relay := startThroughProxy(t, "alice")

	// When the network drops mid-session
	proxy.sever()
	req.Eventually(func() bool {
		return c.State() == StateReconnecting
	}, 2*time.Second, 10*time.Millisecond, "connection loss never noticed")

	// Registration does not survive the reconnect
	req.False(c.IsRegistered())

	// And a message is composed while Reconnecting: accepted, queued
	c.Compose("while offline", "")
	req.Equal(1, c.Sender().Len())

	// Then the transport redials, re-registers, and the queued send
	// flows out
	req.Eventually(c.IsRegistered, 5*time.Second, 10*time.Millisecond,
		"re-registration after reconnect never confirmed")
	req.Eventually(func() bool {
		for _, m := range c.Timeline().Messages() {
			if m.Content == "while offline" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond, "queued message never delivered")

	// Exactly once: the relay stored a single copy
	resp, err := http.Get(relay.URL + "/chathub/message")
	req.NoError(err)
	var history []protocol.WireMessage
	req.NoError(json.NewDecoder(resp.Body).Decode(&history))
	_ = resp.Body.Close()

	copies := 0
	for _, m := range history {
		if m.Content == "while offline" {
			copies++
		}
	}
	req.Equal(1, copies)
	req.Equal(0, c.Sender().Len())
}

func TestClient_Start_NoOpWhileReconnecting(t *testing.T) {
	req := require.New(t)
	c, proxy, _ := startThroughProxy(t, "alice")

	proxy.sever()
	req.Eventually(func() bool {
		return c.State() == StateReconnecting
	}, 2*time.Second, 10*time.Millisecond)

	// Reconnecting still counts as started
	req.True(c.IsStarted())

	// When Start is called again mid-reconnect
	req.NoError(c.Start("alice"))

	// Then no second physical connection appears: once the existing
	// transport's redial lands, the proxy has seen exactly two dials,
	// the initial one and the reconnect.
	req.Eventually(c.IsRegistered, 5*time.Second, 10*time.Millisecond,
		"reconnect never completed")
	req.Equal(2, proxy.dialCount())
	req.Equal(StateConnected, c.State())
}
