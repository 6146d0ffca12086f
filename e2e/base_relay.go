package e2e

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"chatty-relay/protocol"
)

// BaseRelaySuite connects e2e scenarios to a relay that is already
// running, addressed through RELAY_ADDR. Without an address the suite
// skips instead of failing, so the package stays green on laptops and CI
// boxes with no relay around.
type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR not set, skipping e2e suite")
	}

	httpClient := &http.Client{Timeout: 3 * time.Second}
	resp, err := httpClient.Get(s.healthURL())
	if err != nil {
		s.T().Skipf("relay at %s not reachable: %v", s.Config.RelayAddr, err)
	}
	_ = resp.Body.Close()
}

// DialHub opens a websocket to the relay with a colorized step header.
func (s *BaseRelaySuite) DialHub(t *testing.T, name string) *websocket.Conn {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(s.hubURL(), nil)
	s.Require().NoError(err, "Failed to connect to relay at "+s.Config.RelayAddr)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadUntil drains frames until one of the wanted type shows up.
func (s *BaseRelaySuite) ReadUntil(conn *websocket.Conn, frameType string) protocol.ServerFrame {
	deadline := time.Now().Add(5 * time.Second)
	for {
		s.Require().NoError(conn.SetReadDeadline(deadline))
		var frame protocol.ServerFrame
		s.Require().NoError(conn.ReadJSON(&frame), "waiting for frame %q", frameType)
		if frame.Type == frameType {
			return frame
		}
	}
}

func (s *BaseRelaySuite) hubURL() string {
	return fmt.Sprintf("ws://%s/chathub", s.Config.RelayAddr)
}

func (s *BaseRelaySuite) healthURL() string {
	return fmt.Sprintf("http://%s/healthcheck", s.Config.RelayAddr)
}
