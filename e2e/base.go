package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"my-chat-backend/domain"
	"my-chat-backend/domain/event"
	"my-chat-backend/internal"
	"my-chat-backend/internal/app"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

// BaseSuite runs a full backend in process: Badger, bluge, the real-time
// core and the HTTP server, all in memory.
type BaseSuite struct {
	suite.Suite
	Config Config
	App    *app.App
	server *httptest.Server
	db      *badger.DB
	writer  *bluge.Writer
	sockets []*Socket
}

// Client is one signed-in user.
type Client struct {
	User  domain.User
	Token string
}

func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

func (s *BaseSuite) SetupTest() {
	var err error
	s.db, err = badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	s.writer, err = bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	s.Require().NoError(err)

	s.App, err = app.New(logs.GetLoggerFromString(s.Config.LogLevel), s.backendConfig(), s.db, s.writer)
	s.Require().NoError(err)
	s.App.Start(context.Background())
	s.server = httptest.NewServer(s.App.Handler)
}

func (s *BaseSuite) TearDownTest() {
	for _, sock := range s.sockets {
		sock.Close()
	}
	s.sockets = nil
	s.server.CloseClientConnections()
	s.server.Close()
	s.App.Close()
	_ = s.writer.Close()
	_ = s.db.Close()
}

func (s *BaseSuite) backendConfig() internal.Config {
	return internal.Config{
		Host:                 "127.0.0.1",
		Port:                 5001,
		LogLevel:             s.Config.LogLevel,
		BadgerFilepath:       "memory",
		BlugeFilepath:        "memory",
		MediaDir:             s.T().TempDir(),
		MediaBaseURL:         "/media",
		MaxMediaBytes:        1 << 20,
		JWTSecret:            "e2e-secret-of-decent-length",
		TokenDuration:        time.Hour,
		MaxGroupSize:         10,
		StoreTimeout:         2 * time.Second,
		UploadTimeout:        2 * time.Second,
		DeliveryTimeout:      time.Second,
		BlockedSendPolicy:    "suppress",
		ConnectionBufferSize: 64,
		WsWriteTimeout:       time.Second,
		WsPingInterval:       time.Minute,
		QueueThreshold:       0.8,
		RegistryShards:       8,
		CharReplacement:      "*",
		SearchLimit:          20,
		RestartInterval:      50 * time.Millisecond,
	}
}

// Step prints a colorized header for a scenario step.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

func (s *BaseSuite) SignUp(name string) Client {
	u, err := s.App.Users.Create(context.Background(), domain.User{FullName: name, Email: strings.ToLower(name) + "@example.com"})
	s.Require().NoError(err)
	token, err := s.App.Tokens.Generate(u.ID)
	s.Require().NoError(err)
	return Client{User: u, Token: token}
}

// Call performs an authenticated request and decodes the JSON answer into out when given.
func (s *BaseSuite) Call(c Client, method, path string, body, out any) int {
	var payload bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &payload)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+c.Token)

	start := time.Now()
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var raw bytes.Buffer
	_, _ = raw.ReadFrom(resp.Body)
	s.T().Logf("HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		s.T().Logf("RESPONSE:\n%s", raw.String())
	}
	if out != nil && resp.StatusCode < http.StatusBadRequest {
		s.Require().NoError(json.Unmarshal(raw.Bytes(), out))
	}
	return resp.StatusCode
}

// Socket is an open real-time connection of a client.
type Socket struct {
	suite *BaseSuite
	name  string
	conn  *websocket.Conn
}

func (s *BaseSuite) Connect(c Client) *Socket {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + c.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	sock := &Socket{suite: s, name: c.User.FullName, conn: conn}
	s.sockets = append(s.sockets, sock)
	return sock
}

// Await reads frames until one of kind matches accept, and decodes it into out.
func (sock *Socket) Await(kind event.Kind, out any, accept func(raw json.RawMessage) bool) {
	s := sock.suite
	s.Require().NoError(sock.conn.SetReadDeadline(time.Now().Add(s.Config.Wait)))
	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		s.Require().NoError(sock.conn.ReadJSON(&frame), "%s waited for %s", sock.name, kind)
		if s.Config.DebugJSON {
			s.T().Logf("%s <- %s %s", sock.name, frame.Event, frame.Data)
		}
		if frame.Event != string(kind) || (accept != nil && !accept(frame.Data)) {
			continue
		}
		if out != nil {
			s.Require().NoError(json.Unmarshal(frame.Data, out))
		}
		return
	}
}

func (sock *Socket) Emit(name string, data any) {
	sock.suite.Require().NoError(sock.conn.WriteJSON(map[string]any{"event": name, "data": data}))
}

func (sock *Socket) Close() {
	_ = sock.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = sock.conn.Close()
}
