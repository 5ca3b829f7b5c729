package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"

	"fun-euchre/internal/broker"
	"fun-euchre/internal/ident"
	"fun-euchre/internal/protocol"
	"fun-euchre/internal/runtime"
	"fun-euchre/internal/store"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 65536
	// Outbound event buffer per connection.
	sendBuffer = 256
)

// Transport frame types exchanged outside the domain event schema.
const (
	frameReady      = "ws.ready"
	frameError      = "ws.error"
	frameSubscribed = "ws.subscribed"
	frameSubscribe  = "subscribe"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades authenticated clients and streams broker events to
// them as independent text frames.
type WSHandler struct {
	dispatcher *runtime.Dispatcher
	broker     *broker.Broker
	issuer     *ident.Issuer
	log        slog.Logger
}

// NewWSHandler creates a websocket handler over the given dispatcher.
func NewWSHandler(d *runtime.Dispatcher, b *broker.Broker, issuer *ident.Issuer, log slog.Logger) *WSHandler {
	return &WSHandler{dispatcher: d, broker: b, issuer: issuer, log: log}
}

// RegisterRoutes registers the websocket endpoint on the provided mux.
func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/realtime/ws", h.handleWS)
}

type readyPayload struct {
	SessionID ident.SessionID `json:"sessionId"`
	LobbyID   ident.LobbyID   `json:"lobbyId"`
	GameID    ident.GameID    `json:"gameId,omitempty"`
}

type subscribePayload struct {
	LobbyID string `json:"lobbyId,omitempty"`
	GameID  string `json:"gameId,omitempty"`
}

type subscribedPayload struct {
	Rooms []broker.RoomID `json:"rooms"`
}

type wsErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleWS authenticates the handshake, upgrades, and runs the pumps.
// Failures before the upgrade answer with a one-line plain body.
func (h *WSHandler) handleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawSession, rawToken := q.Get("sessionId"), q.Get("reconnectToken")
	if rawSession == "" || rawToken == "" {
		http.Error(w, "sessionId and reconnectToken are required", http.StatusBadRequest)
		return
	}
	sessionID, err := ident.ParseSessionID(rawSession)
	if err != nil {
		http.Error(w, "malformed sessionId", http.StatusBadRequest)
		return
	}
	token, err := ident.ParseToken(rawToken)
	if err != nil {
		http.Error(w, "malformed reconnectToken", http.StatusBadRequest)
		return
	}

	session, ok := h.dispatcher.SessionIdentity(sessionID)
	if !ok {
		http.Error(w, "unknown session", http.StatusUnauthorized)
		return
	}
	if status, msg := h.verifyHandshake(token, session); status != 0 {
		http.Error(w, msg, status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("websocket upgrade for session %s: %v", sessionID, err)
		return
	}

	client := &wsClient{
		handler: h,
		conn:    conn,
		session: session,
		send:    make(chan protocol.Event, sendBuffer),
	}
	h.broker.ConnectSession(sessionID, client)
	h.dispatcher.MarkConnected(sessionID)
	h.log.Infof("websocket connected: session %s (player %s)", sessionID, session.PlayerID)

	client.enqueueFrame(frameReady, readyPayload{
		SessionID: session.SessionID,
		LobbyID:   session.LobbyID,
		GameID:    session.GameID,
	})

	go client.writePump()
	client.readPump()
}

// verifyHandshake maps token verification outcomes onto handshake status
// codes. A zero status means the token is accepted.
func (h *WSHandler) verifyHandshake(token ident.Token, session store.SessionRecord) (int, string) {
	_, vErr := h.issuer.Verify(token, ident.Expect{
		SessionID: session.SessionID,
		LobbyID:   session.LobbyID,
		PlayerID:  session.PlayerID,
	})
	if vErr != nil {
		h.log.Warnf("handshake for session %s rejected: %s", session.SessionID, vErr.Kind)
		switch vErr.Kind {
		case ident.VerifyMalformed:
			return http.StatusBadRequest, "malformed reconnectToken"
		case ident.VerifyInvalidSignature:
			return http.StatusUnauthorized, "reconnect token signature rejected"
		default:
			return http.StatusForbidden, "reconnect token rejected"
		}
	}
	if session.ReconnectToken != token {
		return http.StatusForbidden, "reconnect token superseded"
	}
	if !session.Connected && session.ReconnectByMs != nil && h.dispatcher.Now() > *session.ReconnectByMs {
		return http.StatusForbidden, "reconnect window has expired"
	}
	return 0, ""
}

// wsClient is one upgraded connection. It implements broker.Sink so the
// broker can hand it events; the write pump drains them onto the wire.
type wsClient struct {
	handler *WSHandler
	conn    *websocket.Conn
	session store.SessionRecord
	send    chan protocol.Event

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// Send queues an event without blocking. A full buffer drops the event;
// the broker logs the drop.
func (c *wsClient) Send(ev protocol.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- ev:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *wsClient) enqueueFrame(frameType string, payload any) {
	ev, err := protocol.NewEvent(frameType, payload)
	if err != nil {
		c.handler.log.Errorf("encoding %s frame: %v", frameType, err)
		return
	}
	if err := c.Send(ev); err != nil {
		c.handler.log.Warnf("dropping %s frame for session %s: %v", frameType, c.session.SessionID, err)
	}
}

func (c *wsClient) enqueueError(code, format string, args ...any) {
	c.enqueueFrame(frameError, wsErrorPayload{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

// close tears the connection down exactly once: the broker drops the
// sink, the session flips to disconnected, and the write pump drains out.
func (c *wsClient) close() {
	c.once.Do(func() {
		c.handler.broker.DisconnectSession(c.session.SessionID)
		c.handler.dispatcher.MarkDisconnected(c.session.SessionID)
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		c.handler.log.Infof("websocket disconnected: session %s", c.session.SessionID)
	})
}

// readPump consumes client frames until the connection dies or a fatal
// protocol violation occurs.
func (c *wsClient) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			c.closeWith(websocket.CloseUnsupportedData, "text frames only")
			return
		}
		if fatal := c.handleFrame(data); fatal {
			return
		}
	}
}

type clientFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// handleFrame processes one inbound text frame. The returned flag closes
// the connection.
func (c *wsClient) handleFrame(data []byte) bool {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.enqueueError("INVALID_ACTION", "malformed frame")
		return false
	}
	if frame.Type != frameSubscribe {
		c.enqueueError("INVALID_ACTION", "unsupported frame type %q", frame.Type)
		return false
	}
	return c.handleSubscribe(frame.Payload)
}

// handleSubscribe validates the requested rooms against the session's
// identity, binds them, and replays the current state as catchup.
func (c *wsClient) handleSubscribe(raw json.RawMessage) bool {
	var req subscribePayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			c.enqueueError("INVALID_ACTION", "malformed subscribe payload")
			return false
		}
	}

	// Reload the session: a game may have started since the handshake.
	session, ok := c.handler.dispatcher.SessionIdentity(c.session.SessionID)
	if !ok {
		c.closeWith(websocket.ClosePolicyViolation, "session no longer exists")
		return true
	}
	c.session = session

	if req.GameID != "" && ident.GameID(req.GameID) != session.GameID {
		c.closeWith(websocket.ClosePolicyViolation, "gameId does not match session")
		return true
	}
	if req.LobbyID != "" && ident.LobbyID(req.LobbyID) != session.LobbyID {
		c.enqueueError("UNAUTHORIZED", "lobbyId does not match session")
		return false
	}

	c.handler.broker.JoinRoom(session.SessionID, broker.LobbyRoom(session.LobbyID))
	if session.GameID != "" {
		c.handler.broker.JoinRoom(session.SessionID, broker.GameRoom(session.GameID))
	}

	for _, ev := range c.handler.dispatcher.CatchupEvents(session.SessionID) {
		if err := c.Send(ev); err != nil {
			c.handler.log.Warnf("dropping catchup %s for session %s: %v", ev.Type, session.SessionID, err)
		}
	}
	c.enqueueFrame(frameSubscribed, subscribedPayload{
		Rooms: c.handler.broker.Rooms(session.SessionID),
	})
	return false
}

// closeWith sends a close control frame with the given code, then lets
// the read pump tear the connection down.
func (c *wsClient) closeWith(code int, reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		c.handler.log.Debugf("writing close frame for session %s: %v", c.session.SessionID, err)
	}
}

// writePump drains queued events onto the wire and keeps the connection
// alive with periodic pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				c.handler.log.Errorf("encoding %s event: %v", ev.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
