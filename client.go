package main

import (
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 30 * time.Second

	// Short ping period: the pong round-trip is also the latency sample
	// that feeds movement lag compensation, so it has to stay fresh
	pingPeriod = 10 * time.Second

	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 120 // movement arrives at up to 60Hz
	maxNameLen        = 16
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string

	player *Player // nil until the player identifies (join_queue)

	msgCount   int
	msgResetAt time.Time

	// RTT measurement for lag compensation
	pingSentAt atomic.Int64 // unix nanos of last ping write
	rttNanos   atomic.Int64

	// Auth state
	authPlayerID int64  // 0 = unauthenticated/guest
	authUsername string // "" = unauthenticated
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// RTT returns the last-measured round-trip time
func (c *Client) RTT() time.Duration {
	return time.Duration(c.rttNanos.Load())
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if sent := c.pingSentAt.Load(); sent > 0 {
			c.rttNanos.Store(time.Now().UnixNano() - sent)
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.pingSentAt.Store(time.Now().UnixNano())
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(reason string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: reason}})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgJoinQueue:
		c.handleJoinQueue(env.D)
	case MsgLeaveQueue:
		c.handleLeaveQueue()
	case MsgQueueStatus:
		c.handleQueueStatus()
	case MsgReady:
		c.handleReady()
	case MsgMove:
		c.handleMove(env.D)
	case MsgBall:
		c.handleBall(env.D)
	case MsgGoalAttempt:
		c.handleGoalAttempt(env.D)
	case MsgPause:
		c.handlePause(env.D)
	case MsgResume:
		c.handleResume()
	case MsgForfeit:
		c.handleForfeit()
	case MsgEndRequest:
		c.handleEndRequest(env.D)
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	case MsgProfile:
		c.handleProfile()
	case MsgLeaderboard:
		c.handleLeaderboard()
	}
}

func (c *Client) handleJoinQueue(data json.RawMessage) {
	var msg JoinQueueMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	if c.player == nil {
		name := msg.Name
		if name == "" {
			if c.authUsername != "" {
				name = c.authUsername
			} else {
				name = GenerateGuestName()
			}
		}
		if len(name) > maxNameLen {
			name = name[:maxNameLen]
		}
		p := NewPlayer(GenerateID(4), name)
		p.AuthPlayerID = c.authPlayerID
		if c.authPlayerID != 0 && c.hub.db != nil {
			if rating, err := c.hub.db.GetRating(c.authPlayerID); err == nil && rating != nil {
				p.SetElo(rating.Elo)
			}
		}
		c.player = p
		c.hub.BindPlayer(p.ID, c)
	}

	mode := GameMode(msg.Mode)
	if mode != ModeCasual && mode != ModeRanked {
		mode = ModeCasual
	}
	if mode == ModeRanked && c.authPlayerID == 0 {
		c.sendError("ranked play requires an account")
		return
	}

	res := c.hub.matchmaker.Enqueue(c.player, mode, msg.Region)
	if !res.OK {
		c.sendError(res.Reason)
		return
	}
	c.SendJSON(Envelope{T: MsgQueued, Data: QueuedMsg{
		Position:      res.Position,
		EstimatedWait: res.EstimatedWait.Seconds(),
	}})
}

func (c *Client) handleLeaveQueue() {
	if c.player == nil {
		c.sendError("player not in queue")
		return
	}
	if res := c.hub.matchmaker.Dequeue(c.player.ID); !res.OK {
		c.sendError(res.Reason)
	}
}

func (c *Client) handleQueueStatus() {
	if c.player == nil {
		c.SendJSON(Envelope{T: MsgQueuePos, Data: QueuePosMsg{}})
		return
	}
	st := c.hub.matchmaker.QueuePosition(c.player.ID)
	c.SendJSON(Envelope{T: MsgQueuePos, Data: QueuePosMsg{
		InQueue:       st.InQueue,
		Position:      st.Position,
		EstimatedWait: st.EstimatedWait.Seconds(),
	}})
}

func (c *Client) handleReady() {
	if c.player == nil {
		return
	}
	if res := c.hub.sim.HandleReady(c.player.ID); !res.OK {
		c.sendError(res.Reason)
	}
}

func (c *Client) handleMove(data json.RawMessage) {
	if c.player == nil {
		return
	}
	var msg MoveMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.hub.sim.HandleMovement(c.player.ID, msg)
}

func (c *Client) handleBall(data json.RawMessage) {
	if c.player == nil {
		return
	}
	var msg BallMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if res := c.hub.sim.HandleBallUpdate(c.player.ID, msg); !res.OK {
		c.sendError(res.Reason)
	}
}

func (c *Client) handleGoalAttempt(data json.RawMessage) {
	if c.player == nil {
		return
	}
	var msg GoalAttemptMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if res := c.hub.sim.HandleGoalAttempt(c.player.ID, msg); !res.OK {
		c.sendError(res.Reason)
	}
}

func (c *Client) handlePause(data json.RawMessage) {
	if c.player == nil {
		return
	}
	var msg PauseMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if res := c.hub.sim.HandlePause(c.player.ID, msg.Reason); !res.OK {
		c.sendError(res.Reason)
	}
}

func (c *Client) handleResume() {
	if c.player == nil {
		return
	}
	if res := c.hub.sim.HandleResume(c.player.ID); !res.OK {
		c.sendError(res.Reason)
	}
}

func (c *Client) handleForfeit() {
	if c.player == nil {
		c.sendError("requester is not in an active game")
		return
	}
	if res := c.hub.end.RequestGameEnd(c.player.ID, EndForfeit, false, ""); !res.OK {
		c.sendError(res.Reason)
	}
}

func (c *Client) handleEndRequest(data json.RawMessage) {
	if c.player == nil {
		c.sendError("requester is not in an active game")
		return
	}
	var msg EndRequestMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if res := c.hub.end.RequestGameEnd(c.player.ID, msg.Reason, msg.Confirmed, msg.AdminCode); !res.OK {
		c.sendError(res.Reason)
	}
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.authPlayerID = id
	c.authUsername = msg.Username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: msg.Username,
		PlayerID: id,
		Elo:      DefaultElo,
	}})
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.authPlayerID = id
	c.authUsername = msg.Username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    token,
		Username: msg.Username,
		PlayerID: id,
		Elo:      c.loadElo(id),
	}})
}

func (c *Client) handleAuth(data json.RawMessage) {
	if c.hub.auth == nil {
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.sendError("invalid token")
		return
	}
	c.authPlayerID = id
	c.authUsername = username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{
		Token:    msg.Token,
		Username: username,
		PlayerID: id,
		Elo:      c.loadElo(id),
	}})
}

func (c *Client) loadElo(authID int64) int {
	if c.hub.db == nil {
		return DefaultElo
	}
	rating, err := c.hub.db.GetRating(authID)
	if err != nil || rating == nil {
		return DefaultElo
	}
	return rating.Elo
}

func (c *Client) handleProfile() {
	if c.hub.db == nil || c.authPlayerID == 0 {
		c.sendError("not authenticated")
		return
	}
	rating, err := c.hub.db.GetRating(c.authPlayerID)
	if err != nil || rating == nil {
		c.sendError("profile not found")
		return
	}
	c.SendJSON(Envelope{T: MsgProfileData, Data: ProfileDataMsg{
		Username:     c.authUsername,
		Elo:          rating.Elo,
		Wins:         rating.Wins,
		Losses:       rating.Losses,
		Draws:        rating.Draws,
		GoalsFor:     rating.GoalsFor,
		GoalsAgainst: rating.GoalsAgainst,
		Playtime:     rating.Playtime,
	}})
}

func (c *Client) handleLeaderboard() {
	if c.hub.db == nil {
		c.sendError("leaderboard unavailable")
		return
	}
	entries, err := c.hub.db.GetLeaderboard(20)
	if err != nil {
		c.sendError("leaderboard unavailable")
		return
	}
	c.SendJSON(Envelope{T: MsgLeaderboardData, Data: entries})
}
