package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"chronicle-chat/backend/internal/dice"
	"chronicle-chat/backend/internal/models"
	"chronicle-chat/backend/internal/store"
	apperrors "chronicle-chat/backend/pkg/errors"
	"chronicle-chat/backend/pkg/logger"
	"chronicle-chat/backend/shared/observability"
)

// Coordinator is the single orchestrator of the chat room. It owns the
// session registry and the connection table, applies intents, mutates the
// stores, and fans events out to every connected client. One mutex guards
// the whole intent path, which gives every connection the same global order
// of new-message and message-edited events.
//
// Intents from connections with no bound session (everything except join)
// are dropped: an unbound connection cannot author state. Unauthorized edits
// are dropped the same way. Both are logged and counted, never surfaced.
type Coordinator struct {
	mu sync.Mutex

	registry *Registry
	history  *store.HistoryLog
	engine   *dice.Engine

	maxDiceCount int

	log     *logger.Logger
	metrics *observability.Metrics

	conns map[string]EventSender

	// message id allocation: millisecond timestamp plus a per-process
	// sequence, so two appends inside one tick cannot collide.
	lastMillis int64
	seq        int
}

// NewCoordinator wires the coordinator over its owned state.
func NewCoordinator(registry *Registry, history *store.HistoryLog, engine *dice.Engine, maxDiceCount int, log *logger.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		registry:     registry,
		history:      history,
		engine:       engine,
		maxDiceCount: maxDiceCount,
		log:          log,
		metrics:      metrics,
		conns:        make(map[string]EventSender),
	}
}

// Connect registers a transport for connID. The connection has no session
// until a join intent arrives.
func (c *Coordinator) Connect(connID string, sender EventSender) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conns[connID] = sender
	c.metrics.ConnectedClients.Set(float64(len(c.conns)))
	c.log.Info("client connected", "conn_id", connID, "clients", len(c.conns))
}

// Disconnect tears the connection down: the session (if any) is removed and
// announced as departed, then the transport is forgotten.
func (c *Coordinator) Disconnect(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeSessionLocked(connID)
	delete(c.conns, connID)
	c.metrics.ConnectedClients.Set(float64(len(c.conns)))
	c.log.Info("client disconnected", "conn_id", connID, "clients", len(c.conns))
}

// ClientCount reports the number of live connections, joined or not.
func (c *Coordinator) ClientCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

// Logout removes the session but keeps the connection open, so the client
// can join again under another name.
func (c *Coordinator) Logout(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeSessionLocked(connID)
}

func (c *Coordinator) removeSessionLocked(connID string) {
	session, ok := c.registry.Remove(connID)
	if !ok {
		return
	}
	c.metrics.ActiveSessions.Set(float64(c.registry.Len()))
	c.broadcastExceptLocked(connID, Event{Type: EventUserLeft, Payload: session.ID})
}

// Join binds connID to a character, replays the full history and roster to
// the joining connection only, and announces the new session to the others.
func (c *Coordinator) Join(connID string, p JoinPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.registry.Join(connID, p.Name)
	if err != nil {
		c.dropIntent(connID, "join", err)
		return
	}
	c.metrics.ActiveSessions.Set(float64(c.registry.Len()))

	c.unicastLocked(connID, Event{Type: EventChatHistory, Payload: c.history.All()})
	c.unicastLocked(connID, Event{Type: EventUsersList, Payload: c.registry.Sessions()})
	c.broadcastExceptLocked(connID, Event{Type: EventUserJoined, Payload: session})

	c.log.Info("user joined", "conn_id", connID, "name", session.Name, "storyteller", session.IsStoryteller)
}

// SendMessage appends a text message and broadcasts it to every connection,
// the sender included.
func (c *Coordinator) SendMessage(connID string, p SendMessagePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.registry.Get(connID)
	if !ok {
		c.dropIntent(connID, "send-message", apperrors.ErrNoSession)
		return
	}

	msg := c.composeMessage(session, models.MessageTypeText, models.SenderMode(p.SenderMode), p.CustomSender)
	msg.Text = p.Text
	c.appendAndBroadcastLocked(msg)
}

// SendFile appends a file message; the attachment URL was produced by the
// upload endpoint beforehand.
func (c *Coordinator) SendFile(connID string, p SendFilePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.registry.Get(connID)
	if !ok {
		c.dropIntent(connID, "send-file", apperrors.ErrNoSession)
		return
	}

	msg := c.composeMessage(session, models.MessageTypeFile, models.SenderSelf, "")
	msg.File = &models.FileAttachment{
		Filename:    p.Filename,
		OriginalURL: p.OriginalURL,
		DisplayName: p.DisplayName,
	}
	c.appendAndBroadcastLocked(msg)
}

// RollDice resolves a roll and appends it as a dice message.
func (c *Coordinator) RollDice(connID string, p RollDicePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.registry.Get(connID)
	if !ok {
		c.dropIntent(connID, "roll-dice", apperrors.ErrNoSession)
		return
	}
	if p.Count < 1 || p.Count > c.maxDiceCount {
		c.dropIntent(connID, "roll-dice", fmt.Errorf("dice count %d out of range 1..%d", p.Count, c.maxDiceCount))
		return
	}

	result, err := c.engine.Roll(p.Count)
	if err != nil {
		c.dropIntent(connID, "roll-dice", err)
		return
	}

	msg := c.composeMessage(session, models.MessageTypeDice, models.SenderSelf, "")
	msg.DiceCount = p.Count
	msg.RollResult = &result
	c.appendAndBroadcastLocked(msg)
}

// EditMessage rewrites a message's text. Allowed if and only if the editor's
// connection is the one that authored the record, or the editor is the
// storyteller. The displayed sender mode never enters the check.
func (c *Coordinator) EditMessage(connID string, p EditMessagePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.registry.Get(connID)
	if !ok {
		c.dropIntent(connID, "edit-message", apperrors.ErrNoSession)
		return
	}

	target, found := c.history.Get(p.MessageID)
	if !found {
		c.dropIntent(connID, "edit-message", fmt.Errorf("%w: %s", apperrors.ErrMessageNotFound, p.MessageID))
		return
	}
	if !session.IsStoryteller && target.User.ID != connID {
		c.dropIntent(connID, "edit-message", apperrors.ErrNotAuthorized)
		return
	}

	now := time.Now()
	updated, _, err := c.history.ReplaceByID(p.MessageID, func(m *models.Message) {
		m.Text = p.NewText
		m.Edited = true
		m.EditTimestamp = &now
		m.EditedBy = session.Name
	})
	if err != nil {
		c.persistenceFailure("edit-message", err)
		return
	}

	c.broadcastAllLocked(Event{Type: EventMessageEdited, Payload: updated})
}

// UpdateProfile re-resolves the session identity and announces the new
// snapshot to every connection.
func (c *Coordinator) UpdateProfile(connID string, p UpdateProfilePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.registry.UpdateProfile(connID, p.Name, p.Update())
	if err != nil {
		c.dropIntent(connID, "update-profile", err)
		return
	}

	c.broadcastAllLocked(Event{Type: EventUserUpdated, Payload: session})
	c.log.Info("profile updated", "conn_id", connID, "name", session.Name)
}

// composeMessage builds the message skeleton: id, timestamps, author snapshot
// resolved per sender mode, and the canEdit flag computed from the true
// author identity and storyteller status.
func (c *Coordinator) composeMessage(session models.Session, typ models.MessageType, mode models.SenderMode, customSender string) models.Message {
	if mode == "" {
		mode = models.SenderSelf
	}

	author := models.Author{Name: session.Name, Avatar: session.Avatar, ID: session.ID}
	switch {
	case mode == models.SenderAnonymous:
		author.Name = ""
		author.Avatar = ""
	case mode == models.SenderOther && customSender != "":
		author.Name = customSender
		author.Avatar = models.DefaultAvatarURL
	default:
		mode = models.SenderSelf
	}

	now := time.Now()
	return models.Message{
		ID:           c.nextMessageID(now),
		User:         author,
		Timestamp:    now,
		Type:         typ,
		CanEdit:      session.IsStoryteller || author.ID == session.ID,
		SenderMode:   mode,
		CustomSender: customSender,
	}
}

func (c *Coordinator) appendAndBroadcastLocked(msg models.Message) {
	if err := c.history.Append(msg); err != nil {
		c.persistenceFailure(string(msg.Type), err)
		return
	}
	c.metrics.MessagesBroadcast.WithLabelValues(string(msg.Type)).Inc()
	c.broadcastAllLocked(Event{Type: EventNewMessage, Payload: msg})
}

// nextMessageID allocates ids from a non-decreasing millisecond floor. A wall
// clock stepping backward keeps incrementing the sequence under the last
// floor instead of reusing an earlier one.
func (c *Coordinator) nextMessageID(now time.Time) string {
	ms := now.UnixMilli()
	if ms <= c.lastMillis {
		c.seq++
	} else {
		c.lastMillis = ms
		c.seq = 0
	}
	return fmt.Sprintf("%d-%03d", c.lastMillis, c.seq)
}

func (c *Coordinator) unicastLocked(connID string, ev Event) {
	sender, ok := c.conns[connID]
	if !ok {
		return
	}
	if err := sender.Send(ev); err != nil {
		c.metrics.EventSendFailures.Inc()
		c.log.Warn("unicast failed", "conn_id", connID, "event", ev.Type, "error", err.Error())
	}
}

func (c *Coordinator) broadcastAllLocked(ev Event) {
	c.sendToLocked(c.conns, ev)
}

func (c *Coordinator) broadcastExceptLocked(exceptID string, ev Event) {
	targets := lo.OmitByKeys(c.conns, []string{exceptID})
	c.sendToLocked(targets, ev)
}

// sendToLocked delivers ev to each target. A failure on one target is
// isolated: it is logged and counted while the rest of the fan-out proceeds.
func (c *Coordinator) sendToLocked(targets map[string]EventSender, ev Event) {
	for connID, sender := range targets {
		if err := sender.Send(ev); err != nil {
			c.metrics.EventSendFailures.Inc()
			c.log.Warn("broadcast target failed", "conn_id", connID, "event", ev.Type, "error", err.Error())
		}
	}
}

func (c *Coordinator) dropIntent(connID, intent string, reason error) {
	c.metrics.RejectedIntents.WithLabelValues(intent).Inc()
	c.log.Warn("intent dropped", "conn_id", connID, "intent", intent, "reason", reason.Error())
}

func (c *Coordinator) persistenceFailure(intent string, err error) {
	c.metrics.PersistenceFailures.Inc()
	c.log.LogError(err, "persistence failed, intent aborted", "intent", intent)
}
