package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/tasklink/chat-server/domain/chat"
	"github.com/tasklink/chat-server/domain/job"
	"github.com/tasklink/chat-server/domain/user"
	"github.com/tasklink/chat-server/events"
	"github.com/tasklink/chat-server/modules/auth"
	"github.com/tasklink/chat-server/modules/notification"
	"github.com/tasklink/chat-server/modules/presence"
	"github.com/tasklink/chat-server/modules/store"
)

// IdentityVerifier resolves a bearer token to a user identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*user.Identity, error)
}

// JobStore authorizes rooms and persists messages.
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*job.Job, error)
	CreateMessage(ctx context.Context, jobID, senderID, content, messageType string) (*chat.Message, error)
	MarkRead(ctx context.Context, messageIDs []string, readerID string) ([]chat.ReadReceipt, error)
}

// Notifier delivers a durable notification. Failures never reach the sender of the message.
type Notifier interface {
	Notify(ctx context.Context, event events.NotificationRequestedEvent) error
}

// Options tunes a Manager.
type Options struct {
	// MessageRate is the sustained number of inbound events per second per connection; 0 disables limiting.
	MessageRate int
	// MessageBurst is the bucket size of the per-connection limiter.
	MessageBurst int
	// NotifyTimeout bounds each best-effort notification.
	NotifyTimeout time.Duration
}

const defaultNotifyTimeout = 5 * time.Second

// RoomName returns the room of a job's conversation.
func RoomName(jobID string) string {
	return "job_" + jobID
}

// Manager runs the per-connection chat protocol.
type Manager struct {
	hub      *Hub
	verifier IdentityVerifier
	jobs     JobStore
	registry presence.Store
	notifier Notifier
	opts     Options
	logger   types.Logger
	now      func() time.Time

	pending sync.WaitGroup
}

// NewManager creates a Manager. Collaborators left nil must be set before the first connection.
func NewManager(hub *Hub, verifier IdentityVerifier, jobs JobStore, registry presence.Store, notifier Notifier, opts Options, logger types.Logger) *Manager {
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}
	return &Manager{
		hub:      hub,
		verifier: verifier,
		jobs:     jobs,
		registry: registry,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Hub returns the connection hub.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Connect registers a new anonymous connection. Nothing is sent to the client.
func (m *Manager) Connect(conn Conn) *Session {
	m.hub.Add(conn)
	return newSession(conn, newRateLimiter(m.opts.MessageBurst, m.opts.MessageRate, m.now))
}

// Handle processes one inbound frame. Failures are reported to the client, never returned.
func (m *Manager) Handle(ctx context.Context, s *Session, frame []byte) {
	if s.closed {
		return
	}

	name, in, err := Decode(frame)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Event handler panicked",
				"socketID", s.SocketID(), "userID", s.userID, "event", name, "panic", fmt.Sprint(r))
			m.sendError(s, name, CodeInternalError, "internal error")
		}
	}()

	if !s.limiter.allow() {
		m.sendError(s, name, CodeRateLimited, "too many events, slow down")
		return
	}

	if err != nil {
		if errors.Is(err, ErrUnknownEvent) {
			m.sendError(s, name, CodeUnknownEvent, "unknown event: "+name)
		} else {
			m.sendError(s, name, CodeInvalidPayload, "invalid payload")
		}
		return
	}

	switch ev := in.(type) {
	case Authenticate:
		m.authenticate(ctx, s, ev)
	case JoinJobRoom:
		m.joinRoom(ctx, s, ev)
	case LeaveJobRoom:
		m.leaveRoom(ctx, s, ev)
	case SendMessage:
		m.sendMessage(ctx, s, ev)
	case TypingStart:
		m.typing(s, ev.JobID, EventTypingStart)
	case TypingStop:
		m.typing(s, ev.JobID, EventTypingStop)
	case MarkMessagesRead:
		m.markRead(ctx, s, ev)
	case UpdateStatus:
		m.updateStatus(ctx, s, ev)
	case Ping:
		m.pong(s, ev)
	default:
		panic(fmt.Sprintf("realtime: unhandled inbound %T", in))
	}
}

func (m *Manager) authenticate(ctx context.Context, s *Session, ev Authenticate) {
	if s.Authenticated() {
		m.sendError(s, EventAuthenticate, CodeAlreadyAuthenticated, "connection is already authenticated")
		return
	}

	identity, err := m.verifier.Verify(ctx, ev.BearerToken())
	switch {
	case err != nil:
	case identity == nil:
		err = auth.ErrInvalidToken
	case !identity.IsVerified:
		err = auth.ErrUnverifiedAccount
	}
	if err != nil {
		m.logger.Info("Authentication failed", "socketID", s.SocketID(), "error", err)
		m.failAuthentication(s, authFailureReason(err))
		return
	}

	now := m.now()
	if _, err := m.registry.Register(ctx, identity.UserID, s.SocketID(), now); err != nil {
		m.logger.Error("Failed to register presence", "socketID", s.SocketID(), "userID", identity.UserID, "error", err)
		m.failAuthentication(s, "authentication failed")
		return
	}

	s.identify(identity, presence.StatusOnline, now)
	m.hub.ToConn(s.SocketID(), EventAuthenticated, AuthenticatedPayload{
		UserID:      s.userID,
		DisplayName: s.displayName,
		Email:       s.email,
		Role:        s.role,
	})
	m.logger.Info("User authenticated", "socketID", s.SocketID(), "userID", s.userID)
}

// failAuthentication is terminal: the connection is closed and its read loop disconnects the session.
func (m *Manager) failAuthentication(s *Session, reason string) {
	m.hub.ToConn(s.SocketID(), EventAuthenticationFailed, AuthenticationFailedPayload{Reason: reason})
	s.closed = true
	if err := s.conn.Close(); err != nil {
		m.logger.Debug("Failed to close connection", "socketID", s.SocketID(), "error", err)
	}
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "token expired"
	case errors.Is(err, auth.ErrUnverifiedAccount):
		return "account not verified"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnknownUser):
		return "invalid token"
	}
	return "authentication failed"
}

// authorize loads a job and checks the session user takes part in it. On failure it
// returns the error code and message to report.
func (m *Manager) authorize(ctx context.Context, s *Session, jobID string) (*job.Job, string, string) {
	j, err := m.jobs.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrJobNotFound) {
		return nil, CodeJobNotFound, "job not found"
	}
	if err != nil {
		m.logger.Error("Failed to load job", "socketID", s.SocketID(), "userID", s.userID, "jobID", jobID, "error", err)
		return nil, CodeInternalError, "failed to load job"
	}
	if !j.IsParticipant(s.userID) {
		return nil, CodeAccessDenied, "access denied"
	}
	return j, "", ""
}

func (m *Manager) joinRoom(ctx context.Context, s *Session, ev JoinJobRoom) {
	if !s.Authenticated() {
		m.roomError(s, ev.JobID, CodeAuthRequired, "authentication required")
		return
	}
	if _, code, msg := m.authorize(ctx, s, ev.JobID); code != "" {
		m.roomError(s, ev.JobID, code, msg)
		return
	}

	room := RoomName(ev.JobID)
	joined := RoomPayload{RoomID: room, JobID: ev.JobID}
	if s.inRoom(room) {
		m.hub.ToConn(s.SocketID(), EventJoinedRoom, joined)
		return
	}

	m.hub.Join(s.SocketID(), room)
	s.join(room)
	m.syncRegistry(ctx, s, "join", m.registry.AddRoom(ctx, s.userID, s.SocketID(), room))

	m.hub.ToConn(s.SocketID(), EventJoinedRoom, joined)
	m.hub.ToRoom(room, s.SocketID(), EventUserOnline, PresencePayload{
		UserID:      s.userID,
		DisplayName: s.displayName,
		RoomID:      room,
		Timestamp:   m.now(),
	})
}

func (m *Manager) leaveRoom(ctx context.Context, s *Session, ev LeaveJobRoom) {
	room := RoomName(ev.JobID)
	if !s.inRoom(room) {
		return
	}

	m.hub.Leave(s.SocketID(), room)
	s.leave(room)
	m.syncRegistry(ctx, s, "leave", m.registry.RemoveRoom(ctx, s.userID, s.SocketID(), room))

	m.hub.ToConn(s.SocketID(), EventLeftRoom, RoomPayload{RoomID: room, JobID: ev.JobID})
	m.hub.ToRoom(room, s.SocketID(), EventUserOffline, PresencePayload{
		UserID:      s.userID,
		DisplayName: s.displayName,
		RoomID:      room,
		Timestamp:   m.now(),
	})
}

// syncRegistry logs a failed registry write. Room membership lives in the hub, so the
// operation itself still succeeds.
func (m *Manager) syncRegistry(ctx context.Context, s *Session, op string, err error) {
	if errors.Is(err, presence.ErrNotFound) {
		err = m.reclaim(ctx, s, s.status, m.now())
	}
	switch {
	case err == nil:
	case errors.Is(err, presence.ErrStaleConnection):
		m.logger.Debug("Presence entry owned by another connection", "op", op, "socketID", s.SocketID(), "userID", s.userID)
	default:
		m.logger.Warn("Failed to update presence", "op", op, "socketID", s.SocketID(), "userID", s.userID, "error", err)
	}
}

// reclaim rebuilds the registry entry of a live connection after it went missing, for
// example when the shared store was flushed.
func (m *Manager) reclaim(ctx context.Context, s *Session, status string, at time.Time) error {
	if _, err := m.registry.Register(ctx, s.userID, s.SocketID(), at); err != nil {
		return err
	}
	for _, room := range s.rooms {
		if err := m.registry.AddRoom(ctx, s.userID, s.SocketID(), room); err != nil {
			return err
		}
	}
	m.logger.Info("Presence entry restored", "socketID", s.SocketID(), "userID", s.userID)
	if status == presence.StatusOnline {
		return nil
	}
	return m.registry.SetStatus(ctx, s.userID, s.SocketID(), status, at)
}

func (m *Manager) sendMessage(ctx context.Context, s *Session, ev SendMessage) {
	if !s.Authenticated() {
		m.sendError(s, EventSendMessage, CodeAuthRequired, "authentication required")
		return
	}
	j, code, msg := m.authorize(ctx, s, ev.JobID)
	if code == CodeInternalError {
		m.sendError(s, EventSendMessage, CodeSendFailed, "failed to send message")
		return
	}
	if code != "" {
		m.sendError(s, EventSendMessage, code, msg)
		return
	}

	if err := ValidateContent(ev.Content); err != nil {
		m.sendError(s, EventSendMessage, CodeInvalidMessage, err.Error())
		return
	}
	messageType, err := NormalizeMessageType(ev.MessageType)
	if err != nil {
		m.sendError(s, EventSendMessage, CodeInvalidMessage, err.Error())
		return
	}
	content := Sanitize(ev.Content)
	if content == "" {
		m.sendError(s, EventSendMessage, CodeInvalidMessage, ErrContentStripped.Error())
		return
	}

	message, err := m.jobs.CreateMessage(ctx, j.ID, s.userID, content, messageType)
	if err != nil {
		m.logger.Error("Failed to persist message", "socketID", s.SocketID(), "userID", s.userID, "jobID", j.ID, "error", err)
		m.sendError(s, EventSendMessage, CodeSendFailed, "failed to send message")
		return
	}
	if message.SenderName == "" {
		message.SenderName = s.displayName
	}

	m.hub.ToRoom(RoomName(j.ID), "", EventMessageReceived, message)
	m.hub.ToConn(s.SocketID(), EventMessageSent, MessageSentPayload{
		MessageID: message.ID,
		JobID:     j.ID,
		Timestamp: message.CreatedAt,
	})

	if recipient := j.OtherParticipant(s.userID); recipient != "" {
		m.notify(notification.ForMessage(recipient, message.SenderName, j.ID, message.ID, message.Content, message.CreatedAt))
	}
}

// notify runs a best-effort notification detached from the sender's request.
func (m *Manager) notify(event events.NotificationRequestedEvent) {
	if m.notifier == nil {
		return
	}
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("Notifier panicked", "userID", event.UserID, "messageID", event.MessageID, "panic", fmt.Sprint(r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), m.opts.NotifyTimeout)
		defer cancel()
		if err := m.notifier.Notify(ctx, event); err != nil {
			m.logger.Warn("Failed to request notification",
				"userID", event.UserID, "jobID", event.JobID, "messageID", event.MessageID, "error", err)
		}
	}()
}

// typing is fire-and-forget: unauthenticated signals are dropped without a reply.
func (m *Manager) typing(s *Session, jobID, event string) {
	if !s.Authenticated() || jobID == "" {
		return
	}
	room := RoomName(jobID)
	m.hub.ToRoom(room, s.SocketID(), event, TypingPayload{
		UserID:      s.userID,
		DisplayName: s.displayName,
		JobID:       jobID,
		RoomID:      room,
	})
}

func (m *Manager) markRead(ctx context.Context, s *Session, ev MarkMessagesRead) {
	if !s.Authenticated() {
		m.sendError(s, EventMarkMessagesRead, CodeAuthRequired, "authentication required")
		return
	}
	if len(ev.MessageIDs) == 0 {
		return
	}

	receipts, err := m.jobs.MarkRead(ctx, ev.MessageIDs, s.userID)
	if err != nil {
		m.logger.Error("Failed to mark messages read", "socketID", s.SocketID(), "userID", s.userID, "error", err)
		m.sendError(s, EventMarkMessagesRead, CodeMarkReadFailed, "failed to mark messages read")
		return
	}

	// One broadcast per job. Receipts keep the first read time, so repeats are identical.
	var order []string
	byJob := make(map[string]*MessagesReadPayload)
	for _, rc := range receipts {
		p, ok := byJob[rc.JobID]
		if !ok {
			p = &MessagesReadPayload{JobID: rc.JobID, ReadBy: s.userID}
			byJob[rc.JobID] = p
			order = append(order, rc.JobID)
		}
		p.MessageIDs = append(p.MessageIDs, rc.MessageID)
		if rc.ReadAt.After(p.ReadAt) {
			p.ReadAt = rc.ReadAt
		}
	}
	for _, jobID := range order {
		m.hub.ToRoom(RoomName(jobID), "", EventMessagesRead, byJob[jobID])
	}
}

func (m *Manager) updateStatus(ctx context.Context, s *Session, ev UpdateStatus) {
	if !s.Authenticated() {
		m.sendError(s, EventUpdateStatus, CodeAuthRequired, "authentication required")
		return
	}
	if !presence.ValidStatus(ev.Status) {
		m.sendError(s, EventUpdateStatus, CodeInvalidStatus, "status must be online, away, busy or offline")
		return
	}

	now := m.now()
	err := m.registry.SetStatus(ctx, s.userID, s.SocketID(), ev.Status, now)
	if errors.Is(err, presence.ErrNotFound) {
		err = m.reclaim(ctx, s, ev.Status, now)
	}
	switch {
	case err == nil:
	case errors.Is(err, presence.ErrStaleConnection):
		// A newer connection speaks for this user.
		s.setStatus(ev.Status, now)
		m.logger.Debug("Status update from superseded connection", "socketID", s.SocketID(), "userID", s.userID)
		return
	default:
		m.logger.Error("Failed to update status", "socketID", s.SocketID(), "userID", s.userID, "error", err)
		m.sendError(s, EventUpdateStatus, CodeStatusUpdateFailed, "failed to update status")
		return
	}

	s.setStatus(ev.Status, now)
	m.hub.ToAll("", EventUserStatusChanged, StatusChangedPayload{
		UserID:    s.userID,
		Status:    ev.Status,
		LastSeen:  now,
		Timestamp: now,
	})
}

func (m *Manager) pong(s *Session, ev Ping) {
	now := m.now()
	ts := ev.Timestamp
	if len(ts) == 0 || string(ts) == "null" {
		ts = []byte(fmt.Sprint(now.UnixMilli()))
	}
	m.hub.ToConn(s.SocketID(), EventPong, PongPayload{Timestamp: ts, ServerTime: now.UnixMilli()})
}

// Disconnect releases the session. The registry write and the global status broadcast only
// happen when the session still owns the user's registry entry.
func (m *Manager) Disconnect(ctx context.Context, s *Session) {
	s.closed = true
	m.hub.Remove(s.SocketID())
	if !s.Authenticated() {
		return
	}

	now := m.now()
	err := m.registry.MarkOffline(ctx, s.userID, s.SocketID(), now)
	switch {
	case err == nil:
	case errors.Is(err, presence.ErrStaleConnection), errors.Is(err, presence.ErrNotFound):
		m.leaveSupersededRooms(ctx, s, now)
		m.logger.Info("Superseded connection closed", "socketID", s.SocketID(), "userID", s.userID)
		return
	default:
		m.logger.Warn("Failed to mark user offline", "socketID", s.SocketID(), "userID", s.userID, "error", err)
	}

	s.setStatus(presence.StatusOffline, now)
	for _, room := range s.rooms {
		m.hub.ToRoom(room, "", EventUserOffline, PresencePayload{
			UserID:      s.userID,
			DisplayName: s.displayName,
			RoomID:      room,
			Timestamp:   now,
		})
	}
	m.hub.ToAll("", EventUserStatusChanged, StatusChangedPayload{
		UserID:    s.userID,
		Status:    presence.StatusOffline,
		LastSeen:  now,
		Timestamp: now,
	})
	m.logger.Info("User disconnected", "socketID", s.SocketID(), "userID", s.userID, "rooms", len(s.rooms))
}

// leaveSupersededRooms sends user_offline to the rooms of a closed connection that the
// user's live connection has not joined.
func (m *Manager) leaveSupersededRooms(ctx context.Context, s *Session, now time.Time) {
	var live string
	entry, err := m.registry.Get(ctx, s.userID)
	switch {
	case err == nil:
		live = entry.ConnID
	case !errors.Is(err, presence.ErrNotFound):
		m.logger.Warn("Failed to read presence", "socketID", s.SocketID(), "userID", s.userID, "error", err)
	}

	for _, room := range s.rooms {
		if live != "" && m.hub.InRoom(live, room) {
			continue
		}
		m.hub.ToRoom(room, "", EventUserOffline, PresencePayload{
			UserID:      s.userID,
			DisplayName: s.displayName,
			RoomID:      room,
			Timestamp:   now,
		})
	}
}

// Shutdown waits for in-flight notifications, bounded by ctx, then closes every connection.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.pending.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for notifications: %w", ctx.Err())
	}
	closed := m.hub.CloseAll()
	m.logger.Info("Closed connections", "count", closed)
	return err
}

func (m *Manager) sendError(s *Session, event, code, message string) {
	m.hub.ToConn(s.SocketID(), EventError, ErrorPayload{Code: code, Message: message, Event: event})
}

func (m *Manager) roomError(s *Session, jobID, code, message string) {
	m.hub.ToConn(s.SocketID(), EventRoomError, RoomErrorPayload{RoomID: jobID, Code: code, Message: message})
}
