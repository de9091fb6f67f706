package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Client events.
const (
	EventAuthenticate     = "authenticate"
	EventJoinJobRoom      = "join_job_room"
	EventLeaveJobRoom     = "leave_job_room"
	EventSendMessage      = "send_message"
	EventTypingStart      = "typing_start"
	EventTypingStop       = "typing_stop"
	EventMarkMessagesRead = "mark_messages_read"
	EventUpdateStatus     = "update_status"
	EventPing             = "ping"
)

// Server events. The heartbeat reuses EventPing.
const (
	EventAuthenticated        = "authenticated"
	EventAuthenticationFailed = "authentication_failed"
	EventJoinedRoom           = "joined_room"
	EventLeftRoom             = "left_room"
	EventRoomError            = "room_error"
	EventUserOnline           = "user_online"
	EventUserOffline          = "user_offline"
	EventMessageReceived      = "message_received"
	EventMessageSent          = "message_sent"
	EventError                = "error"
	EventMessagesRead         = "messages_read"
	EventUserStatusChanged    = "user_status_changed"
	EventPong                 = "pong"
)

// Error codes carried by error and room_error events.
const (
	CodeAuthRequired         = "AUTH_REQUIRED"
	CodeAlreadyAuthenticated = "ALREADY_AUTHENTICATED"
	CodeJobNotFound          = "JOB_NOT_FOUND"
	CodeAccessDenied         = "ACCESS_DENIED"
	CodeInvalidMessage       = "INVALID_MESSAGE"
	CodeInvalidPayload       = "INVALID_PAYLOAD"
	CodeInvalidStatus        = "INVALID_STATUS"
	CodeUnknownEvent         = "UNKNOWN_EVENT"
	CodeSendFailed           = "SEND_FAILED"
	CodeMarkReadFailed       = "MARK_READ_FAILED"
	CodeStatusUpdateFailed   = "STATUS_UPDATE_FAILED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeInternalError        = "INTERNAL_ERROR"
)

var (
	// ErrUnknownEvent is returned by Decode for an event name outside the protocol.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrInvalidPayload is returned by Decode for a frame or payload that is not valid JSON of the expected shape.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Envelope is the shape of every frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is one decoded client event. The set of implementations is closed.
type Inbound interface {
	inbound()
}

// Authenticate carries the bearer token of the connecting user.
type Authenticate struct {
	Token string `json:"token"`
	// Credential is accepted as an alias of Token.
	Credential string `json:"credential,omitempty"`
}

// BearerToken returns the presented credential.
func (a Authenticate) BearerToken() string {
	if a.Token != "" {
		return a.Token
	}
	return a.Credential
}

// JoinJobRoom asks to join the room of a job.
type JoinJobRoom struct {
	JobID string `json:"jobId"`
}

// LeaveJobRoom asks to leave the room of a job.
type LeaveJobRoom struct {
	JobID string `json:"jobId"`
}

// SendMessage posts a message to a job conversation.
type SendMessage struct {
	JobID       string `json:"jobId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType,omitempty"`
}

// TypingStart signals the user started typing in a job conversation.
type TypingStart struct {
	JobID string `json:"jobId"`
}

// TypingStop signals the user stopped typing.
type TypingStop struct {
	JobID string `json:"jobId"`
}

// MarkMessagesRead acknowledges delivered messages.
type MarkMessagesRead struct {
	MessageIDs []string `json:"messageIds"`
}

// UpdateStatus changes the user's presence status.
type UpdateStatus struct {
	Status string `json:"status"`
}

// Ping asks for a pong. Timestamp is echoed back untouched when present.
type Ping struct {
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

func (Authenticate) inbound()     {}
func (JoinJobRoom) inbound()      {}
func (LeaveJobRoom) inbound()     {}
func (SendMessage) inbound()      {}
func (TypingStart) inbound()      {}
func (TypingStop) inbound()       {}
func (MarkMessagesRead) inbound() {}
func (UpdateStatus) inbound()     {}
func (Ping) inbound()             {}

// Decode parses one client frame. The event name is returned whenever the envelope parsed,
// so callers can report which event was rejected.
func Decode(frame []byte) (string, Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Event == "" {
		return "", nil, fmt.Errorf("%w: missing event name", ErrInvalidPayload)
	}

	var (
		in  Inbound
		err error
	)
	switch env.Event {
	case EventAuthenticate:
		in, err = decodeData[Authenticate](env.Data)
	case EventJoinJobRoom:
		in, err = decodeData[JoinJobRoom](env.Data)
	case EventLeaveJobRoom:
		in, err = decodeData[LeaveJobRoom](env.Data)
	case EventSendMessage:
		in, err = decodeData[SendMessage](env.Data)
	case EventTypingStart:
		in, err = decodeData[TypingStart](env.Data)
	case EventTypingStop:
		in, err = decodeData[TypingStop](env.Data)
	case EventMarkMessagesRead:
		in, err = decodeData[MarkMessagesRead](env.Data)
	case EventUpdateStatus:
		in, err = decodeData[UpdateStatus](env.Data)
	case EventPing:
		in, err = decodeData[Ping](env.Data)
	default:
		return env.Event, nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return env.Event, in, err
}

func decodeData[T Inbound](data json.RawMessage) (Inbound, error) {
	var v T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	return v, nil
}

// Encode builds an outbound frame.
func Encode(event string, data any) ([]byte, error) {
	return json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data})
}

// Server event payloads.

// AuthenticatedPayload is sent after a successful authenticate.
type AuthenticatedPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

// AuthenticationFailedPayload is sent right before the connection is closed.
type AuthenticationFailedPayload struct {
	Reason string `json:"reason"`
}

// RoomPayload answers join_job_room and leave_job_room.
type RoomPayload struct {
	RoomID string `json:"roomId"`
	JobID  string `json:"jobId"`
}

// RoomErrorPayload rejects a join. RoomID holds the requested job id.
type RoomErrorPayload struct {
	RoomID  string `json:"roomId"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PresencePayload is broadcast as user_online and user_offline.
type PresencePayload struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	RoomID      string    `json:"roomId"`
	Timestamp   time.Time `json:"timestamp"`
}

// MessageSentPayload acknowledges a persisted message to its sender.
type MessageSentPayload struct {
	MessageID string    `json:"messageId"`
	JobID     string    `json:"jobId"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload reports a rejected event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// TypingPayload relays typing_start and typing_stop.
type TypingPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	JobID       string `json:"jobId"`
	RoomID      string `json:"roomId"`
}

// MessagesReadPayload is broadcast once per job touched by a read receipt.
type MessagesReadPayload struct {
	JobID      string    `json:"jobId"`
	MessageIDs []string  `json:"messageIds"`
	ReadBy     string    `json:"readBy"`
	ReadAt     time.Time `json:"readAt"`
}

// StatusChangedPayload is broadcast to every connection.
type StatusChangedPayload struct {
	UserID    string    `json:"userId"`
	Status    string    `json:"status"`
	LastSeen  time.Time `json:"lastSeen"`
	Timestamp time.Time `json:"timestamp"`
}

// PongPayload answers a client ping.
type PongPayload struct {
	Timestamp  json.RawMessage `json:"timestamp"`
	ServerTime int64           `json:"serverTime"`
}

// HeartbeatPayload is the periodic server ping.
type HeartbeatPayload struct {
	Timestamp int64 `json:"timestamp"`
}
