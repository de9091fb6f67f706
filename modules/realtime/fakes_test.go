package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/require"
	"github.com/tasklink/chat-server/domain/chat"
	"github.com/tasklink/chat-server/domain/job"
	"github.com/tasklink/chat-server/domain/user"
	"github.com/tasklink/chat-server/events"
	"github.com/tasklink/chat-server/modules/auth"
	"github.com/tasklink/chat-server/modules/presence"
	"github.com/tasklink/chat-server/modules/store"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

// fakeConn records every frame sent to it.
type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames []Envelope
	closed bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return err
	}
	c.frames = append(c.frames, env)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// events returns the names of every frame received, in order.
func (c *fakeConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		names = append(names, f.Event)
	}
	return names
}

// payloads returns the raw payloads of every frame named event.
func (c *fakeConn) payloads(event string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, f := range c.frames {
		if f.Event == event {
			out = append(out, f.Data)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// fakeVerifier maps tokens to identities.
type fakeVerifier struct {
	identities map[string]*user.Identity
	errs       map[string]error
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (*user.Identity, error) {
	if err, ok := f.errs[token]; ok {
		return nil, err
	}
	id, ok := f.identities[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	cp := *id
	return &cp, nil
}

// fakeJobs is an in-memory JobStore.
type fakeJobs struct {
	mu        sync.Mutex
	jobs      map[string]*job.Job
	names     map[string]string
	messages  map[string]*chat.Message
	seq       int
	creates   int
	createErr error
	markErr   error
	getJobErr error
	panicJob  string
	now       func() time.Time
}

func (f *fakeJobs) GetJob(_ context.Context, jobID string) (*job.Job, error) {
	if jobID == f.panicJob && jobID != "" {
		panic("job lookup exploded")
	}
	if f.getJobErr != nil {
		return nil, f.getJobErr
	}
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobs) CreateMessage(_ context.Context, jobID, senderID, content, messageType string) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	f.creates++
	msg := &chat.Message{
		ID:          fmt.Sprintf("msg-%d", f.seq),
		JobID:       jobID,
		SenderID:    senderID,
		SenderName:  f.names[senderID],
		Content:     content,
		MessageType: messageType,
		CreatedAt:   f.now(),
	}
	f.messages[msg.ID] = msg
	cp := *msg
	return &cp, nil
}

func (f *fakeJobs) MarkRead(_ context.Context, messageIDs []string, readerID string) ([]chat.ReadReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return nil, f.markErr
	}
	at := f.now()
	var receipts []chat.ReadReceipt
	for _, id := range messageIDs {
		msg, ok := f.messages[id]
		if !ok || msg.SenderID == readerID || !f.jobs[msg.JobID].IsParticipant(readerID) {
			continue
		}
		if !msg.IsRead {
			msg.IsRead = true
			readAt := at
			msg.ReadAt = &readAt
		}
		receipts = append(receipts, chat.ReadReceipt{MessageID: id, JobID: msg.JobID, ReadAt: *msg.ReadAt})
	}
	return receipts, nil
}

func (f *fakeJobs) message(id string) chat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.messages[id]
}

func (f *fakeJobs) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

// fakeNotifier records notification requests.
type fakeNotifier struct {
	mu    sync.Mutex
	got   []events.NotificationRequestedEvent
	err   error
	panic bool
}

func (f *fakeNotifier) Notify(_ context.Context, event events.NotificationRequestedEvent) error {
	if f.panic {
		panic("notifier exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, event)
	return f.err
}

func (f *fakeNotifier) requests() []events.NotificationRequestedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.got)
}

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// harness wires a Manager to fakes. Users: A (poster of J42 and J17), B (worker of J42),
// C (no jobs), D (worker of J17), U (unverified).
type harness struct {
	t        *testing.T
	m        *Manager
	jobs     *fakeJobs
	notifier *fakeNotifier
	registry *presence.MemoryStore
	clock    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, clock: testNow}

	identities := map[string]*user.Identity{
		"tok-a": {UserID: "A", Email: "ada@example.com", Role: user.RolePoster, DisplayName: "Ada Lovelace", IsVerified: true},
		"tok-b": {UserID: "B", Email: "ben@example.com", Role: user.RoleDoer, DisplayName: "Ben Doer", IsVerified: true},
		"tok-c": {UserID: "C", Email: "cy@example.com", Role: user.RoleDoer, DisplayName: "Cy Other", IsVerified: true},
		"tok-d": {UserID: "D", Email: "dee@example.com", Role: user.RoleDoer, DisplayName: "Dee Doer", IsVerified: true},
		"tok-u": {UserID: "U", Email: "new@example.com", Role: user.RoleDoer, DisplayName: "New User", IsVerified: false},
	}
	verifier := &fakeVerifier{
		identities: identities,
		errs: map[string]error{
			"tok-expired": auth.ErrExpiredToken,
			"tok-down":    errors.New("verify-token request failed: timeout"),
		},
	}

	h.jobs = &fakeJobs{
		jobs: map[string]*job.Job{
			"J42": {ID: "J42", PosterID: "A", WorkerID: "B", Status: job.StatusAssigned},
			"J17": {ID: "J17", PosterID: "A", WorkerID: "D", Status: job.StatusInProgress},
			"J99": {ID: "J99", PosterID: "C", Status: job.StatusOpen},
		},
		names:    map[string]string{"A": "Ada Lovelace", "B": "Ben Doer", "C": "Cy Other", "D": "Dee Doer"},
		messages: make(map[string]*chat.Message),
		now:      func() time.Time { return h.clock },
	}
	h.notifier = &fakeNotifier{}
	h.registry = presence.NewMemoryStore()

	h.m = NewManager(NewHub(&mockLogger{}), verifier, h.jobs, h.registry, h.notifier, Options{}, &mockLogger{})
	h.m.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) connect(id string) (*fakeConn, *Session) {
	conn := &fakeConn{id: id}
	return conn, h.m.Connect(conn)
}

func (h *harness) emit(s *Session, event string, data any) {
	h.t.Helper()
	frame, err := Encode(event, data)
	require.NoError(h.t, err)
	h.m.Handle(context.Background(), s, frame)
}

// login connects and authenticates, then clears the authenticated frame.
func (h *harness) login(connID, token string) (*fakeConn, *Session) {
	h.t.Helper()
	conn, s := h.connect(connID)
	h.emit(s, EventAuthenticate, Authenticate{Token: token})
	require.True(h.t, s.Authenticated(), "login %s with %s", connID, token)
	conn.reset()
	return conn, s
}

// joined logs in and joins the rooms, then clears every connection's frames.
func (h *harness) joined(connID, token string, jobIDs ...string) (*fakeConn, *Session) {
	h.t.Helper()
	conn, s := h.login(connID, token)
	for _, jobID := range jobIDs {
		h.emit(s, EventJoinJobRoom, JoinJobRoom{JobID: jobID})
		require.True(h.t, s.inRoom(RoomName(jobID)), "%s join %s", connID, jobID)
	}
	conn.reset()
	return conn, s
}

func decodePayload[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// only asserts that exactly one frame named event arrived and returns its payload.
func only[T any](t *testing.T, c *fakeConn, event string) T {
	t.Helper()
	got := c.payloads(event)
	require.Len(t, got, 1, "%s frames on %s: %v", event, c.id, c.events())
	return decodePayload[T](t, got[0])
}
