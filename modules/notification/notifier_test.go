package notification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/tasklink/chat-server/domain/chat"
	"github.com/tasklink/chat-server/events"
	"github.com/tasklink/chat-server/modules/store"
)

// mockLogger implements types.Logger for testing
type mockLogger struct {
	warnings int
}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  { m.warnings++ }
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

type fakeWriter struct {
	got []store.CreateNotificationRequest
	err error
}

func (f *fakeWriter) CreateNotification(_ context.Context, req store.CreateNotificationRequest) (*chat.Notification, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.got = append(f.got, req)
	return &chat.Notification{ID: "n1", UserID: req.UserID}, nil
}

func TestForMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	long := strings.Repeat("é", 150)

	tests := []struct {
		name     string
		content  string
		wantBody string
	}{
		{name: "short message", content: "Hello", wantBody: "Ada: Hello"},
		{name: "long message is cut at 100 characters", content: long, wantBody: "Ada: " + strings.Repeat("é", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ForMessage("bob", "Ada", "J42", "m1", tt.content, at)
			if ev.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", ev.Body, tt.wantBody)
			}
			if ev.Title != MessageTitle || ev.Type != MessageType {
				t.Errorf("Title/Type = %q/%q", ev.Title, ev.Type)
			}
			if ev.ActionURL != "/jobs/J42/messages" {
				t.Errorf("ActionURL = %q, want /jobs/J42/messages", ev.ActionURL)
			}
			if ev.UserID != "bob" || ev.MessageID != "m1" || !ev.Timestamp.Equal(at) {
				t.Errorf("event = %+v", ev)
			}
		})
	}
}

func TestBusNotifier_NoBus(t *testing.T) {
	if err := NewBusNotifier(nil).Notify(context.Background(), events.NotificationRequestedEvent{}); err == nil {
		t.Error("Notify() without bus expected error")
	}
}

func TestModule_HandleNotificationRequested(t *testing.T) {
	ev := ForMessage("bob", "Ada", "J42", "m1", "Hello", time.Now())

	t.Run("persists the notification", func(t *testing.T) {
		writer := &fakeWriter{}
		m := NewModule(&mockLogger{})
		m.writer = writer

		if err := m.handleNotificationRequested(context.Background(), ev, nil); err != nil {
			t.Fatalf("handleNotificationRequested() error = %v", err)
		}
		if len(writer.got) != 1 {
			t.Fatalf("CreateNotification called %d times, want 1", len(writer.got))
		}
		req := writer.got[0]
		if req.UserID != "bob" || req.JobID != "J42" || req.ActionURL != "/jobs/J42/messages" {
			t.Errorf("request = %+v", req)
		}
	})

	t.Run("store failure is logged and swallowed", func(t *testing.T) {
		logger := &mockLogger{}
		m := NewModule(logger)
		m.writer = &fakeWriter{err: errors.New("db locked")}

		if err := m.handleNotificationRequested(context.Background(), ev, nil); err != nil {
			t.Errorf("handleNotificationRequested() error = %v, want nil", err)
		}
		if logger.warnings != 1 {
			t.Errorf("warnings = %d, want 1", logger.warnings)
		}
	})
}
