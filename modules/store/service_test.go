package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tasklink/chat-server/domain/chat"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo := NewRepository(setupTestDB(t))
	seedParticipants(t, repo)
	return NewService(repo)
}

func TestService_CreateMessage(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	tests := []struct {
		name        string
		req         CreateMessageRequest
		wantType    string
		expectError bool
	}{
		{
			name:     "defaults to text",
			req:      CreateMessageRequest{JobID: "J42", SenderID: "poster", Content: "Hello"},
			wantType: chat.MessageTypeText,
		},
		{
			name:     "keeps explicit type",
			req:      CreateMessageRequest{JobID: "J42", SenderID: "worker", Content: "pic", MessageType: chat.MessageTypeImage},
			wantType: chat.MessageTypeImage,
		},
		{
			name:        "unknown sender",
			req:         CreateMessageRequest{JobID: "J42", SenderID: "ghost", Content: "boo"},
			expectError: true,
		},
		{
			name:        "missing job",
			req:         CreateMessageRequest{SenderID: "poster", Content: "x"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := service.CreateMessage(ctx, tt.req)
			if tt.expectError {
				if err == nil {
					t.Error("CreateMessage() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateMessage() unexpected error: %v", err)
			}
			if msg.ID == "" {
				t.Error("CreateMessage() message.ID should not be empty")
			}
			if msg.IsRead {
				t.Error("CreateMessage() message should be unread")
			}
			if msg.MessageType != tt.wantType {
				t.Errorf("MessageType = %q, want %q", msg.MessageType, tt.wantType)
			}
			if msg.SenderName == "" {
				t.Error("CreateMessage() SenderName should be filled")
			}
		})
	}
}

func TestService_GetJobConcurrent(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j, err := service.GetJob(ctx, "J42")
			if err != nil {
				errs <- err
				return
			}
			// Each caller owns its copy.
			j.Title = "mutated"
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("GetJob() error = %v", err)
	}

	j, err := service.GetJob(ctx, "J42")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if j.Title != "Paint fence" {
		t.Errorf("GetJob() title = %q, want %q", j.Title, "Paint fence")
	}

	if _, err := service.GetJob(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetJob(missing) error = %v, want ErrJobNotFound", err)
	}
}

func TestService_ListMessagesFillsSenderNames(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	for _, sender := range []string{"poster", "worker", "poster"} {
		if _, err := service.CreateMessage(ctx, CreateMessageRequest{JobID: "J42", SenderID: sender, Content: "hi"}); err != nil {
			t.Fatalf("CreateMessage() error = %v", err)
		}
	}

	messages, err := service.ListMessages(ctx, "J42", 0)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("ListMessages() len = %d, want 3", len(messages))
	}
	for _, m := range messages {
		want := map[string]string{"poster": "Ada Poster", "worker": "Bo Worker"}[m.SenderID]
		if m.SenderName != want {
			t.Errorf("SenderName for %s = %q, want %q", m.SenderID, m.SenderName, want)
		}
	}
}

func TestService_CreateNotification(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	n, err := service.CreateNotification(ctx, CreateNotificationRequest{
		UserID:    "worker",
		Title:     "New message",
		Body:      "Ada Poster: Hello",
		Type:      "message",
		JobID:     "J42",
		ActionURL: "/jobs/J42/messages",
	})
	if err != nil {
		t.Fatalf("CreateNotification() error = %v", err)
	}
	if n.ID == "" || n.IsRead {
		t.Errorf("CreateNotification() = %+v, want new unread notification", n)
	}

	if _, err := service.CreateNotification(ctx, CreateNotificationRequest{UserID: "ghost", Title: "x"}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("CreateNotification(ghost) error = %v, want ErrUserNotFound", err)
	}

	list, err := service.ListNotifications(ctx, "worker", true, 0)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListNotifications() len = %d, want 1", len(list))
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{10, 10},
		{MaxListLimit + 1, MaxListLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
