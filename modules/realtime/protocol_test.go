package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantName string
		want     Inbound
		wantErr  error
	}{
		{
			name:     "authenticate",
			frame:    `{"event":"authenticate","data":{"token":"abc"}}`,
			wantName: EventAuthenticate,
			want:     Authenticate{Token: "abc"},
		},
		{
			name:     "authenticate with credential",
			frame:    `{"event":"authenticate","data":{"credential":"abc"}}`,
			wantName: EventAuthenticate,
			want:     Authenticate{Credential: "abc"},
		},
		{
			name:     "send message",
			frame:    `{"event":"send_message","data":{"jobId":"J42","content":"Hello","messageType":"image"}}`,
			wantName: EventSendMessage,
			want:     SendMessage{JobID: "J42", Content: "Hello", MessageType: "image"},
		},
		{
			name:     "mark read",
			frame:    `{"event":"mark_messages_read","data":{"messageIds":["m1","m2"]}}`,
			wantName: EventMarkMessagesRead,
			want:     MarkMessagesRead{MessageIDs: []string{"m1", "m2"}},
		},
		{
			name:     "typing without data",
			frame:    `{"event":"typing_stop"}`,
			wantName: EventTypingStop,
			want:     TypingStop{},
		},
		{
			name:     "unknown fields ignored",
			frame:    `{"event":"leave_job_room","data":{"jobId":"J1","extra":true}}`,
			wantName: EventLeaveJobRoom,
			want:     LeaveJobRoom{JobID: "J1"},
		},
		{
			name:     "unknown event",
			frame:    `{"event":"drop_tables","data":{}}`,
			wantName: "drop_tables",
			wantErr:  ErrUnknownEvent,
		},
		{
			name:     "bad data type",
			frame:    `{"event":"update_status","data":{"status":7}}`,
			wantName: EventUpdateStatus,
			wantErr:  ErrInvalidPayload,
		},
		{
			name:    "missing event",
			frame:   `{"data":{"token":"abc"}}`,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "not json",
			frame:   `{"event":`,
			wantErr: ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, in, err := Decode([]byte(tt.frame))
			assert.Equal(t, tt.wantName, name)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, in)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, in)
		})
	}
}

func TestDecode_PingKeepsRawTimestamp(t *testing.T) {
	_, in, err := Decode([]byte(`{"event":"ping","data":{"timestamp":"2026-05-04T10:00:00Z"}}`))
	require.NoError(t, err)

	ping, ok := in.(Ping)
	require.True(t, ok)
	assert.JSONEq(t, `"2026-05-04T10:00:00Z"`, string(ping.Timestamp))
}

func TestAuthenticate_BearerToken(t *testing.T) {
	assert.Equal(t, "t1", Authenticate{Token: "t1", Credential: "c1"}.BearerToken())
	assert.Equal(t, "c1", Authenticate{Credential: "c1"}.BearerToken())
	assert.Empty(t, Authenticate{}.BearerToken())
}

func TestEncode(t *testing.T) {
	frame, err := Encode(EventRoomError, RoomErrorPayload{RoomID: "J42", Code: CodeAccessDenied, Message: "access denied"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"room_error","data":{"roomId":"J42","code":"ACCESS_DENIED","message":"access denied"}}`, string(frame))

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, EventRoomError, env.Event)
}
