package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	senderID := int64(1)

	tests := []struct {
		name string
		raw  string
		want Inbound
	}{
		{
			name: "join channel",
			raw:  `{"event":"joinChannel","data":{"channelId":42}}`,
			want: &JoinChannelEvent{ChannelID: 42},
		},
		{
			name: "leave channel",
			raw:  `{"event":"leaveChannel","data":{"channelId":42}}`,
			want: &LeaveChannelEvent{ChannelID: 42},
		},
		{
			name: "join workspace",
			raw:  `{"event":"joinWorkspace","data":{"workspaceId":7}}`,
			want: &JoinWorkspaceEvent{WorkspaceID: 7},
		},
		{
			name: "typing",
			raw:  `{"event":"typing","data":{"channelId":42,"userName":"ignored"}}`,
			want: &TypingEvent{ChannelID: 42},
		},
		{
			name: "stopped typing",
			raw:  `{"event":"stoppedTyping","data":{"channelId":42}}`,
			want: &StoppedTypingEvent{ChannelID: 42},
		},
		{
			name: "send message",
			raw:  `{"event":"sendMessage","data":{"channelId":42,"content":"hi","senderId":1,"clientMessageId":"c1"}}`,
			want: &SendMessageEvent{ChannelID: 42, Content: "hi", SenderID: &senderID, ClientMessageID: "c1"},
		},
		{
			name: "empty send message decodes",
			raw:  `{"event":"sendMessage","data":{"channelId":42}}`,
			want: &SendMessageEvent{ChannelID: 42},
		},
		{
			name: "send file",
			raw:  `{"event":"sendFile","data":{"channelId":42,"fileUrl":"/uploads/a.png","fileName":"a.png","fileType":"image/png"}}`,
			want: &SendFileEvent{ChannelID: 42, FileURL: "/uploads/a.png", FileName: "a.png", FileType: "image/png"},
		},
		{
			name: "channel created",
			raw:  `{"event":"channelCreated","data":{"id":9,"name":"general","workspaceId":7}}`,
			want: &ChannelCreatedEvent{ID: 9, Name: "general", WorkspaceID: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "not json", raw: `hello`, want: ErrInvalidPayload},
		{name: "unknown event", raw: `{"event":"deleteChannel","data":{"channelId":1}}`, want: ErrUnknownEvent},
		{name: "outbound name", raw: `{"event":"receiveMessage","data":{"id":1}}`, want: ErrUnknownEvent},
		{name: "missing data", raw: `{"event":"joinChannel"}`, want: ErrInvalidPayload},
		{name: "null data", raw: `{"event":"joinChannel","data":null}`, want: ErrInvalidPayload},
		{name: "wrong type", raw: `{"event":"joinChannel","data":{"channelId":"42"}}`, want: ErrInvalidPayload},
		{name: "zero channel", raw: `{"event":"typing","data":{"channelId":0}}`, want: ErrInvalidPayload},
		{name: "zero workspace", raw: `{"event":"joinWorkspace","data":{}}`, want: ErrInvalidPayload},
		{name: "channel created without id", raw: `{"event":"channelCreated","data":{"name":"x"}}`, want: ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSendMessageEvent_Text(t *testing.T) {
	assert.Equal(t, "hi", (&SendMessageEvent{Content: "hi", Emoji: "👋"}).Text())
	assert.Equal(t, "👋", (&SendMessageEvent{Emoji: "👋"}).Text())
	assert.Empty(t, (&SendMessageEvent{}).Text())
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		ev   Outbound
		want string
	}{
		{
			name: "receive message",
			ev: ReceiveMessageEvent{
				ID: 5, ChannelID: 42, Content: "hi", SenderName: "Ada", SenderID: 1,
				CreatedAt: "2026-01-02T03:04:05Z",
			},
			want: `{"event":"receiveMessage","data":{"id":5,"channelId":42,"content":"hi","senderName":"Ada","senderId":1,"createdAt":"2026-01-02T03:04:05Z"}}`,
		},
		{
			name: "file message keeps empty content",
			ev: ReceiveMessageEvent{
				ID: 6, ChannelID: 42, FileURL: "/uploads/a.png", FileName: "a.png", FileType: "image/png",
				SenderName: "Ada", SenderID: 1, CreatedAt: "2026-01-02T03:04:05Z",
			},
			want: `{"event":"receiveMessage","data":{"id":6,"channelId":42,"content":"","fileUrl":"/uploads/a.png","fileName":"a.png","fileType":"image/png","senderName":"Ada","senderId":1,"createdAt":"2026-01-02T03:04:05Z"}}`,
		},
		{
			name: "user typing",
			ev:   UserTypingEvent{ChannelID: 42, UserID: 1, UserName: "Ada"},
			want: `{"event":"userTyping","data":{"channelId":42,"userId":1,"userName":"Ada"}}`,
		},
		{
			name: "user stopped typing",
			ev:   UserStoppedTypingEvent{ChannelID: 42, UserID: 1, UserName: "Ada"},
			want: `{"event":"userStoppedTyping","data":{"channelId":42,"userId":1,"userName":"Ada"}}`,
		},
		{
			name: "channel created",
			ev:   ChannelCreatedEvent{ID: 9, Name: "general", WorkspaceID: 7},
			want: `{"event":"channelCreated","data":{"id":9,"name":"general","workspaceId":7}}`,
		},
		{
			name: "send failed",
			ev:   SendFailedEvent{ChannelID: 42, ClientMessageID: "c1", Error: "message could not be saved"},
			want: `{"event":"sendFailed","data":{"channelId":42,"clientMessageId":"c1","error":"message could not be saved"}}`,
		},
		{
			name: "error",
			ev:   ErrorEvent{Event: "joinChannel", Error: "not a member"},
			want: `{"event":"error","data":{"event":"joinChannel","error":"not a member"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
