package postgres

import (
	"testing"
	"time"

	"github.com/GetStream/duosync/feed"
	"github.com/google/go-cmp/cmp"
)

func TestDirectMessage_FeedMessage(t *testing.T) {
	sent := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	read := sent.Add(time.Minute)

	tests := []struct {
		name string
		msg  directMessage
		want feed.Message
	}{
		{
			name: "Reactions",
			msg: directMessage{
				ID:            "m1",
				PartnershipID: "p1",
				SenderID:      "u1",
				TextContent:   "Morning run done",
				SentAt:        sent,
				Reactions: []reaction{
					{UserID: "u2", Emoji: "thumbsup"},
					{UserID: "u1", Emoji: "👍"},
					{UserID: "u2", Emoji: "heart"},
					{UserID: "u2", Emoji: "🦄"},
				},
			},
			want: feed.Message{
				ID:             "m1",
				ConversationID: "p1",
				SenderID:       "u1",
				Text:           "Morning run done",
				CreatedAt:      sent,
				Status:         feed.StatusSent,
				Reactions: feed.ReactionSet{
					feed.ReactionThumbsUp: {Users: []string{"u1", "u2"}, Count: 2},
					feed.ReactionHeart:    {Users: []string{"u2"}, Count: 1},
				},
			},
		},
		{
			name: "ReadReplyImage",
			msg: directMessage{
				ID:                     "m2",
				PartnershipID:          "p1",
				SenderID:               "u2",
				EmojiContent:           "🎉",
				ImageURL:               "https://img.example/2.png",
				SentAt:                 sent,
				ReadAt:                 &read,
				ReplyToActivityID:      "checkin-7",
				ReplyToActivitySummary: "Checked in: meditation",
			},
			want: feed.Message{
				ID:             "m2",
				ConversationID: "p1",
				SenderID:       "u2",
				Text:           "🎉",
				ImageRef:       "https://img.example/2.png",
				CreatedAt:      sent,
				Status:         feed.StatusRead,
				Reactions:      feed.ReactionSet{},
				Reply:          &feed.ReplyContext{ActivityID: "checkin-7", Summary: "Checked in: meditation"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.msg.FeedMessage()); diff != "" {
				t.Errorf("FeedMessage() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNotification_FeedNotification(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		n    notification
		want feed.Notification
	}{
		{
			name: "Actor",
			n: notification{
				ID:          "n1",
				RecipientID: "u1",
				ActorUserID: "u2",
				Actor:       &user{ID: "u2", Username: "sam"},
				Type:        "partner_check_in",
				Title:       "Sam checked in",
				LinkTo:      "/partnership",
				CreatedAt:   created,
			},
			want: feed.Notification{
				ID:        "n1",
				UserID:    "u1",
				Type:      feed.NotificationPartnerCheckIn,
				Actor:     &feed.Actor{ID: "u2", Name: "sam"},
				Title:     "Sam checked in",
				Link:      "/partnership",
				CreatedAt: created,
			},
		},
		{
			name: "System",
			n: notification{
				ID:          "n2",
				RecipientID: "u1",
				Type:        "maintenance",
				IsRead:      true,
				CreatedAt:   created,
			},
			want: feed.Notification{
				ID:        "n2",
				UserID:    "u1",
				Type:      feed.NotificationGeneral,
				CreatedAt: created,
				Read:      true,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.n.FeedNotification()); diff != "" {
				t.Errorf("FeedNotification() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPageOf(t *testing.T) {
	tests := []struct {
		name  string
		q     feed.PageQuery
		total int
		want  feed.Page[int]
	}{
		{
			name:  "First",
			q:     feed.PageQuery{Page: 1, Limit: 10},
			total: 25,
			want:  feed.Page[int]{CurrentPage: 1, TotalPages: 3, TotalItems: 25, HasNextPage: true},
		},
		{
			name:  "Last",
			q:     feed.PageQuery{Page: 3, Limit: 10},
			total: 25,
			want:  feed.Page[int]{CurrentPage: 3, TotalPages: 3, TotalItems: 25},
		},
		{
			name: "Empty",
			q:    feed.PageQuery{Page: 1, Limit: 10},
			want: feed.Page[int]{CurrentPage: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, pageOf[int](nil, tt.q, tt.total)); diff != "" {
				t.Errorf("pageOf() mismatch (-want +got):\n%s", diff)
			}
			if got := offset(tt.q); got != (tt.q.Page-1)*tt.q.Limit {
				t.Errorf("offset() = %d", got)
			}
		})
	}
}
