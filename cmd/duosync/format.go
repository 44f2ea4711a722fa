package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/GetStream/duosync/feed"
	"github.com/dustin/go-humanize"
)

func ago(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

func formatReactions(rs feed.ReactionSet) string {
	var parts []string
	for _, kind := range feed.ReactionKinds {
		if r, ok := rs[kind]; ok {
			parts = append(parts, fmt.Sprintf("%s %d", kind.Emoji(), r.Count))
		}
	}
	return strings.Join(parts, " ")
}

func formatMessage(m feed.Message, userID string, now time.Time) string {
	var b strings.Builder
	who := m.SenderID
	if who == userID {
		who = "you"
	}
	fmt.Fprintf(&b, "%s  %s  %s:", m.ID, ago(m.CreatedAt, now), who)
	if m.Reply != nil {
		fmt.Fprintf(&b, " (re: %s)", firstNonEmpty(m.Reply.Summary, m.Reply.ActivityID))
	}
	if m.Text != "" {
		b.WriteString(" " + m.Text)
	}
	if m.ImageRef != "" {
		b.WriteString(" [image]")
	}
	if r := formatReactions(m.Reactions); r != "" {
		b.WriteString("  " + r)
	}
	if m.Status == feed.StatusPending || m.Status == feed.StatusFailed {
		fmt.Fprintf(&b, "  <%s>", m.Status)
	}
	return b.String()
}

func formatNotification(n feed.Notification, now time.Time) string {
	mark := " "
	if !n.Read {
		mark = "*"
	}
	text := firstNonEmpty(n.Title, n.Message)
	if n.Actor != nil && n.Actor.Name != "" && !strings.Contains(text, n.Actor.Name) {
		text = n.Actor.Name + ": " + text
	}
	return fmt.Sprintf("%s %s  %-20s  %s  (%s)", mark, n.ID, n.Type, text, ago(n.CreatedAt, now))
}

// printMessages prints oldest first, the way a conversation reads.
func printMessages(w io.Writer, msgs []feed.Message, userID string, now time.Time) {
	msgs = slices.Clone(msgs)
	slices.Reverse(msgs)
	for _, m := range msgs {
		fmt.Fprintln(w, formatMessage(m, userID, now))
	}
}

func printInbox(w io.Writer, ns []feed.Notification, unread int, now time.Time) {
	fmt.Fprintf(w, "%s unread\n", humanize.Comma(int64(unread)))
	for _, n := range ns {
		fmt.Fprintln(w, formatNotification(n, now))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
