package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GetStream/duosync/feed"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(messagesCmd, sendCmd, reactCmd)
	messagesCmd.Flags().Int("older", 0, "number of older pages to load")
	sendCmd.Flags().String("image", "", "image reference to attach")
	sendCmd.Flags().String("reply-to", "", "activity id the message replies to")
	sendCmd.Flags().String("reply-summary", "", "summary of the activity replied to")
	reactCmd.Flags().Int("pages", 3, "number of pages to search for the message")
}

func openConversation(cmd *cobra.Command) (*session, error) {
	s, err := openSession(cmd.Context(), conf, logger, nil, feed.FilterAll)
	if err != nil {
		return nil, err
	}
	if err := s.requireConversation(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Show the conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		older, _ := cmd.Flags().GetInt("older")
		s, err := openConversation(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.conv.Load(cmd.Context()); err != nil {
			return fmt.Errorf("load messages: %w", err)
		}
		for range older {
			err := s.conv.LoadOlder(cmd.Context())
			if errors.Is(err, feed.ErrNoMorePages) {
				break
			}
			if err != nil {
				return fmt.Errorf("load older: %w", err)
			}
		}
		printMessages(cmd.OutOrStdout(), s.conv.Messages(), conf.Session.UserID, time.Now())
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <text>...",
	Short: "Send a message to your partner",
	RunE: func(cmd *cobra.Command, args []string) error {
		image, _ := cmd.Flags().GetString("image")
		replyTo, _ := cmd.Flags().GetString("reply-to")
		summary, _ := cmd.Flags().GetString("reply-summary")

		s, err := openConversation(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		d := feed.Draft{Text: strings.Join(args, " "), ImageRef: image}
		if replyTo != "" {
			d.Reply = &feed.ReplyContext{ActivityID: replyTo, Summary: summary}
		}
		m, err := s.conv.Send(cmd.Context(), d)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m, conf.Session.UserID, time.Now()))
		return nil
	},
}

var reactCmd = &cobra.Command{
	Use:   "react <message-id> <reaction>",
	Short: "Toggle a reaction on a message",
	Long: fmt.Sprintf(`react adds your reaction to a message, or removes it if already present.
Reactions: %s.`, reactionList()),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := feed.ParseReactionKind(args[1])
		if err != nil {
			return err
		}
		pages, _ := cmd.Flags().GetInt("pages")

		s, err := openConversation(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.conv.Load(cmd.Context()); err != nil {
			return fmt.Errorf("load messages: %w", err)
		}
		for i := 1; i < pages; i++ {
			if _, ok := s.conv.Message(args[0]); ok {
				break
			}
			if err := s.conv.LoadOlder(cmd.Context()); err != nil {
				break
			}
		}
		if err := s.conv.React(cmd.Context(), args[0], kind); err != nil {
			return err
		}
		if m, ok := s.conv.Message(args[0]); ok {
			fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m, conf.Session.UserID, time.Now()))
		}
		return nil
	},
}

func reactionList() string {
	names := make([]string, len(feed.ReactionKinds))
	for i, k := range feed.ReactionKinds {
		names[i] = fmt.Sprintf("%s (%s)", k, k.Emoji())
	}
	return strings.Join(names, ", ")
}
