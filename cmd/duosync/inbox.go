package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/GetStream/duosync/feed"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(inboxCmd, readCmd, readAllCmd)
	inboxCmd.Flags().Bool("unread", false, "show unread notifications only")
	inboxCmd.Flags().Int("more", 0, "number of additional pages to load")
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		unread, _ := cmd.Flags().GetBool("unread")
		more, _ := cmd.Flags().GetInt("more")
		filter := feed.FilterAll
		if unread {
			filter = feed.FilterUnread
		}

		s, err := openSession(cmd.Context(), conf, logger, nil, filter)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.inbox.Load(cmd.Context()); err != nil {
			return fmt.Errorf("load inbox: %w", err)
		}
		for range more {
			err := s.inbox.LoadMore(cmd.Context())
			if errors.Is(err, feed.ErrNoMorePages) {
				break
			}
			if err != nil {
				return fmt.Errorf("load more: %w", err)
			}
		}
		printInbox(cmd.OutOrStdout(), s.inbox.Notifications(), s.inbox.UnreadCount(), time.Now())
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read <notification-id>...",
	Short: "Mark notifications read",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), conf, logger, nil, feed.FilterUnread)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.inbox.Load(cmd.Context()); err != nil {
			return fmt.Errorf("load inbox: %w", err)
		}
		var errs []error
		for _, id := range args {
			if err := s.inbox.MarkRead(cmd.Context(), id); err != nil {
				errs = append(errs, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", s.inbox.UnreadCount())
		return errors.Join(errs...)
	},
}

var readAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), conf, logger, nil, feed.FilterAll)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.inbox.Load(cmd.Context()); err != nil {
			return fmt.Errorf("load inbox: %w", err)
		}
		before := s.inbox.UnreadCount()
		if err := s.inbox.MarkAllRead(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %d notifications read\n", before)
		return nil
	},
}
