package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/application"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/bootstrap"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/inbox"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/messagelog"
)

func parseUUIDArg(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a uuid: %w", name, err)
	}
	return id, nil
}

func newMessagesCmd(s *session) *cobra.Command {
	var (
		limit  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   "messages <conversation-id>",
		Short: "List a conversation's messages, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			convID, err := parseUUIDArg("conversation-id", args[0])
			if err != nil {
				return err
			}
			return s.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				q := application.ListMessagesQuery{ConversationID: convID, Limit: limit}
				var page *application.MessagePage
				if cursor != "" {
					c, err := messagelog.DecodeCursor(cursor)
					if err != nil {
						return err
					}
					page, err = app.Service.ListMessagesBefore(ctx, q, c)
					if err != nil {
						return err
					}
				} else {
					page, err = app.Service.ListMessages(ctx, q)
					if err != nil {
						return err
					}
				}
				printMessages(cmd.OutOrStdout(), page)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", messagelog.DefaultPageSize, "page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue after this cursor")
	return cmd
}

func printMessages(out io.Writer, page *application.MessagePage) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tMESSAGE\tSENDER\tCONTENT")
	for _, m := range page.Messages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Timestamp.Format(time.RFC3339Nano), m.ID, m.SenderID, m.Content)
	}
	tw.Flush()
	if page.Degraded {
		fmt.Fprintln(out, "warning: conversation has messages but no participants")
	}
	if page.Next != nil {
		fmt.Fprintf(out, "next cursor: %s\n", messagelog.EncodeCursor(*page.Next))
	}
}

func newInboxCmd(s *session) *cobra.Command {
	var (
		limit  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   "inbox <user-id>",
		Short: "List a user's conversations by recency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUUIDArg("user-id", args[0])
			if err != nil {
				return err
			}
			var after *inbox.Cursor
			if cursor != "" {
				c, err := inbox.DecodeCursor(cursor)
				if err != nil {
					return err
				}
				after = &c
			}
			return s.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				page, err := app.Service.ListUserConversations(ctx, userID, limit, after)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "LAST UPDATED\tCONVERSATION\tWITH")
				for _, e := range page.Entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", e.LastUpdated.Format(time.RFC3339Nano), e.ConversationID, e.ParticipantID)
				}
				tw.Flush()
				if page.Next != nil {
					fmt.Fprintf(out, "next cursor: %s\n", inbox.EncodeCursor(*page.Next))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", inbox.DefaultPageSize, "page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue after this cursor")
	return cmd
}

func newParticipantsCmd(s *session) *cobra.Command {
	var add []string
	cmd := &cobra.Command{
		Use:   "participants <conversation-id>",
		Short: "List, or with --add extend, a conversation roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			convID, err := parseUUIDArg("conversation-id", args[0])
			if err != nil {
				return err
			}
			newIDs := make([]uuid.UUID, 0, len(add))
			for _, raw := range add {
				id, err := parseUUIDArg("--add", raw)
				if err != nil {
					return err
				}
				newIDs = append(newIDs, id)
			}
			return s.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				for _, id := range newIDs {
					if err := app.Service.AddParticipant(ctx, convID, id); err != nil {
						return err
					}
				}
				participants, err := app.Service.ListParticipants(ctx, convID)
				if err != nil {
					return err
				}
				for _, p := range participants {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&add, "add", nil, "participant ids to add first")
	return cmd
}
