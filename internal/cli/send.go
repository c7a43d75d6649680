package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/application"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/bootstrap"
)

func newSendCmd(s *session) *cobra.Command {
	var clientMsgID string
	cmd := &cobra.Command{
		Use:   "send <conversation-id> <sender-id> <content>",
		Short: "Send one message through the full send path",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			convID, err := parseUUIDArg("conversation-id", args[0])
			if err != nil {
				return err
			}
			senderID, err := parseUUIDArg("sender-id", args[1])
			if err != nil {
				return err
			}
			return s.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				res, err := app.Service.SendMessage(ctx, application.SendMessageCommand{
					ConversationID: convID,
					SenderID:       senderID,
					Content:        args[2],
					ClientMsgID:    clientMsgID,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s\n", res.Message.ID, res.Status)
				for _, u := range res.UnindexedParticipants {
					fmt.Fprintf(out, "  inbox not updated: %s\n", u)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&clientMsgID, "client-msg-id", "", "idempotency key for retried sends")
	return cmd
}
