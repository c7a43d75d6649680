package cli

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/application"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/bootstrap"
)

type seedOptions struct {
	users         int
	conversations int
	maxMessages   int
	seed          int64
}

type seedReport struct {
	Users         []uuid.UUID
	Conversations []uuid.UUID
	Messages      int
	Partial       int
}

func newSeedCmd(s *session) *cobra.Command {
	opts := seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the store with random users, direct conversations and messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				rep, err := seed(ctx, app.Service, opts)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "users:         %d\n", len(rep.Users))
				fmt.Fprintf(out, "conversations: %d\n", len(rep.Conversations))
				fmt.Fprintf(out, "messages:      %d (%d partially indexed)\n", rep.Messages, rep.Partial)
				for _, u := range rep.Users {
					fmt.Fprintf(out, "  user %s\n", u)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&opts.users, "users", 10, "number of users")
	cmd.Flags().IntVar(&opts.conversations, "conversations", 15, "number of direct conversations to attempt")
	cmd.Flags().IntVar(&opts.maxMessages, "max-messages", 50, "upper bound of messages per conversation")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "random seed, 0 means time based")
	return cmd
}

// seed pairs random users into direct conversations and sends 1..maxMessages
// messages in each, alternating randomly between the two members. A pair
// picked twice reuses its conversation.
func seed(ctx context.Context, svc *application.Service, opts seedOptions) (*seedReport, error) {
	if opts.users < 2 {
		return nil, fmt.Errorf("need at least 2 users, got %d", opts.users)
	}
	if opts.maxMessages < 1 {
		opts.maxMessages = 1
	}
	if opts.seed == 0 {
		opts.seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(opts.seed))

	rep := &seedReport{Users: make([]uuid.UUID, opts.users)}
	for i := range rep.Users {
		rep.Users[i] = uuid.New()
	}

	seen := make(map[uuid.UUID]bool)
	base := time.Now().UTC().Add(-time.Duration(opts.conversations*opts.maxMessages) * time.Second)

	for i := 0; i < opts.conversations; i++ {
		a := rep.Users[rng.Intn(len(rep.Users))]
		b := rep.Users[rng.Intn(len(rep.Users))]
		for b == a {
			b = rep.Users[rng.Intn(len(rep.Users))]
		}

		conv, err := svc.CreateDirectConversation(ctx, a, b)
		if err != nil {
			return rep, fmt.Errorf("failed to create conversation: %w", err)
		}
		if !seen[conv.ID] {
			seen[conv.ID] = true
			rep.Conversations = append(rep.Conversations, conv.ID)
		}

		n := 1 + rng.Intn(opts.maxMessages)
		for j := 0; j < n; j++ {
			sender := a
			if rng.Intn(2) == 1 {
				sender = b
			}
			base = base.Add(time.Second)
			res, err := svc.SendMessage(ctx, application.SendMessageCommand{
				ConversationID: conv.ID,
				SenderID:       sender,
				Content:        fmt.Sprintf("message %d of %d", j+1, n),
				Timestamp:      base,
			})
			if err != nil {
				return rep, err
			}
			rep.Messages++
			if res.Status == application.StatusPartiallyIndexed {
				rep.Partial++
			}
		}
	}
	return rep, nil
}
