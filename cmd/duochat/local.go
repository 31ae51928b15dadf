package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/duochat/internal/app"
	"github.com/vovakirdan/duochat/internal/chat"
	"github.com/vovakirdan/duochat/internal/core"
	"github.com/vovakirdan/duochat/internal/store"
	"github.com/vovakirdan/duochat/internal/timeline"
)

// withConversation opens the configured store directly and hands fn the
// chat service and a conversation with persona active.
func withConversation(cmd *cobra.Command, opts *rootOptions, persona string, fn func(context.Context, *core.Conversation, *chat.Service) error) error {
	as, err := store.ParsePersona(persona)
	if err != nil {
		return err
	}

	cfg, logger, err := opts.loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := app.OpenStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := chat.New(st)
	conv := core.NewConversation(svc, logger)
	if conv.Active() != as {
		conv.TogglePersona()
	}
	return fn(ctx, conv, svc)
}

func newSendCommand(opts *rootOptions) *cobra.Command {
	var as string

	cmd := &cobra.Command{
		Use:   "send <text>...",
		Short: "Store a message from a persona",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			return withConversation(cmd, opts, as, func(ctx context.Context, conv *core.Conversation, _ *chat.Service) error {
				msg, err := conv.Send(ctx, content)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&as, "as", store.PersonaPrimary.String(), "sending persona (User, Other)")
	return cmd
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var as string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the conversation as a persona sees it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConversation(cmd, opts, as, func(_ context.Context, conv *core.Conversation, _ *chat.Service) error {
				return writeHistory(cmd.OutOrStdout(), conv)
			})
		},
	}
	cmd.Flags().StringVar(&as, "as", store.PersonaPrimary.String(), "viewing persona (User, Other)")
	return cmd
}

func newUnreadCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unread <User|Other>",
		Short: "List the unread messages of a sender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sender, err := store.ParsePersona(args[0])
			if err != nil {
				return err
			}
			return withConversation(cmd, opts, sender.String(), func(ctx context.Context, _ *core.Conversation, svc *chat.Service) error {
				return writeUnread(ctx, cmd.OutOrStdout(), svc, sender)
			})
		},
	}
}

func newReadCommand(opts *rootOptions) *cobra.Command {
	var as string

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Mark the other persona's messages as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConversation(cmd, opts, as, func(ctx context.Context, conv *core.Conversation, _ *chat.Service) error {
				updated, err := conv.MarkRead(ctx, conv.Active())
				fmt.Fprintf(cmd.OutOrStdout(), "%d marked as read\n", updated)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&as, "as", store.PersonaPrimary.String(), "reading persona (User, Other)")
	return cmd
}

// writeHistory renders the conversation feed for the active persona.
func writeHistory(w io.Writer, conv *core.Conversation) error {
	return renderTimeline(w, timeline.Build(conv.Messages().Latest(), conv.Active()))
}

// writeUnread prints one tab separated line per unread message of sender.
func writeUnread(ctx context.Context, w io.Writer, svc core.ChatService, sender store.Persona) error {
	unread, err := svc.GetUnreadMessages(ctx, sender)
	if err != nil {
		return err
	}
	for _, msg := range unread {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", msg.ID, msg.Timestamp.Format(timeline.HeaderLayout), msg.Content); err != nil {
			return err
		}
	}
	return nil
}
