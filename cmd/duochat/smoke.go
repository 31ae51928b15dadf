package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/duochat/internal/proto"
)

func newSmokeCommand() *cobra.Command {
	var (
		addr    string
		text    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Send one message over WebSocket and wait for it in a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return smoke(ctx, addr, text, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "ws://localhost:8080/ws", "WebSocket address")
	cmd.Flags().StringVar(&text, "text", "hello from smoke test", "message text to send")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "total timeout for the run")
	return cmd
}

func smoke(ctx context.Context, addr, text string, out io.Writer) error {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	payload, err := json.Marshal(proto.SendData{Content: text})
	if err != nil {
		return fmt.Errorf("marshal send: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeSend, Data: payload}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Fprintf(out, "Received outbound: type=%s", outbound.Type)
		if outbound.Event != "" {
			fmt.Fprintf(out, " event=%s", outbound.Event)
		}
		fmt.Fprintln(out)

		if outbound.Error != nil {
			return fmt.Errorf("server error %s: %s", outbound.Error.Code, outbound.Error.Msg)
		}
		if outbound.Event != proto.EventSnapshot {
			continue
		}

		var snap proto.Snapshot
		if err := json.Unmarshal(outbound.Data, &snap); err != nil {
			fmt.Fprintf(out, "Raw data: %s\n", outbound.Data)
			return fmt.Errorf("unmarshal snapshot: %w", err)
		}
		entry, found := lo.Find(snap.Entries, func(e proto.TimelineEntry) bool {
			return e.Message.Content == text
		})
		if found {
			fmt.Fprintf(out, "Message stored: id=%s sender=%s ts=%d\n", entry.Message.ID, entry.Message.Sender, entry.Message.TS)
			return nil
		}
	}
}
