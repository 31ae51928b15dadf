package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/duochat/internal/proto"
	"github.com/vovakirdan/duochat/internal/store"
	"github.com/vovakirdan/duochat/internal/timeline"
)

func newAttachCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Chat with a running server from the terminal",
		Long: "Lines typed are sent as the active persona.\n" +
			"/toggle switches persona, /read marks the other persona's messages as read.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return attach(cmd.Context(), addr, os.Stdin, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "ws://localhost:8080/ws", "WebSocket address")
	return cmd
}

func attach(parent context.Context, addr string, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	url := addr
	if !strings.Contains(url, "protocol=") {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "protocol=" + strconv.Itoa(proto.ProtocolVersion)
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	fmt.Fprintf(out, "Connected to %s\n", addr)
	fmt.Fprintln(out, "Type messages and press Enter to send. /toggle, /read, Ctrl+C to exit.")

	readErr := make(chan error, 1)
	go func() {
		defer cancel()
		readErr <- readLoop(ctx, conn, out)
	}()

	writeErr := writeLoop(ctx, conn, in)
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")

	if err := <-readErr; err != nil {
		return err
	}
	return writeErr
}

func readLoop(ctx context.Context, conn *websocket.Conn, out io.Writer) error {
	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		if outbound.Type == proto.OutboundTypeError {
			if outbound.Error != nil {
				fmt.Fprintf(out, "! %s: %s\n", outbound.Error.Code, outbound.Error.Msg)
			}
			continue
		}

		switch outbound.Event {
		case proto.EventSnapshot, proto.EventPersona:
			var snap proto.Snapshot
			if err := json.Unmarshal(outbound.Data, &snap); err != nil {
				fmt.Fprintf(out, "! unmarshal %s: %v\n", outbound.Event, err)
				continue
			}
			if err := printSnapshot(out, snap); err != nil {
				return err
			}
		default:
			fmt.Fprintf(out, "event=%s data=%s\n", outbound.Event, outbound.Data)
		}
	}
}

// printSnapshot redraws the whole conversation below a persona banner.
func printSnapshot(out io.Writer, snap proto.Snapshot) error {
	viewer, err := store.ParsePersona(snap.Persona)
	if err != nil {
		return err
	}
	tl := timeline.Timeline{Viewer: viewer}
	for _, e := range snap.Entries {
		tl.Entries = append(tl.Entries, timeline.Entry{
			Message:    store.Message{ID: e.Message.ID, Content: e.Message.Content},
			ShowHeader: e.ShowHeader,
			Header:     e.Header,
			Mine:       e.Mine,
			ShowTicks:  e.ShowTicks,
			Read:       e.Read,
		})
	}

	fmt.Fprintf(out, "\n=== chatting as %s ===\n", snap.Persona)
	return renderTimeline(out, tl)
}

func writeLoop(ctx context.Context, conn *websocket.Conn, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			inbound, ok := parseLine(line)
			if !ok {
				continue
			}
			if err := wsjson.Write(ctx, conn, inbound); err != nil {
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}

// parseLine turns a typed line into an inbound frame. Blank lines are skipped.
func parseLine(line string) (proto.Inbound, bool) {
	text := strings.TrimSpace(line)
	switch text {
	case "":
		return proto.Inbound{}, false
	case "/toggle":
		return proto.Inbound{Type: proto.InboundTypeToggle}, true
	case "/read":
		return proto.Inbound{Type: proto.InboundTypeRead}, true
	}

	payload, _ := json.Marshal(proto.SendData{Content: text})
	return proto.Inbound{Type: proto.InboundTypeSend, Data: payload}, true
}
