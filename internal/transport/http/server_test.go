package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/duochat/internal/chat"
	"github.com/vovakirdan/duochat/internal/config"
	"github.com/vovakirdan/duochat/internal/core"
	"github.com/vovakirdan/duochat/internal/proto"
	"github.com/vovakirdan/duochat/internal/store"
	"github.com/vovakirdan/duochat/internal/store/sqlite"
)

func startTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()

	backend, err := sqlite.New(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	live, err := store.NewLive(context.Background(), backend, nil)
	if err != nil {
		t.Fatalf("failed to create live store: %v", err)
	}
	t.Cleanup(func() { _ = live.Close() })

	svc := chat.New(live)
	conv := core.NewConversation(svc, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go conv.Run(ctx)

	cfg := config.Default()
	cfg.ReadHeaderTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	server := NewServer(conv, svc, cfg, nil)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func waitForSnapshot(t *testing.T, ts *httptest.Server, query string, match func(proto.Snapshot) bool) proto.Snapshot {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		var snap proto.Snapshot
		doJSON(t, ts, http.MethodGet, "/api/messages"+query, nil, &snap)
		if match(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("snapshot never matched, last: %+v", snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t, nil)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestSendAndListMessages(t *testing.T) {
	ts := startTestServer(t, nil)

	if status := doJSON(t, ts, http.MethodPost, "/api/messages", SendMessageRequest{Content: "Hello"}, nil); status != http.StatusAccepted {
		t.Fatalf("send status = %d", status)
	}

	snap := waitForSnapshot(t, ts, "", func(s proto.Snapshot) bool { return len(s.Entries) == 1 })
	entry := snap.Entries[0]
	if snap.Persona != "User" || entry.Message.Content != "Hello" || entry.Message.Sender != "User" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !entry.Mine || !entry.ShowTicks || !entry.ShowHeader || entry.Header == "" {
		t.Fatalf("unexpected rendering: %+v", entry)
	}

	other := waitForSnapshot(t, ts, "?as=Other", func(s proto.Snapshot) bool { return len(s.Entries) == 1 })
	if other.Entries[0].Mine || other.Entries[0].ShowTicks {
		t.Fatalf("message should render on the left for Other: %+v", other.Entries[0])
	}
}

func TestSendRejectsBadContent(t *testing.T) {
	ts := startTestServer(t, func(cfg *config.Config) { cfg.MaxMessageBytes = 4 })

	var errResp ErrorResponse
	if status := doJSON(t, ts, http.MethodPost, "/api/messages", SendMessageRequest{Content: ""}, &errResp); status != http.StatusBadRequest {
		t.Fatalf("empty content status = %d", status)
	}
	if errResp.Code != core.ErrCodeBadRequest {
		t.Fatalf("unexpected error code %q", errResp.Code)
	}
	if status := doJSON(t, ts, http.MethodPost, "/api/messages", SendMessageRequest{Content: "too long"}, nil); status != http.StatusBadRequest {
		t.Fatalf("long content status = %d", status)
	}
}

func TestPersonaToggle(t *testing.T) {
	ts := startTestServer(t, nil)

	var persona PersonaResponse
	doJSON(t, ts, http.MethodGet, "/api/persona", nil, &persona)
	if persona.Persona != "User" {
		t.Fatalf("initial persona = %q", persona.Persona)
	}

	doJSON(t, ts, http.MethodPost, "/api/persona/toggle", nil, &persona)
	if persona.Persona != "Other" {
		t.Fatalf("toggled persona = %q", persona.Persona)
	}
	doJSON(t, ts, http.MethodPost, "/api/persona/toggle", nil, &persona)
	if persona.Persona != "User" {
		t.Fatalf("toggled back persona = %q", persona.Persona)
	}
}

func TestMarkReadAndUnread(t *testing.T) {
	ts := startTestServer(t, nil)

	doJSON(t, ts, http.MethodPost, "/api/persona/toggle", nil, nil)
	doJSON(t, ts, http.MethodPost, "/api/messages", SendMessageRequest{Content: "Hi"}, nil)
	doJSON(t, ts, http.MethodPost, "/api/messages", SendMessageRequest{Content: "Hello"}, nil)
	waitForSnapshot(t, ts, "", func(s proto.Snapshot) bool { return len(s.Entries) == 2 })

	var unread []proto.MessageData
	if status := doJSON(t, ts, http.MethodGet, "/api/messages/unread?sender=Other", nil, &unread); status != http.StatusOK {
		t.Fatalf("unread status = %d", status)
	}
	if len(unread) != 2 {
		t.Fatalf("expected 2 unread, got %+v", unread)
	}

	if status := doJSON(t, ts, http.MethodPost, "/api/messages/read", MarkReadRequest{Persona: "User"}, nil); status != http.StatusAccepted {
		t.Fatalf("mark read status = %d", status)
	}
	waitForSnapshot(t, ts, "?as=Other", func(s proto.Snapshot) bool {
		return len(s.Entries) == 2 && s.Entries[0].Read && s.Entries[1].Read
	})

	if status := doJSON(t, ts, http.MethodGet, "/api/messages/unread?sender=Nobody", nil, nil); status != http.StatusBadRequest {
		t.Fatalf("unknown sender status = %d", status)
	}
}

func TestUpdateMessage(t *testing.T) {
	ts := startTestServer(t, nil)

	req := UpdateMessageRequest{Content: "edited", Sender: "Other", IsRead: true, TS: 1_700_000_000_000}
	var got proto.MessageData
	if status := doJSON(t, ts, http.MethodPut, "/api/messages/m1", req, &got); status != http.StatusOK {
		t.Fatalf("update status = %d", status)
	}
	if got.ID != "m1" || got.Content != "edited" || got.TS != req.TS {
		t.Fatalf("unexpected update response: %+v", got)
	}

	snap := waitForSnapshot(t, ts, "", func(s proto.Snapshot) bool { return len(s.Entries) == 1 })
	if snap.Entries[0].Message.ID != "m1" || !snap.Entries[0].Read {
		t.Fatalf("update not visible: %+v", snap.Entries[0])
	}

	bad := UpdateMessageRequest{Sender: "Robot", TS: 1}
	if status := doJSON(t, ts, http.MethodPut, "/api/messages/m1", bad, nil); status != http.StatusBadRequest {
		t.Fatalf("bad sender status = %d", status)
	}
}

func dialWS(t *testing.T, ts *httptest.Server, query string) (*websocket.Conn, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws" + query
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn, ctx
}

type wsOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(wsOutbound) bool) wsOutbound {
	t.Helper()

	for {
		var out wsOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read outbound: %v", err)
		}
		if match(out) {
			return out
		}
	}
}

func decodeSnapshot(t *testing.T, out wsOutbound) proto.Snapshot {
	t.Helper()

	var snap proto.Snapshot
	if err := json.Unmarshal(out.Data, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	return snap
}

func TestWebSocketSnapshotAndSend(t *testing.T) {
	ts := startTestServer(t, nil)
	conn, ctx := dialWS(t, ts, "")

	initial := readUntil(t, ctx, conn, func(o wsOutbound) bool { return o.Event == proto.EventSnapshot })
	if snap := decodeSnapshot(t, initial); len(snap.Entries) != 0 || snap.Persona != "User" {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}

	payload, _ := json.Marshal(proto.SendData{Content: "hi there"})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeSend, Data: payload}); err != nil {
		t.Fatalf("send: %v", err)
	}

	out := readUntil(t, ctx, conn, func(o wsOutbound) bool {
		return o.Event == proto.EventSnapshot && len(decodeSnapshot(t, o).Entries) == 1
	})
	entry := decodeSnapshot(t, out).Entries[0]
	if entry.Message.Content != "hi there" || entry.Message.Sender != "User" || !entry.Mine {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeToggle}); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	out = readUntil(t, ctx, conn, func(o wsOutbound) bool {
		return o.Event == proto.EventPersona && decodeSnapshot(t, o).Persona == "Other"
	})
	if snap := decodeSnapshot(t, out); len(snap.Entries) != 1 || snap.Entries[0].Mine {
		t.Fatalf("persona event should re-render for Other: %+v", snap)
	}
}

func TestWebSocketErrors(t *testing.T) {
	ts := startTestServer(t, func(cfg *config.Config) { cfg.InboundRateLimit = 2 })
	conn, ctx := dialWS(t, ts, "")

	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := readUntil(t, ctx, conn, func(o wsOutbound) bool { return o.Type == proto.OutboundTypeError })
	if out.Error == nil || out.Error.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %+v", out.Error)
	}

	payload, _ := json.Marshal(proto.SendData{Content: ""})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeSend, Data: payload}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out = readUntil(t, ctx, conn, func(o wsOutbound) bool { return o.Type == proto.OutboundTypeError })
	if out.Error == nil || out.Error.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request for empty content, got %+v", out.Error)
	}

	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeToggle}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out = readUntil(t, ctx, conn, func(o wsOutbound) bool { return o.Type == proto.OutboundTypeError })
	if out.Error == nil || out.Error.Code != core.ErrCodeRateLimited {
		t.Fatalf("expected rate_limited, got %+v", out.Error)
	}
}

func TestProtocolVersionMismatch(t *testing.T) {
	ts := startTestServer(t, nil)
	conn, ctx := dialWS(t, ts, "?protocol=99")

	var out proto.Outbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != core.ErrCodeUnsupported {
		t.Fatalf("expected unsupported_version error, got %+v", out)
	}
}
