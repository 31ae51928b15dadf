package http

import (
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/vovakirdan/duochat/internal/core"
	"github.com/vovakirdan/duochat/internal/proto"
	"github.com/vovakirdan/duochat/internal/store"
	"github.com/vovakirdan/duochat/internal/timeline"
)

func messageToProto(msg store.Message) proto.MessageData {
	return proto.MessageData{
		ID:      msg.ID,
		Content: msg.Content,
		Sender:  msg.Sender.String(),
		IsSent:  msg.IsSent,
		IsRead:  msg.IsRead,
		TS:      msg.Timestamp.UnixMilli(),
	}
}

func messageFromProto(data proto.MessageData) (store.Message, error) {
	sender, err := store.ParsePersona(data.Sender)
	if err != nil {
		return store.Message{}, err
	}
	return store.Message{
		ID:        data.ID,
		Content:   data.Content,
		Sender:    sender,
		IsSent:    data.IsSent,
		IsRead:    data.IsRead,
		Timestamp: time.UnixMilli(data.TS),
	}, nil
}

func snapshotToProto(viewer store.Persona, msgs []store.Message) proto.Snapshot {
	tl := timeline.Build(msgs, viewer)
	return proto.Snapshot{
		Persona: viewer.String(),
		Entries: lo.Map(tl.Entries, func(e timeline.Entry, _ int) proto.TimelineEntry {
			return proto.TimelineEntry{
				Message:    messageToProto(e.Message),
				ShowHeader: e.ShowHeader,
				Header:     e.Header,
				Mine:       e.Mine,
				ShowTicks:  e.ShowTicks,
				Read:       e.Read,
			}
		}),
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventSnapshot:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventSnapshot,
			Data:  snapshotToProto(event.Persona, event.Messages),
		}
	case core.EventPersona:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPersona,
			Data:  snapshotToProto(event.Persona, event.Messages),
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

// checkContent applies the input rules of the compose box: no empty
// messages, and at most maxBytes bytes when maxBytes is positive.
func checkContent(content string, maxBytes int) *proto.Error {
	if content == "" {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "content is required"}
	}
	if maxBytes > 0 && len(content) > maxBytes {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "content is too long"}
	}
	if !utf8.ValidString(content) {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "content is not valid utf-8"}
	}
	return nil
}

// personaOrActive parses name, falling back to active when name is empty.
func personaOrActive(name string, active store.Persona) (store.Persona, *proto.Error) {
	if name == "" {
		return active, nil
	}
	p, err := store.ParsePersona(name)
	if err != nil {
		return 0, &proto.Error{Code: core.ErrCodeInvalidPersona, Msg: err.Error()}
	}
	return p, nil
}
