package http

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/venturesroom/venturechat/internal/core"
	"github.com/venturesroom/venturechat/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeSendMessage:
		var send proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &send); err != nil {
			return nil, nil, err
		}
		if send.ReceiverName == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "receiverName is required"}, nil
		}
		return &core.Command{
			Kind:     core.CommandSendMessage,
			Receiver: send.ReceiverName,
			Content:  strings.TrimSpace(send.Content),
			ImageURL: send.ImageURL,
		}, nil, nil
	case proto.InboundTypeMarkRead:
		var mark proto.MarkReadData
		if err := json.Unmarshal(inbound.Data, &mark); err != nil {
			return nil, nil, err
		}
		if mark.SenderName == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "senderName is required"}, nil
		}
		return &core.Command{
			Kind:    core.CommandMarkRead,
			Partner: mark.SenderName,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMessage,
			Data: proto.EventMessage{
				ID:           event.Message.ID,
				SenderName:   event.Message.SenderName,
				ReceiverName: event.Message.ReceiverName,
				Content:      event.Message.Content,
				ImageURL:     event.Message.ImageURL,
				Timestamp:    event.Message.CreatedAt.Format(time.RFC3339Nano),
			},
		}
	case core.EventUnreadChanged:
		// Signal only. Receivers re-fetch the authoritative summary over HTTP.
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUnreadChanged,
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
