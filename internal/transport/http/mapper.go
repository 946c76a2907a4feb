package http

import (
	"encoding/json"
	"strconv"

	"pulsechat/internal/core"
	"pulsechat/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeSend:
		var send proto.SendData
		if err := json.Unmarshal(inbound.Data, &send); err != nil {
			return nil, nil, err
		}
		rcpt, protoErr := parseTarget(send.To)
		if protoErr != nil {
			return nil, protoErr, nil
		}
		return &core.Command{
			Kind:      core.CommandSendMessage,
			Recipient: rcpt,
			Content:   send.Content,
		}, nil, nil
	case proto.InboundTypeTyping:
		var typing proto.TypingData
		if err := json.Unmarshal(inbound.Data, &typing); err != nil {
			return nil, nil, err
		}
		rcpt, protoErr := parseTarget(typing.To)
		if protoErr != nil {
			return nil, protoErr, nil
		}
		return &core.Command{
			Kind:      core.CommandSetTyping,
			Recipient: rcpt,
			IsTyping:  typing.IsTyping,
		}, nil, nil
	case proto.InboundTypeRead:
		var read proto.ReadData
		if err := json.Unmarshal(inbound.Data, &read); err != nil {
			return nil, nil, err
		}
		if read.MessageID <= 0 {
			return nil, &proto.Error{Code: core.ErrCodeValidation, Msg: "messageId is required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandMarkRead,
			MessageID: read.MessageID,
		}, nil, nil
	case proto.InboundTypeHello:
		return nil, &proto.Error{Code: core.ErrCodeValidation, Msg: "already authenticated"}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeValidation, Msg: "unknown message type"}, nil
	}
}

// parseTarget maps the wire recipient field ("all" or a decimal user id) to
// the core's tagged recipient.
func parseTarget(to string) (core.Recipient, *proto.Error) {
	if to == proto.BroadcastTarget {
		return core.BroadcastRecipient(), nil
	}
	id, err := strconv.ParseInt(to, 10, 64)
	if err != nil || id <= 0 {
		return core.Recipient{}, &proto.Error{Code: core.ErrCodeValidation, Msg: "to must be \"all\" or a user id"}
	}
	return core.DirectRecipient(id), nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		msg := event.Message
		var recipient any = proto.BroadcastTarget
		if msg.Recipient != nil {
			recipient = proto.UserRef{ID: msg.Recipient.ID, Handle: msg.Recipient.Handle}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessage,
			Data: proto.MessageData{
				ID:        msg.ID,
				Content:   msg.Content,
				CreatedAt: msg.CreatedAt,
				Sender:    proto.UserRef{ID: msg.Sender.ID, Handle: msg.Sender.Handle},
				Recipient: recipient,
				IsRead:    msg.IsRead,
			},
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserJoined,
			Data:  proto.PresenceData{UserID: event.User.ID, Handle: event.User.Handle},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserLeft,
			Data:  proto.PresenceData{UserID: event.User.ID, Handle: event.User.Handle},
		}
	case core.EventTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventTyping,
			Data: proto.TypingEventData{
				UserID:   event.User.ID,
				Handle:   event.User.Handle,
				IsTyping: event.IsTyping,
				Private:  event.Private,
			},
		}
	case core.EventMessageRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageRead,
			Data:  proto.MessageReadData{MessageID: event.MessageID},
		}
	case core.EventOnlineUsers:
		users := make([]proto.UserRef, 0, len(event.Users))
		for _, u := range event.Users {
			users = append(users, proto.UserRef{ID: u.ID, Handle: u.Handle})
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventOnlineUsers,
			Data:  proto.OnlineUsersData{Users: users},
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
