package websocket

import (
	"encoding/json"
	"fmt"

	"TrickTable/internal/game/card"
	"TrickTable/internal/game/model"
)

// 客户端 -> 服务端
const (
	EventEnter       = "enter"
	EventChatMessage = "chat_message"
	EventStartGame   = "start_game"
	EventPlayCard    = "play_card"
	EventPassTurn    = "pass_turn"
)

// 服务端 -> 客户端（chat_message 两个方向共用）
const (
	EventNewGameState = "new_game_state"
	EventError        = "error"
)

type OutgoingMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type IncomingMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EnterGameRequest 每个连接的第一帧
type EnterGameRequest struct {
	UID string `json:"uid"`
}

type ChatMessageRequest struct {
	Message string `json:"message"`
}

type PlayCardRequest struct {
	Card *card.Card `json:"card"`
}

func toOutgoing(ev model.ClientEvent) OutgoingMessage {
	switch e := ev.(type) {
	case model.ClientChat:
		return OutgoingMessage{Event: EventChatMessage, Data: e}
	case model.ClientNewGameState:
		return OutgoingMessage{Event: EventNewGameState, Data: e}
	case model.ClientError:
		return OutgoingMessage{Event: EventError, Data: e}
	}
	panic(fmt.Sprintf("websocket: unhandled client event %T", ev))
}

// decodeEnter 解析握手帧
func decodeEnter(msg IncomingMessage) (string, error) {
	if msg.Event != EventEnter {
		return "", fmt.Errorf("expected %q, got %q", EventEnter, msg.Event)
	}
	var req EnterGameRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return "", fmt.Errorf("decode enter: %w", err)
	}
	if req.UID == "" {
		return "", fmt.Errorf("enter: uid is required")
	}
	return req.UID, nil
}

// decodeFrame 解析原始文本帧再转成 Action
func decodeFrame(frame []byte, session, player string) (model.Action, error) {
	var msg IncomingMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return decodeAction(msg, session, player)
}

// decodeAction 把一帧转成 Action，session/player 来自握手
func decodeAction(msg IncomingMessage, session, player string) (model.Action, error) {
	actor := model.Actor{SessionID: session, PlayerID: player}
	switch msg.Event {
	case EventChatMessage:
		var req ChatMessageRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return nil, fmt.Errorf("decode chat: %w", err)
		}
		return model.ChatMessage{Actor: actor, Text: req.Message}, nil
	case EventStartGame:
		return model.StartGame{Actor: actor}, nil
	case EventPlayCard:
		var req PlayCardRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return nil, fmt.Errorf("decode play: %w", err)
		}
		if req.Card == nil {
			return nil, fmt.Errorf("play: card is required")
		}
		return model.PlayCard{Actor: actor, Card: *req.Card}, nil
	case EventPassTurn:
		return model.PassTurn{Actor: actor}, nil
	}
	return nil, fmt.Errorf("event %q: %w", msg.Event, model.ErrUnknownKind)
}
