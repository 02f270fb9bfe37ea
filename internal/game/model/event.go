package model

import (
	"encoding/json"

	"TrickTable/internal/game/card"
)

// Event is produced by the rules. Target empty means every subscriber of the
// session may see it; otherwise only that player.
type Event struct {
	SessionID string
	Target    string
	Body      EventBody
}

type EventBody interface{ isEventBody() }

type ChatBroadcast struct {
	From string
	Text string
}

// NewGameState carries the full authoritative state; it must go through the
// view projector before leaving the process.
type NewGameState struct {
	State GameState
}

type ErrorEvent struct {
	Reason string
}

func (ChatBroadcast) isEventBody() {}
func (NewGameState) isEventBody()  {}
func (ErrorEvent) isEventBody()    {}

// Broadcast 发给整个 session
func Broadcast(session string, body EventBody) Event {
	return Event{SessionID: session, Body: body}
}

// To 只发给某个玩家
func To(session, player string, body EventBody) Event {
	return Event{SessionID: session, Target: player, Body: body}
}

// ---------------------
//   客户端视角
// ---------------------

// ClientGameState is what one viewer is allowed to see.
type ClientGameState interface {
	Phase() Phase
	isClientGameState()
}

type ClientWaiting struct {
	Players []string `json:"players"`
}

type ClientPlaying struct {
	Players    []string    `json:"players"`
	Turn       string      `json:"turn"`
	LastCard   *card.Card  `json:"lastCard"`
	LastPlayer string      `json:"lastPlayer,omitempty"`
	Hand       []card.Card `json:"hand"`
	Rankings   []string    `json:"rankings"`
}

type ClientFinished struct {
	Rankings []string `json:"rankings"`
}

func (ClientWaiting) Phase() Phase  { return PhaseWaiting }
func (ClientPlaying) Phase() Phase  { return PhasePlaying }
func (ClientFinished) Phase() Phase { return PhaseFinished }

func (ClientWaiting) isClientGameState()  {}
func (ClientPlaying) isClientGameState()  {}
func (ClientFinished) isClientGameState() {}

// ClientEvent is one projected event for one viewer.
type ClientEvent interface{ isClientEvent() }

type ClientChat struct {
	UID     string `json:"uid"`
	Message string `json:"message"`
}

type ClientNewGameState struct {
	State ClientGameState `json:"state"`
}

type ClientError struct {
	Reason string `json:"reason"`
}

func (ClientChat) isClientEvent()         {}
func (ClientNewGameState) isClientEvent() {}
func (ClientError) isClientEvent()        {}

func (s ClientWaiting) MarshalJSON() ([]byte, error) {
	type plain ClientWaiting
	return json.Marshal(struct {
		Type Phase `json:"type"`
		plain
	}{PhaseWaiting, plain(s)})
}

func (s ClientPlaying) MarshalJSON() ([]byte, error) {
	type plain ClientPlaying
	return json.Marshal(struct {
		Type Phase `json:"type"`
		plain
	}{PhasePlaying, plain(s)})
}

func (s ClientFinished) MarshalJSON() ([]byte, error) {
	type plain ClientFinished
	return json.Marshal(struct {
		Type Phase `json:"type"`
		plain
	}{PhaseFinished, plain(s)})
}
