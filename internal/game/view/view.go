// Package view turns authoritative events into what a single viewer may see.
package view

import (
	"fmt"
	"slices"

	"TrickTable/internal/game/card"
	"TrickTable/internal/game/model"
)

// Project returns the event as seen by viewer, or false when the event is
// addressed to somebody else.
func Project(ev model.Event, viewer string) (model.ClientEvent, bool) {
	if ev.Target != "" && ev.Target != viewer {
		return nil, false
	}
	switch body := ev.Body.(type) {
	case model.ChatBroadcast:
		return model.ClientChat{UID: body.From, Message: body.Text}, true
	case model.NewGameState:
		return model.ClientNewGameState{State: State(body.State, viewer)}, true
	case model.ErrorEvent:
		return model.ClientError{Reason: body.Reason}, true
	}
	panic(fmt.Sprintf("view: unhandled event body %T", ev.Body))
}

// State hides every hand but the viewer's own.
func State(s model.GameState, viewer string) model.ClientGameState {
	switch st := s.(type) {
	case model.Waiting:
		return model.ClientWaiting{Players: slices.Clone(st.Players)}
	case model.Playing:
		hand := slices.Clone(st.Hands[viewer])
		if hand == nil {
			hand = []card.Card{}
		}
		var last *card.Card
		if st.LastCard != nil {
			c := *st.LastCard
			last = &c
		}
		return model.ClientPlaying{
			Players:    slices.Clone(st.Players),
			Turn:       st.Turn,
			LastCard:   last,
			LastPlayer: st.LastPlayer,
			Hand:       hand,
			Rankings:   slices.Clone(st.Rankings),
		}
	case model.Finished:
		return model.ClientFinished{Rankings: slices.Clone(st.Rankings)}
	}
	panic(fmt.Sprintf("view: unhandled state %T", s))
}
