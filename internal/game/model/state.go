package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"TrickTable/internal/game/card"
)

var ErrUnknownKind = errors.New("unknown kind")

// GameState is one of Waiting, Playing or Finished.
type GameState interface {
	Phase() Phase
	isGameState()
}

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// Waiting is the initial state and the only one that accepts joins.
type Waiting struct {
	Players []string `json:"players"`
}

// Playing holds the authoritative hands. LastPlayer is empty iff nobody played
// since the last trick reset.
type Playing struct {
	Players    []string               `json:"players"`
	Turn       string                 `json:"turn"`
	LastCard   *card.Card             `json:"lastCard"`
	LastPlayer string                 `json:"lastPlayer,omitempty"`
	Hands      map[string][]card.Card `json:"hands"`
	Rankings   []string               `json:"rankings"`
}

// Finished is terminal.
type Finished struct {
	Rankings []string `json:"rankings"`
}

func (Waiting) Phase() Phase  { return PhaseWaiting }
func (Playing) Phase() Phase  { return PhasePlaying }
func (Finished) Phase() Phase { return PhaseFinished }

func (Waiting) isGameState()  {}
func (Playing) isGameState()  {}
func (Finished) isGameState() {}

// Clone returns a deep copy so callers can build the next state without aliasing.
func (p Playing) Clone() Playing {
	out := p
	out.Players = append([]string(nil), p.Players...)
	out.Rankings = append([]string{}, p.Rankings...)
	if p.LastCard != nil {
		c := *p.LastCard
		out.LastCard = &c
	}
	out.Hands = make(map[string][]card.Card, len(p.Hands))
	for k, v := range p.Hands {
		out.Hands[k] = append([]card.Card{}, v...)
	}
	return out
}

// HasCards reports whether player still holds at least one card.
func (p Playing) HasCards(player string) bool {
	return len(p.Hands[player]) > 0
}

// ---------------------
//      JSON 编解码
// ---------------------

type stateEnvelope struct {
	Type Phase `json:"type"`
}

// EncodeState serializes a state as {"type": phase, ...fields}.
func EncodeState(s GameState) ([]byte, error) {
	switch st := s.(type) {
	case Waiting:
		return json.Marshal(struct {
			Type Phase `json:"type"`
			Waiting
		}{PhaseWaiting, st})
	case Playing:
		return json.Marshal(struct {
			Type Phase `json:"type"`
			Playing
		}{PhasePlaying, st})
	case Finished:
		return json.Marshal(struct {
			Type Phase `json:"type"`
			Finished
		}{PhaseFinished, st})
	}
	return nil, fmt.Errorf("encode state %T: %w", s, ErrUnknownKind)
}

func DecodeState(data []byte) (GameState, error) {
	var env stateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	switch env.Type {
	case PhaseWaiting:
		var st Waiting
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("decode waiting: %w", err)
		}
		if st.Players == nil {
			st.Players = []string{}
		}
		return st, nil
	case PhasePlaying:
		var st Playing
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("decode playing: %w", err)
		}
		if st.Hands == nil {
			st.Hands = map[string][]card.Card{}
		}
		if st.Rankings == nil {
			st.Rankings = []string{}
		}
		return st, nil
	case PhaseFinished:
		var st Finished
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("decode finished: %w", err)
		}
		return st, nil
	}
	return nil, fmt.Errorf("decode state %q: %w", env.Type, ErrUnknownKind)
}
