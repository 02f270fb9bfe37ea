// Package rules maps (state, action) to the next state and the event it
// produces. It does no I/O; the engine persists and publishes the result.
package rules

import (
	"fmt"
	"slices"

	"TrickTable/internal/game/card"
	"TrickTable/internal/game/model"
)

const (
	MinPlayers = 2
	MaxPlayers = 54
)

// rejection reasons sent back to the acting player
const (
	ReasonAlreadyStarted = "game has already been started"
	ReasonNotEnough      = "not enough players"
	ReasonTooMany        = "too many players"
	ReasonNotInProgress  = "game is not in progress"
	ReasonNotYourTurn    = "not your turn"
	ReasonNoSuchCard     = "you don't have that card"
	ReasonMustBeat       = "must beat previous card"
	ReasonNothingPlayed  = "nothing played yet, play something"
	ReasonEveryonePassed = "everyone else passed, play something"
)

// Dealer deals a freshly shuffled deck to players in roster order.
type Dealer interface {
	Deal(players []string) map[string][]card.Card
}

// Apply returns the next state and zero or one event. A rejected action
// returns the input state unchanged together with an ErrorEvent for the actor.
func Apply(state model.GameState, action model.Action, dealer Dealer) (model.GameState, []model.Event) {
	switch a := action.(type) {
	case model.PlayerEnter:
		return enter(state, a)
	case model.PlayerLeave:
		return leave(state, a)
	case model.ChatMessage:
		return state, []model.Event{model.Broadcast(a.SessionID, model.ChatBroadcast{From: a.PlayerID, Text: a.Text})}
	case model.StartGame:
		return start(state, a, dealer)
	case model.PlayCard:
		return play(state, a)
	case model.PassTurn:
		return pass(state, a)
	}
	panic(fmt.Sprintf("rules: unhandled action %T", action))
}

func reject(state model.GameState, a model.Action, reason string) (model.GameState, []model.Event) {
	return state, []model.Event{model.To(a.Session(), a.Player(), model.ErrorEvent{Reason: reason})}
}

func publish(state model.GameState, a model.Action) (model.GameState, []model.Event) {
	return state, []model.Event{model.Broadcast(a.Session(), model.NewGameState{State: state})}
}

// 加入：等待阶段追加玩家；重复加入或已开局只给本人重发当前状态
func enter(state model.GameState, a model.PlayerEnter) (model.GameState, []model.Event) {
	if w, ok := state.(model.Waiting); ok && !slices.Contains(w.Players, a.PlayerID) {
		next := model.Waiting{Players: append(slices.Clone(w.Players), a.PlayerID)}
		return publish(next, a)
	}
	return state, []model.Event{model.To(a.SessionID, a.PlayerID, model.NewGameState{State: state})}
}

func leave(state model.GameState, a model.PlayerLeave) (model.GameState, []model.Event) {
	w, ok := state.(model.Waiting)
	if !ok || !slices.Contains(w.Players, a.PlayerID) {
		return state, nil
	}
	next := model.Waiting{Players: slices.DeleteFunc(slices.Clone(w.Players), func(p string) bool { return p == a.PlayerID })}
	return publish(next, a)
}

func start(state model.GameState, a model.StartGame, dealer Dealer) (model.GameState, []model.Event) {
	w, ok := state.(model.Waiting)
	if !ok {
		return reject(state, a, ReasonAlreadyStarted)
	}
	if len(w.Players) < MinPlayers {
		return reject(state, a, ReasonNotEnough)
	}
	if len(w.Players) > MaxPlayers {
		return reject(state, a, ReasonTooMany)
	}
	players := slices.Clone(w.Players)
	next := model.Playing{
		Players:  players,
		Turn:     players[0],
		Hands:    dealer.Deal(players),
		Rankings: []string{},
	}
	return publish(next, a)
}

func play(state model.GameState, a model.PlayCard) (model.GameState, []model.Event) {
	p, ok := state.(model.Playing)
	if !ok {
		return reject(state, a, ReasonNotInProgress)
	}
	if p.Turn != a.PlayerID {
		return reject(state, a, ReasonNotYourTurn)
	}
	if !card.Contains(p.Hands[a.PlayerID], a.Card) {
		return reject(state, a, ReasonNoSuchCard)
	}
	if p.LastPlayer != a.PlayerID && !a.Card.Beats(p.LastCard) {
		return reject(state, a, ReasonMustBeat)
	}

	next := p.Clone()
	next.Hands[a.PlayerID], _ = card.Remove(next.Hands[a.PlayerID], a.Card)
	played := a.Card
	next.LastCard = &played
	next.LastPlayer = a.PlayerID

	if !next.HasCards(a.PlayerID) {
		next.Rankings = append(next.Rankings, a.PlayerID)
		holders := holdersAfter(next, a.PlayerID)
		if len(holders) <= 1 {
			return publish(model.Finished{Rankings: append(next.Rankings, holders...)}, a)
		}
	}

	next.Turn = nextTurn(next, a.PlayerID)
	return publish(next, a)
}

func pass(state model.GameState, a model.PassTurn) (model.GameState, []model.Event) {
	p, ok := state.(model.Playing)
	if !ok {
		return reject(state, a, ReasonNotInProgress)
	}
	if p.Turn != a.PlayerID {
		return reject(state, a, ReasonNotYourTurn)
	}
	if p.LastPlayer == "" {
		return reject(state, a, ReasonNothingPlayed)
	}
	if p.LastPlayer == a.PlayerID {
		return reject(state, a, ReasonEveryonePassed)
	}

	next := p.Clone()
	next.Turn = nextTurn(next, a.PlayerID)
	// 出完牌的人不会再轮到，绕过他的座位时这一轮作废，由下家自由出牌
	if !next.HasCards(p.LastPlayer) && seatBetween(next.Players, a.PlayerID, next.Turn, p.LastPlayer) {
		next.LastCard = nil
		next.LastPlayer = ""
	}
	return publish(next, a)
}

// nextTurn scans the roster after from, wrapping to the start, for the first
// player still holding cards.
func nextTurn(p model.Playing, from string) string {
	i := slices.Index(p.Players, from)
	for _, cand := range p.Players[i+1:] {
		if p.HasCards(cand) {
			return cand
		}
	}
	for _, cand := range p.Players {
		if p.HasCards(cand) {
			return cand
		}
	}
	return from
}

// holdersAfter lists, in roster order, everyone other than player still holding cards.
func holdersAfter(p model.Playing, player string) []string {
	var out []string
	for _, cand := range p.Players {
		if cand != player && p.HasCards(cand) {
			out = append(out, cand)
		}
	}
	return out
}

// seatBetween reports whether seat lies strictly between from and to going
// forward around the roster.
func seatBetween(players []string, from, to, seat string) bool {
	n := len(players)
	f, t, s := slices.Index(players, from), slices.Index(players, to), slices.Index(players, seat)
	if f < 0 || t < 0 || s < 0 {
		return false
	}
	dist := func(x int) int { return (x - f + n) % n }
	if dist(t) == 0 {
		return dist(s) > 0
	}
	return dist(s) > 0 && dist(s) < dist(t)
}
