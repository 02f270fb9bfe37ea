package model

import "TrickTable/internal/game/card"

// Action 玩家输入，总是带 session + player
type Action interface {
	Session() string
	Player() string
	isAction()
}

// Actor identifies who sent an action and to which session.
type Actor struct {
	SessionID string
	PlayerID  string
}

func (a Actor) Session() string { return a.SessionID }
func (a Actor) Player() string  { return a.PlayerID }

type PlayerEnter struct{ Actor }

type PlayerLeave struct{ Actor }

type ChatMessage struct {
	Actor
	Text string
}

type StartGame struct{ Actor }

type PlayCard struct {
	Actor
	Card card.Card
}

type PassTurn struct{ Actor }

func (PlayerEnter) isAction() {}
func (PlayerLeave) isAction() {}
func (ChatMessage) isAction() {}
func (StartGame) isAction()   {}
func (PlayCard) isAction()    {}
func (PassTurn) isAction()    {}
