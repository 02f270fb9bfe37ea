package dealer

import (
	"math/rand"

	"TrickTable/internal/game/card"
)

// Dealer 只负责洗牌与发牌（无规则判断），不是并发安全的，每个 session 一个
type Dealer struct {
	deck []card.Card
	rnd  *rand.Rand
}

func NewDealer(seed int64) *Dealer {
	return &Dealer{
		deck: make([]card.Card, 0, 54),
		rnd:  rand.New(rand.NewSource(seed)),
	}
}

// NewDeck 初始化一副 54 张牌并洗牌
func (d *Dealer) NewDeck() {
	d.deck = card.NewDeck()
	d.shuffle()
}

func (d *Dealer) shuffle() {
	d.rnd.Shuffle(len(d.deck), func(i, j int) { d.deck[i], d.deck[j] = d.deck[j], d.deck[i] })
}

// Deal 洗一副新牌，按座位顺序轮流发完整副牌，返回 player -> hand
func (d *Dealer) Deal(players []string) map[string][]card.Card {
	d.NewDeck()
	out := make(map[string][]card.Card, len(players))
	if len(players) == 0 {
		return out
	}
	for _, p := range players {
		out[p] = make([]card.Card, 0, len(d.deck)/len(players)+1)
	}
	for i, c := range d.deck {
		p := players[i%len(players)]
		out[p] = append(out[p], c)
	}
	d.deck = d.deck[:0]
	return out
}
