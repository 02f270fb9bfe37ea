package card

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Ranks 点数从小到大，2 最大
var Ranks = []string{"3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A", "2"}

type Suit int

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

var Suits = []Suit{Clubs, Diamonds, Hearts, Spades}

var suitNames = []string{"CLUBS", "DIAMONDS", "HEARTS", "SPADES"}

func (s Suit) String() string {
	if s < 0 || int(s) >= len(suitNames) {
		return "?"
	}
	return suitNames[s]
}

// Card 普通牌或王，值类型，创建后不可变
type Card struct {
	joker bool
	red   bool
	rank  int // index into Ranks
	suit  Suit
}

// Normal 普通牌
func Normal(rank string, suit Suit) (Card, error) {
	idx := RankIndex(rank)
	if idx < 0 {
		return Card{}, fmt.Errorf("unknown rank %q", rank)
	}
	if suit < Clubs || suit > Spades {
		return Card{}, fmt.Errorf("unknown suit %d", suit)
	}
	return Card{rank: idx, suit: suit}, nil
}

// MustNormal 用于测试和常量牌
func MustNormal(rank string, suit Suit) Card {
	c, err := Normal(rank, suit)
	if err != nil {
		panic(err)
	}
	return c
}

// Joker red=true 大王，red=false 小王
func Joker(red bool) Card {
	return Card{joker: true, red: red}
}

func RankIndex(rank string) int {
	for i, r := range Ranks {
		if r == rank {
			return i
		}
	}
	return -1
}

func (c Card) IsJoker() bool { return c.joker }
func (c Card) IsRed() bool   { return c.joker && c.red }
func (c Card) Suit() Suit    { return c.suit }

func (c Card) Rank() string {
	if c.joker {
		return ""
	}
	return Ranks[c.rank]
}

// Beats 判断 c 能否压过 prev（prev 为 nil 表示本轮还没人出牌）
func (c Card) Beats(prev *Card) bool {
	if c.joker {
		if prev != nil && prev.joker {
			return c.red && !prev.red
		}
		return true
	}
	if prev == nil {
		return true
	}
	if prev.joker {
		return false
	}
	return c.rank > prev.rank
}

func (c Card) String() string {
	if c.joker {
		if c.red {
			return "RJ"
		}
		return "BJ"
	}
	symbols := []string{"♣", "♦", "♥", "♠"}
	return Ranks[c.rank] + symbols[c.suit]
}

// NewDeck 54 张：13 点 × 4 花色 + 大小王，未洗牌
func NewDeck() []Card {
	deck := make([]Card, 0, 54)
	for r := range Ranks {
		for _, s := range Suits {
			deck = append(deck, Card{rank: r, suit: s})
		}
	}
	return append(deck, Joker(false), Joker(true))
}

// Remove 返回去掉一张 c 之后的新切片，ok=false 表示手里没有这张牌
func Remove(hand []Card, c Card) ([]Card, bool) {
	for i, h := range hand {
		if h == c {
			out := make([]Card, 0, len(hand)-1)
			out = append(out, hand[:i]...)
			return append(out, hand[i+1:]...), true
		}
	}
	return hand, false
}

func Contains(hand []Card, c Card) bool {
	for _, h := range hand {
		if h == c {
			return true
		}
	}
	return false
}

// ---------------------
//      JSON
// ---------------------

type wireCard struct {
	Type string `json:"type"`
	Rank string `json:"rank,omitempty"`
	Suit string `json:"suit,omitempty"`
	Red  *bool  `json:"red,omitempty"`
}

func (c Card) MarshalJSON() ([]byte, error) {
	if c.joker {
		red := c.red
		return json.Marshal(wireCard{Type: "joker", Red: &red})
	}
	return json.Marshal(wireCard{Type: "normal", Rank: c.Rank(), Suit: c.suit.String()})
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var w wireCard
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case "joker":
		*c = Joker(w.Red != nil && *w.Red)
		return nil
	case "normal":
		suit := Suit(-1)
		for i, name := range suitNames {
			if name == w.Suit {
				suit = Suit(i)
			}
		}
		parsed, err := Normal(w.Rank, suit)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	return errors.New("card: unknown type " + w.Type)
}
