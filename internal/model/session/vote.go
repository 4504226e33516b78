package session

import "time"

// Value is a single planning poker card. Cards are carried as strings on
// the wire; the coffee card is the non-numeric break sentinel.
type Value string

// The fixed estimation deck.
const (
	ValueOne       Value = "1"
	ValueTwo       Value = "2"
	ValueThree     Value = "3"
	ValueFive      Value = "5"
	ValueEight     Value = "8"
	ValueThirteen  Value = "13"
	ValueTwentyOne Value = "21"
	ValueCoffee    Value = "coffee"
)

// Deck lists every card a participant may play, in display order.
var Deck = []Value{
	ValueOne, ValueTwo, ValueThree, ValueFive,
	ValueEight, ValueThirteen, ValueTwentyOne, ValueCoffee,
}

// Valid reports whether v is one of the deck cards.
func (v Value) Valid() bool {
	for _, card := range Deck {
		if v == card {
			return true
		}
	}
	return false
}

// Numeric returns the card's numeric weight. The coffee card has none.
func (v Value) Numeric() (float64, bool) {
	switch v {
	case ValueOne:
		return 1, true
	case ValueTwo:
		return 2, true
	case ValueThree:
		return 3, true
	case ValueFive:
		return 5, true
	case ValueEight:
		return 8, true
	case ValueThirteen:
		return 13, true
	case ValueTwentyOne:
		return 21, true
	default:
		return 0, false
	}
}

// Vote records one participant's card in a round. Resubmitting before the
// reveal overwrites the previous vote.
type Vote struct {
	UserID      string    `json:"userId"`
	Value       Value     `json:"value"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Statistics aggregates a revealed round. Average is nil when no numeric
// votes were cast; coffee votes never count toward it.
type Statistics struct {
	Average      *float64      `json:"average"`
	Distribution map[Value]int `json:"distribution"`
	HasConsensus bool          `json:"hasConsensus"`
	TotalVotes   int           `json:"totalVotes"`
	CoffeeVotes  int           `json:"coffeeVotes"`
}
