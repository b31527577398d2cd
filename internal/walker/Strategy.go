package walker

import (
	"math/rand"

	"github.com/Mshel/randomwalker/internal/protocol"
)

// Turn is what a strategy gets to look at before picking a move.
type Turn struct {
	Index  int
	Config *protocol.Config
}

type Strategy interface {
	NextMove(turn Turn) (protocol.Move, error)
}

// RandomStrategy picks uniformly among protocol.Moves.
type RandomStrategy struct {
	rng *rand.Rand
}

func NewRandomStrategy(rng *rand.Rand) *RandomStrategy {
	return &RandomStrategy{rng: rng}
}

func (s *RandomStrategy) NextMove(Turn) (protocol.Move, error) {
	return protocol.Moves[s.rng.Intn(len(protocol.Moves))], nil
}
