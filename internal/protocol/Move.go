package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Move is a single step token written on the protocol channel.
type Move string

const (
	North Move = "N"
	South Move = "S"
	East  Move = "E"
	West  Move = "W"
)

// Wait is accepted by the arena as "stay in place". Agents built here never send it.
const Wait = "WAIT"

// Moves is the fixed choice set. The order is part of the determinism contract:
// a seeded generator indexes into it, so reordering changes every move sequence.
var Moves = []Move{North, South, East, West}

var ErrUnknownCommand = errors.New("unknown command")

type Direction struct {
	Dx, Dy int
}

var directions = map[Move]Direction{
	North: {Dx: 0, Dy: -1},
	East:  {Dx: 1, Dy: 0},
	South: {Dx: 0, Dy: 1},
	West:  {Dx: -1, Dy: 0},
}

func (m Move) Valid() bool {
	_, ok := directions[m]
	return ok
}

// Delta returns the grid offset for the move. y grows downwards.
func (m Move) Delta() Direction {
	return directions[m]
}

func (m Move) String() string {
	return string(m)
}

// Command is what the arena makes of one reply line.
type Command struct {
	Move Move
	Wait bool
}

// ParseCommand reads the first whitespace separated field of a reply line.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty reply: %w", ErrUnknownCommand)
	}

	token := fields[0]
	if token == Wait {
		return Command{Wait: true}, nil
	}

	move := Move(token)
	if !move.Valid() {
		return Command{}, fmt.Errorf("%q: %w", token, ErrUnknownCommand)
	}
	return Command{Move: move}, nil
}
