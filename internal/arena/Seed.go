package arena

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"strconv"
)

// digestSeed reads the first four bytes of sha256("<seed>/<label>") as a
// little endian uint32.
func digestSeed(seed int64, label string) uint32 {
	sum := sha256.Sum256([]byte(strconv.FormatInt(seed, 10) + "/" + label))
	return binary.LittleEndian.Uint32(sum[:4])
}

// BotSeed derives the seed handed to agents in the first tick config.
func BotSeed(seed int64) uint32 {
	return digestSeed(seed, "bot")
}

// RoundSeeds derives the arena seed of every round in a series from one
// base seed, so the whole series replays from a single number.
func RoundSeeds(seed int64, rounds int) []int64 {
	rng := rand.New(rand.NewSource(int64(digestSeed(seed, "rounds"))))
	seeds := make([]int64, rounds)
	for i := range seeds {
		seeds[i] = int64(rng.Uint32())
	}
	return seeds
}
