package bracket

import (
	"bytes"
	"encoding/binary"
	"math/rand/v2"
	"slices"

	"github.com/google/uuid"
)

// Order arranges participants for placement: seeded players by ascending seed
// first, then everyone else in a shuffle derived from key so the same
// tournament always produces the same bracket.
func Order(participants []Participant, key uuid.UUID) []Participant {
	var seeded, unseeded []Participant
	for _, p := range participants {
		if p.Seed != nil {
			seeded = append(seeded, p)
		} else {
			unseeded = append(unseeded, p)
		}
	}

	slices.SortFunc(seeded, func(a, b Participant) int {
		return *a.Seed - *b.Seed
	})

	// Input order must not leak into the shuffle
	slices.SortFunc(unseeded, func(a, b Participant) int {
		return compareIDs(a.ID, b.ID)
	})
	rng := rand.New(rand.NewPCG(binary.BigEndian.Uint64(key[:8]), binary.BigEndian.Uint64(key[8:])))
	rng.Shuffle(len(unseeded), func(i, j int) {
		unseeded[i], unseeded[j] = unseeded[j], unseeded[i]
	})

	return append(seeded, unseeded...)
}

func compareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
