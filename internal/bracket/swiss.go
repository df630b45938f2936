package bracket

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
)

type swissRecord struct {
	id        uuid.UUID
	wins      int
	diff      int
	hadBye    bool
	opponents map[uuid.UUID]bool
}

// Round one pairs the top half of the order against the bottom half. With an
// odd field the last player sits out with a bye.
func generateSwiss(e *Engine, ordered []Participant) {
	var bye *Participant
	if len(ordered)%2 == 1 {
		bye = &ordered[len(ordered)-1]
		ordered = ordered[:len(ordered)-1]
	}

	half := len(ordered) / 2
	for i := 0; i < half; i++ {
		m := e.create(WinnersSide, 1, i+1, false)
		m.Player1ID = &ordered[i].ID
		m.Player2ID = &ordered[half+i].ID
	}
	if bye != nil {
		m := e.create(WinnersSide, 1, half+1, true)
		m.Player1ID = &bye.ID
	}
	e.tournament.CurrentRound = 1
}

// pairSwissRound pairs players by score. Rematches are avoided greedily: if
// the remaining players have all met, they are paired anyway.
func pairSwissRound(records []*swissRecord) (pairs [][2]uuid.UUID, bye *uuid.UUID) {
	ranked := slices.Clone(records)
	slices.SortFunc(ranked, func(a, b *swissRecord) int {
		return cmp.Or(
			cmp.Compare(b.wins, a.wins),
			cmp.Compare(b.diff, a.diff),
			compareIDs(a.id, b.id),
		)
	})

	if len(ranked)%2 == 1 {
		pick := len(ranked) - 1
		for i := len(ranked) - 1; i >= 0; i-- {
			if !ranked[i].hadBye {
				pick = i
				break
			}
		}
		id := ranked[pick].id
		bye = &id
		ranked = slices.Delete(ranked, pick, pick+1)
	}

	paired := make([]bool, len(ranked))
	for i, r := range ranked {
		if paired[i] {
			continue
		}
		opponent := -1
		for j := i + 1; j < len(ranked); j++ {
			if paired[j] {
				continue
			}
			if opponent == -1 {
				opponent = j
			}
			if !r.opponents[ranked[j].id] {
				opponent = j
				break
			}
		}
		if opponent == -1 {
			break
		}
		paired[i], paired[opponent] = true, true
		pairs = append(pairs, [2]uuid.UUID{r.id, ranked[opponent].id})
	}
	return pairs, bye
}
