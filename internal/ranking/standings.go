package ranking

import (
	"cmp"
	"slices"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
)

type Entry struct {
	Rank          int                       `json:"rank" msgpack:"rank"`
	ParticipantID uuid.UUID                 `json:"participant_id" msgpack:"participant_id"`
	PlayerID      string                    `json:"player_id" msgpack:"player_id"`
	DisplayName   string                    `json:"display_name,omitempty" msgpack:"display_name"`
	Status        bracket.ParticipantStatus `json:"status" msgpack:"status"`
	Played        int                       `json:"played" msgpack:"played"`
	Won           int                       `json:"won" msgpack:"won"`
	Lost          int                       `json:"lost" msgpack:"lost"`
	Byes          int                       `json:"byes" msgpack:"byes"`
	PointsFor     int                       `json:"points_for" msgpack:"points_for"`
	PointsAgainst int                       `json:"points_against" msgpack:"points_against"`
	// Elimination formats only: how far the participant got before going out, higher is better
	EliminatedIn int `json:"eliminated_in,omitempty" msgpack:"eliminated_in"`
}

func (e Entry) PointDifferential() int {
	return e.PointsFor - e.PointsAgainst
}

// Wins counts byes as wins; a bye carries a player forward the same way a win does.
func (e Entry) Wins() int {
	return e.Won + e.Byes
}

// standing is an Entry together with the key it is ordered by.
type standing struct {
	Entry
	group int
	keys  [3]int
}

// Standings ranks every participant from the current match state.
//
// Round robin and Swiss order by wins, then point differential, then points
// scored, with remaining ties settled by participant id. Elimination formats
// list the champion, then players still alive by rounds won, then eliminated
// players with later exits first. Eliminated players who went out at the
// same stage share a rank.
func Standings(format bracket.Format, participants []bracket.Participant, matches []bracket.Match) []Entry {
	entries := tally(participants, matches)

	var exits map[uuid.UUID]int
	champion, hasChampion := uuid.Nil, false
	if format.IsElimination() {
		exits, champion, hasChampion = eliminations(format, matches)
	}

	rows := make([]standing, 0, len(entries))
	for _, e := range entries {
		row := standing{Entry: *e}
		switch {
		case !format.IsElimination():
			row.keys = [3]int{e.Wins(), e.PointDifferential(), e.PointsFor}
		case hasChampion && e.ParticipantID == champion:
			row.group = 0
		case exits[e.ParticipantID] > 0:
			row.group = 2
			row.EliminatedIn = exits[e.ParticipantID]
			row.keys = [3]int{row.EliminatedIn}
		default:
			row.group = 1
			row.keys = [3]int{e.Wins()}
		}
		rows = append(rows, row)
	}

	slices.SortFunc(rows, func(a, b standing) int {
		return cmp.Or(
			compareKey(a, b),
			slices.Compare(a.ParticipantID[:], b.ParticipantID[:]),
		)
	})

	out := make([]Entry, len(rows))
	for i, row := range rows {
		row.Rank = i + 1
		if format.IsElimination() && i > 0 && compareKey(rows[i-1], row) == 0 {
			row.Rank = out[i-1].Rank
		}
		out[i] = row.Entry
	}
	return out
}

func compareKey(a, b standing) int {
	return cmp.Or(
		cmp.Compare(a.group, b.group),
		cmp.Compare(b.keys[0], a.keys[0]),
		cmp.Compare(b.keys[1], a.keys[1]),
		cmp.Compare(b.keys[2], a.keys[2]),
	)
}

func tally(participants []bracket.Participant, matches []bracket.Match) []*Entry {
	byID := make(map[uuid.UUID]*Entry, len(participants))
	entries := make([]*Entry, 0, len(participants))
	for _, p := range participants {
		e := &Entry{ParticipantID: p.ID, PlayerID: p.PlayerID, Status: p.Status}
		byID[p.ID] = e
		entries = append(entries, e)
	}

	for _, m := range matches {
		if !m.IsCompleted() || m.WinnerID == nil {
			continue
		}
		if m.IsBye {
			if e, ok := byID[*m.WinnerID]; ok {
				e.Byes++
			}
			continue
		}
		p1, ok1 := byID[*m.Player1ID]
		p2, ok2 := byID[*m.Player2ID]
		if !ok1 || !ok2 {
			continue
		}
		p1.Played++
		p2.Played++
		p1.PointsFor += m.Score1
		p1.PointsAgainst += m.Score2
		p2.PointsFor += m.Score2
		p2.PointsAgainst += m.Score1
		if *m.WinnerID == p1.ParticipantID {
			p1.Won++
			p2.Lost++
		} else {
			p2.Won++
			p1.Lost++
		}
	}
	return entries
}

// eliminations finds the stage at which each knocked out participant left.
// Single elimination: the round of the lost match. Double elimination: the
// losers round of the second loss, with the grand final one stage above the
// losers final. The champion is ranked above every stage.
func eliminations(format bracket.Format, matches []bracket.Match) (map[uuid.UUID]int, uuid.UUID, bool) {
	losersRounds := 0
	for _, m := range matches {
		if m.BracketSide == bracket.LosersSide {
			losersRounds = max(losersRounds, -m.RoundNumber)
		}
	}

	ordered := slices.Clone(matches)
	slices.SortStableFunc(ordered, func(a, b bracket.Match) int {
		return cmp.Compare(stage(format, a, losersRounds), stage(format, b, losersRounds))
	})

	exits := make(map[uuid.UUID]int)
	losses := make(map[uuid.UUID]int)
	allowed := 1
	if format == bracket.DoubleElimination {
		allowed = 2
	}

	var final *bracket.Match
	for i := range ordered {
		m := &ordered[i]
		if !m.IsCompleted() || m.IsBye || m.LoserID == nil {
			continue
		}
		final = m
		losses[*m.LoserID]++
		if losses[*m.LoserID] == allowed {
			exits[*m.LoserID] = stage(format, *m, losersRounds)
		}
	}

	if final == nil || final.WinnerID == nil {
		return exits, uuid.Nil, false
	}
	// The deciding match is the last stage played and its winner never went out
	if _, out := exits[*final.WinnerID]; out || !decided(format, *final, ordered) {
		return exits, uuid.Nil, false
	}
	return exits, *final.WinnerID, true
}

func stage(format bracket.Format, m bracket.Match, losersRounds int) int {
	if format == bracket.SingleElimination {
		return m.RoundNumber
	}
	switch m.BracketSide {
	case bracket.LosersSide:
		return -m.RoundNumber
	case bracket.FinalsSide:
		// Grand final and its reset sit just above the losers final
		return losersRounds + 1
	}
	return 0
}

func decided(format bracket.Format, final bracket.Match, matches []bracket.Match) bool {
	for _, m := range matches {
		if !m.IsCompleted() {
			return false
		}
	}
	if format == bracket.SingleElimination {
		return true
	}
	return final.BracketSide == bracket.FinalsSide
}
