package ranking

import (
	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/google/uuid"
)

// Placement returns the final rank of a participant. ok is false until the
// tournament is completed or when the participant is not part of it.
//
// Elimination placements are tied by exit stage, so both semi-final losers of
// a single elimination bracket are 3rd. In double elimination the grand final
// loser is 2nd, the losers final loser 3rd, and players leaving in the same
// losers round share the next rank. Round robin and Swiss use the standings
// position.
func Placement(t bracket.Tournament, participants []bracket.Participant, matches []bracket.Match, participantID uuid.UUID) (rank int, ok bool) {
	if t.Status != bracket.TournamentCompleted {
		return 0, false
	}
	for _, e := range Standings(t.Format, participants, matches) {
		if e.ParticipantID == participantID {
			return e.Rank, true
		}
	}
	return 0, false
}

// Leader is the participant at the top of the standings.
func Leader(format bracket.Format, participants []bracket.Participant, matches []bracket.Match) (uuid.UUID, bool) {
	standings := Standings(format, participants, matches)
	if len(standings) == 0 {
		return uuid.Nil, false
	}
	return standings[0].ParticipantID, true
}
