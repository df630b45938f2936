package bracket

import (
	"cmp"
	"slices"
	"strconv"
)

// Layout is the shape of an elimination bracket for a given field size.
//
// Winners round r holds ceil(E(r-1)/2) entries with E(0) = N. The last entry
// of a round is a bye when the round before it has an odd count. Losers round
// k takes the survivors of losers round k-1 together with the losers of the
// real matches of winners round k, alternating survivor and drop while both
// last. Losers rounds continue past the winners final until one survivor
// remains, who meets the winners champion in the grand final.
//
// A later round bye never goes to an entry whose player may already have had
// one. In the winners bracket that always holds, so nobody gets a second free
// pass towards the final. The losers bracket prefers a bye-free entrant and
// only falls back to the last entrant when none is left.
type Layout struct {
	participants int
	double       bool
	winners      []int // winners[r] entries in winners round r, winners[0] = N
	entrants     []int // entrants[k] players entering losers round k
	losers       []int // losers[k] matches in losers round k, losers[0] = 0

	winnersNext [][]Position // winnersNext[r][m-1] receives the winner of winners match m in round r
	losersNext  [][]Position // losersNext[k][m-1] receives the winner of losers match m in round k
	dropTo      [][]Position // dropTo[r][m-1] receives the loser of winners match m in round r
}

// Position is a player slot inside a match.
type Position struct {
	Side  BracketSide
	Round int
	Match int
	Slot  int
}

// entry is a player on the way into a round. byes is the most byes that
// player can have had so far.
type entry struct {
	side  BracketSide
	round int
	match int
	byes  int
}

func NewLayout(participants int, double bool) Layout {
	l := Layout{participants: participants, double: double}
	l.winners = []int{participants}
	for e := participants; e > 1; {
		e = (e + 1) / 2
		l.winners = append(l.winners, e)
	}

	rounds := l.WinnersRounds()
	// byes[r][m-1] bounds the byes of whoever comes out of winners match m
	byes := make([][]int, rounds+1)
	byes[1] = make([]int, l.winners[1])
	for m := range byes[1] {
		if l.IsWinnersBye(1, m+1) {
			byes[1][m] = 1
		}
	}
	l.winnersNext = make([][]Position, rounds+1)
	for r := 2; r <= rounds; r++ {
		feeders := make([]entry, l.winners[r-1])
		for m := range feeders {
			feeders[m] = entry{side: WinnersSide, round: r - 1, match: m + 1, byes: byes[r-1][m]}
		}
		l.winnersNext[r-1] = make([]Position, len(feeders))
		byes[r] = make([]int, l.winners[r])
		for idx, e := range arrange(feeders) {
			pos := slotAt(WinnersSide, r, idx)
			l.winnersNext[r-1][e.match-1] = pos
			byes[r][pos.Match-1] = max(byes[r][pos.Match-1], e.byes)
			if l.IsWinnersBye(r, pos.Match) {
				byes[r][pos.Match-1]++
			}
		}
	}
	if !double {
		return l
	}

	l.entrants = []int{0}
	l.losers = []int{0}
	l.losersNext = [][]Position{nil}
	l.dropTo = make([][]Position, rounds+1)
	var survivors []int // bye bound per match of the previous losers round
	for k := 1; ; k++ {
		drops := l.drops(k)
		entrants := len(survivors) + drops
		l.entrants = append(l.entrants, entrants)
		l.losers = append(l.losers, (entrants+1)/2)

		ordered := make([]entry, 0, entrants)
		for i := 0; i < max(len(survivors), drops); i++ {
			if i < len(survivors) {
				ordered = append(ordered, entry{side: LosersSide, round: k - 1, match: i + 1, byes: survivors[i]})
			}
			if i < drops {
				ordered = append(ordered, entry{side: WinnersSide, round: k, match: i + 1, byes: byes[k][i]})
			}
		}

		l.losersNext = append(l.losersNext, nil)
		l.losersNext[k-1] = make([]Position, len(survivors))
		if drops > 0 {
			l.dropTo[k] = make([]Position, drops)
		}
		next := make([]int, l.losers[k])
		for idx, e := range arrange(ordered) {
			pos := slotAt(LosersSide, k, idx)
			if e.side == LosersSide {
				l.losersNext[k-1][e.match-1] = pos
			} else {
				l.dropTo[k][e.match-1] = pos
			}
			next[pos.Match-1] = max(next[pos.Match-1], e.byes)
			if l.IsLosersBye(k, pos.Match) {
				next[pos.Match-1]++
			}
		}
		survivors = next

		if k >= rounds && l.losers[k] <= 1 {
			break
		}
	}
	return l
}

// arrange orders the entrants of a round into slots, two per match. With an
// odd count the bye goes to the first entrant with the fewest byes behind it
// and is placed last. Entrants that may have had a bye are pushed back so
// they meet each other before anyone fresh.
func arrange(entrants []entry) []entry {
	out := slices.Clone(entrants)
	var bye []entry
	if len(out)%2 == 1 {
		pick := 0
		for i, e := range out {
			if e.byes < out[pick].byes {
				pick = i
			}
		}
		bye = append(bye, out[pick])
		out = slices.Delete(out, pick, pick+1)
	}

	tainted := 0
	for _, e := range out {
		if e.byes > 0 {
			tainted++
		}
	}
	if tainted > 1 {
		slices.SortStableFunc(out, func(a, b entry) int {
			return cmp.Compare(min(a.byes, 1), min(b.byes, 1))
		})
	}
	return append(out, bye...)
}

func slotAt(side BracketSide, round, index int) Position {
	if side == LosersSide {
		round = -round
	}
	return Position{Side: side, Round: round, Match: index/2 + 1, Slot: index%2 + 1}
}

func (l Layout) Participants() int { return l.participants }

func (l Layout) WinnersRounds() int { return len(l.winners) - 1 }

// WinnersMatches returns the number of matches, byes included, in a winners round.
func (l Layout) WinnersMatches(round int) int {
	if round < 1 || round >= len(l.winners) {
		return 0
	}
	return l.winners[round]
}

func (l Layout) LosersRounds() int {
	if !l.double {
		return 0
	}
	return len(l.losers) - 1
}

func (l Layout) LosersMatches(round int) int {
	if round < 1 || round >= len(l.losers) {
		return 0
	}
	return l.losers[round]
}

func (l Layout) GrandFinalRound() int { return l.WinnersRounds() + 1 }

func (l Layout) ResetRound() int { return l.WinnersRounds() + 2 }

// drops is the number of players falling from winners round k into the losers bracket.
func (l Layout) drops(k int) int {
	if k < 1 || k > l.WinnersRounds() {
		return 0
	}
	return l.winners[k-1] / 2
}

func (l Layout) IsWinnersBye(round, match int) bool {
	return 2*match > l.winners[round-1]
}

func (l Layout) IsLosersBye(round, match int) bool {
	return 2*match > l.entrants[round]
}

// WinnerTarget is where the winner of a match goes. ok is false for the deciding match.
func (l Layout) WinnerTarget(side BracketSide, round, match int) (Position, bool) {
	switch side {
	case WinnersSide:
		if round < l.WinnersRounds() {
			return lookup(l.winnersNext, round, match)
		}
		if l.double {
			return Position{Side: FinalsSide, Round: l.GrandFinalRound(), Match: 1, Slot: 1}, true
		}
	case LosersSide:
		k := -round
		if k < l.LosersRounds() {
			return lookup(l.losersNext, k, match)
		}
		return Position{Side: FinalsSide, Round: l.GrandFinalRound(), Match: 1, Slot: 2}, true
	}
	return Position{}, false
}

// LoserTarget is where the loser of a winners bracket match drops to in double elimination.
func (l Layout) LoserTarget(side BracketSide, round, match int) (Position, bool) {
	if !l.double || side != WinnersSide || match > l.drops(round) {
		return Position{}, false
	}
	return lookup(l.dropTo, round, match)
}

func lookup(table [][]Position, round, match int) (Position, bool) {
	if round < 1 || round >= len(table) || match < 1 || match > len(table[round]) {
		return Position{}, false
	}
	return table[round][match-1], true
}

// RoundName gives the human readable label of an elimination round.
func (l Layout) RoundName(side BracketSide, round int) string {
	switch side {
	case FinalsSide:
		if round == l.ResetRound() {
			return "Grand Final Reset"
		}
		return "Grand Final"
	case LosersSide:
		if -round == l.LosersRounds() {
			return "Losers Final"
		}
		return "Losers Round " + strconv.Itoa(-round)
	}

	prefix := ""
	if l.double {
		prefix = "Winners "
	}
	switch l.WinnersRounds() - round {
	case 0:
		return prefix + "Final"
	case 1:
		return prefix + "Semi-Finals"
	case 2:
		return prefix + "Quarter-Finals"
	}
	return prefix + "Round " + strconv.Itoa(round)
}
