package bracket

import (
	"sort"
)

type RoundView struct {
	Side    BracketSide `json:"side"`
	Round   int         `json:"round"`
	Name    string      `json:"name"`
	Matches []Match     `json:"matches"`
}

// View is the match set grouped by bracket side and round for rendering.
type View struct {
	Winners []RoundView `json:"winners"`
	Losers  []RoundView `json:"losers,omitempty"`
	Finals  []RoundView `json:"finals,omitempty"`
}

func PrepareView(format Format, participants int, matches []Match) View {
	wbRounds := make(map[int][]Match)
	lbRounds := make(map[int][]Match)
	finalRounds := make(map[int][]Match)

	for _, m := range matches {
		switch m.BracketSide {
		case WinnersSide:
			wbRounds[m.RoundNumber] = append(wbRounds[m.RoundNumber], m)
		case LosersSide:
			lbRounds[m.RoundNumber] = append(lbRounds[m.RoundNumber], m)
		case FinalsSide:
			finalRounds[m.RoundNumber] = append(finalRounds[m.RoundNumber], m)
		}
	}

	name := func(side BracketSide, round int) string {
		return RoundName(format, participants, side, round)
	}
	return View{
		Winners: collectRounds(WinnersSide, wbRounds, name),
		Losers:  collectRounds(LosersSide, lbRounds, name),
		Finals:  collectRounds(FinalsSide, finalRounds, name),
	}
}

func collectRounds(side BracketSide, rounds map[int][]Match, name func(BracketSide, int) string) []RoundView {
	roundNums := make([]int, 0, len(rounds))
	for r := range rounds {
		roundNums = append(roundNums, r)
	}
	// Losers rounds are negative, so order them by distance from the start
	sort.Slice(roundNums, func(i, j int) bool {
		return abs(roundNums[i]) < abs(roundNums[j])
	})

	var out []RoundView
	for _, r := range roundNums {
		ms := rounds[r]
		sort.Slice(ms, func(i, j int) bool {
			return ms[i].MatchNumber < ms[j].MatchNumber
		})
		out = append(out, RoundView{Side: side, Round: r, Name: name(side, r), Matches: ms})
	}
	return out
}
