package bracket

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

type matchKey struct {
	side  BracketSide
	round int
	match int
}

// Engine applies results to the match set of one tournament. It works purely
// in memory; callers load the tournament, run the engine and persist
// Changes() in a single transaction.
type Engine struct {
	tournament    Tournament
	layout        Layout
	participants  []*Participant
	byParticipant map[uuid.UUID]*Participant
	matches       []*Match
	byID          map[uuid.UUID]*Match
	byKey         map[matchKey]*Match

	dirty             map[uuid.UUID]bool
	created           []uuid.UUID
	dirtyParticipants map[uuid.UUID]bool

	now func() time.Time
}

func NewEngine(t Tournament, participants []Participant, matches []Match) *Engine {
	e := &Engine{
		tournament:        t,
		layout:            NewLayout(len(participants), t.Format == DoubleElimination),
		byParticipant:     make(map[uuid.UUID]*Participant, len(participants)),
		byID:              make(map[uuid.UUID]*Match, len(matches)),
		byKey:             make(map[matchKey]*Match, len(matches)),
		dirty:             make(map[uuid.UUID]bool),
		dirtyParticipants: make(map[uuid.UUID]bool),
		now:               func() time.Time { return time.Now().UTC() },
	}
	for i := range participants {
		p := participants[i]
		e.participants = append(e.participants, &p)
		e.byParticipant[p.ID] = &p
	}
	for i := range matches {
		e.add(matches[i])
	}
	return e
}

// WithClock replaces the time source used for completion timestamps.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) add(m Match) *Match {
	mp := &m
	e.matches = append(e.matches, mp)
	e.byID[m.ID] = mp
	e.byKey[matchKey{m.BracketSide, m.RoundNumber, m.MatchNumber}] = mp
	return mp
}

func (e *Engine) create(side BracketSide, round, number int, bye bool) *Match {
	m := e.add(Match{
		ID:           uuid.New(),
		TournamentID: e.tournament.ID,
		BracketSide:  side,
		RoundNumber:  round,
		MatchNumber:  number,
		Status:       MatchPending,
		IsBye:        bye,
		CreatedAt:    e.now(),
	})
	e.created = append(e.created, m.ID)
	return m
}

func (e *Engine) Layout() Layout { return e.layout }

func (e *Engine) Tournament() Tournament { return e.tournament }

// Matches returns a copy of the current match set in bracket order.
func (e *Engine) Matches() []Match {
	out := make([]Match, 0, len(e.matches))
	for _, m := range e.matches {
		out = append(out, *m)
	}
	sortMatches(out)
	return out
}

func (e *Engine) Participants() []Participant {
	out := make([]Participant, 0, len(e.participants))
	for _, p := range e.participants {
		out = append(out, *p)
	}
	return out
}

// Changes splits everything touched since the engine was built into updated and newly created matches.
func (e *Engine) Changes() (updated []Match, created []Match) {
	isNew := make(map[uuid.UUID]bool, len(e.created))
	for _, id := range e.created {
		isNew[id] = true
		created = append(created, *e.byID[id])
	}
	for _, m := range e.matches {
		if e.dirty[m.ID] && !isNew[m.ID] {
			updated = append(updated, *m)
		}
	}
	return updated, created
}

func (e *Engine) ChangedParticipants() []Participant {
	var out []Participant
	for _, p := range e.participants {
		if e.dirtyParticipants[p.ID] {
			out = append(out, *p)
		}
	}
	return out
}

func (e *Engine) setParticipantStatus(id uuid.UUID, status ParticipantStatus) {
	p, ok := e.byParticipant[id]
	if !ok || p.Status == status {
		return
	}
	p.Status = status
	e.dirtyParticipants[id] = true
}

// Crown marks the tournament winner.
func (e *Engine) Crown(id uuid.UUID) {
	e.setParticipantStatus(id, ParticipantWinner)
}

// CurrentRound is the highest standard or winners bracket round that exists.
func (e *Engine) CurrentRound() int {
	round := 0
	for _, m := range e.matches {
		if m.BracketSide == WinnersSide && m.RoundNumber > round {
			round = m.RoundNumber
		}
	}
	return round
}

// ActiveRound is the earliest round that still has a match to play, or the
// last round once everything is decided. Losers rounds count by their
// absolute number.
func (e *Engine) ActiveRound() int {
	round, last := 0, 0
	for _, m := range e.matches {
		r := abs(m.RoundNumber)
		last = max(last, r)
		if !m.IsCompleted() && (round == 0 || r < round) {
			round = r
		}
	}
	if round == 0 {
		return last
	}
	return round
}

func (e *Engine) requireActive() error {
	if e.tournament.Status != TournamentInProgress {
		return fmt.Errorf("%w: status is %s", ErrTournamentNotActive, e.tournament.Status)
	}
	return nil
}

func (e *Engine) match(id uuid.UUID) (*Match, error) {
	m, ok := e.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, id)
	}
	return m, nil
}

// BeginMatch marks a ready match as being played.
func (e *Engine) BeginMatch(matchID uuid.UUID) (Match, error) {
	if err := e.requireActive(); err != nil {
		return Match{}, err
	}
	m, err := e.match(matchID)
	if err != nil {
		return Match{}, err
	}
	switch m.Status {
	case MatchInProgress:
		return *m, nil
	case MatchCompleted:
		return Match{}, fmt.Errorf("%w: match %s is already completed", ErrConflict, m.ID)
	}
	if !m.IsReady() {
		return Match{}, ErrMatchNotReady
	}
	m.Status = MatchInProgress
	e.dirty[m.ID] = true
	return *m, nil
}

// RecordResult completes a match and advances the bracket. applied is false
// when the same result had already been recorded.
//
// A repeat of the result that finished the tournament is still a no-op.
func (e *Engine) RecordResult(matchID, winnerID uuid.UUID, score Score) (result Match, applied bool, err error) {
	if e.tournament.Status == TournamentCompleted {
		if m, ok := e.byID[matchID]; ok && m.WinnerID != nil && *m.WinnerID == winnerID {
			return *m, false, nil
		}
	}
	if err := e.requireActive(); err != nil {
		return Match{}, false, err
	}
	m, err := e.match(matchID)
	if err != nil {
		return Match{}, false, err
	}

	if m.IsCompleted() {
		if m.WinnerID != nil && *m.WinnerID == winnerID {
			return *m, false, nil
		}
		return Match{}, false, ErrMatchCompleted
	}
	if !m.IsReady() {
		return Match{}, false, ErrMatchNotReady
	}

	slot := m.Slot(winnerID)
	if slot == 0 {
		return Match{}, false, ErrWinnerNotInMatch
	}
	if err := score.Validate(); err != nil {
		return Match{}, false, err
	}
	if (slot == 1 && score.P1 < score.P2) || (slot == 2 && score.P2 < score.P1) {
		return Match{}, false, fmt.Errorf("%w: score %s contradicts the winner", ErrInvalidScore, score)
	}

	if err := e.complete(m, slot, score); err != nil {
		return Match{}, false, err
	}

	if e.tournament.Format == Swiss {
		round := e.CurrentRound()
		if m.RoundNumber == round && e.roundComplete(round) && round < e.roundLimit() {
			if _, err := e.nextSwissRound(); err != nil {
				return Match{}, false, err
			}
		}
	}

	e.crownIfDecided()
	return *m, true, nil
}

// AdvanceRound opens the next round of a Swiss tournament. completed is true
// once no further round should be played. Round robin schedules are fully
// generated up front, so it only reports completion for them.
func (e *Engine) AdvanceRound() (created []Match, completed bool, err error) {
	if err := e.requireActive(); err != nil {
		return nil, false, err
	}

	switch e.tournament.Format {
	case RoundRobin:
		return nil, e.IsComplete(), nil
	case Swiss:
	case SingleElimination, DoubleElimination:
		return nil, false, fmt.Errorf("%w: %s brackets advance automatically", ErrUnsupportedFormat, e.tournament.Format)
	default:
		return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedFormat, e.tournament.Format)
	}

	round := e.CurrentRound()
	if !e.roundComplete(round) {
		return nil, false, ErrRoundNotComplete
	}
	if round >= e.roundLimit() {
		return nil, true, nil
	}
	created, err = e.nextSwissRound()
	if err != nil {
		return nil, false, err
	}
	return created, false, nil
}

func (e *Engine) roundLimit() int {
	return e.tournament.RoundLimit(len(e.participants))
}

func (e *Engine) roundComplete(round int) bool {
	for _, m := range e.matches {
		if m.RoundNumber == round && !m.IsCompleted() {
			return false
		}
	}
	return true
}

// IsComplete reports whether the tournament has nothing left to play.
func (e *Engine) IsComplete() bool {
	for _, m := range e.matches {
		if !m.IsCompleted() {
			return false
		}
	}
	switch e.tournament.Format {
	case SingleElimination, DoubleElimination:
		_, ok := e.Champion()
		return ok
	case Swiss:
		return e.CurrentRound() >= e.roundLimit()
	case RoundRobin:
		return true
	}
	return false
}

// Champion returns the winner of the deciding match of an elimination bracket.
func (e *Engine) Champion() (uuid.UUID, bool) {
	var final *Match
	switch e.tournament.Format {
	case SingleElimination:
		final = e.byKey[matchKey{WinnersSide, e.layout.WinnersRounds(), 1}]
	case DoubleElimination:
		final = e.byKey[matchKey{FinalsSide, e.layout.ResetRound(), 1}]
		if final == nil {
			final = e.byKey[matchKey{FinalsSide, e.layout.GrandFinalRound(), 1}]
			if final != nil && final.IsCompleted() && !final.IsWinner(1) {
				return uuid.Nil, false
			}
		}
	default:
		return uuid.Nil, false
	}
	if final == nil || !final.IsCompleted() || final.WinnerID == nil {
		return uuid.Nil, false
	}
	return *final.WinnerID, true
}

func (e *Engine) crownIfDecided() {
	if !e.tournament.Format.IsElimination() || !e.IsComplete() {
		return
	}
	if id, ok := e.Champion(); ok {
		e.Crown(id)
	}
}

func (e *Engine) complete(m *Match, winnerSlot int, score Score) error {
	winner := *m.PlayerIn(winnerSlot)
	m.Status = MatchCompleted
	m.WinnerID = &winner
	m.Score1, m.Score2 = score.P1, score.P2
	now := e.now()
	m.CompletedAt = &now
	if loser := m.PlayerIn(3 - winnerSlot); loser != nil {
		id := *loser
		m.LoserID = &id
	}
	e.dirty[m.ID] = true

	if !e.tournament.Format.IsElimination() {
		return nil
	}

	e.setParticipantStatus(winner, ParticipantAdvanced)
	if m.LoserID != nil {
		e.recordLoss(*m.LoserID)
	}
	return e.advance(m)
}

func (e *Engine) recordLoss(id uuid.UUID) {
	if e.tournament.Format == SingleElimination || e.losses(id) >= 2 {
		e.setParticipantStatus(id, ParticipantEliminated)
		return
	}
	e.setParticipantStatus(id, ParticipantActive)
}

func (e *Engine) losses(id uuid.UUID) int {
	n := 0
	for _, m := range e.matches {
		if m.IsCompleted() && !m.IsBye && m.LoserID != nil && *m.LoserID == id {
			n++
		}
	}
	return n
}

func (e *Engine) advance(m *Match) error {
	winner := *m.WinnerID

	if m.BracketSide == FinalsSide {
		// Losers bracket champion took the first grand final, so play it again
		if m.RoundNumber == e.layout.GrandFinalRound() && m.IsWinner(2) {
			reset := e.create(FinalsSide, e.layout.ResetRound(), 1, false)
			reset.Player1ID = m.LoserID
			reset.Player2ID = m.WinnerID
		}
		return nil
	}

	if pos, ok := e.layout.WinnerTarget(m.BracketSide, m.RoundNumber, m.MatchNumber); ok {
		if err := e.place(pos, winner); err != nil {
			return err
		}
	}
	if m.LoserID != nil {
		if pos, ok := e.layout.LoserTarget(m.BracketSide, m.RoundNumber, m.MatchNumber); ok {
			if err := e.place(pos, *m.LoserID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) place(pos Position, player uuid.UUID) error {
	target, ok := e.byKey[matchKey{pos.Side, pos.Round, pos.Match}]
	if !ok {
		return fmt.Errorf("bracket has no %s match %d in round %d", pos.Side, pos.Match, pos.Round)
	}
	if current := target.PlayerIn(pos.Slot); current != nil {
		if *current == player {
			return nil
		}
		return fmt.Errorf("%w: slot %d of match %s is already taken", ErrConflict, pos.Slot, target.ID)
	}
	target.setSlot(pos.Slot, player)
	e.dirty[target.ID] = true

	if target.IsBye && !target.IsCompleted() {
		return e.complete(target, pos.Slot, Score{})
	}
	return nil
}

// settle resolves byes that already have their player, as happens right after generation.
func (e *Engine) settle() error {
	for _, m := range e.matches {
		if m.IsBye && !m.IsCompleted() && m.Player1ID != nil {
			if err := e.complete(m, 1, Score{}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) nextSwissRound() ([]Match, error) {
	records := e.swissRecords()
	pairs, bye := pairSwissRound(records)
	round := e.CurrentRound() + 1

	var created []Match
	for i, pair := range pairs {
		m := e.create(WinnersSide, round, i+1, false)
		m.Player1ID = &pair[0]
		m.Player2ID = &pair[1]
		created = append(created, *m)
	}
	if bye != nil {
		m := e.create(WinnersSide, round, len(pairs)+1, true)
		m.Player1ID = bye
		if err := e.complete(m, 1, Score{}); err != nil {
			return nil, err
		}
		created = append(created, *m)
	}
	e.tournament.CurrentRound = round
	return created, nil
}

func (e *Engine) swissRecords() []*swissRecord {
	records := make(map[uuid.UUID]*swissRecord, len(e.participants))
	list := make([]*swissRecord, 0, len(e.participants))
	for _, p := range e.participants {
		r := &swissRecord{id: p.ID, opponents: make(map[uuid.UUID]bool)}
		records[p.ID] = r
		list = append(list, r)
	}
	for _, m := range e.matches {
		if !m.IsCompleted() || m.WinnerID == nil {
			continue
		}
		if m.IsBye {
			if r, ok := records[*m.WinnerID]; ok {
				r.wins++
				r.hadBye = true
			}
			continue
		}
		p1, p2 := records[*m.Player1ID], records[*m.Player2ID]
		if p1 == nil || p2 == nil {
			continue
		}
		p1.opponents[p2.id] = true
		p2.opponents[p1.id] = true
		p1.diff += m.Score1 - m.Score2
		p2.diff += m.Score2 - m.Score1
		records[*m.WinnerID].wins++
	}
	return list
}

func sortMatches(matches []Match) {
	sideOrder := map[BracketSide]int{WinnersSide: 0, LosersSide: 1, FinalsSide: 2}
	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Or(
			cmp.Compare(sideOrder[a.BracketSide], sideOrder[b.BracketSide]),
			cmp.Compare(abs(a.RoundNumber), abs(b.RoundNumber)),
			cmp.Compare(a.MatchNumber, b.MatchNumber),
		)
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
