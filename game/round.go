package game

import (
	"fmt"
	"strings"

	"github.com/wfunc/liargame/logger"
)

// MinParticipants is the smallest roster a round can start with.
const MinParticipants = 3

// DiscussionEntry is one line of the discussion log.
type DiscussionEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// DescriptionEntry pairs a description with its author.
type DescriptionEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// RoundState is the state machine of one round. It is not safe for
// concurrent use; callers serialize access per session.
type RoundState struct {
	words WordSource
	rnd   Random

	phase Phase
	round int

	participants map[string]*Participant
	roster       []string

	turnOrder []string
	turnIndex int

	category string
	keyword  string

	descriptions  map[string]string
	discussionLog []DiscussionEntry
	votes         map[string]string

	liar    string
	suspect string
	decoy   string
	winner  Role

	humanSuspectHint   *string
	midCheckDone       bool
	midCheckConfidence *int
}

// NewRoundState returns an empty round in READY. A nil rnd uses a
// time-seeded source.
func NewRoundState(words WordSource, rnd Random) *RoundState {
	r := &RoundState{
		phase:        PhaseReady,
		round:        1,
		participants: make(map[string]*Participant),
		descriptions: make(map[string]string),
		votes:        make(map[string]string),
	}
	return r.Bind(words, rnd)
}

// Bind attaches the collaborators a decoded round needs to start or
// reorder. It returns r for chaining.
func (r *RoundState) Bind(words WordSource, rnd Random) *RoundState {
	if rnd == nil {
		rnd = NewRandom(0)
	}
	r.words = words
	r.rnd = rnd
	return r
}

// require checks that the round is in phase p.
func (r *RoundState) require(p Phase) error {
	if r.phase == PhaseEnded {
		return ErrRoundEnded
	}
	if r.phase != p {
		return fmt.Errorf("%w: in %s, need %s", ErrWrongPhase, r.phase, p)
	}
	return nil
}

func (r *RoundState) enter(next Phase) {
	if !r.phase.CanTransitionTo(next) {
		panic(fmt.Sprintf("game: illegal transition %s -> %s", r.phase, next))
	}
	logger.Log.Debugf("Round %d: %s -> %s", r.round, r.phase, next)
	r.phase = next
}

// AddParticipant registers a player. Only allowed in READY.
func (r *RoundState) AddParticipant(name string, automated bool) error {
	if err := r.require(PhaseReady); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if _, exists := r.participants[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateParticipant, name)
	}
	r.participants[name] = &Participant{Name: name, Automated: automated}
	r.roster = append(r.roster, name)
	return nil
}

// StartRound picks the topic, shuffles the turn order, assigns the liar and
// optionally a decoy, then enters DESCRIPTION.
func (r *RoundState) StartRound(liarCount int, useDecoy bool) error {
	if err := r.require(PhaseReady); err != nil {
		return err
	}
	if liarCount != 1 {
		return fmt.Errorf("%w: got %d", ErrLiarCount, liarCount)
	}
	if len(r.roster) < MinParticipants {
		return fmt.Errorf("%w: have %d", ErrNotEnoughPlayers, len(r.roster))
	}
	if r.words == nil {
		return ErrNoTopic
	}
	category, keyword, ok := r.words.PickTopic()
	if !ok {
		return ErrNoTopic
	}

	order := append([]string(nil), r.roster...)
	r.rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	pool := make([]string, 0, len(order))
	for _, name := range order {
		if r.participants[name].Automated {
			pool = append(pool, name)
		}
	}
	if len(pool) == 0 {
		pool = order
	}
	liar := pool[r.rnd.Intn(len(pool))]

	for _, name := range r.roster {
		p := r.participants[name]
		p.resetRound()
		p.Role = RoleCitizen
	}
	r.participants[liar].Role = RoleLiar

	decoy := ""
	if useDecoy {
		var candidates []string
		for _, name := range order {
			p := r.participants[name]
			if p.Automated && p.Role == RoleCitizen {
				candidates = append(candidates, name)
			}
		}
		if len(candidates) > 0 {
			decoy = candidates[r.rnd.Intn(len(candidates))]
			r.participants[decoy].Decoy = true
		}
	}

	r.category = category
	r.keyword = keyword
	r.turnOrder = order
	r.turnIndex = 0
	r.descriptions = make(map[string]string)
	r.discussionLog = nil
	r.votes = make(map[string]string)
	r.liar = liar
	r.suspect = ""
	r.decoy = decoy
	r.winner = RoleUnassigned
	r.humanSuspectHint = nil
	r.midCheckDone = false
	r.midCheckConfidence = nil

	logger.Log.Infof("Round %d started: category=%s liar=%s decoy=%s order=%v",
		r.round, category, liar, decoy, order)
	r.enter(PhaseDescription)
	return nil
}

// CurrentParticipant returns the participant whose turn it is in
// DESCRIPTION or DISCUSSION.
func (r *RoundState) CurrentParticipant() (Participant, bool) {
	if !r.phase.TakesTurns() || r.turnIndex < 0 || r.turnIndex >= len(r.turnOrder) {
		return Participant{}, false
	}
	return *r.participants[r.turnOrder[r.turnIndex]], true
}

func (r *RoundState) checkSpeaker(speaker string) error {
	if _, ok := r.participants[speaker]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParticipant, speaker)
	}
	cur, ok := r.CurrentParticipant()
	if !ok || cur.Name != speaker {
		return fmt.Errorf("%w: %q, waiting for %q", ErrNotYourTurn, speaker, cur.Name)
	}
	return nil
}

// advanceCursor moves to the next speaker and enters next at the end of
// the order.
func (r *RoundState) advanceCursor(next Phase) {
	r.turnIndex++
	if r.turnIndex >= len(r.turnOrder) {
		r.turnIndex = 0
		r.enter(next)
	}
}

// SubmitDescription records the current speaker's description.
func (r *RoundState) SubmitDescription(speaker, text string) error {
	if err := r.require(PhaseDescription); err != nil {
		return err
	}
	if err := r.checkSpeaker(speaker); err != nil {
		return err
	}
	r.descriptions[speaker] = text
	r.participants[speaker].HasDescribed = true
	r.advanceCursor(PhaseDiscussion)
	return nil
}

// RecordMidCheckpoint stores the human's suspicion between the description
// and discussion phases and puts humans first in the discussion order. The
// first call must come before anyone has spoken in DISCUSSION; later calls
// only overwrite the hint and confidence.
func (r *RoundState) RecordMidCheckpoint(hint string, confidence *int) error {
	if r.phase == PhaseEnded {
		return ErrRoundEnded
	}
	if !r.midCheckDone && (r.phase != PhaseDiscussion || len(r.discussionLog) > 0) {
		return fmt.Errorf("%w: phase %s, %d entries", ErrCheckpointNotAllowed, r.phase, len(r.discussionLog))
	}

	r.humanSuspectHint = nil
	if hint = strings.TrimSpace(hint); hint != "" {
		r.humanSuspectHint = &hint
	}
	r.midCheckConfidence = nil
	if confidence != nil {
		c := *confidence
		r.midCheckConfidence = &c
	}
	if r.midCheckDone {
		return nil
	}
	r.midCheckDone = true
	r.reorderForDiscussion()
	return nil
}

// reorderForDiscussion puts every human before every automated
// participant. Humans keep their relative order; the automated group is
// shuffled.
func (r *RoundState) reorderForDiscussion() {
	humans := make([]string, 0, len(r.turnOrder))
	bots := make([]string, 0, len(r.turnOrder))
	for _, name := range r.turnOrder {
		if r.participants[name].Automated {
			bots = append(bots, name)
		} else {
			humans = append(humans, name)
		}
	}
	r.rnd.Shuffle(len(bots), func(i, j int) { bots[i], bots[j] = bots[j], bots[i] })
	r.turnOrder = append(humans, bots...)
	r.turnIndex = 0
	logger.Log.Debugf("Round %d: discussion order %v", r.round, r.turnOrder)
}

// SubmitDiscussion appends the current speaker's line to the log.
func (r *RoundState) SubmitDiscussion(speaker, text string) error {
	if err := r.require(PhaseDiscussion); err != nil {
		return err
	}
	if err := r.checkSpeaker(speaker); err != nil {
		return err
	}
	r.discussionLog = append(r.discussionLog, DiscussionEntry{Speaker: speaker, Text: text})
	r.advanceCursor(PhaseVoting)
	return nil
}

// SubmitFinalGuess settles the round on the liar's guess. The match is
// exact after trimming.
func (r *RoundState) SubmitFinalGuess(guesser, guess string) error {
	if err := r.require(PhaseFinalGuess); err != nil {
		return err
	}
	if _, ok := r.participants[guesser]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParticipant, guesser)
	}
	if guesser != r.liar {
		return fmt.Errorf("%w: %q", ErrNotLiar, guesser)
	}
	if strings.TrimSpace(guess) == strings.TrimSpace(r.keyword) {
		r.winner = RoleLiar
	} else {
		r.winner = RoleCitizen
	}
	logger.Log.Infof("Round %d: liar %s guessed %q, winner %s", r.round, guesser, guess, r.winner)
	r.enter(PhaseEnded)
	return nil
}

// ResetForNextRound clears everything scoped to the round, keeps the
// roster and returns to READY. It is allowed from any phase.
func (r *RoundState) ResetForNextRound() {
	for _, p := range r.participants {
		p.resetRound()
	}
	r.phase = PhaseReady
	r.round++
	r.turnOrder = nil
	r.turnIndex = 0
	r.category = ""
	r.keyword = ""
	r.descriptions = make(map[string]string)
	r.discussionLog = nil
	r.votes = make(map[string]string)
	r.liar = ""
	r.suspect = ""
	r.decoy = ""
	r.winner = RoleUnassigned
	r.humanSuspectHint = nil
	r.midCheckDone = false
	r.midCheckConfidence = nil
}

// Accessors for the round's scalar state. Liar, Suspect, Decoy and Winner
// are empty until the round assigns them.
func (r *RoundState) Phase() Phase       { return r.phase }
func (r *RoundState) Round() int         { return r.round }
func (r *RoundState) TurnIndex() int     { return r.turnIndex }
func (r *RoundState) Category() string   { return r.category }
func (r *RoundState) Keyword() string    { return r.keyword }
func (r *RoundState) Liar() string       { return r.liar }
func (r *RoundState) Suspect() string    { return r.suspect }
func (r *RoundState) Decoy() string      { return r.decoy }
func (r *RoundState) Winner() Role       { return r.winner }
func (r *RoundState) MidCheckDone() bool { return r.midCheckDone }

// TurnOrder returns a copy of the current turn order.
func (r *RoundState) TurnOrder() []string {
	return append([]string(nil), r.turnOrder...)
}

// Participant returns a copy of the named participant.
func (r *RoundState) Participant(name string) (Participant, bool) {
	p, ok := r.participants[name]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Participants returns copies in turn order, followed by anyone not in the
// order yet in registration order.
func (r *RoundState) Participants() []Participant {
	out := make([]Participant, 0, len(r.roster))
	seen := make(map[string]bool, len(r.roster))
	for _, name := range r.turnOrder {
		out = append(out, *r.participants[name])
		seen[name] = true
	}
	for _, name := range r.roster {
		if !seen[name] {
			out = append(out, *r.participants[name])
		}
	}
	return out
}

// Humans returns the names of the non-automated participants.
func (r *RoundState) Humans() []string {
	var out []string
	for _, p := range r.Participants() {
		if !p.Automated {
			out = append(out, p.Name)
		}
	}
	return out
}

// Descriptions returns the submitted descriptions in turn order.
func (r *RoundState) Descriptions() []DescriptionEntry {
	out := make([]DescriptionEntry, 0, len(r.descriptions))
	for _, name := range r.turnOrder {
		if text, ok := r.descriptions[name]; ok {
			out = append(out, DescriptionEntry{Speaker: name, Text: text})
		}
	}
	return out
}

// DiscussionLog returns a copy of the discussion so far.
func (r *RoundState) DiscussionLog() []DiscussionEntry {
	return append([]DiscussionEntry(nil), r.discussionLog...)
}

// Votes returns a copy of voter -> target.
func (r *RoundState) Votes() map[string]string {
	out := make(map[string]string, len(r.votes))
	for k, v := range r.votes {
		out[k] = v
	}
	return out
}

// HumanSuspectHint returns the name recorded at the checkpoint, if any.
func (r *RoundState) HumanSuspectHint() (string, bool) {
	if r.humanSuspectHint == nil {
		return "", false
	}
	return *r.humanSuspectHint, true
}

// MidCheckConfidence returns the confidence recorded at the checkpoint.
func (r *RoundState) MidCheckConfidence() (int, bool) {
	if r.midCheckConfidence == nil {
		return 0, false
	}
	return *r.midCheckConfidence, true
}
