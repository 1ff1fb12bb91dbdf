package turn

import (
	"context"
	"strings"

	"github.com/wfunc/liargame/game"
	"github.com/wfunc/liargame/logger"
)

// Unbounded lets Advance run until the round blocks or ends.
const Unbounded = -1

const (
	FallbackText  = "I'm not sure what to say right now."
	FallbackGuess = "I don't know."
)

// FinalGuessPrefix starts the message carrying an automated liar's guess.
const FinalGuessPrefix = "(final guess) "

// Policy shapes what automated participants say.
type Policy struct {
	// AmbiguousPool names the bots the discussion frames.
	AmbiguousPool []string
	// FixedDescriptions pins the description of a bot by name.
	FixedDescriptions map[string]string
	Authoritative     bool
	// SupporterCount bots side with the human's suspicion.
	SupporterCount int
	// DecoyLine is what the decoy says when it has no fixed description.
	DecoyLine string
}

// Advancer plays the automated participants' turns.
type Advancer struct {
	gen    TextGenerator
	rnd    game.Random
	policy Policy
}

func NewAdvancer(gen TextGenerator, rnd game.Random, policy Policy) *Advancer {
	if rnd == nil {
		rnd = game.NewRandom(0)
	}
	return &Advancer{gen: gen, rnd: rnd, policy: policy}
}

type stepOutcome struct {
	took bool
	stop StopReason
}

func stopWith(reason StopReason) stepOutcome {
	return stepOutcome{stop: reason}
}

// pass is the state of one Advance call.
type pass struct {
	round       *game.RoundState
	actingHuman string
	maxSteps    int
	ledger      map[string]string
	res         *Result
}

func (p *pass) exhausted() bool {
	return p.maxSteps >= 0 && p.res.Steps >= p.maxSteps
}

func (p *pass) emit(name, content string, phase game.Phase) {
	p.res.Messages = append(p.res.Messages, Message{
		Sender:  SenderAI,
		Name:    name,
		Content: content,
		Phase:   phase,
	})
}

// Advance runs automated turns until a human must act, the round ends, the
// discussion waits for the checkpoint, or maxSteps actions were applied.
// A negative maxSteps is unbounded and zero does nothing. Accepted votes
// are written to ledger, voter -> target, when it is non-nil.
func (a *Advancer) Advance(ctx context.Context, round *game.RoundState, actingHuman string, maxSteps int, ledger map[string]string) Result {
	res := Result{}
	if maxSteps == 0 {
		res.Stop = StopNoBudget
		return res
	}
	p := &pass{round: round, actingHuman: actingHuman, maxSteps: maxSteps, ledger: ledger, res: &res}

	for {
		var out stepOutcome
		switch round.Phase() {
		case game.PhaseReady:
			out = stopWith(StopNotStarted)
		case game.PhaseEnded:
			out = stopWith(StopEnded)
		case game.PhaseDescription:
			out = a.describeStep(ctx, p)
		case game.PhaseDiscussion:
			out = a.discussStep(ctx, p)
		case game.PhaseVoting:
			out = a.voteStep(ctx, p)
		case game.PhaseFinalGuess:
			out = a.guessStep(ctx, p)
		default:
			out = stopWith(StopRejected)
		}
		if out.took {
			res.Steps++
		}
		if out.stop != "" {
			res.Stop = out.stop
			logger.Log.Debugf("Advance stopped after %d steps: %s (phase %s)", res.Steps, res.Stop, round.Phase())
			return res
		}
	}
}

func (a *Advancer) describeStep(ctx context.Context, p *pass) stepOutcome {
	round := p.round
	cur, ok := round.CurrentParticipant()
	if !ok || !cur.Automated {
		return stopWith(StopHumanTurn)
	}
	if p.exhausted() {
		return stopWith(StopBudget)
	}

	override := a.policy.FixedDescriptions[cur.Name]
	if override == "" && cur.Decoy {
		override = a.policy.DecoyLine
	}

	var (
		text     string
		fallback bool
	)
	if override != "" {
		text = override
	} else {
		req := DescribeRequest{
			Speaker:  cur.Name,
			Category: round.Category(),
			Prior:    round.Descriptions(),
			Decoy:    cur.Decoy,
		}
		if !cur.IsLiar() {
			req.Keyword = round.Keyword()
		}
		var err error
		text, err = a.gen.Describe(ctx, req)
		if err != nil || strings.TrimSpace(text) == "" {
			logger.Log.Warnf("Describe failed for %s, using fallback: %v", cur.Name, err)
			text, fallback = FallbackText, true
		}
	}
	text = strings.TrimSpace(text)

	if err := round.SubmitDescription(cur.Name, text); err != nil {
		logger.Log.Errorf("Description by %s rejected: %v", cur.Name, err)
		return stopWith(StopRejected)
	}
	logger.Log.Infof("AI %s described: %s", cur.Name, text)
	p.emit(cur.Name, text, game.PhaseDescription)
	p.res.Actions = append(p.res.Actions, Action{Kind: ActionDescription, By: cur.Name, Text: text, Fallback: fallback})
	return stepOutcome{took: true}
}

func (a *Advancer) discussStep(ctx context.Context, p *pass) stepOutcome {
	round := p.round
	if !round.MidCheckDone() {
		return stopWith(StopAwaitingCheckpoint)
	}
	cur, ok := round.CurrentParticipant()
	if !ok || !cur.Automated {
		return stopWith(StopHumanTurn)
	}
	if p.exhausted() {
		return stopWith(StopBudget)
	}

	stance, target := a.stanceFor(round, cur.Name, p.actingHuman)
	hint, _ := round.HumanSuspectHint()
	req := DiscussRequest{
		Speaker:       cur.Name,
		Category:      round.Category(),
		Descriptions:  round.Descriptions(),
		Log:           round.DiscussionLog(),
		HumanHint:     hint,
		Stance:        stance,
		Target:        target,
		Authoritative: a.policy.Authoritative,
		Decoy:         cur.Decoy,
	}
	if !cur.IsLiar() {
		req.Keyword = round.Keyword()
	}

	text, err := a.gen.Discuss(ctx, req)
	fallback := false
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Log.Warnf("Discuss failed for %s, using fallback: %v", cur.Name, err)
		text, fallback = FallbackText, true
	}
	text = strings.TrimSpace(text)

	if err := round.SubmitDiscussion(cur.Name, text); err != nil {
		logger.Log.Errorf("Discussion by %s rejected: %v", cur.Name, err)
		return stopWith(StopRejected)
	}
	logger.Log.Infof("AI %s (%s -> %s): %s", cur.Name, stance, target, text)
	p.emit(cur.Name, text, game.PhaseDiscussion)
	p.res.Actions = append(p.res.Actions, Action{
		Kind:     ActionDiscussion,
		By:       cur.Name,
		Text:     text,
		Target:   target,
		Stance:   stance,
		Fallback: fallback,
	})
	return stepOutcome{took: true}
}

func (a *Advancer) voteStep(ctx context.Context, p *pass) stepOutcome {
	round := p.round
	voter, ok := round.NextVoter()
	if !ok || !voter.Automated {
		return stopWith(StopVotingBlocked)
	}
	if p.exhausted() {
		return stopWith(StopBudget)
	}

	var candidates []string
	for _, name := range round.TurnOrder() {
		if name != voter.Name {
			candidates = append(candidates, name)
		}
	}
	req := VoteRequest{
		Voter:        voter.Name,
		Candidates:   candidates,
		Category:     round.Category(),
		Descriptions: round.Descriptions(),
		Log:          round.DiscussionLog(),
	}
	if !voter.IsLiar() {
		req.Keyword = round.Keyword()
	}

	choice, err := a.gen.Vote(ctx, req)
	choice = strings.TrimSpace(choice)
	fallback := false
	if err != nil || !contains(candidates, choice) {
		logger.Log.Warnf("Vote by %s unusable (%q, %v), picking at random", voter.Name, choice, err)
		choice, fallback = candidates[a.rnd.Intn(len(candidates))], true
	}

	if err := round.CastVote(voter.Name, choice); err != nil {
		logger.Log.Errorf("Vote by %s rejected: %v", voter.Name, err)
		return stopWith(StopRejected)
	}
	if p.ledger != nil {
		p.ledger[voter.Name] = choice
	}
	logger.Log.Infof("AI %s voted for %s", voter.Name, choice)
	p.res.Actions = append(p.res.Actions, Action{Kind: ActionVote, By: voter.Name, Target: choice, Fallback: fallback})
	return stepOutcome{took: true}
}

func (a *Advancer) guessStep(ctx context.Context, p *pass) stepOutcome {
	round := p.round
	liar, ok := round.Participant(round.Liar())
	if !ok || !liar.Automated {
		return stopWith(StopAwaitingHumanGuess)
	}
	if p.exhausted() {
		return stopWith(StopBudget)
	}

	guess, err := a.gen.FinalGuess(ctx, GuessRequest{
		Guesser:      liar.Name,
		Category:     round.Category(),
		Descriptions: round.Descriptions(),
		Log:          round.DiscussionLog(),
	})
	fallback := false
	if err != nil || strings.TrimSpace(guess) == "" {
		logger.Log.Warnf("FinalGuess failed for %s, using fallback: %v", liar.Name, err)
		guess, fallback = FallbackGuess, true
	}
	guess = strings.TrimSpace(guess)

	if err := round.SubmitFinalGuess(liar.Name, guess); err != nil {
		logger.Log.Errorf("Guess by %s rejected: %v", liar.Name, err)
		return stopWith(StopRejected)
	}
	p.emit(liar.Name, FinalGuessPrefix+guess, game.PhaseFinalGuess)
	p.res.Actions = append(p.res.Actions, Action{Kind: ActionFinalGuess, By: liar.Name, Text: guess, Fallback: fallback})
	return stepOutcome{took: true, stop: StopGuessMade}
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
