package game

import (
	"encoding/json"
	"fmt"
)

type participantSnapshot struct {
	Name          string `json:"name"`
	Automated     bool   `json:"is_ai"`
	Role          Role   `json:"role"`
	HasDescribed  bool   `json:"has_described"`
	HasVoted      bool   `json:"has_voted"`
	VotesReceived int    `json:"votes_received"`
	Decoy         bool   `json:"is_decoy"`
}

type snapshot struct {
	Phase              Phase                          `json:"phase"`
	Round              int                            `json:"current_round"`
	Category           string                         `json:"category"`
	Keyword            string                         `json:"keyword"`
	Roster             []string                       `json:"roster"`
	TurnOrder          []string                       `json:"turn_order"`
	TurnIndex          int                            `json:"turn_index"`
	Liar               string                         `json:"liar,omitempty"`
	Decoy              string                         `json:"decoy,omitempty"`
	Suspect            string                         `json:"suspect,omitempty"`
	Winner             Role                           `json:"winner,omitempty"`
	Descriptions       map[string]string              `json:"descriptions"`
	Discussions        []DiscussionEntry              `json:"discussions"`
	Votes              map[string]string              `json:"votes"`
	HumanSuspectName   *string                        `json:"human_suspect_name"`
	MidCheckDone       bool                           `json:"mid_check_done"`
	MidCheckConfidence *int                           `json:"mid_check_confidence"`
	Players            map[string]participantSnapshot `json:"players"`
}

// Encode serializes the round. The collaborators passed to NewRoundState
// or Bind are not part of the snapshot.
func (r *RoundState) Encode() ([]byte, error) {
	s := snapshot{
		Phase:              r.phase,
		Round:              r.round,
		Category:           r.category,
		Keyword:            r.keyword,
		Roster:             append([]string{}, r.roster...),
		TurnOrder:          append([]string{}, r.turnOrder...),
		TurnIndex:          r.turnIndex,
		Liar:               r.liar,
		Decoy:              r.decoy,
		Suspect:            r.suspect,
		Winner:             r.winner,
		Descriptions:       r.descriptions,
		Discussions:        append([]DiscussionEntry{}, r.discussionLog...),
		Votes:              r.votes,
		HumanSuspectName:   r.humanSuspectHint,
		MidCheckDone:       r.midCheckDone,
		MidCheckConfidence: r.midCheckConfidence,
		Players:            make(map[string]participantSnapshot, len(r.participants)),
	}
	for name, p := range r.participants {
		s.Players[name] = participantSnapshot{
			Name:          p.Name,
			Automated:     p.Automated,
			Role:          p.Role,
			HasDescribed:  p.HasDescribed,
			HasVoted:      p.HasVoted,
			VotesReceived: p.VotesReceived,
			Decoy:         p.Decoy,
		}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode round: %w", err)
	}
	return data, nil
}

// Decode rebuilds a round from Encode output. Any inconsistency is
// reported as ErrDataCorruption; nothing is repaired. Call Bind before
// starting or reordering the decoded round.
func Decode(data []byte) (*RoundState, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, corrupt("unmarshal: %v", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	r := NewRoundState(nil, nil)
	r.phase = s.Phase
	r.round = s.Round
	r.category = s.Category
	r.keyword = s.Keyword
	r.roster = append([]string(nil), s.Roster...)
	r.turnOrder = append([]string(nil), s.TurnOrder...)
	r.turnIndex = s.TurnIndex
	r.liar = s.Liar
	r.decoy = s.Decoy
	r.suspect = s.Suspect
	r.winner = s.Winner
	r.discussionLog = append([]DiscussionEntry(nil), s.Discussions...)
	r.humanSuspectHint = s.HumanSuspectName
	r.midCheckDone = s.MidCheckDone
	r.midCheckConfidence = s.MidCheckConfidence
	for k, v := range s.Descriptions {
		r.descriptions[k] = v
	}
	for k, v := range s.Votes {
		r.votes[k] = v
	}
	for name, p := range s.Players {
		r.participants[name] = &Participant{
			Name:          name,
			Role:          p.Role,
			Automated:     p.Automated,
			Decoy:         p.Decoy,
			HasDescribed:  p.HasDescribed,
			HasVoted:      p.HasVoted,
			VotesReceived: p.VotesReceived,
		}
	}
	return r, nil
}

func (s *snapshot) validate() error {
	if !s.Phase.Valid() {
		return corrupt("unknown phase %q", s.Phase)
	}
	if s.Round < 1 {
		return corrupt("round %d", s.Round)
	}
	if len(s.Roster) != len(s.Players) {
		return corrupt("roster has %d names, players has %d", len(s.Roster), len(s.Players))
	}
	seen := make(map[string]bool, len(s.Roster))
	for _, name := range s.Roster {
		if _, ok := s.Players[name]; !ok || seen[name] {
			return corrupt("roster name %q", name)
		}
		seen[name] = true
	}

	liars := 0
	for name, p := range s.Players {
		if p.Name != "" && p.Name != name {
			return corrupt("player key %q holds %q", name, p.Name)
		}
		if !p.Role.Valid() {
			return corrupt("player %q has role %q", name, p.Role)
		}
		if p.VotesReceived < 0 {
			return corrupt("player %q has %d votes", name, p.VotesReceived)
		}
		if p.Role == RoleLiar {
			liars++
		}
	}

	if s.Phase == PhaseReady {
		if len(s.TurnOrder) > 0 || liars > 0 {
			return corrupt("READY round carries a turn order or roles")
		}
	} else {
		if len(s.TurnOrder) != len(s.Players) {
			return corrupt("turn order has %d names, players has %d", len(s.TurnOrder), len(s.Players))
		}
		inOrder := make(map[string]bool, len(s.TurnOrder))
		for _, name := range s.TurnOrder {
			if _, ok := s.Players[name]; !ok || inOrder[name] {
				return corrupt("turn order name %q", name)
			}
			inOrder[name] = true
		}
		if liars != 1 {
			return corrupt("%d liars", liars)
		}
		if p, ok := s.Players[s.Liar]; !ok || p.Role != RoleLiar {
			return corrupt("liar %q", s.Liar)
		}
		for name, p := range s.Players {
			if p.Role == RoleUnassigned {
				return corrupt("player %q has no role", name)
			}
		}
	}

	if s.Phase.TakesTurns() && (s.TurnIndex < 0 || s.TurnIndex >= len(s.TurnOrder)) {
		return corrupt("turn index %d with %d participants", s.TurnIndex, len(s.TurnOrder))
	}
	if s.Suspect != "" {
		if _, ok := s.Players[s.Suspect]; !ok {
			return corrupt("suspect %q", s.Suspect)
		}
	}
	if s.Decoy != "" {
		p, ok := s.Players[s.Decoy]
		if !ok || !p.Decoy || !p.Automated || p.Role != RoleCitizen {
			return corrupt("decoy %q", s.Decoy)
		}
	}
	for name, p := range s.Players {
		if p.Decoy && name != s.Decoy {
			return corrupt("player %q flagged as decoy", name)
		}
	}
	if (s.Phase == PhaseEnded) != (s.Winner != RoleUnassigned) {
		return corrupt("winner %q in phase %s", s.Winner, s.Phase)
	}
	if !s.Winner.Valid() {
		return corrupt("winner %q", s.Winner)
	}
	for name := range s.Descriptions {
		if _, ok := s.Players[name]; !ok {
			return corrupt("description by %q", name)
		}
	}
	for _, e := range s.Discussions {
		if _, ok := s.Players[e.Speaker]; !ok {
			return corrupt("discussion by %q", e.Speaker)
		}
	}
	for voter, target := range s.Votes {
		_, okVoter := s.Players[voter]
		_, okTarget := s.Players[target]
		if !okVoter || !okTarget {
			return corrupt("vote %q -> %q", voter, target)
		}
	}
	return nil
}
