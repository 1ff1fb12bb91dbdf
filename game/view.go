package game

// HiddenKeyword is what the liar, and anyone without a citizen role, sees
// in place of the keyword.
const HiddenKeyword = "???"

// View is a round as presented to one viewer.
type View struct {
	Phase   Phase       `json:"phase"`
	Public  PublicInfo  `json:"public"`
	Private PrivateInfo `json:"private"`
	Result  *Result     `json:"result,omitempty"`
}

type PublicInfo struct {
	Round        int                `json:"round"`
	Category     string             `json:"category"`
	Participants []ParticipantView  `json:"participants"`
	TurnOrder    []string           `json:"turn_order"`
	TurnIndex    int                `json:"turn_index"`
	Current      string             `json:"current,omitempty"`
	Descriptions []DescriptionEntry `json:"descriptions"`
	Discussion   []DiscussionEntry  `json:"discussion"`
	MidCheckDone bool               `json:"mid_check_done"`
}

type ParticipantView struct {
	Name         string `json:"name"`
	Automated    bool   `json:"is_ai"`
	HasDescribed bool   `json:"has_described"`
	HasVoted     bool   `json:"has_voted"`
}

type PrivateInfo struct {
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	Keyword string `json:"keyword"`
}

// Result is the outcome of an ended round. Keyword is left empty when the
// viewer is the liar.
type Result struct {
	WinnerSide Role           `json:"winner_side"`
	Liar       string         `json:"liar"`
	Suspect    string         `json:"suspect"`
	Category   string         `json:"category"`
	Keyword    string         `json:"keyword,omitempty"`
	Votes      map[string]int `json:"votes"`
}

// View presents the round to viewer. Only citizens see the keyword.
func (r *RoundState) View(viewer string) View {
	v := View{
		Phase: r.phase,
		Public: PublicInfo{
			Round:        r.round,
			Category:     r.category,
			TurnOrder:    r.TurnOrder(),
			TurnIndex:    r.turnIndex,
			Descriptions: r.Descriptions(),
			Discussion:   r.DiscussionLog(),
			MidCheckDone: r.midCheckDone,
		},
		Private: PrivateInfo{Name: viewer, Keyword: HiddenKeyword},
	}
	for _, p := range r.Participants() {
		v.Public.Participants = append(v.Public.Participants, ParticipantView{
			Name:         p.Name,
			Automated:    p.Automated,
			HasDescribed: p.HasDescribed,
			HasVoted:     p.HasVoted,
		})
	}
	if cur, ok := r.CurrentParticipant(); ok {
		v.Public.Current = cur.Name
	}

	me, known := r.participants[viewer]
	if known {
		v.Private.Role = me.Role
		if me.Role == RoleCitizen {
			v.Private.Keyword = r.keyword
		}
	}

	if res, ok := r.Result(); ok {
		if known && me.Role == RoleLiar {
			res.Keyword = ""
		}
		v.Result = &res
	}
	return v
}

// Result returns the outcome once the round has ended.
func (r *RoundState) Result() (Result, bool) {
	if r.phase != PhaseEnded {
		return Result{}, false
	}
	return Result{
		WinnerSide: r.winner,
		Liar:       r.liar,
		Suspect:    r.suspect,
		Category:   r.category,
		Keyword:    r.keyword,
		Votes:      r.Tally(),
	}, true
}
