package textgen

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"unicode"

	"github.com/wfunc/liargame/turn"
)

var (
	citizenLines = []string{
		"It's something you'd definitely connect with %[1]s, and it starts with %[2]q.",
		"Think %[1]s; the word has %[3]d letters.",
		"Most people have run into one of these, it's a %[1]s thing starting with %[2]q.",
	}
	liarLines = []string{
		"It's pretty common when you talk about %[1]s.",
		"I'd say it's a classic example of %[1]s.",
		"Honestly, anyone into %[1]s knows this one.",
	}
	agreeLines = map[bool]string{
		true:  "%s is clearly the liar, that description could fit anything.",
		false: "I kind of agree with you... %s felt a bit off to me?",
	}
	disagreeLines = map[bool]string{
		true:  "No, you've got the wrong person. %s is the one giving vague hints.",
		false: "Hmm, I'm not so sure about that. Maybe %s is the liar instead?",
	}
	defenseLines = map[bool]string{
		true:  "My description was spot on. Look at %s instead.",
		false: "Wait, it's not me... what about %s?",
	}
)

// stopwords are skipped when the scripted liar guesses from descriptions.
var stopwords = map[string]bool{
	"about": true, "anyone": true, "classic": true, "common": true, "connect": true,
	"definitely": true, "example": true, "honestly": true, "knows": true, "letters": true,
	"people": true, "pretty": true, "something": true, "starting": true, "starts": true,
	"thing": true, "think": true, "these": true, "word": true, "would": true, "you'd": true,
}

// Scripted is a deterministic offline TextGenerator. The same request always
// produces the same text.
type Scripted struct{}

func NewScripted() *Scripted {
	return &Scripted{}
}

func pick(lines []string, seed string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return lines[int(h.Sum32()%uint32(len(lines)))]
}

func (s *Scripted) Describe(_ context.Context, req turn.DescribeRequest) (string, error) {
	if req.Keyword == "" {
		return fmt.Sprintf(pick(liarLines, req.Speaker), req.Category), nil
	}
	first := []rune(req.Keyword)[0]
	line := pick(citizenLines, req.Speaker+req.Keyword)
	return fmt.Sprintf(line, req.Category, string(unicode.ToUpper(first)), len([]rune(req.Keyword))), nil
}

func (s *Scripted) Discuss(_ context.Context, req turn.DiscussRequest) (string, error) {
	switch req.Stance {
	case turn.StanceAgree:
		return fmt.Sprintf(agreeLines[req.Authoritative], req.HumanHint), nil
	case turn.StanceDefense:
		return fmt.Sprintf(defenseLines[req.Authoritative], req.Target), nil
	default:
		return fmt.Sprintf(disagreeLines[req.Authoritative], req.Target), nil
	}
}

// Vote follows the voter's own accusation in the discussion log, else picks
// the first candidate.
func (s *Scripted) Vote(_ context.Context, req turn.VoteRequest) (string, error) {
	if len(req.Candidates) == 0 {
		return "", ErrUnparsedVote
	}
	for i := len(req.Log) - 1; i >= 0; i-- {
		entry := req.Log[i]
		if entry.Speaker != req.Voter {
			continue
		}
		if name, err := ParseVote(entry.Text, req.Candidates); err == nil {
			return name, nil
		}
	}
	return req.Candidates[0], nil
}

// FinalGuess names the most frequent content word in the descriptions.
func (s *Scripted) FinalGuess(_ context.Context, req turn.GuessRequest) (string, error) {
	counts := make(map[string]int)
	category := strings.ToLower(req.Category)
	for _, d := range req.Descriptions {
		for _, w := range strings.FieldsFunc(d.Text, func(r rune) bool {
			return !unicode.IsLetter(r) && r != '\''
		}) {
			w = strings.ToLower(w)
			if len([]rune(w)) < 4 || stopwords[w] || w == category {
				continue
			}
			counts[w]++
		}
	}
	if len(counts) == 0 {
		return "", nil
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	return words[0], nil
}
