package textgen

import (
	"fmt"
	"strings"

	"github.com/wfunc/liargame/game"
	"github.com/wfunc/liargame/turn"
)

const gameContext = `[Liar Game Context]
- You are playing the Liar Game.
- Citizens know the secret word and should protect subtle, accurate descriptions while identifying the Liar.
- The Liar must blend in by sounding plausible and steering suspicion toward others.`

const firstSpeaker = "(You are the first to speak in the discussion.)"

var (
	assertiveTraits = []string{
		"- **Assertive tone**: Use confident, definitive statements.",
		"- **Logical critique**: Point out inconsistencies or overly generic descriptions.",
		"- **Expertise display**: Sound experienced and analytical about the game.",
		"- **Directive stance**: Suggest who to vote for.",
	}
	hedgingTraits = []string{
		"- **Hedging**: Use uncertain phrasing.",
		"- **Cautious tone**: Soften claims and avoid strong accusations.",
		"- **Seek agreement**: Ask others if they feel the same.",
	}
)

// sanitize drops invalid UTF-8 so the request body always encodes.
func sanitize(s string) string {
	return strings.ToValidUTF8(s, "")
}

func formatDescriptions(entries []game.DescriptionEntry) string {
	if len(entries) == 0 {
		return "(no descriptions yet)"
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("- %s: %s", sanitize(e.Speaker), sanitize(e.Text)))
	}
	return strings.Join(lines, "\n")
}

func formatLog(entries []game.DiscussionEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", sanitize(e.Speaker), sanitize(e.Text)))
	}
	return strings.Join(lines, "\n")
}

// pickTraits samples k traits without replacement.
func pickTraits(rnd game.Random, traits []string, k int) []string {
	picked := append([]string(nil), traits...)
	rnd.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	if k > len(picked) {
		k = len(picked)
	}
	return picked[:k]
}

func describePrompt(req turn.DescribeRequest) (system, user string) {
	category := sanitize(req.Category)
	prior := formatDescriptions(req.Prior)
	if req.Keyword == "" {
		system = fmt.Sprintf(`You are the Liar in a Liar Game. The category is '%s' but you do not know the secret word.
Blend in: read what the others said and give a one-sentence description that fits their hints
without committing to anything specific.`, category)
		user = fmt.Sprintf("[Descriptions so far]\n%s\n\nReply with one short sentence only.", prior)
		return system, user
	}
	system = fmt.Sprintf(`You are a citizen in a Liar Game. The category is '%s' and the secret word is '%s'.
Describe the word in one sentence so other citizens recognise it, but stay vague enough that the
Liar cannot guess it. Never say the word itself.`, category, sanitize(req.Keyword))
	user = fmt.Sprintf("[Descriptions so far]\n%s\n\nReply with one short sentence only.", prior)
	return system, user
}

func discussPrompt(rnd game.Random, req turn.DiscussRequest) string {
	role := "CITIZEN"
	if req.Keyword == "" {
		role = "LIAR"
	}
	hint := sanitize(req.HumanHint)
	target := sanitize(req.Target)

	behavior := "[Base instruction] Join the conversation naturally while observing the situation."
	switch req.Stance {
	case turn.StanceAgree:
		behavior = fmt.Sprintf(`[Goal: Agree]
You agree with the human player.
Support the accusation against [%s].`, hint)
	case turn.StanceDisagree:
		behavior = fmt.Sprintf(`[Goal: Disagree]
You believe the human player is wrong and is accusing an innocent citizen.
Instead, suspect [%s] as the Liar.`, target)
	case turn.StanceDefense:
		behavior = fmt.Sprintf(`[Goal: Self-Defense]
You (%s) are suspected as the Liar. Defend yourself and explain why your description is consistent
with being a citizen. Instead, suspect [%s].`, req.Speaker, target)
	}

	var style string
	if req.Authoritative {
		style = fmt.Sprintf(`[Style: High message strength]

[Acting points]
%s

[Required instructions]
1. You are logical and decisive.
2. Critique the suspected player's description using specific reasoning from [Reference 1].
3. Avoid repeating prior statements from [Reference 2]; add a fresh angle.
4. Speak in casual conversational English, about 1 sentence.
5. Do not prefix your name; respond directly as dialogue.`, strings.Join(pickTraits(rnd, assertiveTraits, 2), "\n"))
	} else {
		style = fmt.Sprintf(`[Style: Low authority]

[Acting points]
%s

[Required instructions]
1. You are timid and indecisive. Make emotional statements rather than logical ones.
2. Do not repeat what the previous person already said.
3. Speak in casual conversational English, about 1 sentence.
4. Do not prefix your name; respond directly as dialogue.

[Examples]
- "Honestly no idea, but I kind of feel like %[2]s is the liar. You get that feeling too?"
- "I just think %[2]s might be the liar? Something about how they talk."`, strings.Join(pickTraits(rnd, hedgingTraits, 2), "\n"), target)
	}

	history := formatLog(req.Log)
	if history == "" {
		history = firstSpeaker
	}

	return fmt.Sprintf(`%s
Your name is '%s', and your current role is '%s'.

[Reference 1: Player descriptions (important)]
%s

[Reference 2: Current discussion history]
%s

[Your behavior]
%s

[Style guide]
%s`, gameContext, sanitize(req.Speaker), role, formatDescriptions(req.Descriptions), history, behavior, style)
}

func votePrompt(req turn.VoteRequest) string {
	role := "CITIZEN"
	if req.Keyword == "" {
		role = "LIAR"
	}
	return fmt.Sprintf(`You are Liar Game player '%[1]s' (%[2]s). It is time to vote.
Analyse the records below and decide who to vote for.

[1. Description Log]
%[3]s

[2. Discussion Log]
%[4]s

[Rules: be consistent]
1. Find what you (%[1]s) said in [2. Discussion Log].
2. If you accused someone, vote for that person.
3. If you agreed with someone, vote for the person they suspected.
4. If you said nothing, pick the most suspicious description in [1. Description Log].

[Candidates]
%[5]s

[Output]
Write only the name of the person you vote for, nothing else.
(Example: Bot_2)`, sanitize(req.Voter), role, formatDescriptions(req.Descriptions),
		formatLog(req.Log), strings.Join(req.Candidates, ", "))
}

func guessPrompt(req turn.GuessRequest) (system, user string) {
	system = fmt.Sprintf(`You are the Liar. The category is '%s'.
Listen to the descriptions and guess the secret word. Output a single word only.`, sanitize(req.Category))
	user = "[Descriptions]\n" + formatDescriptions(req.Descriptions)
	if len(req.Log) > 0 {
		user += "\n\n[Discussion]\n" + formatLog(req.Log)
	}
	return system, user
}
