package textgen

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnparsedVote = errors.New("vote names no candidate")

// ParseVote extracts a candidate name from a model reply. The reply is cut
// at the first '|', stripped of quotes and dots, then matched exactly or as
// a substring. Among substring matches the longest name wins, so Bot_10 is
// not read as Bot_1.
func ParseVote(reply string, candidates []string) (string, error) {
	name := reply
	if i := strings.Index(name, "|"); i >= 0 {
		name = name[:i]
	}
	name = strings.NewReplacer("'", "", `"`, "", ".", "").Replace(name)
	name = strings.TrimSpace(name)

	for _, c := range candidates {
		if name == c {
			return c, nil
		}
	}
	best := ""
	for _, c := range candidates {
		if c != "" && len(c) > len(best) && strings.Contains(name, c) {
			best = c
		}
	}
	if best != "" {
		return best, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnparsedVote, reply)
}
