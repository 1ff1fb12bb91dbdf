package words

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wfunc/liargame/game"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported words file format")
	ErrEmptyCorpus       = errors.New("words file has no keywords")
)

// Source picks a random category, then a random keyword in it.
type Source struct {
	categories []string
	words      map[string][]string
	rnd        game.Random
}

// New builds a Source from category -> keywords. Blank keywords and
// categories without keywords are dropped.
func New(corpus map[string][]string, rnd game.Random) *Source {
	if rnd == nil {
		rnd = game.NewRandom(0)
	}
	s := &Source{words: make(map[string][]string), rnd: rnd}
	for category, keywords := range corpus {
		category = strings.TrimSpace(category)
		var kept []string
		for _, k := range keywords {
			if k = strings.TrimSpace(k); k != "" {
				kept = append(kept, k)
			}
		}
		if category == "" || len(kept) == 0 {
			continue
		}
		s.words[category] = append(s.words[category], kept...)
	}
	for category := range s.words {
		s.categories = append(s.categories, category)
	}
	sort.Strings(s.categories)
	return s
}

// Builtin returns a Source over the bundled corpus.
func Builtin(rnd game.Random) *Source {
	return New(builtinCorpus, rnd)
}

// Load reads a JSON or YAML file mapping category to keywords.
func Load(path string, rnd game.Random) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read words file: %w", err)
	}

	corpus := make(map[string][]string)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &corpus)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &corpus)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse words file %s: %w", path, err)
	}

	s := New(corpus, rnd)
	if len(s.categories) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCorpus, path)
	}
	return s, nil
}

// PickTopic implements game.WordSource.
func (s *Source) PickTopic() (string, string, bool) {
	if len(s.categories) == 0 {
		return "", "", false
	}
	category := s.categories[s.rnd.Intn(len(s.categories))]
	keywords := s.words[category]
	return category, keywords[s.rnd.Intn(len(keywords))], true
}

// Categories returns the category names, sorted.
func (s *Source) Categories() []string {
	return append([]string(nil), s.categories...)
}
