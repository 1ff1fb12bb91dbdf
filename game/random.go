package game

import (
	"math/rand"
	"sync"
	"time"
)

// Random is the source of every random choice in a round. *rand.Rand
// satisfies it, so tests can pass a seeded source.
type Random interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// WordSource supplies the topic of a round. ok is false once the corpus is
// empty or exhausted.
type WordSource interface {
	PickTopic() (category, keyword string, ok bool)
}

type lockedRandom struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandom returns a Random that is safe to share between sessions.
// A zero seed uses the current time.
func NewRandom(seed int64) Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRandom{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRandom) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRandom) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}
