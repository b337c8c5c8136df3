package comm

import (
	"fmt"
	"sort"
	"sync"
)

// group is the shared rendezvous state behind one in-process
// communicator. Collectives run as generation-counted rounds: each
// member deposits its contribution, the last arrival resolves the
// round, and everyone collects the result before the next round can
// resolve. Rounds are strictly serialized per group, which is exactly
// the collective ordering discipline the library requires of callers.
type group struct {
	size int

	mu      sync.Mutex
	cond    *sync.Cond
	gen     uint64
	arrived int

	accBool bool
	accSum  float64
	accStr  string

	resBool bool
	resSum  float64
	resStr  string

	splitIn  []splitMember
	splitOut map[int]*member // keyed by parent rank
}

type splitMember struct {
	color, key, rank int
}

type member struct {
	g    *group
	rank int
}

func newGroup(size int) *group {
	g := &group{size: size, accBool: true}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// NewWorld creates an in-process world communicator of the given size
// and returns one handle per rank. Each handle must be driven by its
// own goroutine; sharing a handle across goroutines breaks the
// one-call-per-rank collective contract.
func NewWorld(size int) ([]Comm, error) {
	if size <= 0 {
		return nil, fmt.Errorf("world size must be positive, got %d", size)
	}
	g := newGroup(size)
	comms := make([]Comm, size)
	for i := range comms {
		comms[i] = &member{g: g, rank: i}
	}
	return comms, nil
}

// round runs one collective round: deposit under the lock, resolve on
// last arrival, collect after the round completes. A fast rank may
// deposit into the next round early, but that round cannot resolve
// until every member has collected this one and arrived, so result
// fields cannot be clobbered by a fast re-entrant rank.
func (g *group) round(deposit, resolve, collect func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	gen := g.gen
	if deposit != nil {
		deposit()
	}
	g.arrived++
	if g.arrived == g.size {
		if resolve != nil {
			resolve()
		}
		g.arrived = 0
		g.gen++
		g.cond.Broadcast()
	} else {
		for g.gen == gen {
			g.cond.Wait()
		}
	}
	if collect != nil {
		collect()
	}
}

func (m *member) Rank() int { return m.rank }
func (m *member) Size() int { return m.g.size }

func (m *member) Barrier() error {
	m.g.round(nil, nil, nil)
	return nil
}

func (m *member) AllTrue(v bool) (bool, error) {
	g := m.g
	var out bool
	g.round(
		func() { g.accBool = g.accBool && v },
		func() { g.resBool = g.accBool; g.accBool = true },
		func() { out = g.resBool },
	)
	return out, nil
}

func (m *member) AllReduceSum(v float64) (float64, error) {
	g := m.g
	var out float64
	g.round(
		func() { g.accSum += v },
		func() { g.resSum = g.accSum; g.accSum = 0 },
		func() { out = g.resSum },
	)
	return out, nil
}

func (m *member) BcastString(s string, root int) (string, error) {
	if err := checkRoot(root, m.g.size); err != nil {
		return "", err
	}
	g := m.g
	var out string
	g.round(
		func() {
			if m.rank == root {
				g.accStr = s
			}
		},
		func() { g.resStr = g.accStr; g.accStr = "" },
		func() { out = g.resStr },
	)
	return out, nil
}

func (m *member) Split(color, key int) (Comm, error) {
	g := m.g
	var out Comm
	g.round(
		func() {
			g.splitIn = append(g.splitIn, splitMember{color: color, key: key, rank: m.rank})
		},
		func() {
			byColor := make(map[int][]splitMember)
			for _, sm := range g.splitIn {
				byColor[sm.color] = append(byColor[sm.color], sm)
			}
			g.splitOut = make(map[int]*member, g.size)
			for _, members := range byColor {
				sort.Slice(members, func(i, j int) bool {
					if members[i].key != members[j].key {
						return members[i].key < members[j].key
					}
					return members[i].rank < members[j].rank
				})
				sub := newGroup(len(members))
				for newRank, sm := range members {
					g.splitOut[sm.rank] = &member{g: sub, rank: newRank}
				}
			}
			g.splitIn = nil
		},
		func() { out = g.splitOut[m.rank] },
	)
	return out, nil
}
