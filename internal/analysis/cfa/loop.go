package cfa

import (
	"sort"

	"github.com/hashicorp/go-set/v3"
)

// LoopStructure records loop heads and the edges entering each loop from
// outside.
type LoopStructure struct {
	heads   *set.Set[int]
	entries *set.Set[int]
	loops   []*Loop
}

// Loop is one natural loop of the program.
type Loop struct {
	Head    *Node
	Body    *set.Set[int]
	Entries []Edge
}

// NewLoopStructure returns a structure without loops.
func NewLoopStructure() *LoopStructure {
	return &LoopStructure{
		heads:   set.New[int](0),
		entries: set.New[int](0),
	}
}

// AddLoop registers a loop by its head and body nodes. Edges entering the
// head from nodes outside the body become loop-entry edges.
func (ls *LoopStructure) AddLoop(head *Node, body []*Node) *Loop {
	ids := set.New[int](len(body) + 1)
	ids.Insert(head.ID)
	for _, n := range body {
		ids.Insert(n.ID)
	}
	l := &Loop{Head: head, Body: ids}
	for _, e := range head.Entering {
		if !ids.Contains(e.Predecessor().ID) {
			l.Entries = append(l.Entries, e)
			ls.entries.Insert(e.ID())
		}
	}
	ls.heads.Insert(head.ID)
	ls.loops = append(ls.loops, l)
	return l
}

// IsLoopHead reports whether n heads a loop.
func (ls *LoopStructure) IsLoopHead(n *Node) bool { return ls.heads.Contains(n.ID) }

// IsLoopEntry reports whether e enters a loop from outside.
func (ls *LoopStructure) IsLoopEntry(e Edge) bool { return ls.entries.Contains(e.ID()) }

// Loops returns the registered loops.
func (ls *LoopStructure) Loops() []*Loop { return append([]*Loop(nil), ls.loops...) }

// Heads returns the IDs of all loop heads in ascending order.
func (ls *LoopStructure) Heads() []int {
	ids := ls.heads.Slice()
	sort.Ints(ids)
	return ids
}

func (ls *LoopStructure) replaceEntry(old, repl Edge) {
	ls.entries.Remove(old.ID())
	ls.entries.Insert(repl.ID())
	for _, l := range ls.loops {
		for i, e := range l.Entries {
			if e == old {
				l.Entries[i] = repl
			}
		}
	}
}
