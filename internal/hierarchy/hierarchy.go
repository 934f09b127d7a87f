// Package hierarchy arranges work items into render order.
//
// Items are linked into a forest by parent id and flattened in pre-order, which
// is table-of-contents order: parents before their descendants, siblings in
// input order. Every node carries a level path such as 2.1 (first child of the
// second root item).
//
// Nodes live in an arena indexed by input position. Parent links are plain
// indices, so there is no pointer cycle between parents and children.
package hierarchy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for index construction.
var (
	ErrEmptyID       = errors.New("item id cannot be empty")
	ErrDuplicateID   = errors.New("duplicate item id")
	ErrUnknownParent = errors.New("parent item not found")
	ErrParentCycle   = errors.New("parent chain forms a cycle")
	ErrInvalidPolicy = errors.New("invalid orphan policy")
)

// OrphanPolicy decides what happens to items whose parent cannot be placed.
type OrphanPolicy int

const (
	// PromoteOrphans moves items with an unknown parent, or caught in a parent
	// cycle, to the top level.
	PromoteOrphans OrphanPolicy = iota
	// RejectOrphans fails index construction instead.
	RejectOrphans
)

// String returns the config name of the policy.
func (p OrphanPolicy) String() string {
	switch p {
	case PromoteOrphans:
		return "promote"
	case RejectOrphans:
		return "reject"
	}
	return "OrphanPolicy(" + strconv.Itoa(int(p)) + ")"
}

// ParseOrphanPolicy parses "promote" or "reject" (case-insensitive).
// Empty input yields PromoteOrphans.
func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "promote":
		return PromoteOrphans, nil
	case "reject":
		return RejectOrphans, nil
	}
	return 0, fmt.Errorf("%w: %q (must be promote or reject)", ErrInvalidPolicy, s)
}

// Entry is the part of an item the indexer looks at.
type Entry struct {
	ID       string
	ParentID string // empty = no parent
}

// LevelPath locates a node by 1-based sibling ranks from the top level down.
type LevelPath []int

// String formats the path as dotted numbering, e.g. "2.1.3".
func (p LevelPath) String() string {
	var b strings.Builder
	for i, r := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(r))
	}
	return b.String()
}

// Level returns the depth of the path; top-level paths are level 0.
func (p LevelPath) Level() int {
	return len(p) - 1
}

// Equal reports whether both paths hold the same ranks.
func (p LevelPath) Equal(o LevelPath) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p LevelPath) child(rank int) LevelPath {
	c := make(LevelPath, len(p)+1)
	copy(c, p)
	c[len(p)] = rank
	return c
}

// Node is one item's position in the render tree.
type Node struct {
	ID       string
	Pos      int   // input position, also the arena index
	Parent   int   // arena index of the parent, -1 for top-level nodes
	Children []int // arena indices in input encounter order
	Path     LevelPath
}

// Level returns the node depth (top level = 0).
func (n *Node) Level() int {
	return n.Path.Level()
}

// IsRoot reports whether the node sits at the top level.
func (n *Node) IsRoot() bool {
	return n.Parent < 0
}

// Index is the result of Build.
type Index struct {
	nodes    []Node
	byID     map[string]int
	order    []int
	roots    []int
	promoted []int
}

// Len returns the number of indexed items.
func (x *Index) Len() int {
	return len(x.nodes)
}

// Order returns input positions in render order.
func (x *Index) Order() []int {
	return x.order
}

// Node returns the node for an input position.
func (x *Index) Node(pos int) *Node {
	return &x.nodes[pos]
}

// Lookup returns the node for an item id.
func (x *Index) Lookup(id string) (*Node, bool) {
	pos, ok := x.byID[id]
	if !ok {
		return nil, false
	}
	return &x.nodes[pos], true
}

// Parent returns the parent of n, if any.
func (x *Index) Parent(n *Node) (*Node, bool) {
	if n.Parent < 0 {
		return nil, false
	}
	return &x.nodes[n.Parent], true
}

// Roots returns the input positions of top-level nodes in rank order.
func (x *Index) Roots() []int {
	return x.roots
}

// Promoted returns the input positions of nodes that declared a parent but
// were moved to the top level (unknown parent or parent cycle).
func (x *Index) Promoted() []int {
	return x.promoted
}

// Build indexes entries. With enabled=false every entry is a top-level node
// numbered by input position. With enabled=true entries are linked by
// ParentID and numbered by tree position; items whose parent cannot be placed
// are handled according to policy.
func Build(entries []Entry, enabled bool, policy OrphanPolicy) (*Index, error) {
	x := &Index{
		nodes: make([]Node, len(entries)),
		byID:  make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("%w: position %d", ErrEmptyID, i)
		}
		if _, dup := x.byID[e.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, e.ID)
		}
		x.byID[e.ID] = i
		x.nodes[i] = Node{ID: e.ID, Pos: i, Parent: -1}
	}

	if !enabled {
		x.flat()
		return x, nil
	}

	if err := x.link(entries, policy); err != nil {
		return nil, err
	}
	if err := x.walk(policy); err != nil {
		return nil, err
	}
	return x, nil
}

// flat numbers every node as a root in input order.
func (x *Index) flat() {
	x.order = make([]int, len(x.nodes))
	x.roots = make([]int, len(x.nodes))
	for i := range x.nodes {
		x.nodes[i].Path = LevelPath{i + 1}
		x.order[i] = i
		x.roots[i] = i
	}
}

// link attaches every entry to its parent in a single pass over the input.
func (x *Index) link(entries []Entry, policy OrphanPolicy) error {
	for i, e := range entries {
		if e.ParentID == "" {
			continue
		}
		p, ok := x.byID[e.ParentID]
		if !ok {
			if policy == RejectOrphans {
				return fmt.Errorf("%w: item %q references %q", ErrUnknownParent, e.ID, e.ParentID)
			}
			x.promoted = append(x.promoted, i)
			continue
		}
		x.nodes[i].Parent = p
		x.nodes[p].Children = append(x.nodes[p].Children, i)
	}
	return nil
}

// walk assigns level paths and render order from the roots down. Nodes left
// unplaced afterwards hang off a parent cycle.
func (x *Index) walk(policy OrphanPolicy) error {
	x.order = make([]int, 0, len(x.nodes))
	placed := make([]bool, len(x.nodes))

	for i := range x.nodes {
		if x.nodes[i].Parent < 0 {
			x.roots = append(x.roots, i)
		}
	}
	for rank, r := range x.roots {
		x.place(r, rank+1, placed)
	}

	for next := 0; len(x.order) < len(x.nodes); next++ {
		if placed[next] {
			continue
		}
		head := x.cycleHead(next)
		if policy == RejectOrphans {
			return fmt.Errorf("%w: item %q", ErrParentCycle, x.nodes[head].ID)
		}
		x.detach(head)
		x.promoted = append(x.promoted, head)
		x.roots = append(x.roots, head)
		x.place(head, len(x.roots), placed)
		next-- // next may still be unplaced if it hangs off another cycle
	}
	return nil
}

// place walks the subtree under root in pre-order without recursion.
func (x *Index) place(root, rank int, placed []bool) {
	x.nodes[root].Path = LevelPath{rank}
	stack := []int{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		placed[n] = true
		x.order = append(x.order, n)

		node := &x.nodes[n]
		for i, c := range node.Children {
			x.nodes[c].Path = node.Path.child(i + 1)
		}
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}
}

// cycleHead follows parent links from start until a node repeats and returns
// the member of that cycle with the lowest input position.
func (x *Index) cycleHead(start int) int {
	seen := make(map[int]bool)
	n := start
	for !seen[n] {
		seen[n] = true
		n = x.nodes[n].Parent
	}
	head := n
	for m := x.nodes[n].Parent; m != n; m = x.nodes[m].Parent {
		if m < head {
			head = m
		}
	}
	return head
}

// detach cuts n from its parent's child list.
func (x *Index) detach(n int) {
	p := x.nodes[n].Parent
	children := x.nodes[p].Children
	for i, c := range children {
		if c == n {
			x.nodes[p].Children = append(children[:i:i], children[i+1:]...)
			break
		}
	}
	x.nodes[n].Parent = -1
}
