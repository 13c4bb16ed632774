package category

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Kai-project-00/clipgo/internal/domain"
)

// Node is a category with its computed position in the tree.
type Node struct {
	domain.Category

	Children []*Node `json:"children"`

	// Depth is 0 for roots.
	Depth int `json:"depth"`

	// Path is the slash-joined names from the root, e.g. "Work/Research".
	Path string `json:"path"`
}

// BuildTree nests a flat category list. Categories whose parent is missing
// become roots. Children at every level are sorted by order, then name.
func BuildTree(cats []domain.Category) []*Node {
	nodes := make(map[string]*Node, len(cats))
	for _, c := range cats {
		nodes[c.ID] = &Node{Category: c.Clone(), Children: []*Node{}}
	}

	roots := []*Node{}
	for _, c := range cats {
		n := nodes[c.ID]
		if parent, ok := nodes[c.Parent()]; ok && !c.IsRoot() && parent != n {
			parent.Children = append(parent.Children, n)
			continue
		}
		roots = append(roots, n)
	}

	// A parent chain that loops never reaches a root, so visited stops the
	// walk when stored data is corrupt.
	visited := make(map[string]bool, len(cats))
	var place func(n *Node, depth int, prefix string)
	place = func(n *Node, depth int, prefix string) {
		visited[n.ID] = true
		n.Depth = depth
		n.Path = n.Name
		if prefix != "" {
			n.Path = prefix + "/" + n.Name
		}
		sortNodes(n.Children)
		kids := n.Children[:0]
		for _, child := range n.Children {
			if visited[child.ID] {
				continue
			}
			kids = append(kids, child)
			place(child, depth+1, n.Path)
		}
		n.Children = kids
	}
	sortNodes(roots)
	for _, r := range roots {
		place(r, 0, "")
	}
	for _, c := range cats {
		if n := nodes[c.ID]; !visited[n.ID] {
			roots = append(roots, n)
			place(n, 0, "")
		}
	}
	return roots
}

func sortNodes(nodes []*Node) {
	slices.SortStableFunc(nodes, func(a, b *Node) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}

// FlattenTree lists the categories of a tree in pre-order.
func FlattenTree(roots []*Node) []domain.Category {
	var out []domain.Category
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			out = append(out, n.Category.Clone())
			walk(n.Children)
		}
	}
	walk(roots)
	return out
}

// FindNode returns the node with id, or nil.
func FindNode(roots []*Node, id string) *Node {
	for _, n := range roots {
		if n.ID == id {
			return n
		}
		if found := FindNode(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// forest indexes a flat category list for ancestry queries.
type forest struct {
	byID     map[string]domain.Category
	children map[string][]domain.Category
}

func newForest(cats []domain.Category) forest {
	f := forest{
		byID:     make(map[string]domain.Category, len(cats)),
		children: make(map[string][]domain.Category),
	}
	for _, c := range cats {
		f.byID[c.ID] = c
		f.children[c.Parent()] = append(f.children[c.Parent()], c)
	}
	for _, kids := range f.children {
		slices.SortStableFunc(kids, func(a, b domain.Category) int { return cmp.Compare(a.Order, b.Order) })
	}
	return f
}

// path returns the categories from the root down to id. A dangling parent
// reference ends the path early; an unknown id yields nil.
func (f forest) path(id string) []domain.Category {
	var rev []domain.Category
	seen := make(map[string]bool)
	for cur := id; cur != "" && !seen[cur]; {
		c, ok := f.byID[cur]
		if !ok {
			break
		}
		seen[cur] = true
		rev = append(rev, c)
		cur = c.Parent()
	}
	slices.Reverse(rev)
	return rev
}

// depth is the number of categories on the path from the root to id, so a
// root has depth 1 and an unknown id 0.
func (f forest) depth(id string) int {
	return len(f.path(id))
}

// isAncestor reports whether ancestor lies on the parent chain of id.
func (f forest) isAncestor(ancestor, id string) bool {
	for _, c := range f.path(id) {
		if c.ID == ancestor && c.ID != id {
			return true
		}
	}
	return false
}

// height is the number of levels in the subtree rooted at id, 1 for a leaf.
func (f forest) height(id string) int {
	seen := make(map[string]bool)
	var walk func(id string) int
	walk = func(id string) int {
		if seen[id] {
			return 0
		}
		seen[id] = true
		h := 0
		for _, child := range f.children[id] {
			h = max(h, walk(child.ID))
		}
		return h + 1
	}
	return walk(id)
}

// subtree returns id and its descendants in post-order, children before
// their parent.
func (f forest) subtree(id string) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, child := range f.children[id] {
			walk(child.ID)
		}
		out = append(out, id)
	}
	walk(id)
	return out
}

// siblings returns the categories under parentID, sorted by order.
func (f forest) siblings(parentID string) []domain.Category {
	return f.children[parentID]
}

// nextOrder is one past the highest order under parentID, skipping exclude.
func (f forest) nextOrder(parentID, exclude string) int {
	next := 0
	for _, c := range f.children[parentID] {
		if c.ID != exclude {
			next = max(next, c.Order+1)
		}
	}
	return next
}

// nameTaken reports whether a category other than exclude under parentID is
// called name.
func (f forest) nameTaken(parentID, name, exclude string) bool {
	return slices.ContainsFunc(f.children[parentID], func(c domain.Category) bool {
		return c.ID != exclude && c.Name == name
	})
}
