package rules

import (
	"slices"
	"sort"
	"strings"
)

// MaxClosureDepth bounds how many child levels a parent closure follows.
const MaxClosureDepth = 100

// closureArena holds one day's parent/child graph with every item mapped to
// a contiguous index, so traversal needs no pointers and a flat visited set.
type closureArena struct {
	index    map[int64]int
	ids      []int64
	children [][]int
	visited  []bool
}

func newClosureArena(links map[int64][]int64) *closureArena {
	a := &closureArena{index: make(map[int64]int)}

	parents := make([]int64, 0, len(links))
	for parent := range links {
		parents = append(parents, parent)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })

	for _, parent := range parents {
		p := a.slot(parent)
		for _, child := range links[parent] {
			c := a.slot(child)
			a.children[p] = append(a.children[p], c)
		}
	}
	a.visited = make([]bool, len(a.ids))
	return a
}

func (a *closureArena) slot(id int64) int {
	if i, ok := a.index[id]; ok {
		return i
	}
	i := len(a.ids)
	a.index[id] = i
	a.ids = append(a.ids, id)
	a.children = append(a.children, nil)
	return i
}

// reach returns root and every descendant within maxDepth levels, breadth
// first. Cycles are cut by the visited set.
func (a *closureArena) reach(root int64, maxDepth int) []int64 {
	start, ok := a.index[root]
	if !ok {
		return []int64{root}
	}

	clear(a.visited)
	a.visited[start] = true
	out := []int64{root}
	frontier := []int{start}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []int
		for _, node := range frontier {
			for _, child := range a.children[node] {
				if a.visited[child] {
					continue
				}
				a.visited[child] = true
				out = append(out, a.ids[child])
				next = append(next, child)
			}
		}
		frontier = next
	}
	return out
}

// closureHit is the closure result for one item: every resolved parent
// title in discovery order, and the order of the first rule that reached it.
type closureHit struct {
	titles []string
	order  int
}

func (h *closureHit) title() string {
	return strings.Join(h.titles, " ")
}

// evaluateClosure runs every ByParentClosure rule for one day. Roots are
// the items tagged with the rule's marker; they belong to their own set.
func (p *Program) evaluateClosure(day DayData) map[int64]*closureHit {
	if len(p.closure) == 0 {
		return nil
	}

	arena := newClosureArena(day.Children)
	hits := make(map[int64]*closureHit)

	for _, rule := range p.closure {
		marker := rule.IDs[0]
		var roots []int64
		for item, edges := range day.Edges {
			if edges.Has(marker) {
				roots = append(roots, item)
			}
		}
		slices.Sort(roots)

		for _, root := range roots {
			title := rule.Title
			if title == "" {
				title = day.Titles[root]
			}
			if title == "" {
				continue
			}
			for _, id := range arena.reach(root, MaxClosureDepth) {
				hit, ok := hits[id]
				if !ok {
					hit = &closureHit{order: rule.Order}
					hits[id] = hit
				}
				if !slices.Contains(hit.titles, title) {
					hit.titles = append(hit.titles, title)
				}
			}
		}
	}
	return hits
}
