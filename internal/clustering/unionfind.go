package clustering

import "sort"

// arena indexes wallet addresses in sorted order so that cluster output does
// not depend on map iteration.
type arena struct {
	addrs  []string
	index  map[string]int
	parent []int
	size   []int
}

func newArena(addrs []string) *arena {
	sorted := append([]string(nil), addrs...)
	sort.Strings(sorted)

	a := &arena{
		addrs:  sorted,
		index:  make(map[string]int, len(sorted)),
		parent: make([]int, len(sorted)),
		size:   make([]int, len(sorted)),
	}
	for i, addr := range sorted {
		a.index[addr] = i
		a.parent[i] = i
		a.size[i] = 1
	}
	return a
}

// find returns the root of i with path compression.
func (a *arena) find(i int) int {
	root := i
	for a.parent[root] != root {
		root = a.parent[root]
	}
	for a.parent[i] != root {
		next := a.parent[i]
		a.parent[i] = root
		i = next
	}
	return root
}

// union merges the sets of i and j by size. Ties keep the smaller index as root.
func (a *arena) union(i, j int) {
	ri, rj := a.find(i), a.find(j)
	if ri == rj {
		return
	}
	if a.size[ri] < a.size[rj] || (a.size[ri] == a.size[rj] && rj < ri) {
		ri, rj = rj, ri
	}
	a.parent[rj] = ri
	a.size[ri] += a.size[rj]
}

// unionAddr merges two addresses. Unknown addresses are ignored.
func (a *arena) unionAddr(x, y string) {
	i, ok := a.index[x]
	if !ok {
		return
	}
	j, ok := a.index[y]
	if !ok {
		return
	}
	a.union(i, j)
}

// groups returns the sets with at least minSize members, each sorted, ordered
// by their first member.
func (a *arena) groups(minSize int) [][]string {
	byRoot := make(map[int][]string)
	for i, addr := range a.addrs {
		r := a.find(i)
		byRoot[r] = append(byRoot[r], addr)
	}

	var out [][]string
	for _, members := range byRoot {
		if len(members) >= minSize {
			out = append(out, members)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
