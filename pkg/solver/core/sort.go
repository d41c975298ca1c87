package core

import "sort"

// SortByKind orders solvers CPU first, then CUDA, keeping the relative
// order within a kind.
func SortByKind(solvers []Solver) {
	sort.SliceStable(solvers, func(i, j int) bool {
		return solvers[i].Kind() < solvers[j].Kind()
	})
}
