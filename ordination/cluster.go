package ordination

import (
	"math"

	"github.com/reefgenomics/symbiomisc"
)

// Merge joins two clusters. Indices below the number of leaves are samples;
// index n+k is the cluster formed by the k-th merge.
type Merge struct {
	A, B   int
	Height float64
	Size   int
}

type Dendrogram struct {
	Labels []string
	Merges []Merge

	// Leaf indices in the left-to-right order of the tree
	Order []int
}

func (dg Dendrogram) OrderedLabels() []string {
	out := make([]string, len(dg.Order))
	for k, i := range dg.Order {
		out[k] = dg.Labels[i]
	}
	return out
}

// Cut assigns each leaf to one of k clusters by undoing the last k-1 merges.
// Cluster numbers follow the leaf order.
func (dg Dendrogram) Cut(k int) []int {
	n := len(dg.Labels)
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	parent := make([]int, n+len(dg.Merges))
	for i := range parent {
		parent[i] = i
	}
	for m := 0; m < n-k; m++ {
		parent[dg.Merges[m].A] = n + m
		parent[dg.Merges[m].B] = n + m
	}
	root := func(i int) int {
		for parent[i] != i {
			i = parent[i]
		}
		return i
	}

	out := make([]int, n)
	number := make(map[int]int)
	for _, leaf := range dg.Order {
		r := root(leaf)
		if _, ok := number[r]; !ok {
			number[r] = len(number) + 1
		}
		out[leaf] = number[r]
	}

	return out
}

// Cluster builds a complete-linkage hierarchical clustering of d. At each step
// the closest pair of clusters is merged; ties go to the pair found first
// when scanning the active clusters in order of creation.
func Cluster(d Dissimilarity) (Dendrogram, error) {
	n := d.N()
	if n == 0 {
		return Dendrogram{}, &symbiomisc.EmptyDatasetError{Analysis: "clustering", Have: 0, Need: 1}
	}

	// Linkage distances between active clusters, indexed by cluster id
	size := 2*n - 1
	link := make([]float64, size*size)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			link[i*size+j] = d.At(i, j)
		}
	}

	active := make([]int, n)
	members := make([]int, size)
	children := make([][2]int, size)
	for i := range active {
		active[i] = i
		members[i] = 1
		children[i] = [2]int{-1, -1}
	}

	out := Dendrogram{
		Labels: append([]string(nil), d.Labels...),
		Merges: make([]Merge, 0, n-1),
	}

	for next := n; len(active) > 1; next++ {
		bestA, bestB := -1, -1
		best := math.Inf(1)
		for x := 0; x < len(active); x++ {
			for y := x + 1; y < len(active); y++ {
				if v := link[active[x]*size+active[y]]; v < best {
					best, bestA, bestB = v, x, y
				}
			}
		}

		a, b := active[bestA], active[bestB]
		members[next] = members[a] + members[b]
		children[next] = [2]int{a, b}
		out.Merges = append(out.Merges, Merge{A: a, B: b, Height: best, Size: members[next]})

		remaining := make([]int, 0, len(active)-1)
		for _, c := range active {
			if c == a || c == b {
				continue
			}
			v := math.Max(link[a*size+c], link[b*size+c])
			link[next*size+c] = v
			link[c*size+next] = v
			remaining = append(remaining, c)
		}
		active = append(remaining, next)
	}

	var walk func(c int)
	walk = func(c int) {
		if c < n {
			out.Order = append(out.Order, c)
			return
		}
		walk(children[c][0])
		walk(children[c][1])
	}
	walk(size - 1)

	return out, nil
}
