package cluster

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Nimsara-Jayarathna/Sustain-Insight---back-end/internal/similarity"
)

type PrimaryRule string

const (
	PrimaryLowestID          PrimaryRule = "lowest-id"
	PrimaryEarliestPublished PrimaryRule = "earliest-published"
)

func ParsePrimaryRule(raw string) (PrimaryRule, error) {
	switch PrimaryRule(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PrimaryLowestID:
		return PrimaryLowestID, nil
	case PrimaryEarliestPublished:
		return PrimaryEarliestPublished, nil
	default:
		return "", fmt.Errorf("unknown primary rule %q", raw)
	}
}

// Cluster is one connected component of the similarity graph.
type Cluster struct {
	ID        string
	PrimaryID int64
	MemberIDs []int64
	Edges     []similarity.Edge
}

type Options struct {
	Rule PrimaryRule
	// PublishedAt feeds PrimaryEarliestPublished. Missing ids sort last.
	PublishedAt map[int64]time.Time
}

// Build groups edges into clusters. Members are sorted ascending, clusters
// are ordered by their smallest member and numbered cluster_1..N. Ids that
// appear in no edge never appear in the output.
func Build(edges []similarity.Edge, opts Options) []Cluster {
	if len(edges) == 0 {
		return nil
	}

	adjacency := make(map[int64][]int64)
	for _, edge := range edges {
		if edge.A == edge.B {
			continue
		}
		adjacency[edge.A] = append(adjacency[edge.A], edge.B)
		adjacency[edge.B] = append(adjacency[edge.B], edge.A)
	}

	nodes := make([]int64, 0, len(adjacency))
	for id := range adjacency {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	componentOf := make(map[int64]int, len(nodes))
	var components [][]int64
	for _, start := range nodes {
		if _, seen := componentOf[start]; seen {
			continue
		}
		index := len(components)
		members := collectComponent(start, adjacency, componentOf, index)
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		components = append(components, members)
	}

	internal := make([][]similarity.Edge, len(components))
	for _, edge := range edges {
		if edge.A == edge.B {
			continue
		}
		index := componentOf[edge.A]
		internal[index] = append(internal[index], edge)
	}

	clusters := make([]Cluster, 0, len(components))
	for index, members := range components {
		if len(members) < 2 {
			continue
		}
		clusterEdges := internal[index]
		sort.Slice(clusterEdges, func(i, j int) bool {
			if clusterEdges[i].A != clusterEdges[j].A {
				return clusterEdges[i].A < clusterEdges[j].A
			}
			return clusterEdges[i].B < clusterEdges[j].B
		})
		clusters = append(clusters, Cluster{
			ID:        fmt.Sprintf("cluster_%d", len(clusters)+1),
			PrimaryID: selectPrimary(members, opts),
			MemberIDs: members,
			Edges:     clusterEdges,
		})
	}
	return clusters
}

// collectComponent walks the component of start with an explicit stack.
func collectComponent(start int64, adjacency map[int64][]int64, componentOf map[int64]int, index int) []int64 {
	stack := []int64{start}
	componentOf[start] = index
	var members []int64

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		members = append(members, node)

		for _, next := range adjacency[node] {
			if _, seen := componentOf[next]; seen {
				continue
			}
			componentOf[next] = index
			stack = append(stack, next)
		}
	}
	return members
}

// selectPrimary expects members sorted ascending.
func selectPrimary(members []int64, opts Options) int64 {
	if opts.Rule != PrimaryEarliestPublished || len(opts.PublishedAt) == 0 {
		return members[0]
	}

	best := members[0]
	bestAt, bestKnown := opts.PublishedAt[best]
	for _, id := range members[1:] {
		at, known := opts.PublishedAt[id]
		switch {
		case !known:
			continue
		case !bestKnown || at.Before(bestAt):
			best, bestAt, bestKnown = id, at, true
		}
	}
	return best
}
