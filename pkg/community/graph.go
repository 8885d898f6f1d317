package community

import (
	"sort"

	"github.com/cuemby/graphrag/pkg/types"
)

// buildUndirected sums parallel and opposite-direction edge weights into a
// symmetric adjacency map, the "snapshot the graph index as undirected"
// step of §4.8.
func buildUndirected(edges []types.Edge) map[uint64]map[uint64]float64 {
	g := make(map[uint64]map[uint64]float64)
	add := func(a, b uint64, w float64) {
		if g[a] == nil {
			g[a] = make(map[uint64]float64)
		}
		g[a][b] += w
	}
	for _, e := range edges {
		w := float64(e.Weight)
		if e.Source == e.Target {
			add(e.Source, e.Source, w)
			continue
		}
		add(e.Source, e.Target, w)
		add(e.Target, e.Source, w)
	}
	return g
}

// localMove runs a Louvain/Leiden-style greedy local-move pass: each node
// migrates to the neighboring community with maximum modularity gain,
// iterating to a fixed point or 20 sweeps.
func localMove(graph map[uint64]map[uint64]float64, nodes []uint64) map[uint64]uint64 {
	label := make(map[uint64]uint64, len(nodes))
	degree := make(map[uint64]float64, len(nodes))
	for _, n := range nodes {
		label[n] = n
		var d float64
		for _, w := range graph[n] {
			d += w
		}
		degree[n] = d
	}

	var m float64
	for _, d := range degree {
		m += d
	}
	m /= 2
	if m == 0 {
		return label
	}

	sigmaTot := make(map[uint64]float64, len(nodes))
	for _, n := range nodes {
		sigmaTot[label[n]] += degree[n]
	}

	for sweep := 0; sweep < 20; sweep++ {
		moved := false
		for _, n := range nodes {
			current := label[n]
			sigmaTot[current] -= degree[n]

			gains := make(map[uint64]float64)
			for neigh, w := range graph[n] {
				if neigh == n {
					continue
				}
				gains[label[neigh]] += w
			}

			best := current
			bestGain := 0.0
			for candidate, kiin := range gains {
				gain := kiin - (degree[n]*sigmaTot[candidate])/(2*m)
				if gain > bestGain || (gain == bestGain && candidate < best) {
					if gain > 0 {
						bestGain = gain
						best = candidate
					}
				}
			}
			sigmaTot[best] += degree[n]
			if best != current {
				label[n] = best
				moved = true
			}
		}
		if !moved {
			break
		}
	}
	return label
}

type group struct {
	id      uint32
	members []uint64
}

// refineIntoComponents splits each raw local-move community into its
// weakly connected components within the induced subgraph, then assigns
// final, deterministic community ids ordered by each component's minimum
// member id.
func refineIntoComponents(graph map[uint64]map[uint64]float64, partition map[uint64]uint64) []group {
	byLabel := make(map[uint64][]uint64)
	for node, label := range partition {
		byLabel[label] = append(byLabel[label], node)
	}

	var components [][]uint64
	for _, members := range byLabel {
		memberSet := make(map[uint64]bool, len(members))
		for _, m := range members {
			memberSet[m] = true
		}
		visited := make(map[uint64]bool, len(members))
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		for _, start := range members {
			if visited[start] {
				continue
			}
			var comp []uint64
			queue := []uint64{start}
			visited[start] = true
			for len(queue) > 0 {
				n := queue[0]
				queue = queue[1:]
				comp = append(comp, n)
				neighbors := make([]uint64, 0, len(graph[n]))
				for neigh := range graph[n] {
					neighbors = append(neighbors, neigh)
				}
				sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
				for _, neigh := range neighbors {
					if memberSet[neigh] && !visited[neigh] {
						visited[neigh] = true
						queue = append(queue, neigh)
					}
				}
			}
			sort.Slice(comp, func(i, j int) bool { return comp[i] < comp[j] })
			components = append(components, comp)
		}
	}

	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })
	groups := make([]group, len(components))
	for i, c := range components {
		groups[i] = group{id: uint32(i), members: c}
	}
	return groups
}

// buildSuperGraph collapses communities into super-nodes for the next
// hierarchy level, summing inter-community edge weights.
func buildSuperGraph(graph map[uint64]map[uint64]float64, communities []group, members map[uint64][]uint64) (map[uint64]map[uint64]float64, map[uint64][]uint64) {
	nodeToComm := make(map[uint64]uint64)
	for _, c := range communities {
		for _, n := range c.members {
			nodeToComm[n] = uint64(c.id)
		}
	}

	newGraph := make(map[uint64]map[uint64]float64)
	for u, neighbors := range graph {
		cu := nodeToComm[u]
		for v, w := range neighbors {
			cv := nodeToComm[v]
			if newGraph[cu] == nil {
				newGraph[cu] = make(map[uint64]float64)
			}
			newGraph[cu][cv] += w
		}
	}

	newMembers := make(map[uint64][]uint64, len(communities))
	for _, c := range communities {
		newMembers[uint64(c.id)] = flatten(c.members, members)
	}
	return newGraph, newMembers
}

// pageRank computes weighted PageRank over the directed graph described by
// edges, with damping and dangling mass redistributed uniformly.
func pageRank(nodes []uint64, edges []types.Edge, iterations int, damping float64) map[uint64]float64 {
	n := float64(len(nodes))
	pr := make(map[uint64]float64, len(nodes))
	for _, id := range nodes {
		pr[id] = 1 / n
	}

	type incomingEdge struct {
		src    uint64
		weight float64
	}
	outWeight := make(map[uint64]float64)
	incoming := make(map[uint64][]incomingEdge)
	nodeSet := make(map[uint64]bool, len(nodes))
	for _, id := range nodes {
		nodeSet[id] = true
	}
	for _, e := range edges {
		if !nodeSet[e.Source] || !nodeSet[e.Target] {
			continue
		}
		w := float64(e.Weight)
		outWeight[e.Source] += w
		incoming[e.Target] = append(incoming[e.Target], incomingEdge{src: e.Source, weight: w})
	}

	for iter := 0; iter < iterations; iter++ {
		var dangling float64
		for _, id := range nodes {
			if outWeight[id] == 0 {
				dangling += pr[id]
			}
		}
		next := make(map[uint64]float64, len(nodes))
		for _, v := range nodes {
			var sum float64
			for _, in := range incoming[v] {
				ow := outWeight[in.src]
				if ow == 0 {
					continue
				}
				sum += pr[in.src] * in.weight / ow
			}
			next[v] = (1-damping)/n + damping*(dangling/n+sum)
		}
		pr = next
	}
	return pr
}
