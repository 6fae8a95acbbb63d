package scheduler

import (
	"math"
	"sort"
)

// SeparateEvenly deals targets round-robin between n telescopes.
func SeparateEvenly(targets []Target, n int) [][]Target {
	out := make([][]Target, n)
	for i, target := range targets {
		out[i%n] = append(out[i%n], target)
	}
	return out
}

type vec3 [3]float64

func unitVector(t Target) vec3 {
	ra := t.Ra * math.Pi / 180
	dec := t.Dec * math.Pi / 180
	return vec3{
		math.Cos(dec) * math.Cos(ra),
		math.Cos(dec) * math.Sin(ra),
		math.Sin(dec),
	}
}

func dist2(a, b vec3) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return dx*dx + dy*dy + dz*dz
}

// SeparateClusters groups targets into n equal sized clusters by sky
// position, so each telescope slews around one patch of sky instead of
// chasing targets all over the meridian. Balanced k-means: ordinary
// k-means for the centers, then a capacity-limited greedy assignment.
func SeparateClusters(targets []Target, n int) [][]Target {
	if n <= 1 || len(targets) <= n {
		return SeparateEvenly(targets, n)
	}

	points := make([]vec3, len(targets))
	for i, target := range targets {
		points[i] = unitVector(target)
	}

	// deterministic init: evenly spaced points
	centers := make([]vec3, n)
	for i := range centers {
		centers[i] = points[i*len(points)/n]
	}

	assign := make([]int, len(points))
	for iter := 0; iter < 25; iter++ {
		changed := false
		for i, p := range points {
			best, bestDist := 0, math.Inf(1)
			for c, center := range centers {
				if d := dist2(p, center); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		// recompute centers
		sums := make([]vec3, n)
		counts := make([]int, n)
		for i, p := range points {
			c := assign[i]
			sums[c][0] += p[0]
			sums[c][1] += p[1]
			sums[c][2] += p[2]
			counts[c]++
		}
		for c := range centers {
			if counts[c] > 0 {
				centers[c] = vec3{sums[c][0] / float64(counts[c]), sums[c][1] / float64(counts[c]), sums[c][2] / float64(counts[c])}
			}
		}
		if !changed {
			break
		}
	}

	// balance: each cluster takes at most ceil(len/n) targets, points
	// claim their nearest center in order of affinity
	capacity := (len(points) + n - 1) / n
	type pair struct {
		point, center int
		dist          float64
	}
	pairs := make([]pair, 0, len(points)*n)
	for i, p := range points {
		for c, center := range centers {
			pairs = append(pairs, pair{i, c, dist2(p, center)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].dist < pairs[j].dist })

	assigned := make([]int, len(points))
	for i := range assigned {
		assigned[i] = -1
	}
	counts := make([]int, n)
	for _, pr := range pairs {
		if assigned[pr.point] != -1 || counts[pr.center] >= capacity {
			continue
		}
		assigned[pr.point] = pr.center
		counts[pr.center]++
	}

	out := make([][]Target, n)
	for i, target := range targets {
		c := assigned[i]
		out[c] = append(out[c], target)
	}
	return out
}
