package geo

import (
	"sync"

	"bikeshare-trips/internal/bike"
)

// Filter returns the events whose position lies inside b, in input order.
func Filter(events []bike.Event, b *Boundary) []bike.Event {
	out := make([]bike.Event, 0, len(events))
	for _, e := range events {
		if b.Contains(e.Position) {
			out = append(out, e)
		}
	}
	return out
}

// Workers returns the number of filter partitions to use on a machine with
// cpus logical CPUs. Below minCPUs the goroutine overhead is not worth it and
// 1 (sequential) is returned.
func Workers(cpus, minCPUs int) int {
	if cpus < 1 || cpus < minCPUs {
		return 1
	}
	return cpus
}

// ParallelFilter splits events into workers contiguous partitions, filters
// them concurrently and concatenates the results in partition order, so the
// output is identical to Filter.
func ParallelFilter(events []bike.Event, b *Boundary, workers int) []bike.Event {
	if workers <= 1 || len(events) < workers {
		return Filter(events, b)
	}
	parts := partitions(len(events), workers)
	results := make([][]bike.Event, len(parts))

	var wg sync.WaitGroup
	for i, p := range parts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = Filter(events[p[0]:p[1]], b)
		}()
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]bike.Event, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// partitions returns k [lo, hi) ranges covering n rows; the first n%k ranges
// hold one extra row.
func partitions(n, k int) [][2]int {
	size, extra := n/k, n%k
	out := make([][2]int, 0, k)
	lo := 0
	for i := 0; i < k; i++ {
		hi := lo + size
		if i < extra {
			hi++
		}
		out = append(out, [2]int{lo, hi})
		lo = hi
	}
	return out
}
