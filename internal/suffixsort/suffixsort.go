// Package suffixsort builds a suffix array over a byte source and answers
// longest-common-prefix queries against it.
//
// The construction is Colin Percival's qsufsort (an H-array doubling sort,
// the same algorithm the reference bsdiff.c uses): build a rank array from
// single bytes, then repeatedly double the comparison length until every
// suffix has a unique rank. It's O(n log n) and allocates two int slices the
// size of the source; that's the deal spec.md §9 describes ("the format does
// not depend on the choice, only on the query's contract") and no retrieved
// example reaches for anything fancier (SA-IS, DC3) either, so neither do we.
package suffixsort

// Index is a suffix array over an immutable source buffer, ready for
// longest-common-prefix queries.
type Index struct {
	source []byte
	sa     []int // sa[0] is always len(source); sa[1:] permutes [0, len(source))
}

// Build constructs a suffix array over source. source must not be modified
// while the returned Index is in use.
func Build(source []byte) *Index {
	n := len(source)
	sa := make([]int, n+1)
	rank := make([]int, n+1)
	qsufsort(sa, rank, source)
	return &Index{source: source, sa: sa}
}

// qsufsort fills sa with the suffix array of buf (sa[i] for i in [1, n] holds
// the starting offset of the i-th suffix in lexicographic order, sa[0] == n)
// and leaves rank as scratch; both slices must have length len(buf)+1.
func qsufsort(sa, rank []int, buf []byte) {
	n := len(buf)

	var buckets [256]int
	for i := 0; i < n; i++ {
		buckets[buf[i]]++
	}
	for i := 1; i < 256; i++ {
		buckets[i] += buckets[i-1]
	}
	for i := 255; i > 0; i-- {
		buckets[i] = buckets[i-1]
	}
	buckets[0] = 0

	for i := 0; i < n; i++ {
		buckets[buf[i]]++
		sa[buckets[buf[i]]] = i
	}
	sa[0] = n
	for i := 0; i < n; i++ {
		rank[i] = buckets[buf[i]]
	}
	rank[n] = 0
	for i := 1; i < 256; i++ {
		if buckets[i] == buckets[i-1]+1 {
			sa[buckets[i]] = -1
		}
	}
	sa[0] = -1

	for span := 1; sa[0] != -(n + 1); span += span {
		run := 0
		i := 0
		for i < n+1 {
			if sa[i] < 0 {
				run -= sa[i]
				i -= sa[i]
			} else {
				if run != 0 {
					sa[i-run] = -run
				}
				run = rank[sa[i]] + 1 - i
				split(sa, rank, i, run, span)
				i += run
				run = 0
			}
		}
		if run != 0 {
			sa[i-run] = -run
		}
	}

	for i := 0; i < n+1; i++ {
		sa[rank[i]] = i
	}
}

// split partitions sa[start:start+length] (a group of suffixes currently tied
// on their first `span` bytes of rank) by their rank `span` bytes further in,
// updating rank for newly-distinguished suffixes. It's the doubling step of
// qsufsort: groups that stay tied shrink each round until every suffix is its
// own singleton group.
func split(sa, rank []int, start, length, span int) {
	if length < 16 {
		splitSmall(sa, rank, start, length, span)
		return
	}

	pivot := rank[sa[start+length/2]+span]
	var less, equal int
	for i := start; i < start+length; i++ {
		if rank[sa[i]+span] < pivot {
			less++
		} else if rank[sa[i]+span] == pivot {
			equal++
		}
	}
	less += start
	equal += less

	i, lt, eq := start, 0, 0
	for i < less {
		switch {
		case rank[sa[i]+span] < pivot:
			i++
		case rank[sa[i]+span] == pivot:
			sa[i], sa[less+lt] = sa[less+lt], sa[i]
			lt++
		default:
			sa[i], sa[equal+eq] = sa[equal+eq], sa[i]
			eq++
		}
	}
	for less+lt < equal {
		if rank[sa[less+lt]+span] == pivot {
			lt++
		} else {
			sa[less+lt], sa[equal+eq] = sa[equal+eq], sa[less+lt]
			eq++
		}
	}

	if less > start {
		split(sa, rank, start, less-start, span)
	}
	for i := 0; i < equal-less; i++ {
		rank[sa[less+i]] = equal - 1
	}
	if less == equal-1 {
		sa[less] = -1
	}
	if start+length > equal {
		split(sa, rank, equal, start+length-equal, span)
	}
}

// splitSmall is split's insertion-sort base case, used once a tied group
// shrinks below 16 elements (matching the reference implementation's cutoff).
func splitSmall(sa, rank []int, start, length, span int) {
	for k := start; k < start+length; {
		groupSize := 1
		pivot := rank[sa[k]+span]
		for i := 1; k+i < start+length; i++ {
			if rank[sa[k+i]+span] < pivot {
				pivot = rank[sa[k+i]+span]
				groupSize = 0
			}
			if rank[sa[k+i]+span] == pivot {
				sa[k+groupSize], sa[k+i] = sa[k+i], sa[k+groupSize]
				groupSize++
			}
		}
		for i := 0; i < groupSize; i++ {
			rank[sa[k+i]] = k + groupSize - 1
		}
		if groupSize == 1 {
			sa[k] = -1
		}
		k += groupSize
	}
}

// Search returns the source offset and length of the longest common prefix
// between pattern and any suffix of the indexed source, per spec.md §4.1: a
// binary search over the suffix array, narrowing the inclusive index range
// [lo, hi] by lexicographic comparison. idx.sa[1:len(idx.source)+1] holds
// the len(idx.source) real suffixes (idx.sa[0] is a sentinel, the imaginary
// empty suffix), so the search range spans indices 1..n, not 0..n-1.
//
// p0 seeds the initial lower bound of the search interval rather than being
// ignored: callers that already know the match can't start before some
// source suffix rank may pass it to skip part of the array. The planner
// always calls with p0 = 0 (the reference algorithm never narrows the
// interval up front), but direct callers can exploit it.
func (idx *Index) Search(pattern []byte, p0 int) (pos, length int) {
	n := len(idx.source)
	if len(pattern) == 0 || n == 0 {
		return 0, 0
	}

	lo := p0
	if lo < 1 {
		lo = 1
	}
	hi := n
	if lo > hi {
		lo = 1
	}

	for hi-lo >= 2 {
		mid := lo + (hi-lo)/2
		suffix := idx.source[idx.sa[mid]:]
		l := commonPrefixLen(suffix, pattern)

		cmpLen := len(suffix)
		if len(pattern) < cmpLen {
			cmpLen = len(pattern)
		}
		if l < cmpLen && suffix[l] < pattern[l] {
			lo = mid
		} else {
			hi = mid
		}
	}

	loLen := commonPrefixLen(idx.source[idx.sa[lo]:], pattern)
	hiLen := commonPrefixLen(idx.source[idx.sa[hi]:], pattern)
	if loLen > hiLen {
		return idx.sa[lo], loLen
	}
	return idx.sa[hi], hiLen
}

func commonPrefixLen(a, b []byte) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	i := 0
	for i < max && a[i] == b[i] {
		i++
	}
	return i
}

// Len reports the length of the indexed source.
func (idx *Index) Len() int { return len(idx.source) }

// Source returns the indexed source buffer. Callers must not modify it.
func (idx *Index) Source() []byte { return idx.source }
