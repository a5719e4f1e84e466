package bsdiff

import "github.com/hucsmn/qbsdiff/internal/suffixsort"

// plan walks target left to right against the suffix index built over
// source, and returns the control instructions needed to reconstruct
// target plus the diff bytes (additive corrections for copied regions) and
// extra bytes (literal insertions) those instructions consume, per
// spec.md §4.2.
//
// This is a structural translation of the reference bsdiff scan loop: the
// same oldscore/lastoffset bookkeeping that decides when an exact match is
// worth abandoning the current region for, the same forward/backward
// match-extension maximizing 2*matches-length, and the same overlap split
// between a new match's backward extension and the previous match's
// forward extension. The one deliberate departure is the acceptance rule,
// which spec.md states as "len == oldscore+threshold, or len >
// oldscore+threshold" (equivalently len >= oldscore+threshold) rather than
// the reference's "(len == oldscore && len != 0) || len > oldscore+8";
// threshold generalizes the reference's hardcoded 8.
func plan(idx *suffixsort.Index, source, target []byte, threshold uint64) ([]instruction, []byte, []byte) {
	sourceLen := len(source)
	targetLen := len(target)

	var instrs []instruction
	diffBytes := make([]byte, 0, targetLen)
	extraBytes := make([]byte, 0, targetLen)

	if targetLen == 0 {
		return instrs, diffBytes, extraBytes
	}

	var scan, length, lastScan, lastPos, lastOffset int
	var scanned, pos int

	for scan < targetLen {
		oldScore := 0
		scanned = scan + length

		for scan = scanned; scan < targetLen; scan++ {
			pos, length = idx.Search(target[scan:], 0)

			for scanned < scan+length {
				if scanned+lastOffset < sourceLen && source[scanned+lastOffset] == target[scanned] {
					oldScore++
				}
				scanned++
			}

			if length >= oldScore+int(threshold) {
				break
			}

			if scan+lastOffset < sourceLen && source[scan+lastOffset] == target[scan] {
				oldScore--
			}
		}

		if length == oldScore && scan != targetLen {
			// Can't actually happen: the inner loop only exits early
			// via the length >= oldScore+threshold break, and runs to
			// scan == targetLen otherwise, and with threshold >= 1 that
			// break implies length > oldScore. Kept because it's the
			// direct translation of the reference algorithm's
			// equivalent guard.
			continue
		}

		// Forward-extend the previous match: find the length l that
		// maximizes 2*matches(lastScan..lastScan+l, lastPos..lastPos+l) - l.
		var s, sf, lenf int
		for i := 0; lastScan+i < scan && lastPos+i < sourceLen; {
			if source[lastPos+i] == target[lastScan+i] {
				s++
			}
			i++
			if s*2-i > sf*2-lenf {
				sf = s
				lenf = i
			}
		}

		// Backward-extend the new match symmetrically, bounded by the
		// gap since the previous commit.
		lenb := 0
		if scan < targetLen {
			s, sb := 0, 0
			for i := 1; scan >= lastScan+i && pos >= i; i++ {
				if source[pos-i] == target[scan-i] {
					s++
				}
				if s*2-i > sb*2-lenb {
					sb = s
					lenb = i
				}
			}
		}

		// If the two extensions overlap (in both source and target),
		// find the split point maximizing matches on each side.
		if lastScan+lenf > scan-lenb {
			overlap := (lastScan + lenf) - (scan - lenb)
			s, bestScore, splitAt := 0, 0, 0
			for i := 0; i < overlap; i++ {
				if target[lastScan+lenf-overlap+i] == source[lastPos+lenf-overlap+i] {
					s++
				}
				if target[scan-lenb+i] == source[pos-lenb+i] {
					s--
				}
				if s > bestScore {
					bestScore = s
					splitAt = i + 1
				}
			}
			lenf += splitAt - overlap
			lenb -= splitAt
		}

		for i := 0; i < lenf; i++ {
			diffBytes = append(diffBytes, target[lastScan+i]-source[lastPos+i])
		}
		extraLen := (scan - lenb) - (lastScan + lenf)
		for i := 0; i < extraLen; i++ {
			extraBytes = append(extraBytes, target[lastScan+lenf+i])
		}

		seek := int64((pos - lenb) - (lastPos + lenf))
		if lenf != 0 || extraLen != 0 || seek != 0 {
			instrs = append(instrs, instruction{
				addLen:   uint64(lenf),
				extraLen: uint64(extraLen),
				seek:     seek,
			})
		}

		lastScan = scan - lenb
		lastPos = pos - lenb
		lastOffset = pos - scan
	}

	return instrs, diffBytes, extraBytes
}
