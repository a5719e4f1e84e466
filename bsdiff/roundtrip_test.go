package bsdiff

import (
	"bytes"
	"math/rand"
	"testing"
)

// roundtripCases covers the end-to-end table from spec.md §8 (E1-E4 and E6;
// E5 is checked at the planner level by TestPlanSparseSingleByteChange) plus
// a handful of edge shapes not already exercised at the planner level.
func roundtripCases() []struct {
	name           string
	source, target []byte
} {
	largeRandom := func(seed int64, size int) []byte {
		rng := rand.New(rand.NewSource(seed))
		buf := make([]byte, size)
		rng.Read(buf)
		return buf
	}

	swapped := largeRandom(1, 1<<20)
	swappedTarget := append([]byte(nil), swapped...)
	a, b := swappedTarget[0:4096], swappedTarget[4096:8192]
	tmp := append([]byte(nil), a...)
	copy(a, b)
	copy(b, tmp)

	return []struct {
		name           string
		source, target []byte
	}{
		{"identical", []byte("hello world"), []byte("hello world")},               // E1
		{"single substitution", []byte("hello world"), []byte("hallo world")},     // E2
		{"prefix insertion", []byte("abcdefgh"), []byte("XYZabcdefgh")},           // E3
		{"interior insertion", []byte("abcdefghijkl"), []byte("abcdefXYZghijkl")}, // E4
		{"empty source", nil, []byte("freshly created content")},
		{"empty target", []byte("will be discarded"), nil},
		{"both empty", nil, nil},
		{"swapped regions", swapped, swappedTarget}, // E6
		{"unrelated buffers", []byte("completely different"), []byte("also nothing alike, at all")},
		{"repeated pattern", bytes.Repeat([]byte("ab"), 500), bytes.Repeat([]byte("abc"), 400)},
	}
}

// TestRoundTrip is testable property 1.
func TestRoundTrip(t *testing.T) {
	for _, tc := range roundtripCases() {
		t.Run(tc.name, func(t *testing.T) {
			patch, err := DefaultConfig().Bytes(tc.source, tc.target)
			if err != nil {
				t.Fatalf("Bytes: %v", err)
			}
			got, err := Bytes(tc.source, patch)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if !bytes.Equal(got, tc.target) {
				t.Fatalf("roundtrip mismatch: got %d bytes, want %d bytes", len(got), len(tc.target))
			}
		})
	}
}

// TestApplyDeterministic is testable property 3: applying the same patch
// twice against the same source yields identical output.
func TestApplyDeterministic(t *testing.T) {
	source := []byte("the quick brown fox jumps over the lazy dog")
	target := []byte("the slow brown ox jumped under the lazy dogs")

	patch, err := DefaultConfig().Bytes(source, target)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	first, err := Bytes(source, patch)
	if err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	second, err := Bytes(source, patch)
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("two Apply runs over the same patch produced different output")
	}
}

// TestApplyFromForwardOnlyReader exercises NewPatcher's buffered fallback
// path by wrapping the patch in a reader that refuses type assertion to
// io.ReaderAt (bytes.Reader already satisfies it, so this checks the code
// path actually used for network/stdin-style sources).
func TestApplyFromForwardOnlyReader(t *testing.T) {
	source := []byte("some reasonably long source text for patching purposes")
	target := []byte("some reasonably long TARGET text for patching purposes, extended")

	patch, err := DefaultConfig().Bytes(source, target)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	p, err := NewPatcher(source, onlyReader{bytes.NewReader(patch)})
	if err != nil {
		t.Fatalf("NewPatcher: %v", err)
	}
	var out bytes.Buffer
	if err := p.Apply(&out); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(out.Bytes(), target) {
		t.Fatalf("roundtrip through forward-only reader mismatch")
	}
}

// onlyReader hides any other interface the wrapped reader implements.
type onlyReader struct {
	r *bytes.Reader
}

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

// TestHintTargetSize confirms the header's declared size is surfaced before
// Apply runs.
func TestHintTargetSize(t *testing.T) {
	source := []byte("source material")
	target := []byte("rather different material, a bit longer than before")

	patch, err := DefaultConfig().Bytes(source, target)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	p, err := NewPatcher(source, bytes.NewReader(patch))
	if err != nil {
		t.Fatalf("NewPatcher: %v", err)
	}
	if got := p.HintTargetSize(); got != int64(len(target)) {
		t.Fatalf("HintTargetSize = %d, want %d", got, len(target))
	}
}
