package bsdiff

import (
	"bytes"
	"testing"

	"github.com/hucsmn/qbsdiff/internal/suffixsort"
)

func runPlan(source, target []byte) ([]instruction, []byte, []byte) {
	idx := suffixsort.Build(source)
	return plan(idx, source, target, DefaultConfig().SmallMatchThreshold)
}

// TestPlanSelfDiffIsSingleInstruction is testable property 2: diffing a
// buffer against itself should produce one instruction covering the whole
// buffer, with every diff byte zero and no extra bytes. Every exact match
// the scan loop finds lies on the diagonal the current region already
// covers, so oldScore keeps pace with the match length and no new match is
// ever accepted; the one commit made when scan reaches the end of target
// covers the whole buffer.
func TestPlanSelfDiffIsSingleInstruction(t *testing.T) {
	source := []byte("hello world")
	instrs, diffBytes, extraBytes := runPlan(source, source)

	if len(instrs) != 1 {
		t.Fatalf("got %d instructions, want 1: %+v", len(instrs), instrs)
	}
	in := instrs[0]
	if in.addLen != uint64(len(source)) {
		t.Errorf("addLen = %d, want %d", in.addLen, len(source))
	}
	if in.extraLen != 0 {
		t.Errorf("extraLen = %d, want 0", in.extraLen)
	}
	for i, b := range diffBytes {
		if b != 0 {
			t.Errorf("diffBytes[%d] = %d, want 0", i, b)
		}
	}
	if len(extraBytes) != 0 {
		t.Errorf("extraBytes = %v, want empty", extraBytes)
	}
}

// TestPlanEmptySource is testable property 8.
func TestPlanEmptySource(t *testing.T) {
	target := []byte("anything at all")
	instrs, diffBytes, extraBytes := runPlan(nil, target)

	if len(instrs) != 1 {
		t.Fatalf("got %d instructions, want 1: %+v", len(instrs), instrs)
	}
	in := instrs[0]
	if in.addLen != 0 || in.extraLen != uint64(len(target)) || in.seek != 0 {
		t.Errorf("instruction = %+v, want {addLen:0 extraLen:%d seek:0}", in, len(target))
	}
	if len(diffBytes) != 0 {
		t.Errorf("diffBytes = %v, want empty", diffBytes)
	}
	if !bytes.Equal(extraBytes, target) {
		t.Errorf("extraBytes = %q, want %q", extraBytes, target)
	}
}

// TestPlanEmptyTarget covers the degenerate case symmetric to property 8:
// nothing to produce means no instructions at all.
func TestPlanEmptyTarget(t *testing.T) {
	instrs, diffBytes, extraBytes := runPlan([]byte("some source"), nil)
	if len(instrs) != 0 || len(diffBytes) != 0 || len(extraBytes) != 0 {
		t.Fatalf("empty target produced instrs=%+v diff=%v extra=%v, want all empty", instrs, diffBytes, extraBytes)
	}
}

// TestPlanSingleByteSubstitution is the E2 end-to-end scenario: "hello
// world" -> "hallo world" differ by one byte. The forward-extension score
// (2*matches - length) stays positive across the whole 11-byte region
// despite the single mismatch, so the whole thing collapses into one
// instruction whose diff stream carries the single nonzero correction byte.
//
// Note: the literal seek value here is -1, not the 0 a fully "clean"
// single-instruction diff would suggest. That -1 falls out of the
// reference algorithm's own bookkeeping: when the scan loop's for-condition
// runs it to the end of target without a fresh break, the commit step
// reuses the match position pos found by the last executed search (for the
// single trailing byte "d", at source offset 10) rather than one aligned
// with the final scan offset. It's harmless here since this is the last
// instruction and src_cursor's final value is never used again, but it
// does mean this implementation's literal seek for this case doesn't match
// a hand-idealized "single clean instruction" shape.
func TestPlanSingleByteSubstitution(t *testing.T) {
	source := []byte("hello world")
	target := []byte("hallo world")

	instrs, diffBytes, extraBytes := runPlan(source, target)
	if len(instrs) != 1 {
		t.Fatalf("got %d instructions, want 1: %+v", len(instrs), instrs)
	}
	in := instrs[0]
	if in.addLen != uint64(len(source)) {
		t.Errorf("addLen = %d, want %d", in.addLen, len(source))
	}
	if in.extraLen != 0 {
		t.Errorf("extraLen = %d, want 0", in.extraLen)
	}
	if len(extraBytes) != 0 {
		t.Errorf("extraBytes = %v, want empty", extraBytes)
	}

	want := make([]byte, len(source))
	want[1] = byte('a' - 'e')
	if !bytes.Equal(diffBytes, want) {
		t.Errorf("diffBytes = %v, want %v", diffBytes, want)
	}
}

// TestPlanSparseSingleByteChange is the E5 scenario: a large mostly
// identical buffer with one byte flipped collapses the same way property
// 2/E2 do, scaled up. What matters for patch size is that the diff stream
// is almost entirely zero.
func TestPlanSparseSingleByteChange(t *testing.T) {
	const size = 64 * 1024
	const flipAt = 32768

	source := make([]byte, size)
	target := make([]byte, size)
	copy(target, source)
	target[flipAt] = 0xFF

	instrs, diffBytes, extraBytes := runPlan(source, target)
	if len(instrs) != 1 {
		t.Fatalf("got %d instructions, want 1: %+v", len(instrs), instrs)
	}
	in := instrs[0]
	if in.addLen != uint64(size) || in.extraLen != 0 {
		t.Fatalf("instruction = %+v, want addLen=%d extraLen=0", in, size)
	}
	if len(extraBytes) != 0 {
		t.Errorf("extraBytes = %v, want empty", extraBytes)
	}
	for i, b := range diffBytes {
		if i == flipAt {
			if b != 0xFF {
				t.Errorf("diffBytes[%d] = %#x, want 0xff", i, b)
			}
			continue
		}
		if b != 0 {
			t.Errorf("diffBytes[%d] = %#x, want 0", i, b)
		}
	}
}

// TestPlanInsertionUsesExtraStream is the shape of E3/E4: content inserted
// into target with no counterpart in source must come out of the extra
// stream verbatim, not be synthesized as a diff correction.
func TestPlanInsertionUsesExtraStream(t *testing.T) {
	source := []byte("abcdefgh")
	target := []byte("XYZabcdefgh")

	_, _, extraBytes := runPlan(source, target)
	if !bytes.Contains(extraBytes, []byte("XYZ")) {
		t.Errorf("extraBytes = %q, want it to contain %q", extraBytes, "XYZ")
	}
}
