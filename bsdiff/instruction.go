package bsdiff

import (
	"io"

	"github.com/hucsmn/qbsdiff/internal/offsets"
)

// instruction is one control triple of spec.md §3: addLen bytes are
// produced by adding source bytes to diff-stream bytes, extraLen bytes are
// then taken verbatim from the extra stream, and the source cursor advances
// by addLen+seek afterward.
type instruction struct {
	addLen   uint64
	extraLen uint64
	seek     int64
}

// writeTo encodes the triple as three signed-magnitude offsets.Size-byte
// fields, in (addLen, extraLen, seek) order.
func (in instruction) writeTo(w io.Writer) error {
	var buf [offsets.Size * 3]byte
	offsets.Encode(int64(in.addLen), buf[0:offsets.Size])
	offsets.Encode(int64(in.extraLen), buf[offsets.Size:2*offsets.Size])
	offsets.Encode(in.seek, buf[2*offsets.Size:3*offsets.Size])
	_, err := w.Write(buf[:])
	return err
}

// readInstruction decodes one control triple from r. It reports io.EOF only
// when zero bytes could be read at the start of a triple (a clean end of
// stream); any other short read is a truncation.
func readInstruction(r io.Reader) (instruction, error) {
	var buf [offsets.Size * 3]byte
	n, err := io.ReadFull(r, buf[:])
	if n == 0 && err == io.EOF {
		return instruction{}, io.EOF
	}
	if err != nil {
		return instruction{}, err
	}
	addLen := offsets.Decode(buf[0:offsets.Size])
	extraLen := offsets.Decode(buf[offsets.Size : 2*offsets.Size])
	seek := offsets.Decode(buf[2*offsets.Size : 3*offsets.Size])
	if addLen < 0 || extraLen < 0 {
		return instruction{}, newError(PatchOverflow, "control triple has negative add_len or extra_len")
	}
	return instruction{addLen: uint64(addLen), extraLen: uint64(extraLen), seek: seek}, nil
}
