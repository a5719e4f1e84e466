package bsdiff

import (
	"bytes"
	"io"
	"os"

	"github.com/dsnet/compress/bzip2"

	"github.com/hucsmn/qbsdiff/internal/offsets"
)

// Patcher replays a BSDIFF40 patch against a source buffer to reconstruct
// the target, per spec.md §4.4. A Patcher is single-use: create one with
// NewPatcher, call HintTargetSize if wanted, then Apply exactly once.
type Patcher struct {
	source     []byte
	targetSize int64

	control io.Reader
	diff    io.Reader
	extra   io.Reader

	srcCursor int
}

// patchHeader is the decoded and validated 32-byte BSDIFF40 header.
type patchHeader struct {
	controlLen int64
	diffLen    int64
	targetSize int64
}

func parseHeader(raw [headerLen]byte) (patchHeader, error) {
	if string(raw[:magicLen]) != magic {
		return patchHeader{}, newError(BadMagic, "patch does not start with BSDIFF40")
	}

	controlLen := offsets.Decode(raw[8:16])
	diffLen := offsets.Decode(raw[16:24])
	targetSize := offsets.Decode(raw[24:32])
	if controlLen < 0 || diffLen < 0 || targetSize < 0 {
		return patchHeader{}, newError(MalformedHeader, "negative length field in patch header")
	}
	return patchHeader{controlLen: controlLen, diffLen: diffLen, targetSize: targetSize}, nil
}

// NewPatcher parses patch's header and prepares to apply it against source.
// Apply alternates between the control, diff, and extra sub-streams once
// per instruction, so it needs independent random access into all three at
// once; a caller whose patch source already supports that (a *bytes.Reader,
// an *os.File) is used directly, with each sub-stream's bzip2 reader lazily
// pulling only the bytes it needs via its own io.SectionReader. A plain
// io.Reader (a network body, stdin) can't offer that kind of interleaved
// access no matter how it's wrapped, since the three sub-streams don't
// arrive in the order Apply consumes them — so for that case NewPatcher
// reads the patch into memory once, up front, and serves the rest from
// there.
func NewPatcher(source []byte, patch io.Reader) (*Patcher, error) {
	if ra, ok := patch.(io.ReaderAt); ok {
		return newPatcherRandomAccess(source, ra)
	}
	return newPatcherBuffered(source, patch)
}

func newPatcherRandomAccess(source []byte, ra io.ReaderAt) (*Patcher, error) {
	var raw [headerLen]byte
	if _, err := io.ReadFull(io.NewSectionReader(ra, 0, headerLen), raw[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, newError(MalformedHeader, "patch shorter than the 32-byte header")
		}
		return nil, wrapIO(err, "reading patch header")
	}
	hdr, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}

	controlOff := int64(headerLen)
	diffOff := controlOff + hdr.controlLen
	extraOff := diffOff + hdr.diffLen
	if diffOff < controlOff || extraOff < diffOff {
		return nil, newError(MalformedHeader, "length fields overflow patch offsets")
	}
	if extraOff > controlOff {
		var last [1]byte
		if n, err := ra.ReadAt(last[:], extraOff-1); n < 1 {
			if err == io.EOF {
				return nil, newError(MalformedHeader, "header length fields run past the end of the patch")
			}
			return nil, wrapIO(err, "reading patch body")
		}
	}

	controlR, err := bzip2.NewReader(io.NewSectionReader(ra, controlOff, hdr.controlLen), nil)
	if err != nil {
		return nil, wrapKind(DecompressError, err, "opening control sub-stream")
	}
	diffR, err := bzip2.NewReader(io.NewSectionReader(ra, diffOff, hdr.diffLen), nil)
	if err != nil {
		return nil, wrapKind(DecompressError, err, "opening diff sub-stream")
	}
	extraR, err := bzip2.NewReader(io.NewSectionReader(ra, extraOff, maxSectionLen-extraOff), nil)
	if err != nil {
		return nil, wrapKind(DecompressError, err, "opening extra sub-stream")
	}

	return &Patcher{
		source:     source,
		targetSize: hdr.targetSize,
		control:    controlR,
		diff:       diffR,
		extra:      extraR,
	}, nil
}

// newPatcherBuffered reads the header and all three sub-streams' compressed
// bytes out of r in the single forward pass a plain io.Reader allows, then
// builds the same three bzip2 readers over in-memory buffers.
func newPatcherBuffered(source []byte, r io.Reader) (*Patcher, error) {
	var raw [headerLen]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, newError(MalformedHeader, "patch shorter than the 32-byte header")
		}
		return nil, wrapIO(err, "reading patch header")
	}
	hdr, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}

	controlBuf, err := io.ReadAll(io.LimitReader(r, hdr.controlLen))
	if err != nil {
		return nil, wrapIO(err, "reading control sub-stream")
	}
	if int64(len(controlBuf)) < hdr.controlLen {
		return nil, newError(MalformedHeader, "control length runs past the end of the patch")
	}
	diffBuf, err := io.ReadAll(io.LimitReader(r, hdr.diffLen))
	if err != nil {
		return nil, wrapIO(err, "reading diff sub-stream")
	}
	if int64(len(diffBuf)) < hdr.diffLen {
		return nil, newError(MalformedHeader, "diff length runs past the end of the patch")
	}
	extraBuf, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapIO(err, "reading extra sub-stream")
	}

	controlR, err := bzip2.NewReader(bytes.NewReader(controlBuf), nil)
	if err != nil {
		return nil, wrapKind(DecompressError, err, "opening control sub-stream")
	}
	diffR, err := bzip2.NewReader(bytes.NewReader(diffBuf), nil)
	if err != nil {
		return nil, wrapKind(DecompressError, err, "opening diff sub-stream")
	}
	extraR, err := bzip2.NewReader(bytes.NewReader(extraBuf), nil)
	if err != nil {
		return nil, wrapKind(DecompressError, err, "opening extra sub-stream")
	}

	return &Patcher{
		source:     source,
		targetSize: hdr.targetSize,
		control:    controlR,
		diff:       diffR,
		extra:      extraR,
	}, nil
}

// maxSectionLen bounds the extra sub-stream's io.SectionReader, since its
// length isn't recorded in the header (it runs to the end of the patch).
const maxSectionLen = 1<<63 - 1

// HintTargetSize reports the length of the buffer Apply will produce, as
// declared by the patch header. It's a hint only: Apply still enforces
// PatchOverflow if the instruction stream tries to exceed it, or leaves it
// short if the stream is truncated.
func (p *Patcher) HintTargetSize() int64 {
	return p.targetSize
}

// Apply reconstructs the target and writes it to sink. It returns an *Error
// (see ErrorKind) describing the first structural problem found; a nil
// error means sink now holds exactly HintTargetSize bytes reconstructed
// from source.
func (p *Patcher) Apply(sink io.Writer) error {
	var written int64

	for written < p.targetSize {
		in, err := readInstruction(p.control)
		if err == io.EOF {
			return newError(TruncatedControl, "control stream ended before target was fully produced")
		}
		if err != nil {
			if e, ok := err.(*Error); ok {
				return e
			}
			if err == io.ErrUnexpectedEOF {
				return newError(TruncatedControl, "control stream ended inside a triple")
			}
			return wrapKind(DecompressError, err, "reading control triple")
		}

		if written+int64(in.addLen)+int64(in.extraLen) > p.targetSize {
			return newError(PatchOverflow, "instruction would produce more than the declared target size")
		}

		if err := p.applyAdd(sink, in.addLen); err != nil {
			return err
		}
		written += int64(in.addLen)

		if err := p.applyExtra(sink, in.extraLen); err != nil {
			return err
		}
		written += int64(in.extraLen)

		p.srcCursor += int(in.addLen)
		next := int64(p.srcCursor) + in.seek
		if next < 0 || next > int64(len(p.source)) {
			return newError(SourceOutOfRange, "seek moves source cursor out of range")
		}
		p.srcCursor = int(next)
	}

	if err := p.checkTrailing(); err != nil {
		return err
	}
	return nil
}

// applyAdd copies n bytes starting at the current source cursor, each
// summed with one diff-stream byte, to sink. The source read is bounds
// checked lazily, only for the bytes this instruction actually consumes
// (the §9 Open Question on lazy-vs-eager seek validation applies here too).
func (p *Patcher) applyAdd(sink io.Writer, n uint64) error {
	if n == 0 {
		return nil
	}
	if p.srcCursor < 0 || p.srcCursor+int(n) > len(p.source) {
		return newError(SourceOutOfRange, "add instruction reads past source bounds")
	}

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	remaining := n
	cursor := p.srcCursor
	for remaining > 0 {
		chunk := uint64(chunkSize)
		if chunk > remaining {
			chunk = remaining
		}
		nr, err := io.ReadFull(p.diff, buf[:chunk])
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				return wrapKind(DecompressError, err, "reading diff sub-stream")
			}
			return newError(TruncatedDiff, "diff stream ended before add_len bytes were available")
		}
		for i := 0; i < nr; i++ {
			buf[i] += p.source[cursor+i]
		}
		if _, err := sink.Write(buf[:nr]); err != nil {
			return wrapIO(err, "writing reconstructed bytes")
		}
		cursor += nr
		remaining -= uint64(nr)
	}
	return nil
}

// applyExtra copies n bytes verbatim from the extra sub-stream to sink.
func (p *Patcher) applyExtra(sink io.Writer, n uint64) error {
	if n == 0 {
		return nil
	}
	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	remaining := n
	for remaining > 0 {
		chunk := uint64(chunkSize)
		if chunk > remaining {
			chunk = remaining
		}
		nr, err := io.ReadFull(p.extra, buf[:chunk])
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				return wrapKind(DecompressError, err, "reading extra sub-stream")
			}
			return newError(TruncatedExtra, "extra stream ended before extra_len bytes were available")
		}
		if _, err := sink.Write(buf[:nr]); err != nil {
			return wrapIO(err, "writing reconstructed bytes")
		}
		remaining -= uint64(nr)
	}
	return nil
}

// checkTrailing confirms the control and diff sub-streams have no
// unconsumed bytes once the target has been fully produced. The extra
// sub-stream runs to the end of the patch and is exempt: it simply reaches
// EOF, per spec.md §4.4 step 6.
func (p *Patcher) checkTrailing() error {
	var one [1]byte
	if n, err := p.control.Read(one[:]); n > 0 || (err != nil && err != io.EOF) {
		return newError(TrailingData, "control sub-stream has unread bytes")
	}
	if n, err := p.diff.Read(one[:]); n > 0 || (err != nil && err != io.EOF) {
		return newError(TrailingData, "diff sub-stream has unread bytes")
	}
	return nil
}

// Bytes is a convenience wrapper around NewPatcher/Apply for callers that
// already hold both source and patch fully in memory.
func Bytes(source, patch []byte) ([]byte, error) {
	p, err := NewPatcher(source, bytes.NewReader(patch))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := p.Apply(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// File applies patchfile against sourcefile and writes the result to
// targetfile, creating or truncating it.
func File(sourcefile, patchfile, targetfile string) error {
	source, err := os.ReadFile(sourcefile)
	if err != nil {
		return wrapIO(err, "reading source file")
	}
	patch, err := os.Open(patchfile)
	if err != nil {
		return wrapIO(err, "opening patch file")
	}
	defer patch.Close()

	p, err := NewPatcher(source, patch)
	if err != nil {
		return err
	}

	out, err := os.OpenFile(targetfile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return wrapIO(err, "creating target file")
	}
	if err := p.Apply(out); err != nil {
		out.Close()
		os.Remove(targetfile)
		return err
	}
	return wrapIO(out.Close(), "closing target file")
}
