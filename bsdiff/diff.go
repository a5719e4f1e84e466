package bsdiff

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/dsnet/compress/bzip2"

	"github.com/hucsmn/qbsdiff/internal/offsets"
	"github.com/hucsmn/qbsdiff/internal/suffixsort"
)

// Compare writes a BSDIFF40 patch transforming source into target to sink.
func (c Config) Compare(source, target []byte, sink io.Writer) error {
	idx := suffixsort.Build(source)
	instrs, diffBytes, extraBytes := plan(idx, source, target, c.SmallMatchThreshold)

	var controlBuf bytes.Buffer
	for _, in := range instrs {
		if err := in.writeTo(&controlBuf); err != nil {
			return wrapIO(err, "writing control triple")
		}
	}

	streams := [3][]byte{controlBuf.Bytes(), diffBytes, extraBytes}
	compressed, err := c.compressStreams(streams)
	if err != nil {
		return err
	}

	var header [headerLen]byte
	copy(header[:magicLen], magic)
	offsets.Encode(int64(len(compressed[0])), header[8:16])
	offsets.Encode(int64(len(compressed[1])), header[16:24])
	offsets.Encode(int64(len(target)), header[24:32])

	if _, err := sink.Write(header[:]); err != nil {
		return wrapIO(err, "writing patch header")
	}
	for _, block := range compressed {
		if _, err := sink.Write(block); err != nil {
			return wrapIO(err, "writing compressed sub-stream")
		}
	}
	return nil
}

// compressStreams bzip2-compresses the control, diff, and extra sub-streams,
// in that order. When c.Parallelism > 1, it fans the three compressions out
// over goroutines (the same fixed-worker, one-task-per-goroutine shape the
// teacher's diff-pack writer used for its own sub-block compression), with
// at most c.Parallelism of them compressing at once, and collects their
// errors; otherwise it compresses them one at a time.
func (c Config) compressStreams(streams [3][]byte) ([3][]byte, error) {
	var out [3][]byte
	level := c.CompressionLevel
	if level == 0 {
		level = defaultCompressionLevel
	}

	compressOne := func(i int) error {
		var buf bytes.Buffer
		zw, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: level})
		if err != nil {
			return wrapIO(err, "opening bzip2 writer")
		}
		if err := c.copyInChunks(zw, streams[i]); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return wrapIO(err, "closing bzip2 writer")
		}
		out[i] = buf.Bytes()
		return nil
	}

	if c.Parallelism <= 1 {
		for i := range streams {
			if err := compressOne(i); err != nil {
				return out, err
			}
		}
		return out, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(streams))
	slots := make(chan struct{}, c.Parallelism)
	for i := range streams {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			slots <- struct{}{}
			defer func() { <-slots }()
			errs[i] = compressOne(i)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// copyInChunks writes data to w in c.BufferSize pieces, reusing a single
// scratch buffer grown as needed rather than letting io.Copy pick its own
// allocation size.
func (c Config) copyInChunks(w io.Writer, data []byte) error {
	size := c.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	var scratch []byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		if cap(scratch) < n {
			scratch = make([]byte, n)
		}
		scratch = scratch[:n]
		copy(scratch, data[:n])
		if _, err := w.Write(scratch); err != nil {
			return wrapIO(err, "writing compressed chunk")
		}
		data = data[n:]
	}
	return nil
}

// Bytes is a convenience wrapper around Compare for callers that already
// hold both buffers in memory.
func (c Config) Bytes(source, target []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Compare(source, target, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// File diffs sourcefile against targetfile and writes the patch to
// patchfile, creating or truncating it.
func (c Config) File(sourcefile, targetfile, patchfile string) error {
	source, err := os.ReadFile(sourcefile)
	if err != nil {
		return wrapIO(err, "reading source file")
	}
	target, err := os.ReadFile(targetfile)
	if err != nil {
		return wrapIO(err, "reading target file")
	}

	out, err := os.OpenFile(patchfile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return wrapIO(err, "creating patch file")
	}
	if err := c.Compare(source, target, out); err != nil {
		out.Close()
		os.Remove(patchfile)
		return err
	}
	return wrapIO(out.Close(), "closing patch file")
}
