package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	spec "github.com/nihei9/urchin/spec/grammar"
)

const (
	streamMagic = "UGT1"

	// MaxChunkLen is the maximum length of a chunk of an encoded table.
	MaxChunkLen = 4096

	headerLen = len(streamMagic) + 1 + 8
)

// ErrCorruptTable is matched by every error reported while decoding a table.
var ErrCorruptTable = errors.New("corrupt table")

// CorruptTableError reports the table and the decoding stage that failed.
type CorruptTableError struct {
	Table spec.TableKind
	Stage string
	Err   error
}

func (e *CorruptTableError) Error() string {
	return fmt.Sprintf("%v: %v table: %v: %v", ErrCorruptTable, e.Table, e.Stage, e.Err)
}

func (e *CorruptTableError) Is(target error) bool {
	return target == ErrCorruptTable
}

func (e *CorruptTableError) Unwrap() error {
	return e.Err
}

const (
	stageBase64   = "base64"
	stageHeader   = "header"
	stageZstd     = "zstd"
	stageChecksum = "checksum"
	stageVarint   = "varint"
	stageShape    = "shape"
)

func corrupt(kind spec.TableKind, stage string, err error) error {
	return &CorruptTableError{
		Table: kind,
		Stage: stage,
		Err:   err,
	}
}

var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
)

// pack turns a payload into printable chunks.
func pack(kind spec.TableKind, payload []byte) ([]string, error) {
	enc, err := zstdEncoder()
	if err != nil {
		return nil, fmt.Errorf("failed to create a zstd encoder: %w", err)
	}

	var b bytes.Buffer
	b.WriteString(streamMagic)
	b.WriteByte(byte(kind))
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], xxhash.Sum64(payload))
	b.Write(sum[:])
	b.Write(enc.EncodeAll(payload, nil))

	text := base64.StdEncoding.EncodeToString(b.Bytes())
	chunks := make([]string, 0, len(text)/MaxChunkLen+1)
	for len(text) > MaxChunkLen {
		chunks = append(chunks, text[:MaxChunkLen])
		text = text[MaxChunkLen:]
	}
	return append(chunks, text), nil
}

// unpack reverses pack. Every failure is reported as a CorruptTableError.
func unpack(kind spec.TableKind, chunks []string) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, corrupt(kind, stageBase64, fmt.Errorf("no chunks"))
	}
	for i, c := range chunks {
		if len(c) > MaxChunkLen {
			return nil, corrupt(kind, stageBase64, fmt.Errorf("chunk #%v is too long: %v", i, len(c)))
		}
	}
	raw, err := base64.StdEncoding.DecodeString(strings.Join(chunks, ""))
	if err != nil {
		return nil, corrupt(kind, stageBase64, err)
	}
	if len(raw) < headerLen || string(raw[:len(streamMagic)]) != streamMagic {
		return nil, corrupt(kind, stageHeader, fmt.Errorf("invalid magic"))
	}
	if got := spec.TableKind(raw[len(streamMagic)]); got != kind {
		return nil, corrupt(kind, stageHeader, fmt.Errorf("unexpected table kind: %v", got))
	}
	sum := binary.BigEndian.Uint64(raw[len(streamMagic)+1 : headerLen])

	dec, err := zstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("failed to create a zstd decoder: %w", err)
	}
	payload, err := dec.DecodeAll(raw[headerLen:], nil)
	if err != nil {
		return nil, corrupt(kind, stageZstd, err)
	}
	if xxhash.Sum64(payload) != sum {
		return nil, corrupt(kind, stageChecksum, fmt.Errorf("checksum mismatch"))
	}
	return payload, nil
}

type writer struct {
	buf []byte
}

func (w *writer) int(v int) {
	w.buf = binary.AppendVarint(w.buf, int64(v))
}

func (w *writer) ints(vs []int) {
	w.int(len(vs))
	for _, v := range vs {
		w.int(v)
	}
}

type reader struct {
	kind spec.TableKind
	buf  []byte
	err  error
}

func (r *reader) int() int {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.buf)
	if n <= 0 {
		r.err = corrupt(r.kind, stageVarint, fmt.Errorf("malformed varint"))
		return 0
	}
	r.buf = r.buf[n:]
	return int(v)
}

// count reads a length. Every element takes at least one byte, so a length beyond the remaining
// bytes is corrupt.
func (r *reader) count() int {
	n := r.int()
	if r.err != nil {
		return 0
	}
	if n < 0 || n > len(r.buf) {
		r.err = corrupt(r.kind, stageShape, fmt.Errorf("invalid length: %v", n))
		return 0
	}
	return n
}

// maxDim bounds the row and column counts of a table.
const maxDim = 1 << 24

func (r *reader) dim() int {
	n := r.int()
	if r.err != nil {
		return 0
	}
	if n < 0 || n > maxDim {
		r.err = corrupt(r.kind, stageShape, fmt.Errorf("invalid table size: %v", n))
		return 0
	}
	return n
}

// maxCells bounds the number of cells of a dense table restored from its compressed form.
const maxCells = 1 << 26

// size reads the row and column counts of a table.
func (r *reader) size() (int, int) {
	rows := r.dim()
	cols := r.dim()
	if r.err != nil {
		return 0, 0
	}
	if int64(rows)*int64(cols) > maxCells {
		r.err = corrupt(r.kind, stageShape, fmt.Errorf("too many cells: %vx%v", rows, cols))
		return 0, 0
	}
	return rows, cols
}

func (r *reader) ints() []int {
	n := r.count()
	vs := make([]int, n)
	for i := range vs {
		vs[i] = r.int()
	}
	return vs
}

func (r *reader) fail(format string, a ...any) {
	if r.err == nil {
		r.err = corrupt(r.kind, stageShape, fmt.Errorf(format, a...))
	}
}

func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if len(r.buf) > 0 {
		return corrupt(r.kind, stageShape, fmt.Errorf("%v trailing bytes", len(r.buf)))
	}
	return nil
}
