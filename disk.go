package ngramfst

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/mmap"
)

/* CONTAINER FORMAT
All integers are little-endian.

- uint32: magic number 0x7eb2fdd6
- string: fst type, "ngram"
- string: arc type, "standard"
- int32: format version
- int32: flags
- int64: start state
- int64: number of states
- int64: number of arcs, backoff arcs included
- int64: payload size in bytes
- uint64: xxhash64 of the payload
- payload (see PAYLOAD FORMAT)

A string is a uint32 byte count followed by the bytes.
*/

const (
	magicNumber uint32 = 0x7eb2fdd6

	// FileVersion is the container version written by this package.
	FileVersion = 4
	// MinFileVersion is the oldest container version that can be read.
	MinFileVersion = 4

	// FSTType names the payload layout in the container header.
	FSTType = "ngram"
	// ArcType names the weight semiring in the container header.
	ArcType = "standard"

	flagChecksum int32 = 1

	maxTypeLen = 64
)

type header struct {
	FSTType     string
	ArcType     string
	Version     int32
	Flags       int32
	Start       int64
	NumStates   int64
	NumArcs     int64
	PayloadSize int64
	Checksum    uint64
}

func (h *header) marshal() []byte {
	buf := make([]byte, 0, 64)
	buf = binary.LittleEndian.AppendUint32(buf, magicNumber)
	buf = appendString(buf, h.FSTType)
	buf = appendString(buf, h.ArcType)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.Version))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.Flags))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.Start))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.NumStates))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.NumArcs))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.PayloadSize))
	buf = binary.LittleEndian.AppendUint64(buf, h.Checksum)
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// headerReader decodes header fields and remembers the first error.
type headerReader struct {
	r   io.Reader
	n   int64
	err error
	buf [8]byte
}

func (hr *headerReader) read(n int) []byte {
	if hr.err != nil {
		return hr.buf[:n]
	}
	var read int
	read, hr.err = io.ReadFull(hr.r, hr.buf[:n])
	hr.n += int64(read)
	return hr.buf[:n]
}

func (hr *headerReader) readUint32() uint32 {
	return binary.LittleEndian.Uint32(hr.read(4))
}

func (hr *headerReader) readUint64() uint64 {
	return binary.LittleEndian.Uint64(hr.read(8))
}

func (hr *headerReader) readString() string {
	n := hr.readUint32()
	if hr.err != nil {
		return ""
	}
	if n > maxTypeLen {
		hr.err = errors.Newf("type name of %d bytes", n)
		return ""
	}
	s := make([]byte, n)
	var read int
	read, hr.err = io.ReadFull(hr.r, s)
	hr.n += int64(read)
	return string(s)
}

// readHeader decodes a container header from r and returns it together
// with its encoded length.
func readHeader(r io.Reader) (*header, int64, error) {
	hr := &headerReader{r: r}
	if magic := hr.readUint32(); hr.err == nil && magic != magicNumber {
		return nil, hr.n, corruptf("bad magic number %#x", magic)
	}

	h := &header{}
	h.FSTType = hr.readString()
	h.ArcType = hr.readString()
	h.Version = int32(hr.readUint32())
	h.Flags = int32(hr.readUint32())
	h.Start = int64(hr.readUint64())
	h.NumStates = int64(hr.readUint64())
	h.NumArcs = int64(hr.readUint64())
	h.PayloadSize = int64(hr.readUint64())
	h.Checksum = hr.readUint64()
	if hr.err != nil {
		return nil, hr.n, corruptf("reading header: %v", hr.err)
	}

	if h.FSTType != FSTType {
		return nil, hr.n, corruptf("fst type %q, want %q", h.FSTType, FSTType)
	}
	if h.ArcType != ArcType {
		return nil, hr.n, corruptf("arc type %q, want %q", h.ArcType, ArcType)
	}
	if h.Version < MinFileVersion {
		return nil, hr.n, errors.Wrapf(ErrUnsupportedVersion, "version %d, need at least %d",
			h.Version, MinFileVersion)
	}
	if h.PayloadSize < countsSize {
		return nil, hr.n, corruptf("payload size %d", h.PayloadSize)
	}
	return h, hr.n, nil
}

// verify compares the header against the parsed model.
func (h *header) verify(m *Model) error {
	if h.Start != int64(m.Start()) {
		return corruptf("header start state %d, want %d", h.Start, m.Start())
	}
	if h.NumStates != int64(m.NumStates()) {
		return corruptf("header has %d states, payload %d", h.NumStates, m.NumStates())
	}
	if h.NumArcs != m.numArcs() {
		return corruptf("header has %d arcs, payload %d", h.NumArcs, m.numArcs())
	}
	if h.PayloadSize != m.StorageSize() {
		return corruptf("header payload size %d, layout %d", h.PayloadSize, m.StorageSize())
	}
	return nil
}

func (m *Model) numArcs() int64 {
	return int64(m.NumFutures()) + int64(m.NumStates()) - 1
}

func (m *Model) header(checksum uint64) *header {
	return &header{
		FSTType:     FSTType,
		ArcType:     ArcType,
		Version:     FileVersion,
		Flags:       flagChecksum,
		Start:       int64(m.Start()),
		NumStates:   int64(m.NumStates()),
		NumArcs:     m.numArcs(),
		PayloadSize: m.StorageSize(),
		Checksum:    checksum,
	}
}

// Data returns a copy of the payload.
func (m *Model) Data() []byte {
	buf := make([]byte, m.layout.size)
	if _, err := m.r.ReadAt(buf, 0); err != nil {
		panic(errors.Wrap(err, "reading payload"))
	}
	return buf
}

// Save writes the model to a file. Returns the number of bytes written.
func (m *Model) Save(filename string) (int64, error) {
	f, err := os.Create(filename)
	if err != nil {
		return 0, err
	}

	n, err := m.Write(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Write writes the model in its container to w. Returns the number of
// bytes written.
func (m *Model) Write(w io.Writer) (int64, error) {
	payload := m.Data()
	h := m.header(xxhash.Sum64(payload))

	n, err := w.Write(h.marshal())
	if err != nil {
		return int64(n), errors.Wrap(err, "writing header")
	}
	p, err := w.Write(payload)
	if err != nil {
		return int64(n + p), errors.Wrap(err, "writing payload")
	}
	return int64(n + p), nil
}

// Read reads a model from a stream. The payload is copied into memory.
func Read(r io.Reader, opts ...Option) (*Model, error) {
	o := newOptions(opts)

	h, _, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	var counts [countsSize]byte
	if _, err := io.ReadFull(r, counts[:]); err != nil {
		return nil, corruptf("reading counts: %v", err)
	}
	l, err := parseCounts(counts[:])
	if err != nil {
		return nil, err
	}
	if l.size != h.PayloadSize {
		return nil, corruptf("header payload size %d, layout %d", h.PayloadSize, l.size)
	}

	// grow with the data actually read so a truncated stream fails
	// before the full layout is allocated
	var payload bytes.Buffer
	payload.Write(counts[:])
	rest := l.size - countsSize
	if n, err := payload.ReadFrom(io.LimitReader(r, rest)); err != nil {
		return nil, corruptf("reading payload: %v", err)
	} else if n != rest {
		return nil, corruptf("payload truncated at %d of %d bytes", countsSize+n, l.size)
	}
	buf := payload.Bytes()

	if o.verifyChecksum && h.Flags&flagChecksum != 0 {
		if sum := xxhash.Sum64(buf); sum != h.Checksum {
			return nil, corruptf("payload checksum %#x, header %#x", sum, h.Checksum)
		}
	}

	m, err := newModel(bytes.NewReader(buf), l.size, o.logger)
	if err != nil {
		return nil, err
	}
	if err := h.verify(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadAt returns a model that accesses the container at offset in r in
// place. Only the bitmaps are copied into memory.
func ReadAt(r io.ReaderAt, offset int64, opts ...Option) (*Model, error) {
	o := newOptions(opts)

	h, n, err := readHeader(io.NewSectionReader(r, offset, math.MaxInt64-offset))
	if err != nil {
		return nil, err
	}
	at := offset + n

	var last [1]byte
	if _, err := r.ReadAt(last[:], at+h.PayloadSize-1); err != nil {
		return nil, corruptf("payload of %d bytes is truncated: %v", h.PayloadSize, err)
	}
	payload := io.NewSectionReader(r, at, h.PayloadSize)

	if o.verifyChecksum && h.Flags&flagChecksum != 0 {
		d := xxhash.New()
		if _, err := io.Copy(d, payload); err != nil {
			return nil, corruptf("reading payload: %v", err)
		}
		if sum := d.Sum64(); sum != h.Checksum {
			return nil, corruptf("payload checksum %#x, header %#x", sum, h.Checksum)
		}
	}

	m, err := newModel(payload, h.PayloadSize, o.logger)
	if err != nil {
		return nil, err
	}
	if err := h.verify(m); err != nil {
		return nil, err
	}

	o.logger.Debugf("ngramfst: opened %d states, %d futures at offset %d", m.NumStates(), m.NumFutures(), offset)
	return m, nil
}

// Load memory-maps a model file. The returned model must be closed.
func Load(filename string, opts ...Option) (*Model, error) {
	f, err := mmap.Open(filename)
	if err != nil {
		return nil, err
	}

	m, err := ReadAt(f, 0, opts...)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "loading %s", filename)
	}
	m.closer = f
	return m, nil
}

// Close releases the file backing a loaded model.
func (m *Model) Close() error {
	if m.closer == nil {
		return nil
	}
	err := m.closer.Close()
	m.closer = nil
	return err
}

const dumpBits = 128

// Dump prints the payload layout and every state with its arcs.
func (m *Model) Dump(out io.Writer) error {
	w := bufio.NewWriter(out)
	l := m.layout

	fmt.Fprintf(w, "[%08x] num_states=%d\n", 0, l.numStates)
	fmt.Fprintf(w, "[%08x] num_futures=%d\n", 8, l.numFutures)
	fmt.Fprintf(w, "[%08x] num_final=%d\n", 16, l.numFinal)
	fmt.Fprintf(w, "[%08x] context bits %s\n", l.contextBits, bitString(m.context.Get, m.context.Len()))
	fmt.Fprintf(w, "[%08x] future bits %s\n", l.futureBits, bitString(m.future.Get, m.future.Len()))
	fmt.Fprintf(w, "[%08x] final bits %s\n", l.finalBits, bitString(m.final.Get, m.final.Len()))
	fmt.Fprintf(w, "[%08x] context labels\n", l.contextWords)
	fmt.Fprintf(w, "[%08x] future labels\n", l.futureWords)
	fmt.Fprintf(w, "[%08x] backoff weights\n", l.backoff)
	fmt.Fprintf(w, "[%08x] final weights\n", l.finalProbs)
	fmt.Fprintf(w, "[%08x] future weights\n", l.futureProbs)
	fmt.Fprintf(w, "[%08x] end\n", l.size)

	for s := StateID(0); int(s) < m.NumStates(); s++ {
		fmt.Fprintf(w, "state %d context=%v arcs=%d", s, m.Context(s), m.NumArcs(s))
		if final := m.Final(s); !final.IsZero() {
			fmt.Fprintf(w, " final=%g", final)
		}
		fmt.Fprintln(w)

		for c := m.NewArcCursor(s); !c.Done(); c.Next() {
			arc := c.Value()
			fmt.Fprintf(w, "    %d -> %d w=%g\n", arc.Label, arc.Next, arc.Weight)
		}
	}

	return w.Flush()
}

func bitString(get func(int) bool, n int) string {
	var b bytes.Buffer
	for i := 0; i < n && i < dumpBits; i++ {
		if get(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	if n > dumpBits {
		fmt.Fprintf(&b, "... (%d bits)", n)
	}
	return b.String()
}
