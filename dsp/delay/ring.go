package delay

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidCapacity  = errors.New("delay: capacity must be > 0")
	ErrBufferFull       = errors.New("delay: ring buffer is full")
	ErrBufferUnderflow  = errors.New("delay: not enough buffered samples")
	ErrOffsetOutOfRange = errors.New("delay: read offset out of range")
)

// Ring is a fixed-capacity circular sample buffer with independent read and
// write indices.
//
// Samples between the read and the write index are "buffered" (written but
// not yet consumed). Slots behind the read index still hold previously read
// samples until the writer overwrites them; they are reachable with negative
// offsets in [Ring.Read]. Because read == write is ambiguous, an explicit
// full flag tells a full ring from an empty one.
type Ring struct {
	buffer []float64
	read   int
	write  int
	full   bool
}

// NewRing returns a zero-filled ring of fixed capacity.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Ring{buffer: make([]float64, capacity)}, nil
}

// Len returns the capacity in samples.
func (r *Ring) Len() int {
	return len(r.buffer)
}

// Buffered returns the number of written samples not yet consumed.
func (r *Ring) Buffered() int {
	if r.full {
		return len(r.buffer)
	}
	return (r.write - r.read + len(r.buffer)) % len(r.buffer)
}

// Free returns the number of samples that can be written before the ring is full.
func (r *Ring) Free() int {
	return len(r.buffer) - r.Buffered()
}

// Full reports whether every slot holds an unread sample.
func (r *Ring) Full() bool {
	return r.full
}

// Put stores sample at the write index without advancing it.
func (r *Ring) Put(sample float64) {
	r.buffer[r.write] = sample
}

// Write stores sample at the write index and advances it.
func (r *Ring) Write(sample float64) error {
	if r.full {
		return ErrBufferFull
	}
	r.buffer[r.write] = sample
	r.write = r.wrap(r.write + 1)
	if r.write == r.read {
		r.full = true
	}
	return nil
}

// WriteBlock writes all samples or none of them.
func (r *Ring) WriteBlock(samples []float64) error {
	if free := r.Free(); len(samples) > free {
		return fmt.Errorf("%w: %d samples, %d free", ErrBufferFull, len(samples), free)
	}
	for _, s := range samples {
		// Cannot fail, capacity was checked above.
		_ = r.Write(s)
	}
	return nil
}

// Read returns the sample at read index + offset without advancing.
//
// Fractional offsets are linearly interpolated between the two neighboring
// slots. Positive offsets reach into buffered samples, negative offsets into
// already consumed history; anything beyond either is ErrOffsetOutOfRange.
func (r *Ring) Read(offset float64) (float64, error) {
	if math.IsNaN(offset) || math.IsInf(offset, 0) {
		return 0, fmt.Errorf("%w: %v", ErrOffsetOutOfRange, offset)
	}

	base := math.Floor(offset)
	i := int(base)
	frac := offset - base

	last := i
	if frac > 0 {
		last = i + 1
	}

	buffered := r.Buffered()
	if i < buffered-len(r.buffer) || last > buffered-1 {
		return 0, fmt.Errorf("%w: offset %v, %d buffered of %d", ErrOffsetOutOfRange, offset, buffered, len(r.buffer))
	}

	x0 := r.buffer[r.wrap(r.read+i)]
	if frac == 0 {
		return x0, nil
	}
	x1 := r.buffer[r.wrap(r.read+i+1)]
	return (1-frac)*x0 + frac*x1, nil
}

// ReadAdvance returns the sample at the read index and advances it by one.
func (r *Ring) ReadAdvance() (float64, error) {
	if r.Buffered() == 0 {
		return 0, ErrBufferUnderflow
	}
	v := r.buffer[r.read]
	r.read = r.wrap(r.read + 1)
	r.full = false
	return v, nil
}

// ReadBlock fills dst with consecutive samples and advances the read index
// by len(dst). The call is atomic: if fewer than len(dst) samples are
// buffered nothing is consumed.
func (r *Ring) ReadBlock(dst []float64) error {
	if buffered := r.Buffered(); len(dst) > buffered {
		return fmt.Errorf("%w: want %d, have %d", ErrBufferUnderflow, len(dst), buffered)
	}
	for i := range dst {
		dst[i] = r.buffer[r.read]
		r.read = r.wrap(r.read + 1)
	}
	if len(dst) > 0 {
		r.full = false
	}
	return nil
}

// Peek returns the raw slot at index modulo capacity, ignoring the read and
// write indices.
func (r *Ring) Peek(index int) float64 {
	return r.buffer[r.wrap(index)]
}

// ReadIndex returns the current read index.
func (r *Ring) ReadIndex() int {
	return r.read
}

// WriteIndex returns the current write index.
func (r *Ring) WriteIndex() int {
	return r.write
}

// SetReadIndex moves the read index. Clears the full flag.
func (r *Ring) SetReadIndex(index int) error {
	if index < 0 || index >= len(r.buffer) {
		return fmt.Errorf("%w: read index %d", ErrOffsetOutOfRange, index)
	}
	r.read = index
	r.full = false
	return nil
}

// SetWriteIndex moves the write index. Clears the full flag.
func (r *Ring) SetWriteIndex(index int) error {
	if index < 0 || index >= len(r.buffer) {
		return fmt.Errorf("%w: write index %d", ErrOffsetOutOfRange, index)
	}
	r.write = index
	r.full = false
	return nil
}

// Reset zero-fills the storage and rewinds both indices.
func (r *Ring) Reset() {
	for i := range r.buffer {
		r.buffer[i] = 0
	}
	r.read = 0
	r.write = 0
	r.full = false
}

func (r *Ring) wrap(i int) int {
	n := len(r.buffer)
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
