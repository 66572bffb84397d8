package delay

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-vibrato/internal/testutil"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

// --- construction and validation ---

func TestNewRingValidation(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := NewRing(n); !errors.Is(err, ErrInvalidCapacity) {
			t.Fatalf("NewRing(%d): got %v want ErrInvalidCapacity", n, err)
		}
	}
}

func TestNewRingDefaults(t *testing.T) {
	r, err := NewRing(16)
	if err != nil {
		t.Fatal(err)
	}

	if r.Len() != 16 {
		t.Fatalf("Len: got %d want 16", r.Len())
	}
	if r.Buffered() != 0 || r.Free() != 16 || r.Full() {
		t.Fatalf("new ring: buffered=%d free=%d full=%v", r.Buffered(), r.Free(), r.Full())
	}
}

// --- sequential write/read ---

func TestWriteReadAdvanceCapacityFive(t *testing.T) {
	r, err := NewRing(5)
	if err != nil {
		t.Fatal(err)
	}

	in := []float64{1, 2, 3, 4, 5}
	for _, v := range in {
		if err := r.Write(v); err != nil {
			t.Fatalf("Write(%v): %v", v, err)
		}
	}
	if !r.Full() || r.Buffered() != 5 {
		t.Fatalf("after fill: full=%v buffered=%d", r.Full(), r.Buffered())
	}

	got := make([]float64, 5)
	for i := range got {
		v, err := r.ReadAdvance()
		if err != nil {
			t.Fatalf("ReadAdvance #%d: %v", i, err)
		}
		got[i] = v
	}

	testutil.RequireSliceNearlyEqual(t, got, in, 0)
	if r.Buffered() != 0 {
		t.Fatalf("Buffered: got %d want 0", r.Buffered())
	}
	if r.ReadIndex() != r.WriteIndex() {
		t.Fatalf("read index %d != write index %d", r.ReadIndex(), r.WriteIndex())
	}
}

func TestRoundTripFill(t *testing.T) {
	for _, capacity := range []int{1, 7, 64} {
		for _, n := range []int{1, capacity / 2, capacity} {
			if n == 0 {
				continue
			}
			r, err := NewRing(capacity)
			if err != nil {
				t.Fatal(err)
			}

			in := testutil.DeterministicNoise(int64(capacity*100+n), 1, n)
			if err := r.WriteBlock(in); err != nil {
				t.Fatalf("cap=%d n=%d WriteBlock: %v", capacity, n, err)
			}

			out := make([]float64, n)
			if err := r.ReadBlock(out); err != nil {
				t.Fatalf("cap=%d n=%d ReadBlock: %v", capacity, n, err)
			}
			testutil.RequireSliceNearlyEqual(t, out, in, 0)
		}
	}
}

func TestInterleavedWriteReadWraps(t *testing.T) {
	r, err := NewRing(5)
	if err != nil {
		t.Fatal(err)
	}

	in := testutil.DeterministicNoise(3, 1, 17)
	for i, v := range in {
		if err := r.Write(v); err != nil {
			t.Fatal(err)
		}
		got, err := r.ReadAdvance()
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Fatalf("index %d: got %v want %v", i, got, v)
		}
		if r.ReadIndex() != r.WriteIndex() {
			t.Fatalf("index %d: read %d write %d", i, r.ReadIndex(), r.WriteIndex())
		}
	}
}

// --- capacity errors ---

func TestWriteFullFails(t *testing.T) {
	r, err := NewRing(3)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.WriteBlock([]float64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := r.Write(4); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("Write on full ring: got %v want ErrBufferFull", err)
	}
	// Contents unchanged.
	if v, _ := r.Read(0); v != 1 {
		t.Fatalf("Read(0) after rejected write: got %v want 1", v)
	}
}

func TestWriteBlockIsAtomic(t *testing.T) {
	r, err := NewRing(4)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Write(1); err != nil {
		t.Fatal(err)
	}
	if err := r.WriteBlock([]float64{2, 3, 4, 5}); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("WriteBlock overflow: got %v want ErrBufferFull", err)
	}
	if r.Buffered() != 1 || r.WriteIndex() != 1 {
		t.Fatalf("rejected block mutated ring: buffered=%d write=%d", r.Buffered(), r.WriteIndex())
	}
}

func TestReadAdvanceEmptyFails(t *testing.T) {
	r, err := NewRing(4)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.ReadAdvance(); !errors.Is(err, ErrBufferUnderflow) {
		t.Fatalf("ReadAdvance on empty ring: got %v want ErrBufferUnderflow", err)
	}
	if r.ReadIndex() != 0 {
		t.Fatalf("read index moved: %d", r.ReadIndex())
	}
}

func TestReadBlockIsAtomic(t *testing.T) {
	r, err := NewRing(8)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.WriteBlock([]float64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	dst := []float64{-1, -1, -1, -1}
	if err := r.ReadBlock(dst); !errors.Is(err, ErrBufferUnderflow) {
		t.Fatalf("ReadBlock underflow: got %v want ErrBufferUnderflow", err)
	}
	for i, v := range dst {
		if v != -1 {
			t.Fatalf("dst[%d] written on rejected read: %v", i, v)
		}
	}
	if r.Buffered() != 3 || r.ReadIndex() != 0 {
		t.Fatalf("rejected read consumed data: buffered=%d read=%d", r.Buffered(), r.ReadIndex())
	}
}

// --- offset reads ---

func TestReadFractionalLinear(t *testing.T) {
	r, err := NewRing(8)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.WriteBlock([]float64{0, 1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		offset float64
		want   float64
	}{
		{0, 0},
		{1, 1},
		{2.5, 2.5},
		{3.75, 3.75},
		{4, 4},
	}
	for _, tc := range tests {
		got, err := r.Read(tc.offset)
		if err != nil {
			t.Fatalf("Read(%v): %v", tc.offset, err)
		}
		if !approxEqual(got, tc.want, 1e-12) {
			t.Fatalf("Read(%v): got %v want %v", tc.offset, got, tc.want)
		}
	}
}

func TestReadDoesNotAdvance(t *testing.T) {
	r, err := NewRing(4)
	if err != nil {
		t.Fatal(err)
	}

	_ = r.WriteBlock([]float64{7, 8})
	for i := 0; i < 3; i++ {
		if v, _ := r.Read(0); v != 7 {
			t.Fatalf("Read(0) #%d: got %v want 7", i, v)
		}
	}
	if r.Buffered() != 2 {
		t.Fatalf("Buffered: got %d want 2", r.Buffered())
	}
}

func TestReadBeyondBufferedFails(t *testing.T) {
	r, err := NewRing(8)
	if err != nil {
		t.Fatal(err)
	}

	_ = r.WriteBlock([]float64{1, 2, 3})

	for _, off := range []float64{3, 2.5, 10, math.NaN(), math.Inf(1)} {
		if _, err := r.Read(off); !errors.Is(err, ErrOffsetOutOfRange) {
			t.Fatalf("Read(%v): got %v want ErrOffsetOutOfRange", off, err)
		}
	}
	// 2.0 touches only the last buffered sample.
	if v, err := r.Read(2); err != nil || v != 3 {
		t.Fatalf("Read(2): got %v, %v want 3", v, err)
	}
}

func TestReadEmptyFails(t *testing.T) {
	r, err := NewRing(4)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Read(0); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Fatalf("Read(0) on empty ring: got %v want ErrOffsetOutOfRange", err)
	}
}

func TestReadNegativeOffsetReachesHistory(t *testing.T) {
	r, err := NewRing(6)
	if err != nil {
		t.Fatal(err)
	}

	_ = r.WriteBlock([]float64{10, 20, 30, 40})
	out := make([]float64, 3)
	if err := r.ReadBlock(out); err != nil {
		t.Fatal(err)
	}
	// buffered: [40], history: 30, 20, 10 and two untouched zero slots.

	if v, err := r.Read(-1); err != nil || v != 30 {
		t.Fatalf("Read(-1): got %v, %v want 30", v, err)
	}
	if v, err := r.Read(-2.5); err != nil || !approxEqual(v, 15, 1e-12) {
		t.Fatalf("Read(-2.5): got %v, %v want 15", v, err)
	}
	if v, err := r.Read(-0.5); err != nil || !approxEqual(v, 35, 1e-12) {
		t.Fatalf("Read(-0.5): got %v, %v want 35", v, err)
	}
	if _, err := r.Read(-5); err != nil {
		t.Fatalf("Read(-5) inside history: %v", err)
	}
	if _, err := r.Read(-6); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Fatalf("Read(-6) beyond history: got %v want ErrOffsetOutOfRange", err)
	}
}

func TestReadNegativeOnFullRingFails(t *testing.T) {
	r, err := NewRing(3)
	if err != nil {
		t.Fatal(err)
	}

	_ = r.WriteBlock([]float64{1, 2, 3})
	if _, err := r.Read(-1); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Fatalf("Read(-1) on full ring: got %v want ErrOffsetOutOfRange", err)
	}
}

// --- index manipulation ---

func TestSetIndices(t *testing.T) {
	r, err := NewRing(5)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.SetWriteIndex(3); err != nil {
		t.Fatal(err)
	}
	if r.Buffered() != 3 {
		t.Fatalf("Buffered after SetWriteIndex(3): got %d want 3", r.Buffered())
	}
	r.Put(9)
	if r.WriteIndex() != 3 {
		t.Fatalf("Put advanced write index to %d", r.WriteIndex())
	}
	if err := r.SetReadIndex(3); err != nil {
		t.Fatal(err)
	}
	if v := r.Peek(3); v != 9 {
		t.Fatalf("Peek(3): got %v want 9", v)
	}

	for _, idx := range []int{-1, 5} {
		if err := r.SetWriteIndex(idx); !errors.Is(err, ErrOffsetOutOfRange) {
			t.Fatalf("SetWriteIndex(%d): got %v", idx, err)
		}
		if err := r.SetReadIndex(idx); !errors.Is(err, ErrOffsetOutOfRange) {
			t.Fatalf("SetReadIndex(%d): got %v", idx, err)
		}
	}
}

func TestPeekWraps(t *testing.T) {
	r, err := NewRing(4)
	if err != nil {
		t.Fatal(err)
	}

	_ = r.WriteBlock([]float64{1, 2, 3, 4})
	if got := r.Peek(5); got != 2 {
		t.Fatalf("Peek(5): got %v want 2", got)
	}
	if got := r.Peek(-1); got != 4 {
		t.Fatalf("Peek(-1): got %v want 4", got)
	}
}

func TestReset(t *testing.T) {
	r, err := NewRing(4)
	if err != nil {
		t.Fatal(err)
	}

	_ = r.WriteBlock([]float64{1, 2, 3, 4})
	_, _ = r.ReadAdvance()
	r.Reset()

	if r.Buffered() != 0 || r.Full() || r.ReadIndex() != 0 || r.WriteIndex() != 0 {
		t.Fatalf("after reset: buffered=%d full=%v read=%d write=%d",
			r.Buffered(), r.Full(), r.ReadIndex(), r.WriteIndex())
	}
	for i := 0; i < r.Len(); i++ {
		if got := r.Peek(i); got != 0 {
			t.Fatalf("after reset Peek(%d): got %v want 0", i, got)
		}
	}
}

func TestReadAllocsZero(t *testing.T) {
	r, err := NewRing(32)
	if err != nil {
		t.Fatal(err)
	}

	allocs := testing.AllocsPerRun(100, func() {
		_ = r.Write(1)
		_, _ = r.Read(-0.5)
		_, _ = r.ReadAdvance()
	})
	if allocs != 0 {
		t.Fatalf("steady-state path allocated %v times per run", allocs)
	}
}
