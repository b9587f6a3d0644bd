package memory

import (
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Bitmap is a growable sequence of bits stored in an Arrow-compatible layout
// (least-significant bit first). Bitmaps are used for validity bitmaps and
// boolean values of columnar arrays.
//
// The zero value is an empty bitmap that allocates from
// [memory.DefaultAllocator] on first growth. Bitmaps must be released with
// [Bitmap.Release] once they are no longer needed.
type Bitmap struct {
	alloc memory.Allocator
	buf   *memory.Buffer
	len   int
}

// NewBitmap creates a new Bitmap with room for at least n bits, allocating
// from alloc. If alloc is nil, [memory.DefaultAllocator] is used.
func NewBitmap(alloc memory.Allocator, n int) Bitmap {
	bmap := Bitmap{alloc: alloc}
	bmap.Grow(n)
	return bmap
}

// Len returns the number of bits in bmap.
func (bmap *Bitmap) Len() int { return bmap.len }

// Cap returns how many bits bmap can hold without reallocating.
func (bmap *Bitmap) Cap() int {
	if bmap.buf == nil {
		return 0
	}
	return bmap.buf.Len() * 8
}

// Grow ensures bmap has room for at least n more bits.
func (bmap *Bitmap) Grow(n int) {
	if n <= 0 {
		return
	}
	bmap.reserve(bmap.len + n)
}

func (bmap *Bitmap) reserve(nbits int) {
	want := int(bitutil.BytesForBits(int64(nbits)))

	if bmap.buf == nil {
		if bmap.alloc == nil {
			bmap.alloc = memory.DefaultAllocator
		}
		bmap.buf = memory.NewResizableBuffer(bmap.alloc)
	}

	have := bmap.buf.Len()
	if want <= have {
		return
	}

	// Double the capacity to amortize appends.
	want = max(want, have*2)
	bmap.buf.Resize(want)

	// Allocators are not required to zero new memory.
	clear(bmap.buf.Bytes()[have:])
}

// Resize changes the length of bmap to n. New bits are unset.
func (bmap *Bitmap) Resize(n int) {
	if n > bmap.len {
		bmap.reserve(n)
	} else if bmap.buf != nil {
		// Clear truncated bits so a later Resize observes zeros.
		bitutil.SetBitsTo(bmap.buf.Bytes(), int64(n), int64(bmap.len-n), false)
	}
	bmap.len = n
}

// Append appends a single bit to bmap.
func (bmap *Bitmap) Append(value bool) {
	bmap.Grow(1)
	bitutil.SetBitTo(bmap.buf.Bytes(), bmap.len, value)
	bmap.len++
}

// AppendUnsafe appends a bit without checking capacity. The caller must
// have called [Bitmap.Grow] beforehand.
func (bmap *Bitmap) AppendUnsafe(value bool) {
	bitutil.SetBitTo(bmap.buf.Bytes(), bmap.len, value)
	bmap.len++
}

// AppendCount appends value n times.
func (bmap *Bitmap) AppendCount(value bool, n int) {
	if n <= 0 {
		return
	}
	bmap.Grow(n)
	bitutil.SetBitsTo(bmap.buf.Bytes(), int64(bmap.len), int64(n), value)
	bmap.len += n
}

// AppendValues appends each of values to bmap.
func (bmap *Bitmap) AppendValues(values ...bool) {
	bmap.Grow(len(values))
	for _, v := range values {
		bmap.AppendUnsafe(v)
	}
}

// Set sets the bit at index i to value. Set panics if i is out of range.
func (bmap *Bitmap) Set(i int, value bool) {
	if i < 0 || i >= bmap.len {
		panic("memory.Bitmap: index out of range")
	}
	bitutil.SetBitTo(bmap.buf.Bytes(), i, value)
}

// Get returns the bit at index i.
func (bmap *Bitmap) Get(i int) bool {
	if i < 0 || i >= bmap.len {
		panic("memory.Bitmap: index out of range")
	}
	return bitutil.BitIsSet(bmap.buf.Bytes(), i)
}

// SetCount returns the number of set bits in bmap.
func (bmap *Bitmap) SetCount() int {
	if bmap.len == 0 {
		return 0
	}
	return bitutil.CountSetBits(bmap.buf.Bytes(), 0, bmap.len)
}

// Bytes returns the packed bytes backing bmap, trimmed to the bytes needed
// for Len bits.
func (bmap *Bitmap) Bytes() []byte {
	if bmap.buf == nil {
		return nil
	}
	return bmap.buf.Bytes()[:bitutil.BytesForBits(int64(bmap.len))]
}

// Buffer returns the Arrow buffer backing bmap, or nil if bmap never
// allocated. The buffer is owned by bmap; callers that hand it to an Arrow
// array (which retains its buffers) must still call [Bitmap.Release].
func (bmap *Bitmap) Buffer() *memory.Buffer { return bmap.buf }

// Release releases the memory held by bmap and resets it to empty.
func (bmap *Bitmap) Release() {
	if bmap.buf != nil {
		bmap.buf.Release()
	}
	bmap.buf = nil
	bmap.len = 0
}

// Word32 loads up to 32 bits from the packed bitmap, starting at bit offset.
// Only the first n bits are kept; the remaining high bits of the result are
// zero. Bytes past the end of bitmap read as zero.
func Word32(bitmap []byte, offset, n int) uint32 {
	if n <= 0 {
		return 0
	}
	n = min(n, 32)

	first := offset / 8

	var w uint64
	for i := 0; i < 5 && first+i < len(bitmap); i++ {
		w |= uint64(bitmap[first+i]) << (8 * i)
	}
	w >>= uint(offset % 8)

	return uint32(w & (uint64(1)<<n - 1))
}
