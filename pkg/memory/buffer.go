package memory

import (
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/gather/pkg/memory/internal/unsafecast"
)

// Values returns elements [offset, offset+length) of buf as a slice of T.
// The slice aliases buf; it is only valid while buf is retained.
func Values[T any](buf *memory.Buffer, offset, length int) []T {
	if buf == nil || length == 0 {
		return nil
	}
	return unsafecast.Values[T](buf.Bytes(), offset, length)
}

// NewValuesBuffer allocates a buffer from alloc large enough for n values of
// T, returning the buffer and a slice of T aliasing it. The contents of the
// returned slice are unspecified.
//
// The caller owns the returned buffer and must release it.
func NewValuesBuffer[T any](alloc memory.Allocator, n int) (*memory.Buffer, []T) {
	buf := memory.NewResizableBuffer(alloc)
	buf.Resize(n * int(unsafecast.Sizeof[T]()))
	return buf, Values[T](buf, 0, n)
}

// BufferFrom wraps values in an Arrow buffer without copying. The buffer is
// not owned by any allocator; values must not be modified while the buffer
// is in use.
func BufferFrom[T any](values []T) *memory.Buffer {
	return memory.NewBufferBytes(unsafecast.Slice[T, byte](values))
}
