package columnar

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// ErrUnsupportedType is returned when a data type has no storage
// [Category].
var ErrUnsupportedType = errors.New("unsupported data type")

// Category classifies how elements of a data type are physically stored.
// Compute kernels pick a code path once per call based on the category.
type Category int

const (
	// CategoryInvalid is the zero value and never returned by CategoryOf
	// without an error.
	CategoryInvalid Category = iota

	// CategoryScalar covers types where an element is produced by a simple
	// positional accessor: fixed-width primitives, booleans, nulls and
	// offset-encoded binary and strings.
	CategoryScalar

	// CategoryView covers view-encoded variable-length types, where each
	// element is a 16-byte descriptor referencing one of several data
	// buffers.
	CategoryView

	// CategoryStruct covers struct-of-columns types.
	CategoryStruct

	// CategoryList covers variable-length list types.
	CategoryList

	// CategoryFixedSizeList covers fixed-size list types.
	CategoryFixedSizeList
)

var categoryNames = [...]string{
	CategoryInvalid:       "invalid",
	CategoryScalar:        "scalar",
	CategoryView:          "view",
	CategoryStruct:        "struct",
	CategoryList:          "list",
	CategoryFixedSizeList: "fixed_size_list",
}

// String returns the name of c.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Nested reports whether elements of c hold child arrays.
func (c Category) Nested() bool {
	return c == CategoryStruct || c == CategoryList || c == CategoryFixedSizeList
}

// CategoryOf returns the storage category of dt. CategoryOf returns an error
// wrapping [ErrUnsupportedType] for dictionary, union, map, list-view,
// run-end encoded and extension types.
func CategoryOf(dt arrow.DataType) (Category, error) {
	switch dt.ID() {
	case arrow.NULL, arrow.BOOL,
		arrow.UINT8, arrow.INT8, arrow.UINT16, arrow.INT16,
		arrow.UINT32, arrow.INT32, arrow.UINT64, arrow.INT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64,
		arrow.DATE32, arrow.DATE64, arrow.TIME32, arrow.TIME64,
		arrow.TIMESTAMP, arrow.DURATION,
		arrow.INTERVAL_MONTHS, arrow.INTERVAL_DAY_TIME, arrow.INTERVAL_MONTH_DAY_NANO,
		arrow.DECIMAL128, arrow.DECIMAL256, arrow.FIXED_SIZE_BINARY,
		arrow.BINARY, arrow.STRING, arrow.LARGE_BINARY, arrow.LARGE_STRING:
		return CategoryScalar, nil

	case arrow.BINARY_VIEW, arrow.STRING_VIEW:
		return CategoryView, nil

	case arrow.STRUCT:
		return CategoryStruct, nil

	case arrow.LIST, arrow.LARGE_LIST:
		return CategoryList, nil

	case arrow.FIXED_SIZE_LIST:
		return CategoryFixedSizeList, nil

	default:
		return CategoryInvalid, fmt.Errorf("%w: %s", ErrUnsupportedType, dt)
	}
}
