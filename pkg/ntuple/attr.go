package ntuple

import (
	"fmt"
	"math"

	"github.com/jittakal/ntuplestore/pkg/fieldstore"
)

// Number is the set of types an Attr can convert numeric fields to.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Attr declares a typed record attribute.
//
//	var Energy = ntuple.Attr[float32]{Name: "energy"}
//	e, err := Energy.Get(hit)
type Attr[T Number | ~string | ~bool] struct {
	Name string
}

// Get reads the attribute from r and converts it to T.
func (a Attr[T]) Get(r Record) (T, error) {
	var zero T
	v, err := r.Get(a.Name)
	if err != nil {
		return zero, err
	}
	out, ok := convert[T](v)
	if !ok {
		return zero, fmt.Errorf("%s: cannot convert %T to %T", fieldName(r.Prefix(), a.Name), v, zero)
	}
	return out, nil
}

func convert[T Number | ~string | ~bool](v any) (T, bool) {
	var zero T
	if out, ok := v.(T); ok {
		return out, true
	}
	switch p := any(&zero).(type) {
	case *string:
		if b, ok := v.([]byte); ok {
			*p = string(b)
			return zero, true
		}
		return zero, false
	case *bool:
		return zero, false
	}
	return convertNumber[T](v)
}

// convertNumber converts v to T only when the value is represented
// exactly: out-of-range integers, negative values for unsigned targets and
// fractional floats for integer targets are rejected.
func convertNumber[T any](v any) (T, bool) {
	var zero T
	p := any(&zero)
	switch x := v.(type) {
	case uint64:
		return zero, setUint(p, x)
	case uint:
		return zero, setUint(p, uint64(x))
	case float32:
		return zero, setFloat(p, float64(x))
	case float64:
		return zero, setFloat(p, x)
	}
	if n, ok := fieldstore.AsInt64(v); ok {
		return zero, setInt(p, n)
	}
	return zero, false
}

func setInt(p any, n int64) bool {
	switch x := p.(type) {
	case *int:
		if n < math.MinInt || n > math.MaxInt {
			return false
		}
		*x = int(n)
	case *int8:
		if n < math.MinInt8 || n > math.MaxInt8 {
			return false
		}
		*x = int8(n)
	case *int16:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return false
		}
		*x = int16(n)
	case *int32:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return false
		}
		*x = int32(n)
	case *int64:
		*x = n
	case *float32:
		*x = float32(n)
	case *float64:
		*x = float64(n)
	default:
		if n < 0 {
			return false
		}
		return setUint(p, uint64(n))
	}
	return true
}

func setUint(p any, u uint64) bool {
	switch x := p.(type) {
	case *uint:
		if u > math.MaxUint {
			return false
		}
		*x = uint(u)
	case *uint8:
		if u > math.MaxUint8 {
			return false
		}
		*x = uint8(u)
	case *uint16:
		if u > math.MaxUint16 {
			return false
		}
		*x = uint16(u)
	case *uint32:
		if u > math.MaxUint32 {
			return false
		}
		*x = uint32(u)
	case *uint64:
		*x = u
	case *float32:
		*x = float32(u)
	case *float64:
		*x = float64(u)
	default:
		if u > math.MaxInt64 {
			return false
		}
		return setInt(p, int64(u))
	}
	return true
}

// twoTo63 is the first float64 beyond the int64 range.
const twoTo63 = float64(1 << 63)

func setFloat(p any, f float64) bool {
	switch x := p.(type) {
	case *float32:
		if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return false
		}
		*x = float32(f)
		return true
	case *float64:
		*x = f
		return true
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return false
	}
	switch {
	case f >= -twoTo63 && f < twoTo63:
		return setInt(p, int64(f))
	case f >= twoTo63 && f < 2*twoTo63:
		return setUint(p, uint64(f))
	default:
		return false
	}
}
