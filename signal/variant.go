package signal

import (
	"errors"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

// ErrTypeMismatch is returned when a variant is accessed or combined as a
// kind it does not hold.
var ErrTypeMismatch = errors.New("variant type mismatch")

// Kind identifies the element type held by a Variant.
type Kind int

const (
	// KindEmpty is a variant without payload.
	KindEmpty Kind = iota
	// KindFloat64 holds []float64.
	KindFloat64
	// KindFloat32 holds []float32.
	KindFloat32
	// KindComplex128 holds []complex128.
	KindComplex128
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindFloat64:
		return "float64"
	case KindFloat32:
		return "float32"
	case KindComplex128:
		return "complex128"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Variant is a tagged numeric payload. The zero value is empty.
type Variant struct {
	kind Kind
	f64  []float64
	f32  []float32
	c128 []complex128
}

// Float64s wraps samples into a variant. Samples are not copied.
func Float64s(samples []float64) Variant {
	return Variant{kind: KindFloat64, f64: samples}
}

// Float32s wraps samples into a variant. Samples are not copied.
func Float32s(samples []float32) Variant {
	return Variant{kind: KindFloat32, f32: samples}
}

// Complex128s wraps samples into a variant. Samples are not copied.
func Complex128s(samples []complex128) Variant {
	return Variant{kind: KindComplex128, c128: samples}
}

// Kind returns the held element type.
func (v Variant) Kind() Kind {
	return v.kind
}

// IsEmpty reports whether the variant holds no samples.
func (v Variant) IsEmpty() bool {
	return v.Len() == 0
}

// Len returns number of samples.
func (v Variant) Len() int {
	switch v.kind {
	case KindFloat64:
		return len(v.f64)
	case KindFloat32:
		return len(v.f32)
	case KindComplex128:
		return len(v.c128)
	}
	return 0
}

// Float64 returns the held samples if the variant is KindFloat64.
func (v Variant) Float64() ([]float64, error) {
	if v.kind != KindFloat64 {
		return nil, fmt.Errorf("%w: want %v, have %v", ErrTypeMismatch, KindFloat64, v.kind)
	}
	return v.f64, nil
}

// Float32 returns the held samples if the variant is KindFloat32.
func (v Variant) Float32() ([]float32, error) {
	if v.kind != KindFloat32 {
		return nil, fmt.Errorf("%w: want %v, have %v", ErrTypeMismatch, KindFloat32, v.kind)
	}
	return v.f32, nil
}

// Complex128 returns the held samples if the variant is KindComplex128.
func (v Variant) Complex128() ([]complex128, error) {
	if v.kind != KindComplex128 {
		return nil, fmt.Errorf("%w: want %v, have %v", ErrTypeMismatch, KindComplex128, v.kind)
	}
	return v.c128, nil
}

// AsFloat64 returns a float64 copy of the samples. Float32 samples are
// widened and complex samples are reduced to their magnitude.
func (v Variant) AsFloat64() []float64 {
	switch v.kind {
	case KindFloat64:
		return append([]float64(nil), v.f64...)
	case KindFloat32:
		result := make([]float64, len(v.f32))
		for i, s := range v.f32 {
			result[i] = float64(s)
		}
		return result
	case KindComplex128:
		result := make([]float64, len(v.c128))
		for i, s := range v.c128 {
			result[i] = cmplx.Abs(s)
		}
		return result
	}
	return nil
}

// Clone returns a deep copy.
func (v Variant) Clone() Variant {
	switch v.kind {
	case KindFloat64:
		return Float64s(append([]float64(nil), v.f64...))
	case KindFloat32:
		return Float32s(append([]float32(nil), v.f32...))
	case KindComplex128:
		return Complex128s(append([]complex128(nil), v.c128...))
	}
	return Variant{}
}

// Append returns a new variant with samples of other appended. An empty
// receiver takes the kind of other. Kinds must match otherwise.
func (v Variant) Append(other Variant) (Variant, error) {
	if v.kind == KindEmpty {
		return other.Clone(), nil
	}
	if other.kind == KindEmpty {
		return v.Clone(), nil
	}
	if v.kind != other.kind {
		return v, fmt.Errorf("%w: cannot append %v to %v", ErrTypeMismatch, other.kind, v.kind)
	}
	switch v.kind {
	case KindFloat64:
		result := make([]float64, 0, len(v.f64)+len(other.f64))
		return Float64s(append(append(result, v.f64...), other.f64...)), nil
	case KindFloat32:
		result := make([]float32, 0, len(v.f32)+len(other.f32))
		return Float32s(append(append(result, v.f32...), other.f32...)), nil
	default:
		result := make([]complex128, 0, len(v.c128)+len(other.c128))
		return Complex128s(append(append(result, v.c128...), other.c128...)), nil
	}
}

// Slice returns a copy of samples in range [start, end). Bounds are
// clamped to the variant length.
func (v Variant) Slice(start, end int) Variant {
	n := v.Len()
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start >= end {
		if v.kind == KindEmpty {
			return v
		}
		return Variant{kind: v.kind}
	}
	switch v.kind {
	case KindFloat64:
		return Float64s(append([]float64(nil), v.f64[start:end]...))
	case KindFloat32:
		return Float32s(append([]float32(nil), v.f32[start:end]...))
	default:
		return Complex128s(append([]complex128(nil), v.c128[start:end]...))
	}
}

// Tail returns a copy of the last n samples.
func (v Variant) Tail(n int) Variant {
	return v.Slice(v.Len()-n, v.Len())
}

// Energy returns the sum of squared magnitudes.
func (v Variant) Energy() float64 {
	s := v.AsFloat64()
	return floats.Dot(s, s)
}
