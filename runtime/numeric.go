package runtime

import (
	"math"
	"math/big"
	"math/bits"
)

// Integer arithmetic promotes to *big.Int on overflow and demotes back
// when the result fits. Division and modulo follow the floor rule.

func toBig(v Value) *big.Int {
	switch x := v.(type) {
	case Integer:
		return big.NewInt(int64(x))
	case *big.Int:
		return x
	}
	return nil
}

// NormalizeBig returns b as an Integer when it fits in 64 bits.
func NormalizeBig(b *big.Int) Value {
	if b.IsInt64() {
		return Integer(b.Int64())
	}
	return b
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case Integer:
		return float64(x), true
	case Float:
		return float64(x), true
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, true
	}
	return 0, false
}

// FloorDiv divides with rounding toward negative infinity.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// FloorMod is the modulo matching FloorDiv.
func FloorMod(a, b int64) int64 {
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

func addOverflows(a, b int64) bool {
	s := a + b
	return (a >= 0) == (b >= 0) && (s >= 0) != (a >= 0)
}

func subOverflows(a, b int64) bool {
	d := a - b
	return (a >= 0) != (b >= 0) && (d >= 0) != (a >= 0)
}

func mulOverflows(a, b int64) bool {
	if a == 0 || b == 0 {
		return false
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return true
	}
	hi, lo := bits.Mul64(uint64(absInt(a)), uint64(absInt(b)))
	if hi != 0 {
		return true
	}
	if (a < 0) != (b < 0) {
		return lo > 1<<63
	}
	return lo > math.MaxInt64
}

func absInt(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}

// IntegerOverflows reports whether op applied to a and b leaves the
// 64-bit range. Division overflows only for MinInt64 / -1.
func IntegerOverflows(op string, a, b int64) bool {
	switch op {
	case "+":
		return addOverflows(a, b)
	case "-":
		return subOverflows(a, b)
	case "*":
		return mulOverflows(a, b)
	case "/", "%":
		return a == math.MinInt64 && b == -1
	}
	return false
}

func (rt *Runtime) integerArith(op string, self, other Value) (Value, error) {
	if _, isFloat := other.(Float); isFloat {
		f, _ := toFloat(self)
		return rt.floatArith(op, Float(f), other)
	}
	a, aSmall := self.(Integer)
	b, bSmall := other.(Integer)
	if toBig(other) == nil {
		return nil, rt.TypeError(other, "Integer")
	}
	if (op == "/" || op == "%") && toBig(other).Sign() == 0 {
		return nil, rt.NewError(rt.ZeroDivisionError, "divided by 0")
	}
	if aSmall && bSmall && !IntegerOverflows(op, int64(a), int64(b)) {
		switch op {
		case "+":
			return a + b, nil
		case "-":
			return a - b, nil
		case "*":
			return a * b, nil
		case "/":
			return Integer(FloorDiv(int64(a), int64(b))), nil
		case "%":
			return Integer(FloorMod(int64(a), int64(b))), nil
		}
	}
	x, y := toBig(self), toBig(other)
	r := new(big.Int)
	switch op {
	case "+":
		r.Add(x, y)
	case "-":
		r.Sub(x, y)
	case "*":
		r.Mul(x, y)
	case "/", "%":
		q, m := new(big.Int), new(big.Int)
		q.DivMod(x, y, m)
		// big.Int.DivMod is Euclidean; adjust to floor for negative divisors.
		if m.Sign() != 0 && y.Sign() < 0 {
			q.Add(q, big.NewInt(1))
			m.Add(m, y)
		}
		if op == "/" {
			r = q
		} else {
			r = m
		}
	}
	return NormalizeBig(r), nil
}

func (rt *Runtime) floatArith(op string, self, other Value) (Value, error) {
	a, _ := toFloat(self)
	b, ok := toFloat(other)
	if !ok {
		return nil, rt.TypeError(other, "Float")
	}
	switch op {
	case "+":
		return Float(a + b), nil
	case "-":
		return Float(a - b), nil
	case "*":
		return Float(a * b), nil
	case "/":
		return Float(a / b), nil
	case "%":
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return Float(m), nil
	}
	return nil, rt.NoMethodError(op, self)
}

func (rt *Runtime) compare(self, other Value) (int, error) {
	if x, ok := self.(Integer); ok {
		if y, ok := other.(Integer); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
	}
	a, aok := toFloat(self)
	b, bok := toFloat(other)
	if !aok || !bok {
		return 0, rt.NewError(rt.ArgumentErrorClass, "comparison of %s with %s failed", rt.ClassOf(self).Name, rt.ClassOf(other).Name)
	}
	switch {
	case a < b:
		return -1, nil
	case a > b:
		return 1, nil
	}
	return 0, nil
}
