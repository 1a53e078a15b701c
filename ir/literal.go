package ir

import (
	"math/big"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/chazu/garnet/runtime"
)

// ---------------------------------------------------------------------------
// Numeric literals
// ---------------------------------------------------------------------------

// Fixnum is a 64-bit integer literal.
type Fixnum struct {
	base
	Value int64
}

// NewFixnum creates a Fixnum literal.
func NewFixnum(v int64) *Fixnum { return &Fixnum{Value: v} }

func (f *Fixnum) Kind() OperandKind                       { return KindFixnum }
func (f *Fixnum) IsConstant() bool                        { return true }
func (f *Fixnum) Simplify(ValueMap) Operand               { return f }
func (f *Fixnum) CloneForInlining(InlinerInfo) Operand    { return f }
func (f *Fixnum) String() string                          { return strconv.FormatInt(f.Value, 10) }
func (f *Fixnum) Retrieve(Context) (runtime.Value, error) { return runtime.Integer(f.Value), nil }

// Bignum is an arbitrary-precision integer literal.
type Bignum struct {
	base
	Value *big.Int
}

// NewBignum creates a Bignum literal. The value must not be mutated later.
func NewBignum(v *big.Int) *Bignum { return &Bignum{Value: v} }

func (b *Bignum) Kind() OperandKind                    { return KindBignum }
func (b *Bignum) IsConstant() bool                     { return true }
func (b *Bignum) Simplify(ValueMap) Operand            { return b }
func (b *Bignum) CloneForInlining(InlinerInfo) Operand { return b }
func (b *Bignum) String() string                       { return b.Value.String() }

func (b *Bignum) Retrieve(Context) (runtime.Value, error) {
	return new(big.Int).Set(b.Value), nil
}

// Float is a double literal.
type Float struct {
	base
	Value float64
}

// NewFloat creates a Float literal.
func NewFloat(v float64) *Float { return &Float{Value: v} }

func (f *Float) Kind() OperandKind                       { return KindFloat }
func (f *Float) IsConstant() bool                        { return true }
func (f *Float) Simplify(ValueMap) Operand               { return f }
func (f *Float) CloneForInlining(InlinerInfo) Operand    { return f }
func (f *Float) Retrieve(Context) (runtime.Value, error) { return runtime.Float(f.Value), nil }

func (f *Float) String() string {
	s := strconv.FormatFloat(f.Value, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnI") {
		s += ".0"
	}
	return s
}

// ---------------------------------------------------------------------------
// Strings and symbols
// ---------------------------------------------------------------------------

// UTF8 is the default string encoding name.
const UTF8 = "UTF-8"

// StringLiteral is a byte sequence in a named encoding. The decoded text
// is computed on first use and cached.
type StringLiteral struct {
	base
	Bytes    []byte
	Encoding string

	once sync.Once
	text string
}

// NewString creates a UTF-8 string literal.
func NewString(s string) *StringLiteral {
	return &StringLiteral{Bytes: []byte(s), Encoding: UTF8}
}

// NewEncodedString creates a literal from raw bytes in encoding, an IANA
// name such as "ISO-8859-1" or "Shift_JIS".
func NewEncodedString(b []byte, encoding string) *StringLiteral {
	if encoding == "" {
		encoding = UTF8
	}
	return &StringLiteral{Bytes: b, Encoding: encoding}
}

func (s *StringLiteral) Kind() OperandKind                    { return KindString }
func (s *StringLiteral) IsConstant() bool                     { return true }
func (s *StringLiteral) Simplify(ValueMap) Operand            { return s }
func (s *StringLiteral) CloneForInlining(InlinerInfo) Operand { return s }
func (s *StringLiteral) String() string                       { return strconv.Quote(s.Text()) }

// Text returns the literal decoded to UTF-8. Undecodable input and unknown
// encodings fall back to the raw bytes.
func (s *StringLiteral) Text() string {
	s.once.Do(func() {
		s.text = decode(s.Bytes, s.Encoding)
	})
	return s.text
}

func decode(b []byte, encoding string) string {
	if strings.EqualFold(encoding, UTF8) || encoding == "" {
		return string(b)
	}
	enc, err := ianaindex.IANA.Encoding(encoding)
	if err != nil || enc == nil {
		return string(b)
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// Retrieve returns a fresh mutable string each time.
func (s *StringLiteral) Retrieve(Context) (runtime.Value, error) {
	b := make([]byte, len(s.Bytes))
	copy(b, s.Bytes)
	return &runtime.String{Bytes: b, Encoding: s.Encoding}, nil
}

// Symbol is a symbol literal.
type Symbol struct {
	base
	Name string
}

// NewSymbol creates a Symbol literal.
func NewSymbol(name string) *Symbol { return &Symbol{Name: name} }

func (s *Symbol) Kind() OperandKind                       { return KindSymbol }
func (s *Symbol) IsConstant() bool                        { return true }
func (s *Symbol) Simplify(ValueMap) Operand               { return s }
func (s *Symbol) CloneForInlining(InlinerInfo) Operand    { return s }
func (s *Symbol) String() string                          { return ":" + s.Name }
func (s *Symbol) Retrieve(Context) (runtime.Value, error) { return runtime.Symbol(s.Name), nil }

// ---------------------------------------------------------------------------
// Singletons
// ---------------------------------------------------------------------------

// Boolean is the true or false literal. Use True and False.
type Boolean struct {
	base
	Value bool
}

var (
	True  = &Boolean{Value: true}
	False = &Boolean{Value: false}
)

// NewBoolean returns True or False.
func NewBoolean(b bool) *Boolean {
	if b {
		return True
	}
	return False
}

func (b *Boolean) Kind() OperandKind                       { return KindBoolean }
func (b *Boolean) IsConstant() bool                        { return true }
func (b *Boolean) Simplify(ValueMap) Operand               { return b }
func (b *Boolean) CloneForInlining(InlinerInfo) Operand    { return b }
func (b *Boolean) String() string                          { return strconv.FormatBool(b.Value) }
func (b *Boolean) Retrieve(Context) (runtime.Value, error) { return runtime.Bool(b.Value), nil }

// NilLiteral is the nil constant. Use Nil.
type NilLiteral struct{ base }

// Nil is the nil constant.
var Nil = &NilLiteral{}

func (n *NilLiteral) Kind() OperandKind                       { return KindNil }
func (n *NilLiteral) IsConstant() bool                        { return true }
func (n *NilLiteral) Simplify(ValueMap) Operand               { return n }
func (n *NilLiteral) CloneForInlining(InlinerInfo) Operand    { return n }
func (n *NilLiteral) String() string                          { return "nil" }
func (n *NilLiteral) Retrieve(Context) (runtime.Value, error) { return runtime.Nil, nil }

// UndefinedValue marks an absent optional argument. Use Undefined.
type UndefinedValue struct{ base }

// Undefined is the absent-argument marker.
var Undefined = &UndefinedValue{}

func (u *UndefinedValue) Kind() OperandKind                       { return KindUndefined }
func (u *UndefinedValue) IsConstant() bool                        { return true }
func (u *UndefinedValue) Simplify(ValueMap) Operand               { return u }
func (u *UndefinedValue) CloneForInlining(InlinerInfo) Operand    { return u }
func (u *UndefinedValue) String() string                          { return "undefined" }
func (u *UndefinedValue) Retrieve(Context) (runtime.Value, error) { return runtime.Undefined, nil }

// UnexecutableNilValue is the value of code that follows a return. It
// can be propagated and simplified but never evaluated.
type UnexecutableNilValue struct{ base }

// UnexecutableNil is the dead-code value.
var UnexecutableNil = &UnexecutableNilValue{}

func (u *UnexecutableNilValue) Kind() OperandKind                    { return KindUnexecutableNil }
func (u *UnexecutableNilValue) IsConstant() bool                     { return true }
func (u *UnexecutableNilValue) Simplify(ValueMap) Operand            { return u }
func (u *UnexecutableNilValue) CloneForInlining(InlinerInfo) Operand { return u }
func (u *UnexecutableNilValue) String() string                       { return "unexecutable_nil" }

func (u *UnexecutableNilValue) Retrieve(Context) (runtime.Value, error) {
	Internal(u, "unexecutable nil evaluated")
	return nil, nil
}
