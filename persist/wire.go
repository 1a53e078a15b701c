package persist

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("persist: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

type document struct {
	Version uint8       `cbor:"1,keyasint"`
	Root    scopeRecord `cbor:"2,keyasint"`
}

type scopeRecord struct {
	ID        []byte        `cbor:"1,keyasint,omitempty"`
	Kind      uint8         `cbor:"2,keyasint"`
	Name      string        `cbor:"3,keyasint"`
	Arity     int           `cbor:"4,keyasint"`
	ClosureID int           `cbor:"5,keyasint,omitempty"`
	Locals    []string      `cbor:"6,keyasint,omitempty"`
	Temps     []tempRecord  `cbor:"7,keyasint,omitempty"`
	Children  []scopeRecord `cbor:"8,keyasint,omitempty"`
	Instrs    []instrRecord `cbor:"9,keyasint,omitempty"`
}

// tempRecord is one temporary slot: a plain temporary, or a renamed
// variable with its prefix.
type tempRecord struct {
	Renamed bool   `cbor:"1,keyasint,omitempty"`
	Prefix  string `cbor:"2,keyasint,omitempty"`
}

type instrRecord struct {
	Op    byte            `cbor:"1,keyasint"`
	Dest  *operandRecord  `cbor:"2,keyasint,omitempty"`
	Ops   []operandRecord `cbor:"3,keyasint,omitempty"`
	Label string          `cbor:"4,keyasint,omitempty"`
	Flag  bool            `cbor:"5,keyasint,omitempty"`
	Index int             `cbor:"6,keyasint,omitempty"`
}

// operandRecord is the union of all operand shapes. Floats travel as
// their IEEE 754 bits in Int so that NaN payloads and negative zero
// survive.
type operandRecord struct {
	Tag   byte            `cbor:"1,keyasint"`
	Int   int64           `cbor:"2,keyasint,omitempty"`
	Str   string          `cbor:"3,keyasint,omitempty"`
	Bytes []byte          `cbor:"4,keyasint,omitempty"`
	Ops   []operandRecord `cbor:"5,keyasint,omitempty"`
	Path  []int           `cbor:"6,keyasint,omitempty"`
	Flag  bool            `cbor:"7,keyasint,omitempty"`
}
