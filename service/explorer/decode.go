package explorer

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
)

// The indexers serialize 64-bit and larger integers inconsistently: the
// archive sends JSON numbers, postgraphile sends strings. These accept both.

type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", b, err)
	}
	*f = flexInt(v)
	return nil
}

type flexAmount struct {
	v *big.Int
}

func (f *flexAmount) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		f.v = new(big.Int)
		return nil
	}
	v, ok := new(big.Int).SetString(string(b), 10)
	if !ok {
		return fmt.Errorf("invalid amount %s", b)
	}
	f.v = v
	return nil
}

func (f flexAmount) Int() *big.Int {
	if f.v == nil {
		return new(big.Int)
	}
	return f.v
}
