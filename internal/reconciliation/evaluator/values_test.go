package evaluator

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDecimal(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
		ok   bool
	}{
		{name: "Int", in: 42, want: "42", ok: true},
		{name: "NegativeInt64", in: int64(-7), want: "-7", ok: true},
		{name: "Float", in: 120.5, want: "120.5", ok: true},
		{name: "JSONNumber", in: json.Number("99.95"), want: "99.95", ok: true},
		{name: "PaddedString", in: " 10.25 ", want: "10.25", ok: true},
		{name: "MaxUint64", in: uint64(math.MaxUint64), want: "18446744073709551615", ok: true},
		{name: "MaxUint", in: uint(math.MaxUint), want: "18446744073709551615", ok: true},
		{name: "Uint32", in: uint32(math.MaxUint32), want: "4294967295", ok: true},
		{name: "NotNumeric", in: "abc", ok: false},
		{name: "Bool", in: true, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toDecimal(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}
