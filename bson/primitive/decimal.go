// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package primitive

import (
	"fmt"
	"math/big"
	"strings"
)

// Decimal128 is the IEEE 754-2008 128-bit decimal floating point value used
// by BSON's decimal128 type. It is stored as the two 64-bit halves of its
// 16-byte little-endian wire encoding, high half first.
type Decimal128 struct {
	hi, lo uint64
}

// NewDecimal128 constructs a Decimal128 from its raw high/low 64-bit halves,
// matching the layout produced by decoding the wire bytes directly.
func NewDecimal128(hi, lo uint64) Decimal128 {
	return Decimal128{hi: hi, lo: lo}
}

// GetBytes returns the high and low 64-bit halves of d.
func (d Decimal128) GetBytes() (uint64, uint64) {
	return d.hi, d.lo
}

const (
	d128ExponentBias = 6176
	d128MaxExponent  = 6144
	d128MinExponent  = -6176
	d128MaxDigits    = 34
)

var d128NegInf = Decimal128{hi: 0xF800000000000000, lo: 0}
var d128PosInf = Decimal128{hi: 0x7800000000000000, lo: 0}
var d128NaN = Decimal128{hi: 0x7C00000000000000, lo: 0}

// String returns the shortest decimal string that round-trips to d,
// following the same plain/scientific-notation rules as the canonical
// extended-JSON representation of decimal128.
func (d Decimal128) String() string {
	if d == d128NaN {
		return "NaN"
	}
	if d == d128PosInf {
		return "Infinity"
	}
	if d == d128NegInf {
		return "-Infinity"
	}

	negative := d.hi>>63 == 1

	var exponent int
	var coefficientHi uint64
	combo := (d.hi >> 58) & 0x1F
	if combo>>3 == 3 {
		// Combination field starts with 11: special encoding, exponent in
		// bits 15-29 and an implicit leading coefficient digit of 8 or 9.
		exponent = int((d.hi>>47)&0x3FFF) - d128ExponentBias
		coefficientHi = (d.hi & 0x7FFFFFFFFFFF) | 0x0008000000000000
	} else {
		exponent = int((d.hi>>49)&0x3FFF) - d128ExponentBias
		coefficientHi = d.hi & 0x1FFFFFFFFFFFF
	}

	coeff := new(big.Int).Lsh(new(big.Int).SetUint64(coefficientHi), 64)
	coeff.Or(coeff, new(big.Int).SetUint64(d.lo))

	digits := coeff.String()
	if coeff.Sign() == 0 {
		digits = "0"
	}

	return formatDecimalDigits(negative, digits, exponent)
}

// formatDecimalDigits renders a coefficient digit string and a base-10
// exponent using the same adjusted-exponent threshold rules as the decimal128
// extended-JSON spec: scientific notation once the adjusted exponent falls
// outside [-6, digits-1].
func formatDecimalDigits(negative bool, digits string, exponent int) string {
	var sb strings.Builder
	if negative {
		sb.WriteByte('-')
	}

	nDigits := len(digits)
	adjustedExponent := exponent + nDigits - 1

	if exponent > 0 || adjustedExponent < -6 {
		// Scientific notation.
		sb.WriteByte(digits[0])
		if nDigits > 1 {
			sb.WriteByte('.')
			sb.WriteString(digits[1:])
		}
		fmt.Fprintf(&sb, "E%+d", adjustedExponent)
		return sb.String()
	}

	if exponent == 0 {
		sb.WriteString(digits)
		return sb.String()
	}

	// exponent < 0 and adjustedExponent >= -6: plain notation.
	decimalPoint := nDigits + exponent
	switch {
	case decimalPoint <= 0:
		sb.WriteString("0.")
		sb.WriteString(strings.Repeat("0", -decimalPoint))
		sb.WriteString(digits)
	default:
		sb.WriteString(digits[:decimalPoint])
		sb.WriteByte('.')
		sb.WriteString(digits[decimalPoint:])
	}
	return sb.String()
}

// IsNaN reports whether d is the decimal128 NaN value.
func (d Decimal128) IsNaN() bool { return d == d128NaN }

// ParseDecimal128 parses s into a Decimal128. It supports plain and
// scientific notation and the NaN/Infinity spellings.
func ParseDecimal128(s string) (Decimal128, error) {
	orig := s
	switch strings.ToLower(s) {
	case "nan":
		return d128NaN, nil
	case "inf", "infinity", "+inf", "+infinity":
		return d128PosInf, nil
	case "-inf", "-infinity":
		return d128NegInf, nil
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if s == "" {
		return Decimal128{}, fmt.Errorf("invalid decimal128 string %q", orig)
	}

	exponent := 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		expPart := s[i+1:]
		n, err := fmt.Sscanf(expPart, "%d", &exponent)
		if n != 1 || err != nil {
			return Decimal128{}, fmt.Errorf("invalid decimal128 exponent in %q", orig)
		}
		s = s[:i]
	}

	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		fracLen := len(s) - dot - 1
		s = s[:dot] + s[dot+1:]
		exponent -= fracLen
	}
	if s == "" {
		s = "0"
	}

	coeff, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Decimal128{}, fmt.Errorf("invalid decimal128 coefficient in %q", orig)
	}

	return newDecimal128FromParts(negative, coeff, exponent)
}

func newDecimal128FromParts(negative bool, coeff *big.Int, exponent int) (Decimal128, error) {
	if exponent > d128MaxExponent || exponent < d128MinExponent {
		return Decimal128{}, fmt.Errorf("decimal128 exponent %d out of range", exponent)
	}

	mask := new(big.Int).Lsh(big.NewInt(1), 64)
	mask.Sub(mask, big.NewInt(1))
	lo := new(big.Int).And(coeff, mask)
	hi := new(big.Int).Rsh(coeff, 64)

	biasedExp := uint64(exponent + d128ExponentBias)

	var hiWord uint64
	if hi.BitLen() > 49 {
		// Coefficient needs the alternate "11" combination-field encoding.
		hiWord = 0x3<<61 | (biasedExp&0x3FFF)<<47 | (hi.Uint64() & 0x7FFFFFFFFFFF)
	} else {
		hiWord = (biasedExp & 0x3FFF) << 49
		hiWord |= hi.Uint64() & 0x1FFFFFFFFFFFF
	}
	if negative {
		hiWord |= 1 << 63
	}

	return Decimal128{hi: hiWord, lo: lo.Uint64()}, nil
}
