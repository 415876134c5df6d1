// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"time"

	"go.nodedb.dev/driver/bson/bsoncodec"
	"go.nodedb.dev/driver/bson/bsontype"
	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

func decodeIntoDocument(reg *bsoncodec.Registry, doc bsoncore.Document, rv reflect.Value) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		rv = rv.Elem()
	}

	if rv.Type() == tRaw {
		rv.Set(reflect.ValueOf(Raw(doc.Copy())))
		return nil
	}

	switch rv.Kind() {
	case reflect.Struct:
		return decodeStruct(reg, doc, rv)
	case reflect.Map:
		return decodeMap(reg, doc, rv)
	case reflect.Slice:
		if rv.Type() == tD {
			return decodeD(reg, doc, rv)
		}
		return fmt.Errorf("bson: cannot decode document into %s", rv.Type())
	case reflect.Interface:
		m := make(primitive.M)
		if err := decodeMap(reg, doc, reflect.ValueOf(m)); err != nil {
			return err
		}
		rv.Set(reflect.ValueOf(m))
		return nil
	default:
		return fmt.Errorf("bson: cannot decode document into %s", rv.Type())
	}
}

func decodeStruct(reg *bsoncodec.Registry, doc bsoncore.Document, rv reflect.Value) error {
	byName := map[string]structField{}
	for _, f := range structFields(rv.Type()) {
		byName[f.name] = f
	}
	elems, err := doc.Elements()
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, e := range elems {
		key, err := e.KeyErr()
		if err != nil {
			return err
		}
		if seen[key] {
			continue // first occurrence wins, per spec.md §3.
		}
		seen[key] = true
		f, ok := byName[key]
		if !ok {
			continue
		}
		val, err := e.ValueErr()
		if err != nil {
			return err
		}
		if err := decodeValue(reg, val, rv.Field(f.index)); err != nil {
			return fmt.Errorf("bson: decoding field %q: %w", key, err)
		}
	}
	return nil
}

func decodeMap(reg *bsoncodec.Registry, doc bsoncore.Document, rv reflect.Value) error {
	if rv.Kind() != reflect.Map {
		return fmt.Errorf("bson: decodeMap called with non-map %s", rv.Type())
	}
	if rv.IsNil() {
		rv.Set(reflect.MakeMap(rv.Type()))
	}
	elems, err := doc.Elements()
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, e := range elems {
		key, err := e.KeyErr()
		if err != nil {
			return err
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		val, err := e.ValueErr()
		if err != nil {
			return err
		}
		elemVal := reflect.New(rv.Type().Elem()).Elem()
		if err := decodeValue(reg, val, elemVal); err != nil {
			return fmt.Errorf("bson: decoding key %q: %w", key, err)
		}
		rv.SetMapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()), elemVal)
	}
	return nil
}

func decodeD(reg *bsoncodec.Registry, doc bsoncore.Document, rv reflect.Value) error {
	elems, err := doc.Elements()
	if err != nil {
		return err
	}
	d := make(primitive.D, 0, len(elems))
	for _, e := range elems {
		key, err := e.KeyErr()
		if err != nil {
			return err
		}
		val, err := e.ValueErr()
		if err != nil {
			return err
		}
		goVal, err := decodeToInterface(reg, val)
		if err != nil {
			return err
		}
		d = append(d, primitive.E{Key: key, Value: goVal})
	}
	rv.Set(reflect.ValueOf(d))
	return nil
}

// decodeToInterface decodes val into its natural Go representation, used
// when the destination is an interface{} or a primitive.D/M/A element.
func decodeToInterface(reg *bsoncodec.Registry, val bsoncore.Value) (interface{}, error) {
	switch val.Type {
	case bsontype.Double:
		return val.Double(), nil
	case bsontype.String:
		return val.StringValue(), nil
	case bsontype.EmbeddedDocument:
		m := make(primitive.M)
		if err := decodeMap(reg, val.Document(), reflect.ValueOf(m)); err != nil {
			return nil, err
		}
		return m, nil
	case bsontype.Array:
		vals, err := val.ArrayValue().Values()
		if err != nil {
			return nil, err
		}
		a := make(primitive.A, 0, len(vals))
		for _, v := range vals {
			gv, err := decodeToInterface(reg, v)
			if err != nil {
				return nil, err
			}
			a = append(a, gv)
		}
		return a, nil
	case bsontype.Binary:
		st, data := val.BinaryValue()
		cp := make([]byte, len(data))
		copy(cp, data)
		return primitive.Binary{Subtype: st, Data: cp}, nil
	case bsontype.Undefined:
		return primitive.Undefined{}, nil
	case bsontype.ObjectID:
		return primitive.ObjectID(val.ObjectID()), nil
	case bsontype.Boolean:
		return val.Boolean(), nil
	case bsontype.DateTime:
		return primitive.DateTime(val.DateTime()), nil
	case bsontype.Null:
		return nil, nil
	case bsontype.Regex:
		p, o := val.RegexValue()
		return primitive.Regex{Pattern: p, Options: o}, nil
	case bsontype.JavaScript:
		return primitive.JavaScript(val.StringValue()), nil
	case bsontype.Symbol:
		return primitive.Symbol(val.StringValue()), nil
	case bsontype.Int32:
		return val.Int32(), nil
	case bsontype.Timestamp:
		t, i := val.TimestampValue()
		return primitive.Timestamp{T: t, I: i}, nil
	case bsontype.Int64:
		return val.Int64(), nil
	case bsontype.Decimal128:
		hi, lo := val.Decimal128()
		return primitive.NewDecimal128(hi, lo), nil
	case bsontype.MinKey:
		return primitive.MinKey, nil
	case bsontype.MaxKey:
		return primitive.MaxKey, nil
	default:
		return nil, fmt.Errorf("bson: cannot decode value of type %s to interface{}", val.Type)
	}
}

// decodeValue decodes val (a BSON type tag + body) into rv, which must be
// addressable.
func decodeValue(reg *bsoncodec.Registry, val bsoncore.Value, rv reflect.Value) error {
	if dec, ok := reg.LookupDecoder(rv.Type()); ok {
		return dec.DecodeValue(reg, byte(val.Type), val.Data, rv)
	}

	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			if val.Type == bsontype.Null {
				return nil
			}
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return decodeValue(reg, val, rv.Elem())
	}
	if rv.Kind() == reflect.Interface && rv.NumMethod() == 0 {
		gv, err := decodeToInterface(reg, val)
		if err != nil {
			return err
		}
		if gv == nil {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		rv.Set(reflect.ValueOf(gv))
		return nil
	}

	switch rv.Type() {
	case tObjectID:
		if val.Type != bsontype.ObjectID {
			return typeMismatch(bsontype.ObjectID, val.Type)
		}
		rv.Set(reflect.ValueOf(primitive.ObjectID(val.ObjectID())))
		return nil
	case tDateTime:
		if val.Type != bsontype.DateTime {
			return typeMismatch(bsontype.DateTime, val.Type)
		}
		rv.Set(reflect.ValueOf(primitive.DateTime(val.DateTime())))
		return nil
	case tDecimal128:
		if val.Type != bsontype.Decimal128 {
			return typeMismatch(bsontype.Decimal128, val.Type)
		}
		hi, lo := val.Decimal128()
		rv.Set(reflect.ValueOf(primitive.NewDecimal128(hi, lo)))
		return nil
	case tBinary:
		if val.Type != bsontype.Binary {
			return typeMismatch(bsontype.Binary, val.Type)
		}
		st, data := val.BinaryValue()
		cp := make([]byte, len(data))
		copy(cp, data)
		rv.Set(reflect.ValueOf(primitive.Binary{Subtype: st, Data: cp}))
		return nil
	case tRegex:
		if val.Type != bsontype.Regex {
			return typeMismatch(bsontype.Regex, val.Type)
		}
		p, o := val.RegexValue()
		rv.Set(reflect.ValueOf(primitive.Regex{Pattern: p, Options: o}))
		return nil
	case tTimestamp:
		if val.Type != bsontype.Timestamp {
			return typeMismatch(bsontype.Timestamp, val.Type)
		}
		t, i := val.TimestampValue()
		rv.Set(reflect.ValueOf(primitive.Timestamp{T: t, I: i}))
		return nil
	case tSymbol:
		rv.SetString(val.StringValue())
		return nil
	case tJavaScript:
		rv.SetString(val.StringValue())
		return nil
	case tMinKey, tMaxKey, tUndefined, tNull:
		return nil
	case tTime:
		t, err := decodeTime(reg, val)
		if err != nil {
			return err
		}
		rv.Set(reflect.ValueOf(t))
		return nil
	case tRaw:
		if val.Type != bsontype.EmbeddedDocument {
			return typeMismatch(bsontype.EmbeddedDocument, val.Type)
		}
		rv.Set(reflect.ValueOf(Raw(val.Document().Copy())))
		return nil
	}

	if rv.Type() == tByteSlice {
		return decodeBytes(reg, val, rv)
	}

	switch rv.Kind() {
	case reflect.Bool:
		if val.Type != bsontype.Boolean {
			return typeMismatch(bsontype.Boolean, val.Type)
		}
		rv.SetBool(val.Boolean())
		return nil
	case reflect.String:
		if val.Type != bsontype.String && val.Type != bsontype.Symbol && val.Type != bsontype.JavaScript {
			return typeMismatch(bsontype.String, val.Type)
		}
		rv.SetString(val.StringValue())
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := decodeLosslessInt(val)
		if err != nil {
			return err
		}
		if rv.OverflowInt(n) {
			return fmt.Errorf("bson: value %d overflows %s", n, rv.Type())
		}
		rv.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := decodeLosslessInt(val)
		if err != nil {
			return err
		}
		if n < 0 || rv.OverflowUint(uint64(n)) {
			return fmt.Errorf("bson: value %d does not fit in %s", n, rv.Type())
		}
		rv.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := decodeLosslessFloat(val)
		if err != nil {
			return err
		}
		rv.SetFloat(f)
		return nil
	case reflect.Struct:
		if val.Type != bsontype.EmbeddedDocument {
			return typeMismatch(bsontype.EmbeddedDocument, val.Type)
		}
		return decodeStruct(reg, val.Document(), rv)
	case reflect.Map:
		if val.Type != bsontype.EmbeddedDocument {
			return typeMismatch(bsontype.EmbeddedDocument, val.Type)
		}
		return decodeMap(reg, val.Document(), rv)
	case reflect.Slice:
		if rv.Type() == tD {
			if val.Type != bsontype.EmbeddedDocument {
				return typeMismatch(bsontype.EmbeddedDocument, val.Type)
			}
			return decodeD(reg, val.Document(), rv)
		}
		if val.Type != bsontype.Array {
			return typeMismatch(bsontype.Array, val.Type)
		}
		return decodeSlice(reg, val.ArrayValue(), rv)
	case reflect.Array:
		if val.Type != bsontype.Array {
			return typeMismatch(bsontype.Array, val.Type)
		}
		return decodeArray(reg, val.ArrayValue(), rv)
	default:
		return fmt.Errorf("bson: cannot decode into %s", rv.Type())
	}
}

func typeMismatch(want, got bsontype.Type) error {
	return fmt.Errorf("bson: cannot decode %s into a field expecting %s", got, want)
}

// decodeLosslessInt implements spec.md §4.1's "lossless-only" numeric
// strategy: a double is only accepted if it has no fractional part and is
// exactly representable, and any source value must convert back to itself.
func decodeLosslessInt(val bsoncore.Value) (int64, error) {
	switch val.Type {
	case bsontype.Int32:
		return int64(val.Int32()), nil
	case bsontype.Int64:
		return val.Int64(), nil
	case bsontype.Double:
		f := val.Double()
		n := int64(f)
		if float64(n) != f {
			return 0, fmt.Errorf("bson: double %v cannot be losslessly converted to an integer", f)
		}
		return n, nil
	default:
		return 0, typeMismatch(bsontype.Int64, val.Type)
	}
}

func decodeLosslessFloat(val bsoncore.Value) (float64, error) {
	switch val.Type {
	case bsontype.Double:
		return val.Double(), nil
	case bsontype.Int32:
		return float64(val.Int32()), nil
	case bsontype.Int64:
		n := val.Int64()
		f := float64(n)
		if int64(f) != n {
			return 0, fmt.Errorf("bson: int64 %d cannot be losslessly converted to a float64", n)
		}
		return f, nil
	default:
		return 0, typeMismatch(bsontype.Double, val.Type)
	}
}

func decodeTime(reg *bsoncodec.Registry, val bsoncore.Value) (time.Time, error) {
	switch reg.Strategies.Date {
	case bsoncodec.DateModeInt64Millis:
		return time.UnixMilli(val.Int64()).UTC(), nil
	case bsoncodec.DateModeInt64Seconds:
		return time.Unix(val.Int64(), 0).UTC(), nil
	case bsoncodec.DateModeFloat64Millis:
		return time.UnixMilli(int64(val.Double())).UTC(), nil
	case bsoncodec.DateModeFloat64Seconds:
		return time.Unix(int64(val.Double()), 0).UTC(), nil
	case bsoncodec.DateModeString:
		return time.Parse(time.RFC3339Nano, val.StringValue())
	default:
		if val.Type != bsontype.DateTime {
			return time.Time{}, typeMismatch(bsontype.DateTime, val.Type)
		}
		return primitive.DateTime(val.DateTime()).Time(), nil
	}
}

func decodeBytes(reg *bsoncodec.Registry, val bsoncore.Value, rv reflect.Value) error {
	switch reg.Strategies.Bytes {
	case bsoncodec.BytesModeBase64String:
		b, err := base64.StdEncoding.DecodeString(val.StringValue())
		if err != nil {
			return err
		}
		rv.SetBytes(b)
		return nil
	default:
		if val.Type != bsontype.Binary {
			return typeMismatch(bsontype.Binary, val.Type)
		}
		_, data := val.BinaryValue()
		cp := make([]byte, len(data))
		copy(cp, data)
		rv.SetBytes(cp)
		return nil
	}
}

func decodeSlice(reg *bsoncodec.Registry, arr bsoncore.Array, rv reflect.Value) error {
	vals, err := arr.Values()
	if err != nil {
		return err
	}
	slice := reflect.MakeSlice(rv.Type(), len(vals), len(vals))
	for i, v := range vals {
		if err := decodeValue(reg, v, slice.Index(i)); err != nil {
			return fmt.Errorf("bson: decoding index %d: %w", i, err)
		}
	}
	rv.Set(slice)
	return nil
}

func decodeArray(reg *bsoncodec.Registry, arr bsoncore.Array, rv reflect.Value) error {
	vals, err := arr.Values()
	if err != nil {
		return err
	}
	if len(vals) != rv.Len() {
		return fmt.Errorf("bson: array has %d elements, destination array has %d", len(vals), rv.Len())
	}
	for i, v := range vals {
		if err := decodeValue(reg, v, rv.Index(i)); err != nil {
			return fmt.Errorf("bson: decoding index %d: %w", i, err)
		}
	}
	return nil
}
