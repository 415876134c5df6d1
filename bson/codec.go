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

var (
	tObjectID      = reflect.TypeOf(primitive.ObjectID{})
	tDateTime      = reflect.TypeOf(primitive.DateTime(0))
	tDecimal128    = reflect.TypeOf(primitive.Decimal128{})
	tBinary        = reflect.TypeOf(primitive.Binary{})
	tRegex         = reflect.TypeOf(primitive.Regex{})
	tTimestamp     = reflect.TypeOf(primitive.Timestamp{})
	tSymbol        = reflect.TypeOf(primitive.Symbol(""))
	tJavaScript    = reflect.TypeOf(primitive.JavaScript(""))
	tCodeWithScope = reflect.TypeOf(primitive.CodeWithScope{})
	tDBPointer     = reflect.TypeOf(primitive.DBPointer{})
	tMinKey        = reflect.TypeOf(primitive.MinKeyType{})
	tMaxKey        = reflect.TypeOf(primitive.MaxKeyType{})
	tUndefined     = reflect.TypeOf(primitive.Undefined{})
	tNull          = reflect.TypeOf(primitive.Null{})
	tTime          = reflect.TypeOf(time.Time{})
	tD             = reflect.TypeOf(primitive.D{})
	tM             = reflect.TypeOf(primitive.M{})
	tA             = reflect.TypeOf(primitive.A{})
	tE             = reflect.TypeOf(primitive.E{})
	tRaw           = reflect.TypeOf(Raw{})
	tByteSlice     = reflect.TypeOf([]byte(nil))
	tEmptyIface    = reflect.TypeOf((*interface{})(nil)).Elem()
)

// encodeDocument encodes val, which must resolve to a document-shaped
// value (struct, map, primitive.D/M, or Raw), into a bsoncore.Document.
func encodeDocument(reg *bsoncodec.Registry, val interface{}) (bsoncore.Document, error) {
	if d, ok := val.(Raw); ok {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		return bsoncore.Document(d), nil
	}
	rv := reflect.ValueOf(val)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("bson: cannot encode nil pointer")
		}
		rv = rv.Elem()
	}
	t, data, err := encodeValue(reg, rv)
	if err != nil {
		return nil, err
	}
	if t != bsontype.EmbeddedDocument {
		return nil, fmt.Errorf("bson: cannot encode %s as a document", rv.Type())
	}
	return bsoncore.Document(data), nil
}

// encodeValue encodes rv, returning its BSON type tag and the raw value
// body (not including a type byte or key).
func encodeValue(reg *bsoncodec.Registry, rv reflect.Value) (bsontype.Type, []byte, error) {
	if !rv.IsValid() {
		return bsontype.Null, nil, nil
	}

	if enc, ok := reg.LookupEncoder(rv.Type()); ok {
		t, data, err := enc.EncodeValue(reg, rv)
		return bsontype.Type(t), data, err
	}

	switch rv.Type() {
	case tObjectID:
		oid := rv.Interface().(primitive.ObjectID)
		return bsontype.ObjectID, bsoncore.AppendObjectID(nil, oid), nil
	case tDateTime:
		dt := rv.Interface().(primitive.DateTime)
		return bsontype.DateTime, bsoncore.AppendDateTime(nil, int64(dt)), nil
	case tDecimal128:
		d := rv.Interface().(primitive.Decimal128)
		hi, lo := d.GetBytes()
		return bsontype.Decimal128, bsoncore.AppendDecimal128(nil, hi, lo), nil
	case tBinary:
		b := rv.Interface().(primitive.Binary)
		return bsontype.Binary, bsoncore.AppendBinary(nil, b.Subtype, b.Data), nil
	case tRegex:
		re := rv.Interface().(primitive.Regex)
		return bsontype.Regex, bsoncore.AppendRegex(nil, re.Pattern, re.Options), nil
	case tTimestamp:
		ts := rv.Interface().(primitive.Timestamp)
		return bsontype.Timestamp, bsoncore.AppendTimestamp(nil, ts.T, ts.I), nil
	case tSymbol:
		return bsontype.Symbol, bsoncore.AppendSymbol(nil, string(rv.Interface().(primitive.Symbol))), nil
	case tJavaScript:
		return bsontype.JavaScript, bsoncore.AppendJavaScript(nil, string(rv.Interface().(primitive.JavaScript))), nil
	case tCodeWithScope:
		cws := rv.Interface().(primitive.CodeWithScope)
		scope, err := encodeDocument(reg, cws.Scope)
		if err != nil {
			return 0, nil, err
		}
		return bsontype.CodeWithScope, bsoncore.AppendCodeWithScope(nil, string(cws.Code), scope), nil
	case tDBPointer:
		p := rv.Interface().(primitive.DBPointer)
		return bsontype.DBPointer, bsoncore.AppendDBPointer(nil, p.DB, p.Pointer), nil
	case tMinKey:
		return bsontype.MinKey, nil, nil
	case tMaxKey:
		return bsontype.MaxKey, nil, nil
	case tUndefined:
		return bsontype.Undefined, nil, nil
	case tNull:
		return bsontype.Null, nil, nil
	case tTime:
		return encodeTime(reg, rv.Interface().(time.Time))
	case tRaw:
		raw := rv.Interface().(Raw)
		if err := raw.Validate(); err != nil {
			return 0, nil, err
		}
		return bsontype.EmbeddedDocument, []byte(raw), nil
	}

	if rv.Type() == tByteSlice {
		return encodeBytes(reg, rv.Interface().([]byte))
	}

	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return bsontype.Null, nil, nil
		}
		return encodeValue(reg, rv.Elem())
	case reflect.Interface:
		if rv.IsNil() {
			return bsontype.Null, nil, nil
		}
		return encodeValue(reg, rv.Elem())
	case reflect.Bool:
		return bsontype.Boolean, bsoncore.AppendBoolean(nil, rv.Bool()), nil
	case reflect.String:
		return bsontype.String, bsoncore.AppendString(nil, rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		i := rv.Int()
		if int64(int32(i)) != i {
			return bsontype.Int64, bsoncore.AppendInt64(nil, i), nil
		}
		return bsontype.Int32, bsoncore.AppendInt32(nil, int32(i)), nil
	case reflect.Int64:
		return bsontype.Int64, bsoncore.AppendInt64(nil, rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		u := rv.Uint()
		if u > uint64(1)<<63-1 {
			return 0, nil, fmt.Errorf("bson: uint value %d overflows int64 and cannot be encoded losslessly", u)
		}
		if u > uint64(1)<<31-1 {
			return bsontype.Int64, bsoncore.AppendInt64(nil, int64(u)), nil
		}
		return bsontype.Int32, bsoncore.AppendInt32(nil, int32(u)), nil
	case reflect.Uint64:
		u := rv.Uint()
		if u > uint64(1)<<63-1 {
			return 0, nil, fmt.Errorf("bson: uint64 value %d overflows int64 and cannot be encoded losslessly", u)
		}
		return bsontype.Int64, bsoncore.AppendInt64(nil, int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return bsontype.Double, bsoncore.AppendDouble(nil, rv.Float()), nil
	case reflect.Map:
		return encodeMap(reg, rv)
	case reflect.Slice:
		if rv.Type() == tD {
			return encodeD(reg, rv.Interface().(primitive.D))
		}
		return encodeSliceOrArray(reg, rv)
	case reflect.Array:
		return encodeSliceOrArray(reg, rv)
	case reflect.Struct:
		return encodeStruct(reg, rv)
	default:
		return 0, nil, fmt.Errorf("bson: cannot encode value of kind %s", rv.Kind())
	}
}

func encodeTime(reg *bsoncodec.Registry, t time.Time) (bsontype.Type, []byte, error) {
	dt := primitive.NewDateTimeFromTime(t)
	switch reg.Strategies.Date {
	case bsoncodec.DateModeInt64Millis:
		return bsontype.Int64, bsoncore.AppendInt64(nil, int64(dt)), nil
	case bsoncodec.DateModeInt64Seconds:
		return bsontype.Int64, bsoncore.AppendInt64(nil, int64(dt)/1000), nil
	case bsoncodec.DateModeFloat64Millis:
		return bsontype.Double, bsoncore.AppendDouble(nil, float64(dt)), nil
	case bsoncodec.DateModeFloat64Seconds:
		return bsontype.Double, bsoncore.AppendDouble(nil, float64(dt)/1000), nil
	case bsoncodec.DateModeString:
		return bsontype.String, bsoncore.AppendString(nil, t.UTC().Format(time.RFC3339Nano)), nil
	default:
		return bsontype.DateTime, bsoncore.AppendDateTime(nil, int64(dt)), nil
	}
}

func encodeBytes(reg *bsoncodec.Registry, b []byte) (bsontype.Type, []byte, error) {
	switch reg.Strategies.Bytes {
	case bsoncodec.BytesModeBase64String:
		return bsontype.String, bsoncore.AppendString(nil, base64.StdEncoding.EncodeToString(b)), nil
	case bsoncodec.BytesModeDeferred:
		return 0, nil, fmt.Errorf("bson: []byte encoding deferred but no type codec registered")
	default:
		return bsontype.Binary, bsoncore.AppendBinary(nil, primitive.BinaryGeneric, b), nil
	}
}

func encodeD(reg *bsoncodec.Registry, d primitive.D) (bsontype.Type, []byte, error) {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	for _, e := range d {
		t, data, err := encodeValue(reg, reflect.ValueOf(e.Value))
		if err != nil {
			return 0, nil, fmt.Errorf("bson: encoding field %q: %w", e.Key, err)
		}
		dst = bsoncore.AppendValueElement(dst, e.Key, bsoncore.Value{Type: t, Data: data})
	}
	dst = bsoncore.AppendDocumentEnd(dst, idx)
	return bsontype.EmbeddedDocument, dst, nil
}

func encodeMap(reg *bsoncodec.Registry, rv reflect.Value) (bsontype.Type, []byte, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return 0, nil, fmt.Errorf("bson: map key type %s is not string-shaped", rv.Type().Key())
	}
	idx, dst := bsoncore.AppendDocumentStart(nil)
	keys := rv.MapKeys()
	for _, k := range keys {
		key := k.String()
		v := rv.MapIndex(k)
		t, data, err := encodeValue(reg, v)
		if err != nil {
			return 0, nil, fmt.Errorf("bson: encoding key %q: %w", key, err)
		}
		dst = bsoncore.AppendValueElement(dst, key, bsoncore.Value{Type: t, Data: data})
	}
	dst = bsoncore.AppendDocumentEnd(dst, idx)
	return bsontype.EmbeddedDocument, dst, nil
}

func encodeSliceOrArray(reg *bsoncodec.Registry, rv reflect.Value) (bsontype.Type, []byte, error) {
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return bsontype.Null, nil, nil
	}
	idx, dst := bsoncore.AppendDocumentStart(nil)
	for i := 0; i < rv.Len(); i++ {
		t, data, err := encodeValue(reg, rv.Index(i))
		if err != nil {
			return 0, nil, fmt.Errorf("bson: encoding index %d: %w", i, err)
		}
		dst = bsoncore.AppendValueElement(dst, itoa(i), bsoncore.Value{Type: t, Data: data})
	}
	dst = bsoncore.AppendDocumentEnd(dst, idx)
	return bsontype.Array, dst, nil
}

func encodeStruct(reg *bsoncodec.Registry, rv reflect.Value) (bsontype.Type, []byte, error) {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	for _, f := range structFields(rv.Type()) {
		fv := rv.Field(f.index)
		if f.omitEmpty && isEmptyValue(fv) {
			continue
		}
		if f.inline && fv.Kind() == reflect.Struct {
			_, inner, err := encodeStruct(reg, fv)
			if err != nil {
				return 0, nil, err
			}
			innerElems, err := bsoncore.Document(inner).Elements()
			if err != nil {
				return 0, nil, err
			}
			for _, e := range innerElems {
				dst = append(dst, e...)
			}
			continue
		}
		t, data, err := encodeValue(reg, fv)
		if err != nil {
			return 0, nil, fmt.Errorf("bson: encoding field %q: %w", f.name, err)
		}
		dst = bsoncore.AppendValueElement(dst, f.name, bsoncore.Value{Type: t, Data: data})
	}
	dst = bsoncore.AppendDocumentEnd(dst, idx)
	return bsontype.EmbeddedDocument, dst, nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
