// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"go.nodedb.dev/driver/bson/bsontype"
	"go.nodedb.dev/driver/bson/primitive"
	"go.nodedb.dev/driver/x/bsonx/bsoncore"
)

// MarshalExtJSON encodes val as canonical extended JSON (spec.md §6: "canonical
// extended JSON round-trip is required to match the public specification of
// the format"). Strings, booleans, null, documents and arrays use their
// native JSON forms; every other supported BSON type maps to an unambiguous
// $-prefixed marker. DBPointer values are not supported and return an error.
func MarshalExtJSON(val interface{}) ([]byte, error) {
	doc, err := encodeDocument(DefaultRegistry, val)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeExtJSONDocument(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeExtJSONDocument(buf *bytes.Buffer, doc bsoncore.Document) error {
	elems, err := doc.Elements()
	if err != nil {
		return err
	}
	buf.WriteByte('{')
	for i, e := range elems {
		if i != 0 {
			buf.WriteByte(',')
		}
		key, err := e.KeyErr()
		if err != nil {
			return err
		}
		writeJSONString(buf, key)
		buf.WriteByte(':')
		val, err := e.ValueErr()
		if err != nil {
			return err
		}
		if err := writeExtJSONValue(buf, val); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeExtJSONArray(buf *bytes.Buffer, arr bsoncore.Array) error {
	vals, err := arr.Values()
	if err != nil {
		return err
	}
	buf.WriteByte('[')
	for i, v := range vals {
		if i != 0 {
			buf.WriteByte(',')
		}
		if err := writeExtJSONValue(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

func writeExtJSONValue(buf *bytes.Buffer, val bsoncore.Value) error {
	switch val.Type {
	case bsontype.Double:
		fmt.Fprintf(buf, `{"$numberDouble":"%s"}`, formatExtJSONDouble(val.Double()))
	case bsontype.String:
		writeJSONString(buf, val.StringValue())
	case bsontype.EmbeddedDocument:
		return writeExtJSONDocument(buf, val.Document())
	case bsontype.Array:
		return writeExtJSONArray(buf, val.ArrayValue())
	case bsontype.Binary:
		st, data := val.BinaryValue()
		fmt.Fprintf(buf, `{"$binary":{"base64":"%s","subType":"%02x"}}`, base64.StdEncoding.EncodeToString(data), st)
	case bsontype.Undefined:
		buf.WriteString(`{"$undefined":true}`)
	case bsontype.ObjectID:
		oid := val.ObjectID()
		fmt.Fprintf(buf, `{"$oid":"%x"}`, oid)
	case bsontype.Boolean:
		if val.Boolean() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case bsontype.DateTime:
		fmt.Fprintf(buf, `{"$date":{"$numberLong":"%d"}}`, val.DateTime())
	case bsontype.Null:
		buf.WriteString("null")
	case bsontype.Regex:
		p, o := val.RegexValue()
		fmt.Fprintf(buf, `{"$regularExpression":{"pattern":`)
		writeJSONString(buf, p)
		buf.WriteString(`,"options":`)
		writeJSONString(buf, o)
		buf.WriteString(`}}`)
	case bsontype.DBPointer:
		return fmt.Errorf("bson: dbPointer extJSON encoding not supported")
	case bsontype.JavaScript:
		buf.WriteString(`{"$code":`)
		writeJSONString(buf, val.StringValue())
		buf.WriteByte('}')
	case bsontype.Symbol:
		buf.WriteString(`{"$symbol":`)
		writeJSONString(buf, val.StringValue())
		buf.WriteByte('}')
	case bsontype.Int32:
		fmt.Fprintf(buf, `{"$numberInt":"%d"}`, val.Int32())
	case bsontype.Timestamp:
		t, i := val.TimestampValue()
		fmt.Fprintf(buf, `{"$timestamp":{"t":%d,"i":%d}}`, t, i)
	case bsontype.Int64:
		fmt.Fprintf(buf, `{"$numberLong":"%d"}`, val.Int64())
	case bsontype.Decimal128:
		hi, lo := val.Decimal128()
		fmt.Fprintf(buf, `{"$numberDecimal":"%s"}`, primitive.NewDecimal128(hi, lo).String())
	case bsontype.MinKey:
		buf.WriteString(`{"$minKey":1}`)
	case bsontype.MaxKey:
		buf.WriteString(`{"$maxKey":1}`)
	default:
		return fmt.Errorf("bson: cannot encode type %s to extJSON", val.Type)
	}
	return nil
}

func formatExtJSONDouble(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// UnmarshalExtJSON decodes canonical (or relaxed-number) extended JSON text
// into a BSON document.
func UnmarshalExtJSON(data []byte, val interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree map[string]interface{}
	if err := dec.Decode(&tree); err != nil {
		return err
	}
	doc, err := extJSONTreeToDocument(tree)
	if err != nil {
		return err
	}
	return Unmarshal(doc, val)
}

func extJSONTreeToDocument(tree map[string]interface{}) (bsoncore.Document, error) {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	for k, v := range tree {
		t, data, err := extJSONValueToBSON(v)
		if err != nil {
			return nil, fmt.Errorf("extjson: field %q: %w", k, err)
		}
		dst = bsoncore.AppendValueElement(dst, k, bsoncore.Value{Type: t, Data: data})
	}
	return bsoncore.AppendDocumentEnd(dst, idx), nil
}

func extJSONValueToBSON(v interface{}) (bsontype.Type, []byte, error) {
	switch x := v.(type) {
	case nil:
		return bsontype.Null, nil, nil
	case bool:
		return bsontype.Boolean, bsoncore.AppendBoolean(nil, x), nil
	case string:
		return bsontype.String, bsoncore.AppendString(nil, x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			if i >= -(1<<31) && i < (1<<31) {
				return bsontype.Int32, bsoncore.AppendInt32(nil, int32(i)), nil
			}
			return bsontype.Int64, bsoncore.AppendInt64(nil, i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, nil, err
		}
		return bsontype.Double, bsoncore.AppendDouble(nil, f), nil
	case []interface{}:
		idx, dst := bsoncore.AppendDocumentStart(nil)
		for i, elem := range x {
			t, data, err := extJSONValueToBSON(elem)
			if err != nil {
				return 0, nil, err
			}
			dst = bsoncore.AppendValueElement(dst, itoa(i), bsoncore.Value{Type: t, Data: data})
		}
		return bsontype.Array, bsoncore.AppendDocumentEnd(dst, idx), nil
	case map[string]interface{}:
		if marker, ok := extJSONMarker(x); ok {
			return extJSONMarkerToBSON(marker, x)
		}
		doc, err := extJSONTreeToDocument(x)
		if err != nil {
			return 0, nil, err
		}
		return bsontype.EmbeddedDocument, []byte(doc), nil
	default:
		return 0, nil, fmt.Errorf("extjson: unsupported value %T", v)
	}
}

func extJSONMarker(m map[string]interface{}) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	for k := range m {
		if len(k) > 0 && k[0] == '$' {
			return k, true
		}
	}
	return "", false
}

func extJSONMarkerToBSON(marker string, m map[string]interface{}) (bsontype.Type, []byte, error) {
	switch marker {
	case "$numberInt":
		n, err := strconv.ParseInt(m[marker].(string), 10, 32)
		if err != nil {
			return 0, nil, err
		}
		return bsontype.Int32, bsoncore.AppendInt32(nil, int32(n)), nil
	case "$numberLong":
		n, err := strconv.ParseInt(m[marker].(string), 10, 64)
		if err != nil {
			return 0, nil, err
		}
		return bsontype.Int64, bsoncore.AppendInt64(nil, n), nil
	case "$numberDouble":
		f, err := strconv.ParseFloat(m[marker].(string), 64)
		if err != nil {
			return 0, nil, err
		}
		return bsontype.Double, bsoncore.AppendDouble(nil, f), nil
	case "$numberDecimal":
		d, err := primitive.ParseDecimal128(m[marker].(string))
		if err != nil {
			return 0, nil, err
		}
		hi, lo := d.GetBytes()
		return bsontype.Decimal128, bsoncore.AppendDecimal128(nil, hi, lo), nil
	case "$oid":
		oid, err := primitive.ObjectIDFromHex(m[marker].(string))
		if err != nil {
			return 0, nil, err
		}
		return bsontype.ObjectID, bsoncore.AppendObjectID(nil, oid), nil
	case "$binary":
		inner := m[marker].(map[string]interface{})
		b64, _ := inner["base64"].(string)
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return 0, nil, err
		}
		subtypeStr, _ := inner["subType"].(string)
		st, err := strconv.ParseUint(subtypeStr, 16, 8)
		if err != nil {
			return 0, nil, err
		}
		return bsontype.Binary, bsoncore.AppendBinary(nil, byte(st), data), nil
	case "$date":
		inner, ok := m[marker].(map[string]interface{})
		if !ok {
			return 0, nil, fmt.Errorf("extjson: $date must use $numberLong form")
		}
		n, err := strconv.ParseInt(inner["$numberLong"].(string), 10, 64)
		if err != nil {
			return 0, nil, err
		}
		return bsontype.DateTime, bsoncore.AppendDateTime(nil, n), nil
	case "$regularExpression":
		inner := m[marker].(map[string]interface{})
		pattern, _ := inner["pattern"].(string)
		options, _ := inner["options"].(string)
		return bsontype.Regex, bsoncore.AppendRegex(nil, pattern, options), nil
	case "$timestamp":
		inner := m[marker].(map[string]interface{})
		t, _ := inner["t"].(json.Number).Int64()
		i, _ := inner["i"].(json.Number).Int64()
		return bsontype.Timestamp, bsoncore.AppendTimestamp(nil, uint32(t), uint32(i)), nil
	case "$code":
		return bsontype.JavaScript, bsoncore.AppendJavaScript(nil, m[marker].(string)), nil
	case "$symbol":
		return bsontype.Symbol, bsoncore.AppendSymbol(nil, m[marker].(string)), nil
	case "$minKey":
		return bsontype.MinKey, nil, nil
	case "$maxKey":
		return bsontype.MaxKey, nil, nil
	case "$undefined":
		return bsontype.Undefined, nil, nil
	default:
		return 0, nil, fmt.Errorf("extjson: unrecognized marker %q", marker)
	}
}
