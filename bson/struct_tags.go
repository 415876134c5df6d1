// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package bson

import (
	"reflect"
	"strings"
)

type structField struct {
	name      string
	index     int
	omitEmpty bool
	inline    bool
	minSize   bool
}

// structFields returns the exported, bson-tagged fields of t in struct
// declaration order. A field tagged `bson:"-"` is skipped; an untagged
// field falls back to its lowercased Go name, matching the teacher's
// default struct codec behavior.
func structFields(t reflect.Type) []structField {
	var fields []structField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue // unexported
		}
		tag, ok := f.Tag.Lookup("bson")
		name := strings.ToLower(f.Name)
		var omitEmpty, inline, minSize bool
		if ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				switch opt {
				case "omitempty":
					omitEmpty = true
				case "inline":
					inline = true
				case "minsize":
					minSize = true
				}
			}
		}
		fields = append(fields, structField{name: name, index: i, omitEmpty: omitEmpty, inline: inline, minSize: minSize})
	}
	return fields
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	}
	return false
}
