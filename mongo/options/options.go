// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package options holds the functional-option builders a caller uses to
// configure a Client and its operations: one XOptionsBuilder per command,
// each collecting setter closures applied in order against a zero-value
// XOptions struct.
package options

// Collation specifies language-specific string comparison rules for a
// find, count, update, or delete operation.
type Collation struct {
	Locale          string
	CaseLevel       bool
	CaseFirst       string
	Strength        int
	NumericOrdering bool
	Alternate       string
	MaxVariable     string
	Normalization   bool
	Backwards       bool
}

// DefaultOrdered is the default value of an InsertMany/BulkWrite
// operation's Ordered option.
const DefaultOrdered = true
