// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongo

// Database is a handle on a named database within a Client's deployment.
type Database struct {
	client *Client
	name   string
}

// Name returns the database's name.
func (d *Database) Name() string { return d.name }

// Collection returns a handle on the named collection within d.
func (d *Database) Collection(name string) *Collection {
	return &Collection{db: d, name: name}
}
