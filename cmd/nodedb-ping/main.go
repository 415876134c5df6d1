// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Command nodedb-ping connects to a deployment and reports whether a
// server selection + hello round trip succeeds, a smoke test for a new
// URI or network path before pointing an application at it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.nodedb.dev/driver/mongo"
	"go.nodedb.dev/driver/mongo/readpref"
)

func main() {
	uri := flag.String("uri", os.Getenv("NODEDB_URI"), "connection string, defaults to $NODEDB_URI")
	timeout := flag.Duration("timeout", 10*time.Second, "overall deadline for connect + ping")
	mode := flag.String("mode", "primary", "read preference mode: primary, primaryPreferred, secondary, secondaryPreferred, nearest")
	flag.Parse()

	if *uri == "" {
		log.Fatal("nodedb-ping: -uri (or $NODEDB_URI) is required")
	}

	rp, err := readPrefFromMode(*mode)
	if err != nil {
		log.Fatalf("nodedb-ping: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, *uri)
	if err != nil {
		log.Fatalf("nodedb-ping: connect: %v", err)
	}
	defer client.Disconnect(context.Background())

	start := time.Now()
	if err := client.Ping(ctx, rp); err != nil {
		log.Fatalf("nodedb-ping: ping: %v", err)
	}
	fmt.Printf("ok: reached a %s-suitable server in %s\n", *mode, time.Since(start))
}

func readPrefFromMode(mode string) (*readpref.ReadPref, error) {
	switch mode {
	case "primary":
		return readpref.Primary(), nil
	case "primaryPreferred":
		return readpref.PrimaryPreferred()
	case "secondary":
		return readpref.Secondary()
	case "secondaryPreferred":
		return readpref.SecondaryPreferred(), nil
	case "nearest":
		return readpref.Nearest()
	default:
		return nil, fmt.Errorf("unknown read preference mode %q", mode)
	}
}
