// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package dburi parses mongodb:// and mongodb+srv:// connection strings
// (spec.md §6), resolving the +srv form's seed list and TXT-record
// options via DNS before returning a ConnectionString the topology layer
// can dial directly.
package dburi

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.nodedb.dev/driver/mongo/address"
)

const (
	schemeStandard = "mongodb"
	schemeSRV      = "mongodb+srv"

	defaultSRVServiceName = "mongodb"
)

// ConnectionString is the parsed, DNS-resolved form of a connection
// string: a concrete seed list plus the option set spec.md §6 allow-lists
// (authSource, replicaSet, loadBalanced, and friends).
type ConnectionString struct {
	Hosts []address.Address

	Username string
	Password string
	HasPassword bool

	AuthSource  string
	AuthMechanism string

	ReplicaSet   string
	LoadBalanced bool
	DirectConnection bool

	Compressors []string

	AppName string

	ConnectTimeout           time.Duration
	ServerSelectionTimeout   time.Duration
	HeartbeatInterval        time.Duration
	SocketTimeout            time.Duration
	MaxPoolSize              uint64
	MinPoolSize              uint64
	MaxConnIdleTime          time.Duration

	SSL bool

	Raw url.Values
}

// Parse parses uri, resolving a mongodb+srv:// seed list via DNS. ctx
// bounds the SRV/TXT lookups only; it is not retained.
func Parse(ctx context.Context, uri string) (*ConnectionString, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("dburi: %w", err)
	}

	var isSRV bool
	switch u.Scheme {
	case schemeStandard:
	case schemeSRV:
		isSRV = true
	default:
		return nil, fmt.Errorf("dburi: unsupported scheme %q", u.Scheme)
	}

	q := u.Query()
	cs := &ConnectionString{Raw: q}

	if u.User != nil {
		cs.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			cs.Password = pw
			cs.HasPassword = true
		}
	}

	if isSRV {
		cs.SSL = true // mongodb+srv implies TLS unless explicitly disabled below.
		hosts, txtOpts, err := resolveSRV(ctx, u.Host)
		if err != nil {
			return nil, err
		}
		cs.Hosts = hosts
		for k, v := range txtOpts {
			if _, already := q[k]; !already {
				q.Set(k, v)
			}
		}
	} else {
		hosts, err := parseHostList(u.Host)
		if err != nil {
			return nil, err
		}
		cs.Hosts = hosts
	}

	if err := applyOptions(cs, q); err != nil {
		return nil, err
	}

	if len(u.Path) > 1 {
		cs.AuthSource = strings.TrimPrefix(u.Path, "/")
	}

	return cs, nil
}

func parseHostList(hostport string) ([]address.Address, error) {
	if hostport == "" {
		return nil, fmt.Errorf("dburi: connection string has no host")
	}
	parts := strings.Split(hostport, ",")
	hosts := make([]address.Address, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		hosts = append(hosts, address.Normalize(p))
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("dburi: connection string has no host")
	}
	return hosts, nil
}

// allowedOptions is spec.md §6's option allow-list; any query parameter
// outside this set is silently ignored rather than rejected, matching how
// the teacher's connstring layer tolerates forward-compatible options.
var allowedOptions = map[string]bool{
	"replicaset": true, "loadbalanced": true, "directconnection": true,
	"authsource": true, "authmechanism": true, "appname": true,
	"compressors": true, "connecttimeoutms": true, "serverselectiontimeoutms": true,
	"heartbeatfrequencyms": true, "sockettimeoutms": true, "maxpoolsize": true,
	"minpoolsize": true, "maxidletimems": true, "ssl": true, "tls": true,
}

func applyOptions(cs *ConnectionString, q url.Values) error {
	for key, vals := range q {
		if len(vals) == 0 {
			continue
		}
		lk := strings.ToLower(key)
		if !allowedOptions[lk] {
			continue
		}
		v := vals[0]
		var err error
		switch lk {
		case "replicaset":
			cs.ReplicaSet = v
		case "loadbalanced":
			cs.LoadBalanced, err = strconv.ParseBool(v)
		case "directconnection":
			cs.DirectConnection, err = strconv.ParseBool(v)
		case "authsource":
			cs.AuthSource = v
		case "authmechanism":
			cs.AuthMechanism = v
		case "appname":
			cs.AppName = v
		case "compressors":
			cs.Compressors = strings.Split(v, ",")
		case "connecttimeoutms":
			cs.ConnectTimeout, err = parseMillis(v)
		case "serverselectiontimeoutms":
			cs.ServerSelectionTimeout, err = parseMillis(v)
		case "heartbeatfrequencyms":
			cs.HeartbeatInterval, err = parseMillis(v)
		case "sockettimeoutms":
			cs.SocketTimeout, err = parseMillis(v)
		case "maxpoolsize":
			cs.MaxPoolSize, err = parseUint(v)
		case "minpoolsize":
			cs.MinPoolSize, err = parseUint(v)
		case "maxidletimems":
			cs.MaxConnIdleTime, err = parseMillis(v)
		case "ssl", "tls":
			cs.SSL, err = strconv.ParseBool(v)
		}
		if err != nil {
			return fmt.Errorf("dburi: option %s=%q: %w", key, v, err)
		}
	}
	if cs.LoadBalanced && cs.ReplicaSet != "" {
		return fmt.Errorf("dburi: loadBalanced cannot be combined with replicaSet")
	}
	if cs.LoadBalanced && len(cs.Hosts) != 1 {
		return fmt.Errorf("dburi: loadBalanced requires exactly one host")
	}
	return nil
}

func parseMillis(v string) (time.Duration, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

func parseUint(v string) (uint64, error) {
	return strconv.ParseUint(v, 10, 64)
}

// resolveSRV implements mongodb+srv://'s discovery: an SRV lookup under
// _mongodb._tcp.<host> for the seed list, and a TXT lookup on <host>
// itself for additional connection-string options (spec.md §6).
func resolveSRV(ctx context.Context, host string) ([]address.Address, map[string]string, error) {
	resolver := net.DefaultResolver

	_, srvRecords, err := resolver.LookupSRV(ctx, defaultSRVServiceName, "tcp", host)
	if err != nil {
		return nil, nil, fmt.Errorf("dburi: SRV lookup for %s: %w", host, err)
	}
	if len(srvRecords) == 0 {
		return nil, nil, fmt.Errorf("dburi: SRV lookup for %s returned no records", host)
	}

	hosts := make([]address.Address, 0, len(srvRecords))
	for _, rec := range srvRecords {
		target := strings.TrimSuffix(rec.Target, ".")
		if err := validateSRVTarget(target, host); err != nil {
			return nil, nil, err
		}
		hosts = append(hosts, address.Normalize(fmt.Sprintf("%s:%d", target, rec.Port)))
	}

	opts := map[string]string{}
	if txts, err := resolver.LookupTXT(ctx, host); err == nil {
		if len(txts) > 1 {
			return nil, nil, fmt.Errorf("dburi: multiple TXT records for %s", host)
		}
		if len(txts) == 1 {
			parsed, perr := url.ParseQuery(txts[0])
			if perr != nil {
				return nil, nil, fmt.Errorf("dburi: parse TXT options for %s: %w", host, perr)
			}
			for k, vals := range parsed {
				switch key := strings.ToLower(k); key {
				case "authsource", "replicaset", "loadbalanced":
					if len(vals) > 0 {
						opts[key] = vals[0]
					}
				default:
					return nil, nil, fmt.Errorf("dburi: TXT record for %s sets disallowed option %q", host, k)
				}
			}
		}
	}

	return hosts, opts, nil
}

// validateSRVTarget enforces the SRV target must share a parent domain
// with the original hostname, a defense against a compromised DNS server
// redirecting the seed list to an unrelated domain.
func validateSRVTarget(target, originalHost string) error {
	originalParts := strings.Split(originalHost, ".")
	targetParts := strings.Split(target, ".")
	if len(targetParts) < len(originalParts) {
		return fmt.Errorf("dburi: SRV target %q is not a subdomain of %q", target, originalHost)
	}
	parentOriginal := strings.Join(originalParts[1:], ".")
	parentTarget := strings.Join(targetParts[len(targetParts)-len(originalParts)+1:], ".")
	if !strings.EqualFold(parentOriginal, parentTarget) {
		return fmt.Errorf("dburi: SRV target %q is not a subdomain of %q", target, originalHost)
	}
	return nil
}
