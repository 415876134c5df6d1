// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"crypto/tls"
	"fmt"

	"golang.org/x/crypto/ocsp"
)

// OCSPVerifier builds a tls.Config.VerifyConnection callback checking the
// server's stapled OCSP response. A missing staple only fails the
// connection when mustStaple is set (the tlsDisableOCSPEndpointCheck
// default tolerates an unstapled response, matching how most deployments
// run without a live OCSP responder reachable from the driver).
func OCSPVerifier(mustStaple bool) func(tls.ConnectionState) error {
	return func(state tls.ConnectionState) error {
		if len(state.VerifiedChains) == 0 || len(state.VerifiedChains[0]) < 2 {
			return nil
		}
		leaf := state.VerifiedChains[0][0]
		issuer := state.VerifiedChains[0][1]

		if len(state.OCSPResponse) == 0 {
			if mustStaple {
				return fmt.Errorf("auth: no stapled OCSP response from %s", leaf.Subject)
			}
			return nil
		}

		resp, err := ocsp.ParseResponseForCert(state.OCSPResponse, leaf, issuer)
		if err != nil {
			return fmt.Errorf("auth: parse OCSP response: %w", err)
		}
		if resp.Status == ocsp.Revoked {
			return fmt.Errorf("auth: certificate %s revoked via OCSP", leaf.Subject)
		}
		return nil
	}
}
