// Copyright (C) NodeDB Authors. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/youmark/pkcs8"
)

// LoadClientCertificate reads a PEM-encoded certificate+key file for
// MONGODB-X509 auth or general mTLS dialing (the tlsCertificateKeyFile /
// tlsCertificateKeyFilePassword URI options). Most keys parse via the
// standard library directly; an encrypted PKCS#8 private key block needs
// youmark/pkcs8 to decrypt it first.
func LoadClientCertificate(path, password string) (tls.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("auth: read certificate key file: %w", err)
	}

	var certDER [][]byte
	var keyDER []byte
	var keyIsEncrypted bool
	rest := raw
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			certDER = append(certDER, block.Bytes)
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			keyDER = block.Bytes
			keyIsEncrypted = x509.IsEncryptedPEMBlock(block) //nolint:staticcheck
		case "ENCRYPTED PRIVATE KEY":
			keyDER = block.Bytes
			keyIsEncrypted = true
		}
	}
	if len(certDER) == 0 || keyDER == nil {
		return tls.Certificate{}, fmt.Errorf("auth: %s: no certificate/private key pair found", path)
	}

	var key interface{}
	if keyIsEncrypted {
		if password == "" {
			return tls.Certificate{}, fmt.Errorf("auth: %s: encrypted private key requires tlsCertificateKeyFilePassword", path)
		}
		key, err = pkcs8.ParsePKCS8PrivateKey(keyDER, []byte(password))
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("auth: decrypt PKCS#8 private key: %w", err)
		}
	} else {
		key, err = parseUnencryptedKey(keyDER)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("auth: parse private key: %w", err)
		}
	}

	leaf, err := x509.ParseCertificate(certDER[0])
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("auth: parse leaf certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: certDER,
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

func parseUnencryptedKey(der []byte) (interface{}, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("unrecognized private key encoding")
}
