// Go FIDO U2F Library
// Copyright 2015 The Go FIDO U2F Library Authors. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package u2f

import (
	"crypto/elliptic"
	"crypto/x509"
	"encoding/asn1"

	"github.com/gravitational/trace"
)

// RegistrationData is the decoded raw registration message, per the
// FIDO U2F Raw Message Formats:
//
//	 1 byte   reserved, must be 0x05
//	65 bytes  user public key (SEC1 uncompressed P-256)
//	 1 byte   key handle length
//	 L bytes  key handle
//	 N bytes  attestation certificate (DER)
//	 R bytes  ECDSA signature (remainder)
//
// The certificate length is not carried in the message; it is inferred
// from the certificate's own DER length prefix.
type RegistrationData struct {
	// PublicKey is the newly generated key pair's public half, a
	// 65-byte SEC1 uncompressed point.
	PublicKey []byte
	// KeyHandle is the authenticator-chosen credential identifier.
	KeyHandle []byte
	// Certificate is the DER attestation certificate, after the
	// Yubico unused-bits repair where applicable.
	Certificate []byte
	// Signature is the DER ECDSA attestation signature.
	Signature []byte
}

// ParseRegistrationData decodes a raw registration message.
func ParseRegistrationData(data []byte) (*RegistrationData, error) {
	buf := data

	magic, err := popBytes(&buf, 1)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if magic[0] != 0x05 {
		return nil, trace.BadParameter("u2f: registration data has invalid magic byte")
	}

	var rd RegistrationData
	if rd.PublicKey, err = popBytes(&buf, 65); err != nil {
		return nil, trace.Wrap(err)
	}
	if x, _ := elliptic.Unmarshal(elliptic.P256(), rd.PublicKey); x == nil {
		return nil, trace.BadParameter("u2f: registration data has invalid public key")
	}

	khLen, err := popBytes(&buf, 1)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if rd.KeyHandle, err = popBytes(&buf, int(khLen[0])); err != nil {
		return nil, trace.Wrap(err)
	}

	certLen, err := parseTLVEncodedLength(buf)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	cert, err := popBytes(&buf, certLen)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	rd.Certificate = fixInvalidYubicoCerts(cert)
	rd.Signature = buf

	return &rd, nil
}

// RegistrationDataFromBase64 decodes the websafe-base64 form of a raw
// registration message.
func RegistrationDataFromBase64(encoded string) (*RegistrationData, error) {
	data, err := websafeDecode(encoded)
	if err != nil {
		return nil, trace.BadParameter("u2f: invalid registration data: %v", err)
	}
	rd, err := ParseRegistrationData(data)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return rd, nil
}

// AttestationCert parses the embedded attestation certificate.
func (rd *RegistrationData) AttestationCert() (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(rd.Certificate)
	if err != nil {
		return nil, trace.BadParameter("u2f: invalid attestation certificate: %v", err)
	}
	return cert, nil
}

// Verify checks the attestation signature over
//
//	0x00 || app_param || challenge_param || key_handle || public_key
//
// against the attestation certificate's public key.
func (rd *RegistrationData) Verify(appParam, challengeParam []byte) error {
	cert, err := rd.AttestationCert()
	if err != nil {
		return trace.Wrap(err)
	}

	msg := make([]byte, 0, 1+len(appParam)+len(challengeParam)+len(rd.KeyHandle)+len(rd.PublicKey))
	msg = append(msg, 0)
	msg = append(msg, appParam...)
	msg = append(msg, challengeParam...)
	msg = append(msg, rd.KeyHandle...)
	msg = append(msg, rd.PublicKey...)

	if err := cert.CheckSignature(x509.ECDSAWithSHA256, msg, rd.Signature); err != nil {
		return trace.BadParameter("u2f: attestation signature is invalid: %v", err)
	}
	return nil
}

// SupportedTransports extracts the transports the token reported via
// the fido-u2f-transports certificate extension. A certificate without
// the extension yields nil: the transports are unknown, which is
// distinct from an empty set.
func (rd *RegistrationData) SupportedTransports() (Transports, error) {
	cert, err := rd.AttestationCert()
	if err != nil {
		return nil, trace.Wrap(err)
	}

	oid := asn1.ObjectIdentifier(transportExtensionOID)
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(oid) {
			continue
		}
		// The extension value is a DER BIT STRING holding one flag
		// byte: tag, length 2, unused-bit count, flags.
		v := ext.Value
		if len(v) != 4 || v[0] != 0x03 || v[1] != 0x02 {
			return nil, trace.BadParameter("u2f: malformed transports extension")
		}
		unusedBits := v[2]
		if unusedBits > 7 {
			return nil, trace.BadParameter("u2f: malformed transports extension")
		}
		flags := v[3] >> unusedBits << unusedBits
		return TransportsFromByte(flags), nil
	}
	return nil, nil
}
