// Go FIDO U2F Library
// Copyright 2015 The Go FIDO U2F Library Authors. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package u2f

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/gravitational/trace"
	"golang.org/x/net/idna"
)

// challengeLength is the size of the random nonce issued per ceremony.
const challengeLength = 64

var websafeB64 = regexp.MustCompile(`^[-_A-Za-z0-9]*=*$`)

// websafeEncode converts data into its unpadded URL-safe base64
// representation.
func websafeEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// websafeDecode converts an URL-safe base64 string back into the bytes
// it represents. Padding is optional; any character outside
// [-_A-Za-z0-9=] is rejected.
func websafeDecode(s string) ([]byte, error) {
	if !websafeB64.MatchString(s) {
		return nil, trace.BadParameter("u2f: invalid character in websafe base64 string")
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, trace.BadParameter("u2f: invalid websafe base64 string: %v", err)
	}
	return data, nil
}

// popBytes returns the first n bytes of *buf and advances the cursor
// past them.
func popBytes(buf *[]byte, n int) ([]byte, error) {
	if n < 0 || n > len(*buf) {
		return nil, trace.BadParameter("u2f: message truncated")
	}
	out := (*buf)[:n]
	*buf = (*buf)[n:]
	return out, nil
}

func sha256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// appParam hashes the app ID for use as the application parameter of
// the signed messages. The app ID is encoded to ASCII via IDNA first,
// which matters for app IDs containing non-ASCII hostnames.
func appParam(appID string) ([]byte, error) {
	ascii, err := idna.ToASCII(appID)
	if err != nil {
		return nil, trace.BadParameter("u2f: app ID is not IDNA-encodable: %v", err)
	}
	return sha256Sum([]byte(ascii)), nil
}

// parseTLVEncodedLength returns the total number of bytes occupied by
// the DER element starting at buf[0], including the tag and length
// prefix. Byte 0 is the tag; byte 1 either holds the length directly
// (short form) or, with the high bit set, the count of subsequent
// big-endian length bytes (long form).
func parseTLVEncodedLength(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, trace.BadParameter("u2f: DER element truncated")
	}
	length := int(buf[1] & 0x7f)
	if buf[1]&0x80 == 0 {
		return 2 + length, nil
	}
	if len(buf) < 2+length {
		return 0, trace.BadParameter("u2f: DER length truncated")
	}
	trueLength := 0
	for _, b := range buf[2 : 2+length] {
		if trueLength > (1<<28)-1 {
			return 0, trace.BadParameter("u2f: DER length out of range")
		}
		trueLength = trueLength<<8 | int(b)
	}
	return 2 + length + trueLength, nil
}

// Some early Yubico attestation certificates have the BIT STRING
// "unused bits" byte before the 256-byte signature set where it must
// be zero. The repair is keyed on the SHA-256 of the DER so no other
// certificate is ever touched.
var invalidYubicoCertSums = map[string]bool{
	"349bca1031f8c82c4ceca38b9cebf1a69df9fb3b94eed99eb3fb9aa3822d26e8": true,
	"dd574527df608e47ae45fbba75a2afdd5c20fd94a02419381813cd55a2a3398f": true,
	"1d8764f0f7cd1352df6150045c8f638e517270e8b5dda1c63ade9c2280240cae": true,
	"d0edc9a91a1677435a953390865d208c55b3183c6759c9b5a7ff494c322558eb": true,
	"6073c436dcd064a48127ddbf6032ac1a66fd59a0c24434f070d4e564c124c897": true,
	"ca993121846c464d666096d35f13bf44c1b05af205f9b4a1e00cf6cc10c5e511": true,
}

// fixInvalidYubicoCerts patches the known-bad certificates and returns
// every other input unchanged.
func fixInvalidYubicoCerts(der []byte) []byte {
	if len(der) < 257 {
		return der
	}
	if !invalidYubicoCertSums[hex.EncodeToString(sha256Sum(der))] {
		return der
	}
	fixed := make([]byte, len(der))
	copy(fixed, der)
	fixed[len(fixed)-257] = 0
	return fixed
}

// generateChallenge returns a fresh websafe-base64 encoded 64-byte
// nonce from the system's cryptographically secure source.
func generateChallenge() (string, error) {
	challenge := make([]byte, challengeLength)
	if _, err := rand.Read(challenge); err != nil {
		return "", trace.Wrap(err, "u2f: unable to generate random challenge")
	}
	return websafeEncode(challenge), nil
}
