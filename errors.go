// Go FIDO U2F Library
// Copyright 2015 The Go FIDO U2F Library Authors. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package u2f

import "github.com/gravitational/trace"

// Three error kinds leave this package, distinguished by contract:
//
//   - State errors: a session precondition is violated (no outstanding
//     challenge). The caller recovers by restarting the ceremony.
//   - Invalid-data errors: anything wrong with client-supplied bytes —
//     bad base64, truncated parse, magic-byte mismatch, wrong
//     typ/origin/challenge, signature failure, unknown key handle,
//     counter regression.
//   - Plain errors: caller programming mistakes, e.g. requesting a
//     signing challenge with zero eligible devices. These match
//     neither predicate below.

// IsStateError reports whether err indicates that the session is in
// the wrong state for the attempted operation.
func IsStateError(err error) bool {
	return trace.IsNotFound(err)
}

// IsInvalidData reports whether err indicates that caller- or
// client-supplied data failed to parse or verify.
func IsInvalidData(err error) bool {
	return trace.IsBadParameter(err)
}
