// Go FIDO U2F Library
// Copyright 2015 The Go FIDO U2F Library Authors. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

// Package u2f implements the server-side core of the FIDO U2F
// (Universal 2nd Factor) protocol, v1.2.
//
// The package issues cryptographic challenges and verifies the attested
// registration and assertion responses produced by a U2F authenticator.
// It speaks no HTTP and owns no storage: challenges are correlated
// through a caller-supplied Session, and device records are created and
// updated through caller-supplied persistence hooks.
//
// A relying party runs two ceremonies:
//
//	reg := u2f.NewRegistrationManager(appID, factory)
//	msg, err := reg.CreateRegistrationChallenge(session, devices)
//	// ... relay msg to the browser, receive the token's reply ...
//	device, err := reg.ProcessRegistrationResponse(session, resp)
//
//	signing := u2f.NewSigningManager(appID, counters)
//	msg, err := signing.CreateSigningChallenge(session, devices)
//	device, err := signing.ProcessSigningResponse(session, resp, devices)
package u2f

import (
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

// Version is the only U2F protocol version this package speaks.
const Version = "U2F_V2"

// Session keys under which the outstanding ceremony challenges live.
// Exactly one challenge per ceremony is outstanding at a time; creating
// a new one overwrites the old.
const (
	RegistrationSessionKey = "u2f_registration_challenge"
	SigningSessionKey      = "u2f_signing_challenge"
)

// transportExtensionOID identifies the fido-u2f-transports attestation
// certificate extension (id-fido-u2f-ce-transports).
var transportExtensionOID = []int{1, 3, 6, 1, 4, 1, 45724, 2, 1, 1}

var log = logrus.WithField(trace.Component, "u2f")
