// FIDO U2F Go Library
// Copyright 2015 The FIDO U2F Go Library Authors. All rights reserved.

package u2f

import "github.com/gravitational/trace"

// Session is the caller-supplied key/value store that correlates a
// challenge across the two steps of a ceremony. Implementations may be
// backed by memory, Redis, a signed cookie or anything else; the
// package treats the store as exclusively owned by the current request
// and never caches across calls. A relying party times a ceremony out
// by expiring the entry.
type Session interface {
	// Get returns the value stored under key, if any.
	Get(key string) (interface{}, bool)
	// Set stores value under key, overwriting any previous value.
	Set(key string, value interface{})
	// Pop removes and returns the value stored under key, if any.
	Pop(key string) (interface{}, bool)
}

// issueChallenge generates a fresh challenge and stores it in the
// session, overwriting any outstanding one for the same ceremony.
func issueChallenge(session Session, sessionKey string) (string, error) {
	challenge, err := generateChallenge()
	if err != nil {
		return "", trace.Wrap(err)
	}
	session.Set(sessionKey, challenge)
	return challenge, nil
}

// storedChallenge reads (or, with consume, removes) the outstanding
// challenge for a ceremony. A missing or empty entry is a state error:
// the ceremony was never initiated or has expired.
func storedChallenge(session Session, sessionKey string, consume bool) (string, error) {
	var value interface{}
	var ok bool
	if consume {
		value, ok = session.Pop(sessionKey)
	} else {
		value, ok = session.Get(sessionKey)
	}
	challenge, _ := value.(string)
	if !ok || challenge == "" {
		return "", trace.NotFound("u2f: session has no outstanding challenge under %q", sessionKey)
	}
	return challenge, nil
}
