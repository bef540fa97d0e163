// FIDO U2F Go Library
// Copyright 2015 The FIDO U2F Go Library Authors. All rights reserved.

package u2f

import (
	"crypto/subtle"
	"encoding/json"
	"strings"

	"github.com/gravitational/trace"
)

// standardiseClientData normalizes the clientData field from the
// browser into the canonical JSON string. Browsers send either the raw
// JSON or its websafe base64 encoding; the canonical string is what
// gets hashed into the challenge parameter downstream.
func standardiseClientData(rawClientData string) (string, error) {
	if strings.Contains(rawClientData, "{") {
		return rawClientData, nil
	}
	decoded, err := websafeDecode(rawClientData)
	if err != nil {
		return "", trace.BadParameter("u2f: client data is not valid base64: %v", err)
	}
	return string(decoded), nil
}

// validateClientData checks the three client data fields by exact
// string equality against the expected request type, app ID and
// outstanding challenge, and returns the canonical string on success.
// Extraneous fields are ignored.
func validateClientData(rawClientData string, requestType RequestType, appID, expectedChallenge string) (string, error) {
	standardised, err := standardiseClientData(rawClientData)
	if err != nil {
		return "", trace.Wrap(err)
	}

	var clientData ClientData
	if err := json.Unmarshal([]byte(standardised), &clientData); err != nil {
		return "", trace.BadParameter("u2f: client data is not valid JSON: %v", err)
	}

	if clientData.Typ != string(requestType) {
		return "", trace.BadParameter("u2f: invalid or missing request type in client data")
	}
	if clientData.Origin != appID {
		return "", trace.BadParameter("u2f: invalid or missing origin in client data")
	}
	if len(clientData.Challenge) != len(expectedChallenge) ||
		subtle.ConstantTimeCompare([]byte(clientData.Challenge), []byte(expectedChallenge)) != 1 {
		return "", trace.BadParameter("u2f: invalid or missing challenge in client data")
	}

	return standardised, nil
}
