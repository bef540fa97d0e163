// FIDO U2F Go Library
// Copyright 2015 The FIDO U2F Go Library Authors. All rights reserved.

package u2f

// ClientData is the JSON envelope generated by the browser. The
// canonical UTF-8 string form, not the parsed object, is what gets
// hashed into the challenge parameter.
type ClientData struct {
	Typ       string `json:"typ"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

// RegisterRequest is a single enrolment request entry inside a
// RegisterRequestMessage.
type RegisterRequest struct {
	Version   string `json:"version"`
	Challenge string `json:"challenge"`
}

// RegisterRequestMessage is the registration challenge descriptor sent
// to the browser. RegisteredKeys lists already-enrolled devices so the
// authenticator can refuse re-enrolment.
type RegisterRequestMessage struct {
	AppID            string            `json:"appId"`
	RegisterRequests []RegisterRequest `json:"registerRequests"`
	RegisteredKeys   []RegisteredKey   `json:"registeredKeys"`
}

// RegisterResponse is the authenticator's reply to a registration
// challenge, relayed by the browser. ResponseData is the websafe
// base64 of the raw registration message; ClientData is either raw
// JSON or websafe base64 of JSON.
type RegisterResponse struct {
	Version      string `json:"version"`
	ResponseData string `json:"responseData"`
	ClientData   string `json:"clientData"`
}

// SignRequestMessage is the signing challenge descriptor sent to the
// browser, carrying the allow-list of registered devices.
type SignRequestMessage struct {
	AppID          string          `json:"appId"`
	Challenge      string          `json:"challenge"`
	RegisteredKeys []RegisteredKey `json:"registeredKeys"`
}

// SignResponse is the authenticator's reply to a signing challenge.
type SignResponse struct {
	KeyHandle     string `json:"keyHandle"`
	SignatureData string `json:"signatureData"`
	ClientData    string `json:"clientData"`
}
