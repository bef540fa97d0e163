// Go FIDO U2F Library
// Copyright 2015 The Go FIDO U2F Library Authors. All rights reserved.

package u2f

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/binary"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

// pubKeyDERPrefix is the SubjectPublicKeyInfo header for an ECDSA
// secp256r1 uncompressed public key. Stored device keys are raw SEC1
// points; prepending this prefix yields a DER document the standard
// parser accepts.
var pubKeyDERPrefix = []byte{
	0x30, 0x59, 0x30, 0x13, 0x06, 0x07, 0x2a, 0x86, 0x48, 0xce,
	0x3d, 0x02, 0x01, 0x06, 0x08, 0x2a, 0x86, 0x48, 0xce, 0x3d,
	0x03, 0x01, 0x07, 0x03, 0x42, 0x00,
}

// SignatureData is the decoded raw signature (assertion) message:
//
//	1 byte   user presence (low bit set when the user touched)
//	4 bytes  counter, big-endian
//	R bytes  ECDSA signature (remainder)
type SignatureData struct {
	UserPresence byte
	Counter      uint32
	Signature    []byte
}

// ParseSignatureData decodes a raw signature message.
func ParseSignatureData(data []byte) (*SignatureData, error) {
	buf := data

	presence, err := popBytes(&buf, 1)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	counter, err := popBytes(&buf, 4)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	return &SignatureData{
		UserPresence: presence[0],
		Counter:      binary.BigEndian.Uint32(counter),
		Signature:    buf,
	}, nil
}

// SignatureDataFromBase64 decodes the websafe-base64 form of a raw
// signature message.
func SignatureDataFromBase64(encoded string) (*SignatureData, error) {
	data, err := websafeDecode(encoded)
	if err != nil {
		return nil, trace.BadParameter("u2f: invalid signature data: %v", err)
	}
	sd, err := ParseSignatureData(data)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return sd, nil
}

// UserPresent reports whether the token observed a user presence test.
// Only the low bit is definitive.
func (sd *SignatureData) UserPresent() bool {
	return sd.UserPresence&1 == 1
}

// Verify checks the assertion signature over
//
//	app_param || user_presence || counter_be32 || challenge_param
//
// against the enrolled device's raw 65-byte public key. Note the field
// order differs from registration: the presence and counter bytes sit
// between the two hashes.
func (sd *SignatureData) Verify(appParam, challengeParam, publicKey []byte) error {
	parsed, err := x509.ParsePKIXPublicKey(append(pubKeyDERPrefix, publicKey...))
	if err != nil {
		return trace.BadParameter("u2f: device has invalid public key: %v", err)
	}
	pubKey, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return trace.BadParameter("u2f: device public key is not an ECDSA key")
	}

	msg := make([]byte, 0, len(appParam)+5+len(challengeParam))
	msg = append(msg, appParam...)
	msg = append(msg, sd.UserPresence)
	msg = binary.BigEndian.AppendUint32(msg, sd.Counter)
	msg = append(msg, challengeParam...)

	if !ecdsa.VerifyASN1(pubKey, sha256Sum(msg), sd.Signature) {
		return trace.BadParameter("u2f: authentication signature is invalid")
	}
	return nil
}

// CounterStore persists the monotonic assertion counter after a
// successful sign-in and returns the updated device. Two concurrent
// assertions for the same device can both observe the pre-update
// counter; the store is the single serialization point and should
// write with compare-and-set semantics (write only if stored < new).
type CounterStore interface {
	UpdateDeviceRegistrationCounter(device DeviceRegistration, counter uint32) (DeviceRegistration, error)
}

// CounterStoreFunc adapts a function to the CounterStore interface.
type CounterStoreFunc func(device DeviceRegistration, counter uint32) (DeviceRegistration, error)

func (f CounterStoreFunc) UpdateDeviceRegistrationCounter(device DeviceRegistration, counter uint32) (DeviceRegistration, error) {
	return f(device, counter)
}

// SigningManager drives the sign-in (assertion) ceremony for one
// app ID.
type SigningManager struct {
	// AppID is the application ID challenges are issued for.
	AppID string
	// Counters persists counter updates.
	Counters CounterStore
	// ConsumeChallenge pops the challenge from the session when a
	// response is processed instead of leaving it in place. Off by
	// default; when off the caller is responsible for not replaying.
	ConsumeChallenge bool
}

// NewSigningManager creates a signing ceremony manager.
func NewSigningManager(appID string, counters CounterStore) *SigningManager {
	return &SigningManager{AppID: appID, Counters: counters}
}

// CreateSigningChallenge generates a fresh challenge for the devices
// enrolled against the manager's app ID, stores it in the session and
// returns the descriptor to relay to the browser. Requesting a
// challenge with no eligible devices is a caller error, reported as a
// plain error rather than invalid data.
func (m *SigningManager) CreateSigningChallenge(session Session, registeredDevices []DeviceRegistration) (*SignRequestMessage, error) {
	devices := FilterDevicesByAppID(registeredDevices, m.AppID)
	if len(devices) == 0 {
		return nil, trace.Errorf("u2f: cannot issue a signing challenge with no registered devices")
	}

	challenge, err := issueChallenge(session, SigningSessionKey)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	log.WithField("app_id", m.AppID).Debug("Issued signing challenge.")

	return &SignRequestMessage{
		AppID:          m.AppID,
		Challenge:      challenge,
		RegisteredKeys: marshalRegisteredKeys(devices),
	}, nil
}

// ProcessSigningResponse verifies an assertion against the outstanding
// challenge and the device selected by key handle, enforces counter
// monotonicity and delegates the counter update to the CounterStore.
// The updated device is returned.
func (m *SigningManager) ProcessSigningResponse(session Session, response SignResponse, registeredDevices []DeviceRegistration) (DeviceRegistration, error) {
	devices := FilterDevicesByAppID(registeredDevices, m.AppID)

	challenge, err := storedChallenge(session, SigningSessionKey, m.ConsumeChallenge)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	device, err := deviceByKeyHandle(devices, response.KeyHandle)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	clientData, err := validateClientData(response.ClientData, RequestTypeSign, m.AppID, challenge)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	signatureData, err := SignatureDataFromBase64(response.SignatureData)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	app, err := appParam(m.AppID)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if err := signatureData.Verify(app, sha256Sum([]byte(clientData)), device.PublicKey()); err != nil {
		return nil, trace.Wrap(err)
	}

	if !signatureData.UserPresent() {
		return nil, trace.BadParameter("u2f: user presence flag not set")
	}

	if signatureData.Counter <= device.Counter() {
		log.WithFields(logrus.Fields{
			"app_id":  m.AppID,
			"stored":  device.Counter(),
			"counter": signatureData.Counter,
		}).Warn("Assertion counter did not increase; token may be cloned.")
		return nil, trace.BadParameter("u2f: counter did not increase, token may be cloned")
	}

	updated, err := m.Counters.UpdateDeviceRegistrationCounter(device, signatureData.Counter)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return updated, nil
}

// deviceByKeyHandle selects the device whose key handle matches the
// websafe-base64 handle echoed by the browser.
func deviceByKeyHandle(devices []DeviceRegistration, keyHandle string) (DeviceRegistration, error) {
	for _, device := range devices {
		if websafeEncode(device.KeyHandle()) == keyHandle {
			return device, nil
		}
	}
	return nil, trace.BadParameter("u2f: given key handle is not registered")
}
