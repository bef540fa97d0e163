// Go FIDO U2F Library
// Copyright 2015 The Go FIDO U2F Library Authors. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package u2f

// DeviceRegistration is a stored credential: one enrolment of one
// token against one app ID. The package never constructs devices
// itself; persistence layers implement this interface and hand
// instances back through the DeviceFactory and CounterStore hooks.
type DeviceRegistration interface {
	// Version is the U2F protocol version used at enrolment,
	// always "U2F_V2".
	Version() string
	// AppID is the application ID the device was enrolled against.
	AppID() string
	// KeyHandle is the authenticator-chosen opaque credential
	// identifier.
	KeyHandle() []byte
	// PublicKey is the raw SEC1 uncompressed P-256 point, 65 bytes
	// starting 0x04.
	PublicKey() []byte
	// Counter is the last accepted assertion counter. It only ever
	// increases.
	Counter() uint32
	// Transports is the set of transports the token reported at
	// enrolment, or nil if unknown.
	Transports() Transports
}

// RegisteredKey is the client-facing descriptor of an enrolled device.
// Transports is null when unknown and a sorted list of internal names
// otherwise.
type RegisteredKey struct {
	Version    string   `json:"version"`
	AppID      string   `json:"appId"`
	KeyHandle  string   `json:"keyHandle"`
	Transports []string `json:"transports"`
}

// MarshalRegisteredKey projects a device to the descriptor sent to the
// browser.
func MarshalRegisteredKey(device DeviceRegistration) RegisteredKey {
	return RegisteredKey{
		Version:    device.Version(),
		AppID:      device.AppID(),
		KeyHandle:  websafeEncode(device.KeyHandle()),
		Transports: device.Transports().InternalNames(),
	}
}

// FilterDevicesByAppID returns the devices enrolled against appID.
func FilterDevicesByAppID(devices []DeviceRegistration, appID string) []DeviceRegistration {
	filtered := make([]DeviceRegistration, 0, len(devices))
	for _, device := range devices {
		if device.AppID() == appID {
			filtered = append(filtered, device)
		}
	}
	return filtered
}

func marshalRegisteredKeys(devices []DeviceRegistration) []RegisteredKey {
	keys := make([]RegisteredKey, 0, len(devices))
	for _, device := range devices {
		keys = append(keys, MarshalRegisteredKey(device))
	}
	return keys
}
