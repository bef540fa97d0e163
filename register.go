// FIDO U2F Go Library
// Copyright 2015 The FIDO U2F Go Library Authors. All rights reserved.

package u2f

import "github.com/gravitational/trace"

// DeviceFactory persists a freshly verified enrolment and returns the
// stored device. It is invoked exactly once per successful
// registration ceremony; publicKey is the raw 65-byte SEC1 point and
// transports is nil when the attestation certificate carries no
// transports extension (unknown), and empty when it reports none.
type DeviceFactory interface {
	CreateDeviceRegistration(version, appID string, keyHandle, publicKey []byte, transports Transports) (DeviceRegistration, error)
}

// DeviceFactoryFunc adapts a function to the DeviceFactory interface.
type DeviceFactoryFunc func(version, appID string, keyHandle, publicKey []byte, transports Transports) (DeviceRegistration, error)

func (f DeviceFactoryFunc) CreateDeviceRegistration(version, appID string, keyHandle, publicKey []byte, transports Transports) (DeviceRegistration, error) {
	return f(version, appID, keyHandle, publicKey, transports)
}

// RegistrationManager drives the enrolment ceremony for one app ID.
type RegistrationManager struct {
	// AppID is the application ID challenges are issued for; the
	// browser's origin must match it exactly.
	AppID string
	// Devices persists verified enrolments.
	Devices DeviceFactory
}

// NewRegistrationManager creates a registration ceremony manager.
func NewRegistrationManager(appID string, devices DeviceFactory) *RegistrationManager {
	return &RegistrationManager{AppID: appID, Devices: devices}
}

// CreateRegistrationChallenge generates a fresh challenge, stores it
// in the session (overwriting any outstanding one) and returns the
// descriptor to relay to the browser. registeredDevices lets the
// authenticator refuse re-enrolment of an already-enrolled token.
func (m *RegistrationManager) CreateRegistrationChallenge(session Session, registeredDevices []DeviceRegistration) (*RegisterRequestMessage, error) {
	challenge, err := issueChallenge(session, RegistrationSessionKey)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	log.WithField("app_id", m.AppID).Debug("Issued registration challenge.")

	return &RegisterRequestMessage{
		AppID: m.AppID,
		RegisterRequests: []RegisterRequest{{
			Version:   Version,
			Challenge: challenge,
		}},
		RegisteredKeys: marshalRegisteredKeys(registeredDevices),
	}, nil
}

// ProcessRegistrationResponse consumes the outstanding challenge,
// verifies the authenticator's registration response against it and
// delegates persistence of the new device to the DeviceFactory. The
// stored device is returned.
func (m *RegistrationManager) ProcessRegistrationResponse(session Session, response RegisterResponse) (DeviceRegistration, error) {
	challenge, err := storedChallenge(session, RegistrationSessionKey, true)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	if response.Version != Version {
		return nil, trace.BadParameter("u2f: unsupported version %q", response.Version)
	}

	registrationData, err := RegistrationDataFromBase64(response.ResponseData)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	clientData, err := validateClientData(response.ClientData, RequestTypeRegister, m.AppID, challenge)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	app, err := appParam(m.AppID)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if err := registrationData.Verify(app, sha256Sum([]byte(clientData))); err != nil {
		return nil, trace.Wrap(err)
	}

	transports, err := registrationData.SupportedTransports()
	if err != nil {
		return nil, trace.Wrap(err)
	}

	device, err := m.Devices.CreateDeviceRegistration(
		Version, m.AppID, registrationData.KeyHandle, registrationData.PublicKey, transports)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return device, nil
}
