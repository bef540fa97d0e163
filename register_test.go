// Go FIDO U2F Library
// Copyright 2015 The Go FIDO U2F Library Authors. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package u2f

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestCreateRegistrationChallenge(t *testing.T) {
	store := newTestStore()
	manager := NewRegistrationManager(testAppID, store)
	session := mapSession{}

	enrolled := store.create(t, testAppID, []byte("handle-1"), make([]byte, 65), Transports{TransportUSB})

	msg, err := manager.CreateRegistrationChallenge(session, []DeviceRegistration{enrolled})
	require.NoError(t, err)

	stored, ok := session.Get(RegistrationSessionKey)
	require.True(t, ok)

	want := &RegisterRequestMessage{
		AppID: testAppID,
		RegisterRequests: []RegisterRequest{{
			Version:   "U2F_V2",
			Challenge: stored.(string),
		}},
		RegisteredKeys: []RegisteredKey{{
			Version:    "U2F_V2",
			AppID:      testAppID,
			KeyHandle:  websafeEncode([]byte("handle-1")),
			Transports: []string{"usb"},
		}},
	}
	require.Empty(t, cmp.Diff(want, msg))
}

func TestCreateRegistrationChallengeOverwrites(t *testing.T) {
	manager := NewRegistrationManager(testAppID, newTestStore())
	session := mapSession{}

	first, err := manager.CreateRegistrationChallenge(session, nil)
	require.NoError(t, err)
	second, err := manager.CreateRegistrationChallenge(session, nil)
	require.NoError(t, err)
	require.NotEqual(t, first.RegisterRequests[0].Challenge, second.RegisterRequests[0].Challenge)

	stored, _ := session.Get(RegistrationSessionKey)
	require.Equal(t, second.RegisterRequests[0].Challenge, stored)
}

func TestProcessRegistrationResponse(t *testing.T) {
	vk, err := NewVirtualKey()
	require.NoError(t, err)

	store := newTestStore()
	manager := NewRegistrationManager(testAppID, store)
	session := mapSession{}

	msg, err := manager.CreateRegistrationChallenge(session, nil)
	require.NoError(t, err)

	resp, err := vk.HandleRegisterRequest(msg)
	require.NoError(t, err)

	device, err := manager.ProcessRegistrationResponse(session, *resp)
	require.NoError(t, err)

	// The device's public key is the 65-byte point at offset 1 of
	// the raw message, and the key handle the bytes its embedded
	// length selects.
	raw, err := websafeDecode(resp.ResponseData)
	require.NoError(t, err)
	require.Equal(t, raw[1:66], device.PublicKey())
	require.Equal(t, byte(0x04), device.PublicKey()[0])
	khLen := int(raw[66])
	require.Equal(t, raw[67:67+khLen], device.KeyHandle())

	require.Equal(t, Version, device.Version())
	require.Equal(t, testAppID, device.AppID())
	require.Zero(t, device.Counter())
	require.Len(t, store.devices, 1)

	// The challenge is consumed: replaying the response is a state
	// error, not a verification failure.
	_, err = manager.ProcessRegistrationResponse(session, *resp)
	require.Error(t, err)
	require.True(t, IsStateError(err))
}

func TestProcessRegistrationResponseNoChallenge(t *testing.T) {
	manager := NewRegistrationManager(testAppID, newTestStore())

	_, err := manager.ProcessRegistrationResponse(mapSession{}, RegisterResponse{Version: Version})
	require.Error(t, err)
	require.True(t, IsStateError(err))
	require.False(t, IsInvalidData(err))
}

func TestProcessRegistrationResponseBadVersion(t *testing.T) {
	manager := NewRegistrationManager(testAppID, newTestStore())
	session := mapSession{}
	session.Set(RegistrationSessionKey, testChallenge)

	_, err := manager.ProcessRegistrationResponse(session, RegisterResponse{Version: "U2F_V1"})
	require.Error(t, err)
	require.True(t, IsInvalidData(err))
}

func TestProcessRegistrationResponseWrongOrigin(t *testing.T) {
	vk, err := NewVirtualKey()
	require.NoError(t, err)

	store := newTestStore()
	manager := NewRegistrationManager(testAppID, store)
	session := mapSession{}

	msg, err := manager.CreateRegistrationChallenge(session, nil)
	require.NoError(t, err)

	// The token saw a different origin than the manager expects.
	msg.AppID = "http://evil.example.com"
	resp, err := vk.HandleRegisterRequest(msg)
	require.NoError(t, err)

	_, err = manager.ProcessRegistrationResponse(session, *resp)
	require.Error(t, err)
	require.True(t, IsInvalidData(err))
	require.Empty(t, store.devices)
}

func TestProcessRegistrationResponseTransports(t *testing.T) {
	vk, err := NewVirtualKeyWithTransports(Transports{TransportUSB, TransportNFC})
	require.NoError(t, err)

	store := newTestStore()
	manager := NewRegistrationManager(testAppID, store)
	session := mapSession{}

	msg, err := manager.CreateRegistrationChallenge(session, nil)
	require.NoError(t, err)
	resp, err := vk.HandleRegisterRequest(msg)
	require.NoError(t, err)

	device, err := manager.ProcessRegistrationResponse(session, *resp)
	require.NoError(t, err)
	require.Equal(t, Transports{TransportUSB, TransportNFC}, device.Transports())
}
