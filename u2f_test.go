// FIDO U2F Go Library
// Copyright 2015 The FIDO U2F Go Library Authors. All rights reserved.

package u2f

import (
	"encoding/json"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

// mapSession is the simplest possible Session: a map.
type mapSession map[string]interface{}

func (s mapSession) Get(key string) (interface{}, bool) {
	v, ok := s[key]
	return v, ok
}

func (s mapSession) Set(key string, value interface{}) {
	s[key] = value
}

func (s mapSession) Pop(key string) (interface{}, bool) {
	v, ok := s[key]
	delete(s, key)
	return v, ok
}

type testDevice struct {
	version    string
	appID      string
	keyHandle  []byte
	publicKey  []byte
	counter    uint32
	transports Transports
}

func (d *testDevice) Version() string        { return d.version }
func (d *testDevice) AppID() string          { return d.appID }
func (d *testDevice) KeyHandle() []byte      { return d.keyHandle }
func (d *testDevice) PublicKey() []byte      { return d.publicKey }
func (d *testDevice) Counter() uint32        { return d.counter }
func (d *testDevice) Transports() Transports { return d.transports }

// testStore implements both persistence hooks and counts their
// invocations.
type testStore struct {
	devices        []*testDevice
	counterUpdates int
}

func newTestStore() *testStore {
	return &testStore{}
}

func (s *testStore) create(t *testing.T, appID string, keyHandle, publicKey []byte, transports Transports) *testDevice {
	t.Helper()
	d := &testDevice{
		version:    Version,
		appID:      appID,
		keyHandle:  keyHandle,
		publicKey:  publicKey,
		transports: transports,
	}
	s.devices = append(s.devices, d)
	return d
}

func (s *testStore) CreateDeviceRegistration(version, appID string, keyHandle, publicKey []byte, transports Transports) (DeviceRegistration, error) {
	d := &testDevice{
		version:    version,
		appID:      appID,
		keyHandle:  keyHandle,
		publicKey:  publicKey,
		transports: transports,
	}
	s.devices = append(s.devices, d)
	return d, nil
}

func (s *testStore) UpdateDeviceRegistrationCounter(device DeviceRegistration, counter uint32) (DeviceRegistration, error) {
	d, ok := device.(*testDevice)
	if !ok {
		return nil, trace.BadParameter("unexpected device type %T", device)
	}
	s.counterUpdates++
	d.counter = counter
	return d, nil
}

// registerVirtualKey enrols a fresh virtual token against testAppID
// and returns the pieces the signing tests need.
func registerVirtualKey(t *testing.T, transports Transports) (*VirtualKey, *testStore, mapSession, DeviceRegistration) {
	t.Helper()

	vk, err := NewVirtualKeyWithTransports(transports)
	require.NoError(t, err)

	store := newTestStore()
	session := mapSession{}
	manager := NewRegistrationManager(testAppID, store)

	msg, err := manager.CreateRegistrationChallenge(session, nil)
	require.NoError(t, err)

	resp, err := vk.HandleRegisterRequest(msg)
	require.NoError(t, err)

	device, err := manager.ProcessRegistrationResponse(session, *resp)
	require.NoError(t, err)

	return vk, store, session, device
}

// Actual responses captured from a Yubikey with Chrome.
const (
	yubikeyAppID         = "http://localhost:3483"
	yubikeyRegChallenge  = "s4UJ3wkN80p4wLjyI2Guv-_a-s7LV54Ic9PAZvHo_lM"
	yubikeySignChallenge = "PzN6SGiUaeypErE3SCHeRlkRxVwfWlGVi35gfq6LsdY"

	yubikeyRegRespJSON = "{\"responseData\":\"BQTD17IP7bZ3Gcd7l5Ao4qqohsUcm0bcXgHLpn0pv2VWNl7SBtNFo0wEoAdMrHlFXGzJgQz_bRZaKXZfHyd3fAo0QJmZkSv9ZbTKz7TVO6jnOcKGrSHb15JDatMMFxHxN5BR56CE3sj10jtGOY7szQIi4RGU6kONIuriAarxuEFJ5IswggIcMIIBBqADAgECAgQk26tAMAsGCSqGSIb3DQEBCzAuMSwwKgYDVQQDEyNZdWJpY28gVTJGIFJvb3QgQ0EgU2VyaWFsIDQ1NzIwMDYzMTAgFw0xNDA4MDEwMDAwMDBaGA8yMDUwMDkwNDAwMDAwMFowKzEpMCcGA1UEAwwgWXViaWNvIFUyRiBFRSBTZXJpYWwgMTM1MDMyNzc4ODgwWTATBgcqhkjOPQIBBggqhkjOPQMBBwNCAAQCsJS-NH1HeUHEd46-xcpN7SpHn6oeb-w5r-veDCBwy1vUvWnJanjjv4dR_rV5G436ysKUAXUcsVe5fAnkORo2oxIwEDAOBgorBgEEAYLECgEBBAAwCwYJKoZIhvcNAQELA4IBAQCjY64OmDrzC7rxLIst81pZvxy7ShsPy2jEhFWEkPaHNFhluNsCacNG5VOITCxWB68OonuQrIzx70MfcqwYnbIcgkkUvxeIpVEaM9B7TI40ZHzp9h4VFqmps26QCkAgYfaapG4SxTK5k_lCPvqqTPmjtlS03d7ykkpUj9WZlVEN1Pf02aTVIZOHPHHJuH6GhT6eLadejwxtKDBTdNTv3V4UlvjDOQYQe9aL1jUNqtLDeBHso8pDvJMLc0CX3vadaI2UVQxM-xip4kuGouXYj0mYmaCbzluBDFNsrzkNyL3elg3zMMrKvAUhoYMjlX_-vKWcqQsgsQ0JtSMcWMJ-umeDMEQCIApTYovLr8citOpIKkyNidCQz7UeSOWNMlPBB-s3r4G9AiAskXkh7iale4QDe6a-675L3xzohYb8Fcvz3gH6dkDLvw\",\"version\":\"U2F_V2\",\"clientData\":\"eyJ0eXAiOiJuYXZpZ2F0b3IuaWQuZmluaXNoRW5yb2xsbWVudCIsImNoYWxsZW5nZSI6InM0VUozd2tOODBwNHdManlJMkd1di1fYS1zN0xWNTRJYzlQQVp2SG9fbE0iLCJvcmlnaW4iOiJodHRwOi8vbG9jYWxob3N0OjM0ODMiLCJjaWRfcHVia2V5IjoiIn0\"}"

	yubikeySignRespJSON = "{\"keyHandle\":\"mZmRK_1ltMrPtNU7qOc5woatIdvXkkNq0wwXEfE3kFHnoITeyPXSO0Y5juzNAiLhEZTqQ40i6uIBqvG4QUnkiw\",\"clientData\":\"eyJ0eXAiOiJuYXZpZ2F0b3IuaWQuZ2V0QXNzZXJ0aW9uIiwiY2hhbGxlbmdlIjoiUHpONlNHaVVhZXlwRXJFM1NDSGVSbGtSeFZ3ZldsR1ZpMzVnZnE2THNkWSIsIm9yaWdpbiI6Imh0dHA6Ly9sb2NhbGhvc3Q6MzQ4MyIsImNpZF9wdWJrZXkiOiIifQ\",\"signatureData\":\"AQAAAAYwRAIgBuyafOXoc9Q7fARcs2JbCZdtnMzVCyeJC-J-2Im1IBsCIDxkzmvPX9RCY8uts4wM1y4wEX9LmNH2Mz_VFd-JdyGE\"}"
)

// TestYubikeyCeremonies replays both ceremonies from captured Yubikey
// traffic, pinning the verification logic to a real token.
func TestYubikeyCeremonies(t *testing.T) {
	store := newTestStore()
	session := mapSession{}

	var regResp RegisterResponse
	require.NoError(t, json.Unmarshal([]byte(yubikeyRegRespJSON), &regResp))

	registration := NewRegistrationManager(yubikeyAppID, store)
	session.Set(RegistrationSessionKey, yubikeyRegChallenge)

	device, err := registration.ProcessRegistrationResponse(session, regResp)
	require.NoError(t, err)
	require.Equal(t, Version, device.Version())
	require.Equal(t, yubikeyAppID, device.AppID())
	require.Zero(t, device.Counter())

	// This Yubikey's attestation certificate has no transports
	// extension.
	require.Nil(t, device.Transports())

	// The key handle echoed in the captured sign response matches
	// the one extracted at registration.
	var signResp SignResponse
	require.NoError(t, json.Unmarshal([]byte(yubikeySignRespJSON), &signResp))
	require.Equal(t, websafeEncode(device.KeyHandle()), signResp.KeyHandle)

	signing := NewSigningManager(yubikeyAppID, store)
	session.Set(SigningSessionKey, yubikeySignChallenge)

	updated, err := signing.ProcessSigningResponse(session, signResp, []DeviceRegistration{device})
	require.NoError(t, err)
	require.Equal(t, uint32(6), updated.Counter())
	require.Equal(t, 1, store.counterUpdates)

	// Replaying the captured assertion must fail on the counter.
	_, err = signing.ProcessSigningResponse(session, signResp, []DeviceRegistration{updated})
	require.Error(t, err)
	require.True(t, IsInvalidData(err))
	require.Equal(t, 1, store.counterUpdates)
}

// TestFullCeremonies runs register → sign → sign against the virtual
// token, checking the counter climbs.
func TestFullCeremonies(t *testing.T) {
	vk, store, session, device := registerVirtualKey(t, Transports{TransportUSB})

	require.Equal(t, Transports{TransportUSB}, device.Transports())

	signing := NewSigningManager(testAppID, store)
	for want := uint32(1); want <= 2; want++ {
		msg, err := signing.CreateSigningChallenge(session, []DeviceRegistration{device})
		require.NoError(t, err)

		resp, err := vk.HandleSignRequest(msg)
		require.NoError(t, err)

		device, err = signing.ProcessSigningResponse(session, *resp, []DeviceRegistration{device})
		require.NoError(t, err)
		require.Equal(t, want, device.Counter())
	}
}
