// Go FIDO U2F Library
// Copyright 2015 The Go FIDO U2F Library Authors. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package u2f

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransportsFromByte(t *testing.T) {
	require.Equal(t, Transports{}, TransportsFromByte(0))
	require.Equal(t, Transports{TransportUSB}, TransportsFromByte(0x20))
	require.Equal(t,
		Transports{TransportBluetoothRadio, TransportNFC, TransportUSBInternal},
		TransportsFromByte(0x80|0x10|0x08))

	// Undefined bits are ignored.
	require.Equal(t, Transports{TransportUSB}, TransportsFromByte(0x20|0x04|0x01))
}

func TestTransportsByteRoundTrip(t *testing.T) {
	const definedBits = 0x80 | 0x40 | 0x20 | 0x10 | 0x08
	for b := 0; b <= 0xff; b++ {
		defined := byte(b) & definedBits
		require.Equal(t, defined, TransportsFromByte(defined).ToByte(),
			"byte 0x%02x", b)
	}
}

func TestTransportsInternalNames(t *testing.T) {
	// Unknown (nil) projects to null, distinct from the empty set.
	require.Nil(t, Transports(nil).InternalNames())
	require.Equal(t, []string{}, Transports{}.InternalNames())

	require.Equal(t,
		[]string{"ble", "br", "nfc", "usb", "usb-internal"},
		TransportsFromByte(0xff).InternalNames())
	require.Equal(t,
		[]string{"nfc", "usb"},
		Transports{TransportUSB, TransportNFC}.InternalNames())
}

func TestTransportsInternalInt(t *testing.T) {
	require.Equal(t, -1, Transports(nil).InternalInt())
	require.Equal(t, 0, Transports{}.InternalInt())
	require.Equal(t, 0x30, Transports{TransportUSB, TransportNFC}.InternalInt())

	require.Nil(t, TransportsFromInternalInt(-1))
	require.Equal(t, Transports{}, TransportsFromInternalInt(0))
	require.Equal(t,
		Transports{TransportUSB, TransportNFC},
		TransportsFromInternalInt(0x30))
}
