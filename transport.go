// Go FIDO U2F Library
// Copyright 2015 The Go FIDO U2F Library Authors. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package u2f

import "sort"

// Transport is a single authenticator transport, as encoded in the
// fido-u2f-transports attestation certificate extension. The value is
// the bit assigned to the transport in the extension's BIT STRING.
type Transport byte

const (
	TransportBluetoothRadio          Transport = 0x80
	TransportBluetoothLowEnergyRadio Transport = 0x40
	TransportUSB                     Transport = 0x20
	TransportNFC                     Transport = 0x10
	TransportUSBInternal             Transport = 0x08
)

var transportNames = map[Transport]string{
	TransportBluetoothRadio:          "br",
	TransportBluetoothLowEnergyRadio: "ble",
	TransportUSB:                     "usb",
	TransportNFC:                     "nfc",
	TransportUSBInternal:             "usb-internal",
}

// allTransports in descending bit order.
var allTransports = []Transport{
	TransportBluetoothRadio,
	TransportBluetoothLowEnergyRadio,
	TransportUSB,
	TransportNFC,
	TransportUSBInternal,
}

// InternalName returns the transport's wire/JS name, or "" for an
// undefined bit.
func (t Transport) InternalName() string {
	return transportNames[t]
}

// Transports is the set of transports a device supports. A nil set
// means the transports are unknown, which is distinct from an empty
// (but non-nil) set of a device that reported none.
type Transports []Transport

// TransportsFromByte returns every defined transport whose bit is set
// in b. The result is never nil: absence of knowledge is expressed by
// never calling this at all.
func TransportsFromByte(b byte) Transports {
	ts := Transports{}
	for _, t := range allTransports {
		if byte(t)&b != 0 {
			ts = append(ts, t)
		}
	}
	return ts
}

// ToByte returns the bitwise OR of the set's transport bits.
func (ts Transports) ToByte() byte {
	var b byte
	for _, t := range ts {
		b |= byte(t)
	}
	return b
}

// InternalNames projects the set to the client-facing form: nil for an
// unknown set, a sorted list of internal names otherwise.
func (ts Transports) InternalNames() []string {
	if ts == nil {
		return nil
	}
	names := make([]string, 0, len(ts))
	for _, t := range ts {
		names = append(names, t.InternalName())
	}
	sort.Strings(names)
	return names
}

// InternalInt encodes the set as a single integer for storage layers
// that persist transports in one column: -1 for unknown, the transport
// byte otherwise.
func (ts Transports) InternalInt() int {
	if ts == nil {
		return -1
	}
	return int(ts.ToByte())
}

// TransportsFromInternalInt is the inverse of InternalInt.
func TransportsFromInternalInt(v int) Transports {
	if v < 0 {
		return nil
	}
	return TransportsFromByte(byte(v))
}

// RequestType is the request-type tag the browser places in the client
// data envelope. The strings are checked verbatim.
type RequestType string

const (
	RequestTypeRegister RequestType = "navigator.id.finishEnrollment"
	RequestTypeSign     RequestType = "navigator.id.getAssertion"
)
