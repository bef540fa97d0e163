// U2F token implementation for integration testing

package u2f

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"math/bits"
	"time"

	"github.com/gravitational/trace"
)

// VirtualKey is an in-process software U2F token. It enrols and signs
// like a hardware key, which lets the ceremony tests run end to end
// without captured fixtures.
type VirtualKey struct {
	attestationKey       *ecdsa.PrivateKey
	attestationCertBytes []byte
	keys                 []*keyInst
}

// Key instance attached to an app ID (and key handle).
type keyInst struct {
	Generated time.Time
	AppID     string
	KeyHandle string
	Private   *ecdsa.PrivateKey
	Counter   uint32
}

// NewVirtualKey creates a virtual token whose attestation certificate
// carries no transports extension.
func NewVirtualKey() (*VirtualKey, error) {
	return NewVirtualKeyWithTransports(nil)
}

// NewVirtualKeyWithTransports creates a virtual token. A non-nil
// transports set is embedded in the attestation certificate as the
// fido-u2f-transports extension.
func NewVirtualKeyWithTransports(transports Transports) (*VirtualKey, error) {
	attestationKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	certBytes, err := generateAttestationCert(attestationKey, transports)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	return &VirtualKey{
		attestationKey:       attestationKey,
		attestationCertBytes: certBytes,
	}, nil
}

func generateAttestationCert(privateKey *ecdsa.PrivateKey, transports Transports) ([]byte, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	template := x509.Certificate{
		SerialNumber:       serialNumber,
		Subject:            pkix.Name{CommonName: "Virtual U2F Token"},
		KeyUsage:           x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		NotBefore:          time.Now(),
		NotAfter:           time.Now().Add(365 * 24 * time.Hour),
		SignatureAlgorithm: x509.ECDSAWithSHA256,
	}
	if transports != nil {
		flags := transports.ToByte()
		var unused byte
		if flags != 0 {
			unused = byte(bits.TrailingZeros8(flags))
		}
		template.ExtraExtensions = []pkix.Extension{{
			Id:    asn1.ObjectIdentifier(transportExtensionOID),
			Value: []byte{0x03, 0x02, unused, flags},
		}}
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return derBytes, nil
}

func (vk *VirtualKey) getKeyByAppIDAndKeyHandle(appID, keyHandle string) *keyInst {
	for _, k := range vk.keys {
		if k.AppID == appID && k.KeyHandle == keyHandle {
			return k
		}
	}
	return nil
}

// SetCounter overrides the usage counter of the key enrolled against
// appID under keyHandle. Lets tests replay old counter values.
func (vk *VirtualKey) SetCounter(appID, keyHandle string, counter uint32) error {
	k := vk.getKeyByAppIDAndKeyHandle(appID, keyHandle)
	if k == nil {
		return trace.NotFound("no key for app ID %q and handle %q", appID, keyHandle)
	}
	k.Counter = counter
	return nil
}

func signASN1(privateKey *ecdsa.PrivateKey, msg []byte) ([]byte, error) {
	sig, err := ecdsa.SignASN1(rand.Reader, privateKey, sha256Sum(msg))
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return sig, nil
}

// HandleRegisterRequest enrols a fresh key pair for the requesting app
// and returns the attested registration response a browser would
// relay.
func (vk *VirtualKey) HandleRegisterRequest(req *RegisterRequestMessage) (*RegisterResponse, error) {
	for _, k := range req.RegisteredKeys {
		kh, err := websafeDecode(k.KeyHandle)
		if err != nil {
			continue
		}
		if vk.getKeyByAppIDAndKeyHandle(req.AppID, string(kh)) != nil {
			return nil, trace.AlreadyExists("key already registered for app ID %q (handle %q)", req.AppID, k.KeyHandle)
		}
	}
	if len(req.RegisterRequests) == 0 {
		return nil, trace.BadParameter("no register requests in message")
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	publicKey := elliptic.Marshal(elliptic.P256(), privateKey.PublicKey.X, privateKey.PublicKey.Y)
	keyHandle := fmt.Sprintf("virtualkey-%d", len(vk.keys))

	clientData, err := json.Marshal(ClientData{
		Typ:       string(RequestTypeRegister),
		Challenge: req.RegisterRequests[0].Challenge,
		Origin:    req.AppID,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	app, err := appParam(req.AppID)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	msg := []byte{0}
	msg = append(msg, app...)
	msg = append(msg, sha256Sum(clientData)...)
	msg = append(msg, keyHandle...)
	msg = append(msg, publicKey...)
	sig, err := signASN1(vk.attestationKey, msg)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	var raw []byte
	raw = append(raw, 0x05)
	raw = append(raw, publicKey...)
	raw = append(raw, byte(len(keyHandle)))
	raw = append(raw, keyHandle...)
	raw = append(raw, vk.attestationCertBytes...)
	raw = append(raw, sig...)

	vk.keys = append(vk.keys, &keyInst{
		Generated: time.Now(),
		AppID:     req.AppID,
		KeyHandle: keyHandle,
		Private:   privateKey,
	})

	return &RegisterResponse{
		Version:      Version,
		ResponseData: websafeEncode(raw),
		ClientData:   websafeEncode(clientData),
	}, nil
}

// HandleSignRequest signs the challenge with the key enrolled for one
// of the allow-listed handles, bumping the usage counter.
func (vk *VirtualKey) HandleSignRequest(req *SignRequestMessage) (*SignResponse, error) {
	var key *keyInst
	for _, k := range req.RegisteredKeys {
		kh, err := websafeDecode(k.KeyHandle)
		if err != nil {
			continue
		}
		if ki := vk.getKeyByAppIDAndKeyHandle(req.AppID, string(kh)); ki != nil {
			key = ki
			break
		}
	}
	if key == nil {
		return nil, trace.NotFound("no key registered for app ID %q", req.AppID)
	}

	key.Counter++

	clientData, err := json.Marshal(ClientData{
		Typ:       string(RequestTypeSign),
		Challenge: req.Challenge,
		Origin:    req.AppID,
	})
	if err != nil {
		return nil, trace.Wrap(err)
	}

	app, err := appParam(req.AppID)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	var presenceAndCounter []byte
	presenceAndCounter = append(presenceAndCounter, 0x01)
	presenceAndCounter = binary.BigEndian.AppendUint32(presenceAndCounter, key.Counter)

	var msg []byte
	msg = append(msg, app...)
	msg = append(msg, presenceAndCounter...)
	msg = append(msg, sha256Sum(clientData)...)
	sig, err := signASN1(key.Private, msg)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	return &SignResponse{
		KeyHandle:     websafeEncode([]byte(key.KeyHandle)),
		SignatureData: websafeEncode(append(presenceAndCounter, sig...)),
		ClientData:    websafeEncode(clientData),
	}, nil
}
