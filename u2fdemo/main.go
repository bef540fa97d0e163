// FIDO U2F Go Library
// Copyright 2015 The FIDO U2F Go Library Authors. All rights reserved.

// Command u2fdemo is a minimal relying party exercising both U2F
// ceremonies. Sessions and device records live in memory; a real
// deployment would back them with its own session and device storage.
package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	u2f "github.com/software-opal/go-fido"
)

var (
	addr  = flag.String("addr", "localhost:3483", "address to listen on")
	appID = flag.String("app-id", "http://localhost:3483", "U2F application ID; must match the origin the browser sees")
)

var log = logrus.WithField("component", "u2fdemo")

const sessionCookie = "u2fdemo_session"

// memorySession is one browser session's key/value state.
type memorySession struct {
	values  map[string]interface{}
	expires time.Time
}

func (s *memorySession) Get(key string) (interface{}, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *memorySession) Set(key string, value interface{}) {
	s.values[key] = value
}

func (s *memorySession) Pop(key string) (interface{}, bool) {
	v, ok := s.values[key]
	delete(s.values, key)
	return v, ok
}

// sessionStore hands out cookie-identified sessions and expires idle
// ones. Ceremonies time out by their session entry expiring here.
type sessionStore struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	ttl      time.Duration
	sessions map[string]*memorySession
}

func newSessionStore(clock clockwork.Clock, ttl time.Duration) *sessionStore {
	return &sessionStore{
		clock:    clock,
		ttl:      ttl,
		sessions: make(map[string]*memorySession),
	}
}

// session returns the request's session, minting a new one (and
// setting the cookie) as needed.
func (st *sessionStore) session(w http.ResponseWriter, r *http.Request) *memorySession {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.clock.Now()
	for id, s := range st.sessions {
		if now.After(s.expires) {
			delete(st.sessions, id)
		}
	}

	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if s, ok := st.sessions[cookie.Value]; ok {
			s.expires = now.Add(st.ttl)
			return s
		}
	}

	id := uuid.NewString()
	s := &memorySession{
		values:  make(map[string]interface{}),
		expires: now.Add(st.ttl),
	}
	st.sessions[id] = s
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, HttpOnly: true})
	return s
}

// device is an in-memory device record.
type device struct {
	version    string
	appID      string
	keyHandle  []byte
	publicKey  []byte
	counter    uint32
	transports u2f.Transports
}

func (d *device) Version() string            { return d.version }
func (d *device) AppID() string              { return d.appID }
func (d *device) KeyHandle() []byte          { return d.keyHandle }
func (d *device) PublicKey() []byte          { return d.publicKey }
func (d *device) Counter() uint32            { return d.counter }
func (d *device) Transports() u2f.Transports { return d.transports }

// deviceStore implements both persistence hooks over a slice.
type deviceStore struct {
	mu      sync.Mutex
	devices []*device
}

func (st *deviceStore) CreateDeviceRegistration(version, appID string, keyHandle, publicKey []byte, transports u2f.Transports) (u2f.DeviceRegistration, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	d := &device{
		version:    version,
		appID:      appID,
		keyHandle:  keyHandle,
		publicKey:  publicKey,
		transports: transports,
	}
	st.devices = append(st.devices, d)
	return d, nil
}

func (st *deviceStore) UpdateDeviceRegistrationCounter(reg u2f.DeviceRegistration, counter uint32) (u2f.DeviceRegistration, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	d := reg.(*device)
	// Compare-and-set: the loser of a concurrent sign-in race must
	// not move the counter backwards.
	if counter <= d.counter {
		return nil, trace.CompareFailed("stored counter is already %d", d.counter)
	}
	d.counter = counter
	return d, nil
}

func (st *deviceStore) all() []u2f.DeviceRegistration {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]u2f.DeviceRegistration, 0, len(st.devices))
	for _, d := range st.devices {
		out = append(out, d)
	}
	return out
}

type server struct {
	sessions     *sessionStore
	devices      *deviceStore
	registration *u2f.RegistrationManager
	signing      *u2f.SigningManager
}

func (s *server) registerRequest(w http.ResponseWriter, r *http.Request) {
	msg, err := s.registration.CreateRegistrationChallenge(s.sessions.session(w, r), s.devices.all())
	if err != nil {
		log.WithError(err).Error("Creating registration challenge failed.")
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(msg)
}

func (s *server) registerResponse(w http.ResponseWriter, r *http.Request) {
	var resp u2f.RegisterResponse
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		http.Error(w, "invalid response: "+err.Error(), http.StatusBadRequest)
		return
	}

	dev, err := s.registration.ProcessRegistrationResponse(s.sessions.session(w, r), resp)
	if err != nil {
		log.WithError(err).Warn("Registration failed.")
		http.Error(w, "error verifying response", httpStatus(err))
		return
	}

	log.WithField("key_handle", u2f.MarshalRegisteredKey(dev).KeyHandle).Info("Token registered.")
	w.Write([]byte("success"))
}

func (s *server) signRequest(w http.ResponseWriter, r *http.Request) {
	msg, err := s.signing.CreateSigningChallenge(s.sessions.session(w, r), s.devices.all())
	if err != nil {
		log.WithError(err).Error("Creating signing challenge failed.")
		http.Error(w, "error", http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(msg)
}

func (s *server) signResponse(w http.ResponseWriter, r *http.Request) {
	var resp u2f.SignResponse
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		http.Error(w, "invalid response: "+err.Error(), http.StatusBadRequest)
		return
	}

	dev, err := s.signing.ProcessSigningResponse(s.sessions.session(w, r), resp, s.devices.all())
	if err != nil {
		log.WithError(err).Warn("Authentication failed.")
		http.Error(w, "error verifying response", httpStatus(err))
		return
	}

	log.WithField("counter", dev.Counter()).Info("Authentication success.")
	w.Write([]byte("success"))
}

func httpStatus(err error) int {
	if u2f.IsStateError(err) || u2f.IsInvalidData(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

const indexHTML = `
<!DOCTYPE html>
<html>
  <body>
    <h1>FIDO U2F Go Library Demo</h1>

    <ul>
      <li><a href="javascript:register();">Register token</a></li>
      <li><a href="javascript:sign();">Authenticate</a></li>
    </ul>

    <script>
      function post(url, data, done) {
        fetch(url, {method: 'POST', body: JSON.stringify(data)}).then(done);
      }

      function register() {
        fetch('/registerRequest').then(r => r.json()).then(function(req) {
          u2f.register(req.appId, req.registerRequests, req.registeredKeys,
            function(resp) {
              resp.version = 'U2F_V2';
              resp.responseData = resp.registrationData;
              post('/registerResponse', resp, function() { alert('Registered'); });
            }, 30);
        });
      }

      function sign() {
        fetch('/signRequest').then(r => r.json()).then(function(req) {
          u2f.sign(req.appId, req.challenge, req.registeredKeys,
            function(resp) {
              post('/signResponse', resp, function() { alert('Authenticated'); });
            }, 30);
        });
      }
    </script>
  </body>
</html>
`

func indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(indexHTML))
}

func main() {
	flag.Parse()

	devices := &deviceStore{}
	s := &server{
		sessions:     newSessionStore(clockwork.NewRealClock(), 5*time.Minute),
		devices:      devices,
		registration: u2f.NewRegistrationManager(*appID, devices),
		signing:      u2f.NewSigningManager(*appID, devices),
	}

	http.HandleFunc("/", indexHandler)
	http.HandleFunc("/registerRequest", s.registerRequest)
	http.HandleFunc("/registerResponse", s.registerResponse)
	http.HandleFunc("/signRequest", s.signRequest)
	http.HandleFunc("/signResponse", s.signResponse)

	log.WithField("addr", *addr).Info("Listening.")
	logrus.Fatal(http.ListenAndServe(*addr, nil))
}
