// Copyright 2024-2026 Aiku AI

package pairing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/wa-pairing/pkg/connector"
	"github.com/aiku/wa-pairing/pkg/notify"
	"github.com/aiku/wa-pairing/pkg/upload"
)

const testNumber Number = "15551234567"

type sentMessage struct {
	Kind     string
	To       string
	Text     string
	ImageURL string
}

// fakeSession is a scripted Session. OnConnect runs inside Connect and may
// push events.
type fakeSession struct {
	dir        string
	events     chan connector.Event
	registered bool
	userJID    string
	code       string
	codeErr    error
	connectErr error
	writeCreds bool
	panicOnJID bool
	OnConnect  func(s *fakeSession)

	mu     sync.Mutex
	sent   []sentMessage
	closed bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		events:     make(chan connector.Event, 8),
		userJID:    "15551234567@s.whatsapp.net",
		code:       "ABCD-EFGH",
		writeCreds: true,
	}
}

func (s *fakeSession) Events() <-chan connector.Event { return s.events }

func (s *fakeSession) Connect(ctx context.Context) error {
	if s.connectErr != nil {
		return s.connectErr
	}
	if s.OnConnect != nil {
		s.OnConnect(s)
	}
	return nil
}

func (s *fakeSession) Registered() bool { return s.registered }

func (s *fakeSession) RequestPairingCode(ctx context.Context, number string) (string, error) {
	if s.codeErr != nil {
		return "", s.codeErr
	}
	return s.code, nil
}

func (s *fakeSession) ExportCreds() (string, error) {
	if !s.writeCreds {
		return "", errors.New("no credentials yet")
	}
	path := filepath.Join(s.dir, connector.CredsFileName)
	return path, os.WriteFile(path, []byte(`{"registered":true}`), 0o600)
}

func (s *fakeSession) UserJID() string {
	if s.panicOnJID {
		panic("device store vanished")
	}
	return s.userJID
}

func (s *fakeSession) SendText(ctx context.Context, to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{Kind: "text", To: to, Text: text})
	return nil
}

func (s *fakeSession) SendImage(ctx context.Context, to, imageURL, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{Kind: "image", To: to, Text: caption, ImageURL: imageURL})
	return nil
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSession) Sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

func (s *fakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeOpener hands out one scripted session per attempt. Once the script
// runs out, the last session is reused.
type fakeOpener struct {
	root     string
	sessions []*fakeSession
	openErr  error

	mu    sync.Mutex
	opens int
	dirs  []string
}

func (o *fakeOpener) NewSessionDir(name string) (string, error) {
	dir := filepath.Join(o.root, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	o.mu.Lock()
	o.dirs = append(o.dirs, dir)
	o.mu.Unlock()
	return dir, nil
}

func (o *fakeOpener) Open(ctx context.Context, dir string) (Session, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	idx := min(o.opens, len(o.sessions)-1)
	o.opens++
	s := o.sessions[idx]
	s.dir = dir
	return s, nil
}

func (o *fakeOpener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

func (o *fakeOpener) Dirs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.dirs...)
}

type fakeUploader struct {
	err error

	mu      sync.Mutex
	names   []string
	payload [][]byte
}

func (u *fakeUploader) Upload(ctx context.Context, name string, r io.Reader, size int64) (upload.Object, error) {
	if u.err != nil {
		return upload.Object{}, u.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return upload.Object{}, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.names = append(u.names, name)
	u.payload = append(u.payload, buf.Bytes())
	return upload.Object{Key: "sessions/" + name, Link: u.LinkPrefix() + name}, nil
}

func (u *fakeUploader) LinkPrefix() string { return "https://files.example.com/sessions/" }

func (u *fakeUploader) Uploads() ([]string, [][]byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.names...), append([][]byte(nil), u.payload...)
}

type fakeRestarter struct {
	mu      sync.Mutex
	reasons []string
}

func (r *fakeRestarter) Restart(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *fakeRestarter) Reasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Paired
}

func (n *fakeNotifier) Notify(ctx context.Context, paired notify.Paired) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, paired)
	return nil
}

func (n *fakeNotifier) Events() []notify.Paired {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Paired(nil), n.events...)
}

func testConfig() Config {
	return Config{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
		FlowTimeout:       5 * time.Second,
		SendTimeout:       time.Second,
	}
}

type harness struct {
	pairer    *Pairer
	opener    *fakeOpener
	uploader  *fakeUploader
	restarter *fakeRestarter
	notifier  *fakeNotifier
}

func newHarness(t *testing.T, cfg Config, sessions ...*fakeSession) *harness {
	t.Helper()
	messages := &connector.Config{
		CaptionTemplate: "Session: {{.SessionID}}",
		Warning:         "Keep it private.",
	}
	if err := messages.PostProcess(); err != nil {
		t.Fatalf("PostProcess: %v", err)
	}
	h := &harness{
		opener:    &fakeOpener{root: t.TempDir(), sessions: sessions},
		uploader:  &fakeUploader{},
		restarter: &fakeRestarter{},
		notifier:  &fakeNotifier{},
	}
	p, err := New(cfg, Deps{
		Opener:    h.opener,
		Uploader:  h.uploader,
		Notifier:  h.notifier,
		Restarter: h.restarter,
		Messages:  messages,
		Backend:   "disk",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.pairer = p
	return h
}

// pair runs one flow and waits until it has fully finished.
func (h *harness) pair(t *testing.T) Outcome {
	t.Helper()
	var outcome Outcome
	select {
	case outcome = <-h.pairer.Pair(context.Background(), testNumber):
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.pairer.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	return outcome
}

func (h *harness) assertDirsRemoved(t *testing.T) {
	t.Helper()
	dirs := h.opener.Dirs()
	if len(dirs) == 0 {
		t.Fatal("no session directory was created")
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("session directory %s still exists (err=%v)", dir, err)
		}
	}
}

func openOnConnect(s *fakeSession) {
	s.events <- connector.CredsUpdate{}
	s.events <- connector.ConnectionUpdate{State: connector.StateOpen}
}

func closeOnConnect(status int) func(s *fakeSession) {
	return func(s *fakeSession) {
		s.events <- connector.ConnectionUpdate{State: connector.StateClose, StatusCode: status}
	}
}
