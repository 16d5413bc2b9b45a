package classgate

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testConfig keeps argon2 cheap and throttles out of the way.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSigningKey = bytes.Repeat([]byte("a"), 32)
	cfg.JWT.RefreshSigningKey = bytes.Repeat([]byte("r"), 32)
	cfg.Passcode.Pepper = bytes.Repeat([]byte("p"), 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Throttle.MaxRequests = 100
	cfg.Throttle.MaxLoginAttempts = 100
	return cfg
}

type memoryUsers struct {
	mu      sync.Mutex
	byID    map[string]User
	byEmail map[string]string
	creates int
	failAll error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]User{}, byEmail: map[string]string{}}
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return User{}, m.failAll
	}
	id, ok := m.byEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return m.byID[id], nil
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return User{}, m.failAll
	}
	u, ok := m.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUsers) Create(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrAlreadyRegistered
	}
	m.creates++
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *memoryUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memoryClassrooms struct {
	rooms map[string]Classroom
}

func (m *memoryClassrooms) FindClassroom(_ context.Context, id string) (Classroom, error) {
	c, ok := m.rooms[id]
	if !ok {
		return Classroom{}, ErrClassroomNotFound
	}
	return c, nil
}

func (m *memoryClassrooms) CountOwned(_ context.Context, ownerID string) (int, error) {
	n := 0
	for _, c := range m.rooms {
		if c.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

type memberKey struct{ classroom, email string }

type memoryMemberships struct {
	mu      sync.Mutex
	members map[memberKey]bool
}

func newMemoryMemberships() *memoryMemberships {
	return &memoryMemberships{members: map[memberKey]bool{}}
}

func (m *memoryMemberships) AddMember(_ context.Context, classroomID, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memberKey{classroomID, email}
	if m.members[k] {
		return false, nil
	}
	m.members[k] = true
	return true, nil
}

func (m *memoryMemberships) IsMember(_ context.Context, classroomID, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[memberKey{classroomID, email}], nil
}

func (m *memoryMemberships) CountJoined(_ context.Context, email string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.members {
		if k.email == email {
			n++
		}
	}
	return n, nil
}

type sentMessage struct {
	to, subject, body string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{to: to, subject: subject, body: body})
	return nil
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// lastCode returns the passcode in the most recent message sent to to.
func (n *recordingNotifier) lastCode(t testing.TB, to string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].to != to {
			continue
		}
		code := codePattern.FindString(n.sent[i].body)
		if code == "" {
			t.Fatalf("no code in message body %q", n.sent[i].body)
		}
		return code
	}
	t.Fatalf("no message sent to %s", to)
	return ""
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type testHarness struct {
	engine      *Engine
	mr          *miniredis.Miniredis
	clock       *testClock
	users       *memoryUsers
	classrooms  *memoryClassrooms
	memberships *memoryMemberships
	notifier    *recordingNotifier
	logs        *bytes.Buffer
}

func newHarness(t testing.TB, cfg Config, sink AuditSink) *testHarness {
	t.Helper()

	mr, rdb := newTestRedis(t)
	h := &testHarness{
		mr:          mr,
		clock:       newTestClock(),
		users:       newMemoryUsers(),
		classrooms:  &memoryClassrooms{rooms: map[string]Classroom{}},
		memberships: newMemoryMemberships(),
		notifier:    &recordingNotifier{},
		logs:        &bytes.Buffer{},
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserDirectory(h.users).
		WithClassrooms(h.classrooms).
		WithMemberships(h.memberships).
		WithNotifier(h.notifier).
		WithLogger(slog.New(slog.NewJSONHandler(h.logs, nil))).
		WithAuditSink(sink).
		WithClock(h.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	h.engine = engine
	t.Cleanup(engine.Close)
	return h
}

// register runs the full registration flow and returns the session.
func (h *testHarness) register(t testing.TB, name, email, pw string, role Role) *Session {
	t.Helper()
	ctx := context.Background()
	if err := h.engine.RequestRegistrationCode(ctx, email); err != nil {
		t.Fatalf("RequestRegistrationCode(%s): %v", email, err)
	}
	session, err := h.engine.CompleteRegistration(ctx, RegistrationInput{
		Name:     name,
		Email:    email,
		Password: pw,
		Code:     h.notifier.lastCode(t, email),
		Role:     role,
	})
	if err != nil {
		t.Fatalf("CompleteRegistration(%s): %v", email, err)
	}
	return session
}

// student registers a student account and returns its identity.
func (h *testHarness) student(t testing.TB, name, email string) Identity {
	t.Helper()
	return Identity{UserID: h.register(t, name, email, "secret1", RoleStudent).User.ID}
}

func wantErr(t *testing.T, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
