package classgate

import (
	"context"
	"testing"
)

func newJoinHarness(t *testing.T) (*testHarness, *Session) {
	t.Helper()
	h := newHarness(t, testConfig(), nil)
	owner := h.register(t, "Tess", "tess@x.com", "secret1", RoleTeacher)
	h.classrooms.rooms["classroom42"] = Classroom{ID: "classroom42", Name: "Physics", OwnerID: owner.User.ID}
	h.classrooms.rooms["classroom7"] = Classroom{ID: "classroom7", Name: "Chemistry", OwnerID: owner.User.ID}
	return h, owner
}

func TestJoinHandshake(t *testing.T) {
	h, _ := newJoinHarness(t)
	bob := h.student(t, "Bob", "bob@x.com")
	ctx := context.Background()

	if err := h.engine.RequestJoin(ctx, bob, "classroom42", "bob@x.com"); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	code := h.notifier.lastCode(t, "tess@x.com")

	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}
	_, err := h.engine.RedeemJoin(ctx, bob, "classroom42", "bob@x.com", wrong)
	wantErr(t, err, ErrJoinCodeInvalid)
	if member, _ := h.memberships.IsMember(ctx, "classroom42", "bob@x.com"); member {
		t.Fatal("wrong code must not create membership")
	}

	result, err := h.engine.RedeemJoin(ctx, bob, "classroom42", "Bob@X.com", code)
	if err != nil {
		t.Fatalf("RedeemJoin: %v", err)
	}
	if result.AlreadyMember || result.ClassroomID != "classroom42" || result.StudentEmail != "bob@x.com" {
		t.Fatalf("unexpected result %+v", result)
	}
	if member, _ := h.memberships.IsMember(ctx, "classroom42", "bob@x.com"); !member {
		t.Fatal("expected membership")
	}

	_, err = h.engine.RedeemJoin(ctx, bob, "classroom42", "bob@x.com", code)
	wantErr(t, err, ErrJoinCodeInvalid)
	if PublicMessage(err) != "Invalid or expired code" {
		t.Fatalf("unexpected public message %q", PublicMessage(err))
	}
}

func TestJoinMessageGoesToOwner(t *testing.T) {
	h, _ := newJoinHarness(t)
	bob := h.student(t, "Bob", "bob@x.com")

	if err := h.engine.RequestJoin(context.Background(), bob, "classroom42", "bob@x.com"); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}

	last := h.notifier.sent[len(h.notifier.sent)-1]
	if last.to != "tess@x.com" {
		t.Fatalf("expected owner recipient, got %s", last.to)
	}
	if last.subject != "Join request for Physics" {
		t.Fatalf("unexpected subject %q", last.subject)
	}
}

func TestJoinCodeBoundToClassroomAndStudent(t *testing.T) {
	h, _ := newJoinHarness(t)
	bob := h.student(t, "Bob", "bob@x.com")
	eve := h.student(t, "Eve", "eve@x.com")
	ctx := context.Background()

	if err := h.engine.RequestJoin(ctx, bob, "classroom42", "bob@x.com"); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	code := h.notifier.lastCode(t, "tess@x.com")

	_, err := h.engine.RedeemJoin(ctx, bob, "classroom7", "bob@x.com", code)
	wantErr(t, err, ErrJoinCodeInvalid)
	_, err = h.engine.RedeemJoin(ctx, eve, "classroom42", "eve@x.com", code)
	wantErr(t, err, ErrJoinCodeInvalid)

	if _, err := h.engine.RedeemJoin(ctx, bob, "classroom42", "bob@x.com", code); err != nil {
		t.Fatalf("original pair should still redeem: %v", err)
	}
}

func TestRedeemJoinAlreadyMemberIsIdempotent(t *testing.T) {
	h, _ := newJoinHarness(t)
	bob := h.student(t, "Bob", "bob@x.com")
	ctx := context.Background()

	if err := h.engine.RequestJoin(ctx, bob, "classroom42", "bob@x.com"); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	code := h.notifier.lastCode(t, "tess@x.com")

	// Membership granted through another path while the code was pending.
	_, _ = h.memberships.AddMember(ctx, "classroom42", "bob@x.com")

	result, err := h.engine.RedeemJoin(ctx, bob, "classroom42", "bob@x.com", code)
	if err != nil {
		t.Fatalf("RedeemJoin: %v", err)
	}
	if !result.AlreadyMember {
		t.Fatal("expected AlreadyMember")
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricJoinAlreadyMember]; got != 1 {
		t.Fatalf("expected already-member metric, got %d", got)
	}
}

func TestRequestJoinRejections(t *testing.T) {
	h, _ := newJoinHarness(t)
	bob := h.student(t, "Bob", "bob@x.com")
	ctx := context.Background()

	wantErr(t, h.engine.RequestJoin(ctx, bob, "", "bob@x.com"), ErrMissingFields)
	wantErr(t, h.engine.RequestJoin(ctx, bob, "classroom42", "bob"), ErrInvalidEmail)
	wantErr(t, h.engine.RequestJoin(ctx, bob, "nope", "bob@x.com"), ErrClassroomNotFound)

	_, _ = h.memberships.AddMember(ctx, "classroom42", "bob@x.com")
	wantErr(t, h.engine.RequestJoin(ctx, bob, "classroom42", "bob@x.com"), ErrAlreadyMember)

	_, err := h.engine.RedeemJoin(ctx, bob, "nope", "bob@x.com", "123456")
	wantErr(t, err, ErrClassroomNotFound)
}

func TestCancelJoin(t *testing.T) {
	h, _ := newJoinHarness(t)
	bob := h.student(t, "Bob", "bob@x.com")
	ctx := context.Background()

	if err := h.engine.RequestJoin(ctx, bob, "classroom42", "bob@x.com"); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	code := h.notifier.lastCode(t, "tess@x.com")

	if err := h.engine.CancelJoin(ctx, bob, "classroom42", "bob@x.com"); err != nil {
		t.Fatalf("CancelJoin: %v", err)
	}
	_, err := h.engine.RedeemJoin(ctx, bob, "classroom42", "bob@x.com", code)
	wantErr(t, err, ErrJoinCodeInvalid)

	if err := h.engine.CancelJoin(ctx, bob, "classroom42", "bob@x.com"); err != nil {
		t.Fatalf("cancel with nothing pending: %v", err)
	}
}

func TestJoinCallsActOnlyForTheCaller(t *testing.T) {
	h, _ := newJoinHarness(t)
	bob := h.student(t, "Bob", "bob@x.com")
	mallory := h.student(t, "Mallory", "mallory@x.com")
	ctx := context.Background()

	sentBefore := len(h.notifier.sent)
	wantErr(t, h.engine.RequestJoin(ctx, mallory, "classroom42", "victim@x.com"), ErrJoinNotPermitted)
	if len(h.notifier.sent) != sentBefore {
		t.Fatal("a refused request must not notify the owner")
	}

	if err := h.engine.RequestJoin(ctx, bob, "classroom42", "bob@x.com"); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	code := h.notifier.lastCode(t, "tess@x.com")

	wantErr(t, h.engine.CancelJoin(ctx, mallory, "classroom42", "bob@x.com"), ErrJoinNotPermitted)
	_, err := h.engine.RedeemJoin(ctx, mallory, "classroom42", "bob@x.com", code)
	wantErr(t, err, ErrJoinNotPermitted)

	if _, err := h.engine.RedeemJoin(ctx, bob, "classroom42", "bob@x.com", code); err != nil {
		t.Fatalf("bob's pending join must survive another student's calls: %v", err)
	}
}

func TestOwnerMayCancelPendingJoin(t *testing.T) {
	h, owner := newJoinHarness(t)
	bob := h.student(t, "Bob", "bob@x.com")
	ctx := context.Background()

	if err := h.engine.RequestJoin(ctx, bob, "classroom42", "bob@x.com"); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	code := h.notifier.lastCode(t, "tess@x.com")

	// Ownership admits cancel only; the owner cannot request on a student's behalf.
	tess := Identity{UserID: owner.User.ID}
	wantErr(t, h.engine.RequestJoin(ctx, tess, "classroom7", "bob@x.com"), ErrJoinNotPermitted)

	if err := h.engine.CancelJoin(ctx, tess, "classroom42", "bob@x.com"); err != nil {
		t.Fatalf("owner CancelJoin: %v", err)
	}
	_, err := h.engine.RedeemJoin(ctx, bob, "classroom42", "bob@x.com", code)
	wantErr(t, err, ErrJoinCodeInvalid)
}

func TestJoinRequiresKnownCaller(t *testing.T) {
	h, _ := newJoinHarness(t)
	ctx := context.Background()

	wantErr(t, h.engine.RequestJoin(ctx, Identity{}, "classroom42", "bob@x.com"), ErrUnauthenticated)
	wantErr(t, h.engine.CancelJoin(ctx, Identity{UserID: "ghost"}, "classroom42", "bob@x.com"), ErrUnauthenticated)
}

func TestJoinSubjectSeparatesColonIDs(t *testing.T) {
	pairs := [][2]string{
		{"a:b", "c@x.com"},
		{"a", "b:c@x.com"},
		{"a:b:c", "x.com"},
		{"c1", "bob@x.com"},
		{"c1:", "bob@x.com"},
	}
	seen := map[string][2]string{}
	for _, p := range pairs {
		subject := joinSubject(p[0], p[1])
		if prev, ok := seen[subject]; ok {
			t.Fatalf("pairs %v and %v share subject %q", prev, p, subject)
		}
		seen[subject] = p
	}
	if got := joinSubject("c1", "bob@x.com"); got != "join:2:c1:bob@x.com" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestJoinCodeNotSharedAcrossColonClassroomIDs(t *testing.T) {
	h, owner := newJoinHarness(t)
	h.classrooms.rooms["c1:x"] = Classroom{ID: "c1:x", Name: "Biology", OwnerID: owner.User.ID}
	h.classrooms.rooms["c1"] = Classroom{ID: "c1", Name: "Maths", OwnerID: owner.User.ID}
	bob := h.student(t, "Bob", "bob@x.com")
	ctx := context.Background()

	if err := h.engine.RequestJoin(ctx, bob, "c1:x", "bob@x.com"); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	code := h.notifier.lastCode(t, "tess@x.com")

	_, err := h.engine.RedeemJoin(ctx, bob, "c1", "bob@x.com", code)
	wantErr(t, err, ErrJoinCodeInvalid)
	if _, err := h.engine.RedeemJoin(ctx, bob, "c1:x", "bob@x.com", code); err != nil {
		t.Fatalf("RedeemJoin: %v", err)
	}
}
