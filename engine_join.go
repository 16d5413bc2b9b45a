package classgate

import (
	"context"
	"errors"
	"strings"
)

// RequestJoin issues an approval code for a student joining classroomID and
// sends it to the classroom owner. The owner shares the code with the
// student out of band. caller must be the student.
func (e *Engine) RequestJoin(ctx context.Context, caller Identity, classroomID, studentEmail string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	classroomID = strings.TrimSpace(classroomID)
	email := normalizeEmail(studentEmail)
	if classroomID == "" || email == "" {
		return ErrMissingFields
	}
	if !validEmail(email) {
		return ErrInvalidEmail
	}

	if _, err := e.authorizeJoin(ctx, caller, email, Classroom{}); err != nil {
		return err
	}

	classroom, err := e.findClassroom(ctx, classroomID)
	if err != nil {
		return err
	}

	storeCtx, cancel := e.withStoreTimeout(ctx)
	member, err := e.memberships.IsMember(storeCtx, classroom.ID, email)
	cancel()
	if err != nil {
		return e.dependencyError(ctx, "check membership", err)
	}
	if member {
		return ErrAlreadyMember
	}

	storeCtx, cancel = e.withStoreTimeout(ctx)
	owner, err := e.users.FindByID(storeCtx, classroom.OwnerID)
	cancel()
	if err != nil {
		return e.dependencyError(ctx, "find classroom owner", err)
	}

	subject := joinSubject(classroom.ID, email)
	if err := e.throttleIssue(ctx, "join", subject); err != nil {
		return err
	}

	code, err := e.passcodes.Issue(ctx, subject)
	if err != nil {
		return e.dependencyError(ctx, "issue join code", err)
	}
	e.metricInc(MetricPasscodeIssued)
	e.metricInc(MetricJoinRequested)
	e.emitAudit(ctx, auditEventJoinRequested, true, owner.ID, email, nil, func() map[string]string {
		return map[string]string{"classroom_id": classroom.ID}
	})

	msg := joinApprovalMessage(classroom, email, code, e.config.Passcode.CodeTTL)
	return e.deliver(ctx, "join", owner.Email, msg, code)
}

// RedeemJoin verifies the approval code for the exact classroom and student
// pair and records the membership. caller must be the student. Redeeming for
// a student who is already a member succeeds with AlreadyMember set.
func (e *Engine) RedeemJoin(ctx context.Context, caller Identity, classroomID, studentEmail, code string) (JoinResult, error) {
	if e == nil {
		return JoinResult{}, ErrEngineNotReady
	}

	classroomID = strings.TrimSpace(classroomID)
	email := normalizeEmail(studentEmail)
	code = strings.TrimSpace(code)
	if classroomID == "" || email == "" || code == "" {
		return JoinResult{}, ErrMissingFields
	}
	if !validEmail(email) {
		return JoinResult{}, ErrInvalidEmail
	}

	if _, err := e.authorizeJoin(ctx, caller, email, Classroom{}); err != nil {
		return JoinResult{}, err
	}

	classroom, err := e.findClassroom(ctx, classroomID)
	if err != nil {
		return JoinResult{}, err
	}

	subject := joinSubject(classroom.ID, email)
	if err := e.redeem(ctx, subject, code, ErrJoinCodeInvalid, ErrJoinCodeInvalid); err != nil {
		if errors.Is(err, ErrJoinCodeInvalid) {
			e.metricInc(MetricJoinRejected)
			e.emitAudit(ctx, auditEventJoinRejected, false, "", email, err, func() map[string]string {
				return map[string]string{"classroom_id": classroom.ID}
			})
		}
		return JoinResult{}, err
	}

	storeCtx, cancel := e.withStoreTimeout(ctx)
	added, err := e.memberships.AddMember(storeCtx, classroom.ID, email)
	cancel()
	if err != nil {
		return JoinResult{}, e.dependencyError(ctx, "add member", err)
	}

	if err := e.requestLimiter.Reset(ctx, subject); err != nil {
		e.logger.WarnContext(ctx, "reset passcode throttle", "error", err)
	}

	result := JoinResult{ClassroomID: classroom.ID, StudentEmail: email, AlreadyMember: !added}
	if result.AlreadyMember {
		e.metricInc(MetricJoinAlreadyMember)
	} else {
		e.metricInc(MetricJoinApproved)
	}
	e.emitAudit(ctx, auditEventJoinApproved, true, "", email, nil, func() map[string]string {
		if result.AlreadyMember {
			return map[string]string{"classroom_id": classroom.ID, "already_member": "true"}
		}
		return map[string]string{"classroom_id": classroom.ID}
	})
	return result, nil
}

// CancelJoin withdraws a pending join request by invalidating its code.
// caller must be the student or the classroom owner. Cancelling when nothing
// is pending is not an error.
func (e *Engine) CancelJoin(ctx context.Context, caller Identity, classroomID, studentEmail string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	classroomID = strings.TrimSpace(classroomID)
	email := normalizeEmail(studentEmail)
	if classroomID == "" || email == "" {
		return ErrMissingFields
	}

	classroom, err := e.findClassroom(ctx, classroomID)
	if err != nil {
		return err
	}
	actor, err := e.authorizeJoin(ctx, caller, email, classroom)
	if err != nil {
		return err
	}

	if err := e.passcodes.Invalidate(ctx, joinSubject(classroom.ID, email)); err != nil {
		return e.dependencyError(ctx, "invalidate join code", err)
	}

	e.metricInc(MetricJoinCancelled)
	e.emitAudit(ctx, auditEventJoinCancelled, true, actor.ID, email, nil, func() map[string]string {
		return map[string]string{"classroom_id": classroom.ID}
	})
	return nil
}

// authorizeJoin resolves caller and accepts it when its email is email, or
// when it owns classroom. A zero classroom admits the student only.
func (e *Engine) authorizeJoin(ctx context.Context, caller Identity, email string, classroom Classroom) (User, error) {
	if caller.UserID == "" {
		return User{}, ErrUnauthenticated
	}

	storeCtx, cancel := e.withStoreTimeout(ctx)
	user, err := e.users.FindByID(storeCtx, caller.UserID)
	cancel()
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrUnauthenticated
	}
	if err != nil {
		return User{}, e.dependencyError(ctx, "find join caller", err)
	}

	if normalizeEmail(user.Email) == email {
		return user, nil
	}
	if classroom.OwnerID != "" && classroom.OwnerID == user.ID {
		return user, nil
	}

	e.emitAudit(ctx, auditEventJoinRejected, false, user.ID, email, ErrJoinNotPermitted, func() map[string]string {
		if classroom.ID == "" {
			return nil
		}
		return map[string]string{"classroom_id": classroom.ID}
	})
	return User{}, ErrJoinNotPermitted
}

func (e *Engine) findClassroom(ctx context.Context, classroomID string) (Classroom, error) {
	storeCtx, cancel := e.withStoreTimeout(ctx)
	defer cancel()

	classroom, err := e.classrooms.FindClassroom(storeCtx, classroomID)
	if err != nil {
		return Classroom{}, e.dependencyError(ctx, "find classroom", err)
	}
	return classroom, nil
}
