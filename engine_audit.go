package classgate

import (
	"context"
	"errors"
)

const (
	auditEventPasscodeIssued     = "passcode_issued"
	auditEventPasscodeDelivery   = "passcode_delivery"
	auditEventRegistration       = "registration"
	auditEventLogin              = "login"
	auditEventRefresh            = "refresh"
	auditEventJoinRequested      = "join_requested"
	auditEventJoinApproved       = "join_approved"
	auditEventJoinRejected       = "join_rejected"
	auditEventJoinCancelled      = "join_cancelled"
	auditEventRateLimitTriggered = "rate_limit_triggered"
)

// AuditErrorCode is the stable error label carried by failed audit events.
type AuditErrorCode string

const (
	auditErrCodeInvalid       AuditErrorCode = "code_invalid"
	auditErrNoCode            AuditErrorCode = "no_code_requested"
	auditErrInvalidCredential AuditErrorCode = "invalid_credentials"
	auditErrUnauthenticated   AuditErrorCode = "unauthenticated"
	auditErrNotPermitted      AuditErrorCode = "not_permitted"
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrDuplicate         AuditErrorCode = "duplicate"
	auditErrNotFound          AuditErrorCode = "not_found"
	auditErrValidation        AuditErrorCode = "validation"
	auditErrDelivery          AuditErrorCode = "delivery_failed"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	subject string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Subject:   subject,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope, subject string) {
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", subject, ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrCodeInvalid), errors.Is(err, ErrJoinCodeInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrNoCodeRequested):
		return auditErrNoCode
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredential
	case errors.Is(err, ErrJoinNotPermitted):
		return auditErrNotPermitted
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDelivery
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	}

	switch ReasonOf(err) {
	case ReasonValidation:
		return auditErrValidation
	case ReasonConflict:
		return auditErrDuplicate
	case ReasonAuthentication:
		return auditErrUnauthenticated
	case ReasonRateLimited:
		return auditErrRateLimited
	case ReasonNotFound:
		return auditErrNotFound
	case ReasonDependency:
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
