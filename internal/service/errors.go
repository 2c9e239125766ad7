package service

import "errors"

// Error kinds. Every error a service returns for a rejected operation wraps exactly one
// of these, so callers can branch with errors.Is(err, service.ErrConflict).
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrExpired    = errors.New("expired")
	ErrValidation = errors.New("validation failed")

	// ErrUnauthenticated marks a missing or unresolvable credential.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Error is a rejected operation with a caller-facing message.
type Error struct {
	kind error
	msg  string
}

func newError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.kind
}

// Kind returns the taxonomy sentinel this error belongs to.
func (e *Error) Kind() error {
	return e.kind
}

var (
	ErrInvitationNotFound        = newError(ErrNotFound, "invitation not found")
	ErrInvitationExpired         = newError(ErrExpired, "invitation has expired")
	ErrInvitationNotPending      = newError(ErrConflict, "invitation is no longer pending")
	ErrPendingInvitationExists   = newError(ErrConflict, "an invitation has already been sent to this email")
	ErrEmailMismatch             = newError(ErrForbidden, "invitation was sent to a different email address")
	ErrRegistrationEmailMismatch = newError(ErrValidation, "you must register with the invited email address")
	ErrMemberLimitReached        = newError(ErrConflict, "team member limit reached")
	ErrAlreadyMember             = newError(ErrConflict, "user is already a member of this team")
	ErrAlreadyInTeam             = newError(ErrConflict, "user already belongs to a team")
	ErrNoTeam                    = newError(ErrConflict, "user is not part of any team")

	ErrTeamNotFound      = newError(ErrNotFound, "team not found")
	ErrMemberNotFound    = newError(ErrNotFound, "user not found in this team")
	ErrNotTeamMember     = newError(ErrForbidden, "you do not have access to this team")
	ErrInsufficientRole  = newError(ErrForbidden, "only team owners or admins can perform this action")
	ErrOwnerOnly         = newError(ErrForbidden, "only the team owner can perform this action")
	ErrCannotRemoveOwner = newError(ErrForbidden, "cannot remove the team owner, transfer ownership first")
	ErrOwnerCannotLeave  = newError(ErrForbidden, "team owners cannot leave, transfer ownership first")
	ErrSelfTarget        = newError(ErrValidation, "cannot perform this action on yourself")
	ErrInvalidTeamRole   = newError(ErrValidation, "role must be admin or member")
	ErrInvalidTeamName   = newError(ErrValidation, "team name must be between 1 and 100 characters")
	ErrTeamDeleted       = newError(ErrConflict, "team is scheduled for deletion")
	ErrTeamNotDeleted    = newError(ErrConflict, "team is not scheduled for deletion")
	ErrRestoreExpired    = newError(ErrExpired, "the restore window for this team has passed")

	ErrInvalidEmail           = newError(ErrValidation, "invalid email address")
	ErrWeakPassword           = newError(ErrValidation, "password must be at least 8 characters")
	ErrNameRequired           = newError(ErrValidation, "name is required")
	ErrEmailAlreadyRegistered = newError(ErrConflict, "email already registered")
	ErrInvalidCredentials     = newError(ErrUnauthenticated, "incorrect email or password")
	ErrInactiveUser           = newError(ErrForbidden, "account is inactive")
	ErrEmailNotVerified       = newError(ErrForbidden, "email address is not verified")
	ErrAlreadyVerified        = newError(ErrConflict, "email already verified")
	ErrVerificationNotFound   = newError(ErrNotFound, "invalid verification token")
	ErrVerificationExpired    = newError(ErrExpired, "verification link has expired, request a new one")
	ErrInvalidResetToken      = newError(ErrValidation, "invalid reset token")
	ErrResetTokenExpired      = newError(ErrExpired, "reset token has expired")
	ErrInvalidSession         = newError(ErrUnauthenticated, "invalid or expired session")
	ErrUserNotFound           = newError(ErrNotFound, "user not found")

	ErrInvalidPlan         = newError(ErrValidation, "plan must be basic or premium")
	ErrNotOnPremium        = newError(ErrConflict, "team is not on the premium plan")
	ErrTooManyForDowngrade = newError(ErrConflict, "team has more members than the basic plan allows")
	ErrNoBillingAccount    = newError(ErrConflict, "team has no billing account")
	ErrBillingUnavailable  = newError(ErrConflict, "billing is not configured")
	ErrInvalidWebhook      = newError(ErrValidation, "invalid webhook payload or signature")

	ErrPatientNotFound  = newError(ErrNotFound, "patient not found")
	ErrInvalidPatient   = newError(ErrValidation, "rut, name, unit and a valid status are required")
	ErrPatientRUTExists = newError(ErrConflict, "a patient with this rut already exists")
)
