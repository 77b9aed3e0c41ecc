package citadelcbt

import (
	"errors"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrMalformedQuestion  = errors.New("malformed question")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSessionClosed      = errors.New("session is closed")
	ErrMasterAdmin        = errors.New("the master administrator cannot be removed")
	ErrInvalidToken       = errors.New("invalid token")
)

// IsPermissionError reports whether a storage failure looks like a rules or
// permissions problem rather than plain connectivity
func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"permission", "not authorized", "unauthorized", "readonly", "read-only"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// PermissionRemediation is shown in place of the generic sync banner when
// IsPermissionError matches
const PermissionRemediation = "Storage access was denied. Check the database permissions " +
	"for the service account: students need read access to quizzes and only signed-in " +
	"administrators should be able to write."
