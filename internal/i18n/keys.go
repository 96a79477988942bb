// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthLogoutSuccess      = "auth.logout_success"
	KeyAuthRegisterSuccess    = "auth.register_success"
	KeyAccessDenied           = "auth.access_denied"

	// User Management
	KeyUserNotFound       = "user.not_found"
	KeyUserProfileUpdated = "user.profile_updated"

	// Sessions
	KeySessionCreated      = "session.created"
	KeySessionUpdated      = "session.updated"
	KeySessionDeleted      = "session.deleted"
	KeySessionNotFound     = "session.not_found"
	KeySessionOverlap      = "session.overlap"
	KeySessionWindowClosed = "session.window_closed"
	KeySessionFull         = "session.full"

	// Applications
	KeyApplicationSubmitted  = "application.submitted"
	KeyApplicationWithdrawn  = "application.withdrawn"
	KeyApplicationNotFound   = "application.not_found"
	KeyApplicationApproved   = "application.approved"
	KeyApplicationRejected   = "application.rejected"
	KeyApplicationUnapproved = "application.unapproved"
	KeyApplicationDecided    = "application.already_decided"
	KeyApplicationDuplicate  = "application.duplicate"

	// Maintenance
	KeyCleanupStarted   = "cleanup.started"
	KeyCleanupCompleted = "cleanup.completed"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationTooShort = "validation.too_short"

	// File Upload
	KeyFileUploadSuccess = "file.upload_success"
	KeyFileUploadFailed  = "file.upload_failed"
	KeyFileInvalidType   = "file.invalid_type"
	KeyFileTooLarge      = "file.too_large"
)
