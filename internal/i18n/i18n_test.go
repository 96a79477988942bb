// internal/i18n/i18n_test.go
package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	KeySuccess, KeyError,
	KeyAuthRequired, KeyAuthInvalidToken, KeyAuthTokenExpired,
	KeyAuthInvalidCredentials, KeyAuthUserExists, KeyAuthLoginSuccess,
	KeyAuthLogoutSuccess, KeyAuthRegisterSuccess, KeyAccessDenied,
	KeyUserNotFound, KeyUserProfileUpdated,
	KeySessionCreated, KeySessionUpdated, KeySessionDeleted,
	KeySessionNotFound, KeySessionOverlap, KeySessionWindowClosed, KeySessionFull,
	KeyApplicationSubmitted, KeyApplicationWithdrawn, KeyApplicationNotFound,
	KeyApplicationApproved, KeyApplicationRejected, KeyApplicationUnapproved,
	KeyApplicationDecided, KeyApplicationDuplicate,
	KeyCleanupStarted, KeyCleanupCompleted,
	KeyValidationRequired, KeyValidationInvalid, KeyValidationTooShort,
	KeyFileUploadSuccess, KeyFileUploadFailed, KeyFileInvalidType, KeyFileTooLarge,
}

func TestEveryKeyTranslated(t *testing.T) {
	require.NoError(t, Initialize("./locales"))

	for _, lang := range []string{"en", "ro"} {
		for _, key := range allKeys {
			// T returns the key itself when the catalog has no entry.
			assert.NotEqual(t, key, T(lang, key), "missing %s translation for %s", lang, key)
		}
	}
}

func TestUnknownLanguageFallsBackToEnglish(t *testing.T) {
	require.NoError(t, Initialize("./locales"))

	assert.Equal(t, T("en", KeySessionCreated), T("de", KeySessionCreated))
}

func TestFormattedKeys(t *testing.T) {
	require.NoError(t, Initialize("./locales"))

	assert.Equal(t, "Invalid input", T("en", KeyValidationInvalid, "input"))
	assert.Equal(t, "Email is required", T("en", KeyValidationRequired, "Email"))
}

func TestSupportedLanguages(t *testing.T) {
	require.NoError(t, Initialize("./locales"))

	assert.ElementsMatch(t, []string{"en", "ro"}, GetSupportedLanguages())
}
