// internal/models/application_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplicationIsDecided(t *testing.T) {
	assert.False(t, (&Application{Status: ApplicationStatusPending}).IsDecided())
	assert.True(t, (&Application{Status: ApplicationStatusApproved}).IsDecided())
	assert.True(t, (&Application{Status: ApplicationStatusRejected}).IsDecided())
}

func TestApplicationAutoRejected(t *testing.T) {
	auto := &Application{Status: ApplicationStatusRejected, RejectionReason: AutoRejectReason}
	assert.True(t, auto.AutoRejected())

	manual := &Application{Status: ApplicationStatusRejected, RejectionReason: "Incomplete thesis proposal"}
	assert.False(t, manual.AutoRejected())

	approved := &Application{Status: ApplicationStatusApproved, RejectionReason: AutoRejectReason}
	assert.False(t, approved.AutoRejected())
}

func TestApplicationFileReferences(t *testing.T) {
	request := "applications/1/request.pdf"
	response := "applications/1/response.pdf"
	empty := ""

	none := &Application{}
	assert.Empty(t, none.FileReferences())

	one := &Application{SignedRequestURL: &request}
	assert.Equal(t, []string{request}, one.FileReferences())

	both := &Application{SignedRequestURL: &request, ResponseFileURL: &response}
	assert.Equal(t, []string{request, response}, both.FileReferences())

	// A pointer to an empty string is treated as no reference.
	blank := &Application{SignedRequestURL: &empty, ResponseFileURL: &response}
	assert.Equal(t, []string{response}, blank.FileReferences())
}
