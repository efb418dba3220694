package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupShape struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	AgreeToTerms    bool   `json:"agreeToTerms" validate:"eq=true"`
}

func TestStructPassesValidInput(t *testing.T) {
	err := Struct(&signupShape{
		Email:           "nora@example.com",
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
		AgreeToTerms:    true,
	})
	assert.NoError(t, err)
}

func TestStructKeysFieldsByJSONTag(t *testing.T) {
	err := Struct(&signupShape{
		Email:           "not-an-email",
		Password:        "1234",
		ConfirmPassword: "5678",
	})

	var verr *Error
	require.ErrorAs(t, err, &verr)

	fields := verr.Fields()
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be at least 6 characters", fields["password"])
	assert.Equal(t, "must match Password", fields["confirmPassword"])
	assert.Contains(t, fields, "agreeToTerms")
	assert.NotContains(t, fields, "Email")
}

func TestFieldErrorMirrorsErrorShape(t *testing.T) {
	err := NewFieldError("parent_id", "must be a valid UUID")

	assert.Equal(t, "field 'parent_id' must be a valid UUID", err.Error())
	assert.Equal(t, map[string]string{"parent_id": "must be a valid UUID"}, err.Fields())
}
