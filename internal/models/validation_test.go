package models

import (
	"errors"
	"testing"
)

func TestNewValidator_Username(t *testing.T) {
	v := NewValidator()

	type input struct {
		Username string `validate:"required,username"`
	}

	tests := []struct {
		username string
		valid    bool
	}{
		{"alice", true},
		{"report.manager", true},
		{"svc_scheduler-01", true},
		{"ab", false},
		{"has space", false},
		{"semi;colon", false},
		{"", false},
	}

	for _, tt := range tests {
		err := v.Struct(input{Username: tt.username})
		if (err == nil) != tt.valid {
			t.Errorf("username %q: valid=%v, err=%v", tt.username, tt.valid, err)
		}
	}
}

func TestValidationErrorFrom(t *testing.T) {
	v := NewValidator()

	err := ValidationErrorFrom(v.Struct(CreateUserInput{Username: "alice", Email: "not-an-email", Password: "x"}))

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want *ValidationError, got %T", err)
	}
	if ve.Field != "Email" {
		t.Errorf("Field: got %q, want Email", ve.Field)
	}
	if !errors.Is(err, ErrBadRequest) {
		t.Error("validation errors should match ErrBadRequest")
	}

	if ValidationErrorFrom(nil) != nil {
		t.Error("nil in, nil out")
	}
}
