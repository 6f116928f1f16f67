package validation

import (
	"errors"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"simple", "admin", false},
		{"with dot and digits", "head.1984", false},
		{"with dash and underscore", "root_user-2", false},
		{"empty", "", true},
		{"too short", "ab", true},
		{"space", "family head", true},
		{"at sign", "head@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername(%q) error = %v, wantErr %v", tt.username, err, tt.wantErr)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"full name", "Ahmad Saleh", false},
		{"arabic", "محمد", false},
		{"two arabic letters", "مح", false},
		{"empty", "", true},
		{"only spaces", "   ", true},
		{"too short", "A", true},
		{"single arabic letter", "م", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName("husband_name", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "password123", false},
		{"exactly 8 characters", "pass1234", false},
		{"too short", "pass123", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		wantErr bool
	}{
		{"empty is allowed", "", false},
		{"local", "0599123456", false},
		{"international", "+970 599 123 456", false},
		{"letters", "call me", true},
		{"too short", "12345", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePhone(tt.phone)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePhone(%q) error = %v, wantErr %v", tt.phone, err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorField(t *testing.T) {
	var verr ValidationError
	if !errors.As(ValidatePhone("x"), &verr) || verr.Field != "phone" {
		t.Errorf("ValidatePhone error = %#v, want a phone ValidationError", verr)
	}
}
