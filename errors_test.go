package loxodo

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestBadPasswordError(t *testing.T) {
	err := &BadPasswordError{Path: "/tmp/v.psafe3"}
	if !strings.Contains(err.Error(), "/tmp/v.psafe3") {
		t.Errorf("message %q does not mention the path", err.Error())
	}
	if !IsBadPassword(err) {
		t.Error("IsBadPassword(BadPasswordError) = false")
	}
	if IsBadPassword(errors.New("other")) {
		t.Error("IsBadPassword(other) = true")
	}

	wrapped := fmt.Errorf("opening: %w", err)
	if !IsBadPassword(wrapped) {
		t.Error("IsBadPassword does not see through wrapping")
	}
}

func TestVaultVersionError(t *testing.T) {
	err := &VaultVersionError{Path: "/tmp/v.psafe3", Tag: []byte("PWS2")}
	if !strings.Contains(err.Error(), "PasswordSafe V3") {
		t.Errorf("message %q does not name the format", err.Error())
	}
	if !IsVaultVersion(err) {
		t.Error("IsVaultVersion(VaultVersionError) = false")
	}
	if IsVaultFormat(err) {
		t.Error("a version error must not be classified as a format error")
	}
}

func TestVaultFormatError(t *testing.T) {
	cause := errors.New("short read")
	err := newFormatError("/tmp/v.psafe3", "EOF encountered when reading salt", cause)

	if !IsVaultFormat(err) {
		t.Error("IsVaultFormat(VaultFormatError) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("format error does not unwrap to its cause")
	}
	var vf *VaultFormatError
	if !errors.As(err, &vf) {
		t.Fatal("errors.As failed")
	}
	if vf.Path != "/tmp/v.psafe3" {
		t.Errorf("Path = %q", vf.Path)
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "title", Message: "string is not valid UTF-8"}
	if !strings.Contains(err.Error(), "title") {
		t.Errorf("message %q does not mention the field", err.Error())
	}
	if !IsValidation(err) {
		t.Error("IsValidation(ValidationError) = false")
	}
	if IsVaultFormat(err) {
		t.Error("a validation error must not be classified as a format error")
	}
}

func TestErrorKindsAreDisjoint(t *testing.T) {
	errs := []error{
		&BadPasswordError{},
		&VaultVersionError{},
		&VaultFormatError{Message: "x"},
	}
	checks := []func(error) bool{IsBadPassword, IsVaultVersion, IsVaultFormat}
	for i, err := range errs {
		for j, check := range checks {
			if got := check(err); got != (i == j) {
				t.Errorf("check %d on error %d = %v", j, i, got)
			}
		}
	}
}
