package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Err returns e if it holds any errors, or nil.
func (e *ValidationError) Err() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// ValidateBlocks normalizes and checks every block of a message list in place.
// field names the list (e.g. "messagesCnpj").
func ValidateBlocks(field string, blocks []MessageBlock) []FieldError {
	var errs []FieldError
	for i := range blocks {
		blocks[i].Normalize()
		errs = append(errs, ValidateBlock(fmt.Sprintf("%s[%d]", field, i), &blocks[i])...)
	}
	return errs
}

// ValidateConfigFields checks the mutable fields of a configuration row before
// it is written. Message blocks are normalized in place.
func ValidateConfigFields(f *ConfigFields) error {
	var ve ValidationError

	if f.AccountID < 0 {
		ve.Add("accountId", fmt.Sprintf("must not be negative, got %d", f.AccountID))
	}
	if f.InactivityThresholdCNPJ < 0 {
		ve.Add("inactivityThresholdCnpj", fmt.Sprintf("must not be negative, got %d", f.InactivityThresholdCNPJ))
	}
	if f.InactivityThresholdGeneric < 0 {
		ve.Add("inactivityThresholdGeneric", fmt.Sprintf("must not be negative, got %d", f.InactivityThresholdGeneric))
	}

	ve.Errors = append(ve.Errors, ValidateBlocks("messagesCnpj", f.MessagesCNPJ)...)
	ve.Errors = append(ve.Errors, ValidateBlocks("messagesGeneric", f.MessagesGeneric)...)

	return ve.Err()
}
