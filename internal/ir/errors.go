package ir

import (
	"errors"
	"fmt"
)

// ConfigError is a fatal configuration problem detected while preparing or
// running an import. Config errors abort the run; every other error raised
// while processing a single record is recorded against that record only.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string

	// Type is the logical type involved, when there is one.
	Type string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeMissingMetadata indicates a batch type is unknown to the target.
	ErrCodeMissingMetadata ConfigErrorCode = "MISSING_METADATA"

	// ErrCodeAmbiguousMatch indicates a business key matched several target records.
	ErrCodeAmbiguousMatch ConfigErrorCode = "AMBIGUOUS_MATCH"

	// ErrCodeRootUnmapped indicates the transform config has no root business unit mapping.
	ErrCodeRootUnmapped ConfigErrorCode = "ROOT_BU_UNMAPPED"

	// ErrCodeRootUndetected indicates the target root business unit could not be found.
	ErrCodeRootUndetected ConfigErrorCode = "ROOT_BU_UNDETECTED"

	// ErrCodeOrganizationMissing indicates the target organization could not be read.
	ErrCodeOrganizationMissing ConfigErrorCode = "ORGANIZATION_MISSING"

	// ErrCodeOperatorNotFound indicates the operator is not a target system user.
	ErrCodeOperatorNotFound ConfigErrorCode = "OPERATOR_NOT_FOUND"

	// ErrCodeMissingRelationship indicates an intersect type has no many-to-many relationship.
	ErrCodeMissingRelationship ConfigErrorCode = "MISSING_RELATIONSHIP"

	// ErrCodeQueryReplacement indicates a query-valued transform rule did not resolve to one value.
	ErrCodeQueryReplacement ConfigErrorCode = "QUERY_REPLACEMENT"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: %s (type=%s)", e.Code, e.Message, e.Type)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ConfigErrorCodeOf returns the code of a wrapped ConfigError, or "".
func ConfigErrorCodeOf(err error) ConfigErrorCode {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
