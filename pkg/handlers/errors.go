package handlers

import (
	"errors"
	"fmt"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/markdown"
)

// Error is the `{code, message}` envelope spec.md §6.1 specifies for a
// failed handler call. It implements error so a handler can simply return
// one, but Dispatch also converts any other error a service layer returns
// into one of these via errorToEnvelope.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

func newError(code, message string) *Error { return &Error{Code: code, Message: message} }

// errorToEnvelope classifies err against the typed taxonomy spec.md §7
// defines, so a caller can branch on Code without string-matching Message.
// Anything not recognized surfaces verbatim under "internal" — spec.md's
// "SerializationError, QueryFailed, InitializationError, DatabaseError:
// lower-layer failures; surfaced verbatim" policy.
func errorToEnvelope(err error) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	var notFound *store.NodeNotFoundError
	if errors.As(err, &notFound) {
		return newError("not_found", err.Error())
	}
	var conflict *store.VersionConflictError
	if errors.As(err, &conflict) {
		return newError("version_conflict", err.Error())
	}
	var validation *store.ValidationFailedError
	if errors.As(err, &validation) {
		return newError("validation_failed", err.Error())
	}
	var invalidUpdate *store.InvalidUpdateError
	if errors.As(err, &invalidUpdate) {
		return newError("invalid_update", err.Error())
	}
	var circular *store.CircularReferenceError
	if errors.As(err, &circular) {
		return newError("circular_reference", err.Error())
	}
	var bulkFailed *store.BulkOperationFailedError
	if errors.As(err, &bulkFailed) {
		return newError("bulk_operation_failed", err.Error())
	}
	var invalidParent *store.InvalidParentError
	if errors.As(err, &invalidParent) {
		return newError("invalid_parent", err.Error())
	}
	var invalidRoot *store.InvalidRootError
	if errors.As(err, &invalidRoot) {
		return newError("invalid_root", err.Error())
	}
	var hierarchyViolation *store.HierarchyViolationError
	if errors.As(err, &hierarchyViolation) {
		return newError("hierarchy_violation", err.Error())
	}
	var invalidID *store.InvalidIDError
	if errors.As(err, &invalidID) {
		return newError("invalid_id", err.Error())
	}
	var invalidNodeType *store.InvalidNodeTypeError
	if errors.As(err, &invalidNodeType) {
		return newError("invalid_node_type", err.Error())
	}
	var invalidProperties *store.InvalidPropertiesError
	if errors.As(err, &invalidProperties) {
		return newError("invalid_properties", err.Error())
	}
	var missingField *store.MissingFieldError
	if errors.As(err, &missingField) {
		return newError("missing_field", err.Error())
	}
	var tooLarge *markdown.ContentTooLargeError
	if errors.As(err, &tooLarge) {
		return newError("exceeds_maximum_size", err.Error())
	}

	return newError("internal", err.Error())
}

// missingParam is a convenience for the common "required param absent"
// failure, worded so its message contains the id-parameter name per
// spec.md §6.1's "missing id parameter (`root_id`/`container_id`)" error.
func missingParam(name string) *Error {
	return newError("missing_field", fmt.Sprintf("missing required parameter %q", name))
}
