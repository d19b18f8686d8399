package eventstore

import (
	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
)

// Sentinel errors for history store operations. Returned errors carry the
// underlying cause and match these with errors.Is.
var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = ferrors.EventStoreError("could not open build history database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = ferrors.EventStoreError("failed to initialize build history schema").Build()

	// ErrEventAppendFailed indicates appending an event failed.
	ErrEventAppendFailed = ferrors.EventStoreError("failed to append build event").Build()

	// ErrEventQueryFailed indicates querying or scanning events failed.
	ErrEventQueryFailed = ferrors.EventStoreError("failed to query build events").Build()

	// ErrMarshalPayloadFailed indicates JSON marshaling of an event payload failed.
	ErrMarshalPayloadFailed = ferrors.EventStoreError("failed to marshal event payload").Build()
)

func wrap(sentinel *ferrors.ClassifiedError, cause error) error {
	return ferrors.EventStoreError(sentinel.Message()).WithCause(cause).Build()
}
