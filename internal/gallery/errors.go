package gallery

import "errors"

var (
	// ErrNoSession is returned when nobody is signed in.
	ErrNoSession = errors.New("no active session")
	// ErrNoFile rejects uploads that do not carry exactly one file.
	ErrNoFile = errors.New("select exactly one file")
	// ErrConfirmationRequired rejects deletes that were not confirmed.
	ErrConfirmationRequired = errors.New("confirm the deletion to continue")
	// ErrForeignKey rejects keys outside the signed-in user's namespace.
	ErrForeignKey = errors.New("file does not belong to the current user")
	// ErrUnknownItem is returned for menu actions on items not in the gallery.
	ErrUnknownItem = errors.New("item not found in gallery")
)

// ErrSigningUnsupported is returned when the storage strategy cannot presign uploads.
var ErrSigningUnsupported = errors.New("signed uploads are not available with this storage strategy")
