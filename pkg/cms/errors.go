package cms

import "errors"

var (
	// ErrNoRecipients is returned when an EnvelopedData carries an empty
	// recipientInfos set, on decode as well as on encode
	ErrNoRecipients = errors.New("cms: recipientInfos is empty")

	// ErrVersionMismatch is returned by EnvelopedData.CheckVersion
	ErrVersionMismatch = errors.New("cms: encoded version differs from inferred version")

	// ErrNoVariant is returned when encoding a CHOICE that holds no alternative
	ErrNoVariant = errors.New("cms: CHOICE has no variant")

	// ErrUnknownKind is returned by Decode for a Kind it does not know
	ErrUnknownKind = errors.New("cms: unknown structure kind")

	// ErrUnexpectedContentType is returned when a ContentInfo does not wrap the
	// content type the caller asked for
	ErrUnexpectedContentType = errors.New("cms: unexpected content type")
)
