// Package services holds the use cases that span the store, object storage
// and messaging: lead intake, proposals, broker accounts and admins.
package services

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrBrokerRejected     = errors.New("broker registration was rejected")
	ErrEmailTaken         = errors.New("email already registered")
	ErrMissingDocument    = errors.New("missing required document")
)

// DocumentLinkTTL is how long a presigned document link stays valid.
const DocumentLinkTTL = 15 * time.Minute

// Upload is a file received from a form, already sniffed for its content type.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// clock is replaced in tests.
type clock func() time.Time

func newID() string {
	return uuid.NewString()
}
