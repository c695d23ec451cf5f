package datastores

import (
	_ "encoding" // for documentation links to [encoding]
	"encoding/base32"

	"github.com/google/uuid"
)

// uuid32 is [uuid.UUID] but uses [base32] for text marshaling.
// The alphabet is upper case letters and digits so the text is a valid [ContactID].
type uuid32 struct{ uuid.UUID }

var (
	uuid32Encoding   = base32.StdEncoding.WithPadding(base32.NoPadding) //nolint: gochecknoglobals,nolintlint
	uuid32EncodedLen = uuid32Encoding.EncodedLen(len(uuid32{}.UUID))    //nolint: gochecknoglobals,nolintlint
)

func (id *uuid32) initV4() *uuid32 { id.UUID = uuid.Must(uuid.NewRandom()); return id }

// AppendText implements [encoding.TextAppender].
func (id *uuid32) AppendText(b []byte) ([]byte, error) {
	return uuid32Encoding.AppendEncode(b, id.UUID[:]), nil
}

// MarshalText implements [encoding.TextMarshaler].
func (id *uuid32) MarshalText() ([]byte, error) {
	return id.AppendText(nil)
}

// NewContactID returns a random identifier for contacts created without one.
func NewContactID() ContactID {
	b, _ := new(uuid32).initV4().MarshalText() //nolint: errcheck // never fails
	return ContactID(b)
}
