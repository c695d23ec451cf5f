package datastores

import (
	"bytes"
	"strings"
)

// CardExt is appended to a contact id to form its file name.
const CardExt = ".vcf"

const (
	cardBegin   = "BEGIN:VCARD"
	cardVersion = "VERSION:3.0"
	cardEnd     = "END:VCARD"

	keyID    = "ID:"
	keyName  = "FN:"
	keyEmail = "EMAIL:"
	keyPhone = "TEL:"
)

// EncodeCard serializes c as card text. Lines always come in the same
// order and the ID line is left out when c has no id.
func EncodeCard(c *Contact) []byte {
	var b bytes.Buffer
	line := func(s ...string) {
		for _, s := range s {
			b.WriteString(s)
		}
		b.WriteByte('\n')
	}

	line(cardBegin)
	line(cardVersion)
	if c.ID != "" {
		line(keyID, string(c.ID))
	}
	line(keyName, c.Name)
	line(keyEmail, c.Email)
	line(keyPhone, c.Phone)
	line(cardEnd)
	return b.Bytes()
}

// DecodeCard parses card text. Lines may come in any order and unknown lines
// are ignored. A non-empty externalID wins over an embedded ID line.
//
// It fails with [ErrEmptyContact] when none of the ID, FN, EMAIL or TEL keys
// appear, and with [ErrMissingIdentifier] when no id can be determined.
func DecodeCard(text []byte, externalID ContactID) (*Contact, error) {
	var (
		c     Contact
		found bool
	)

	for _, line := range strings.Split(string(text), "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, keyID):
			c.ID = ContactID(line[len(keyID):])
		case strings.HasPrefix(line, keyName):
			c.Name = line[len(keyName):]
		case strings.HasPrefix(line, keyEmail):
			c.Email = line[len(keyEmail):]
		case strings.HasPrefix(line, keyPhone):
			c.Phone = line[len(keyPhone):]
		default:
			continue
		}
		found = true
	}

	if !found {
		return nil, ErrEmptyContact
	}
	if externalID != "" {
		c.ID = externalID
	}
	if c.ID == "" {
		return nil, ErrMissingIdentifier
	}
	return &c, nil
}
