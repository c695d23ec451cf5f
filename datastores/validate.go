package datastores

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// maxContactIDLen leaves room for [CardExt] under the usual 255 byte name limit.
const maxContactIDLen = 200

var validate = newValidator() //nolint: gochecknoglobals // validator caches struct metadata

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("contactid", func(fl validator.FieldLevel) bool { //nolint: errcheck // static tag
		return validContactID(fl.Field().String())
	})
	v.RegisterValidation("singleline", func(fl validator.FieldLevel) bool { //nolint: errcheck // static tag
		return !strings.ContainsAny(fl.Field().String(), "\r\n")
	})
	return v
}

// validContactID reports whether id can name a file in the store directory
// without escaping it or colliding with another id.
func validContactID(id string) bool {
	switch {
	case id == "", id == ".", id == "..", len(id) > maxContactIDLen:
		return false
	case strings.TrimSpace(id) != id:
		return false
	case strings.ContainsAny(id, `/\:*?"<>|`):
		return false
	case strings.ContainsFunc(id, unicode.IsControl):
		return false
	case reservedName(id):
		return false
	}
	return true
}

// reservedName reports whether id names a Windows device, which cannot be
// used as a file name even with an extension.
func reservedName(id string) bool {
	base, _, _ := strings.Cut(strings.ToUpper(id), ".")
	base = strings.TrimRight(base, " ")
	switch base {
	case "CON", "PRN", "AUX", "NUL":
		return true
	}
	if len(base) == 4 && (strings.HasPrefix(base, "COM") || strings.HasPrefix(base, "LPT")) {
		return base[3] >= '0' && base[3] <= '9'
	}
	return false
}

// ValidateContactID checks that id is usable as a file name.
func ValidateContactID(id ContactID) error {
	if !validContactID(string(id)) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}

// ValidateContact checks the id and that no field would break the line
// based card format.
func ValidateContact(c *Contact) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		if fe.Field() == "ID" {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, c.ID)
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidContact, verrs.Error())
}

// CheckIdentifierConflict fails with [ErrIdentifierConflict] when the
// addressed id differs from the one carried by c.
func CheckIdentifierConflict(target ContactID, c *Contact) error {
	if target != c.ID {
		return fmt.Errorf("%w: addressed %q, got %q", ErrIdentifierConflict, target, c.ID)
	}
	return nil
}
