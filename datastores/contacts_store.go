package datastores

import (
	"context"
)

type (
	ContactID string
	Contact   struct {
		ID    ContactID `validate:"contactid"`
		Name  string    `validate:"singleline"`
		Email string    `validate:"singleline"`
		Phone string    `validate:"singleline"`
	}
)

type ContactsStore interface {
	List(context.Context) ([]*Contact, error)
	Get(context.Context, ContactID) (*Contact, error)
	Create(context.Context, *Contact) error
	Update(context.Context, ContactID, *Contact) error
	Delete(context.Context, ContactID) error
}
