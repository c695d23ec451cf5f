package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	ds "github.com/oaiiae/contacts-vcf/datastores"
)

type Contacts struct {
	Store        ds.ContactsStore
	ErrorHandler func(context.Context, error)
}

type ContactModel struct {
	ID ds.ContactID `json:"id,omitempty" example:"c1" doc:"assigned by the server when empty on creation"`

	Name  string `json:"name,omitempty"  example:"Alice"`
	Email string `json:"email,omitempty" example:"a@x.com"`
	Phone string `json:"phone,omitempty" example:"555"`
}

func toModel(c *ds.Contact) ContactModel {
	return ContactModel{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone}
}

func (m *ContactModel) toContact() *ds.Contact {
	return &ds.Contact{ID: m.ID, Name: m.Name, Email: m.Email, Phone: m.Phone}
}

// storeError translates store failures to client errors, other errors are
// returned as is and reported as internal errors.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ds.ErrObjectNotFound):
		return huma.Error404NotFound("id not found", err)
	case errors.Is(err, ds.ErrIdentifierConflict):
		return huma.Error400BadRequest("id does not match the addressed contact", err)
	case errors.Is(err, ds.ErrInvalidIdentifier), errors.Is(err, ds.ErrInvalidContact):
		return huma.Error400BadRequest("invalid contact", err)
	default:
		return err
	}
}

func (h *Contacts) RegisterList(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/",
		handlerWithErrorHandler(h.list, h.ErrorHandler),
		opErrors(http.StatusInternalServerError),
	)
}

type ContactsListOutput struct {
	Body []ContactModel
}

func (h *Contacts) list(ctx context.Context, _ *struct{}) (*ContactsListOutput, error) {
	contacts, err := h.Store.List(ctx)
	if err != nil {
		return nil, err
	}

	body := make([]ContactModel, 0, len(contacts))
	for _, contact := range contacts {
		body = append(body, toModel(contact))
	}

	return &ContactsListOutput{Body: body}, nil
}

func (h *Contacts) RegisterGet(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/{id}",
		handlerWithErrorHandler(h.get, h.ErrorHandler),
		opErrors(http.StatusNotFound, http.StatusInternalServerError),
	)
}

type ContactsGetOutput struct {
	Body ContactModel
}

func (h *Contacts) get(ctx context.Context, input *struct {
	ID ds.ContactID `path:"id" doc:"ID of the contact to get"`
}) (*ContactsGetOutput, error) {
	contact, err := h.Store.Get(ctx, input.ID)
	if err != nil {
		return nil, storeError(err)
	}
	return &ContactsGetOutput{Body: toModel(contact)}, nil
}

func (h *Contacts) RegisterPost(api huma.API) { // called by [huma.AutoRegister]
	huma.Post(api, "/",
		handlerWithErrorHandler(h.post, h.ErrorHandler),
		opErrors(http.StatusBadRequest, http.StatusInternalServerError),
		opStatus(http.StatusCreated),
	)
}

type ContactsPostOutput struct {
	Location string `header:"Location"`
	Body     ContactModel
}

func (h *Contacts) post(ctx context.Context, input *struct {
	Body ContactModel
}) (*ContactsPostOutput, error) {
	contact := input.Body.toContact()
	if contact.ID == "" {
		contact.ID = ds.NewContactID()
	}

	err := h.Store.Create(ctx, contact)
	if err != nil {
		return nil, storeError(err)
	}
	return &ContactsPostOutput{Location: url.PathEscape(string(contact.ID)), Body: toModel(contact)}, nil
}

func (h *Contacts) RegisterPut(api huma.API) { // called by [huma.AutoRegister]
	huma.Put(api, "/{id}",
		handlerWithErrorHandler(h.put, h.ErrorHandler),
		opErrors(http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError),
		opStatus(http.StatusOK),
	)
}

func (h *Contacts) put(ctx context.Context, input *struct {
	ID   ds.ContactID `path:"id" doc:"ID of the contact to update"`
	Body ContactModel
}) (*struct{}, error) {
	return nil, storeError(h.Store.Update(ctx, input.ID, input.Body.toContact()))
}

func (h *Contacts) RegisterDel(api huma.API) { // called by [huma.AutoRegister]
	huma.Delete(api, "/{id}",
		handlerWithErrorHandler(h.del, h.ErrorHandler),
		opErrors(http.StatusNotFound, http.StatusInternalServerError),
		opStatus(http.StatusOK),
	)
}

func (h *Contacts) del(ctx context.Context, input *struct {
	ID ds.ContactID `path:"id" doc:"ID of the contact to delete"`
}) (*struct{}, error) {
	return nil, storeError(h.Store.Delete(ctx, input.ID))
}
