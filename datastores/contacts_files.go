package datastores

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ContactsFiles implements [ContactsStore] with one card file per contact
// under a root directory. Nothing is cached: every call goes to the
// filesystem, and concurrent writes to the same id are last writer wins.
type ContactsFiles struct {
	fs   afero.Fs
	root string

	// OnSkip, if set, is called by List for every card file it could not
	// read or decode, or whose name is not a valid id.
	OnSkip func(name string, err error)
}

var _ ContactsStore = (*ContactsFiles)(nil)

func NewContactsFiles(fsys afero.Fs, root string) *ContactsFiles {
	return &ContactsFiles{fs: fsys, root: root}
}

// Root returns the directory holding the card files.
func (s *ContactsFiles) Root() string { return s.root }

// EnsureDir creates the root directory and its parents if needed.
func (s *ContactsFiles) EnsureDir() error {
	return s.fs.MkdirAll(s.root, 0o750) //nolint: mnd // rwxr-x---
}

// Ready fails when the root directory is missing or is not a directory.
func (s *ContactsFiles) Ready(_ context.Context) error {
	ok, err := afero.IsDir(s.fs, s.root)
	if err != nil {
		return &IOError{Op: "stat", Err: err}
	}
	if !ok {
		return &IOError{Op: "stat", Err: fmt.Errorf("%s: not a directory", s.root)}
	}
	return nil
}

func (s *ContactsFiles) path(id ContactID) string {
	return filepath.Join(s.root, string(id)+CardExt)
}

func (s *ContactsFiles) skip(name string, err error) {
	if s.OnSkip != nil {
		s.OnSkip(name, err)
	}
}

func (s *ContactsFiles) List(ctx context.Context) ([]*Contact, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, &IOError{Op: "list", Err: err}
	}

	contacts := make([]*Contact, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, CardExt) {
			continue
		}

		id := ContactID(strings.TrimSuffix(name, CardExt))
		if err := ValidateContactID(id); err != nil {
			s.skip(name, err)
			continue
		}
		text, err := afero.ReadFile(s.fs, filepath.Join(s.root, name))
		if err != nil {
			s.skip(name, err)
			continue
		}
		contact, err := DecodeCard(text, id)
		if err != nil {
			s.skip(name, err)
			continue
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

func (s *ContactsFiles) Get(_ context.Context, id ContactID) (*Contact, error) {
	if err := ValidateContactID(id); err != nil {
		return nil, errors.Join(ErrObjectNotFound, err)
	}

	text, err := afero.ReadFile(s.fs, s.path(id))
	if err != nil {
		return nil, errors.Join(ErrObjectNotFound, err)
	}
	contact, err := DecodeCard(text, id)
	if err != nil {
		return nil, errors.Join(ErrObjectNotFound, err)
	}
	return contact, nil
}

// Create writes c unconditionally: an existing contact with the same id is
// overwritten.
func (s *ContactsFiles) Create(_ context.Context, c *Contact) error {
	if err := ValidateContact(c); err != nil {
		return err
	}
	return s.write(c)
}

// Update replaces the whole record of an existing contact.
func (s *ContactsFiles) Update(_ context.Context, id ContactID, c *Contact) error {
	if err := ValidateContactID(id); err != nil {
		return err
	}
	if err := CheckIdentifierConflict(id, c); err != nil {
		return err
	}
	if err := ValidateContact(c); err != nil {
		return err
	}

	exists, err := afero.Exists(s.fs, s.path(id))
	switch {
	case err != nil:
		return &IOError{Op: "stat", ID: id, Err: err}
	case !exists:
		return ErrObjectNotFound
	}
	return s.write(c)
}

func (s *ContactsFiles) write(c *Contact) error {
	err := afero.WriteFile(s.fs, s.path(c.ID), EncodeCard(c), 0o640) //nolint: mnd // rw-r-----
	if err != nil {
		return &IOError{Op: "write", ID: c.ID, Err: err}
	}
	return nil
}

func (s *ContactsFiles) Delete(_ context.Context, id ContactID) error {
	if err := ValidateContactID(id); err != nil {
		return errors.Join(ErrObjectNotFound, err)
	}

	// List ignores directories, so does Delete.
	dir, err := afero.IsDir(s.fs, s.path(id))
	switch {
	case errors.Is(err, fs.ErrNotExist), err == nil && dir:
		return ErrObjectNotFound
	case err != nil:
		return &IOError{Op: "stat", ID: id, Err: err}
	}

	err = s.fs.Remove(s.path(id))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return ErrObjectNotFound
	default:
		return &IOError{Op: "delete", ID: id, Err: err}
	}
}
