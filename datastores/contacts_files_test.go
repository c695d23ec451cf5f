package datastores

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore(t *testing.T) (*ContactsFiles, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s := NewContactsFiles(fs, "/contacts")
	require.NoError(t, s.EnsureDir())
	return s, fs
}

func TestContactsFiles_Scenario(t *testing.T) {
	ctx := context.Background()
	s, fs := newMemStore(t)
	alice := &Contact{ID: "c1", Name: "Alice", Email: "a@x.com", Phone: "555"}

	require.NoError(t, s.Create(ctx, alice))

	text, err := afero.ReadFile(fs, "/contacts/c1.vcf")
	require.NoError(t, err)
	newGoldie(t).Assert(t, "c1", text)

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	again, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, got, again, "get without mutation is idempotent")

	require.NoError(t, s.Delete(ctx, "c1"))
	_, err = s.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestContactsFiles_CreateOverwrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemStore(t)

	require.NoError(t, s.Create(ctx, &Contact{ID: "c1", Name: "Alice", Phone: "555"}))
	require.NoError(t, s.Create(ctx, &Contact{ID: "c1", Name: "Alicia"}))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, &Contact{ID: "c1", Name: "Alicia"}, got)
}

func TestContactsFiles_CreateInvalid(t *testing.T) {
	ctx := context.Background()
	s, fs := newMemStore(t)

	assert.ErrorIs(t, s.Create(ctx, &Contact{ID: "../escape", Name: "x"}), ErrInvalidIdentifier)
	assert.ErrorIs(t, s.Create(ctx, &Contact{Name: "x"}), ErrInvalidIdentifier)
	assert.ErrorIs(t, s.Create(ctx, &Contact{ID: "c1", Name: "x\nID:c2"}), ErrInvalidContact)

	exists, err := afero.Exists(fs, "/escape.vcf")
	require.NoError(t, err)
	assert.False(t, exists)
	entries, err := afero.ReadDir(fs, "/contacts")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestContactsFiles_CreateMissingRoot(t *testing.T) {
	s := NewContactsFiles(afero.NewOsFs(), filepath.Join(t.TempDir(), "missing"))

	err := s.Create(context.Background(), &Contact{ID: "c1"})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)
	assert.Equal(t, ContactID("c1"), ioErr.ID)
}

func TestContactsFiles_Update(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemStore(t)
	require.NoError(t, s.Create(ctx, &Contact{ID: "a", Name: "Alice", Email: "a@x.com", Phone: "555"}))

	require.NoError(t, s.Update(ctx, "a", &Contact{ID: "a", Name: "Alicia"}))
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, &Contact{ID: "a", Name: "Alicia"}, got, "update replaces the whole record")
}

func TestContactsFiles_UpdateMissing(t *testing.T) {
	ctx := context.Background()
	s, fs := newMemStore(t)

	err := s.Update(ctx, "ghost", &Contact{ID: "ghost", Name: "Nobody"})
	assert.ErrorIs(t, err, ErrObjectNotFound)

	exists, err := afero.Exists(fs, "/contacts/ghost.vcf")
	require.NoError(t, err)
	assert.False(t, exists, "failed update must not create the file")
}

func TestContactsFiles_UpdateConflict(t *testing.T) {
	ctx := context.Background()
	s, fs := newMemStore(t)
	require.NoError(t, s.Create(ctx, &Contact{ID: "a", Name: "Alice"}))
	before, err := afero.ReadFile(fs, "/contacts/a.vcf")
	require.NoError(t, err)

	err = s.Update(ctx, "a", &Contact{ID: "b", Name: "Bob"})
	assert.ErrorIs(t, err, ErrIdentifierConflict)

	after, err := afero.ReadFile(fs, "/contacts/a.vcf")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	exists, err := afero.Exists(fs, "/contacts/b.vcf")
	require.NoError(t, err)
	assert.False(t, exists)

	// conflict is reported before existence
	assert.ErrorIs(t, s.Update(ctx, "ghost", &Contact{ID: "b"}), ErrIdentifierConflict)
}

func TestContactsFiles_DeleteMissing(t *testing.T) {
	s, _ := newMemStore(t)
	assert.ErrorIs(t, s.Delete(context.Background(), "ghost"), ErrObjectNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), ".."), ErrObjectNotFound)
}

func TestContactsFiles_DeleteDirectory(t *testing.T) {
	s, fs := newMemStore(t)
	require.NoError(t, fs.MkdirAll("/contacts/d1.vcf", 0o750))

	assert.ErrorIs(t, s.Delete(context.Background(), "d1"), ErrObjectNotFound)
	exists, err := afero.DirExists(fs, "/contacts/d1.vcf")
	require.NoError(t, err)
	assert.True(t, exists, "directories are not contacts and stay in place")
}

func TestContactsFiles_GetFailures(t *testing.T) {
	ctx := context.Background()
	s, fs := newMemStore(t)
	require.NoError(t, afero.WriteFile(fs, "/contacts/broken.vcf", []byte("not a card"), 0o640))

	_, err := s.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = s.Get(ctx, "broken")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, err, ErrEmptyContact, "decode cause is kept")

	_, err = s.Get(ctx, "../contacts/broken")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestContactsFiles_GetUsesFileName(t *testing.T) {
	s, fs := newMemStore(t)
	require.NoError(t, afero.WriteFile(fs, "/contacts/c1.vcf", []byte("ID:other\nFN:Alice\n"), 0o640))

	got, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, &Contact{ID: "c1", Name: "Alice"}, got)
}

func TestContactsFiles_ListResilience(t *testing.T) {
	ctx := context.Background()
	s, fs := newMemStore(t)
	require.NoError(t, s.Create(ctx, &Contact{ID: "good", Name: "Alice"}))
	require.NoError(t, afero.WriteFile(fs, "/contacts/bad.vcf", []byte("\x00garbage"), 0o640))
	require.NoError(t, afero.WriteFile(fs, "/contacts/legacy", []byte("FN:Old\n"), 0o640))
	require.NoError(t, fs.MkdirAll("/contacts/sub.vcf", 0o750))

	var skipped []string
	s.OnSkip = func(name string, err error) {
		assert.ErrorIs(t, err, ErrEmptyContact)
		skipped = append(skipped, name)
	}

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*Contact{{ID: "good", Name: "Alice"}}, got)
	assert.Equal(t, []string{"bad.vcf"}, skipped)
}

func TestContactsFiles_ListInvalidStem(t *testing.T) {
	ctx := context.Background()
	s, fs := newMemStore(t)
	require.NoError(t, s.Create(ctx, &Contact{ID: "c1", Name: "Alice"}))
	require.NoError(t, afero.WriteFile(fs, "/contacts/.vcf", []byte("ID:c1\nFN:Mallory\n"), 0o640))
	require.NoError(t, afero.WriteFile(fs, "/contacts/a:b.vcf", []byte("FN:Colon\n"), 0o640))
	require.NoError(t, afero.WriteFile(fs, "/contacts/NUL.vcf", []byte("FN:Device\n"), 0o640))

	var skipped []string
	s.OnSkip = func(name string, err error) {
		assert.ErrorIs(t, err, ErrInvalidIdentifier)
		skipped = append(skipped, name)
	}

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*Contact{{ID: "c1", Name: "Alice"}}, got)
	assert.ElementsMatch(t, []string{".vcf", "a:b.vcf", "NUL.vcf"}, skipped)

	for _, c := range got {
		_, err := s.Get(ctx, c.ID)
		assert.NoError(t, err, "listed contact %q must be addressable", c.ID)
	}
}

func TestContactsFiles_ListUnreadableEntry(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	ctx := context.Background()
	dir := t.TempDir()
	s := NewContactsFiles(afero.NewOsFs(), dir)
	require.NoError(t, s.Create(ctx, &Contact{ID: "good"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "locked.vcf"), []byte("FN:x\n"), 0o000))

	skipped := 0
	s.OnSkip = func(string, error) { skipped++ }
	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*Contact{{ID: "good"}}, got)
	assert.Equal(t, 1, skipped)
}

func TestContactsFiles_ListMissingRoot(t *testing.T) {
	s := NewContactsFiles(afero.NewMemMapFs(), "/nowhere")

	_, err := s.List(context.Background())
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "list", ioErr.Op)
}

func TestContactsFiles_ListCancelled(t *testing.T) {
	s, _ := newMemStore(t)
	require.NoError(t, s.Create(context.Background(), &Contact{ID: "c1"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContactsFiles_Ready(t *testing.T) {
	ctx := context.Background()
	s, fs := newMemStore(t)
	assert.NoError(t, s.Ready(ctx))

	assert.Error(t, NewContactsFiles(fs, "/nowhere").Ready(ctx))

	require.NoError(t, afero.WriteFile(fs, "/file", nil, 0o640))
	assert.Error(t, NewContactsFiles(fs, "/file").Ready(ctx))
}

// There is no locking: concurrent writers to one id race and the last one
// wins, so the only guarantee checked here is that the survivor is one of
// the written records.
func TestContactsFiles_ConcurrentCreateLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemStore(t)
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Create(ctx, &Contact{ID: "shared", Name: name}))
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Contains(t, names, got.Name)
}
