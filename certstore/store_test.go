package certstore

import (
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(dir, zerolog.Nop())
	require.NoError(t, err)
	return store, dir
}

func TestStoreCreateAndLoad(t *testing.T) {
	store, dir := testStore(t)
	pair := testKeyPair(t)

	cert, err := store.Create(SubjectAttributes{Name: "Alice"},
		Window(time.Now(), time.Hour), pair)
	require.NoError(t, err)

	loaded, err := store.Load(cert.Serial())
	require.NoError(t, err)
	assert.Equal(t, cert.Fingerprint(), loaded.Fingerprint())

	// The persisted file holds only public material.
	data, err := os.ReadFile(filepath.Join(dir, cert.Serial()+".pem"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN CERTIFICATE")
	assert.NotContains(t, string(data), "PRIVATE KEY")
}

func TestStoreLoadNotFound(t *testing.T) {
	store, _ := testStore(t)
	_, err := store.Load("deadbeef")
	assert.ErrorIs(t, err, ErrCertificateNotFound)
}

func TestStoreListCreationOrder(t *testing.T) {
	store, dir := testStore(t)
	pair := testKeyPair(t)

	var serials []string
	for _, name := range []string{"first", "second", "third"} {
		cert, err := store.Create(SubjectAttributes{Name: name},
			Window(time.Now(), time.Hour), pair)
		require.NoError(t, err)
		serials = append(serials, cert.Serial())
	}

	list := store.List()
	require.Len(t, list, 3)
	for i, cert := range list {
		assert.Equal(t, serials[i], cert.Serial())
	}

	// Order survives a reopen because it is replayed from the index log.
	reopened, err := Open(dir, zerolog.Nop())
	require.NoError(t, err)
	list = reopened.List()
	require.Len(t, list, 3)
	for i, cert := range list {
		assert.Equal(t, serials[i], cert.Serial())
	}
}

func TestStoreDelete(t *testing.T) {
	store, dir := testStore(t)
	pair := testKeyPair(t)

	cert, err := store.Create(SubjectAttributes{Name: "Alice"},
		Window(time.Now(), time.Hour), pair)
	require.NoError(t, err)

	require.NoError(t, store.Delete(cert.Serial()))
	_, err = store.Load(cert.Serial())
	assert.ErrorIs(t, err, ErrCertificateNotFound)
	assert.Empty(t, store.List())

	// Deletion is durable across reopen.
	reopened, err := Open(dir, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, reopened.List())

	t.Run("delete missing", func(t *testing.T) {
		err := store.Delete(cert.Serial())
		assert.ErrorIs(t, err, ErrCertificateNotFound)
	})
}

func TestStoreImportExport(t *testing.T) {
	source, _ := testStore(t)
	pair := testKeyPair(t)

	cert, err := source.Create(SubjectAttributes{Name: "Alice"},
		Window(time.Now(), time.Hour), pair)
	require.NoError(t, err)

	exportFile := filepath.Join(t.TempDir(), "alice.pem")
	require.NoError(t, source.Export(cert.Serial(), exportFile))

	target, _ := testStore(t)
	data, err := os.ReadFile(exportFile)
	require.NoError(t, err)
	imported, err := target.Import(data)
	require.NoError(t, err)
	assert.Equal(t, cert.Serial(), imported.Serial())

	t.Run("import is idempotent", func(t *testing.T) {
		again, err := target.Import(data)
		require.NoError(t, err)
		assert.Equal(t, cert.Serial(), again.Serial())
		assert.Len(t, target.List(), 1)
	})

	t.Run("import garbage", func(t *testing.T) {
		_, err := target.Import([]byte("junk"))
		require.Error(t, err)
	})
}

func TestStoreLoadDetectsCorruptionAfterOpen(t *testing.T) {
	store, dir := testStore(t)
	pair := testKeyPair(t)

	cert, err := store.Create(SubjectAttributes{Name: "Alice"},
		Window(time.Now(), time.Hour), pair)
	require.NoError(t, err)

	// Flip a bit inside the persisted certificate's signature while
	// the store stays open. Load must re-check the file and reject it.
	der := append([]byte(nil), cert.X509.Raw...)
	der[len(der)-10] ^= 0x01
	path := filepath.Join(dir, cert.Serial()+".pem")
	require.NoError(t, os.WriteFile(path,
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))

	_, err = store.Load(cert.Serial())
	assert.ErrorIs(t, err, ErrCertificateCorrupt)

	t.Run("removed file reads as not found", func(t *testing.T) {
		require.NoError(t, os.Remove(path))
		_, err := store.Load(cert.Serial())
		assert.ErrorIs(t, err, ErrCertificateNotFound)
	})
}

func TestStoreOpenCorruptCertificate(t *testing.T) {
	store, dir := testStore(t)
	pair := testKeyPair(t)

	cert, err := store.Create(SubjectAttributes{Name: "Alice"},
		Window(time.Now(), time.Hour), pair)
	require.NoError(t, err)

	// Corrupt the persisted PEM. Reopening must fail loudly instead of
	// serving a certificate that no longer checks out.
	path := filepath.Join(dir, cert.Serial()+".pem")
	require.NoError(t, os.WriteFile(path, []byte("-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"), 0o644))

	_, err = Open(dir, zerolog.Nop())
	require.Error(t, err)
}
