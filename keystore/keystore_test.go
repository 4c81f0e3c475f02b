package keystore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgepadayatti/docsign/certstore"
	"github.com/georgepadayatti/docsign/keypair"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	return store
}

func testKey(t *testing.T) keypair.PrivateKey {
	t.Helper()
	pair, err := keypair.Generate(keypair.AlgorithmECDSA, 256)
	require.NoError(t, err)
	return pair.Private
}

func TestPutGetRoundTrip(t *testing.T) {
	store := testStore(t)
	key := testKey(t)
	passphrase := []byte("correct horse battery staple")

	require.NoError(t, store.Put("alice", key, passphrase))

	got, err := store.Get("alice", passphrase)
	require.NoError(t, err)
	assert.True(t, keypair.PublicKeysMatch(got, key.Public()))
}

func TestGetWrongPassphrase(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Put("alice", testKey(t), []byte("right")))

	_, err := store.Get("alice", []byte("wrong"))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestGetMissing(t *testing.T) {
	store := testStore(t)
	_, err := store.Get("nobody", []byte("pw"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestPutExisting(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Put("alice", testKey(t), []byte("pw")))

	err := store.Put("alice", testKey(t), []byte("pw"))
	assert.ErrorIs(t, err, ErrKeyExists)
}

func TestInvalidIdentity(t *testing.T) {
	store := testStore(t)
	for _, identity := range []string{"", "a/b", "a b", "../escape"} {
		t.Run(identity, func(t *testing.T) {
			err := store.Put(identity, testKey(t), []byte("pw"))
			assert.ErrorIs(t, err, ErrInvalidIdentity)
		})
	}
}

func TestGetRejectsOversizedKDFParameters(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put("alice", testKey(t), []byte("pw")))

	// Inflate the stored scrypt cost so deriving it would demand
	// absurd memory. Get must refuse before deriving anything.
	path := filepath.Join(dir, "alice.key")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var e map[string]any
	require.NoError(t, json.Unmarshal(data, &e))
	e["n"] = 1 << 40
	data, err = json.Marshal(e)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = store.Get("alice", []byte("pw"))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDelete(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Put("alice", testKey(t), []byte("pw")))

	require.NoError(t, store.Delete("alice"))
	_, err := store.Get("alice", []byte("pw"))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	err = store.Delete("alice")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestPKCS12RoundTrip(t *testing.T) {
	pair, err := keypair.Generate(keypair.AlgorithmRSA, 2048)
	require.NoError(t, err)
	cert, err := certstore.NewCertificate(
		certstore.SubjectAttributes{Name: "Alice"},
		certstore.Window(time.Now(), time.Hour), pair)
	require.NoError(t, err)

	source := testStore(t)
	passphrase := []byte("store pw")
	require.NoError(t, source.Put("alice", pair.Private, passphrase))

	pfx, err := source.ExportPKCS12("alice", passphrase, cert, "transfer pw")
	require.NoError(t, err)
	require.NotEmpty(t, pfx)

	target := testStore(t)
	imported, err := target.ImportPKCS12("alice", pfx, "transfer pw", passphrase)
	require.NoError(t, err)
	assert.Equal(t, cert.Serial(), imported.Serial())

	got, err := target.Get("alice", passphrase)
	require.NoError(t, err)
	assert.True(t, keypair.PublicKeysMatch(got, pair.Public))

	t.Run("wrong transfer password", func(t *testing.T) {
		_, err := testStore(t).ImportPKCS12("alice", pfx, "nope", passphrase)
		require.Error(t, err)
	})
}
