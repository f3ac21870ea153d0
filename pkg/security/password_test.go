package security_test

import (
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

func testConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hasher := security.NewHasher(testConfig())

	hash, err := hasher.Hash("very-secure-password")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	ok, err := hasher.Verify("very-secure-password", hash)
	if err != nil {
		t.Fatalf("Verify returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("Verify failed for the correct password")
	}

	ok, err = hasher.Verify("bogus-password", hash)
	if err != nil {
		t.Fatalf("Verify returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("Verify returned true for incorrect password")
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	if _, err := security.NewHasher(testConfig()).Hash(""); err != security.ErrEmptyPassword {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	hasher := security.NewHasher(testConfig())
	for _, encoded := range []string{"not-a-hash", "$argon2i$v=19$m=1,t=1,p=1$c2FsdA$a2V5", "$argon2id$v=19$m=x$c2FsdA$a2V5"} {
		if _, err := hasher.Verify("irrelevant", encoded); err == nil {
			t.Fatalf("expected error for malformed hash %q", encoded)
		}
	}
}

func TestNeedsRehashTracksParameters(t *testing.T) {
	hasher := security.NewHasher(testConfig())
	hash, err := hasher.Hash("pw")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hasher.NeedsRehash(hash) {
		t.Fatal("fresh hash should not need rehash")
	}

	stronger := testConfig()
	stronger.ArgonTime = 2
	if !security.NewHasher(stronger).NeedsRehash(hash) {
		t.Fatal("expected rehash after time cost increase")
	}

	ok, err := security.NewHasher(stronger).Verify("pw", hash)
	if err != nil || !ok {
		t.Fatalf("old hash must still verify under new params: ok=%v err=%v", ok, err)
	}
}
