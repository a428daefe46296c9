package keychain

import "testing"

func TestRegisterIgnoresEmptyAndDuplicates(t *testing.T) {
	k := New()
	k.Register("", KindPassword)
	k.Register("hunter2", KindPassword)
	k.Register("hunter2", KindPassword)

	secrets := k.Secrets()
	if len(secrets) != 1 {
		t.Fatalf("len(secrets) = %d, want 1", len(secrets))
	}
	if secrets[0] != "hunter2" {
		t.Errorf("secrets[0] = %q, want %q", secrets[0], "hunter2")
	}
}

func TestSecretsSortedLongestFirst(t *testing.T) {
	k := New()
	k.Register("ab", KindUser)
	k.Register("mongodb://user:pw@host/db", KindURL)
	k.Register("pw", KindPassword)

	secrets := k.Secrets()
	for i := 1; i < len(secrets); i++ {
		if len(secrets[i-1]) < len(secrets[i]) {
			t.Fatalf("secrets not sorted longest-first: %v", secrets)
		}
	}
}

func TestRegisterMany(t *testing.T) {
	k := New()
	k.RegisterMany([]string{"a", "", "b", "a"}, KindPassword)
	if len(k.Secrets()) != 2 {
		t.Fatalf("len(secrets) = %d, want 2", len(k.Secrets()))
	}
}
