package registry

import (
	"errors"
	"math/rand"
	"testing"
)

func TestInsertLookup(t *testing.T) {
	tr := New[string]()
	tokens := []string{"PRIVMSG", "PING", "PONG", "P", "NOTICE", "GNOTICE", "SVSMODE"}
	for _, tok := range tokens {
		added, err := tr.Insert(tok, "d:"+tok)
		if err != nil {
			t.Fatalf("insert %q: %v", tok, err)
		}
		if !added {
			t.Fatalf("insert %q: expected added", tok)
		}
	}

	for _, tok := range tokens {
		got, ok := tr.Lookup(tok)
		if !ok || got != "d:"+tok {
			t.Fatalf("lookup %q = %q, %v", tok, got, ok)
		}
	}
	if tr.Len() != len(tokens) {
		t.Fatalf("len = %d, want %d", tr.Len(), len(tokens))
	}
	if err := tr.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestLookupFoldsCase(t *testing.T) {
	tr := New[int]()
	if _, err := tr.Insert("PRIVMSG", 1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if v, ok := tr.Lookup("privmsg"); !ok || v != 1 {
		t.Fatalf("lookup lower = %d, %v", v, ok)
	}
}

func TestLookupMisses(t *testing.T) {
	tr := New[int]()
	_, _ = tr.Insert("PING", 1)

	for _, tok := range []string{"", "PIN", "PINGS", "P1NG", "001", "PI NG"} {
		if _, ok := tr.Lookup(tok); ok {
			t.Fatalf("lookup %q: expected miss", tok)
		}
	}
}

func TestInsertDuplicateKeepsFirst(t *testing.T) {
	tr := New[int]()
	_, _ = tr.Insert("JOIN", 1)

	added, err := tr.Insert("JOIN", 2)
	if err != nil {
		t.Fatalf("insert duplicate: %v", err)
	}
	if added {
		t.Fatalf("expected duplicate insert to be a no-op")
	}
	if v, _ := tr.Lookup("JOIN"); v != 1 {
		t.Fatalf("value = %d, want 1", v)
	}
	if err := tr.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestInsertRejectsInvalidTokens(t *testing.T) {
	tr := New[int]()
	for _, tok := range []string{"", "001", "A-B", "ÄB", "NICK "} {
		if _, err := tr.Insert(tok, 1); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("insert %q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
	if tr.Nodes() != 1 {
		t.Fatalf("nodes = %d, want only root", tr.Nodes())
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	tr := New[int]()
	_, _ = tr.Insert("KICK", 1)

	if !tr.Remove("KICK") {
		t.Fatalf("expected first remove to succeed")
	}
	if tr.Remove("KICK") {
		t.Fatalf("expected second remove to be a no-op")
	}
	if _, ok := tr.Lookup("KICK"); ok {
		t.Fatalf("expected KICK to be gone")
	}
	if tr.Nodes() != 1 {
		t.Fatalf("nodes = %d, want only root", tr.Nodes())
	}
	if err := tr.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestRemoveKeepsSharedPrefix(t *testing.T) {
	tr := New[int]()
	_, _ = tr.Insert("PING", 1)
	_, _ = tr.Insert("PINGALL", 2)
	_, _ = tr.Insert("PONG", 3)
	before := tr.Nodes()

	if !tr.Remove("PINGALL") {
		t.Fatalf("remove PINGALL")
	}
	if got := before - tr.Nodes(); got != 3 {
		t.Fatalf("pruned %d nodes, want 3", got)
	}
	if v, ok := tr.Lookup("PING"); !ok || v != 1 {
		t.Fatalf("PING lost after removing PINGALL")
	}

	if !tr.Remove("PING") {
		t.Fatalf("remove PING")
	}
	if v, ok := tr.Lookup("PONG"); !ok || v != 3 {
		t.Fatalf("PONG lost after removing PING")
	}
	if err := tr.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestRemoveInteriorValueOnly(t *testing.T) {
	tr := New[int]()
	_, _ = tr.Insert("AB", 1)
	_, _ = tr.Insert("ABC", 2)

	if tr.Remove("A") {
		t.Fatalf("removing an unvalued interior node must be a no-op")
	}
	if !tr.Remove("AB") {
		t.Fatalf("remove AB")
	}
	if v, ok := tr.Lookup("ABC"); !ok || v != 2 {
		t.Fatalf("ABC lost")
	}
	if err := tr.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestFreedSlotsAreReused(t *testing.T) {
	tr := New[int]()
	_, _ = tr.Insert("WALLOPS", 1)
	grown := len(tr.nodes)
	tr.Remove("WALLOPS")
	_, _ = tr.Insert("OPERWALL", 2)

	if len(tr.nodes) != grown+1 {
		t.Fatalf("arena = %d slots, want %d", len(tr.nodes), grown+1)
	}
}

func TestRandomInterleavingKeepsInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	pool := make([]string, 64)
	for i := range pool {
		n := 1 + rng.Intn(6)
		b := make([]byte, n)
		for j := range b {
			b[j] = alphabet[rng.Intn(len(alphabet))]
		}
		pool[i] = string(b)
	}

	tr := New[string]()
	for i := 0; i < 5000; i++ {
		tok := pool[rng.Intn(len(pool))]
		if rng.Intn(2) == 0 {
			if _, err := tr.Insert(tok, tok); err != nil {
				t.Fatalf("insert %q: %v", tok, err)
			}
		} else {
			tr.Remove(tok)
		}
		if err := tr.Verify(); err != nil {
			t.Fatalf("step %d: verify: %v", i, err)
		}
	}

	for _, tok := range pool {
		tr.Remove(tok)
	}
	if tr.Len() != 0 || tr.Nodes() != 1 {
		t.Fatalf("len=%d nodes=%d after draining", tr.Len(), tr.Nodes())
	}
}

func TestWalkBranchOrder(t *testing.T) {
	tr := New[string]()
	for _, tok := range []string{"NICK", "AWAY", "MODE", "ADMIN"} {
		_, _ = tr.Insert(tok, tok)
	}

	var got []string
	tr.Walk(func(v string) { got = append(got, v) })
	want := []string{"ADMIN", "AWAY", "MODE", "NICK"}
	if len(got) != len(want) {
		t.Fatalf("walk = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("walk = %v, want %v", got, want)
		}
	}
}

func TestCustomAlphabet(t *testing.T) {
	digits := func(b byte) (int, bool) {
		if b >= '0' && b <= '9' {
			return int(b - '0'), true
		}
		return 0, false
	}
	tr := New[int](WithAlphabet(10, digits))

	if _, err := tr.Insert("001", 1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if v, ok := tr.Lookup("001"); !ok || v != 1 {
		t.Fatalf("lookup = %d, %v", v, ok)
	}
	if _, err := tr.Insert("PING", 2); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	tr := New[int]()
	_, _ = tr.Insert("QUIT", 1)
	tr.nodes[1].links++

	if err := tr.Verify(); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
