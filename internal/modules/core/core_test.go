package core

import (
	"testing"

	"github.com/mfulz/ircgeist/interfaces"
	"github.com/mfulz/ircgeist/internal/network"
	"github.com/mfulz/ircgeist/internal/testutil/linktest"
)

func loadCore(t *testing.T) (*interfaces.Host, *linktest.Recorder, interfaces.Module) {
	t.Helper()
	h, rec := linktest.NewHost(t, nil)
	m := New()
	if err := m.Init(h); err != nil {
		t.Fatalf("init: %v", err)
	}
	return h, rec, m
}

func TestPingReplies(t *testing.T) {
	h, rec, _ := loadCore(t)
	linktest.Feed(t, h, "PING :hub.test")

	sent := rec.Take()
	if len(sent) != 1 || sent[0] != ":services.test PONG services.test :hub.test" {
		t.Fatalf("sent = %q", sent)
	}
}

func TestPeerServerRenamesLink(t *testing.T) {
	h, rec, _ := loadCore(t)
	linktest.Feed(t, h,
		"SERVER irc.example.net 1 :Example hub",
		":irc.example.net SERVER leaf.example.net 2 :Leaf",
	)

	if rec.Name() != "irc.example.net" {
		t.Fatalf("link name = %q", rec.Name())
	}
	leaf, ok := h.Network.Server("leaf.example.net")
	if !ok || leaf.Uplink != "irc.example.net" || leaf.Hops != 2 || leaf.Description != "Leaf" {
		t.Fatalf("leaf = %+v", leaf)
	}
}

func TestClientIntroductionAndExit(t *testing.T) {
	h, _, _ := loadCore(t)

	var joined []string
	var exits []interfaces.ClientExit
	h.Hooks.NewClient.Subscribe(func(c *network.Client) { joined = append(joined, c.Nick) })
	h.Hooks.ClientExit.Subscribe(func(e interfaces.ClientExit) { exits = append(exits, e) })

	linktest.Feed(t, h,
		"SERVER irc.example.net 1 :hub",
		":irc.example.net NICK alice 1 1700000000 +i al host.example irc.example.net :Alice A",
		":alice NICK alicia :1700000100",
		":alicia QUIT :gone fishing",
	)

	if len(joined) != 1 || joined[0] != "alice" {
		t.Fatalf("joined = %q", joined)
	}
	if len(exits) != 1 || exits[0].Client.Nick != "alicia" || exits[0].Reason != "gone fishing" {
		t.Fatalf("exits = %+v", exits)
	}
	if n, _ := h.Network.Counts(); n != 0 {
		t.Fatalf("clients left = %d", n)
	}
}

func TestIntroducedClientResolvesAsOrigin(t *testing.T) {
	h, _, _ := loadCore(t)
	linktest.Feed(t, h, ":hub NICK bob 1 1 +i b host srv :Bob")

	c, ok := h.Network.Client("BOB")
	if !ok || c.User != "b" || c.Host != "host" || c.Server != "srv" || c.Gecos != "Bob" || c.SignedOn != 1 {
		t.Fatalf("client = %+v", c)
	}
	if h.Network.FindClient(nil, "bob") == nil {
		t.Fatalf("bob not resolvable")
	}
}

func TestSquitDropsClientsBehindServer(t *testing.T) {
	h, _, _ := loadCore(t)
	var reasons []string
	h.Hooks.ClientExit.Subscribe(func(e interfaces.ClientExit) { reasons = append(reasons, e.Reason) })

	linktest.Feed(t, h,
		"SERVER hub.example.net 1 :hub",
		":hub.example.net SERVER leaf.example.net 2 :leaf",
		":leaf.example.net NICK carol 2 1 +i c h leaf.example.net :Carol",
		"SQUIT leaf.example.net :ping timeout",
	)

	if len(reasons) != 1 || reasons[0] != splitReason {
		t.Fatalf("reasons = %q", reasons)
	}
	if _, ok := h.Network.Server("leaf.example.net"); ok {
		t.Fatalf("leaf still known")
	}
}

func TestKill(t *testing.T) {
	h, _, _ := loadCore(t)
	linktest.Feed(t, h,
		":hub NICK dave 1 1 +i d h srv :Dave",
		":oper KILL dave :spamming",
	)
	if _, ok := h.Network.Client("dave"); ok {
		t.Fatalf("killed client still known")
	}
}

func TestCleanupUnregistersEverything(t *testing.T) {
	h, rec, m := loadCore(t)
	if err := m.Cleanup(h); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if len(h.Dispatcher.Commands()) != 0 {
		t.Fatalf("commands left: %+v", h.Dispatcher.Commands())
	}
	linktest.Feed(t, h, "PING :x")
	if len(rec.Sent) != 0 {
		t.Fatalf("unloaded module replied: %q", rec.Sent)
	}
	if err := h.Dispatcher.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestInitFailsWhenTokenTaken(t *testing.T) {
	h, _, _ := loadCore(t)
	second := New()
	if err := second.Init(h); err == nil {
		t.Fatalf("expected conflict")
	}
	if len(h.Dispatcher.Commands()) != 10 {
		t.Fatalf("failed init disturbed the first module's commands")
	}
}
