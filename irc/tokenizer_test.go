package irc

import (
	"errors"
	"strings"
	"testing"
)

type name string

func (n name) Name() string { return string(n) }

type fakeResolver struct {
	clients map[string]Origin
	servers map[string]Origin
}

func (r *fakeResolver) FindClient(link Origin, nick string) Origin {
	if o, ok := r.clients[nick]; ok {
		return o
	}
	return nil
}

func (r *fakeResolver) FindServer(n string) Origin {
	if o, ok := r.servers[n]; ok {
		return o
	}
	return nil
}

func equalParams(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("params = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("params = %q, want %q", got, want)
		}
	}
}

func TestTokenizePrivmsgWithPrefix(t *testing.T) {
	tk := &Tokenizer{}
	link := name("hub.example.net")

	m, err := tk.Tokenize(NewContext(), link, ":a!b@c PRIVMSG #chan :hello world")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if m.Prefix != "a!b@c" {
		t.Fatalf("prefix = %q", m.Prefix)
	}
	if m.Command != "PRIVMSG" || m.IsNumeric() {
		t.Fatalf("command = %q numeric=%v", m.Command, m.IsNumeric())
	}
	equalParams(t, m.Params, []string{"#chan", "hello world"})
}

func TestTokenizePing(t *testing.T) {
	tk := &Tokenizer{}
	m, err := tk.Tokenize(NewContext(), name("hub"), "PING :12345")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if m.Command != "PING" {
		t.Fatalf("command = %q", m.Command)
	}
	equalParams(t, m.Params, []string{"12345"})
	if m.Origin.Name() != "hub" {
		t.Fatalf("origin = %q, want link", m.Origin.Name())
	}
}

func TestTokenizeNumericSkipsLimit(t *testing.T) {
	called := false
	tk := &Tokenizer{Limit: func(string) int {
		called = true
		return 1
	}}

	m, err := tk.Tokenize(NewContext(), name("hub"), ":irc.example.net 001 services :Welcome to the network")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if !m.IsNumeric() || m.Numeric != 1 || m.Command != "001" {
		t.Fatalf("numeric = %v %d %q", m.IsNumeric(), m.Numeric, m.Command)
	}
	if called {
		t.Fatalf("limit func consulted for a numeric")
	}
	equalParams(t, m.Params, []string{"services", "Welcome to the network"})
}

func TestTokenizeNumericNeedsTrailingSpace(t *testing.T) {
	tk := &Tokenizer{}
	m, err := tk.Tokenize(NewContext(), name("hub"), "001")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if m.IsNumeric() {
		t.Fatalf("bare 001 must not be a numeric")
	}
	if m.Command != "001" || len(m.Params) != 0 {
		t.Fatalf("command = %q params = %q", m.Command, m.Params)
	}

	m, _ = tk.Tokenize(NewContext(), name("hub"), "1234 x")
	if m.IsNumeric() {
		t.Fatalf("four digits must not be a numeric")
	}
}

func TestTokenizeFoldsAtLimit(t *testing.T) {
	cases := []struct {
		line  string
		limit int
		want  []string
	}{
		{"MODE #c +ovb  a   b c!*@*", 3, []string{"#c", "+ovb", "a   b c!*@*"}},
		{"MODE #c +ovb :a b", 3, []string{"#c", "+ovb", "a b"}},
		{"MODE #c +o a", 3, []string{"#c", "+o", "a"}},
		{"MODE #c +o", 3, []string{"#c", "+o"}},
		{"TOPIC #c set  by me", 1, []string{"#c set  by me"}},
		{"TOPIC :#c set", 1, []string{"#c set"}},
	}
	for _, tc := range cases {
		tk := &Tokenizer{Limit: func(string) int { return tc.limit }}
		m, err := tk.Tokenize(NewContext(), name("hub"), tc.line)
		if err != nil {
			t.Fatalf("%q: %v", tc.line, err)
		}
		equalParams(t, m.Params, tc.want)
	}
}

func TestTokenizeDefaultLimit(t *testing.T) {
	fields := make([]string, 20)
	for i := range fields {
		fields[i] = string(rune('a' + i))
	}
	line := "X " + strings.Join(fields, " ")

	m, err := (&Tokenizer{}).Tokenize(NewContext(), name("hub"), line)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if len(m.Params) != MaxParams {
		t.Fatalf("params = %d, want %d", len(m.Params), MaxParams)
	}
	want := strings.Join(fields[MaxParams-1:], " ")
	if m.Params[MaxParams-1] != want {
		t.Fatalf("last param = %q, want %q", m.Params[MaxParams-1], want)
	}
}

func TestTokenizeCollapsesSpaces(t *testing.T) {
	m, err := (&Tokenizer{}).Tokenize(NewContext(), name("hub"), "   KICK   #c    nick   :bye  now ")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if m.Command != "KICK" {
		t.Fatalf("command = %q", m.Command)
	}
	equalParams(t, m.Params, []string{"#c", "nick", "bye  now "})
}

func TestTokenizeEmptyTrailing(t *testing.T) {
	m, err := (&Tokenizer{}).Tokenize(NewContext(), name("hub"), "AWAY :")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	equalParams(t, m.Params, []string{""})
}

func TestTokenizeEmptyRemainder(t *testing.T) {
	tk := &Tokenizer{}
	for _, line := range []string{"", "    ", ":prefix.only", ":prefix   "} {
		if _, err := tk.Tokenize(NewContext(), name("hub"), line); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("%q: expected ErrEmptyMessage, got %v", line, err)
		}
	}
}

func TestTokenizeRejectsLongLine(t *testing.T) {
	line := "PRIVMSG #c :" + strings.Repeat("x", MaxLineLength)
	if _, err := (&Tokenizer{}).Tokenize(NewContext(), name("hub"), line); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", err)
	}
}

func TestTokenizeResolvesClientBeforeServer(t *testing.T) {
	r := &fakeResolver{
		clients: map[string]Origin{"dup": name("client:dup")},
		servers: map[string]Origin{"dup": name("server:dup"), "leaf.example.net": name("server:leaf")},
	}
	tk := &Tokenizer{Resolver: r}

	m, _ := tk.Tokenize(NewContext(), name("hub"), ":dup NOTICE x :y")
	if m.Origin.Name() != "client:dup" || !m.Resolved {
		t.Fatalf("origin = %q resolved=%v", m.Origin.Name(), m.Resolved)
	}

	m, _ = tk.Tokenize(NewContext(), name("hub"), ":leaf.example.net SQUIT a :b")
	if m.Origin.Name() != "server:leaf" {
		t.Fatalf("origin = %q", m.Origin.Name())
	}
}

func TestTokenizeUnknownOriginFallsBackToLink(t *testing.T) {
	tk := &Tokenizer{Resolver: &fakeResolver{}}

	m, err := tk.Tokenize(NewContext(), name("hub"), ":ghost PRIVMSG x :y")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if m.Origin.Name() != "hub" || m.Resolved {
		t.Fatalf("origin = %q resolved=%v, want link fallback", m.Origin.Name(), m.Resolved)
	}
	if m.Prefix != "ghost" {
		t.Fatalf("prefix = %q", m.Prefix)
	}
	if m.Command != "PRIVMSG" {
		t.Fatalf("processing stopped after unknown origin")
	}
}

func TestTokenizeEmptyPrefixUsesLink(t *testing.T) {
	tk := &Tokenizer{Resolver: &fakeResolver{}}
	m, err := tk.Tokenize(NewContext(), name("hub"), ": PING :x")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if m.Origin.Name() != "hub" || m.Command != "PING" {
		t.Fatalf("origin = %q command = %q", m.Origin.Name(), m.Command)
	}
}

func TestContextReuseOverwritesParams(t *testing.T) {
	tk := &Tokenizer{}
	ctx := NewContext()

	first, _ := tk.Tokenize(ctx, name("hub"), "JOIN #one")
	saved := first.Params
	_, _ = tk.Tokenize(ctx, name("hub"), "PART #two")

	if saved[0] != "#two" {
		t.Fatalf("expected shared slot to be overwritten, got %q", saved[0])
	}

	other := NewContext()
	isolated, _ := tk.Tokenize(other, name("hub"), "JOIN #three")
	if isolated.Params[0] != "#three" || saved[0] != "#two" {
		t.Fatalf("separate contexts must not share storage")
	}
}

func TestTrailerCoversParameterBytes(t *testing.T) {
	m, _ := (&Tokenizer{}).Tokenize(NewContext(), name("hub"), ":n PRIVMSG #c :hi")
	if m.Trailer != "#c :hi" {
		t.Fatalf("trailer = %q", m.Trailer)
	}
	if m.Param(5) != "" {
		t.Fatalf("out of range param must be empty")
	}
}
