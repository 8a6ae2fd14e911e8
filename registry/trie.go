// Package registry provides the command trie used to map protocol tokens to
// their descriptors. Nodes live in an arena and are addressed by stable
// indices, so pruning never touches a released node.
//
// A Trie is not safe for concurrent use. Callers serialize all access.
package registry

import (
	"errors"
)

// DefaultWidth is the branch table width of every node. It must cover the
// 26 ASCII letters; 32 lets 'A'/'a' map straight to 1 without shifting.
const DefaultWidth = 32

var (
	// ErrInvalidToken is returned for empty tokens or tokens with bytes
	// outside the trie alphabet.
	ErrInvalidToken = errors.New("registry: invalid token")

	// ErrCorrupt reports a reference count invariant violation.
	ErrCorrupt = errors.New("registry: reference count corrupted")
)

// BranchFunc maps one token byte to a branch index. ok is false when the
// byte is outside the alphabet.
type BranchFunc func(b byte) (idx int, ok bool)

// LetterBranch accepts ASCII letters and folds case: 'A' and 'a' share
// branch 1, 'Z' and 'z' share branch 26.
func LetterBranch(b byte) (int, bool) {
	if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') {
		return int(b & (DefaultWidth - 1)), true
	}
	return 0, false
}

// node is one arena slot. links counts the attached value plus every
// non-zero child index.
type node[V any] struct {
	links    int
	hasValue bool
	value    V
	children []int32
}

// Trie maps tokens to values of type V.
type Trie[V any] struct {
	nodes  []node[V]
	free   []int32
	width  int
	branch BranchFunc
	size   int
}

// Option configures a Trie.
type Option func(*config)

type config struct {
	width  int
	branch BranchFunc
}

// WithAlphabet replaces the branch width and byte mapping.
func WithAlphabet(width int, fn BranchFunc) Option {
	return func(c *config) {
		c.width = width
		c.branch = fn
	}
}

// New creates an empty trie holding only the root node.
func New[V any](opts ...Option) *Trie[V] {
	cfg := config{width: DefaultWidth, branch: LetterBranch}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.width <= 0 || cfg.branch == nil {
		panic("registry: alphabet width and branch func are required")
	}

	t := &Trie[V]{width: cfg.width, branch: cfg.branch}
	t.nodes = append(t.nodes, node[V]{children: make([]int32, cfg.width)})
	return t
}

// Insert attaches v under token. It reports false without error when the
// token is already present; the existing value is kept.
func (t *Trie[V]) Insert(token string, v V) (bool, error) {
	path, err := t.indexes(token)
	if err != nil {
		return false, err
	}
	if _, ok := t.Lookup(token); ok {
		return false, nil
	}

	cur := int32(0)
	for _, b := range path {
		next := t.nodes[cur].children[b]
		if next == 0 {
			next = t.alloc()
			t.nodes[cur].children[b] = next
			t.nodes[cur].links++
		}
		cur = next
	}

	n := &t.nodes[cur]
	n.value = v
	n.hasValue = true
	n.links++
	t.size++
	return true, nil
}

// step is one traversed edge: the parent slot and the branch taken.
type step struct {
	parent int32
	branch int
}

// Remove detaches the value under token and prunes every node left with
// no references. It reports whether a value was removed.
func (t *Trie[V]) Remove(token string) bool {
	path, err := t.indexes(token)
	if err != nil {
		return false
	}

	steps := make([]step, 0, len(path))
	cur := int32(0)
	for _, b := range path {
		next := t.nodes[cur].children[b]
		if next == 0 {
			return false
		}
		steps = append(steps, step{parent: cur, branch: b})
		cur = next
	}

	n := &t.nodes[cur]
	if !n.hasValue {
		return false
	}
	var zero V
	n.value = zero
	n.hasValue = false
	t.unref(cur)
	t.size--

	for i := len(steps) - 1; i >= 0; i-- {
		child := t.nodes[steps[i].parent].children[steps[i].branch]
		if t.nodes[child].links > 0 {
			break
		}
		t.nodes[steps[i].parent].children[steps[i].branch] = 0
		t.unref(steps[i].parent)
		t.release(child)
	}
	return true
}

// Lookup returns the value stored under token. Traversal stops at the
// first absent branch or out-of-alphabet byte.
func (t *Trie[V]) Lookup(token string) (V, bool) {
	var zero V
	if token == "" {
		return zero, false
	}

	cur := int32(0)
	for i := 0; i < len(token); i++ {
		b, ok := t.branch(token[i])
		if !ok || b < 0 || b >= t.width {
			return zero, false
		}
		cur = t.nodes[cur].children[b]
		if cur == 0 {
			return zero, false
		}
	}

	n := &t.nodes[cur]
	if !n.hasValue {
		return zero, false
	}
	return n.value, true
}

// Walk calls fn for every stored value in branch order.
func (t *Trie[V]) Walk(fn func(V)) {
	t.walk(0, fn)
}

func (t *Trie[V]) walk(idx int32, fn func(V)) {
	n := &t.nodes[idx]
	if n.hasValue {
		fn(n.value)
	}
	for _, c := range n.children {
		if c != 0 {
			t.walk(c, fn)
		}
	}
}

// Len returns the number of stored values.
func (t *Trie[V]) Len() int {
	return t.size
}

// Nodes returns the number of live nodes, root included.
func (t *Trie[V]) Nodes() int {
	return len(t.nodes) - len(t.free)
}

// Verify recomputes the reference count of every reachable node. It
// returns ErrCorrupt if any count disagrees with the node contents or a
// non-root node is reachable with a zero count.
func (t *Trie[V]) Verify() error {
	return t.verify(0)
}

func (t *Trie[V]) verify(idx int32) error {
	n := &t.nodes[idx]
	want := 0
	if n.hasValue {
		want++
	}
	for _, c := range n.children {
		if c == 0 {
			continue
		}
		want++
		if err := t.verify(c); err != nil {
			return err
		}
	}
	if n.links != want || (idx != 0 && n.links == 0) {
		return ErrCorrupt
	}
	return nil
}

func (t *Trie[V]) indexes(token string) ([]int, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	out := make([]int, len(token))
	for i := 0; i < len(token); i++ {
		b, ok := t.branch(token[i])
		if !ok || b < 0 || b >= t.width {
			return nil, ErrInvalidToken
		}
		out[i] = b
	}
	return out, nil
}

func (t *Trie[V]) alloc() int32 {
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		return idx
	}
	t.nodes = append(t.nodes, node[V]{children: make([]int32, t.width)})
	return int32(len(t.nodes) - 1)
}

func (t *Trie[V]) release(idx int32) {
	n := &t.nodes[idx]
	if n.links != 0 || n.hasValue {
		panic(ErrCorrupt)
	}
	for i := range n.children {
		n.children[i] = 0
	}
	t.free = append(t.free, idx)
}

func (t *Trie[V]) unref(idx int32) {
	t.nodes[idx].links--
	if t.nodes[idx].links < 0 {
		panic(ErrCorrupt)
	}
}
