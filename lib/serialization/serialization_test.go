package serialization

import (
	"bytes"
	"context"
	"io"
	"iter"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/ValentinKolb/dPack/lib/schema"
	"github.com/ValentinKolb/dPack/lib/traits"
	"github.com/ValentinKolb/dPack/lib/tuple"
	"github.com/ValentinKolb/dPack/lib/wire"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// --------------------------------------------------------------------------
// Test types
// --------------------------------------------------------------------------

type point struct{ X, Y int }

type point3 struct{ X, Y, Z int }

type shape interface{ Area() float64 }

type circle struct{ R float64 }

func (c circle) Area() float64 { return 3 * c.R * c.R }

type square struct{ A float64 }

func (s square) Area() float64 { return s.A * s.A }

type triangle struct{ B, H float64 }

func (t triangle) Area() float64 { return t.B * t.H / 2 }

type drawing struct {
	Title  string
	Main   shape            `dpack:",known=1:Circle|2:Square"`
	Shapes []shape          `dpack:",item=1:Circle|2:Square"`
	ByName map[string]shape `dpack:",known=1:Circle|2:Square"`
}

type holder struct {
	S shape `dpack:",known=1:Circle|2:Square"`
}

type bare struct{ S shape }

type node struct {
	Value int
	Next  *node
}

type tree struct {
	Name     string
	Children []*tree
}

type withMap struct{ M map[string]int }

type color int

const (
	red color = iota
	green
	blue
)

func (c color) String() string    { return [...]string{"Red", "Green", "Blue"}[c] }
func (color) EnumValues() []color { return []color{red, green, blue} }

type palette struct {
	Primary color
	Pause   time.Duration
}

type account struct {
	UserName string
	Email    string `dpack:"mail"`
	Note     string `dpack:",omitempty"`
}

type bag struct{ items []int }

func (b *bag) All() iter.Seq[int] { return slices.Values(b.items) }
func (b *bag) Add(v int)          { b.items = append(b.items, v) }
func (b *bag) Len() int           { return len(b.items) }

type frozen struct{ items []string }

func (f frozen) All() iter.Seq[string] { return slices.Values(f.items) }

type index struct{ m map[string]int }

func (x *index) Pairs() iter.Seq2[string, int] { return maps.All(x.m) }
func (x *index) Put(k string, v int) {
	if x.m == nil {
		x.m = make(map[string]int)
	}
	x.m[k] = v
}

func newTestRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	if opts.KnownTypes == nil {
		opts.KnownTypes = schema.NewTypeTable()
	}
	require.NoError(t, schema.RegisterType[circle](opts.KnownTypes, "Circle"))
	require.NoError(t, schema.RegisterType[square](opts.KnownTypes, "Square"))
	return NewRegistry(opts)
}

// roundTrip marshals v with reg and decodes it into a fresh value of the same type
func roundTrip[T any](t *testing.T, reg *Registry, v T) T {
	t.Helper()
	s, err := For[T](reg)
	require.NoError(t, err)
	b, err := s.Marshal(v)
	require.NoError(t, err)
	out, err := s.Unmarshal(b)
	require.NoError(t, err)
	return out
}

// --------------------------------------------------------------------------
// Round trips
// --------------------------------------------------------------------------

func TestRoundTripScalars(t *testing.T) {
	reg := newTestRegistry(t, Options{})

	assert.Equal(t, true, roundTrip(t, reg, true))
	assert.Equal(t, int8(-100), roundTrip(t, reg, int8(-100)))
	assert.Equal(t, int64(-1<<40), roundTrip(t, reg, int64(-1<<40)))
	assert.Equal(t, uint64(1<<63), roundTrip(t, reg, uint64(1<<63)))
	assert.Equal(t, float32(1.5), roundTrip(t, reg, float32(1.5)))
	assert.Equal(t, 3.25, roundTrip(t, reg, 3.25))
	assert.Equal(t, "héllo", roundTrip(t, reg, "héllo"))
	assert.Equal(t, []byte{1, 2, 3}, roundTrip(t, reg, []byte{1, 2, 3}))
	assert.Equal(t, [4]byte{1, 2, 3, 4}, roundTrip(t, reg, [4]byte{1, 2, 3, 4}))
	assert.Equal(t, 90*time.Second, roundTrip(t, reg, 90*time.Second))

	ts := time.Unix(1700000000, 123456789).UTC()
	assert.True(t, ts.Equal(roundTrip(t, reg, ts)))

	ext := wire.Ext{Code: 42, Data: []byte("raw")}
	assert.Equal(t, ext, roundTrip(t, reg, ext))
}

func TestRoundTripNestedCollections(t *testing.T) {
	reg := newTestRegistry(t, Options{})

	assert.Equal(t, map[string][]int{"a": {1, 2}, "b": {}}, roundTrip(t, reg, map[string][]int{"a": {1, 2}, "b": {}}))
	assert.Equal(t, [][]string{{"x"}, {"y", "z"}}, roundTrip(t, reg, [][]string{{"x"}, {"y", "z"}}))
	assert.Equal(t,
		map[int]map[string]bool{1: {"t": true}, 2: {"f": false}},
		roundTrip(t, reg, map[int]map[string]bool{1: {"t": true}, 2: {"f": false}}))
	assert.Equal(t,
		[]map[string]struct{}{{"a": {}, "b": {}}, {}},
		roundTrip(t, reg, []map[string]struct{}{{"a": {}, "b": {}}, {}}))
	assert.Equal(t, [2][]int{{1}, {2, 3}}, roundTrip(t, reg, [2][]int{{1}, {2, 3}}))
	assert.Equal(t, map[string][]point{"p": {{1, 2}}}, roundTrip(t, reg, map[string][]point{"p": {{1, 2}}}))
	assert.Equal(t,
		[]map[string][]int{{"a": {1, 2}, "b": nil}, {}, {"c": {3}}},
		roundTrip(t, reg, []map[string][]int{{"a": {1, 2}, "b": nil}, {}, {"c": {3}}}))
}

func TestRoundTripCustomCollections(t *testing.T) {
	reg := newTestRegistry(t, Options{})

	assert.Equal(t, bag{items: []int{3, 1, 2}}, roundTrip(t, reg, bag{items: []int{3, 1, 2}}))
	assert.Equal(t,
		[]bag{{items: []int{1}}, {items: []int{2, 3}}},
		roundTrip(t, reg, []bag{{items: []int{1}}, {items: []int{2, 3}}}))

	idx := index{m: map[string]int{"a": 1, "b": 2}}
	assert.Equal(t, idx, roundTrip(t, reg, idx))
}

func TestBulkConstructor(t *testing.T) {
	insp := traits.NewReflectInspector(nil)
	reg := newTestRegistry(t, Options{Inspector: insp})

	_, err := reg.Get(reflect.TypeFor[frozen]())
	assert.True(t, common.IsConfigurationError(err), "no Add method and no constructor")

	traits.RegisterListConstructor(insp, func(items []string) frozen { return frozen{items: items} })
	f := frozen{items: []string{"a", "b"}}
	assert.Equal(t, f, roundTrip(t, reg, f))

	p, err := reg.Get(reflect.TypeFor[frozen]())
	require.NoError(t, err)
	assert.Equal(t, StrategyWholeObject, p.Strategy())
}

func TestNilValues(t *testing.T) {
	reg := newTestRegistry(t, Options{})

	b, err := reg.Marshal([]int(nil))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xc0}, b)

	var p *point
	assert.Nil(t, roundTrip(t, reg, p))
	assert.Equal(t, &point{1, 2}, roundTrip(t, reg, &point{1, 2}))
	assert.Nil(t, roundTrip(t, reg, map[string]int(nil)))
}

func TestRecursiveTypes(t *testing.T) {
	reg := newTestRegistry(t, Options{})

	list := node{Value: 1, Next: &node{Value: 2, Next: &node{Value: 3}}}
	assert.Equal(t, list, roundTrip(t, reg, list))

	tr := &tree{Name: "root", Children: []*tree{
		{Name: "a", Children: []*tree{{Name: "a1"}}},
		{Name: "b"},
	}}
	assert.Equal(t, tr, roundTrip(t, reg, tr))
}

func TestTuples(t *testing.T) {
	reg := newTestRegistry(t, Options{})

	v := tuple.Of3(1, "two", []bool{true})
	assert.Equal(t, v, roundTrip(t, reg, v))

	s, err := For[tuple.Tuple3[int, string, []bool]](reg)
	require.NoError(t, err)
	b, err := s.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, byte(0x93), b[0])

	_, err = s.Unmarshal([]byte{0x92, 0x01, 0xa1, 'x'})
	assert.True(t, common.IsFormatError(err), "arity mismatch")

	typ := reflect.TypeFor[tuple.Tuple2[int, shape]]()
	ps, err := schema.Resolve(&schema.Declaration{TupleItems: map[int]*schema.Declaration{
		2: schema.Known(schema.Bind[circle](1)),
	}}, typ, traits.ShapeFunc(reg.Options().Inspector))
	require.NoError(t, err)
	ts, err := ForSchema[tuple.Tuple2[int, shape]](reg, ps)
	require.NoError(t, err)
	pair := tuple.Tuple2[int, shape]{Item1: 7, Item2: circle{R: 1}}
	b, err = ts.Marshal(pair)
	require.NoError(t, err)
	out, err := ts.Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, pair, out)
}

// --------------------------------------------------------------------------
// Wire layout
// --------------------------------------------------------------------------

func TestWireLayout(t *testing.T) {
	reg := newTestRegistry(t, Options{})

	b, err := reg.Marshal([]int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x93, 0x01, 0x02, 0x03}, b)

	b, err = reg.Marshal(point{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x92, 0x01, 0x02}, b)

	mapped := newTestRegistry(t, Options{ObjectMethod: AsMap})
	b, err = mapped.Marshal(point{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82, 0xa1, 'X', 0x01, 0xa1, 'Y', 0x02}, b)
}

func TestKeyTransformer(t *testing.T) {
	reg := newTestRegistry(t, Options{ObjectMethod: AsMap, KeyTransformer: ToLowerCamel})

	b, err := reg.Marshal(account{UserName: "ada", Email: "a@b"})
	require.NoError(t, err)

	var raw any
	require.NoError(t, reg.Unmarshal(b, &raw))
	assert.Equal(t, map[any]any{"userName": "ada", "mail": "a@b"}, raw, "explicit names are kept, empty Note is omitted")

	var back account
	require.NoError(t, reg.Unmarshal(b, &back))
	assert.Equal(t, account{UserName: "ada", Email: "a@b"}, back)

	assert.Equal(t, "aA", ToLowerCamel("AA"))
	assert.Equal(t, "_A", ToLowerCamel("_A"))
	assert.Equal(t, "", ToLowerCamel(""))
}

func TestObjectLayoutsAreInterchangeable(t *testing.T) {
	arrays := newTestRegistry(t, Options{})
	keyed := newTestRegistry(t, Options{ObjectMethod: AsMap})

	b, err := keyed.Marshal(point3{1, 2, 3})
	require.NoError(t, err)
	var p point
	require.NoError(t, arrays.Unmarshal(b, &p), "unknown member Z is skipped")
	assert.Equal(t, point{1, 2}, p)

	b, err = arrays.Marshal(point3{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, keyed.Unmarshal(b, &p), "surplus item is skipped")
	assert.Equal(t, point{1, 2}, p)

	// missing members keep their zero value
	require.NoError(t, keyed.Unmarshal([]byte{0x81, 0xa1, 'Y', 0x05}, &p))
	assert.Equal(t, point{0, 5}, p)
}

func TestEnums(t *testing.T) {
	byName := newTestRegistry(t, Options{})
	byValue := newTestRegistry(t, Options{EnumMethod: ByUnderlyingValue})

	b, err := byName.Marshal(green)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0xa5}, "Green"...), b)

	b2, err := byValue.Marshal(green)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, b2)

	// both forms decode with either method
	for _, reg := range []*Registry{byName, byValue} {
		for _, in := range [][]byte{b, b2} {
			var c color
			require.NoError(t, reg.Unmarshal(in, &c))
			assert.Equal(t, green, c)
		}
	}

	var c color
	err = byName.Unmarshal(append([]byte{0xa6}, "Purple"...), &c)
	assert.True(t, common.IsFormatError(err))

	// per type override, durations stay integers
	override := newTestRegistry(t, Options{EnumMethods: map[reflect.Type]EnumMethod{reflect.TypeFor[color](): ByUnderlyingValue}})
	b, err = override.Marshal(palette{Primary: blue, Pause: time.Second})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x92, 0x02, 0xce, 0x3b, 0x9a, 0xca, 0x00}, b)
}

// --------------------------------------------------------------------------
// Polymorphism
// --------------------------------------------------------------------------

func TestPolymorphicRoundTrip(t *testing.T) {
	reg := newTestRegistry(t, Options{})

	d := drawing{
		Title:  "d",
		Main:   square{A: 2},
		Shapes: []shape{circle{R: 1}, square{A: 3}, nil},
		ByName: map[string]shape{"c": circle{R: 4}},
	}
	assert.Equal(t, d, roundTrip(t, reg, d))
}

func TestPolymorphicTypeCode(t *testing.T) {
	reg := newTestRegistry(t, Options{})
	s, err := For[holder](reg)
	require.NoError(t, err)

	payload := wire.NewWriter(16)
	payload.WriteArrayHeader(1)
	payload.WriteFloat64(2)
	w := wire.NewWriter(16)
	w.WriteArrayHeader(1)
	w.WriteExt(2, payload.Bytes())

	h, err := s.Unmarshal(w.Bytes())
	require.NoError(t, err)
	assert.Equal(t, holder{S: square{A: 2}}, h)

	b, err := s.Marshal(h)
	require.NoError(t, err)
	assert.Equal(t, w.Bytes(), b)
}

func TestUnknownTypeCode(t *testing.T) {
	reg := newTestRegistry(t, Options{})
	s, err := For[holder](reg)
	require.NoError(t, err)

	w := wire.NewWriter(16)
	w.WriteArrayHeader(1)
	w.WriteExt(5, []byte{0x90})

	_, err = s.Unmarshal(w.Bytes())
	var ue *common.UnknownExtensionError
	require.True(t, errors.As(err, &ue), "%v", err)
	assert.Equal(t, int8(5), ue.Code)

	_, err = s.Marshal(holder{S: triangle{1, 2}})
	assert.True(t, common.IsUnknownExtensionError(err), "unbound runtime type")
}

func TestInvalidBindings(t *testing.T) {
	opts := Options{}
	opts.SetMemberSchema(reflect.TypeFor[bare](), "S", schema.Known(schema.Binding{Code: 128, Type: reflect.TypeFor[circle]()}))
	_, err := newTestRegistry(t, opts).Get(reflect.TypeFor[bare]())
	assert.True(t, common.IsConfigurationError(err))

	_, err = newTestRegistry(t, Options{}).Get(reflect.TypeFor[bare]())
	assert.True(t, common.IsConfigurationError(err), "interface without bindings")

	opts = Options{}
	opts.SetMemberSchema(reflect.TypeFor[bare](), "S", schema.Known(schema.Bind[circle](127)))
	reg := newTestRegistry(t, opts)
	assert.Equal(t, bare{S: circle{R: 2}}, roundTrip(t, reg, bare{S: circle{R: 2}}))
}

// --------------------------------------------------------------------------
// Decoding errors
// --------------------------------------------------------------------------

func TestTruncation(t *testing.T) {
	reg := newTestRegistry(t, Options{})

	xs := []int{9}
	err := reg.Unmarshal([]byte{0x95, 0x01, 0x02, 0x03}, &xs)
	var te *common.TruncationError
	require.True(t, errors.As(err, &te), "%v", err)
	assert.Equal(t, 3, te.Index)
	assert.Equal(t, 5, te.Count)
	assert.Equal(t, []int{9}, xs, "target is unchanged on failure")

	var m map[string]int
	err = reg.Unmarshal([]byte{0x82, 0xa1, 'a', 0x01}, &m)
	require.True(t, errors.As(err, &te), "%v", err)
	assert.Equal(t, 1, te.Index)
	assert.Nil(t, m)

	// nested collections report their own position
	var nested [][]int
	err = reg.Unmarshal([]byte{0x91, 0x95, 0x01, 0x02, 0x03}, &nested)
	require.True(t, errors.As(err, &te), "%v", err)
	assert.Equal(t, 3, te.Index)
	assert.Equal(t, 5, te.Count)

	var wm withMap
	err = reg.Unmarshal([]byte{0x91, 0x82, 0xa1, 'a', 0x01}, &wm)
	require.True(t, errors.As(err, &te), "%v", err)
	assert.Equal(t, 1, te.Index)
	assert.Equal(t, 2, te.Count)

	var lists []map[string][]int
	err = reg.Unmarshal([]byte{0x92, 0x80, 0x81, 0xa1, 'k', 0x93, 0x01}, &lists)
	require.True(t, errors.As(err, &te), "%v", err)
	assert.Equal(t, 1, te.Index)
	assert.Equal(t, 3, te.Count)
}

func TestDepthLimit(t *testing.T) {
	reg := newTestRegistry(t, Options{MaxDepth: 16})

	// chain encodes a linked list of n nodes in array layout
	chain := func(n int) []byte {
		return append(bytes.Repeat([]byte{0x92, 0x01}, n), 0xc0)
	}
	var n node
	require.NoError(t, reg.Unmarshal(chain(8), &n))
	err := reg.Unmarshal(chain(9), &n)
	assert.True(t, common.IsFormatError(err), "%v", err)
	assert.False(t, common.IsTruncationError(err))

	var v any
	require.NoError(t, reg.Unmarshal(append(bytes.Repeat([]byte{0x91}, 16), 0x01), &v))
	err = reg.Unmarshal(append(bytes.Repeat([]byte{0x91}, 17), 0x01), &v)
	assert.True(t, common.IsFormatError(err), "%v", err)

	// the default limit stops a huge input long before the stack grows
	huge := newTestRegistry(t, Options{})
	err = huge.Unmarshal(chain(1<<20), &n)
	assert.True(t, common.IsFormatError(err), "%v", err)
	var grid [][][][]int
	err = huge.Unmarshal(bytes.Repeat([]byte{0x91}, 1<<20), &grid)
	assert.True(t, common.IsFormatError(err) || common.IsTruncationError(err), "%v", err)
}

func TestFormatErrors(t *testing.T) {
	reg := newTestRegistry(t, Options{})

	var wm withMap
	err := reg.Unmarshal([]byte{0x91, 0x90}, &wm)
	assert.True(t, common.IsFormatError(err), "%v", err)

	var x int8
	err = reg.Unmarshal([]byte{0xcd, 0x01, 0x00}, &x)
	assert.True(t, common.IsFormatError(err), "overflow")

	var n int
	err = reg.Unmarshal([]byte{0x01, 0x02}, &n)
	assert.True(t, common.IsFormatError(err), "trailing bytes")

	var v any
	err = reg.Unmarshal([]byte{0x81, 0x90, 0x01}, &v)
	assert.True(t, common.IsFormatError(err), "unhashable key")
}

// --------------------------------------------------------------------------
// Dynamic values
// --------------------------------------------------------------------------

func TestDynamicValues(t *testing.T) {
	reg := newTestRegistry(t, Options{})

	b, err := reg.Marshal([]any{1, "a", []any{true, nil}, map[string]int{"k": -1}, uint64(1 << 63)})
	require.NoError(t, err)

	var v any
	require.NoError(t, reg.Unmarshal(b, &v))
	assert.Equal(t, []any{
		int64(1), "a", []any{true, nil}, map[any]any{"k": int64(-1)}, uint64(1 << 63),
	}, v)

	ts := time.Unix(10, 0).UTC()
	b, err = reg.Marshal([]any{ts, float32(0.5), []byte{7}})
	require.NoError(t, err)
	require.NoError(t, reg.Unmarshal(b, &v))
	assert.Equal(t, []any{ts, float32(0.5), []byte{7}}, v)
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

func TestSameProcedure(t *testing.T) {
	reg := newTestRegistry(t, Options{})

	a, err := reg.Get(reflect.TypeFor[drawing]())
	require.NoError(t, err)
	b, err := reg.Get(reflect.TypeFor[drawing]())
	require.NoError(t, err)
	assert.Same(t, a, b)

	s, err := For[drawing](reg)
	require.NoError(t, err)
	assert.Same(t, a, s.Procedure())
}

func TestConcurrentBuildsOnce(t *testing.T) {
	reg := newTestRegistry(t, Options{})
	_, err := reg.Get(reflect.TypeFor[int]())
	require.NoError(t, err)
	before := reg.Stats().Builds

	procs := make([]*Procedure, 32)
	var g errgroup.Group
	for i := range procs {
		g.Go(func() error {
			p, err := reg.Get(reflect.TypeFor[[]int]())
			procs[i] = p
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, p := range procs {
		assert.Same(t, procs[0], p)
	}
	assert.Equal(t, before+1, reg.Stats().Builds)
}

func TestFailedBuildIsNotCached(t *testing.T) {
	reg := newTestRegistry(t, Options{})
	_, err := reg.Get(reflect.TypeFor[[]bare]())
	require.Error(t, err)
	assert.Empty(t, reg.Specifications())
	assert.Equal(t, uint64(1), reg.Stats().Failures)

	_, err = reg.Get(reflect.TypeFor[[]bare]())
	require.Error(t, err, "a second lookup builds again and fails again")
	assert.Equal(t, uint64(2), reg.Stats().Failures)
}

type leaf struct{ N int }

type branch struct{ L leaf }

// stallingInspector holds the first classification of target until release yields
// the result
type stallingInspector struct {
	traits.Inspector
	target  reflect.Type
	armed   atomic.Bool
	entered chan struct{}
	release chan error
}

func (s *stallingInspector) Traits(t reflect.Type) (traits.CollectionTraits, error) {
	if t == s.target && s.armed.CompareAndSwap(true, false) {
		close(s.entered)
		if err := <-s.release; err != nil {
			return traits.CollectionTraits{}, err
		}
	}
	return s.Inspector.Traits(t)
}

func TestFailedDependencyIsNotCached(t *testing.T) {
	insp := &stallingInspector{
		Inspector: traits.NewReflectInspector(nil),
		target:    reflect.TypeFor[leaf](),
		entered:   make(chan struct{}),
		release:   make(chan error),
	}
	insp.armed.Store(true)
	reg := NewRegistry(Options{Inspector: insp})

	var g errgroup.Group
	g.Go(func() error {
		_, err := reg.Get(reflect.TypeFor[leaf]())
		return err
	})
	<-insp.entered

	// the build of branch finds the pending leaf of the other goroutine
	branchDone := make(chan error, 1)
	go func() {
		_, err := reg.Get(reflect.TypeFor[branch]())
		branchDone <- err
	}()
	spec := Specification{Type: reflect.TypeFor[branch](), Schema: schema.Default.Fingerprint()}
	var published *Procedure
	require.Eventually(t, func() bool {
		p, ok := reg.Cached(spec)
		published = p
		return ok
	}, 5*time.Second, time.Millisecond)

	insp.release <- common.NewConfigurationError("dpack: leaf cannot be classified")
	assert.True(t, common.IsConfigurationError(g.Wait()))
	err := <-branchDone
	assert.True(t, common.IsConfigurationError(err), "%v", err)

	_, ok := reg.Cached(spec)
	assert.False(t, ok, "branch depends on the failed leaf")
	assert.Equal(t, StrategyUnknown, published.Strategy())
	_, err = published.Marshal(branch{})
	assert.True(t, common.IsConfigurationError(err), "%v", err)

	// the next lookup builds both again
	assert.Equal(t, branch{L: leaf{N: 7}}, roundTrip(t, reg, branch{L: leaf{N: 7}}))
	p, err := reg.Get(reflect.TypeFor[branch]())
	require.NoError(t, err)
	assert.Equal(t, StrategyMemberWise, p.Strategy())
}

func TestMetrics(t *testing.T) {
	reg := newTestRegistry(t, Options{})
	_, err := reg.Marshal(point{1, 2})
	require.NoError(t, err)

	var buf bytes.Buffer
	reg.WriteMetrics(&buf)
	assert.Contains(t, buf.String(), "dpack_registry_builds_total 2")
	assert.Contains(t, buf.String(), "dpack_registry_entries 2")
}

func TestGenericHelpers(t *testing.T) {
	b, err := Marshal(point{3, 4})
	require.NoError(t, err)
	p, err := Unmarshal[point](b)
	require.NoError(t, err)
	assert.Equal(t, point{3, 4}, p)
}

// --------------------------------------------------------------------------
// Streams
// --------------------------------------------------------------------------

func TestStream(t *testing.T) {
	reg := newTestRegistry(t, Options{})
	ctx := context.Background()

	var buf bytes.Buffer
	enc := NewEncoder(reg, &buf)
	require.NoError(t, enc.Encode(ctx, point{1, 2}))
	require.NoError(t, enc.Encode(ctx, "x"))
	require.NoError(t, enc.Encode(ctx, []int{1, 2, 3}))

	dec := NewDecoder(reg, &buf)
	var p point
	require.NoError(t, dec.Decode(ctx, &p))
	assert.Equal(t, point{1, 2}, p)
	var s string
	require.NoError(t, dec.Decode(ctx, &s))
	assert.Equal(t, "x", s)
	var xs []int
	require.NoError(t, dec.Decode(ctx, &xs))
	assert.Equal(t, []int{1, 2, 3}, xs)
	assert.ErrorIs(t, dec.Decode(ctx, &xs), io.EOF)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, enc.Encode(cancelled, 1), context.Canceled)

	dec = NewDecoder(reg, strings.NewReader("\x93\x01"))
	err := dec.Decode(ctx, &xs)
	assert.True(t, common.IsTruncationError(err), "%v", err)
}
