package serialization

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/ValentinKolb/dPack/lib/schema"
	"github.com/ValentinKolb/dPack/lib/wire"
	"github.com/cockroachdb/errors"
)

// Specification identifies a procedure: the target type and the fingerprint of the
// polymorphism schema it was built for.
type Specification struct {
	Type   reflect.Type
	Schema string
}

func (s Specification) String() string {
	if s.Schema == "" {
		return s.Type.String()
	}
	return s.Type.String() + " " + s.Schema
}

// Procedure is the serializer of one (type, schema). It is created as a placeholder
// when its build starts, so recursive types can refer to it, and is filled in place
// when the build completes. Once ready it never changes and is safe for concurrent use.
//
// A procedure breaks when its build fails, or later when a procedure of another
// build it refers to breaks. A broken procedure is removed from its registry and
// returns the cause from every call.
type Procedure struct {
	spec   Specification
	schema *schema.PolymorphismSchema
	plan   *Plan

	pack     PackFunc
	unpack   UnpackFunc
	maxDepth int

	ready atomic.Bool
	done  chan struct{}
	cause atomic.Pointer[error]

	// dependents are the procedures of other builds referring to this one
	mu         sync.Mutex
	dependents []*Procedure
}

func newPlaceholder(t reflect.Type, s *schema.PolymorphismSchema, maxDepth int) *Procedure {
	return &Procedure{
		spec:     Specification{Type: t, Schema: s.Fingerprint()},
		schema:   s,
		maxDepth: maxDepth,
		done:     make(chan struct{}),
	}
}

// fill sets the compiled functions. It does not publish the procedure.
func (p *Procedure) fill(plan *Plan, pack PackFunc, unpack UnpackFunc) {
	p.plan, p.pack, p.unpack = plan, pack, unpack
}

// publish makes the procedure usable by everyone waiting for it
func (p *Procedure) publish() {
	p.ready.Store(true)
	close(p.done)
}

// settle completes an unpublished procedure after its build failed
func (p *Procedure) settle() {
	close(p.done)
}

// breakWith records err as the reason p is unusable. Only the first call breaks p;
// it returns the dependents registered so far and true.
func (p *Procedure) breakWith(err error) ([]*Procedure, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cause.Load() != nil {
		return nil, false
	}
	p.cause.Store(&err)
	deps := p.dependents
	p.dependents = nil
	return deps, true
}

// addDependents registers procs to be broken together with p. When p is already
// broken nothing is registered and the cause is returned.
func (p *Procedure) addDependents(procs []*Procedure) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c := p.cause.Load(); c != nil {
		return *c
	}
	p.dependents = append(p.dependents, procs...)
	return nil
}

// failed returns the cause when p is broken, without waiting
func (p *Procedure) failed() error {
	if c := p.cause.Load(); c != nil {
		return *c
	}
	return nil
}

// wait blocks until the build of p has completed and returns the cause when p is broken
func (p *Procedure) wait() error {
	if !p.ready.Load() {
		<-p.done
	}
	return p.failed()
}

// Specification returns the identity of the procedure
func (p *Procedure) Specification() Specification { return p.spec }

// Type returns the target type
func (p *Procedure) Type() reflect.Type { return p.spec.Type }

// Schema returns the polymorphism schema the procedure was built for
func (p *Procedure) Schema() *schema.PolymorphismSchema { return p.schema }

// Strategy returns the strategy chosen by the builder, or StrategyUnknown when the
// procedure is broken
func (p *Procedure) Strategy() Strategy {
	if p.wait() != nil || p.plan == nil {
		return StrategyUnknown
	}
	return p.plan.Strategy
}

// Pack writes v, which must be of the procedure's type
func (p *Procedure) Pack(w *wire.Writer, v reflect.Value) error {
	if err := p.wait(); err != nil {
		return err
	}
	return p.pack(w, v)
}

// Unpack decodes the next value of r into v, which must be settable and of the
// procedure's type. v is left unchanged when decoding fails.
func (p *Procedure) Unpack(r *wire.Reader, v reflect.Value) error {
	if err := p.wait(); err != nil {
		return err
	}
	return p.unpack(r, v)
}

// --------------------------------------------------------------------------
// Byte level helpers
// --------------------------------------------------------------------------

var writerPool = sync.Pool{New: func() any { return wire.NewWriter(256) }}

func getWriter() *wire.Writer {
	w := writerPool.Get().(*wire.Writer)
	w.Reset()
	return w
}

func putWriter(w *wire.Writer) {
	// large buffers are not kept around
	if w.Len() <= 64<<10 {
		writerPool.Put(w)
	}
}

// Marshal encodes v. v may be a value of the procedure's type or a pointer to one.
func (p *Procedure) Marshal(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		rv = reflect.Zero(p.Type())
	}
	if rv.Type() != p.Type() {
		if rv.Kind() == reflect.Pointer && rv.Type().Elem() == p.Type() && !rv.IsNil() {
			rv = rv.Elem()
		} else {
			return nil, errors.Newf("dpack: cannot marshal %s with the serializer of %s", rv.Type(), p.Type())
		}
	}

	w := getWriter()
	defer putWriter(w)
	if err := p.Pack(w, rv); err != nil {
		return nil, err
	}
	return append([]byte(nil), w.Bytes()...), nil
}

// Unmarshal decodes b into the value ptr points to. b must hold exactly one value.
func (p *Procedure) Unmarshal(b []byte, ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Type().Elem() != p.Type() {
		return errors.Newf("dpack: Unmarshal needs a non-nil *%s, got %T", p.Type(), ptr)
	}
	r := wire.NewReader(b)
	r.SetMaxDepth(p.maxDepth)
	if err := p.Unpack(r, rv.Elem()); err != nil {
		return err
	}
	if !r.Exhausted() {
		return common.NewFormatError("dpack: %d trailing bytes after %s", r.Remaining(), p.Type())
	}
	return nil
}
