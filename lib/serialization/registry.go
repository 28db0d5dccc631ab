package serialization

import (
	"io"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/ValentinKolb/dPack/lib/common"
	"github.com/ValentinKolb/dPack/lib/schema"
	"github.com/VictoriaMetrics/metrics"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("serialization")

// Registry builds and caches one Procedure per (type, polymorphism schema). All
// methods are safe for concurrent use. Two lookups of the same specification return
// the same *Procedure, and a specification is built at most once.
type Registry struct {
	opts  Options
	procs *xsync.MapOf[Specification, *Procedure]

	// metrics
	set       *metrics.Set
	builds    *metrics.Counter
	hits      *metrics.Counter
	failures  *metrics.Counter
	buildTime *metrics.Histogram
}

// Stats is a snapshot of the registry counters
type Stats struct {
	// Builds counts the procedures built, including nested ones
	Builds uint64
	// Hits counts lookups answered from the cache
	Hits uint64
	// Failures counts builds that failed
	Failures uint64
	// Entries is the number of cached procedures
	Entries int
}

// NewRegistry creates an empty registry
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		opts:  opts.withDefaults(),
		procs: xsync.NewMapOf[Specification, *Procedure](),
		set:   metrics.NewSet(),
	}
	r.builds = r.set.NewCounter("dpack_registry_builds_total")
	r.hits = r.set.NewCounter("dpack_registry_hits_total")
	r.failures = r.set.NewCounter("dpack_registry_failures_total")
	r.buildTime = r.set.NewHistogram("dpack_registry_build_duration_seconds")
	r.set.NewGauge("dpack_registry_entries", func() float64 {
		return float64(r.procs.Size())
	})
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return NewRegistry(Options{})
})

// DefaultRegistry returns the process wide registry with default options
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// Options returns the options of the registry, with defaults applied
func (r *Registry) Options() Options { return r.opts }

// GetOrBuild returns the procedure of (t, s), building it and every serializer it
// depends on when needed. A nil schema is the empty schema. When another goroutine
// is building the same specification, or a serializer the new one refers to,
// GetOrBuild waits for it to finish and fails when that build fails.
func (r *Registry) GetOrBuild(t reflect.Type, s *schema.PolymorphismSchema) (*Procedure, error) {
	if t == nil {
		return nil, common.NewConfigurationError("dpack: cannot build a serializer for a nil type")
	}

	b := &build{}
	start := time.Now()
	p, err := r.lookup(b, t, s)
	if err != nil {
		r.abort(b, err)
		return nil, err
	}
	r.commit(b, start)

	// a failing foreign build breaks the procedures of b before its done is closed
	for f := range b.foreign {
		_ = f.wait()
	}
	if err := p.wait(); err != nil {
		return nil, err
	}
	return p, nil
}

// Get is GetOrBuild with the empty schema
func (r *Registry) Get(t reflect.Type) (*Procedure, error) {
	return r.GetOrBuild(t, schema.Default)
}

// lookup returns the cached procedure of (t, s) or claims a placeholder for it in b
// and builds it. It never waits: a placeholder of a running build (of b or of another
// goroutine) is returned as is.
func (r *Registry) lookup(b *build, t reflect.Type, s *schema.PolymorphismSchema) (*Procedure, error) {
	if s == nil {
		s = schema.Default
	}
	key := Specification{Type: t, Schema: s.Fingerprint()}

	if p, ok := r.procs.Load(key); ok {
		r.hits.Inc()
		b.refer(p)
		return p, p.failed()
	}
	if b.depth >= maxBuildDepth {
		return nil, common.NewConfigurationError("dpack: serializers nested deeper than %d levels at %s", maxBuildDepth, key)
	}

	p, loaded := r.procs.LoadOrStore(key, newPlaceholder(t, s, r.opts.MaxDepth))
	if loaded {
		r.hits.Inc()
		b.refer(p)
		return p, p.failed()
	}
	b.claim(p)

	b.depth++
	defer func() { b.depth-- }()

	pl := &planner{reg: r, build: b, opts: &r.opts}
	plan, err := pl.plan(t, s)
	if err != nil {
		return nil, err
	}
	pack, unpack, err := r.opts.Backend.Compile(plan)
	if err != nil {
		return nil, errors.Wrapf(err, "compile %s", key)
	}
	p.fill(plan, pack, unpack)
	Logger.Debugf("built serializer for %s: %s", key, plan.Strategy)
	return p, nil
}

// commit publishes every procedure claimed by b and ties them to the foreign
// placeholders b refers to
func (r *Registry) commit(b *build, start time.Time) {
	if len(b.claimed) == 0 {
		return
	}
	for _, p := range b.claimed {
		p.publish()
	}
	r.builds.Add(len(b.claimed))
	r.buildTime.UpdateDuration(start)

	for f := range b.foreign {
		if err := f.addDependents(b.claimed); err != nil {
			r.breakAll(b.claimed, err)
			return
		}
	}
}

// abort removes every procedure claimed by b from the cache and fails it, so the
// next lookup starts over. Procedures of other builds referring to them break too.
func (r *Registry) abort(b *build, err error) {
	for _, p := range b.claimed {
		r.remove(p)
		deps, _ := p.breakWith(err)
		r.breakAll(deps, err)
	}
	for _, p := range b.claimed {
		p.settle()
	}
	r.failures.Inc()
	Logger.Warningf("failed to build serializer: %v", err)
}

// breakAll removes published procedures from the cache because a procedure they
// refer to failed, together with everything referring to them
func (r *Registry) breakAll(procs []*Procedure, err error) {
	for _, p := range procs {
		deps, first := p.breakWith(err)
		if !first {
			continue
		}
		r.remove(p)
		Logger.Warningf("dropped serializer for %s: %v", p.spec, err)
		r.breakAll(deps, err)
	}
}

// remove deletes p from the cache unless the entry was already replaced
func (r *Registry) remove(p *Procedure) {
	r.procs.Compute(p.spec, func(old *Procedure, loaded bool) (*Procedure, bool) {
		return old, !loaded || old == p
	})
}

// Stats returns a snapshot of the registry counters
func (r *Registry) Stats() Stats {
	return Stats{
		Builds:   r.builds.Get(),
		Hits:     r.hits.Get(),
		Failures: r.failures.Get(),
		Entries:  r.procs.Size(),
	}
}

// WriteMetrics writes the registry metrics in Prometheus text format
func (r *Registry) WriteMetrics(w io.Writer) {
	r.set.WritePrometheus(w)
}

// Cached returns the procedure cached for spec, if it is ready
func (r *Registry) Cached(spec Specification) (*Procedure, bool) {
	p, ok := r.procs.Load(spec)
	if !ok || !p.ready.Load() {
		return nil, false
	}
	return p, true
}

// Specifications lists the cached specifications, sorted by their string form
func (r *Registry) Specifications() []Specification {
	var out []Specification
	r.procs.Range(func(key Specification, _ *Procedure) bool {
		out = append(out, key)
		return true
	})
	slices.SortFunc(out, func(a, b Specification) int {
		switch sa, sb := a.String(), b.String(); {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	})
	return out
}

// --------------------------------------------------------------------------
// Untyped entry points
// --------------------------------------------------------------------------

// Marshal encodes v with the serializer of its dynamic type. A pointer is encoded as
// the value it points to, nil as the nil token.
func (r *Registry) Marshal(v any) ([]byte, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return []byte{0xc0}, nil
	}
	p, err := r.Get(t)
	if err != nil {
		return nil, err
	}
	return p.Marshal(v)
}

// Unmarshal decodes b into the value ptr points to
func (r *Registry) Unmarshal(b []byte, ptr any) error {
	t := reflect.TypeOf(ptr)
	if t == nil || t.Kind() != reflect.Pointer {
		return errors.Newf("dpack: Unmarshal needs a non-nil pointer, got %T", ptr)
	}
	p, err := r.Get(t.Elem())
	if err != nil {
		return err
	}
	return p.Unmarshal(b, ptr)
}
