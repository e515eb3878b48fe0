// Package engine hosts the Manager facade: the sole entry point an
// embedding application uses to load scripts and invoke their
// procedures, grounded on lockbox/lockscript/engine_additions.go and
// lockbox/service.go's request-scoped, option-configured service
// wrapper around the compile/validate/execute pipeline.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/dueldanov/embedscript/engine/metrics"
	"github.com/dueldanov/embedscript/engine/ratelimit"
	"github.com/dueldanov/embedscript/internal/obslog"
	"github.com/dueldanov/embedscript/internal/script"
)

// Manager is the host-facing facade over the lexer/parser/interpreter
// pipeline: load/check compile scripts, invoke runs a loaded procedure,
// and register_external_fn/register_external_var extend the names
// visible to script code, per SPEC_FULL.md §6.1.
type Manager struct {
	mu sync.RWMutex

	procedures       map[string]*script.ProcedureDecl
	procedureOrigins map[string]string // procedure name -> owning filename

	externalFns  map[string]script.ExternalFunc
	externalVars map[string]script.Value
	readOnly     map[string]bool

	cache   *scriptCache
	metrics *metrics.Collector
	limiter *ratelimit.Limiter
	logger  *obslog.Logger
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger attaches a structured logger; without it, Manager logs
// nothing.
func WithLogger(l *obslog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics attaches a Prometheus collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithRateLimit bounds Invoke throughput per procedure name.
func WithRateLimit(rps float64, burst int) Option {
	return func(m *Manager) { m.limiter = ratelimit.New(rps, burst) }
}

// WithCacheSize bounds the number of distinct (filename, source) parse
// results the Manager memoizes.
func WithCacheSize(n int) Option {
	return func(m *Manager) { m.cache = newScriptCache(n) }
}

// NewManager builds a Manager ready to Load scripts into.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		procedures:       make(map[string]*script.ProcedureDecl),
		procedureOrigins: make(map[string]string),
		externalFns:      make(map[string]script.ExternalFunc),
		externalVars:     make(map[string]script.Value),
		readOnly:         make(map[string]bool),
		cache:            newScriptCache(0),
		logger:           obslog.NewDisabled(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// parse runs the lexer and parser, consulting and populating the cache.
func (m *Manager) parse(filename, source string) (*script.Script, []script.Diagnostic) {
	if parsed, diags, ok := m.cache.get(filename, source); ok {
		if m.metrics != nil {
			m.metrics.CacheHits.Inc()
		}
		return parsed, diags
	}
	if m.metrics != nil {
		m.metrics.CacheMisses.Inc()
	}

	done := m.logger.Timed(obslog.PhaseParse, "parse", "")
	tokens := script.Tokenize(source)
	parsed, diags := script.ParseScript(tokens, filename)
	var err error
	if len(diags) > 0 {
		err = fmt.Errorf("%d diagnostic(s)", len(diags))
	}
	done(err)

	m.cache.put(filename, source, parsed, diags)
	return parsed, diags
}

// Check runs the same parse and same-file duplicate-procedure check as
// Load but registers none of the procedures (dry-run validation).
func (m *Manager) Check(filename, source string) []script.Diagnostic {
	parsed, parseDiags := m.parse(filename, source)
	diags := append([]script.Diagnostic(nil), parseDiags...)
	seen := make(map[string]bool, len(parsed.Procedures))
	for _, proc := range parsed.Procedures {
		if seen[proc.Name] {
			diags = append(diags, script.Diagnostic{
				Filename: filename, Procedure: proc.Name, Line: proc.Line, Column: proc.Column,
				Code:    script.CodeDuplicateProcedure,
				Message: fmt.Sprintf("procedure %q declared more than once in %s", proc.Name, filename),
			})
		}
		seen[proc.Name] = true
	}
	if m.metrics != nil {
		m.metrics.ObserveCheck(len(diags) == 0)
	}
	return diags
}

// Load parses source and registers its procedures. Per spec.md's
// two-tier duplicate-procedure rule: a name declared twice within this
// same Load call is a compile error; a name that already belongs to a
// different, previously loaded file is silently replaced (the new
// definition wins, its origin file updated), since hosts reload
// individual scripts independently over a long process lifetime.
func (m *Manager) Load(filename, source string) []script.Diagnostic {
	parsed, diags := m.parse(filename, source)

	seenInThisFile := make(map[string]bool, len(parsed.Procedures))
	var fileDiags []script.Diagnostic
	fileDiags = append(fileDiags, diags...)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, proc := range parsed.Procedures {
		if seenInThisFile[proc.Name] {
			fileDiags = append(fileDiags, script.Diagnostic{
				Filename:  filename,
				Procedure: proc.Name,
				Line:      proc.Line,
				Column:    proc.Column,
				Code:      script.CodeDuplicateProcedure,
				Message:   fmt.Sprintf("procedure %q declared more than once in %s", proc.Name, filename),
			})
			continue
		}
		seenInThisFile[proc.Name] = true
	}
	if len(fileDiags) > len(diags) {
		// A same-file duplicate was found; registration is rejected for
		// this Load call entirely so the registry never reflects a
		// partially-invalid file.
		if m.metrics != nil {
			m.metrics.ObserveLoad(false)
		}
		return fileDiags
	}

	for _, proc := range parsed.Procedures {
		m.procedures[proc.Name] = proc
		m.procedureOrigins[proc.Name] = filename
	}
	if m.metrics != nil {
		m.metrics.ObserveLoad(len(fileDiags) == 0)
		m.metrics.ActiveScripts.Set(float64(len(m.distinctOrigins())))
	}
	return fileDiags
}

func (m *Manager) distinctOrigins() map[string]bool {
	origins := make(map[string]bool)
	for _, f := range m.procedureOrigins {
		origins[f] = true
	}
	return origins
}

// Invoke calls a previously loaded procedure by name, converting args to
// its declared parameter types and the result to its declared return
// type, per spec.md §4.2's convert() rule.
func (m *Manager) Invoke(ctx context.Context, name string, args ...script.Value) (script.Value, error) {
	if err := ctx.Err(); err != nil {
		return script.Value{}, errors.Wrap(err, "invoke aborted before start")
	}

	if m.limiter != nil && !m.limiter.Allow(name) {
		if m.metrics != nil {
			m.metrics.RateLimited.Inc()
		}
		return script.Value{}, fmt.Errorf("procedure %q: rate limit exceeded", name)
	}

	m.mu.RLock()
	proc, ok := m.procedures[name]
	m.mu.RUnlock()
	if !ok {
		return script.Value{}, fmt.Errorf("procedure %q is not loaded", name)
	}

	traceID := uuid.New().String()
	start := time.Now()
	done := m.logger.Timed(obslog.PhaseInvoke, "invoke:"+traceID, name)

	interp := script.NewInterpreter(m)
	result, rerr := interp.Invoke(proc, args)

	var retErr error
	if rerr != nil {
		retErr = errors.Wrapf(rerr, "invoke %s", name)
	}
	done(retErr)
	if m.metrics != nil {
		m.metrics.ObserveInvoke(name, rerr == nil, time.Since(start).Seconds())
	}
	if rerr != nil {
		return script.Value{}, retErr
	}
	return result, nil
}

// RegisterExternalFn makes fn callable from script code under name.
func (m *Manager) RegisterExternalFn(name string, fn script.ExternalFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.externalFns[name] = fn
}

// UnregisterExternalFn removes a previously registered external function;
// calls to name from script code become CodeUndefinedFunction errors.
func (m *Manager) UnregisterExternalFn(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.externalFns, name)
}

// HasExternalFn reports whether name is currently registered.
func (m *Manager) HasExternalFn(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.externalFns[name]
	return ok
}

// RegisterExternalVar exposes a host variable under name, readable and
// (unless readOnly) writable from script code.
func (m *Manager) RegisterExternalVar(name string, v script.Value, readOnly bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.externalVars[name] = v
	m.readOnly[name] = readOnly
}

// ExternalVar returns the current value of a registered external
// variable, reflecting any writes script code has made to it.
func (m *Manager) ExternalVar(name string) (script.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.externalVars[name]
	return v, ok
}

// UnregisterExternalVar removes a registered external variable; script
// code referencing name afterward sees an undefined-variable error.
func (m *Manager) UnregisterExternalVar(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.externalVars, name)
	delete(m.readOnly, name)
}

// HasExternalVar reports whether name is currently registered.
func (m *Manager) HasExternalVar(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.externalVars[name]
	return ok
}

// Origin reports which filename a currently loaded procedure came from.
func (m *Manager) Origin(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.procedureOrigins[name]
	return f, ok
}

// Clear removes every loaded procedure and cached parse result, leaving
// registered external functions and variables untouched.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procedures = make(map[string]*script.ProcedureDecl)
	m.procedureOrigins = make(map[string]string)
	m.cache.clear()
	if m.metrics != nil {
		m.metrics.ActiveScripts.Set(0)
	}
}

// Procedures lists the names of all currently loaded procedures.
func (m *Manager) Procedures() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.procedures))
	for name := range m.procedures {
		names = append(names, name)
	}
	return names
}

// Signature reports a loaded procedure's parameter and return types.
func (m *Manager) Signature(name string) (params []script.Type, ret script.Type, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	proc, exists := m.procedures[name]
	if !exists {
		return nil, script.Type{}, false
	}
	params = make([]script.Type, len(proc.Parameters))
	for i, p := range proc.Parameters {
		params[i] = p.Type
	}
	return params, proc.ReturnType, true
}

// --- script.Host implementation -----------------------------------------

func (m *Manager) LookupProcedure(name string) (*script.ProcedureDecl, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	proc, ok := m.procedures[name]
	return proc, ok
}

func (m *Manager) LookupExternalFn(name string) (script.ExternalFunc, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.externalFns[name]
	return fn, ok
}

func (m *Manager) GetExternalVar(name string) (script.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.externalVars[name]
	return v, ok
}

func (m *Manager) SetExternalVar(name string, v script.Value) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.externalVars[name]; !ok {
		return false
	}
	if m.readOnly[name] {
		return false
	}
	m.externalVars[name] = v
	return true
}
