package template

import (
	"log/slog"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "homegraph_template_fallbacks_total",
	Help: "Template expressions resolved by the regex fallback after the compiler failed.",
})

// Compiler resolves the entity dependencies of an expression.
type Compiler interface {
	Compile(expression string) ([]string, error)
}

// CompileFunc adapts a function to the Compiler interface.
type CompileFunc func(expression string) ([]string, error)

// Compile calls f.
func (f CompileFunc) Compile(expression string) ([]string, error) {
	return f(expression)
}

// Strategy is one way of extracting dependencies from an expression.
type Strategy interface {
	Name() string
	Dependencies(expression string) ([]string, error)
}

// CompilerStrategy asks a Compiler for the dependencies.
type CompilerStrategy struct {
	compiler Compiler
}

// NewCompilerStrategy creates a new compiler strategy
func NewCompilerStrategy(compiler Compiler) *CompilerStrategy {
	return &CompilerStrategy{compiler: compiler}
}

func (s *CompilerStrategy) Name() string { return "compiler" }

// Dependencies compiles the expression.
func (s *CompilerStrategy) Dependencies(expression string) ([]string, error) {
	return s.compiler.Compile(expression)
}

var quotedEntityID = regexp.MustCompile(`['"]([a-z0-9_]+\.[a-z0-9_]+)['"]`)

// RegexStrategy scans for quoted entity ids. It never fails.
type RegexStrategy struct{}

// NewRegexStrategy creates a new regex fallback strategy
func NewRegexStrategy() *RegexStrategy {
	return &RegexStrategy{}
}

func (s *RegexStrategy) Name() string { return "regex" }

// Dependencies returns every quoted entity id in order of appearance.
func (s *RegexStrategy) Dependencies(expression string) ([]string, error) {
	var deps []string
	seen := map[string]bool{}
	for _, match := range quotedEntityID.FindAllStringSubmatch(expression, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			deps = append(deps, match[1])
		}
	}
	return deps, nil
}

// Resolution is the outcome of resolving one expression.
type Resolution struct {
	Dependencies []string
	Strategy     string
}

// Resolver tries its strategies in order; the first that succeeds wins.
// Results of different strategies are never combined.
type Resolver struct {
	strategies []Strategy
	log        *slog.Logger
}

// NewResolver creates a resolver that prefers compiler and falls back to
// the regex scan. A nil compiler uses the Analyzer.
func NewResolver(compiler Compiler, logger *slog.Logger) *Resolver {
	if compiler == nil {
		compiler = NewAnalyzer()
	}
	return NewResolverWithStrategies(logger, NewCompilerStrategy(compiler), NewRegexStrategy())
}

// NewResolverWithStrategies creates a resolver with explicit strategies.
func NewResolverWithStrategies(logger *slog.Logger, strategies ...Strategy) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{strategies: strategies, log: logger}
}

// Resolve returns the dependencies of an expression. If every strategy
// fails the resolution is empty.
func (r *Resolver) Resolve(expression string) Resolution {
	for i, s := range r.strategies {
		deps, err := r.try(s, expression)
		if err != nil {
			r.log.Debug("Template strategy failed",
				slog.String("strategy", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if i > 0 {
			fallbacksTotal.Inc()
		}
		return Resolution{Dependencies: deps, Strategy: s.Name()}
	}
	return Resolution{}
}

// try isolates a strategy so a panicking compiler counts as a failure.
func (r *Resolver) try(s Strategy, expression string) (deps []string, err error) {
	defer func() {
		if p := recover(); p != nil {
			deps = nil
			err = panicError{value: p}
		}
	}()
	return s.Dependencies(expression)
}

type panicError struct {
	value any
}

func (e panicError) Error() string {
	return "strategy panicked: " + slog.AnyValue(e.value).String()
}
