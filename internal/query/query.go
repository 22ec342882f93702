// Package query compiles expr-lang boolean expressions into predicates over
// device records, for use with the store's FetchWhere.
//
// Expressions see the record's exported fields, e.g.
//
//	UserName startsWith "a" && "admin" in Tags
package query

import (
	"errors"
	"fmt"
	"sync"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/bassista/go_datastore/internal/datastore"
	"github.com/bassista/go_datastore/internal/logger"
)

// ErrEmptyExpression is returned when compiling "".
var ErrEmptyExpression = errors.New("expression must not be empty")

// Predicate is a compiled expression over records of type D.
type Predicate[D any] struct {
	expression string
	program    *exprvm.Program
}

// Compile type-checks expression against D and requires a boolean result.
func Compile[D any](expression string) (*Predicate[D], error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	var zero D
	program, err := exprlang.Compile(expression, exprlang.Env(zero), exprlang.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	return &Predicate[D]{expression: expression, program: program}, nil
}

// String returns the source expression.
func (p *Predicate[D]) String() string {
	return p.expression
}

// Match evaluates the predicate on v. Runtime errors count as no match.
func (p *Predicate[D]) Match(v D) bool {
	out, err := exprlang.Run(p.program, v)
	if err != nil {
		logger.WithComponent("query").Debugf("evaluating %q: %v", p.expression, err)
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// Func adapts the predicate to the store's FetchWhere signature.
func (p *Predicate[D]) Func() func(D) bool {
	return p.Match
}

// Compiler caches compiled predicates by expression.
type Compiler[D any] struct {
	mu       sync.RWMutex
	programs map[string]*Predicate[D]
}

// NewCompiler returns an empty compiler for records of type D.
func NewCompiler[D any]() *Compiler[D] {
	return &Compiler[D]{programs: map[string]*Predicate[D]{}}
}

// Compile returns the cached predicate for expression, compiling it on
// first use. Failed compilations are not cached.
func (c *Compiler[D]) Compile(expression string) (*Predicate[D], error) {
	c.mu.RLock()
	p, ok := c.programs[expression]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := Compile[D](expression)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.programs[expression]; ok {
		return cached, nil
	}
	c.programs[expression] = p
	return p, nil
}

// Len reports the number of cached predicates.
func (c *Compiler[D]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// Select compiles expression with c and runs it against store.
func Select[ID comparable, D any](c *Compiler[D], store datastore.ReadOnlyStore[ID, D], expression string) ([]D, error) {
	p, err := c.Compile(expression)
	if err != nil {
		return nil, err
	}
	return store.FetchWhere(p.Func()), nil
}
