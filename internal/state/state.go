// Package state holds editor snapshots and applies transactions to them
// atomically.
package state

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/ehtisham-afzal/outline/internal/model"
	"github.com/ehtisham-afzal/outline/internal/transform"
)

// Plugin keeps derived state alongside the document. Init runs when a state
// is created; Apply runs for every applied transaction and must return the
// previous value untouched when nothing relevant changed.
type Plugin struct {
	Key   string
	Init  func(st *EditorState) any
	Apply func(tr *Transaction, value any, oldState, newState *EditorState) any
}

// Config describes a new state.
type Config struct {
	Schema    *model.Schema
	Doc       *model.Node
	Selection *Selection
	Plugins   []*Plugin
}

// EditorState is an immutable snapshot of document, selection and plugin
// state.
type EditorState struct {
	doc       *model.Node
	selection Selection
	schema    *model.Schema
	plugins   []*Plugin
	fields    map[string]any
}

// RejectedError reports a transaction that was refused; the previous state
// stays current.
type RejectedError struct {
	// Step is the index of the failing step, or -1 when the failure concerns
	// the resulting document or selection.
	Step int
	Err  error
}

func (e *RejectedError) Error() string {
	if e.Step >= 0 {
		return fmt.Sprintf("transaction rejected at step %d: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("transaction rejected: %v", e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// Create builds the initial state. Without a document an empty top node is
// created and filled.
func Create(cfg Config) (*EditorState, error) {
	schema := cfg.Schema
	doc := cfg.Doc
	if schema == nil && doc != nil {
		schema = doc.Type().Schema()
	}
	if schema == nil {
		return nil, errors.New("state needs a schema or a document")
	}
	if !schema.Sealed() {
		return nil, errors.WithStack(model.ErrSchemaNotSealed)
	}
	if doc == nil {
		var err error
		if doc, err = schema.TopNodeType().CreateAndFill(nil); err != nil {
			return nil, err
		}
	}
	if err := doc.Check(); err != nil {
		return nil, errors.Wrap(err, "initial document")
	}
	sel := AtStart(doc)
	if cfg.Selection != nil {
		sel = *cfg.Selection
		if err := sel.Validate(doc); err != nil {
			return nil, errors.Wrap(err, "initial selection")
		}
	}
	st := &EditorState{doc: doc, selection: sel, schema: schema, plugins: cfg.Plugins, fields: map[string]any{}}
	for _, p := range cfg.Plugins {
		if p.Init != nil {
			st.fields[p.Key] = p.Init(st)
		}
	}
	return st, nil
}

func (s *EditorState) Doc() *model.Node      { return s.doc }
func (s *EditorState) Selection() Selection  { return s.selection }
func (s *EditorState) Schema() *model.Schema { return s.schema }
func (s *EditorState) Plugins() []*Plugin    { return s.plugins }

// PluginState returns the value a plugin keeps under key.
func (s *EditorState) PluginState(key string) any { return s.fields[key] }

// Tr starts a transaction from this state.
func (s *EditorState) Tr() *Transaction {
	return &Transaction{Transform: transform.New(s.doc), base: s, selection: s.selection}
}

// Apply applies tr and returns the new state. Transactions built from a
// different snapshot are replayed step by step against this one. Any step
// failure, content violation or invalid selection rejects the whole
// transaction with a *RejectedError and leaves s untouched. An empty
// transaction returns s itself.
func (s *EditorState) Apply(tr *Transaction) (*EditorState, error) {
	if tr == nil || tr.IsEmpty() {
		return s, nil
	}
	doc := tr.Doc
	sel := tr.Selection()
	if tr.base != s || tr.Before() != s.doc {
		mapping := transform.NewMapping()
		doc = s.doc
		for i, step := range tr.Steps {
			res := step.Apply(doc)
			if res.Failed != "" {
				return s, &RejectedError{Step: i, Err: errors.New(res.Failed)}
			}
			doc = res.Doc
			mapping.AppendMap(step.GetMap())
		}
		if tr.selSet {
			sel = tr.selection
			if tr.selFor < len(tr.Steps) {
				sel = sel.Map(doc, mapping.Slice(tr.selFor))
			}
		} else {
			sel = s.selection.Map(doc, mapping)
		}
	}
	if err := doc.Check(); err != nil {
		return s, &RejectedError{Step: -1, Err: err}
	}
	if err := sel.Validate(doc); err != nil {
		return s, &RejectedError{Step: -1, Err: err}
	}

	next := &EditorState{doc: doc, selection: sel, schema: s.schema, plugins: s.plugins, fields: make(map[string]any, len(s.fields))}
	for _, p := range s.plugins {
		value := s.fields[p.Key]
		if p.Apply != nil {
			value = p.Apply(tr, value, s, next)
		}
		next.fields[p.Key] = value
	}
	return next, nil
}

// ApplySteps builds a transaction from already decoded steps and applies it.
func (s *EditorState) ApplySteps(steps []transform.Step) (*EditorState, *Transaction, error) {
	tr := s.Tr()
	for i, step := range steps {
		if res := tr.MaybeStep(step); res.Failed != "" {
			return s, nil, &RejectedError{Step: i, Err: errors.New(res.Failed)}
		}
	}
	next, err := s.Apply(tr)
	return next, tr, err
}

// ApplyJSON decodes a JSON array of steps and applies them as one
// transaction.
func (s *EditorState) ApplyJSON(raw json.RawMessage) (*EditorState, *Transaction, error) {
	steps, err := transform.StepsFromJSON(s.schema, raw)
	if err != nil {
		return s, nil, &RejectedError{Step: -1, Err: err}
	}
	return s.ApplySteps(steps)
}

// Reconfigure returns a state with the same document and selection and a
// new plugin set; added plugins are initialized.
func (s *EditorState) Reconfigure(plugins []*Plugin) *EditorState {
	next := &EditorState{doc: s.doc, selection: s.selection, schema: s.schema, plugins: plugins, fields: map[string]any{}}
	for _, p := range plugins {
		if value, ok := s.fields[p.Key]; ok {
			next.fields[p.Key] = value
		} else if p.Init != nil {
			next.fields[p.Key] = p.Init(next)
		}
	}
	return next
}
