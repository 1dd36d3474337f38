// Package transform implements document steps: atomic, serializable changes
// that can be applied, inverted and mapped through other changes.
package transform

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/ehtisham-afzal/outline/internal/model"
)

// Step is an atomic change. It applies to the document it was built for,
// since its positions only make sense there.
type Step interface {
	// Apply returns the changed document or a failure.
	Apply(doc *model.Node) Result
	// GetMap describes how positions move across the step.
	GetMap() *StepMap
	// Invert builds the step that undoes this one; doc is the document the
	// step was applied to.
	Invert(doc *model.Node) Step
	// Map adjusts the step's positions through mapping. It returns nil when
	// the content the step touched was deleted.
	Map(mapping Mappable) Step
	// StepType is the identifier under which the step is serialized.
	StepType() string
}

// Result is the result of applying a step: either a document or a reason.
type Result struct {
	Doc    *model.Node
	Failed string
}

func OK(doc *model.Node) Result { return Result{Doc: doc} }

func Fail(message string) Result { return Result{Failed: message} }

// FromReplace applies a replace and converts its error into a failed result.
func FromReplace(doc *model.Node, from, to int, slice *model.Slice) Result {
	replaced, err := doc.Replace(from, to, slice)
	if err != nil {
		return Fail(err.Error())
	}
	return OK(replaced)
}

// StepError is returned by Transform.Step when a step cannot be applied.
type StepError struct {
	StepType string
	Reason   string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed: %s", e.StepType, e.Reason)
}

// Decoder rebuilds a step from its JSON form.
type Decoder func(schema *model.Schema, raw json.RawMessage) (Step, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Decoder{}
)

// RegisterStepType makes a step type decodable by StepFromJSON.
func RegisterStepType(id string, decode Decoder) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[id]; ok {
		return errors.Errorf("duplicate step type %q", id)
	}
	registry[id] = decode
	return nil
}

// StepTypes lists the registered identifiers.
func StepTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type stepHeader struct {
	StepType string `json:"stepType"`
}

// StepFromJSON decodes one serialized step.
func StepFromJSON(schema *model.Schema, raw json.RawMessage) (Step, error) {
	var header stepHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, errors.Wrap(err, "decode step header")
	}
	registryMu.RLock()
	decode, ok := registry[header.StepType]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown step type %q", header.StepType)
	}
	step, err := decode(schema, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s step", header.StepType)
	}
	return step, nil
}

// StepsFromJSON decodes a JSON array of steps.
func StepsFromJSON(schema *model.Schema, raw []byte) ([]Step, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(err, "decode step list")
	}
	steps := make([]Step, 0, len(items))
	for i, item := range items {
		step, err := StepFromJSON(schema, item)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d", i)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// StepsToJSON encodes steps as a JSON array.
func StepsToJSON(steps []Step) ([]byte, error) {
	if steps == nil {
		steps = []Step{}
	}
	out, err := json.Marshal(steps)
	return out, errors.WithStack(err)
}

func init() {
	for id, decode := range map[string]Decoder{
		"replace":       decodeReplaceStep,
		"setNodeMarkup": decodeSetNodeMarkupStep,
		"addMark":       decodeAddMarkStep,
		"removeMark":    decodeRemoveMarkStep,
	} {
		if err := RegisterStepType(id, decode); err != nil {
			panic(err)
		}
	}
}
