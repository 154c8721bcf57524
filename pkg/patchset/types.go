package patchset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wI2L/jsondiff"
	"gopkg.in/yaml.v3"
)

// Operation kinds surfaced to users
const (
	OpAdd     = jsondiff.OperationAdd
	OpRemove  = jsondiff.OperationRemove
	OpReplace = jsondiff.OperationReplace
)

// Operation represents a single structural difference between two documents
type Operation struct {
	Op    string `json:"op" yaml:"op"`                 // Op is the RFC 6902 operation, e.g. "add"
	Path  string `json:"path" yaml:"path"`             // Path is the JSON pointer of the change, e.g. "/server/port"
	Value any    `json:"value,omitempty" yaml:"value"` // Value is the added value, or the value a removal would drop
}

// Set is an ordered list of operations
type Set []Operation

// FromPatch converts a jsondiff patch, keeping the removed value on removals
// so suggestions can show what would be lost.
func FromPatch(patch jsondiff.Patch) Set {
	set := make(Set, 0, len(patch))
	for _, op := range patch {
		value := op.Value
		if op.Type == jsondiff.OperationRemove {
			value = op.OldValue
		}
		set = append(set, Operation{
			Op:    op.Type,
			Path:  fmt.Sprint(op.Path),
			Value: value,
		})
	}
	return set
}

// Filter returns the operations of the given kind in their original order
func (s Set) Filter(op string) Set {
	var out Set
	for _, o := range s {
		if o.Op == op {
			out = append(out, o)
		}
	}
	return out
}

// Paths returns the JSON pointers of all operations
func (s Set) Paths() []string {
	paths := make([]string, len(s))
	for i, o := range s {
		paths[i] = o.Path
	}
	return paths
}

// MarshalPatch encodes the set as an RFC 6902 patch document. Removals are
// written without a value since the value is informational only. Strings
// are not HTML-escaped.
func (s Set) MarshalPatch() ([]byte, error) {
	type valueOp struct {
		Op    string `json:"op"`
		Path  string `json:"path"`
		Value any    `json:"value"`
	}
	type removeOp struct {
		Op   string `json:"op"`
		Path string `json:"path"`
	}

	ops := make([]any, 0, len(s))
	for _, o := range s {
		if o.Op == OpRemove {
			ops = append(ops, removeOp{Op: o.Op, Path: o.Path})
			continue
		}
		ops = append(ops, valueOp{Op: o.Op, Path: o.Path, Value: o.Value})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ops); err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Render returns a human-readable listing of the operations
func (s Set) Render() string {
	if len(s) == 0 {
		return ""
	}

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	err := enc.Encode([]Operation(s))
	if err == nil {
		err = enc.Close()
	}
	if err != nil {
		// Fall back to one line per operation
		b.Reset()
		for _, o := range s {
			fmt.Fprintf(&b, "- %s %s %v\n", o.Op, o.Path, o.Value)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
