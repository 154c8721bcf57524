package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"

	"gihan9a/configdist/pkg/patchset"
)

// exactValues replaces the value of every addition with the one found in
// dist, decoded with json.Number so numbers are copied digit for digit.
// Appends ("/list/-") are mapped to the index they land on.
func exactValues(additions patchset.Set, ownRaw, distRaw []byte) error {
	own, err := decodeExact(ownRaw)
	if err != nil {
		return err
	}
	dist, err := decodeExact(distRaw)
	if err != nil {
		return err
	}

	appended := make(map[string]int)
	for i := range additions {
		path := additions[i].Path

		parent, last := splitPointer(path)
		if last == "-" {
			node, err := lookup(own, parent)
			if err != nil {
				return err
			}
			list, ok := node.([]any)
			if !ok {
				return fmt.Errorf("%q is not an array", parent)
			}
			path = parent + "/" + strconv.Itoa(len(list)+appended[parent])
			appended[parent]++
		}

		value, err := lookup(dist, path)
		if err != nil {
			return err
		}
		additions[i].Value = value
	}
	return nil
}

func decodeExact(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return v, nil
}

func lookup(doc any, path string) (any, error) {
	ptr, err := jsonpointer.New(path)
	if err != nil {
		return nil, fmt.Errorf("invalid pointer %q: %w", path, err)
	}
	value, _, err := ptr.Get(doc)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}
	return value, nil
}

// splitPointer returns the parent pointer and the last, still escaped, token
func splitPointer(path string) (string, string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
