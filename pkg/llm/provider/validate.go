package provider

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	resolvedMu sync.Mutex
	resolved   = map[string]*jsonschema.Resolved{}
)

// Validate checks chunk against p's chunk schema. Schemas are resolved once
// per provider name.
func Validate(p Provider, chunk []byte) error {
	rs, err := resolve(p)
	if err != nil {
		return err
	}

	var instance any
	if err := json.Unmarshal(chunk, &instance); err != nil {
		return fmt.Errorf("%s chunk is not JSON: %w", p.Name(), err)
	}
	if err := rs.Validate(instance); err != nil {
		return fmt.Errorf("invalid %s chunk: %w", p.Name(), err)
	}
	return nil
}

func resolve(p Provider) (*jsonschema.Resolved, error) {
	resolvedMu.Lock()
	defer resolvedMu.Unlock()

	if rs, ok := resolved[p.Name()]; ok {
		return rs, nil
	}
	rs, err := p.ChunkSchema().Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving %s chunk schema: %w", p.Name(), err)
	}
	resolved[p.Name()] = rs
	return rs, nil
}
