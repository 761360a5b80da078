package vars

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/pb33f/ordered-map/v2"
)

// value is a stored variable. Hand-edited documents may hold numbers,
// booleans or null; those load as their text.
type value string

func (v *value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*v = value(x)
	case json.Number:
		*v = value(x.String())
	case bool:
		*v = value(fmt.Sprint(x))
	case nil:
		*v = ""
	default:
		return errors.New("expected a scalar value")
	}
	return nil
}

// orderedVars is one environment: variable names in insertion order.
type orderedVars = orderedmap.OrderedMap[string, value]

func newOrderedVars() *orderedVars {
	return orderedmap.New[string, value]()
}

// document mirrors the persisted {env: {key: value}} object and keeps the
// key order of both levels across load and save.
type document struct {
	envs *orderedmap.OrderedMap[string, *orderedVars]
}

func newDocument() *document {
	return &document{envs: orderedmap.New[string, *orderedVars]()}
}

func (d *document) env(name string) (*orderedVars, bool) {
	return d.envs.Get(name)
}

func (d *document) names() []string {
	out := make([]string, 0, d.envs.Len())
	for name := range d.envs.KeysFromOldest() {
		out = append(out, name)
	}
	return out
}

// put stores vars under name; a new name goes last.
func (d *document) put(name string, vars *orderedVars) {
	d.envs.Set(name, vars)
}

func (d *document) remove(name string) bool {
	_, ok := d.envs.Delete(name)
	return ok
}

func (d *document) clone() *document {
	out := newDocument()
	for name, vars := range d.envs.FromOldest() {
		out.envs.Set(name, cloneVars(vars))
	}
	return out
}

func (d *document) MarshalJSON() ([]byte, error) {
	return d.envs.MarshalJSON()
}

func (d *document) UnmarshalJSON(data []byte) error {
	parsed := orderedmap.New[string, *orderedVars]()
	if err := parsed.UnmarshalJSON(data); err != nil {
		return err
	}
	for name, vars := range parsed.FromOldest() {
		if vars == nil {
			return fmt.Errorf("environment %q: expected an object", name)
		}
	}
	d.envs = parsed
	return nil
}

func setVar(vars *orderedVars, key, val string) {
	vars.Set(key, value(val))
}

func getVar(vars *orderedVars, key string) (string, bool) {
	v, ok := vars.Get(key)
	return string(v), ok
}

func cloneVars(vars *orderedVars) *orderedVars {
	out := orderedmap.New[string, value](vars.Len())
	for k, v := range vars.FromOldest() {
		out.Set(k, v)
	}
	return out
}

func varsAsMap(vars *orderedVars) map[string]string {
	out := make(map[string]string, vars.Len())
	for k, v := range vars.FromOldest() {
		out[k] = string(v)
	}
	return out
}
