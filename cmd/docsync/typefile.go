package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/xraph/docsync/syncjob"
)

// loadTypeFile reads sync job type definitions from a yaml, toml or json
// file. The file holds a top-level "types" list; each entry starts from
// syncjob.NewType, so omitted flags keep their defaults.
func loadTypeFile(path string) ([]*syncjob.Type, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var types []*syncjob.Type
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		types, err = decodeYAMLTypes(data)
	case ".toml":
		types, err = decodeTOMLTypes(data)
	case ".json":
		types, err = decodeJSONTypes(data)
	default:
		return nil, fmt.Errorf("%s: unsupported type file extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return types, nil
}

func decodeYAMLTypes(data []byte) ([]*syncjob.Type, error) {
	var doc struct {
		Types []yaml.Node `yaml:"types"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make([]*syncjob.Type, 0, len(doc.Types))
	for i := range doc.Types {
		t := syncjob.NewType("")
		if err := doc.Types[i].Decode(t); err != nil {
			return nil, fmt.Errorf("types[%d]: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeTOMLTypes(data []byte) ([]*syncjob.Type, error) {
	var doc struct {
		Types []toml.Primitive `toml:"types"`
	}
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, err
	}
	out := make([]*syncjob.Type, 0, len(doc.Types))
	for i, p := range doc.Types {
		t := syncjob.NewType("")
		if err := md.PrimitiveDecode(p, t); err != nil {
			return nil, fmt.Errorf("types[%d]: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeJSONTypes(data []byte) ([]*syncjob.Type, error) {
	var doc struct {
		Types []json.RawMessage `json:"types"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make([]*syncjob.Type, 0, len(doc.Types))
	for i, raw := range doc.Types {
		t := syncjob.NewType("")
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(t); err != nil {
			return nil, fmt.Errorf("types[%d]: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}
