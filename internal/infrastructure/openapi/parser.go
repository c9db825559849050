// Package openapi reads just enough of an OpenAPI document to describe its
// operations in a prompt.
package openapi

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"testgen/internal/domain/entity"
)

// Operations in the order they are listed for a single path.
var supportedMethods = []string{"get", "post", "put", "patch", "delete"}

type document struct {
	Paths map[string]map[string]yaml.Node `yaml:"paths"`
}

type operation struct {
	Summary     string      `yaml:"summary"`
	Parameters  []yaml.Node `yaml:"parameters"`
	RequestBody *yaml.Node  `yaml:"requestBody"`
}

// ExtractEndpoints parses a JSON or YAML OpenAPI document. Path-level keys that
// are not operations (parameters, servers, x-*) are ignored. Endpoints are
// sorted by path, then by method.
func ExtractEndpoints(raw []byte) ([]entity.EndpointDescriptor, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return nil, entity.NewInputError("openapi_spec", "document is empty")
	}
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, entity.NewInputError("openapi_spec", "cannot parse document: %v", err)
	}

	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	endpoints := make([]entity.EndpointDescriptor, 0)
	for _, path := range paths {
		item := lowerKeys(doc.Paths[path])
		for _, method := range supportedMethods {
			node, ok := item[method]
			if !ok {
				continue
			}
			var op operation
			if err := node.Decode(&op); err != nil {
				return nil, entity.NewInputError("openapi_spec", "invalid operation %s %s: %v", strings.ToUpper(method), path, err)
			}
			endpoints = append(endpoints, entity.EndpointDescriptor{
				Method:         strings.ToUpper(method),
				Path:           path,
				Summary:        op.Summary,
				ParameterCount: len(op.Parameters),
				HasRequestBody: op.RequestBody != nil,
			})
		}
	}
	return endpoints, nil
}

// FindEndpoint looks up an endpoint by method (any case) and exact path.
func FindEndpoint(endpoints []entity.EndpointDescriptor, method, path string) (entity.EndpointDescriptor, bool) {
	for _, ep := range endpoints {
		if strings.EqualFold(ep.Method, method) && ep.Path == path {
			return ep, true
		}
	}
	return entity.EndpointDescriptor{}, false
}

func lowerKeys(item map[string]yaml.Node) map[string]yaml.Node {
	out := make(map[string]yaml.Node, len(item))
	for k, v := range item {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Describe renders endpoints as one line each, for logs and the CLI.
func Describe(endpoints []entity.EndpointDescriptor) string {
	var b strings.Builder
	for _, ep := range endpoints {
		fmt.Fprintf(&b, "%-6s %s", ep.Method, ep.Path)
		if ep.Summary != "" {
			fmt.Fprintf(&b, "  %s", ep.Summary)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
