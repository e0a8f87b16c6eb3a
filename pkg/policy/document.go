package policy

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is a policy as written, before hydration. Decode one with Parse or
// LoadFile, or build it directly in Go.
//
//	enabled: true
//	errors:
//	  enabled: true
//	  PUT:
//	    rate: 0.02
//	    errors:
//	      Timeout: 80
//	      InternalError: 20
//	  DELETE: [{Timeout: 1}, 0.05]   # legacy [errors, rate] pair
//	latencies:
//	  enabled: true
//	  GET:
//	    rate: 0.01
//	    latency: [500, 1500]         # ms, inclusive range
type Document struct {
	Enabled   bool
	Errors    ErrorsDocument
	Latencies LatenciesDocument

	// Deprecations lists legacy shapes accepted while decoding.
	Deprecations []string
}

// ErrorsDocument is the errors category. Operations is keyed by operation
// name exactly as written; names are normalized during hydration.
type ErrorsDocument struct {
	Enabled    bool
	Operations map[string]ErrorPolicyDocument
}

// ErrorPolicyDocument configures error injection for one operation.
type ErrorPolicyDocument struct {
	Rate   float64
	Errors Weights
}

// WeightedLabel is one error label and its relative weight.
type WeightedLabel struct {
	Label  string
	Weight int
}

// Weights is an ordered list of weighted labels.
type Weights []WeightedLabel

// LatenciesDocument is the latencies category.
type LatenciesDocument struct {
	Enabled    bool
	Operations map[string]LatencyPolicyDocument
}

// LatencyPolicyDocument configures latency injection for one operation.
// Latency and Choices are mutually exclusive; with neither set the operation
// never stalls.
type LatencyPolicyDocument struct {
	Rate    float64
	Latency *LatencySpec
	Choices []WeightedLatency
}

// WeightedLatency is one latency spec and its relative weight.
type WeightedLatency struct {
	Latency LatencySpec
	Weight  int
}

// UnmarshalYAML decodes a document, keeping the order of weighted entries.
func (doc *Document) UnmarshalYAML(n *yaml.Node) error {
	d := &decoder{}
	out, err := d.document(n)
	if err != nil {
		return err
	}
	*doc = out
	return nil
}

type decoder struct {
	deprecations []string
}

func (d *decoder) deprecated(path, format string, args ...any) {
	d.deprecations = append(d.deprecations, path+": "+fmt.Sprintf(format, args...))
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n != nil && n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return resolve(n.Content[0])
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n == nil || n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar " + strconv.Quote(n.Value)
	default:
		return "node"
	}
}

// pairs walks a mapping node, rejecting duplicate keys.
func pairs(path string, n *yaml.Node, fn func(key string, val *yaml.Node) error) error {
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := resolve(n.Content[i])
		if k.Kind != yaml.ScalarNode {
			return configErr(path, "mapping keys must be scalars, got %s", kindName(k))
		}
		if seen[k.Value] {
			return configErr(joinPath(path, k.Value), "duplicate key")
		}
		seen[k.Value] = true
		if err := fn(k.Value, resolve(n.Content[i+1])); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) document(n *yaml.Node) (Document, error) {
	var doc Document
	n = resolve(n)
	if isNull(n) {
		return doc, nil
	}
	if n.Kind != yaml.MappingNode {
		return doc, configErr("", "document must be a mapping, got %s", kindName(n))
	}

	haveLatencies := false
	err := pairs("", n, func(key string, val *yaml.Node) error {
		var err error
		switch key {
		case "enabled":
			doc.Enabled, err = decodeBool(key, val)
		case "errors":
			doc.Errors, err = d.errorsGroup(key, val)
		case "latencies", "latency":
			if haveLatencies {
				return configErr(key, "latencies given twice (latency is a legacy alias of latencies)")
			}
			haveLatencies = true
			if key == "latency" {
				d.deprecated(key, "use latencies")
			}
			doc.Latencies, err = d.latenciesGroup("latencies", val)
		default:
			err = configErr(key, "unknown key")
		}
		return err
	})
	doc.Deprecations = d.deprecations
	return doc, err
}

func (d *decoder) errorsGroup(path string, n *yaml.Node) (ErrorsDocument, error) {
	g := ErrorsDocument{Operations: make(map[string]ErrorPolicyDocument)}
	if isNull(n) {
		return g, nil
	}
	if n.Kind != yaml.MappingNode {
		return g, configErr(path, "expected mapping, got %s", kindName(n))
	}
	err := pairs(path, n, func(key string, val *yaml.Node) error {
		if key == "enabled" {
			var err error
			g.Enabled, err = decodeBool(joinPath(path, key), val)
			return err
		}
		entry, err := d.errorPolicy(joinPath(path, key), val)
		if err != nil {
			return err
		}
		g.Operations[key] = entry
		return nil
	})
	return g, err
}

func (d *decoder) errorPolicy(path string, n *yaml.Node) (ErrorPolicyDocument, error) {
	var p ErrorPolicyDocument
	var err error
	switch {
	case isNull(n):
		return p, nil
	case n.Kind == yaml.MappingNode:
		err = pairs(path, n, func(key string, val *yaml.Node) error {
			var err error
			switch key {
			case "rate":
				p.Rate, err = decodeFloat(joinPath(path, key), val)
			case "errors":
				p.Errors, err = decodeWeights(joinPath(path, key), val)
			default:
				err = configErr(joinPath(path, key), "unknown key")
			}
			return err
		})
	case n.Kind == yaml.SequenceNode:
		if len(n.Content) != 2 {
			return p, configErr(path, "expected [errors, rate] pair, got %d elements", len(n.Content))
		}
		if p.Errors, err = decodeWeights(path+"[0]", resolve(n.Content[0])); err != nil {
			return p, err
		}
		p.Rate, err = decodeFloat(path+"[1]", resolve(n.Content[1]))
	default:
		err = configErr(path, "expected mapping or [errors, rate] pair, got %s", kindName(n))
	}
	return p, err
}

func decodeWeights(path string, n *yaml.Node) (Weights, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, configErr(path, "expected mapping of label to weight, got %s", kindName(n))
	}
	var out Weights
	err := pairs(path, n, func(label string, val *yaml.Node) error {
		w, err := decodeInt(joinPath(path, label), val)
		if err != nil {
			return err
		}
		out = append(out, WeightedLabel{Label: label, Weight: w})
		return nil
	})
	return out, err
}

func (d *decoder) latenciesGroup(path string, n *yaml.Node) (LatenciesDocument, error) {
	g := LatenciesDocument{Operations: make(map[string]LatencyPolicyDocument)}
	if isNull(n) {
		return g, nil
	}
	if n.Kind != yaml.MappingNode {
		return g, configErr(path, "expected mapping, got %s", kindName(n))
	}
	err := pairs(path, n, func(key string, val *yaml.Node) error {
		if key == "enabled" {
			var err error
			g.Enabled, err = decodeBool(joinPath(path, key), val)
			return err
		}
		entry, err := d.latencyPolicy(joinPath(path, key), val)
		if err != nil {
			return err
		}
		g.Operations[key] = entry
		return nil
	})
	return g, err
}

func (d *decoder) latencyPolicy(path string, n *yaml.Node) (LatencyPolicyDocument, error) {
	var p LatencyPolicyDocument
	var err error
	switch {
	case isNull(n):
		return p, nil
	case n.Kind == yaml.MappingNode:
		err = pairs(path, n, func(key string, val *yaml.Node) error {
			var err error
			switch key {
			case "rate":
				p.Rate, err = decodeFloat(joinPath(path, key), val)
			case "latency":
				p.Latency, err = d.latencySpec(joinPath(path, key), val)
			case "choices":
				p.Choices, err = d.latencyChoices(joinPath(path, key), val)
			default:
				err = configErr(joinPath(path, key), "unknown key")
			}
			return err
		})
	case n.Kind == yaml.SequenceNode:
		if len(n.Content) != 2 {
			return p, configErr(path, "expected [latency, rate] pair, got %d elements", len(n.Content))
		}
		if p.Latency, err = d.latencySpec(path+"[0]", resolve(n.Content[0])); err != nil {
			return p, err
		}
		p.Rate, err = decodeFloat(path+"[1]", resolve(n.Content[1]))
	default:
		err = configErr(path, "expected mapping or [latency, rate] pair, got %s", kindName(n))
	}
	return p, err
}

func (d *decoder) latencyChoices(path string, n *yaml.Node) ([]WeightedLatency, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, configErr(path, "expected sequence of {latency, weight}, got %s", kindName(n))
	}
	out := make([]WeightedLatency, 0, len(n.Content))
	for i, item := range n.Content {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		item = resolve(item)
		if item.Kind != yaml.MappingNode {
			return nil, configErr(itemPath, "expected {latency, weight}, got %s", kindName(item))
		}
		var wl WeightedLatency
		var spec *LatencySpec
		haveWeight := false
		err := pairs(itemPath, item, func(key string, val *yaml.Node) error {
			var err error
			switch key {
			case "latency":
				spec, err = d.latencySpec(joinPath(itemPath, key), val)
			case "weight":
				haveWeight = true
				wl.Weight, err = decodeInt(joinPath(itemPath, key), val)
			default:
				err = configErr(joinPath(itemPath, key), "unknown key")
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		if spec == nil {
			return nil, configErr(itemPath, "latency is required")
		}
		if !haveWeight {
			wl.Weight = 1
		}
		wl.Latency = *spec
		out = append(out, wl)
	}
	return out, nil
}

// latencySpec decodes one latency shape. A nil result means "absent".
func (d *decoder) latencySpec(path string, n *yaml.Node) (*LatencySpec, error) {
	switch {
	case isNull(n):
		return nil, nil
	case n.Kind == yaml.ScalarNode:
		v, err := decodeDuration(path, n)
		if err != nil {
			return nil, err
		}
		spec := Fixed(v)
		return &spec, nil
	case n.Kind == yaml.SequenceNode:
		switch len(n.Content) {
		case 0:
			return nil, nil
		case 1:
			d.deprecated(path, "single-element latency sequence, use a plain value for a fixed latency")
			v, err := decodeDuration(path+"[0]", resolve(n.Content[0]))
			if err != nil {
				return nil, err
			}
			spec := Fixed(v)
			return &spec, nil
		case 2:
			lo, err := decodeDuration(path+"[0]", resolve(n.Content[0]))
			if err != nil {
				return nil, err
			}
			hi, err := decodeDuration(path+"[1]", resolve(n.Content[1]))
			if err != nil {
				return nil, err
			}
			spec := Range(lo, hi)
			return &spec, nil
		default:
			return nil, configErr(path, "expected [min, max], got %d elements", len(n.Content))
		}
	case n.Kind == yaml.MappingNode:
		var lo, hi, fixed *time.Duration
		err := pairs(path, n, func(key string, val *yaml.Node) error {
			v, err := decodeDuration(joinPath(path, key), val)
			if err != nil {
				return err
			}
			switch key {
			case "min":
				lo = &v
			case "max":
				hi = &v
			case "fixed":
				fixed = &v
			default:
				return configErr(joinPath(path, key), "unknown key")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		switch {
		case fixed != nil && (lo != nil || hi != nil):
			return nil, configErr(path, "fixed cannot be combined with min/max")
		case fixed != nil:
			spec := Fixed(*fixed)
			return &spec, nil
		case lo != nil && hi != nil:
			spec := Range(*lo, *hi)
			return &spec, nil
		default:
			return nil, configErr(path, "range needs both min and max")
		}
	default:
		return nil, configErr(path, "unsupported latency shape %s", kindName(n))
	}
}

func decodeBool(path string, n *yaml.Node) (bool, error) {
	var b bool
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!bool" {
		return false, configErr(path, "expected boolean, got %s", kindName(n))
	}
	if err := n.Decode(&b); err != nil {
		return false, wrapConfigErr(path, err)
	}
	return b, nil
}

func decodeFloat(path string, n *yaml.Node) (float64, error) {
	var f float64
	if n.Kind != yaml.ScalarNode {
		return 0, configErr(path, "expected number, got %s", kindName(n))
	}
	if tag := n.ShortTag(); tag != "!!float" && tag != "!!int" {
		return 0, configErr(path, "expected number, got %s", kindName(n))
	}
	if err := n.Decode(&f); err != nil {
		return 0, wrapConfigErr(path, err)
	}
	return f, nil
}

func decodeInt(path string, n *yaml.Node) (int, error) {
	var i int
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!int" {
		return 0, configErr(path, "expected integer, got %s", kindName(n))
	}
	if err := n.Decode(&i); err != nil {
		return 0, wrapConfigErr(path, err)
	}
	return i, nil
}

// maxMillis is the largest millisecond count a time.Duration can hold.
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

// decodeDuration reads an integer as milliseconds or a string as a Go
// duration ("250ms", "1.5s").
func decodeDuration(path string, n *yaml.Node) (time.Duration, error) {
	if n.Kind != yaml.ScalarNode {
		return 0, configErr(path, "expected milliseconds or duration string, got %s", kindName(n))
	}
	switch n.ShortTag() {
	case "!!int":
		ms, err := decodeInt(path, n)
		if err != nil {
			return 0, err
		}
		if int64(ms) > maxMillis || int64(ms) < -maxMillis {
			return 0, configErr(path, "%d milliseconds overflows a duration", ms)
		}
		return time.Duration(ms) * time.Millisecond, nil
	case "!!str":
		v, err := time.ParseDuration(n.Value)
		if err != nil {
			return 0, wrapConfigErr(path, err)
		}
		return v, nil
	default:
		return 0, configErr(path, "expected milliseconds or duration string, got %s", kindName(n))
	}
}
