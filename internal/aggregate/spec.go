package aggregate

import (
	"fmt"

	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/perr"
)

// aggNode is one parsed node of the request spec: which aggregation type it
// names, that type's parameters, and any nested sub-aggregations.
type aggNode struct {
	typ    string
	params map[string]any
	aggs   []namedNode
}

type namedNode struct {
	name string
	node aggNode
}

// aggTypes lists every recognized aggregation type name (spec.md §4.2 and
// the expanded aggregations-engine scope): metric types first, then
// bucket types.
var aggTypes = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"stats": true, "percentiles": true,
	"terms": true, "histogram": true, "date_histogram": true,
	"range": true, "filter": true, "filters": true, "global": true,
}

// parseSpec parses a name -> body map (the shape collection.Manager.Aggregate
// passes through unchanged from the caller) into an ordered set of named
// aggregation nodes.
func parseSpec(spec map[string]any) ([]namedNode, error) {
	out := make([]namedNode, 0, len(spec))
	for name, raw := range spec {
		body, ok := raw.(map[string]any)
		if !ok {
			return nil, perr.Input("aggregate.bad_spec", fmt.Sprintf("aggregation %q: body must be an object", name))
		}
		node, err := parseNode(name, body)
		if err != nil {
			return nil, err
		}
		out = append(out, namedNode{name: name, node: node})
	}
	return out, nil
}

func parseNode(name string, body map[string]any) (aggNode, error) {
	var found []string
	for key := range body {
		if key == "aggs" || key == "aggregations" {
			continue
		}
		if aggTypes[key] {
			found = append(found, key)
		}
	}
	if len(found) == 0 {
		return aggNode{}, perr.Input("aggregate.bad_spec", fmt.Sprintf("aggregation %q: no recognized aggregation type found", name))
	}
	if len(found) > 1 {
		return aggNode{}, perr.Input("aggregate.bad_spec", fmt.Sprintf("aggregation %q: more than one aggregation type in one node (%v)", name, found))
	}
	typ := found[0]

	params, _ := body[typ].(map[string]any)
	if params == nil {
		params = map[string]any{}
	}

	node := aggNode{typ: typ, params: params}

	subs, ok := body["aggs"]
	if !ok {
		subs, ok = body["aggregations"]
	}
	if ok {
		subMap, ok := subs.(map[string]any)
		if !ok {
			return aggNode{}, perr.Input("aggregate.bad_spec", fmt.Sprintf("aggregation %q: aggs must be an object", name))
		}
		nested, err := parseSpec(subMap)
		if err != nil {
			return aggNode{}, err
		}
		node.aggs = nested
	}
	return node, nil
}

// build dispatches a parsed node to its concrete Aggregation implementation.
func build(node aggNode, root []document.Document) (Aggregation, error) {
	switch node.typ {
	case "count":
		return newCountAgg(node.params)
	case "sum":
		return newMetricAgg(node.params, metricSum)
	case "avg":
		return newMetricAgg(node.params, metricAvg)
	case "min":
		return newMetricAgg(node.params, metricMin)
	case "max":
		return newMetricAgg(node.params, metricMax)
	case "stats":
		return newMetricAgg(node.params, metricStats)
	case "percentiles":
		return newPercentilesAgg(node.params)
	case "terms":
		return newTermsAgg(node.params, node.aggs)
	case "histogram":
		return newHistogramAgg(node.params, node.aggs)
	case "date_histogram":
		return newDateHistogramAgg(node.params, node.aggs)
	case "range":
		return newRangeAgg(node.params, node.aggs)
	case "filter":
		return newFilterAgg(node.params, node.aggs)
	case "filters":
		return newFiltersAgg(node.params, node.aggs)
	case "global":
		return newGlobalAgg(node.aggs)
	default:
		return nil, perr.Input("aggregate.bad_spec", fmt.Sprintf("unknown aggregation type %q", node.typ))
	}
}

func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key].(string)
	return v, ok
}

func floatParam(params map[string]any, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
