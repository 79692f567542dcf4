package target

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
)

// Field names recognised on signal records, in priority order.
var (
	InstrumentFields = []string{"par", "symbol", "pair", "coin", "ticker", "asset", "instrument"}
	TargetFields     = []string{"alvo", "target", "tp", "takeprofit", "take_profit", "target_price"}
	SideFields       = []string{"side", "sinal", "side_src", "direction", "dir"}
	WrapperKeys      = []string{"sinais", "lista", "signals", "items", "data", "results", "records", "ops"}
)

// MaxDepth bounds the deep walk over nested documents.
const MaxDepth = 8

// Strategy extracts signal-like records from a decoded document.
type Strategy struct {
	Name    string
	Extract func(doc any) []map[string]any
}

// DefaultStrategies is the extraction chain; the first non-empty result wins.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "flat", Extract: extractFlat},
		{Name: "wrapped", Extract: extractWrapped},
		{Name: "deep", Extract: extractDeep},
	}
}

func extractFlat(doc any) []map[string]any {
	arr, ok := doc.([]any)
	if !ok {
		return nil
	}
	return signalNodes(arr)
}

func extractWrapped(doc any) []map[string]any {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range WrapperKeys {
		if arr, ok := obj[key].([]any); ok {
			if nodes := signalNodes(arr); len(nodes) > 0 {
				return nodes
			}
		}
	}
	return nil
}

func extractDeep(doc any) []map[string]any {
	var out []map[string]any
	var walk func(node any, depth int)
	walk = func(node any, depth int) {
		if depth > MaxDepth {
			return
		}
		switch v := node.(type) {
		case map[string]any:
			if isSignalLike(v) {
				out = append(out, v)
				return
			}
			for _, key := range sortedKeys(v) {
				walk(v[key], depth+1)
			}
		case []any:
			for _, item := range v {
				walk(item, depth+1)
			}
		}
	}
	walk(doc, 0)
	return out
}

func signalNodes(arr []any) []map[string]any {
	var out []map[string]any
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok && isSignalLike(obj) {
			out = append(out, obj)
		}
	}
	return out
}

func isSignalLike(obj map[string]any) bool {
	if instrumentOf(obj) == "" {
		return false
	}
	_, ok := firstPresent(obj, TargetFields)
	return ok
}

func instrumentOf(obj map[string]any) string {
	for _, key := range InstrumentFields {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func sideOf(obj map[string]any) (domain.Side, bool) {
	for _, key := range SideFields {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			side, err := domain.ParseSide(s)
			return side, err == nil
		}
	}
	return "", false
}

func firstPresent(obj map[string]any, keys []string) (any, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// targetOf returns the first target field as a positive finite number.
func targetOf(obj map[string]any) (float64, bool) {
	v, ok := firstPresent(obj, TargetFields)
	if !ok {
		return 0, false
	}
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case uint64:
		n = float64(x)
	case json.Number:
		f, ok := domain.ParseNumberString(x.String())
		if !ok {
			return 0, false
		}
		n = f
	case string:
		f, ok := domain.ParseNumberString(x)
		if !ok {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return 0, false
	}
	return n, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
