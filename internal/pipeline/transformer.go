package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Item is a destination-shaped record keyed by pk/sk.
type Item map[string]any

// PartitionKey returns the item's pk as a string.
func (i Item) PartitionKey() string { return keyString(i["pk"]) }

// SortKey returns the item's sk as a string.
func (i Item) SortKey() string { return keyString(i["sk"]) }

func keyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatNumber(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return formatNumber(f)
		}
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// formatNumber renders f the way JSON producers print numbers: plain decimal
// digits, switching to an exponent only at or beyond 1e21 and below 1e-6.
func formatNumber(f float64) string {
	if abs := math.Abs(f); abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		s := strconv.FormatFloat(f, 'g', -1, 64)
		s = strings.Replace(s, "e-0", "e-", 1)
		return strings.Replace(s, "e+0", "e+", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Transformer maps a validated record to the destination item. Implementations
// are pure and never fail once the record has passed validation.
type Transformer interface {
	Transform(rec Record) Item
	// Field names the identifying field the record must carry to be valid.
	Field() string
}

// Transform strategy names, selected once per deployment.
const (
	StrategyIdentity = "identity"
	StrategyName     = "name"
)

// DefaultPartitionLabel prefixes every partition key.
const DefaultPartitionLabel = "LISTING"

// NewTransformer returns the strategy registered under name.
func NewTransformer(name, label string) (Transformer, error) {
	if label == "" {
		label = DefaultPartitionLabel
	}
	switch name {
	case StrategyIdentity, "":
		return IdentityKeyed{Label: label}, nil
	case StrategyName:
		return NameKeyed{Label: label}, nil
	default:
		return nil, fmt.Errorf("unknown transform strategy %q", name)
	}
}

// IdentityKeyed builds items keyed by the listing category, using the same
// value for pk and sk, plus derived measurements and counts.
type IdentityKeyed struct {
	Label string
}

func (IdentityKeyed) Field() string { return "category" }

func (t IdentityKeyed) Transform(rec Record) Item {
	category := keyString(rec["category"])
	key := t.Label + "#" + category

	item := Item{
		"pk":      key,
		"sk":      key,
		"gender":  rec["category"],
		"delta":   number(rec["height"]) - number(rec["mass"]),
		"reviews": array(rec["films"]),
		"cnt":     len(array(rec["vehicles"])),
	}
	for _, f := range []string{"mass", "height"} {
		if v, ok := rec[f]; ok {
			item[f] = v
		}
	}
	return item
}

// NameKeyed builds items under a fixed partition with the record name as sort key.
type NameKeyed struct {
	Label string
}

func (NameKeyed) Field() string { return "name" }

func (t NameKeyed) Transform(rec Record) Item {
	return Item{
		"pk": t.Label,
		"sk": keyString(rec["name"]),
	}
}

// number coerces a JSON value for arithmetic. Values with no numeric reading count as 0.
func number(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		f, _ = t.Float64()
	case bool:
		if t {
			f = 1
		}
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(t), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// array returns v as a slice, or an empty slice when v is not an array.
func array(v any) []any {
	if a, ok := v.([]any); ok {
		return a
	}
	return []any{}
}
