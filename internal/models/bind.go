package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Bind is the wire form of a variant selection: feature id → selected value id
// (enumerated features) or raw scalar input (all other feature types). Two
// binds with the same pairs are the same bind regardless of map order; all
// identity comparisons go through CanonicalKey, never raw JSON.
type Bind map[string]string

// BindEntry is one normalized bind selection. Exactly one of ValueID/Raw is
// set, decided once from the feature's type at resolution time.
type BindEntry struct {
	FeatureID uuid.UUID  `json:"featureId"`
	ValueID   *uuid.UUID `json:"valueId,omitempty"`
	Raw       string     `json:"raw,omitempty"`
}

func (e BindEntry) selection() string {
	if e.ValueID != nil {
		return e.ValueID.String()
	}
	return normalizeScalar(e.Raw)
}

// NormalizedBind is a bind after resolution: entries sorted by feature id with
// selections classified as value references or raw scalars.
type NormalizedBind []BindEntry

// CanonicalKey returns the stable identity key of the normalized bind.
func (n NormalizedBind) CanonicalKey() string {
	pairs := make(map[string]string, len(n))
	for _, e := range n {
		pairs[e.FeatureID.String()] = e.selection()
	}
	return CanonicalPairKey(pairs)
}

// ToBind projects the normalized bind back to wire form.
func (n NormalizedBind) ToBind() Bind {
	b := make(Bind, len(n))
	for _, e := range n {
		b[e.FeatureID.String()] = e.selection()
	}
	return b
}

// ToJSON serializes the normalized bind's wire projection for storage.
func (n NormalizedBind) ToJSON() (datatypes.JSON, error) {
	raw, err := json.Marshal(n.ToBind())
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// CanonicalKey returns the stable identity key of a wire-form bind. Pair order
// and scalar whitespace never influence the key.
func (b Bind) CanonicalKey() string {
	pairs := make(map[string]string, len(b))
	for k, v := range b {
		pairs[strings.TrimSpace(k)] = normalizeScalar(v)
	}
	return CanonicalPairKey(pairs)
}

// pairEscaper escapes the canonical-key separators inside keys and values.
// Raw scalars and feature names/value texts are arbitrary input; without
// escaping, a value containing ";" or "=" could render byte-identical to a
// different set of pairs and collapse two distinct binds into one identity.
var pairEscaper = strings.NewReplacer(`\`, `\\`, "=", `\=`, ";", `\;`)

// CanonicalPairKey builds the canonical serialization of key/value pairs:
// sorted by key, each pair rendered k=v with separators escaped, pairs joined
// with ';'. Used for cart item identity, group product matching and the
// indexed bind_key columns.
func CanonicalPairKey(pairs map[string]string) string {
	if len(pairs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(pairEscaper.Replace(k))
		sb.WriteByte('=')
		sb.WriteString(pairEscaper.Replace(pairs[k]))
	}
	return sb.String()
}

// DecodeBindPairs decodes a stored JSONB bind column into its key/value pairs.
func DecodeBindPairs(raw datatypes.JSON) (map[string]string, error) {
	pairs := make(map[string]string)
	if len(raw) == 0 {
		return pairs, nil
	}
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("bind is not a string map: %w", err)
	}
	normalized := make(map[string]string, len(pairs))
	for k, v := range pairs {
		normalized[strings.TrimSpace(k)] = normalizeScalar(v)
	}
	return normalized, nil
}

// BindKeyFromJSON returns the canonical key of a stored bind column.
func BindKeyFromJSON(raw datatypes.JSON) (string, error) {
	pairs, err := DecodeBindPairs(raw)
	if err != nil {
		return "", err
	}
	return CanonicalPairKey(pairs), nil
}

func normalizeScalar(v string) string {
	return strings.TrimSpace(v)
}

// Option is the resolved outcome of a bind: aggregated price delta, stock
// ceiling and selling policy. It is derived per request and never persisted.
type Option struct {
	AdditionalPrice float64        `json:"additionalPrice"`
	Stock           *int           `json:"stock,omitempty"` // nil = unconstrained
	DecreasesStock  bool           `json:"decreasesStock"`
	ContinueSelling bool           `json:"continueSelling"`
	Bind            NormalizedBind `json:"bind"`
	BindKey         string         `json:"bindKey"`

	// NameTextKey is the feature-name→value-text projection's canonical key,
	// the form group product overrides are matched on.
	NameTextKey string `json:"-"`

	// Overridden is set when a group product supplied stock/price.
	Overridden bool `json:"overridden,omitempty"`
}

// HasStockCeiling reports whether the option carries a finite stock limit.
func (o *Option) HasStockCeiling() bool {
	return o.Stock != nil
}

// AvailableStock returns the ceiling, or -1 when unconstrained.
func (o *Option) AvailableStock() int {
	if o.Stock == nil {
		return -1
	}
	return *o.Stock
}
