// Package docstore provides concrete DocumentStore implementations (memory,
// sqlite, s3) behind a DSN-based factory, plus the Mango-style selector
// engine they share.
package docstore

import (
	"fmt"
	"sort"
	"strings"

	"didstore/internal/access"
)

// Match reports whether doc satisfies the selector. A nil or empty selector
// matches everything. Field conditions are combined with implicit AND;
// $and/$or combine sub-selectors; field values are either a literal
// (equality) or an operator object such as {"$gt": 5}.
func Match(doc access.Record, selector map[string]any) (bool, error) {
	for key, cond := range selector {
		switch key {
		case "$and":
			subs, err := subSelectors(key, cond)
			if err != nil {
				return false, err
			}
			for _, sub := range subs {
				ok, err := Match(doc, sub)
				if err != nil || !ok {
					return ok, err
				}
			}
		case "$or":
			subs, err := subSelectors(key, cond)
			if err != nil {
				return false, err
			}
			matched := false
			for _, sub := range subs {
				ok, err := Match(doc, sub)
				if err != nil {
					return false, err
				}
				if ok {
					matched = true
					break
				}
			}
			if !matched {
				return false, nil
			}
		default:
			if strings.HasPrefix(key, "$") {
				return false, fmt.Errorf("unsupported selector operator %q", key)
			}
			ok, err := matchField(doc, key, cond)
			if err != nil || !ok {
				return ok, err
			}
		}
	}
	return true, nil
}

func subSelectors(op string, cond any) ([]map[string]any, error) {
	list, ok := cond.([]any)
	if !ok {
		// Selectors built in-process often carry the concrete type.
		if typed, ok := cond.([]map[string]any); ok {
			return typed, nil
		}
		return nil, fmt.Errorf("%s expects a list of selectors, got %T", op, cond)
	}
	subs := make([]map[string]any, 0, len(list))
	for _, item := range list {
		sub, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s expects selector objects, got %T", op, item)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func matchField(doc access.Record, field string, cond any) (bool, error) {
	value, present := doc[field]

	ops, isOps := operatorObject(cond)
	if !isOps {
		return present && Compare(value, cond) == 0, nil
	}

	for op, arg := range ops {
		var ok bool
		switch op {
		case "$eq":
			ok = present && Compare(value, arg) == 0
		case "$ne":
			ok = !present || Compare(value, arg) != 0
		case "$gt":
			ok = present && Compare(value, arg) > 0
		case "$gte":
			ok = present && Compare(value, arg) >= 0
		case "$lt":
			ok = present && Compare(value, arg) < 0
		case "$lte":
			ok = present && Compare(value, arg) <= 0
		case "$exists":
			want, _ := arg.(bool)
			ok = present == want
		case "$in":
			list, isList := arg.([]any)
			if !isList {
				return false, fmt.Errorf("$in expects a list, got %T", arg)
			}
			for _, item := range list {
				if present && Compare(value, item) == 0 {
					ok = true
					break
				}
			}
		default:
			return false, fmt.Errorf("unsupported field operator %q", op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// operatorObject reports whether cond is an operator object ({"$gt": ...})
// rather than a literal value to compare for equality.
func operatorObject(cond any) (map[string]any, bool) {
	m, ok := cond.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

// Compare orders two values using the document store collation: missing/null
// sorts first, then booleans (false before true), numbers, strings, and
// everything else last. This ordering is what makes the {"$gt": true}
// sort-field rewrite select any record where the field holds a number or
// string.
func Compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch ra {
	case rankNull:
		return 0
	case rankBool:
		return cmpBool(a.(bool), b.(bool))
	case rankNumber:
		av, bv := toFloat(a), toFloat(b)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	default:
		// Composite values (arrays, objects) are not ordered; equal rank
		// compares as equal string forms.
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

const (
	rankNull = iota
	rankBool
	rankNumber
	rankString
	rankOther
)

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case bool:
		return rankBool
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return rankNumber
	case string:
		return rankString
	default:
		return rankOther
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// Apply evaluates a full FindQuery against an in-memory document slice:
// selector match, soft-delete exclusion, sort, skip and limit. Stores that
// cannot push queries down (and the encrypted backend, which must decrypt
// before filtering) share this path.
func Apply(docs []access.Record, query access.FindQuery) ([]access.Record, error) {
	matched := make([]access.Record, 0, len(docs))
	for _, doc := range docs {
		if doc.Deleted() {
			continue
		}
		ok, err := Match(doc, query.Selector)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, doc)
		}
	}

	if len(query.Sort) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, s := range query.Sort {
				c := Compare(matched[i][s.Field], matched[j][s.Field])
				if c == 0 {
					continue
				}
				if s.Descending {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if query.Skip > 0 {
		if query.Skip >= len(matched) {
			return []access.Record{}, nil
		}
		matched = matched[query.Skip:]
	}
	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched, nil
}
