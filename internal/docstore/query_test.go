package docstore

import (
	"testing"

	"didstore/internal/access"
)

func TestMatch(t *testing.T) {
	doc := access.Record{
		"name":   "alice",
		"age":    29,
		"status": "active",
		"score":  4.5,
	}

	tests := []struct {
		name     string
		selector map[string]any
		want     bool
	}{
		{"nil selector matches", nil, true},
		{"equality match", map[string]any{"name": "alice"}, true},
		{"equality mismatch", map[string]any{"name": "bob"}, false},
		{"missing field equality", map[string]any{"city": "paris"}, false},
		{"implicit and", map[string]any{"name": "alice", "status": "active"}, true},
		{"implicit and partial", map[string]any{"name": "alice", "status": "gone"}, false},
		{"gt number", map[string]any{"age": map[string]any{"$gt": 21}}, true},
		{"gt number fails", map[string]any{"age": map[string]any{"$gt": 30}}, false},
		{"gte boundary", map[string]any{"age": map[string]any{"$gte": 29}}, true},
		{"lt", map[string]any{"score": map[string]any{"$lt": 5}}, true},
		{"lte boundary", map[string]any{"score": map[string]any{"$lte": 4.5}}, true},
		{"ne", map[string]any{"name": map[string]any{"$ne": "bob"}}, true},
		{"ne on missing field", map[string]any{"city": map[string]any{"$ne": "paris"}}, true},
		{"in", map[string]any{"name": map[string]any{"$in": []any{"bob", "alice"}}}, true},
		{"in miss", map[string]any{"name": map[string]any{"$in": []any{"bob", "carol"}}}, false},
		{"exists true", map[string]any{"age": map[string]any{"$exists": true}}, true},
		{"exists false", map[string]any{"city": map[string]any{"$exists": false}}, true},
		{
			name: "gt true matches numbers",
			// The sort-field rewrite relies on this: any number or string
			// collates after booleans.
			selector: map[string]any{"age": map[string]any{"$gt": true}},
			want:     true,
		},
		{
			name:     "gt true matches strings",
			selector: map[string]any{"name": map[string]any{"$gt": true}},
			want:     true,
		},
		{
			name:     "gt true misses absent fields",
			selector: map[string]any{"city": map[string]any{"$gt": true}},
			want:     false,
		},
		{
			name: "and",
			selector: map[string]any{"$and": []any{
				map[string]any{"status": "active"},
				map[string]any{"age": map[string]any{"$gt": true}},
			}},
			want: true,
		},
		{
			name: "or",
			selector: map[string]any{"$or": []any{
				map[string]any{"status": "gone"},
				map[string]any{"name": "alice"},
			}},
			want: true,
		},
		{
			name: "or all miss",
			selector: map[string]any{"$or": []any{
				map[string]any{"status": "gone"},
				map[string]any{"name": "bob"},
			}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(doc, tt.selector)
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatch_UnsupportedOperator(t *testing.T) {
	_, err := Match(access.Record{"a": 1}, map[string]any{"a": map[string]any{"$regex": "x"}})
	if err == nil {
		t.Error("unsupported operator did not error")
	}
}

func TestCompare_Collation(t *testing.T) {
	// null < false < true < numbers < strings
	ordered := []any{nil, false, true, 3, 4.5, "alpha", "beta"}
	for i := range len(ordered) - 1 {
		if Compare(ordered[i], ordered[i+1]) >= 0 {
			t.Errorf("Compare(%v, %v) >= 0, want < 0", ordered[i], ordered[i+1])
		}
	}
	if Compare(7, 7.0) != 0 {
		t.Error("int and float of equal value do not compare equal")
	}
}

func TestApply_SortSkipLimit(t *testing.T) {
	docs := []access.Record{
		{"_id": "c", "age": 41},
		{"_id": "a", "age": 29},
		{"_id": "d", "age": 55, "_deleted": true},
		{"_id": "b", "age": 35},
	}

	out, err := Apply(docs, access.FindQuery{
		Sort:  []access.SortField{{Field: "age"}},
		Skip:  1,
		Limit: 1,
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Apply() returned %d docs, want 1", len(out))
	}
	if out[0].ID() != "b" {
		t.Errorf("doc = %q, want b (deleted excluded, skip 1 of sorted)", out[0].ID())
	}
}

func TestApply_DescendingSort(t *testing.T) {
	docs := []access.Record{
		{"_id": "a", "age": 29},
		{"_id": "c", "age": 41},
		{"_id": "b", "age": 35},
	}

	out, err := Apply(docs, access.FindQuery{
		Sort: []access.SortField{{Field: "age", Descending: true}},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if out[0].ID() != "c" || out[2].ID() != "a" {
		t.Errorf("descending order wrong: %s %s %s", out[0].ID(), out[1].ID(), out[2].ID())
	}
}
