package table

import "testing"

func TestQueryMatches(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		rec   Record
		want  bool
	}{
		{"empty query matches anything", Query{}, Record{"name": "a"}, true},
		{"nil query matches anything", nil, Record{}, true},
		{"string equal", Query{"name": "a"}, Record{"name": "a"}, true},
		{"string different", Query{"name": "a"}, Record{"name": "b"}, false},
		{"missing field", Query{"name": "a"}, Record{"other": "a"}, false},
		{"bool equal", Query{"done": true}, Record{"done": true}, true},
		{"bool different", Query{"done": true}, Record{"done": false}, false},
		{"nil value equal", Query{"deleted": nil}, Record{"deleted": nil}, true},
		{"nil value missing", Query{"deleted": nil}, Record{}, false},
		{"int matches float64", Query{"n": 3}, Record{"n": float64(3)}, true},
		{"int64 matches float64", Query{"n": int64(3)}, Record{"n": float64(3)}, true},
		{"float64 matches int64", Query{"n": float64(3)}, Record{"n": int64(3)}, true},
		{"numbers different", Query{"n": 3}, Record{"n": float64(4)}, false},
		{"number not a string", Query{"n": 3}, Record{"n": "3"}, false},
		{"all fields must match", Query{"a": 1, "b": 2}, Record{"a": float64(1), "b": float64(2)}, true},
		{"one field off", Query{"a": 1, "b": 2}, Record{"a": float64(1), "b": float64(3)}, false},
		{"slices compared deeply", Query{"tags": []any{"x", "y"}}, Record{"tags": []any{"x", "y"}}, true},
		{"slices different", Query{"tags": []any{"x"}}, Record{"tags": []any{"x", "y"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(tt.rec); got != tt.want {
				t.Errorf("Matches(%v, %v) = %t, want %t", tt.query, tt.rec, got, tt.want)
			}
		})
	}
}

func TestRecord(t *testing.T) {
	t.Run("Clone is independent", func(t *testing.T) {
		orig := Record{"name": "a"}
		c := orig.Clone()
		c["name"] = "b"
		if orig["name"] != "a" {
			t.Error("Clone() shares storage with the original")
		}
	})

	t.Run("Clone of nil is usable", func(t *testing.T) {
		var r Record
		c := r.Clone()
		c["x"] = 1
		if c["x"] != 1 {
			t.Error("Clone() of nil record is not writable")
		}
	})

	t.Run("ID handles JSON numbers", func(t *testing.T) {
		tests := []struct {
			name string
			rec  Record
			want int64
		}{
			{"int64", Record{"id": int64(42)}, 42},
			{"float64", Record{"id": float64(42)}, 42},
			{"int", Record{"id": 42}, 42},
			{"missing", Record{}, 0},
			{"string", Record{"id": "42"}, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := tt.rec.ID(); got != tt.want {
					t.Errorf("ID() = %d, want %d", got, tt.want)
				}
			})
		}
	})
}
