package expr

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/Conduit/internal/domain"
)

func TestCompileMapping_Identity(t *testing.T) {
	f, err := CompileMapping(domain.Mapping{
		Target:  "name",
		Sources: []string{"customer.name"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Identity() {
		t.Error("formula without expression should be identity")
	}

	got, err := f.Apply(map[string]any{
		"customer": map[string]any{"name": "Ada"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Ada" {
		t.Errorf("expected Ada, got %v", got)
	}
}

func TestCompileMapping_UniqueIDs(t *testing.T) {
	m := domain.Mapping{Target: "x", Sources: []string{"a"}, Formula: "input1"}

	a, err := CompileMapping(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := CompileMapping(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.ID == b.ID {
		t.Errorf("formula ids must differ, both %s", a.ID)
	}
	if !strings.HasPrefix(a.ID, "formula_") {
		t.Errorf("unexpected id format: %s", a.ID)
	}
}

func TestFormula_Apply(t *testing.T) {
	tests := []struct {
		name    string
		mapping domain.Mapping
		data    any
		want    any
	}{
		{
			name:    "arithmetic",
			mapping: domain.Mapping{Target: "total", Sources: []string{"price", "qty"}, Formula: "input1 * input2"},
			data:    map[string]any{"price": float64(2.5), "qty": float64(4)},
			want:    int64(10),
		},
		{
			name:    "string function",
			mapping: domain.Mapping{Target: "code", Sources: []string{"code"}, Formula: "upper(input1)"},
			data:    map[string]any{"code": "abc"},
			want:    "ABC",
		},
		{
			name:    "template",
			mapping: domain.Mapping{Target: "full", Sources: []string{"first", "last"}, Formula: `"${input1} ${input2}"`},
			data:    map[string]any{"first": "Ada", "last": "Lovelace"},
			want:    "Ada Lovelace",
		},
		{
			name:    "array index in path",
			mapping: domain.Mapping{Target: "first", Sources: []string{"items.0.id"}},
			data:    map[string]any{"items": []any{map[string]any{"id": "x1"}}},
			want:    "x1",
		},
		{
			name:    "whole element",
			mapping: domain.Mapping{Target: "n", Formula: "length(data.items)"},
			data:    map[string]any{"items": []any{1, 2, 3}},
			want:    int64(3),
		},
		{
			name:    "object result",
			mapping: domain.Mapping{Target: "o", Sources: []string{"a"}, Formula: `{ value = input1, ok = true }`},
			data:    map[string]any{"a": "v"},
			want:    map[string]any{"value": "v", "ok": true},
		},
		{
			name:    "missing source is null",
			mapping: domain.Mapping{Target: "x", Sources: []string{"nope"}, Formula: `input1 == null`},
			data:    map[string]any{},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := CompileMapping(tt.mapping)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			got, err := f.Apply(tt.data)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileMapping_ParseError(t *testing.T) {
	_, err := CompileMapping(domain.Mapping{Target: "x", Formula: "input1 +"})
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestFormula_EvalError(t *testing.T) {
	f, err := CompileMapping(domain.Mapping{Target: "x", Sources: []string{"a"}, Formula: "input1 * 2"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	_, err = f.Apply(map[string]any{"a": "not a number"})
	if !errors.Is(err, ErrEval) {
		t.Errorf("expected ErrEval, got %v", err)
	}
}

func TestGuard_Eval(t *testing.T) {
	scope := Scope{
		Body:       map[string]any{"kind": "order", "total": float64(120)},
		Headers:    map[string]string{"data-stack-txn-id": "abc"},
		StatusCode: 200,
		Query:      map[string]string{"interactionId": "i-1"},
	}

	tests := []struct {
		name    string
		src     string
		want    bool
		wantErr error
	}{
		{"empty", "", true, nil},
		{"status", "statusCode == 200", true, nil},
		{"body field", `body.kind == "order" && body.total > 100`, true, nil},
		{"false", `body.kind == "invoice"`, false, nil},
		{"header index", `headers["data-stack-txn-id"] == "abc"`, true, nil},
		{"missing attribute", `body.missing == 1`, false, ErrEval},
		{"not bool", `body.kind`, false, ErrNotBool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := CompileGuard(tt.src)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			got, err := g.Eval(scope)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCtyRoundTrip(t *testing.T) {
	in := map[string]any{
		"s":     "x",
		"n":     int64(7),
		"f":     1.5,
		"b":     true,
		"null":  nil,
		"list":  []any{"a", int64(1)},
		"empty": []any{},
		"obj":   map[string]any{},
	}

	cv, err := ToCty(in)
	if err != nil {
		t.Fatalf("to cty: %v", err)
	}
	out, err := FromCty(cv)
	if err != nil {
		t.Fatalf("from cty: %v", err)
	}

	if diff := cmp.Diff(any(in), out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
