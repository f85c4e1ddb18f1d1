package result

import (
	"reflect"
	"testing"

	"github.com/sqlpane/sqlpane/internal/value"
)

func TestBuilderKeepsFirstSeenOrder(t *testing.T) {
	b := NewBuilder()
	b.Append("b", value.Int(1))
	b.Append("a", value.Text("x"))
	b.Append("b", value.Int(2))
	b.Append("a", value.Text("y"))
	r := b.Result()

	if got := r.Names(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Fatalf("Names() = %v", got)
	}
	if r.RowCount() != 2 {
		t.Fatalf("RowCount() = %d", r.RowCount())
	}
	values, ok := r.Column("a")
	if !ok || len(values) != 2 || !values[1].Equal(value.Text("y")) {
		t.Fatalf("Column(a) = %v, %v", values, ok)
	}
	if got := r.Row(1); !reflect.DeepEqual(got, []string{"2", "y"}) {
		t.Fatalf("Row(1) = %v", got)
	}
}

func TestEmptyBuilderHasNoColumns(t *testing.T) {
	r := NewBuilder().Result()
	if !r.IsEmpty() || r.RowCount() != 0 || r.Len() != 0 {
		t.Fatalf("empty result = %+v", r)
	}
}

func TestNewMergesDuplicateNames(t *testing.T) {
	r := New(
		Column{Name: "a", Values: []value.Value{value.Int(1)}},
		Column{Name: "a", Values: []value.Value{value.Int(2)}},
	)
	if r.Len() != 1 || r.RowCount() != 2 {
		t.Fatalf("result = %+v", r)
	}
}

func TestEqual(t *testing.T) {
	a := New(Column{Name: "n", Values: []value.Value{value.Int(1)}})
	b := New(Column{Name: "n", Values: []value.Value{value.Int(1)}})
	c := New(Column{Name: "n", Values: []value.Value{value.BigInt(1)}})
	if !a.Equal(b) {
		t.Fatal("expected equal results")
	}
	if a.Equal(c) {
		t.Fatal("expected results with different kinds to differ")
	}
}
