package recipes

import (
	"reflect"
	"testing"
)

func TestFilter_CaseInsensitiveSubstring(t *testing.T) {
	records := []Recipe{
		{ID: 1, Title: "Chicken Curry"},
		{ID: 2, Title: "Beef Stew"},
		{ID: 3, Title: "chicken soup"},
	}

	got := ids(Filter(records, "CHICK"))
	want := []int64{1, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter = %v, want %v", got, want)
	}
}

func TestFilter_EmptyQueryReturnsAllInOrder(t *testing.T) {
	records := []Recipe{{ID: 3, Title: "c"}, {ID: 1, Title: "a"}, {ID: 2, Title: "b"}}

	for _, q := range []string{"", "   "} {
		got := ids(Filter(records, q))
		want := []int64{3, 1, 2}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Filter(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestFilter_WhitespaceQuery(t *testing.T) {
	records := []Recipe{{ID: 1, Title: "Pancakes"}, {ID: 2, Title: "Tomato Soup"}}

	for _, q := range []string{" ", "\t", " \n\t ", "\u00a0"} {
		got := ids(Filter(records, q))
		want := []int64{1, 2}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Filter(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestFilter_NoMatch(t *testing.T) {
	records := []Recipe{{ID: 1, Title: "Pancakes"}}

	got := Filter(records, "waffle")
	if got == nil || len(got) != 0 {
		t.Errorf("Filter = %#v, want empty non-nil slice", got)
	}
}

func TestFilter_DoesNotAliasInput(t *testing.T) {
	records := []Recipe{{ID: 1, Title: "Pancakes"}}

	got := Filter(records, "")
	got[0].Title = "changed"
	if records[0].Title != "Pancakes" {
		t.Errorf("input mutated: %q", records[0].Title)
	}
}
