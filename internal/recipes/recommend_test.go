package recipes

import (
	"reflect"
	"testing"
)

func ids(rs []Recipe) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestRecommend_NoFavoritesReturnsNewest(t *testing.T) {
	var records []Recipe
	for i := int64(1); i <= 6; i++ {
		records = append(records, Recipe{ID: i, Title: "Recipe"})
	}

	got := ids(Recommend(records, nil, 3))
	want := []int64{6, 5, 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Recommend = %v, want %v", got, want)
	}
}

func TestRecommend_NoFavoritesUnsortedInput(t *testing.T) {
	records := []Recipe{{ID: 3, Title: "c"}, {ID: 9, Title: "i"}, {ID: 1, Title: "a"}}

	got := ids(Recommend(records, map[int64]bool{}, 2))
	want := []int64{9, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Recommend = %v, want %v", got, want)
	}
}

func TestRecommend_KeywordOverlapThenPad(t *testing.T) {
	records := []Recipe{
		{ID: 1, Title: "Chicken Curry"},
		{ID: 2, Title: "Beef Stew"},
		{ID: 3, Title: "Chicken Soup"},
	}

	got := ids(Recommend(records, map[int64]bool{1: true}, 0))
	want := []int64{3, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Recommend = %v, want %v", got, want)
	}
}

func TestRecommend_HigherScoreFirstTiesInCollectionOrder(t *testing.T) {
	records := []Recipe{
		{ID: 1, Title: "Spicy Chicken Curry"},
		{ID: 2, Title: "Chicken Salad"},
		{ID: 3, Title: "Spicy Chicken Wings"},
		{ID: 4, Title: "Curry Noodles"},
		{ID: 5, Title: "Plain Rice"},
	}

	// Table: spicy=1 chicken=1 curry=1. Scores: 2->1, 3->2, 4->1, 5->0.
	got := ids(Recommend(records, map[int64]bool{1: true}, 3))
	want := []int64{3, 2, 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Recommend = %v, want %v", got, want)
	}
}

func TestRecommend_ShortTokensIgnored(t *testing.T) {
	records := []Recipe{
		{ID: 1, Title: "Egg Pie"},
		{ID: 2, Title: "Egg Tart"},
		{ID: 3, Title: "Pie Crust"},
	}

	// No keyword longer than three runes, so everything is padding.
	got := ids(Recommend(records, map[int64]bool{1: true}, 5))
	want := []int64{2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Recommend = %v, want %v", got, want)
	}
}

func TestRecommend_RepeatedFavoriteKeywordsWeighMore(t *testing.T) {
	records := []Recipe{
		{ID: 1, Title: "Tomato Soup"},
		{ID: 2, Title: "Tomato Salad"},
		{ID: 3, Title: "Onion Soup"},
		{ID: 4, Title: "Tomato Pasta"},
	}

	// tomato=2 soup=1: 3 scores 1, 4 scores 2.
	got := ids(Recommend(records, map[int64]bool{1: true, 2: true}, 5))
	want := []int64{4, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Recommend = %v, want %v", got, want)
	}
}

func TestRecommend_Deterministic(t *testing.T) {
	records := []Recipe{
		{ID: 10, Title: "Garlic Bread"},
		{ID: 11, Title: "Garlic Butter Shrimp"},
		{ID: 12, Title: "Butter Chicken"},
		{ID: 13, Title: "Shrimp Tacos"},
		{ID: 14, Title: "Fish Tacos"},
	}
	favs := map[int64]bool{11: true}

	first := ids(Recommend(records, favs, 4))
	for i := 0; i < 20; i++ {
		if got := ids(Recommend(records, favs, 4)); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d = %v, want %v", i, got, first)
		}
	}
}

func TestRecommend_NeverReturnsFavorites(t *testing.T) {
	records := []Recipe{{ID: 1, Title: "Lemon Cake"}, {ID: 2, Title: "Lemon Tart"}}

	got := Recommend(records, map[int64]bool{1: true, 2: true}, 5)
	if len(got) != 0 {
		t.Errorf("Recommend = %v, want empty", ids(got))
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("  The  Best CHICKEN soup in Town ")
	want := []string{"best", "chicken", "soup", "town"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords = %v, want %v", got, want)
	}
}

func TestRecommend_HugeLimit(t *testing.T) {
	records := []Recipe{
		{ID: 1, Title: "Chicken Curry"},
		{ID: 2, Title: "Beef Stew"},
		{ID: 3, Title: "Chicken Soup"},
	}

	got := ids(Recommend(records, map[int64]bool{1: true}, 1<<40))
	want := []int64{3, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Recommend = %v, want %v", got, want)
	}

	got = ids(Recommend(records, nil, 1<<40))
	want = []int64{3, 2, 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Recommend without favorites = %v, want %v", got, want)
	}
}
