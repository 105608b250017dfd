package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/kalambet/larder/internal/recipes"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecipe(id int64, title string) recipes.Recipe {
	return recipes.Recipe{
		ID:          id,
		Title:       title,
		Description: title + " description",
		Ingredients: []string{"salt", "pepper"},
		CreatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if err := s1.SaveRecipe(testRecipe(1, "Soup")); err != nil {
		t.Fatalf("SaveRecipe: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}

	rs, err := s2.LoadRecipes()
	if err != nil || len(rs) != 1 {
		t.Errorf("LoadRecipes after reopen = %v, %v", rs, err)
	}
}

func TestSaveAndLoadRecipes(t *testing.T) {
	s := openTestStore(t)

	for _, r := range []recipes.Recipe{testRecipe(30, "C"), testRecipe(10, "A"), testRecipe(20, "B")} {
		if err := s.SaveRecipe(r); err != nil {
			t.Fatalf("SaveRecipe(%d): %v", r.ID, err)
		}
	}

	rs, err := s.LoadRecipes()
	if err != nil {
		t.Fatalf("LoadRecipes: %v", err)
	}
	want := []int64{30, 10, 20}
	if len(rs) != len(want) {
		t.Fatalf("got %d recipes, want %d", len(rs), len(want))
	}
	for i, id := range want {
		if rs[i].ID != id {
			t.Errorf("rs[%d].ID = %d, want %d (insertion order)", i, rs[i].ID, id)
		}
	}
	if len(rs[0].Ingredients) != 2 || rs[0].Ingredients[0] != "salt" {
		t.Errorf("Ingredients = %v", rs[0].Ingredients)
	}
	if !rs[0].CreatedAt.Equal(testRecipe(0, "").CreatedAt) {
		t.Errorf("CreatedAt = %v", rs[0].CreatedAt)
	}
}

func TestSaveRecipe_UpdateKeepsPosition(t *testing.T) {
	s := openTestStore(t)
	s.SaveRecipe(testRecipe(1, "First"))
	s.SaveRecipe(testRecipe(2, "Second"))

	updated := testRecipe(1, "First, revised")
	updated.Ingredients = nil
	if err := s.SaveRecipe(updated); err != nil {
		t.Fatalf("SaveRecipe: %v", err)
	}

	rs, _ := s.LoadRecipes()
	if rs[0].ID != 1 || rs[0].Title != "First, revised" {
		t.Errorf("rs[0] = %+v", rs[0])
	}
	if len(rs[0].Ingredients) != 0 {
		t.Errorf("Ingredients = %v, want empty", rs[0].Ingredients)
	}
}

func TestDeleteRecipe(t *testing.T) {
	s := openTestStore(t)
	s.SaveRecipe(testRecipe(1, "A"))

	if err := s.DeleteRecipe(1); err != nil {
		t.Fatalf("DeleteRecipe: %v", err)
	}
	if err := s.DeleteRecipe(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestReplaceRecipes(t *testing.T) {
	s := openTestStore(t)
	s.SaveRecipe(testRecipe(1, "Old"))

	if err := s.ReplaceRecipes([]recipes.Recipe{testRecipe(5, "E"), testRecipe(4, "D")}); err != nil {
		t.Fatalf("ReplaceRecipes: %v", err)
	}
	rs, _ := s.LoadRecipes()
	if len(rs) != 2 || rs[0].ID != 5 || rs[1].ID != 4 {
		t.Errorf("recipes = %+v", rs)
	}
}

func TestReplaceRecipes_DuplicateRollsBack(t *testing.T) {
	s := openTestStore(t)
	s.SaveRecipe(testRecipe(1, "Keep"))

	err := s.ReplaceRecipes([]recipes.Recipe{testRecipe(2, "X"), testRecipe(2, "Y")})
	if err == nil {
		t.Fatal("ReplaceRecipes accepted duplicate ids")
	}
	rs, _ := s.LoadRecipes()
	if len(rs) != 1 || rs[0].ID != 1 {
		t.Errorf("recipes after failed replace = %+v", rs)
	}
}

func TestListRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveList("favorites", []string{"a", "b"}); err != nil {
		t.Fatalf("SaveList: %v", err)
	}
	got, err := s.LoadList("favorites")
	if err != nil {
		t.Fatalf("LoadList: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("LoadList = %v, want [a b]", got)
	}

	if err := s.SaveList("favorites", nil); err != nil {
		t.Fatalf("SaveList(nil): %v", err)
	}
	got, _ = s.LoadList("favorites")
	if len(got) != 0 {
		t.Errorf("LoadList after clear = %v", got)
	}
}

func TestLoadList_Missing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.LoadList("never-saved")
	if err != nil {
		t.Fatalf("LoadList: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("LoadList = %#v, want empty slice", got)
	}
}

func TestFavoritesRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveFavorites([]int64{3, 1, 1700000000000}); err != nil {
		t.Fatalf("SaveFavorites: %v", err)
	}
	ids, err := s.LoadFavorites()
	if err != nil {
		t.Fatalf("LoadFavorites: %v", err)
	}
	want := []int64{3, 1, 1700000000000}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestStoreBacksRecipeStore(t *testing.T) {
	db := openTestStore(t)

	rs, err := recipes.Open(recipes.WithPersistence(db))
	if err != nil {
		t.Fatalf("recipes.Open: %v", err)
	}
	r, err := rs.Add(recipes.Recipe{ID: 7, Title: "Chicken Curry"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := rs.ToggleFavorite(r.ID); err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	rs.Close()

	reopened, err := recipes.Open(recipes.WithPersistence(db))
	if err != nil {
		t.Fatalf("recipes.Open: %v", err)
	}
	defer reopened.Close()
	if !reopened.IsFavorite(7) {
		t.Error("favorite lost across reopen")
	}
	if got, err := reopened.Get(7); err != nil || got.Title != "Chicken Curry" {
		t.Errorf("Get(7) = %+v, %v", got, err)
	}
}
