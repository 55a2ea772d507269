package repository

import (
	"fmt"
	"log/slog"

	"github.com/nikbrunner/marks/internal/apperr"
	"github.com/nikbrunner/marks/internal/model"
	"github.com/nikbrunner/marks/internal/storage"
)

// CategoryPatch holds the fields UpdateCategory may change. Nil fields are
// left untouched.
type CategoryPatch struct {
	Name  *string
	Color *string
	Icon  *string
}

func (r *Repository) loadCategories() []model.Category {
	var cats []model.Category
	found, err := r.store.Get(storage.KeyCategories, &cats)
	if err != nil {
		r.logger.Warn("reading categories failed, treating as empty",
			slog.String("error", err.Error()))
		return []model.Category{}
	}
	if !found || cats == nil {
		return []model.Category{}
	}
	return cats
}

func (r *Repository) saveCategories(cats []model.Category) error {
	return r.store.Set(storage.KeyCategories, cats)
}

// GetCategories returns every category. Read failures yield an empty list,
// never an error.
func (r *Repository) GetCategories() []model.Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadCategories()
}

// AddCategory creates a category and returns its id.
func (r *Repository) AddCategory(params model.NewCategoryParams) (string, error) {
	if params.Name == "" {
		return "", fmt.Errorf("%w: category name must not be empty", apperr.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cat := model.NewCategory(params)
	cats := append(r.loadCategories(), cat)
	if err := r.saveCategories(cats); err != nil {
		return "", err
	}
	return cat.ID, nil
}

// UpdateCategory merges the patch onto the category with the given id. A
// missing id is not an error: it returns nil without writing.
func (r *Repository) UpdateCategory(id string, patch CategoryPatch) (*model.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cats := r.loadCategories()
	for i := range cats {
		if cats[i].ID != id {
			continue
		}
		if patch.Name != nil {
			cats[i].Name = *patch.Name
		}
		if patch.Color != nil {
			cats[i].Color = *patch.Color
		}
		if patch.Icon != nil {
			cats[i].Icon = *patch.Icon
		}
		if err := r.saveCategories(cats); err != nil {
			return nil, err
		}
		cat := cats[i]
		return &cat, nil
	}
	return nil, nil
}

// DeleteCategory removes the category unconditionally. Nodes keep their
// categoryId; a dangling reference renders as Uncategorized.
func (r *Repository) DeleteCategory(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cats := r.loadCategories()
	kept := cats[:0:0]
	for _, c := range cats {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if kept == nil {
		kept = []model.Category{}
	}
	return r.saveCategories(kept)
}

// ResolveCategoryName maps a node's categoryId to a display name. Unset or
// dangling ids resolve to the Uncategorized fallback.
func (r *Repository) ResolveCategoryName(id string) string {
	if id == "" {
		return model.UncategorizedName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.loadCategories() {
		if c.ID == id {
			return c.Name
		}
	}
	return model.UncategorizedName
}
