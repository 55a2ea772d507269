package model

// UncategorizedName is the display fallback for empty or dangling category
// references.
const UncategorizedName = "Uncategorized"

// Category is a user-defined classification for bookmarks. Nodes reference
// a category through a weak CategoryID: deleting a category leaves the
// reference dangling and display logic resolves it to UncategorizedName.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// NewCategoryParams holds parameters for creating a new Category.
type NewCategoryParams struct {
	Name  string
	Color string
	Icon  string
}

// NewCategory creates a Category with a generated UUID.
func NewCategory(params NewCategoryParams) Category {
	return Category{
		ID:    GenerateUUID(),
		Name:  params.Name,
		Color: params.Color,
		Icon:  params.Icon,
	}
}
