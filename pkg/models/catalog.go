package models

// CatalogKind names one of the lookup collections
type CatalogKind string

const (
	KindCategory   CatalogKind = "category"
	KindArea       CatalogKind = "area"
	KindIngredient CatalogKind = "ingredient"
)

// Valid reports whether k is a known catalog kind
func (k CatalogKind) Valid() bool {
	switch k {
	case KindCategory, KindArea, KindIngredient:
		return true
	}
	return false
}

// CatalogItem is a category, area or ingredient
type CatalogItem struct {
	ID          string      `json:"id"`
	Kind        CatalogKind `json:"kind"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Thumb       string      `json:"thumb,omitempty"`
}
