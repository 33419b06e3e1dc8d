package model

import (
	"regexp"
	"strings"
)

// Canonical catalog categories. Category values are stored uppercase in the
// catalog; subcategories keep their catalog casing and are matched
// case-insensitively.
const (
	CategoryTop       = "TOP"
	CategoryBottom    = "BOTTOM"
	CategoryDress     = "DRESS"
	CategoryOuterwear = "OUTERWEAR"
	CategoryShoes     = "SHOES"
	CategoryAccessory = "ACCESSORY"
)

var categories = []string{
	CategoryTop,
	CategoryBottom,
	CategoryDress,
	CategoryOuterwear,
	CategoryShoes,
	CategoryAccessory,
}

var subCategories = map[string][]string{
	CategoryTop:       {"T-Shirt", "Shirt", "Blouse", "Polo", "Sweater", "Hoodie", "Tank Top", "Cardigan"},
	CategoryBottom:    {"Jeans", "Trousers", "Chinos", "Shorts", "Skirt", "Leggings", "Joggers"},
	CategoryDress:     {"Casual Dress", "Evening Dress", "Cocktail Dress", "Maxi Dress", "Midi Dress"},
	CategoryOuterwear: {"Jacket", "Blazer", "Coat", "Trench Coat", "Puffer", "Denim Jacket", "Leather Jacket"},
	CategoryShoes:     {"Sneakers", "Boots", "Loafers", "Heels", "Sandals", "Flats", "Oxfords"},
	CategoryAccessory: {"Bag", "Belt", "Scarf", "Hat", "Sunglasses", "Jewelry", "Watch", "Tie"},
}

var colorHexPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Categories returns the closed category set in canonical order.
func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

// SubCategoriesFor returns the canonical subcategories of a category, in
// catalog order. Unknown categories yield nil.
func SubCategoriesFor(category string) []string {
	known, ok := subCategories[category]
	if !ok {
		return nil
	}
	out := make([]string, len(known))
	copy(out, known)
	return out
}

// NormalizeCategory maps a free-form category label onto the canonical set.
// Unknown labels yield ok=false and must be dropped by the caller.
func NormalizeCategory(v string) (string, bool) {
	c := strings.ToUpper(strings.TrimSpace(v))
	for _, known := range categories {
		if c == known {
			return known, true
		}
	}
	return "", false
}

// NormalizeSubCategory maps a free-form subcategory label onto the canonical
// casing for the given (already normalized) category.
func NormalizeSubCategory(category, v string) (string, bool) {
	sc := strings.TrimSpace(v)
	if sc == "" {
		return "", false
	}
	for _, known := range subCategories[category] {
		if strings.EqualFold(sc, known) {
			return known, true
		}
	}
	return "", false
}

// NormalizeColorHex validates a strict #RRGGBB color and uppercases it.
func NormalizeColorHex(v string) (string, bool) {
	c := strings.TrimSpace(v)
	if !colorHexPattern.MatchString(c) {
		return "", false
	}
	return strings.ToUpper(c), true
}

// NormalizeFilters validates every filter field independently, dropping
// values that do not fit the taxonomy instead of failing the analysis.
// The result is stable: normalizing an already-normalized set is a no-op.
func NormalizeFilters(f SearchFilters) SearchFilters {
	var out SearchFilters

	if c, ok := NormalizeCategory(f.Category); ok {
		out.Category = c
		if sc, ok := NormalizeSubCategory(c, f.SubCategory); ok {
			out.SubCategory = sc
		}
	}
	if hex, ok := NormalizeColorHex(f.ColorHex); ok {
		out.ColorHex = hex
	}
	out.Brand = strings.TrimSpace(f.Brand)

	return out
}
