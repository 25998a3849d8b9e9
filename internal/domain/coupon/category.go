package coupon

import "strings"

// Category is a marketplace service vertical a coupon can be restricted to.
type Category string

const (
	// CategoryAll is the sentinel for coupons valid on every vertical.
	CategoryAll Category = "All"

	CategoryHomestays Category = "Homestays"
	CategoryFood      Category = "Food"
	CategoryTransport Category = "Transport"
	CategoryEvents    Category = "Events"
	CategoryCreators  Category = "Creators"
)

// serviceCategories maps the service identifiers used by the booking flow to
// their verticals. Lookups are case-insensitive.
var serviceCategories = map[string]Category{
	"homestay":   CategoryHomestays,
	"homestays":  CategoryHomestays,
	"stay":       CategoryHomestays,
	"eatery":     CategoryFood,
	"eateries":   CategoryFood,
	"restaurant": CategoryFood,
	"food":       CategoryFood,
	"driver":     CategoryTransport,
	"cab":        CategoryTransport,
	"transport":  CategoryTransport,
	"event":      CategoryEvents,
	"events":     CategoryEvents,
	"creator":    CategoryCreators,
	"creators":   CategoryCreators,
}

// NormalizeService maps a service identifier to its vertical. The second
// return value reports whether the identifier is known.
func NormalizeService(service string) (Category, bool) {
	c, ok := serviceCategories[strings.ToLower(strings.TrimSpace(service))]
	return c, ok
}

// ParseCategory validates an already-normalized category name, as used in
// coupon definitions. CategoryAll and the empty string both mean unrestricted.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case "", CategoryAll:
		return CategoryAll, true
	case CategoryHomestays, CategoryFood, CategoryTransport, CategoryEvents, CategoryCreators:
		return Category(s), true
	}
	return "", false
}
