package core

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the closed set of classification tags a record can carry.
// The string value is the key persisted by every record store.
type Category string

const (
	CategoryFood          Category = "FOOD"
	CategoryHouse         Category = "HOUSE"
	CategoryClothes       Category = "CLOTHES"
	CategoryTaxi          Category = "TAXI"
	CategoryLove          Category = "LOVE"
	CategoryHealth        Category = "HEALTH"
	CategoryEducation     Category = "EDUCATION"
	CategoryEntertainment Category = "ENTERTAINMENT"
	CategoryPets          Category = "PETS"
	CategoryGifts         Category = "GIFTS"
	CategoryOthers        Category = "OTHERS"
	CategoryWork          Category = "WORK"
)

var ErrUnknownCategory = errors.New("unknown category")

// CategoryDescriptor is the canonical description of a Category.
type CategoryDescriptor struct {
	Category Category
	Name     string
	Kind     Kind
}

var descriptors = []CategoryDescriptor{
	{CategoryFood, "Food", Expense},
	{CategoryHouse, "House", Expense},
	{CategoryClothes, "Clothes", Expense},
	{CategoryTaxi, "Taxi", Expense},
	{CategoryLove, "Love", Expense},
	{CategoryHealth, "Health", Expense},
	{CategoryEducation, "Education", Expense},
	{CategoryEntertainment, "Entertainment", Expense},
	{CategoryPets, "Pets", Expense},
	{CategoryGifts, "Gifts", Expense},
	{CategoryOthers, "Others", Expense},
	{CategoryWork, "Work", Income},
}

var byKey = func() map[Category]CategoryDescriptor {
	m := make(map[Category]CategoryDescriptor, len(descriptors))
	for _, d := range descriptors {
		m[d.Category] = d
	}
	return m
}()

// ParseCategory maps a raw key to its Category. Keys are matched
// case-insensitively after trimming; anything else is ErrUnknownCategory.
func ParseCategory(key string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(key)))
	if _, ok := byKey[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, key)
	}
	return c, nil
}

// Categories returns every category, in declaration order.
func Categories() []CategoryDescriptor {
	return append([]CategoryDescriptor(nil), descriptors...)
}

// CategoriesOf returns the categories of the given kind, in declaration order.
func CategoriesOf(kind Kind) []CategoryDescriptor {
	var out []CategoryDescriptor
	for _, d := range descriptors {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Descriptor returns the canonical descriptor of c.
func (c Category) Descriptor() (CategoryDescriptor, bool) {
	d, ok := byKey[c]
	return d, ok
}

// Name returns the display name of c, or its raw key if unknown.
func (c Category) Name() string {
	if d, ok := byKey[c]; ok {
		return d.Name
	}
	return string(c)
}

// Kind returns whether c classifies expenses or income.
func (c Category) Kind() Kind {
	if d, ok := byKey[c]; ok {
		return d.Kind
	}
	return Expense
}

func (c Category) String() string {
	return string(c)
}

// Catalog resolves raw category keys found on records.
type Catalog interface {
	Resolve(key string) (CategoryDescriptor, error)
}

type staticCatalog struct{}

// DefaultCatalog returns the catalog backed by the built-in enumeration.
func DefaultCatalog() Catalog {
	return staticCatalog{}
}

func (staticCatalog) Resolve(key string) (CategoryDescriptor, error) {
	c, err := ParseCategory(key)
	if err != nil {
		return CategoryDescriptor{}, err
	}
	return byKey[c], nil
}
