package model

// Catalog is the lookup table of categories and board columns.
type Catalog struct {
	Categories map[int64]Category
	Columns    map[string]Column
	ordered    []Category
}

// NewCatalog indexes categories and columns. Categories keep their given order.
func NewCatalog(categories []Category, columns []Column) *Catalog {
	c := &Catalog{
		Categories: make(map[int64]Category, len(categories)),
		Columns:    make(map[string]Column, len(columns)),
		ordered:    categories,
	}
	for _, cat := range categories {
		c.Categories[cat.ID] = cat
	}
	for _, col := range columns {
		c.Columns[col.ID] = col
	}
	return c
}

// Category returns the category with id.
func (c *Catalog) Category(id int64) (Category, bool) {
	cat, ok := c.Categories[id]
	return cat, ok
}

// CategoryList returns every category in load order.
func (c *Catalog) CategoryList() []Category {
	return c.ordered
}
