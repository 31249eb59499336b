package catalog

// Catalog holds the configured size/color space of the single product line.
// It is loaded from configuration at startup; the ledger and the workflow
// consult it but never mutate it.
type Catalog struct {
	sizes  []string
	colors map[string][]string
}

// DefaultSizes is the canonical size run, smallest first.
var DefaultSizes = []string{
	"3XS", "2XS", "XS", "S", "M", "L",
	"XL", "2XL", "3XL", "4XL", "5XL", "6XL", "7XL", "8XL", "9XL", "10XL",
}

var sizeRank = func() map[string]int {
	m := make(map[string]int, len(DefaultSizes))
	for i, s := range DefaultSizes {
		m[s] = i + 1
	}
	return m
}()

func New(sizes []string, colors map[string][]string) *Catalog {
	c := &Catalog{
		sizes:  append([]string(nil), sizes...),
		colors: make(map[string][]string, len(colors)),
	}
	for size, cs := range colors {
		c.colors[size] = append([]string(nil), cs...)
	}
	return c
}

func (c *Catalog) Sizes() []string { return c.sizes }

// Colors returns the colors offered for a size; empty means the size is sold
// without a color choice.
func (c *Catalog) Colors(size string) []string { return c.colors[size] }

func (c *Catalog) HasSize(size string) bool {
	for _, s := range c.sizes {
		if s == size {
			return true
		}
	}
	return false
}

func (c *Catalog) HasColor(size, color string) bool {
	for _, col := range c.colors[size] {
		if col == color {
			return true
		}
	}
	return false
}

// SizeOrder ranks a size for display sorting. Unknown sizes sort last.
func SizeOrder(size string) int {
	if r, ok := sizeRank[size]; ok {
		return r
	}
	return 999
}
