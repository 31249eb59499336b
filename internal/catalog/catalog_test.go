package catalog

import "testing"

func TestCatalog_Lookups(t *testing.T) {
	c := New([]string{"S", "M"}, map[string][]string{"M": {"black", "white"}})

	if !c.HasSize("S") || c.HasSize("XL") {
		t.Fatal("size lookup broken")
	}
	if !c.HasColor("M", "black") || c.HasColor("M", "red") || c.HasColor("S", "black") {
		t.Fatal("color lookup broken")
	}
	if got := c.Colors("S"); len(got) != 0 {
		t.Fatalf("colors for colorless size: %v", got)
	}
}

func TestSizeOrder(t *testing.T) {
	if SizeOrder("3XS") >= SizeOrder("S") || SizeOrder("S") >= SizeOrder("10XL") {
		t.Fatal("canonical run out of order")
	}
	if SizeOrder("weird") != 999 {
		t.Fatalf("unknown size rank = %d, want 999", SizeOrder("weird"))
	}
}
