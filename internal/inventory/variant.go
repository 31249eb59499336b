package inventory

import "encoding/json"

// ColorNone marks a variant whose size is sold without a color choice.
const ColorNone = "none"

const stockPrefix = "stock/"

// VariantKey identifies one purchasable size/color combination.
type VariantKey struct {
	Size  string `json:"size"`
	Color string `json:"color"`
}

func NewVariantKey(size, color string) VariantKey {
	if color == "" {
		color = ColorNone
	}
	return VariantKey{Size: size, Color: color}
}

func (k VariantKey) String() string {
	if k.Color == ColorNone {
		return k.Size
	}
	return k.Size + "/" + k.Color
}

func (k VariantKey) storeKey() string {
	return stockPrefix + k.Size + "/" + k.Color
}

// StockRecord is the persisted counter pair for one variant.
// Invariant: QtyReserved <= QtyTotal, enforced by every ledger mutation.
type StockRecord struct {
	Key         VariantKey `json:"key"`
	QtyTotal    uint32     `json:"qty_total"`
	QtyReserved uint32     `json:"qty_reserved"`
}

func (r StockRecord) Available() uint32 {
	return r.QtyTotal - r.QtyReserved
}

func encodeRecord(r StockRecord) ([]byte, error) { return json.Marshal(r) }
func decodeRecord(b []byte) (StockRecord, error) {
	var r StockRecord
	err := json.Unmarshal(b, &r)
	return r, err
}
