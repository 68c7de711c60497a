package enums

// InventoryStatus describes whether an inventory unit can be bought. Units
// flip to unavailable when stock reaches zero; coming_soon units refuse sales.
type InventoryStatus string

const (
	InventoryStatusAvailable   InventoryStatus = "available"
	InventoryStatusUnavailable InventoryStatus = "unavailable"
	InventoryStatusComingSoon  InventoryStatus = "coming_soon"
)

