package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// percentOf returns cents × percent / 100 rounded half-up to a whole cent.
func percentOf(cents int64, percent int) int64 {
	return decimal.NewFromInt(cents).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(hundred).
		Round(0).
		IntPart()
}

// DiscountPriceCents applies a percentage discount to price.
func DiscountPriceCents(priceCents int64, discountPercent int) int64 {
	if discountPercent <= 0 {
		return priceCents
	}
	if discountPercent >= 100 {
		return 0
	}
	return priceCents - percentOf(priceCents, discountPercent)
}

// TaxPriceCents is the per-unit tax owed by the shop on settlement.
func TaxPriceCents(unit models.InventoryUnit) int64 {
	if unit.TaxPercent <= 0 {
		return 0
	}
	return percentOf(unit.PriceCents, unit.TaxPercent)
}

// UnitPriceCents is the price a buyer pays for one unit.
func UnitPriceCents(unit models.InventoryUnit) int64 {
	if unit.DiscountPriceCents != nil {
		return *unit.DiscountPriceCents
	}
	if unit.DiscountPercent != nil {
		return DiscountPriceCents(unit.PriceCents, *unit.DiscountPercent)
	}
	return unit.PriceCents
}

// TotalPriceCents freezes the order total for quantity units.
func TotalPriceCents(unit models.InventoryUnit, quantity int) int64 {
	return UnitPriceCents(unit) * int64(quantity)
}

// ApplyDerived recomputes the stored discount price and the stock-driven status.
func ApplyDerived(unit *models.InventoryUnit) {
	if unit.DiscountPercent != nil && *unit.DiscountPercent > 0 {
		price := DiscountPriceCents(unit.PriceCents, *unit.DiscountPercent)
		unit.DiscountPriceCents = &price
	} else {
		unit.DiscountPriceCents = nil
	}
	if unit.Stock == 0 {
		unit.Status = enums.InventoryStatusUnavailable
	}
}
