package model

// Category classifies a bill. The set is closed; see AllCategories.
type Category string

const (
	CategoryRent        Category = "rent"
	CategoryElectricity Category = "electricity"
	CategoryGas         Category = "gas"
	CategoryWater       Category = "water"
	CategoryHeating     Category = "heating"
	CategoryCondominium Category = "condominium"
	CategoryInternet    Category = "internet"
	CategoryTax         Category = "tax"

	// Landlord-side categories.
	CategoryMaintenance Category = "maintenance"
	CategoryInsurance   Category = "insurance"
	CategoryPropertyTax Category = "property_tax"
	CategoryCleaning    Category = "cleaning"
	CategoryRentIncome  Category = "rent_income"
	CategoryDeposit     Category = "deposit"

	CategoryOther Category = "other"
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryRent,
	CategoryElectricity,
	CategoryGas,
	CategoryWater,
	CategoryHeating,
	CategoryCondominium,
	CategoryInternet,
	CategoryTax,
	CategoryMaintenance,
	CategoryInsurance,
	CategoryPropertyTax,
	CategoryCleaning,
	CategoryRentIncome,
	CategoryDeposit,
	CategoryOther,
}

// Valid reports whether c is one of AllCategories.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts a string to a Category, reporting whether it is known.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	return c, c.Valid()
}
