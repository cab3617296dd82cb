package models

// Status is a row of the inventory status catalog.
type Status struct {
	Name                string `gorm:"column:name;primaryKey"`
	Description         string `gorm:"column:description;not null;default:''"`
	RequiresContainment bool   `gorm:"column:requires_containment;not null;default:false"`
	Terminal            bool   `gorm:"column:terminal;not null;default:false"`
	SortOrder           int    `gorm:"column:sort_order;not null;default:0"`
}
