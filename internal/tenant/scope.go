// Package tenant restricts queries to one company.
package tenant

import "gorm.io/gorm"

// Scope is a gorm scope filtering on the company_id column of the queried table.
func Scope(companyID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("company_id = ?", companyID)
	}
}
