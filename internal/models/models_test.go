package models

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectivePrice(t *testing.T) {
	p := Product{Price: 2500, SalePrice: 1900}
	assert.Equal(t, int64(2500), p.EffectivePrice())

	p.IsSale = true
	assert.Equal(t, int64(1900), p.EffectivePrice())
}

func TestInStock(t *testing.T) {
	assert.True(t, (&Product{Stock: 1, IsAvailable: true}).InStock())
	assert.False(t, (&Product{Stock: 0, IsAvailable: true}).InStock())
	assert.False(t, (&Product{Stock: 5, IsAvailable: false}).InStock())
}

func TestShippingCost(t *testing.T) {
	m := ShippingMethod{
		Name:                  ShippingOCA,
		BaseCost:              150000,
		CostPerKg:             20000,
		FreeShippingThreshold: sql.NullInt64{Int64: 5000000, Valid: true},
	}

	assert.Equal(t, int64(150000), m.Cost(100000, 0))
	assert.Equal(t, int64(210000), m.Cost(100000, 3))
	assert.Equal(t, int64(0), m.Cost(5000000, 3), "threshold reached: shipping is free")

	noThreshold := ShippingMethod{Name: ShippingAndreani, BaseCost: 100000, CostPerKg: 50000}
	assert.Equal(t, int64(250000), noThreshold.Cost(99999999, 3))
}

func TestCategoryIsParent(t *testing.T) {
	assert.True(t, (&Category{}).IsParent())
	assert.False(t, (&Category{ParentID: sql.NullInt64{Int64: 1, Valid: true}}).IsParent())
}
