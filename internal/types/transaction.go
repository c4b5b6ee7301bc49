package types

import (
	"time"
)

// Transaction is one pump supply record in the Mongo "transactions"
// collection. Field names line up with the schema the query generator
// is prompted with, so model-built pipelines can reference them
// directly.
type Transaction struct {
	SupplyDate     time.Time  `bson:"supplyDate" json:"supplyDate"`
	SupplyTime     string     `bson:"supplyTime" json:"supplyTime"`
	FiscalDate     *time.Time `bson:"fiscalDate,omitempty" json:"fiscalDate,omitempty"`
	FiscalTime     string     `bson:"fiscalTime,omitempty" json:"fiscalTime,omitempty"`
	SupplyVsSale   string     `bson:"supplyVsSale,omitempty" json:"supplyVsSale,omitempty"`
	Nozzle         string     `bson:"nozzle,omitempty" json:"nozzle,omitempty"`
	Coupon         string     `bson:"coupon" json:"coupon"`
	EmployeeName   string     `bson:"employeeName" json:"employeeName"`
	Product        string     `bson:"product" json:"product"`
	Quantity       float64    `bson:"quantity" json:"quantity"`
	UnitPrice      float64    `bson:"unitPrice" json:"unitPrice"`
	Value          float64    `bson:"value" json:"value"`
	InitialCounter *float64   `bson:"initialCounter,omitempty" json:"initialCounter,omitempty"`
	FinalCounter   *float64   `bson:"finalCounter,omitempty" json:"finalCounter,omitempty"`
	Calibration    *bool      `bson:"calibration,omitempty" json:"calibration,omitempty"`
	MovementDate   *time.Time `bson:"movementDate,omitempty" json:"movementDate,omitempty"`
	PriceA         *float64   `bson:"priceA,omitempty" json:"priceA,omitempty"`
	PriceB         *float64   `bson:"priceB,omitempty" json:"priceB,omitempty"`
	PriceC         *float64   `bson:"priceC,omitempty" json:"priceC,omitempty"`
	Record         string     `bson:"record,omitempty" json:"record,omitempty"`
	Substitution   string     `bson:"substitution,omitempty" json:"substitution,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time  `bson:"updatedAt" json:"updatedAt"`
}
