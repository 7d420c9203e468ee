package validation

import "time"

// SalesRow is the schema of one consolidated sales row. Every field is
// optional; rules only apply to present values.
type SalesRow struct {
	OrderID         *int64     `col:"OrderID" validate:"omitempty,gt=0"`
	Product         *string    `col:"Product" validate:"omitempty,min=1"`
	QuantityOrdered *int64     `col:"QuantityOrdered" validate:"omitempty,gte=0"`
	PriceEach       *float64   `col:"PriceEach" validate:"omitempty,gte=0"`
	OrderDate       *time.Time `col:"OrderDate"`
	PurchaseAddress *string    `col:"PurchaseAddress"`
	Sales           *float64   `col:"Sales" validate:"omitempty,gte=0"`
	Hour            *int64     `col:"Hour" validate:"omitempty,min=0,max=23"`
	Month           *int64     `col:"Month" validate:"omitempty,min=1,max=12"`
	Day             *int64     `col:"Day" validate:"omitempty,min=1,max=31"`
	DayName         *string    `col:"DayName" validate:"omitempty,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	Year            *int64     `col:"Year" validate:"omitempty,min=1"`
	StreetAddress   *string    `col:"StreetAddress"`
	CityName        *string    `col:"CityName"`
	ZipAddress      *string    `col:"ZipAddress"`
	StreetName      *string    `col:"StreetName"`
	StreetNumber    *string    `col:"StreetNumber"`
	ZipCode         *string    `col:"ZipCode" validate:"omitempty,numeric"`
	StateCode       *string    `col:"StateCode" validate:"omitempty,len=2"`
}

// SeriesRow is the schema of one point of the daily sales series.
type SeriesRow struct {
	Date  *time.Time `col:"Date"`
	Sales *float64   `col:"Sales" validate:"omitempty,gte=0"`
}
