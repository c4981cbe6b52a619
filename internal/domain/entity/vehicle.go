package entity

import "time"

// Vehicle is a unit tracked through the service lifecycle.
// StateID is nil until the lifecycle engine initializes it.
type Vehicle struct {
	ID        int64     `json:"id"`
	ModelID   int64     `json:"vehicle_model_id"`
	ColorID   int64     `json:"color_id"`
	VIN       string    `json:"vin"`
	IsUrgent  bool      `json:"is_urgent"`
	StateID   *int64    `json:"state_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VehicleFilter narrows vehicle listings
type VehicleFilter struct {
	// InProgress keeps only vehicles whose current state is not final
	InProgress bool
	// VIN is a case-insensitive substring match
	VIN    string
	Limit  int
	Offset int
}

// Brand is a vehicle manufacturer
type Brand struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// VehicleType classifies models (sedan, pickup, ...)
type VehicleType struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// VehicleModel belongs to a brand and a type
type VehicleModel struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	BrandID   int64     `json:"brand_id"`
	TypeID    int64     `json:"vehicle_type_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Color is a paint color with its hex code
type Color struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	HexCode   string    `json:"hex_code"`
	CreatedAt time.Time `json:"created_at"`
}

// MonthlyRegistrations counts vehicles registered in one calendar month
type MonthlyRegistrations struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Count int `json:"count"`
}
