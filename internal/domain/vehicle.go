package domain

// VehicleClass is the tariff class a trip is requested for.
type VehicleClass string

const (
	VehicleClassNormalCar     VehicleClass = "NORMAL_CAR"
	VehicleClassLuxuryVehicle VehicleClass = "LUXURY_VEHICLE"
	VehicleClassRickshaw      VehicleClass = "RICKSHAW"
	VehicleClassMotorcycle    VehicleClass = "MOTORCYCLE"
	VehicleClassTaxi          VehicleClass = "TAXI"
	VehicleClassVan           VehicleClass = "VAN"
)

// Valid reports whether c is a known vehicle class.
func (c VehicleClass) Valid() bool {
	switch c {
	case VehicleClassNormalCar, VehicleClassLuxuryVehicle, VehicleClassRickshaw,
		VehicleClassMotorcycle, VehicleClassTaxi, VehicleClassVan:
		return true
	}
	return false
}

// Vehicle represents a vehicle registered to a driver.
type Vehicle struct {
	ID          string
	DriverID    string
	Class       VehicleClass
	PlateNumber string
	IsActive    bool
	IsVerified  bool
}

// Usable reports whether the vehicle may be assigned to a trip.
func (v *Vehicle) Usable() bool {
	return v.IsActive && v.IsVerified
}
