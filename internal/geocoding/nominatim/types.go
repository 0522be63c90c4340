package nominatim

// ReverseResult is a reverse geocoding result (format=jsonv2). When nothing is
// found at the coordinates Nominatim answers 200 with only Error set.
type ReverseResult struct {
	PlaceID     int64   `json:"place_id"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	Address     Address `json:"address"`
	Error       string  `json:"error,omitempty"`
}

// Address contains structured address components from Nominatim.
type Address struct {
	Road        string `json:"road,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`
	Suburb      string `json:"suburb,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}
