package domain

import "strings"

// Address is a shipping address. All fields are required.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (a Address) Trimmed() Address {
	return Address{
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

// MissingField returns the JSON name of the first blank field, or "" when the
// address is complete.
func (a Address) MissingField() string {
	t := a.Trimmed()
	switch {
	case t.Street == "":
		return "street"
	case t.City == "":
		return "city"
	case t.PostalCode == "":
		return "postalCode"
	case t.Country == "":
		return "country"
	}
	return ""
}
