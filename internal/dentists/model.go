package dentists

import "errors"

// ErrNotFound is returned when no dentist has the requested id.
var ErrNotFound = errors.New("dentist not found")

// Dentist is a clinic practitioner patients can book with.
type Dentist struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Avatar    string `json:"avatar"`
}

// Seed is the practice's standing roster. Migrations insert the same rows.
var Seed = []Dentist{
	{ID: 1, Name: "Dr. Aisha Patel", Specialty: "General & Cosmetics", Avatar: "AP"},
	{ID: 2, Name: "Dr. James Morrison", Specialty: "Orthodontics", Avatar: "JM"},
	{ID: 3, Name: "Dr. Lisa Chen", Specialty: "Pediatric Dentistry", Avatar: "LC"},
}
