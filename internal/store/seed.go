package store

import "github.com/harentsoaR/doctors-portal/internal/models"

// clinicSlots is the default half-hour grid offered by every seeded service.
var clinicSlots = []string{
	"08.00 AM - 08.30 AM",
	"08.30 AM - 09.00 AM",
	"09.00 AM - 09.30 AM",
	"09.30 AM - 10.00 AM",
	"10.00 AM - 10.30 AM",
	"10.30 AM - 11.00 AM",
	"11.00 AM - 11.30 AM",
	"11.30 AM - 12.00 PM",
	"04.00 PM - 04.30 PM",
	"04.30 PM - 05.00 PM",
	"05.00 PM - 05.30 PM",
}

// DefaultServices is the catalog loaded into the memory driver so a local
// instance has something to book.
func DefaultServices() []models.Service {
	names := []string{
		"Teeth Orthodontics",
		"Cosmetic Dentistry",
		"Teeth Cleaning",
		"Cavity Protection",
		"Pediatric Dental",
		"Oral Surgery",
	}
	out := make([]models.Service, len(names))
	for i, n := range names {
		out[i] = models.Service{Name: n, Slots: append([]string(nil), clinicSlots...)}
	}
	return out
}
