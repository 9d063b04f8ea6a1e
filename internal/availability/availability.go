// Package availability computes which slots of each service are still free on
// a date, given that date's bookings.
package availability

import "github.com/harentsoaR/doctors-portal/internal/models"

// Compute returns a copy of services where each service's slots exclude the
// slots taken by bookings for that service (matched by treatment name).
// Bookings are expected to be pre-filtered to a single date. Slot order is
// preserved, booked slots unknown to the service are ignored, and neither
// input is modified.
func Compute(services []models.Service, bookings []models.Booking) []models.Service {
	booked := make(map[string]map[string]struct{})
	for _, b := range bookings {
		slots, ok := booked[b.Treatment]
		if !ok {
			slots = make(map[string]struct{})
			booked[b.Treatment] = slots
		}
		slots[b.Slot] = struct{}{}
	}

	out := make([]models.Service, len(services))
	for i, svc := range services {
		taken := booked[svc.Name]
		free := make([]string, 0, len(svc.Slots))
		for _, s := range svc.Slots {
			if _, ok := taken[s]; !ok {
				free = append(free, s)
			}
		}
		svc.Slots = free
		out[i] = svc
	}
	return out
}
