// Package booking records bookings, enforcing one booking per treatment,
// patient and date, and serves them back to their owners.
package booking

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/doctors-portal/internal/models"
	"github.com/harentsoaR/doctors-portal/internal/store"
)

// ErrForbidden is returned when a caller asks for someone else's bookings.
var ErrForbidden = errors.New("booking: forbidden")

// Notifier is told about every accepted booking. It must not block.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b models.Booking)
}

// Outcome is the result of Create. A rejected duplicate is a normal outcome,
// not an error: Accepted is false and Existing holds the booking already on
// record.
type Outcome struct {
	Accepted bool
	Existing *models.Booking
	Stored   *store.InsertReceipt
}

type Registry struct {
	col      store.Collection
	notifier Notifier
}

// Option configures a Registry.
type Option func(*Registry)

func WithNotifier(n Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

func NewRegistry(col store.Collection, opts ...Option) *Registry {
	r := &Registry{col: col}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create stores b unless the patient already holds a booking for the same
// treatment on the same date; the slot is not part of that check. The check
// and the insert are one conditional write in the store.
//
// Nothing stops two different patients from taking the same slot.
func (r *Registry) Create(ctx context.Context, b models.Booking) (*Outcome, error) {
	b.ID = primitive.NilObjectID

	var existing models.Booking
	receipt, err := r.col.InsertUnique(ctx, b.Key(), b, &existing)
	if errors.Is(err, store.ErrDuplicate) {
		return &Outcome{Accepted: false, Existing: &existing}, nil
	}
	if err != nil {
		return nil, err
	}

	if r.notifier != nil {
		if id, ok := receipt.InsertedID.(primitive.ObjectID); ok {
			b.ID = id
		}
		r.notifier.BookingConfirmed(ctx, b)
	}
	return &Outcome{Accepted: true, Stored: receipt}, nil
}

// ListByPatient returns patient's bookings. callerEmail must be the verified
// identity of the requester and must equal patient.
func (r *Registry) ListByPatient(ctx context.Context, patient, callerEmail string) ([]models.Booking, error) {
	if callerEmail == "" || callerEmail != patient {
		return nil, ErrForbidden
	}
	return r.find(ctx, bson.M{"patient": patient})
}

// ForDate returns every booking on date.
func (r *Registry) ForDate(ctx context.Context, date string) ([]models.Booking, error) {
	return r.find(ctx, bson.M{"date": date})
}

func (r *Registry) find(ctx context.Context, filter bson.M) ([]models.Booking, error) {
	out := []models.Booking{}
	if err := r.col.Find(ctx, filter, &out); err != nil {
		return nil, err
	}
	return out, nil
}
