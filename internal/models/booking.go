package models

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Booking records a patient's slot for a treatment on a date. Date is kept as
// the client's calendar string (e.g. "Jan 1, 2024") and compared verbatim.
type Booking struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	TreatmentID string             `bson:"treatmentId,omitempty"`
	Treatment   string             `bson:"treatment" binding:"required"`
	Patient     string             `bson:"patient" binding:"required"`
	PatientName string             `bson:"patientName,omitempty"`
	Phone       string             `bson:"phone,omitempty"`
	Date        string             `bson:"date" binding:"required"`
	Slot        string             `bson:"slot" binding:"required"`
	Extra       bson.M             `bson:",inline"`
}

// Key returns the uniqueness filter of a booking: one per treatment, patient
// and date, whatever the slot.
func (b *Booking) Key() bson.M {
	return bson.M{"treatment": b.Treatment, "patient": b.Patient, "date": b.Date}
}

func (b Booking) MarshalJSON() ([]byte, error) {
	known := map[string]any{
		"treatment": b.Treatment,
		"patient":   b.Patient,
		"date":      b.Date,
		"slot":      b.Slot,
	}
	if !b.ID.IsZero() {
		known["_id"] = b.ID
	}
	if b.TreatmentID != "" {
		known["treatmentId"] = b.TreatmentID
	}
	if b.PatientName != "" {
		known["patientName"] = b.PatientName
	}
	if b.Phone != "" {
		known["phone"] = b.Phone
	}
	return flatten(known, b.Extra)
}

func (b *Booking) UnmarshalJSON(data []byte) error {
	var known struct {
		TreatmentID string `json:"treatmentId"`
		Treatment   string `json:"treatment"`
		Patient     string `json:"patient"`
		PatientName string `json:"patientName"`
		Phone       string `json:"phone"`
		Date        string `json:"date"`
		Slot        string `json:"slot"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := extract(data, "_id", "treatmentId", "treatment", "patient", "patientName", "phone", "date", "slot")
	if err != nil {
		return err
	}
	*b = Booking{
		TreatmentID: known.TreatmentID,
		Treatment:   known.Treatment,
		Patient:     known.Patient,
		PatientName: known.PatientName,
		Phone:       known.Phone,
		Date:        known.Date,
		Slot:        known.Slot,
		Extra:       extra,
	}
	return nil
}
