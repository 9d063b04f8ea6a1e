package models

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Service is a bookable treatment with its ordered list of slot labels.
type Service struct {
	ID    primitive.ObjectID `bson:"_id,omitempty"`
	Name  string             `bson:"name"`
	Slots []string           `bson:"slots,omitempty"`
	Extra bson.M             `bson:",inline"`
}

func (s Service) MarshalJSON() ([]byte, error) {
	known := map[string]any{"name": s.Name}
	if !s.ID.IsZero() {
		known["_id"] = s.ID
	}
	if s.Slots != nil {
		known["slots"] = s.Slots
	}
	return flatten(known, s.Extra)
}

func (s *Service) UnmarshalJSON(data []byte) error {
	var known struct {
		ID    primitive.ObjectID `json:"_id"`
		Name  string             `json:"name"`
		Slots []string           `json:"slots"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := extract(data, "_id", "name", "slots")
	if err != nil {
		return err
	}
	*s = Service{ID: known.ID, Name: known.Name, Slots: known.Slots, Extra: extra}
	return nil
}
