package models

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Doctor struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email" binding:"required,email"`
	Name      string             `bson:"name,omitempty"`
	Specialty string             `bson:"specialty,omitempty"`
	Img       string             `bson:"img,omitempty"`
	Extra     bson.M             `bson:",inline"`
}

func (d Doctor) MarshalJSON() ([]byte, error) {
	known := map[string]any{"email": d.Email}
	if !d.ID.IsZero() {
		known["_id"] = d.ID
	}
	if d.Name != "" {
		known["name"] = d.Name
	}
	if d.Specialty != "" {
		known["specialty"] = d.Specialty
	}
	if d.Img != "" {
		known["img"] = d.Img
	}
	return flatten(known, d.Extra)
}

func (d *Doctor) UnmarshalJSON(data []byte) error {
	var known struct {
		Email     string `json:"email"`
		Name      string `json:"name"`
		Specialty string `json:"specialty"`
		Img       string `json:"img"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := extract(data, "_id", "email", "name", "specialty", "img")
	if err != nil {
		return err
	}
	*d = Doctor{Email: known.Email, Name: known.Name, Specialty: known.Specialty, Img: known.Img, Extra: extra}
	return nil
}
