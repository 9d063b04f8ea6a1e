package models

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleRegular = "regular"
	RoleAdmin   = "admin"
)

// User is a portal account keyed by email. Profile fields sent by the client
// are kept in Extra.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	Role         string             `bson:"role,omitempty"`
	PasswordHash string             `bson:"passwordHash,omitempty"`
	// Password is only ever read from a request body; it is never stored or sent.
	Password string `bson:"-"`
	Extra    bson.M `bson:",inline"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u User) MarshalJSON() ([]byte, error) {
	known := map[string]any{"email": u.Email}
	if !u.ID.IsZero() {
		known["_id"] = u.ID
	}
	if u.Role != "" {
		known["role"] = u.Role
	}
	return flatten(known, u.Extra)
}

func (u *User) UnmarshalJSON(data []byte) error {
	var known struct {
		Email    string `json:"email"`
		Role     string `json:"role"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	extra, err := extract(data, "_id", "email", "role", "password", "passwordHash")
	if err != nil {
		return err
	}
	*u = User{Email: known.Email, Role: known.Role, Password: known.Password, Extra: extra}
	return nil
}
