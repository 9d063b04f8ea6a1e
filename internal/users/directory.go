// Package users is the user directory: profile upserts keyed by email, role
// promotion and the role lookup behind the admin gate.
package users

import (
	"context"
	"errors"
	"maps"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/harentsoaR/doctors-portal/internal/models"
	"github.com/harentsoaR/doctors-portal/internal/store"
)

var ErrNotFound = errors.New("users: user not found")

// Directory reads and writes the users collection.
type Directory struct {
	col        store.Collection
	bcryptCost int
}

// NewDirectory returns a Directory over col. A zero bcryptCost means
// bcrypt.DefaultCost.
func NewDirectory(col store.Collection, bcryptCost int) *Directory {
	return &Directory{col: col, bcryptCost: bcryptCost}
}

func (d *Directory) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := d.col.FindOne(ctx, bson.M{"email": email}, &u)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// IsAdmin reports whether email belongs to an admin. An unknown email is not
// an error, just not an admin.
func (d *Directory) IsAdmin(ctx context.Context, email string) (bool, error) {
	u, err := d.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin(), nil
}

// Upsert writes profile under email, creating the user with the regular role
// when it does not exist. The path email always wins over one in the body,
// a role in the body is ignored and a plain password is stored only as a
// bcrypt hash.
func (d *Directory) Upsert(ctx context.Context, email string, profile models.User) (*store.UpdateReceipt, error) {
	set := bson.M{}
	maps.Copy(set, profile.Extra)
	set["email"] = email

	if profile.Password != "" {
		hash, err := hashPassword(profile.Password, d.bcryptCost)
		if err != nil {
			return nil, err
		}
		set["passwordHash"] = hash
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"role": models.RoleRegular},
	}
	return d.col.UpdateOne(ctx, bson.M{"email": email}, update, true)
}

// PromoteToAdmin sets the admin role on an existing user. A missing user
// yields a receipt with MatchedCount 0.
func (d *Directory) PromoteToAdmin(ctx context.Context, email string) (*store.UpdateReceipt, error) {
	return d.col.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{"role": models.RoleAdmin}}, false)
}

func (d *Directory) List(ctx context.Context) ([]models.User, error) {
	out := []models.User{}
	if err := d.col.Find(ctx, bson.M{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
