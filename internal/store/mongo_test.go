package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/harentsoaR/doctors-portal/internal/models"
)

func mockCollection(mt *mtest.T) *mongoCollection {
	return &mongoCollection{col: mt.Coll, timeout: time.Second}
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestMongo_InsertUnique(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	b := models.Booking{Treatment: "Teeth Cleaning", Patient: "a@x.com", Date: "Jan 1, 2024", Slot: "9:00"}
	winnerID := primitive.NewObjectID()
	winner := bson.D{
		{Key: "_id", Value: winnerID},
		{Key: "treatment", Value: "Teeth Cleaning"},
		{Key: "patient", Value: "a@x.com"},
		{Key: "date", Value: "Jan 1, 2024"},
		{Key: "slot", Value: "8:00"},
	}

	mt.Run("inserted", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: id}}}},
		))

		var existing models.Booking
		r, err := mockCollection(mt).InsertUnique(context.Background(), b.Key(), b, &existing)
		if err != nil {
			mt.Fatalf("InsertUnique: %v", err)
		}
		if r.InsertedID != id {
			mt.Errorf("InsertedID = %v, want %v", r.InsertedID, id)
		}
		if ev := mt.GetStartedEvent(); ev == nil || ev.CommandName != "update" {
			mt.Errorf("first command = %+v, want update", ev)
		}
	})

	mt.Run("already booked", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, winner),
		)

		var existing models.Booking
		r, err := mockCollection(mt).InsertUnique(context.Background(), b.Key(), b, &existing)
		if !errors.Is(err, ErrDuplicate) {
			mt.Fatalf("err = %v, want ErrDuplicate", err)
		}
		if r != nil {
			mt.Errorf("receipt = %+v, want nil", r)
		}
		if existing.ID != winnerID || existing.Slot != "8:00" {
			mt.Errorf("existing = %+v", existing)
		}
	})

	mt.Run("lost race on unique index", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, winner),
		)

		var existing models.Booking
		_, err := mockCollection(mt).InsertUnique(context.Background(), b.Key(), b, &existing)
		if !errors.Is(err, ErrDuplicate) {
			mt.Fatalf("err = %v, want ErrDuplicate", err)
		}
		if existing.ID != winnerID {
			mt.Errorf("existing = %+v, want the stored booking", existing)
		}
	})

	mt.Run("server error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad value", Name: "BadValue"}))

		var existing models.Booking
		_, err := mockCollection(mt).InsertUnique(context.Background(), b.Key(), b, &existing)
		if err == nil || errors.Is(err, ErrDuplicate) {
			mt.Errorf("err = %v, want a store failure", err)
		}
	})
}

func TestMongo_FindOne(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		var u models.User
		err := mockCollection(mt).FindOne(context.Background(), bson.M{"email": "ghost@x.com"}, &u)
		if !errors.Is(err, ErrNotFound) {
			mt.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	mt.Run("found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "email", Value: "boss@x.com"},
			{Key: "role", Value: models.RoleAdmin},
			{Key: "name", Value: "Boss"},
		}))

		var u models.User
		if err := mockCollection(mt).FindOne(context.Background(), bson.M{"email": "boss@x.com"}, &u); err != nil {
			mt.Fatal(err)
		}
		if !u.IsAdmin() || u.Extra["name"] != "Boss" {
			mt.Errorf("user = %+v", u)
		}
	})
}

func TestMongo_InsertOneDuplicate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}))

		_, err := mockCollection(mt).InsertOne(context.Background(), models.User{Email: "a@x.com"})
		if !errors.Is(err, ErrDuplicate) {
			mt.Errorf("err = %v, want ErrDuplicate", err)
		}
	})
}

func TestMongo_FindWithProjection(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("names only", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "Oral Surgery"}},
		))

		var out []models.Service
		if err := mockCollection(mt).Find(context.Background(), bson.M{}, &out, Project("name")); err != nil {
			mt.Fatal(err)
		}
		if len(out) != 1 || out[0].Name != "Oral Surgery" {
			mt.Errorf("services = %+v", out)
		}
		proj, err := mt.GetStartedEvent().Command.LookupErr("projection")
		if err != nil {
			mt.Fatalf("find sent no projection: %v", err)
		}
		if _, err := proj.Document().LookupErr("name"); err != nil {
			mt.Errorf("projection = %v", proj)
		}
	})
}
