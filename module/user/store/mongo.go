package store

import (
	"context"
	"time"

	"ProjectHub/data/database"
	"ProjectHub/data/database/mgo/mongoutil"
	"ProjectHub/module/user/model"
	"ProjectHub/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Mongo struct {
	db func() (*mongo.Database, error)
}

func NewMongo(db func() (*mongo.Database, error)) *Mongo {
	return &Mongo{db: db}
}

func (m *Mongo) coll() (*mongo.Collection, error) {
	db, err := m.db()
	if err != nil {
		return nil, err
	}
	return database.Collection(db, &model.User{}), nil
}

// EnsureIndexes cedula / email 唯一
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	c, err := m.coll()
	if err != nil {
		return err
	}
	_, err = c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "cedula", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	})
	return errs.WrapMsg(err, "ensure users indexes")
}

func (m *Mongo) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	c, err := m.coll()
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := c.FindOne(ctx, filter).Decode(&u); err != nil {
		if mongoutil.IsNotFound(err) {
			return nil, errs.ErrRecordNotFound.WrapMsg("user not found")
		}
		return nil, errs.WrapMsg(err, "find user")
	}
	return &u, nil
}

func (m *Mongo) FindByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return m.findOne(ctx, bson.M{"_id": oid})
}

func (m *Mongo) FindByCedula(ctx context.Context, cedula string) (*model.User, error) {
	return m.findOne(ctx, bson.M{"cedula": cedula})
}

func (m *Mongo) List(ctx context.Context, f Filter) ([]*model.User, int64, error) {
	c, err := m.coll()
	if err != nil {
		return nil, 0, err
	}
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	total, err := c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errs.WrapMsg(err, "count users")
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}}).SetSkip(f.Skip)
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, errs.WrapMsg(err, "list users")
	}
	out := make([]*model.User, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, errs.WrapMsg(err, "decode users")
	}
	return out, total, nil
}

func (m *Mongo) Create(ctx context.Context, u *model.User) error {
	c, err := m.coll()
	if err != nil {
		return err
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if _, err := c.InsertOne(ctx, u); err != nil {
		if mongoutil.IsDuplicate(err) {
			return errs.ErrConflict.WrapMsg("cedula or email already registered")
		}
		return errs.WrapMsg(err, "insert user")
	}
	return nil
}

func (m *Mongo) update(ctx context.Context, id string, update bson.M) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}
	c, err := m.coll()
	if err != nil {
		return err
	}
	res, err := c.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return errs.WrapMsg(err, "update user", "id", id)
	}
	if res.MatchedCount == 0 {
		return errs.ErrRecordNotFound.WrapMsg("user not found")
	}
	return nil
}

func (m *Mongo) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	return m.update(ctx, id, bson.M{"$set": bson.M{"last_login": at}})
}

func (m *Mongo) UpdatePassword(ctx context.Context, id, hash string) error {
	return m.update(ctx, id, bson.M{"$set": bson.M{"password": hash, "updated_at": time.Now().UTC()}})
}

func (m *Mongo) SetAssignedTeacher(ctx context.Context, studentID string, at *model.AssignedTeacher) error {
	if at == nil {
		return m.update(ctx, studentID, bson.M{
			"$unset": bson.M{"assigned_teacher": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		})
	}
	return m.update(ctx, studentID, bson.M{"$set": bson.M{"assigned_teacher": at, "updated_at": time.Now().UTC()}})
}

func (m *Mongo) Update(ctx context.Context, id string, u Update) (*model.User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	c, err := m.coll()
	if err != nil {
		return nil, err
	}
	set := bson.M{"updated_at": u.UpdatedAt}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Email != nil {
		set["email"] = *u.Email
	}
	if u.Role != nil {
		set["role"] = *u.Role
	}
	if u.Active != nil {
		set["is_active"] = *u.Active
	}
	var out model.User
	err = c.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	switch {
	case err == nil:
		return &out, nil
	case mongoutil.IsNotFound(err):
		return nil, errs.ErrRecordNotFound.WrapMsg("user not found")
	case mongoutil.IsDuplicate(err):
		return nil, errs.ErrConflict.WrapMsg("email already registered")
	}
	return nil, errs.WrapMsg(err, "update user", "id", id)
}

func (m *Mongo) SetProfile(ctx context.Context, id string, profile map[string]any, at time.Time) error {
	return m.update(ctx, id, bson.M{"$set": bson.M{"profile": profile, "updated_at": at}})
}

func (m *Mongo) Delete(ctx context.Context, id string) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}
	c, err := m.coll()
	if err != nil {
		return err
	}
	res, err := c.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errs.WrapMsg(err, "delete user", "id", id)
	}
	if res.DeletedCount == 0 {
		return errs.ErrRecordNotFound.WrapMsg("user not found")
	}
	return nil
}

// Summary is_active 缺省算启用，只数显式 false
func (m *Mongo) Summary(ctx context.Context) (*model.Summary, error) {
	c, err := m.coll()
	if err != nil {
		return nil, err
	}
	cur, err := c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$role"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "inactive", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{bson.D{{Key: "$eq", Value: bson.A{"$is_active", false}}}, 1, 0}},
			}}}},
		}}},
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "aggregate users")
	}
	var rows []struct {
		Role     string `bson:"_id"`
		Count    int64  `bson:"count"`
		Inactive int64  `bson:"inactive"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.WrapMsg(err, "decode user summary")
	}
	out := &model.Summary{ByRole: make(map[string]int64, len(rows))}
	for _, r := range rows {
		out.Total += r.Count
		out.Active += r.Count - r.Inactive
		out.ByRole[r.Role] = r.Count
	}
	return out, nil
}
