package store

import (
	"context"

	"ProjectHub/data/database"
	"ProjectHub/data/database/mgo/mongoutil"
	"ProjectHub/module/project/model"
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
	return database.Collection(db, &model.Project{}), nil
}

func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	c, err := m.coll()
	if err != nil {
		return err
	}
	_, err = c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "metadata.status", Value: 1}, {Key: "updated_at", Value: -1}}},
		{Keys: bson.D{{Key: "authors.user_id", Value: 1}}},
		{Keys: bson.D{{Key: "evaluation.assigned_to", Value: 1}}},
	})
	return errs.WrapMsg(err, "ensure projects indexes")
}

func (m *Mongo) Create(ctx context.Context, p *model.Project) error {
	c, err := m.coll()
	if err != nil {
		return err
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err = c.InsertOne(ctx, p)
	return errs.WrapMsg(err, "insert project")
}

func (m *Mongo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	c, err := m.coll()
	if err != nil {
		return nil, err
	}
	var p model.Project
	if err := c.FindOne(ctx, bson.M{"_id": oid}).Decode(&p); err != nil {
		if mongoutil.IsNotFound(err) {
			return nil, errs.ErrRecordNotFound.WrapMsg("project not found", "id", id)
		}
		return nil, errs.WrapMsg(err, "find project")
	}
	return &p, nil
}

func buildFilter(f Filter) bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["metadata.status"] = f.Status
	}
	if f.AuthorID != "" {
		q["authors.user_id"] = f.AuthorID
	}
	if f.AssignedTo != "" {
		q["evaluation.assigned_to"] = f.AssignedTo
	}
	return q
}

func (m *Mongo) List(ctx context.Context, f Filter) ([]*model.Project, error) {
	c, err := m.coll()
	if err != nil {
		return nil, err
	}
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = "updated_at"
	}
	opts := options.Find().SetSort(bson.D{{Key: sortBy, Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cur, err := c.Find(ctx, buildFilter(f), opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "list projects")
	}
	out := make([]*model.Project, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode projects")
	}
	return out, nil
}

func (m *Mongo) Update(ctx context.Context, id string, u Update) (*model.Project, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	c, err := m.coll()
	if err != nil {
		return nil, err
	}
	set := bson.M{"updated_at": u.UpdatedAt, "metadata.last_modified": u.UpdatedAt}
	if u.Status != nil {
		set["metadata.status"] = *u.Status
	}
	if u.Grade != nil {
		set["grade"] = *u.Grade
	}
	if u.GradeType != nil {
		set["grade_type"] = *u.GradeType
	}
	if u.GradedAt != nil {
		set["graded_at"] = *u.GradedAt
	}
	if u.GradedBy != nil {
		set["graded_by"] = *u.GradedBy
	}
	if u.PublishedAt != nil {
		set["published_at"] = *u.PublishedAt
	}

	filter := bson.M{"_id": oid}
	if len(u.FromStatus) > 0 {
		filter["metadata.status"] = bson.M{"$in": u.FromStatus}
	}
	var p model.Project
	err = c.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&p)
	if err != nil {
		if !mongoutil.IsNotFound(err) {
			return nil, errs.WrapMsg(err, "update project")
		}
		if len(u.FromStatus) == 0 {
			return nil, errs.ErrRecordNotFound.WrapMsg("project not found", "id", id)
		}
		// 没命中：区分记录不存在和状态不符
		cur, ferr := m.FindByID(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		return nil, statusMismatch(id, cur.Metadata.Status, u.FromStatus)
	}
	return &p, nil
}

func (m *Mongo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	c, err := m.coll()
	if err != nil {
		return nil, err
	}
	cur, err := c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$metadata.status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "count projects by status")
	}
	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.WrapMsg(err, "decode status counts")
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
