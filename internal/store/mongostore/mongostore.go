// Package mongostore implements store.Store on mongodb.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	report_insert_many = "insert-many"
	report_indexes     = "create-indexes"
)

const (
	collStudents  = "students"
	collGrades    = "grades"
	collProgress  = "progress"
	collSummaries = "summaries"
	collTokens    = "tokens"
	collCounters  = "counters"
)

type Store struct {
	client    *mongo.Client
	database  *mongo.Database
	students  *mongo.Collection
	grades    *mongo.Collection
	progress  *mongo.Collection
	summaries *mongo.Collection
	tokens    *mongo.Collection
	counters  *mongo.Collection
	tel       telemetry.API
}

var (
	_ store.Store      = (*Store)(nil)
	_ store.TokenStore = (*Store)(nil)
)

// Open connects to the mongodb at uri and prepares the collections of database.
func Open(ctx context.Context, uri, database string, tel telemetry.API) (*Store, error) {
	assert.NotNil(tel, "tel")
	assert.NotEmptyStr(database, "database")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	err = client.Ping(ctx, nil)
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:    client,
		database:  db,
		students:  db.Collection(collStudents),
		grades:    db.Collection(collGrades),
		progress:  db.Collection(collProgress),
		summaries: db.Collection(collSummaries),
		tokens:    db.Collection(collTokens),
		counters:  db.Collection(collCounters),
		tel:       telemetry.NewScopedAPI("mongostore", tel),
	}

	err = s.createCollections(ctx)
	if err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	err = s.createIndexes(ctx)
	if err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes the whole database, it is used by tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.database.Drop(ctx)
}

// the validators hold the record collections to the same rules as the sql schema
var validators = map[string]bson.M{
	collStudents: {
		"required": bson.A{"owner", "student_id", "full_name", "class_code", "faculty"},
		"properties": bson.M{
			"student_id": bson.M{"bsonType": "string", "minLength": 1},
		},
	},
	collGrades: {
		"required": bson.A{"owner", "student_id", "course_name", "credits", "semester"},
		"properties": bson.M{
			"course_name": bson.M{"bsonType": "string", "minLength": 1},
			"semester":    bson.M{"bsonType": "string", "minLength": 1},
			"credits":     bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
			"score": bson.M{"oneOf": bson.A{
				bson.M{"bsonType": "null"},
				bson.M{"bsonType": "double", "minimum": 0, "maximum": 10},
			}},
		},
	},
	collProgress: {
		"required": bson.A{"owner", "student_id", "course_name", "semester", "credits"},
		"properties": bson.M{
			"course_name": bson.M{"bsonType": "string", "minLength": 1},
			"semester":    bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
			"credits":     bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
			"letter_grade": bson.M{"enum": bson.A{"A", "B", "C", "D", "E", "F"}},
			"grade_4": bson.M{"oneOf": bson.A{
				bson.M{"bsonType": "null"},
				bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0, "maximum": 4},
			}},
		},
	},
	collSummaries: {
		"required": bson.A{"owner", "student_id", "semester"},
		"properties": bson.M{
			"semester": bson.M{"bsonType": "string", "minLength": 1},
		},
	},
}

func (s *Store) createCollections(ctx context.Context) error {
	for name, schema := range validators {
		err := s.database.CreateCollection(
			ctx,
			name,
			options.CreateCollection().SetValidator(bson.M{"$jsonSchema": schema}),
		)
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Name == "NamespaceExists" {
			continue
		}
		if err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.students.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "student_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create student index: %w", err)
	}
	for _, coll := range []*mongo.Collection{s.grades, s.progress, s.summaries} {
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "owner", Value: 1}, {Key: "student_id", Value: 1}, {Key: "id", Value: 1}},
		})
		if err != nil {
			s.tel.ReportWarning(report_indexes, coll.Name(), err)
		}
	}
	_, err = s.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner", Value: 1}},
	})
	if err != nil {
		s.tel.ReportWarning(report_indexes, collTokens, err)
	}
	return nil
}

func studentFilter(owner, studentID string) bson.M {
	return bson.M{"owner": owner, "student_id": studentID}
}

// reserveIds allocates n consecutive ids from the named sequence and returns the first.
func (s *Store) reserveIds(ctx context.Context, sequence string, n int) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": sequence},
		bson.M{"$inc": bson.M{"seq": int64(n)}},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("reserve %d ids: %w", n, err)
	}
	return counter.Seq - int64(n) + 1, nil
}

// insertMany writes all documents unordered so one bad document does not stop the others,
// then returns the records whose documents were written.
func insertMany[T any](ctx context.Context, s *Store, coll *mongo.Collection, records []T) ([]T, error) {
	if len(records) == 0 {
		return []T{}, nil
	}

	docs := make([]any, len(records))
	for i, r := range records {
		docs[i] = r
	}

	_, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return records, nil
	}

	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) || bulkErr.WriteConcernError != nil {
		return nil, err
	}

	failed := map[int]struct{}{}
	for _, writeErr := range bulkErr.WriteErrors {
		failed[writeErr.Index] = struct{}{}
		s.tel.ReportWarning(report_insert_many, coll.Name(), writeErr.Index, writeErr.Message)
	}
	out := make([]T, 0, len(records)-len(failed))
	for i, r := range records {
		if _, ok := failed[i]; !ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func find[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	err = cursor.All(ctx, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetStudent(ctx context.Context, owner, studentID string) (store.Student, error) {
	var student store.Student
	err := s.students.FindOne(ctx, studentFilter(owner, studentID)).Decode(&student)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Student{}, store.ErrNotFound
	}
	if err != nil {
		return store.Student{}, err
	}
	student.SyncedAt = student.SyncedAt.UTC()
	return student, nil
}

func (s *Store) ListStudents(ctx context.Context, owner string) ([]store.Student, error) {
	students, err := find[store.Student](
		ctx,
		s.students,
		bson.M{"owner": owner},
		options.Find().SetSort(bson.D{{Key: "student_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	for i := range students {
		students[i].SyncedAt = students[i].SyncedAt.UTC()
	}
	return students, nil
}

func (s *Store) InsertStudent(ctx context.Context, student store.Student) (store.Student, error) {
	if student.SyncedAt.IsZero() {
		student.SyncedAt = time.Now()
	}
	// mongodb keeps millisecond precision, the sql store keeps seconds
	student.SyncedAt = student.SyncedAt.Truncate(time.Second).UTC()
	_, err := s.students.InsertOne(ctx, student)
	if err != nil {
		return store.Student{}, fmt.Errorf("insert student: %w", err)
	}
	return student, nil
}

// DeleteStudent removes the dependent records first, mongodb has no cascading deletes.
func (s *Store) DeleteStudent(ctx context.Context, owner, studentID string) error {
	filter := studentFilter(owner, studentID)
	for _, coll := range []*mongo.Collection{s.grades, s.progress, s.summaries} {
		_, err := coll.DeleteMany(ctx, filter)
		if err != nil {
			return fmt.Errorf("delete %s: %w", coll.Name(), err)
		}
	}
	res, err := s.students.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) InsertGrades(ctx context.Context, grades []store.Grade) ([]store.Grade, error) {
	if len(grades) == 0 {
		return []store.Grade{}, nil
	}
	first, err := s.reserveIds(ctx, collGrades, len(grades))
	if err != nil {
		return nil, err
	}
	records := make([]store.Grade, len(grades))
	for i, g := range grades {
		g.ID = first + int64(i)
		records[i] = g
	}
	return insertMany(ctx, s, s.grades, records)
}

func byId() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "id", Value: 1}})
}

func (s *Store) ListGrades(ctx context.Context, owner, studentID string) ([]store.Grade, error) {
	return find[store.Grade](ctx, s.grades, studentFilter(owner, studentID), byId())
}

func (s *Store) InsertProgress(ctx context.Context, progress []store.Progress) ([]store.Progress, error) {
	if len(progress) == 0 {
		return []store.Progress{}, nil
	}
	first, err := s.reserveIds(ctx, collProgress, len(progress))
	if err != nil {
		return nil, err
	}
	records := make([]store.Progress, len(progress))
	for i, p := range progress {
		p.ID = first + int64(i)
		records[i] = p
	}
	return insertMany(ctx, s, s.progress, records)
}

func (s *Store) ListProgress(ctx context.Context, owner, studentID string) ([]store.Progress, error) {
	return find[store.Progress](
		ctx,
		s.progress,
		studentFilter(owner, studentID),
		options.Find().SetSort(bson.D{{Key: "semester", Value: 1}, {Key: "id", Value: 1}}),
	)
}

func (s *Store) InsertSummaries(ctx context.Context, summaries []store.Summary) ([]store.Summary, error) {
	if len(summaries) == 0 {
		return []store.Summary{}, nil
	}
	first, err := s.reserveIds(ctx, collSummaries, len(summaries))
	if err != nil {
		return nil, err
	}
	records := make([]store.Summary, len(summaries))
	for i, sm := range summaries {
		sm.ID = first + int64(i)
		records[i] = sm
	}
	return insertMany(ctx, s, s.summaries, records)
}

func (s *Store) ListSummaries(ctx context.Context, owner, studentID string) ([]store.Summary, error) {
	return find[store.Summary](ctx, s.summaries, studentFilter(owner, studentID), byId())
}

func (s *Store) distinct(ctx context.Context, field, owner string) ([]string, error) {
	values, err := s.students.Distinct(ctx, field, bson.M{"owner": owner, field: bson.M{"$ne": ""}})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Stats(ctx context.Context, owner string) (store.Stats, error) {
	count, err := s.students.CountDocuments(ctx, bson.M{"owner": owner})
	if err != nil {
		return store.Stats{}, err
	}
	faculties, err := s.distinct(ctx, "faculty", owner)
	if err != nil {
		return store.Stats{}, err
	}
	majors, err := s.distinct(ctx, "major", owner)
	if err != nil {
		return store.Stats{}, err
	}
	return store.NewStats(count, faculties, majors), nil
}

func (s *Store) CreateToken(ctx context.Context, token store.Token) error {
	if token.Owner == "" {
		return fmt.Errorf("token has no owner")
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	_, err := s.tokens.InsertOne(ctx, token)
	return err
}

func (s *Store) GetToken(ctx context.Context, hash string) (store.Token, error) {
	var token store.Token
	err := s.tokens.FindOne(ctx, bson.M{"_id": hash}).Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Token{}, store.ErrNotFound
	}
	if err != nil {
		return store.Token{}, err
	}
	token.CreatedAt = token.CreatedAt.UTC()
	if token.ExpiresAt != nil {
		expires := token.ExpiresAt.UTC()
		token.ExpiresAt = &expires
	}
	return token, nil
}

func (s *Store) DeleteToken(ctx context.Context, hash string) (bool, error) {
	res, err := s.tokens.DeleteOne(ctx, bson.M{"_id": hash})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) TokenOwners(ctx context.Context) ([]string, error) {
	values, err := s.tokens.Distinct(ctx, "owner", bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	sort.Strings(out)
	return out, nil
}
