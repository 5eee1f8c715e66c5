package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/syncjob"
)

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *syncjob.Job) error {
	m, err := toJobModel(j)
	if err != nil {
		return err
	}
	if _, err := s.db.Collection(colJobs).InsertOne(ctx, m); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", docsync.ErrJobAlreadyExists, j.ID)
		}
		return fmt.Errorf("docsync/mongo: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.SyncJobID) (*syncjob.Job, error) {
	var m jobModel
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("%w: %s", docsync.ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("docsync/mongo: get job: %w", err)
	}
	return fromJobModel(&m)
}

// CompareAndSwapJob replaces the document only while its status equals
// expected.
func (s *Store) CompareAndSwapJob(ctx context.Context, j *syncjob.Job, expected syncjob.Status) error {
	now := time.Now().UTC()
	next := *j
	next.UpdatedAt = now
	m, err := toJobModel(&next)
	if err != nil {
		return err
	}

	col := s.db.Collection(colJobs)
	res, err := col.ReplaceOne(ctx, bson.M{"_id": m.ID, "status": string(expected)}, m)
	if err != nil {
		return fmt.Errorf("docsync/mongo: compare and swap job: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.casMiss(ctx, j.ID, expected)
	}
	j.UpdatedAt = now
	return nil
}

// casMiss explains a compare-and-swap that matched nothing.
func (s *Store) casMiss(ctx context.Context, jobID id.SyncJobID, expected syncjob.Status) error {
	var cur struct {
		Status string `bson:"status"`
	}
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID.String()},
		options.FindOne().SetProjection(bson.M{"status": 1})).Decode(&cur)
	if err != nil {
		if isNoDocuments(err) {
			return fmt.Errorf("%w: %s", docsync.ErrJobNotFound, jobID)
		}
		return fmt.Errorf("docsync/mongo: compare and swap job: %w", err)
	}
	return fmt.Errorf("%w: %s is %s, expected %s", docsync.ErrStatusConflict, jobID, cur.Status, expected)
}

// ListJobs returns jobs matching opts, oldest first.
func (s *Store) ListJobs(ctx context.Context, opts syncjob.ListOpts) ([]*syncjob.Job, error) {
	findOpts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "_id", Value: 1},
	})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colJobs).Find(ctx, jobFilter(opts), findOpts)
	if err != nil {
		return nil, fmt.Errorf("docsync/mongo: list jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var models []jobModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("docsync/mongo: list jobs decode: %w", err)
	}
	jobs := make([]*syncjob.Job, 0, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// CountJobs returns the number of jobs per status.
func (s *Store) CountJobs(ctx context.Context, opts syncjob.CountOpts) (map[syncjob.Status]int64, error) {
	pipeline := mongod.Pipeline{
		{{Key: "$match", Value: jobFilter(syncjob.ListOpts{Type: opts.Type})}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := s.db.Collection(colJobs).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("docsync/mongo: count jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		N      int64  `bson:"n"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("docsync/mongo: count jobs decode: %w", err)
	}
	counts := make(map[syncjob.Status]int64, len(rows))
	for _, r := range rows {
		counts[syncjob.Status(r.Status)] = r.N
	}
	return counts, nil
}

func jobFilter(opts syncjob.ListOpts) bson.M {
	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.Type != "" {
		filter["sync_job_type"] = opts.Type
	}
	if !opts.Parent.IsNil() {
		filter["parent_job"] = opts.Parent.String()
	}
	if opts.Queue != "" {
		filter["queue"] = opts.Queue
	}
	if !opts.UpdatedBefore.IsZero() {
		filter["updated_at"] = bson.M{"$lt": opts.UpdatedBefore.UTC()}
	}
	return filter
}
