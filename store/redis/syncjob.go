package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/syncjob"
)

// casScript replaces a job hash only while its status equals ARGV[1].
// Returns 1 on success, -1 when the job is missing, or the current status.
var casScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then
  return -1
end
if cur ~= ARGV[1] then
  return cur
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'data', ARGV[3])
return 1
`)

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *syncjob.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("docsync/redis: encode job: %w", err)
	}

	ok, err := s.client.HSetNX(ctx, key, "data", data).Result()
	if err != nil {
		return fmt.Errorf("docsync/redis: create job: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", docsync.ErrJobAlreadyExists, jID)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "status", string(j.Status))
	pipe.SAdd(ctx, jobIDsKey, jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("docsync/redis: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.SyncJobID) (*syncjob.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()), jobID.String())
}

func (s *Store) getJobByKey(ctx context.Context, key, jID string) (*syncjob.Job, error) {
	data, err := s.client.HGet(ctx, key, "data").Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%w: %s", docsync.ErrJobNotFound, jID)
		}
		return nil, fmt.Errorf("docsync/redis: get job: %w", err)
	}
	var j syncjob.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("docsync/redis: decode job %s: %w", jID, err)
	}
	return &j, nil
}

// CompareAndSwapJob replaces the stored job if its status is expected.
func (s *Store) CompareAndSwapJob(ctx context.Context, j *syncjob.Job, expected syncjob.Status) error {
	jID := j.ID.String()
	next := *j
	next.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("docsync/redis: encode job: %w", err)
	}

	res, err := casScript.Run(ctx, s.client, []string{jobKey(jID)},
		string(expected), string(next.Status), data).Result()
	if err != nil {
		return fmt.Errorf("docsync/redis: compare and swap job: %w", err)
	}

	switch v := res.(type) {
	case int64:
		if v == 1 {
			j.UpdatedAt = next.UpdatedAt
			return nil
		}
		return fmt.Errorf("%w: %s", docsync.ErrJobNotFound, jID)
	case string:
		return fmt.Errorf("%w: %s is %s, expected %s", docsync.ErrStatusConflict, jID, v, expected)
	default:
		return fmt.Errorf("docsync/redis: compare and swap job: unexpected reply %T", res)
	}
}

// ListJobs returns jobs matching opts, oldest first. Filtering happens
// client-side over the job ID index.
func (s *Store) ListJobs(ctx context.Context, opts syncjob.ListOpts) ([]*syncjob.Job, error) {
	all, err := s.allJobs(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*syncjob.Job, 0, len(all))
	for _, j := range all {
		if opts.Matches(j) {
			out = append(out, j)
		}
	}
	slices.SortFunc(out, func(a, b *syncjob.Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return syncjob.Page(out, opts.Offset, opts.Limit), nil
}

// CountJobs returns the number of jobs per status.
func (s *Store) CountJobs(ctx context.Context, opts syncjob.CountOpts) (map[syncjob.Status]int64, error) {
	all, err := s.allJobs(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[syncjob.Status]int64)
	for _, j := range all {
		if opts.Type != "" && j.Type != opts.Type {
			continue
		}
		counts[j.Status]++
	}
	return counts, nil
}

func (s *Store) allJobs(ctx context.Context) ([]*syncjob.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("docsync/redis: list jobs smembers: %w", err)
	}

	jobs := make([]*syncjob.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID), jID)
		if getErr != nil {
			if errors.Is(getErr, docsync.ErrJobNotFound) {
				continue
			}
			return nil, getErr
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
