package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // register the "pgx" database/sql driver
	goredis "github.com/redis/go-redis/v9"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gopkg.in/natefinch/lumberjack.v2"
	_ "modernc.org/sqlite" // register the "sqlite" database/sql driver

	"github.com/xraph/docsync"
	audithook "github.com/xraph/docsync/audit_hook"
	"github.com/xraph/docsync/document"
	docmem "github.com/xraph/docsync/document/memory"
	"github.com/xraph/docsync/document/sqldoc"
	"github.com/xraph/docsync/engine"
	"github.com/xraph/docsync/queue"
	redisqueue "github.com/xraph/docsync/queue/redis"
	"github.com/xraph/docsync/store"
	"github.com/xraph/docsync/store/memory"
	mongostore "github.com/xraph/docsync/store/mongo"
	"github.com/xraph/docsync/store/postgres"
	redisstore "github.com/xraph/docsync/store/redis"
	"github.com/xraph/docsync/store/sqlite"
	streamhook "github.com/xraph/docsync/stream_hook"
)

// runtime holds an engine and the connections opened for it.
type runtime struct {
	eng      *engine.Engine
	accessor document.Accessor
	closers  []func() error
}

// openRuntime connects the configured store, queue and document accessor
// and builds an engine over them.
func openRuntime(ctx context.Context, c *Config, logger *slog.Logger) (rt *runtime, err error) {
	rt = &runtime{}
	defer func() {
		if err != nil {
			_ = rt.closeAll()
		}
	}()

	var redisClient *goredis.Client
	redis := func(url string) (*goredis.Client, error) {
		if redisClient != nil {
			return redisClient, nil
		}
		opts, err := goredis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = goredis.NewClient(opts)
		rt.closers = append(rt.closers, redisClient.Close)
		return redisClient, nil
	}

	st, err := rt.openStore(ctx, c.Store, logger, redis)
	if err != nil {
		return nil, err
	}

	opts := []docsync.Option{
		docsync.WithLogger(logger),
		docsync.WithStore(st),
		docsync.WithConcurrency(c.Worker.Concurrency),
		docsync.WithQueues(c.Worker.Queues),
		docsync.WithPollInterval(c.Worker.PollInterval),
		docsync.WithShutdownTimeout(c.Worker.ShutdownTimeout),
		docsync.WithSweep(c.Worker.SweepInterval, c.Worker.SweepThreshold),
	}

	q, err := openQueue(c.Queue, c.Worker, logger, redis)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if q != nil {
		opts = append(opts, docsync.WithQueue(q))
	}

	rt.accessor, err = openAccessor(c.Documents, rt)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	s, err := docsync.New(opts...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	engOpts := []engine.Option{engine.WithAccessor(rt.accessor)}
	for _, l := range c.Queue.Limits {
		engOpts = append(engOpts, engine.WithQueueConfig(queue.Config{
			Name:           l.Name,
			MaxConcurrency: l.MaxConcurrency,
			RateLimit:      l.RateLimit,
			RateBurst:      l.RateBurst,
		}))
	}
	if c.Audit.File != "" {
		w := &lumberjack.Logger{Filename: c.Audit.File, MaxSize: 100, MaxBackups: 5}
		rt.closers = append(rt.closers, w.Close)
		engOpts = append(engOpts, engine.WithExtension(
			audithook.New(audithook.NewWriterRecorder(w), audithook.WithLogger(logger)),
		))
	}
	if c.Events.Stream != "" {
		client, err := redis(c.Events.URL)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		pub := streamhook.NewRedisPublisher(client, c.Events.Stream, streamhook.WithMaxLen(c.Events.MaxLen))
		engOpts = append(engOpts, engine.WithExtension(streamhook.New(pub)))
	}
	rt.eng, err = engine.Build(s, engOpts...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) openStore(ctx context.Context, c BackendConfig, logger *slog.Logger, redis func(string) (*goredis.Client, error)) (store.Store, error) {
	switch c.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.Open(c.DSN, sqlite.WithLogger(logger))
	case "postgres":
		return postgres.New(ctx, c.DSN, postgres.WithLogger(logger))
	case "redis":
		client, err := redis(c.DSN)
		if err != nil {
			return nil, err
		}
		return redisstore.New(client, redisstore.WithLogger(logger)), nil
	case "mongo":
		client, err := mongod.Connect(options.Client().ApplyURI(c.DSN))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		rt.closers = append(rt.closers, func() error {
			return client.Disconnect(context.WithoutCancel(ctx))
		})
		return mongostore.New(client.Database(c.Database), mongostore.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", docsync.ErrConfiguration, c.Driver)
	}
}

// openQueue returns nil for the memory driver; the engine then creates an
// in-process queue.
func openQueue(c QueueConfig, w WorkerConfig, logger *slog.Logger, redis func(string) (*goredis.Client, error)) (queue.Queue, error) {
	switch c.Driver {
	case "", "memory":
		return nil, nil
	case "redis":
		client, err := redis(c.URL)
		if err != nil {
			return nil, err
		}
		codec, err := queue.CodecByName(c.Codec)
		if err != nil {
			return nil, err
		}
		return redisqueue.New(client,
			redisqueue.WithCodec(codec),
			redisqueue.WithPollInterval(w.PollInterval),
			redisqueue.WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("%w: unknown queue driver %q", docsync.ErrConfiguration, c.Driver)
	}
}

func openAccessor(c BackendConfig, rt *runtime) (document.Accessor, error) {
	var (
		driver string
		opts   []sqldoc.Option
	)
	switch c.Driver {
	case "memory":
		return docmem.New(), nil
	case "sqlite":
		driver = "sqlite"
	case "postgres":
		driver = "pgx"
		opts = append(opts, sqldoc.WithDollarPlaceholders())
	default:
		return nil, fmt.Errorf("%w: unknown documents driver %q", docsync.ErrConfiguration, c.Driver)
	}

	db, err := sql.Open(driver, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("open documents database: %w", err)
	}
	rt.closers = append(rt.closers, db.Close)
	return sqldoc.New(db, opts...), nil
}

// migrate runs store migrations and creates the documents table.
func (rt *runtime) migrate(ctx context.Context) error {
	if err := rt.eng.Store().Migrate(ctx); err != nil {
		return err
	}
	if m, ok := rt.accessor.(interface{ Migrate(context.Context) error }); ok {
		return m.Migrate(ctx)
	}
	return nil
}

// Close stops the engine, which closes the queue and store, then closes
// the remaining connections.
func (rt *runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.eng != nil {
		errs = append(errs, rt.eng.Stop(ctx))
	}
	errs = append(errs, rt.closeAll())
	return errors.Join(errs...)
}

func (rt *runtime) closeAll() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// withRuntime opens a runtime for the duration of fn.
func withRuntime(ctx context.Context, fn func(*runtime) error) error {
	rt, err := openRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("close runtime", slog.String("error", cerr.Error()))
		}
	}()
	return fn(rt)
}
