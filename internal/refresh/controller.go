package refresh

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/guiyumin/vfeed/internal/cache"
	"github.com/guiyumin/vfeed/internal/extractor"
	"github.com/guiyumin/vfeed/internal/logging"
	"github.com/guiyumin/vfeed/internal/twitter"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL matches the historical CACHE_EXPIRE default of 6000 seconds
	DefaultTTL          = 6000 * time.Second
	DefaultFetchTimeout = 20 * time.Second

	flightKey = "refresh"
)

// Fetcher returns the raw upstream payload for a query
type Fetcher interface {
	Fetch(ctx context.Context, q twitter.Query) ([]byte, error)
}

// Extractor normalizes a raw payload; it returns the records and the name
// of the strategy that found them.
type Extractor interface {
	Extract(raw []byte) ([]extractor.Record, string)
}

// Options configures a Controller
type Options struct {
	Query        twitter.Query
	TTL          time.Duration
	FetchTimeout time.Duration

	// OverwriteOnEmpty replaces the snapshot with an empty list when a
	// successful response contains no media. By default the previous
	// snapshot is kept.
	OverwriteOnEmpty bool

	Now      func() time.Time
	Logger   logrus.FieldLogger
	Observer Observer
}

// Outcome describes one refresh attempt
type Outcome struct {
	Kind     Kind
	Strategy string
	Records  []extractor.Record // the records callers are served after the attempt
	Fetched  bool               // the upstream was contacted
	Updated  bool               // the snapshot was replaced
	Shared   bool               // the result came from another caller's in-flight refresh
}

// Controller serves records from the cache store and refreshes them from
// the upstream when they are stale. At most one upstream fetch runs at a
// time; concurrent callers that find the cache stale wait for it and share
// its result.
type Controller struct {
	store     *cache.Store
	fetcher   Fetcher
	extractor Extractor
	opts      Options
	log       logrus.FieldLogger
	observer  Observer

	group singleflight.Group
}

// New creates a controller. A zero TTL means every call refreshes.
func New(store *cache.Store, fetcher Fetcher, ext Extractor, opts Options) *Controller {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Controller{
		store:     store,
		fetcher:   fetcher,
		extractor: ext,
		opts:      opts,
		log:       logging.Component(opts.Logger, "refresh"),
		observer:  observer,
	}
}

// Store returns the underlying cache store
func (c *Controller) Store() *cache.Store {
	return c.store
}

// Records returns the current records, refreshing first when the snapshot
// is stale or force is set. It never fails: on any refresh problem the
// previous records are returned.
func (c *Controller) Records(ctx context.Context, force bool) []extractor.Record {
	if !force && !c.store.IsStale(c.opts.Now(), c.opts.TTL) {
		return c.store.Current().Records
	}
	out, _ := c.run(ctx, force)
	return out.Records
}

// Refresh forces one refresh attempt and reports what happened. The
// returned error is informational; the snapshot is always left servable.
func (c *Controller) Refresh(ctx context.Context) (Outcome, error) {
	return c.run(ctx, true)
}

type flightResult struct {
	out Outcome
	err error
}

func (c *Controller) run(ctx context.Context, force bool) (Outcome, error) {
	for {
		ch := c.group.DoChan(flightKey, func() (any, error) {
			// Detach from the first caller so its cancellation does not abort
			// the fetch that other callers are waiting on.
			out, err := c.refresh(context.WithoutCancel(ctx), force)
			return flightResult{out: out, err: err}, nil
		})

		select {
		case res := <-ch:
			fr := res.Val.(flightResult)
			// A forced caller that joined a flight which found the cache
			// fresh has not had its refresh yet.
			if force && fr.out.Kind == KindFresh {
				continue
			}
			out := fr.out
			out.Shared = res.Shared
			return out, fr.err
		case <-ctx.Done():
			return Outcome{
				Kind:    KindUpstreamUnavailable,
				Records: c.store.Current().Records,
			}, ctx.Err()
		}
	}
}

func (c *Controller) refresh(ctx context.Context, force bool) (out Outcome, err error) {
	start := c.opts.Now()
	defer func() {
		c.observer.RecordRefresh(c.opts.Now().Sub(start), out.Kind, out.Strategy, len(c.store.Current().Records))
	}()

	// Another flight may have refreshed between the caller's check and now.
	if !force && !c.store.IsStale(c.opts.Now(), c.opts.TTL) {
		return Outcome{Kind: KindFresh, Records: c.store.Current().Records}, nil
	}

	q := c.opts.Query
	if strings.TrimSpace(q.SubjectID) == "" || q.Credentials.Empty() {
		c.log.Debug("subject id or credentials not set, serving existing cache")
		return c.keep(KindConfigurationIncomplete, ErrConfigIncomplete)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()

	raw, err := c.fetcher.Fetch(fetchCtx, q)
	if err != nil {
		kind := Classify(err)
		entry := c.log.WithError(err).WithField("kind", kind)
		var se *twitter.HTTPStatusError
		if errors.As(err, &se) {
			entry = entry.WithFields(logrus.Fields{
				"status":       se.StatusCode,
				"rate_limited": se.RateLimited(),
			})
		}
		entry.Warn("fetch failed, serving existing cache")
		out, err = c.keep(kind, err)
		out.Fetched = true
		return out, err
	}

	records, strategy := c.extractor.Extract(raw)
	if len(records) == 0 && !c.opts.OverwriteOnEmpty {
		c.log.WithField("bytes", len(raw)).Warn("no media found in response, keeping previous snapshot")
		out, err = c.keep(KindExtractionEmpty, ErrExtractionEmpty)
		out.Fetched = true
		return out, err
	}

	snap := c.store.Replace(records)
	out = Outcome{
		Kind:     KindOK,
		Strategy: strategy,
		Records:  snap.Records,
		Fetched:  true,
		Updated:  true,
	}
	if len(records) == 0 {
		out.Kind = KindExtractionEmpty
		err = ErrExtractionEmpty
	}

	c.log.WithFields(logrus.Fields{
		"records":  len(snap.Records),
		"strategy": strategy,
	}).Info("snapshot refreshed")

	if perr := c.store.Persist(snap); perr != nil {
		c.log.WithError(perr).Error("failed to write snapshot file")
		out.Kind = KindPersistFailure
		err = errors.Join(err, perr)
	}
	return out, err
}

// keep reports a failed attempt that leaves the snapshot untouched
func (c *Controller) keep(kind Kind, err error) (Outcome, error) {
	return Outcome{Kind: kind, Records: c.store.Current().Records}, err
}
