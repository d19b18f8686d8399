package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/post"
	"git.home.luguber.info/inful/blogbuilder/internal/retry"
)

// LocalPrefix is how post pages reference rehomed media.
const LocalPrefix = "../media/"

// DefaultMaxBytes caps a single media download.
const DefaultMaxBytes int64 = 50 << 20

// Options configure a Resolver.
type Options struct {
	Workers      int
	Timeout      time.Duration
	MaxBytes     int64
	UserAgent    string
	Retry        retry.Policy
	SanitizeBody bool
	// Client overrides the HTTP client built from Timeout.
	Client *http.Client
	Logger *slog.Logger
}

// Stats summarizes one resolution run.
type Stats struct {
	Referenced int // img elements seen, including empty src
	Distinct   int // distinct fetchable URLs
	Fetched    int
	Failed     int
	Retried    int // retries across all fetches
	Removed    int // img elements dropped from bodies
	Linked     int // distinct URLs found in the store by Relink
}

// Resolver downloads images referenced by posts and rewrites their bodies.
type Resolver struct {
	opts     Options
	store    *Store
	client   *http.Client
	sanitize *bluemonday.Policy
	logger   *slog.Logger
}

// NewResolver creates a Resolver storing media in store.
func NewResolver(store *Store, opts Options) *Resolver {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBytes == 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Retry.Initial <= 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	client := opts.Client
	if client == nil {
		client = NewHTTPClient(opts.Timeout)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{opts: opts, store: store, client: client, logger: logger}
	if opts.SanitizeBody {
		r.sanitize = bluemonday.UGCPolicy()
	}
	return r
}

// imgSlot is one img occurrence in one post body.
type imgSlot struct {
	src     string
	planIdx int // -1 when not fetchable
	reason  string
}

// fetchResult is stored by plan index.
type fetchResult struct {
	ok      bool
	retries int
	err     error
}

// Resolve fetches every distinct image URL referenced by posts and returns
// copies of the posts with rewritten bodies and MediaRefs. Individual fetch
// failures only drop the affected images. The error is non-nil only when
// ctx is done.
func (r *Resolver) Resolve(ctx context.Context, posts []post.Post) ([]post.Post, Stats, error) {
	out, p, slots, stats := r.plan(posts)

	results, err := r.fetchAll(ctx, p.entries)
	if err != nil {
		return nil, stats, err
	}
	present := make([]bool, len(results))
	for i, res := range results {
		stats.Retried += res.retries
		if res.ok {
			stats.Fetched++
			present[i] = true
			continue
		}
		stats.Failed++
		r.logger.Warn("Media fetch failed",
			logfields.URL(p.entries[i].URL),
			logfields.Filename(p.entries[i].Filename),
			logfields.Error(res.err))
	}

	if err := r.rewrite(out, p, slots, present, ReasonFetchFailed, &stats); err != nil {
		return nil, stats, err
	}
	return out, stats, nil
}

// Relink rewrites bodies against files already in the store without any
// network access. Images whose planned filename is stored point at it;
// all others are removed. Filenames are planned exactly as Resolve plans
// them, so a store filled by Resolve for the same posts links fully.
func (r *Resolver) Relink(posts []post.Post) ([]post.Post, Stats, error) {
	out, p, slots, stats := r.plan(posts)

	present := make([]bool, len(p.entries))
	for i, e := range p.entries {
		if r.store != nil && r.store.Has(e.Filename) {
			present[i] = true
			stats.Linked++
		}
	}

	if err := r.rewrite(out, p, slots, present, ReasonNotStored, &stats); err != nil {
		return nil, stats, err
	}
	return out, stats, nil
}

// plan copies posts, sanitizes them when configured and assigns a local
// filename to every distinct fetchable URL in post order, then document
// order.
func (r *Resolver) plan(posts []post.Post) ([]post.Post, *plan, [][]imgSlot, Stats) {
	var stats Stats
	out := make([]post.Post, len(posts))
	copy(out, posts)

	if r.sanitize != nil {
		for i := range out {
			out[i].Body = r.sanitize.Sanitize(out[i].Body)
		}
	}

	p := newPlan()
	slots := make([][]imgSlot, len(out))
	for i := range out {
		refs, err := ExtractRefs(out[i].Body)
		if err != nil {
			r.logger.Warn("Cannot parse post body for images",
				logfields.Post(out[i].Title), logfields.SourceID(out[i].SourceID), logfields.Error(err))
			continue
		}
		for _, src := range refs {
			stats.Referenced++
			slot := imgSlot{src: src, planIdx: -1}
			switch u, ok := fetchable(src); {
			case strings.TrimSpace(src) == "":
				slot.reason = ReasonEmptySrc
			case !ok:
				slot.reason = ReasonUnsupportedURL
			default:
				slot.planIdx = p.add(strings.TrimSpace(src), u)
			}
			slots[i] = append(slots[i], slot)
		}
	}
	stats.Distinct = len(p.entries)
	return out, p, slots, stats
}

// rewrite points images whose plan entry is present at the media
// directory and removes the rest, recording missing as the reason for
// planned entries that are not present.
func (r *Resolver) rewrite(out []post.Post, p *plan, slots [][]imgSlot, present []bool, missing string, stats *Stats) error {
	for i := range out {
		if len(slots[i]) == 0 {
			continue
		}
		refs := make([]Ref, len(slots[i]))
		for j, s := range slots[i] {
			ref := Ref{SourceURL: s.src, Reason: s.reason}
			if s.planIdx >= 0 {
				if present[s.planIdx] {
					ref.Resolved = true
					ref.LocalFilename = p.entries[s.planIdx].Filename
				} else {
					ref.Reason = missing
				}
			}
			if !ref.Resolved {
				stats.Removed++
				r.logger.Debug("Removing unresolved image",
					logfields.Post(out[i].Title),
					logfields.URL(s.src),
					logfields.Reason(ref.Reason))
			}
			refs[j] = ref
		}
		body, err := rewriteBody(out[i].Body, refs)
		if err != nil {
			return ferrors.InternalError("rewrite post body").
				WithCause(err).
				WithContext("post", out[i].Title).
				Build()
		}
		out[i].Body = body
		out[i].MediaRefs = refs
	}
	return nil
}

// fetchAll downloads entries with at most opts.Workers requests in flight.
func (r *Resolver) fetchAll(ctx context.Context, entries []planEntry) ([]fetchResult, error) {
	results := make([]fetchResult, len(entries))
	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	var done atomic.Int64

	for i, e := range entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			retries, err := r.opts.Retry.Do(ctx, isTransient, func(ctx context.Context) error {
				return r.fetchOne(ctx, e)
			})
			results[i] = fetchResult{ok: err == nil, retries: retries, err: err}
			r.logger.Debug("Fetched media",
				logfields.URL(e.URL),
				logfields.Count(int(done.Add(1))),
				slog.Bool("ok", err == nil))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, ferrors.CanceledError("media fetch canceled").WithCause(err).Build()
	}
	return results, nil
}

func (r *Resolver) fetchOne(ctx context.Context, e planEntry) error {
	reqCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, e.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if r.opts.UserAgent != "" {
		req.Header.Set("User-Agent", r.opts.UserAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return err
		}
		return &transportError{err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{URL: e.URL, Code: resp.StatusCode}
	}
	if _, err := r.store.Put(e.Filename, resp.Body, r.opts.MaxBytes); err != nil {
		if errors.Is(err, ErrTooLarge) || ctx.Err() != nil {
			return err
		}
		// A body cut short mid-transfer is a network failure.
		return &transportError{err: err}
	}
	return nil
}

// rewriteBody points resolved images at the media directory and removes the
// rest. refs follow document order. Bodies without images are returned as is.
func rewriteBody(body string, refs []Ref) (string, error) {
	if len(refs) == 0 {
		return body, nil
	}
	nodes, err := parseFragment(body)
	if err != nil {
		return "", err
	}

	i := 0
	kept := nodes[:0]
	for _, n := range nodes {
		top := n
		walkImages(n, func(img *html.Node) {
			if i >= len(refs) {
				return
			}
			ref := refs[i]
			i++
			if ref.Resolved {
				setAttr(img, "src", LocalPrefix+url.PathEscape(ref.LocalFilename))
				removeAttrs(img, "srcset", "sizes")
				return
			}
			if img.Parent != nil {
				img.Parent.RemoveChild(img)
			} else if img == top {
				top = nil
			}
		})
		if top != nil {
			kept = append(kept, top)
		}
	}

	var buf bytes.Buffer
	for _, n := range kept {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
