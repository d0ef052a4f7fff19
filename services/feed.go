package services

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rchan/rchan-web/models"
	"github.com/rchan/rchan-web/utils"
)

const (
	// FeedPageSize is the number of threads per home page.
	FeedPageSize = 10
	feedSort     = "createdDate"

	sectionsCacheKey = "sections:all"
)

// FeedAPI is the slice of the backend used by the public pages.
type FeedAPI interface {
	ListPosts(ctx context.Context, page, size int, sort string, section models.SectionType) (models.Page[models.Post], error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	ListRepostsByPost(ctx context.Context, postID string) ([]models.Repost, error)
	ListSections(ctx context.Context, page, size int) ([]models.Section, error)
}

// Feed serves the public home and thread pages.
type Feed struct {
	api      FeedAPI
	cache    *utils.Cache
	cacheTTL time.Duration
}

// NewFeed returns a Feed. cache may be nil to always hit the backend.
func NewFeed(api FeedAPI, cache *utils.Cache, cacheTTL time.Duration) *Feed {
	return &Feed{api: api, cache: cache, cacheTTL: cacheTTL}
}

// HomePage is one page of threads.
type HomePage struct {
	Posts   []models.Post
	Page    int
	HasMore bool
	Section models.SectionType
}

// Home lists threads newest first, optionally restricted to one section. An unknown section
// lists everything.
func (f *Feed) Home(ctx context.Context, page int, section string) (HomePage, error) {
	if page < 0 {
		page = 0
	}
	st, err := models.ParseSectionType(section)
	if err != nil {
		st = ""
	}
	p, err := f.api.ListPosts(ctx, page, FeedPageSize, feedSort, st)
	if err != nil {
		return HomePage{Page: page, Section: st}, err
	}
	return HomePage{
		Posts:   p.Content,
		Page:    page,
		HasMore: p.HasNext(FeedPageSize),
		Section: st,
	}, nil
}

// Thread is a post with its replies.
type Thread struct {
	Post    *models.Post
	Reposts []models.Repost
}

// Thread loads the post and its replies in parallel. Replies are sorted oldest first.
func (f *Feed) Thread(ctx context.Context, postID string) (Thread, error) {
	var t Thread
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := f.api.GetPost(gctx, postID)
		t.Post = p
		return err
	})
	g.Go(func() error {
		r, err := f.api.ListRepostsByPost(gctx, postID)
		t.Reposts = r
		return err
	})
	if err := g.Wait(); err != nil {
		return Thread{}, err
	}
	sort.SliceStable(t.Reposts, func(i, j int) bool {
		return t.Reposts[i].CreatedDate.Before(t.Reposts[j].CreatedDate.Time)
	})
	return t, nil
}

// Sections returns the section reference data, served from cache when possible.
func (f *Feed) Sections(ctx context.Context) ([]models.Section, error) {
	var out []models.Section
	if f.cache != nil && f.cache.GetJSON(ctx, sectionsCacheKey, &out) && len(out) > 0 {
		return out, nil
	}
	out, err := f.api.ListSections(ctx, 0, 50)
	if err != nil {
		return nil, err
	}
	if f.cache != nil && len(out) > 0 {
		f.cache.SetJSON(ctx, sectionsCacheKey, out, f.cacheTTL)
	}
	return out, nil
}

// SectionChoices lists every known section for the post form, whether or not the backend
// returned it.
func SectionChoices() []models.SectionType {
	return append([]models.SectionType(nil), models.SectionTypes...)
}
