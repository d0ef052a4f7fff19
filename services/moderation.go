package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/rchan/rchan-web/apiclient"
	"github.com/rchan/rchan-web/models"
	"github.com/rchan/rchan-web/utils"
)

const (
	// BoardPageSize is how many posts and reposts the board loads in one go.
	BoardPageSize = 50
	boardSort     = "createdDate"
	boardDir      = "DESC"
)

// ErrStaleReload is returned by Reload when a newer reload was issued while this one was in
// flight. Its result was discarded.
var ErrStaleReload = errors.New("reload superseded by a newer request")

// ErrBoardReload marks a mutation that reached the backend but whose follow-up board reload
// failed. The change itself went through.
var ErrBoardReload = errors.New("reload board")

// ModerationAPI is the slice of the backend used by the moderation board.
type ModerationAPI interface {
	ModeratorListPosts(ctx context.Context, page, size int, sort, direction string) (models.Page[models.Post], error)
	ModeratorListReposts(ctx context.Context, page, size int, sort, direction string) (models.Page[models.Repost], error)
	ModeratorListRepostsByPost(ctx context.Context, postID string, page, size int) (models.Page[models.Repost], error)
	ModeratorGetPost(ctx context.Context, id string) (*models.Post, error)
	ModeratorGetRepost(ctx context.Context, id string) (*models.Repost, error)
	ModeratorUpdatePost(ctx context.Context, id string, in apiclient.PostUpdate, file *apiclient.FilePart) (*models.Post, error)
	ModeratorUpdateRepost(ctx context.Context, id string, in apiclient.RepostUpdate, file *apiclient.FilePart) (*models.Repost, error)
	ModeratorDeletePost(ctx context.Context, id string) error
	ModeratorDeleteRepost(ctx context.Context, id string) error
}

// Tab selects which entity list the board shows.
type Tab string

const (
	TabPosts   Tab = "posts"
	TabReposts Tab = "reposts"
)

// ParseTab defaults to TabPosts.
func ParseTab(s string) Tab {
	switch Tab(strings.ToLower(strings.TrimSpace(s))) {
	case TabReposts:
		return TabReposts
	case TabPosts:
		return TabPosts
	}
	return TabPosts
}

// Label is the tab title.
func (t Tab) Label() string {
	switch t {
	case TabPosts:
		return "Publicaciones"
	case TabReposts:
		return "Respuestas"
	}
	return string(t)
}

// Counts are the per-tab totals under the active filter.
type Counts struct {
	Posts   int
	Reposts int
}

// BoardView is an immutable snapshot of a board for rendering.
type BoardView struct {
	Filter   models.StatusFilter
	Tab      Tab
	Posts    []models.Post
	Reposts  []models.Repost
	Counts   Counts
	Replies  map[string][]models.Repost
	Loaded   bool
	LoadedAt time.Time
}

// Board is the moderation list state of one administrator session. Reloads are keyed by a
// sequence ticket so only the most recently issued reload may replace the lists.
type Board struct {
	mu      sync.Mutex
	seq     uint64
	filter  models.StatusFilter
	tab     Tab
	posts   []models.Post
	reposts []models.Repost
	counts  Counts
	replies map[string][]models.Repost
	loaded  time.Time
	now     func() time.Time
}

// NewBoard returns an empty board showing every post.
func NewBoard() *Board {
	return &Board{
		filter:  models.FilterAll,
		tab:     TabPosts,
		replies: map[string][]models.Repost{},
		now:     time.Now,
	}
}

func (b *Board) ticket() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	return b.seq
}

// Reload fetches posts and reposts in parallel and applies them under filter and tab. The
// result is dropped when ctx ended or a newer reload was issued meanwhile.
func (b *Board) Reload(ctx context.Context, api ModerationAPI, filter models.StatusFilter, tab Tab) error {
	ticket := b.ticket()

	var (
		posts   models.Page[models.Post]
		reposts models.Page[models.Repost]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		posts, err = api.ModeratorListPosts(gctx, 0, BoardPageSize, boardSort, boardDir)
		return err
	})
	g.Go(func() error {
		var err error
		reposts, err = api.ModeratorListReposts(gctx, 0, BoardPageSize, boardSort, boardDir)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if ticket != b.seq {
		return ErrStaleReload
	}
	b.filter = filter
	b.tab = tab
	b.posts = filterPosts(posts.Content, filter)
	b.reposts = filterReposts(reposts.Content, filter)
	b.counts = Counts{Posts: len(b.posts), Reposts: len(b.reposts)}
	b.loaded = b.now()
	return nil
}

func filterPosts(in []models.Post, f models.StatusFilter) []models.Post {
	out := make([]models.Post, 0, len(in))
	for _, p := range in {
		if f.Matches(p.ApprovalStatus) {
			out = append(out, p)
		}
	}
	return out
}

func filterReposts(in []models.Repost, f models.StatusFilter) []models.Repost {
	out := make([]models.Repost, 0, len(in))
	for _, r := range in {
		if f.Matches(r.ApprovalStatus) {
			out = append(out, r)
		}
	}
	return out
}

// Snapshot copies the current state.
func (b *Board) Snapshot() BoardView {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := BoardView{
		Filter:   b.filter,
		Tab:      b.tab,
		Posts:    append([]models.Post(nil), b.posts...),
		Reposts:  append([]models.Repost(nil), b.reposts...),
		Counts:   b.counts,
		Replies:  make(map[string][]models.Repost, len(b.replies)),
		Loaded:   !b.loaded.IsZero(),
		LoadedAt: b.loaded,
	}
	for k, r := range b.replies {
		v.Replies[k] = append([]models.Repost(nil), r...)
	}
	return v
}

// Replies returns the replies of postID, loading them on first use and serving the cache
// afterwards.
func (b *Board) Replies(ctx context.Context, api ModerationAPI, postID string) ([]models.Repost, error) {
	b.mu.Lock()
	cached, ok := b.replies[postID]
	b.mu.Unlock()
	if ok {
		return append([]models.Repost(nil), cached...), nil
	}

	page, err := api.ModeratorListRepostsByPost(ctx, postID, 0, BoardPageSize)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	replies := page.Content
	if replies == nil {
		replies = []models.Repost{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// another request may have filled it meanwhile; keep the first copy
	if cached, ok := b.replies[postID]; ok {
		return append([]models.Repost(nil), cached...), nil
	}
	b.replies[postID] = replies
	return append([]models.Repost(nil), replies...), nil
}

// ApplyReplyDeleted removes replyID from the cached reply lists and the repost list, and
// lowers the reply counter of each post whose cached list contained it. postID narrows the
// search when known. It reports whether any cached list changed.
func (b *Board) ApplyReplyDeleted(postID, replyID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false
	for pid, replies := range b.replies {
		if postID != "" && pid != postID {
			continue
		}
		kept := replies[:0:0]
		for _, r := range replies {
			if r.ID != replyID {
				kept = append(kept, r)
			}
		}
		if len(kept) == len(replies) {
			continue
		}
		b.replies[pid] = kept
		changed = true
		for i := range b.posts {
			if b.posts[i].ID == pid {
				b.posts[i].ReplyCount = max(0, b.posts[i].ReplyCount-1)
			}
		}
	}

	for i, r := range b.reposts {
		if r.ID == replyID {
			b.reposts = append(b.reposts[:i:i], b.reposts[i+1:]...)
			b.counts.Reposts = len(b.reposts)
			break
		}
	}
	return changed
}

// forgetReplies drops the cached replies of postID so the next expand refetches them.
func (b *Board) forgetReplies(postID string) {
	b.mu.Lock()
	delete(b.replies, postID)
	b.mu.Unlock()
}

// PostEdit is the moderator edit form of a post.
type PostEdit struct {
	Title          string
	Content        string
	FileStatus     string
	ApprovalStatus string
	// File replaces the attachment when set.
	File *apiclient.FilePart
}

// RepostEdit is the moderator edit form of a reply.
type RepostEdit struct {
	Content        string
	FileStatus     string
	ApprovalStatus string
	File           *apiclient.FilePart
}

const msgInvalidStatus = "Estado de aprobación no válido"

// Moderation performs moderator mutations against the backend and keeps a Board in sync.
type Moderation struct {
	api   ModerationAPI
	board *Board
}

// NewModeration binds api to board.
func NewModeration(api ModerationAPI, board *Board) *Moderation {
	return &Moderation{api: api, board: board}
}

// Board returns the bound board.
func (m *Moderation) Board() *Board { return m.board }

// UpdatePost applies a full edit. The section is kept; an empty file status means VISIBLE and
// an empty approval status keeps the current one. AUTO_APPROVED is accepted here.
func (m *Moderation) UpdatePost(ctx context.Context, id string, e PostEdit) (*models.Post, error) {
	current, err := m.api.ModeratorGetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	errs := FieldErrors{}
	title := utils.Sanitize(e.Title)
	switch {
	case title == "":
		errs.Add("title", msgTitleRequired)
	case utf8.RuneCountInString(title) > MaxTitleLength:
		errs.Add("title", msgTitleTooLong)
	}
	content := utils.Sanitize(e.Content)
	if utf8.RuneCountInString(content) > MaxContentLength {
		errs.Add("content", msgContentTooLong)
	}
	status, fileStatus := current.ApprovalStatus, models.FileVisible
	if e.ApprovalStatus != "" {
		if status, err = models.ParseApprovalStatus(e.ApprovalStatus); err != nil {
			errs.Add("approvalStatus", msgInvalidStatus)
		}
	}
	if e.FileStatus != "" {
		if fileStatus, err = models.ParseFileStatus(e.FileStatus); err != nil {
			errs.Add("fileStatus", "Estado de archivo no válido")
		}
	}
	if e.File != nil {
		if msg := ValidateFile(e.File.ContentType, e.File.Size); msg != "" {
			errs.Add("file", msg)
		}
	}
	if err := Check(errs); err != nil {
		return nil, err
	}

	updated, err := m.api.ModeratorUpdatePost(ctx, id, apiclient.PostUpdate{
		Title:          title,
		Content:        content,
		SectionType:    current.SectionType(),
		FileStatus:     fileStatus,
		ApprovalStatus: status,
	}, e.File)
	if err != nil {
		return nil, err
	}
	return updated, m.reloadCurrent(ctx)
}

// UpdateRepost applies a full edit of a reply.
func (m *Moderation) UpdateRepost(ctx context.Context, id string, e RepostEdit) (*models.Repost, error) {
	current, err := m.api.ModeratorGetRepost(ctx, id)
	if err != nil {
		return nil, err
	}
	errs := FieldErrors{}
	content := utils.Sanitize(e.Content)
	if utf8.RuneCountInString(content) > MaxContentLength {
		errs.Add("content", msgContentTooLong)
	}
	status, fileStatus := current.ApprovalStatus, models.FileVisible
	if e.ApprovalStatus != "" {
		if status, err = models.ParseApprovalStatus(e.ApprovalStatus); err != nil {
			errs.Add("approvalStatus", msgInvalidStatus)
		}
	}
	if e.FileStatus != "" {
		if fileStatus, err = models.ParseFileStatus(e.FileStatus); err != nil {
			errs.Add("fileStatus", "Estado de archivo no válido")
		}
	}
	if e.File != nil {
		if msg := ValidateFile(e.File.ContentType, e.File.Size); msg != "" {
			errs.Add("file", msg)
		}
	}
	if err := Check(errs); err != nil {
		return nil, err
	}

	updated, err := m.api.ModeratorUpdateRepost(ctx, id, apiclient.RepostUpdate{
		Content:        content,
		PostID:         current.ParentID(),
		FileStatus:     fileStatus,
		ApprovalStatus: status,
	}, e.File)
	if err != nil {
		return nil, err
	}
	if pid := current.ParentID(); pid != "" {
		m.board.forgetReplies(pid)
	}
	return updated, m.reloadCurrent(ctx)
}

// SetPostApproval moves a post to one of the moderator transitions, keeping every other field.
func (m *Moderation) SetPostApproval(ctx context.Context, id string, to models.ApprovalStatus) error {
	if !isTransition(to) {
		return &ValidationError{Fields: FieldErrors{"approvalStatus": msgInvalidStatus}}
	}
	current, err := m.api.ModeratorGetPost(ctx, id)
	if err != nil {
		return err
	}
	fileStatus := current.FileStatus
	if fileStatus == models.FileUnknown {
		fileStatus = models.FileVisible
	}
	if _, err := m.api.ModeratorUpdatePost(ctx, id, apiclient.PostUpdate{
		Title:          current.Title,
		Content:        current.Content,
		SectionType:    current.SectionType(),
		FileStatus:     fileStatus,
		ApprovalStatus: to,
	}, nil); err != nil {
		return err
	}
	return m.reloadCurrent(ctx)
}

// SetRepostApproval moves a reply to one of the moderator transitions.
func (m *Moderation) SetRepostApproval(ctx context.Context, id string, to models.ApprovalStatus) error {
	if !isTransition(to) {
		return &ValidationError{Fields: FieldErrors{"approvalStatus": msgInvalidStatus}}
	}
	current, err := m.api.ModeratorGetRepost(ctx, id)
	if err != nil {
		return err
	}
	fileStatus := current.FileStatus
	if fileStatus == models.FileUnknown {
		fileStatus = models.FileVisible
	}
	if _, err := m.api.ModeratorUpdateRepost(ctx, id, apiclient.RepostUpdate{
		Content:        current.Content,
		PostID:         current.ParentID(),
		FileStatus:     fileStatus,
		ApprovalStatus: to,
	}, nil); err != nil {
		return err
	}
	if pid := current.ParentID(); pid != "" {
		m.board.forgetReplies(pid)
	}
	return m.reloadCurrent(ctx)
}

func isTransition(s models.ApprovalStatus) bool {
	for _, t := range models.ApprovalTransitions {
		if s == t {
			return true
		}
	}
	return false
}

// DeletePost removes a post and reloads the board.
func (m *Moderation) DeletePost(ctx context.Context, id string) error {
	if err := m.api.ModeratorDeletePost(ctx, id); err != nil {
		return err
	}
	m.board.forgetReplies(id)
	return m.reloadCurrent(ctx)
}

// DeleteRepost removes a reply and patches the board in place without reloading.
func (m *Moderation) DeleteRepost(ctx context.Context, postID, id string) error {
	if err := m.api.ModeratorDeleteRepost(ctx, id); err != nil {
		return err
	}
	m.board.ApplyReplyDeleted(postID, id)
	return nil
}

// reloadCurrent refreshes the board under its current filter and tab. A superseded reload
// is not an error: a newer one is already on its way.
func (m *Moderation) reloadCurrent(ctx context.Context) error {
	v := m.board.Snapshot()
	err := m.board.Reload(ctx, m.api, v.Filter, v.Tab)
	if errors.Is(err, ErrStaleReload) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBoardReload, err)
	}
	return nil
}

// Boards keeps one Board per browser session and forgets boards idle for longer than ttl.
type Boards struct {
	mu  sync.Mutex
	m   map[string]*boardEntry
	ttl time.Duration
	now func() time.Time
}

type boardEntry struct {
	board    *Board
	lastUsed time.Time
}

// NewBoards returns a registry; ttl defaults to 30 minutes.
func NewBoards(ttl time.Duration) *Boards {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Boards{m: map[string]*boardEntry{}, ttl: ttl, now: time.Now}
}

// Get returns the board of sessionID, creating it on first use.
func (r *Boards) Get(sessionID string) *Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for id, e := range r.m {
		if now.Sub(e.lastUsed) > r.ttl {
			delete(r.m, id)
		}
	}
	e, ok := r.m[sessionID]
	if !ok {
		e = &boardEntry{board: NewBoard()}
		r.m[sessionID] = e
	}
	e.lastUsed = now
	return e.board
}

// Drop forgets the board of sessionID, used on logout.
func (r *Boards) Drop(sessionID string) {
	r.mu.Lock()
	delete(r.m, sessionID)
	r.mu.Unlock()
}
