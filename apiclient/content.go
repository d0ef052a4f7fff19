package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rchan/rchan-web/models"
)

// PostInput is the postData blob of a new post.
type PostInput struct {
	Title       string             `json:"title"`
	Content     string             `json:"content"`
	SectionType models.SectionType `json:"sectionType"`
}

// RepostInput is the postData blob of a new reply.
type RepostInput struct {
	Content string `json:"content"`
	PostID  string `json:"postId"`
}

// ListPosts returns published posts, optionally restricted to one section.
func (c *Client) ListPosts(ctx context.Context, page, size int, sort string, section models.SectionType) (models.Page[models.Post], error) {
	q := pageQuery(page, size, sort, "")
	if section != "" {
		q.Set("sectionType", string(section))
	}
	var out models.Page[models.Post]
	err := c.getJSON(ctx, "/api/post", q, &out)
	return out, err
}

func (c *Client) GetPost(ctx context.Context, id string) (*models.Post, error) {
	if id == "" {
		return nil, errEmptyID
	}
	var out models.Post
	if err := c.getJSON(ctx, "/api/post/id", idQuery(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePost submits a post. The returned post may be empty when the backend answers without a body.
func (c *Client) CreatePost(ctx context.Context, in PostInput, file *FilePart) (*models.Post, error) {
	var out models.Post
	err := c.sendMultipart(ctx, request{method: http.MethodPost, path: "/api/post"}, "postData", in, file, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListReposts(ctx context.Context, page, size int, sort string) (models.Page[models.Repost], error) {
	var out models.Page[models.Repost]
	err := c.getJSON(ctx, "/api/repost", pageQuery(page, size, sort, ""), &out)
	return out, err
}

func (c *Client) GetRepost(ctx context.Context, id string) (*models.Repost, error) {
	if id == "" {
		return nil, errEmptyID
	}
	var out models.Repost
	if err := c.getJSON(ctx, "/api/repost/id", idQuery(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRepostsByPost returns the published replies of a post.
func (c *Client) ListRepostsByPost(ctx context.Context, postID string) ([]models.Repost, error) {
	if postID == "" {
		return nil, errEmptyID
	}
	var out flexList[models.Repost]
	if err := c.getJSON(ctx, "/api/repost/post/id", idQuery(postID), &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) CreateRepost(ctx context.Context, in RepostInput, file *FilePart) (*models.Repost, error) {
	var out models.Repost
	err := c.sendMultipart(ctx, request{method: http.MethodPost, path: "/api/repost"}, "postData", in, file, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSections returns the section reference data ordered by post count.
func (c *Client) ListSections(ctx context.Context, page, size int) ([]models.Section, error) {
	var out flexList[models.Section]
	if err := c.getJSON(ctx, "/api/section", pageQuery(page, size, "postCount", ""), &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) GetSection(ctx context.Context, id string) (*models.Section, error) {
	if id == "" {
		return nil, errEmptyID
	}
	var out models.Section
	if err := c.getJSON(ctx, "/api/section/id", idQuery(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ViewFileURL is the backend URL serving an attachment.
func (c *Client) ViewFileURL(fileName string) string {
	return c.baseURL + "/api/view-file?" + url.Values{"fileName": []string{fileName}}.Encode()
}

// File is an attachment stream. Callers must Close it.
type File struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

func (f *File) Close() error { return f.Body.Close() }

// OpenFile streams an attachment from the backend.
func (c *Client) OpenFile(ctx context.Context, fileName string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ViewFileURL(fileName), nil)
	if err != nil {
		return nil, fmt.Errorf("build file request: %w", err)
	}
	// Attachments can be large; the per-call timeout is left to the request context.
	streamer := &http.Client{Transport: c.http.Transport}
	resp, err := streamer.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var body errorBody
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(data, &body)
		return nil, classify(resp.StatusCode, body, data, "Archivo no encontrado", false)
	}
	return &File{Body: resp.Body, ContentType: resp.Header.Get("Content-Type"), ContentLength: resp.ContentLength}, nil
}

// flexList decodes either a bare JSON array or a paged object.
type flexList[T any] struct {
	Items []T
}

func (l *flexList[T]) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &l.Items); err == nil {
		return nil
	}
	var page models.Page[T]
	if err := json.Unmarshal(b, &page); err != nil {
		return err
	}
	l.Items = page.Content
	return nil
}
