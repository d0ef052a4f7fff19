package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rchan/rchan-web/models"
)

// PostUpdate is the postData blob of a moderator edit.
type PostUpdate struct {
	Title          string                `json:"title"`
	Content        string                `json:"content"`
	SectionType    models.SectionType    `json:"sectionType,omitempty"`
	FileStatus     models.FileStatus     `json:"fileStatus,omitempty"`
	ApprovalStatus models.ApprovalStatus `json:"approvalStatus,omitempty"`
}

// RepostUpdate is the postData blob of a moderator reply edit.
type RepostUpdate struct {
	Content        string                `json:"content"`
	PostID         string                `json:"postId,omitempty"`
	FileStatus     models.FileStatus     `json:"fileStatus,omitempty"`
	ApprovalStatus models.ApprovalStatus `json:"approvalStatus,omitempty"`
}

// ModeratorPostInput creates a post on behalf of a moderator.
type ModeratorPostInput struct {
	Title          string                `json:"title"`
	Content        string                `json:"content"`
	SectionType    models.SectionType    `json:"sectionType"`
	ApprovalStatus models.ApprovalStatus `json:"approvalStatus,omitempty"`
}

const (
	moderatorPostPath   = "/moderator/api/post"
	moderatorRepostPath = "/moderator/api/repost"
)

// ModeratorListPosts returns posts in every approval state.
func (c *Client) ModeratorListPosts(ctx context.Context, page, size int, sort, direction string) (models.Page[models.Post], error) {
	var out models.Page[models.Post]
	err := c.getJSON(ctx, moderatorPostPath, pageQuery(page, size, sort, direction), &out)
	return out, err
}

func (c *Client) ModeratorGetPost(ctx context.Context, id string) (*models.Post, error) {
	if id == "" {
		return nil, errEmptyID
	}
	var out models.Post
	if err := c.getJSON(ctx, moderatorPostPath+"/id", idQuery(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ModeratorCreatePost(ctx context.Context, in ModeratorPostInput, file *FilePart) (*models.Post, error) {
	var out models.Post
	if err := c.sendMultipart(ctx, request{method: http.MethodPost, path: moderatorPostPath}, "postData", in, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ModeratorUpdatePost edits a post; file replaces the attachment when non-nil.
func (c *Client) ModeratorUpdatePost(ctx context.Context, id string, in PostUpdate, file *FilePart) (*models.Post, error) {
	if id == "" {
		return nil, errEmptyID
	}
	var out models.Post
	r := request{method: http.MethodPut, path: moderatorPostPath, query: idQuery(id)}
	if err := c.sendMultipart(ctx, r, "postData", in, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ModeratorDeletePost(ctx context.Context, id string) error {
	if id == "" {
		return errEmptyID
	}
	return c.do(ctx, request{method: http.MethodDelete, path: moderatorPostPath, query: idQuery(id)}, nil)
}

func (c *Client) ModeratorListReposts(ctx context.Context, page, size int, sort, direction string) (models.Page[models.Repost], error) {
	var out models.Page[models.Repost]
	err := c.getJSON(ctx, moderatorRepostPath, pageQuery(page, size, sort, direction), &out)
	return out, err
}

func (c *Client) ModeratorGetRepost(ctx context.Context, id string) (*models.Repost, error) {
	if id == "" {
		return nil, errEmptyID
	}
	var out models.Repost
	if err := c.getJSON(ctx, moderatorRepostPath+"/id", idQuery(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ModeratorCreateRepost(ctx context.Context, in RepostInput, file *FilePart) (*models.Repost, error) {
	var out models.Repost
	if err := c.sendMultipart(ctx, request{method: http.MethodPost, path: moderatorRepostPath}, "postData", in, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ModeratorUpdateRepost(ctx context.Context, id string, in RepostUpdate, file *FilePart) (*models.Repost, error) {
	if id == "" {
		return nil, errEmptyID
	}
	var out models.Repost
	r := request{method: http.MethodPut, path: moderatorRepostPath, query: idQuery(id)}
	if err := c.sendMultipart(ctx, r, "postData", in, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ModeratorDeleteRepost(ctx context.Context, id string) error {
	if id == "" {
		return errEmptyID
	}
	return c.do(ctx, request{method: http.MethodDelete, path: moderatorRepostPath, query: idQuery(id)}, nil)
}

// ModeratorListRepostsByPost returns every reply of a post regardless of approval state.
func (c *Client) ModeratorListRepostsByPost(ctx context.Context, postID string, page, size int) (models.Page[models.Repost], error) {
	var out models.Page[models.Repost]
	if postID == "" {
		return out, errEmptyID
	}
	err := c.getJSON(ctx, moderatorRepostPath+"/post/"+url.PathEscape(postID), pageQuery(page, size, "createdDate", "DESC"), &out)
	return out, err
}
