package models

// Post is a top-level forum submission.
type Post struct {
	ID             string         `json:"id"`
	Section        *SectionRef    `json:"section,omitempty"`
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	FileURL        string         `json:"fileUrl,omitempty"`
	FileType       FileType       `json:"fileType,omitempty"`
	FileStatus     FileStatus     `json:"fileStatus,omitempty"`
	ApprovalStatus ApprovalStatus `json:"approvalStatus"`
	ReplyCount     int            `json:"replyCount"`
	CreatedDate    LocalTime      `json:"createdDate"`
	UpdatedDate    LocalTime      `json:"updatedDate"`
}

// SectionType returns the post's section or empty when the payload had none.
func (p Post) SectionType() SectionType {
	if p.Section == nil {
		return ""
	}
	return p.Section.SectionType
}

// HasFile reports whether the post carries an attachment.
func (p Post) HasFile() bool { return p.FileURL != "" }

// PostRef is the parent post embedded in a repost payload.
type PostRef struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Repost is a reply scoped to exactly one post.
type Repost struct {
	ID             string         `json:"id"`
	Post           *PostRef       `json:"post,omitempty"`
	PostID         string         `json:"postId,omitempty"`
	Content        string         `json:"content"`
	FileURL        string         `json:"fileUrl,omitempty"`
	FileType       FileType       `json:"fileType,omitempty"`
	FileStatus     FileStatus     `json:"fileStatus,omitempty"`
	ApprovalStatus ApprovalStatus `json:"approvalStatus"`
	CreatedDate    LocalTime      `json:"createdDate"`
	UpdatedDate    LocalTime      `json:"updatedDate"`
}

// ParentID returns the id of the post this repost answers.
func (r Repost) ParentID() string {
	if r.Post != nil && r.Post.ID != "" {
		return r.Post.ID
	}
	return r.PostID
}

func (r Repost) HasFile() bool { return r.FileURL != "" }

// Page mirrors the backend's paged response.
type Page[T any] struct {
	Content       []T  `json:"content"`
	TotalPages    int  `json:"totalPages"`
	TotalElements int  `json:"totalElements"`
	Number        int  `json:"number"`
	Size          int  `json:"size"`
	Last          bool `json:"last"`
	First         bool `json:"first"`
}

// HasNext reports whether another page may follow when pages of pageSize are requested.
func (p Page[T]) HasNext(pageSize int) bool {
	if p.Last || len(p.Content) == 0 {
		return false
	}
	return len(p.Content) >= pageSize
}
