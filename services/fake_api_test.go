package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rchan/rchan-web/apiclient"
	"github.com/rchan/rchan-web/models"
)

// fakeAPI is an in-memory backend implementing every API slice the services use.
type fakeAPI struct {
	mu      sync.Mutex
	posts   []models.Post
	reposts []models.Repost
	nextID  int
	calls   map[string]int

	// createStatus is the approval status assigned to created content.
	createStatus models.ApprovalStatus
	createErr    error
	listErr      error

	// beforeList, when set, runs at the start of ModeratorListPosts.
	beforeList func(ctx context.Context)

	forgotErr error
	verifyErr error
	resetArgs []string
	deleteErr error
	// editFile is the attachment of the last moderator edit.
	editFile *apiclient.FilePart
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: map[string]int{}, createStatus: models.ApprovalApproved}
}

func (f *fakeAPI) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) addPost(p models.Post) {
	f.mu.Lock()
	f.posts = append(f.posts, p)
	f.mu.Unlock()
}

func (f *fakeAPI) addRepost(r models.Repost) {
	f.mu.Lock()
	f.reposts = append(f.reposts, r)
	f.mu.Unlock()
}

func (f *fakeAPI) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeAPI) CreatePost(_ context.Context, in apiclient.PostInput, file *apiclient.FilePart) (*models.Post, error) {
	f.count("CreatePost")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := models.Post{
		ID:             f.id("post"),
		Title:          in.Title,
		Content:        in.Content,
		Section:        &models.SectionRef{SectionType: in.SectionType},
		ApprovalStatus: f.createStatus,
	}
	if file != nil {
		p.FileURL = file.Name
	}
	f.posts = append(f.posts, p)
	return &p, nil
}

func (f *fakeAPI) CreateRepost(_ context.Context, in apiclient.RepostInput, _ *apiclient.FilePart) (*models.Repost, error) {
	f.count("CreateRepost")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := models.Repost{ID: f.id("repost"), PostID: in.PostID, Content: in.Content, ApprovalStatus: f.createStatus}
	f.reposts = append(f.reposts, r)
	return &r, nil
}

func (f *fakeAPI) ListPosts(_ context.Context, page, size int, _ string, section models.SectionType) (models.Page[models.Post], error) {
	f.count("ListPosts")
	if f.listErr != nil {
		return models.Page[models.Post]{}, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Post
	for _, p := range f.posts {
		if section == "" || p.SectionType() == section {
			all = append(all, p)
		}
	}
	return paginate(all, page, size), nil
}

func paginate[T any](all []T, page, size int) models.Page[T] {
	start := page * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	total := (len(all) + size - 1) / size
	return models.Page[T]{
		Content:       append([]T(nil), all[start:end]...),
		TotalPages:    total,
		TotalElements: len(all),
		Number:        page,
		Size:          size,
		Last:          end == len(all),
		First:         page == 0,
	}
}

func (f *fakeAPI) GetPost(_ context.Context, id string) (*models.Post, error) {
	f.count("GetPost")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, &apiclient.APIError{Status: 404, Message: "Post no encontrado"}
}

func (f *fakeAPI) ListRepostsByPost(_ context.Context, postID string) ([]models.Repost, error) {
	f.count("ListRepostsByPost")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Repost
	for _, r := range f.reposts {
		if r.ParentID() == postID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAPI) ListSections(context.Context, int, int) ([]models.Section, error) {
	f.count("ListSections")
	return []models.Section{{ID: "1", SectionEnumType: models.SectionGeneral, DisplayName: "General"}}, nil
}

func (f *fakeAPI) ModeratorListPosts(ctx context.Context, page, size int, _, _ string) (models.Page[models.Post], error) {
	f.count("ModeratorListPosts")
	if f.beforeList != nil {
		f.beforeList(ctx)
	}
	if err := ctx.Err(); err != nil {
		return models.Page[models.Post]{}, err
	}
	if f.listErr != nil {
		return models.Page[models.Post]{}, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return paginate(f.posts, page, size), nil
}

func (f *fakeAPI) ModeratorListReposts(_ context.Context, page, size int, _, _ string) (models.Page[models.Repost], error) {
	f.count("ModeratorListReposts")
	f.mu.Lock()
	defer f.mu.Unlock()
	return paginate(f.reposts, page, size), nil
}

func (f *fakeAPI) ModeratorListRepostsByPost(ctx context.Context, postID string, page, size int) (models.Page[models.Repost], error) {
	f.count("ModeratorListRepostsByPost")
	list, _ := f.ListRepostsByPost(ctx, postID)
	return paginate(list, page, size), nil
}

func (f *fakeAPI) ModeratorGetPost(ctx context.Context, id string) (*models.Post, error) {
	return f.GetPost(ctx, id)
}

func (f *fakeAPI) ModeratorGetRepost(_ context.Context, id string) (*models.Repost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reposts {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, &apiclient.APIError{Status: 404, Message: "Respuesta no encontrada"}
}

func (f *fakeAPI) ModeratorUpdatePost(_ context.Context, id string, in apiclient.PostUpdate, file *apiclient.FilePart) (*models.Post, error) {
	f.count("ModeratorUpdatePost")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editFile = file
	for i := range f.posts {
		if f.posts[i].ID == id {
			f.posts[i].Title = in.Title
			f.posts[i].Content = in.Content
			f.posts[i].FileStatus = in.FileStatus
			f.posts[i].ApprovalStatus = in.ApprovalStatus
			p := f.posts[i]
			return &p, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeAPI) ModeratorUpdateRepost(_ context.Context, id string, in apiclient.RepostUpdate, _ *apiclient.FilePart) (*models.Repost, error) {
	f.count("ModeratorUpdateRepost")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reposts {
		if f.reposts[i].ID == id {
			f.reposts[i].Content = in.Content
			f.reposts[i].FileStatus = in.FileStatus
			f.reposts[i].ApprovalStatus = in.ApprovalStatus
			r := f.reposts[i]
			return &r, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeAPI) ModeratorDeletePost(_ context.Context, id string) error {
	f.count("ModeratorDeletePost")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.posts {
		if f.posts[i].ID == id {
			f.posts = append(f.posts[:i], f.posts[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeAPI) ModeratorDeleteRepost(_ context.Context, id string) error {
	f.count("ModeratorDeleteRepost")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reposts {
		if f.reposts[i].ID == id {
			f.reposts = append(f.reposts[:i], f.reposts[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeAPI) ForgotPassword(_ context.Context, _ string) error {
	f.count("ForgotPassword")
	return f.forgotErr
}

func (f *fakeAPI) VerifyResetCode(_ context.Context, _, _ string) error {
	f.count("VerifyResetCode")
	return f.verifyErr
}

func (f *fakeAPI) ResetPassword(_ context.Context, email, code, newPassword, confirm string) error {
	f.count("ResetPassword")
	f.resetArgs = []string{email, code, newPassword, confirm}
	return nil
}

func (f *fakeAPI) ListUsers(_ context.Context, page, size int) (models.Page[models.AdminUser], error) {
	f.count("ListUsers")
	return paginate([]models.AdminUser{{ID: "u1", Username: "root", Role: models.RoleAdmin}}, page, size), nil
}

func (f *fakeAPI) UserStats(context.Context) (*models.UserStats, error) {
	f.count("UserStats")
	return &models.UserStats{TotalUsers: 1}, nil
}

func (f *fakeAPI) GetUserByID(_ context.Context, id string) (*models.AdminUser, error) {
	return &models.AdminUser{ID: id}, nil
}

func (f *fakeAPI) GetUserByUsername(_ context.Context, username string) (*models.AdminUser, error) {
	return &models.AdminUser{Username: username}, nil
}

func (f *fakeAPI) GetUserByEmail(_ context.Context, email string) (*models.AdminUser, error) {
	return &models.AdminUser{Email: email}, nil
}

func (f *fakeAPI) RegisterUser(_ context.Context, in apiclient.RegisterInput) (*models.RegisterResult, error) {
	f.count("RegisterUser")
	return &models.RegisterResult{UserID: "u2", Username: in.Username, Email: in.Email}, nil
}

func (f *fakeAPI) VerifyEmail(context.Context, string, string) error {
	f.count("VerifyEmail")
	return nil
}

func (f *fakeAPI) ResendVerification(context.Context, string) error {
	f.count("ResendVerification")
	return nil
}

func (f *fakeAPI) ChangeRole(context.Context, string, models.Role) error {
	f.count("ChangeRole")
	return nil
}

func (f *fakeAPI) DeleteUser(context.Context, string, string) error {
	f.count("DeleteUser")
	return f.deleteErr
}

func (f *fakeAPI) ChangePassword(context.Context, apiclient.ChangePasswordInput) error {
	f.count("ChangePassword")
	return nil
}

func (f *fakeAPI) Profile(_ context.Context, role models.Role) (*models.AdminUser, error) {
	f.count("Profile")
	return &models.AdminUser{ID: "u1", Username: "root", Role: role}, nil
}

func (f *fakeAPI) AdminStats(_ context.Context, adminID string) (*models.AdminStats, error) {
	f.count("AdminStats")
	return &models.AdminStats{AdminID: adminID, TotalActions: 3}, nil
}

func (f *fakeAPI) GlobalStats(context.Context) (*models.GlobalStats, error) {
	f.count("GlobalStats")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &models.GlobalStats{TotalActions: 9}, nil
}

func (f *fakeAPI) ListLogs(_ context.Context, page, size int) (models.Page[models.ModerationLog], error) {
	f.count("ListLogs")
	return paginate([]models.ModerationLog{{ID: "l1", Action: models.ActionPostCreated}}, page, size), nil
}

func (f *fakeAPI) ListLogsByAction(_ context.Context, action models.LogAction, page, size int) (models.Page[models.ModerationLog], error) {
	f.count("ListLogsByAction")
	return paginate([]models.ModerationLog{{ID: "l2", Action: action}}, page, size), nil
}
