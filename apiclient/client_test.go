package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rchan/rchan-web/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second)
}

func TestUnauthorizedWithExpiryMarkerIsSessionExpired(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Token inválido","type":"TOKEN_EXPIRED"}`))
	})

	_, err := c.WithToken("tok").ListUsers(context.Background(), 0, 10)
	require.Error(t, err)
	assert.True(t, IsSessionExpired(err))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestUnauthorizedWithExpiredTextIsSessionExpired(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"JWT token has expired"}`))
	})

	_, err := c.WithToken("tok").UserStats(context.Background())
	assert.True(t, IsSessionExpired(err))
}

func TestScopedUnauthorizedDoesNotExpireSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Solo administradores"}`))
	})

	_, err := c.WithToken("tok").ListLogs(context.Background(), 0, 20)
	require.Error(t, err)
	assert.False(t, IsSessionExpired(err))
	var ue *UnauthorizedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Solo administradores", ue.Error())
}

func TestUnauthorizedWithoutBodyUsesDefaultMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.WithToken("tok").GlobalStats(context.Background())
	var ue *UnauthorizedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "No autorizado", ue.Error())
}

func TestErrorFieldBecomesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"El título es obligatorio"}`))
	})

	_, err := c.CreatePost(context.Background(), PostInput{}, nil)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "El título es obligatorio", ae.Error())
}

func TestNonJSONErrorUsesGenericMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := c.GetPost(context.Background(), "p1")
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Error del servidor", ae.Error())
}

func TestEmptyAndNonJSONSuccessBodies(t *testing.T) {
	bodies := []string{"", "Post deleted successfully", "   "}
	for _, body := range bodies {
		body := body
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		assert.NoError(t, c.WithToken("tok").ModeratorDeletePost(context.Background(), "p1"), "body %q", body)

		p, err := c.CreatePost(context.Background(), PostInput{Title: "t"}, nil)
		require.NoError(t, err, "body %q", body)
		assert.Equal(t, models.ApprovalUnknown, p.ApprovalStatus)
	}
}

func TestNetworkErrorHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).ListPosts(context.Background(), 0, 10, "createdDate", "")
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 0, ne.Status())
	assert.Equal(t, "No se pudo conectar con el servidor", ne.Error())
}

func TestNetworkErrorReset(t *testing.T) {
	assert.True(t, (&NetworkError{Err: errors.New("read tcp: connection reset by peer")}).Reset())
	assert.True(t, (&NetworkError{Err: errors.New("Connection reset")}).Reset())
	assert.False(t, (&NetworkError{Err: errors.New("i/o timeout")}).Reset())
}

func TestCanceledContextIsNotANetworkError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListPosts(ctx, 0, 10, "createdDate", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTokenSendsBearer(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"totalUsers":3,"activeUsers":2,"pendingVerificationUsers":1}`))
	})

	stats, err := c.WithToken("abc.def.ghi").UserStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc.def.ghi", got)
	assert.Equal(t, int64(3), stats.TotalUsers)

	_, err = c.ListPosts(context.Background(), 0, 10, "", "")
	require.NoError(t, err)
	assert.Empty(t, got, "anonymous client must not leak the token")
}

func TestCreatePostSendsMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/post", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		blob, hdr, err := r.FormFile("postData")
		require.NoError(t, err)
		assert.Equal(t, "application/json", hdr.Header.Get("Content-Type"))
		var in PostInput
		require.NoError(t, json.NewDecoder(blob).Decode(&in))
		assert.Equal(t, "Hola", in.Title)
		assert.Equal(t, models.SectionTechnology, in.SectionType)

		f, fh, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "cat.png", fh.Filename)
		assert.Equal(t, "image/png", fh.Header.Get("Content-Type"))
		data, _ := io.ReadAll(f)
		assert.Equal(t, "PNGDATA", string(data))

		_, _ = w.Write([]byte(`{"id":"p1","title":"Hola","approvalStatus":"PENDING","createdDate":"2024-05-01T10:00:00.123"}`))
	})

	p, err := c.CreatePost(context.Background(), PostInput{Title: "Hola", SectionType: models.SectionTechnology},
		&FilePart{Name: "cat.png", ContentType: "image/png", Reader: strings.NewReader("PNGDATA")})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, p.ApprovalStatus)
	assert.Equal(t, 2024, p.CreatedDate.Year())
}

func TestListPostsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "10", q.Get("size"))
		assert.Equal(t, "createdDate", q.Get("sort"))
		assert.Equal(t, "TECHNOLOGY", q.Get("sectionType"))
		_, _ = w.Write([]byte(`{"content":[{"id":"p1","section":{"sectionType":"TECHNOLOGY"}}],"totalElements":11,"last":true}`))
	})

	page, err := c.ListPosts(context.Background(), 2, 10, "createdDate", models.SectionTechnology)
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, models.SectionTechnology, page.Content[0].SectionType())
	assert.False(t, page.HasNext(10))
}

func TestRepostsByPostAcceptsArrayOrPage(t *testing.T) {
	for _, body := range []string{`[{"id":"r1"}]`, `{"content":[{"id":"r1"}]}`} {
		body := body
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "p1", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(body))
		})
		replies, err := c.ListRepostsByPost(context.Background(), "p1")
		require.NoError(t, err)
		require.Len(t, replies, 1)
		assert.Equal(t, "r1", replies[0].ID)
	}
}

func TestLookupsByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		switch r.URL.Path {
		case "/api/repost/id":
			_, _ = w.Write([]byte(`{"id":"` + id + `","postId":"p1","content":"hola","approvalStatus":"APPROVED"}`))
		case "/api/section/id":
			_, _ = w.Write([]byte(`{"id":"` + id + `","sectionEnumType":"TECHNOLOGY","displayName":"Tecnología","postCount":4}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	repost, err := c.GetRepost(ctx, "r7")
	require.NoError(t, err)
	assert.Equal(t, "r7", repost.ID)
	assert.Equal(t, "p1", repost.PostID)
	assert.Equal(t, models.ApprovalApproved, repost.ApprovalStatus)

	section, err := c.GetSection(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "s2", section.ID)
	assert.Equal(t, models.SectionTechnology, section.SectionEnumType)
	assert.Equal(t, 4, section.PostCount)

	_, err = c.GetRepost(ctx, "")
	assert.ErrorIs(t, err, errEmptyID)
	_, err = c.GetSection(ctx, "")
	assert.ErrorIs(t, err, errEmptyID)
}

func TestListRepostsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/repost", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "5", q.Get("size"))
		assert.Equal(t, "createdDate", q.Get("sort"))
		_, _ = w.Write([]byte(`{"content":[{"id":"r1"},{"id":"r2"}],"totalElements":7,"last":false}`))
	})

	page, err := c.ListReposts(context.Background(), 1, 5, "createdDate")
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "r2", page.Content[1].ID)
	assert.Equal(t, 7, page.TotalElements)
	assert.False(t, page.HasNext(5))
}

func TestModeratorCreateSendsStatusAndFile(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer mod", r.Header.Get("Authorization"))
		paths = append(paths, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		blob, _, err := r.FormFile("postData")
		require.NoError(t, err)
		var in map[string]any
		require.NoError(t, json.NewDecoder(blob).Decode(&in))

		switch r.URL.Path {
		case "/moderator/api/post":
			assert.Equal(t, "Aviso", in["title"])
			assert.Equal(t, "APPROVED", in["approvalStatus"])
			_, fh, err := r.FormFile("file")
			require.NoError(t, err)
			assert.Equal(t, "aviso.png", fh.Filename)
			_, _ = w.Write([]byte(`{"id":"p5","title":"Aviso","approvalStatus":"APPROVED"}`))
		case "/moderator/api/repost":
			assert.Equal(t, "p5", in["postId"])
			_, _, err := r.FormFile("file")
			assert.ErrorIs(t, err, http.ErrMissingFile)
			_, _ = w.Write([]byte(`{"id":"r9","postId":"p5","content":"fijado","approvalStatus":"APPROVED"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mod := c.WithToken("mod")
	ctx := context.Background()

	post, err := mod.ModeratorCreatePost(ctx, ModeratorPostInput{
		Title:          "Aviso",
		Content:        "reglas",
		SectionType:    models.SectionTechnology,
		ApprovalStatus: models.ApprovalApproved,
	}, &FilePart{Name: "aviso.png", ContentType: "image/png", Reader: strings.NewReader("PNG")})
	require.NoError(t, err)
	assert.Equal(t, "p5", post.ID)
	assert.Equal(t, models.ApprovalApproved, post.ApprovalStatus)

	repost, err := mod.ModeratorCreateRepost(ctx, RepostInput{Content: "fijado", PostID: "p5"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "r9", repost.ID)

	assert.Equal(t, []string{"/moderator/api/post", "/moderator/api/repost"}, paths)
}

func TestLoginFailureIsNotSessionExpiry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		blob, _, err := r.FormFile("sendData")
		require.NoError(t, err)
		data, _ := io.ReadAll(blob)
		assert.Contains(t, string(data), `"username":"mod"`)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.Login(context.Background(), "mod", "secret")
	require.Error(t, err)
	assert.False(t, IsSessionExpired(err))
	assert.Equal(t, "Error de autenticación", err.Error())
}

func TestDeleteUserErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{http.StatusForbidden, `{}`, func(t *testing.T, err error) {
			var fe *ForbiddenError
			require.ErrorAs(t, err, &fe)
			assert.Contains(t, fe.Error(), "Solo los administradores")
		}},
		{http.StatusInternalServerError, `{"error":"Cannot delete or update a parent row: a foreign key constraint fails"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrUserHasRelatedData)
		}},
		{http.StatusOK, ``, func(t *testing.T, err error) {
			assert.NoError(t, err)
		}},
	}
	for _, tc := range cases {
		tc := tc
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		})
		tc.check(t, c.WithToken("tok").DeleteUser(context.Background(), "u1", "pw"))
	}
}

func TestChangePasswordIncorrectCurrent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Current password is incorrect"}`))
	})

	err := c.WithToken("tok").ChangePassword(context.Background(), ChangePasswordInput{})
	assert.ErrorIs(t, err, ErrCurrentPasswordIncorrect)
}

func TestProfileUsesRolePath(t *testing.T) {
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"id":"u1","username":"ana","role":"ADMINISTRATOR"}`))
	})

	u, err := c.WithToken("tok").Profile(context.Background(), models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "/admin/api/profile", path)
	assert.Equal(t, models.RoleAdmin, u.Role)

	_, err = c.WithToken("tok").Profile(context.Background(), models.RoleModerator)
	require.NoError(t, err)
	assert.Equal(t, "/moderator/api/profile", path)
}

func TestResolveBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.example.com", ResolveBaseURL("https://api.example.com/", "ignored", ""))
	assert.Equal(t, "http://localhost:8080", ResolveBaseURL("", "localhost:8081", ""))
	assert.Equal(t, "http://forum.lan:8080", ResolveBaseURL("", "forum.lan:8081", "8080"))
	assert.Equal(t, "http://10.0.0.5:9000", ResolveBaseURL("", "10.0.0.5", "9000"))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ana", "exp": exp.Unix()}).
		SignedString([]byte("backend-secret"))
	require.NoError(t, err)

	got, err := TokenExpiry(tok)
	require.NoError(t, err)
	assert.True(t, got.Equal(exp))
	assert.False(t, TokenExpired(tok, time.Now()))
	assert.True(t, TokenExpired(tok, exp.Add(time.Second)))
	assert.True(t, TokenExpired("not-a-jwt", time.Now()))
}
