package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"circles/internal/config"
	"circles/internal/models"
	"circles/internal/service"
	"circles/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Str0ng!Password"

type testEnv struct {
	srv   *Server
	app   *fiber.App
	blobs *testutil.MemoryBlobStore
	redis *miniredis.Miniredis
}

// newTestEnv wires a full server over sqlite, miniredis and an in-memory
// blob store. withRedis=false exercises the degraded single-instance path.
func newTestEnv(t *testing.T, withRedis bool) *testEnv {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:            "test-secret",
		TokenTTLHours:        1,
		Env:                  "test",
		ImageMaxUploadSizeMB: 1,
		AllowedOrigins:       "http://localhost:5173",
	}

	env := &testEnv{blobs: testutil.NewMemoryBlobStore()}
	var rdb *redis.Client
	if withRedis {
		env.redis = miniredis.RunT(t)
		rdb = redis.NewClient(&redis.Options{Addr: env.redis.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
	}

	srv, err := NewServerWithDeps(cfg, testutil.NewSQLiteDB(t), rdb, env.blobs)
	require.NoError(t, err)
	srv.authService.WithHashCost(bcrypt.MinCost)
	t.Cleanup(func() { srv.shutdownFn() })

	env.srv = srv
	env.app = srv.App()
	return env
}

// do sends a JSON request and returns the status and raw body.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

// doJSON is do plus a status assertion and decode into out.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, body interface{}, wantStatus int, out interface{}) {
	t.Helper()
	status, raw := e.do(t, method, path, token, body)
	require.Equal(t, wantStatus, status, "body: %s", raw)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out))
	}
}

type testUser struct {
	ID    uint
	Token string
}

func (e *testEnv) signup(t *testing.T, username string) testUser {
	t.Helper()
	var result service.AuthResult
	e.doJSON(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"username":   username,
		"password":   testPassword,
		"first_name": "Test",
		"last_name":  "User",
	}, http.StatusCreated, &result)
	require.NotEmpty(t, result.Token)
	return testUser{ID: result.User.ID, Token: result.Token}
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, true)

	alice := env.signup(t, "alice")

	t.Run("duplicate username conflicts", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
			"username": "alice", "password": testPassword, "first_name": "A", "last_name": "B",
		})
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("weak password rejected", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
			"username": "bob", "password": "short", "first_name": "B", "last_name": "B",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("local login", func(t *testing.T) {
		var result service.AuthResult
		env.doJSON(t, http.MethodPost, "/api/auth/login/local", "", fiber.Map{
			"username": "alice", "password": testPassword,
		}, http.StatusOK, &result)
		assert.Equal(t, alice.ID, result.User.ID)
		assert.False(t, result.Created)
	})

	t.Run("bad credentials look the same", func(t *testing.T) {
		var wrongPassword, unknownUser models.ErrorResponse
		env.doJSON(t, http.MethodPost, "/api/auth/login/local", "", fiber.Map{
			"username": "alice", "password": "Wr0ng!Password",
		}, http.StatusUnauthorized, &wrongPassword)
		env.doJSON(t, http.MethodPost, "/api/auth/login/local", "", fiber.Map{
			"username": "nobody", "password": testPassword,
		}, http.StatusUnauthorized, &unknownUser)
		assert.Equal(t, wrongPassword, unknownUser)
	})

	t.Run("google login creates then reuses", func(t *testing.T) {
		body := fiber.Map{
			"google_id":   "google-123",
			"username":    "alice",
			"first_name":  "Alice",
			"last_name":   "Google",
			"profile_img": "https://example.com/a.png",
		}
		var first, second service.AuthResult
		env.doJSON(t, http.MethodPost, "/api/auth/login/google", "", body, http.StatusCreated, &first)
		env.doJSON(t, http.MethodPost, "/api/auth/login/google", "", body, http.StatusOK, &second)

		assert.True(t, first.Created)
		assert.False(t, second.Created)
		assert.Equal(t, first.User.ID, second.User.ID)
		assert.NotEqual(t, alice.ID, first.User.ID, "federated and local accounts are distinct")
	})

	t.Run("missing token", func(t *testing.T) {
		status, _ := env.do(t, http.MethodGet, "/api/profile", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		session := env.signup(t, "leaver")
		status, _ := env.do(t, http.MethodGet, "/api/profile", session.Token, nil)
		require.Equal(t, http.StatusOK, status)

		status, _ = env.do(t, http.MethodPost, "/api/auth/logout", session.Token, nil)
		require.Equal(t, http.StatusNoContent, status)

		var body models.ErrorResponse
		env.doJSON(t, http.MethodGet, "/api/profile", session.Token, nil, http.StatusUnauthorized, &body)
		assert.Equal(t, "Token has been revoked", body.Error)
	})
}

func TestProfileEndpoints(t *testing.T) {
	env := newTestEnv(t, false)
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	var view models.ProfileView
	env.doJSON(t, http.MethodPut, "/api/profile", alice.Token, fiber.Map{
		"first_name": "Alicia", "bio": "hello there",
	}, http.StatusOK, &view)
	assert.Equal(t, "Alicia", view.FirstName)
	assert.Equal(t, "User", view.LastName)
	assert.Equal(t, "hello there", view.Bio)

	status, _ := env.do(t, http.MethodPut, "/api/profile", alice.Token, fiber.Map{"first_name": "  "})
	assert.Equal(t, http.StatusBadRequest, status)

	var results []models.UserSearchResult
	env.doJSON(t, http.MethodGet, "/api/users?q=bo", alice.Token, nil, http.StatusOK, &results)
	require.Len(t, results, 1)
	assert.Equal(t, bob.ID, results[0].ID)
	assert.False(t, results[0].ViewerFollowsThem)

	var profile models.PublicProfile
	env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/users/%d", alice.ID), bob.Token, nil, http.StatusOK, &profile)
	assert.Equal(t, "Alicia", profile.FirstName)
	assert.Zero(t, profile.FollowerCount)

	status, _ = env.do(t, http.MethodGet, "/api/users/9999", bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.do(t, http.MethodGet, "/api/users/abc", bob.Token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAvatarUpload(t *testing.T) {
	env := newTestEnv(t, false)
	alice := env.signup(t, "alice")

	body, contentType := multipartBody(t, nil, "image", "me.png", testutil.TinyPNG(t, 40, 30))
	req := httptest.NewRequest(http.MethodPost, "/api/profile/avatar", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+alice.Token)

	status, raw := env.send(t, req)
	require.Equal(t, http.StatusOK, status, "body: %s", raw)

	var view models.ProfileView
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.Contains(t, view.Avatar, "/uploads/")
	assert.Equal(t, 1, env.blobs.Len())

	body, contentType = multipartBody(t, map[string]string{"note": "x"}, "", "", nil)
	req = httptest.NewRequest(http.MethodPost, "/api/profile/avatar", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+alice.Token)
	status, _ = env.send(t, req)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRequestLifecycle(t *testing.T) {
	env := newTestEnv(t, false)
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	carol := env.signup(t, "carol")

	var sent models.Request
	env.doJSON(t, http.MethodPost, "/api/requests", alice.Token, fiber.Map{"receiver_id": bob.ID}, http.StatusCreated, &sent)
	assert.Equal(t, models.RequestStatusPending, sent.Status)

	t.Run("self request rejected", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/api/requests", alice.Token, fiber.Map{"receiver_id": alice.ID})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("unknown receiver", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/api/requests", alice.Token, fiber.Map{"receiver_id": 9999})
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("inbox shows both sides", func(t *testing.T) {
		var aliceInbox, bobInbox models.RequestInbox
		env.doJSON(t, http.MethodGet, "/api/requests", alice.Token, nil, http.StatusOK, &aliceInbox)
		env.doJSON(t, http.MethodGet, "/api/requests", bob.Token, nil, http.StatusOK, &bobInbox)

		require.Len(t, aliceInbox.Sent, 1)
		assert.Equal(t, bob.ID, aliceInbox.Sent[0].Receiver.ID)
		assert.Empty(t, aliceInbox.Received)
		require.Len(t, bobInbox.Received, 1)
		assert.Equal(t, alice.ID, bobInbox.Received[0].Sender.ID)
	})

	t.Run("only the receiver resolves", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/api/followers", carol.Token, fiber.Map{"request_id": sent.ID})
		assert.Equal(t, http.StatusForbidden, status)
		status, _ = env.do(t, http.MethodPut, "/api/requests", alice.Token, fiber.Map{"request_id": sent.ID, "accept": true})
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("only the sender deletes", func(t *testing.T) {
		status, _ := env.do(t, http.MethodDelete, fmt.Sprintf("/api/requests/%d", sent.ID), bob.Token, nil)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("resolve requires a decision", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPut, "/api/requests", bob.Token, fiber.Map{"request_id": sent.ID})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	var accepted service.AcceptResult
	env.doJSON(t, http.MethodPost, "/api/followers", bob.Token, fiber.Map{"request_id": sent.ID}, http.StatusOK, &accepted)
	assert.Equal(t, models.RequestStatusAccepted, accepted.Request.Status)
	assert.True(t, accepted.EdgeCreated)

	// Accepting twice leaves the graph unchanged.
	env.doJSON(t, http.MethodPost, "/api/followers", bob.Token, fiber.Map{"request_id": sent.ID}, http.StatusOK, &accepted)
	assert.False(t, accepted.EdgeCreated)

	var aliceFollowers []models.FollowerEntry
	env.doJSON(t, http.MethodGet, "/api/followers", alice.Token, nil, http.StatusOK, &aliceFollowers)
	require.Len(t, aliceFollowers, 1)
	assert.Equal(t, bob.ID, aliceFollowers[0].User.ID)
	assert.False(t, aliceFollowers[0].FollowsBack)

	var bobFollowing []models.UserSummary
	env.doJSON(t, http.MethodGet, "/api/following", bob.Token, nil, http.StatusOK, &bobFollowing)
	require.Len(t, bobFollowing, 1)
	assert.Equal(t, alice.ID, bobFollowing[0].ID)

	t.Run("clear accepted requests", func(t *testing.T) {
		var out struct {
			Deleted int64 `json:"deleted"`
		}
		env.doJSON(t, http.MethodDelete, "/api/requests/category/accepted", alice.Token, nil, http.StatusOK, &out)
		assert.Equal(t, int64(1), out.Deleted)

		status, _ := env.do(t, http.MethodDelete, "/api/requests/category/bogus", alice.Token, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("reject then withdraw", func(t *testing.T) {
		var req models.Request
		env.doJSON(t, http.MethodPost, "/api/requests", carol.Token, fiber.Map{"receiver_id": alice.ID}, http.StatusCreated, &req)
		env.doJSON(t, http.MethodPut, "/api/requests", alice.Token, fiber.Map{"request_id": req.ID, "accept": false}, http.StatusOK, &req)
		assert.Equal(t, models.RequestStatusRejected, req.Status)

		status, _ := env.do(t, http.MethodDelete, fmt.Sprintf("/api/requests/%d", req.ID), carol.Token, nil)
		assert.Equal(t, http.StatusNoContent, status)
		status, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/api/requests/%d", req.ID), carol.Token, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestFollowerManagement(t *testing.T) {
	env := newTestEnv(t, false)
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	var req models.Request
	env.doJSON(t, http.MethodPost, "/api/requests", alice.Token, fiber.Map{"receiver_id": bob.ID}, http.StatusCreated, &req)
	env.doJSON(t, http.MethodPost, "/api/followers", bob.Token, fiber.Map{"request_id": req.ID}, http.StatusOK, nil)

	var created struct {
		Created bool `json:"created"`
	}
	env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/followers/%d/follow-back", bob.ID), alice.Token, nil, http.StatusOK, &created)
	assert.True(t, created.Created)
	env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/followers/%d/follow-back", bob.ID), alice.Token, nil, http.StatusOK, &created)
	assert.False(t, created.Created)

	var followers []models.FollowerEntry
	env.doJSON(t, http.MethodGet, "/api/followers", alice.Token, nil, http.StatusOK, &followers)
	require.Len(t, followers, 1)
	assert.True(t, followers[0].FollowsBack)

	var removed struct {
		Removed bool `json:"removed"`
	}
	env.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/following/%d", bob.ID), alice.Token, nil, http.StatusOK, &removed)
	assert.True(t, removed.Removed)
	env.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/following/%d", bob.ID), alice.Token, nil, http.StatusOK, &removed)
	assert.False(t, removed.Removed)

	// Unfollowing clears alice's request to bob so a new one starts fresh.
	var inbox models.RequestInbox
	env.doJSON(t, http.MethodGet, "/api/requests", alice.Token, nil, http.StatusOK, &inbox)
	assert.Empty(t, inbox.Sent)

	// bob still follows alice and now asks to be followed back.
	var bobReq models.Request
	env.doJSON(t, http.MethodPost, "/api/requests", bob.Token, fiber.Map{"receiver_id": alice.ID}, http.StatusCreated, &bobReq)

	env.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/followers/%d", bob.ID), alice.Token, nil, http.StatusOK, &removed)
	assert.True(t, removed.Removed)
	env.doJSON(t, http.MethodDelete, fmt.Sprintf("/api/followers/%d", bob.ID), alice.Token, nil, http.StatusOK, &removed)
	assert.False(t, removed.Removed)

	env.doJSON(t, http.MethodGet, "/api/followers", alice.Token, nil, http.StatusOK, &followers)
	assert.Empty(t, followers)

	env.doJSON(t, http.MethodGet, "/api/requests", bob.Token, nil, http.StatusOK, &inbox)
	require.Len(t, inbox.Sent, 1)
	assert.Equal(t, models.RequestStatusRejected, inbox.Sent[0].Status)

	status, _ := env.do(t, http.MethodPost, fmt.Sprintf("/api/followers/%d/follow-back", bob.ID), alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPostsAndComments(t *testing.T) {
	env := newTestEnv(t, false)
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	carol := env.signup(t, "carol")

	var public, restricted models.Post
	env.doJSON(t, http.MethodPost, "/api/posts", alice.Token, fiber.Map{"content": "hello world"}, http.StatusCreated, &public)
	assert.Equal(t, models.VisibilityAll, public.Visibility)
	env.doJSON(t, http.MethodPost, "/api/posts", alice.Token, fiber.Map{
		"content": "friends only", "visibility": "followers-following",
	}, http.StatusCreated, &restricted)

	status, _ := env.do(t, http.MethodPost, "/api/posts", alice.Token, fiber.Map{"content": "x", "visibility": "secret"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = env.do(t, http.MethodPost, "/api/posts", alice.Token, fiber.Map{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, status)

	// bob follows alice through an accepted request.
	var req models.Request
	env.doJSON(t, http.MethodPost, "/api/requests", alice.Token, fiber.Map{"receiver_id": bob.ID}, http.StatusCreated, &req)
	env.doJSON(t, http.MethodPost, "/api/followers", bob.Token, fiber.Map{"request_id": req.ID}, http.StatusOK, nil)

	postIDs := func(posts []*models.Post) []uint {
		ids := make([]uint, 0, len(posts))
		for _, p := range posts {
			ids = append(ids, p.ID)
		}
		return ids
	}

	var feed []*models.Post
	env.doJSON(t, http.MethodGet, "/api/posts/feed", bob.Token, nil, http.StatusOK, &feed)
	assert.ElementsMatch(t, []uint{public.ID, restricted.ID}, postIDs(feed))

	env.doJSON(t, http.MethodGet, "/api/posts/feed", carol.Token, nil, http.StatusOK, &feed)
	assert.Equal(t, []uint{public.ID}, postIDs(feed))

	env.doJSON(t, http.MethodGet, "/api/posts/following", bob.Token, nil, http.StatusOK, &feed)
	assert.ElementsMatch(t, []uint{public.ID, restricted.ID}, postIDs(feed))
	env.doJSON(t, http.MethodGet, "/api/posts/followers", alice.Token, nil, http.StatusOK, &feed)
	assert.Empty(t, feed)

	var mine []*models.Post
	env.doJSON(t, http.MethodGet, "/api/posts", alice.Token, nil, http.StatusOK, &mine)
	assert.Len(t, mine, 2)

	t.Run("likes are idempotent", func(t *testing.T) {
		var post models.Post
		path := fmt.Sprintf("/api/posts/%d/like", public.ID)
		env.doJSON(t, http.MethodPut, path, carol.Token, nil, http.StatusOK, &post)
		assert.Equal(t, 1, post.LikeCount)
		assert.True(t, post.Liked)
		env.doJSON(t, http.MethodPut, path, carol.Token, nil, http.StatusOK, &post)
		assert.Equal(t, 1, post.LikeCount)

		var liked []*models.Post
		env.doJSON(t, http.MethodGet, "/api/posts/liked", carol.Token, nil, http.StatusOK, &liked)
		assert.Equal(t, []uint{public.ID}, postIDs(liked))

		env.doJSON(t, http.MethodDelete, path, carol.Token, nil, http.StatusOK, &post)
		assert.Equal(t, 0, post.LikeCount)
		assert.False(t, post.Liked)
		env.doJSON(t, http.MethodDelete, path, carol.Token, nil, http.StatusOK, &post)
		assert.Equal(t, 0, post.LikeCount)

		status, _ := env.do(t, http.MethodPut, "/api/posts/9999/like", carol.Token, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("comments", func(t *testing.T) {
		path := fmt.Sprintf("/api/posts/%d/comments", public.ID)
		var comment models.Comment
		env.doJSON(t, http.MethodPost, path, bob.Token, fiber.Map{"text": "  nice  "}, http.StatusCreated, &comment)
		assert.Equal(t, "nice", comment.Text)
		assert.Equal(t, bob.ID, comment.AuthorID)

		status, _ := env.do(t, http.MethodPost, path, bob.Token, fiber.Map{"text": ""})
		assert.Equal(t, http.StatusBadRequest, status)

		var comments []*models.Comment
		env.doJSON(t, http.MethodGet, path, carol.Token, nil, http.StatusOK, &comments)
		require.Len(t, comments, 1)
		require.NotNil(t, comments[0].Author)
		assert.Equal(t, "bob", comments[0].Author.Username)

		status, _ = env.do(t, http.MethodGet, "/api/posts/9999/comments", carol.Token, nil)
		assert.Equal(t, http.StatusNotFound, status)
		status, _ = env.do(t, http.MethodPost, "/api/posts/9999/comments", carol.Token, fiber.Map{"text": "hi"})
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestCreatePost_Multipart(t *testing.T) {
	env := newTestEnv(t, false)
	alice := env.signup(t, "alice")

	body, contentType := multipartBody(t, map[string]string{
		"content":    "with picture",
		"visibility": "all",
	}, "image", "pic.png", testutil.TinyPNG(t, 64, 48))
	req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+alice.Token)

	status, raw := env.send(t, req)
	require.Equal(t, http.StatusCreated, status, "body: %s", raw)

	var post models.Post
	require.NoError(t, json.Unmarshal(raw, &post))
	assert.Equal(t, "with picture", post.Content)
	require.NotNil(t, post.ImageURL)
	assert.Contains(t, *post.ImageURL, "/uploads/")
	assert.Equal(t, 1, env.blobs.Len())
}

func TestWSTicket(t *testing.T) {
	t.Run("issued with redis", func(t *testing.T) {
		env := newTestEnv(t, true)
		alice := env.signup(t, "alice")

		var out struct {
			Ticket    string `json:"ticket"`
			ExpiresIn int    `json:"expires_in"`
		}
		env.doJSON(t, http.MethodPost, "/api/ws/ticket", alice.Token, nil, http.StatusOK, &out)
		assert.NotEmpty(t, out.Ticket)
		assert.Positive(t, out.ExpiresIn)
	})

	t.Run("unavailable without redis", func(t *testing.T) {
		env := newTestEnv(t, false)
		alice := env.signup(t, "alice")
		status, _ := env.do(t, http.MethodPost, "/api/ws/ticket", alice.Token, nil)
		assert.Equal(t, http.StatusServiceUnavailable, status)
	})

	t.Run("bad ticket refused", func(t *testing.T) {
		env := newTestEnv(t, true)
		status, _ := env.do(t, http.MethodGet, "/api/ws?ticket=nope", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestServerRequiresDeps(t *testing.T) {
	_, err := NewServerWithDeps(nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestUploadsRefusedWithoutBlobStore(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", TokenTTLHours: 1, Env: "test"}
	srv, err := NewServerWithDeps(cfg, testutil.NewSQLiteDB(t), nil, nil)
	require.NoError(t, err)
	srv.authService.WithHashCost(bcrypt.MinCost)
	env := &testEnv{srv: srv, app: srv.App()}
	alice := env.signup(t, "alice")

	body, contentType := multipartBody(t, nil, "image", "me.png", testutil.TinyPNG(t, 8, 8))
	req := httptest.NewRequest(http.MethodPost, "/api/profile/avatar", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+alice.Token)
	status, _ := env.send(t, req)
	assert.Equal(t, http.StatusBadRequest, status)
}
