package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himawari-tools/line-secretary/internal/ai"
	"github.com/himawari-tools/line-secretary/internal/auth"
	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/services"
	"github.com/himawari-tools/line-secretary/internal/store"
	"github.com/himawari-tools/line-secretary/internal/store/sqlite"
)

const (
	testChannelSecret = "test-channel-secret"
	testChannelID     = "1234567890"
)

type fakeAssistant struct{}

func (fakeAssistant) ExtractMemoData(_ context.Context, text string) ai.MemoExtraction {
	return ai.FallbackMemoExtraction(text)
}
func (fakeAssistant) GenerateSummary(context.Context, string) (string, error) { return "", nil }
func (fakeAssistant) AnalyzeScheduleMessage(context.Context, string) (*ai.ScheduleAnalysis, error) {
	return &ai.ScheduleAnalysis{}, nil
}
func (fakeAssistant) AnalyzeWarikanMessage(context.Context, string) (*ai.WarikanAnalysis, error) {
	return &ai.WarikanAnalysis{}, nil
}
func (fakeAssistant) GenerateHelpResponse(context.Context, string) string { return ai.HelpFallback }

type testAPI struct {
	router *mux.Router
	store  store.Store
	memos  *services.MemoService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st := sqlite.NewWithDB(db)

	log := zerolog.Nop()
	memos := services.NewMemoService(st, fakeAssistant{}, log)
	t.Cleanup(memos.Flush)
	router := NewRouter(RouterConfig{
		Verifier:  auth.NewVerifier(testChannelSecret, testChannelID),
		Users:     services.NewUserService(st, log),
		Groups:    services.NewGroupService(st, log),
		Warikans:  services.NewWarikanService(st, log),
		Schedules: services.NewScheduleService(st, time.FixedZone("JST", 9*60*60), log),
		Memos:     memos,
		Log:       log,
	})
	return &testAPI{router: router, store: st, memos: memos}
}

func idToken(t *testing.T, lineUserID string) string {
	t.Helper()
	claims := auth.Claims{
		Name: "テストユーザー",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://access.line.me",
			Subject:   lineUserID,
			Audience:  jwt.ClaimStrings{testChannelID},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString([]byte(testChannelSecret))
	require.NoError(t, err)
	return signed
}

// do runs a request as lineUserID and decodes the JSON response into out
// when out is non-nil.
func (a *testAPI) do(t *testing.T, method, path, lineUserID string, body, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if lineUserID != "" {
		req.Header.Set("Authorization", "Bearer "+idToken(t, lineUserID))
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestHealthOpen(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/api/user/profile", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileCreatesUserOnFirstCall(t *testing.T) {
	a := newTestAPI(t)

	var user model.User
	rec := a.do(t, http.MethodGet, "/api/user/profile", "U-line-1", nil, &user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "U-line-1", user.LineUserID)
	assert.Equal(t, model.PlanFree, user.Plan)
	require.NotNil(t, user.DisplayName)
	assert.Equal(t, "テストユーザー", *user.DisplayName)
}

func TestUpdateSettings(t *testing.T) {
	a := newTestAPI(t)

	var user model.User
	rec := a.do(t, http.MethodPatch, "/api/user/settings", "U-line-1", map[string]interface{}{
		"language": "en",
		"timezone": "Asia/Tokyo",
		"notifications": map[string]bool{
			"reminder": false, "daily": true, "weekly": true,
		},
	}, &user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "en", user.Settings.Language)
	assert.False(t, user.Settings.Notifications.Reminder)

	rec = a.do(t, http.MethodPatch, "/api/user/settings", "U-line-1", map[string]interface{}{
		"language": "fr",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsageEndpoint(t *testing.T) {
	a := newTestAPI(t)

	var out struct {
		Plan   model.Plan          `json:"plan"`
		Usage  model.UsageCounters `json:"usage"`
		Limits model.PlanLimits    `json:"limits"`
	}
	rec := a.do(t, http.MethodGet, "/api/user/usage", "U-line-1", nil, &out)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PlanFree, out.Plan)
	assert.Equal(t, 50, out.Limits.APICallsPerDay)
	assert.Equal(t, 1, out.Usage.APICalls)
}

func TestUserGroups(t *testing.T) {
	a := newTestAPI(t)

	var user model.User
	rec := a.do(t, http.MethodGet, "/api/user/profile", "U-line-1", nil, &user)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Groups []model.Group `json:"groups"`
		Count  int           `json:"count"`
	}
	rec = a.do(t, http.MethodGet, "/api/user/groups", "U-line-1", nil, &out)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, out.Count)

	groups := services.NewGroupService(a.store, zerolog.Nop())
	_, err := groups.EnsureMembership(context.Background(), "LG-api", user.UserID)
	require.NoError(t, err)

	rec = a.do(t, http.MethodGet, "/api/user/groups", "U-line-1", nil, &out)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, out.Count)
	require.NotNil(t, out.Groups[0].LineGroupID)
	assert.Equal(t, "LG-api", *out.Groups[0].LineGroupID)
}

func TestWarikanLifecycle(t *testing.T) {
	a := newTestAPI(t)

	var created model.Warikan
	rec := a.do(t, http.MethodPost, "/api/warikan", "U-line-1", map[string]interface{}{
		"title": "飲み会", "totalAmount": 3000, "memberCount": 2,
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 1500, created.Members[0].Amount)

	var list struct {
		Count int `json:"count"`
	}
	rec = a.do(t, http.MethodGet, "/api/warikan", "U-line-1", nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, list.Count)

	var paid struct {
		Warikan model.Warikan       `json:"warikan"`
		Member  model.WarikanMember `json:"member"`
	}
	rec = a.do(t, http.MethodPatch, "/api/warikan/"+created.WarikanID+"/pay", "U-line-1", nil, &paid)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, paid.Member.IsPaid)
	assert.Equal(t, model.WarikanActive, paid.Warikan.Status)

	var settled model.Warikan
	rec = a.do(t, http.MethodPatch, "/api/warikan/"+created.WarikanID+"/status", "U-line-1",
		map[string]string{"status": "settled"}, &settled)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.WarikanSettled, settled.Status)

	// Settling a terminal split conflicts.
	rec = a.do(t, http.MethodPatch, "/api/warikan/"+created.WarikanID+"/status", "U-line-1",
		map[string]string{"status": "settled"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWarikanAccessControl(t *testing.T) {
	a := newTestAPI(t)

	var created model.Warikan
	rec := a.do(t, http.MethodPost, "/api/warikan", "U-line-1", map[string]interface{}{
		"totalAmount": 1000, "memberCount": 3,
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/warikan/"+created.WarikanID, "U-line-2", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPatch, "/api/warikan/"+created.WarikanID+"/status", "U-line-2",
		map[string]string{"status": "cancelled"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/warikan/nonexistent", "U-line-1", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWarikanValidation(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/warikan", "U-line-1", map[string]interface{}{
		"totalAmount": -100, "memberCount": 2,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/warikan", "U-line-1", map[string]interface{}{
		"totalAmount": 1000, "memberCount": 21,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleCRUD(t *testing.T) {
	a := newTestAPI(t)
	start := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)

	var created model.Schedule
	rec := a.do(t, http.MethodPost, "/api/schedule", "U-line-1", map[string]interface{}{
		"title": "会議", "startTime": start,
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.SchedulePending, created.Status)

	var got model.Schedule
	rec = a.do(t, http.MethodGet, "/api/schedule/"+created.ScheduleID, "U-line-1", nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "会議", got.Title)

	var list struct {
		Count int `json:"count"`
	}
	rec = a.do(t, http.MethodGet, "/api/schedule", "U-line-1", nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, list.Count)

	var updated model.Schedule
	rec = a.do(t, http.MethodPatch, "/api/schedule/"+created.ScheduleID, "U-line-1",
		map[string]string{"title": "定例会議", "location": "会議室A"}, &updated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "定例会議", updated.Title)
	require.NotNil(t, updated.Location)
	assert.Equal(t, "会議室A", *updated.Location)

	rec = a.do(t, http.MethodPatch, "/api/schedule/"+created.ScheduleID+"/status", "U-line-1",
		map[string]string{"status": "completed"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Editing a completed schedule conflicts.
	rec = a.do(t, http.MethodPatch, "/api/schedule/"+created.ScheduleID, "U-line-1",
		map[string]string{"title": "x"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodDelete, "/api/schedule/"+created.ScheduleID, "U-line-1", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/schedule/"+created.ScheduleID, "U-line-1", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScheduleOwnerOnly(t *testing.T) {
	a := newTestAPI(t)
	start := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	var created model.Schedule
	rec := a.do(t, http.MethodPost, "/api/schedule", "U-line-1", map[string]interface{}{
		"title": "歯医者", "startTime": start,
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodDelete, "/api/schedule/"+created.ScheduleID, "U-line-2", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPersonalMemoCRUD(t *testing.T) {
	a := newTestAPI(t)

	var created model.PersonalMemo
	rec := a.do(t, http.MethodPost, "/api/memos/personal", "U-line-1", map[string]interface{}{
		"title": "買い物リスト", "content": "牛乳\n卵", "tags": []string{"買い物"},
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "買い物リスト", created.Title)

	var archived model.PersonalMemo
	rec = a.do(t, http.MethodPatch, "/api/memos/personal/"+created.MemoID, "U-line-1",
		map[string]interface{}{"isArchived": true}, &archived)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, archived.IsArchived)

	// Archived memos are hidden from the default listing.
	var list struct {
		Count int `json:"count"`
	}
	rec = a.do(t, http.MethodGet, "/api/memos/personal", "U-line-1", nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, list.Count)
	rec = a.do(t, http.MethodGet, "/api/memos/personal?archived=true", "U-line-1", nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, list.Count)

	// Another user cannot read it.
	rec = a.do(t, http.MethodGet, "/api/memos/personal/"+created.MemoID, "U-line-2", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodDelete, "/api/memos/personal/"+created.MemoID, "U-line-1", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, http.MethodGet, "/api/memos/personal/"+created.MemoID, "U-line-1", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPersonalMemoSearch(t *testing.T) {
	a := newTestAPI(t)

	for _, title := range []string{"会議メモ", "旅行計画"} {
		rec := a.do(t, http.MethodPost, "/api/memos/personal", "U-line-1", map[string]interface{}{
			"title": title, "content": title + "の内容",
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	var out struct {
		Memos []model.PersonalMemo `json:"memos"`
		Count int                  `json:"count"`
	}
	rec := a.do(t, http.MethodGet, "/api/memos/personal?q=会議", "U-line-1", nil, &out)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "会議メモ", out.Memos[0].Title)
}

func TestSharedMemoVersionConflict(t *testing.T) {
	a := newTestAPI(t)

	var created model.SharedMemo
	rec := a.do(t, http.MethodPost, "/api/memos/shared", "U-line-1", map[string]interface{}{
		"groupId": "G1", "title": "会議メモ", "content": "議題: 予算",
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.EqualValues(t, 1, created.Version)

	var updated model.SharedMemo
	rec = a.do(t, http.MethodPatch, "/api/memos/shared/"+created.MemoID, "U-line-1",
		map[string]interface{}{"content": "議題: 予算と日程", "version": 1}, &updated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, updated.Version)

	// A concurrent editor holding version 1 gets a conflict.
	rec = a.do(t, http.MethodPatch, "/api/memos/shared/"+created.MemoID, "U-line-1",
		map[string]interface{}{"content": "古い内容", "version": 1}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Non-editors cannot write at all.
	rec = a.do(t, http.MethodPatch, "/api/memos/shared/"+created.MemoID, "U-line-2",
		map[string]interface{}{"content": "勝手な編集", "version": 2}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Only the creator deletes.
	rec = a.do(t, http.MethodDelete, "/api/memos/shared/"+created.MemoID, "U-line-2", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(t, http.MethodDelete, "/api/memos/shared/"+created.MemoID, "U-line-1", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMemoPages(t *testing.T) {
	a := newTestAPI(t)

	var root model.MemoPage
	rec := a.do(t, http.MethodPost, "/api/memos/pages", "U-line-1", map[string]interface{}{
		"title": "仕事",
	}, &root)
	require.Equal(t, http.StatusCreated, rec.Code)

	var child model.MemoPage
	rec = a.do(t, http.MethodPost, "/api/memos/pages", "U-line-1", map[string]interface{}{
		"title": "議事録", "parentPageId": root.PageID, "order": 1,
	}, &child)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, child.ParentPageID)
	assert.Equal(t, root.PageID, *child.ParentPageID)

	var list struct {
		Count int `json:"count"`
	}
	rec = a.do(t, http.MethodGet, "/api/memos/pages", "U-line-1", nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, list.Count)

	// A page cannot become its own parent.
	rec = a.do(t, http.MethodPatch, "/api/memos/pages/"+root.PageID, "U-line-1",
		map[string]interface{}{"parentPageId": root.PageID}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodDelete, "/api/memos/pages/"+child.PageID, "U-line-1", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInvalidJSONRejected(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/warikan", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer "+idToken(t, "U-line-1"))
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
