package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/studio-engine/api"
	"github.com/warp/studio-engine/studio"
	"github.com/warp/studio-engine/studio/store"
)

const testSecret = "test-secret"

// Monday 09:00 UTC.
var baseTime = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

// =============================================================================
// TEST SERVER
// =============================================================================

type testServer struct {
	t       *testing.T
	clock   *studio.FixedClock
	mem     *store.Memory
	engine  *studio.Engine
	handler *api.Handler
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	clock := studio.NewFixedClock(baseTime)
	engine := studio.New(mem, studio.Options{Clock: clock})
	h := api.NewHandler(engine)
	return &testServer{
		t:       t,
		clock:   clock,
		mem:     mem,
		engine:  engine,
		handler: h,
		router: api.NewRouter(h, api.RouterOptions{
			Auth:            api.NewAuthenticator(testSecret),
			EnableScenarios: true,
		}),
	}
}

func (s *testServer) token(userID string, role studio.Role) string {
	s.t.Helper()
	tok, err := api.IssueToken(testSecret, userID, role, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) adminToken() string { return s.token("admin-1", studio.RoleAdmin) }

// do sends a request through the router. body may be nil, a string of raw
// JSON or any value to marshal.
func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		r = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// SEED HELPERS (through the admin API)
// =============================================================================

func (s *testServer) createMember(authUser, name string) api.MemberDTO {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/admin/members", s.adminToken(), api.CreateMemberRequest{
		AuthUserID: authUser,
		Name:       name,
		Email:      authUser + "@example.com",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.MemberDTO](s.t, rec)
}

func (s *testServer) createSlot(offset time.Duration) api.SlotDTO {
	s.t.Helper()
	start := s.clock.Now().Add(offset)
	rec := s.do(http.MethodPost, "/api/admin/slots", s.adminToken(), api.CreateSlotRequest{
		StartAt: start.Format(time.RFC3339),
		EndAt:   start.Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.SlotDTO](s.t, rec)
}

func (s *testServer) grant(memberID string, n int) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/admin/tickets", s.adminToken(), api.TicketOperationRequest{
		MemberID: memberID,
		Type:     "grant",
		Amount:   n,
		Reason:   "test",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *testServer) balance(memberID string) int {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/admin/members/"+memberID+"/balance", s.adminToken(), nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[api.BalanceDTO](s.t, rec).Balance
}

func (s *testServer) book(token, memberID, slotID string) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.do(http.MethodPost, "/api/member/reservations", token, api.CreateReservationRequest{
		SlotID:   slotID,
		MemberID: memberID,
	})
}
