package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/studio-engine/api"
	"github.com/warp/studio-engine/studio"
)

func loadScenario(t *testing.T, srv *testServer, id string) {
	t.Helper()
	rec := srv.do(http.MethodPost, "/api/scenarios/load", srv.adminToken(), api.LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, id, decode[map[string]string](t, rec)["scenario_id"])
}

func TestScenarios_ListAndCurrent(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.adminToken()

	rec := srv.do(http.MethodGet, "/api/scenarios", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.ScenarioDTO](t, rec), 3)

	rec = srv.do(http.MethodGet, "/api/scenarios/current", admin, nil)
	assert.JSONEq(t, "null", rec.Body.String())

	loadScenario(t, srv, "ticket-member")
	rec = srv.do(http.MethodGet, "/api/scenarios/current", admin, nil)
	assert.Equal(t, "ticket-member", decode[api.ScenarioDTO](t, rec).ID)

	rec = srv.do(http.MethodPost, "/api/scenarios/reset", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(http.MethodGet, "/api/scenarios/current", admin, nil)
	assert.JSONEq(t, "null", rec.Body.String())
	members, err := srv.mem.ListMembers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestScenarios_UnknownID(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/api/scenarios/load", srv.adminToken(), api.LoadScenarioRequest{ScenarioID: "nope"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unknown scenario", decode[api.ErrorResponse](t, rec).Error)
}

func TestScenario_MonthlyMember(t *testing.T) {
	srv := newTestServer(t)
	loadScenario(t, srv, "monthly-member")

	tok := srv.token(api.DemoMonthlyUser, studio.RoleMember)
	rec := srv.do(http.MethodGet, "/api/member/availability", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	av := decode[api.AvailabilityDTO](t, rec)
	assert.Equal(t, "monthly", av.Mode)
	assert.Equal(t, "Monthly 4", av.PlanName)
	assert.Equal(t, 1, av.CurrentPeriodUsed)
	assert.Equal(t, 3, av.CurrentPeriodRemaining)

	rec = srv.do(http.MethodGet, "/api/admin/slots", srv.adminToken(), nil)
	assert.Len(t, decode[[]api.SlotDTO](t, rec), 28)
}

func TestScenario_BusyStudio(t *testing.T) {
	// GIVEN: The busy-studio scenario
	// WHEN: The monthly member tries a third booking in the same period
	// THEN: Denied with the monthly mode, while the other seeded data is intact

	srv := newTestServer(t)
	loadScenario(t, srv, "busy-studio")
	admin := srv.adminToken()

	rec := srv.do(http.MethodGet, "/api/admin/reservations", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.ReservationDTO](t, rec), 4)

	rec = srv.do(http.MethodGet, "/api/admin/reservations?type=trial", admin, nil)
	trials := decode[[]api.ReservationDTO](t, rec)
	require.Len(t, trials, 1)
	assert.Equal(t, "Mika Ito", trials[0].Guest.Name)

	tok := srv.token(api.DemoMonthlyUser, studio.RoleMember)
	slots := decode[[]api.SlotDTO](t, srv.do(http.MethodGet, "/api/member/slots", tok, nil))
	var free string
	for _, s := range slots {
		if s.Status == "available" {
			free = s.ID
			break
		}
	}
	require.NotEmpty(t, free)

	members := decode[[]api.MemberDTO](t, srv.do(http.MethodGet, "/api/admin/members", admin, nil))
	var monthlyID, ticketID string
	for _, m := range members {
		switch m.AuthUserID {
		case api.DemoMonthlyUser:
			monthlyID = m.ID
		case api.DemoTicketUser:
			ticketID = m.ID
		}
	}
	require.NotEmpty(t, monthlyID)
	require.NotEmpty(t, ticketID)

	rec = srv.book(tok, monthlyID, free)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, "monthly", resp.Mode)
	assert.Equal(t, "cannot reserve: monthly limit reached (2/2)", resp.Error)

	assert.Equal(t, 1, srv.balance(ticketID))
}

func TestScenarios_Disabled(t *testing.T) {
	srv := newTestServer(t)
	srv.router = api.NewRouter(srv.handler, api.RouterOptions{Auth: api.NewAuthenticator(testSecret)})

	rec := srv.do(http.MethodGet, "/api/scenarios", srv.adminToken(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenarios_RequireAdmin(t *testing.T) {
	// GIVEN: A studio with one member
	// WHEN: Anonymous and member callers hit the scenario routes
	// THEN: 401 / 403, and nothing is wiped

	srv := newTestServer(t)
	srv.createMember("user-1", "Aiko Tanaka")
	member := srv.token("user-1", studio.RoleMember)

	rec := srv.do(http.MethodPost, "/api/scenarios/reset", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(http.MethodPost, "/api/scenarios/load", "", api.LoadScenarioRequest{ScenarioID: "busy-studio"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(http.MethodPost, "/api/scenarios/reset", member, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	members, err := srv.mem.ListMembers(context.Background())
	require.NoError(t, err)
	assert.Len(t, members, 1)
}
