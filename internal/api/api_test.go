package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemajeli/schemajeli/internal/auth"
	"github.com/schemajeli/schemajeli/internal/catalog"
	"github.com/schemajeli/schemajeli/internal/config"
	"github.com/schemajeli/schemajeli/internal/database"
	"github.com/schemajeli/schemajeli/internal/logger"
	"github.com/schemajeli/schemajeli/internal/types"
)

type response struct {
	Status     string            `json:"status"`
	Data       json.RawMessage   `json:"data"`
	Pagination *types.Pagination `json:"pagination"`
	Message    string            `json:"message"`
	Details    string            `json:"details"`
}

type testAPI struct {
	server  *Server
	catalog *catalog.Service
	tokens  map[types.Role]string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()

	store, err := database.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "api.db"), database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	_, err = store.Migrate(ctx)
	require.NoError(t, err)

	log := logger.Discard()
	svc := catalog.NewService(store, nil, nil, log, catalog.Options{})
	authn := auth.NewAuthenticator(svc, auth.NewSessions(store, time.Hour, log), nil, log)

	api := &testAPI{
		server:  NewServer(config.Default(), svc, authn, log),
		catalog: svc,
		tokens:  map[types.Role]string{},
	}

	system := types.Actor{Username: "system"}
	for _, role := range []types.Role{types.RoleAdmin, types.RoleMaintainer, types.RoleViewer} {
		name := "user-" + string(role)
		_, err := svc.CreateUser(ctx, system, types.CreateUserInput{
			Username: name, Email: name + "@example.com", Password: "password123", Role: string(role),
		})
		require.NoError(t, err)
		res, err := authn.Login(ctx, name, "password123")
		require.NoError(t, err)
		api.tokens[role] = res.Token
	}
	return api
}

func (a *testAPI) call(t *testing.T, method, path, token string, body any) (int, response) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	contentType := ""
	if reader != nil {
		contentType = "application/json"
	}
	return a.send(t, method, path, token, contentType, reader)
}

// send issues a request with an explicit Content-Type, empty meaning none.
func (a *testAPI) send(t *testing.T, method, path, token, contentType string, body io.Reader) (int, response) {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// create posts body to path and requires a 201.
func create[T any](t *testing.T, a *testAPI, path, token string, body any) T {
	t.Helper()
	status, resp := a.call(t, http.MethodPost, path, token, body)
	require.Equal(t, http.StatusCreated, status, "POST %s: %s", path, resp.Message)
	return decode[T](t, resp.Data)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	status, resp := api.call(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, statusSuccess, resp.Status)
	assert.Equal(t, "ok", decode[healthStatus](t, resp.Data).Database)
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)

	status, resp := api.call(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Username: "user-VIEWER", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, statusError, resp.Status)

	status, resp = api.call(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Username: "USER-VIEWER", Password: "password123"})
	require.Equal(t, http.StatusOK, status)
	login := decode[auth.LoginResult](t, resp.Data)
	require.NotEmpty(t, login.Token)

	status, resp = api.call(t, http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, status)
	type profileView struct {
		Username    string            `json:"username"`
		Role        types.Role        `json:"role"`
		Permissions []auth.Permission `json:"permissions"`
	}
	me := decode[profileView](t, resp.Data)
	assert.Equal(t, "user-viewer", me.Username)
	assert.Equal(t, []auth.Permission{auth.PermRead}, me.Permissions)
	assert.NotContains(t, string(resp.Data), "password")

	status, _ = api.call(t, http.MethodPost, "/api/v1/auth/logout", login.Token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = api.call(t, http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestChangePasswordEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := api.tokens[types.RoleViewer]

	status, resp := api.call(t, http.MethodPut, "/api/v1/auth/password", token,
		changePasswordRequest{CurrentPassword: "wrong-password", NewPassword: "brand-new-pass"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "current password is incorrect", resp.Message)

	status, _ = api.call(t, http.MethodPut, "/api/v1/auth/password", token,
		changePasswordRequest{CurrentPassword: "password123", NewPassword: "brand-new-pass"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = api.call(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Username: "user-viewer", Password: "brand-new-pass"})
	assert.Equal(t, http.StatusOK, status)
}

func TestAuthenticationRequired(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/api/v1/servers", "/api/v1/search?q=x", "/api/v1/audit-logs", "/api/v1/users"} {
		status, resp := api.call(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.Equal(t, statusError, resp.Status, path)
	}

	status, _ := api.call(t, http.MethodGet, "/api/v1/servers", "not-a-session", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRolePermissions(t *testing.T) {
	api := newTestAPI(t)
	body := types.CreateServerInput{Name: "pg-main", RDBMSType: types.RDBMSPostgreSQL}

	status, _ := api.call(t, http.MethodPost, "/api/v1/servers", api.tokens[types.RoleViewer], body)
	assert.Equal(t, http.StatusForbidden, status)

	status, resp := api.call(t, http.MethodPost, "/api/v1/servers", api.tokens[types.RoleMaintainer], body)
	require.Equal(t, http.StatusCreated, status)
	srv := decode[types.Server](t, resp.Data)

	status, _ = api.call(t, http.MethodGet, "/api/v1/servers/"+srv.ID, api.tokens[types.RoleViewer], nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = api.call(t, http.MethodDelete, "/api/v1/servers/"+srv.ID, api.tokens[types.RoleMaintainer], nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.call(t, http.MethodDelete, "/api/v1/servers/"+srv.ID, api.tokens[types.RoleAdmin], nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = api.call(t, http.MethodGet, "/api/v1/users", api.tokens[types.RoleMaintainer], nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = api.call(t, http.MethodGet, "/api/v1/audit-logs", api.tokens[types.RoleMaintainer], nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestServerResourceLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := api.tokens[types.RoleAdmin]

	status, resp := api.call(t, http.MethodPost, "/api/v1/servers", token, types.CreateServerInput{Name: "pg-main", RDBMSType: types.RDBMSPostgreSQL, Port: 5432})
	require.Equal(t, http.StatusCreated, status)
	srv := decode[types.Server](t, resp.Data)
	assert.Equal(t, types.StatusActive, srv.Status)

	status, resp = api.call(t, http.MethodPost, "/api/v1/servers", token, types.CreateServerInput{Name: "pg-main", RDBMSType: types.RDBMSPostgreSQL})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, resp.Message, "already exists")

	name := "pg-primary"
	status, resp = api.call(t, http.MethodPut, "/api/v1/servers/"+srv.ID, token, types.UpdateServerInput{Name: &name})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, name, decode[types.Server](t, resp.Data).Name)

	status, resp = api.call(t, http.MethodGet, "/api/v1/servers?search=primary&limit=5", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, 1, resp.Pagination.Total)
	assert.Equal(t, 5, resp.Pagination.Limit)

	status, _ = api.call(t, http.MethodDelete, "/api/v1/servers/"+srv.ID, token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = api.call(t, http.MethodGet, "/api/v1/servers/"+srv.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, resp = api.call(t, http.MethodGet, "/api/v1/servers/"+srv.ID+"?includeDeleted=true", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, types.StatusArchived, decode[types.Server](t, resp.Data).Status)

	status, _ = api.call(t, http.MethodPost, "/api/v1/servers/"+srv.ID+"/restore", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, resp = api.call(t, http.MethodGet, "/api/v1/servers/"+srv.ID+"/history", token, nil)
	require.Equal(t, http.StatusOK, status)
	history := decode[[]types.AuditLog](t, resp.Data)
	require.Len(t, history, 4)
	assert.Equal(t, types.ActionCreate, history[0].Action)
	assert.Equal(t, types.ActionRestore, history[3].Action)

	status, resp = api.call(t, http.MethodGet, "/api/v1/servers/stats", token, nil)
	require.Equal(t, http.StatusOK, status)
	stats := decode[types.Stats](t, resp.Data)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Active)
}

func TestCascadeGuardOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := api.tokens[types.RoleAdmin]

	srv := create[types.Server](t, api, "/api/v1/servers", token, types.CreateServerInput{Name: "pg-main", RDBMSType: types.RDBMSPostgreSQL})
	create[types.Database](t, api, "/api/v1/databases", token, types.CreateDatabaseInput{ServerID: srv.ID, Name: "sales"})

	status, resp := api.call(t, http.MethodDelete, "/api/v1/servers/"+srv.ID, token, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, `cannot delete server "pg-main": it has 1 active database(s)`, resp.Message)
}

func TestElementRestoreModeOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := api.tokens[types.RoleAdmin]

	srv := create[types.Server](t, api, "/api/v1/servers", token, types.CreateServerInput{Name: "pg-main", RDBMSType: types.RDBMSPostgreSQL})
	db := create[types.Database](t, api, "/api/v1/databases", token, types.CreateDatabaseInput{ServerID: srv.ID, Name: "sales"})
	tbl := create[types.Table](t, api, "/api/v1/tables", token, types.CreateTableInput{DatabaseID: db.ID, Name: "orders"})

	var ids []string
	for _, name := range []string{"id", "customer_id", "total"} {
		e := create[types.Element](t, api, "/api/v1/elements", token, types.CreateElementInput{TableID: tbl.ID, Name: name, DataType: "int"})
		ids = append(ids, e.ID)
	}

	status, _ := api.call(t, http.MethodDelete, "/api/v1/elements/"+ids[0], token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = api.call(t, http.MethodPost, "/api/v1/elements/"+ids[0]+"/restore", token, `{"mode":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp := api.call(t, http.MethodPost, "/api/v1/elements/"+ids[0]+"/restore?mode=original", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[types.Element](t, resp.Data).Position)

	status, resp = api.call(t, http.MethodGet, "/api/v1/elements?tableId="+tbl.ID+"&sortBy=position", token, nil)
	require.Equal(t, http.StatusOK, status)
	elements := decode[[]types.Element](t, resp.Data)
	require.Len(t, elements, 3)
	for i, e := range elements {
		assert.Equal(t, i+1, e.Position)
	}
}

func TestBadRequests(t *testing.T) {
	api := newTestAPI(t)
	token := api.tokens[types.RoleAdmin]

	status, resp := api.call(t, http.MethodPost, "/api/v1/servers", token, `{"name":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid request body", resp.Message)
	assert.NotEmpty(t, resp.Details)

	status, _ = api.call(t, http.MethodPost, "/api/v1/servers", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.call(t, http.MethodGet, "/api/v1/servers?page=-1", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.call(t, http.MethodGet, "/api/v1/servers?sortOrder=sideways", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.call(t, http.MethodGet, "/api/v1/servers?rdbmsType=nosql", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.call(t, http.MethodGet, "/api/v1/tables/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.call(t, http.MethodGet, "/api/v1/search", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSearchAndAuditEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := api.tokens[types.RoleAdmin]

	srv := create[types.Server](t, api, "/api/v1/servers", token, types.CreateServerInput{Name: "orders-pg", RDBMSType: types.RDBMSPostgreSQL})
	create[types.Abbreviation](t, api, "/api/v1/abbreviations", token, types.CreateAbbreviationInput{Source: "Order", Abbreviation: "ORD", Definition: "order"})

	status, resp := api.call(t, http.MethodGet, "/api/v1/search?q=ord", api.tokens[types.RoleViewer], nil)
	require.Equal(t, http.StatusOK, status)
	results := decode[types.SearchResults](t, resp.Data)
	assert.Len(t, results.Servers, 1)
	assert.Len(t, results.Abbreviations, 1)

	status, resp = api.call(t, http.MethodGet, "/api/v1/audit-logs?entityType=server", token, nil)
	require.Equal(t, http.StatusOK, status)
	logs := decode[[]types.AuditLog](t, resp.Data)
	require.Len(t, logs, 1)
	assert.Equal(t, types.EntityServer, logs[0].EntityType)

	status, resp = api.call(t, http.MethodGet, "/api/v1/audit-logs?entityId="+srv.ID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]types.AuditLog](t, resp.Data), 1)
}

func TestAbbreviationSearchOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := api.tokens[types.RoleMaintainer]

	for _, in := range []types.CreateAbbreviationInput{
		{Source: "Account", Abbreviation: "ACCT", Definition: "A customer account"},
		{Source: "Accounting Period", Abbreviation: "PRD", Definition: "Closing period (acct)"},
		{Source: "Acct Type", Abbreviation: "ATYP", Definition: "Kind of account"},
		{Source: "Customer", Abbreviation: "CUST", Definition: "A buyer"},
	} {
		create[types.Abbreviation](t, api, "/api/v1/abbreviations", token, in)
	}

	status, resp := api.call(t, http.MethodGet, "/api/v1/abbreviations?search=ACCT&sortBy=abbreviation", api.tokens[types.RoleViewer], nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, 3, resp.Pagination.Total)

	var got []string
	for _, a := range decode[[]types.Abbreviation](t, resp.Data) {
		got = append(got, a.Abbreviation)
	}
	assert.Equal(t, []string{"ACCT", "ATYP", "PRD"}, got)
}

func TestViewerWritesAreForbiddenForMissingTargets(t *testing.T) {
	api := newTestAPI(t)
	viewer := api.tokens[types.RoleViewer]
	missing := "/api/v1/servers/00000000-0000-0000-0000-000000000000"
	name := "renamed"

	status, _ := api.call(t, http.MethodPut, missing, viewer, types.UpdateServerInput{Name: &name})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.call(t, http.MethodDelete, missing, viewer, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.call(t, http.MethodPost, missing+"/restore", viewer, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.call(t, http.MethodDelete, missing, api.tokens[types.RoleAdmin], nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestBodiesAreJSONWhateverTheContentType(t *testing.T) {
	api := newTestAPI(t)
	token := api.tokens[types.RoleAdmin]

	status, resp := api.send(t, http.MethodPost, "/api/v1/servers", token, "", bytes.NewBufferString(`{"name":"no-header","rdbmsType":"MYSQL"}`))
	require.Equal(t, http.StatusCreated, status, resp.Message)
	assert.Equal(t, "no-header", decode[types.Server](t, resp.Data).Name)

	status, resp = api.send(t, http.MethodPost, "/api/v1/servers", token, "text/plain", bytes.NewBufferString("name=plain"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, statusError, resp.Status)
	assert.Equal(t, "invalid request body", resp.Message)

	status, _ = api.send(t, http.MethodPost, "/api/v1/servers", token, "application/x-www-form-urlencoded", bytes.NewBufferString("name=form"))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMalformedQueryParameters(t *testing.T) {
	api := newTestAPI(t)
	token := api.tokens[types.RoleAdmin]

	for _, path := range []string{
		"/api/v1/servers?page=9223372036854775807",
		"/api/v1/servers?page=99999999999999999999",
		"/api/v1/databases?serverId=abc",
		"/api/v1/tables?databaseId=abc",
		"/api/v1/elements?tableId=abc",
		"/api/v1/audit-logs?entityId=abc",
		"/api/v1/audit-logs?userId=abc",
		"/api/v1/audit-logs?from=yesterday",
	} {
		status, resp := api.call(t, http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Equal(t, statusError, resp.Status, path)
	}

	status, resp := api.call(t, http.MethodGet, "/api/v1/servers?page=1000000&limit=100000", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, types.MaxLimit, resp.Pagination.Limit)
}
