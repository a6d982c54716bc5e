package rest_server_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/ahu-fdd/internal/cerrors"
	"github.com/okieraised/ahu-fdd/internal/config"
	"github.com/okieraised/ahu-fdd/internal/constants"
	"github.com/okieraised/ahu-fdd/internal/fdd/columns"
	"github.com/okieraised/ahu-fdd/internal/fdd/rules"
	"github.com/okieraised/ahu-fdd/internal/infrastructure/metrics"
	"github.com/okieraised/ahu-fdd/internal/server/rest_server"
	"github.com/okieraised/ahu-fdd/internal/server/rest_server/routers"
	"github.com/okieraised/ahu-fdd/internal/server/rest_server/services/v1/restful"
	"github.com/okieraised/ahu-fdd/internal/sink"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trend = `Date,MA-T,RA-T,OA-T,SF-O
2024-07-01 12:00:00,55,72,60,0.98
2024-07-01 12:15:00,40,72,60,0.98
2024-07-01 12:30:00,55,72,60,0.98
2024-07-01 12:45:00,55,72,60,0.98
`

type envelope struct {
	RequestID string          `json:"request_id"`
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Count     int             `json:"count"`
	Data      json.RawMessage `json:"data"`
}

func newEngine(t *testing.T) (*gin.Engine, *sink.FakePublisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg, err := rules.NewRegistry(rules.ThresholdsFromMap(nil))
	require.NoError(t, err)
	pub := &sink.FakePublisher{}

	v1 := routers.NewV1RestState()
	v1.SetFDDService(restful.NewFDDService(
		restful.WithFDDRegistry(reg),
		restful.WithFDDPublisher(pub),
		restful.WithFDDColumns(columns.ColumnMap{columns.RAT: "RA-T"}),
	))
	v1.SetHealthcheckService(restful.NewHealthcheckService(restful.WithHealthcheckRegistry(reg)))
	app := routers.NewAppState()
	app.SetV1RestState(v1)
	app.SetMetricsHandler(metrics.New().Handler())

	return rest_server.NewEngine(5*time.Second, routers.NewRootRouter(app).InitRouters), pub
}

func do(t *testing.T, engine http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get(constants.HeaderContentType), constants.ContentTypeJSON) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestRules(t *testing.T) {
	engine, _ := newEngine(t)

	w, env := do(t, engine, httptest.NewRequest(http.MethodGet, "/api/v1/fdd/rules", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 16, env.Count)

	w, env = do(t, engine, httptest.NewRequest(http.MethodGet, "/api/v1/fdd/rules/FC6", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var d rules.Description
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, "fc6", d.ID)
	assert.Contains(t, d.Roles, columns.SupplyAirVolume)

	w, env = do(t, engine, httptest.NewRequest(http.MethodGet, "/api/v1/fdd/rules/fc99", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, cerrors.ErrUnknownRule.Code, env.Code)
}

func TestRun_Multipart(t *testing.T) {
	engine, pub := newEngine(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "ahu.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte(trend))
	require.NoError(t, mw.WriteField("columns", `{"MAT_COL":"MA-T","oat":"OA-T","supply_vfd_speed":"SF-O"}`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/fdd/runs?site_id=site-a&rules=fc2,fc3&include_series=true", body)
	req.Header.Set(constants.HeaderContentType, mw.FormDataContentType())
	w, env := do(t, engine, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, env.Count)
	assert.NotEmpty(t, w.Header().Get(constants.HeaderXRequestID))

	var out struct {
		Report struct {
			RunID    string `json:"run_id"`
			SiteID   string `json:"site_id"`
			Rows     int    `json:"rows"`
			Outcomes []struct {
				RuleID string `json:"rule_id"`
				Status string `json:"status"`
				Flag   *struct {
					Values []*float64 `json:"values"`
				} `json:"flag"`
			} `json:"outcomes"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, env.RequestID, out.Report.RunID)
	assert.Equal(t, "site-a", out.Report.SiteID)
	assert.Equal(t, 4, out.Report.Rows)
	require.Len(t, out.Report.Outcomes, 2)
	assert.Equal(t, "fc2", out.Report.Outcomes[0].RuleID)
	assert.Equal(t, "evaluated", out.Report.Outcomes[0].Status)
	require.NotNil(t, out.Report.Outcomes[0].Flag)
	assert.Equal(t, 1.0, *out.Report.Outcomes[0].Flag.Values[1])

	assert.Equal(t, 1, pub.Published())
}

func TestRun_BadRequests(t *testing.T) {
	engine, pub := newEngine(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/fdd/runs", strings.NewReader(`{"s3":{"bucket":"b","key":"k"}}`))
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w, env := do(t, engine, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, cerrors.ErrGenericBadRequest.Code, env.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/fdd/runs?troubleshoot=maybe", strings.NewReader(`{}`))
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w, _ = do(t, engine, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Zero(t, pub.Published())
}

func TestRun_BodyTooLarge(t *testing.T) {
	viper.Set(config.AgentHTTPMaxUploadMB, 1)
	t.Cleanup(viper.Reset)
	engine, pub := newEngine(t)

	body := `{"site_id":"` + strings.Repeat("a", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/fdd/runs", strings.NewReader(body))
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w, env := do(t, engine, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, cerrors.ErrPayloadTooLarge.Code, env.Code)
	assert.Zero(t, pub.Published())
}

func TestHealthcheck(t *testing.T) {
	engine, _ := newEngine(t)
	w, env := do(t, engine, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out restful.HealthcheckOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Len(t, out.Engine.Rules, 16)
	assert.Positive(t, out.CPU.LogicalCores)
}

func TestNoRouteAndMetrics(t *testing.T) {
	engine, _ := newEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nowhere", nil)
	id := "8f14e45f-ceea-4e7a-9f6b-2f6f7a8d1c11"
	req.Header.Set(constants.HeaderXRequestID, id)
	w, env := do(t, engine, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, cerrors.ErrGenericUnknownAPIPath.Code, env.Code)
	assert.Equal(t, id, w.Header().Get(constants.HeaderXRequestID))
	assert.Equal(t, id, env.RequestID)

	w, _ = do(t, engine, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
