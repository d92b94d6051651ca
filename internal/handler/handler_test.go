package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GoPolymarket/safeboard/internal/middleware"
	"github.com/GoPolymarket/safeboard/internal/model"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/GoPolymarket/safeboard/internal/service"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	operator = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	account  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type stubOnboarder struct {
	onboardErr   error
	onboardReq   model.OnboardRequest
	permSession  *service.Session
	permReq      model.PermissionsRequest
	transferReqs []model.TransferRequest
	saltNonce    string
}

func (s *stubOnboarder) Operator() common.Address { return operator }

func (s *stubOnboarder) Onboard(_ context.Context, session *service.Session, req model.OnboardRequest) (*model.OnboardResult, error) {
	s.onboardReq = req
	session.Account = &service.Account{Address: account, Owner: operator}
	res := &model.OnboardResult{RunID: "run-1", Account: account.Hex()}
	return res, s.onboardErr
}

func (s *stubOnboarder) SetupPermissions(_ context.Context, session *service.Session, req model.PermissionsRequest) (*model.OnboardResult, error) {
	s.permSession = session
	s.permReq = req
	return &model.OnboardResult{RunID: "run-2", Account: session.Account.Address.Hex()}, nil
}

func (s *stubOnboarder) Transfer(_ context.Context, _ *service.Session, reqs []model.TransferRequest) ([]model.TransferResult, error) {
	s.transferReqs = reqs
	return []model.TransferResult{{Direction: model.ToAccount, Token: reqs[0].Token, Amount: "5", TxHash: "0x01"}}, nil
}

func (s *stubOnboarder) PredictModule(acc common.Address, saltNonce string) (*model.ModulePrediction, error) {
	s.saltNonce = saltNonce
	if saltNonce == "bad" {
		return nil, apperrors.NewInvalidRequest("salt_nonce must be a non-negative integer")
	}
	return &model.ModulePrediction{Account: acc.Hex(), Module: "0x01"}, nil
}

type stubLister struct {
	limit int
}

func (s *stubLister) List(_ context.Context, limit int) ([]*model.RunRecord, error) {
	s.limit = limit
	return []*model.RunRecord{{ID: "run-1", Status: model.RunStatusSucceeded}}, nil
}

func newTestRouter(svc Onboarder, runs RunLister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	h := NewOnboardingHandler(svc)
	v1 := r.Group("/v1")
	v1.POST("/onboard", h.Onboard)
	v1.POST("/accounts/:address/permissions", h.SetupPermissions)
	v1.POST("/accounts/:address/transfers", h.Transfer)
	v1.GET("/accounts/:address/module", h.PredictModule)
	v1.GET("/runs", NewRunsHandler(runs).List)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestOnboardReturnsResult(t *testing.T) {
	svc := &stubOnboarder{}
	r := newTestRouter(svc, &stubLister{})

	rec := doJSON(t, r, http.MethodPost, "/v1/onboard", map[string]any{
		"salt_nonce": "7",
		"transfers":  []map[string]any{{"token": "0x01", "amount": "10", "direction": "to_account"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, "7", svc.onboardReq.SaltNonce)
	require.Len(t, svc.onboardReq.Transfers, 1)
	assert.Equal(t, model.ToAccount, svc.onboardReq.Transfers[0].Direction)
}

func TestOnboardFailureCarriesResumeDetails(t *testing.T) {
	svc := &stubOnboarder{
		onboardErr: apperrors.New(apperrors.ErrExecution, "batch reverted", nil).WithStep(service.StepExecuteBatch),
	}
	r := newTestRouter(svc, &stubLister{})

	rec := doJSON(t, r, http.MethodPost, "/v1/onboard", map[string]any{})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "EXECUTION_ERROR", body["code"])
	assert.Equal(t, service.StepExecuteBatch, body["step"])
	details := body["details"].(map[string]any)
	assert.Equal(t, "run-1", details["run_id"])
	assert.Equal(t, account.Hex(), details["account"])
}

func TestSetupPermissionsUsesPathAccount(t *testing.T) {
	svc := &stubOnboarder{}
	r := newTestRouter(svc, &stubLister{})

	rec := doJSON(t, r, http.MethodPost, "/v1/accounts/"+account.Hex()+"/permissions", map[string]any{"role_member": operator.Hex()})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.permSession)
	assert.Equal(t, account, svc.permSession.Account.Address)
	assert.Equal(t, operator, svc.permSession.Account.Owner)
	assert.Equal(t, operator.Hex(), svc.permReq.RoleMember)

	rec = doJSON(t, r, http.MethodPost, "/v1/accounts/"+account.Hex()+"/permissions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidPathAddress(t *testing.T) {
	r := newTestRouter(&stubOnboarder{}, &stubLister{})
	rec := doJSON(t, r, http.MethodPost, "/v1/accounts/nope/permissions", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decode(t, rec)["code"])
}

func TestTransferRequiresTransfers(t *testing.T) {
	svc := &stubOnboarder{}
	r := newTestRouter(svc, &stubLister{})

	rec := doJSON(t, r, http.MethodPost, "/v1/accounts/"+account.Hex()+"/transfers", map[string]any{"transfers": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.transferReqs)

	rec = doJSON(t, r, http.MethodPost, "/v1/accounts/"+account.Hex()+"/transfers", map[string]any{
		"transfers": []map[string]any{{"token": "0x02", "amount": "5", "direction": "sideways"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/v1/accounts/"+account.Hex()+"/transfers", map[string]any{
		"transfers": []map[string]any{{"token": "0x02", "amount": "5", "direction": "to_account"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, account.Hex(), decode(t, rec)["account"])
	require.Len(t, svc.transferReqs, 1)
}

func TestPredictModule(t *testing.T) {
	svc := &stubOnboarder{}
	r := newTestRouter(svc, &stubLister{})

	rec := doJSON(t, r, http.MethodGet, "/v1/accounts/"+account.Hex()+"/module?salt_nonce=42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", svc.saltNonce)
	assert.Equal(t, account.Hex(), decode(t, rec)["account"])

	rec = doJSON(t, r, http.MethodGet, "/v1/accounts/"+account.Hex()+"/module?salt_nonce=bad", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRuns(t *testing.T) {
	lister := &stubLister{}
	r := newTestRouter(&stubOnboarder{}, lister)

	rec := doJSON(t, r, http.MethodGet, "/v1/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, lister.limit)
	assert.Len(t, decode(t, rec)["runs"], 1)

	rec = doJSON(t, r, http.MethodGet, "/v1/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, lister.limit)

	rec = doJSON(t, r, http.MethodGet, "/v1/runs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
