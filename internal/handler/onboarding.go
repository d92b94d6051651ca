package handler

import (
	"context"
	"net/http"

	"github.com/GoPolymarket/safeboard/internal/model"
	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/GoPolymarket/safeboard/internal/service"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// Onboarder is the orchestrator surface the HTTP layer drives.
type Onboarder interface {
	Operator() common.Address
	Onboard(ctx context.Context, session *service.Session, req model.OnboardRequest) (*model.OnboardResult, error)
	SetupPermissions(ctx context.Context, session *service.Session, req model.PermissionsRequest) (*model.OnboardResult, error)
	Transfer(ctx context.Context, session *service.Session, reqs []model.TransferRequest) ([]model.TransferResult, error)
	PredictModule(account common.Address, saltNonce string) (*model.ModulePrediction, error)
}

type OnboardingHandler struct {
	svc Onboarder
}

func NewOnboardingHandler(svc Onboarder) *OnboardingHandler {
	return &OnboardingHandler{svc: svc}
}

// Onboard creates a fresh Account per request unless reuse_account is set.
func (h *OnboardingHandler) Onboard(c *gin.Context) {
	var req model.OnboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	session := &service.Session{}
	res, err := h.svc.Onboard(c.Request.Context(), session, req)
	if err != nil {
		c.Error(withRunDetails(err, res, session))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *OnboardingHandler) SetupPermissions(c *gin.Context) {
	session, ok := h.accountSession(c)
	if !ok {
		return
	}
	var req model.PermissionsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
	}

	res, err := h.svc.SetupPermissions(c.Request.Context(), session, req)
	if err != nil {
		c.Error(withRunDetails(err, res, session))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *OnboardingHandler) Transfer(c *gin.Context) {
	session, ok := h.accountSession(c)
	if !ok {
		return
	}
	var req model.TransfersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	out, err := h.svc.Transfer(c.Request.Context(), session, req.Transfers)
	if err != nil {
		c.Error(apperrors.Wrap(err).WithDetail("account", session.Account.Address.Hex()))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":         session.Account.Address.Hex(),
		"asset_transfers": out,
	})
}

func (h *OnboardingHandler) PredictModule(c *gin.Context) {
	account, ok := pathAccount(c)
	if !ok {
		return
	}
	prediction, err := h.svc.PredictModule(account, c.Query("salt_nonce"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, prediction)
}

func (h *OnboardingHandler) accountSession(c *gin.Context) (*service.Session, bool) {
	account, ok := pathAccount(c)
	if !ok {
		return nil, false
	}
	return &service.Session{Account: &service.Account{Address: account, Owner: h.svc.Operator()}}, true
}

func pathAccount(c *gin.Context) (common.Address, bool) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		c.Error(apperrors.NewInvalidRequest("address is not a valid account address").WithDetail("field", "address"))
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// withRunDetails attaches what is known about a partial run so the caller
// can resume it by hand.
func withRunDetails(err error, res *model.OnboardResult, session *service.Session) error {
	appErr := apperrors.Wrap(err)
	if res != nil && res.RunID != "" {
		appErr.WithDetail("run_id", res.RunID)
	}
	if session != nil && session.Account != nil {
		appErr.WithDetail("account", session.Account.Address.Hex())
	}
	return appErr
}
