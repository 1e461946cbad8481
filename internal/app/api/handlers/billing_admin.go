package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	billingsvc "github.com/fabriq/billing/internal/app/service/billing"
	"github.com/fabriq/billing/pkg/response"
)

// @Summary      Organization billing
// @Description  Returns the billing record reconciled from Stripe webhook events for one organization.
// @Tags         Admin
// @Produce      json
// @Param        org_id path string true "Organization ID"
// @Success      200  {object}  handlers.RespOrganizationBilling
// @Router       /api/v1/admin/organizations/{org_id}/billing [get]
func ApiGetOrganizationBilling(svc *billingsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.Param("org_id")
		if orgID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing org_id"))
			return
		}
		rec, err := svc.GetByOrgID(c.Request.Context(), orgID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, "no billing record"))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rec))
	}
}

// @Summary      Pricing tiers
// @Description  Lists pricing tiers known to the billing service.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespOrganizationTiers
// @Router       /api/v1/admin/tiers [get]
func ApiListTiers(svc *billingsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tiers, err := svc.ListTiers(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(tiers))
	}
}

func RegisterAdminBillingRoutes(r gin.IRouter, svc *billingsvc.Service) {
	// Mount under provided group, expected at "/api/v1/admin"
	r.GET("/organizations/:org_id/billing", ApiGetOrganizationBilling(svc))
	r.GET("/tiers", ApiListTiers(svc))
}
