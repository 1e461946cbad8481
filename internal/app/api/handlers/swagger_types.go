package handlers

import (
	"github.com/fabriq/billing/internal/models"
	"github.com/fabriq/billing/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespOrganizationBilling wraps a billing record in the standard envelope.
type RespOrganizationBilling struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    models.OrganizationBilling `json:"data"`
}

// RespOrganizationTiers wraps the tier list in the standard envelope.
type RespOrganizationTiers struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    []models.OrganizationTier `json:"data"`
}
