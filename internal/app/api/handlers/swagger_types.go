package handlers

import (
	"github.com/fatflowers/billingsync/internal/app/service/statistics"
	"github.com/fatflowers/billingsync/internal/app/service/webhooklog"
	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/pkg/response"
)

// RespOK is a generic envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespAccount wraps AccountView in the standard envelope.
type RespAccount struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    AccountView              `json:"data"`
}

// RespWebhookEvents wraps webhooklog.ScanResponse in the standard envelope.
type RespWebhookEvents struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    webhooklog.ScanResponse  `json:"data"`
}

// RespStatistic wraps statistics.StatisticResponse in the standard envelope.
type RespStatistic struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    statistics.StatisticResponse `json:"data"`
}

// RespAccountHistory wraps the account status log rows in the standard envelope.
type RespAccountHistory struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    []*models.AccountStatusLog `json:"data"`
}
