package common

import (
	"context"
	"errors"
	"strings"
	"ticketing/src/apperr"
	"ticketing/src/checkout"
	"ticketing/src/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// PaymentResultsHandler applies payment gateway results. Messages arrive
// either bare or wrapped in an SNS envelope:
//
//	{"order_id": "...", "status": "paid", "reference": "pi_..."}
//	{"Message": "{\"order_id\": ...}"}
//
// Malformed or unknown messages are dropped. Only storage failures are
// returned, so the message is redelivered.
func PaymentResultsHandler(orch *checkout.Orchestrator, logger *logrus.Logger) types.Handler {
	return func(ctx context.Context, body string) error {
		if !gjson.Valid(body) {
			logger.Warn("payment result: invalid json body")
			return nil
		}
		if msg := gjson.Get(body, "Message"); msg.Exists() && msg.Type == gjson.String {
			body = msg.String()
			if !gjson.Valid(body) {
				logger.Warn("payment result: invalid json message")
				return nil
			}
		}
		orderID, err := uuid.Parse(gjson.Get(body, "order_id").String())
		if err != nil {
			logger.WithField("body", body).Warn("payment result: missing order id")
			return nil
		}
		log := logger.WithContext(ctx).WithField("order_id", orderID)

		status := strings.ToLower(gjson.Get(body, "status").String())
		switch status {
		case "paid", "succeeded":
			_, err = orch.MarkPaid(ctx, orderID, gjson.Get(body, "reference").String())
		case "failed", "expired", "cancelled":
			_, err = orch.MarkFailed(ctx, orderID)
		default:
			log.WithField("status", status).Warn("payment result: unknown status")
			return nil
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, apperr.ErrOrderNotFound) || errors.Is(err, apperr.ErrInvalidTransition) {
			log.WithError(err).Warn("payment result not applied")
			return nil
		}
		return err
	}
}
