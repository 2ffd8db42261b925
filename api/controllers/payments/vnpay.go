package payments

import (
	"net/http"

	"github.com/angelmondragon/orderflow-backend/api/middleware"
	"github.com/angelmondragon/orderflow-backend/api/responses"
	"github.com/angelmondragon/orderflow-backend/api/validators"
	"github.com/angelmondragon/orderflow-backend/internal/payments/vnpay"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

// Gateway acknowledgement codes understood by VNPay's IPN caller.
const (
	rspConfirmed        = "00"
	rspOrderNotFound    = "01"
	rspAlreadyConfirmed = "02"
	rspInvalidAmount    = "04"
	rspInvalidSignature = "97"
	rspUnknown          = "99"
)

type ipnResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// CreatePayment starts a VNPay payment for an order the caller owns.
func CreatePayment(svc vnpay.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		identity, err := middleware.RequireIdentity(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreatePayment(r.Context(), vnpay.CreatePaymentInput{
			OrderID:  orderID,
			UserID:   identity.UserID,
			Role:     identity.Role,
			ClientIP: middleware.ClientIP(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// Callback settles a gateway notification. It always answers 200 with the
// gateway's RspCode body so VNPay stops or keeps retrying as appropriate.
func Callback(svc vnpay.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteJSON(w, http.StatusOK, ipnResponse{RspCode: rspUnknown, Message: "Unknown error"})
			return
		}

		result, err := svc.ProcessCallback(r.Context(), r.URL.Query())
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "payments.callback.rejected")
			}
			responses.WriteJSON(w, http.StatusOK, ipnFor(err))
			return
		}
		if result.Replay {
			responses.WriteJSON(w, http.StatusOK, ipnResponse{RspCode: rspAlreadyConfirmed, Message: "Order already confirmed"})
			return
		}
		responses.WriteJSON(w, http.StatusOK, ipnResponse{RspCode: rspConfirmed, Message: "Confirm Success"})
	}
}

func ipnFor(err error) ipnResponse {
	switch pkgerrors.ReasonOf(err) {
	case pkgerrors.ReasonInvalidSignature:
		return ipnResponse{RspCode: rspInvalidSignature, Message: "Invalid signature"}
	case pkgerrors.ReasonTransactionNotFound:
		return ipnResponse{RspCode: rspOrderNotFound, Message: "Order not found"}
	case pkgerrors.ReasonAmountMismatch:
		return ipnResponse{RspCode: rspInvalidAmount, Message: "Invalid amount"}
	}
	return ipnResponse{RspCode: rspUnknown, Message: "Unknown error"}
}
