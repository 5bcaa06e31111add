package api

import (
	"net/http"

	"github.com/hackgods/emerald-details/internal/payment"
)

func listVehiclesHandler(svc VehicleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context(), principal(r).UserID)
		if err != nil {
			handleVehicleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func addVehicleHandler(svc VehicleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VehicleRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		v, err := svc.Add(r.Context(), principal(r).UserID, req.toVehicle())
		if err != nil {
			handleVehicleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, v)
	}
}

func removeVehicleHandler(svc VehicleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.Remove(r.Context(), principal(r).UserID, id); err != nil {
			handleVehicleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listPaymentMethodsHandler(svc PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Methods(r.Context(), principal(r).UserID)
		if err != nil {
			handlePaymentError(w, r, err)
			return
		}
		out := make([]PaymentMethodResponse, 0, len(list))
		for _, m := range list {
			out = append(out, toPaymentMethodResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func addPaymentMethodHandler(svc PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PaymentMethodRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		m, err := svc.AddMethod(r.Context(), principal(r).UserID, payment.PaymentMethod{
			Type:            req.Type,
			IsDefault:       req.IsDefault,
			CardLast4:       req.CardLast4,
			CardBrand:       req.CardBrand,
			CardExpMonth:    req.CardExpMonth,
			CardExpYear:     req.CardExpYear,
			GatewayMethodID: req.GatewayMethodID,
		})
		if err != nil {
			handlePaymentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPaymentMethodResponse(*m))
	}
}

func setDefaultPaymentMethodHandler(svc PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.SetDefault(r.Context(), principal(r).UserID, id); err != nil {
			handlePaymentError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func removePaymentMethodHandler(svc PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.RemoveMethod(r.Context(), principal(r).UserID, id); err != nil {
			handlePaymentError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listTransactionsHandler(svc PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Transactions(r.Context(), principal(r).UserID)
		if err != nil {
			handlePaymentError(w, r, err)
			return
		}
		out := make([]TransactionResponse, 0, len(list))
		for _, t := range list {
			out = append(out, toTransactionResponse(t))
		}
		writeJSON(w, http.StatusOK, out)
	}
}
