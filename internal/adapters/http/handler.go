package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/ports"
)

type Handler struct{ service *application.Service }

func NewHandler(service *application.Service) *Handler { return &Handler{service: service} }

func (h *Handler) escrowAction(w http.ResponseWriter, r *http.Request) {
	var req contracts.EscrowActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	actor := actorFromContext(r.Context())
	switch req.Action {
	case "fund":
		if req.Amount == nil {
			writeError(w, http.StatusBadRequest, "amount is required")
			return
		}
		escrow, err := h.service.FundEscrow(r.Context(), actor, req.EscrowID, *req.Amount)
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"escrow": escrow})
	case "release":
		escrow, err := h.service.ReleaseEscrow(r.Context(), actor, req.EscrowID, req.Reason)
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"escrow": escrow})
	case "refund":
		escrow, err := h.service.RefundEscrow(r.Context(), actor, req.EscrowID, req.Reason)
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"escrow": escrow})
	default:
		writeError(w, http.StatusBadRequest, "invalid action")
	}
}

func (h *Handler) escrowGet(w http.ResponseWriter, r *http.Request) {
	escrow, err := h.service.GetEscrow(r.Context(), r.URL.Query().Get("escrowId"))
	if err != nil {
		writeError(w, mapDomainError(err), err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"escrow": escrow})
}

func (h *Handler) paymentPost(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	var req contracts.PaymentPostRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	actor := actorFromContext(r.Context())
	switch req.Type {
	case "payment":
		payment, err := h.service.Pay(r.Context(), actor, application.PayInput{
			Amount:      req.Amount,
			Currency:    req.Currency,
			RecipientID: req.SellerID,
			BuyerID:     req.BuyerID,
			AssetID:     req.AssetID,
			EscrowID:    req.EscrowID,
			Metadata:    req.Metadata,
		})
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"payment": payment})
	case "escrow":
		var create contracts.CreateEscrowRequest
		if err := json.Unmarshal(raw, &create); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		conditions := domain.ReleaseConditions{
			MinSellerRating:      create.MinSellerRating,
			VerificationRequired: create.VerificationRequired,
		}
		if create.TimeLockSeconds != nil {
			d := time.Duration(*create.TimeLockSeconds) * time.Second
			conditions.TimeLock = &d
		}
		escrow, err := h.service.CreateEscrow(r.Context(), actor, application.CreateEscrowInput{
			Amount:            create.Amount,
			Currency:          create.Currency,
			BuyerID:           create.BuyerID,
			SellerID:          create.SellerID,
			AssetID:           create.AssetID,
			ReleaseConditions: conditions,
		})
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusCreated, map[string]any{"escrow": escrow})
	case "split":
		recipients := make([]domain.SplitRecipient, 0, len(req.SplitRecipients))
		for _, rec := range req.SplitRecipients {
			recipients = append(recipients, domain.SplitRecipient{Address: rec.Address, Percentage: rec.Percentage})
		}
		payment, err := h.service.PayAsSplit(r.Context(), actor, application.SplitPayInput{
			Recipients:  recipients,
			TotalAmount: req.Amount,
			Currency:    req.Currency,
			BuyerID:     req.BuyerID,
		})
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"payment": payment})
	case "verify":
		verification, err := h.service.VerifyPayment(r.Context(), req.TransactionRef)
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"verification": verification})
	default:
		writeError(w, http.StatusBadRequest, "invalid payment type")
	}
}

func (h *Handler) paymentGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch q.Get("type") {
	case "history":
		query := ports.PaymentListQuery{
			Address:   q.Get("address"),
			Direction: q.Get("direction"),
			Limit:     intQueryParam(q.Get("limit"), 0),
			Offset:    intQueryParam(q.Get("offset"), 0),
		}
		items, pagination, err := h.service.PaymentHistory(r.Context(), query)
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"payments": items, "pagination": pagination})
	case "escrow":
		escrow, err := h.service.GetEscrow(r.Context(), q.Get("escrowId"))
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"escrow": escrow})
	case "estimate":
		amount, err := strconv.ParseFloat(q.Get("amount"), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid amount")
			return
		}
		estimate, err := h.service.EstimateCost(r.Context(), amount, q.Get("currency"))
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"estimate": estimate})
	default:
		writeError(w, http.StatusBadRequest, "invalid query type")
	}
}

func (h *Handler) licensesGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch q.Get("type") {
	case "templates":
		writeSuccess(w, http.StatusOK, map[string]any{"templates": h.service.Templates()})
	case "user":
		licenses, err := h.service.UserLicenses(r.Context(), q.Get("user"))
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"licenses": licenses})
	case "asset":
		licenses, err := h.service.AssetLicenses(r.Context(), q.Get("assetId"))
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"licenses": licenses})
	case "verify":
		verification, err := h.service.VerifyLicense(r.Context(), q.Get("tokenId"), q.Get("owner"))
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"verification": verification})
	case "metadata":
		doc, err := h.service.LicenseMetadata(r.Context(), q.Get("tokenId"))
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"metadata": doc})
	default:
		writeError(w, http.StatusBadRequest, "invalid query type")
	}
}

func (h *Handler) licensesPost(w http.ResponseWriter, r *http.Request) {
	var req contracts.LicensePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	actor := actorFromContext(r.Context())
	switch req.Action {
	case "mint":
		token, err := h.service.MintLicense(r.Context(), actor, application.MintInput{
			AssetID:      req.AssetID,
			TemplateID:   req.TemplateID,
			PurchaserID:  req.Purchaser,
			DurationDays: req.Duration,
			MaxUses:      req.MaxUses,
			Metadata:     req.Metadata,
		})
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusCreated, map[string]any{"token": token})
	case "transfer":
		token, err := h.service.TransferLicense(r.Context(), actor, req.TokenID, req.From, req.To)
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"token": token})
	case "use":
		result, err := h.service.UseLicense(r.Context(), actor, req.TokenID, req.User)
		if err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		// Use outcomes ride the success flag itself; the caller branches on
		// the message rather than the HTTP status.
		writeJSON(w, http.StatusOK, map[string]any{
			"success":       result.Success,
			"message":       result.Message,
			"remainingUses": result.RemainingUses,
		})
	case "burn":
		if err := h.service.BurnLicense(r.Context(), actor, req.TokenID, req.From); err != nil {
			writeError(w, mapDomainError(err), err.Error())
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"tokenId": req.TokenID, "burned": true})
	default:
		writeError(w, http.StatusBadRequest, "invalid action")
	}
}

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	var req contracts.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	actor := actorFromContext(r.Context())
	asset, err := h.service.ResolveAsset(r.Context(), req.AssetID)
	if err != nil {
		writeError(w, mapDomainError(err), err.Error())
		return
	}
	receipt, err := h.service.Purchase(r.Context(), actor, application.PurchaseInput{
		BuyerID:    req.BuyerID,
		SellerID:   req.SellerID,
		TemplateID: req.TemplateID,
		Asset:      asset,
		BasePrice:  asset.Price,
		Currency:   asset.Currency,
	})
	if err != nil {
		writeError(w, mapDomainError(err), err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"purchase": receipt})
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, pagination, err := h.service.ListPurchases(r.Context(), ports.PurchaseListQuery{
		BuyerID: q.Get("userId"),
		Limit:   intQueryParam(q.Get("limit"), 0),
		Offset:  intQueryParam(q.Get("offset"), 0),
	})
	if err != nil {
		writeError(w, mapDomainError(err), err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"transactions": items, "pagination": pagination})
}

func intQueryParam(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
