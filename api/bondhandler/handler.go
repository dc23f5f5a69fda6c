package bondhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/slb-bond-backend/api"
	"github.com/ruteri/slb-bond-backend/bond"
	"github.com/ruteri/slb-bond-backend/interfaces"
)

// JournalHead reports the ContentID of the last journaled event.
type JournalHead interface {
	Head() interfaces.ContentID
}

// Handler serves the bond API for one contract.
type Handler struct {
	contract *bond.Contract
	journal  JournalHead
	log      *slog.Logger

	// now checks request expiry
	now func() time.Time
}

// NewHandler creates a handler for contract. journal may be nil, in which case
// GET journal/head answers 404.
func NewHandler(contract *bond.Contract, journal JournalHead, log *slog.Logger) *Handler {
	return &Handler{
		contract: contract,
		journal:  journal,
		log:      log,
		now:      time.Now,
	}
}

// RegisterRoutes mounts the bond API on r under api.PathPrefix.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route(api.PathPrefix, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Post("/roles", h.HandleSetRoles)
			r.Post("/bond", h.HandleSetBond)
			r.Post("/bond/mint", h.HandleMintBond)
			r.Post("/bond/issue", h.HandleIssueBond)
			r.Post("/bond/activate", h.HandleSetBondActive)
			r.Post("/bond/end", h.HandleEndBond)
			r.Post("/funding/deposit", h.HandleFundBond)
			r.Post("/funding/withdraw", h.HandleWithdrawMoney)
			r.Post("/devices", h.HandleRegisterDevice)
			r.Post("/impact/report", h.HandleReportImpact)
			r.Post("/impact/verify", h.HandleVerifyImpact)
			r.Post("/admin/freeze", h.HandleFreezeBond)
			r.Post("/admin/unfreeze", h.HandleUnfreezeBond)
			r.Post("/admin/ownership", h.HandleTransferOwnership)
		})

		r.Get("/bond", h.HandleGetBond)
		r.Get("/funding/balance", h.HandleGetBalance)
		r.Get("/roles", h.HandleGetRoles)
		r.Get("/impact", h.HandleGetImpact)
		r.Get("/holdings/{addr}", h.HandleGetHolding)
		r.Get("/devices/{id}", h.HandleGetDevice)
		r.Get("/devices/{id}/check", h.HandleCheckDevice)
		r.Get("/devices/{id}/check-measurement", h.HandleCheckDeviceMeasurement)
		r.Get("/commitments/identity", h.HandleIdentityDigest)
		r.Get("/commitments/measurement", h.HandleMeasurementDigest)
		r.Get("/nonces/{addr}", h.HandleGetNonce)
		r.Get("/journal/head", h.HandleJournalHead)
	})
}

type commitFunc func(ctx context.Context, caller interfaces.Principal) (uint64, error)

// commit runs fn as the authenticated caller and answers with the sequence
// number of its commit. The request context carries the signed nonce.
func (h *Handler) commit(w http.ResponseWriter, r *http.Request, fn commitFunc) {
	caller, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, interfaces.ErrUnauthorized)
		return
	}
	seq, err := fn(r.Context(), caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, api.CommitResponse{Seq: seq})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", interfaces.ErrInvalidArgument, err)
	}
	return nil
}

func (h *Handler) HandleSetRoles(w http.ResponseWriter, r *http.Request) {
	var req api.SetRolesRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.commit(w, r, func(ctx context.Context, caller interfaces.Principal) (uint64, error) {
		return h.contract.SetRoles(ctx, caller, req.Issuer, req.Verifier)
	})
}

func (h *Handler) HandleSetBond(w http.ResponseWriter, r *http.Request) {
	var req api.SetBondRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.commit(w, r, func(ctx context.Context, caller interfaces.Principal) (uint64, error) {
		return h.contract.SetBond(ctx, caller, req)
	})
}

func (h *Handler) HandleMintBond(w http.ResponseWriter, r *http.Request) {
	var req api.AmountRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.commit(w, r, func(ctx context.Context, caller interfaces.Principal) (uint64, error) {
		return h.contract.MintBond(ctx, caller, req.Amount)
	})
}

func (h *Handler) HandleIssueBond(w http.ResponseWriter, r *http.Request) {
	h.commit(w, r, h.contract.IssueBond)
}

func (h *Handler) HandleSetBondActive(w http.ResponseWriter, r *http.Request) {
	h.commit(w, r, h.contract.SetBondActive)
}

func (h *Handler) HandleEndBond(w http.ResponseWriter, r *http.Request) {
	h.commit(w, r, h.contract.EndBond)
}

func (h *Handler) HandleFundBond(w http.ResponseWriter, r *http.Request) {
	var req api.AmountRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.commit(w, r, func(ctx context.Context, caller interfaces.Principal) (uint64, error) {
		return h.contract.FundBond(ctx, caller, req.Amount)
	})
}

func (h *Handler) HandleWithdrawMoney(w http.ResponseWriter, r *http.Request) {
	var req api.AmountRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.commit(w, r, func(ctx context.Context, caller interfaces.Principal) (uint64, error) {
		return h.contract.WithdrawMoney(ctx, caller, req.Amount)
	})
}

func (h *Handler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterDeviceRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.commit(w, r, func(ctx context.Context, caller interfaces.Principal) (uint64, error) {
		return h.contract.RegisterDevice(ctx, caller, req.DeviceID)
	})
}

func (h *Handler) HandleReportImpact(w http.ResponseWriter, r *http.Request) {
	var req api.ReportImpactRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.commit(w, r, func(ctx context.Context, caller interfaces.Principal) (uint64, error) {
		return h.contract.ReportImpact(ctx, caller, req.Impact, req.DeviceID, req.Digest)
	})
}

func (h *Handler) HandleVerifyImpact(w http.ResponseWriter, r *http.Request) {
	var req api.VerifyImpactRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.commit(w, r, func(ctx context.Context, caller interfaces.Principal) (uint64, error) {
		return h.contract.VerifyImpact(ctx, caller, req.Approved)
	})
}

func (h *Handler) HandleFreezeBond(w http.ResponseWriter, r *http.Request) {
	h.commit(w, r, h.contract.FreezeBond)
}

func (h *Handler) HandleUnfreezeBond(w http.ResponseWriter, r *http.Request) {
	h.commit(w, r, h.contract.UnfreezeBond)
}

func (h *Handler) HandleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req api.TransferOwnershipRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.commit(w, r, func(ctx context.Context, caller interfaces.Principal) (uint64, error) {
		return h.contract.TransferOwnership(ctx, caller, req.NewOwner)
	})
}

func (h *Handler) HandleGetBond(w http.ResponseWriter, r *http.Request) {
	info := h.contract.Bond()
	h.writeJSON(w, api.BondResponse{
		Terms:        info.Terms,
		TermsSet:     info.TermsSet,
		Status:       info.Status,
		BondsForSale: info.BondsForSale,
		Balance:      info.Balance,
		Paused:       info.Paused,
		CouponRate:   info.CouponRate,
		KPIMet:       info.KPIMet,
		Seq:          info.Seq,

		PendingPayouts: info.PendingPayouts,
	})
}

func (h *Handler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, api.BalanceResponse{Balance: h.contract.GetBalance()})
}

func (h *Handler) HandleGetRoles(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.contract.Roles())
}

func (h *Handler) HandleGetImpact(w http.ResponseWriter, r *http.Request) {
	info := h.contract.Impact()
	h.writeJSON(w, api.ImpactResponse{Current: info.Current, History: info.History})
}

func (h *Handler) HandleGetHolding(w http.ResponseWriter, r *http.Request) {
	holder, err := interfaces.ParsePrincipal(chi.URLParam(r, "addr"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, api.HoldingResponse{Holder: holder, Amount: h.contract.HoldingOf(holder)})
}

func (h *Handler) HandleGetNonce(w http.ResponseWriter, r *http.Request) {
	p, err := interfaces.ParsePrincipal(chi.URLParam(r, "addr"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, api.NonceResponse{Principal: p, Nonce: h.contract.NonceOf(p)})
}

func (h *Handler) HandleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	owner := h.contract.FindDeviceOwner(id)
	h.writeJSON(w, api.DeviceResponse{
		DeviceID:   id,
		Owner:      owner,
		Registered: owner != interfaces.EmptyPrincipal,
	})
}

func (h *Handler) HandleCheckDevice(w http.ResponseWriter, r *http.Request) {
	digest, err := parseDigest(r.URL.Query().Get("digest"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, api.CheckResponse{Valid: h.contract.CheckDevice(chi.URLParam(r, "id"), digest)})
}

func (h *Handler) HandleCheckDeviceMeasurement(w http.ResponseWriter, r *http.Request) {
	digest, err := parseDigest(r.URL.Query().Get("digest"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	m, err := parseMeasurement(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, api.CheckResponse{Valid: h.contract.CheckDeviceMeasurement(chi.URLParam(r, "id"), digest, m)})
}

func (h *Handler) HandleIdentityDigest(w http.ResponseWriter, r *http.Request) {
	owner, err := interfaces.ParsePrincipal(r.URL.Query().Get("owner"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, api.DigestResponse{Digest: h.contract.IdentityDigest(r.URL.Query().Get("device_id"), owner)})
}

func (h *Handler) HandleMeasurementDigest(w http.ResponseWriter, r *http.Request) {
	owner, err := interfaces.ParsePrincipal(r.URL.Query().Get("owner"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	m, err := parseMeasurement(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, api.DigestResponse{Digest: h.contract.MeasurementDigest(r.URL.Query().Get("device_id"), owner, m)})
}

func (h *Handler) HandleJournalHead(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		h.writeError(w, fmt.Errorf("%w: journal is not enabled", interfaces.ErrNotFound))
		return
	}
	h.writeJSON(w, api.JournalHeadResponse{Head: h.journal.Head()})
}

func parseDigest(s string) (common.Hash, error) {
	b, err := decodeHex(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: digest must be 32 hex-encoded bytes", interfaces.ErrInvalidArgument)
	}
	return common.BytesToHash(b), nil
}

func parseMeasurement(r *http.Request) (interfaces.Triple, error) {
	var m interfaces.Triple
	q := r.URL.Query()
	for i, name := range []string{"v1", "v2", "v3"} {
		v, err := strconv.ParseUint(q.Get(name), 10, 64)
		if err != nil {
			return interfaces.Triple{}, fmt.Errorf("%w: %s: %v", interfaces.ErrInvalidArgument, name, err)
		}
		m[i] = v
	}
	return m, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		reqErr = &RequestError{StatusCode: StatusFor(err), Err: err}
	}
	if reqErr.StatusCode >= http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err)
	} else {
		h.log.Debug("Request rejected", "err", err, "kind", interfaces.ErrorKind(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reqErr.StatusCode)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: err.Error(), Kind: interfaces.ErrorKind(err)})
}
