package api

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/slb-bond-backend/governance"
	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/ruteri/slb-bond-backend/ledger"
	"github.com/ruteri/slb-bond-backend/reporting"
)

// Header constants used to authenticate state-changing requests.
const (
	// PrincipalHeader carries the hex address the caller claims to act as.
	PrincipalHeader = "X-SLB-Principal"

	// SignatureHeader carries the hex 65-byte personal-sign signature over
	// "METHOD PATH\nNONCE EXPIRY\nBODY", see cryptoutils.Request.
	SignatureHeader = "X-SLB-Signature"

	// NonceHeader carries the caller's next nonce, see GET nonces/{addr}.
	NonceHeader = "X-SLB-Nonce"

	// ExpiryHeader carries the unix time after which the request is rejected.
	ExpiryHeader = "X-SLB-Expiry"

	// MaxRequestLifetime bounds how far in the future ExpiryHeader may lie.
	MaxRequestLifetime = 10 * time.Minute

	// MaxBodySize is the maximum accepted request body (1MB).
	MaxBodySize = 1024 * 1024
)

// PathPrefix is the prefix of every bond API route.
const PathPrefix = "/api/v1"

type SetRolesRequest struct {
	Issuer   common.Address `json:"issuer"`
	Verifier common.Address `json:"verifier"`
}

// SetBondRequest carries the bond terms.
type SetBondRequest = ledger.Terms

// AmountRequest is used by mint, deposit and withdraw.
type AmountRequest struct {
	Amount uint64 `json:"amount"`
}

type RegisterDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

type ReportImpactRequest struct {
	Impact   interfaces.Triple `json:"impact"`
	DeviceID string            `json:"device_id"`
	// Digest is the device identity commitment, see device.IdentityDigest.
	Digest common.Hash `json:"digest"`
}

type VerifyImpactRequest struct {
	Approved bool `json:"approved"`
}

type TransferOwnershipRequest struct {
	NewOwner common.Address `json:"new_owner"`
}

// CommitResponse is returned by every successful state-changing request.
type CommitResponse struct {
	Seq uint64 `json:"seq"`
}

type BondResponse struct {
	Terms        ledger.Terms  `json:"terms"`
	TermsSet     bool          `json:"terms_set"`
	Status       ledger.Status `json:"status"`
	BondsForSale uint64        `json:"bonds_for_sale"`
	Balance      uint64        `json:"balance"`
	Paused       bool          `json:"paused"`
	CouponRate   uint64        `json:"coupon_rate"`
	KPIMet       bool          `json:"kpi_met"`
	Seq          uint64        `json:"seq"`

	PendingPayouts []interfaces.Payout `json:"pending_payouts"`
}

type BalanceResponse struct {
	Balance uint64 `json:"balance"`
}

type HoldingResponse struct {
	Holder common.Address `json:"holder"`
	Amount uint64         `json:"amount"`
}

// DeviceResponse reports the owner of a device; Registered is false and Owner
// the zero address for unknown devices.
type DeviceResponse struct {
	DeviceID   string         `json:"device_id"`
	Owner      common.Address `json:"owner"`
	Registered bool           `json:"registered"`
}

type CheckResponse struct {
	Valid bool `json:"valid"`
}

type DigestResponse struct {
	Digest common.Hash `json:"digest"`
}

type ImpactResponse struct {
	Current reporting.Record   `json:"current"`
	History []reporting.Record `json:"history"`
}

type RolesResponse = governance.State

type NonceResponse struct {
	Principal common.Address `json:"principal"`
	Nonce     uint64         `json:"nonce"`
}

type JournalHeadResponse struct {
	Head interfaces.ContentID `json:"head"`
}

// ErrorResponse is the body of every non-2xx response. Kind is the
// interfaces.ErrorKind of the failure.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
