package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/slb-bond-backend/api"
	"github.com/ruteri/slb-bond-backend/cryptoutils"
	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/ruteri/slb-bond-backend/ledger"
)

// BondClient calls the bond API, signing state-changing requests with its key.
// Errors returned by the server wrap the matching interfaces sentinel, so
// callers can test them with errors.Is.
type BondClient struct {
	baseURL    string
	privateKey *ecdsa.PrivateKey
	httpClient *http.Client
}

// NewBondClient creates a client for the API at baseURL (e.g.
// "http://localhost:8080"). privateKey may be nil for read-only use.
func NewBondClient(baseURL string, privateKey *ecdsa.PrivateKey, timeout ...time.Duration) *BondClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &BondClient{
		baseURL:    baseURL,
		privateKey: privateKey,
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// Principal returns the address requests are signed as.
func (c *BondClient) Principal() interfaces.Principal {
	if c.privateKey == nil {
		return interfaces.EmptyPrincipal
	}
	return crypto.PubkeyToAddress(c.privateKey.PublicKey)
}

func (c *BondClient) SetRoles(ctx context.Context, issuer, verifier common.Address) (uint64, error) {
	return c.commit(ctx, "/roles", api.SetRolesRequest{Issuer: issuer, Verifier: verifier})
}

func (c *BondClient) SetBond(ctx context.Context, terms ledger.Terms) (uint64, error) {
	return c.commit(ctx, "/bond", terms)
}

func (c *BondClient) MintBond(ctx context.Context, amount uint64) (uint64, error) {
	return c.commit(ctx, "/bond/mint", api.AmountRequest{Amount: amount})
}

func (c *BondClient) IssueBond(ctx context.Context) (uint64, error) {
	return c.commit(ctx, "/bond/issue", nil)
}

func (c *BondClient) SetBondActive(ctx context.Context) (uint64, error) {
	return c.commit(ctx, "/bond/activate", nil)
}

func (c *BondClient) EndBond(ctx context.Context) (uint64, error) {
	return c.commit(ctx, "/bond/end", nil)
}

func (c *BondClient) FundBond(ctx context.Context, amount uint64) (uint64, error) {
	return c.commit(ctx, "/funding/deposit", api.AmountRequest{Amount: amount})
}

func (c *BondClient) WithdrawMoney(ctx context.Context, amount uint64) (uint64, error) {
	return c.commit(ctx, "/funding/withdraw", api.AmountRequest{Amount: amount})
}

func (c *BondClient) RegisterDevice(ctx context.Context, deviceID string) (uint64, error) {
	return c.commit(ctx, "/devices", api.RegisterDeviceRequest{DeviceID: deviceID})
}

func (c *BondClient) ReportImpact(ctx context.Context, impact interfaces.Triple, deviceID string, digest common.Hash) (uint64, error) {
	return c.commit(ctx, "/impact/report", api.ReportImpactRequest{Impact: impact, DeviceID: deviceID, Digest: digest})
}

func (c *BondClient) VerifyImpact(ctx context.Context, approved bool) (uint64, error) {
	return c.commit(ctx, "/impact/verify", api.VerifyImpactRequest{Approved: approved})
}

func (c *BondClient) FreezeBond(ctx context.Context) (uint64, error) {
	return c.commit(ctx, "/admin/freeze", nil)
}

func (c *BondClient) UnfreezeBond(ctx context.Context) (uint64, error) {
	return c.commit(ctx, "/admin/unfreeze", nil)
}

func (c *BondClient) TransferOwnership(ctx context.Context, newOwner common.Address) (uint64, error) {
	return c.commit(ctx, "/admin/ownership", api.TransferOwnershipRequest{NewOwner: newOwner})
}

func (c *BondClient) Bond(ctx context.Context) (*api.BondResponse, error) {
	var resp api.BondResponse
	return &resp, c.get(ctx, "/bond", nil, &resp)
}

func (c *BondClient) Balance(ctx context.Context) (uint64, error) {
	var resp api.BalanceResponse
	err := c.get(ctx, "/funding/balance", nil, &resp)
	return resp.Balance, err
}

func (c *BondClient) Roles(ctx context.Context) (*api.RolesResponse, error) {
	var resp api.RolesResponse
	return &resp, c.get(ctx, "/roles", nil, &resp)
}

func (c *BondClient) Impact(ctx context.Context) (*api.ImpactResponse, error) {
	var resp api.ImpactResponse
	return &resp, c.get(ctx, "/impact", nil, &resp)
}

func (c *BondClient) HoldingOf(ctx context.Context, holder common.Address) (uint64, error) {
	var resp api.HoldingResponse
	err := c.get(ctx, "/holdings/"+holder.Hex(), nil, &resp)
	return resp.Amount, err
}

func (c *BondClient) Device(ctx context.Context, deviceID string) (*api.DeviceResponse, error) {
	var resp api.DeviceResponse
	return &resp, c.get(ctx, "/devices/"+url.PathEscape(deviceID), nil, &resp)
}

func (c *BondClient) CheckDevice(ctx context.Context, deviceID string, digest common.Hash) (bool, error) {
	var resp api.CheckResponse
	q := url.Values{"digest": {digest.Hex()}}
	err := c.get(ctx, "/devices/"+url.PathEscape(deviceID)+"/check", q, &resp)
	return resp.Valid, err
}

func (c *BondClient) CheckDeviceMeasurement(ctx context.Context, deviceID string, digest common.Hash, m interfaces.Triple) (bool, error) {
	var resp api.CheckResponse
	q := measurementQuery(m)
	q.Set("digest", digest.Hex())
	err := c.get(ctx, "/devices/"+url.PathEscape(deviceID)+"/check-measurement", q, &resp)
	return resp.Valid, err
}

func (c *BondClient) IdentityDigest(ctx context.Context, deviceID string, owner common.Address) (common.Hash, error) {
	var resp api.DigestResponse
	q := url.Values{"device_id": {deviceID}, "owner": {owner.Hex()}}
	err := c.get(ctx, "/commitments/identity", q, &resp)
	return resp.Digest, err
}

func (c *BondClient) MeasurementDigest(ctx context.Context, deviceID string, owner common.Address, m interfaces.Triple) (common.Hash, error) {
	var resp api.DigestResponse
	q := measurementQuery(m)
	q.Set("device_id", deviceID)
	q.Set("owner", owner.Hex())
	err := c.get(ctx, "/commitments/measurement", q, &resp)
	return resp.Digest, err
}

// Nonce returns the nonce the next signed request of p must carry.
func (c *BondClient) Nonce(ctx context.Context, p common.Address) (uint64, error) {
	var resp api.NonceResponse
	err := c.get(ctx, "/nonces/"+p.Hex(), nil, &resp)
	return resp.Nonce, err
}

func (c *BondClient) JournalHead(ctx context.Context) (interfaces.ContentID, error) {
	var resp api.JournalHeadResponse
	err := c.get(ctx, "/journal/head", nil, &resp)
	return resp.Head, err
}

func measurementQuery(m interfaces.Triple) url.Values {
	return url.Values{
		"v1": {strconv.FormatUint(m[0], 10)},
		"v2": {strconv.FormatUint(m[1], 10)},
		"v3": {strconv.FormatUint(m[2], 10)},
	}
}

// requestLifetime is the validity window of a signed request.
const requestLifetime = 2 * time.Minute

func (c *BondClient) commit(ctx context.Context, path string, body any) (uint64, error) {
	if c.privateKey == nil {
		return 0, errors.New("client has no signing key")
	}

	payload := []byte("{}")
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	u, err := url.Parse(c.baseURL + api.PathPrefix + path)
	if err != nil {
		return 0, err
	}

	nonce, err := c.Nonce(ctx, c.Principal())
	if err != nil {
		return 0, fmt.Errorf("failed to fetch nonce: %w", err)
	}
	signed := cryptoutils.Request{
		Method: http.MethodPost,
		Path:   u.Path,
		Nonce:  nonce,
		Expiry: uint64(time.Now().Add(requestLifetime).Unix()),
		Body:   payload,
	}
	sig, err := cryptoutils.SignRequest(signed, c.privateKey)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.PrincipalHeader, c.Principal().Hex())
	req.Header.Set(api.NonceHeader, strconv.FormatUint(signed.Nonce, 10))
	req.Header.Set(api.ExpiryHeader, strconv.FormatUint(signed.Expiry, 10))
	req.Header.Set(api.SignatureHeader, hex.EncodeToString(sig))

	var resp api.CommitResponse
	if err := c.do(req, &resp); err != nil {
		return 0, err
	}
	return resp.Seq, nil
}

func (c *BondClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + api.PathPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *BondClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return responseError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}

// responseError rebuilds the server error, wrapping the sentinel named by its kind.
func responseError(status int, body []byte) error {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Kind == "" {
		return fmt.Errorf("request failed with code %d: %s", status, string(body))
	}
	if sentinel := interfaces.ErrorForKind(errResp.Kind); sentinel != nil {
		return &ServerError{StatusCode: status, Message: errResp.Error, err: sentinel}
	}
	return &ServerError{StatusCode: status, Message: errResp.Error}
}

// ServerError is a non-2xx response of the bond API.
type ServerError struct {
	StatusCode int
	Message    string
	err        error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (e *ServerError) Unwrap() error {
	return e.err
}
