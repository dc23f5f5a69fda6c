package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/slb-bond-backend/api/clients"
	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/ruteri/slb-bond-backend/ledger"
	"github.com/urfave/cli/v2"
)

type commitAction func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (uint64, error)

// signed wraps a state-changing call and prints the committed sequence number.
func signed(fn commitAction) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		client, err := newClient(cCtx, true)
		if err != nil {
			return err
		}
		seq, err := fn(cCtx.Context, client, cCtx)
		if err != nil {
			return err
		}
		return printJSON(map[string]uint64{"seq": seq})
	}
}

type viewAction func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (any, error)

func public(fn viewAction) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		client, err := newClient(cCtx, false)
		if err != nil {
			return err
		}
		out, err := fn(cCtx.Context, client, cCtx)
		if err != nil {
			return err
		}
		return printJSON(out)
	}
}

func address(cCtx *cli.Context, name string) (common.Address, error) {
	return interfaces.ParsePrincipal(cCtx.String(name))
}

func digest(cCtx *cli.Context) (common.Hash, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(cCtx.String("digest"), "0x"))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: digest must be 32 hex-encoded bytes", interfaces.ErrInvalidArgument)
	}
	return common.BytesToHash(b), nil
}

func triple(cCtx *cli.Context, name string) (interfaces.Triple, error) {
	t, err := interfaces.ParseTriple(cCtx.String(name))
	if err != nil {
		return interfaces.Triple{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

var (
	flagAmount      = &cli.Uint64Flag{Name: "amount", Required: true}
	flagDeviceID    = &cli.StringFlag{Name: "id", Usage: "device id", Required: true}
	flagDigest      = &cli.StringFlag{Name: "digest", Usage: "32-byte hex commitment"}
	flagMeasurement = &cli.StringFlag{Name: "measurement", Usage: "v1,v2,v3", Required: true}
	flagOwnerAddr   = &cli.StringFlag{Name: "owner", Usage: "device owner address", Required: true}
)

func operationCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "set-roles",
			Usage: "owner: assign the issuer and verifier",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "issuer", Required: true},
				&cli.StringFlag{Name: "verifier", Required: true},
			},
			Action: signed(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (uint64, error) {
				issuer, err := address(cCtx, "issuer")
				if err != nil {
					return 0, err
				}
				verifier, err := address(cCtx, "verifier")
				if err != nil {
					return 0, err
				}
				return c.SetRoles(ctx, issuer, verifier)
			}),
		},
		{
			Name:  "set-bond",
			Usage: "issuer: set the bond terms",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "description", Required: true},
				&cli.StringFlag{Name: "kpi", Usage: "KPI targets v1,v2,v3", Required: true},
				&cli.Uint64Flag{Name: "supply", Required: true},
				&cli.Uint64Flag{Name: "instrument"},
				&cli.Uint64Flag{Name: "coupon-rate"},
				&cli.Uint64Flag{Name: "penalty-rate"},
				&cli.Uint64Flag{Name: "face-value"},
				&cli.Uint64Flag{Name: "start", Usage: "unix seconds", Required: true},
				&cli.Uint64Flag{Name: "coupon-date", Usage: "unix seconds", Required: true},
				&cli.Uint64Flag{Name: "maturity", Usage: "unix seconds", Required: true},
			},
			Action: signed(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (uint64, error) {
				kpi, err := triple(cCtx, "kpi")
				if err != nil {
					return 0, err
				}
				return c.SetBond(ctx, ledger.Terms{
					Description:  cCtx.String("description"),
					KPITargets:   kpi,
					TotalSupply:  cCtx.Uint64("supply"),
					InstrumentID: cCtx.Uint64("instrument"),
					CouponRate:   cCtx.Uint64("coupon-rate"),
					PenaltyRate:  cCtx.Uint64("penalty-rate"),
					FaceValue:    cCtx.Uint64("face-value"),
					StartDate:    cCtx.Uint64("start"),
					CouponDate:   cCtx.Uint64("coupon-date"),
					MaturityDate: cCtx.Uint64("maturity"),
				})
			}),
		},
		{
			Name:  "mint",
			Usage: "mint bonds",
			Flags: []cli.Flag{flagAmount},
			Action: signed(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (uint64, error) {
				return c.MintBond(ctx, cCtx.Uint64(flagAmount.Name))
			}),
		},
		{
			Name:  "issue",
			Usage: "issuer: move a Created bond to Issued",
			Action: signed(func(ctx context.Context, c *clients.BondClient, _ *cli.Context) (uint64, error) {
				return c.IssueBond(ctx)
			}),
		},
		{
			Name:  "activate",
			Usage: "issuer: move an Issued bond to Active",
			Action: signed(func(ctx context.Context, c *clients.BondClient, _ *cli.Context) (uint64, error) {
				return c.SetBondActive(ctx)
			}),
		},
		{
			Name:  "end",
			Usage: "issuer: end an Active bond at maturity",
			Action: signed(func(ctx context.Context, c *clients.BondClient, _ *cli.Context) (uint64, error) {
				return c.EndBond(ctx)
			}),
		},
		{
			Name:  "fund",
			Usage: "deposit into the funding account",
			Flags: []cli.Flag{flagAmount},
			Action: signed(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (uint64, error) {
				return c.FundBond(ctx, cCtx.Uint64(flagAmount.Name))
			}),
		},
		{
			Name:  "withdraw",
			Usage: "issuer: withdraw from the funding account",
			Flags: []cli.Flag{flagAmount},
			Action: signed(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (uint64, error) {
				return c.WithdrawMoney(ctx, cCtx.Uint64(flagAmount.Name))
			}),
		},
		{
			Name:  "register-device",
			Usage: "register a measurement device owned by the caller",
			Flags: []cli.Flag{flagDeviceID},
			Action: signed(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (uint64, error) {
				return c.RegisterDevice(ctx, cCtx.String(flagDeviceID.Name))
			}),
		},
		{
			Name:  "report",
			Usage: "issuer: report impact for the next period",
			Flags: []cli.Flag{
				flagDeviceID,
				&cli.StringFlag{Name: "impact", Usage: "v1,v2,v3", Required: true},
				flagDigest,
			},
			Description: "Without --digest the identity commitment is computed from the registered device owner.",
			Action: signed(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (uint64, error) {
				impact, err := triple(cCtx, "impact")
				if err != nil {
					return 0, err
				}
				id := cCtx.String(flagDeviceID.Name)

				var d common.Hash
				if cCtx.IsSet(flagDigest.Name) {
					if d, err = digest(cCtx); err != nil {
						return 0, err
					}
				} else {
					dev, err := c.Device(ctx, id)
					if err != nil {
						return 0, err
					}
					if !dev.Registered {
						return 0, fmt.Errorf("%w: device %q", interfaces.ErrNotFound, id)
					}
					if d, err = c.IdentityDigest(ctx, id, dev.Owner); err != nil {
						return 0, err
					}
				}
				return c.ReportImpact(ctx, impact, id, d)
			}),
		},
		{
			Name:  "verify",
			Usage: "verifier: rule on the reported period",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "reject", Usage: "reject the report instead of approving it"},
			},
			Action: signed(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (uint64, error) {
				return c.VerifyImpact(ctx, !cCtx.Bool("reject"))
			}),
		},
		{
			Name:  "freeze",
			Usage: "owner: pause the bond",
			Action: signed(func(ctx context.Context, c *clients.BondClient, _ *cli.Context) (uint64, error) {
				return c.FreezeBond(ctx)
			}),
		},
		{
			Name:  "unfreeze",
			Usage: "owner: resume the bond",
			Action: signed(func(ctx context.Context, c *clients.BondClient, _ *cli.Context) (uint64, error) {
				return c.UnfreezeBond(ctx)
			}),
		},
		{
			Name:  "transfer-ownership",
			Usage: "owner: hand ownership to another address",
			Flags: []cli.Flag{&cli.StringFlag{Name: "to", Required: true}},
			Action: signed(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (uint64, error) {
				to, err := address(cCtx, "to")
				if err != nil {
					return 0, err
				}
				return c.TransferOwnership(ctx, to)
			}),
		},
	}
}

func viewCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "bond",
			Usage: "show the bond",
			Action: public(func(ctx context.Context, c *clients.BondClient, _ *cli.Context) (any, error) {
				return c.Bond(ctx)
			}),
		},
		{
			Name:  "balance",
			Usage: "show the funding balance",
			Action: public(func(ctx context.Context, c *clients.BondClient, _ *cli.Context) (any, error) {
				balance, err := c.Balance(ctx)
				return map[string]uint64{"balance": balance}, err
			}),
		},
		{
			Name:  "roles",
			Usage: "show role holders and the pause flag",
			Action: public(func(ctx context.Context, c *clients.BondClient, _ *cli.Context) (any, error) {
				return c.Roles(ctx)
			}),
		},
		{
			Name:  "impact",
			Usage: "show the reporting period and its history",
			Action: public(func(ctx context.Context, c *clients.BondClient, _ *cli.Context) (any, error) {
				return c.Impact(ctx)
			}),
		},
		{
			Name:  "holding",
			Usage: "show the bonds minted by an address",
			Flags: []cli.Flag{&cli.StringFlag{Name: "addr", Required: true}},
			Action: public(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (any, error) {
				holder, err := address(cCtx, "addr")
				if err != nil {
					return nil, err
				}
				amount, err := c.HoldingOf(ctx, holder)
				return map[string]any{"holder": holder, "amount": amount}, err
			}),
		},
		{
			Name:  "device",
			Usage: "show the owner of a device",
			Flags: []cli.Flag{flagDeviceID},
			Action: public(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (any, error) {
				return c.Device(ctx, cCtx.String(flagDeviceID.Name))
			}),
		},
		{
			Name:  "check-device",
			Usage: "check a device identity commitment",
			Flags: []cli.Flag{flagDeviceID, flagDigest},
			Action: public(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (any, error) {
				d, err := digest(cCtx)
				if err != nil {
					return nil, err
				}
				valid, err := c.CheckDevice(ctx, cCtx.String(flagDeviceID.Name), d)
				return map[string]bool{"valid": valid}, err
			}),
		},
		{
			Name:  "check-measurement",
			Usage: "check a device measurement commitment",
			Flags: []cli.Flag{flagDeviceID, flagDigest, flagMeasurement},
			Action: public(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (any, error) {
				d, err := digest(cCtx)
				if err != nil {
					return nil, err
				}
				m, err := triple(cCtx, flagMeasurement.Name)
				if err != nil {
					return nil, err
				}
				valid, err := c.CheckDeviceMeasurement(ctx, cCtx.String(flagDeviceID.Name), d, m)
				return map[string]bool{"valid": valid}, err
			}),
		},
		{
			Name:  "identity-digest",
			Usage: "compute a device identity commitment",
			Flags: []cli.Flag{flagDeviceID, flagOwnerAddr},
			Action: public(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (any, error) {
				owner, err := address(cCtx, flagOwnerAddr.Name)
				if err != nil {
					return nil, err
				}
				d, err := c.IdentityDigest(ctx, cCtx.String(flagDeviceID.Name), owner)
				return map[string]common.Hash{"digest": d}, err
			}),
		},
		{
			Name:  "measurement-digest",
			Usage: "compute a device measurement commitment",
			Flags: []cli.Flag{flagDeviceID, flagOwnerAddr, flagMeasurement},
			Action: public(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (any, error) {
				owner, err := address(cCtx, flagOwnerAddr.Name)
				if err != nil {
					return nil, err
				}
				m, err := triple(cCtx, flagMeasurement.Name)
				if err != nil {
					return nil, err
				}
				d, err := c.MeasurementDigest(ctx, cCtx.String(flagDeviceID.Name), owner, m)
				return map[string]common.Hash{"digest": d}, err
			}),
		},
		{
			Name:  "nonce",
			Usage: "show the nonce the next signed request of an address must carry",
			Flags: []cli.Flag{&cli.StringFlag{Name: "addr", Required: true}},
			Action: public(func(ctx context.Context, c *clients.BondClient, cCtx *cli.Context) (any, error) {
				p, err := address(cCtx, "addr")
				if err != nil {
					return nil, err
				}
				nonce, err := c.Nonce(ctx, p)
				return map[string]any{"principal": p, "nonce": nonce}, err
			}),
		},
		{
			Name:  "journal-head",
			Usage: "show the id of the latest journal entry",
			Action: public(func(ctx context.Context, c *clients.BondClient, _ *cli.Context) (any, error) {
				head, err := c.JournalHead(ctx)
				return map[string]interfaces.ContentID{"head": head}, err
			}),
		},
	}
}
