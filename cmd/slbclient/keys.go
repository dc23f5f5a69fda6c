package main

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/ruteri/slb-bond-backend/keys"
	"github.com/urfave/cli/v2"
)

var flagOut = &cli.StringFlag{
	Name:     "out",
	Usage:    "file to write the private key to",
	Required: true,
}

func keyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "keygen",
			Usage: "generate a signing key",
			Flags: []cli.Flag{flagOut},
			Action: func(cCtx *cli.Context) error {
				key, err := keys.Generate()
				if err != nil {
					return err
				}
				if err := keys.Save(cCtx.String(flagOut.Name), key); err != nil {
					return err
				}
				fmt.Println(keys.Address(key).Hex())
				return nil
			},
		},
		{
			Name:  "split-key",
			Usage: "split the signing key into Shamir shares",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "parts", Value: 3, Usage: "number of shares"},
				&cli.IntFlag{Name: "threshold", Value: 2, Usage: "shares needed to recover the key"},
				&cli.StringFlag{Name: "out-dir", Usage: "write share-N.hex files here instead of printing"},
			},
			Action: func(cCtx *cli.Context) error {
				key, err := signingKey(cCtx)
				if err != nil {
					return err
				}
				shares, err := keys.Split(key, cCtx.Int("parts"), cCtx.Int("threshold"))
				if err != nil {
					return err
				}

				outDir := cCtx.String("out-dir")
				for i, share := range shares {
					encoded := hex.EncodeToString(share)
					if outDir == "" {
						fmt.Println(encoded)
						continue
					}
					path := filepath.Join(outDir, fmt.Sprintf("share-%d.hex", i+1))
					if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Name:      "sign-share",
			Usage:     "sign a share with the custodian key, printing SHARE:SIGNATURE",
			ArgsUsage: "SHARE",
			Action: func(cCtx *cli.Context) error {
				key, err := signingKey(cCtx)
				if err != nil {
					return err
				}
				share, err := hex.DecodeString(strings.TrimSpace(cCtx.Args().First()))
				if err != nil {
					return fmt.Errorf("invalid share: %w", err)
				}
				sig, err := keys.SignShare(share, key)
				if err != nil {
					return err
				}
				fmt.Printf("%x:%x\n", share, sig)
				return nil
			},
		},
		{
			Name:      "combine-key",
			Usage:     "recover a signing key from Shamir shares",
			ArgsUsage: "SHARE [SHARE...]",
			Description: "Shares are hex strings. With --custodian, every share must be signed " +
				"(SHARE:SIGNATURE, see sign-share) by one of the custodians.",
			Flags: []cli.Flag{
				flagOut,
				&cli.StringSliceFlag{Name: "custodian", Usage: "address allowed to contribute a share"},
				&cli.IntFlag{Name: "threshold", Value: 2, Usage: "shares needed to recover the key"},
				&cli.StringFlag{Name: "expect", Usage: "address the recovered key must have"},
			},
			Action: combineKey,
		},
	}
}

func combineKey(cCtx *cli.Context) error {
	var expected interfaces.Principal
	if s := cCtx.String("expect"); s != "" {
		var err error
		if expected, err = interfaces.ParsePrincipal(s); err != nil {
			return err
		}
	}

	var custodians []interfaces.Principal
	for _, s := range cCtx.StringSlice("custodian") {
		p, err := interfaces.ParsePrincipal(s)
		if err != nil {
			return err
		}
		custodians = append(custodians, p)
	}

	if len(custodians) == 0 {
		shares := make([][]byte, 0, cCtx.NArg())
		for _, arg := range cCtx.Args().Slice() {
			share, err := hex.DecodeString(strings.TrimSpace(arg))
			if err != nil {
				return fmt.Errorf("invalid share: %w", err)
			}
			shares = append(shares, share)
		}
		key, err := keys.Combine(shares)
		if err != nil {
			return err
		}
		if expected != interfaces.EmptyPrincipal && keys.Address(key) != expected {
			return fmt.Errorf("%w: recovered %s", interfaces.ErrHashMismatch, keys.Address(key).Hex())
		}
		return saveRecovered(cCtx, key)
	}

	recovery, err := keys.NewRecovery(cCtx.Int("threshold"), custodians, expected)
	if err != nil {
		return err
	}
	for _, arg := range cCtx.Args().Slice() {
		shareHex, sigHex, ok := strings.Cut(strings.TrimSpace(arg), ":")
		if !ok {
			return fmt.Errorf("share %q is not signed", arg)
		}
		share, err := hex.DecodeString(shareHex)
		if err != nil {
			return fmt.Errorf("invalid share: %w", err)
		}
		sig, err := hex.DecodeString(sigHex)
		if err != nil {
			return fmt.Errorf("invalid share signature: %w", err)
		}
		if _, err := recovery.SubmitShare(share, sig); err != nil {
			return err
		}
	}
	key, err := recovery.Key()
	if err != nil {
		return err
	}
	return saveRecovered(cCtx, key)
}

func saveRecovered(cCtx *cli.Context, key *ecdsa.PrivateKey) error {
	if err := keys.Save(cCtx.String(flagOut.Name), key); err != nil {
		return err
	}
	fmt.Println(keys.Address(key).Hex())
	return nil
}
