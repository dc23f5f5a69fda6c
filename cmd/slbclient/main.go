package main

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ruteri/slb-bond-backend/api/clients"
	"github.com/ruteri/slb-bond-backend/cmd/flags"
	"github.com/ruteri/slb-bond-backend/keys"
	"github.com/urfave/cli/v2"
)

func main() {
	commands := append(keyCommands(), operationCommands()...)
	commands = append(commands, viewCommands()...)

	app := &cli.App{
		Name:     "slbclient",
		Usage:    "Call the sustainability-linked bond API",
		Flags:    append([]cli.Flag{flags.ServerURLFlag, flags.KeyFileFlag, flags.KeyHexFlag}, flags.LogFlags...),
		Commands: commands,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// signingKey loads the caller key from --key or --key-file.
func signingKey(cCtx *cli.Context) (*ecdsa.PrivateKey, error) {
	switch {
	case cCtx.String(flags.KeyHexFlag.Name) != "":
		return keys.FromHex(cCtx.String(flags.KeyHexFlag.Name))
	case cCtx.String(flags.KeyFileFlag.Name) != "":
		return keys.Load(cCtx.String(flags.KeyFileFlag.Name))
	default:
		return nil, errors.New("a signing key is required, use --key or --key-file")
	}
}

func newClient(cCtx *cli.Context, signed bool) (*clients.BondClient, error) {
	var key *ecdsa.PrivateKey
	if signed {
		var err error
		if key, err = signingKey(cCtx); err != nil {
			return nil, err
		}
	}
	client := clients.NewBondClient(cCtx.String(flags.ServerURLFlag.Name), key)
	if signed {
		flags.SetupCLILogger(cCtx).Debug("Signing requests", "principal", client.Principal().Hex())
	}
	return client, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
