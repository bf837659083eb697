package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	internalAws "github.com/Layr-Labs/eigenx-bridge-go/internal/aws"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/clients/bridgeClient"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/signer/awsKmsSigner"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/transportSigner"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/transportSigner/inMemoryTransportSigner"
	"github.com/Layr-Labs/eigenx-bridge-go/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "bridge-client",
		Usage: "Client for the bridge node HTTP API",
		Description: `Submits ledger operations to a bridge node and queries its state.

Lock, burn, transfer, approve and set-validator are signed with --private-key
and act as its address. Unlock and mint take either comma separated signatures
or a fresh attestation from a dev node (--attest).`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "node-url",
				Usage:   "Bridge node base URL",
				Value:   "http://localhost:8000",
				EnvVars: []string{"BRIDGE_NODE_URL"},
			},
			&cli.StringFlag{
				Name:    "private-key",
				Usage:   "Hex secp256k1 key that signs requests acting on an account",
				EnvVars: []string{"BRIDGE_CLIENT_PRIVATE_KEY"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "lock",
				Usage: "Lock underlying asset on the main chain for a sidechain destination",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "destination", Required: true},
					amountFlag(),
				},
				Action: lockCommand,
			},
			{
				Name:  "unlock",
				Usage: "Release underlying asset on the main chain",
				Flags: releaseFlags(),
				Action: func(c *cli.Context) error {
					return releaseCommand(c, types.ChainName_MainChain)
				},
			},
			{
				Name:  "mint",
				Usage: "Mint wrapped tokens on the sidechain",
				Flags: releaseFlags(),
				Action: func(c *cli.Context) error {
					return releaseCommand(c, types.ChainName_SideChain)
				},
			},
			{
				Name:  "burn",
				Usage: "Burn wrapped tokens on the sidechain",
				Flags: []cli.Flag{
					amountFlag(),
				},
				Action: burnCommand,
			},
			{
				Name:  "transfer",
				Usage: "Transfer wrapped tokens to another sidechain account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "to", Required: true},
					amountFlag(),
				},
				Action: transferCommand,
			},
			{
				Name:  "set-validator",
				Usage: "Set the validator identity or quorum of a ledger",
				Flags: []cli.Flag{
					chainFlag(),
					&cli.StringSliceFlag{Name: "member", Usage: "Validator address, repeatable", Required: true},
					&cli.IntFlag{Name: "threshold", Usage: "Signatures required (defaults to a single validator)"},
				},
				Action: setValidatorCommand,
			},
			{
				Name:  "approve",
				Usage: "Approve the main-chain ledger to pull underlying asset",
				Flags: []cli.Flag{
					amountFlag(),
				},
				Action: approveCommand,
			},
			{
				Name:  "faucet",
				Usage: "Mint underlying asset on a dev node",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account", Required: true},
					amountFlag(),
				},
				Action: faucetCommand,
			},
			{
				Name:  "balance",
				Usage: "Show the sidechain and underlying asset balances of an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account", Required: true},
				},
				Action: balanceCommand,
			},
			{
				Name:   "status",
				Usage:  "Show node health, main-chain custody and sidechain supply",
				Action: statusCommand,
			},
			{
				Name:  "events",
				Usage: "List ledger events",
				Flags: []cli.Flag{
					chainFlag(),
					&cli.Uint64Flag{Name: "from", Usage: "Only events with a higher sequence"},
					&cli.BoolFlag{Name: "archive", Usage: "Read from the node's persistence instead of the ledger"},
				},
				Action: eventsCommand,
			},
			{
				Name:  "create-kms-key",
				Usage: "Create a secp256k1 signing key in AWS KMS for the signature authority",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "alias"},
					&cli.StringFlag{Name: "environment", Value: "dev"},
					&cli.StringFlag{Name: "aws-region"},
				},
				Action: createKMSKeyCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func amountFlag() cli.Flag {
	return &cli.StringFlag{Name: "amount", Usage: "Amount in base units", Required: true}
}

func chainFlag() cli.Flag {
	return &cli.StringFlag{Name: "chain", Usage: "mainchain or sidechain", Required: true}
}

func releaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "recipient", Required: true},
		amountFlag(),
		&cli.Uint64Flag{Name: "nonce", Usage: "Nonce for domain-bound authorizations"},
		&cli.StringFlag{Name: "signatures", Usage: "Comma separated hex signatures"},
		&cli.BoolFlag{Name: "attest", Usage: "Ask the node's authority for the signatures (dev mode only)"},
	}
}

func createClient(c *cli.Context) (*bridgeClient.BridgeClient, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	var ts transportSigner.ITransportSigner
	if key := c.String("private-key"); key != "" {
		signer, err := inMemoryTransportSigner.NewECDSAInMemoryTransportSignerFromHex(key, l)
		if err != nil {
			return nil, fmt.Errorf("failed to load --private-key: %w", err)
		}
		ts = signer
	}
	return bridgeClient.NewBridgeClient(c.String("node-url"), ts, l), nil
}

func parseAddress(c *cli.Context, name string) (common.Address, error) {
	raw := c.String(name)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("--%s must be a hex address, got %q", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseAmount(c *cli.Context) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(c.String("amount"), 10)
	if !ok {
		return nil, fmt.Errorf("--amount must be a base-10 integer, got %q", c.String("amount"))
	}
	return amount, nil
}

func parseChain(c *cli.Context) (types.ChainName, error) {
	chain := types.ChainName(strings.ToLower(c.String("chain")))
	if chain != types.ChainName_MainChain && chain != types.ChainName_SideChain {
		return "", fmt.Errorf("--chain must be %q or %q", types.ChainName_MainChain, types.ChainName_SideChain)
	}
	return chain, nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func lockCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	destination, err := parseAddress(c, "destination")
	if err != nil {
		return err
	}
	amount, err := parseAmount(c)
	if err != nil {
		return err
	}

	ev, err := client.Lock(c.Context, amount, destination)
	if err != nil {
		return fmt.Errorf("lock failed: %w", err)
	}
	return printJSON(ev)
}

func releaseCommand(c *cli.Context, chain types.ChainName) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	recipient, err := parseAddress(c, "recipient")
	if err != nil {
		return err
	}
	amount, err := parseAmount(c)
	if err != nil {
		return err
	}

	var att *types.Attestation
	if c.Bool("attest") {
		att, err = client.Attest(c.Context, chain, recipient, amount, c.Uint64("nonce"))
		if err != nil {
			return fmt.Errorf("attestation failed: %w", err)
		}
	} else {
		sigs, err := bridgeClient.ParseSignatures(c.String("signatures"))
		if err != nil {
			return err
		}
		att = &types.Attestation{
			Authorization: types.Authorization{Recipient: recipient, Amount: amount, Nonce: c.Uint64("nonce")},
			Signatures:    sigs,
		}
	}

	var ev *types.Event
	if chain == types.ChainName_MainChain {
		ev, err = client.Unlock(c.Context, att)
	} else {
		ev, err = client.Mint(c.Context, att)
	}
	if err != nil {
		return fmt.Errorf("%s release failed: %w", chain, err)
	}
	return printJSON(ev)
}

func burnCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	amount, err := parseAmount(c)
	if err != nil {
		return err
	}

	ev, err := client.Burn(c.Context, amount)
	if err != nil {
		return fmt.Errorf("burn failed: %w", err)
	}
	return printJSON(ev)
}

func transferCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	to, err := parseAddress(c, "to")
	if err != nil {
		return err
	}
	amount, err := parseAmount(c)
	if err != nil {
		return err
	}

	balance, err := client.Transfer(c.Context, to, amount)
	if err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}
	fmt.Printf("Balance of %s: %s\n", client.Address(), balance)
	return nil
}

func setValidatorCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	chain, err := parseChain(c)
	if err != nil {
		return err
	}
	var members []common.Address
	for _, raw := range c.StringSlice("member") {
		if !common.IsHexAddress(raw) {
			return fmt.Errorf("--member must be a hex address, got %q", raw)
		}
		members = append(members, common.HexToAddress(raw))
	}

	vs, err := client.SetValidator(c.Context, chain, members, c.Int("threshold"))
	if err != nil {
		return fmt.Errorf("set validator failed: %w", err)
	}
	return printJSON(vs)
}

func approveCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	amount, err := parseAmount(c)
	if err != nil {
		return err
	}

	allowance, err := client.Approve(c.Context, amount)
	if err != nil {
		return fmt.Errorf("approve failed: %w", err)
	}
	fmt.Printf("Allowance: %s\n", allowance)
	return nil
}

func faucetCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	account, err := parseAddress(c, "account")
	if err != nil {
		return err
	}
	amount, err := parseAmount(c)
	if err != nil {
		return err
	}

	balance, err := client.Faucet(c.Context, account, amount)
	if err != nil {
		return fmt.Errorf("faucet failed: %w", err)
	}
	fmt.Printf("Balance: %s\n", balance)
	return nil
}

func balanceCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	account, err := parseAddress(c, "account")
	if err != nil {
		return err
	}

	side, err := client.SideBalance(c.Context, account)
	if err != nil {
		return err
	}
	underlying, err := client.AssetBalance(c.Context, account)
	if err != nil {
		return err
	}
	fmt.Printf("Sidechain: %s\nUnderlying: %s\n", side, underlying)
	return nil
}

func statusCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}

	health, err := client.Health(c.Context)
	if err != nil {
		return err
	}
	custody, err := client.Custody(c.Context)
	if err != nil {
		return err
	}
	supply, err := client.Supply(c.Context)
	if err != nil {
		return err
	}

	fmt.Printf("Status:            %s\n", health.Status)
	fmt.Printf("Authority:         %s (%d signers)\n", health.AuthorityAddress, len(health.AuthorityIdentities))
	fmt.Printf("Main-chain ledger: %s (custody %s, sequence %d)\n", health.MainChainLedger, custody, health.MainChainSequence)
	fmt.Printf("Sidechain ledger:  %s (supply %s, sequence %d)\n", health.SideChainLedger, supply, health.SideChainSequence)
	return nil
}

func eventsCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	chain, err := parseChain(c)
	if err != nil {
		return err
	}

	events, err := client.Events(c.Context, chain, c.Uint64("from"), c.Bool("archive"))
	if err != nil {
		return err
	}
	return printJSON(events)
}

func createKMSKeyCommand(c *cli.Context) error {
	awsCfg, err := internalAws.LoadAWSConfig(c.Context, c.String("aws-region"))
	if err != nil {
		return err
	}

	keyId, err := awsKmsSigner.CreateSigningKey(c.Context, internalAws.NewKMSClient(awsCfg), c.String("name"), c.String("alias"), c.String("environment"))
	if err != nil {
		return err
	}
	fmt.Printf("Created KMS key: %s\n", keyId)
	return nil
}
