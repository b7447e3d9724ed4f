package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/vaultpilot/vaultpilot/internal/ledger"
	"github.com/vaultpilot/vaultpilot/internal/signer"
)

// signerctl is an operator tool for the rebalance signing flow: generate
// signer keys, build and sign payloads offline, and recover the signer
// address from an existing signature.
func main() {
	root := &cobra.Command{
		Use:          "signerctl",
		Short:        "Rebalance payload signing tool",
		SilenceUsage: true,
	}

	root.PersistentFlags().Int64("chain-id", 137, "EIP-712 domain chain id")
	root.PersistentFlags().String("contract", "0x5Cb5B4E98E1F1C58E9C3F0c7d3779E79Bf9a5b21", "EIP-712 verifying contract address")

	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new signer key",
		RunE:  runKeygen,
	}
	root.AddCommand(keygenCmd)

	signCmd := &cobra.Command{
		Use:   "sign",
		Short: "Build and sign a rebalance payload",
		RunE:  runSign,
	}
	signCmd.Flags().String("key", "", "signer private key hex (or SIGNER_KEY env)")
	signCmd.Flags().Uint64("vault", 0, "vault id")
	signCmd.Flags().Uint64("nonce", 0, "signer nonce")
	signCmd.Flags().Int64("tick-lower", 0, "new tick lower")
	signCmd.Flags().Int64("tick-upper", 0, "new tick upper")
	signCmd.Flags().Uint64("reallocate-pct", 0, "reallocation percent (0-100)")
	signCmd.Flags().Duration("ttl", 2*time.Minute, "payload validity window")
	root.AddCommand(signCmd)

	recoverCmd := &cobra.Command{
		Use:   "recover",
		Short: "Recover the signer address from a payload and signature",
		RunE:  runRecover,
	}
	recoverCmd.Flags().String("payload", "", "payload JSON (as produced by sign)")
	recoverCmd.Flags().String("signature", "", "signature hex")
	root.AddCommand(recoverCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func domainFrom(cmd *cobra.Command) signer.Domain {
	chainID, _ := cmd.Flags().GetInt64("chain-id")
	contract, _ := cmd.Flags().GetString("contract")
	return signer.NewDomain(chainID, common.HexToAddress(contract))
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Printf("private_key: %s\n", hex.EncodeToString(crypto.FromECDSA(key)))
	fmt.Printf("address:     %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
	return nil
}

func runSign(cmd *cobra.Command, _ []string) error {
	keyHex, _ := cmd.Flags().GetString("key")
	if keyHex == "" {
		keyHex = os.Getenv("SIGNER_KEY")
	}
	if keyHex == "" {
		return fmt.Errorf("signer key required (--key or SIGNER_KEY)")
	}

	sig, err := signer.NewSigner(keyHex, domainFrom(cmd))
	if err != nil {
		return err
	}

	vaultID, _ := cmd.Flags().GetUint64("vault")
	nonce, _ := cmd.Flags().GetUint64("nonce")
	tickLower, _ := cmd.Flags().GetInt64("tick-lower")
	tickUpper, _ := cmd.Flags().GetInt64("tick-upper")
	pct, _ := cmd.Flags().GetUint64("reallocate-pct")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if pct > 100 {
		return fmt.Errorf("reallocate-pct must be 0-100, got %d", pct)
	}

	action := ledger.RebalanceAction{
		TickLower:     tickLower,
		TickUpper:     tickUpper,
		ReallocatePct: pct,
	}

	payload := sig.NewPayload(vaultID, nonce, ledger.EncodeRebalanceAction(action), time.Now(), ttl)
	signature, err := sig.SignPayload(payload)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(map[string]any{
		"signer":    sig.Address().Hex(),
		"payload":   payload,
		"signature": signature,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runRecover(cmd *cobra.Command, _ []string) error {
	payloadJSON, _ := cmd.Flags().GetString("payload")
	sigHex, _ := cmd.Flags().GetString("signature")
	if payloadJSON == "" || sigHex == "" {
		return fmt.Errorf("--payload and --signature are required")
	}

	var payload signer.RebalancePayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return fmt.Errorf("invalid payload JSON: %w", err)
	}

	sigBytes, err := hexutil.Decode(sigHex)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sigBytes) != 65 {
		return fmt.Errorf("signature must be 65 bytes")
	}
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}

	domain := domainFrom(cmd)
	digest := domain.HashPayload(&payload)
	pub, err := crypto.SigToPub(digest.Bytes(), sigBytes)
	if err != nil {
		return fmt.Errorf("signature recovery failed: %w", err)
	}

	fmt.Printf("signer: %s\n", crypto.PubkeyToAddress(*pub).Hex())
	return nil
}
