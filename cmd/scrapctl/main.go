// Command scrapctl issues capability tokens, signs task requests, verifies
// protocol artifacts, and runs an end-to-end settlement demo.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"scrap-protocol/clock"
	"scrap-protocol/cryptoprim"
	"scrap-protocol/engine"
	"scrap-protocol/keys"
	"scrap-protocol/messages"
	"scrap-protocol/replay"
	"scrap-protocol/token"
	"scrap-protocol/verifier"
)

var log = logrus.New()

func main() {
	rootCmd := &cobra.Command{Use: "scrapctl"}
	rootCmd.AddCommand(issueTokenCmd())
	rootCmd.AddCommand(signRequestCmd())
	rootCmd.AddCommand(verifyTokenCmd())
	rootCmd.AddCommand(demoCmd())
	rootCmd.AddCommand(runScenarioCmd())
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("scrapctl failed")
		os.Exit(1)
	}
}

func issueTokenCmd() *cobra.Command {
	var subject, audience string
	var capabilities []string
	var issuedAt, expiresAt uint32

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "mint a root capability token signed by a freshly derived operator key",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, mnemonic, err := keys.NewRandomWallet(128)
			if err != nil {
				return err
			}
			priv, err := wallet.PrivateKey(keys.RoleOperator, 0)
			if err != nil {
				return err
			}

			subjectBytes, err := hex.DecodeString(subject)
			if err != nil {
				return fmt.Errorf("decode subject: %w", err)
			}
			audienceBytes, err := hex.DecodeString(audience)
			if err != nil {
				return fmt.Errorf("decode audience: %w", err)
			}

			tok, err := token.Issue(priv, priv.PubKey().SerializeCompressed(), token.IssueRequest{
				Subject:      subjectBytes,
				Audience:     audienceBytes,
				Capabilities: capabilities,
				IssuedAt:     issuedAt,
				ExpiresAt:    expiresAt,
			})
			if err != nil {
				return err
			}

			encoded := tok.EncodeTLV()
			fmt.Printf("operator_mnemonic: %s\n", mnemonic)
			fmt.Printf("operator_pubkey: %x\n", priv.PubKey().SerializeCompressed())
			fmt.Printf("token_id: %x\n", tok.TokenID)
			fmt.Printf("token_tlv: %x\n", encoded)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "hex-encoded commander public key")
	cmd.Flags().StringVar(&audience, "audience", "", "hex-encoded executor public key")
	cmd.Flags().StringSliceVar(&capabilities, "capability", nil, "capability string, repeatable")
	cmd.Flags().Uint32Var(&issuedAt, "issued-at", 0, "unix-second issued_at")
	cmd.Flags().Uint32Var(&expiresAt, "expires-at", 0, "unix-second expires_at")
	return cmd
}

func signRequestCmd() *cobra.Command {
	var taskID, taskType string
	var maxAmountSats uint64
	var timeoutBlocks uint32

	cmd := &cobra.Command{
		Use:   "sign-request",
		Short: "sign a task request with a freshly derived commander key",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, _, err := keys.NewRandomWallet(128)
			if err != nil {
				return err
			}
			priv, err := wallet.PrivateKey(keys.RoleCommander, 0)
			if err != nil {
				return err
			}

			req := &messages.TaskRequest{
				TaskID:          taskID,
				TaskType:        taskType,
				TargetJSON:      "{}",
				ParametersJSON:  "{}",
				ConstraintsJSON: "{}",
				PaymentMaxSats:  maxAmountSats,
				TimeoutBlocks:   timeoutBlocks,
			}
			hash := req.CommanderSigningHash()
			sig, err := cryptoprim.SignSchnorr(priv, hash)
			if err != nil {
				return err
			}
			req.CommanderSignature = sig

			encoded, err := messages.EncodeEnvelope(req)
			if err != nil {
				return err
			}
			fmt.Printf("commander_pubkey: %x\n", priv.PubKey().SerializeCompressed())
			fmt.Printf("request_hash: %x\n", req.RequestHash())
			fmt.Printf("envelope: %x\n", encoded)
			return nil
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "task identifier")
	cmd.Flags().StringVar(&taskType, "task-type", "", "capability string for this task")
	cmd.Flags().Uint64Var(&maxAmountSats, "max-amount-sats", 0, "payment_max_sats")
	cmd.Flags().Uint32Var(&timeoutBlocks, "timeout-blocks", 0, "timeout_blocks")
	return cmd
}

func verifyTokenCmd() *cobra.Command {
	var tokenHex, operatorPubkeyHex string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "verify a TLV-encoded capability token",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(tokenHex)
			if err != nil {
				return fmt.Errorf("decode token: %w", err)
			}
			tok, err := token.DecodeTLV(raw)
			if err != nil {
				return err
			}
			operatorPubkey, err := hex.DecodeString(operatorPubkeyHex)
			if err != nil {
				return fmt.Errorf("decode operator pubkey: %w", err)
			}
			v := verifier.New(operatorPubkey, nil, clock.SystemClock{})
			if err := v.VerifyToken(tok); err != nil {
				return err
			}
			fmt.Println("token valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&tokenHex, "token", "", "hex-encoded TLV token")
	cmd.Flags().StringVar(&operatorPubkeyHex, "operator-pubkey", "", "hex-encoded operator public key")
	return cmd
}

// demoCmd runs the commander/executor happy-path settlement scenario
// end to end through the engine runtimes, printing each transition.
func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "run an end-to-end capability-to-payment settlement demo",
		RunE: func(cmd *cobra.Command, args []string) error {
			operatorWallet, _, err := keys.NewRandomWallet(128)
			if err != nil {
				return err
			}
			commanderWallet, _, err := keys.NewRandomWallet(128)
			if err != nil {
				return err
			}
			executorWallet, _, err := keys.NewRandomWallet(128)
			if err != nil {
				return err
			}

			operatorKey, _ := operatorWallet.PrivateKey(keys.RoleOperator, 0)
			commanderKey, _ := commanderWallet.PrivateKey(keys.RoleCommander, 0)
			executorKey, _ := executorWallet.PrivateKey(keys.RoleExecutor, 0)

			operatorPub := operatorKey.PubKey().SerializeCompressed()
			executorPub := executorKey.PubKey().SerializeCompressed()
			clk := clock.SystemClock{}

			tok, err := token.Issue(operatorKey, operatorPub, token.IssueRequest{
				Subject:      commanderKey.PubKey().SerializeCompressed(),
				Audience:     executorPub,
				Capabilities: []string{"cmd:imaging:msi"},
				IssuedAt:     uint32(clk.Now() - 1),
				ExpiresAt:    uint32(clk.Now() + 3600),
			})
			if err != nil {
				return err
			}
			fmt.Println("1. operator issued capability token:", hex.EncodeToString(tok.TokenID[:]))

			executor := engine.NewExecutor(executorKey, operatorPub, replay.NewMemoryGuard(nil), clk)
			commander := engine.NewCommander(commanderKey, operatorPub, executorPub, clk)

			req, err := commander.BuildRequest(engine.RequestParams{
				TaskID:          "demo-task",
				CapabilityToken: tok.EncodeTLV(),
				TaskType:        "cmd:imaging:msi",
				TargetJSON:      "{}",
				ParametersJSON:  "{}",
				ConstraintsJSON: "{}",
				PaymentMaxSats:  20000,
				TimeoutBlocks:   144,
			})
			if err != nil {
				return err
			}
			fmt.Println("2. commander signed task request:", req.TaskID)

			if _, err := executor.Admit(req); err != nil {
				return err
			}
			fmt.Println("3. executor verified and admitted the request")

			lock, err := commander.EmitLock(req.TaskID, 15000, req.TimeoutBlocks)
			if err != nil {
				return err
			}
			if reject, err := executor.HandleLock(lock); err != nil {
				if reject != nil {
					return fmt.Errorf("lock rejected: %s: %w", reject.Details, err)
				}
				return err
			}
			fmt.Println("4. payment locked for", lock.AmountSats, "sats")

			accept, err := executor.EmitAccept(req.TaskID, engine.AcceptParams{Description: "demo imaging pass"})
			if err != nil {
				return err
			}
			if err := commander.ReceiveAccept(accept); err != nil {
				return err
			}
			fmt.Println("5. executor accepted task")

			proof, err := executor.EmitProof(req.TaskID, cryptoprim.SHA256([]byte("demo-output")))
			if err != nil {
				return err
			}
			if err := commander.ReceiveProof(proof); err != nil {
				return err
			}
			fmt.Println("6. execution proof signed and verified")

			claim, err := executor.EmitClaim(req.TaskID)
			if err != nil {
				return err
			}
			if err := commander.ReceiveClaim(claim); err != nil {
				return err
			}
			fmt.Println("7. payment claimed with preimage", hex.EncodeToString(claim.Preimage[:]))
			fmt.Println("demo complete: both runtimes reached their terminal claimed phase")
			return nil
		},
	}
}
