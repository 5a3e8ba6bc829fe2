package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scrap-protocol/cryptoprim"
	"scrap-protocol/keys"
	"scrap-protocol/messages"
	"scrap-protocol/settlement"
	"scrap-protocol/statemachine"
	"scrap-protocol/token"
)

// scenarioFile is the YAML shape for a run-scenario input: a single task
// driven end to end through fresh demo identities, parameterized instead
// of hardcoded as in the demo command.
type scenarioFile struct {
	TaskID         string   `yaml:"task_id"`
	TaskType       string   `yaml:"task_type"`
	Capabilities   []string `yaml:"capabilities"`
	IssuedAt       uint32   `yaml:"issued_at"`
	ExpiresAt      uint32   `yaml:"expires_at"`
	PaymentMaxSats uint64   `yaml:"payment_max_sats"`
	LockAmountSats uint64   `yaml:"lock_amount_sats"`
	TimeoutBlocks  uint32   `yaml:"timeout_blocks"`
	OutputPreimage string   `yaml:"output_preimage"`
}

// runScenarioCmd drives one settlement flow from a YAML scenario file,
// useful for replaying a parameterized task through the commander and
// executor state machines without hand-editing the demo.
func runScenarioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-scenario <scenario.yaml>",
		Short: "drive one capability-to-payment settlement from a YAML scenario file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read scenario file: %w", err)
			}
			var sc scenarioFile
			if err := yaml.Unmarshal(b, &sc); err != nil {
				return fmt.Errorf("parse scenario yaml: %w", err)
			}
			if sc.OutputPreimage == "" {
				sc.OutputPreimage = sc.TaskID + "-output"
			}
			return runScenario(cmd, sc)
		},
	}
}

func runScenario(cmd *cobra.Command, sc scenarioFile) error {
	out := cmd.OutOrStdout()

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

	tok, err := token.Issue(operatorKey, operatorKey.PubKey().SerializeCompressed(), token.IssueRequest{
		Subject:      commanderKey.PubKey().SerializeCompressed(),
		Audience:     executorKey.PubKey().SerializeCompressed(),
		Capabilities: sc.Capabilities,
		IssuedAt:     sc.IssuedAt,
		ExpiresAt:    sc.ExpiresAt,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "1. operator issued capability token: %s\n", hex.EncodeToString(tok.TokenID[:]))

	req := &messages.TaskRequest{
		TaskID:          sc.TaskID,
		Timestamp:       sc.IssuedAt,
		CapabilityToken: tok.EncodeTLV(),
		TaskType:        sc.TaskType,
		TargetJSON:      "{}",
		ParametersJSON:  "{}",
		ConstraintsJSON: "{}",
		PaymentMaxSats:  sc.PaymentMaxSats,
		TimeoutBlocks:   sc.TimeoutBlocks,
	}
	sig, err := cryptoprim.SignSchnorr(commanderKey, req.CommanderSigningHash())
	if err != nil {
		return err
	}
	req.CommanderSignature = sig
	fmt.Fprintf(out, "2. commander signed task request: %s\n", req.TaskID)

	executorState := statemachine.NewExecutorState(req)
	commanderState := statemachine.NewCommanderState(req)

	lock := &messages.PaymentLock{
		TaskID:        req.TaskID,
		CorrelationID: executorState.CorrelationID,
		PaymentHash:   [32]byte(settlement.DerivePaymentHash(executorState.CorrelationID)),
		AmountSats:    sc.LockAmountSats,
		TimeoutBlocks: req.TimeoutBlocks,
		Timestamp:     sc.IssuedAt + 1,
	}
	if err := executorState.ApplyLock(lock, uint64(sc.IssuedAt+1)); err != nil {
		return err
	}
	if err := commanderState.ObserveLock(); err != nil {
		return err
	}
	fmt.Fprintf(out, "3. payment locked for %d sats\n", lock.AmountSats)

	if err := executorState.MarkAccepted(); err != nil {
		return err
	}
	if err := commanderState.ObserveAccept(&messages.TaskAccept{TaskID: req.TaskID, AmountSats: lock.AmountSats}); err != nil {
		return err
	}
	fmt.Fprintln(out, "4. executor accepted task")

	proof := &messages.ProofOfExecution{
		TaskID:             req.TaskID,
		TaskTokenID:        tok.TokenID,
		PaymentHash:        lock.PaymentHash,
		OutputHash:         cryptoprim.SHA256([]byte(sc.OutputPreimage)),
		ExecutionTimestamp: sc.IssuedAt + 2,
	}
	if err := settlement.SignProof(executorKey, proof); err != nil {
		return err
	}
	if err := executorState.MarkProofSent(); err != nil {
		return err
	}
	if err := commanderState.ObserveProof(); err != nil {
		return err
	}
	fmt.Fprintln(out, "5. execution proof signed and sent")

	preimage := settlement.DerivePreimage(executorState.CorrelationID)
	claim := &messages.PaymentClaim{
		TaskID:        req.TaskID,
		CorrelationID: executorState.CorrelationID,
		PaymentHash:   lock.PaymentHash,
		Preimage:      [32]byte(preimage),
		Timestamp:     sc.IssuedAt + 3,
	}
	if err := executorState.MarkClaimed(); err != nil {
		return err
	}
	if err := commanderState.ObserveClaim(claim); err != nil {
		return err
	}
	fmt.Fprintf(out, "6. payment claimed with preimage %s\n", hex.EncodeToString(preimage[:]))
	fmt.Fprintln(out, "scenario complete: both state machines reached their terminal claimed phase")
	return nil
}
