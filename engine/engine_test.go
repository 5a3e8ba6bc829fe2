package engine

import (
	"bytes"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"scrap-protocol/clock"
	"scrap-protocol/cryptoprim"
	"scrap-protocol/messages"
	"scrap-protocol/replay"
	"scrap-protocol/scraperr"
	"scrap-protocol/statemachine"
	"scrap-protocol/token"
)

func fixedKey(b byte) *btcec.PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{b}, 32))
	return priv
}

type fixture struct {
	operator, commander, executor *btcec.PrivateKey
	clk                           clock.Fixed
	exec                          *Executor
	cmdr                          *Commander
}

func newFixture(t *testing.T, now uint64) *fixture {
	t.Helper()
	f := &fixture{
		operator:  fixedKey(0x01),
		commander: fixedKey(0x02),
		executor:  fixedKey(0x03),
		clk:       clock.Fixed{T: now},
	}
	operatorPub := f.operator.PubKey().SerializeCompressed()
	executorPub := f.executor.PubKey().SerializeCompressed()
	f.exec = NewExecutor(f.executor, operatorPub, replay.NewMemoryGuard(nil), f.clk)
	f.cmdr = NewCommander(f.commander, operatorPub, executorPub, f.clk)
	return f
}

func (f *fixture) issueToken(t *testing.T, capabilities []string, issuedAt, expiresAt uint32) *token.Token {
	t.Helper()
	tok, err := token.Issue(f.operator, f.operator.PubKey().SerializeCompressed(), token.IssueRequest{
		Subject:      f.commander.PubKey().SerializeCompressed(),
		Audience:     f.executor.PubKey().SerializeCompressed(),
		Capabilities: capabilities,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (f *fixture) buildRequest(t *testing.T, taskID string, tok *token.Token) *messages.TaskRequest {
	t.Helper()
	req, err := f.cmdr.BuildRequest(RequestParams{
		TaskID:          taskID,
		CapabilityToken: tok.EncodeTLV(),
		TaskType:        "cmd:imaging:msi",
		TargetJSON:      "{}",
		ParametersJSON:  "{}",
		ConstraintsJSON: "{}",
		PaymentMaxSats:  20000,
		TimeoutBlocks:   144,
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return req
}

func TestHappyPathSettlement(t *testing.T) {
	f := newFixture(t, 50)
	tok := f.issueToken(t, []string{"cmd:imaging:msi"}, 1, 100)
	req := f.buildRequest(t, "task-flow", tok)

	state, err := f.exec.Admit(req)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if state.Phase != statemachine.Requested {
		t.Fatalf("phase after admit = %v, want Requested", state.Phase)
	}

	lock, err := f.cmdr.EmitLock("task-flow", 15000, 144)
	if err != nil {
		t.Fatalf("emit lock: %v", err)
	}
	if reject, err := f.exec.HandleLock(lock); err != nil || reject != nil {
		t.Fatalf("handle lock: reject=%v err=%v", reject, err)
	}

	accept, err := f.exec.EmitAccept("task-flow", AcceptParams{Description: "msi capture"})
	if err != nil {
		t.Fatalf("emit accept: %v", err)
	}
	if accept.AmountSats != 15000 {
		t.Fatalf("accept amount = %d, want locked 15000", accept.AmountSats)
	}
	if err := f.cmdr.ReceiveAccept(accept); err != nil {
		t.Fatalf("receive accept: %v", err)
	}

	outputHash := cryptoprim.SHA256([]byte("output-flow"))
	proof, err := f.exec.EmitProof("task-flow", outputHash)
	if err != nil {
		t.Fatalf("emit proof: %v", err)
	}
	if err := f.cmdr.ReceiveProof(proof); err != nil {
		t.Fatalf("receive proof: %v", err)
	}

	claim, err := f.exec.EmitClaim("task-flow")
	if err != nil {
		t.Fatalf("emit claim: %v", err)
	}
	if cryptoprim.SHA256(claim.Preimage[:]) != cryptoprim.Hash(claim.PaymentHash) {
		t.Fatalf("revealed preimage does not redeem payment hash")
	}
	if err := f.cmdr.ReceiveClaim(claim); err != nil {
		t.Fatalf("receive claim: %v", err)
	}

	if state.Phase != statemachine.Claimed {
		t.Fatalf("executor phase = %v, want Claimed", state.Phase)
	}
	if got := f.cmdr.TaskState("task-flow").Phase; got != statemachine.CClaimed {
		t.Fatalf("commander phase = %v, want CClaimed", got)
	}
}

func TestReplayedTokenRejectedWithoutState(t *testing.T) {
	f := newFixture(t, 50)
	tok := f.issueToken(t, []string{"cmd:imaging:msi"}, 1, 100)

	req := f.buildRequest(t, "task-replay", tok)
	if _, err := f.exec.Admit(req); err != nil {
		t.Fatalf("first admit: %v", err)
	}

	// The identical request resubmitted.
	if _, err := f.exec.Admit(req); !errors.Is(err, scraperr.ErrReplay) {
		t.Fatalf("second admit err = %v, want ErrReplay", err)
	}

	// A fresh request reusing the same token id must also bounce, and
	// must leave no settlement entry behind.
	req2 := f.buildRequest(t, "task-replay-2", tok)
	if _, err := f.exec.Admit(req2); !errors.Is(err, scraperr.ErrReplay) {
		t.Fatalf("reused-token admit err = %v, want ErrReplay", err)
	}
	if f.exec.TaskState("task-replay-2") != nil {
		t.Fatalf("replayed request must not create settlement state")
	}
}

func TestDelegatedCapabilityNotAuthorized(t *testing.T) {
	f := newFixture(t, 50)
	delegate := fixedKey(0x04)

	root := f.issueToken(t, []string{"cmd:imaging:*"}, 1, 100)
	leaf, err := token.Delegate(root, f.commander, token.DelegateRequest{
		Subject:      delegate.PubKey().SerializeCompressed(),
		Audience:     f.executor.PubKey().SerializeCompressed(),
		Capabilities: []string{"cmd:imaging:msi"},
		ExpiresAt:    100,
	})
	if err != nil {
		t.Fatalf("delegate: %v", err)
	}

	// The delegated bearer signs, asking for a capability the narrowed
	// leaf no longer grants.
	operatorPub := f.operator.PubKey().SerializeCompressed()
	bearer := NewCommander(delegate, operatorPub, f.executor.PubKey().SerializeCompressed(), f.clk)
	req, err := bearer.BuildRequest(RequestParams{
		TaskID:          "task-attenuated",
		CapabilityToken: leaf.EncodeTLV(),
		DelegationChain: [][]byte{root.EncodeTLV()},
		TaskType:        "cmd:imaging:sar",
		TargetJSON:      "{}",
		ParametersJSON:  "{}",
		ConstraintsJSON: "{}",
		PaymentMaxSats:  20000,
		TimeoutBlocks:   144,
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	if _, err := f.exec.Admit(req); !errors.Is(err, scraperr.ErrInvalidCapability) {
		t.Fatalf("admit err = %v, want ErrInvalidCapability", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	f := newFixture(t, 1000+7200)
	tok := f.issueToken(t, []string{"cmd:imaging:msi"}, 1000, 1000+3600)
	req := f.buildRequest(t, "task-expired", tok)

	if _, err := f.exec.Admit(req); !errors.Is(err, scraperr.ErrTokenExpired) {
		t.Fatalf("admit err = %v, want ErrTokenExpired", err)
	}
	if f.exec.TaskState("task-expired") != nil {
		t.Fatalf("expired request must not create settlement state")
	}
}

func TestAcceptExceedingOfferRefused(t *testing.T) {
	f := newFixture(t, 50)
	tok := f.issueToken(t, []string{"cmd:imaging:msi"}, 1, 100)

	req, err := f.cmdr.BuildRequest(RequestParams{
		TaskID:          "task-overpriced",
		CapabilityToken: tok.EncodeTLV(),
		TaskType:        "cmd:imaging:msi",
		TargetJSON:      "{}",
		ParametersJSON:  "{}",
		ConstraintsJSON: "{}",
		PaymentMaxSats:  10000,
		TimeoutBlocks:   144,
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if _, err := f.cmdr.EmitLock("task-overpriced", 10000, 144); err != nil {
		t.Fatalf("emit lock: %v", err)
	}

	// Executor demands double the commander's offer.
	accept := &messages.TaskAccept{
		TaskID:      "task-overpriced",
		Timestamp:   51,
		InReplyTo:   req.RequestHash(),
		AmountSats:  20000,
		Description: "too expensive",
	}
	sig, err := cryptoprim.SignSchnorr(f.executor, accept.ExecutorSigningHash())
	if err != nil {
		t.Fatalf("sign accept: %v", err)
	}
	accept.ExecutorSignature = sig

	if err := f.cmdr.ReceiveAccept(accept); !errors.Is(err, scraperr.ErrAmountExceedsOffer) {
		t.Fatalf("receive accept err = %v, want ErrAmountExceedsOffer", err)
	}
	if got := f.cmdr.TaskState("task-overpriced").Phase; got != statemachine.CLocked {
		t.Fatalf("commander phase = %v, want CLocked after refusing accept", got)
	}
}

func TestClaimWithWrongPreimageRefused(t *testing.T) {
	f := newFixture(t, 50)
	tok := f.issueToken(t, []string{"cmd:imaging:msi"}, 1, 100)
	req := f.buildRequest(t, "task-badclaim", tok)

	if _, err := f.exec.Admit(req); err != nil {
		t.Fatalf("admit: %v", err)
	}
	lock, err := f.cmdr.EmitLock("task-badclaim", 15000, 144)
	if err != nil {
		t.Fatalf("emit lock: %v", err)
	}
	if _, err := f.exec.HandleLock(lock); err != nil {
		t.Fatalf("handle lock: %v", err)
	}
	accept, err := f.exec.EmitAccept("task-badclaim", AcceptParams{})
	if err != nil {
		t.Fatalf("emit accept: %v", err)
	}
	if err := f.cmdr.ReceiveAccept(accept); err != nil {
		t.Fatalf("receive accept: %v", err)
	}
	proof, err := f.exec.EmitProof("task-badclaim", cryptoprim.SHA256([]byte("output")))
	if err != nil {
		t.Fatalf("emit proof: %v", err)
	}
	if err := f.cmdr.ReceiveProof(proof); err != nil {
		t.Fatalf("receive proof: %v", err)
	}

	claim, err := f.exec.EmitClaim("task-badclaim")
	if err != nil {
		t.Fatalf("emit claim: %v", err)
	}
	claim.Preimage = cryptoprim.SHA256([]byte("not-the-preimage"))

	if err := f.cmdr.ReceiveClaim(claim); !errors.Is(err, scraperr.ErrPaymentHashMismatch) {
		t.Fatalf("receive claim err = %v, want ErrPaymentHashMismatch", err)
	}
	if got := f.cmdr.TaskState("task-badclaim").Phase; got != statemachine.ProofReceived {
		t.Fatalf("commander phase = %v, want ProofReceived after refusing claim", got)
	}
}

func TestDuplicateLockIgnored(t *testing.T) {
	f := newFixture(t, 50)
	tok := f.issueToken(t, []string{"cmd:imaging:msi"}, 1, 100)
	req := f.buildRequest(t, "task-duplock", tok)

	state, err := f.exec.Admit(req)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	lock, err := f.cmdr.EmitLock("task-duplock", 15000, 144)
	if err != nil {
		t.Fatalf("emit lock: %v", err)
	}
	if _, err := f.exec.HandleLock(lock); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if reject, err := f.exec.HandleLock(lock); err != nil || reject != nil {
		t.Fatalf("duplicate lock must be ignored: reject=%v err=%v", reject, err)
	}
	if state.Phase != statemachine.Locked {
		t.Fatalf("phase = %v, want Locked after duplicate lock", state.Phase)
	}
}

func TestTimeoutSweepEmitsReject(t *testing.T) {
	f := newFixture(t, 50)
	tok := f.issueToken(t, []string{"cmd:imaging:msi"}, 1, 100000)
	req := f.buildRequest(t, "task-stale", tok)

	state, err := f.exec.Admit(req)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	f.exec.clk = clock.Fixed{T: 50 + 145}
	rejects := f.exec.ExpireStale()
	if len(rejects) != 1 || rejects[0].Reason != "timeout" {
		t.Fatalf("rejects = %+v, want one timeout reject", rejects)
	}
	if state.Phase != statemachine.Rejected {
		t.Fatalf("phase = %v, want Rejected after sweep", state.Phase)
	}
	if got := f.exec.ExpireStale(); len(got) != 0 {
		t.Fatalf("second sweep must be idempotent, got %d rejects", len(got))
	}
}
