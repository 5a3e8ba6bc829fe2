package cbor

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"scrap-protocol/cryptoprim"
	"scrap-protocol/messages"
	"scrap-protocol/token"
)

func mustKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv
}

func TestTokenEntityRoundTrip(t *testing.T) {
	priv := mustKey(t)
	req := token.IssueRequest{
		Subject:      priv.PubKey().SerializeCompressed(),
		Audience:     priv.PubKey().SerializeCompressed(),
		Capabilities: []string{"cmd:imaging:msi"},
		IssuedAt:     1,
		ExpiresAt:    100,
		Constraints: token.Constraints{
			Amount:    5000,
			HasAmount: true,
		},
	}
	tok, err := token.Issue(priv, priv.PubKey().SerializeCompressed(), req)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	encoded, err := EncodeToken(tok)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeToken(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.TokenID != tok.TokenID {
		t.Fatalf("token id mismatch after round trip")
	}
	if !decoded.Constraints.HasAmount || decoded.Constraints.Amount != 5000 {
		t.Fatalf("constraints lost in round trip")
	}
	if decoded.Signature != tok.Signature {
		t.Fatalf("signature mismatch after round trip")
	}
}

func TestTaskRequestEntityRoundTrip(t *testing.T) {
	req := &messages.TaskRequest{
		TaskID:          "task-1",
		Timestamp:       10,
		CapabilityToken: []byte{0xAA, 0xBB},
		TaskType:        "cmd:imaging:msi",
		TargetJSON:      "{}",
		ParametersJSON:  "{}",
		ConstraintsJSON: "{}",
		PaymentMaxSats:  1000,
		TimeoutBlocks:   50,
	}
	encoded, err := EncodeTaskRequest(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeTaskRequest(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.TaskID != req.TaskID || decoded.PaymentMaxSats != req.PaymentMaxSats {
		t.Fatalf("task request round trip mismatch")
	}
}

func TestSatCapSchnorrSignVerify(t *testing.T) {
	priv := mustKey(t)
	xonly, err := cryptoprim.NormalizePubKey(priv.PubKey().SerializeCompressed())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	header := CapHeader{Alg: AlgSchnorrSecp256k1, Typ: "SAT-CAP"}
	payload := CapPayload{
		Iss: "operator", Sub: "commander", Aud: "executor",
		Iat: 1, Exp: 100, Jti: "jti-1",
		Cap: []string{"cmd:imaging:msi"},
	}
	tok, err := Sign(priv, header, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := Verify(tok, xonly[:]); err != nil {
		t.Fatalf("verify: %v", err)
	}

	encoded, err := Encode(tok)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := Verify(decoded, xonly[:]); err != nil {
		t.Fatalf("verify after round trip: %v", err)
	}
}

func TestSatCapES256KSignVerify(t *testing.T) {
	priv := mustKey(t)
	pub := priv.PubKey().SerializeCompressed()

	header := CapHeader{Alg: AlgES256K, Typ: "SAT-CAP", Enc: "CBOR"}
	payload := CapPayload{
		Iss: "operator", Sub: "commander", Aud: "executor",
		Iat: 1, Exp: 100, Jti: "jti-2",
		Cap: []string{"relay:task"},
		CmdPub: pub,
	}
	tok, err := Sign(priv, header, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := Verify(tok, pub); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSatCapVerifyRejectsTamperedPayload(t *testing.T) {
	priv := mustKey(t)
	pub := priv.PubKey().SerializeCompressed()
	header := CapHeader{Alg: AlgES256K, Typ: "SAT-CAP"}
	payload := CapPayload{Iss: "operator", Sub: "commander", Aud: "executor", Iat: 1, Exp: 100, Jti: "jti-3", Cap: []string{"data:read"}}
	tok, err := Sign(priv, header, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tok.Payload.Cap = []string{"admin:*"}
	if err := Verify(tok, pub); err == nil {
		t.Fatalf("expected verification failure on tampered payload")
	}
}

func TestSatCapOmitsAbsentOptionalFields(t *testing.T) {
	priv := mustKey(t)
	header := CapHeader{Alg: AlgSchnorrSecp256k1, Typ: "SAT-CAP"}
	payload := CapPayload{Iss: "operator", Sub: "commander", Aud: "executor", Iat: 1, Exp: 100, Jti: "jti-4", Cap: []string{"query:status"}}
	tok, err := Sign(priv, header, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	encoded, err := Encode(tok)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, key := range [][]byte{[]byte("enc"), []byte("chn"), []byte("cns"), []byte("prf"), []byte("cmd_pub")} {
		if bytes.Contains(encoded, key) {
			t.Fatalf("expected absent optional field %q to be omitted from encoding", key)
		}
	}
}

func TestBindingHashOrderIsJtiThenPaymentHash(t *testing.T) {
	var paymentHash [32]byte
	paymentHash[0] = 0xAB

	manual := append([]byte("jti-42"), paymentHash[:]...)
	if BindingHash("jti-42", paymentHash) != cryptoprim.SHA256(manual) {
		t.Fatalf("binding hash must be SHA256(jti || payment_hash)")
	}
}

func TestProofDigestCommitsToAllFields(t *testing.T) {
	var paymentHash, outputHash [32]byte
	paymentHash[0], outputHash[0] = 1, 2

	base := ProofDigest("jti-42", paymentHash, outputHash, 1000)
	if ProofDigest("jti-43", paymentHash, outputHash, 1000) == base {
		t.Fatalf("digest must depend on jti")
	}
	if ProofDigest("jti-42", paymentHash, outputHash, 1001) == base {
		t.Fatalf("digest must depend on timestamp")
	}
	if ProofDigest("jti-42", outputHash, paymentHash, 1000) == base {
		t.Fatalf("digest must depend on field order")
	}
}
