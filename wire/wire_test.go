package wire

import "testing"

func TestBigSizeRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 252, 253, 65535, 65536, 0x100000000, 0xFFFFFFFFFFFFFFFF}
	for _, v := range values {
		buf := EncodeBigSize(v, nil)
		decoded, used, err := DecodeBigSize(buf)
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if decoded != v {
			t.Fatalf("decode(%d) = %d", v, decoded)
		}
		if used != len(buf) {
			t.Fatalf("decode(%d) consumed %d, want %d", v, used, len(buf))
		}
	}
}

func TestBigSizeRejectsNonCanonical(t *testing.T) {
	cases := [][]byte{
		{0xFD, 0x00, 0x05},       // 5 should be single byte
		{0xFE, 0x00, 0x00, 0x01, 0x00}, // 256 should fit in u16
		{0xFF, 0, 0, 0, 0, 0, 0, 0, 1}, // 1 should fit in single byte
	}
	for i, c := range cases {
		if _, _, err := DecodeBigSize(c); err == nil {
			t.Fatalf("case %d: expected non-canonical rejection", i)
		}
	}
}

func TestBigSizeRejectsTruncated(t *testing.T) {
	if _, _, err := DecodeBigSize([]byte{0xFD, 0x01}); err == nil {
		t.Fatalf("expected truncated u16 rejection")
	}
	if _, _, err := DecodeBigSize(nil); err == nil {
		t.Fatalf("expected empty-input rejection")
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	records := []Record{
		{Type: 0, Value: []byte{1}},
		{Type: 4, Value: []byte("hello")},
		{Type: 240, Value: make([]byte, 64)},
	}
	encoded := EncodeRecords(records)
	decoded, err := DecodeRecords(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("got %d records, want 3", len(decoded))
	}
	if decoded[0].Type != 0 || decoded[1].Type != 4 || string(decoded[1].Value) != "hello" {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}

func TestRecordsRejectNonAscending(t *testing.T) {
	out := EncodeBigSize(4, nil)
	out = EncodeBigSize(1, out) // type 4
	out = append(out, 0xAA)
	out = EncodeBigSize(2, out)
	out = EncodeBigSize(1, out) // type 2, descending
	out = append(out, 0xBB)
	if _, err := DecodeRecords(out); err == nil {
		t.Fatalf("expected rejection of non-ascending types")
	}
}

func TestRecordsAllowRepeatedType(t *testing.T) {
	// Repeatable fields (capability lists, delegation chains) legally
	// emit several records under one type; duplicate rejection for
	// non-repeatable types is the entity decoders' job.
	var out []byte
	out = EncodeBigSize(2, out)
	out = EncodeBigSize(1, out)
	out = append(out, 0x01)
	out = EncodeBigSize(2, out)
	out = EncodeBigSize(1, out)
	out = append(out, 0x02)
	records, err := DecodeRecords(out)
	if err != nil {
		t.Fatalf("repeated type must decode at the wire layer: %v", err)
	}
	if len(records) != 2 || records[0].Value[0] != 0x01 || records[1].Value[0] != 0x02 {
		t.Fatalf("unexpected decode: %+v", records)
	}
}

func TestRecordsRejectTruncatedLength(t *testing.T) {
	var out []byte
	out = EncodeBigSize(2, out)
	out = EncodeBigSize(10, out) // claims 10 bytes but none follow
	if _, err := DecodeRecords(out); err == nil {
		t.Fatalf("expected rejection of truncated value")
	}
}

func TestRejectUnknownEven(t *testing.T) {
	if err := RejectUnknownEven(4); err == nil {
		t.Fatalf("expected even type rejection")
	}
	if err := RejectUnknownEven(5); err != nil {
		t.Fatalf("odd type must be accepted: %v", err)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	body := []byte("task request body")
	encoded, err := EncodeEnvelope(MsgTaskRequest, body)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msgType, decodedBody, err := DecodeEnvelope(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msgType != MsgTaskRequest {
		t.Fatalf("msg type = %x, want %x", msgType, MsgTaskRequest)
	}
	if string(decodedBody) != string(body) {
		t.Fatalf("body mismatch")
	}
}

func TestEnvelopeRejectsLengthMismatch(t *testing.T) {
	encoded, _ := EncodeEnvelope(MsgTaskAccept, []byte("abc"))
	encoded = encoded[:len(encoded)-1]
	if _, _, err := DecodeEnvelope(encoded); err == nil {
		t.Fatalf("expected length mismatch rejection")
	}
}
