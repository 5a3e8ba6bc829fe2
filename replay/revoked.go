package replay

import (
	"encoding/hex"
	"encoding/json"
	"os"
)

// LoadRevokedFile reads a revocation list file (a JSON array of hex-encoded
// token-ids, the same format FileGuard writes) and decodes it into a slice
// suitable for MemoryGuard.SetRevoked. A missing file is treated as an
// empty list rather than an error, matching the out-of-band refresh model:
// the admin surface may refresh before any revocation has ever been
// published.
func LoadRevokedFile(path string) ([][16]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var hexIDs []string
	if err := json.Unmarshal(data, &hexIDs); err != nil {
		return nil, err
	}

	ids := make([][16]byte, 0, len(hexIDs))
	for _, h := range hexIDs {
		raw, err := hex.DecodeString(h)
		if err != nil {
			return nil, err
		}
		if len(raw) != 16 {
			continue
		}
		var id [16]byte
		copy(id[:], raw)
		ids = append(ids, id)
	}
	return ids, nil
}
