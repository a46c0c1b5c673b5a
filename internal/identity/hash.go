// Package identity derives stable lookup keys for collection paths and provides
// helpers for the collection-relative, forward-slash path form ("nixPath") those
// keys are computed from.
package identity

import (
	"crypto/md5"
	"encoding/hex"
)

// HashLength is the number of hex characters kept from the digest.
const HashLength = 12

// FileHash returns the identity hash of a normalized nixPath: the first 12 hex
// characters of the MD5 digest of the exact path bytes.
//
// Callers must normalize the path first (see Normalize). Collisions are not
// detected; at the expected number of paths per collection the risk is accepted.
func FileHash(nixPath string) string {
	sum := md5.Sum([]byte(nixPath))
	return hex.EncodeToString(sum[:])[:HashLength]
}
