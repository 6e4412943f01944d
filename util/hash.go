package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a deterministic hex digest of data. It keys caches and
// stored graphs by the exact repository snapshot they were derived from.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SymbolID builds the node id of a declared symbol inside its declaring file.
func SymbolID(filePath, symbolName string) string {
	return filePath + "::" + symbolName
}
