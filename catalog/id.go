package catalog

import "hash/fnv"

// pointIDSpace bounds deterministic point ids. The id is the FNV-1a 64-bit
// hash of dedupKey+salt reduced modulo 10^12, so repeated runs against the
// same backend always derive the same id for the same offer, and distinct
// backends (distinct salts) occupy disjoint hash inputs.
const pointIDSpace = 1_000_000_000_000

// PointID derives the deterministic identifier for an indexed entry.
func PointID(dedupKey, salt string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(dedupKey))
	h.Write([]byte(salt))
	return h.Sum64() % pointIDSpace
}
