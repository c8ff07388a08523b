// Package dedup derives content fingerprints for submissions. The fingerprint is
// stored with each job but never used to short-circuit a submission.
package dedup

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/target/jobmatch/internal/domain/model"
)

// Fingerprint is hex(sha256(len(artifact) || artifact || criteria.Canonical())), the length
// being 8 bytes big-endian so bytes cannot move between the artifact and the criteria.
func Fingerprint(artifact []byte, c model.Criteria) string {
	h := sha256.New()
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(artifact)))
	h.Write(size[:])
	h.Write(artifact)
	h.Write([]byte(c.Canonical()))
	return hex.EncodeToString(h.Sum(nil))
}
