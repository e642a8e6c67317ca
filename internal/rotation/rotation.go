// Package rotation implements KEK rotation (re-wrapping DEKs without
// touching bulk ciphertext) and subtree rotation (targeted revocation),
// per spec §4.8. Grounded in the teacher's internal/domain/keys/rotation.go,
// which rotated a collection key in place the same way — generate new,
// demote old, re-wrap everything downstream.
package rotation

import (
	"github.com/fula-go/cryptostore/internal/common/errors"
	"github.com/fula-go/cryptostore/internal/hpke"
	"github.com/fula-go/cryptostore/internal/keys"
	"github.com/fula-go/cryptostore/internal/pipeline"
	"github.com/fula-go/cryptostore/internal/primitives"
)

// RotationReport summarizes one rotate_bucket run (spec §4.8).
type RotationReport struct {
	Attempted int
	Rewrapped int
	Skipped   int
	Errors    int
}

// EnvelopeStore is the narrow read/write capability rotate_bucket needs
// over envelopes, independent of how they are physically stored.
type EnvelopeStore interface {
	LoadEnvelope(path string) (*pipeline.ObjectEnvelope, error)
	SaveEnvelope(path string, env *pipeline.ObjectEnvelope) error
}

// RewrapObjectDek implements spec §4.8's rewrap_object_dek: unwrap with
// the previous secret, re-wrap with the new public key, bump kek_version.
// Ciphertext is never touched. Returns (rewrapped=false, nil) if the
// envelope already carries current's version, so repeated runs are idempotent.
func RewrapObjectDek(env *pipeline.ObjectEnvelope, previous, current *keys.KekKeyPair) (bool, error) {
	if env.KekVersion == current.CurrentVersion() {
		return false, nil
	}

	dek, err := hpke.DecryptDEK(env.WrappedKey.ToHpkeEncapsulation(), previous.SecretKeyBytes(), previous.PublicKey(), []byte(pipeline.DekWrapAAD))
	if err != nil {
		return false, errors.NewAuthenticationFailed(err)
	}
	defer primitives.Zero(dek)

	newWrap, err := hpke.EncryptDEK(dek, current.PublicKey(), []byte(pipeline.DekWrapAAD))
	if err != nil {
		return false, err
	}

	env.WrappedKey = pipeline.WrappedKeyFromEncapsulation(newWrap)
	env.KekVersion = current.CurrentVersion()
	return true, nil
}

// RotateBucket iterates every path in paths, re-wrapping its envelope, and
// reports the outcome (spec §4.8 rotate_bucket). A cancelled or
// partially-failed run yields a partial report; re-running it is
// idempotent because already-current envelopes are detected and skipped.
func RotateBucket(store EnvelopeStore, paths []string, previous, current *keys.KekKeyPair) RotationReport {
	report := RotationReport{}
	for _, p := range paths {
		report.Attempted++

		env, err := store.LoadEnvelope(p)
		if err != nil {
			report.Errors++
			continue
		}

		rewrapped, err := RewrapObjectDek(env, previous, current)
		if err != nil {
			report.Errors++
			continue
		}
		if !rewrapped {
			report.Skipped++
			continue
		}

		if err := store.SaveEnvelope(p, env); err != nil {
			report.Errors++
			continue
		}
		report.Rewrapped++
	}
	return report
}
