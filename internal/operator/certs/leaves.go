package certs

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
)

const (
	certSuffix = ".crt"
	keySuffix  = ".key"
)

// Leaf is one issued certificate and its private key.
type Leaf struct {
	Cert    *x509.Certificate
	CertPEM []byte
	KeyPEM  []byte
}

// LeafSet maps identity names to their leaves.
type LeafSet map[string]Leaf

// LeafChanges lists the identities touched by ReconcileLeaves. Added
// identities had no leaf before; Renewed ones had a leaf that was no longer valid.
type LeafChanges struct {
	Added   []string
	Renewed []string
	Removed []string
}

// Changed reports whether any leaf was issued or removed.
func (c LeafChanges) Changed() bool {
	return len(c.Added) > 0 || len(c.Renewed) > 0 || len(c.Removed) > 0
}

// LeafSetFromSecret decodes <name>.crt / <name>.key pairs. Entries that do not
// parse are skipped and will be reissued.
func LeafSetFromSecret(s *corev1.Secret) LeafSet {
	set := LeafSet{}
	if s == nil {
		return set
	}
	for k, data := range s.Data {
		if k == KeyCACert || !strings.HasSuffix(k, certSuffix) {
			continue
		}
		name := strings.TrimSuffix(k, certSuffix)
		keyPEM, ok := s.Data[name+keySuffix]
		if !ok {
			continue
		}
		cert, err := ParseCertificate(data)
		if err != nil {
			continue
		}
		set[name] = Leaf{Cert: cert, CertPEM: data, KeyPEM: keyPEM}
	}
	return set
}

// SecretData renders the set as secret data with trust as ca.crt.
func (s LeafSet) SecretData(trust []byte) map[string][]byte {
	data := make(map[string][]byte, 2*len(s)+1)
	for name, leaf := range s {
		data[name+certSuffix] = leaf.CertPEM
		data[name+keySuffix] = leaf.KeyPEM
	}
	data[KeyCACert] = trust
	return data
}

// Hash fingerprints the certificates in the set. It changes whenever a leaf is
// issued or removed.
func (s LeafSet) Hash() string {
	h := sha256.New()
	for _, name := range slices.Sorted(maps.Keys(s)) {
		h.Write([]byte(name))
		h.Write(s[name].CertPEM)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// ReconcileLeaves returns the leaves for identities, keeping every existing
// leaf that is still valid under ca and issuing the rest. Leaves for names
// not in identities are dropped.
func (m *Manager) ReconcileLeaves(ca *Authority, policy Policy, existing LeafSet, identities []Identity) (LeafSet, LeafChanges, error) {
	if !ca.Complete() {
		return nil, LeafChanges{}, fmt.Errorf("cannot issue certificates without a complete CA")
	}
	now := m.clock.Now()

	next := make(LeafSet, len(identities))
	var changes LeafChanges
	for _, id := range identities {
		old, had := existing[id.Name]
		if had && leafValid(ca, old, id, policy, now) {
			next[id.Name] = old
			continue
		}
		leaf, err := issue(ca, id, now, policy.Validity)
		if err != nil {
			return nil, LeafChanges{}, err
		}
		next[id.Name] = leaf
		if had {
			changes.Renewed = append(changes.Renewed, id.Name)
		} else {
			changes.Added = append(changes.Added, id.Name)
		}
	}
	for name := range existing {
		if _, ok := next[name]; !ok {
			changes.Removed = append(changes.Removed, name)
		}
	}
	slices.Sort(changes.Added)
	slices.Sort(changes.Renewed)
	slices.Sort(changes.Removed)
	return next, changes, nil
}

// leafValid reports whether leaf still serves id: it must match its key and
// identity, be outside the renewal threshold, and be signed by the current CA
// or by the previous one while the overlap window is open.
func leafValid(ca *Authority, leaf Leaf, id Identity, policy Policy, now time.Time) bool {
	if leaf.Cert == nil {
		return false
	}
	key, err := ParsePrivateKey(leaf.KeyPEM)
	if err != nil || !matches(leaf.Cert, key) {
		return false
	}
	if leaf.Cert.Subject.CommonName != id.CommonName {
		return false
	}
	if !slices.Equal(sortedCopy(leaf.Cert.DNSNames), sortedCopy(id.DNSNames)) {
		return false
	}
	// Leaves are capped at the CA expiry; those are renewed with the CA.
	if now.Add(policy.RenewBefore).After(leaf.Cert.NotAfter) && leaf.Cert.NotAfter.Before(ca.Cert.NotAfter) {
		return false
	}
	if signedBy(leaf.Cert, ca.Cert) {
		return true
	}
	return ca.Overlapping(now) && signedBy(leaf.Cert, ca.PreviousCert)
}

func sortedCopy(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}
