package certs

import (
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/util/retry"
)

// Outcome describes what Manager.Reconcile did to an Authority.
type Outcome int

const (
	Unchanged Outcome = iota
	Created
	Renewed
	Replaced
	Repaired
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "Unchanged"
	case Created:
		return "Created"
	case Renewed:
		return "Renewed"
	case Replaced:
		return "Replaced"
	case Repaired:
		return "Repaired"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Policy controls the lifecycle of one CA.
type Policy struct {
	// Generate is false when the user supplies the CA secrets.
	Generate      bool
	Validity      time.Duration
	RenewBefore   time.Duration
	ReplaceKey    bool
	OverlapWindow time.Duration
}

const day = 24 * time.Hour

// PolicyFor resolves spec over defaults. Invalid combinations are Configuration errors.
func PolicyFor(spec *v1alpha1.CertificateAuthoritySpec, defaults Policy) (Policy, error) {
	p := defaults
	p.Generate = spec.GenerateCA()
	if spec != nil {
		if spec.ValidityDays != 0 {
			p.Validity = time.Duration(spec.ValidityDays) * day
		}
		if spec.RenewalDays != 0 {
			p.RenewBefore = time.Duration(spec.RenewalDays) * day
		}
		switch spec.CertificateExpirationPolicy {
		case "":
		case v1alpha1.RenewCertificate:
			p.ReplaceKey = false
		case v1alpha1.ReplaceKey:
			p.ReplaceKey = true
		default:
			return Policy{}, retry.Configurationf("unknown certificate expiration policy %q", spec.CertificateExpirationPolicy)
		}
		if spec.OverlapWindow != nil {
			p.OverlapWindow = spec.OverlapWindow.Duration
		}
	}

	switch {
	case p.Validity <= 0:
		return Policy{}, retry.Configurationf("CA validity must be positive, got %s", p.Validity)
	case p.RenewBefore < 0:
		return Policy{}, retry.Configurationf("CA renewal period must not be negative, got %s", p.RenewBefore)
	case p.RenewBefore >= p.Validity:
		return Policy{}, retry.Configurationf("CA renewal period %s must be shorter than validity %s", p.RenewBefore, p.Validity)
	case p.OverlapWindow < 0:
		return Policy{}, retry.Configurationf("CA overlap window must not be negative, got %s", p.OverlapWindow)
	}
	return p, nil
}

// Manager issues, renews and replaces CA material.
type Manager struct {
	clock clock.PassiveClock
}

// NewManager creates a Manager reading time from clk.
func NewManager(clk clock.PassiveClock) *Manager {
	return &Manager{clock: clk}
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.clock.Now()
}

// Reconcile returns the Authority that should be persisted for name.
// current may be nil or partial. The returned Authority never carries the
// renew or replace request flags, so persisting it clears them.
func (m *Manager) Reconcile(name string, current *Authority, policy Policy) (*Authority, Outcome, error) {
	now := m.clock.Now()

	if !policy.Generate {
		if !current.Complete() {
			return nil, Unchanged, retry.Configurationf("CA %s is user managed but its certificate or key is missing", name)
		}
		if !matches(current.Cert, current.Key) {
			return nil, Unchanged, retry.Configurationf("CA %s is user managed but its certificate does not match its key", name)
		}
		return settled(current, now), Unchanged, nil
	}

	switch {
	case current == nil || (current.Cert == nil && current.Key == nil):
		next, err := m.create(name, 0, nil, policy, now)
		return next, Created, err
	case current.Key == nil, current.ReplaceRequested:
		next, err := m.create(name, current.Generation+1, current, policy, now)
		return next, Replaced, err
	case !matches(current.Cert, current.Key):
		next, err := m.repair(name, current, policy, now)
		return next, Repaired, err
	case current.RenewRequested:
		next, err := m.renew(name, current, policy, now)
		return next, Renewed, err
	case now.Add(policy.RenewBefore).After(current.Cert.NotAfter):
		if policy.ReplaceKey {
			next, err := m.create(name, current.Generation+1, current, policy, now)
			return next, Replaced, err
		}
		next, err := m.renew(name, current, policy, now)
		return next, Renewed, err
	default:
		return settled(current, now), Unchanged, nil
	}
}

func subject(name string, gen int64) string {
	return fmt.Sprintf("%s v%d", name, gen)
}

// create generates a new key at gen. The certificate of previous, if any,
// stays trusted for the overlap window.
func (m *Manager) create(name string, gen int64, previous *Authority, policy Policy, now time.Time) (*Authority, error) {
	key, err := newKey()
	if err != nil {
		return nil, fmt.Errorf("failed to create CA %s: %w", name, err)
	}
	keyPEM, err := encodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA %s: %w", name, err)
	}
	cert, certPEM, err := selfSign(key, subject(name, gen), now, policy.Validity)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA %s: %w", name, err)
	}
	next := &Authority{Cert: cert, CertPEM: certPEM, Key: key, KeyPEM: keyPEM, Generation: gen}
	if previous != nil && previous.Cert != nil && policy.OverlapWindow > 0 {
		next.PreviousCert = previous.Cert
		next.PreviousCertPEM = previous.CertPEM
		next.OverlapUntil = now.Add(policy.OverlapWindow)
	}
	return next, nil
}

// renew issues a new certificate for the existing key and generation.
func (m *Manager) renew(name string, current *Authority, policy Policy, now time.Time) (*Authority, error) {
	cert, certPEM, err := selfSign(current.Key, subject(name, current.Generation), now, policy.Validity)
	if err != nil {
		return nil, fmt.Errorf("failed to renew CA %s: %w", name, err)
	}
	next := settled(current, now)
	next.Cert, next.CertPEM = cert, certPEM
	return next, nil
}

// repair reissues the certificate of a stored key. A mismatched certificate
// is what the key replaced, so it is trusted for the overlap window.
func (m *Manager) repair(name string, current *Authority, policy Policy, now time.Time) (*Authority, error) {
	next, err := m.renew(name, current, policy, now)
	if err != nil {
		return nil, err
	}
	if current.Cert != nil && policy.OverlapWindow > 0 {
		next.PreviousCert = current.Cert
		next.PreviousCertPEM = current.CertPEM
		next.OverlapUntil = now.Add(policy.OverlapWindow)
	}
	return next, nil
}

// settled copies a with request flags cleared and an elapsed overlap dropped.
func settled(a *Authority, now time.Time) *Authority {
	next := *a
	next.RenewRequested = false
	next.ReplaceRequested = false
	if !a.Overlapping(now) {
		next.PreviousCert = nil
		next.PreviousCertPEM = nil
		next.OverlapUntil = time.Time{}
	}
	return &next
}
