package certs

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/x509"
	"fmt"
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/kafka-operator/internal/util/labels"
)

// Secret data keys and annotations of a persisted Authority.
const (
	KeyCACert     = "ca.crt"
	KeyCAPrevious = "ca-previous.crt"
	KeyCAKey      = "ca.key"

	AnnotationGeneration   = labels.Domain + "ca-generation"
	AnnotationOverlapUntil = labels.Domain + "ca-overlap-until"
	AnnotationForceReplace = labels.Domain + "force-replace"
	AnnotationForceRenew   = labels.Domain + "force-renew"
)

// Authority is the key and certificate material of one CA.
// Cert or Key may be nil when only one of the two secrets exists.
type Authority struct {
	Cert    *x509.Certificate
	CertPEM []byte
	Key     *ecdsa.PrivateKey
	KeyPEM  []byte

	// Generation is bumped on every key replacement.
	Generation int64

	// PreviousCert stays trusted until OverlapUntil.
	PreviousCert    *x509.Certificate
	PreviousCertPEM []byte
	OverlapUntil    time.Time

	RenewRequested   bool
	ReplaceRequested bool
}

// Complete reports whether both the certificate and key are present.
func (a *Authority) Complete() bool {
	return a != nil && a.Cert != nil && a.Key != nil
}

// Overlapping reports whether the previous certificate is still trusted at now.
func (a *Authority) Overlapping(now time.Time) bool {
	return a != nil && a.PreviousCert != nil && now.Before(a.OverlapUntil)
}

// ExpiresAt returns the expiry of the current certificate.
func (a *Authority) ExpiresAt() time.Time {
	if a == nil || a.Cert == nil {
		return time.Time{}
	}
	return a.Cert.NotAfter
}

// TrustBundle returns the PEM certificates clients must trust at now.
func (a *Authority) TrustBundle(now time.Time) []byte {
	if a == nil {
		return nil
	}
	var buf bytes.Buffer
	buf.Write(a.CertPEM)
	if a.Overlapping(now) {
		buf.Write(a.PreviousCertPEM)
	}
	return buf.Bytes()
}

// FromSecrets decodes an Authority. It returns nil when neither secret exists.
// Unparseable material is dropped so the Manager can repair or replace it.
func FromSecrets(certSecret, keySecret *corev1.Secret) (*Authority, error) {
	if certSecret == nil && keySecret == nil {
		return nil, nil
	}
	a := &Authority{}

	if keySecret != nil {
		if data := keySecret.Data[KeyCAKey]; len(data) > 0 {
			if key, err := ParsePrivateKey(data); err == nil {
				a.Key, a.KeyPEM = key, data
			}
		}
		gen, err := generation(keySecret)
		if err != nil {
			return nil, err
		}
		a.Generation = gen
		a.ReplaceRequested = keySecret.Annotations[AnnotationForceReplace] == "true"
	}

	if certSecret != nil {
		if data := certSecret.Data[KeyCACert]; len(data) > 0 {
			if cert, err := ParseCertificate(data); err == nil {
				a.Cert, a.CertPEM = cert, data
			}
		}
		if data := certSecret.Data[KeyCAPrevious]; len(data) > 0 {
			if cert, err := ParseCertificate(data); err == nil {
				a.PreviousCert, a.PreviousCertPEM = cert, data
			}
		}
		if v := certSecret.Annotations[AnnotationOverlapUntil]; v != "" {
			until, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s on secret %s: %w", AnnotationOverlapUntil, certSecret.Name, err)
			}
			a.OverlapUntil = until
		}
		a.RenewRequested = certSecret.Annotations[AnnotationForceRenew] == "true"
		if keySecret == nil {
			gen, err := generation(certSecret)
			if err != nil {
				return nil, err
			}
			a.Generation = gen
		}
	}
	return a, nil
}

func generation(s *corev1.Secret) (int64, error) {
	v, ok := s.Annotations[AnnotationGeneration]
	if !ok || v == "" {
		return 0, nil
	}
	gen, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s on secret %s: %w", AnnotationGeneration, s.Name, err)
	}
	return gen, nil
}

// KeySecret renders the private key secret. meta carries name, labels and owners.
func (a *Authority) KeySecret(meta metav1.ObjectMeta) *corev1.Secret {
	s := &corev1.Secret{
		ObjectMeta: *meta.DeepCopy(),
		Type:       corev1.SecretTypeOpaque,
		Data:       map[string][]byte{KeyCAKey: a.KeyPEM},
	}
	setAnnotation(s, AnnotationGeneration, strconv.FormatInt(a.Generation, 10))
	return s
}

// CertSecret renders the public certificate secret, including the previous
// certificate while the overlap window is open at now.
func (a *Authority) CertSecret(meta metav1.ObjectMeta, now time.Time) *corev1.Secret {
	s := &corev1.Secret{
		ObjectMeta: *meta.DeepCopy(),
		Type:       corev1.SecretTypeOpaque,
		Data:       map[string][]byte{KeyCACert: a.CertPEM},
	}
	setAnnotation(s, AnnotationGeneration, strconv.FormatInt(a.Generation, 10))
	if a.Overlapping(now) {
		s.Data[KeyCAPrevious] = a.PreviousCertPEM
		setAnnotation(s, AnnotationOverlapUntil, a.OverlapUntil.UTC().Format(time.RFC3339))
	}
	return s
}

func setAnnotation(s *corev1.Secret, key, value string) {
	if s.Annotations == nil {
		s.Annotations = map[string]string{}
	}
	s.Annotations[key] = value
}
