package controller

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/imamik/kafka-operator/internal/operator/certs"
	"github.com/imamik/kafka-operator/internal/operator/model"
	"github.com/imamik/kafka-operator/internal/operator/resource"
	"github.com/imamik/kafka-operator/internal/util/labels"
	"github.com/imamik/kafka-operator/internal/util/naming"
	"github.com/imamik/kafka-operator/internal/util/retry"
)

// CA names used for events, metrics and status.
const (
	clusterCAName = "cluster-ca"
	clientsCAName = "clients-ca"
)

// reconcileCAs brings both certificate authorities up to date.
func (s *reconciliationState) reconcileCAs(ctx context.Context) error {
	name := s.cluster.Name

	clusterCA, err := s.reconcileCA(ctx, clusterCAName, naming.ClusterCACert(name), naming.ClusterCAKey(name), s.desired.ClusterCAPolicy)
	if err != nil {
		return err
	}
	s.clusterCA = clusterCA

	clientsCA, err := s.reconcileCA(ctx, clientsCAName, naming.ClientsCACert(name), naming.ClientsCAKey(name), s.desired.ClientsCAPolicy)
	if err != nil {
		return err
	}
	s.clientsCA = clientsCA
	return nil
}

// reconcileCA loads one CA from its secrets, lets the manager renew or
// replace it, and persists the result. The key secret is written first so a
// failure in between leaves a key the next pass can repair the cert from.
func (s *reconciliationState) reconcileCA(ctx context.Context, caName, certName, keyName string, policy certs.Policy) (*certs.Authority, error) {
	secrets := s.r.stores.Secrets
	ns := s.cluster.Namespace

	certSecret, err := secrets.Get(ctx, ns, certName)
	if err != nil {
		return nil, err
	}
	keySecret, err := secrets.Get(ctx, ns, keyName)
	if err != nil {
		return nil, err
	}
	current, err := certs.FromSecrets(certSecret, keySecret)
	if err != nil {
		return nil, retry.Configuration(fmt.Errorf("invalid %s secrets: %w", caName, err))
	}

	next, outcome, err := s.r.certs.Reconcile(s.cluster.Name+"-"+caName, current, policy)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.caOutcomes[caName] = outcome
	s.mu.Unlock()

	if policy.Generate {
		if _, err := reconcileOne(ctx, s, secrets, "Secret", keyName, next.KeySecret(s.desired.Meta(keyName, ""))); err != nil {
			return nil, err
		}
		if _, err := reconcileOne(ctx, s, secrets, "Secret", certName, next.CertSecret(s.desired.Meta(certName, ""), s.r.certs.Now())); err != nil {
			return nil, err
		}
	}

	if outcome != certs.Unchanged {
		s.logger.Info("certificate authority updated", "ca", caName, "outcome", outcome.String(), "generation", next.Generation, "expires", next.ExpiresAt())
		if reason, ok := caEventReasons[outcome]; ok {
			s.r.Recorder.Eventf(s.cluster, corev1.EventTypeNormal, reason,
				"Certificate authority %s %s at generation %d", caName, outcome, next.Generation)
		}
	}
	s.r.recordCAGeneration(s.cluster.Name, caName, next.Generation)
	return next, nil
}

var caEventReasons = map[certs.Outcome]string{
	certs.Created:  EventReasonCertificateAuthorityCreated,
	certs.Renewed:  EventReasonCertificateAuthorityRenewed,
	certs.Replaced: EventReasonCertificateAuthorityReplaced,
	certs.Repaired: EventReasonCertificateAuthorityRepaired,
}

// reconcileLeafCerts issues the node and component certificates and stamps
// the resulting trust state onto the workloads.
func (s *reconciliationState) reconcileLeafCerts(ctx context.Context) error {
	secrets := s.r.stores.Secrets

	for _, set := range s.desired.CertificateSets {
		if set.Disabled {
			if _, err := reconcileOne(ctx, s, secrets, "Secret", set.SecretName, (*corev1.Secret)(nil)); err != nil {
				return err
			}
			continue
		}

		identities, err := s.retainedIdentities(ctx, set)
		if err != nil {
			return err
		}
		next, changes, err := s.writeLeaves(ctx, set, identities)
		if err != nil {
			return err
		}

		if set.Role == "" {
			continue
		}
		hash, err := s.workloadCertsHash(ctx, set, next, changes)
		if err != nil {
			return err
		}
		s.certsHash[set.SecretName] = hash
	}

	s.trusted = s.desired.WithTrust(model.TrustState{
		ClusterCAGeneration: s.clusterCA.Generation,
		ClientsCAGeneration: s.clientsCA.Generation,
		CertsHash:           s.certsHash,
	})
	return nil
}

// pruneLeafCerts drops the leaves of replicas a scale-down removed.
func (s *reconciliationState) pruneLeafCerts(ctx context.Context, comp *model.Component) error {
	for _, set := range s.desired.CertificateSets {
		if set.Role != comp.Role || set.Disabled {
			continue
		}
		if _, _, err := s.writeLeaves(ctx, set, set.Identities); err != nil {
			return err
		}
	}
	return nil
}

// retainedIdentities returns the identities of set plus those of live
// replicas above the target. Pods being scaled away keep their
// certificates until the scale step has removed them.
func (s *reconciliationState) retainedIdentities(ctx context.Context, set model.CertificateSet) ([]certs.Identity, error) {
	var comp *model.Component
	for _, c := range s.desired.Components() {
		if c.Role == set.Role {
			comp = c
		}
	}
	if comp == nil {
		return set.Identities, nil
	}

	sts, err := s.r.stores.StatefulSets.Get(ctx, s.cluster.Namespace, comp.Name())
	if err != nil {
		return nil, err
	}
	if sts == nil || resource.Replicas(sts) <= comp.Replicas {
		return set.Identities, nil
	}
	return comp.Identities(resource.Replicas(sts)), nil
}

// writeLeaves issues the leaves of identities and writes them with the
// current trust bundle into the secret of set.
func (s *reconciliationState) writeLeaves(ctx context.Context, set model.CertificateSet, identities []certs.Identity) (certs.LeafSet, certs.LeafChanges, error) {
	live, err := s.r.stores.Secrets.Get(ctx, s.cluster.Namespace, set.SecretName)
	if err != nil {
		return nil, certs.LeafChanges{}, err
	}
	next, changes, err := s.r.certs.ReconcileLeaves(s.clusterCA, s.desired.ClusterCAPolicy, certs.LeafSetFromSecret(live), identities)
	if err != nil {
		return nil, certs.LeafChanges{}, fmt.Errorf("failed to issue certificates for %s: %w", set.SecretName, err)
	}
	if changes.Changed() {
		s.logger.Info("certificates updated", "secret", set.SecretName,
			"added", changes.Added, "renewed", changes.Renewed, "removed", changes.Removed)
	}

	desired := &corev1.Secret{
		ObjectMeta: s.desired.Meta(set.SecretName, set.Role),
		Type:       corev1.SecretTypeOpaque,
		Data:       next.SecretData(s.clusterCA.TrustBundle(s.r.certs.Now())),
	}
	if _, err := reconcileOne(ctx, s, s.r.stores.Secrets, "Secret", set.SecretName, desired); err != nil {
		return nil, certs.LeafChanges{}, err
	}
	return next, changes, nil
}

// workloadCertsHash returns the fingerprint to stamp on the workload using set.
// Leaves added for new replicas do not touch running pods, so the stamped
// value only moves when an existing leaf was reissued.
func (s *reconciliationState) workloadCertsHash(ctx context.Context, set model.CertificateSet, next certs.LeafSet, changes certs.LeafChanges) (string, error) {
	if len(changes.Renewed) > 0 {
		return next.Hash(), nil
	}
	stamped, err := s.stampedCertsHash(ctx, set.Role)
	if err != nil {
		return "", err
	}
	if stamped == "" {
		return next.Hash(), nil
	}
	return stamped, nil
}

// stampedCertsHash reads the certs hash from the live workload of role.
func (s *reconciliationState) stampedCertsHash(ctx context.Context, role string) (string, error) {
	ns := s.cluster.Namespace
	var tmpl *corev1.PodTemplateSpec

	switch role {
	case labels.RoleKafka, labels.RoleZookeeper:
		name := naming.KafkaStatefulSet(s.cluster.Name)
		if role == labels.RoleZookeeper {
			name = naming.ZookeeperStatefulSet(s.cluster.Name)
		}
		sts, err := s.r.stores.StatefulSets.Get(ctx, ns, name)
		if err != nil || sts == nil {
			return "", err
		}
		tmpl = &sts.Spec.Template
	default:
		name := naming.EntityOperator(s.cluster.Name)
		if role == labels.RoleKafkaExporter {
			name = naming.KafkaExporter(s.cluster.Name)
		}
		dep, err := s.r.stores.Deployments.Get(ctx, ns, name)
		if err != nil || dep == nil {
			return "", err
		}
		tmpl = &dep.Spec.Template
	}
	return tmpl.Annotations[labels.AnnotationCertsHash], nil
}
