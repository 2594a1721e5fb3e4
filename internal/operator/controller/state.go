package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/operator/certs"
	"github.com/imamik/kafka-operator/internal/operator/model"
	"github.com/imamik/kafka-operator/internal/operator/resource"
	"github.com/imamik/kafka-operator/internal/operator/rolling"
	"github.com/imamik/kafka-operator/internal/util/labels"
)

// Step names, as reported in status.lastFailedStep.
const (
	stepDesired                = "computeDesired"
	stepCertificateAuthorities = "reconcileCAs"
	stepLeafCertificates       = "reconcileLeafCerts"
	stepResources              = "reconcileResources"
	stepStorage                = "reconcileStorage"
	stepDeployments            = "reconcileDeployments"

	stepWorkload       = "workload"
	stepRollingRestart = "rollingRestart"
	stepScale          = "scale"
	stepQuiescence     = "waitForQuiescence"
)

func roleStep(role, step string) string {
	return role + "/" + step
}

// roleState tracks one StatefulSet role through the workload steps.
type roleState struct {
	live     *appsv1.StatefulSet
	current  int32
	target   int32
	created  bool
	rolled   bool
	scaled   bool
	decision rolling.Decision
	status   v1alpha1.RoleStatus
}

// reconciliationState is one pass over one cluster. It is not reused.
type reconciliationState struct {
	r       *ClusterReconciler
	id      string
	cluster *v1alpha1.KafkaCluster
	logger  logr.Logger

	desired *model.DesiredResourceSet
	// trusted is desired with the trust material stamped onto pod templates.
	trusted *model.DesiredResourceSet

	clusterCA  *certs.Authority
	clientsCA  *certs.Authority
	caOutcomes map[string]certs.Outcome
	certsHash  map[string]string

	roles map[string]*roleState

	mu        sync.Mutex
	results   []ResourceResult
	decisions map[string]rolling.Decision
	quiesced  []string

	completed  []string
	failedStep string
}

func newReconciliationState(r *ClusterReconciler, id string, cluster *v1alpha1.KafkaCluster) *reconciliationState {
	return &reconciliationState{
		r:          r,
		id:         id,
		cluster:    cluster,
		caOutcomes: map[string]certs.Outcome{},
		certsHash:  map[string]string{},
		roles:      map[string]*roleState{},
		decisions:  map[string]rolling.Decision{},
	}
}

// run executes the steps in order and stops at the first failure.
func (s *reconciliationState) run(ctx context.Context) error {
	s.logger = log.FromContext(ctx)

	if err := s.runStep(ctx, stepDesired, s.computeDesired); err != nil {
		return err
	}
	if err := s.runStep(ctx, stepCertificateAuthorities, s.reconcileCAs); err != nil {
		return err
	}
	if err := s.runStep(ctx, stepLeafCertificates, s.reconcileLeafCerts); err != nil {
		return err
	}
	if err := s.runStep(ctx, stepResources, s.reconcileResources); err != nil {
		return err
	}
	if err := s.runStep(ctx, stepStorage, s.reconcileStorage); err != nil {
		return err
	}

	for _, comp := range s.trusted.Components() {
		steps := []struct {
			name string
			fn   func(context.Context, *model.Component) error
		}{
			{stepWorkload, s.reconcileWorkload},
			{stepRollingRestart, s.rollingRestart},
			{stepScale, s.scale},
			{stepQuiescence, s.waitForQuiescence},
		}
		for _, step := range steps {
			err := s.runStep(ctx, roleStep(comp.Role, step.name), func(ctx context.Context) error {
				return step.fn(ctx, comp)
			})
			if err != nil {
				return err
			}
		}
	}

	return s.runStep(ctx, stepDeployments, s.reconcileDeployments)
}

// runStep runs fn as the named step, recording its completion or failure.
func (s *reconciliationState) runStep(ctx context.Context, name string, fn func(context.Context) error) error {
	s.logger.V(1).Info("running step", "step", name)
	if err := fn(log.IntoContext(ctx, s.logger.WithValues("step", name))); err != nil {
		if s.failedStep == "" {
			s.failedStep = name
		}
		return fmt.Errorf("failed to %s: %w", name, err)
	}
	s.completed = append(s.completed, name)
	return nil
}

func (s *reconciliationState) computeDesired(_ context.Context) error {
	desired, err := model.Build(s.cluster, model.OptionsFromConfig(s.r.config))
	if err != nil {
		return err
	}
	s.desired = desired
	s.trusted = desired
	for _, comp := range desired.Components() {
		s.roles[comp.Role] = &roleState{target: comp.Replicas}
	}
	return nil
}

// record notes the outcome of one resource reconciliation. Safe for
// concurrent use by parallel tasks.
func (s *reconciliationState) record(kind, name string, t resource.ResultType) {
	s.mu.Lock()
	s.results = append(s.results, ResourceResult{Kind: kind, Name: name, Type: t})
	s.mu.Unlock()
	s.r.recordResource(kind, t.String())
}

// reconcileOne reconciles a single resource of the pass's namespace and
// records the outcome.
func reconcileOne[PT client.Object](ctx context.Context, s *reconciliationState, store ObjectStore[PT], kind, name string, desired PT) (resource.Result[PT], error) {
	res, err := store.Reconcile(ctx, s.cluster.Namespace, name, desired)
	if err != nil {
		return res, err
	}
	s.record(kind, name, res.Type)
	return res, nil
}

// status summarizes the pass. err is the error returned by run.
func (s *reconciliationState) status(err error) ReconciliationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := ReconciliationStatus{
		ReconciliationID: s.id,
		Cluster:          client.ObjectKeyFromObject(s.cluster),
		Generation:       s.cluster.Generation,
		FailedStep:       s.failedStep,
		Err:              err,
		Completed:        append([]string(nil), s.completed...),
		Results:          append([]ResourceResult(nil), s.results...),
		Decisions:        make(map[string]rolling.Decision, len(s.decisions)),
		Quiesced:         append([]string(nil), s.quiesced...),
		CAOutcomes:       make(map[string]certs.Outcome, len(s.caOutcomes)),
		// Before a role is reached its last published counts stay.
		Kafka:     s.cluster.Status.Kafka,
		Zookeeper: s.cluster.Status.Zookeeper,
	}
	for k, v := range s.decisions {
		st.Decisions[k] = v
	}
	for k, v := range s.caOutcomes {
		st.CAOutcomes[k] = v
	}
	if s.desired != nil {
		st.Listeners = s.desired.Listeners
	}
	if s.clusterCA != nil {
		st.ClusterCAGeneration = s.clusterCA.Generation
	}
	if s.clientsCA != nil {
		st.ClientsCAGeneration = s.clientsCA.Generation
	}
	if rs, ok := s.roles[labels.RoleKafka]; ok && rs.status.Replicas > 0 {
		st.Kafka = rs.status
	}
	if rs, ok := s.roles[labels.RoleZookeeper]; ok && rs.status.Replicas > 0 {
		st.Zookeeper = rs.status
	}
	st.Phase = phaseFor(err, rolesReady(st.Kafka, st.Zookeeper))
	return st
}
