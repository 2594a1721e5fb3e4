package controller

import (
	"context"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	k8slabels "k8s.io/apimachinery/pkg/labels"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/operator/model"
	"github.com/imamik/kafka-operator/internal/operator/resource"
	"github.com/imamik/kafka-operator/internal/util/async"
	"github.com/imamik/kafka-operator/internal/util/labels"
	"github.com/imamik/kafka-operator/internal/util/retry"
)

// reconcileResources observes the live workloads, then reconciles config,
// services, network policies and disruption budgets in parallel.
func (s *reconciliationState) reconcileResources(ctx context.Context) error {
	for _, comp := range s.trusted.Components() {
		live, err := s.r.stores.StatefulSets.Get(ctx, s.cluster.Namespace, comp.Name())
		if err != nil {
			return err
		}
		rs := s.roles[comp.Role]
		rs.live = live
		rs.current = comp.Replicas
		if live != nil {
			rs.current = resource.Replicas(live)
		}
	}

	return async.RunParallel(ctx, []async.Task{
		{Name: "configMaps", Func: s.reconcileConfigMaps},
		{Name: "services", Func: s.reconcileServices},
		{Name: "networkPolicies", Func: s.reconcileNetworkPolicies},
		{Name: "podDisruptionBudgets", Func: s.reconcilePodDisruptionBudgets},
	})
}

func (s *reconciliationState) reconcileConfigMaps(ctx context.Context) error {
	for _, comp := range s.trusted.Components() {
		if _, err := reconcileOne(ctx, s, s.r.stores.ConfigMaps, "ConfigMap", comp.ConfigMap.Name, comp.ConfigMap); err != nil {
			return err
		}
	}
	return nil
}

// reconcileServices reconciles role services and the per-replica services of
// running replicas, then deletes cluster services nothing asks for. Services
// of replicas the scale step adds or removes are left to that step.
func (s *reconciliationState) reconcileServices(ctx context.Context) error {
	services := s.r.stores.Services
	keep := map[string]bool{}

	for _, comp := range s.trusted.Components() {
		rs := s.roles[comp.Role]
		for _, svc := range comp.Services {
			keep[svc.Name] = true
			if _, err := reconcileOne(ctx, s, services, "Service", svc.Name, svc); err != nil {
				return err
			}
		}
		for i := int32(0); i < max(rs.current, rs.target); i++ {
			for _, svc := range comp.ReplicaServices(i) {
				keep[svc.Name] = true
				if i >= rs.current {
					continue
				}
				if _, err := reconcileOne(ctx, s, services, "Service", svc.Name, svc); err != nil {
					return err
				}
			}
		}
	}

	selector := k8slabels.SelectorFromSet(k8slabels.Set{labels.KeyCluster: s.cluster.Name})
	live, err := services.List(ctx, s.cluster.Namespace, selector)
	if err != nil {
		return err
	}
	for _, svc := range live {
		if keep[svc.Name] {
			continue
		}
		if _, err := reconcileOne(ctx, s, services, "Service", svc.Name, (*corev1.Service)(nil)); err != nil {
			return err
		}
	}
	return nil
}

func (s *reconciliationState) reconcileNetworkPolicies(ctx context.Context) error {
	for _, comp := range s.trusted.Components() {
		if _, err := reconcileOne(ctx, s, s.r.stores.NetworkPolicies, "NetworkPolicy", comp.NetworkPolicy.Name, comp.NetworkPolicy); err != nil {
			return err
		}
	}
	return nil
}

func (s *reconciliationState) reconcilePodDisruptionBudgets(ctx context.Context) error {
	for _, comp := range s.trusted.Components() {
		pdb := comp.PodDisruptionBudget
		if _, err := reconcileOne(ctx, s, s.r.stores.PodDisruptionBudgets, "PodDisruptionBudget", pdb.Name, pdb); err != nil {
			return err
		}
	}
	return nil
}

// reconcileStorage makes sure the data claims of every desired replica exist
// before the workload that binds them is touched. Claims of removed replicas
// are never deleted here.
func (s *reconciliationState) reconcileStorage(ctx context.Context) error {
	for _, comp := range s.trusted.Components() {
		if err := checkStorageSwitch(comp, s.roles[comp.Role].live); err != nil {
			return err
		}
		if comp.Storage.Type != v1alpha1.StorageTypePersistentClaim {
			continue
		}
		for i := int32(0); i < comp.Replicas; i++ {
			if _, err := reconcileOne(ctx, s, s.r.stores.Claims, "PersistentVolumeClaim", comp.ClaimName(i), comp.Claim(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkStorageSwitch rejects changing between ephemeral and persistent
// storage on a live StatefulSet, whose claim templates are immutable.
func checkStorageSwitch(comp *model.Component, live *appsv1.StatefulSet) error {
	if live == nil {
		return nil
	}
	persistent := comp.Storage.Type == v1alpha1.StorageTypePersistentClaim
	hasClaims := len(live.Spec.VolumeClaimTemplates) > 0
	switch {
	case persistent && !hasClaims:
		return retry.Configurationf("%s storage cannot change from ephemeral to %s on running statefulset %s", comp.Role, comp.Storage.Type, live.Name)
	case !persistent && hasClaims:
		return retry.Configurationf("%s storage cannot change from persistent-claim to %s on running statefulset %s", comp.Role, comp.Storage.Type, live.Name)
	}
	return nil
}
