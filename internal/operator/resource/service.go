package resource

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ServiceOperator adds endpoint readiness on top of the generic operator.
type ServiceOperator struct {
	*Operator[corev1.Service, *corev1.Service]
	client client.Client
	poller poller
}

// NewServiceOperator creates a ServiceOperator.
func NewServiceOperator(c client.Client, clk clock.Clock, pollInterval time.Duration) *ServiceOperator {
	return &ServiceOperator{
		Operator: New[corev1.Service](c, "Service", MergeService),
		client:   c,
		poller:   poller{clock: clk, interval: pollInterval},
	}
}

// EndpointReadiness reports whether any EndpointSlice of the service has a ready endpoint.
func (o *ServiceOperator) EndpointReadiness(ctx context.Context, namespace, name string) (bool, error) {
	var slices discoveryv1.EndpointSliceList
	if err := o.client.List(ctx, &slices,
		client.InNamespace(namespace),
		client.MatchingLabels{discoveryv1.LabelServiceName: name},
	); err != nil {
		return false, fmt.Errorf("failed to list endpoint slices of %s/%s: %w", namespace, name, ClassifyAPIError(err))
	}

	for _, slice := range slices.Items {
		for _, ep := range slice.Endpoints {
			if ep.Conditions.Ready != nil && *ep.Conditions.Ready {
				return true, nil
			}
		}
	}
	return false, nil
}

// WaitForEndpoints blocks until EndpointReadiness holds or timeout elapses.
func (o *ServiceOperator) WaitForEndpoints(ctx context.Context, namespace, name string, timeout time.Duration) error {
	return o.poller.waitFor(ctx, fmt.Sprintf("service %s/%s endpoints", namespace, name), timeout,
		func(ctx context.Context) (bool, error) {
			return o.EndpointReadiness(ctx, namespace, name)
		})
}
