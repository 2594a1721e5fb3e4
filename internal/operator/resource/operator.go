package resource

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	oplabels "github.com/imamik/kafka-operator/internal/util/labels"
)

// Object constrains PT to be a pointer to T implementing client.Object.
type Object[T any] interface {
	*T
	client.Object
}

// MergeFunc copies the fields the operator owns from desired into live.
// Server-assigned fields must be left untouched.
type MergeFunc[PT client.Object] func(live, desired PT)

// Option configures an Operator.
type Option func(*options)

type options struct {
	pruneDisabled bool
}

// WithPruneDisabled makes an absent desired state a no-op instead of a delete.
// Used for claims, whose deletion would lose data.
func WithPruneDisabled() Option {
	return func(o *options) {
		o.pruneDisabled = true
	}
}

// Operator reconciles one resource kind.
type Operator[T any, PT Object[T]] struct {
	client client.Client
	kind   string
	merge  MergeFunc[PT]
	opts   options
}

// New creates an operator for kind T.
func New[T any, PT Object[T]](c client.Client, kind string, merge MergeFunc[PT], opts ...Option) *Operator[T, PT] {
	o := &Operator[T, PT]{
		client: c,
		kind:   kind,
		merge:  merge,
	}
	for _, opt := range opts {
		opt(&o.opts)
	}
	return o
}

// Kind returns the resource kind this operator manages.
func (o *Operator[T, PT]) Kind() string {
	return o.kind
}

// Get returns the live object, or nil when it does not exist.
func (o *Operator[T, PT]) Get(ctx context.Context, namespace, name string) (PT, error) {
	obj := PT(new(T))
	if err := o.client.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, obj); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s %s/%s: %w", o.kind, namespace, name, ClassifyAPIError(err))
	}
	return obj, nil
}

// List returns all objects in namespace matching selector.
// An empty namespace lists across all namespaces; a nil selector matches everything.
func (o *Operator[T, PT]) List(ctx context.Context, namespace string, selector labels.Selector) ([]PT, error) {
	gvk, err := o.client.GroupVersionKindFor(PT(new(T)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve kind of %s: %w", o.kind, err)
	}
	raw, err := o.client.Scheme().New(gvk.GroupVersion().WithKind(gvk.Kind + "List"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s list: %w", o.kind, err)
	}
	list, ok := raw.(client.ObjectList)
	if !ok {
		return nil, fmt.Errorf("%sList is not a client.ObjectList", gvk.Kind)
	}

	var listOpts []client.ListOption
	if namespace != "" {
		listOpts = append(listOpts, client.InNamespace(namespace))
	}
	if selector != nil {
		listOpts = append(listOpts, client.MatchingLabelsSelector{Selector: selector})
	}
	if err := o.client.List(ctx, list, listOpts...); err != nil {
		return nil, fmt.Errorf("failed to list %s in %q: %w", o.kind, namespace, ClassifyAPIError(err))
	}

	items, err := meta.ExtractList(list)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s list: %w", o.kind, err)
	}
	result := make([]PT, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(PT); ok {
			result = append(result, obj)
		}
	}
	return result, nil
}

// Reconcile makes the stored object match desired, where a nil desired means
// the object should not exist. It performs at most one write.
func (o *Operator[T, PT]) Reconcile(ctx context.Context, namespace, name string, desired PT) (Result[PT], error) {
	logger := log.FromContext(ctx).WithValues("kind", o.kind, "namespace", namespace, "name", name)

	live, err := o.Get(ctx, namespace, name)
	if err != nil {
		return Result[PT]{}, err
	}

	var result Result[PT]
	switch {
	case desired == nil && live == nil:
		result = Result[PT]{Type: NoChange}
	case desired == nil && o.opts.pruneDisabled:
		logger.V(1).Info("prune disabled, keeping resource")
		result = Result[PT]{Type: NoChange, Object: live}
	case desired == nil:
		result, err = o.delete(ctx, live)
	case live == nil:
		result, err = o.create(ctx, namespace, name, desired)
	default:
		result, err = o.patch(ctx, live, desired)
	}
	if err != nil {
		return Result[PT]{}, err
	}

	if result.Changed() {
		logger.Info("reconciled resource", "result", result.Type.String())
	} else {
		logger.V(1).Info("resource unchanged")
	}
	return result, nil
}

func (o *Operator[T, PT]) create(ctx context.Context, namespace, name string, desired PT) (Result[PT], error) {
	obj, ok := desired.DeepCopyObject().(PT)
	if !ok {
		return Result[PT]{}, fmt.Errorf("unexpected copy type for %s", o.kind)
	}
	obj.SetNamespace(namespace)
	obj.SetName(name)
	obj.SetResourceVersion("")

	if err := o.client.Create(ctx, obj); err != nil {
		return Result[PT]{}, fmt.Errorf("failed to create %s %s/%s: %w", o.kind, namespace, name, ClassifyAPIError(err))
	}
	return Result[PT]{Type: Created, Object: obj}, nil
}

func (o *Operator[T, PT]) patch(ctx context.Context, live, desired PT) (Result[PT], error) {
	merged, ok := live.DeepCopyObject().(PT)
	if !ok {
		return Result[PT]{}, fmt.Errorf("unexpected copy type for %s", o.kind)
	}
	mergeMetadata(merged, desired)
	if o.merge != nil {
		o.merge(merged, desired)
	}

	if equality.Semantic.DeepEqual(live, merged) {
		return Result[PT]{Type: NoChange, Object: live}, nil
	}

	patch := client.MergeFromWithOptions(live, client.MergeFromWithOptimisticLock{})
	if err := o.client.Patch(ctx, merged, patch); err != nil {
		return Result[PT]{}, fmt.Errorf("failed to patch %s %s/%s: %w",
			o.kind, live.GetNamespace(), live.GetName(), ClassifyAPIError(err))
	}
	return Result[PT]{Type: Patched, Object: merged}, nil
}

func (o *Operator[T, PT]) delete(ctx context.Context, live PT) (Result[PT], error) {
	err := o.client.Delete(ctx, live, client.PropagationPolicy(metav1.DeletePropagationBackground))
	if err != nil && !apierrors.IsNotFound(err) {
		return Result[PT]{}, fmt.Errorf("failed to delete %s %s/%s: %w",
			o.kind, live.GetNamespace(), live.GetName(), ClassifyAPIError(err))
	}
	return Result[PT]{Type: Deleted}, nil
}

// mergeMetadata replaces operator-owned labels and annotations on live with
// desired's, keeping keys other controllers added. Owner references follow desired.
func mergeMetadata(live, desired client.Object) {
	live.SetLabels(mergeOwnedKeys(live.GetLabels(), desired.GetLabels()))
	live.SetAnnotations(mergeOwnedKeys(live.GetAnnotations(), desired.GetAnnotations()))
	if refs := desired.GetOwnerReferences(); len(refs) > 0 {
		live.SetOwnerReferences(refs)
	}
}

func mergeOwnedKeys(live, desired map[string]string) map[string]string {
	out := make(map[string]string, len(live)+len(desired))
	for k, v := range live {
		if !oplabels.IsOperatorKey(k) {
			out[k] = v
		}
	}
	for k, v := range desired {
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
