package resource

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	apiresource "k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	kafkav1alpha1 "github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/util/retry"
)

func setupTestScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, clientgoscheme.AddToScheme(scheme))
	require.NoError(t, kafkav1alpha1.AddToScheme(scheme))
	return scheme
}

// writeRecorder counts write calls that reach the fake client.
type writeRecorder struct {
	mu     sync.Mutex
	writes []string
}

func (w *writeRecorder) record(verb string, obj client.Object) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, verb+" "+obj.GetName())
}

func (w *writeRecorder) calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.writes...)
}

func (w *writeRecorder) funcs() interceptor.Funcs {
	return interceptor.Funcs{
		Create: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
			w.record("create", obj)
			return c.Create(ctx, obj, opts...)
		},
		Patch: func(ctx context.Context, c client.WithWatch, obj client.Object, patch client.Patch, opts ...client.PatchOption) error {
			w.record("patch", obj)
			return c.Patch(ctx, obj, patch, opts...)
		},
		Delete: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.DeleteOption) error {
			w.record("delete", obj)
			return c.Delete(ctx, obj, opts...)
		},
	}
}

func configMap(name string, data map[string]string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "kafka"},
		Data:       data,
	}
}

func TestReconcile_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &writeRecorder{}
	c := fake.NewClientBuilder().WithScheme(setupTestScheme(t)).WithInterceptorFuncs(rec.funcs()).Build()
	op := New[corev1.ConfigMap](c, "ConfigMap", MergeConfigMap)

	res, err := op.Reconcile(ctx, "kafka", "cfg", configMap("cfg", map[string]string{"a": "1"}))
	require.NoError(t, err)
	assert.Equal(t, Created, res.Type)
	require.NotNil(t, res.Object)
	assert.Equal(t, "1", res.Object.Data["a"])

	res, err = op.Reconcile(ctx, "kafka", "cfg", configMap("cfg", map[string]string{"a": "1"}))
	require.NoError(t, err)
	assert.Equal(t, NoChange, res.Type)

	res, err = op.Reconcile(ctx, "kafka", "cfg", configMap("cfg", map[string]string{"a": "2"}))
	require.NoError(t, err)
	assert.Equal(t, Patched, res.Type)
	assert.Equal(t, "2", res.Object.Data["a"])

	stored := &corev1.ConfigMap{}
	require.NoError(t, c.Get(ctx, client.ObjectKey{Namespace: "kafka", Name: "cfg"}, stored))
	assert.Equal(t, "2", stored.Data["a"])

	res, err = op.Reconcile(ctx, "kafka", "cfg", nil)
	require.NoError(t, err)
	assert.Equal(t, Deleted, res.Type)
	assert.Nil(t, res.Object)

	res, err = op.Reconcile(ctx, "kafka", "cfg", nil)
	require.NoError(t, err)
	assert.Equal(t, NoChange, res.Type)

	assert.Equal(t, []string{"create cfg", "patch cfg", "delete cfg"}, rec.calls())
}

func TestReconcile_PruneDisabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	claim := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: "data-c-kafka-2", Namespace: "kafka"},
	}
	c := fake.NewClientBuilder().WithScheme(setupTestScheme(t)).WithObjects(claim).Build()

	keep := New[corev1.PersistentVolumeClaim](c, "PersistentVolumeClaim", MergePersistentVolumeClaim, WithPruneDisabled())
	res, err := keep.Reconcile(ctx, "kafka", "data-c-kafka-2", nil)
	require.NoError(t, err)
	assert.Equal(t, NoChange, res.Type)
	assert.NotNil(t, res.Object)

	prune := New[corev1.PersistentVolumeClaim](c, "PersistentVolumeClaim", MergePersistentVolumeClaim)
	res, err = prune.Reconcile(ctx, "kafka", "data-c-kafka-2", nil)
	require.NoError(t, err)
	assert.Equal(t, Deleted, res.Type)
}

func TestReconcile_MetadataMerge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	live := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "ca",
			Namespace: "kafka",
			Annotations: map[string]string{
				"kafka.imamik.io/force-replace": "true",
				"example.com/keep":              "yes",
			},
		},
		Data: map[string][]byte{"ca.key": []byte("k")},
	}
	c := fake.NewClientBuilder().WithScheme(setupTestScheme(t)).WithObjects(live).Build()
	op := New[corev1.Secret](c, "Secret", MergeSecret)

	desired := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Labels:      map[string]string{"kafka.imamik.io/cluster": "c"},
			Annotations: map[string]string{"kafka.imamik.io/ca-generation": "1"},
		},
		Data: map[string][]byte{"ca.key": []byte("k")},
	}
	res, err := op.Reconcile(ctx, "kafka", "ca", desired)
	require.NoError(t, err)
	assert.Equal(t, Patched, res.Type)

	stored := &corev1.Secret{}
	require.NoError(t, c.Get(ctx, client.ObjectKey{Namespace: "kafka", Name: "ca"}, stored))
	assert.Equal(t, "yes", stored.Annotations["example.com/keep"])
	assert.Equal(t, "1", stored.Annotations["kafka.imamik.io/ca-generation"])
	assert.NotContains(t, stored.Annotations, "kafka.imamik.io/force-replace")
	assert.Equal(t, "c", stored.Labels["kafka.imamik.io/cluster"])
}

func TestReconcile_ConflictIsTransientAndNotRetried(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var patches int
	c := fake.NewClientBuilder().
		WithScheme(setupTestScheme(t)).
		WithObjects(configMap("cfg", map[string]string{"a": "1"})).
		WithInterceptorFuncs(interceptor.Funcs{
			Patch: func(_ context.Context, _ client.WithWatch, obj client.Object, _ client.Patch, _ ...client.PatchOption) error {
				patches++
				return apierrors.NewConflict(schema.GroupResource{Resource: "configmaps"}, obj.GetName(), errors.New("stale"))
			},
		}).
		Build()
	op := New[corev1.ConfigMap](c, "ConfigMap", MergeConfigMap)

	_, err := op.Reconcile(ctx, "kafka", "cfg", configMap("cfg", map[string]string{"a": "2"}))
	require.Error(t, err)
	assert.True(t, retry.IsTransient(err))
	assert.Equal(t, 1, patches)
}

func TestReconcile_InvalidIsConfiguration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := fake.NewClientBuilder().
		WithScheme(setupTestScheme(t)).
		WithInterceptorFuncs(interceptor.Funcs{
			Create: func(_ context.Context, _ client.WithWatch, obj client.Object, _ ...client.CreateOption) error {
				return apierrors.NewInvalid(schema.GroupKind{Kind: "ConfigMap"}, obj.GetName(), nil)
			},
		}).
		Build()
	op := New[corev1.ConfigMap](c, "ConfigMap", MergeConfigMap)

	_, err := op.Reconcile(ctx, "kafka", "cfg", configMap("cfg", nil))
	require.Error(t, err)
	assert.True(t, retry.IsConfiguration(err))
}

func TestList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	objs := []client.Object{
		&corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: "a", Namespace: "one", Labels: map[string]string{"role": "kafka"}}},
		&corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: "b", Namespace: "one", Labels: map[string]string{"role": "zookeeper"}}},
		&corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: "c", Namespace: "two", Labels: map[string]string{"role": "kafka"}}},
	}
	c := fake.NewClientBuilder().WithScheme(setupTestScheme(t)).WithObjects(objs...).Build()
	op := New[corev1.ConfigMap](c, "ConfigMap", MergeConfigMap)

	all, err := op.List(ctx, "", nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	inOne, err := op.List(ctx, "one", nil)
	require.NoError(t, err)
	assert.Len(t, inOne, 2)

	kafka, err := op.List(ctx, "", labels.SelectorFromSet(labels.Set{"role": "kafka"}))
	require.NoError(t, err)
	require.Len(t, kafka, 2)
	for _, cm := range kafka {
		assert.Equal(t, "kafka", cm.Labels["role"])
	}
}

func TestMergeService_KeepsAllocatedFields(t *testing.T) {
	t.Parallel()
	live := &corev1.Service{Spec: corev1.ServiceSpec{
		Type:       corev1.ServiceTypeNodePort,
		ClusterIP:  "10.0.0.7",
		ClusterIPs: []string{"10.0.0.7"},
		Ports:      []corev1.ServicePort{{Name: "external", Port: 9094, NodePort: 31234}},
	}}
	desired := &corev1.Service{Spec: corev1.ServiceSpec{
		Type:  corev1.ServiceTypeNodePort,
		Ports: []corev1.ServicePort{{Name: "external", Port: 9094}, {Name: "other", Port: 9095}},
	}}

	MergeService(live, desired)

	assert.Equal(t, "10.0.0.7", live.Spec.ClusterIP)
	require.Len(t, live.Spec.Ports, 2)
	assert.Equal(t, int32(31234), live.Spec.Ports[0].NodePort)
	assert.Equal(t, int32(0), live.Spec.Ports[1].NodePort)
	assert.Empty(t, desired.Spec.ClusterIP, "desired must not be mutated")
}

func TestMergePersistentVolumeClaim_OnlyGrows(t *testing.T) {
	t.Parallel()
	claim := func(size string) *corev1.PersistentVolumeClaim {
		return &corev1.PersistentVolumeClaim{Spec: corev1.PersistentVolumeClaimSpec{
			Resources: corev1.VolumeResourceRequirements{Requests: corev1.ResourceList{
				corev1.ResourceStorage: apiresource.MustParse(size),
			}},
		}}
	}

	live := claim("10Gi")
	MergePersistentVolumeClaim(live, claim("5Gi"))
	assert.Equal(t, "10Gi", live.Spec.Resources.Requests.Storage().String())

	MergePersistentVolumeClaim(live, claim("20Gi"))
	assert.Equal(t, "20Gi", live.Spec.Resources.Requests.Storage().String())
}

func TestMergePersistentVolumeClaim_ClusterOwnersFollowDesired(t *testing.T) {
	t.Parallel()
	clusterOwner := metav1.OwnerReference{APIVersion: kafkav1alpha1.GroupVersion.String(), Kind: "KafkaCluster", Name: "c", UID: "c-uid"}
	foreignOwner := metav1.OwnerReference{APIVersion: "apps/v1", Kind: "StatefulSet", Name: "c-kafka", UID: "sts-uid"}

	tests := []struct {
		name    string
		live    []metav1.OwnerReference
		desired []metav1.OwnerReference
		want    []metav1.OwnerReference
	}{
		{name: "claim released from the cluster", live: []metav1.OwnerReference{clusterOwner}, want: nil},
		{name: "claim handed to the cluster", desired: []metav1.OwnerReference{clusterOwner}, want: []metav1.OwnerReference{clusterOwner}},
		{name: "other owners are kept", live: []metav1.OwnerReference{foreignOwner, clusterOwner}, want: []metav1.OwnerReference{foreignOwner}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			live := &corev1.PersistentVolumeClaim{ObjectMeta: metav1.ObjectMeta{OwnerReferences: tt.live}}
			desired := &corev1.PersistentVolumeClaim{ObjectMeta: metav1.ObjectMeta{OwnerReferences: tt.desired}}
			MergePersistentVolumeClaim(live, desired)
			assert.Equal(t, tt.want, live.OwnerReferences)
		})
	}
}

func TestReconcile_ClaimDropsClusterOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := metav1.OwnerReference{APIVersion: kafkav1alpha1.GroupVersion.String(), Kind: "KafkaCluster", Name: "c", UID: "c-uid"}
	claim := func(refs ...metav1.OwnerReference) *corev1.PersistentVolumeClaim {
		return &corev1.PersistentVolumeClaim{
			ObjectMeta: metav1.ObjectMeta{Name: "data-c-kafka-0", Namespace: "kafka", OwnerReferences: refs},
			Spec: corev1.PersistentVolumeClaimSpec{Resources: corev1.VolumeResourceRequirements{Requests: corev1.ResourceList{
				corev1.ResourceStorage: apiresource.MustParse("10Gi"),
			}}},
		}
	}
	c := fake.NewClientBuilder().WithScheme(setupTestScheme(t)).WithObjects(claim(owner)).Build()
	op := New[corev1.PersistentVolumeClaim](c, "PersistentVolumeClaim", MergePersistentVolumeClaim, WithPruneDisabled())

	res, err := op.Reconcile(ctx, "kafka", "data-c-kafka-0", claim())
	require.NoError(t, err)
	assert.Equal(t, Patched, res.Type)

	live, err := op.Get(ctx, "kafka", "data-c-kafka-0")
	require.NoError(t, err)
	assert.Empty(t, live.OwnerReferences)

	res, err = op.Reconcile(ctx, "kafka", "data-c-kafka-0", claim())
	require.NoError(t, err)
	assert.Equal(t, NoChange, res.Type)
}

func TestResultTypeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Created", Created.String())
	assert.Equal(t, "Patched", Patched.String())
	assert.Equal(t, "Deleted", Deleted.String())
	assert.Equal(t, "NoChange", NoChange.String())
}

func TestSupplierKinds(t *testing.T) {
	t.Parallel()
	s := NewSupplier(fake.NewClientBuilder().WithScheme(setupTestScheme(t)).Build(), clock.RealClock{}, time.Second)

	assert.Equal(t, "KafkaCluster", s.Clusters.Kind())
	assert.Equal(t, "StatefulSet", s.StatefulSets.Kind())
	assert.Equal(t, "PersistentVolumeClaim", s.Claims.Kind())
	assert.True(t, s.Claims.opts.pruneDisabled)
	assert.False(t, s.ClaimPruner.opts.pruneDisabled)
}
