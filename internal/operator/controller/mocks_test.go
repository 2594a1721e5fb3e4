package controller

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/record"
	clocktesting "k8s.io/utils/clock/testing"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/operator/config"
	"github.com/imamik/kafka-operator/internal/operator/resource"
)

// MockPodStore implements PodStore for testing. Pods exist unless GetFunc
// says otherwise, and every restart comes back ready.
type MockPodStore struct {
	GetFunc          func(ctx context.Context, namespace, name string) (*corev1.Pod, error)
	RestartFunc      func(ctx context.Context, namespace, name string) (types.UID, error)
	WaitForReadyFunc func(ctx context.Context, namespace, name string, previous types.UID, timeout time.Duration) error

	mu                sync.Mutex
	RestartCalls      []string
	WaitForReadyCalls []string
}

func (m *MockPodStore) Get(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, namespace, name)
	}
	return &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, UID: types.UID(name)}}, nil
}

func (m *MockPodStore) Restart(ctx context.Context, namespace, name string) (types.UID, error) {
	m.mu.Lock()
	m.RestartCalls = append(m.RestartCalls, name)
	m.mu.Unlock()
	if m.RestartFunc != nil {
		return m.RestartFunc(ctx, namespace, name)
	}
	return types.UID(name), nil
}

func (m *MockPodStore) WaitForReady(ctx context.Context, namespace, name string, previous types.UID, timeout time.Duration) error {
	m.mu.Lock()
	m.WaitForReadyCalls = append(m.WaitForReadyCalls, name)
	m.mu.Unlock()
	if m.WaitForReadyFunc != nil {
		return m.WaitForReadyFunc(ctx, namespace, name, previous, timeout)
	}
	return nil
}

func (m *MockPodStore) restarts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.RestartCalls...)
}

func (m *MockPodStore) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RestartCalls = nil
	m.WaitForReadyCalls = nil
}

// readyWaiter stands in for the StatefulSet controller: waiting marks the
// StatefulSet as running all of its replicas ready.
type readyWaiter struct {
	client client.Client
	calls  atomic.Int32
}

func (w *readyWaiter) WaitForReady(ctx context.Context, namespace, name string, _ time.Duration) error {
	w.calls.Add(1)
	return markReady(ctx, w.client, namespace, name)
}

func (w *readyWaiter) quiesce(ctx context.Context, wl Workload, timeout time.Duration) error {
	return w.WaitForReady(ctx, wl.Namespace, wl.StatefulSet, timeout)
}

func markReady(ctx context.Context, c client.Client, namespace, name string) error {
	sts := &appsv1.StatefulSet{}
	if err := c.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, sts); err != nil {
		return err
	}
	n := resource.Replicas(sts)
	sts.Status.Replicas = n
	sts.Status.ReadyReplicas = n
	sts.Status.ObservedGeneration = sts.Generation
	return c.Status().Update(ctx, sts)
}

func setupTestScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, clientgoscheme.AddToScheme(scheme))
	require.NoError(t, v1alpha1.AddToScheme(scheme))
	return scheme
}

func newTestCluster(name string) *v1alpha1.KafkaCluster {
	return &v1alpha1.KafkaCluster{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "kafka", UID: types.UID(name + "-uid"), Generation: 1},
		Spec: v1alpha1.KafkaClusterSpec{
			Kafka: v1alpha1.KafkaSpec{
				Replicas: 3,
				Storage:  v1alpha1.StorageSpec{Type: v1alpha1.StorageTypePersistentClaim, Size: "10Gi"},
				Listeners: []v1alpha1.ListenerSpec{
					{Name: "plain", Port: 9092, Type: v1alpha1.ListenerTypeInternal},
					{Name: "tls", Port: 9093, Type: v1alpha1.ListenerTypeInternal, TLS: true},
				},
			},
			Zookeeper: v1alpha1.ZookeeperSpec{
				Replicas: 3,
				Storage:  v1alpha1.StorageSpec{Type: v1alpha1.StorageTypeEphemeral},
			},
		},
	}
}

// testEnv is a reconciler over a fake API server with stubbed waits.
type testEnv struct {
	t        *testing.T
	client   client.Client
	recorder *record.FakeRecorder
	clock    *clocktesting.FakeClock
	pods     *MockPodStore
	waiter   *readyWaiter
	r        *ClusterReconciler
}

func newTestEnv(t *testing.T, funcs interceptor.Funcs, objs ...client.Object) *testEnv {
	t.Helper()
	c := fake.NewClientBuilder().
		WithScheme(setupTestScheme(t)).
		WithStatusSubresource(&v1alpha1.KafkaCluster{}).
		WithObjects(objs...).
		WithInterceptorFuncs(funcs).
		Build()

	env := &testEnv{
		t:        t,
		client:   c,
		recorder: record.NewFakeRecorder(1000),
		clock:    clocktesting.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		pods:     &MockPodStore{},
		waiter:   &readyWaiter{client: c},
	}
	env.r = NewClusterReconciler(c, c.Scheme(), env.recorder,
		WithConfig(config.Default()),
		WithClock(env.clock),
		WithMetrics(false),
		WithPods(env.pods),
		WithReadinessWaiter(env.waiter),
		WithQuiescence(env.waiter.quiesce),
	)
	return env
}

// reconcile runs one watch-triggered pass for the cluster.
func (e *testEnv) reconcile(name string) (ReconciliationStatus, error) {
	e.t.Helper()
	return e.r.driver.Reconcile(context.Background(), TriggerWatch, types.NamespacedName{Namespace: "kafka", Name: name})
}

func (e *testEnv) mustReconcile(name string) ReconciliationStatus {
	e.t.Helper()
	status, err := e.reconcile(name)
	require.NoError(e.t, err)
	return status
}

func (e *testEnv) cluster(name string) *v1alpha1.KafkaCluster {
	e.t.Helper()
	cluster := &v1alpha1.KafkaCluster{}
	require.NoError(e.t, e.client.Get(context.Background(), client.ObjectKey{Namespace: "kafka", Name: name}, cluster))
	return cluster
}

// updateCluster applies mutate to the stored cluster spec.
func (e *testEnv) updateCluster(name string, mutate func(*v1alpha1.KafkaCluster)) {
	e.t.Helper()
	cluster := e.cluster(name)
	mutate(cluster)
	cluster.Generation++
	require.NoError(e.t, e.client.Update(context.Background(), cluster))
}

func (e *testEnv) statefulSet(name string) *appsv1.StatefulSet {
	e.t.Helper()
	sts := &appsv1.StatefulSet{}
	require.NoError(e.t, e.client.Get(context.Background(), client.ObjectKey{Namespace: "kafka", Name: name}, sts))
	return sts
}

func (e *testEnv) secret(name string) *corev1.Secret {
	e.t.Helper()
	s := &corev1.Secret{}
	require.NoError(e.t, e.client.Get(context.Background(), client.ObjectKey{Namespace: "kafka", Name: name}, s))
	return s
}

// events drains the recorded events.
func (e *testEnv) events() []string {
	var out []string
	for {
		select {
		case ev := <-e.recorder.Events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// writeLog records writes in order, with the replica count of StatefulSet patches.
type writeLog struct {
	mu     sync.Mutex
	writes []string
}

func (w *writeLog) add(entry string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, entry)
}

func (w *writeLog) entries() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.writes...)
}

func (w *writeLog) funcs() interceptor.Funcs {
	return interceptor.Funcs{
		Patch: func(ctx context.Context, c client.WithWatch, obj client.Object, patch client.Patch, opts ...client.PatchOption) error {
			if sts, ok := obj.(*appsv1.StatefulSet); ok {
				w.add("patch " + sts.Name + " replicas=" + strconv.Itoa(int(resource.Replicas(sts))))
			} else {
				w.add("patch " + obj.GetName())
			}
			return c.Patch(ctx, obj, patch, opts...)
		},
		Delete: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.DeleteOption) error {
			w.add("delete " + obj.GetName())
			return c.Delete(ctx, obj, opts...)
		},
	}
}
