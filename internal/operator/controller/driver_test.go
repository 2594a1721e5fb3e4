package controller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/util/retry"
)

// MockClusterStore implements ClusterStore over an in-memory set of clusters.
type MockClusterStore struct {
	GetFunc  func(ctx context.Context, namespace, name string) (*v1alpha1.KafkaCluster, error)
	ListFunc func(ctx context.Context, namespace string, selector labels.Selector) ([]*v1alpha1.KafkaCluster, error)

	mu       sync.Mutex
	clusters map[types.NamespacedName]*v1alpha1.KafkaCluster
	lists    []string
}

func newMockClusterStore(keys ...types.NamespacedName) *MockClusterStore {
	m := &MockClusterStore{clusters: map[types.NamespacedName]*v1alpha1.KafkaCluster{}}
	for _, key := range keys {
		m.clusters[key] = &v1alpha1.KafkaCluster{ObjectMeta: metav1.ObjectMeta{Namespace: key.Namespace, Name: key.Name}}
	}
	return m
}

func (m *MockClusterStore) Get(ctx context.Context, namespace, name string) (*v1alpha1.KafkaCluster, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, namespace, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clusters[types.NamespacedName{Namespace: namespace, Name: name}]
	if !ok {
		return nil, nil
	}
	return c.DeepCopy(), nil
}

func (m *MockClusterStore) List(ctx context.Context, namespace string, selector labels.Selector) ([]*v1alpha1.KafkaCluster, error) {
	m.mu.Lock()
	m.lists = append(m.lists, namespace)
	m.mu.Unlock()
	if m.ListFunc != nil {
		return m.ListFunc(ctx, namespace, selector)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*v1alpha1.KafkaCluster
	for key, c := range m.clusters {
		if namespace == "" || key.Namespace == namespace {
			out = append(out, c.DeepCopy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockClusterStore) listedNamespaces() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lists...)
}

// passRecorder is a PassFunc that counts and optionally blocks passes.
type passRecorder struct {
	calls   atomic.Int32
	started chan string
	release chan struct{}
	// block holds the first pass until release is closed.
	block bool
	fail  map[string]error
}

func newPassRecorder() *passRecorder {
	return &passRecorder{
		started: make(chan string, 100),
		release: make(chan struct{}),
		fail:    map[string]error{},
	}
}

func (p *passRecorder) pass(_ context.Context, id string, cluster *v1alpha1.KafkaCluster) (ReconciliationStatus, error) {
	n := p.calls.Add(1)
	p.started <- cluster.Name
	if p.block && n == 1 {
		<-p.release
	}
	status := ReconciliationStatus{
		ReconciliationID: id,
		Cluster:          types.NamespacedName{Namespace: cluster.Namespace, Name: cluster.Name},
		Phase:            v1alpha1.ClusterPhaseReady,
	}
	if err := p.fail[cluster.Name]; err != nil {
		status.Phase = v1alpha1.ClusterPhaseNotReady
		return status, err
	}
	return status, nil
}

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		key    types.NamespacedName
		store  *MockClusterStore
		passes *passRecorder
		driver *Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		key = types.NamespacedName{Namespace: "kafka", Name: "c"}
		store = newMockClusterStore(key)
		passes = newPassRecorder()
		driver = NewDriver(store, passes.pass, 4)
	})

	Describe("Reconcile", func() {
		It("runs a pass with a fresh reconciliation id", func() {
			first, err := driver.Reconcile(ctx, TriggerWatch, key)
			Expect(err).NotTo(HaveOccurred())
			second, err := driver.Reconcile(ctx, TriggerWatch, key)
			Expect(err).NotTo(HaveOccurred())

			Expect(first.ReconciliationID).To(HavePrefix(TriggerWatch + "-"))
			Expect(second.ReconciliationID).NotTo(Equal(first.ReconciliationID))
			Expect(passes.calls.Load()).To(Equal(int32(2)))
		})

		It("treats a deleted cluster as done", func() {
			status, err := driver.Reconcile(ctx, TriggerWatch, types.NamespacedName{Namespace: "kafka", Name: "gone"})
			Expect(err).NotTo(HaveOccurred())
			Expect(status.Cluster.Name).To(Equal("gone"))
			Expect(passes.calls.Load()).To(BeZero())
		})

		It("reports a failed read of the cluster", func() {
			store.GetFunc = func(context.Context, string, string) (*v1alpha1.KafkaCluster, error) {
				return nil, retry.Transientf("api server unavailable")
			}
			_, err := driver.Reconcile(ctx, TriggerWatch, key)
			Expect(err).To(HaveOccurred())
			Expect(retry.IsTransient(err)).To(BeTrue())
		})

		Context("while a pass for the cluster is running", func() {
			BeforeEach(func() {
				passes.block = true
			})

			It("coalesces every queued request into one follow-up pass", func() {
				firstDone := make(chan ReconciliationStatus, 1)
				go func() {
					defer GinkgoRecover()
					status, err := driver.Reconcile(ctx, TriggerWatch, key)
					Expect(err).NotTo(HaveOccurred())
					firstDone <- status
				}()
				Eventually(passes.started).Should(Receive(Equal("c")))

				waiters := make(chan ReconciliationStatus, 2)
				for range 2 {
					go func() {
						defer GinkgoRecover()
						status, err := driver.Reconcile(ctx, TriggerTimer, key)
						Expect(err).NotTo(HaveOccurred())
						waiters <- status
					}()
				}
				Eventually(func() int { return driver.locks.waiting(key) }).Should(Equal(2))
				Consistently(passes.calls.Load, 50*time.Millisecond).Should(Equal(int32(1)), "passes never overlap")

				close(passes.release)

				first := <-firstDone
				var a, b ReconciliationStatus
				Eventually(waiters).Should(Receive(&a))
				Eventually(waiters).Should(Receive(&b))
				Expect(a.ReconciliationID).To(Equal(b.ReconciliationID))
				Expect(a.ReconciliationID).NotTo(Equal(first.ReconciliationID))
				Expect(passes.calls.Load()).To(Equal(int32(2)))
				Eventually(func() bool { return driver.locks.busy(key) }).Should(BeFalse())
			})

			It("lets a waiter give up without cancelling the follow-up pass", func() {
				go func() {
					defer GinkgoRecover()
					_, _ = driver.Reconcile(ctx, TriggerWatch, key)
				}()
				Eventually(passes.started).Should(Receive())

				waitCtx, cancel := context.WithCancel(ctx)
				errs := make(chan error, 1)
				go func() {
					_, err := driver.Reconcile(waitCtx, TriggerWatch, key)
					errs <- err
				}()
				Eventually(func() int { return driver.locks.waiting(key) }).Should(Equal(1))
				cancel()

				var err error
				Eventually(errs).Should(Receive(&err))
				Expect(retry.IsTransient(err)).To(BeTrue())

				close(passes.release)
				Eventually(passes.calls.Load).Should(Equal(int32(2)))
				Eventually(func() bool { return driver.locks.busy(key) }).Should(BeFalse())
			})

			It("does not block passes for other clusters", func() {
				other := types.NamespacedName{Namespace: "kafka", Name: "other"}
				store.clusters[other] = &v1alpha1.KafkaCluster{ObjectMeta: metav1.ObjectMeta{Namespace: "kafka", Name: "other"}}

				go func() {
					defer GinkgoRecover()
					_, _ = driver.Reconcile(ctx, TriggerWatch, key)
				}()
				Eventually(passes.started).Should(Receive(Equal("c")))

				status, err := driver.Reconcile(ctx, TriggerWatch, other)
				Expect(err).NotTo(HaveOccurred())
				Expect(status.Cluster).To(Equal(other))
				close(passes.release)
			})
		})
	})

	Describe("ReconcileAll", func() {
		BeforeEach(func() {
			for _, name := range []string{"a", "b", "c"} {
				k := types.NamespacedName{Namespace: "kafka", Name: name}
				store.clusters[k] = &v1alpha1.KafkaCluster{ObjectMeta: metav1.ObjectMeta{Namespace: "kafka", Name: name}}
			}
			other := types.NamespacedName{Namespace: "other", Name: "d"}
			store.clusters[other] = &v1alpha1.KafkaCluster{ObjectMeta: metav1.ObjectMeta{Namespace: "other", Name: "d"}}
		})

		It("reconciles every cluster of the namespace", func() {
			outcomes, err := driver.ReconcileAll(ctx, TriggerTimer, "kafka")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcomes).To(HaveLen(3))
			for _, o := range outcomes {
				Expect(o.Err).NotTo(HaveOccurred())
				Expect(o.Status.Cluster).To(Equal(o.Cluster))
				Expect(o.Status.ReconciliationID).To(HavePrefix(TriggerTimer + "-"))
			}
			Expect(store.listedNamespaces()).To(Equal([]string{"kafka"}))
		})

		It("lists every namespace for the wildcard scope", func() {
			outcomes, err := driver.ReconcileAll(ctx, TriggerTimer, "*")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcomes).To(HaveLen(4))
			Expect(store.listedNamespaces()).To(Equal([]string{""}))
		})

		It("keeps going when one cluster fails", func() {
			passes.fail["b"] = errors.New("quota exceeded")

			outcomes, err := driver.ReconcileAll(ctx, TriggerTimer, "kafka")
			Expect(err).To(MatchError(ContainSubstring("quota exceeded")))
			Expect(outcomes).To(HaveLen(3))
			Expect(passes.calls.Load()).To(Equal(int32(3)))

			failed := 0
			for _, o := range outcomes {
				if o.Err != nil {
					failed++
					Expect(o.Cluster.Name).To(Equal("b"))
					Expect(o.Status.Phase).To(Equal(v1alpha1.ClusterPhaseNotReady))
				}
			}
			Expect(failed).To(Equal(1))
		})

		It("reports each run to the observer", func() {
			var mu sync.Mutex
			var observed []string
			driver.observe = func(trigger, result string) {
				mu.Lock()
				defer mu.Unlock()
				observed = append(observed, trigger+"/"+result)
			}
			passes.fail["a"] = errors.New("boom")

			_, _ = driver.ReconcileAll(ctx, TriggerTimer, "kafka")
			delete(passes.fail, "a")
			_, _ = driver.ReconcileAll(ctx, TriggerTimer, "kafka")

			mu.Lock()
			defer mu.Unlock()
			Expect(observed).To(Equal([]string{"timer/error", "timer/success"}))
		})

		It("fails when the clusters cannot be listed", func() {
			store.ListFunc = func(context.Context, string, labels.Selector) ([]*v1alpha1.KafkaCluster, error) {
				return nil, errors.New("forbidden")
			}
			_, err := driver.ReconcileAll(ctx, TriggerTimer, "kafka")
			Expect(err).To(MatchError(ContainSubstring("forbidden")))
			Expect(passes.calls.Load()).To(BeZero())
		})
	})
})

var _ = Describe("PeriodicReconciler", func() {
	It("runs a full reconciliation of every scope on each tick", func() {
		store := newMockClusterStore(types.NamespacedName{Namespace: "kafka", Name: "c"})
		passes := newPassRecorder()
		driver := NewDriver(store, passes.pass, 1)
		clk := clocktesting.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
		periodic := NewPeriodicReconciler(driver, []string{"kafka", "other"}, time.Minute, clk)
		Expect(periodic.NeedLeaderElection()).To(BeTrue())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- periodic.Start(ctx)
		}()

		Eventually(clk.HasWaiters).Should(BeTrue())
		Consistently(passes.calls.Load, 50*time.Millisecond).Should(BeZero(), "nothing runs before the first tick")

		clk.Step(time.Minute)
		Eventually(passes.calls.Load).Should(Equal(int32(1)))
		Eventually(store.listedNamespaces).Should(Equal([]string{"kafka", "other"}))

		clk.Step(time.Minute)
		Eventually(passes.calls.Load).Should(Equal(int32(2)))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})
