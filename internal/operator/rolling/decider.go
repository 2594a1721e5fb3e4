// Package rolling decides whether a change to a StatefulSet needs its pods
// restarted.
package rolling

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/kafka-operator/internal/util/labels"
)

// DecisionType classifies a workload change.
type DecisionType int

const (
	NoOp DecisionType = iota
	HotPatch
	RollingRequired
)

func (d DecisionType) String() string {
	switch d {
	case NoOp:
		return "NoOp"
	case HotPatch:
		return "HotPatch"
	case RollingRequired:
		return "RollingRequired"
	default:
		return fmt.Sprintf("DecisionType(%d)", int(d))
	}
}

// Decision is the result of Classify. Reasons lists the changed paths that
// led to it, sorted.
type Decision struct {
	Type    DecisionType
	Reasons []string
}

const podSpecPath = "Spec.Template.Spec"

// Classify compares a live StatefulSet with its desired definition. It only
// looks at the two definitions, so it returns the same result for the same
// inputs. A missing live StatefulSet means every pod starts from the desired
// template, which is RollingRequired.
func Classify(observed, desired *appsv1.StatefulSet) Decision {
	switch {
	case desired == nil:
		return Decision{Type: NoOp}
	case observed == nil:
		return Decision{Type: RollingRequired, Reasons: []string{"Spec"}}
	}

	r := &diffReporter{}
	cmp.Equal(observed, desired, append(compareOptions(), cmp.Reporter(r))...)
	if len(r.diffs) == 0 {
		return Decision{Type: NoOp}
	}

	var rolling, hot []string
	for _, path := range r.diffs {
		if requiresRestart(path) {
			rolling = append(rolling, path)
		} else {
			hot = append(hot, path)
		}
	}
	if len(rolling) > 0 {
		return Decision{Type: RollingRequired, Reasons: sortedUnique(rolling)}
	}
	return Decision{Type: HotPatch, Reasons: sortedUnique(hot)}
}

func requiresRestart(path string) bool {
	if strings.HasPrefix(path, podSpecPath) {
		return true
	}
	for _, key := range labels.RestartAnnotations {
		if path == fmt.Sprintf("Spec.Template.ObjectMeta.Annotations[%q]", key) {
			return true
		}
	}
	return false
}

// compareOptions ignores what the API server assigns or defaults, what the
// operator never changes on a live StatefulSet, and the order of set-like lists.
func compareOptions() []cmp.Option {
	return []cmp.Option{
		cmpopts.EquateEmpty(),
		cmpopts.IgnoreFields(appsv1.StatefulSet{}, "TypeMeta", "Status"),
		cmpopts.IgnoreFields(metav1.ObjectMeta{},
			"Name", "GenerateName", "Namespace", "UID", "ResourceVersion", "Generation",
			"CreationTimestamp", "DeletionTimestamp", "DeletionGracePeriodSeconds",
			"OwnerReferences", "Finalizers", "ManagedFields", "SelfLink"),
		// Immutable or owned by the scaling coordinator and the claim reconciler.
		cmpopts.IgnoreFields(appsv1.StatefulSetSpec{},
			"Selector", "ServiceName", "PodManagementPolicy", "VolumeClaimTemplates", "Ordinals"),
		cmpopts.IgnoreFields(corev1.PodSpec{},
			"DNSPolicy", "RestartPolicy", "SchedulerName", "DeprecatedServiceAccount"),
		cmpopts.IgnoreFields(corev1.Container{},
			"TerminationMessagePath", "TerminationMessagePolicy", "ImagePullPolicy"),
		cmpopts.IgnoreFields(corev1.ContainerPort{}, "Protocol"),
		cmpopts.IgnoreFields(corev1.SecretVolumeSource{}, "DefaultMode"),
		cmpopts.IgnoreFields(corev1.ConfigMapVolumeSource{}, "DefaultMode"),
		cmpopts.SortSlices(func(a, b corev1.EnvVar) bool { return a.Name < b.Name }),
		cmpopts.SortSlices(func(a, b corev1.Volume) bool { return a.Name < b.Name }),
		cmpopts.SortSlices(func(a, b corev1.VolumeMount) bool { return a.MountPath < b.MountPath }),
		cmpopts.SortSlices(func(a, b corev1.ContainerPort) bool { return a.ContainerPort < b.ContainerPort }),
	}
}

// diffReporter records the path of every unequal leaf.
type diffReporter struct {
	path  cmp.Path
	diffs []string
}

func (r *diffReporter) PushStep(ps cmp.PathStep) {
	r.path = append(r.path, ps)
}

func (r *diffReporter) Report(rs cmp.Result) {
	if !rs.Equal() {
		r.diffs = append(r.diffs, formatPath(r.path))
	}
}

func (r *diffReporter) PopStep() {
	r.path = r.path[:len(r.path)-1]
}

// formatPath renders field names and map keys, e.g.
// Spec.Template.ObjectMeta.Annotations["kafka.imamik.io/config-hash"].
// Slice indexes are dropped since sorted sets have no stable position.
func formatPath(p cmp.Path) string {
	var b strings.Builder
	for _, step := range p {
		switch s := step.(type) {
		case cmp.StructField:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s.Name())
		case cmp.MapIndex:
			fmt.Fprintf(&b, "[%q]", fmt.Sprint(s.Key().Interface()))
		}
	}
	return b.String()
}

func sortedUnique(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
