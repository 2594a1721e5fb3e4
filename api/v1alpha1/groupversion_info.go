// Package v1alpha1 contains API Schema definitions for the kafka.imamik.io v1alpha1 API group
// +kubebuilder:object:generate=true
// +groupName=kafka.imamik.io
package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

var (
	// GroupVersion is group version used to register these objects
	GroupVersion = schema.GroupVersion{Group: "kafka.imamik.io", Version: "v1alpha1"}

	// SchemeBuilder is used to add go types to the GroupVersionKind scheme
	SchemeBuilder = &scheme.Builder{GroupVersion: GroupVersion}

	// AddToScheme adds the types in this group-version to the given scheme
	AddToScheme = SchemeBuilder.AddToScheme

	// Scheme is the runtime scheme containing the registered types
	Scheme = runtime.NewScheme()
)

func init() {
	SchemeBuilder.Register(&KafkaCluster{}, &KafkaClusterList{})

	// Core types are needed for the secrets, services and workloads the operator owns
	_ = clientgoscheme.AddToScheme(Scheme)

	_ = AddToScheme(Scheme)
}
