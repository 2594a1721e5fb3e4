package labels

import "testing"

func TestNewLabelBuilder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		clusterName string
	}{
		{"simple cluster name", "my-cluster"},
		{"single word", "production"},
		{"with numbers", "cluster-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			labels := NewLabelBuilder(tt.clusterName).Build()

			if labels[KeyCluster] != tt.clusterName {
				t.Errorf("expected %s=%q, got %q", KeyCluster, tt.clusterName, labels[KeyCluster])
			}
			if labels[KeyInstance] != tt.clusterName {
				t.Errorf("expected %s=%q, got %q", KeyInstance, tt.clusterName, labels[KeyInstance])
			}
			if labels[KeyManagedBy] != ManagedByOperator {
				t.Errorf("expected %s=%q, got %q", KeyManagedBy, ManagedByOperator, labels[KeyManagedBy])
			}
		})
	}
}

func TestWithRoleAndPod(t *testing.T) {
	t.Parallel()
	labels := NewLabelBuilder("c").WithRole(RoleKafka).WithPodName("c-kafka-0").Build()

	if labels[KeyRole] != RoleKafka || labels[KeyName] != RoleKafka {
		t.Errorf("expected role labels to be %q, got %v", RoleKafka, labels)
	}
	if labels[KeyPodName] != "c-kafka-0" {
		t.Errorf("expected pod name label, got %q", labels[KeyPodName])
	}
}

func TestMergeKeepsReservedKeys(t *testing.T) {
	t.Parallel()
	labels := NewLabelBuilder("c").
		WithRole(RoleZookeeper).
		Merge(map[string]string{KeyCluster: "other", "team": "data"}).
		Build()

	if labels[KeyCluster] != "c" {
		t.Errorf("merge must not override %s, got %q", KeyCluster, labels[KeyCluster])
	}
	if labels["team"] != "data" {
		t.Errorf("expected extra label to be merged, got %v", labels)
	}
}

func TestBuildReturnsCopy(t *testing.T) {
	t.Parallel()
	lb := NewLabelBuilder("c")
	first := lb.Build()
	first["mutated"] = "yes"

	if _, ok := lb.Build()["mutated"]; ok {
		t.Error("Build must return a copy")
	}
}

func TestSelectors(t *testing.T) {
	t.Parallel()
	sel := Selector("c", RoleKafka)
	if len(sel) != 2 || sel[KeyCluster] != "c" || sel[KeyRole] != RoleKafka {
		t.Errorf("unexpected selector %v", sel)
	}
	if got := SelectorForCluster("c"); got != "kafka.imamik.io/cluster=c" {
		t.Errorf("unexpected selector string %q", got)
	}
}

func TestIsOperatorKey(t *testing.T) {
	t.Parallel()
	if !IsOperatorKey(KeyCluster) {
		t.Errorf("%s should be an operator key", KeyCluster)
	}
	if IsOperatorKey(KeyManagedBy) {
		t.Errorf("%s should not be an operator key", KeyManagedBy)
	}
}
