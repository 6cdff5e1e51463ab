package policy

// BuiltinPolicies returns the policies shipped with the engine. They
// cover the mistakes that most often reach a cluster: unpinned images,
// manifests escaping the graph namespace and unlabeled workloads.
func BuiltinPolicies() []Policy {
	return []Policy{
		pinnedImagePolicy(),
		namespaceScopePolicy(),
		managedByLabelPolicy(),
	}
}

// pinnedImagePolicy denies deployments whose containers use a floating
// image tag.
func pinnedImagePolicy() Policy {
	return Policy{
		Name:        "pinned-image",
		Description: "Container images must be pinned to an explicit, non-latest tag",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"images", "builtin"},
		Rego: `package loom.policies.pinned_image

deny[msg] {
	input.record.data.kind == "Deployment"
	container := input.record.data.spec.template.spec.containers[_]
	endswith(container.image, ":latest")
	msg := sprintf("container %s in %s uses the latest tag", [container.name, input.record.name])
}

deny[msg] {
	input.record.data.kind == "Deployment"
	container := input.record.data.spec.template.spec.containers[_]
	not contains(container.image, ":")
	msg := sprintf("container %s in %s has no image tag", [container.name, input.record.name])
}
`,
	}
}

// namespaceScopePolicy denies namespaced manifests placed outside the
// graph namespace. Cluster-scoped kinds and system namespaces are exempt.
func namespaceScopePolicy() Policy {
	return Policy{
		Name:        "namespace-scope",
		Description: "Namespaced manifests must live in the graph namespace",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"namespaces", "builtin"},
		Rego: `package loom.policies.namespace_scope

cluster_scoped := {"Namespace", "ClusterRole", "ClusterRoleBinding", "CustomResourceDefinition"}

system_namespaces := {"istio-system", "kube-system"}

deny[msg] {
	kind := input.record.data.kind
	not cluster_scoped[kind]
	ns := input.record.data.metadata.namespace
	ns != input.graph
	not system_namespaces[ns]
	msg := sprintf("%s %s is in namespace %s, expected %s", [kind, input.record.name, ns, input.graph])
}
`,
	}
}

// managedByLabelPolicy warns about deployments missing the managed-by
// label; unlabeled workloads are invisible to cleanup tooling.
func managedByLabelPolicy() Policy {
	return Policy{
		Name:        "managed-by-label",
		Description: "Deployments must carry the app.kubernetes.io/managed-by label",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"labels", "builtin"},
		Rego: `package loom.policies.managed_by_label

deny[msg] {
	input.record.data.kind == "Deployment"
	not input.record.data.metadata.labels["app.kubernetes.io/managed-by"]
	msg := sprintf("deployment %s lacks the app.kubernetes.io/managed-by label", [input.record.name])
}
`,
	}
}
