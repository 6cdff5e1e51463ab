// Package policy evaluates Rego policies over rendered output records.
//
// Policies run after rendering and before any writer touches the
// filesystem: every record is handed to every enabled policy as
// input.record alongside input.graph, and each policy contributes a deny
// set. Error and critical violations block the write; warnings are
// reported and let the render proceed.
//
// The engine ships with built-in policies (pinned images, namespace
// scoping, workload labels) and loads additional .rego or .json policy
// files from user-supplied paths, optionally watching them for changes.
package policy
