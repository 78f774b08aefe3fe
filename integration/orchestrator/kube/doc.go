// Package kube drives worker lifecycles on Kubernetes.
//
// Each admitted session becomes one batch/v1 Job in a dedicated worker
// namespace. The Job runs the worker image with the session's environment
// contract, an active deadline equal to the session TTL, and a
// post-finish collection TTL so finished workers self-collect. The pod is
// hardened: non-root, all capabilities dropped, read-only root
// filesystem, RuntimeDefault seccomp.
//
// Endpoint resolution polls the job's pod until it is ready and has an
// IP; the worker endpoint is podIP:7681, reachable only from gateway
// pods through the namespace's NetworkPolicy (EnsureNetworkPolicy applies
// it at startup).
//
// The driver talks to the API server with in-cluster credentials and
// falls back to a kubeconfig for development.
package kube
