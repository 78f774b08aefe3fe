package kube

import "time"

// TTYDPort is the worker's terminal server port. The worker environment
// contract and the namespace NetworkPolicy both reference it.
const TTYDPort = 7681

// Config holds Kubernetes driver settings with environment variable
// mapping.
type Config struct {
	// Namespace is the isolated namespace workers run in.
	Namespace string `env:"KUBE_NAMESPACE" envDefault:"cliscale-workers"`

	// WorkerImage is the image every worker job runs.
	WorkerImage string `env:"WORKER_IMAGE,required"`

	// Kubeconfig is the development fallback when in-cluster credentials
	// are unavailable. Empty means in-cluster only.
	Kubeconfig string `env:"KUBECONFIG"`

	// TTLAfterFinished is how long a finished job lingers before
	// self-collection.
	TTLAfterFinished time.Duration `env:"WORKER_TTL_AFTER_FINISHED" envDefault:"5m"`

	// PollInterval paces endpoint resolution polling.
	PollInterval time.Duration `env:"ENDPOINT_POLL_INTERVAL" envDefault:"500ms"`

	// DeleteTimeout bounds one best-effort worker deletion.
	DeleteTimeout time.Duration `env:"WORKER_DELETE_TIMEOUT" envDefault:"15s"`

	// GatewayNamespace and GatewayPodLabel identify the gateway pods the
	// NetworkPolicy admits on the terminal port.
	GatewayNamespace string `env:"GATEWAY_NAMESPACE" envDefault:"cliscale"`
	GatewayPodLabel  string `env:"GATEWAY_POD_LABEL" envDefault:"app=cliscale-gateway"`
}
