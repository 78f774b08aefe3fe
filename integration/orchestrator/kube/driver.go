package kube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/arakoodev/cliscale/core/logger"
	"github.com/arakoodev/cliscale/core/session"
	"github.com/google/uuid"
)

// Driver implements session.Orchestrator on the Kubernetes API.
type Driver struct {
	client kubernetes.Interface
	cfg    Config
	log    *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger for driver diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(d *Driver) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDriver creates the Kubernetes worker driver over an existing client.
func NewDriver(client kubernetes.Interface, cfg Config, opts ...Option) (*Driver, error) {
	if client == nil {
		return nil, errors.New("kube driver requires a client")
	}
	if cfg.WorkerImage == "" {
		return nil, errors.New("kube driver requires a worker image")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "cliscale-workers"
	}
	if cfg.TTLAfterFinished <= 0 {
		cfg.TTLAfterFinished = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.DeleteTimeout <= 0 {
		cfg.DeleteTimeout = 15 * time.Second
	}

	d := &Driver{
		client: client,
		cfg:    cfg,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Submit creates the worker job and returns its name. Submission is never
// retried here; a failed create surfaces to the caller, who may re-POST
// for a fresh session.
func (d *Driver) Submit(ctx context.Context, spec session.WorkerSpec) (string, error) {
	name := "worker-" + uuid.NewString()[:8]
	job := d.buildJob(name, spec)

	if _, err := d.client.BatchV1().Jobs(d.cfg.Namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return "", fmt.Errorf("create worker job %s: %w", name, err)
	}

	d.log.Info("Worker job submitted",
		logger.WorkerName(name), logger.SessionID(spec.SessionID))
	return name, nil
}

// ResolveEndpoint polls the job's pod until it is ready with an assigned
// IP or ctx expires. A passed deadline reports session.ErrEndpointPending;
// transient API failures keep polling inside the budget.
func (d *Driver) ResolveEndpoint(ctx context.Context, workerName string) (string, error) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		endpoint, err := d.lookupEndpoint(ctx, workerName)
		if err == nil && endpoint != "" {
			return endpoint, nil
		}
		if err != nil && !apierrors.IsNotFound(err) {
			d.log.Debug("Endpoint poll failed",
				logger.WorkerName(workerName), logger.Error(err))
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: worker %s: %w", session.ErrEndpointPending, workerName, ctx.Err())
		case <-ticker.C:
		}
	}
}

// lookupEndpoint returns the worker pod's endpoint, or empty while the pod
// is not yet ready.
func (d *Driver) lookupEndpoint(ctx context.Context, workerName string) (string, error) {
	pods, err := d.client.CoreV1().Pods(d.cfg.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: workerLabel + "=" + workerName,
	})
	if err != nil {
		return "", err
	}

	for _, pod := range pods.Items {
		if pod.Status.PodIP == "" || pod.Status.Phase != corev1.PodRunning {
			continue
		}
		if !podReady(pod) {
			continue
		}
		return net.JoinHostPort(pod.Status.PodIP, strconv.Itoa(TTYDPort)), nil
	}
	return "", nil
}

func podReady(pod corev1.Pod) bool {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// BestEffortDelete requests asynchronous worker teardown. It returns
// immediately; failures are logged and otherwise dropped, the job's own
// TTL being the safety net.
func (d *Driver) BestEffortDelete(workerName string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DeleteTimeout)
		defer cancel()

		propagation := metav1.DeletePropagationBackground
		err := d.client.BatchV1().Jobs(d.cfg.Namespace).Delete(ctx, workerName, metav1.DeleteOptions{
			PropagationPolicy: &propagation,
		})
		switch {
		case err == nil:
			d.log.Info("Worker job deleted", logger.WorkerName(workerName))
		case apierrors.IsNotFound(err):
			// Already collected.
		default:
			d.log.Warn("Worker job deletion failed", logger.WorkerName(workerName), logger.Error(err))
		}
	}()
}
