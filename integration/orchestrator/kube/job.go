package kube

import (
	"strconv"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/arakoodev/cliscale/core/session"
)

const (
	// appLabel marks every worker pod; the NetworkPolicy selects on it.
	appLabel = "app"
	appValue = "cliscale-worker"

	// workerLabel carries the worker name on the pod template so endpoint
	// resolution can find the job's pod without relying on the job
	// controller's generated selector.
	workerLabel = "cliscale.io/worker"

	// sessionLabel ties the worker object back to its session for
	// operator debugging.
	sessionLabel = "cliscale.io/session-id"

	defaultInstallCmd = "npm install"
)

// buildJob renders the worker lifecycle object for one session: a
// single-attempt job with the session's environment contract, an active
// deadline equal to the session TTL, post-finish self-collection, and a
// hardened pod.
func (d *Driver) buildJob(name string, spec session.WorkerSpec) *batchv1.Job {
	installCmd := spec.InstallCmd
	if installCmd == "" {
		installCmd = defaultInstallCmd
	}

	labels := map[string]string{
		appLabel:     appValue,
		workerLabel:  name,
		sessionLabel: spec.SessionID,
	}

	activeDeadline := int64(spec.TTL.Seconds())
	ttlAfterFinished := int32(d.cfg.TTLAfterFinished.Seconds())
	backoffLimit := int32(0)
	runAsNonRoot := true
	runAsUser := int64(1000)
	noPrivEsc := false
	readOnlyRoot := true

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: d.cfg.Namespace,
			Labels:    labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            &backoffLimit,
			ActiveDeadlineSeconds:   &activeDeadline,
			TTLSecondsAfterFinished: &ttlAfterFinished,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					SecurityContext: &corev1.PodSecurityContext{
						RunAsNonRoot: &runAsNonRoot,
						RunAsUser:    &runAsUser,
						SeccompProfile: &corev1.SeccompProfile{
							Type: corev1.SeccompProfileTypeRuntimeDefault,
						},
					},
					Volumes: []corev1.Volume{
						{Name: "workspace", VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}}},
						{Name: "tmp", VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}}},
					},
					Containers: []corev1.Container{{
						Name:  "worker",
						Image: d.cfg.WorkerImage,
						Env: []corev1.EnvVar{
							{Name: "CODE_URL", Value: spec.CodeURL},
							{Name: "COMMAND", Value: spec.Command},
							{Name: "INSTALL_CMD", Value: installCmd},
							{Name: "CLAUDE_PROMPT", Value: spec.Prompt},
							{Name: "TTYD_PORT", Value: strconv.Itoa(TTYDPort)},
							{Name: "EXIT_ON_JOB", Value: "true"},
						},
						Ports: []corev1.ContainerPort{{Name: "ttyd", ContainerPort: TTYDPort}},
						SecurityContext: &corev1.SecurityContext{
							AllowPrivilegeEscalation: &noPrivEsc,
							ReadOnlyRootFilesystem:   &readOnlyRoot,
							Capabilities: &corev1.Capabilities{
								Drop: []corev1.Capability{"ALL"},
							},
						},
						VolumeMounts: []corev1.VolumeMount{
							{Name: "workspace", MountPath: "/workspace"},
							{Name: "tmp", MountPath: "/tmp"},
						},
					}},
				},
			},
		},
	}
}
