package kube

import (
	"context"
	"fmt"
	"strings"

	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

const networkPolicyName = "cliscale-worker-ingress"

// EnsureNetworkPolicy applies the worker namespace's ingress policy:
// worker pods accept traffic on the terminal port only from gateway pods,
// and nothing else. Called once at controller startup; an existing policy
// is updated in place.
func (d *Driver) EnsureNetworkPolicy(ctx context.Context) error {
	gatewayKey, gatewayValue, err := splitLabel(d.cfg.GatewayPodLabel)
	if err != nil {
		return err
	}

	port := intstr.FromInt32(TTYDPort)

	policy := &networkingv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{
			Name:      networkPolicyName,
			Namespace: d.cfg.Namespace,
		},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{
				MatchLabels: map[string]string{appLabel: appValue},
			},
			PolicyTypes: []networkingv1.PolicyType{networkingv1.PolicyTypeIngress},
			Ingress: []networkingv1.NetworkPolicyIngressRule{{
				From: []networkingv1.NetworkPolicyPeer{{
					NamespaceSelector: &metav1.LabelSelector{
						MatchLabels: map[string]string{"kubernetes.io/metadata.name": d.cfg.GatewayNamespace},
					},
					PodSelector: &metav1.LabelSelector{
						MatchLabels: map[string]string{gatewayKey: gatewayValue},
					},
				}},
				Ports: []networkingv1.NetworkPolicyPort{{Port: &port}},
			}},
		},
	}

	policies := d.client.NetworkingV1().NetworkPolicies(d.cfg.Namespace)
	_, err = policies.Create(ctx, policy, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		_, err = policies.Update(ctx, policy, metav1.UpdateOptions{})
	}
	if err != nil {
		return fmt.Errorf("ensure network policy %s: %w", networkPolicyName, err)
	}
	return nil
}

func splitLabel(label string) (key, value string, err error) {
	key, value, ok := strings.Cut(label, "=")
	if !ok || key == "" || value == "" {
		return "", "", fmt.Errorf("gateway pod label must be key=value, got %q", label)
	}
	return key, value, nil
}
