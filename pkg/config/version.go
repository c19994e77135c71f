package config

// Version constants for runtime manifests.
const (
	// APIVersion is the Kubernetes-style API version of runtime manifests
	APIVersion = "studio.jari57.dev/v1alpha1"

	// KindMediaRuntime is the only manifest kind
	KindMediaRuntime = "MediaRuntime"
)
