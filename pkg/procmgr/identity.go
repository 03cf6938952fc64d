package procmgr

import (
	"strings"
)

// Environment variables describing the node to its process
const (
	EnvNodeName   = "VMLAUNCHER_NODE_NAME"
	EnvNodeRole   = "VMLAUNCHER_NODE_ROLE"
	EnvNodeIP     = "VMLAUNCHER_NODE_IP"
	EnvNodeMAC    = "VMLAUNCHER_NODE_MAC"
	EnvWorkerID   = "VMLAUNCHER_WORKER_ID"
	EnvParentID   = "VMLAUNCHER_PARENT_ID"
	EnvConfigPath = "VMLAUNCHER_CONFIG_PATH"
)

// NodeEnv returns the node's identity as KEY=VALUE pairs. Identity fields
// are omitted when the request carries no allocated identity.
func (r LaunchRequest) NodeEnv() []string {
	env := []string{
		EnvNodeName + "=" + r.Name,
		EnvNodeRole + "=" + r.Role,
	}
	if r.ConfigPath != "" {
		env = append(env, EnvConfigPath+"="+r.ConfigPath)
	}
	if r.Identity.IsZero() {
		return env
	}

	env = append(env,
		EnvNodeIP+"="+r.Identity.IP().String(),
		EnvNodeMAC+"="+r.Identity.MAC().String(),
		EnvWorkerID+"="+r.Identity.WorkerID().String(),
	)
	if parent, ok := r.Identity.Parent(); ok {
		env = append(env, EnvParentID+"="+parent.String())
	}
	return env
}

// ExpandArgs substitutes {name}, {role}, {ip}, {mac}, {worker_id} and
// {config_path} in args, e.g. "virtio-net-pci,netdev=n0,mac={mac}" for a
// VM wrapper. Unknown placeholders are left as written.
func (r LaunchRequest) ExpandArgs(args []string) []string {
	pairs := []string{
		"{name}", r.Name,
		"{role}", r.Role,
		"{config_path}", r.ConfigPath,
	}
	if !r.Identity.IsZero() {
		pairs = append(pairs,
			"{ip}", r.Identity.IP().String(),
			"{mac}", r.Identity.MAC().String(),
			"{worker_id}", r.Identity.WorkerID().String(),
		)
	}
	replacer := strings.NewReplacer(pairs...)

	out := make([]string, len(args))
	for i, a := range args {
		out[i] = replacer.Replace(a)
	}
	return out
}
