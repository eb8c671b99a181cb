package models

// ExtensionKind is the transport tag of a mounted tool provider (spec.md §3
// "ExtensionEntry").
type ExtensionKind string

const (
	ExtensionPlatform ExtensionKind = "platform"
	ExtensionStdio    ExtensionKind = "stdio"
	ExtensionSSE      ExtensionKind = "sse"
	ExtensionBuiltin  ExtensionKind = "builtin"
)

// InstallKind selects the resolver used to materialize a missing stdio
// extension command (spec.md §4.3.1, §6 "Extension install spec").
type InstallKind string

const (
	InstallNPM       InstallKind = "npm"
	InstallBinaryURL InstallKind = "binary_url"
	InstallUVX       InstallKind = "uvx"
	InstallPipx      InstallKind = "pipx"
)

// InstallSpec is the sub-document of an extension record describing how to
// materialize its command when absent from PATH.
type InstallSpec struct {
	Kind     InstallKind       `json:"kind"`
	Package  string            `json:"package,omitempty"`
	Version  string            `json:"version,omitempty"`
	URL      string            `json:"url,omitempty"`
	Checksum string            `json:"checksum,omitempty"`
	Bin      string            `json:"bin,omitempty"`
	Args     []string          `json:"args,omitempty"`
	Envs     map[string]string `json:"envs,omitempty"`
}

// ExtensionEntry is a declarative tool-provider mount (spec.md §3).
type ExtensionEntry struct {
	Name    string        `json:"name"`
	Kind    ExtensionKind `json:"kind"`
	Command string        `json:"command,omitempty"` // stdio command, or SSE URI
	Env     map[string]string `json:"env,omitempty"`
	Enabled bool          `json:"enabled"`
	Install *InstallSpec  `json:"install,omitempty"`

	// AvailableTools caches the last list_tools() result so listing under
	// the read lock (spec.md §4.3 concurrency discipline) never needs to
	// reach across a process boundary.
	AvailableTools []string `json:"available_tools,omitempty"`
}
