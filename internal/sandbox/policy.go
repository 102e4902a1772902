package sandbox

import (
	"github.com/voxflow/voxflow/pkg/schema"
)

// Timeout bounds for shell steps, in seconds.
const (
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 300
)

// Policy is the allow/block-list governing which executables a
// run-shell step may spawn. Matching is by absolute path, not by
// quoting or escaping: an executable is permitted only when present in
// the allowlist and absent from the blocklist. The blocklist wins on
// any overlap.
type Policy struct {
	allowed map[string]struct{}
	blocked map[string]struct{}
}

// NewPolicy builds a Policy from explicit allow and block lists.
func NewPolicy(allowed, blocked []string) *Policy {
	p := &Policy{
		allowed: make(map[string]struct{}, len(allowed)),
		blocked: make(map[string]struct{}, len(blocked)),
	}
	for _, path := range allowed {
		p.allowed[path] = struct{}{}
	}
	for _, path := range blocked {
		p.blocked[path] = struct{}{}
	}
	return p
}

// DefaultAllowlist covers common text-processing utilities.
var DefaultAllowlist = []string{
	"/bin/cat",
	"/bin/echo",
	"/bin/date",
	"/usr/bin/grep",
	"/usr/bin/sed",
	"/usr/bin/awk",
	"/usr/bin/sort",
	"/usr/bin/uniq",
	"/usr/bin/head",
	"/usr/bin/tail",
	"/usr/bin/tr",
	"/usr/bin/wc",
	"/usr/bin/cut",
	"/usr/bin/jq",
}

// DefaultBlocklist rejects destructive or shell-spawning executables
// even when an operator adds them to the allowlist.
var DefaultBlocklist = []string{
	"/bin/rm",
	"/bin/sh",
	"/bin/bash",
	"/bin/zsh",
	"/usr/bin/env",
	"/usr/bin/sudo",
	"/sbin/shutdown",
}

// DefaultPolicy returns a Policy built from the default lists.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultAllowlist, DefaultBlocklist)
}

// Allowed reports whether the executable path passes the policy.
func (p *Policy) Allowed(executable string) bool {
	if _, blocked := p.blocked[executable]; blocked {
		return false
	}
	_, ok := p.allowed[executable]
	return ok
}

// Validate checks a run-shell config against the policy before any
// process is spawned. It returns a structured error for an empty
// executable path, a disallowed or blocked executable, or a timeout
// outside [MinTimeoutSeconds, MaxTimeoutSeconds].
func (p *Policy) Validate(cfg *schema.RunShellConfig) error {
	if cfg.Executable == "" {
		return schema.NewError(schema.ErrCodeValidation, "shell step: executable path is empty")
	}
	if _, blocked := p.blocked[cfg.Executable]; blocked {
		return schema.NewErrorf(schema.ErrCodeBlockedExecutable,
			"executable %q is blocked by policy", cfg.Executable).
			WithDetails(map[string]any{"executable": cfg.Executable})
	}
	if _, ok := p.allowed[cfg.Executable]; !ok {
		return schema.NewErrorf(schema.ErrCodeBlockedExecutable,
			"executable %q is not in the allowlist", cfg.Executable).
			WithDetails(map[string]any{"executable": cfg.Executable})
	}
	if cfg.TimeoutSeconds < MinTimeoutSeconds || cfg.TimeoutSeconds > MaxTimeoutSeconds {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"shell timeout %d out of range [%d,%d] seconds",
			cfg.TimeoutSeconds, MinTimeoutSeconds, MaxTimeoutSeconds)
	}
	return nil
}
