package config

import "strings"

// Qualify joins an upstream id and a tool name into a qualified tool name
// (spec.md §3: "<upstream_id>__<tool_name>").
func Qualify(upstreamID, toolName string) string {
	return upstreamID + QualifiedNameSeparator + toolName
}

// SplitQualified splits a qualified tool name back into its upstream id and
// tool name. ok is false if qn does not contain the separator.
func SplitQualified(qn string) (upstreamID, toolName string, ok bool) {
	i := strings.Index(qn, QualifiedNameSeparator)
	if i < 0 {
		return "", "", false
	}
	return qn[:i], qn[i+len(QualifiedNameSeparator):], true
}
