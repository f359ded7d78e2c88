// Package gitops is a structured facade over the command executor for
// repository work: porcelain status parsing and the common actions (stage,
// commit, push, pull, branch, log, diff, clone).
//
// Every operation is a single allow-listed "git" invocation. Operations on a
// directory without a repository marker return a "Not a git repository"
// result rather than an error, so callers treat them like any other failed
// command.
package gitops
