// Package sync drives the pull-compare-commit cycle for one instance: it
// acquires the instance lock, pulls every enabled content type of a module,
// writes the canonical YAML files and lets Git's own change detection decide
// whether an auto-commit is warranted. It also implements the read-only
// drift (diff), endpoint test, status and validate operations on top of the
// same collaborators.
package sync
