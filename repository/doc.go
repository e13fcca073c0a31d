// Package repository materializes remote repositories on local disk.
//
// Each clone lands in its own uuid-named directory under the materializer's
// base dir and is tracked in an injectable Registry. A failed clone leaves no
// directory behind; Cleanup is idempotent.
//
// Two Cloner implementations are provided: GitCloner (in-process go-git, the
// default) and ShellCloner (host git binary through a gosh shell session).
package repository
