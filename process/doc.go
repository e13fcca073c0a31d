// Package process supervises the tool server subprocess.
//
// A Supervisor starts the runtime image through a Launcher (docker run -i by
// default), watches the start window and exposes the child's stdin and
// stdout exactly once through Process.Streams. Stderr is drained line by line
// into the structured log; its tail is kept for start diagnostics.
//
// A Process moves Starting -> Running -> Exited(code) or Killed and is never
// restarted in place.
package process
