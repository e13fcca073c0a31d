// Package processtest runs scripted stand-ins for tool server subprocesses
// inside the test binary.
//
// A test package opts in with
//
//	func TestHelperProcess(t *testing.T) { processtest.Serve() }
//
// and launches helpers through Launcher. The behaviour is selected by the
// MODE environment variable (Launcher.Mode by default):
//
//	echo    writes every stdin line back to stdout; {"exit":N} exits with N
//	mcp     prints a banner, then answers every request with its method
//	flood   waits for one stdin line, then writes COUNT numbered frames
//	fail    writes STDERR to stderr and exits with EXIT_CODE
//	stubborn ignores SIGTERM and blocks
package processtest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"
)

const helperEnv = "GO_WANT_HELPER_PROCESS"

// Launcher re-executes the current test binary as a helper process.
type Launcher struct {
	Mode string
}

func (l *Launcher) Command(tag string, args []string, env map[string]string) *exec.Cmd {
	cmdArgs := append([]string{"-test.run=^TestHelperProcess$", "--", tag}, args...)
	cmd := exec.Command(os.Args[0], cmdArgs...)
	cmd.Env = append(os.Environ(), helperEnv+"=1", "MODE="+l.Mode)
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		cmd.Env = append(cmd.Env, key+"="+env[key])
	}
	return cmd
}

// Serve runs the helper behaviour and exits when invoked as a helper
// process; otherwise it returns immediately.
func Serve() {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	switch os.Getenv("MODE") {
	case "echo":
		echo()
	case "mcp":
		mcp()
	case "flood":
		flood()
	case "fail":
		fmt.Fprintln(os.Stderr, os.Getenv("STDERR"))
		os.Exit(intEnv("EXIT_CODE", 1))
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
		for {
			time.Sleep(time.Hour)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", os.Getenv("MODE"))
		os.Exit(2)
	}
	os.Exit(0)
}

func echo() {
	scanner := newScanner()
	for scanner.Scan() {
		line := scanner.Bytes()
		var control struct {
			Exit *int `json:"exit"`
		}
		if json.Unmarshal(line, &control) == nil && control.Exit != nil {
			os.Exit(*control.Exit)
		}
		os.Stdout.Write(append(line, '\n'))
	}
}

func mcp() {
	fmt.Println("tool server starting")
	scanner := newScanner()
	for scanner.Scan() {
		var request struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &request); err != nil || len(request.ID) == 0 {
			continue
		}
		result, _ := json.Marshal(map[string]string{"method": request.Method, "greeting": os.Getenv("GREETING")})
		fmt.Printf(`{"jsonrpc":"2.0","id":%s,"result":%s}`+"\n", request.ID, result)
	}
}

func flood() {
	scanner := newScanner()
	if !scanner.Scan() {
		return
	}
	writer := bufio.NewWriter(os.Stdout)
	count := intEnv("COUNT", 100)
	for i := 0; i < count; i++ {
		fmt.Fprintf(writer, `{"jsonrpc":"2.0","method":"seq","params":{"n":%d}}`+"\n", i)
	}
	writer.Flush()
	for scanner.Scan() {
	}
}

func newScanner() *bufio.Scanner {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return scanner
}

func intEnv(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
