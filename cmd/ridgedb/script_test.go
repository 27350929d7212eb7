package main

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"rsc.io/script"
	"rsc.io/script/scripttest"
)

// cmdRidgedb wraps the CLI's own Execute() as a script.Cmd so scripted
// tests drive the real command tree in-process instead of shelling out to
// a built binary. Stdout is captured by swapping os.Stdout for the
// duration of the call, since cobra's RunE handlers print through the
// package-level fmt.Print* calls rather than an injectable writer.
func cmdRidgedb() script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "run the ridgedb CLI in-process",
			Args:    "args...",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			for _, kv := range s.Environ() {
				if i := strings.IndexByte(kv, '='); i >= 0 {
					os.Setenv(kv[:i], kv[i+1:])
				}
			}

			r, w, err := os.Pipe()
			if err != nil {
				return nil, err
			}
			prevStdout := os.Stdout
			os.Stdout = w

			rootCmd.SetArgs(args)
			runErr := rootCmd.Execute()

			os.Stdout = prevStdout
			w.Close()
			out, _ := io.ReadAll(r)

			return func(*script.State) (stdout, stderr string, err error) {
				return string(out), "", runErr
			}, nil
		},
	)
}

func TestCLIScripts(t *testing.T) {
	engine := &script.Engine{
		Cmds:  script.DefaultCmds(),
		Conds: script.DefaultConds(),
	}
	engine.Cmds["ridgedb"] = cmdRidgedb()

	scripttest.Test(t, context.Background(), engine, os.Environ(), "testdata/script/*.txt")
}
