package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bubblejail/bubblejail/internal/bjerror"
	"github.com/bubblejail/bubblejail/internal/config"
	"github.com/bubblejail/bubblejail/internal/helper"
	"github.com/bubblejail/bubblejail/internal/instance"
	"github.com/bubblejail/bubblejail/internal/runner"
	"github.com/bubblejail/bubblejail/internal/service"
)

func runCmd() *cobra.Command {
	var (
		wait           bool
		debugShell     bool
		dryRun         bool
		debugLogDBus   string
		debugBwrapArgs []string
		wizard         bool
	)

	cmd := &cobra.Command{
		Use:   "run NAME [ARGS...]",
		Short: "Start or re-enter a sandbox instance and run a command inside it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			sandboxArgv := args[1:]
			if debugShell {
				sandboxArgv = []string{shellPath()}
			}

			inst, err := instance.Open(name)
			if err != nil {
				return err
			}

			if wizard {
				if err := runWizard(inst); err != nil {
					return err
				}
			}

			// Re-entry: an already-Running instance's helper socket
			// accepts connections directly (spec.md §4.5's re-entry case),
			// bypassing composition and the startup lock entirely.
			if sockPath, err := inst.HelperSocketPath(); err == nil {
				if client, err := helper.Dial(sockPath); err == nil {
					return reenter(client, sandboxArgv, wait)
				}
			}

			lock, err := inst.Lock()
			if err != nil {
				return bjerror.Wrap(bjerror.KindAlreadyRunning, name, err)
			}
			defer lock.Release()

			reg := service.NewRegistry()
			var active []service.Service
			for svcName, table := range inst.Services {
				svc, warnings, err := reg.Build(svcName, table)
				if err != nil {
					return bjerror.Wrap(bjerror.KindConfigParse, svcName, err)
				}
				for _, w := range warnings {
					fmt.Fprintf(os.Stderr, "bubblejail: warning: %s\n", w)
				}
				active = append(active, svc)
			}
			if pair, conflict := service.ConflictCheck(active); conflict {
				return bjerror.New(bjerror.KindServiceConflict, fmt.Sprintf("%s ⇄ %s", pair.A, pair.B))
			}

			cfg, err := config.Merge(active)
			if err != nil {
				return err
			}
			if err := config.CheckBindSources(cfg, pathExists); err != nil {
				return err
			}

			if debugLogDBus != "" {
				logDBusRules(cfg, debugLogDBus == "raw")
			}

			runArgv, err := runner.DefaultSandboxArgv(cfg, sandboxArgv)
			if err != nil {
				return bjerror.Wrap(bjerror.KindConfigParse, "no command to run", err)
			}

			r, err := runner.Start(inst, cfg, runner.Options{
				SandboxArgv:    runArgv,
				Wait:           wait,
				DryRun:         dryRun,
				DebugBwrapArgs: debugBwrapArgs,
			})
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Println(strings.Join(r.DryRunArgv(), " "))
				return nil
			}
			lock.Release()

			installSignalShutdown(r)

			msg, err := r.RunCommand(1, runArgv, nil, wait)
			if err != nil {
				r.Shutdown()
				if errors.Is(err, helper.ErrCancelled) {
					return bjerror.New(bjerror.KindCancelled, "interrupted")
				}
				return bjerror.Wrap(bjerror.KindHelperHandshakeTimeout, "initial RUN", err)
			}

			if wait {
				r.Shutdown()
				if msg != nil {
					os.Stdout.Write(msg.Stdout)
					os.Stderr.Write(msg.Stderr)
					if msg.ExitCode != 0 {
						return bjerror.New(bjerror.KindSandboxExit, fmt.Sprintf("%d", msg.ExitCode))
					}
				}
				return nil
			}

			bwrapExit := r.WaitBwrap()
			r.Shutdown()
			if bwrapExit != 0 {
				return bjerror.New(bjerror.KindSandboxExit, fmt.Sprintf("%d", bwrapExit))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "block for the sandboxed command's exit and print its output")
	cmd.Flags().BoolVar(&debugShell, "debug-shell", false, "run an interactive shell instead of the configured command")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the fully expanded bwrap argv and exit")
	cmd.Flags().StringVar(&debugLogDBus, "debug-log-dbus", "", "log the D-Bus rules handed to xdg-dbus-proxy (\"raw\" for the literal proxy argv)")
	cmd.Flags().Lookup("debug-log-dbus").NoOptDefVal = "summary"
	cmd.Flags().StringArrayVar(&debugBwrapArgs, "debug-bwrap-args", nil, "append a raw argument to the bwrap invocation (repeatable)")
	cmd.Flags().BoolVar(&wizard, "wizard", false, "prompt for missing [common] settings before starting")
	return cmd
}

// reenter forwards one RUN to an already-Running instance's helper and
// mirrors its RESULT to this process's own stdio (spec.md §4.5's
// re-entry case, scenario D).
func reenter(client *helper.Client, argv []string, wait bool) error {
	defer client.Close()
	if len(argv) == 0 {
		return bjerror.New(bjerror.KindConfigParse, "run: instance is already running; ARGS are required to re-enter it")
	}
	msg, err := client.Run(1, argv, nil, wait)
	if err != nil {
		return err
	}
	if !wait || msg == nil {
		return nil
	}
	os.Stdout.Write(msg.Stdout)
	os.Stderr.Write(msg.Stderr)
	if msg.ExitCode != 0 {
		return bjerror.New(bjerror.KindSandboxExit, fmt.Sprintf("%d", msg.ExitCode))
	}
	return nil
}

func installSignalShutdown(r *runner.Runner) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	go func() {
		<-sigCh
		r.Shutdown()
	}()
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func shellPath() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

func logDBusRules(cfg *config.BwrapConfig, raw bool) {
	if len(cfg.DBusRules) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "bubblejail: D-Bus rules for this run:")
	for _, rule := range cfg.DBusRules {
		if raw {
			fmt.Fprintf(os.Stderr, "  %+v\n", rule)
		} else {
			fmt.Fprintf(os.Stderr, "  bus=%d kind=%d name=%s\n", rule.Bus, rule.Kind, rule.Name)
		}
	}
}

// runWizard prompts for [common] executable_name when missing, the
// only spec.md-silent piece of `run --wizard`'s behavior this
// expansion implements (spec.md §4.8 names the flag but sketches no
// semantics beyond it).
func runWizard(inst *instance.Instance) error {
	common, ok := inst.Services["common"]
	if !ok {
		common = map[string]interface{}{}
	}
	if _, has := common["executable_name"]; has {
		return nil
	}
	fmt.Fprint(os.Stderr, "bubblejail: no executable configured for this instance; enter a command: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	common["executable_name"] = []string{line}
	inst.Services["common"] = common
	return inst.Save()
}
