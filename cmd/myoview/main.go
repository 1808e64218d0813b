// Command myoview browses and relabels the muscles of a glTF anatomy model.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"myoview/internal/config"
	"myoview/internal/persistence"
	"myoview/internal/picking"
	"myoview/internal/scene"
	"myoview/internal/tui"
	"myoview/internal/viewer"
)

var version = "0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:           "myoview",
		Short:         "Browse and relabel the muscles of an anatomy model",
		Long:          "myoview loads a glTF/GLB anatomy model, lets you pick, group and rename its muscle meshes, and keeps the names in durable storage.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.Path(), "settings file")
	flags.StringVar(&opts.modelPath, "model", "", "model file (overrides the settings file)")
	flags.BoolVar(&opts.joints, "joints", false, "include skeleton joints as selectable entities")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format: text|json")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug|info|warn|error")
	flags.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")
	flags.StringVar(&opts.metrics, "metrics", "none", "metrics backend: none|expvar|prometheus")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve metrics on this address")
	flags.StringVar(&opts.traceFile, "trace-file", "", "append JSON operation traces to this file")

	rootCmd.AddCommand(
		newTUICmd(opts),
		newListCmd(opts),
		newRenameCmd(opts),
		newAssignCmd(opts),
		newUngroupCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newExportsCmd(opts),
		newRestoreCmd(opts),
		newResetCmd(opts),
		newProbeCmd(opts),
	)
	return rootCmd
}

// withApp opens a session for one command, reports its notices and closes it.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(*app) error) error {
	a, err := openApp(cmd.Context(), *opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	runErr := fn(a)
	printNotices(cmd.ErrOrStderr(), a.svc.Notices())
	return errors.Join(runErr, a.Close())
}

func printNotices(w io.Writer, notices []viewer.Notice) {
	for _, n := range notices {
		fmt.Fprintf(w, "%s: %s\n", n.Level, n.Message)
	}
}

func newTUICmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			local := *opts
			logOut := io.Discard
			if local.logFile != "" {
				logOut = cmd.ErrOrStderr()
			}
			a, err := openApp(cmd.Context(), local, logOut)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			p := tea.NewProgram(tui.New(a.svc), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("tui: %w", err)
			}
			return nil
		},
	}
}

func newListCmd(opts *globalOptions) *cobra.Command {
	var members bool
	cmd := &cobra.Command{
		Use:   "list [filter]",
		Short: "List groups in display order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				rows := a.svc.Rows()
				if len(args) == 1 {
					rows = a.svc.Filter(args[0])
				}
				out := cmd.OutOrStdout()
				for _, r := range rows {
					line := r.Label
					if !r.Visible {
						line += " (hidden)"
					}
					if members {
						line += "\t" + strings.Join(r.Members, ",")
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&members, "members", false, "print member mesh ids")
	return cmd
}

func newRenameCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <group> <new-name>",
		Short: "Rename every member of a group; an empty name restores original ids",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if !a.svc.SelectGroup(args[0]) {
					return fmt.Errorf("no group named %q", args[0])
				}
				return a.svc.RenameActive(cmd.Context(), args[1])
			})
		},
	}
}

func newAssignCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <name> <mesh-id>...",
		Short: "Give several meshes one shared name",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				a.svc.ToggleMulti(true, args[1:]...)
				return a.svc.BulkRename(cmd.Context(), args[0])
			})
		},
	}
}

func newUngroupCmd(opts *globalOptions) *cobra.Command {
	var ids []string
	cmd := &cobra.Command{
		Use:   "ungroup [group]",
		Short: "Restore original ids for a group, or for --ids only",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(ids) == 0 {
				return errors.New("name a group or pass --ids")
			}
			return withApp(cmd, opts, func(a *app) error {
				if len(ids) > 0 {
					a.svc.ToggleMulti(true, ids...)
					return a.svc.Ungroup(cmd.Context(), ids...)
				}
				if !a.svc.SelectGroup(args[0]) {
					return fmt.Errorf("no group named %q", args[0])
				}
				return a.svc.UngroupActive(cmd.Context())
			})
		},
	}
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "mesh ids to ungroup")
	return cmd
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a name mapping file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := persistence.ReadImportFile(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				_, err := a.svc.Import(cmd.Context(), raw)
				return err
			})
		},
	}
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var toStdout bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the name mapping to the export archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if toStdout {
					_, payload, err := a.svc.ExportFile()
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(payload)
					return err
				}
				info, err := a.svc.Export(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), info.Key)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "print the export document instead of archiving it")
	return cmd
}

func newExportsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exports",
		Short: "List archived exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				infos, err := a.gateway.ListExports(cmd.Context())
				if err != nil {
					return err
				}
				for _, info := range infos {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", info.Key, info.Size, info.Metadata["mappings"])
				}
				return nil
			})
		},
	}
}

func newRestoreCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <key>",
		Short: "Merge an archived export back into the current names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				m, err := a.gateway.FetchExport(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				raw, err := persistence.Encode(m)
				if err != nil {
					return err
				}
				_, err = a.svc.Import(cmd.Context(), raw)
				return err
			})
		},
	}
}

func newResetCmd(opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove every custom name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset removes every custom name; pass --yes to confirm")
			}
			return withApp(cmd, opts, func(a *app) error {
				n := a.svc.ResetAll(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d names\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func newProbeCmd(opts *globalOptions) *cobra.Command {
	var (
		width, height int
		focus         string
	)
	cmd := &cobra.Command{
		Use:   "probe <x> <y>",
		Short: "Report what the pointer would hit at a viewport pixel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("x: %w", err)
			}
			y, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("y: %w", err)
			}
			return withApp(cmd, opts, func(a *app) error {
				a.scene.SetViewport(scene.Viewport{Width: width, Height: height})
				if focus != "" {
					if !a.svc.SelectGroup(focus) {
						return fmt.Errorf("no group named %q", focus)
					}
					if err := a.svc.FocusActive(); err != nil {
						return err
					}
				}
				q, err := a.scene.Query(picking.Point{X: x, Y: y})
				if err != nil {
					return err
				}
				tip := a.svc.PointerMove(q)
				out := cmd.OutOrStdout()
				if !tip.Visible {
					fmt.Fprintln(out, "nothing")
					return nil
				}
				id, _ := a.svc.PointerClick(q)
				fmt.Fprintf(out, "%s\t%s\n", tip.Text, id)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&width, "width", 1280, "viewport width in pixels")
	cmd.Flags().IntVar(&height, "height", 720, "viewport height in pixels")
	cmd.Flags().StringVar(&focus, "focus", "", "frame this group before probing")
	return cmd
}
