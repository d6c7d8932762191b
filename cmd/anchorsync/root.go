package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ryotapoi/anchorsync/internal/core"
	"github.com/ryotapoi/anchorsync/internal/logging"
	"github.com/ryotapoi/anchorsync/internal/workspace"
)

// envPrefix prefixes environment overrides, e.g. ANCHORSYNC_VAULT or
// ANCHORSYNC_SYNC_SCOPE.
const envPrefix = "ANCHORSYNC"

// configKeys may be overridden from the environment or flags on top of
// anchorsync.yaml.
var configKeys = []string{
	"sync.scope",
	"sync.cross_file_markdown",
	"suggest.top_k",
	"suggest.auto_apply_score",
	"cache.size",
}

// app carries per-invocation state shared by all commands.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
}

func newApp(stdout, stderr io.Writer) *app {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("vault", ".")
	return &app{v: v, stdout: stdout, stderr: stderr}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "anchorsync",
		Short: "Keep markdown heading links in sync with the headings they point to",
		Long: `anchorsync keeps [[Note#Heading]] and [label](#heading) links pointing at
existing headings. Renaming a heading rewrites every link to it; links whose
heading disappeared can be checked, ranked against the target's headings and
repaired.`,
		Version:       resolvedVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetVersionTemplate("anchorsync version {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.String("vault", ".", "vault root directory")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text or json)")
	pf.String("scope", "", "cross-file propagation scope (all or backlinks); overrides sync.scope")
	_ = a.v.BindPFlag("vault", pf.Lookup("vault"))
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log_format", pf.Lookup("log-format"))
	_ = a.v.BindPFlag("sync.scope", pf.Lookup("scope"))

	root.AddCommand(
		newCheckCmd(a),
		newSuggestCmd(a),
		newRepairCmd(a),
		newRenameCmd(a),
		newIndexCmd(a),
		newWatchCmd(a),
		newMCPCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) vaultPath() string {
	return a.v.GetString("vault")
}

func (a *app) logger() (*slog.Logger, error) {
	return logging.New(logging.Config{
		Level:  a.v.GetString("log_level"),
		Format: a.v.GetString("log_format"),
		Output: a.stderr,
	})
}

// config loads anchorsync.yaml from the vault and applies environment and
// flag overrides.
func (a *app) config() (core.Config, error) {
	cfg, err := core.LoadConfig(a.vaultPath())
	if err != nil {
		return core.Config{}, err
	}
	for _, key := range configKeys {
		if !a.v.IsSet(key) {
			continue
		}
		switch key {
		case "sync.scope":
			if s := a.v.GetString(key); s != "" {
				cfg.Sync.Scope = s
			}
		case "sync.cross_file_markdown":
			cfg.Sync.CrossFileMarkdown = a.v.GetBool(key)
		case "suggest.top_k":
			cfg.Suggest.TopK = a.v.GetInt(key)
		case "suggest.auto_apply_score":
			cfg.Suggest.AutoApplyScore = a.v.GetFloat64(key)
		case "cache.size":
			cfg.Cache.Size = a.v.GetInt(key)
		}
	}
	if err := cfg.Validate(); err != nil {
		return core.Config{}, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}

func (a *app) openWorkspace(ctx context.Context) (*workspace.Workspace, *slog.Logger, error) {
	logger, err := a.logger()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := a.config()
	if err != nil {
		return nil, nil, err
	}
	ws, err := workspace.Open(ctx, a.vaultPath(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return ws, logger, nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.stdout, "anchorsync version %s\n", resolvedVersion())
			return nil
		},
	}
}
