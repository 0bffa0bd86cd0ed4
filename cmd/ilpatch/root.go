package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pboyd/ilpatch"
	"github.com/pboyd/ilpatch/internal/discovery"
)

// app carries the state shared by the commands.
type app struct {
	v   *viper.Viper
	log *zap.Logger

	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	discoverer  discovery.Discoverer
	interactive func() bool

	// waitOnExit is set by commands that end with a keypress when run from a
	// console window.
	waitOnExit bool
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		v:           viper.New(),
		in:          bufio.NewReader(in),
		out:         out,
		errOut:      errOut,
		interactive: isTerminal,
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ilpatch",
		Short: "Subnautica Below Zero - Fahrenheit to Celsius patcher",
		Long: `ilpatch finds Subnautica Below Zero, backs up its Assembly-CSharp.dll and
patches uGUI_BodyHeatMeter.SetValue so the body heat meter reads in Celsius.

Run without a command to patch.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: a.runPatch,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file")
	flags.String("game-dir", "", "game installation directory (skips discovery)")
	flags.String("game-folder", "SubnauticaZero", "game folder name under steamapps/common")
	flags.String("assembly", "SubnauticaZero_Data/Managed/Assembly-CSharp.dll", "module path relative to the game directory")
	flags.String("type", ilpatch.DefaultTarget().Type, "type that declares the method")
	flags.String("method", ilpatch.DefaultTarget().Method, "method to patch")
	flags.String("backup-suffix", ilpatch.DefaultBackupSuffix, "suffix of the backup file")
	flags.BoolP("yes", "y", false, "patch without asking")
	flags.Bool("no-wait", false, "exit without waiting for enter")
	flags.Bool("no-color", false, "disable colored output")
	flags.BoolP("verbose", "v", false, "debug logging")
	_ = a.v.BindPFlags(flags)

	a.v.SetEnvPrefix("ILPATCH")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		&cobra.Command{
			Use:   "patch",
			Short: "Patch the body heat meter to Celsius",
			Args:  cobra.NoArgs,
			RunE:  a.runPatch,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether the module is patched",
			Args:  cobra.NoArgs,
			RunE:  a.runStatus,
		},
		a.disCommand(),
		&cobra.Command{
			Use:   "restore",
			Short: "Copy the backup back over the module",
			Args:  cobra.NoArgs,
			RunE:  a.runRestore,
		},
	)
	return root
}

// setup reads the config file, applies global flags and builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if path := a.v.GetString("config"); path != "" {
		path, err := homedir.Expand(path)
		if err != nil {
			return err
		}
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if a.v.GetBool("no-color") {
		color.NoColor = true
	}

	if a.log == nil {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if a.v.GetBool("verbose") {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		log, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.log = log
	}

	if a.discoverer == nil {
		a.discoverer = discovery.NewSteam(discovery.WithLogger(a.log))
	}
	return nil
}

func (a *app) target() ilpatch.Target {
	return ilpatch.Target{Type: a.v.GetString("type"), Method: a.v.GetString("method")}
}
