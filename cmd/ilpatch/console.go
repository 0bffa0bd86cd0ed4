package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/pboyd/ilpatch"
)

var (
	cyan   = color.New(color.FgCyan).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

const banner = "Subnautica Below Zero - Fahrenheit  to Celsius patcher"

func isTerminal() bool {
	stdin := os.Stdin.Fd()
	stdout := os.Stdout.Fd()
	inTerm := isatty.IsTerminal(stdin) || isatty.IsCygwinTerminal(stdin)
	outTerm := isatty.IsTerminal(stdout) || isatty.IsCygwinTerminal(stdout)
	return inTerm && outTerm
}

// readLine reads one line of input without its line ending. A final line
// without a newline is returned; io.EOF is returned only when there is
// nothing left.
func (a *app) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// pause waits for enter so a console window opened by double clicking the
// program stays up long enough to be read.
func (a *app) pause() {
	if !a.waitOnExit || a.v.GetBool("no-wait") || !a.interactive() {
		return
	}
	fmt.Fprint(a.out, "Press enter to exit")
	_, _ = a.readLine()
}

// confirm is the patcher's confirm hook. It waits for enter unless --yes is
// set; end of input declines.
func (a *app) confirm(name string) func(*ilpatch.Report) error {
	return func(*ilpatch.Report) error {
		if a.v.GetBool("yes") {
			return nil
		}
		fmt.Fprintf(a.out, "Press enter to patch %s", name)
		if _, err := a.readLine(); err != nil {
			fmt.Fprintln(a.out)
			return ilpatch.ErrDeclined
		}
		return nil
	}
}

// locate returns the path of the module to patch. An explicit game directory
// wins; otherwise the game is discovered, and failing that the user is asked
// until the path they enter holds the module.
func (a *app) locate() (string, error) {
	assembly := filepath.FromSlash(a.v.GetString("assembly"))

	if dir := a.v.GetString("game-dir"); dir != "" {
		dir, err := homedir.Expand(dir)
		if err != nil {
			return "", err
		}
		path := filepath.Join(dir, assembly)
		if !isFile(path) {
			return "", fmt.Errorf("%s: %w", path, os.ErrNotExist)
		}
		return path, nil
	}

	folder := a.v.GetString("game-folder")
	dir, err := a.discoverer.Discover(folder)
	if err == nil {
		path := filepath.Join(dir, assembly)
		if isFile(path) {
			fmt.Fprintf(a.out, "Game found at %s\n", dir)
			return path, nil
		}
		a.log.Debug("discovered game has no module", zap.String("path", path))
	} else {
		a.log.Debug("game not discovered", zap.String("folder", folder), zap.Error(err))
	}

	for {
		fmt.Fprintf(a.out, "Insert game path (e.g. %s): \n", examplePath(folder))
		line, err := a.readLine()
		if err != nil {
			return "", fmt.Errorf("no game path given: %w", err)
		}
		dir, err := homedir.Expand(strings.TrimSpace(line))
		if err != nil || dir == "" {
			continue
		}
		if path := filepath.Join(dir, assembly); isFile(path) {
			return path, nil
		}
	}
}

func examplePath(folder string) string {
	if runtime.GOOS == "windows" {
		return `C:\Program Files (x86)\Steam\steamapps\common\` + folder
	}
	return "~/.steam/steam/steamapps/common/" + folder
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
