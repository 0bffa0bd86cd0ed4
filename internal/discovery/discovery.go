// Package discovery finds where a game is installed.
package discovery

import "errors"

// ErrNotFound is returned when the game folder is not in any known library.
var ErrNotFound = errors.New("game not found")

// Discoverer returns the installation directory of a game given the name of
// its folder.
type Discoverer interface {
	Discover(folder string) (string, error)
}

// Func adapts a function to the Discoverer interface.
type Func func(folder string) (string, error)

func (f Func) Discover(folder string) (string, error) { return f(folder) }
