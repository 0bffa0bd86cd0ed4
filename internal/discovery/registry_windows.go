//go:build windows

package discovery

import (
	"golang.org/x/sys/windows/registry"
)

var steamKeys = []struct {
	root  registry.Key
	path  string
	value string
}{
	{registry.LOCAL_MACHINE, `SOFTWARE\WOW6432Node\Valve\Steam`, "InstallPath"},
	{registry.LOCAL_MACHINE, `SOFTWARE\Valve\Steam`, "InstallPath"},
	{registry.CURRENT_USER, `SOFTWARE\Valve\Steam`, "SteamPath"},
}

func steamInstallPaths() ([]string, error) {
	var paths []string
	for _, k := range steamKeys {
		key, err := registry.OpenKey(k.root, k.path, registry.QUERY_VALUE)
		if err != nil {
			continue
		}
		v, _, err := key.GetStringValue(k.value)
		key.Close()
		if err == nil && v != "" {
			paths = append(paths, v)
		}
	}
	return paths, nil
}
