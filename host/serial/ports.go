//go:build !wasm

package serial

import (
	"sort"

	bugst "go.bug.st/serial"
)

// List returns the serial devices present on the system, sorted by name.
func List() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, err
	}
	sort.Strings(ports)
	return ports, nil
}
