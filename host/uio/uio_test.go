package uio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func fakeSysfs(t *testing.T, files map[string]string) {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := SysfsRoot
	SysfsRoot = root
	t.Cleanup(func() { SysfsRoot = old })
}

func TestReadMap(t *testing.T) {
	fakeSysfs(t, map[string]string{
		"uio0/name":             "sunxi-pwm\n",
		"uio0/maps/map0/addr":   "0x02000c00\n",
		"uio0/maps/map0/size":   "0x00000400\n",
		"uio0/maps/map0/offset": "0xc00\n",
		"uio0/maps/map0/name":   "pwm\n",
	})

	m, err := ReadMap("/dev/uio0", 0)
	if err != nil {
		t.Fatal(err)
	}
	want := Map{Index: 0, Name: "pwm", Addr: 0x02000c00, Size: 0x400, Offset: 0xc00}
	if m != want {
		t.Errorf("Expected %+v, got %+v", want, m)
	}

	name, err := DeviceName("uio0")
	if err != nil || name != "sunxi-pwm" {
		t.Errorf("DeviceName = %q, %v", name, err)
	}
}

func TestReadMapWithoutOffset(t *testing.T) {
	fakeSysfs(t, map[string]string{
		"uio1/maps/map2/addr": "0x1000\n",
		"uio1/maps/map2/size": "0x2000\n",
	})

	m, err := ReadMap("uio1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if m.Offset != 0 || m.Size != 0x2000 || m.Index != 2 {
		t.Errorf("Unexpected map %+v", m)
	}
}

func TestReadMapErrors(t *testing.T) {
	fakeSysfs(t, map[string]string{
		"uio0/maps/map0/addr": "0x1000\n",
		"uio0/maps/map0/size": "garbage\n",
		"uio0/maps/map1/addr": "0x1000\n",
		"uio0/maps/map1/size": "0\n",
	})

	if _, err := ReadMap("uio0", 0); err == nil {
		t.Error("Expected a parse error for map0")
	}
	if _, err := ReadMap("uio0", 1); err == nil {
		t.Error("Expected an error for an empty map")
	}
	if _, err := ReadMap("uio0", 5); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected ErrNotExist for a missing map, got %v", err)
	}
}

func TestMapping(t *testing.T) {
	const page = 0x1000
	tests := []struct {
		name          string
		m             Map
		length, avail uint64
	}{
		// Page-aligned addr with the block 0xc00 into the page
		{"aligned", Map{Addr: 0x02000000, Size: 0x1000, Offset: 0xc00}, 0x1000, 0x400},
		// addr points at the block itself
		{"unaligned", Map{Addr: 0x02000c00, Size: 0x400, Offset: 0xc00}, 0x1000, 0x400},
		{"spans pages", Map{Addr: 0x02000e00, Size: 0x400, Offset: 0xe00}, 0x2000, 0x400},
		{"no offset", Map{Addr: 0x02000c00, Size: 0x100}, 0x1000, 0x100},
		{"offset past map", Map{Addr: 0x02000000, Size: 0x800, Offset: 0x1000}, 0x1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			length, avail := tt.m.mapping(page)
			if length != tt.length || avail != tt.avail {
				t.Errorf("Expected length %#x avail %#x, got %#x %#x", tt.length, tt.avail, length, avail)
			}
			// Never map more than the pages the region spans
			if limit := (tt.m.Addr&(page-1) + tt.m.Size + page - 1) &^ (page - 1); length > limit {
				t.Errorf("length %#x exceeds %#x", length, limit)
			}
			if tt.m.Offset+avail > length && avail != 0 {
				t.Errorf("window [%#x, %#x) runs past mapping", tt.m.Offset, tt.m.Offset+avail)
			}
		})
	}
}

func TestBlockAddr(t *testing.T) {
	for _, m := range []Map{
		{Addr: 0x02000000, Size: 0x1000, Offset: 0xc00},
		{Addr: 0x02000c00, Size: 0x400, Offset: 0xc00},
	} {
		if got := m.BlockAddr(0x1000); got != 0x02000c00 {
			t.Errorf("%+v: expected 0x02000c00, got %#x", m, got)
		}
	}
}
