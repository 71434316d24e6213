//go:build unix

package collection

import (
	"os"

	"golang.org/x/sys/unix"
)

func openAndMap(path string) ([]byte, *os.File, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, f, nil, nil
	}
	mapped, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		// Fall back to a plain read if mmap is unavailable (e.g. certain
		// sandboxed filesystems); correctness doesn't depend on mmap.
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			f.Close()
			return nil, nil, nil, err
		}
		return data, f, nil, nil
	}
	return mapped, f, mapped, nil
}

func closeMapping(f *os.File, mapped []byte) error {
	var err error
	if mapped != nil {
		err = unix.Munmap(mapped)
	}
	if f != nil {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
