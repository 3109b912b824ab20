//go:build linux || darwin

package shm

import (
	"golang.org/x/sys/unix"
)

func create(name string, size uint64) (*Region, error) {
	fd, err := unix.ShmOpen(name, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0o600)
	if err != nil {
		return nil, &Error{Op: "shm_open", Name: name, Err: err}
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.ShmUnlink(name)
		return nil, &Error{Op: "ftruncate", Name: name, Err: err}
	}

	buf, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.ShmUnlink(name)
		return nil, &Error{Op: "mmap", Name: name, Err: err}
	}

	return &Region{Name: name, buf: buf}, nil
}

func open(name string, size uint64) (*Region, error) {
	fd, err := unix.ShmOpen(name, unix.O_RDWR, 0o600)
	if err != nil {
		return nil, &Error{Op: "shm_open", Name: name, Err: err}
	}
	defer unix.Close(fd)

	buf, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &Error{Op: "mmap", Name: name, Err: err}
	}

	return &Region{Name: name, buf: buf}, nil
}

func (r *Region) close(unlink bool) error {
	err := unix.Munmap(r.buf)
	r.buf = nil
	if unlink {
		_ = unix.ShmUnlink(r.Name)
	}
	return err
}

func unlinkName(name string) error {
	return unix.ShmUnlink(name)
}
