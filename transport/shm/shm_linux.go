//go:build linux

// Package shm implements the api.Transport contract over a POSIX shared
// memory segment carrying the internal/shmring SPSC ring buffer.
//
// glibc's shm_open(name, ...) is itself just sugar for
// open("/dev/shm/"+name, ...) on Linux; opening the path directly avoids
// both cgo and a fabricated shared-memory binding while using the exact
// same kernel object POSIX shm_open would create.
package shm

import (
	"errors"

	"golang.org/x/sys/unix"
)

const shmDir = "/dev/shm/"

func shmPath(name string) string {
	trimmed := name
	for len(trimmed) > 0 && trimmed[0] == '/' {
		trimmed = trimmed[1:]
	}
	return shmDir + trimmed
}

func shmCreate(name string, size int) ([]byte, error) {
	path := shmPath(name)
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, err
	}
	return unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func shmOpen(name string, size int) ([]byte, error) {
	path := shmPath(name)
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)
	return unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func shmUnmap(data []byte) error {
	return unix.Munmap(data)
}

func shmUnlink(name string) error {
	return unix.Unlink(shmPath(name))
}

func isNotExistErr(err error) bool {
	return errors.Is(err, unix.ENOENT)
}
