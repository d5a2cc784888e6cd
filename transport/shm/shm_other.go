//go:build !linux

package shm

import "errors"

var errSHMUnsupported = errors.New("shm: POSIX shared memory is only supported on linux")

func shmCreate(name string, size int) ([]byte, error) { return nil, errSHMUnsupported }
func shmOpen(name string, size int) ([]byte, error)   { return nil, errSHMUnsupported }
func shmUnmap(data []byte) error                      { return errSHMUnsupported }
func shmUnlink(name string) error                     { return errSHMUnsupported }
func isNotExistErr(err error) bool                    { return false }
