//go:build linux

// Package pmq implements the api.Transport contract over a POSIX message
// queue. golang.org/x/sys/unix exposes the mq_* syscall numbers but no Go
// wrapper functions for them, so this file drives them directly through
// unix.Syscall/Syscall6, the same raw-syscall style the buffer pool and the
// reactor code this project descends from already use for epoll.
package pmq

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mqAttr mirrors struct mq_attr from <mqueue.h> on Linux/amd64: four
// 8-byte longs plus four reserved longs.
type mqAttr struct {
	Flags   int64
	MaxMsg  int64
	MsgSize int64
	CurMsgs int64
	_       [4]int64
}

// mqdT is a POSIX message queue descriptor; on Linux it is an ordinary fd.
type mqdT int

func mqOpenCreate(name string, maxMsg, msgSize int64) (mqdT, error) {
	nameBytes, err := unix.BytePtrFromString(name)
	if err != nil {
		return -1, err
	}
	attr := mqAttr{MaxMsg: maxMsg, MsgSize: msgSize}
	flags := unix.O_CREAT | unix.O_RDWR | unix.O_NONBLOCK
	fd, _, errno := unix.Syscall6(
		unix.SYS_MQ_OPEN,
		uintptr(unsafe.Pointer(nameBytes)),
		uintptr(flags),
		uintptr(0o600),
		uintptr(unsafe.Pointer(&attr)),
		0, 0,
	)
	if errno != 0 {
		return -1, fmt.Errorf("mq_open(create %q): %w", name, errno)
	}
	return mqdT(fd), nil
}

func mqOpenExisting(name string) (mqdT, error) {
	nameBytes, err := unix.BytePtrFromString(name)
	if err != nil {
		return -1, err
	}
	flags := unix.O_RDWR | unix.O_NONBLOCK
	fd, _, errno := unix.Syscall6(
		unix.SYS_MQ_OPEN,
		uintptr(unsafe.Pointer(nameBytes)),
		uintptr(flags),
		0, 0, 0, 0,
	)
	if errno != 0 {
		return -1, fmt.Errorf("mq_open(open %q): %w", name, errno)
	}
	return mqdT(fd), nil
}

func mqClose(fd mqdT) error {
	return unix.Close(int(fd))
}

func mqUnlink(name string) error {
	nameBytes, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_MQ_UNLINK, uintptr(unsafe.Pointer(nameBytes)), 0, 0)
	if errno != 0 {
		return fmt.Errorf("mq_unlink(%q): %w", name, errno)
	}
	return nil
}

// mqTrySend performs one non-blocking mq_timedsend with priority 0 and no
// timeout (equivalent to mq_send on an O_NONBLOCK descriptor). It returns
// unix.EAGAIN when the queue is full.
func mqTrySend(fd mqdT, payload []byte) error {
	var ptr *byte
	if len(payload) > 0 {
		ptr = &payload[0]
	}
	_, _, errno := unix.Syscall6(
		unix.SYS_MQ_TIMEDSEND,
		uintptr(fd),
		uintptr(unsafe.Pointer(ptr)),
		uintptr(len(payload)),
		0, 0, 0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

// mqTryReceive performs one non-blocking mq_timedreceive into a buffer
// sized to maxMsgSize. It returns unix.EAGAIN when the queue is empty.
func mqTryReceive(fd mqdT, maxMsgSize int) ([]byte, error) {
	buf := make([]byte, maxMsgSize)
	n, _, errno := unix.Syscall6(
		unix.SYS_MQ_TIMEDRECEIVE,
		uintptr(fd),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		0, 0, 0,
	)
	if errno != 0 {
		return nil, errno
	}
	return buf[:n], nil
}
