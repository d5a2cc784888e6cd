//go:build !linux

package pmq

import "errors"

var errPMQUnsupported = errors.New("pmq: POSIX message queues are only supported on linux")

type mqdT int

func mqOpenCreate(name string, maxMsg, msgSize int64) (mqdT, error) { return -1, errPMQUnsupported }
func mqOpenExisting(name string) (mqdT, error)                      { return -1, errPMQUnsupported }
func mqClose(fd mqdT) error                                         { return errPMQUnsupported }
func mqUnlink(name string) error                                    { return errPMQUnsupported }
func mqTrySend(fd mqdT, payload []byte) error                       { return errPMQUnsupported }
func mqTryReceive(fd mqdT, maxMsgSize int) ([]byte, error)          { return nil, errPMQUnsupported }
