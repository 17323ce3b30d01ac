package natives

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/egolang/egovm/pkg/value"
	"github.com/egolang/egovm/pkg/vmerrors"
)

// Net wraps a TCP (optionally TLS) stream. Transport stays on stdlib
// net/crypto-tls — see DESIGN.md, nothing in the pack targets a raw
// socket. Every connect/read/write failure is wrapped with
// github.com/pkg/errors before classification, and, when the call's debug
// flag is set, every successful read/write is logged through zerolog at
// debug level, matching the
// ambient trace style pkg/vm uses for opcode dispatch.
func Net(vm HeapAccess) (string, []Field) {
	return "net", []Field{
		{Name: "connect", Object: function(vm, "net.connect", []string{"host", "port", "tls"}, netConnect)},
	}
}

func netConnect(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
	if len(args) != 3 || args[2].Prim != value.PBool {
		return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "net.connect(host, port, tls)")
	}
	host, ok := Text(vm, args[0])
	if !ok {
		return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "net.connect(host, port, tls)")
	}
	addr := net.JoinHostPort(host, args[1].String())

	var conn net.Conn
	var err error
	if args[2].Bool {
		conn, err = tls.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}, "tcp", addr, &tls.Config{})
	} else {
		conn, err = net.DialTimeout("tcp", addr, 10*time.Second)
	}
	if err != nil {
		return value.Nothing(), vmerrors.Wrap(vmerrors.NetConnectError, addr, errors.Wrap(err, "dial"))
	}

	readFn := NativeFunction("net.Connection.read", nil, func(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
		buf := make([]byte, 4096)
		n, err := conn.Read(buf)
		if err != nil {
			return value.Nothing(), vmerrors.Wrap(vmerrors.NetReadError, addr, errors.Wrap(err, "read"))
		}
		if debug {
			log.Debug().Str("addr", addr).Int("bytes", n).Msg("net.read")
		}
		return HeapString(vm, string(buf[:n])), nil
	})
	writeFn := NativeFunction("net.Connection.write", []string{"data"}, func(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
		data, ok := oneString(vm, args)
		if !ok {
			return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "Connection.write(data)")
		}
		n, err := conn.Write([]byte(data))
		if err != nil {
			return value.Nothing(), vmerrors.Wrap(vmerrors.NetWriteError, addr, errors.Wrap(err, "write"))
		}
		if debug {
			log.Debug().Str("addr", addr).Int("bytes", n).Msg("net.write")
		}
		return value.I32(int32(n)), nil
	})
	closeFn := NativeFunction("net.Connection.close", nil, func(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
		_ = conn.Close()
		return value.Nothing(), nil
	})

	readRef := vm.Allocate(readFn)
	writeRef := vm.Allocate(writeFn)
	closeRef := vm.Allocate(closeFn)

	streamAddr := addr
	stream := &value.NativeStruct{
		Variant: "net.Connection",
		Fields: map[string]value.Value{
			"read":  value.Ref(readRef),
			"write": value.Ref(writeRef),
			"close": value.Ref(closeRef),
		},
		Printer: func() string { return "[native] net.Connection(" + streamAddr + ")" },
	}
	return value.Ref(vm.Allocate(stream)), nil
}
