package natives

import (
	"os"

	"github.com/pkg/errors"

	"github.com/egolang/egovm/pkg/value"
	"github.com/egolang/egovm/pkg/vmerrors"
)

// Fs wraps raw filesystem access. Stdlib for the I/O itself — none of the
// pack's storage drivers (pgx, the mysql/mongo drivers, sqlite) target
// plain file I/O, they target a specific database engine, so none of them
// can serve this concern (see DESIGN.md). Failures are wrapped with
// github.com/pkg/errors before classification, matching the ambient error
// style used elsewhere in the VM.
func Fs(vm HeapAccess) (string, []Field) {
	return "fs", []Field{
		{Name: "read", Object: function(vm, "fs.read", []string{"path"}, fsRead)},
		{Name: "write", Object: function(vm, "fs.write", []string{"path", "contents"}, fsWrite)},
		{Name: "delete", Object: function(vm, "fs.delete", []string{"path"}, fsDelete)},
		{Name: "exists", Object: function(vm, "fs.exists", []string{"path"}, fsExists)},
	}
}

func fsRead(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
	path, ok := oneString(vm, args)
	if !ok {
		return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "fs.read(path)")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return value.Nothing(), vmerrors.New(vmerrors.FsFileNotFound, path)
	}
	if err != nil {
		return value.Nothing(), vmerrors.Wrap(vmerrors.FsReadError, path, errors.Wrap(err, "stat"))
	}
	if info.IsDir() {
		return value.Nothing(), vmerrors.New(vmerrors.FsNotAFile, path)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return value.Nothing(), vmerrors.Wrap(vmerrors.FsReadError, path, errors.Wrap(err, "read"))
	}
	return HeapString(vm, string(contents)), nil
}

func fsWrite(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
	if len(args) != 2 {
		return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "fs.write(path, contents)")
	}
	path, ok1 := Text(vm, args[0])
	contents, ok2 := Text(vm, args[1])
	if !ok1 || !ok2 {
		return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "fs.write(path, contents)")
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return value.Nothing(), vmerrors.Wrap(vmerrors.FsWriteError, path, errors.Wrap(err, "write"))
	}
	return value.Nothing(), nil
}

func fsDelete(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
	path, ok := oneString(vm, args)
	if !ok {
		return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "fs.delete(path)")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return value.Nothing(), vmerrors.Wrap(vmerrors.FsDeleteError, path, errors.Wrap(err, "remove"))
	}
	return value.Nothing(), nil
}

func fsExists(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
	path, ok := oneString(vm, args)
	if !ok {
		return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "fs.exists(path)")
	}
	_, err := os.Stat(path)
	return value.Bool(err == nil), nil
}
