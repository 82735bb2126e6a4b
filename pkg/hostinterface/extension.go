package hostinterface

/*
#include <stdlib.h>
#include <stdio.h>
#include <string.h>
*/
import "C"
import (
	"unsafe"
)

// called by the host to get the version of the extension
//
//export ExtensionVersion
func ExtensionVersion(output *C.char, outputsize C.size_t) {
	replyToSyncCall(Version(), output, outputsize)
}

// called by the host with a bare command
//
//export Extension
func Extension(output *C.char, outputsize C.size_t, input *C.char) {
	replyToSyncCall(Call(C.GoString(input)), output, outputsize)
}

// called by the host with a command and its arguments
//
//export ExtensionArgs
func ExtensionArgs(output *C.char, outputsize C.size_t, input *C.char, argv **C.char, argc C.int) {
	replyToSyncCall(CallArgs(C.GoString(input), parseArgsFromC(argv, argc)), output, outputsize)
}

// parseArgsFromC converts C argv array to Go string slice
func parseArgsFromC(argv **C.char, argc C.int) []string {
	var offset = unsafe.Sizeof(uintptr(0))
	var data []string
	for index := C.int(0); index < argc; index++ {
		data = append(data, C.GoString(*argv))
		argv = (**C.char)(unsafe.Pointer(uintptr(unsafe.Pointer(argv)) + offset))
	}
	return data
}

// replyToSyncCall copies response into the host's output buffer, truncated
// to outputsize.
func replyToSyncCall(response string, output *C.char, outputsize C.size_t) {
	result := C.CString(response)
	defer C.free(unsafe.Pointer(result))
	var size = C.strlen(result) + 1
	if size > outputsize {
		size = outputsize
	}
	C.memmove(unsafe.Pointer(output), unsafe.Pointer(result), size)
}
