// Command libarcadewallet builds the game wallet as a C shared library:
//
//	go build -buildmode=c-shared -o libarcadewallet.so ./cmd/libarcadewallet
//
// Every call takes a trailing char** err_out. On success *err_out is set to
// NULL; on failure it points at a message describing that call's error.
// Functions that return a value signal failure with NULL or 0, mutations
// return 0 or a negative status. Every char* handed out, including *err_out,
// is owned by the caller and must be released with free_string. err_out may
// be NULL when the caller does not want the message.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"
)

//export init_signer
func init_signer(mnemonic, passphrase *C.char, errOut **C.char) *C.char {
	handle, err := lib.deriveSigner(goString(mnemonic), goString(passphrase))
	if report(errOut, err) != statusOK {
		return nil
	}
	return C.CString(handle)
}

//export get_address
func get_address(signer *C.char, errOut **C.char) *C.char {
	address, err := lib.addressOf(goString(signer))
	if report(errOut, err) != statusOK {
		return nil
	}
	return C.CString(address)
}

//export get_balance
func get_balance(signer *C.char, errOut **C.char) C.ulonglong {
	lamports, err := lib.nativeBalance(goString(signer))
	report(errOut, err)
	return C.ulonglong(lamports)
}

//export get_token_balance
func get_token_balance(signer *C.char, errOut **C.char) C.double {
	balance, err := lib.tokenBalance(goString(signer))
	report(errOut, err)
	return C.double(balance)
}

//export buy_token
func buy_token(signer *C.char, amount C.double, errOut **C.char) C.int {
	return C.int(report(errOut, lib.buyToken(goString(signer), float64(amount))))
}

//export save_score
func save_score(signer *C.char, score C.ulonglong, errOut **C.char) C.int {
	return C.int(report(errOut, lib.saveScore(goString(signer), uint64(score))))
}

//export get_score
func get_score(errOut **C.char) C.ulonglong {
	score, err := lib.score()
	report(errOut, err)
	return C.ulonglong(score)
}

//export free_string
func free_string(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

// report writes err's message to errOut and returns its status code.
func report(errOut **C.char, err error) int {
	status, msg := outcome(err)
	if errOut != nil {
		*errOut = nil
		if msg != "" {
			*errOut = C.CString(msg)
		}
	}
	return status
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

func main() {}
