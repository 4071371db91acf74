// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"sync/atomic"
)

const (
	// 0 - 99 is OK.  They do not contain info, and are special handled
	// using a static instance, no alloc.
	Ok            uint16 = 0
	OkExpectedEOF uint16 = 1 // Expected End Of File

	OkMax uint16 = 99

	// Group 1: Internal errors
	ErrStart    uint16 = 20100
	ErrInternal uint16 = 20101

	// Group 3: invalid input
	ErrBadConfig    uint16 = 20300
	ErrInvalidInput uint16 = 20301

	// Group 4: unexpected state
	ErrInvalidState uint16 = 20400

	// Group 10: containers
	// ErrCapacityOverflow growth needs more slots than the configured maximum capacity.
	ErrCapacityOverflow uint16 = 21000
	// ErrInvalidConfiguration a container was created with bad parameters.
	ErrInvalidConfiguration uint16 = 21001

	// ErrEnd, the max value of MOErrorCode
	ErrEnd uint16 = 65535
)

var errorMsgRefer = map[uint16]string{
	// OK code not in this table.

	// Group 1: Internal errors
	ErrStart:    "internal error: error code start",
	ErrInternal: "internal error: %s",

	// Group 3: invalid input
	ErrBadConfig:    "invalid configuration: %s",
	ErrInvalidInput: "invalid input: %s",

	// Group 4: unexpected state
	ErrInvalidState: "invalid state %s",

	// Group 10: containers
	ErrCapacityOverflow:     "capacity overflow: %d entries exceed max capacity %d",
	ErrInvalidConfiguration: "invalid container configuration: %s",

	// Group End: max value of MOErrorCode
	ErrEnd: "internal error: end of errcode code",
}

func newError(ctx context.Context, code uint16, args ...any) *Error {
	format, has := errorMsgRefer[code]
	if !has {
		panic(NewInternalError(ctx, "not exist MOErrorCode: %d", code))
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{
		code:    code,
		message: msg,
	}
}

type Error struct {
	code    uint16
	message string
	detail  string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Detail() string {
	return e.detail
}

func (e *Error) Display() string {
	if len(e.detail) == 0 {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.message, e.detail)
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) Succeeded() bool {
	return e.code < OkMax
}

func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}

	me, ok := e.(*Error)
	if !ok {
		// This is not a moerr
		return false
	}
	return me.code == rc
}

func DowncastError(e error) *Error {
	if err, ok := e.(*Error); ok {
		return err
	}
	return newError(Context(), ErrInternal, fmt.Sprintf("downcast error failed: %v", e))
}

// ConvertPanicError converts a runtime panic to internal error.
func ConvertPanicError(ctx context.Context, v interface{}) *Error {
	if e, ok := v.(*Error); ok {
		return e
	}
	err := newError(ctx, ErrInternal, fmt.Sprintf("panic %v", v))
	err.detail = string(debug.Stack())
	return err
}

// ConvertGoError converts a go error into mo error.
// Note here we must return error, because nil error
// is the same as nil *Error -- Go strangeness.
func ConvertGoError(ctx context.Context, err error) error {
	// nil is nil
	if err == nil {
		return err
	}

	// already a moerr, return it as is
	if _, ok := err.(*Error); ok {
		return err
	}

	if err == io.EOF {
		return GetOkExpectedEOF()
	}

	return NewInternalError(ctx, "convert go error to mo error %v", err)
}

// Special handling of OK code.  These codes are not errors, but used to
// signal different success conditions, e.g. the end of an iteration.
// Iterators run in tight loops, so they cannot afford to new an Error on
// every exhausted cursor.  Callers test the result with either
//
//	   if err == GetOkExpectedEOF()
//	or if moerr.IsMoErrCode(err, moerr.OkExpectedEOF)
var errOkExpectedEOF = Error{OkExpectedEOF, "ExpectedEOF", ""}

func GetOkExpectedEOF() *Error {
	return &errOkExpectedEOF
}

func NewInternalError(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInternal, xmsg)
}

func NewBadConfig(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrBadConfig, xmsg)
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidInput, xmsg)
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidState, xmsg)
}

func NewCapacityOverflow(ctx context.Context, entries, max uint64) *Error {
	return newError(ctx, ErrCapacityOverflow, entries, max)
}

func NewInvalidConfiguration(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidConfiguration, xmsg)
}

func NewInternalErrorNoCtx(msg string, args ...any) *Error {
	return NewInternalError(Context(), msg, args...)
}

func NewBadConfigNoCtx(msg string, args ...any) *Error {
	return NewBadConfig(Context(), msg, args...)
}

func NewInvalidInputNoCtx(msg string, args ...any) *Error {
	return NewInvalidInput(Context(), msg, args...)
}

func NewInvalidStateNoCtx(msg string, args ...any) *Error {
	return NewInvalidState(Context(), msg, args...)
}

func NewCapacityOverflowNoCtx(entries, max uint64) *Error {
	return NewCapacityOverflow(Context(), entries, max)
}

func NewInvalidConfigurationNoCtx(msg string, args ...any) *Error {
	return NewInvalidConfiguration(Context(), msg, args...)
}

var contextFunc atomic.Value

func SetContextFunc(f func() context.Context) {
	contextFunc.Store(f)
}

// Context returns the context used by the NoCtx constructors.
func Context() context.Context {
	return contextFunc.Load().(func() context.Context)()
}

func init() {
	SetContextFunc(func() context.Context { return context.Background() })
}
