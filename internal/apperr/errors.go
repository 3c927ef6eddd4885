// Package apperr 定义生命周期引擎的错误分类。
package apperr

import (
	"errors"
	"fmt"
)

// Kind 描述错误大类，调用方据此决定展示或重试。
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindUnavailable Kind = "unavailable"
)

// Code 标识具体违反的规则。
type Code string

// Error 是带错误码的领域错误，按 Code 参与 errors.Is 比较。
type Error struct {
	Code   Code
	Kind   Kind
	Msg    string
	Detail string
	cause  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Detail != "" {
		msg = msg + ": " + e.Detail
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is 仅比较错误码，使带细节的副本仍能匹配哨兵错误。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Withf 返回附带细节说明的副本。
func (e *Error) Withf(format string, args ...any) *Error {
	cp := *e
	cp.Detail = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap 返回包裹底层原因的副本。
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

func define(code Code, kind Kind, msg string) *Error {
	return &Error{Code: code, Kind: kind, Msg: msg}
}

// 校验错误：在任何写入之前同步返回。
var (
	ErrMissingResume       = define("MissingResume", KindValidation, "resume reference required")
	ErrApplicantRequired   = define("ApplicantRequired", KindValidation, "applicant id required")
	ErrActorRequired       = define("ActorRequired", KindValidation, "actor id required")
	ErrInvalidStatus       = define("InvalidStatus", KindValidation, "unknown application status")
	ErrInvalidOutcome      = define("InvalidOutcome", KindValidation, "unknown round outcome")
	ErrScoreOutOfRange     = define("ScoreOutOfRange", KindValidation, "score must be between 0 and 5")
	ErrNarrationRequired   = define("NarrationRequired", KindValidation, "narration required")
	ErrReasonRequired      = define("ReasonRequired", KindValidation, "rejection reason required")
	ErrInterviewerRequired = define("InterviewerRequired", KindValidation, "interviewer name required")
	ErrScheduleRequired    = define("ScheduleRequired", KindValidation, "interview date/time required")
	ErrInvalidAccount      = define("InvalidAccount", KindValidation, "invalid account details")
)

// 业务规则错误：不提交任何部分状态。
var (
	ErrNotFound                 = define("NotFound", KindNotFound, "record not found")
	ErrDuplicateApplication     = define("DuplicateApplication", KindConflict, "an active application already exists for this job posting")
	ErrDeadlinePassed           = define("DeadlinePassed", KindConflict, "job posting deadline has passed")
	ErrInvalidTransition        = define("InvalidTransition", KindConflict, "status transition not allowed")
	ErrRoundOutOfOrder          = define("RoundOutOfOrder", KindConflict, "interview round out of order")
	ErrRoundNotPermitted        = define("RoundNotPermitted", KindConflict, "previous round does not permit a new round")
	ErrDuplicateAssessmentType  = define("DuplicateAssessmentType", KindConflict, "assessment type already recorded for this interview")
	ErrAlreadyClosed            = define("AlreadyClosed", KindConflict, "interview round already closed")
	ErrAlreadyDecided           = define("AlreadyDecided", KindConflict, "registration already decided")
	ErrDuplicateAccount         = define("DuplicateAccount", KindConflict, "an account with this email already exists")
	ErrApplicationNotInProgress = define("ApplicationNotInProgress", KindConflict, "application is not in progress")
)

// 协作方错误：调用方可整体重试。
var (
	ErrConcurrentUpdate = define("ConcurrentUpdate", KindUnavailable, "record changed concurrently, retry")
	ErrUnavailable      = define("Unavailable", KindUnavailable, "persistence unavailable")
)

// Unavailable 将存储层的意外错误包装为瞬时失败。
func Unavailable(op string, err error) error {
	return ErrUnavailable.Withf("%s", op).Wrap(err)
}

// KindOf 返回错误大类；非领域错误视为瞬时失败。
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

// CodeOf 返回错误码，非领域错误返回空。
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
