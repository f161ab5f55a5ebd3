package domain

import "errors"

var (
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidName          = errors.New("invalid name")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidPeriod        = errors.New("invalid period")
	ErrInvalidRate          = errors.New("invalid daily rate")
	ErrInvalidLunch         = errors.New("invalid lunch allowance")
	ErrInvalidStatus        = errors.New("invalid attendance status")
	ErrInvalidHours         = errors.New("invalid hours")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidCategory      = errors.New("invalid expense category")
	ErrReservedCategory     = errors.New("reserved expense category")
	ErrInvalidPayment       = errors.New("invalid payment status")
	ErrInvalidPolicy        = errors.New("invalid pay policy")
	ErrWorkerInactive       = errors.New("worker is inactive")
	ErrDuplicateAttendance  = errors.New("duplicate attendance")
	ErrAttendanceUnchanged  = errors.New("attendance correction changes nothing")
	ErrAttendanceWorkerDiff = errors.New("attendance belongs to another worker")
)
