package augment

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects the media path a payload takes.
type Kind int

// Supported media kinds.
const (
	KindImage Kind = iota + 1
	KindVideo
)

// ParseKind maps the form values "image" and "video" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image":
		return KindImage, nil
	case "video":
		return KindVideo, nil
	default:
		return 0, newError(InvalidInput, CodeUnknownKind, fmt.Sprintf("unknown file type %q", s), nil)
	}
}

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Status is the outcome variant of a Result.
type Status int

// Result variants.
const (
	Success Status = iota
	InvalidInput
	EncodingFailure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case InvalidInput:
		return "invalid_input"
	case EncodingFailure:
		return "encoding_failure"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Code is a machine-readable failure reason.
type Code string

// Failure reasons.
const (
	CodeNone            Code = ""
	CodeUnknownKind     Code = "unknown_kind"
	CodeEmptyPayload    Code = "empty_payload"
	CodeImageDecode     Code = "image_decode"
	CodeVideoUnopenable Code = "video_unopenable"
	CodeVideoDecode     Code = "video_decode"
	CodeOutputDir       Code = "output_dir"
	CodeEncode          Code = "encode"
	CodeOutputMissing   Code = "output_missing"
	CodeToolMissing     Code = "tool_missing"
	CodeCancelled       Code = "cancelled"
)

// Sentinels matched by errors.Is against an *Error.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrEncodingFailure = errors.New("encoding failure")
)

// Error is the structured failure of a Process call.
type Error struct {
	Status Status
	Code   Code
	Reason string
	Err    error
}

func newError(status Status, code Code, reason string, err error) *Error {
	return &Error{Status: status, Code: code, Reason: reason, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Status, e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s (%s): %s", e.Status, e.Code, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets callers test the failure variant with errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Status == InvalidInput
	case ErrEncodingFailure:
		return e.Status == EncodingFailure
	}
	return false
}

// Result is what Process returns for both media kinds.
type Result struct {
	Status Status
	Code   Code
	Reason string
	Kind   Kind
	JobID  string

	Path   string // absolute path of the written file on success
	Name   string // file name inside the output directory
	Width  int
	Height int
	Frames int    // frames written; 1 for images
	Record Record // transforms applied, images only
	Err    error
}

// OK reports whether the result is a success.
func (r Result) OK() bool {
	return r.Status == Success
}

// Error returns the failure as an error, or nil on success.
func (r Result) Error() error {
	if r.OK() {
		return nil
	}
	return &Error{Status: r.Status, Code: r.Code, Reason: r.Reason, Err: r.Err}
}

var messages = map[Code]string{
	CodeUnknownKind:     "unsupported file type: choose image or video",
	CodeEmptyPayload:    "no file was uploaded",
	CodeImageDecode:     "image could not be opened",
	CodeVideoUnopenable: "video could not be opened",
	CodeVideoDecode:     "video could not be fully decoded",
	CodeOutputDir:       "output directory could not be created",
	CodeEncode:          "output file could not be written",
	CodeOutputMissing:   "output video could not be produced",
	CodeToolMissing:     "ffmpeg is not installed",
	CodeCancelled:       "processing was cancelled",
}

// Message is the display string for the result: the output path on success,
// a short human-readable reason otherwise.
func (r Result) Message() string {
	if r.OK() {
		return r.Path
	}
	if msg, ok := messages[r.Code]; ok {
		return msg
	}
	return r.Reason
}

func failed(kind Kind, jobID string, err error) Result {
	var ae *Error
	if !errors.As(err, &ae) {
		ae = newError(EncodingFailure, CodeEncode, "unexpected failure", err)
	}
	return Result{
		Status: ae.Status,
		Code:   ae.Code,
		Reason: ae.Reason,
		Kind:   kind,
		JobID:  jobID,
		Err:    ae.Err,
	}
}
