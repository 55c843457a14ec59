package domain

import "errors"

var (
	ErrAcquisitionFailed   = errors.New("camera acquisition failed")
	ErrAcquisitionPending  = errors.New("camera acquisition in progress")
	ErrNoActiveStream      = errors.New("no active stream")
	ErrInvalidState        = errors.New("operation not valid in current session state")
	ErrInvalidTier         = errors.New("invalid quality tier")
	ErrInvalidFilter       = errors.New("invalid display filter")
	ErrTranscoderMissing   = errors.New("transcoder not available")
	ErrTranscodeFailed     = errors.New("transcode failed")
	ErrSinkUnavailable     = errors.New("download sink unavailable")
	ErrArtifactNotFound    = errors.New("artifact not found")
	ErrInvalidArtifactName = errors.New("invalid artifact name")
	ErrStreamEnded         = errors.New("stream ended")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrDeviceBusy          = errors.New("device busy")
	ErrDeviceNotFound      = errors.New("capture device not found")
	ErrUnsupportedSettings = errors.New("unsupported capture settings")
)
