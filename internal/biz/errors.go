package biz

import (
	"github.com/go-kratos/kratos/v2/errors"
)

var (
	// ErrTransientIO is an image fetch or cache store failure; the work is retried on the next pass.
	ErrTransientIO = errors.ServiceUnavailable("TRANSIENT_IO", "image fetch or cache store access failed")
	// ErrClassifier is a photo classifier failure; the photo signal is treated as unknown.
	ErrClassifier = errors.InternalServer("CLASSIFIER_FAILED", "photo classifier failed")
	// ErrTimeout means an expected page element never appeared.
	ErrTimeout = errors.GatewayTimeout("ELEMENT_TIMEOUT", "timed out waiting for page element")
	// ErrInvalidCard means a rendered card lacks an id, photo or name.
	ErrInvalidCard = errors.BadRequest("INVALID_CARD", "profile card is missing required fields")
	// ErrDataIntegrity means a cache namespace could not be decoded.
	ErrDataIntegrity = errors.InternalServer("DATA_INTEGRITY", "cache namespace holds malformed data")
	// ErrPassFailed is a pass-level failure surfaced to the user.
	ErrPassFailed = errors.InternalServer("PASS_FAILED", "filter pass failed")
	// ErrNotListings is returned for listings operations while another page is active.
	ErrNotListings = errors.Conflict("NOT_ON_LISTINGS", "listings page is not active")
)

// userMessage renders err for a notification banner.
func userMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	se := errors.FromError(err)
	if se == nil || se.Reason == "" {
		return err.Error()
	}
	msg := se.Message
	if cause := se.Unwrap(); cause != nil {
		msg += ": " + cause.Error()
	}
	if msg == "" {
		return fallback
	}
	return msg
}
