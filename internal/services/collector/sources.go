package collector

import (
	"time"

	"github.com/backfield/gridiron/internal/auth"
)

// BundleSource yields the signing material for one Process call. Sources
// are consulted once per request, so a pooled source naturally rotates.
type BundleSource interface {
	Bundle(blazeID int64, requestID uint32, expiresAt time.Time) (auth.AuthBundle, error)
}

// ComputedBundles signs each request locally with the device cipher.
type ComputedBundles struct {
	codec    auth.Codec
	deviceID string
}

func NewComputedBundles(deviceID string) ComputedBundles {
	return ComputedBundles{deviceID: deviceID}
}

func (s ComputedBundles) Bundle(blazeID int64, requestID uint32, expiresAt time.Time) (auth.AuthBundle, error) {
	return s.codec.Compute(auth.BundleRequest{
		DeviceID:  s.deviceID,
		RequestID: requestID,
		BlazeID:   blazeID,
		ExpiresAt: expiresAt,
	})
}

// PooledBundles replays captured signing material round-robin.
type PooledBundles struct {
	rotor *auth.BundleRotor
	now   func() time.Time
}

func NewPooledBundles(rotor *auth.BundleRotor) PooledBundles {
	return PooledBundles{rotor: rotor, now: time.Now}
}

func (s PooledBundles) Bundle(int64, uint32, time.Time) (auth.AuthBundle, error) {
	e, err := s.rotor.Next()
	if err != nil {
		return auth.AuthBundle{}, err
	}
	return e.Bundle(s.now()), nil
}
