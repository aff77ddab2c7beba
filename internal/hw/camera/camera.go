// Package camera triggers the camera that shoots the spin frames.
package camera

import "context"

// Camera takes one photo per Shoot call.
type Camera interface {
	Shoot(ctx context.Context) error
}
