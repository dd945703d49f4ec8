package playback

import "errors"

// ErrRunActive is returned by Start while a previous run has not delivered its
// terminal notification yet.
var ErrRunActive = errors.New("a playback run is already active")
