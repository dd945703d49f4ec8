// Package playback turns a solver result into a timed, cancelable sequence of
// notifications delivered to an Instance collaborator.
//
// A Player schedules one AddItem notification per selected id at
// initialDelay + index*stepDelay after the run started, and a terminal
// Finished notification that coincides with the last item. Stopping a run
// only suppresses the remaining AddItem calls: every timer still fires and
// Finished is always delivered.
package playback
